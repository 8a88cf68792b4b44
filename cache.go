package rvbridge

import (
	"sync"

	"github.com/jiaxwu/rvbridge/softmap"
)

// 并发安全的加载请求登记表，广告位ID -> 请求
// 请求通过弱引用保存，调用方丢弃*Request并且它被挤出强引用层后，登记会被自动清理
type requestRegistry struct {
	mu       sync.Mutex
	requests *softmap.Map[string, Request]
}

func newRequestRegistry(retain int) *requestRegistry {
	return &requestRegistry{requests: softmap.New[string, Request](retain)}
}

// add 登记请求，广告位已有请求时返回false
func (r *requestRegistry) add(adUnitID string, req *Request) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.requests.Get(adUnitID); ok {
		return false
	}
	r.requests.Set(adUnitID, req)
	return true
}

func (r *requestRegistry) get(adUnitID string) *Request {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, _ := r.requests.Get(adUnitID)
	return req
}

// take 取出并删除广告位的请求
func (r *requestRegistry) take(adUnitID string) *Request {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, _ := r.requests.Del(adUnitID)
	return req
}

func (r *requestRegistry) remove(adUnitID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests.Del(adUnitID)
}

// removeIf 只有广告位当前登记的就是req时才删除
func (r *requestRegistry) removeIf(adUnitID string, req *Request) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.requests.Get(adUnitID); !ok || cur != req {
		return false
	}
	r.requests.Del(adUnitID)
	return true
}

func (r *requestRegistry) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.requests.Len()
}

func (r *requestRegistry) clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests.Clear()
}
