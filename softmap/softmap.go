// Package softmap 实现一个对内存敏感的映射
//
// 值通过弱引用保存，映射本身不会阻止值被GC回收。值被回收后，
// runtime的cleanup把对应引用放入通知队列，下一次Get、Set、Del、Len、
// Entries调用时再从正向和反向两个索引中清理掉。
//
// 可以用retain参数保留最近使用的若干个值的强引用，超出部分才可被回收，
// 这样回收时机就由容量决定，而不完全取决于GC。
//
// Map不是并发安全的，跨goroutine使用需要调用方加锁。
package softmap

import (
	"iter"
	"runtime"
	"sync"
	"weak"

	"github.com/jiaxwu/rvbridge/cache"
	"github.com/jiaxwu/rvbridge/lru"
)

// ref 可回收引用，按指针判等
// 同一个值存到两个键下会得到两个不同的ref
type ref[V any] struct {
	p       weak.Pointer[V]
	cleanup runtime.Cleanup
}

// queue 已回收引用的通知队列，由runtime的cleanup goroutine写入
type queue[V any] struct {
	mu   sync.Mutex
	refs []*ref[V]
}

func (q *queue[V]) push(r *ref[V]) {
	q.mu.Lock()
	q.refs = append(q.refs, r)
	q.mu.Unlock()
}

func (q *queue[V]) poll() []*ref[V] {
	q.mu.Lock()
	defer q.mu.Unlock()
	refs := q.refs
	q.refs = nil
	return refs
}

// Map 键到值的弱引用映射
type Map[K comparable, V any] struct {
	hash    map[K]*ref[V]
	reverse map[*ref[V]]K
	queue   *queue[V]
	// 强引用层，可选
	retain *lru.Cache[K, *V]
}

var _ cache.Cache[string, *int] = (*Map[string, int])(nil)

// New 创建一个Map，retain为保留强引用的最近使用值的个数，0表示全部弱引用
func New[K comparable, V any](retain int) *Map[K, V] {
	m := &Map[K, V]{
		hash:    make(map[K]*ref[V]),
		reverse: make(map[*ref[V]]K),
		queue:   &queue[V]{},
	}
	if retain > 0 {
		m.retain = lru.New[K, *V](retain, nil)
	}
	return m
}

// expungeStaleEntries 清理已被回收的引用
func (m *Map[K, V]) expungeStaleEntries() {
	for _, r := range m.queue.poll() {
		key, ok := m.reverse[r]
		if !ok {
			continue
		}
		delete(m.reverse, r)
		if m.hash[key] == r {
			delete(m.hash, key)
		}
	}
}

func (m *Map[K, V]) newRef(v *V) *ref[V] {
	r := &ref[V]{p: weak.Make(v)}
	q := m.queue
	r.cleanup = runtime.AddCleanup(v, func(r *ref[V]) { q.push(r) }, r)
	return r
}

// drop 从两个索引中移除key对应的引用，返回它仍然存活的值
func (m *Map[K, V]) drop(key K) (*V, bool) {
	r, ok := m.hash[key]
	if !ok {
		return nil, false
	}
	delete(m.hash, key)
	delete(m.reverse, r)
	r.cleanup.Stop()
	if m.retain != nil {
		m.retain.Del(key)
	}
	v := r.p.Value()
	return v, v != nil
}

// Get 获取key对应的值，值已被回收时等同于不存在
func (m *Map[K, V]) Get(key K) (*V, bool) {
	m.expungeStaleEntries()
	r, ok := m.hash[key]
	if !ok {
		return nil, false
	}
	v := r.p.Value()
	if v == nil {
		m.drop(key)
		return nil, false
	}
	if m.retain != nil {
		m.retain.Set(key, v)
	}
	return v, true
}

// Set 设置key对应的值，返回仍然存活的原值
// 值为nil时等同于Del
func (m *Map[K, V]) Set(key K, v *V) (*V, bool) {
	m.expungeStaleEntries()
	if v == nil {
		return m.drop(key)
	}
	r := m.newRef(v)
	m.reverse[r] = key
	prev, ok := m.hash[key]
	m.hash[key] = r
	if m.retain != nil {
		m.retain.Set(key, v)
	}
	if !ok {
		return nil, false
	}
	delete(m.reverse, prev)
	prev.cleanup.Stop()
	pv := prev.p.Value()
	return pv, pv != nil
}

// Del 删除key，返回仍然存活的原值
func (m *Map[K, V]) Del(key K) (*V, bool) {
	m.expungeStaleEntries()
	return m.drop(key)
}

// Len 返回当前的元素个数
// GC可能在返回后立刻回收某些值，所以结果只是一个快照
func (m *Map[K, V]) Len() int {
	m.expungeStaleEntries()
	return len(m.hash)
}

// Clear 无条件清空
func (m *Map[K, V]) Clear() {
	for r := range m.reverse {
		r.cleanup.Stop()
	}
	clear(m.hash)
	clear(m.reverse)
	m.queue.poll()
	if m.retain != nil {
		m.retain.Clear()
	}
}

// Entry Entries返回的键值对
type Entry[K comparable, V any] struct {
	Key   K
	Value *V
	m     *Map[K, V]
	r     *ref[V]
}

// SetValue 替换值并返回旧值
// 只要Map中key仍然指向生成该Entry时的引用，新值就会写回Map；否则只修改Entry本身。
// 写回是尽力而为的：原值已被回收但通知还没处理时，检查仍会通过，新值照样写回
func (e *Entry[K, V]) SetValue(v *V) *V {
	old := e.Value
	e.Value = v
	if e.m == nil {
		return old
	}
	if r, ok := e.m.hash[e.Key]; !ok || r != e.r {
		e.m = nil
		return old
	}
	e.m.Set(e.Key, v)
	if v == nil {
		e.m = nil
		return old
	}
	e.r = e.m.hash[e.Key]
	return old
}

// Entries 返回当前所有存活键值对的拷贝
func (m *Map[K, V]) Entries() []Entry[K, V] {
	m.expungeStaleEntries()
	entries := make([]Entry[K, V], 0, len(m.hash))
	for key, r := range m.hash {
		if v := r.p.Value(); v != nil {
			entries = append(entries, Entry[K, V]{Key: key, Value: v, m: m, r: r})
		}
	}
	return entries
}

// All 遍历当前所有存活的键值对
// 遍历的是调用时的快照，遍历过程中修改Map是安全的
func (m *Map[K, V]) All() iter.Seq2[K, *V] {
	return func(yield func(K, *V) bool) {
		for _, e := range m.Entries() {
			if !yield(e.Key, e.Value) {
				return
			}
		}
	}
}
