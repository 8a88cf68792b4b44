package registry

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.etcd.io/etcd/api/v3/mvccpb"
	etcd "go.etcd.io/etcd/client/v3"
)

const (
	// 续约间隔，单位秒
	keepAliveTTL = 10
	// 事件通道缓冲区大小
	eventChanSize = 10
	dialTimeout   = 5 * time.Second
)

// Event 网关变化事件
type Event struct {
	AddAddr    string
	DeleteAddr string
}

// Registry 基于etcd的网关发现
type Registry struct {
	client *etcd.Client
	// etcd key前缀，比如"rvbridge/gateways/"
	prefix string
}

func New(prefix string, endpoints []string) (*Registry, error) {
	client, err := etcd.New(etcd.Config{
		Endpoints:   endpoints,
		DialTimeout: dialTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to etcd: %w", err)
	}
	return &Registry{
		client: client,
		prefix: prefix,
	}, nil
}

func (r *Registry) key(addr string) string {
	return r.prefix + addr
}

// Register 注册网关地址，租约随ctx结束而失效
func (r *Registry) Register(ctx context.Context, addr string) error {
	lease := etcd.NewLease(r.client)
	grant, err := lease.Grant(ctx, keepAliveTTL)
	if err != nil {
		return fmt.Errorf("granting lease: %w", err)
	}
	if _, err := r.client.Put(ctx, r.key(addr), addr, etcd.WithLease(grant.ID)); err != nil {
		return fmt.Errorf("registering %s: %w", addr, err)
	}
	ch, err := lease.KeepAlive(ctx, grant.ID)
	if err != nil {
		return fmt.Errorf("keeping lease alive: %w", err)
	}
	go func() {
		for range ch {
		}
	}()
	return nil
}

// Deregister 注销网关地址
func (r *Registry) Deregister(ctx context.Context, addr string) error {
	if _, err := r.client.Delete(ctx, r.key(addr)); err != nil {
		return fmt.Errorf("deregistering %s: %w", addr, err)
	}
	return nil
}

// GetAddrs 获取网关地址列表
func (r *Registry) GetAddrs(ctx context.Context) ([]string, error) {
	resp, err := r.client.Get(ctx, r.prefix, etcd.WithPrefix())
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", r.prefix, err)
	}
	addrs := make([]string, len(resp.Kvs))
	for i, kv := range resp.Kvs {
		addrs[i] = string(kv.Value)
	}
	return addrs, nil
}

// Watch 监听网关变化，ctx结束后通道关闭
func (r *Registry) Watch(ctx context.Context) <-chan Event {
	watchChan := r.client.Watch(ctx, r.prefix, etcd.WithPrefix())
	ch := make(chan Event, eventChanSize)
	go func() {
		defer close(ch)
		for watchRsp := range watchChan {
			for _, event := range watchRsp.Events {
				ev, ok := translate(r.prefix, event.Type, event.Kv)
				if !ok {
					continue
				}
				select {
				case ch <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return ch
}

// translate 把etcd事件转换为网关变化事件
func translate(prefix string, typ mvccpb.Event_EventType, kv *mvccpb.KeyValue) (Event, bool) {
	if kv == nil {
		return Event{}, false
	}
	switch typ {
	case mvccpb.PUT:
		return Event{AddAddr: string(kv.Value)}, true
	case mvccpb.DELETE:
		return Event{DeleteAddr: strings.TrimPrefix(string(kv.Key), prefix)}, true
	}
	return Event{}, false
}

// Close 关闭etcd连接
func (r *Registry) Close() error {
	return r.client.Close()
}
