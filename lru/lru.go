package lru

import (
	"container/list"

	"github.com/jiaxwu/rvbridge/cache"
)

// Cache 按元素个数限制容量的LRU缓存
// 链表头部是最久未访问的元素，尾部是最近访问的元素
type Cache[K comparable, V any] struct {
	// 最大元素个数，<=0表示不限制
	maxEntries int
	ll         *list.List
	cache      map[K]*list.Element
	// 可选，在entry被淘汰的时候执行
	onEvicted func(key K, value V)
}

var _ cache.Cache[string, int] = (*Cache[string, int])(nil)

type entry[K comparable, V any] struct {
	key   K
	value V
}

func New[K comparable, V any](maxEntries int, onEvicted func(key K, value V)) *Cache[K, V] {
	return &Cache[K, V]{
		maxEntries: maxEntries,
		ll:         list.New(),
		cache:      make(map[K]*list.Element),
		onEvicted:  onEvicted,
	}
}

// Get 获取缓存的值，并标记为最近访问
func (c *Cache[K, V]) Get(key K) (val V, exist bool) {
	element, ok := c.cache[key]
	if !ok {
		return val, false
	}
	c.ll.MoveToBack(element)
	return element.Value.(*entry[K, V]).value, true
}

// Set 添加数据到缓存，超过容量时淘汰最久未访问的数据
func (c *Cache[K, V]) Set(key K, val V) (origVal V, origExist bool) {
	if element, ok := c.cache[key]; ok {
		c.ll.MoveToBack(element)
		ent := element.Value.(*entry[K, V])
		origVal, ent.value = ent.value, val
		return origVal, true
	}
	element := c.ll.PushBack(&entry[K, V]{key: key, value: val})
	c.cache[key] = element
	for c.maxEntries > 0 && c.ll.Len() > c.maxEntries {
		c.Evict()
	}
	return origVal, false
}

// Del 移除某个键，不触发淘汰回调
func (c *Cache[K, V]) Del(key K) (origVal V, origExist bool) {
	element, ok := c.cache[key]
	if !ok {
		return origVal, false
	}
	c.ll.Remove(element)
	delete(c.cache, key)
	return element.Value.(*entry[K, V]).value, true
}

// Evict 淘汰最久未访问的数据
func (c *Cache[K, V]) Evict() (evictedKey K, evictedVal V, evicted bool) {
	front := c.ll.Front()
	if front == nil {
		return evictedKey, evictedVal, false
	}
	c.ll.Remove(front)
	kv := front.Value.(*entry[K, V])
	delete(c.cache, kv.key)
	if c.onEvicted != nil {
		c.onEvicted(kv.key, kv.value)
	}
	return kv.key, kv.value, true
}

// Len 返回数据数量
func (c *Cache[K, V]) Len() int {
	return c.ll.Len()
}

// Clear 清空缓存，不触发淘汰回调
func (c *Cache[K, V]) Clear() {
	c.ll.Init()
	clear(c.cache)
}
