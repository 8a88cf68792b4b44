package cache

// Cache 通用键值缓存，lru.Cache 和 softmap.Map 都实现了它
type Cache[K comparable, V any] interface {
	// Get 获取元素
	Get(key K) (val V, exist bool)
	// Set 设置元素，返回被替换的原值
	Set(key K, val V) (origVal V, origExist bool)
	// Del 删除元素
	Del(key K) (origVal V, origExist bool)
	// Len 缓存元素个数
	Len() int
	// Clear 清空缓存
	Clear()
}
