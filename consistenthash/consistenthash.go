package consistenthash

import (
	"hash/crc32"
	"slices"
	"sort"
	"strconv"
)

// Hash 映射bytes到uint32
type Hash func(data []byte) uint32

// Map 一致性哈希环，把广告位ID映射到网关
type Map struct {
	hash Hash
	// 虚拟节点倍数
	replicas int
	// 哈希环，有序的虚拟节点hash
	ring []uint32
	// 虚拟节点hash到网关地址的映射
	nodes map[uint32]string
	// 真实节点集合
	members map[string]struct{}
}

// New 创建一个一致性哈希，fn为nil时使用crc32
func New(replicas int, fn Hash) *Map {
	m := &Map{
		replicas: replicas,
		hash:     fn,
		nodes:    make(map[uint32]string),
		members:  make(map[string]struct{}),
	}
	if m.hash == nil {
		m.hash = crc32.ChecksumIEEE
	}
	return m
}

func (m *Map) virtual(node string, i int) uint32 {
	return m.hash([]byte(strconv.Itoa(i) + node))
}

// Add 添加节点，已存在的节点忽略
func (m *Map) Add(nodes ...string) {
	for _, node := range nodes {
		if _, ok := m.members[node]; ok {
			continue
		}
		m.members[node] = struct{}{}
		for i := 0; i < m.replicas; i++ {
			m.nodes[m.virtual(node, i)] = node
		}
	}
	m.rebuild()
}

// Delete 删除节点
func (m *Map) Delete(nodes ...string) {
	for _, node := range nodes {
		if _, ok := m.members[node]; !ok {
			continue
		}
		delete(m.members, node)
		for i := 0; i < m.replicas; i++ {
			h := m.virtual(node, i)
			// 虚拟节点hash冲突时可能已经属于别的节点
			if m.nodes[h] == node {
				delete(m.nodes, h)
			}
		}
	}
	m.rebuild()
}

func (m *Map) rebuild() {
	m.ring = m.ring[:0]
	for h := range m.nodes {
		m.ring = append(m.ring, h)
	}
	slices.Sort(m.ring)
}

// Get 获取第一个哈希值大于等于键的节点，环为空时返回""
func (m *Map) Get(key string) string {
	if len(m.ring) == 0 {
		return ""
	}
	h := m.hash([]byte(key))
	idx := sort.Search(len(m.ring), func(i int) bool {
		return m.ring[i] >= h
	})
	return m.nodes[m.ring[idx%len(m.ring)]]
}

// Len 真实节点个数
func (m *Map) Len() int {
	return len(m.members)
}

// Members 按字典序返回所有真实节点
func (m *Map) Members() []string {
	members := make([]string, 0, len(m.members))
	for node := range m.members {
		members = append(members, node)
	}
	slices.Sort(members)
	return members
}
