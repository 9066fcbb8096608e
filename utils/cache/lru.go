package cache

// dumb LRU implementation
// listHead is the least recently used node, listHead.prev the most recently used one
func NewLRUCache[K comparable, V any](size int) Cache[K, V] {
	return &LRUCache[K, V]{
		cache:    make(map[K]*Node[K, V], size),
		size:     size,
		listHead: nil,
	}
}

type LRUCache[K comparable, V any] struct {
	cache    map[K]*Node[K, V]
	size     int
	listHead *Node[K, V]
	length   int
}

type Node[K comparable, V any] struct {
	key   K
	value V
	prev  *Node[K, V]
	next  *Node[K, V]
}

func (c *LRUCache[K, V]) Size() int {
	return c.length
}

// Range walks from the least to the most recently used entry until onEach returns false
func (c *LRUCache[K, V]) Range(onEach func(K, V) bool) {
	if c.listHead == nil {
		return
	}
	head := c.listHead
	for {
		next := head.next
		if !onEach(head.key, head.value) {
			break
		}
		head = next
		if head == c.listHead {
			break
		}
	}
}

// Evict removes key if preEvict agrees
func (c *LRUCache[K, V]) Evict(key K, preEvict func(V) bool) bool {
	node, ok := c.cache[key]
	if !ok {
		return false
	}

	if !preEvict(node.value) {
		return false
	}

	c.unlink(node)
	delete(c.cache, key)
	return true
}

// EvictOldest removes the least recently used entry accepted by preEvict
func (c *LRUCache[K, V]) EvictOldest(preEvict func(K, V) bool) (K, V, bool) {
	var (
		key   K
		value V
		found bool
	)
	c.Range(func(k K, v V) bool {
		if preEvict(k, v) {
			key, value, found = k, v, true
			return false
		}
		return true
	})
	if found {
		c.unlink(c.cache[key])
		delete(c.cache, key)
	}
	return key, value, found
}

// Put adds or refreshes a value as the most recently used one
func (c *LRUCache[K, V]) Put(key K, value V) {
	if node, ok := c.cache[key]; ok {
		node.value = value
		c.unlink(node)
		c.pushBack(node)
		return
	}

	node := &Node[K, V]{
		key:   key,
		value: value,
	}
	c.cache[key] = node
	c.pushBack(node)
}

// Get returns a value and marks it as the most recently used one
func (c *LRUCache[K, V]) Get(key K) (V, bool) {
	node, ok := c.cache[key]
	if !ok {
		var zero V
		return zero, false
	}

	c.unlink(node)
	c.pushBack(node)
	return node.value, true
}

func (c *LRUCache[K, V]) pushBack(node *Node[K, V]) {
	if c.listHead == nil {
		node.prev = node
		node.next = node
		c.listHead = node
	} else {
		tail := c.listHead.prev
		tail.next = node
		node.prev = tail
		node.next = c.listHead
		c.listHead.prev = node
	}
	c.length++
}

func (c *LRUCache[K, V]) unlink(node *Node[K, V]) {
	if c.length == 1 {
		c.listHead = nil
	} else {
		node.prev.next = node.next
		node.next.prev = node.prev
		if c.listHead == node {
			c.listHead = node.next
		}
	}
	node.prev = nil
	node.next = nil
	c.length--
}
