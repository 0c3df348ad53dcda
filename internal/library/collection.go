package library

import (
	"github.com/google/uuid"
)

// collection keeps entities in insertion order with an id index for O(1) lookup.
type collection[T any] struct {
	items []T
	index map[string]int
	keyOf func(T) string
	dup   func(T) T
}

func newCollection[T any](keyOf func(T) string, dup func(T) T) *collection[T] {
	if dup == nil {
		dup = func(v T) T { return v }
	}
	return &collection[T]{
		index: make(map[string]int),
		keyOf: keyOf,
		dup:   dup,
	}
}

func (c *collection[T]) len() int { return len(c.items) }

func (c *collection[T]) has(id string) bool {
	_, ok := c.index[id]
	return ok
}

// get returns a detached copy of the entity.
func (c *collection[T]) get(id string) (T, bool) {
	pos, ok := c.index[id]
	if !ok {
		var zero T
		return zero, false
	}
	return c.dup(c.items[pos]), true
}

func (c *collection[T]) insert(v T) {
	c.index[c.keyOf(v)] = len(c.items)
	c.items = append(c.items, c.dup(v))
}

// replace overwrites an entity in place, keeping its position.
func (c *collection[T]) replace(v T) bool {
	pos, ok := c.index[c.keyOf(v)]
	if !ok {
		return false
	}
	c.items[pos] = c.dup(v)
	return true
}

// remove deletes an entity and shifts the index of everything after it.
func (c *collection[T]) remove(id string) bool {
	pos, ok := c.index[id]
	if !ok {
		return false
	}
	c.items = append(c.items[:pos], c.items[pos+1:]...)
	delete(c.index, id)
	for i := pos; i < len(c.items); i++ {
		c.index[c.keyOf(c.items[i])] = i
	}
	return true
}

// each visits entities in order without copying; fn must not retain or mutate v.
func (c *collection[T]) each(fn func(v T) bool) {
	for _, v := range c.items {
		if !fn(v) {
			return
		}
	}
}

// list returns detached copies in insertion order.
func (c *collection[T]) list() []T {
	out := make([]T, 0, len(c.items))
	for _, v := range c.items {
		out = append(out, c.dup(v))
	}
	return out
}

// update rewrites every entity for which fn reports a change.
func (c *collection[T]) update(fn func(v *T) bool) {
	for i := range c.items {
		v := c.dup(c.items[i])
		if fn(&v) {
			c.items[i] = v
		}
	}
}

func (c *collection[T]) clone() *collection[T] {
	cp := &collection[T]{
		items: make([]T, len(c.items)),
		index: make(map[string]int, len(c.index)),
		keyOf: c.keyOf,
		dup:   c.dup,
	}
	for i, v := range c.items {
		cp.items[i] = c.dup(v)
		cp.index[c.keyOf(v)] = i
	}
	return cp
}

func newID() string {
	return uuid.NewString()
}
