package kvstore

import (
	"context"
	"strings"
	"sync"
)

// Memory is an in-process Store backed by a map.
// It is safe for concurrent use and is the default backend for tests and single-node runs.
type Memory struct {
	mu    sync.Mutex
	items map[string]string
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{items: make(map[string]string)}
}

// SetIfAbsent implements Store.SetIfAbsent.
func (m *Memory) SetIfAbsent(ctx context.Context, key, value string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[key]; ok {
		return false, nil
	}
	m.items[key] = value
	return true, nil
}

// Get implements Store.Get.
func (m *Memory) Get(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	m.mu.Lock()
	v, ok := m.items[key]
	m.mu.Unlock()
	return v, ok, nil
}

// Swap implements Store.Swap.
func (m *Memory) Swap(ctx context.Context, key, value string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	prev, ok := m.items[key]
	m.items[key] = value
	return prev, ok, nil
}

// Delete implements Store.Delete.
func (m *Memory) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	delete(m.items, key)
	m.mu.Unlock()
	return nil
}

// Ping implements Pinger. A memory store is always reachable.
func (m *Memory) Ping(context.Context) error {
	return nil
}

// Keys implements Lister.
func (m *Memory) Keys(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.items))
	for k := range m.items {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

// Set overwrites key unconditionally. It is a test and admin convenience,
// not part of the Store contract.
func (m *Memory) Set(key, value string) {
	m.mu.Lock()
	m.items[key] = value
	m.mu.Unlock()
}

// Len reports the number of stored keys.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}
