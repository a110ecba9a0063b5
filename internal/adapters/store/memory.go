package store

import (
	"context"
	"sync"

	"github.com/bft-labs/outqueue/internal/ports"
)

// Memory is an in-process KVStore with an optional byte quota. The quota
// counts key and value bytes across all keys.
type Memory struct {
	mu       sync.Mutex
	data     map[string]string
	used     int
	quota    int
	disabled bool
}

// NewMemory creates a memory store. A quota of 0 means unlimited.
func NewMemory(quota int) *Memory {
	return &Memory{data: make(map[string]string), quota: quota}
}

// NewDisabledMemory creates a store whose probe fails, standing in for a
// host where storage is switched off.
func NewDisabledMemory() *Memory {
	m := NewMemory(0)
	m.disabled = true
	return m
}

// Get returns the value stored under key.
func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.disabled {
		return "", false, ports.ErrStoreUnavailable
	}
	v, ok := m.data[key]
	return v, ok, nil
}

// Set stores value under key, failing with ports.ErrQuotaExceeded when the
// write does not fit.
func (m *Memory) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.disabled {
		return ports.ErrStoreUnavailable
	}

	used := m.used
	if old, ok := m.data[key]; ok {
		used -= len(key) + len(old)
	}
	used += len(key) + len(value)
	if m.quota > 0 && used > m.quota {
		return ports.ErrQuotaExceeded
	}

	m.data[key] = value
	m.used = used
	return nil
}

// Probe fails only for a disabled store.
func (m *Memory) Probe(context.Context) error {
	if m.disabled {
		return ports.ErrStoreUnavailable
	}
	return nil
}

// Used returns the number of bytes currently counted against the quota.
func (m *Memory) Used() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.used
}
