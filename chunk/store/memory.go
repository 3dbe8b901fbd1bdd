/*
 * Copyright 2018 The CovenantSQL Authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package store

import (
	"sync"

	"github.com/vaultmesh/vaultmesh/chunk"
)

// Memory is an in-process Backend backed by a map, useful for tests
// and for a vault that only ever serves a single client process.
type Memory struct {
	mu       sync.RWMutex
	data     map[string][]byte
	size     uint64
	capacity uint64
}

// NewMemory returns an empty Memory backend. capacity of 0 means
// unlimited.
func NewMemory(capacity uint64) *Memory {
	return &Memory{
		data:     make(map[string][]byte),
		capacity: capacity,
	}
}

// Get implements Backend.
func (m *Memory) Get(name chunk.Name) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.data[name.Key()]
	if !ok {
		return nil, false
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, true
}

// Has implements Backend.
func (m *Memory) Has(name chunk.Name) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.data[name.Key()]
	return ok
}

// Store implements Backend.
func (m *Memory) Store(name chunk.Name, data []byte) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := name.Key()
	if _, exists := m.data[key]; exists {
		return false
	}
	if m.capacity != 0 && m.size+uint64(len(data)) > m.capacity {
		return false
	}
	m.data[key] = append([]byte(nil), data...)
	m.size += uint64(len(data))
	return true
}

// Delete implements Backend.
func (m *Memory) Delete(name chunk.Name) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := name.Key()
	if old, exists := m.data[key]; exists {
		m.size -= uint64(len(old))
		delete(m.data, key)
	}
	return true
}

// Modify implements Backend.
func (m *Memory) Modify(name chunk.Name, data []byte) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := name.Key()
	old, exists := m.data[key]
	if !exists {
		return false
	}
	newSize := m.size - uint64(len(old)) + uint64(len(data))
	if m.capacity != 0 && newSize > m.capacity {
		return false
	}
	m.data[key] = append([]byte(nil), data...)
	m.size = newSize
	return true
}

// Size implements Backend.
func (m *Memory) Size() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.size
}

// Capacity implements Backend.
func (m *Memory) Capacity() uint64 {
	return m.capacity
}
