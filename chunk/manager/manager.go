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

// Package manager implements the single-host façade binding a chunk
// store, the Chunk Action Authority (dispatched through the type
// registry), and an inter-process advisory lock directory.
package manager

import (
	"bytes"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	lru "github.com/hashicorp/golang-lru"
	log "github.com/sirupsen/logrus"

	"github.com/vaultmesh/vaultmesh/chunk"
	"github.com/vaultmesh/vaultmesh/chunk/action"
	"github.com/vaultmesh/vaultmesh/chunk/registry"
	"github.com/vaultmesh/vaultmesh/chunk/store"
	"github.com/vaultmesh/vaultmesh/crypto/asymmetric"
	"github.com/vaultmesh/vaultmesh/utils/timer"
)

// Manager is the façade a vault process calls into for every chunk
// operation. It is safe for concurrent use.
type Manager struct {
	backend  store.Backend
	registry *registry.Registry
	lockDir  string

	// GetWait/ActionWait optionally sleep before touching the store,
	// simulating network latency in tests.
	GetWait    time.Duration
	ActionWait time.Duration

	versions *lru.Cache // name.Key() -> []byte version

	namesMu sync.Mutex
	names   map[string]*sync.Mutex // per-name serialization against concurrent writers
}

// New builds a Manager over backend, serializing advisory locks in
// lockDir (created if absent). versionCacheSize bounds the in-memory
// (name -> version) cache; 0 disables caching.
func New(backend store.Backend, lockDir string, versionCacheSize int) (*Manager, error) {
	if lockDir != "" {
		if err := os.MkdirAll(lockDir, 0755); err != nil {
			return nil, err
		}
	}
	var cache *lru.Cache
	if versionCacheSize > 0 {
		var err error
		cache, err = lru.New(versionCacheSize)
		if err != nil {
			return nil, err
		}
	}
	return &Manager{
		backend:  backend,
		registry: registry.New(),
		lockDir:  lockDir,
		versions: cache,
		names:    make(map[string]*sync.Mutex),
	}, nil
}

func (m *Manager) nameLock(name chunk.Name) *sync.Mutex {
	m.namesMu.Lock()
	defer m.namesMu.Unlock()
	key := name.Key()
	l, ok := m.names[key]
	if !ok {
		l = &sync.Mutex{}
		m.names[key] = l
	}
	return l
}

// acquireFileLock creates a uniquely-named file under m.lockDir for
// name, backing off with an exponential schedule when a prior lock
// file is already present, up to LockWaitMaxElapsed.
func (m *Manager) acquireFileLock(name chunk.Name) (func(), error) {
	if m.lockDir == "" {
		return func() {}, nil
	}
	path := filepath.Join(m.lockDir, name.String()+".lock")

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 10 * time.Millisecond
	b.MaxElapsedTime = 2 * time.Second

	op := func() error {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
		if err != nil {
			if os.IsExist(err) {
				return err // retryable
			}
			return backoff.Permanent(err)
		}
		return f.Close()
	}

	if err := backoff.Retry(op, b); err != nil {
		log.WithField("name", name.String()).WithError(err).Warn("advisory lock contention")
		return nil, err
	}

	return func() {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			log.WithField("path", path).WithError(err).Error("release advisory lock failed")
		}
	}, nil
}

func (m *Manager) withLock(t *timer.Timer, name chunk.Name, txID string, fn func() error) error {
	nl := m.nameLock(name)
	nl.Lock()
	defer nl.Unlock()
	t.Add("acquired_name_lock:" + txID)

	release, err := m.acquireFileLock(name)
	if err != nil {
		return err
	}
	defer release()
	t.Add("acquired_file_lock")

	return fn()
}

func (m *Manager) invalidateVersion(name chunk.Name) {
	if m.versions != nil {
		m.versions.Remove(name.Key())
	}
}

// Get fetches name's bytes for the caller holding pub. If localVersion
// is non-nil and matches the backend's current version, Get returns
// immediately without invoking the authority.
func (m *Manager) Get(name chunk.Name, pub *asymmetric.PublicKey, localVersion []byte) ([]byte, action.Status) {
	if m.GetWait > 0 {
		time.Sleep(m.GetWait)
	}

	if localVersion != nil {
		if cur, status := m.Version(name); status == action.Success && bytes.Equal(cur, localVersion) {
			return nil, action.Success
		}
	}

	t := timer.NewTimer()
	txID := newTxID()
	var out []byte
	var status action.Status
	_ = m.withLock(t, name, txID, func() error {
		out, status = m.registry.Get(m.backend, name, pub)
		return nil
	})
	if status == action.Success {
		m.invalidateVersion(name)
	}
	return out, status
}

// Store writes a new chunk under name.
func (m *Manager) Store(name chunk.Name, content []byte, pub *asymmetric.PublicKey) action.Status {
	if m.ActionWait > 0 {
		time.Sleep(m.ActionWait)
	}
	t := timer.NewTimer()
	txID := newTxID()
	var status action.Status
	_ = m.withLock(t, name, txID, func() error {
		status = m.registry.Store(m.backend, name, content, pub)
		return nil
	})
	if status == action.Success {
		m.invalidateVersion(name)
	}
	return status
}

// Delete removes name, idempotently.
func (m *Manager) Delete(name chunk.Name, ownershipProof []byte, pub *asymmetric.PublicKey) action.Status {
	if m.ActionWait > 0 {
		time.Sleep(m.ActionWait)
	}
	t := timer.NewTimer()
	txID := newTxID()
	var status action.Status
	_ = m.withLock(t, name, txID, func() error {
		status = m.registry.Delete(m.backend, name, ownershipProof, pub)
		return nil
	})
	if status == action.Success {
		m.invalidateVersion(name)
	}
	return status
}

// Modify mutates name per its type's rules.
func (m *Manager) Modify(name chunk.Name, content []byte, pub *asymmetric.PublicKey) ([]byte, action.Status) {
	if m.ActionWait > 0 {
		time.Sleep(m.ActionWait)
	}
	t := timer.NewTimer()
	txID := newTxID()
	var out []byte
	var status action.Status
	_ = m.withLock(t, name, txID, func() error {
		out, status = m.registry.Modify(m.backend, name, content, pub)
		return nil
	})
	if status == action.Success {
		m.invalidateVersion(name)
	}
	return out, status
}

// Has reports whether name is present.
func (m *Manager) Has(name chunk.Name) action.Status {
	return m.registry.Has(m.backend, name)
}

// Version returns name's current version, consulting the LRU cache
// first when the type is cacheable.
func (m *Manager) Version(name chunk.Name) ([]byte, action.Status) {
	cacheable := m.registry.Cacheable(name)
	if cacheable && m.versions != nil {
		if v, ok := m.versions.Get(name.Key()); ok {
			return v.([]byte), action.Success
		}
	}
	v, status := m.registry.Version(m.backend, name)
	if status == action.Success && cacheable && m.versions != nil {
		m.versions.Add(name.Key(), v)
	}
	return v, status
}
