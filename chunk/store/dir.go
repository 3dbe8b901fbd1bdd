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
	"io/ioutil"
	"os"
	"path/filepath"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/vaultmesh/vaultmesh/chunk"
)

// Dir is a file-backed Backend: one file per chunk under Root, named
// by the chunk name's hex encoding. It pairs with LockDir for
// chunk/manager's cross-process advisory locking — Dir itself only
// serializes within this process via mu.
type Dir struct {
	mu       sync.RWMutex
	root     string
	lockDir  string
	capacity uint64
	size     uint64
}

// NewDir opens (creating if necessary) a directory-backed store
// rooted at root, with an adjacent lock directory at lockDir.
// capacity of 0 means unlimited.
func NewDir(root, lockDir string, capacity uint64) (*Dir, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, err
	}
	if lockDir != "" {
		if err := os.MkdirAll(lockDir, 0755); err != nil {
			return nil, err
		}
	}
	d := &Dir{root: root, lockDir: lockDir, capacity: capacity}
	d.size = d.scanSize()
	return d, nil
}

// LockDir reports the directory chunk/manager should create advisory
// lock files in for this backend.
func (d *Dir) LockDir() string { return d.lockDir }

func (d *Dir) scanSize() uint64 {
	entries, err := ioutil.ReadDir(d.root)
	if err != nil {
		return 0
	}
	var total uint64
	for _, e := range entries {
		if !e.IsDir() {
			total += uint64(e.Size())
		}
	}
	return total
}

func (d *Dir) path(name chunk.Name) string {
	return filepath.Join(d.root, name.String())
}

// Get implements Backend.
func (d *Dir) Get(name chunk.Name) ([]byte, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	data, err := ioutil.ReadFile(d.path(name))
	if err != nil {
		return nil, false
	}
	return data, true
}

// Has implements Backend.
func (d *Dir) Has(name chunk.Name) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, err := os.Stat(d.path(name))
	return err == nil
}

// Store implements Backend.
func (d *Dir) Store(name chunk.Name, data []byte) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	p := d.path(name)
	if _, err := os.Stat(p); err == nil {
		return false
	}
	if d.capacity != 0 && d.size+uint64(len(data)) > d.capacity {
		return false
	}
	if err := ioutil.WriteFile(p, data, 0644); err != nil {
		log.WithField("path", p).WithError(err).Error("store chunk file failed")
		return false
	}
	d.size += uint64(len(data))
	return true
}

// Delete implements Backend.
func (d *Dir) Delete(name chunk.Name) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	p := d.path(name)
	if info, err := os.Stat(p); err == nil {
		d.size -= uint64(info.Size())
		if err := os.Remove(p); err != nil {
			log.WithField("path", p).WithError(err).Error("delete chunk file failed")
		}
	}
	return true
}

// Modify implements Backend.
func (d *Dir) Modify(name chunk.Name, data []byte) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	p := d.path(name)
	info, err := os.Stat(p)
	if err != nil {
		return false
	}
	newSize := d.size - uint64(info.Size()) + uint64(len(data))
	if d.capacity != 0 && newSize > d.capacity {
		return false
	}
	if err := ioutil.WriteFile(p, data, 0644); err != nil {
		log.WithField("path", p).WithError(err).Error("modify chunk file failed")
		return false
	}
	d.size = newSize
	return true
}

// Size implements Backend.
func (d *Dir) Size() uint64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.size
}

// Capacity implements Backend.
func (d *Dir) Capacity() uint64 { return d.capacity }
