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

	"github.com/syndtr/goleveldb/leveldb"

	"github.com/vaultmesh/vaultmesh/chunk"
)

// LevelDB is a durable, indexed Backend for hosts storing many small
// chunks where Dir's one-file-per-chunk layout wastes inodes. It keeps
// its own running size counter under mu since leveldb has no built-in
// aggregate byte count.
type LevelDB struct {
	mu       sync.Mutex
	db       *leveldb.DB
	capacity uint64
	size     uint64
}

// OpenLevelDB opens (creating if necessary) a leveldb-backed store at
// path. capacity of 0 means unlimited.
func OpenLevelDB(path string, capacity uint64) (*LevelDB, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, err
	}
	l := &LevelDB{db: db, capacity: capacity}
	iter := db.NewIterator(nil, nil)
	for iter.Next() {
		l.size += uint64(len(iter.Value()))
	}
	iter.Release()
	return l, nil
}

// Close releases the underlying database handle.
func (l *LevelDB) Close() error {
	return l.db.Close()
}

// Get implements Backend.
func (l *LevelDB) Get(name chunk.Name) ([]byte, bool) {
	data, err := l.db.Get(name, nil)
	if err != nil {
		return nil, false
	}
	return data, true
}

// Has implements Backend.
func (l *LevelDB) Has(name chunk.Name) bool {
	ok, err := l.db.Has(name, nil)
	return err == nil && ok
}

// Store implements Backend.
func (l *LevelDB) Store(name chunk.Name, data []byte) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if ok, _ := l.db.Has(name, nil); ok {
		return false
	}
	if l.capacity != 0 && l.size+uint64(len(data)) > l.capacity {
		return false
	}
	if err := l.db.Put(name, data, nil); err != nil {
		return false
	}
	l.size += uint64(len(data))
	return true
}

// Delete implements Backend.
func (l *LevelDB) Delete(name chunk.Name) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if old, err := l.db.Get(name, nil); err == nil {
		l.size -= uint64(len(old))
		_ = l.db.Delete(name, nil)
	}
	return true
}

// Modify implements Backend.
func (l *LevelDB) Modify(name chunk.Name, data []byte) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	old, err := l.db.Get(name, nil)
	if err != nil {
		return false
	}
	newSize := l.size - uint64(len(old)) + uint64(len(data))
	if l.capacity != 0 && newSize > l.capacity {
		return false
	}
	if err := l.db.Put(name, data, nil); err != nil {
		return false
	}
	l.size = newSize
	return true
}

// Size implements Backend.
func (l *LevelDB) Size() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.size
}

// Capacity implements Backend.
func (l *LevelDB) Capacity() uint64 { return l.capacity }
