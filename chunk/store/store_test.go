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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vaultmesh/vaultmesh/chunk"
)

func backends(t *testing.T) map[string]Backend {
	dirRoot, err := ioutil.TempDir("", "vaultmesh-dir")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dirRoot) })
	dirStore, err := NewDir(filepath.Join(dirRoot, "chunks"), filepath.Join(dirRoot, "locks"), 0)
	require.NoError(t, err)

	ldbRoot, err := ioutil.TempDir("", "vaultmesh-ldb")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(ldbRoot) })
	ldbStore, err := OpenLevelDB(filepath.Join(ldbRoot, "db"), 0)
	require.NoError(t, err)
	t.Cleanup(func() { ldbStore.Close() })

	return map[string]Backend{
		"memory":  NewMemory(0),
		"dir":     dirStore,
		"leveldb": ldbStore,
	}
}

func TestBackendStoreGetDelete(t *testing.T) {
	for name, b := range backends(t) {
		b := b
		t.Run(name, func(t *testing.T) {
			n := chunk.Name([]byte("abcdefghijklmnopqrstuvwxyz012345"))

			require.False(t, b.Has(n))
			require.True(t, b.Store(n, []byte("hello")))
			require.False(t, b.Store(n, []byte("again")), "second store of same name must be rejected")

			data, ok := b.Get(n)
			require.True(t, ok)
			require.Equal(t, []byte("hello"), data)

			require.True(t, b.Modify(n, []byte("world!")))
			data, ok = b.Get(n)
			require.True(t, ok)
			require.Equal(t, []byte("world!"), data)

			require.True(t, b.Delete(n))
			require.False(t, b.Has(n))
			require.True(t, b.Delete(n), "delete of an absent chunk is idempotent")
		})
	}
}

func TestBackendCapacity(t *testing.T) {
	b := NewMemory(10)
	n1 := chunk.Name([]byte("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa0"))
	n2 := chunk.Name([]byte("bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb0"))

	require.True(t, b.Store(n1, make([]byte, 6)))
	require.False(t, b.Store(n2, make([]byte, 6)), "second store must be rejected once capacity would be exceeded")
	require.Equal(t, uint64(6), b.Size())
}
