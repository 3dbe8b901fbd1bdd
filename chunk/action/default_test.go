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

package action

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vaultmesh/vaultmesh/chunk"
	"github.com/vaultmesh/vaultmesh/chunk/store"
	"github.com/vaultmesh/vaultmesh/crypto/hash"
)

func TestDefaultAuthorityStoreRequiresSelfVerifyingName(t *testing.T) {
	b := store.NewMemory(0)
	a := DefaultAuthority{}
	content := []byte("immutable payload")
	digest := hash.THashH(content)
	name := chunk.Name(append(append([]byte(nil), digest.Bytes()...), byte(chunk.TagDefault)))

	status := a.Store(b, name, content, nil)
	require.Equal(t, Success, status)

	data, status := a.Get(b, name, nil)
	require.Equal(t, Success, status)
	require.Equal(t, content, data)

	wrongName := chunk.Name(append(make([]byte, 32), byte(chunk.TagDefault)))
	status = a.Store(b, wrongName, content, nil)
	require.Equal(t, InvalidSignedData, status)
}

func TestDefaultAuthorityImmutable(t *testing.T) {
	b := store.NewMemory(0)
	a := DefaultAuthority{}
	content := []byte("frozen")
	digest := hash.THashH(content)
	name := chunk.Name(append(append([]byte(nil), digest.Bytes()...), byte(chunk.TagDefault)))
	require.Equal(t, Success, a.Store(b, name, content, nil))

	_, status := a.Modify(b, name, []byte("nope"), nil)
	require.Equal(t, InvalidModify, status)

	status = a.Delete(b, name, nil, nil)
	require.Equal(t, NotOwner, status)
	require.True(t, b.Has(name))
}
