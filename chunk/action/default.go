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
	"bytes"

	"github.com/vaultmesh/vaultmesh/chunk"
	"github.com/vaultmesh/vaultmesh/chunk/store"
	"github.com/vaultmesh/vaultmesh/crypto/asymmetric"
	"github.com/vaultmesh/vaultmesh/crypto/hash"
)

// DefaultAuthority implements the immutable, self-verifying chunk
// type: a chunk whose name prefix is the Tiger-hash of its own bytes.
// Once stored, it can never change or be removed.
type DefaultAuthority struct{}

// Get implements Authority: a plain passthrough, no key required.
func (DefaultAuthority) Get(b store.Backend, name chunk.Name, pub *asymmetric.PublicKey) ([]byte, Status) {
	data, ok := b.Get(name)
	if !ok {
		return nil, FailedToFindChunk
	}
	return data, Success
}

// Store implements Authority: content must hash (via THashH) to the
// name's prefix.
func (DefaultAuthority) Store(b store.Backend, name chunk.Name, content []byte, pub *asymmetric.PublicKey) Status {
	if b.Has(name) {
		return KeyNotUnique
	}
	digest := hash.THashH(content)
	if !bytes.Equal(digest.Bytes(), name.Prefix()) {
		return InvalidSignedData
	}
	if !b.Store(name, content) {
		return GeneralError
	}
	return Success
}

// Delete implements Authority: deletion of an immutable chunk is
// always forbidden, surfaced as the authentication-failure status
// since §7's taxonomy has no dedicated "forbidden" code.
func (DefaultAuthority) Delete(b store.Backend, name chunk.Name, ownershipProof []byte, pub *asymmetric.PublicKey) Status {
	return NotOwner
}

// Modify implements Authority: immutable chunks can never be
// modified.
func (DefaultAuthority) Modify(b store.Backend, name chunk.Name, content []byte, pub *asymmetric.PublicKey) ([]byte, Status) {
	return nil, InvalidModify
}

// Has implements Authority.
func (DefaultAuthority) Has(b store.Backend, name chunk.Name) Status {
	if b.Has(name) {
		return Success
	}
	return FailedToFindChunk
}

// Version implements Authority: the name itself is a stable version
// token since the content can never change.
func (DefaultAuthority) Version(b store.Backend, name chunk.Name) ([]byte, Status) {
	if !b.Has(name) {
		return nil, FailedToFindChunk
	}
	return []byte(name), Success
}

// Cacheable implements Authority: true, since the chunk is immutable.
func (DefaultAuthority) Cacheable() bool { return true }
