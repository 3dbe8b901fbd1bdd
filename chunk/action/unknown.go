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
	"github.com/vaultmesh/vaultmesh/chunk"
	"github.com/vaultmesh/vaultmesh/chunk/store"
	"github.com/vaultmesh/vaultmesh/crypto/asymmetric"
)

// UnknownAuthority is the reject-everything policy any unrecognized
// type tag routes to. Has is still answered truthfully so the registry
// can report "is there garbage under this name" as a diagnostic,
// without granting any policy-level capability to it.
type UnknownAuthority struct{}

// Get implements Authority.
func (UnknownAuthority) Get(b store.Backend, name chunk.Name, pub *asymmetric.PublicKey) ([]byte, Status) {
	return nil, GeneralError
}

// Store implements Authority.
func (UnknownAuthority) Store(b store.Backend, name chunk.Name, content []byte, pub *asymmetric.PublicKey) Status {
	return GeneralError
}

// Delete implements Authority.
func (UnknownAuthority) Delete(b store.Backend, name chunk.Name, ownershipProof []byte, pub *asymmetric.PublicKey) Status {
	return GeneralError
}

// Modify implements Authority.
func (UnknownAuthority) Modify(b store.Backend, name chunk.Name, content []byte, pub *asymmetric.PublicKey) ([]byte, Status) {
	return nil, GeneralError
}

// Has implements Authority: reports physical presence only,
// diagnostic, not a capability grant.
func (UnknownAuthority) Has(b store.Backend, name chunk.Name) Status {
	if b.Has(name) {
		return Success
	}
	return FailedToFindChunk
}

// Version implements Authority.
func (UnknownAuthority) Version(b store.Backend, name chunk.Name) ([]byte, Status) {
	return nil, GeneralError
}

// Cacheable implements Authority.
func (UnknownAuthority) Cacheable() bool { return false }
