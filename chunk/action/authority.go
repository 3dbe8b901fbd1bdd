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

// Authority is the per-type-tag policy contract. Every method accepts
// a store.Backend to read and write bytes through and a caller public
// key to authenticate against; ownershipProof is only meaningful to
// Delete.
type Authority interface {
	// Get returns the bytes a caller holding pub is entitled to see.
	Get(b store.Backend, name chunk.Name, pub *asymmetric.PublicKey) ([]byte, Status)
	// Store writes a brand new chunk; fails if name already exists.
	Store(b store.Backend, name chunk.Name, content []byte, pub *asymmetric.PublicKey) Status
	// Delete removes an existing chunk. Types that permit deletion
	// report Success for an absent name; Default and Unknown reject
	// every Delete.
	Delete(b store.Backend, name chunk.Name, ownershipProof []byte, pub *asymmetric.PublicKey) Status
	// Modify mutates an existing chunk per the type's rules.
	Modify(b store.Backend, name chunk.Name, content []byte, pub *asymmetric.PublicKey) ([]byte, Status)
	// Has reports whether name is present, bypassing content parsing.
	Has(b store.Backend, name chunk.Name) Status
	// Version returns a comparison token for the stored chunk: the
	// name itself for immutable types, a Tiger-hash of the stored
	// bytes for mutable ones.
	Version(b store.Backend, name chunk.Name) ([]byte, Status)
	// Cacheable reports whether Version's result may be cached by a
	// local chunk manager across calls without rechecking the store.
	Cacheable() bool
}
