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

// Package store implements policy-free mappings from a chunk name to
// its opaque bytes. A Backend never inspects or validates content —
// that is the chunk action authority's job (see chunk/action) — it
// only tracks presence, bytes, and aggregate size against an optional
// capacity.
package store

import "github.com/vaultmesh/vaultmesh/chunk"

// Backend is a policy-free mapping from chunk name to bytes.
// Implementations must be safe for concurrent use.
type Backend interface {
	// Get returns the stored bytes for name, or ok=false if absent.
	Get(name chunk.Name) (data []byte, ok bool)
	// Has reports whether name is present.
	Has(name chunk.Name) bool
	// Store writes data under name. Returns false if name already
	// exists — callers must use Modify to mutate an existing chunk.
	Store(name chunk.Name, data []byte) bool
	// Delete removes name. Returns true whether or not name was
	// present, matching the CAA's idempotent delete contract.
	Delete(name chunk.Name) bool
	// Modify overwrites the bytes stored under an existing name.
	// Returns false if name is absent.
	Modify(name chunk.Name, data []byte) bool
	// Size reports the total bytes currently stored.
	Size() uint64
	// Capacity reports the configured capacity, or 0 for unlimited.
	Capacity() uint64
}

// ErrCapacityExceeded-class signaling: Store/Modify on a capacity-
// bounded backend that would push Size() past Capacity() fails by
// returning false, the same way a name collision does. The backend
// does not distinguish the two failure reasons to its caller, matching
// the flat boolean Backend contract; chunk/action is ambivalent to
// that distinction, since its kGeneralError/kSuccess mapping collapses
// both to "the write didn't happen".
