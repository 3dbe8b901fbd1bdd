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

// Package registry dispatches a chunk operation to the Chunk Action
// Authority that owns the name's type tag. It carries no policy logic
// of its own.
package registry

import (
	"github.com/vaultmesh/vaultmesh/chunk"
	"github.com/vaultmesh/vaultmesh/chunk/action"
	"github.com/vaultmesh/vaultmesh/chunk/store"
	"github.com/vaultmesh/vaultmesh/crypto/asymmetric"
)

// Registry is a dispatch table keyed by chunk.Tag. It exposes the same
// five operations as action.Authority, purely as a routing layer.
type Registry struct {
	policies map[chunk.Tag]action.Authority
}

// New builds a Registry with the standard set of policies wired to
// their tags, falling back to action.UnknownAuthority for any tag not
// in that set.
func New() *Registry {
	return &Registry{
		policies: map[chunk.Tag]action.Authority{
			chunk.TagDefault:           action.DefaultAuthority{},
			chunk.TagAppendableByAll:   action.AppendableByAllAuthority{},
			chunk.TagModifiableByOwner: action.ModifiableByOwnerAuthority{},
			chunk.TagSignaturePacket:   action.SignaturePacketAuthority{},
			chunk.TagUfs:               action.UfsAuthority{},
		},
	}
}

// For returns the Authority governing name's type tag, defaulting to
// action.UnknownAuthority{} for any unrecognized tag.
func (r *Registry) For(name chunk.Name) action.Authority {
	if a, ok := r.policies[name.Tag()]; ok {
		return a
	}
	return action.UnknownAuthority{}
}

// Get dispatches to name's Authority.
func (r *Registry) Get(b store.Backend, name chunk.Name, pub *asymmetric.PublicKey) ([]byte, action.Status) {
	return r.For(name).Get(b, name, pub)
}

// Store dispatches to name's Authority.
func (r *Registry) Store(b store.Backend, name chunk.Name, content []byte, pub *asymmetric.PublicKey) action.Status {
	return r.For(name).Store(b, name, content, pub)
}

// Delete dispatches to name's Authority.
func (r *Registry) Delete(b store.Backend, name chunk.Name, ownershipProof []byte, pub *asymmetric.PublicKey) action.Status {
	return r.For(name).Delete(b, name, ownershipProof, pub)
}

// Modify dispatches to name's Authority.
func (r *Registry) Modify(b store.Backend, name chunk.Name, content []byte, pub *asymmetric.PublicKey) ([]byte, action.Status) {
	return r.For(name).Modify(b, name, content, pub)
}

// Has dispatches to name's Authority.
func (r *Registry) Has(b store.Backend, name chunk.Name) action.Status {
	return r.For(name).Has(b, name)
}

// Version dispatches to name's Authority.
func (r *Registry) Version(b store.Backend, name chunk.Name) ([]byte, action.Status) {
	return r.For(name).Version(b, name)
}

// Cacheable dispatches to name's Authority.
func (r *Registry) Cacheable(name chunk.Name) bool {
	return r.For(name).Cacheable()
}
