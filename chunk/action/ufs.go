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

	"github.com/ugorji/go/codec"

	"github.com/vaultmesh/vaultmesh/chunk"
	"github.com/vaultmesh/vaultmesh/chunk/store"
	"github.com/vaultmesh/vaultmesh/crypto/asymmetric"
	"github.com/vaultmesh/vaultmesh/crypto/hash"
)

// Ufs is a user-file-system directory listing chunk: an owner-mutable
// opaque blob. Unlike ModifiableByOwner, the payload itself carries no
// signature — only the owner-key envelope is checked, since the
// listing content is opaque to the chunk action authority.
type Ufs struct {
	IdentityKey SignedData `codec:"IdentityKey"`
	Payload     []byte     `codec:"Payload"`
}

func decodeUfs(data []byte) (*Ufs, error) {
	var u Ufs
	dec := codec.NewDecoderBytes(data, mpHandle)
	if err := dec.Decode(&u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (u *Ufs) encode() ([]byte, error) {
	var buf bytes.Buffer
	enc := codec.NewEncoder(&buf, mpHandle)
	if err := enc.Encode(u); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UfsAuthority implements the directory-listing policy.
type UfsAuthority struct{}

// Get implements Authority: plain passthrough.
func (UfsAuthority) Get(b store.Backend, name chunk.Name, pub *asymmetric.PublicKey) ([]byte, Status) {
	data, ok := b.Get(name)
	if !ok {
		return nil, FailedToFindChunk
	}
	return data, Success
}

// Store implements Authority: only the owner envelope is verified,
// the Payload bytes are opaque.
func (UfsAuthority) Store(b store.Backend, name chunk.Name, content []byte, pub *asymmetric.PublicKey) Status {
	if b.Has(name) {
		return KeyNotUnique
	}
	u, err := decodeUfs(content)
	if err != nil {
		return InvalidSignedData
	}
	if !asymmetric.ValidateKey(pub) {
		return InvalidPublicKey
	}
	if !u.IdentityKey.Verify(pub) {
		return SignatureVerificationFailure
	}
	if !b.Store(name, content) {
		return GeneralError
	}
	return Success
}

// Delete implements Authority: owner envelope plus a fresh ownership
// proof, the same contract as ModifiableByOwner.
func (UfsAuthority) Delete(b store.Backend, name chunk.Name, ownershipProof []byte, pub *asymmetric.PublicKey) Status {
	raw, ok := b.Get(name)
	if !ok {
		return Success
	}
	u, err := decodeUfs(raw)
	if err != nil {
		return GeneralError
	}
	if !asymmetric.ValidateKey(pub) {
		return InvalidPublicKey
	}
	if !u.IdentityKey.Verify(pub) {
		return NotOwner
	}
	proof, err := DecodeSignedDataStandalone(ownershipProof)
	if err != nil || !proof.Verify(pub) {
		return NotOwner
	}
	b.Delete(name)
	return Success
}

// Modify implements Authority: the owner may replace Payload outright
// with new opaque bytes; non-owners are always disallowed, since this
// type has no append path.
func (UfsAuthority) Modify(b store.Backend, name chunk.Name, content []byte, pub *asymmetric.PublicKey) ([]byte, Status) {
	raw, ok := b.Get(name)
	if !ok {
		return nil, FailedToFindChunk
	}
	u, err := decodeUfs(raw)
	if err != nil {
		return nil, GeneralError
	}
	if !asymmetric.ValidateKey(pub) {
		return nil, InvalidPublicKey
	}
	if !u.IdentityKey.Verify(pub) {
		return nil, AppendDisallowed
	}

	u.Payload = content
	out, err := u.encode()
	if err != nil {
		return nil, GeneralError
	}
	if !b.Modify(name, out) {
		return nil, GeneralError
	}
	return out, Success
}

// Has implements Authority.
func (UfsAuthority) Has(b store.Backend, name chunk.Name) Status {
	if b.Has(name) {
		return Success
	}
	return FailedToFindChunk
}

// Version implements Authority: a Tiger-hash of the stored bytes.
func (UfsAuthority) Version(b store.Backend, name chunk.Name) ([]byte, Status) {
	raw, ok := b.Get(name)
	if !ok {
		return nil, FailedToFindChunk
	}
	v := hash.THashH(raw)
	return v.Bytes(), Success
}

// Cacheable implements Authority: false, the listing can change.
func (UfsAuthority) Cacheable() bool { return false }
