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

// ModifiableByOwner is the on-disk structure for a chunk whose owner
// alone can replace its payload: the same owner envelope shape as
// AppendableByAll minus the appendices sequence and the all-signers
// append path.
type ModifiableByOwner struct {
	IdentityKey SignedData `codec:"IdentityKey"`
	Payload     SignedData `codec:"Payload"`
}

func decodeModifiableByOwner(data []byte) (*ModifiableByOwner, error) {
	var m ModifiableByOwner
	dec := codec.NewDecoderBytes(data, mpHandle)
	if err := dec.Decode(&m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *ModifiableByOwner) encode() ([]byte, error) {
	var buf bytes.Buffer
	enc := codec.NewEncoder(&buf, mpHandle)
	if err := enc.Encode(m); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ModifiableByOwnerAuthority implements the owner-only-mutation
// policy: every mutation requires a signature check against the
// stored owner key, mirroring AppendableByAll's owner path with no
// non-owner append path at all.
type ModifiableByOwnerAuthority struct{}

// Get implements Authority: a plain passthrough once the caller
// presents a well-formed key; reads are not owner-gated, only
// mutations are.
func (ModifiableByOwnerAuthority) Get(b store.Backend, name chunk.Name, pub *asymmetric.PublicKey) ([]byte, Status) {
	raw, ok := b.Get(name)
	if !ok {
		return nil, FailedToFindChunk
	}
	if !asymmetric.ValidateKey(pub) {
		return nil, InvalidPublicKey
	}
	return raw, Success
}

// Store implements Authority: the initial owner signature over
// identity_key must verify under pub.
func (ModifiableByOwnerAuthority) Store(b store.Backend, name chunk.Name, content []byte, pub *asymmetric.PublicKey) Status {
	if b.Has(name) {
		return KeyNotUnique
	}
	m, err := decodeModifiableByOwner(content)
	if err != nil {
		return InvalidSignedData
	}
	if !asymmetric.ValidateKey(pub) {
		return InvalidPublicKey
	}
	if !m.IdentityKey.Verify(pub) {
		return SignatureVerificationFailure
	}
	if !b.Store(name, content) {
		return GeneralError
	}
	return Success
}

// Delete implements Authority: requires the owner's signature over a
// fresh ownership proof.
func (ModifiableByOwnerAuthority) Delete(b store.Backend, name chunk.Name, ownershipProof []byte, pub *asymmetric.PublicKey) Status {
	raw, ok := b.Get(name)
	if !ok {
		return Success
	}
	m, err := decodeModifiableByOwner(raw)
	if err != nil {
		return GeneralError
	}
	if !asymmetric.ValidateKey(pub) {
		return InvalidPublicKey
	}
	if !m.IdentityKey.Verify(pub) {
		return NotOwner
	}
	proof, err := DecodeSignedDataStandalone(ownershipProof)
	if err != nil || !proof.Verify(pub) {
		return NotOwner
	}
	b.Delete(name)
	return Success
}

// Modify implements Authority: only the owner may replace Payload;
// non-owner callers always get AppendDisallowed, since this type has
// no append path at all.
func (ModifiableByOwnerAuthority) Modify(b store.Backend, name chunk.Name, content []byte, pub *asymmetric.PublicKey) ([]byte, Status) {
	raw, ok := b.Get(name)
	if !ok {
		return nil, FailedToFindChunk
	}
	m, err := decodeModifiableByOwner(raw)
	if err != nil {
		return nil, GeneralError
	}
	if !asymmetric.ValidateKey(pub) {
		return nil, InvalidPublicKey
	}
	if !m.IdentityKey.Verify(pub) {
		return nil, AppendDisallowed
	}

	newPayload, err := DecodeSignedDataStandalone(content)
	if err != nil {
		return nil, InvalidModify
	}
	if !newPayload.Verify(pub) {
		return nil, SignatureVerificationFailure
	}
	m.Payload = *newPayload

	out, err := m.encode()
	if err != nil {
		return nil, GeneralError
	}
	if !b.Modify(name, out) {
		return nil, GeneralError
	}
	return out, Success
}

// Has implements Authority.
func (ModifiableByOwnerAuthority) Has(b store.Backend, name chunk.Name) Status {
	if b.Has(name) {
		return Success
	}
	return FailedToFindChunk
}

// Version implements Authority: a Tiger-hash of the stored bytes,
// since this type is mutable.
func (ModifiableByOwnerAuthority) Version(b store.Backend, name chunk.Name) ([]byte, Status) {
	raw, ok := b.Get(name)
	if !ok {
		return nil, FailedToFindChunk
	}
	v := hash.THashH(raw)
	return v.Bytes(), Success
}

// Cacheable implements Authority: false, the payload can change.
func (ModifiableByOwnerAuthority) Cacheable() bool { return false }
