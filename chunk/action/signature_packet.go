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

// SignaturePacket holds a single detached signature plus the identity
// key that produced it. Other chunk types reference a SignaturePacket
// chunk as an ownership or appendix proof instead of inlining a
// signature directly.
type SignaturePacket struct {
	IdentityKey SignedData `codec:"IdentityKey"`
	Signed      SignedData `codec:"Signed"`
}

func decodeSignaturePacket(data []byte) (*SignaturePacket, error) {
	var p SignaturePacket
	dec := codec.NewDecoderBytes(data, mpHandle)
	if err := dec.Decode(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (p *SignaturePacket) encode() ([]byte, error) {
	var buf bytes.Buffer
	enc := codec.NewEncoder(&buf, mpHandle)
	if err := enc.Encode(p); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// SignaturePacketAuthority implements the detached-signature storage
// policy.
type SignaturePacketAuthority struct{}

// Get implements Authority: plain passthrough.
func (SignaturePacketAuthority) Get(b store.Backend, name chunk.Name, pub *asymmetric.PublicKey) ([]byte, Status) {
	data, ok := b.Get(name)
	if !ok {
		return nil, FailedToFindChunk
	}
	return data, Success
}

// Store implements Authority: the packet's Signed field must verify
// against the supplied public key.
func (SignaturePacketAuthority) Store(b store.Backend, name chunk.Name, content []byte, pub *asymmetric.PublicKey) Status {
	if b.Has(name) {
		return KeyNotUnique
	}
	p, err := decodeSignaturePacket(content)
	if err != nil {
		return InvalidSignedData
	}
	if !asymmetric.ValidateKey(pub) {
		return InvalidPublicKey
	}
	if !p.Signed.Verify(pub) {
		return SignatureVerificationFailure
	}
	if !b.Store(name, content) {
		return GeneralError
	}
	return Success
}

// Delete implements Authority: the same ownership check
// AppendableByAll's owner path uses — the packet's own identity_key
// must verify under pub, plus a fresh ownership proof.
func (SignaturePacketAuthority) Delete(b store.Backend, name chunk.Name, ownershipProof []byte, pub *asymmetric.PublicKey) Status {
	raw, ok := b.Get(name)
	if !ok {
		return Success
	}
	p, err := decodeSignaturePacket(raw)
	if err != nil {
		return GeneralError
	}
	if !asymmetric.ValidateKey(pub) {
		return InvalidPublicKey
	}
	if !p.IdentityKey.Verify(pub) {
		return NotOwner
	}
	proof, err := DecodeSignedDataStandalone(ownershipProof)
	if err != nil || !proof.Verify(pub) {
		return NotOwner
	}
	b.Delete(name)
	return Success
}

// Modify implements Authority: a signature packet is never modified,
// only replaced by deleting and re-storing.
func (SignaturePacketAuthority) Modify(b store.Backend, name chunk.Name, content []byte, pub *asymmetric.PublicKey) ([]byte, Status) {
	return nil, InvalidModify
}

// Has implements Authority.
func (SignaturePacketAuthority) Has(b store.Backend, name chunk.Name) Status {
	if b.Has(name) {
		return Success
	}
	return FailedToFindChunk
}

// Version implements Authority: a Tiger-hash of the stored bytes.
func (SignaturePacketAuthority) Version(b store.Backend, name chunk.Name) ([]byte, Status) {
	raw, ok := b.Get(name)
	if !ok {
		return nil, FailedToFindChunk
	}
	v := hash.THashH(raw)
	return v.Bytes(), Success
}

// Cacheable implements Authority: false, a packet's identity binding
// could be replaced by a Delete+Store cycle under the same name space.
func (SignaturePacketAuthority) Cacheable() bool { return false }
