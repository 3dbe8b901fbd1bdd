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
	"github.com/vaultmesh/vaultmesh/crypto/hash"
)

// AppendableByAllAuthority implements the fully specified
// AppendableByAll policy: the owner controls identity_key and
// allow_others_to_append and can drain appendices on read; other
// signers may append, never replace, and only when the owner's
// allow_others_to_append currently permits it.
type AppendableByAllAuthority struct{}

// ownerAuthorized reports whether pub verifies against the stored
// chunk's allow_others_to_append control field — the definition of
// "owner" this policy uses throughout.
func ownerAuthorized(c *AppendableByAll, pub *asymmetric.PublicKey) bool {
	return c.AllowOthersToAppend.Verify(pub)
}

// Get implements Authority. The owner path drains appendices: the
// returned bytes have Appendices cleared, and the store is updated to
// match so a second owner Get is empty too. Non-owners receive only
// the serialized identity_key.
func (AppendableByAllAuthority) Get(b store.Backend, name chunk.Name, pub *asymmetric.PublicKey) ([]byte, Status) {
	raw, ok := b.Get(name)
	if !ok {
		return nil, FailedToFindChunk
	}
	c, err := DecodeAppendableByAll(raw)
	if err != nil {
		return nil, GeneralError
	}
	if !asymmetric.ValidateKey(pub) {
		return nil, InvalidPublicKey
	}

	if ownerAuthorized(c, pub) {
		if len(c.Appendices) > 0 {
			c.Appendices = nil
			drained, err := c.Encode()
			if err != nil {
				return nil, GeneralError
			}
			b.Modify(name, drained)
			raw = drained
		}
		return raw, Success
	}

	out, err := c.IdentityKey.EncodeStandalone()
	if err != nil {
		return nil, GeneralError
	}
	return out, NotOwner
}

// Store implements Authority: a brand-new AppendableByAll chunk must
// parse, carry a valid public key, and its allow_others_to_append must
// verify under that key.
func (AppendableByAllAuthority) Store(b store.Backend, name chunk.Name, content []byte, pub *asymmetric.PublicKey) Status {
	if b.Has(name) {
		return KeyNotUnique
	}
	c, err := DecodeAppendableByAll(content)
	if err != nil {
		return InvalidSignedData
	}
	if !asymmetric.ValidateKey(pub) {
		return InvalidPublicKey
	}
	if !c.AllowOthersToAppend.Verify(pub) {
		return SignatureVerificationFailure
	}
	if !b.Store(name, content) {
		return GeneralError
	}
	return Success
}

// Delete implements Authority: absent is a no-op success; otherwise
// the caller must be the owner and must additionally present a
// SignedData ownership proof that verifies under pub.
func (AppendableByAllAuthority) Delete(b store.Backend, name chunk.Name, ownershipProof []byte, pub *asymmetric.PublicKey) Status {
	raw, ok := b.Get(name)
	if !ok {
		return Success
	}
	c, err := DecodeAppendableByAll(raw)
	if err != nil {
		return GeneralError
	}
	if !asymmetric.ValidateKey(pub) {
		return InvalidPublicKey
	}
	if !ownerAuthorized(c, pub) {
		return NotOwner
	}
	proof, err := DecodeSignedDataStandalone(ownershipProof)
	if err != nil || !proof.Verify(pub) {
		return NotOwner
	}
	b.Delete(name)
	return Success
}

// Modify implements Authority, branching on whether the caller is the
// owner of the stored chunk.
func (AppendableByAllAuthority) Modify(b store.Backend, name chunk.Name, content []byte, pub *asymmetric.PublicKey) ([]byte, Status) {
	raw, ok := b.Get(name)
	if !ok {
		return nil, FailedToFindChunk
	}
	c, err := DecodeAppendableByAll(raw)
	if err != nil {
		return nil, GeneralError
	}
	if !asymmetric.ValidateKey(pub) {
		return nil, InvalidPublicKey
	}

	if ownerAuthorized(c, pub) {
		return modifyOwnerPath(b, name, c, content, pub)
	}
	return modifyNonOwnerPath(b, name, c, content, pub)
}

func modifyOwnerPath(b store.Backend, name chunk.Name, c *AppendableByAll, content []byte, pub *asymmetric.PublicKey) ([]byte, Status) {
	m, err := DecodeModifyAppendableByAll(content)
	if err != nil {
		return nil, InvalidModify
	}

	set := 0
	if m.AllowOthersToAppend != nil {
		set++
	}
	if m.IdentityKey != nil {
		set++
	}
	if set != 1 {
		return nil, InvalidModify
	}

	var field *SignedData
	var current SignedData
	if m.AllowOthersToAppend != nil {
		field = m.AllowOthersToAppend
		current = c.AllowOthersToAppend
	} else {
		field = m.IdentityKey
		current = c.IdentityKey
	}

	if !field.Verify(pub) {
		return nil, SignatureVerificationFailure
	}

	if signedDataEqual(*field, current) {
		c.Appendices = nil
	}
	if m.AllowOthersToAppend != nil {
		c.AllowOthersToAppend = *field
	} else {
		c.IdentityKey = *field
	}

	out, err := c.Encode()
	if err != nil {
		return nil, GeneralError
	}
	if !b.Modify(name, out) {
		return nil, GeneralError
	}
	return out, Success
}

func modifyNonOwnerPath(b store.Backend, name chunk.Name, c *AppendableByAll, content []byte, pub *asymmetric.PublicKey) ([]byte, Status) {
	if !c.AppendsAllowed() {
		return nil, AppendDisallowed
	}
	appendix, err := DecodeSignedDataStandalone(content)
	if err != nil {
		return nil, InvalidSignedData
	}
	if !appendix.Verify(pub) {
		return nil, SignatureVerificationFailure
	}

	c.Appendices = append(c.Appendices, *appendix)
	out, err := c.Encode()
	if err != nil {
		return nil, GeneralError
	}
	if !b.Modify(name, out) {
		return nil, GeneralError
	}
	return out, Success
}

// Has implements Authority.
func (AppendableByAllAuthority) Has(b store.Backend, name chunk.Name) Status {
	if b.Has(name) {
		return Success
	}
	return FailedToFindChunk
}

// Version implements Authority: the Tiger-hash of the stored bytes as
// they stand at call time; an earlier owner Get has already written
// its drained bytes back, so its hash is the post-drain one (open
// question (b) in the design notes — see DESIGN.md).
func (AppendableByAllAuthority) Version(b store.Backend, name chunk.Name) ([]byte, Status) {
	raw, ok := b.Get(name)
	if !ok {
		return nil, FailedToFindChunk
	}
	v := hash.THashH(raw)
	return v.Bytes(), Success
}

// Cacheable implements Authority: AppendableByAll is mutable, so its
// version must always be rechecked against the store.
func (AppendableByAllAuthority) Cacheable() bool { return false }
