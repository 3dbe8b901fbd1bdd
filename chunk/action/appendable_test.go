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
	"github.com/vaultmesh/vaultmesh/crypto/asymmetric"
)

func mustKeyPair(t *testing.T) (*asymmetric.PrivateKey, *asymmetric.PublicKey) {
	priv, pub, err := asymmetric.GenSecp256k1KeyPair()
	require.NoError(t, err)
	return priv, pub
}

func mustSign(t *testing.T, data []byte, priv *asymmetric.PrivateKey) SignedData {
	sd, err := Sign(data, priv)
	require.NoError(t, err)
	return *sd
}

func newStoredAppendableByAll(t *testing.T, b store.Backend, name chunk.Name, ownerPriv *asymmetric.PrivateKey, ownerPub *asymmetric.PublicKey, allowed bool) *AppendableByAll {
	tag := byte(2)
	if allowed {
		tag = AppendableByAllTag
	}
	c := &AppendableByAll{
		IdentityKey:         mustSign(t, ownerPub.Serialize(), ownerPriv),
		AllowOthersToAppend: mustSign(t, []byte{tag}, ownerPriv),
	}
	raw, err := c.Encode()
	require.NoError(t, err)
	require.Equal(t, Success, AppendableByAllAuthority{}.Store(b, name, raw, ownerPub))
	return c
}

func TestAppendableByAllOwnerGetDrainsAppendices(t *testing.T) {
	b := store.NewMemory(0)
	a := AppendableByAllAuthority{}
	ownerPriv, ownerPub := mustKeyPair(t)
	name := chunk.Name(append(make([]byte, 32), byte(chunk.TagAppendableByAll)))

	newStoredAppendableByAll(t, b, name, ownerPriv, ownerPub, true)

	otherPriv, otherPub := mustKeyPair(t)
	appendix := mustSign(t, []byte("third party note"), otherPriv)
	appendixRaw, err := appendix.EncodeStandalone()
	require.NoError(t, err)

	out, status := a.Modify(b, name, appendixRaw, otherPub)
	require.Equal(t, Success, status)
	c, err := DecodeAppendableByAll(out)
	require.NoError(t, err)
	require.Len(t, c.Appendices, 1)

	out, status = a.Get(b, name, ownerPub)
	require.Equal(t, Success, status)
	c, err = DecodeAppendableByAll(out)
	require.NoError(t, err)
	require.Empty(t, c.Appendices, "owner Get must drain appendices")

	out, status = a.Get(b, name, ownerPub)
	require.Equal(t, Success, status)
	c, err = DecodeAppendableByAll(out)
	require.NoError(t, err)
	require.Empty(t, c.Appendices, "a follow-up owner Get must still see an empty queue")
}

func TestAppendableByAllAppendDisallowed(t *testing.T) {
	b := store.NewMemory(0)
	a := AppendableByAllAuthority{}
	ownerPriv, ownerPub := mustKeyPair(t)
	name := chunk.Name(append(make([]byte, 32), byte(chunk.TagAppendableByAll)))
	newStoredAppendableByAll(t, b, name, ownerPriv, ownerPub, false)

	before, _ := b.Get(name)

	otherPriv, otherPub := mustKeyPair(t)
	appendix := mustSign(t, []byte("uninvited"), otherPriv)
	appendixRaw, err := appendix.EncodeStandalone()
	require.NoError(t, err)

	_, status := a.Modify(b, name, appendixRaw, otherPub)
	require.Equal(t, AppendDisallowed, status)

	after, _ := b.Get(name)
	require.Equal(t, before, after, "stored bytes must be unchanged")
}

func TestAppendableByAllDeleteRequiresOwnershipProof(t *testing.T) {
	b := store.NewMemory(0)
	a := AppendableByAllAuthority{}
	ownerPriv, ownerPub := mustKeyPair(t)
	name := chunk.Name(append(make([]byte, 32), byte(chunk.TagAppendableByAll)))
	newStoredAppendableByAll(t, b, name, ownerPriv, ownerPub, true)

	status := a.Delete(b, name, nil, ownerPub)
	require.Equal(t, NotOwner, status)
	require.True(t, b.Has(name), "chunk must remain after a failed delete")

	proof := mustSign(t, []byte("i am the owner"), ownerPriv)
	proofRaw, err := proof.EncodeStandalone()
	require.NoError(t, err)

	status = a.Delete(b, name, proofRaw, ownerPub)
	require.Equal(t, Success, status)
	require.False(t, b.Has(name))
}

func TestAppendableByAllDeleteIdempotent(t *testing.T) {
	b := store.NewMemory(0)
	a := AppendableByAllAuthority{}
	name := chunk.Name(append(make([]byte, 32), byte(chunk.TagAppendableByAll)))
	_, pub := mustKeyPair(t)

	require.Equal(t, Success, a.Delete(b, name, nil, pub))
	require.Equal(t, Success, a.Delete(b, name, nil, pub))
}

func TestAppendableByAllOwnerModifyClearsOrPreservesAppendices(t *testing.T) {
	b := store.NewMemory(0)
	a := AppendableByAllAuthority{}
	ownerPriv, ownerPub := mustKeyPair(t)
	name := chunk.Name(append(make([]byte, 32), byte(chunk.TagAppendableByAll)))
	newStoredAppendableByAll(t, b, name, ownerPriv, ownerPub, true)

	otherPriv, otherPub := mustKeyPair(t)
	appendix := mustSign(t, []byte("note"), otherPriv)
	appendixRaw, err := appendix.EncodeStandalone()
	require.NoError(t, err)
	_, status := a.Modify(b, name, appendixRaw, otherPub)
	require.Equal(t, Success, status)

	raw, _ := b.Get(name)
	c, err := DecodeAppendableByAll(raw)
	require.NoError(t, err)
	currentAllow := c.AllowOthersToAppend

	sameValue := mustSign(t, currentAllow.Data, ownerPriv)
	m := &ModifyAppendableByAll{AllowOthersToAppend: &sameValue}
	mRaw, err := m.Encode()
	require.NoError(t, err)

	out, status := a.Modify(b, name, mRaw, ownerPub)
	require.Equal(t, Success, status)
	c, err = DecodeAppendableByAll(out)
	require.NoError(t, err)
	require.Empty(t, c.Appendices, "replacing a control field with an identical value clears appendices")

	// Re-seed an appendix, then replace with a distinct value: appendices
	// must be preserved this time.
	_, status = a.Modify(b, name, appendixRaw, otherPub)
	require.Equal(t, Success, status)

	distinctValue := mustSign(t, []byte{AppendableByAllTag, 0x01}, ownerPriv)
	m2 := &ModifyAppendableByAll{AllowOthersToAppend: &distinctValue}
	m2Raw, err := m2.Encode()
	require.NoError(t, err)

	out, status = a.Modify(b, name, m2Raw, ownerPub)
	require.Equal(t, Success, status)
	c, err = DecodeAppendableByAll(out)
	require.NoError(t, err)
	require.Len(t, c.Appendices, 1, "replacing with a distinct value preserves appendices")
}

func TestAppendableByAllStoreRejectsUnverifiedAllowField(t *testing.T) {
	b := store.NewMemory(0)
	a := AppendableByAllAuthority{}
	ownerPriv, ownerPub := mustKeyPair(t)
	_, otherPub := mustKeyPair(t)
	name := chunk.Name(append(make([]byte, 32), byte(chunk.TagAppendableByAll)))

	c := &AppendableByAll{
		IdentityKey:         mustSign(t, ownerPub.Serialize(), ownerPriv),
		AllowOthersToAppend: mustSign(t, []byte{AppendableByAllTag}, ownerPriv),
	}
	raw, err := c.Encode()
	require.NoError(t, err)

	status := a.Store(b, name, raw, otherPub)
	require.Equal(t, SignatureVerificationFailure, status)
}

func TestNSuccessiveAppendsGrowQueueInOrder(t *testing.T) {
	b := store.NewMemory(0)
	a := AppendableByAllAuthority{}
	ownerPriv, ownerPub := mustKeyPair(t)
	name := chunk.Name(append(make([]byte, 32), byte(chunk.TagAppendableByAll)))
	newStoredAppendableByAll(t, b, name, ownerPriv, ownerPub, true)

	const n = 5
	for i := 0; i < n; i++ {
		priv, pub := mustKeyPair(t)
		appendix := mustSign(t, []byte{byte(i)}, priv)
		raw, err := appendix.EncodeStandalone()
		require.NoError(t, err)
		_, status := a.Modify(b, name, raw, pub)
		require.Equal(t, Success, status)
	}

	raw, _ := b.Get(name)
	c, err := DecodeAppendableByAll(raw)
	require.NoError(t, err)
	require.Len(t, c.Appendices, n)
	for i := 0; i < n; i++ {
		require.Equal(t, byte(i), c.Appendices[i].Data[0], "appendices must be in insertion order")
	}
}
