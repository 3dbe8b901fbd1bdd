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

	"github.com/vaultmesh/vaultmesh/crypto/asymmetric"
	"github.com/vaultmesh/vaultmesh/crypto/hash"
)

var mpHandle = &codec.MsgpackHandle{
	BasicHandle: codec.BasicHandle{
		DecodeOptions: codec.DecodeOptions{RawToString: true},
	},
	WriteExt: true,
}

// SignedData is a byte payload paired with a detached signature over
// it, verifiable against a public key.
type SignedData struct {
	Data      []byte `codec:"Data"`
	Signature []byte `codec:"Signature"`
}

// EncodeStandalone serializes sd to msgpack bytes on its own, used for
// ownership proofs and non-owner append payloads that travel outside
// an AppendableByAll envelope.
func (sd *SignedData) EncodeStandalone() ([]byte, error) {
	var buf bytes.Buffer
	enc := codec.NewEncoder(&buf, mpHandle)
	if err := enc.Encode(sd); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeSignedDataStandalone parses msgpack bytes into a lone
// SignedData, the counterpart to EncodeStandalone.
func DecodeSignedDataStandalone(data []byte) (*SignedData, error) {
	var sd SignedData
	dec := codec.NewDecoderBytes(data, mpHandle)
	if err := dec.Decode(&sd); err != nil {
		return nil, err
	}
	return &sd, nil
}

// Verify reports whether sd's signature is valid over sd's data under
// pub.
func (sd *SignedData) Verify(pub *asymmetric.PublicKey) bool {
	if sd == nil {
		return false
	}
	sig, err := asymmetric.ParseDERSignature(sd.Signature)
	if err != nil {
		return false
	}
	return asymmetric.Verify(sd.Data, sig, pub)
}

// Sign builds a SignedData over data using priv.
func Sign(data []byte, priv *asymmetric.PrivateKey) (*SignedData, error) {
	sig, err := asymmetric.Sign(data, priv)
	if err != nil {
		return nil, err
	}
	return &SignedData{Data: data, Signature: sig.Serialize()}, nil
}

// AppendableByAllTag is the appendability tag value stored as the
// first byte of allow_others_to_append.Data. Any other value forbids
// non-owner appends.
const AppendableByAllTag byte = 1

// AppendableByAll is the on-disk structure for a chunk whose owner can
// append, truncate, or retune access, while other signers may append
// only when the owner permits it.
type AppendableByAll struct {
	IdentityKey         SignedData   `codec:"IdentityKey"`
	AllowOthersToAppend SignedData   `codec:"AllowOthersToAppend"`
	Appendices          []SignedData `codec:"Appendices"`
}

// AppendsAllowed reports whether the chunk's current control field
// permits non-owner appends.
func (a *AppendableByAll) AppendsAllowed() bool {
	return len(a.AllowOthersToAppend.Data) > 0 && a.AllowOthersToAppend.Data[0] == AppendableByAllTag
}

// Encode serializes a to msgpack bytes.
func (a *AppendableByAll) Encode() ([]byte, error) {
	var buf bytes.Buffer
	enc := codec.NewEncoder(&buf, mpHandle)
	if err := enc.Encode(a); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeAppendableByAll parses msgpack bytes into an AppendableByAll.
func DecodeAppendableByAll(data []byte) (*AppendableByAll, error) {
	var a AppendableByAll
	dec := codec.NewDecoderBytes(data, mpHandle)
	if err := dec.Decode(&a); err != nil {
		return nil, err
	}
	return &a, nil
}

// ModifyAppendableByAll is the owner-path Modify payload: exactly one
// of the two fields must be set.
type ModifyAppendableByAll struct {
	AllowOthersToAppend *SignedData `codec:"AllowOthersToAppend"`
	IdentityKey         *SignedData `codec:"IdentityKey"`
}

// DecodeModifyAppendableByAll parses msgpack bytes into a
// ModifyAppendableByAll.
func DecodeModifyAppendableByAll(data []byte) (*ModifyAppendableByAll, error) {
	var m ModifyAppendableByAll
	dec := codec.NewDecoderBytes(data, mpHandle)
	if err := dec.Decode(&m); err != nil {
		return nil, err
	}
	return &m, nil
}

// Encode serializes m to msgpack bytes.
func (m *ModifyAppendableByAll) Encode() ([]byte, error) {
	var buf bytes.Buffer
	enc := codec.NewEncoder(&buf, mpHandle)
	if err := enc.Encode(m); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func signedDataEqual(a, b SignedData) bool {
	return bytes.Equal(a.Data, b.Data) && bytes.Equal(a.Signature, b.Signature)
}

// Keys is a vault's identity material: an opaque identity blob
// (hashed to form the vault's short id), its asymmetric keypair, and a
// validation token issued by whoever minted the identity.
type Keys struct {
	Identity        []byte `codec:"Identity"`
	PublicKey       []byte `codec:"PublicKey"`
	PrivateKey      []byte `codec:"PrivateKey"`
	ValidationToken []byte `codec:"ValidationToken"`
}

// ShortID hashes Identity the way the supervisor derives a vault's
// short id from its identity bytes.
func (k *Keys) ShortID() string {
	return hash.THashH(k.Identity).String()
}

// Encode serializes k to msgpack bytes.
func (k *Keys) Encode() ([]byte, error) {
	var buf bytes.Buffer
	enc := codec.NewEncoder(&buf, mpHandle)
	if err := enc.Encode(k); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeKeys parses msgpack bytes into a Keys.
func DecodeKeys(data []byte) (*Keys, error) {
	var k Keys
	dec := codec.NewDecoderBytes(data, mpHandle)
	if err := dec.Decode(&k); err != nil {
		return nil, err
	}
	return &k, nil
}
