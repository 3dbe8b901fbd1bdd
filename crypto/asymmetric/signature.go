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

package asymmetric

import (
	ec "github.com/btcsuite/btcd/btcec"

	"github.com/vaultmesh/vaultmesh/crypto/hash"
)

// Signature is an ECDSA signature over a digest.
type Signature ec.Signature

func (s *Signature) toec() *ec.Signature { return (*ec.Signature)(s) }

// Serialize encodes the signature in DER form.
func (s *Signature) Serialize() []byte {
	return s.toec().Serialize()
}

// ParseDERSignature decodes a DER-encoded signature.
func ParseDERSignature(b []byte) (*Signature, error) {
	sig, err := ec.ParseDERSignature(b, ec.S256())
	if err != nil {
		return nil, err
	}
	return (*Signature)(sig), nil
}

// Sign produces a deterministic signature over data's digest.
func Sign(data []byte, priv *PrivateKey) (*Signature, error) {
	digest := hash.HashB(data)
	sig, err := priv.toec().Sign(digest)
	if err != nil {
		return nil, err
	}
	return (*Signature)(sig), nil
}

// Verify reports whether sig is a valid signature over data's digest under
// pub. A nil public key, signature, or malformed signature verifies false
// rather than panicking, since the chunk action authority calls this on
// attacker-controlled input.
func Verify(data []byte, sig *Signature, pub *PublicKey) bool {
	if sig == nil || pub == nil {
		return false
	}
	digest := hash.HashB(data)
	return sig.toec().Verify(digest, pub.toec())
}

// ValidateKey reports whether pub is a well-formed, non-nil public key.
func ValidateKey(pub *PublicKey) bool {
	if pub == nil {
		return false
	}
	return pub.toec().X != nil && pub.toec().Y != nil && pub.toec().Curve != nil
}
