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

// Package asymmetric wraps btcsuite's secp256k1 implementation with the
// identity-key and signature types the chunk action authority verifies
// SignedData records against.
package asymmetric

import (
	"github.com/btcsuite/btcd/btcec"
	log "github.com/sirupsen/logrus"
)

// PrivateKey is a secp256k1 private key.
type PrivateKey btcec.PrivateKey

// PublicKey is a secp256k1 public key.
type PublicKey btcec.PublicKey

func (p *PrivateKey) toec() *btcec.PrivateKey { return (*btcec.PrivateKey)(p) }
func (p *PublicKey) toec() *btcec.PublicKey   { return (*btcec.PublicKey)(p) }

// PubKey derives the public key matching a private key.
func (p *PrivateKey) PubKey() *PublicKey {
	return (*PublicKey)(p.toec().PubKey())
}

// Serialize encodes the public key in compressed SEC1 form.
func (p *PublicKey) Serialize() []byte {
	return p.toec().SerializeCompressed()
}

// ParsePublicKey decodes a compressed or uncompressed SEC1 public key.
func ParsePublicKey(b []byte) (*PublicKey, error) {
	pub, err := btcec.ParsePubKey(b, btcec.S256())
	if err != nil {
		return nil, err
	}
	return (*PublicKey)(pub), nil
}

// Serialize encodes the private key as a fixed-size big-endian scalar.
func (p *PrivateKey) Serialize() []byte {
	return p.toec().Serialize()
}

// ParsePrivateKey decodes a private key previously produced by Serialize.
func ParsePrivateKey(b []byte) (*PrivateKey, error) {
	priv, _ := btcec.PrivKeyFromBytes(btcec.S256(), b)
	return (*PrivateKey)(priv), nil
}

// GenSecp256k1KeyPair generates a fresh identity keypair.
func GenSecp256k1KeyPair() (privateKey *PrivateKey, publicKey *PublicKey, err error) {
	priv, err := btcec.NewPrivateKey(btcec.S256())
	if err != nil {
		log.WithError(err).Error("private key generation failed")
		return nil, nil, err
	}
	privateKey = (*PrivateKey)(priv)
	publicKey = privateKey.PubKey()
	return
}
