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

// Package keystore persists a single vault's private key to disk, encrypted
// under a master key the caller supplies (usually derived from the vault's
// own identity bytes, since this substrate has no interactive operator).
//
// It generalizes teacher's crypto/kms "one global keypair file" shape to
// "one keypair file per vault, named by its short id". The supervisor does
// not call this package; it keeps vault keys in its sqlite store.
package keystore

import (
	"bytes"
	"io/ioutil"
	"os"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/vaultmesh/vaultmesh/crypto/asymmetric"
	"github.com/vaultmesh/vaultmesh/crypto/hash"
	"github.com/vaultmesh/vaultmesh/crypto/symmetric"
)

// ErrNotKeyFile indicates the key file is empty or truncated.
var ErrNotKeyFile = errors.New("private key file empty or truncated")

// ErrHashNotMatch indicates the decrypted key file's integrity hash didn't
// match its payload — wrong master key or corrupted file.
var ErrHashNotMatch = errors.New("private key file hash mismatch")

const privKeyLen = 32

// Load reads and decrypts the private key stored at path.
func Load(path string, masterKey []byte) (*asymmetric.PrivateKey, error) {
	fileContent, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read keystore file %q", path)
	}
	if len(fileContent) == 0 {
		return nil, ErrNotKeyFile
	}

	dec, err := symmetric.DecryptWithPassword(fileContent, masterKey, masterKey)
	if err != nil {
		log.WithError(err).Error("decrypt keystore file failed")
		return nil, err
	}

	if len(dec) != hash.Size+privKeyLen {
		return nil, ErrNotKeyFile
	}

	computedHash := hash.DoubleHashB(dec[hash.Size:])
	if !bytes.Equal(computedHash, dec[:hash.Size]) {
		return nil, ErrHashNotMatch
	}

	return asymmetric.ParsePrivateKey(dec[hash.Size:])
}

// Save encrypts and writes priv to path with mode 0600, integrity-checked
// by a leading DoubleHashB of the raw key bytes.
func Save(path string, priv *asymmetric.PrivateKey, masterKey []byte) error {
	raw := priv.Serialize()
	payload := append(hash.DoubleHashB(raw), raw...)

	enc, err := symmetric.EncryptWithPassword(payload, masterKey, masterKey)
	if err != nil {
		return errors.Wrap(err, "encrypt keystore payload")
	}

	if err := ioutil.WriteFile(path, enc, 0600); err != nil {
		return errors.Wrapf(err, "write keystore file %q", path)
	}
	return nil
}

// Exists reports whether a keystore file is already present at path.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
