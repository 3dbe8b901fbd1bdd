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

// Package symmetric implements the password-based AES-CBC encryption the
// vault keystore uses to protect private keys at rest.
package symmetric

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"io"

	"github.com/vaultmesh/vaultmesh/crypto/hash"
)

// ErrInputSize indicates cipher data size doesn't match what
// EncryptWithPassword would have produced.
var ErrInputSize = errors.New("cipher data size not match")

var errInvalidPadding = errors.New("invalid PKCS#7 padding")

func addPKCSPadding(src []byte) []byte {
	padding := aes.BlockSize - len(src)%aes.BlockSize
	padtext := bytes.Repeat([]byte{byte(padding)}, padding)
	return append(src, padtext...)
}

func removePKCSPadding(src []byte) ([]byte, error) {
	length := len(src)
	if length < aes.BlockSize {
		return nil, errInvalidPadding
	}
	padLength := int(src[length-1])
	if padLength > aes.BlockSize || padLength == 0 {
		return nil, errInvalidPadding
	}
	return src[:length-padLength], nil
}

func keyDerivation(password, salt []byte) []byte {
	return hash.DoubleHashB(append(password, salt...))
}

// EncryptWithPassword encrypts in with a key derived from password and
// salt; the IV is placed at the head of the returned ciphertext.
func EncryptWithPassword(in, password, salt []byte) (out []byte, err error) {
	keyE := keyDerivation(password, salt)
	paddedIn := addPKCSPadding(in)
	out = make([]byte, aes.BlockSize+len(paddedIn))

	iv := out[:aes.BlockSize]
	if _, err = io.ReadFull(rand.Reader, iv); err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(keyE)
	if err != nil {
		return nil, err
	}
	mode := cipher.NewCBCEncrypter(block, iv)
	mode.CryptBlocks(out[aes.BlockSize:], paddedIn)
	return out, nil
}

// DecryptWithPassword reverses EncryptWithPassword.
func DecryptWithPassword(in, password, salt []byte) (out []byte, err error) {
	keyE := keyDerivation(password, salt)
	if len(in)%aes.BlockSize != 0 || len(in)/aes.BlockSize < 2 {
		return nil, ErrInputSize
	}

	iv := in[:aes.BlockSize]
	block, err := aes.NewCipher(keyE)
	if err != nil {
		return nil, err
	}
	mode := cipher.NewCBCDecrypter(block, iv)
	plainData := make([]byte, len(in)-aes.BlockSize)
	mode.CryptBlocks(plainData, in[aes.BlockSize:])

	return removePKCSPadding(plainData)
}
