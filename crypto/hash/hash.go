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

// Package hash provides the fixed-size digest type used to name chunks and
// to derive the versions the chunk action authority hands back to callers.
package hash

import (
	"encoding/hex"
	"fmt"
)

// Size of the digest in bytes.
const Size = 32

// MaxStringSize is the maximum length of a hex-encoded Hash string.
const MaxStringSize = Size * 2

// ErrStrSize indicates a hex string longer than MaxStringSize was decoded.
var ErrStrSize = fmt.Errorf("max hash string length is %v bytes", MaxStringSize)

// Hash is a fixed-size digest, used both as a chunk name prefix source and
// as the version token the CAA returns for mutable chunk types.
type Hash [Size]byte

// String returns the hexadecimal encoding of the digest.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// Short returns the hexadecimal string of the first n byte(s).
func (h Hash) Short(n int) string {
	l := Size
	if n < l {
		l = n
	}
	return hex.EncodeToString(h[:l])
}

// Bytes returns the digest as a byte slice copy.
func (h Hash) Bytes() []byte {
	out := make([]byte, Size)
	copy(out, h[:])
	return out
}

// IsEqual reports whether target names the same digest.
func (h *Hash) IsEqual(target *Hash) bool {
	if h == nil && target == nil {
		return true
	}
	if h == nil || target == nil {
		return false
	}
	return *h == *target
}

// SetBytes sets the digest from b. An error is returned if len(b) != Size.
func (h *Hash) SetBytes(b []byte) error {
	if len(b) != Size {
		return fmt.Errorf("invalid hash length of %v, want %v", len(b), Size)
	}
	copy(h[:], b)
	return nil
}

// NewHash builds a Hash from a byte slice of exactly Size bytes.
func NewHash(b []byte) (*Hash, error) {
	var h Hash
	if err := h.SetBytes(b); err != nil {
		return nil, err
	}
	return &h, nil
}

// NewHashFromStr decodes a hex string into a Hash.
func NewHashFromStr(s string) (*Hash, error) {
	h := new(Hash)
	if err := Decode(h, s); err != nil {
		return nil, err
	}
	return h, nil
}

// Decode hex-decodes src into dst.
func Decode(dst *Hash, src string) error {
	if len(src) > MaxStringSize {
		return ErrStrSize
	}
	b, err := hex.DecodeString(src)
	if err != nil {
		return err
	}
	copy(dst[Size-len(b):], b)
	return nil
}
