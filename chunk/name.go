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

// Package chunk defines the name type shared by the chunk store, the
// type registry, the chunk action authority and the local chunk
// manager: an opaque digest whose last byte selects a policy.
package chunk

import "encoding/hex"

// Tag identifies which Chunk Action Authority policy governs a name.
type Tag byte

// Tag values this substrate dispatches on. Any byte not in this set
// routes to the Unknown policy.
const (
	TagDefault Tag = iota
	TagAppendableByAll
	TagModifiableByOwner
	TagSignaturePacket
	TagUfs
	TagUnknown = Tag(0xff)
)

func (t Tag) String() string {
	switch t {
	case TagDefault:
		return "Default"
	case TagAppendableByAll:
		return "AppendableByAll"
	case TagModifiableByOwner:
		return "ModifiableByOwner"
	case TagSignaturePacket:
		return "SignaturePacket"
	case TagUfs:
		return "Ufs"
	case TagUnknown:
		return "Unknown"
	}
	return "Unknown"
}

// Name is an opaque chunk identifier, typically a fixed-length
// cryptographic digest. Its last byte is interpreted as the type tag;
// the tag never changes once a chunk is first stored under a name.
type Name []byte

// Tag extracts the type tag from the name's last byte. An empty name
// has no tag and always reports TagUnknown.
func (n Name) Tag() Tag {
	if len(n) == 0 {
		return TagUnknown
	}
	last := n[len(n)-1]
	switch Tag(last) {
	case TagDefault, TagAppendableByAll, TagModifiableByOwner, TagSignaturePacket, TagUfs:
		return Tag(last)
	default:
		return TagUnknown
	}
}

// Prefix returns the digest bytes with the trailing type tag removed,
// used by the Default policy to check Store's self-verifying hash.
func (n Name) Prefix() []byte {
	if len(n) == 0 {
		return nil
	}
	return n[:len(n)-1]
}

// String hex-encodes the name for logging.
func (n Name) String() string {
	return hex.EncodeToString(n)
}

// Key is the store-facing representation of a Name: a Go string, so
// it can be used as a map key without further conversion.
func (n Name) Key() string {
	return string(n)
}
