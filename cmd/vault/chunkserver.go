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

package main

import (
	"bytes"
	"net"
	"time"

	"github.com/ugorji/go/codec"

	"github.com/vaultmesh/vaultmesh/chunk"
	"github.com/vaultmesh/vaultmesh/chunk/action"
	"github.com/vaultmesh/vaultmesh/chunk/manager"
	"github.com/vaultmesh/vaultmesh/crypto/asymmetric"
	"github.com/vaultmesh/vaultmesh/transport"
)

// chunkOp selects which Manager method a chunkRequest dispatches to.
// This is a wire contract local to the vault child's own listener,
// distinct from the supervisor-facing message package: the vault's
// client protocol for Get/Store/Delete/Modify/Has isn't named by the
// supervisor's closed message.Type enumeration, so it gets its own
// small envelope here instead of overloading that one.
type chunkOp int

const (
	opGet chunkOp = iota
	opStore
	opDelete
	opModify
	opHas
)

type chunkRequest struct {
	Op             chunkOp `codec:"Op"`
	Name           []byte  `codec:"Name"`
	Content        []byte  `codec:"Content,omitempty"`
	PublicKey      []byte  `codec:"PublicKey,omitempty"`
	LocalVersion   []byte  `codec:"LocalVersion,omitempty"`
	OwnershipProof []byte  `codec:"OwnershipProof,omitempty"`
}

type chunkResponse struct {
	Status  int    `codec:"Status"`
	Content []byte `codec:"Content,omitempty"`
}

var chunkMPHandle = &codec.MsgpackHandle{
	BasicHandle: codec.BasicHandle{
		DecodeOptions: codec.DecodeOptions{RawToString: true},
	},
	WriteExt: true,
}

func encodeChunkResponse(status action.Status, content []byte) []byte {
	var buf bytes.Buffer
	enc := codec.NewEncoder(&buf, chunkMPHandle)
	_ = enc.Encode(&chunkResponse{Status: int(status), Content: content})
	return buf.Bytes()
}

// newChunkHandler adapts mgr's Get/Store/Delete/Modify/Has into a
// transport.Handler, so the chunk store a vault owns is actually
// reachable over its own listener rather than sitting unused behind
// the identity rendezvous.
func newChunkHandler(mgr *manager.Manager) transport.Handler {
	return func(payload []byte, peer net.Addr) ([]byte, time.Duration) {
		var req chunkRequest
		dec := codec.NewDecoderBytes(payload, chunkMPHandle)
		if err := dec.Decode(&req); err != nil {
			return encodeChunkResponse(action.GeneralError, nil), transport.ImmediateTimeout
		}

		name := chunk.Name(req.Name)
		var pub *asymmetric.PublicKey
		if len(req.PublicKey) > 0 {
			p, err := asymmetric.ParsePublicKey(req.PublicKey)
			if err != nil {
				return encodeChunkResponse(action.InvalidPublicKey, nil), transport.ImmediateTimeout
			}
			pub = p
		}

		switch req.Op {
		case opGet:
			content, status := mgr.Get(name, pub, req.LocalVersion)
			return encodeChunkResponse(status, content), transport.ImmediateTimeout
		case opStore:
			status := mgr.Store(name, req.Content, pub)
			return encodeChunkResponse(status, nil), transport.ImmediateTimeout
		case opDelete:
			status := mgr.Delete(name, req.OwnershipProof, pub)
			return encodeChunkResponse(status, nil), transport.ImmediateTimeout
		case opModify:
			content, status := mgr.Modify(name, req.Content, pub)
			return encodeChunkResponse(status, content), transport.ImmediateTimeout
		case opHas:
			status := mgr.Has(name)
			return encodeChunkResponse(status, nil), transport.ImmediateTimeout
		default:
			return encodeChunkResponse(action.GeneralError, nil), transport.ImmediateTimeout
		}
	}
}
