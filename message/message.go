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

// Package message defines the closed MessageType enumeration the
// vault supervisor's transport carries, and the msgpack envelope that
// wraps a typed payload for the framed transport.
package message

import (
	"bytes"

	"github.com/ugorji/go/codec"
)

// Type tags every request/response the supervisor's transport carries.
type Type int

// The closed set of message types.
const (
	Ping Type = iota
	StartVaultRequest
	StartVaultResponse
	VaultIdentityRequest
	VaultIdentityResponse
	StopVaultRequest
	VaultShutdownResponse
	UpdateIntervalRequest
	UpdateIntervalResponse
)

func (t Type) String() string {
	switch t {
	case Ping:
		return "Ping"
	case StartVaultRequest:
		return "StartVaultRequest"
	case StartVaultResponse:
		return "StartVaultResponse"
	case VaultIdentityRequest:
		return "VaultIdentityRequest"
	case VaultIdentityResponse:
		return "VaultIdentityResponse"
	case StopVaultRequest:
		return "StopVaultRequest"
	case VaultShutdownResponse:
		return "VaultShutdownResponse"
	case UpdateIntervalRequest:
		return "UpdateIntervalRequest"
	case UpdateIntervalResponse:
		return "UpdateIntervalResponse"
	}
	return "Unknown"
}

var mpHandle = &codec.MsgpackHandle{
	BasicHandle: codec.BasicHandle{
		DecodeOptions: codec.DecodeOptions{RawToString: true},
	},
	WriteExt: true,
}

// Envelope is the wire form the transport's payload bytes decode into:
// a Type tag plus the msgpack encoding of that type's own request or
// response struct in Body.
type Envelope struct {
	Type Type   `codec:"Type"`
	Body []byte `codec:"Body"`
}

// Encode wraps body (already msgpack-encoded by the caller) with t
// into the bytes handed to the transport.
func Encode(t Type, body []byte) ([]byte, error) {
	env := Envelope{Type: t, Body: body}
	var buf bytes.Buffer
	enc := codec.NewEncoder(&buf, mpHandle)
	if err := enc.Encode(&env); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode unwraps a transport payload into its Envelope.
func Decode(payload []byte) (*Envelope, error) {
	var env Envelope
	dec := codec.NewDecoderBytes(payload, mpHandle)
	if err := dec.Decode(&env); err != nil {
		return nil, err
	}
	return &env, nil
}

// EncodeBody msgpack-encodes a per-type request/response struct into
// the Body bytes Encode expects.
func EncodeBody(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := codec.NewEncoder(&buf, mpHandle)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeBody msgpack-decodes an Envelope's Body into v.
func DecodeBody(body []byte, v interface{}) error {
	dec := codec.NewDecoderBytes(body, mpHandle)
	return dec.Decode(v)
}
