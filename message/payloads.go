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

package message

// PingPayload carries no fields; Ping is answered by echoing an empty
// PingPayload back.
type PingPayload struct{}

// StartVaultRequestPayload asks the supervisor to spawn a vault
// process for the given identity, optionally joining an existing peer.
type StartVaultRequestPayload struct {
	AccountName        string `codec:"AccountName"`
	Keys               []byte `codec:"Keys"` // msgpack-encoded action.Keys, empty to request generation
	ChunkstorePath     string `codec:"ChunkstorePath"`
	ChunkstoreCapacity uint64 `codec:"ChunkstoreCapacity"`
	Peer               string `codec:"Peer,omitempty"`
}

// StartVaultResponsePayload reports whether the vault reached the
// running state within the identity rendezvous window.
type StartVaultResponsePayload struct {
	Result  bool   `codec:"Result"`
	Message string `codec:"Message,omitempty"`
}

// VaultIdentityRequestPayload is sent by a freshly spawned vault child
// to claim the process_index the supervisor assigned it on the
// command line.
type VaultIdentityRequestPayload struct {
	ProcessIndex int `codec:"ProcessIndex"`
}

// VaultIdentityResponsePayload hands the vault its persisted account
// name and keys.
type VaultIdentityResponsePayload struct {
	AccountName string `codec:"AccountName"`
	Keys        []byte `codec:"Keys"` // msgpack-encoded action.Keys
}

// StopVaultRequestPayload authenticates a stop request against the
// named vault's public key.
type StopVaultRequestPayload struct {
	AccountName string `codec:"AccountName"`
	Data        []byte `codec:"Data"`
	Signature   []byte `codec:"Signature"`
}

// VaultShutdownResponsePayload reports whether the stop succeeded.
type VaultShutdownResponsePayload struct {
	Result bool `codec:"Result"`
}

// UpdateIntervalRequestPayload reads the current interval when
// SetSeconds is 0, or requests changing it otherwise.
type UpdateIntervalRequestPayload struct {
	SetSeconds int64 `codec:"SetSeconds"`
}

// UpdateIntervalResponsePayload reports the interval now in effect.
type UpdateIntervalResponsePayload struct {
	Seconds int64 `codec:"Seconds"`
}
