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

package supervisor

import (
	"sync"

	"github.com/vaultmesh/vaultmesh/chunk/action"
	"github.com/vaultmesh/vaultmesh/utils"
)

// vaultRecord is the supervisor's in-memory view of one managed vault.
// The mutex+cond pair is the identity rendezvous: HandleStartVaultRequest
// waits on it, HandleVaultIdentityRequest signals it.
type vaultRecord struct {
	mu   sync.Mutex
	cond *sync.Cond

	ProcessIndex       int
	AccountName        string
	Keys               action.Keys
	ChunkstorePath     string
	ChunkstoreCapacity uint64
	ClientPort         int
	VaultPort          int
	RequestedToRun     bool
	VaultRequested     bool

	proc *utils.CMD
}

func newVaultRecord(processIndex int) *vaultRecord {
	v := &vaultRecord{ProcessIndex: processIndex}
	v.cond = sync.NewCond(&v.mu)
	return v
}

// persistedVaultRecord is the sqlite-stored shape of a vaultRecord:
// everything except the transient process handle and rendezvous
// primitives, which don't survive a restart.
type persistedVaultRecord struct {
	ProcessIndex       int    `codec:"ProcessIndex"`
	AccountName        string `codec:"AccountName"`
	Keys               []byte `codec:"Keys"` // msgpack-encoded action.Keys
	ChunkstorePath     string `codec:"ChunkstorePath"`
	ChunkstoreCapacity uint64 `codec:"ChunkstoreCapacity"`
	ClientPort         int    `codec:"ClientPort"`
	VaultPort          int    `codec:"VaultPort"`
	RequestedToRun     bool   `codec:"RequestedToRun"`
}

func (v *vaultRecord) toPersisted() (*persistedVaultRecord, error) {
	keys, err := v.Keys.Encode()
	if err != nil {
		return nil, err
	}
	return &persistedVaultRecord{
		ProcessIndex:       v.ProcessIndex,
		AccountName:        v.AccountName,
		Keys:               keys,
		ChunkstorePath:     v.ChunkstorePath,
		ChunkstoreCapacity: v.ChunkstoreCapacity,
		ClientPort:         v.ClientPort,
		VaultPort:          v.VaultPort,
		RequestedToRun:     v.RequestedToRun,
	}, nil
}

func vaultRecordFromPersisted(p *persistedVaultRecord) (*vaultRecord, error) {
	keys, err := action.DecodeKeys(p.Keys)
	if err != nil {
		return nil, err
	}
	v := newVaultRecord(p.ProcessIndex)
	v.AccountName = p.AccountName
	v.Keys = *keys
	v.ChunkstorePath = p.ChunkstorePath
	v.ChunkstoreCapacity = p.ChunkstoreCapacity
	v.ClientPort = p.ClientPort
	v.VaultPort = p.VaultPort
	v.RequestedToRun = p.RequestedToRun
	return v, nil
}

// shortID is the base name used for the vault's working directory,
// bootstrap file and log file.
func (v *vaultRecord) shortID() string {
	return v.Keys.ShortID()
}
