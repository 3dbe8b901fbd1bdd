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
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vaultmesh/vaultmesh/conf"
	"github.com/vaultmesh/vaultmesh/crypto/asymmetric"
	"github.com/vaultmesh/vaultmesh/message"
	"github.com/vaultmesh/vaultmesh/transport"
)

func newTestSupervisor(t *testing.T) *Supervisor {
	dir := t.TempDir()
	s, err := New(dir, nil)
	require.NoError(t, err)
	return s
}

// TestStartVaultRendezvousTimesOut covers the case where no
// VaultIdentityRequest arrives within the rendezvous window:
// awaitIdentityRendezvous reports failure and the record stays
// unrequested.
func TestStartVaultRendezvousTimesOut(t *testing.T) {
	s := newTestSupervisor(t)
	v := newVaultRecord(0)
	v.AccountName = "vault-1"

	start := time.Now()
	result := s.awaitIdentityRendezvous(v)
	elapsed := time.Since(start)

	require.False(t, result)
	require.GreaterOrEqual(t, elapsed, 3*time.Second)
	require.False(t, v.VaultRequested)
}

// TestStartVaultRendezvousSucceeds covers the positive half of
// scenario 6: a prompt VaultIdentityRequest wakes the waiter.
func TestStartVaultRendezvousSucceeds(t *testing.T) {
	s := newTestSupervisor(t)
	v := newVaultRecord(0)
	v.AccountName = "vault-1"

	go func() {
		time.Sleep(50 * time.Millisecond)
		v.mu.Lock()
		v.VaultRequested = true
		v.mu.Unlock()
		v.cond.Broadcast()
	}()

	start := time.Now()
	result := s.awaitIdentityRendezvous(v)
	require.True(t, result)
	require.Less(t, time.Since(start), 3*time.Second)
}

func TestVaultStoreRoundtrip(t *testing.T) {
	dir := t.TempDir()
	st, err := openVaultStore(dir)
	require.NoError(t, err)

	_, pub, err := asymmetric.GenSecp256k1KeyPair()
	require.NoError(t, err)

	v := newVaultRecord(1)
	v.AccountName = "vault-1"
	v.Keys.Identity = []byte("vault-1")
	v.Keys.PublicKey = pub.Serialize()
	v.ChunkstorePath = "/tmp/vault-1"
	v.ChunkstoreCapacity = 1 << 20
	v.RequestedToRun = true

	require.NoError(t, st.put(v))

	loaded, err := st.loadAll()
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	require.Equal(t, v.AccountName, loaded[0].AccountName)
	require.Equal(t, v.ChunkstorePath, loaded[0].ChunkstorePath)
	require.True(t, loaded[0].RequestedToRun)

	require.NoError(t, st.delete(v.AccountName))
	loaded, err = st.loadAll()
	require.NoError(t, err)
	require.Len(t, loaded, 0)
}

func TestLoadOrInitConfigWritesFreshFile(t *testing.T) {
	dir := t.TempDir()
	cfg, path, err := loadOrInitConfig(dir)
	require.NoError(t, err)
	require.Equal(t, dir, cfg.WorkingRoot)
	require.FileExists(t, path)

	reloaded, reloadedPath, err := loadOrInitConfig(dir)
	require.NoError(t, err)
	require.Equal(t, path, reloadedPath)
	require.Equal(t, cfg.WorkingRoot, reloaded.WorkingRoot)
}

func TestHandleUpdateIntervalRequestClampsToMinimum(t *testing.T) {
	s := newTestSupervisor(t)

	body, err := message.EncodeBody(&message.UpdateIntervalRequestPayload{SetSeconds: 1})
	require.NoError(t, err)
	req := &message.Envelope{Type: message.UpdateIntervalRequest, Body: body}

	resp, timeout := s.handleUpdateIntervalRequest(req)
	require.Equal(t, transport.ImmediateTimeout, timeout)

	env, err := message.Decode(resp)
	require.NoError(t, err)
	require.Equal(t, message.UpdateIntervalResponse, env.Type)

	var respBody message.UpdateIntervalResponsePayload
	require.NoError(t, message.DecodeBody(env.Body, &respBody))
	require.EqualValues(t, int64(conf.MinUpdateInterval.Seconds()), respBody.Seconds)
}
