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

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEnvelopeRoundtrip(t *testing.T) {
	body, err := EncodeBody(&PingPayload{})
	require.NoError(t, err)

	wire, err := Encode(Ping, body)
	require.NoError(t, err)

	env, err := Decode(wire)
	require.NoError(t, err)
	require.Equal(t, Ping, env.Type)

	var p PingPayload
	require.NoError(t, DecodeBody(env.Body, &p))
}

func TestStartVaultRequestRoundtrip(t *testing.T) {
	body, err := EncodeBody(&StartVaultRequestPayload{
		AccountName:        "vault-1",
		ChunkstorePath:     "/tmp/vault-1",
		ChunkstoreCapacity: 1 << 20,
	})
	require.NoError(t, err)

	wire, err := Encode(StartVaultRequest, body)
	require.NoError(t, err)

	env, err := Decode(wire)
	require.NoError(t, err)
	require.Equal(t, StartVaultRequest, env.Type)

	var req StartVaultRequestPayload
	require.NoError(t, DecodeBody(env.Body, &req))
	require.Equal(t, "vault-1", req.AccountName)
	require.EqualValues(t, 1<<20, req.ChunkstoreCapacity)
}
