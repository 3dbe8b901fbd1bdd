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

package manager

import (
	"bytes"
	"io/ioutil"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/ugorji/go/codec"

	"github.com/vaultmesh/vaultmesh/chunk"
	"github.com/vaultmesh/vaultmesh/chunk/action"
	"github.com/vaultmesh/vaultmesh/chunk/store"
	"github.com/vaultmesh/vaultmesh/crypto/asymmetric"
)

var mpHandle = &codec.MsgpackHandle{
	BasicHandle: codec.BasicHandle{
		DecodeOptions: codec.DecodeOptions{RawToString: true},
	},
	WriteExt: true,
}

// modifiableFixture mirrors action.ModifiableByOwner's wire shape so
// this test can build a fixture without reaching into that package's
// unexported encode helper.
type modifiableFixture struct {
	IdentityKey action.SignedData `codec:"IdentityKey"`
	Payload     action.SignedData `codec:"Payload"`
}

func (m *modifiableFixture) encode() ([]byte, error) {
	var buf bytes.Buffer
	enc := codec.NewEncoder(&buf, mpHandle)
	if err := enc.Encode(m); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func newTestManager(t *testing.T) *Manager {
	dir, err := ioutil.TempDir("", "vaultmesh-manager")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })
	m, err := New(store.NewMemory(0), dir, 64)
	require.NoError(t, err)
	return m
}

func TestManagerStoreGetRoundtrip(t *testing.T) {
	m := newTestManager(t)
	priv, pub := mustKeyPair(t)
	name := chunk.Name(append(make([]byte, 32), byte(chunk.TagAppendableByAll)))

	c := &action.AppendableByAll{
		IdentityKey:         mustSignedData(t, pub.Serialize(), priv),
		AllowOthersToAppend: mustSignedData(t, []byte{action.AppendableByAllTag}, priv),
	}
	raw, err := c.Encode()
	require.NoError(t, err)

	status := m.Store(name, raw, pub)
	require.Equal(t, action.Success, status)

	out, status := m.Get(name, pub, nil)
	require.Equal(t, action.Success, status)
	require.Equal(t, raw, out)
}

func TestManagerVersionCacheShortCircuitsGet(t *testing.T) {
	m := newTestManager(t)
	priv, pub := mustKeyPair(t)
	name := chunk.Name(append(make([]byte, 32), byte(chunk.TagModifiableByOwner)))

	mo := &modifiableFixture{IdentityKey: mustSignedData(t, pub.Serialize(), priv)}
	raw, err := mo.encode()
	require.NoError(t, err)
	require.Equal(t, action.Success, m.Store(name, raw, pub))

	version, status := m.Version(name)
	require.Equal(t, action.Success, status)

	out, status := m.Get(name, pub, version)
	require.Equal(t, action.Success, status)
	require.Nil(t, out, "a matching local version short-circuits Get without touching the authority")
}

func mustKeyPair(t *testing.T) (*asymmetric.PrivateKey, *asymmetric.PublicKey) {
	priv, pub, err := asymmetric.GenSecp256k1KeyPair()
	require.NoError(t, err)
	return priv, pub
}

func mustSignedData(t *testing.T, data []byte, priv *asymmetric.PrivateKey) action.SignedData {
	sd, err := action.Sign(data, priv)
	require.NoError(t, err)
	return *sd
}
