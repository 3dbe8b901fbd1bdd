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
	"bytes"
	"path/filepath"

	"github.com/ugorji/go/codec"

	"github.com/vaultmesh/vaultmesh/storage"
)

var mpHandle = &codec.MsgpackHandle{
	BasicHandle: codec.BasicHandle{
		DecodeOptions: codec.DecodeOptions{RawToString: true},
	},
	WriteExt: true,
}

const vaultTable = "vault_records"

// vaultStore persists the churny half of supervisor state — one row
// per managed vault, keyed by account name — in a sqlite database,
// separate from the scalar update_interval setting which lives in the
// YAML conf.Config instead.
type vaultStore struct {
	st *storage.Storage
}

func openVaultStore(workingRoot string) (*vaultStore, error) {
	dsn, err := storage.NewDSN("file:" + filepath.Join(workingRoot, "vaultmanager.db"))
	if err != nil {
		return nil, err
	}
	st, err := storage.OpenStorage(dsn.Format(), vaultTable)
	if err != nil {
		return nil, err
	}
	return &vaultStore{st: st}, nil
}

func encodePersisted(p *persistedVaultRecord) ([]byte, error) {
	var buf bytes.Buffer
	enc := codec.NewEncoder(&buf, mpHandle)
	if err := enc.Encode(p); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodePersisted(data []byte) (*persistedVaultRecord, error) {
	var p persistedVaultRecord
	dec := codec.NewDecoderBytes(data, mpHandle)
	if err := dec.Decode(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

// put writes v's persisted fields, keyed by account name.
func (vs *vaultStore) put(v *vaultRecord) error {
	p, err := v.toPersisted()
	if err != nil {
		return err
	}
	raw, err := encodePersisted(p)
	if err != nil {
		return err
	}
	return vs.st.SetValue(v.AccountName, raw)
}

// delete removes the row for accountName; absent rows are a no-op,
// matching the idempotent-delete shape the rest of this substrate
// uses.
func (vs *vaultStore) delete(accountName string) error {
	return vs.st.DelValue(accountName)
}

// loadAll reconstructs every persisted vault record, used once at
// startup to repopulate the in-memory vault set.
func (vs *vaultStore) loadAll() ([]*vaultRecord, error) {
	keys, err := vs.st.Keys()
	if err != nil {
		return nil, err
	}

	records := make([]*vaultRecord, 0, len(keys))
	for _, key := range keys {
		raw, err := vs.st.GetValue(key)
		if err != nil {
			return nil, err
		}
		if raw == nil {
			continue
		}
		p, err := decodePersisted(raw)
		if err != nil {
			return nil, err
		}
		v, err := vaultRecordFromPersisted(p)
		if err != nil {
			return nil, err
		}
		records = append(records, v)
	}
	return records, nil
}
