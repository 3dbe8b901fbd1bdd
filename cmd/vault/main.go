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

// Command vault is the child process a supervisor spawns: it owns one
// chunk store, reports its identity back to the supervisor that
// started it, then serves chunk operations over its own listener.
package main

import (
	"flag"
	"fmt"

	"github.com/vaultmesh/vaultmesh/chunk/manager"
	"github.com/vaultmesh/vaultmesh/chunk/store"
	"github.com/vaultmesh/vaultmesh/conf"
	"github.com/vaultmesh/vaultmesh/message"
	"github.com/vaultmesh/vaultmesh/transport"
	"github.com/vaultmesh/vaultmesh/utils"
	"github.com/vaultmesh/vaultmesh/utils/log"
)

var (
	processIndex  int
	peer          string
	chunkPath     string
	chunkCapacity uint64
	vaultPort     int
	start         bool
)

func init() {
	flag.IntVar(&processIndex, "process_index", 0, "index the supervisor assigned this vault on its command line")
	flag.StringVar(&peer, "peer", "", "supervisor endpoint to report identity to")
	flag.StringVar(&chunkPath, "chunk_path", "", "chunk store directory")
	flag.Uint64Var(&chunkCapacity, "chunk_capacity", 0, "chunk store capacity in bytes, 0 = unlimited")
	flag.IntVar(&vaultPort, "vault_port", 0, "port this vault's chunk-op listener binds, 0 picks one by scanning from conf.MinPort")
	flag.BoolVar(&start, "start", false, "run as a managed vault (always set by the supervisor)")
}

func main() {
	flag.Parse()

	backend, err := store.NewDir(chunkPath, chunkPath+"/.locks", chunkCapacity)
	if err != nil {
		log.Fatalf("open chunk store failed: %v", err)
	}

	mgr, err := manager.New(backend, chunkPath+"/.locks", int(conf.VersionCacheSize))
	if err != nil {
		log.Fatalf("init chunk manager failed: %v", err)
	}

	listener := transport.New(newChunkHandler(mgr), nil, 8, func(code transport.Condition, endpoint string) {
		log.WithField("endpoint", endpoint).WithField("condition", code.String()).Warn("chunk listener error")
	})
	bindChunkListener(listener)

	if peer == "" {
		log.Warn("no --peer given, vault will not register its identity")
		<-utils.WaitForExit()
		return
	}

	accountName, keys, ok := reportIdentity(peer, processIndex)
	if !ok {
		log.Fatal("identity rendezvous with supervisor failed")
	}
	log.WithField("account", accountName).Info("vault identity acknowledged by supervisor")
	_ = keys

	<-utils.WaitForExit()
}

// bindChunkListener binds the chunk-op listener to vaultPort if given,
// otherwise scans upward from conf.MinPort the way the supervisor
// binds its own control listener.
func bindChunkListener(listener *transport.Listener) {
	if vaultPort != 0 {
		if cond := listener.StartListening(fmt.Sprintf("0.0.0.0:%d", vaultPort)); cond != transport.Success {
			log.Fatalf("bind chunk listener on port %d: %s", vaultPort, cond)
		}
		return
	}
	for port := conf.MinPort; port < conf.MinPort+1000; port++ {
		cond := listener.StartListening(fmt.Sprintf("0.0.0.0:%d", port))
		if cond == transport.Success {
			return
		}
		if cond != transport.BindError && cond != transport.ListenError {
			log.Fatalf("bind chunk listener: %s", cond)
		}
	}
	log.Fatal("bind chunk listener: no free port found")
}

// reportIdentity sends a VaultIdentityRequest to the supervisor at
// peer and waits for its VaultIdentityResponse.
func reportIdentity(peer string, processIndex int) (accountName string, keys []byte, ok bool) {
	body, err := message.EncodeBody(&message.VaultIdentityRequestPayload{ProcessIndex: processIndex})
	if err != nil {
		log.WithError(err).Error("encode identity request failed")
		return "", nil, false
	}
	wire, err := message.Encode(message.VaultIdentityRequest, body)
	if err != nil {
		log.WithError(err).Error("encode identity envelope failed")
		return "", nil, false
	}

	resp, cond := transport.Send(peer, wire, conf.ResponseTimeout)
	if cond != transport.Success {
		log.WithField("condition", cond.String()).Error("send identity request failed")
		return "", nil, false
	}

	env, err := message.Decode(resp)
	if err != nil || env.Type != message.VaultIdentityResponse {
		log.WithError(err).Error("decode identity response failed")
		return "", nil, false
	}

	var payload message.VaultIdentityResponsePayload
	if err := message.DecodeBody(env.Body, &payload); err != nil {
		log.WithError(err).Error("decode identity response body failed")
		return "", nil, false
	}
	return payload.AccountName, payload.Keys, true
}
