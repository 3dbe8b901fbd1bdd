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

// Package supervisor implements the vault supervisor: it tracks a set
// of vault child processes, hands each a keypair and chunk store on
// request, and brokers Start/Stop/identity messages between clients
// and the vaults it manages.
package supervisor

import (
	"fmt"
	"net"
	"path/filepath"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vaultmesh/vaultmesh/chunk/action"
	"github.com/vaultmesh/vaultmesh/conf"
	"github.com/vaultmesh/vaultmesh/crypto/asymmetric"
	"github.com/vaultmesh/vaultmesh/message"
	"github.com/vaultmesh/vaultmesh/transport"
)

// Downloader refreshes the bootstrap file and checks for newer
// versioned binaries. A real HTTP-backed implementation is out of
// scope here; Supervisor only depends on this interface so a no-op
// double can stand in.
type Downloader interface {
	// RefreshBootstrap fetches the latest bootstrap-global.dat into
	// destDir, returning its path.
	RefreshBootstrap(destDir string) (path string, err error)
	// LatestVersion reports the newest available version string for
	// name (one of "app", "vault", "vault-manager"), or ok=false if
	// the locally-installed version is already current.
	LatestVersion(name, currentVersion string) (version string, ok bool, err error)
}

// NoopDownloader never reports a newer version and never changes the
// bootstrap file; it lets the update checker's control flow run in
// tests and in deployments with no configured update source.
type NoopDownloader struct{}

// RefreshBootstrap implements Downloader.
func (NoopDownloader) RefreshBootstrap(destDir string) (string, error) {
	return filepath.Join(destDir, "bootstrap-global.dat"), nil
}

// LatestVersion implements Downloader.
func (NoopDownloader) LatestVersion(name, currentVersion string) (string, bool, error) {
	return currentVersion, false, nil
}

// Supervisor owns every managed vault's record, the sqlite-backed
// store those records persist to, and the transport listener clients
// and vault children speak to it over.
type Supervisor struct {
	config     *conf.Config
	configPath string
	store      *vaultStore
	downloader Downloader

	vaultsMu sync.Mutex
	vaults   map[string]*vaultRecord // keyed by AccountName
	nextIdx  int

	updateMu       sync.Mutex
	updateInterval time.Duration
	updateTimer    *time.Timer

	listener *transport.Listener
}

// New loads (or initializes) the supervisor's config and vault-record
// store rooted at workingDir, but does not yet bind the transport or
// start any vault process — call Start for that.
func New(workingDir string, downloader Downloader) (*Supervisor, error) {
	cfg, path, err := loadOrInitConfig(workingDir)
	if err != nil {
		return nil, err
	}
	if cfg.WorkingRoot == "" {
		cfg.WorkingRoot = workingDir
	}

	if downloader == nil {
		downloader = NoopDownloader{}
	}

	st, err := openVaultStore(cfg.WorkingRoot)
	if err != nil {
		return nil, err
	}

	records, err := st.loadAll()
	if err != nil {
		return nil, err
	}

	s := &Supervisor{
		config:         cfg,
		configPath:     path,
		store:          st,
		downloader:     downloader,
		vaults:         make(map[string]*vaultRecord, len(records)),
		updateInterval: time.Duration(cfg.UpdateCheckIntervalSeconds) * time.Second,
	}
	for _, v := range records {
		s.vaults[v.AccountName] = v
		if v.ProcessIndex >= s.nextIdx {
			s.nextIdx = v.ProcessIndex + 1
		}
	}
	return s, nil
}

// Start binds the transport by scanning upward from conf.MinPort and
// launches every vault whose persisted record has RequestedToRun set.
func (s *Supervisor) Start() error {
	s.listener = transport.New(s.dispatch, nil, 8, s.onTransportError)

	for port := conf.MinPort; port < conf.MinPort+1000; port++ {
		endpoint := fmt.Sprintf("0.0.0.0:%d", port)
		if cond := s.listener.StartListening(endpoint); cond == transport.Success {
			log.WithField("endpoint", endpoint).Info("vault supervisor listening")
			break
		} else if cond != transport.BindError && cond != transport.ListenError {
			return fmt.Errorf("bind transport: %s", cond)
		}
	}

	s.vaultsMu.Lock()
	toStart := make([]*vaultRecord, 0, len(s.vaults))
	for _, v := range s.vaults {
		if v.RequestedToRun {
			toStart = append(toStart, v)
		}
	}
	s.vaultsMu.Unlock()

	for _, v := range toStart {
		if err := s.spawnVaultProcess(v, ""); err != nil {
			log.WithField("vault", v.AccountName).WithError(err).Error("restart vault failed")
		}
	}

	s.armUpdateTimer()
	return nil
}

// Stop cancels the update timer and stops accepting new connections.
// Already-running vault processes are left alone; StopVaultRequest (or
// process-level signals) is how a caller asks one to exit.
func (s *Supervisor) Stop() {
	s.disarmUpdateTimer()
	if s.listener != nil {
		s.listener.StopListening()
	}
}

// onTransportError is the transport.ErrorFunc wired into the
// supervisor's listener: every transport-level failure (oversized
// message, send/receive failure, bind failure) surfaces here instead
// of staying internal to the transport package.
func (s *Supervisor) onTransportError(code transport.Condition, endpoint string) {
	log.WithField("endpoint", endpoint).WithField("condition", code.String()).Warn("transport error")
}

// dispatch is the transport.Handler the supervisor's listener invokes
// for every decoded message.
func (s *Supervisor) dispatch(payload []byte, peer net.Addr) ([]byte, time.Duration) {
	env, err := message.Decode(payload)
	if err != nil {
		// Malformed traffic is silently dropped rather than answered.
		log.WithError(err).Debug("drop malformed envelope")
		return nil, transport.ImmediateTimeout
	}

	switch env.Type {
	case message.Ping:
		return s.handlePing(env)
	case message.StartVaultRequest:
		return s.handleStartVaultRequest(env)
	case message.VaultIdentityRequest:
		return s.handleVaultIdentityRequest(env)
	case message.StopVaultRequest:
		return s.handleStopVaultRequest(env)
	case message.UpdateIntervalRequest:
		return s.handleUpdateIntervalRequest(env)
	default:
		log.WithField("type", env.Type.String()).Debug("drop unexpected message type")
		return nil, transport.ImmediateTimeout
	}
}

func respond(t message.Type, v interface{}) ([]byte, time.Duration) {
	body, err := message.EncodeBody(v)
	if err != nil {
		log.WithError(err).Error("encode response body failed")
		return nil, transport.ImmediateTimeout
	}
	wire, err := message.Encode(t, body)
	if err != nil {
		log.WithError(err).Error("encode response envelope failed")
		return nil, transport.ImmediateTimeout
	}
	return wire, transport.ImmediateTimeout
}

func (s *Supervisor) handlePing(env *message.Envelope) ([]byte, time.Duration) {
	return respond(message.Ping, &message.PingPayload{})
}

// handleStartVaultRequest builds a vault record, ensures the per-vault
// bootstrap file, spawns the child, and blocks up to
// conf.IdentityRendezvousTimeout for the child's identity request
// before replying.
func (s *Supervisor) handleStartVaultRequest(env *message.Envelope) ([]byte, time.Duration) {
	var req message.StartVaultRequestPayload
	if err := message.DecodeBody(env.Body, &req); err != nil {
		log.WithError(err).Debug("drop malformed StartVaultRequest")
		return nil, transport.ImmediateTimeout
	}

	v, err := s.registerVault(req)
	if err != nil {
		log.WithError(err).Error("register vault failed")
		return respond(message.StartVaultResponse, &message.StartVaultResponsePayload{
			Result: false, Message: err.Error(),
		})
	}

	if err := ensureBootstrapFile(s.config.WorkingRoot, v.shortID()); err != nil {
		log.WithError(err).Warn("ensure bootstrap file failed")
	}

	if err := s.spawnVaultProcess(v, req.Peer); err != nil {
		log.WithError(err).Error("spawn vault process failed")
		return respond(message.StartVaultResponse, &message.StartVaultResponsePayload{
			Result: false, Message: err.Error(),
		})
	}

	result := s.awaitIdentityRendezvous(v)

	s.vaultsMu.Lock()
	v.VaultRequested = result
	v.RequestedToRun = true
	s.vaultsMu.Unlock()
	if err := s.store.put(v); err != nil {
		log.WithError(err).Error("persist vault record failed")
	}

	return respond(message.StartVaultResponse, &message.StartVaultResponsePayload{Result: result})
}

// awaitIdentityRendezvous blocks on v's condition variable until
// VaultRequested is signaled true or conf.IdentityRendezvousTimeout
// elapses.
func (s *Supervisor) awaitIdentityRendezvous(v *vaultRecord) bool {
	done := make(chan bool, 1)
	go func() {
		v.mu.Lock()
		for !v.VaultRequested {
			v.cond.Wait()
		}
		ok := v.VaultRequested
		v.mu.Unlock()
		done <- ok
	}()

	select {
	case ok := <-done:
		return ok
	case <-time.After(conf.IdentityRendezvousTimeout):
		return false
	}
}

// registerVault builds (or reuses, on restart) a vaultRecord for req.
func (s *Supervisor) registerVault(req message.StartVaultRequestPayload) (*vaultRecord, error) {
	var keys *action.Keys
	if len(req.Keys) > 0 {
		var err error
		keys, err = action.DecodeKeys(req.Keys)
		if err != nil {
			return nil, err
		}
	} else {
		priv, pub, err := asymmetric.GenSecp256k1KeyPair()
		if err != nil {
			return nil, err
		}
		keys = &action.Keys{
			Identity:   []byte(req.AccountName),
			PublicKey:  pub.Serialize(),
			PrivateKey: priv.Serialize(),
		}
	}

	s.vaultsMu.Lock()
	defer s.vaultsMu.Unlock()

	if existing, ok := s.vaults[req.AccountName]; ok {
		existing.Keys = *keys
		existing.ChunkstorePath = req.ChunkstorePath
		existing.ChunkstoreCapacity = req.ChunkstoreCapacity
		existing.VaultRequested = false
		return existing, nil
	}

	v := newVaultRecord(s.nextIdx)
	s.nextIdx++
	v.AccountName = req.AccountName
	v.Keys = *keys
	v.ChunkstorePath = req.ChunkstorePath
	v.ChunkstoreCapacity = req.ChunkstoreCapacity
	s.vaults[req.AccountName] = v
	return v, nil
}

// handleVaultIdentityRequest matches the requesting child by
// process_index, serializes its account name and keys, and wakes the
// waiting StartVaultRequest handler.
func (s *Supervisor) handleVaultIdentityRequest(env *message.Envelope) ([]byte, time.Duration) {
	var req message.VaultIdentityRequestPayload
	if err := message.DecodeBody(env.Body, &req); err != nil {
		log.WithError(err).Debug("drop malformed VaultIdentityRequest")
		return nil, transport.ImmediateTimeout
	}

	s.vaultsMu.Lock()
	var v *vaultRecord
	for _, candidate := range s.vaults {
		if candidate.ProcessIndex == req.ProcessIndex {
			v = candidate
			break
		}
	}
	s.vaultsMu.Unlock()

	if v == nil {
		log.WithField("process_index", req.ProcessIndex).Warn("identity request from unknown process index")
		return nil, transport.ImmediateTimeout
	}

	keys, err := v.Keys.Encode()
	if err != nil {
		log.WithError(err).Error("encode keys failed")
		return nil, transport.ImmediateTimeout
	}

	v.mu.Lock()
	v.VaultRequested = true
	v.mu.Unlock()
	v.cond.Broadcast()

	return respond(message.VaultIdentityResponse, &message.VaultIdentityResponsePayload{
		AccountName: v.AccountName,
		Keys:        keys,
	})
}

// handleStopVaultRequest verifies the request against the named
// vault's public key before instructing the process manager to stop
// it and clearing requested_to_run.
func (s *Supervisor) handleStopVaultRequest(env *message.Envelope) ([]byte, time.Duration) {
	var req message.StopVaultRequestPayload
	if err := message.DecodeBody(env.Body, &req); err != nil {
		log.WithError(err).Debug("drop malformed StopVaultRequest")
		return nil, transport.ImmediateTimeout
	}

	s.vaultsMu.Lock()
	v, ok := s.vaults[req.AccountName]
	s.vaultsMu.Unlock()
	if !ok {
		return respond(message.VaultShutdownResponse, &message.VaultShutdownResponsePayload{Result: false})
	}

	pub, err := asymmetric.ParsePublicKey(v.Keys.PublicKey)
	if err != nil {
		return respond(message.VaultShutdownResponse, &message.VaultShutdownResponsePayload{Result: false})
	}
	sig, err := asymmetric.ParseDERSignature(req.Signature)
	if err != nil || !asymmetric.Verify(req.Data, sig, pub) {
		return respond(message.VaultShutdownResponse, &message.VaultShutdownResponsePayload{Result: false})
	}

	if err := s.stopVaultProcess(v); err != nil {
		log.WithField("vault", v.AccountName).WithError(err).Error("stop vault process failed")
		return respond(message.VaultShutdownResponse, &message.VaultShutdownResponsePayload{Result: false})
	}

	s.vaultsMu.Lock()
	v.RequestedToRun = false
	s.vaultsMu.Unlock()
	if err := s.store.put(v); err != nil {
		log.WithError(err).Error("persist vault record failed")
	}

	return respond(message.VaultShutdownResponse, &message.VaultShutdownResponsePayload{Result: true})
}

// handleUpdateIntervalRequest reads the interval when SetSeconds is 0,
// otherwise clamps and applies a new one, rearming the update timer.
func (s *Supervisor) handleUpdateIntervalRequest(env *message.Envelope) ([]byte, time.Duration) {
	var req message.UpdateIntervalRequestPayload
	if err := message.DecodeBody(env.Body, &req); err != nil {
		log.WithError(err).Debug("drop malformed UpdateIntervalRequest")
		return nil, transport.ImmediateTimeout
	}

	if req.SetSeconds != 0 {
		interval := time.Duration(req.SetSeconds) * time.Second
		if interval < conf.MinUpdateInterval {
			interval = conf.MinUpdateInterval
		}
		if interval > conf.MaxUpdateInterval {
			interval = conf.MaxUpdateInterval
		}
		s.updateMu.Lock()
		s.updateInterval = interval
		s.config.UpdateCheckIntervalSeconds = int64(interval.Seconds())
		s.updateMu.Unlock()
		if err := conf.SaveConfig(s.configPath, s.config); err != nil {
			log.WithError(err).Error("persist update interval failed")
		}
		s.armUpdateTimer()
	}

	s.updateMu.Lock()
	current := s.updateInterval
	s.updateMu.Unlock()

	return respond(message.UpdateIntervalResponse, &message.UpdateIntervalResponsePayload{
		Seconds: int64(current.Seconds()),
	})
}
