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

package conf

import "time"

// Transport timing parameters, kept consistent across every vault so
// that remote peers agree on how long to wait for each other.
const (
	// StallTimeout closes a connection that sits idle between frames.
	StallTimeout = 30 * time.Second
	// ConnectTimeout bounds dialing a peer.
	ConnectTimeout = 5 * time.Second
	// ResponseTimeout bounds waiting for a dispatched request's reply.
	ResponseTimeout = 10 * time.Second
	// WriteTimeoutPerByte scales the write deadline by payload size on
	// top of a fixed floor, so large chunk transfers aren't cut short.
	WriteTimeoutPerByte = 10 * time.Microsecond
	// MinWriteTimeout is the floor under WriteTimeoutPerByte scaling.
	MinWriteTimeout = 2 * time.Second
	// MaxFrameSize rejects any incoming length prefix larger than this.
	MaxFrameSize = 64 << 20
)

// Supervisor rendezvous and lifecycle timing.
const (
	// IdentityRendezvousTimeout bounds how long StartVault waits for the
	// spawned child to report its identity before giving up.
	IdentityRendezvousTimeout = 3 * time.Second
	// VaultShutdownTimeout bounds how long StopVault waits for the vault
	// process to exit after SIGTERM before the supervisor kills it.
	VaultShutdownTimeout = 5 * time.Second
)

// Supervisor transport binding and update-interval bounds.
const (
	// MinPort is the first port the supervisor tries when binding its
	// transport listener, scanning upward until one succeeds.
	MinPort = 18388
	// MinUpdateInterval and MaxUpdateInterval bound what
	// UpdateIntervalRequest may set update_interval to.
	MinUpdateInterval = 60 * time.Second
	MaxUpdateInterval = 24 * time.Hour
	// DefaultUpdateInterval is used when a fresh config is written.
	DefaultUpdateInterval = time.Hour
)

// Chunk manager advisory locking.
const (
	// LockWaitInitialInterval is the first retry backoff when a chunk
	// name's advisory lock file is already held.
	LockWaitInitialInterval = 10 * time.Millisecond
	// LockWaitMaxElapsed bounds total time spent retrying a lock before
	// surfacing a contention error.
	LockWaitMaxElapsed = 2 * time.Second
	// VersionCacheSize bounds the number of recently-seen chunk version
	// hashes the manager keeps to skip redundant THashH recomputation.
	VersionCacheSize = 4096
)
