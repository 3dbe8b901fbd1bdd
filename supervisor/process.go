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
	"fmt"
	"path/filepath"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vaultmesh/vaultmesh/conf"
	"github.com/vaultmesh/vaultmesh/utils"
)

// spawnVaultProcess starts v's child process with the argument
// vector --process_index, --peer (optional), --chunk_path,
// --chunk_capacity, --start. A record already running is left alone.
func (s *Supervisor) spawnVaultProcess(v *vaultRecord, peer string) error {
	v.mu.Lock()
	running := v.proc != nil
	v.mu.Unlock()
	if running {
		return nil
	}

	shortID := v.shortID()
	workingDir := filepath.Join(s.config.WorkingRoot, shortID)

	args := make([]string, 0, 8)
	args = append(args, "--process_index", fmt.Sprint(v.ProcessIndex))
	if peer != "" {
		args = append(args, "--peer", peer)
	}
	args = append(args,
		"--chunk_path", v.ChunkstorePath,
		"--chunk_capacity", fmt.Sprint(v.ChunkstoreCapacity),
		"--start",
	)

	cmd, err := utils.RunCommandNB(s.config.VaultBin, args, shortID, workingDir,
		filepath.Join(s.config.WorkingRoot, "logs"), false)
	if err != nil {
		return err
	}

	v.mu.Lock()
	v.proc = cmd
	v.mu.Unlock()

	log.WithFields(log.Fields{
		"vault": v.AccountName,
		"pid":   cmd.Cmd.Process.Pid,
	}).Info("spawned vault process")
	return nil
}

// stopVaultProcess signals v's child to exit and waits for it, the
// way the original's process manager stops a managed child.
func (s *Supervisor) stopVaultProcess(v *vaultRecord) error {
	v.mu.Lock()
	cmd := v.proc
	v.proc = nil
	v.mu.Unlock()

	if cmd == nil || cmd.Cmd.Process == nil {
		return nil
	}

	if err := cmd.Cmd.Process.Signal(syscall.SIGTERM); err != nil {
		log.WithError(err).Warn("signal vault process failed, killing")
		if killErr := cmd.Cmd.Process.Kill(); killErr != nil {
			return killErr
		}
	}

	done := make(chan struct{})
	go func() {
		_ = cmd.Cmd.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(conf.VaultShutdownTimeout):
		log.Warn("vault process did not exit in time, killing")
		_ = cmd.Cmd.Process.Kill()
		<-done
	}
	if cmd.LogFD != nil {
		_ = cmd.LogFD.Close()
	}
	return nil
}
