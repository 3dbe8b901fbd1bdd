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
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"

	"github.com/vaultmesh/vaultmesh/conf"
	"github.com/vaultmesh/vaultmesh/utils"
)

const configFileName = "vaultmanager.yaml"

// locateConfigFile looks for configFileName in workingDir first, then
// falls back to the platform's application config directory. If
// neither has one, it returns the working directory candidate so the
// caller can write a fresh file there.
func locateConfigFile(workingDir string) (path string, found bool) {
	candidate := filepath.Join(workingDir, configFileName)
	if utils.Exist(candidate) {
		return candidate, true
	}

	if appDir, err := os.UserConfigDir(); err == nil {
		fallback := filepath.Join(appDir, "vaultmanager", configFileName)
		if utils.Exist(fallback) {
			return fallback, true
		}
	}

	return candidate, false
}

// defaultConfig builds the config written the first time the
// supervisor runs in a fresh working directory.
func defaultConfig(workingDir string) *conf.Config {
	return &conf.Config{
		WorkingRoot:                workingDir,
		VaultBin:                   filepath.Join(workingDir, "vault"),
		UpdateCheckIntervalSeconds: int64(conf.DefaultUpdateInterval.Seconds()),
	}
}

// loadOrInitConfig implements the startup config-resolution rule: load
// an existing file, or synthesize and persist a fresh one.
func loadOrInitConfig(workingDir string) (*conf.Config, string, error) {
	path, found := locateConfigFile(workingDir)
	if found {
		cfg, err := conf.LoadConfig(path)
		if err != nil {
			return nil, "", err
		}
		return cfg, path, nil
	}

	cfg := defaultConfig(workingDir)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, "", err
	}
	if err := conf.SaveConfig(path, cfg); err != nil {
		return nil, "", err
	}
	log.WithField("path", path).Info("wrote fresh supervisor config")
	return cfg, path, nil
}

// ensureBootstrapFile copies bootstrap-global.dat into a per-vault
// bootstrap-<short-id>.dat on first use. A no-op if the per-vault
// file already exists.
func ensureBootstrapFile(workingRoot, shortID string) error {
	global := filepath.Join(workingRoot, "bootstrap-global.dat")
	if !utils.Exist(global) {
		// Nothing to seed from yet; the vault starts with no bootstrap
		// peers and relies on --peer instead.
		return nil
	}

	perVault := filepath.Join(workingRoot, "bootstrap-"+shortID+".dat")
	if utils.Exist(perVault) {
		return nil
	}

	_, err := utils.CopyFile(global, perVault)
	return err
}
