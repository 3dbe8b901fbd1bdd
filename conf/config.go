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

import (
	"io/ioutil"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"
)

// Config holds the supervisor's statically-configured, rarely-changing
// settings plus the one frequently-changing scalar (the update check
// interval). The per-vault record table is queryable and churns on
// every StartVault/StopVault, so it lives in the sqlite side instead;
// see the storage package and supervisor.vaultRecord.
type Config struct {
	// IsTestMode is parsed from the config file; the supervisor does
	// not read it.
	IsTestMode bool `yaml:"IsTestMode"`
	// WorkingRoot is the supervisor's own data directory: bootstrap
	// file, sqlite table, per-vault subdirectories.
	WorkingRoot string `yaml:"WorkingRoot"`
	// VaultBin is the path to the vault child process executable.
	VaultBin string `yaml:"VaultBin"`
	// MasterKeyFile optionally names a master key file. It is parsed
	// from the config file; the supervisor does not read it and keeps
	// no keystore files.
	MasterKeyFile string `yaml:"MasterKeyFile"`
	// UpdateCheckIntervalSeconds is how often the supervisor polls for
	// a newer vault binary. Zero disables the checker.
	UpdateCheckIntervalSeconds int64 `yaml:"UpdateCheckIntervalSeconds"`
	// UpdateSourceDir is the directory the update checker scans for
	// version-named vault binaries.
	UpdateSourceDir string `yaml:"UpdateSourceDir"`
}

// LoadConfig reads and parses the YAML config file at configPath.
func LoadConfig(configPath string) (config *Config, err error) {
	configBytes, err := ioutil.ReadFile(configPath)
	if err != nil {
		log.WithField("path", configPath).WithError(err).Error("read config file failed")
		return
	}
	config = &Config{}
	if err = yaml.Unmarshal(configBytes, config); err != nil {
		log.WithError(err).Error("unmarshal config file failed")
		return nil, err
	}
	return
}

// SaveConfig writes config back to configPath as YAML. The supervisor
// calls this when it writes a fresh config and after an update-interval
// change; the vault set is kept in the sqlite store, not here.
func SaveConfig(configPath string, config *Config) (err error) {
	out, err := yaml.Marshal(config)
	if err != nil {
		log.WithError(err).Error("marshal config failed")
		return err
	}
	if err = ioutil.WriteFile(configPath, out, 0644); err != nil {
		log.WithField("path", configPath).WithError(err).Error("write config file failed")
		return err
	}
	return nil
}
