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
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"time"

	log "github.com/sirupsen/logrus"
)

// versionedNameRE matches "<app>_<platform>_v<major>.<minor>.<patch>"
// version filenames.
var versionedNameRE = regexp.MustCompile(`^([^_]+)_([^_]+)_v(\d+)\.(\d+)\.(\d+)$`)

type versionedFile struct {
	name              string
	major, minor, pat int
}

func (a versionedFile) less(b versionedFile) bool {
	if a.major != b.major {
		return a.major < b.major
	}
	if a.minor != b.minor {
		return a.minor < b.minor
	}
	return a.pat < b.pat
}

// latestVersionedFile scans dir for files named "<app>_<platform>_v<MM>.<mm>.<pp>"
// and returns the one with the highest semantic version, or ok=false
// if none match.
func latestVersionedFile(dir, app string) (name string, ok bool) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", false
	}

	var best *versionedFile
	for _, e := range entries {
		m := versionedNameRE.FindStringSubmatch(e.Name())
		if m == nil || m[1] != app {
			continue
		}
		c := versionedFile{e.Name(), atoi(m[3]), atoi(m[4]), atoi(m[5])}
		if best == nil || best.less(c) {
			best = &c
		}
	}
	if best == nil {
		return "", false
	}
	return best.name, true
}

func atoi(s string) int {
	n := 0
	for _, r := range s {
		n = n*10 + int(r-'0')
	}
	return n
}

// armUpdateTimer (re)starts the periodic update check with the
// current interval, canceling any timer already running.
func (s *Supervisor) armUpdateTimer() {
	s.updateMu.Lock()
	defer s.updateMu.Unlock()

	if s.updateTimer != nil {
		s.updateTimer.Stop()
	}
	interval := s.updateInterval
	if interval <= 0 {
		return
	}
	var t *time.Timer
	t = time.AfterFunc(interval, func() {
		s.runUpdateCheck()
		s.updateMu.Lock()
		defer s.updateMu.Unlock()
		if s.updateTimer == t {
			t.Reset(s.updateInterval)
		}
	})
	s.updateTimer = t
}

// disarmUpdateTimer cancels the update timer during shutdown; the
// handler, if already firing, completes its check without
// rescheduling, because a handler only rearms while its timer is
// still the current one.
func (s *Supervisor) disarmUpdateTimer() {
	s.updateMu.Lock()
	defer s.updateMu.Unlock()
	if s.updateTimer != nil {
		s.updateTimer.Stop()
		s.updateTimer = nil
	}
}

// runUpdateCheck refreshes the global bootstrap file, then for each
// tracked binary name, finds the latest local versioned file and asks
// the downloader whether a newer one exists.
func (s *Supervisor) runUpdateCheck() {
	if _, err := s.downloader.RefreshBootstrap(s.config.WorkingRoot); err != nil {
		log.WithError(err).Warn("refresh bootstrap failed")
	}

	for _, app := range []string{"app", "vault", "vault-manager"} {
		current, ok := latestVersionedFile(s.config.UpdateSourceDir, app)
		if !ok {
			continue
		}
		newVersion, hasUpdate, err := s.downloader.LatestVersion(app, current)
		if err != nil {
			log.WithField("app", app).WithError(err).Warn("check latest version failed")
			continue
		}
		if !hasUpdate {
			continue
		}
		log.WithFields(log.Fields{"app": app, "version": newVersion}).Info("newer version available")
		if runtime.GOOS != "windows" {
			s.refreshSymlink(app, newVersion)
		}
	}
}

// refreshSymlink points config-dir/<app> at the newly discovered
// versioned binary. POSIX-only: symlinks aren't portable to Windows.
func (s *Supervisor) refreshSymlink(app, version string) {
	target := filepath.Join(s.config.UpdateSourceDir, fmt.Sprintf("%s_%s_%s", app, runtime.GOOS, version))
	link := filepath.Join(s.config.WorkingRoot, app)

	_ = os.Remove(link)
	if err := os.Symlink(target, link); err != nil {
		log.WithFields(log.Fields{"app": app, "target": target}).WithError(err).Warn("refresh symlink failed")
	}
}
