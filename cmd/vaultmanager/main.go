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

package main

import (
	"flag"
	"os"

	"github.com/vaultmesh/vaultmesh/supervisor"
	"github.com/vaultmesh/vaultmesh/utils"
	"github.com/vaultmesh/vaultmesh/utils/log"
)

var (
	workingDir string
	logLevel   string
)

func init() {
	flag.StringVar(&workingDir, "working_root", ".", "supervisor working directory")
	flag.StringVar(&logLevel, "log_level", "info", "log level: debug, info, warn, error")
}

func main() {
	flag.Parse()
	log.SetStringLevel(logLevel, log.InfoLevel)

	root := utils.HomeDirExpand(workingDir)
	s, err := supervisor.New(root, nil)
	if err != nil {
		log.Fatalf("init vault supervisor failed: %v", err)
	}

	if err := s.Start(); err != nil {
		log.Fatalf("start vault supervisor failed: %v", err)
	}
	log.Info("vault supervisor started")

	<-utils.WaitForExit()
	log.Info("vault supervisor shutting down")
	s.Stop()
	os.Exit(0)
}
