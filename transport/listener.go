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

package transport

import (
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// Handler is the application dispatch callback: given a decoded
// message payload and the peer's address, it returns the response
// bytes to write back (nil/empty means "no response, close") and the
// timeout governing the next read, or ImmediateTimeout to close
// immediately after writing.
type Handler func(payload []byte, peer net.Addr) (response []byte, responseTimeout time.Duration)

// ErrorFunc is the on_error callback every transport error is
// reported through, alongside the endpoint it occurred on (a peer
// address for a connection-level error, or the bound endpoint for a
// listen/bind failure). May be nil, in which case errors are only
// logged/metered.
type ErrorFunc func(code Condition, endpoint string)

// Listener multiplexes many short-lived request/response connections
// behind a single accept loop. Each accepted connection runs its own
// goroutine — the Go stand-in for the original's per-connection
// strand — while application dispatch is handed to a bounded worker
// pool so a slow handler cannot stall other connections' read loops.
type Listener struct {
	handler Handler
	metrics *Metrics
	onError ErrorFunc

	mu       sync.Mutex
	ln       net.Listener
	started  bool
	stopCh   chan struct{}
	wg       sync.WaitGroup
	dispatch chan func()
}

// New builds a Listener dispatching decoded messages to handler.
// metrics may be nil to skip instrumentation. dispatchWorkers bounds
// the application-dispatch worker pool; a sensible default is used
// when 0. onError may be nil to skip error reporting.
func New(handler Handler, metrics *Metrics, dispatchWorkers int, onError ErrorFunc) *Listener {
	if dispatchWorkers <= 0 {
		dispatchWorkers = 8
	}
	l := &Listener{
		handler:  handler,
		metrics:  metrics,
		onError:  onError,
		dispatch: make(chan func(), 256),
	}
	for i := 0; i < dispatchWorkers; i++ {
		go l.dispatchWorker()
	}
	return l
}

// reportError invokes onError, if set, synchronously on the caller's
// goroutine.
func (l *Listener) reportError(code Condition, endpoint string) {
	if l.onError != nil {
		l.onError(code, endpoint)
	}
}

func (l *Listener) dispatchWorker() {
	for fn := range l.dispatch {
		fn()
	}
}

// StartListening binds endpoint and begins accepting connections.
// Returns AlreadyStarted if called twice on the same Listener, or
// InvalidPort if endpoint names port 0.
func (l *Listener) StartListening(endpoint string) Condition {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.started {
		return AlreadyStarted
	}

	_, portStr, err := net.SplitHostPort(endpoint)
	if err != nil {
		return InvalidAddress
	}
	if port, err := strconv.Atoi(portStr); err != nil || port == 0 {
		return InvalidPort
	}

	ln, err := net.Listen("tcp", endpoint)
	if err != nil {
		log.WithField("endpoint", endpoint).WithError(err).Error("listen failed")
		cond := ListenError
		if strings.Contains(err.Error(), "bind") {
			cond = BindError
		}
		l.reportError(cond, endpoint)
		return cond
	}

	l.ln = ln
	l.started = true
	l.stopCh = make(chan struct{})
	log.WithField("endpoint", endpoint).Info("transport listening")

	l.wg.Add(1)
	go l.acceptLoop()

	return Success
}

// StopListening closes the acceptor and lets existing connections
// drain on their own; it does not forcibly close them.
func (l *Listener) StopListening() {
	l.mu.Lock()
	if !l.started {
		l.mu.Unlock()
		return
	}
	l.started = false
	close(l.stopCh)
	_ = l.ln.Close()
	l.mu.Unlock()

	l.wg.Wait()
}

// Addr returns the bound local address, valid once StartListening has
// succeeded.
func (l *Listener) Addr() net.Addr {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ln == nil {
		return nil
	}
	return l.ln.Addr()
}

func (l *Listener) acceptLoop() {
	defer l.wg.Done()
	for {
		conn, err := l.ln.Accept()
		if err != nil {
			select {
			case <-l.stopCh:
				return
			default:
				log.WithError(err).Error("accept failed")
				return
			}
		}
		if l.metrics != nil {
			l.metrics.ConnectionsAccepted.Inc()
			l.metrics.ConnectionsActive.Inc()
		}
		go l.serve(conn)
	}
}
