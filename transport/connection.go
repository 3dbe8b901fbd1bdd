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
	"encoding/binary"
	"errors"
	"io"
	"net"
	"time"

	log "github.com/sirupsen/logrus"
)

// serve runs the full ReadingSize -> ReadingData -> Dispatching ->
// Writing -> (loop | Closing) machine for one accepted connection. It
// owns the socket exclusively for its lifetime, so every operation
// below is naturally serialized — there is no need for a lock.
func (l *Listener) serve(conn net.Conn) {
	peer := conn.RemoteAddr()
	defer func() {
		_ = conn.Close()
		if l.metrics != nil {
			l.metrics.ConnectionsActive.Dec()
		}
	}()

	for {
		conn.SetReadDeadline(time.Now().Add(StallTimeout))

		payload, cond := readFrame(conn)
		if cond != Success {
			if l.metrics != nil {
				l.metrics.Errors.WithLabelValues(cond.String()).Inc()
			}
			l.reportError(cond, peer.String())
			log.WithField("peer", peer).WithField("condition", cond.String()).Debug("connection closing")
			return
		}
		if l.metrics != nil {
			l.metrics.BytesRead.Add(float64(len(payload)))
		}

		done := make(chan struct{})
		var resp []byte
		var respTimeout time.Duration
		l.dispatch <- func() {
			defer close(done)
			if l.metrics != nil {
				l.metrics.MessagesDispatched.Inc()
			}
			resp, respTimeout = l.handler(payload, peer)
		}
		<-done

		if len(resp) > 0 {
			conn.SetWriteDeadline(time.Now().Add(writeTimeout(len(resp))))
			if err := writeFrame(conn, resp); err != nil {
				cond := SendFailure
				if err == errPayloadTooLarge {
					cond = MessageSizeTooLarge
				}
				if l.metrics != nil {
					l.metrics.Errors.WithLabelValues(cond.String()).Inc()
				}
				l.reportError(cond, peer.String())
				return
			}
			if l.metrics != nil {
				l.metrics.BytesWritten.Add(float64(len(resp)))
			}
		}

		if respTimeout == ImmediateTimeout {
			return
		}
	}
}

// readFrame reads one 4-byte big-endian length prefix followed by
// that many payload bytes, in MaxTransportChunkSize slices. A
// declared length over MaxTransportMessageSize closes the connection
// with MessageSizeTooLarge without reading the body.
func readFrame(r io.Reader) ([]byte, Condition) {
	var sizeBuf [4]byte
	if _, err := io.ReadFull(r, sizeBuf[:]); err != nil {
		if isTimeout(err) {
			return nil, ReceiveTimeout
		}
		return nil, ReceiveFailure
	}

	size := binary.BigEndian.Uint32(sizeBuf[:])
	if size > MaxTransportMessageSize {
		return nil, MessageSizeTooLarge
	}

	buf := make([]byte, size)
	var read uint32
	for read < size {
		end := read + MaxTransportChunkSize
		if end > size {
			end = size
		}
		n, err := io.ReadFull(r, buf[read:end])
		read += uint32(n)
		if err != nil {
			if isTimeout(err) {
				return nil, ReceiveTimeout
			}
			return nil, ReceiveFailure
		}
	}
	return buf, Success
}

// errPayloadTooLarge signals that writeFrame refused to send a
// payload over MaxTransportMessageSize. It never reaches the wire —
// the length prefix itself is rejected before the first byte is
// written, matching readFrame's receiver-side check.
var errPayloadTooLarge = errors.New("transport: payload exceeds MaxTransportMessageSize")

// writeFrame writes a 4-byte big-endian length prefix followed by
// payload, the mirror of readFrame. A payload over
// MaxTransportMessageSize is rejected before any bytes go out.
func writeFrame(w io.Writer, payload []byte) error {
	if len(payload) > MaxTransportMessageSize {
		return errPayloadTooLarge
	}
	var sizeBuf [4]byte
	binary.BigEndian.PutUint32(sizeBuf[:], uint32(len(payload)))
	if _, err := w.Write(sizeBuf[:]); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

func isTimeout(err error) bool {
	ne, ok := err.(net.Error)
	return ok && ne.Timeout()
}

// Send dials addr, writes payload as a single framed message, and
// waits for one framed response within timeout. It is the client half
// of the transport: Connecting while dialing, Writing the request,
// ReadingSize/ReadingData for the response. A payload over
// MaxTransportMessageSize is rejected with MessageSizeTooLarge before
// any connection is even opened, so no part of an oversized message
// ever reaches the peer.
func Send(addr string, payload []byte, timeout time.Duration) ([]byte, Condition) {
	if len(payload) > MaxTransportMessageSize {
		return nil, MessageSizeTooLarge
	}
	if timeout <= 0 {
		timeout = DefaultInitialTimeout
	}

	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, SendFailure
	}
	defer conn.Close()

	conn.SetWriteDeadline(time.Now().Add(writeTimeout(len(payload))))
	if err := writeFrame(conn, payload); err != nil {
		if err == errPayloadTooLarge {
			return nil, MessageSizeTooLarge
		}
		return nil, SendFailure
	}

	conn.SetReadDeadline(time.Now().Add(timeout))
	resp, cond := readFrame(conn)
	if cond != Success {
		return nil, cond
	}
	return resp, Success
}
