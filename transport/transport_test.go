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
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vaultmesh/vaultmesh/utils"
)

func testEndpoint(t *testing.T) string {
	ports, err := utils.GetRandomPorts("127.0.0.1", 12000, 22000, 1)
	require.NoError(t, err)
	return fmt.Sprintf("127.0.0.1:%d", ports[0])
}

func startTestListener(t *testing.T, h Handler) *Listener {
	return startTestListenerWithError(t, h, nil)
}

func startTestListenerWithError(t *testing.T, h Handler, onError ErrorFunc) *Listener {
	l := New(h, nil, 2, onError)
	cond := l.StartListening(testEndpoint(t))
	require.Equal(t, Success, cond)
	t.Cleanup(l.StopListening)
	return l
}

func TestRoundTrip(t *testing.T) {
	l := startTestListener(t, func(payload []byte, peer net.Addr) ([]byte, time.Duration) {
		echoed := append([]byte("echo:"), payload...)
		return echoed, ImmediateTimeout
	})

	resp, cond := Send(l.Addr().String(), []byte("hello"), time.Second)
	require.Equal(t, Success, cond)
	require.Equal(t, "echo:hello", string(resp))
}

func TestRoundTripKeepsReading(t *testing.T) {
	var calls int
	l := startTestListener(t, func(payload []byte, peer net.Addr) ([]byte, time.Duration) {
		calls++
		return []byte("ack"), StallTimeout
	})

	conn, err := net.DialTimeout("tcp", l.Addr().String(), time.Second)
	require.NoError(t, err)
	defer conn.Close()

	for i := 0; i < 2; i++ {
		require.NoError(t, writeFrame(conn, []byte("ping")))
		conn.SetReadDeadline(time.Now().Add(time.Second))
		resp, cond := readFrame(conn)
		require.Equal(t, Success, cond)
		require.Equal(t, "ack", string(resp))
	}
	require.Equal(t, 2, calls)
}

func TestOversizeMessageClosesWithoutDispatch(t *testing.T) {
	dispatched := false
	var reportedCode Condition
	var reportedEndpoint string
	l := startTestListenerWithError(t, func(payload []byte, peer net.Addr) ([]byte, time.Duration) {
		dispatched = true
		return nil, ImmediateTimeout
	}, func(code Condition, endpoint string) {
		reportedCode = code
		reportedEndpoint = endpoint
	})

	conn, err := net.DialTimeout("tcp", l.Addr().String(), time.Second)
	require.NoError(t, err)
	defer conn.Close()

	var sizeBuf [4]byte
	binary.BigEndian.PutUint32(sizeBuf[:], MaxTransportMessageSize+1)
	_, err = conn.Write(sizeBuf[:])
	require.NoError(t, err)

	// The server closes without reading the (never-sent) body or
	// writing any response.
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 1)
	_, err = conn.Read(buf)
	require.Error(t, err)
	require.False(t, dispatched)

	require.Eventually(t, func() bool { return reportedCode == MessageSizeTooLarge }, time.Second, 10*time.Millisecond)
	require.NotEmpty(t, reportedEndpoint)
}

// TestSendRejectsOversizePayloadWithoutDialing covers the sender-side
// half of the same invariant: a payload over MaxTransportMessageSize
// never reaches the network at all, let alone a peer — Send fails
// before dialing, against an address nothing is listening on.
func TestSendRejectsOversizePayloadWithoutDialing(t *testing.T) {
	oversized := make([]byte, MaxTransportMessageSize+1)
	resp, cond := Send("127.0.0.1:1", oversized, time.Second)
	require.Equal(t, MessageSizeTooLarge, cond)
	require.Nil(t, resp)
}

// TestSendOversizeResponseReportsOnError covers the sender-side guard
// inside writeFrame itself, exercised from the server's response path:
// a handler that tries to write back an oversized response never puts
// bytes on the wire and the listener's on_error callback observes
// MessageSizeTooLarge.
func TestSendOversizeResponseReportsOnError(t *testing.T) {
	var reportedCode Condition
	l := startTestListenerWithError(t, func(payload []byte, peer net.Addr) ([]byte, time.Duration) {
		return make([]byte, MaxTransportMessageSize+1), ImmediateTimeout
	}, func(code Condition, endpoint string) {
		reportedCode = code
	})

	_, cond := Send(l.Addr().String(), []byte("hi"), time.Second)
	require.Equal(t, ReceiveFailure, cond)
	require.Eventually(t, func() bool { return reportedCode == MessageSizeTooLarge }, time.Second, 10*time.Millisecond)
}

func TestStartListeningRejectsPortZero(t *testing.T) {
	l := New(func(payload []byte, peer net.Addr) ([]byte, time.Duration) {
		return nil, ImmediateTimeout
	}, nil, 1, nil)
	cond := l.StartListening("127.0.0.1:0")
	require.Equal(t, InvalidPort, cond)

	second := New(nil, nil, 1, nil)
	badCond := second.StartListening("bad-endpoint")
	require.Equal(t, InvalidAddress, badCond)
}

func TestStartListeningTwiceFails(t *testing.T) {
	l := startTestListener(t, func(payload []byte, peer net.Addr) ([]byte, time.Duration) {
		return nil, ImmediateTimeout
	})
	cond := l.StartListening(l.Addr().String())
	require.Equal(t, AlreadyStarted, cond)
}
