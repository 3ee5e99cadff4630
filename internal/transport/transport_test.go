// Copyright 2019 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package transport

import (
	"context"
	"io"
	"net"
	"strconv"
	"testing"
	"time"

	"evalsocket.dev/evalsocket/internal/protocol"
	"evalsocket.dev/evalsocket/internal/util/netlistener"
	netlistenerTesting "evalsocket.dev/evalsocket/internal/util/netlistener/testing"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func listen(t *testing.T, max int) Listener {
	t.Helper()
	l, err := FromHolder(netlistenerTesting.MustListen(), max)
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l
}

// rawPeer connects a plain TCP socket to l and returns it with the accepted Conn.
func rawPeer(t *testing.T, l Listener) (net.Conn, Conn) {
	t.Helper()
	raw, err := net.Dial("tcp", l.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { raw.Close() })
	c, err := l.Accept()
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return raw, c
}

func TestSendReceive(t *testing.T) {
	require := require.New(t)
	l := listen(t, 0)

	client, err := Dial(context.Background(), "127.0.0.1", l.Port(), DialOptions{})
	require.NoError(err)
	defer client.Close()
	server, err := l.Accept()
	require.NoError(err)
	defer server.Close()

	require.NoError(client.Send("s toy-socket t objectives r 1 f 1 i 1 d 2 x 1.00e+00 2.00e+00"))
	require.NoError(client.Send(protocol.Reset))
	msg, err := server.Receive()
	require.NoError(err)
	require.Equal("s toy-socket t objectives r 1 f 1 i 1 d 2 x 1.00e+00 2.00e+00", msg)
	msg, err = server.Receive()
	require.NoError(err)
	require.Equal(protocol.Reset, msg)

	require.NoError(server.Send("3.0000000000000000e+00 "))
	msg, err = client.Receive()
	require.NoError(err)
	require.Equal("3.0000000000000000e+00 ", msg)

	require.NoError(client.Close())
	_, err = server.Receive()
	require.True(IsClosed(err), "%v", err)
}

func TestReceiveTerminators(t *testing.T) {
	require := require.New(t)
	raw, c := rawPeer(t, listen(t, 0))

	_, err := raw.Write([]byte("first\x00second\nthird\r\n\x00\x00fourth\r\x00last"))
	require.NoError(err)
	require.NoError(raw.(*net.TCPConn).CloseWrite())

	for _, want := range []string{"first", "second", "third", "fourth", "last"} {
		msg, err := c.Receive()
		require.NoError(err)
		require.Equal(want, msg)
	}
	_, err = c.Receive()
	require.Equal(io.EOF, err)
}

func TestSendWritesNulTerminator(t *testing.T) {
	require := require.New(t)
	raw, c := rawPeer(t, listen(t, 0))

	require.NoError(c.Send(protocol.Shutdown))
	buf := make([]byte, len(protocol.Shutdown)+1)
	_, err := io.ReadFull(raw, buf)
	require.NoError(err)
	require.Equal(protocol.Shutdown+"\x00", string(buf))
}

func TestMessageTooLarge(t *testing.T) {
	require := require.New(t)
	raw, c := rawPeer(t, listen(t, 8))

	require.True(errors.Is(c.Send("123456789"), protocol.ErrMessageTooLarge))
	require.NoError(c.Send("12345678"))
	// The refused message left nothing on the wire.
	buf := make([]byte, 9)
	_, err := io.ReadFull(raw, buf)
	require.NoError(err)
	require.Equal("12345678\x00", string(buf))

	_, err = raw.Write([]byte("12345678\x00123456789\x00"))
	require.NoError(err)
	msg, err := c.Receive()
	require.NoError(err)
	require.Equal("12345678", msg)
	_, err = c.Receive()
	require.True(errors.Is(err, protocol.ErrMessageTooLarge), "%v", err)
}

func TestSendRejectsTerminator(t *testing.T) {
	_, c := rawPeer(t, listen(t, 0))
	require.True(t, errors.Is(c.Send("RESET\nSHUTDOWN"), protocol.ErrMalformed))
}

func TestDeadline(t *testing.T) {
	require := require.New(t)
	_, c := rawPeer(t, listen(t, 0))

	require.NoError(c.SetDeadline(time.Now().Add(50 * time.Millisecond)))
	_, err := c.Receive()
	require.Error(err)
	var netErr net.Error
	require.True(errors.As(err, &netErr))
	require.True(netErr.Timeout())
}

func TestDialRetriesUntilListening(t *testing.T) {
	require := require.New(t)
	lh := netlistenerTesting.MustListen()
	port := lh.Number()
	require.NoError(lh.Close())

	accepted := make(chan error, 1)
	go func() {
		time.Sleep(300 * time.Millisecond)
		l, err := Listen("127.0.0.1", port, 0)
		if err != nil {
			accepted <- err
			return
		}
		defer l.Close()
		c, err := l.Accept()
		if err == nil {
			c.Close()
		}
		accepted <- err
	}()

	c, err := Dial(context.Background(), "127.0.0.1", port, DialOptions{Backoff: "[0.05 0.2] *1.5 ~0 <5"})
	require.NoError(err)
	defer c.Close()
	require.NoError(<-accepted)
}

func TestDialFailures(t *testing.T) {
	lh, err := netlistener.NewFromHostPort("127.0.0.1", 0)
	require.NoError(t, err)
	port := lh.Number()
	require.NoError(t, lh.Close())

	t.Run("single attempt", func(t *testing.T) {
		_, err := Dial(context.Background(), "127.0.0.1", port, DialOptions{})
		require.Error(t, err)
		require.Contains(t, err.Error(), "after 1 attempt(s)")
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
		defer cancel()
		start := time.Now()
		_, err := Dial(ctx, "127.0.0.1", port, DialOptions{Backoff: "[0.05 0.05] *1 ~0 <0"})
		require.Error(t, err)
		require.Less(t, time.Since(start), 5*time.Second)
	})

	t.Run("bad back-off", func(t *testing.T) {
		_, err := Dial(context.Background(), "127.0.0.1", port, DialOptions{Backoff: "soon"})
		require.Error(t, err)
	})
}

func TestListenTwice(t *testing.T) {
	l := listen(t, 0)
	_, err := Listen("127.0.0.1", l.Port(), 0)
	require.Error(t, err)
	_, port, err := net.SplitHostPort(l.Addr())
	require.NoError(t, err)
	require.Equal(t, strconv.Itoa(l.Port()), port)
}
