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
	"net"
	"strconv"
	"time"

	"evalsocket.dev/evalsocket/internal/expbo"
	"evalsocket.dev/evalsocket/internal/util/netlistener"
	"github.com/cenkalti/backoff"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Listener accepts connections one at a time.
type Listener interface {
	Accept() (Conn, error)
	// Addr is the bound address, with the real port when 0 was requested.
	Addr() string
	Port() int
	Close() error
}

type tcpListener struct {
	listener net.Listener
	port     int
	max      int
}

// Listen binds host and port. maxMessageBytes limits received messages, 0
// selects DefaultMaxMessageBytes.
func Listen(host string, port int, maxMessageBytes int) (Listener, error) {
	lh, err := netlistener.NewFromHostPort(host, port)
	if err != nil {
		return nil, err
	}
	return FromHolder(lh, maxMessageBytes)
}

// FromHolder takes over a listener opened ahead of time.
func FromHolder(lh *netlistener.ListenerHolder, maxMessageBytes int) (Listener, error) {
	l, err := lh.Obtain()
	if err != nil {
		return nil, err
	}
	return &tcpListener{
		listener: l,
		port:     lh.Number(),
		max:      maxMessageBytes,
	}, nil
}

func (l *tcpListener) Accept() (Conn, error) {
	c, err := l.listener.Accept()
	if err != nil {
		return nil, errors.Wrap(err, "accept failed")
	}
	return newConn(c, l.max), nil
}

func (l *tcpListener) Addr() string {
	return l.listener.Addr().String()
}

func (l *tcpListener) Port() int {
	return l.port
}

func (l *tcpListener) Close() error {
	return l.listener.Close()
}

// DialOptions tune Dial.
type DialOptions struct {
	// Backoff is an expbo policy string governing reconnect attempts while
	// the server starts up. Empty means a single attempt.
	Backoff string
	// MaxMessageBytes limits sent and received messages, 0 selects DefaultMaxMessageBytes.
	MaxMessageBytes int
}

// Dial connects to host and port, retrying refused connections according to
// opts.Backoff until ctx is done.
func Dial(ctx context.Context, host string, port int, opts DialOptions) (Conn, error) {
	bo, err := expbo.New(opts.Backoff)
	if err != nil {
		return nil, err
	}

	addr := net.JoinHostPort(host, strconv.Itoa(port))
	var (
		dialer   net.Dialer
		conn     net.Conn
		attempts int
	)
	operation := func() error {
		attempts++
		c, err := dialer.DialContext(ctx, "tcp", addr)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return err
		}
		conn = c
		return nil
	}
	notify := func(err error, next time.Duration) {
		logger.WithFields(logrus.Fields{
			"address": addr,
			"attempt": attempts,
			"retryIn": next,
		}).WithError(err).Debug("connect failed, retrying")
	}

	if err := backoff.RetryNotify(operation, backoff.WithContext(bo, ctx), notify); err != nil {
		return nil, errors.Wrapf(err, "cannot connect to %s after %d attempt(s)", addr, attempts)
	}
	return newConn(conn, opts.MaxMessageBytes), nil
}
