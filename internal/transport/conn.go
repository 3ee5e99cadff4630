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

// Package transport carries delimited text messages over TCP connections.
//
// Writers end every message with a NUL byte. Readers accept either NUL or a
// newline as the terminator and drop a trailing carriage return, so peers
// speaking either convention interoperate.
package transport

import (
	"bufio"
	"bytes"
	"io"
	"net"
	"strings"
	"time"

	"evalsocket.dev/evalsocket/internal/protocol"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	// DefaultMaxMessageBytes is the longest message accepted, terminator excluded.
	DefaultMaxMessageBytes = 8192

	terminator = '\x00'
)

var (
	logger = logrus.WithFields(logrus.Fields{
		"app":       "evalsocket",
		"component": "transport",
	})
)

// Conn is one side of an established connection.
type Conn interface {
	// Send writes msg followed by the terminator. A message over the limit or
	// holding a terminator is refused before anything is written, with an
	// error matching protocol.ErrMessageTooLarge or protocol.ErrMalformed.
	Send(msg string) error
	// Receive blocks for the next non-empty message. It returns io.EOF once the
	// peer has closed the connection.
	Receive() (string, error)
	// SetDeadline bounds pending and future Send and Receive calls. The zero
	// time removes the bound.
	SetDeadline(t time.Time) error
	RemoteAddr() string
	Close() error
}

type tcpConn struct {
	conn    net.Conn
	scanner *bufio.Scanner
	max     int
}

func newConn(c net.Conn, maxMessageBytes int) *tcpConn {
	if maxMessageBytes <= 0 {
		maxMessageBytes = DefaultMaxMessageBytes
	}
	scanner := bufio.NewScanner(c)
	initial := 4096
	if maxMessageBytes+1 < initial {
		initial = maxMessageBytes + 1
	}
	// One extra byte so a message of exactly maxMessageBytes fits with its terminator.
	scanner.Buffer(make([]byte, 0, initial), maxMessageBytes+1)
	scanner.Split(splitMessages)
	return &tcpConn{
		conn:    c,
		scanner: scanner,
		max:     maxMessageBytes,
	}
}

func (c *tcpConn) Send(msg string) error {
	if len(msg) > c.max {
		return errors.Wrapf(protocol.ErrMessageTooLarge, "%d bytes exceeds the limit of %d", len(msg), c.max)
	}
	if strings.ContainsAny(msg, "\x00\n") {
		return errors.Wrap(protocol.ErrMalformed, "message contains a terminator")
	}
	buf := make([]byte, 0, len(msg)+1)
	buf = append(buf, msg...)
	buf = append(buf, terminator)
	if _, err := c.conn.Write(buf); err != nil {
		return errors.Wrapf(err, "send to %s failed", c.RemoteAddr())
	}
	return nil
}

func (c *tcpConn) Receive() (string, error) {
	for c.scanner.Scan() {
		if msg := c.scanner.Text(); msg != "" {
			return msg, nil
		}
	}
	err := c.scanner.Err()
	if err == nil {
		return "", io.EOF
	}
	if errors.Is(err, bufio.ErrTooLong) {
		return "", errors.Wrapf(protocol.ErrMessageTooLarge, "message from %s exceeds the limit of %d bytes", c.RemoteAddr(), c.max)
	}
	return "", errors.Wrapf(err, "receive from %s failed", c.RemoteAddr())
}

func (c *tcpConn) SetDeadline(t time.Time) error {
	return c.conn.SetDeadline(t)
}

func (c *tcpConn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}

func (c *tcpConn) Close() error {
	return c.conn.Close()
}

// splitMessages is a bufio.SplitFunc cutting at NUL or newline.
func splitMessages(data []byte, atEOF bool) (int, []byte, error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\x00\n"); i >= 0 {
		return i + 1, dropCR(data[:i]), nil
	}
	// A peer that closes without a terminator still delivers its last message.
	if atEOF {
		return len(data), dropCR(data), nil
	}
	return 0, nil, nil
}

func dropCR(data []byte) []byte {
	if len(data) > 0 && data[len(data)-1] == '\r' {
		return data[:len(data)-1]
	}
	return data
}

// IsClosed reports whether err means the connection or listener was closed,
// either by the peer or locally.
func IsClosed(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed)
}
