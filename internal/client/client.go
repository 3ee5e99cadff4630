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

// Package client evaluates decision vectors on a remote evaluator. A Client
// owns one connection and remembers the last exchange of each evaluation kind,
// so asking twice in a row for the same evaluation costs one round trip.
package client

import (
	"context"
	"sync"
	"time"

	"evalsocket.dev/evalsocket/internal/protocol"
	"evalsocket.dev/evalsocket/internal/telemetry"
	"evalsocket.dev/evalsocket/internal/transport"
	"github.com/pkg/errors"
	"github.com/rs/xid"
	"github.com/sirupsen/logrus"
	"go.opencensus.io/tag"
)

var (
	logger = logrus.WithFields(logrus.Fields{
		"app":       "evalsocket",
		"component": "client",
	})

	// ErrClosed is returned by calls on a closed client.
	ErrClosed = errors.New("client closed")
)

// Client is a session with one evaluator. Its methods may be called from
// several goroutines but exchanges are serialized.
type Client struct {
	conn    transport.Conn
	encoder *protocol.Encoder
	log     *logrus.Entry

	mu     sync.Mutex
	cache  *responseCache
	broken error
	closed bool
}

// Dial connects to the evaluator described by opts.
func Dial(ctx context.Context, opts Options) (*Client, error) {
	conn, err := transport.Dial(ctx, opts.Host, opts.Port, transport.DialOptions{
		Backoff:         opts.DialBackoff,
		MaxMessageBytes: opts.MaxMessageBytes,
	})
	if err != nil {
		return nil, err
	}
	return New(conn, opts.Precision), nil
}

// New starts a session over an established connection.
func New(conn transport.Conn, precision int) *Client {
	c := &Client{
		conn:    conn,
		encoder: protocol.NewEncoder(precision),
		cache:   newResponseCache(),
	}
	c.log = logger.WithFields(logrus.Fields{
		"session": xid.New().String(),
		"remote":  conn.RemoteAddr(),
	})
	c.log.WithField("precision", c.encoder.Precision()).Debug("session started")
	return c
}

// EvaluateObjectives returns the p.Objectives objective values of x.
func (c *Client) EvaluateObjectives(ctx context.Context, x []float64, p *protocol.Problem) ([]float64, error) {
	return c.evaluate(ctx, protocol.Objectives, x, p)
}

// EvaluateConstraints returns the p.Constraints constraint values of x.
func (c *Client) EvaluateConstraints(ctx context.Context, x []float64, p *protocol.Problem) ([]float64, error) {
	return c.evaluate(ctx, protocol.Constraints, x, p)
}

func (c *Client) evaluate(ctx context.Context, k protocol.Kind, x []float64, p *protocol.Problem) ([]float64, error) {
	request, err := c.encoder.EncodeRequest(p, k, x)
	if err != nil {
		return nil, err
	}
	kindTag := tag.Upsert(telemetry.KeyKind, k.String())

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.usable(); err != nil {
		return nil, err
	}
	if values, ok := c.cache.get(k, request); ok {
		telemetry.RecordUnitMeasurement(ctx, telemetry.CacheHits, kindTag)
		return values, nil
	}
	telemetry.RecordUnitMeasurement(ctx, telemetry.CacheMisses, kindTag)

	start := time.Now()
	response, err := c.roundTrip(ctx, request)
	if err != nil {
		return nil, err
	}
	values, err := protocol.DecodeResponse(response, p.ResultCount(k))
	if err != nil {
		c.log.WithError(err).WithField("request", request).Debug("evaluation failed")
		return nil, err
	}
	telemetry.RecordLatency(ctx, telemetry.RoundTripLatency, start, kindTag)

	c.cache.put(k, request, values)
	return values, nil
}

// roundTrip sends request and waits for its response. A request the
// connection refuses before writing leaves the session intact. Any other
// failure leaves the connection out of step, so the client is marked broken.
func (c *Client) roundTrip(ctx context.Context, request string) (string, error) {
	defer c.bind(ctx)()

	err := c.conn.Send(request)
	if rejected(err) {
		c.log.WithError(err).Debug("request refused before sending")
		return "", err
	}
	if err == nil {
		var response string
		if response, err = c.conn.Receive(); err == nil {
			return response, nil
		}
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		err = errors.Wrap(ctxErr, err.Error())
	} else if deadline, ok := ctx.Deadline(); ok && !time.Now().Before(deadline) {
		// The connection deadline may fire just before the context notices.
		err = errors.Wrap(context.DeadlineExceeded, err.Error())
	}
	c.broken = err
	c.log.WithError(err).Warning("connection to the evaluator failed")
	return "", err
}

// rejected reports whether a Send error was raised before any byte was written.
func rejected(err error) bool {
	return errors.Is(err, protocol.ErrMessageTooLarge) || errors.Is(err, protocol.ErrMalformed)
}

// bind applies the deadline of ctx to the connection and interrupts it when
// ctx is cancelled. The returned func releases both.
func (c *Client) bind(ctx context.Context) func() {
	deadline, _ := ctx.Deadline()
	if err := c.conn.SetDeadline(deadline); err != nil {
		c.log.WithError(err).Debug("cannot set deadline")
	}
	if ctx.Done() == nil {
		return func() {}
	}

	done := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		select {
		case <-ctx.Done():
			// An expired deadline interrupts the pending call.
			c.conn.SetDeadline(time.Unix(1, 0))
		case <-done:
		}
	}()
	return func() {
		close(done)
		<-stopped
	}
}

func (c *Client) usable() error {
	if c.closed {
		return ErrClosed
	}
	if c.broken != nil {
		return errors.Wrap(c.broken, "connection broken")
	}
	return nil
}

// Close tells the evaluator the session is over with a RESET message, then
// closes the connection. The evaluator keeps running for the next session.
func (c *Client) Close() error {
	return c.finish(protocol.Reset)
}

// Shutdown asks the evaluator to terminate, then closes the connection.
func (c *Client) Shutdown() error {
	return c.finish(protocol.Shutdown)
}

func (c *Client) finish(control string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true

	var sendErr error
	if c.broken == nil {
		c.conn.SetDeadline(time.Time{})
		sendErr = c.conn.Send(control)
	}
	c.log.WithField("control", control).Debug("session ended")
	if err := c.conn.Close(); err != nil && sendErr == nil {
		return errors.Wrap(err, "cannot close connection")
	}
	if sendErr != nil {
		return errors.Wrapf(sendErr, "cannot send %s", control)
	}
	return nil
}
