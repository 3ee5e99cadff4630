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

// Package server answers evaluation requests arriving over a socket. It
// serves one connection at a time and returns to listening after a client
// resets or disconnects, until a client asks it to shut down.
package server

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"evalsocket.dev/evalsocket/internal/config"
	"evalsocket.dev/evalsocket/internal/evaluator"
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
		"component": "server",
	})

	// ErrTerminated is returned when Serve is called on a server that already stopped.
	ErrTerminated = errors.New("server terminated")
)

// Options tune a Server.
type Options struct {
	// Silent suppresses the per-message log lines. Lifecycle lines are kept.
	Silent bool
	// Strict stops serving on the first request that fails, after answering
	// it with an error line. Otherwise failing requests are answered and the
	// connection stays open.
	Strict bool
}

// OptionsFromConfig reads server.silent and server.strict.
func OptionsFromConfig(cfg config.View) Options {
	return Options{
		Silent: cfg.GetBool("server.silent"),
		Strict: cfg.GetBool("server.strict"),
	}
}

// Server dispatches requests to the evaluators of a registry.
type Server struct {
	registry *evaluator.Registry
	opts     Options
	state    int32
	started  int32

	mu   sync.Mutex
	conn transport.Conn
}

// New returns a server in the Listening state.
func New(registry *evaluator.Registry, opts Options) *Server {
	return &Server{
		registry: registry,
		opts:     opts,
		state:    int32(Listening),
	}
}

// State returns the current lifecycle state.
func (s *Server) State() State {
	return State(atomic.LoadInt32(&s.state))
}

func (s *Server) setState(st State) {
	atomic.StoreInt32(&s.state, int32(st))
}

// Ready fails once the server is terminated. It is meant as a readiness probe.
func (s *Server) Ready(context.Context) error {
	if s.State() == Terminated {
		return ErrTerminated
	}
	return nil
}

func (s *Server) setConn(c transport.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn = c
}

func (s *Server) closeConn() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		s.conn.Close()
	}
}

// Serve accepts clients on l one after another. It returns nil after a
// SHUTDOWN message, ctx.Err() once ctx is done, and otherwise the error that
// stopped it. l is closed on return and the server is Terminated.
func (s *Server) Serve(ctx context.Context, l transport.Listener) error {
	if !atomic.CompareAndSwapInt32(&s.started, 0, 1) {
		l.Close()
		return ErrTerminated
	}
	defer s.setState(Terminated)
	defer l.Close()

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			l.Close()
			s.closeConn()
		case <-stop:
		}
	}()

	logger.WithField("address", l.Addr()).Info("evaluation server ready, listening")
	for {
		s.setState(Listening)
		c, err := l.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}

		s.setState(Connected)
		shutdown, err := s.serveConn(ctx, c)
		switch {
		case shutdown:
			return nil
		case ctx.Err() != nil:
			return ctx.Err()
		case err != nil && s.opts.Strict:
			return err
		case err != nil:
			logger.WithError(err).Warning("connection dropped, listening again")
		}
	}
}

// serveConn answers messages on c until the client resets, shuts down or
// the connection fails.
func (s *Server) serveConn(ctx context.Context, c transport.Conn) (shutdown bool, err error) {
	s.setConn(c)
	defer s.setConn(nil)
	defer c.Close()
	if ctx.Err() != nil {
		return false, ctx.Err()
	}

	log := logger.WithFields(logrus.Fields{
		"connection": xid.New().String(),
		"remote":     c.RemoteAddr(),
	})
	telemetry.RecordUnitMeasurement(ctx, telemetry.ConnectionsAccepted)
	log.Info("client connected")

	for {
		msg, err := c.Receive()
		if err != nil {
			if errors.Is(err, io.EOF) {
				log.Info("client disconnected")
				return false, nil
			}
			if errors.Is(err, protocol.ErrMessageTooLarge) {
				// Framing is lost, answer once then drop the connection.
				if sendErr := c.Send(protocol.EncodeError(err)); sendErr != nil {
					log.WithError(sendErr).Debug("cannot report oversized message")
				}
			}
			return false, err
		}
		if !s.opts.Silent {
			log.WithField("message", msg).Info("received message")
		}

		switch {
		case protocol.IsReset(msg):
			telemetry.RecordUnitMeasurement(ctx, telemetry.ControlMessages, tag.Upsert(telemetry.KeyControl, "reset"))
			log.Info("evaluation server reset")
			return false, nil
		case protocol.IsShutdown(msg):
			telemetry.RecordUnitMeasurement(ctx, telemetry.ControlMessages, tag.Upsert(telemetry.KeyControl, "shutdown"))
			log.Info("evaluation server shut down")
			return true, nil
		}

		response, reqErr := s.Handle(ctx, msg)
		if reqErr != nil {
			log.WithError(reqErr).WithField("message", msg).Warning("request failed")
			response = protocol.EncodeError(reqErr)
		}
		if err := c.Send(response); err != nil {
			return false, err
		}
		if !s.opts.Silent {
			log.WithField("response", response).Info("sent response")
		}
		if reqErr != nil && s.opts.Strict {
			return false, reqErr
		}
	}
}

// Handle decodes one request, evaluates it and encodes the response. The
// error is either protocol.ErrMalformed or protocol.ErrUnsupported, possibly
// wrapped, and no response is produced with it.
func (s *Server) Handle(ctx context.Context, msg string) (string, error) {
	start := time.Now()
	req, err := protocol.DecodeRequest(msg)
	if err != nil {
		s.recordFailure(ctx, err)
		return "", err
	}

	tags := []tag.Mutator{tag.Upsert(telemetry.KeySuite, req.Suite), tag.Upsert(telemetry.KeyKind, req.Kind.String())}
	telemetry.RecordUnitMeasurement(ctx, telemetry.MessagesReceived, tags...)
	values, err := s.registry.Evaluate(req)
	if err != nil {
		s.recordFailure(ctx, err)
		return "", err
	}
	response := protocol.EncodeResponse(values)
	telemetry.RecordLatency(ctx, telemetry.EvaluationLatency, start, tags...)
	return response, nil
}

func (s *Server) recordFailure(ctx context.Context, err error) {
	telemetry.RecordUnitMeasurement(ctx, telemetry.EvaluationFailures, tag.Upsert(telemetry.KeyCode, string(protocol.CodeOf(err))))
}
