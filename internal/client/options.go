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

package client

import (
	"evalsocket.dev/evalsocket/internal/config"
	"evalsocket.dev/evalsocket/internal/protocol"
	"evalsocket.dev/evalsocket/internal/transport"
)

const (
	// DefaultHost is the loopback address evaluators listen on.
	DefaultHost = "127.0.0.1"
	// DefaultDialBackoff retries for about five seconds while an evaluator starts.
	DefaultDialBackoff = "[0.1 1] *1.5 ~0.33 <5"

	fallbackPort = 7000
)

// suitePorts lists the evaluator port of each known suite.
var suitePorts = map[string]int{
	"toy-socket":          7000,
	"toy-socket-biobj":    7000,
	"rw-top-trumps":       7000,
	"rw-top-trumps-biobj": 7000,
	"rw-mario-gan":        7000,
	"rw-mario-gan-biobj":  7000,
}

// DefaultPort returns the evaluator port of suite. Unknown suites share the
// port of the toy suites.
func DefaultPort(suite string) int {
	if p, ok := suitePorts[suite]; ok {
		return p
	}
	return fallbackPort
}

// Options locate the evaluator and shape the requests sent to it.
type Options struct {
	Host string
	Port int
	// Precision is the number of decimals of real-valued x. Values outside
	// [protocol.MinPrecision, protocol.MaxPrecision] select protocol.DefaultPrecision.
	Precision int
	// DialBackoff is an expbo policy for the initial connection, empty for a single attempt.
	DialBackoff string
	// MaxMessageBytes limits requests and responses alike, 0 selects
	// transport.DefaultMaxMessageBytes. Longer requests are refused locally.
	MaxMessageBytes int
}

// DefaultOptions returns the options of a session on suite.
func DefaultOptions(suite string) Options {
	return Options{
		Host:            DefaultHost,
		Port:            DefaultPort(suite),
		Precision:       protocol.DefaultPrecision,
		DialBackoff:     DefaultDialBackoff,
		MaxMessageBytes: transport.DefaultMaxMessageBytes,
	}
}

// OptionsFromConfig reads the client.* keys. client.port falls back to the
// port of suite and an invalid client.precision_x to the default precision.
func OptionsFromConfig(cfg config.View, suite string) Options {
	opts := DefaultOptions(suite)
	if cfg.IsSet("client.host") {
		opts.Host = cfg.GetString("client.host")
	}
	if cfg.IsSet("client.port") {
		opts.Port = cfg.GetInt("client.port")
	}
	if cfg.IsSet("client.precision_x") {
		p := cfg.GetInt("client.precision_x")
		if protocol.ValidPrecision(p) {
			opts.Precision = p
		} else {
			logger.Warningf("client.precision_x %d is outside [%d, %d], using %d", p, protocol.MinPrecision, protocol.MaxPrecision, protocol.DefaultPrecision)
		}
	}
	if cfg.IsSet("client.dial_backoff") {
		opts.DialBackoff = cfg.GetString("client.dial_backoff")
	}
	if cfg.IsSet("client.max_message_bytes") {
		opts.MaxMessageBytes = cfg.GetInt("client.max_message_bytes")
	}
	return opts
}
