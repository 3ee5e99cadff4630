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

// Package socketctl is the command line client of the evaluation server.
package socketctl

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"evalsocket.dev/evalsocket/internal/client"
	"evalsocket.dev/evalsocket/internal/config"
	"evalsocket.dev/evalsocket/internal/logging"
	"evalsocket.dev/evalsocket/internal/protocol"
	"evalsocket.dev/evalsocket/internal/telemetry"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// clientFlags maps configuration keys to the persistent flags overriding them.
var clientFlags = map[string]string{
	"client.host":         "host",
	"client.port":         "port",
	"client.precision_x":  "precision",
	"client.dial_backoff": "dial-backoff",
}

type rootOptions struct {
	configFiles []string
	suite       string
	stats       bool
}

// NewCommand returns the socketctl command and its subcommands.
func NewCommand() *cobra.Command {
	ro := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "socketctl",
		Short:         "Talk to an evaluation server",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !ro.stats {
				return nil
			}
			return errors.Wrap(telemetry.Register(), "cannot register views")
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if !ro.stats {
				return nil
			}
			defer telemetry.Unregister()
			return telemetry.WriteReport(cmd.ErrOrStderr(), telemetry.ClientViews...)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringSliceVar(&ro.configFiles, "config", nil, "configuration files, later files override earlier ones")
	flags.BoolVar(&ro.stats, "stats", false, "print cache and latency statistics of the session to stderr")
	flags.StringVar(&ro.suite, "suite", "toy-socket", "suite name, selects the default port")
	flags.String("host", client.DefaultHost, "evaluator address")
	flags.Int("port", 0, "evaluator port, 0 uses the port of the suite")
	flags.Int("precision", protocol.DefaultPrecision, "decimals of real-valued x")
	flags.String("dial-backoff", client.DefaultDialBackoff, "connection retry policy, empty for a single attempt")

	cmd.AddCommand(newEvaluateCommand(ro), newControlCommand(ro, "reset"), newControlCommand(ro, "shutdown"))
	return cmd
}

// dial reads the configuration, applies the flags and connects.
func (ro *rootOptions) dial(cmd *cobra.Command) (*client.Client, error) {
	cfg, err := config.Read(ro.configFiles...)
	if err != nil {
		return nil, err
	}
	if err := bindFlags(cfg, cmd); err != nil {
		return nil, err
	}
	logging.ConfigureLogging(cfg)

	opts := client.OptionsFromConfig(cfg, ro.suite)
	if opts.Port == 0 {
		opts.Port = client.DefaultPort(ro.suite)
	}
	return client.Dial(contextOf(cmd), opts)
}

func bindFlags(cfg *viper.Viper, cmd *cobra.Command) error {
	for key, name := range clientFlags {
		flag := cmd.Flags().Lookup(name)
		if flag == nil || !flag.Changed {
			continue
		}
		if err := cfg.BindPFlag(key, flag); err != nil {
			return errors.Wrapf(err, "cannot bind flag --%s", name)
		}
	}
	return nil
}

func contextOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

type evaluateOptions struct {
	kind     string
	count    uint64
	function uint64
	instance uint64
	integers uint64
}

func newEvaluateCommand(ro *rootOptions) *cobra.Command {
	eo := &evaluateOptions{}
	cmd := &cobra.Command{
		Use:   "evaluate [flags] -- X...",
		Short: "Evaluate one decision vector",
		Example: `  # Objective of toy-socket f1, instance 1
  socketctl evaluate -- 0.3 0.4

  # Both constraints of toy-socket f1
  socketctl evaluate --kind constraints --count 2 -- 1 -1`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			x, err := parseVector(args)
			if err != nil {
				return err
			}
			kind, err := protocol.ParseKind(eo.kind)
			if err != nil {
				return err
			}
			p := &protocol.Problem{
				Suite:            ro.suite,
				Function:         eo.function,
				Instance:         eo.instance,
				Dimension:        uint64(len(x)),
				IntegerVariables: eo.integers,
			}
			if kind == protocol.Objectives {
				p.Objectives = eo.count
			} else {
				p.Constraints = eo.count
			}

			c, err := ro.dial(cmd)
			if err != nil {
				return err
			}
			var values []float64
			if kind == protocol.Objectives {
				values, err = c.EvaluateObjectives(contextOf(cmd), x, p)
			} else {
				values, err = c.EvaluateConstraints(contextOf(cmd), x, p)
			}
			closeErr := c.Close()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), strings.TrimSpace(protocol.EncodeResponse(values)))
			return closeErr
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&eo.kind, "kind", protocol.Objectives.String(), "objectives or constraints")
	flags.Uint64Var(&eo.count, "count", 1, "number of values to evaluate")
	flags.Uint64Var(&eo.function, "function", 1, "function id")
	flags.Uint64Var(&eo.instance, "instance", 1, "instance id")
	flags.Uint64Var(&eo.integers, "integers", 0, "number of leading integer variables")
	return cmd
}

func newControlCommand(ro *rootOptions, name string) *cobra.Command {
	short := "End the session so the server waits for the next client"
	if name == "shutdown" {
		short = "Stop the server"
	}
	return &cobra.Command{
		Use:   name,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := ro.dial(cmd)
			if err != nil {
				return err
			}
			if name == "shutdown" {
				return c.Shutdown()
			}
			return c.Close()
		},
	}
}

func parseVector(args []string) ([]float64, error) {
	x := make([]float64, len(args))
	for i, a := range args {
		v, err := strconv.ParseFloat(a, 64)
		if err != nil {
			return nil, fmt.Errorf("x[%d] is not a number: %q", i, a)
		}
		x[i] = v
	}
	return x, nil
}
