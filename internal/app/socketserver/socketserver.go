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

// Package socketserver is the evaluation server command.
package socketserver

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"

	"evalsocket.dev/evalsocket/internal/config"
	"evalsocket.dev/evalsocket/internal/evaluator"
	"evalsocket.dev/evalsocket/internal/evaluator/toysocket"
	"evalsocket.dev/evalsocket/internal/logging"
	"evalsocket.dev/evalsocket/internal/server"
	"evalsocket.dev/evalsocket/internal/signal"
	"evalsocket.dev/evalsocket/internal/telemetry"
	"evalsocket.dev/evalsocket/internal/transport"
	"evalsocket.dev/evalsocket/internal/util"
	"evalsocket.dev/evalsocket/internal/util/netlistener"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var (
	logger = logrus.WithFields(logrus.Fields{
		"app":       "evalsocket",
		"component": "app.socketserver",
	})
)

// NewCommand returns the socketserver command. Its positional arguments
// match the C and Python evaluator servers: PORT, then optionally
// "silent".
func NewCommand() *cobra.Command {
	var configFiles []string
	cmd := &cobra.Command{
		Use:   "socketserver [PORT] [silent]",
		Short: "Serve evaluation requests over a socket",
		Long: `Serves objective and constraint evaluations of the registered suites over TCP.
One client is served at a time. RESET ends a session and SHUTDOWN stops the server.`,
		Example: `  # Listen on port 7251 without logging every message
  socketserver 7251 silent

  # Same, with Prometheus metrics on :9464/metrics
  socketserver --port 7251 --silent --monitoring-port 9464 --metrics`,
		Args:          cobra.MaximumNArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Read(configFiles...)
			if err != nil {
				return err
			}
			for key, flag := range flagKeys {
				if err := cfg.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
					return errors.Wrapf(err, "cannot bind flag --%s", flag)
				}
			}
			if err := applyArgs(cfg, args); err != nil {
				return err
			}
			logging.ConfigureLogging(cfg)
			logrus.AddHook(telemetry.NewLogLineHook())

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			return Run(ctx, cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringSliceVar(&configFiles, "config", nil, "configuration files, later files override earlier ones")
	flags.String("host", "127.0.0.1", "address to listen on")
	flags.Int("port", 7000, "port to listen on")
	flags.Bool("silent", false, "do not log every message")
	flags.Bool("strict", false, "stop serving on the first failing request")
	flags.Int("max-message-bytes", transport.DefaultMaxMessageBytes, "longest request accepted")
	flags.Int("monitoring-port", 0, "port of the health, configuration and metrics pages, 0 disables them")
	flags.Bool("metrics", false, "serve Prometheus metrics on the monitoring port")
	return cmd
}

// flagKeys maps configuration keys to the flags overriding them.
var flagKeys = map[string]string{
	"server.host":                  "host",
	"server.port":                  "port",
	"server.silent":                "silent",
	"server.strict":                "strict",
	"server.max_message_bytes":     "max-message-bytes",
	"monitoring.port":              "monitoring-port",
	"monitoring.prometheus.enable": "metrics",
}

// applyArgs stores the positional PORT and "silent" arguments in cfg.
func applyArgs(cfg config.Mutable, args []string) error {
	if len(args) > 0 {
		port, err := strconv.Atoi(args[0])
		if err != nil || port < 0 || port > 65535 {
			return fmt.Errorf("invalid port %q", args[0])
		}
		cfg.Set("server.port", port)
	}
	if len(args) > 1 {
		if args[1] == "silent" {
			cfg.Set("server.silent", true)
		} else {
			logger.Warningf("Ignoring input option %s", args[1])
		}
	}
	return nil
}

// Run listens on server.host and server.port and serves until SHUTDOWN, a
// termination signal or the end of ctx.
func Run(ctx context.Context, cfg config.View) error {
	l, err := transport.Listen(cfg.GetString("server.host"), cfg.GetInt("server.port"), cfg.GetInt("server.max_message_bytes"))
	if err != nil {
		return err
	}
	return RunWithListener(ctx, cfg, l)
}

// RunWithListener serves on l. Termination by signal or ctx is not an error.
func RunWithListener(ctx context.Context, cfg config.View, l transport.Listener) error {
	if err := telemetry.Register(); err != nil {
		l.Close()
		return errors.Wrap(err, "cannot register metric views")
	}

	registry := evaluator.NewRegistry()
	if err := toysocket.Register(registry); err != nil {
		l.Close()
		return err
	}
	s := server.New(registry, server.OptionsFromConfig(cfg))
	logger.WithField("suites", registry.Suites()).Info("evaluators registered")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	closer := util.NewMultiClose()
	defer closer.Close()
	wait, terminate := signal.New()
	closer.AddCloseFunc(terminate)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		return s.Serve(gctx, l)
	})
	g.Go(func() error {
		go func() {
			<-gctx.Done()
			terminate()
		}()
		wait()
		if gctx.Err() == nil {
			logger.Info("termination requested")
		}
		cancel()
		return nil
	})

	if port := cfg.GetInt("monitoring.port"); port > 0 {
		srv, ml, err := newMonitoringServer(cfg, port, s.Ready)
		if err != nil {
			cancel()
			g.Wait()
			return err
		}
		closer.AddCloseWithErrorFunc(srv.Close)
		g.Go(func() error {
			logger.WithField("address", ml.Addr().String()).Info("monitoring pages ready")
			if err := srv.Serve(ml); err != nil && err != http.ErrServerClosed {
				return errors.Wrap(err, "monitoring server failed")
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			return srv.Shutdown(context.Background())
		})
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	if err != nil {
		logger.WithError(err).Error("evaluation server stopped")
	} else {
		logger.Info("evaluation server stopped")
	}
	return err
}

func newMonitoringServer(cfg config.View, port int, probes ...func(context.Context) error) (*http.Server, net.Listener, error) {
	mux, err := telemetry.NewMux(cfg, probes...)
	if err != nil {
		return nil, nil, err
	}
	lh, err := netlistener.NewFromHostPort(cfg.GetString("server.host"), port)
	if err != nil {
		return nil, nil, err
	}
	ml, err := lh.Obtain()
	if err != nil {
		return nil, nil, err
	}
	return &http.Server{Handler: mux}, ml, nil
}
