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

// Package config contains convenience functions for reading and managing viper configs.
package config

import (
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

const (
	// EnvPrefix prefixes every environment variable override, eg
	// EVALSOCKET_SERVER_PORT overrides server.port.
	EnvPrefix = "EVALSOCKET"
)

var (
	logger = logrus.WithFields(logrus.Fields{
		"app":       "evalsocket",
		"component": "config",
	})

	defaults = map[string]interface{}{
		"server.host":              "127.0.0.1",
		"server.port":              7000,
		"server.silent":            false,
		"server.strict":            false,
		"server.max_message_bytes": 8192,

		"client.host":              "127.0.0.1",
		"client.precision_x":       8,
		"client.dial_backoff":      "[0.1 1] *1.5 ~0.33 <5",
		"client.max_message_bytes": 8192,

		"logging.format": "text",
		"logging.level":  "info",
		"logging.source": false,

		"monitoring.port":                0,
		"monitoring.reporting_period":    "5s",
		"monitoring.prometheus.enable":   false,
		"monitoring.prometheus.endpoint": "/metrics",
	}
)

// New returns a configuration holding the defaults, overridable from the
// environment.
func New() *viper.Viper {
	cfg := viper.New()
	for k, v := range defaults {
		cfg.SetDefault(k, v)
	}
	cfg.SetEnvPrefix(EnvPrefix)
	cfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	cfg.AutomaticEnv()
	return cfg
}

// Read builds a configuration from the defaults, the environment and the given
// files. Later files override earlier ones. The last file is watched and a log
// line is written whenever it changes.
func Read(files ...string) (*viper.Viper, error) {
	cfg := New()
	for _, f := range files {
		if f == "" {
			continue
		}
		cfg.SetConfigFile(f)
		if err := cfg.MergeInConfig(); err != nil {
			return nil, errors.Wrapf(err, "cannot read config file %s", f)
		}
		logger.WithField("filename", f).Debug("Merged config file")
	}

	if cfg.ConfigFileUsed() != "" {
		cfg.WatchConfig()
		cfg.OnConfigChange(func(event fsnotify.Event) {
			logger.WithFields(logrus.Fields{
				"filename":  event.Name,
				"operation": event.Op,
			}).Info("Server configuration changed.")
		})
	}
	return cfg, nil
}
