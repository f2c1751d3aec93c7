// Copyright 2024 TiKV Authors.
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

// Package config carries the handful of knobs the region store client
// recognizes: the default scan row limit, the per-RPC deadline, and the
// structured logger every component below logs through. There is no
// file parsing or environment variable handling here; that layer is out
// of scope (see spec.md §1).
package config

import (
	"time"

	"github.com/pingcap/log"
	"go.uber.org/zap"

	"github.com/tikv/kvstore-client/pkg/utils/logutil"
)

const (
	defaultScanBatchSize = 256
	defaultTimeout       = 2 * time.Second
)

// Config holds the configuration a RegionStoreClient consults on every
// operation.
type Config struct {
	// ScanBatchSize is the row limit used for Scan/RawScan when the
	// caller doesn't supply an explicit limit.
	ScanBatchSize uint32
	// Timeout bounds a single RPC attempt, not the whole retry loop;
	// the Backoffer's budget bounds the latter.
	Timeout time.Duration
	// Log configures the structured logger SetupLogger installs. Its
	// zero value logs at info level to stderr.
	Log log.Config
}

// SetupLogger installs c.Log as the global pingcap/log logger and
// returns the constructed *zap.Logger and its properties, mirroring how
// the teacher wires SetupLogger at process startup.
func SetupLogger(c Config) (*zap.Logger, *log.ZapProperties, error) {
	var logger *zap.Logger
	var props *log.ZapProperties
	if err := logutil.SetupLogger(c.Log, &logger, &props); err != nil {
		return nil, nil, err
	}
	log.ReplaceGlobals(logger, props)
	return logger, props, nil
}

// Option configures a Config.
type Option func(*Config)

// WithScanBatchSize overrides the default scan row limit.
func WithScanBatchSize(n uint32) Option {
	return func(c *Config) { c.ScanBatchSize = n }
}

// WithTimeout overrides the default per-RPC deadline.
func WithTimeout(d time.Duration) Option {
	return func(c *Config) { c.Timeout = d }
}

// Default returns the baseline configuration.
func Default() Config {
	return Config{
		ScanBatchSize: defaultScanBatchSize,
		Timeout:       defaultTimeout,
	}
}

// New builds a Config from Default plus the given options.
func New(opts ...Option) Config {
	c := Default()
	for _, opt := range opts {
		opt(&c)
	}
	return c
}
