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

// Package errs declares the normalized, RFC-coded errors used by the
// plumbing beneath the region store client: channel dialing, argument
// validation, routing lookups, logger setup and codec helpers. Errors about the
// KV wire protocol itself (region/key errors) live in tikverr, since
// callers need to type-switch on those.
package errs

import "github.com/pingcap/errors"

// client construction / argument errors
var (
	ErrRegionRequired = errors.Normalize("region is required", errors.RFCCodeText("KV:client:ErrRegionRequired"))
	ErrStoreRequired  = errors.Normalize("store is required", errors.RFCCodeText("KV:client:ErrStoreRequired"))
	ErrLeaderRequired = errors.Normalize("region has no leader peer", errors.RFCCodeText("KV:client:ErrLeaderRequired"))
)

// transport errors
var (
	ErrURLParse      = errors.Normalize("parse store address failed", errors.RFCCodeText("KV:grpc:ErrURLParse"))
	ErrGRPCDial      = errors.Normalize("dial store failed", errors.RFCCodeText("KV:grpc:ErrGRPCDial"))
	ErrCloseGRPCConn = errors.Normalize("close store channel failed", errors.RFCCodeText("KV:grpc:ErrCloseGRPCConn"))
)

// routing errors
var (
	ErrStoreNotFound  = errors.Normalize("store %d not found", errors.RFCCodeText("KV:locate:ErrStoreNotFound"))
	ErrRegionNotFound = errors.Normalize("region %d not found", errors.RFCCodeText("KV:locate:ErrRegionNotFound"))
	// ErrRegionUnavailable is returned when the backing discovery
	// service has no region covering a given key at all, as opposed
	// to ErrRegionNotFound's by-id lookup miss.
	ErrRegionUnavailable = errors.Normalize("no region covers key %q", errors.RFCCodeText("KV:locate:ErrRegionUnavailable"))
)

// ambient errors (logging setup, codec helpers)
var (
	ErrInitLogger    = errors.Normalize("initialize logger error", errors.RFCCodeText("KV:logutil:ErrInitLogger"))
	ErrBytesToUint64 = errors.Normalize("invalid data, must 8 bytes, but %d", errors.RFCCodeText("KV:typeutil:ErrBytesToUint64"))
)
