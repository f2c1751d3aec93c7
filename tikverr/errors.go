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

// Package tikverr declares the typed errors a region store client
// surfaces to its caller, as opposed to the ones it recovers from
// internally. Callers are expected to errors.As onto these rather than
// match on strings.
package tikverr

import (
	"fmt"

	"github.com/pingcap/kvproto/pkg/errorpb"
	"github.com/pingcap/kvproto/pkg/kvrpcpb"
)

// ErrBodyMissing is returned when an RPC completes without a transport
// error but the response body is nil. The caller must rebuild its client
// before retrying. The client's region entry is not evicted from the
// region manager when this error is returned.
type ErrBodyMissing struct {
	Method string
}

func (e ErrBodyMissing) Error() string {
	return fmt.Sprintf("%s response missing body", e.Method)
}

// ErrRegionSplit describes a region whose key range changed underneath
// the session. No operation in regionstore returns it: a not-leader
// error that reveals a changed range surfaces as ErrRegionException.
type ErrRegionSplit struct {
	RegionID uint64
}

func (e ErrRegionSplit) Error() string {
	return fmt.Sprintf("region %d key range changed, rebuild client", e.RegionID)
}

// ErrRegionException wraps a region error that this client gave up
// recovering from on behalf of the caller (batch/raw operations do not
// refresh routing on region error; see regionstore.Client.BatchGet/Scan).
type ErrRegionException struct {
	Inner *errorpb.Error
}

func (e ErrRegionException) Error() string {
	return fmt.Sprintf("region error: %s", e.Inner.String())
}

// ErrKeyException wraps a non-lock key error. The transaction layer
// above decides whether to retry the whole transaction.
type ErrKeyException struct {
	Inner *kvrpcpb.KeyError
}

func (e ErrKeyException) Error() string {
	return fmt.Sprintf("key error: %s", e.Inner.String())
}

// ErrRawKeyException wraps the plain error string a raw KV RPC returns.
type ErrRawKeyException struct {
	Message string
}

func (e ErrRawKeyException) Error() string {
	return e.Message
}

// ErrBackoffExhausted is returned once a Backoffer's time budget runs
// out; it always terminates a call as a timeout-class error.
type ErrBackoffExhausted struct {
	Budget     int
	TotalSlept int
	Cause      error
}

func (e *ErrBackoffExhausted) Error() string {
	return fmt.Sprintf("backoff budget of %dms exhausted after sleeping %dms, last cause: %v",
		e.Budget, e.TotalSlept, e.Cause)
}

func (e *ErrBackoffExhausted) Unwrap() error { return e.Cause }
