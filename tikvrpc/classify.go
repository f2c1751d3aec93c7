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

// Package tikvrpc is the Error Classifier (spec.md §4.2): it partitions
// a wire-level region or key error into the sum-type variants
// regionstore's retry handlers match on, following the re-architecture
// hint in spec.md §9 ("naturally expressed as a sum type with variants
// for each recovery action"). This replaces the Java original's
// KVErrorHandler, which threw typed exceptions instead.
package tikvrpc

import (
	"github.com/pingcap/kvproto/pkg/errorpb"
	"github.com/pingcap/kvproto/pkg/kvrpcpb"
)

// RegionErrorKind enumerates the region-error sub-cases spec.md §4.2
// item 2 names.
type RegionErrorKind int

const (
	// RegionErrNone means the response carried no region error.
	RegionErrNone RegionErrorKind = iota
	// RegionErrNotLeader means the request reached a non-leader peer.
	RegionErrNotLeader
	// RegionErrStoreNotMatch means the channel reached the wrong
	// store for the peer it was meant for.
	RegionErrStoreNotMatch
	// RegionErrMiss covers stale-epoch, region-not-found, and
	// key-not-in-region: the session's routing itself is stale.
	RegionErrMiss
	// RegionErrBusy covers server-is-busy, raft-entry-too-large, and
	// any other region error not covered above.
	RegionErrBusy
)

// RegionErrorInfo is the classified form of an *errorpb.Error.
type RegionErrorInfo struct {
	Kind          RegionErrorKind
	NotLeader     *errorpb.NotLeader
	StoreNotMatch *errorpb.StoreNotMatch
	EpochNotMatch *errorpb.EpochNotMatch
	Raw           *errorpb.Error
}

// ClassifyRegionError partitions e into the sub-cases spec.md §4.2
// dictates a distinct recovery action for.
func ClassifyRegionError(e *errorpb.Error) RegionErrorInfo {
	info := RegionErrorInfo{Raw: e}
	if e == nil {
		info.Kind = RegionErrNone
		return info
	}
	switch {
	case e.GetNotLeader() != nil:
		info.Kind = RegionErrNotLeader
		info.NotLeader = e.GetNotLeader()
	case e.GetStoreNotMatch() != nil:
		info.Kind = RegionErrStoreNotMatch
		info.StoreNotMatch = e.GetStoreNotMatch()
	case e.GetEpochNotMatch() != nil:
		info.Kind = RegionErrMiss
		info.EpochNotMatch = e.GetEpochNotMatch()
	case e.GetRegionNotFound() != nil, e.GetKeyNotInRegion() != nil:
		info.Kind = RegionErrMiss
	default:
		// server_is_busy, raft_entry_too_large, and anything else:
		// spec.md §4.2 item 2's last bullet.
		info.Kind = RegionErrBusy
	}
	return info
}

// KeyErrorKind enumerates the key-error sub-cases spec.md §4.2 item 3
// names.
type KeyErrorKind int

const (
	// KeyErrNone means the response carried no key error.
	KeyErrNone KeyErrorKind = iota
	// KeyErrLocked means the key is held by an in-flight
	// transaction's lock.
	KeyErrLocked
	// KeyErrOther covers every other key error kind; callers surface
	// it as a fatal key-exception.
	KeyErrOther
)

// KeyErrorInfo is the classified form of a *kvrpcpb.KeyError.
type KeyErrorInfo struct {
	Kind   KeyErrorKind
	Locked *kvrpcpb.LockInfo
	Raw    *kvrpcpb.KeyError
}

// ClassifyKeyError partitions e into locked vs. everything-else.
func ClassifyKeyError(e *kvrpcpb.KeyError) KeyErrorInfo {
	info := KeyErrorInfo{Raw: e}
	if e == nil {
		info.Kind = KeyErrNone
		return info
	}
	if locked := e.GetLocked(); locked != nil {
		info.Kind = KeyErrLocked
		info.Locked = locked
		return info
	}
	info.Kind = KeyErrOther
	return info
}
