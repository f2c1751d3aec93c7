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

// Package txnlock is the Lock Resolver's contract (spec.md §4.4): given
// a batch of locks collected off a response, attempt to commit or roll
// back their owning transactions. The resolution protocol's internals
// are explicitly out of scope (spec.md §1); this package provides the
// interface regionstore calls through, the thin Lock value it is called
// with, and a minimal implementation (resolver.go) that issues
// CheckTxnStatus/ResolveLock RPCs.
package txnlock

import "github.com/pingcap/kvproto/pkg/kvrpcpb"

// Lock is the intention record a key-locked response carries: readers
// must resolve it (commit or roll back the owning transaction) before
// they may proceed.
type Lock struct {
	Key             []byte
	Primary         []byte
	TxnID           uint64
	TTL             uint64
	LockType        kvrpcpb.Op
	LockForUpdateTS uint64
}

// NewLock builds a Lock from the wire LockInfo carried by a locked key
// error.
func NewLock(info *kvrpcpb.LockInfo) *Lock {
	return &Lock{
		Key:             info.GetKey(),
		Primary:         info.GetPrimaryLock(),
		TxnID:           info.GetLockVersion(),
		TTL:             info.GetLockTtl(),
		LockType:        info.GetLockType(),
		LockForUpdateTS: info.GetLockForUpdateTs(),
	}
}
