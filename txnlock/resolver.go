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

package txnlock

import (
	"context"
	"time"

	"github.com/gogo/protobuf/proto"
	"github.com/opentracing/opentracing-go"
	"github.com/pingcap/kvproto/pkg/kvrpcpb"
	"github.com/pingcap/log"
	"go.uber.org/zap"

	"github.com/tikv/kvstore-client/internal/locate"
	"github.com/tikv/kvstore-client/internal/retry"
	"github.com/tikv/kvstore-client/internal/rpcclient"
	"github.com/tikv/kvstore-client/metrics"
)

// startSpan mirrors regionstore's own per-attempt tracing helper: a
// child span only when ctx already carries a parent.
func startSpan(ctx context.Context, name string) (context.Context, func()) {
	span := opentracing.SpanFromContext(ctx)
	if span == nil {
		return ctx, func() {}
	}
	span = opentracing.StartSpan(name, opentracing.ChildOf(span.Context()))
	return opentracing.ContextWithSpan(ctx, span), span.Finish
}

// defaultResolverTimeout bounds each CheckTxnStatus/ResolveLock RPC the
// resolver issues on its own behalf. It is independent of the calling
// session's configured timeout since the resolver dials its own,
// short-lived stubs rather than reusing the caller's.
const defaultResolverTimeout = 2 * time.Second

// Resolver is the contract regionstore calls through when a response
// carries a lock error: "given a batch of locks, attempts to commit or
// roll back the owning transactions" (spec.md §3, component table).
//
// The resolver holds only the Region Manager and builds its own
// short-lived stubs for cross-region work, rather than a back-pointer
// to the owning regionstore.Client — breaking the mutual dependency
// spec.md §9 calls out ("the resolver issues KV RPCs that themselves
// may encounter locks").
type Resolver interface {
	// ResolveLocks attempts to resolve every lock in locks, returning
	// true if all were resolved and false if resolution is still in
	// progress ("partial" in spec.md §4.4's terms). Callers back off on
	// txn-lock-fast and retry when the result is partial; they retry
	// immediately when it is true. bo carries the outer call's backoff
	// budget (spec.md §6, LockResolver.resolve_locks(backoffer, locks)),
	// threaded through so any backoff resolution itself needs stays
	// bounded by the same budget rather than opening a fresh one.
	ResolveLocks(ctx context.Context, bo *retry.Backoffer, locks []*Lock) (allResolved bool, err error)
}

type resolver struct {
	regions  *locate.RegionManager
	channels rpcclient.ChannelFactory
}

// NewResolver builds a Resolver that routes through regions and dials
// fresh channels via channels. Both are shared, long-lived
// collaborators; the resolver itself holds no session state.
func NewResolver(regions *locate.RegionManager, channels rpcclient.ChannelFactory) Resolver {
	return &resolver{regions: regions, channels: channels}
}

func (r *resolver) stubFor(ctx context.Context, storeID uint64) (rpcclient.Stub, error) {
	store, err := r.regions.GetStoreByID(ctx, storeID)
	if err != nil {
		return rpcclient.Stub{}, err
	}
	conn, err := r.channels.GetChannel(store.GetAddr())
	if err != nil {
		return rpcclient.Stub{}, err
	}
	return rpcclient.NewStub(conn, defaultResolverTimeout), nil
}

func (r *resolver) ResolveLocks(ctx context.Context, bo *retry.Backoffer, locks []*Lock) (bool, error) {
	allResolved := true
	for _, l := range locks {
		resolved, err := r.resolveOne(ctx, bo, l)
		if err != nil {
			metrics.LockResolveCount.WithLabelValues("error").Inc()
			return false, err
		}
		if !resolved {
			allResolved = false
		}
	}
	if allResolved {
		metrics.LockResolveCount.WithLabelValues("all-resolved").Inc()
	} else {
		metrics.LockResolveCount.WithLabelValues("partial").Inc()
	}
	return allResolved, nil
}

// resolveOne determines the fate of the transaction holding l (via
// CheckTxnStatus against its primary key's region) and then clears the
// lock itself (via ResolveLock against the lock key's region). bo is
// unused today — resolution here is one-shot, not a retry loop — but is
// threaded through so a future recursive resolution step (e.g. a lock
// encountered while resolving another lock) stays bounded by the same
// budget instead of needing its own.
func (r *resolver) resolveOne(ctx context.Context, bo *retry.Backoffer, l *Lock) (bool, error) {
	primaryRegion, err := r.regions.GetRegionByKey(ctx, l.Primary)
	if err != nil {
		return false, err
	}
	primaryStub, err := r.stubFor(ctx, primaryRegion.GetLeaderStoreID())
	if err != nil {
		return false, err
	}

	callCtx, cancel := primaryStub.WithDeadline(ctx)
	spanCtx, finish := startSpan(callCtx, "tikv.CheckTxnStatus")
	statusResp, err := primaryStub.Client.KvCheckTxnStatus(spanCtx, &kvrpcpb.CheckTxnStatusRequest{
		Context:       regionContext(primaryRegion),
		PrimaryKey:    l.Primary,
		LockTs:        l.TxnID,
		CallerStartTs: 0,
		CurrentTs:     0,
	})
	finish()
	cancel()
	if err != nil {
		return false, err
	}
	if re := statusResp.GetRegionError(); re != nil {
		r.regions.OnRequestFail(primaryRegion)
		return false, nil
	}

	commitVersion := statusResp.GetCommitVersion()
	if statusResp.GetLockTtl() > 0 && commitVersion == 0 {
		// The owning transaction is still alive; nothing to resolve yet.
		return false, nil
	}

	lockRegion, err := r.regions.GetRegionByKey(ctx, l.Key)
	if err != nil {
		return false, err
	}
	lockStub, err := r.stubFor(ctx, lockRegion.GetLeaderStoreID())
	if err != nil {
		return false, err
	}
	callCtx, cancel = lockStub.WithDeadline(ctx)
	spanCtx, finish = startSpan(callCtx, "tikv.ResolveLock")
	resolveResp, err := lockStub.Client.KvResolveLock(spanCtx, &kvrpcpb.ResolveLockRequest{
		Context:       regionContext(lockRegion),
		StartVersion:  l.TxnID,
		CommitVersion: commitVersion,
		Keys:          [][]byte{l.Key},
	})
	finish()
	cancel()
	if err != nil {
		return false, err
	}
	if re := resolveResp.GetRegionError(); re != nil {
		r.regions.OnRequestFail(lockRegion)
		return false, nil
	}
	if ke := resolveResp.GetError(); ke != nil {
		log.Warn("resolve lock returned key error",
			zap.Uint64("txn-id", l.TxnID),
			zap.String("error", proto.CompactTextString(ke)))
		return false, nil
	}
	return true, nil
}

func regionContext(r *locate.Region) *kvrpcpb.Context {
	meta := r.Meta()
	return &kvrpcpb.Context{
		RegionId:    meta.GetId(),
		RegionEpoch: meta.GetRegionEpoch(),
		Peer:        r.GetLeaderPeer(),
	}
}
