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

package regionstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pingcap/kvproto/pkg/errorpb"
	"github.com/pingcap/kvproto/pkg/kvrpcpb"
	"github.com/pingcap/kvproto/pkg/metapb"
	"github.com/stretchr/testify/require"

	"github.com/tikv/kvstore-client/config"
	"github.com/tikv/kvstore-client/internal/locate"
	"github.com/tikv/kvstore-client/internal/retry"
	"github.com/tikv/kvstore-client/internal/rpcclient"
	"github.com/tikv/kvstore-client/tikverr"
)

// testCluster wires one fake TiKV server and a RegionManager that
// routes a single region [nil, nil) to it, giving each test a minimal
// but real client/resolver stack to drive through the loopback network.
type testCluster struct {
	t       *testing.T
	impl    *fakeTikvServer
	pd      *fakePD
	regions *locate.RegionManager
	builder *Builder
	storeID uint64
	region  *metapb.Region
}

func newTestCluster(t *testing.T) *testCluster {
	impl := &fakeTikvServer{}
	addr := startFakeTikvServer(t, impl)

	storeID := uint64(1)
	region := &metapb.Region{
		Id: 1, StartKey: nil, EndKey: nil,
		RegionEpoch: &metapb.RegionEpoch{ConfVer: 1, Version: 1},
		Peers:       []*metapb.Peer{{Id: 11, StoreId: storeID}},
	}

	pd := newFakePDSet()
	pd.addRegion(region, region.Peers[0])
	pd.addStore(&metapb.Store{Id: storeID, Address: addr})

	regions := locate.NewRegionManager(pd)
	channels := rpcclient.NewChannelFactory()
	t.Cleanup(func() { _ = channels.Close() })

	return &testCluster{
		t:       t,
		impl:    impl,
		pd:      pd,
		regions: regions,
		builder: NewBuilder(config.New(config.WithTimeout(time.Second)), regions, channels),
		storeID: storeID,
		region:  region,
	}
}

func (c *testCluster) client() *Client {
	cl, err := c.builder.BuildByKey(context.Background(), []byte("k"))
	require.NoError(c.t, err)
	return cl
}

func newBo() *retry.Backoffer {
	return retry.NewBackoffer(context.Background(), time.Second)
}

func TestClientGetSuccess(t *testing.T) {
	re := require.New(t)
	c := newTestCluster(t)
	c.impl.kvGet = func(*kvrpcpb.GetRequest) (*kvrpcpb.GetResponse, error) {
		return &kvrpcpb.GetResponse{Value: []byte("v1")}, nil
	}

	cl := c.client()
	v, err := cl.Get(context.Background(), newBo(), []byte("k"), 10)
	re.NoError(err)
	re.Equal([]byte("v1"), v)
}

func TestClientGetResolvesLockThenSucceeds(t *testing.T) {
	re := require.New(t)
	c := newTestCluster(t)

	calls := 0
	c.impl.kvGet = func(*kvrpcpb.GetRequest) (*kvrpcpb.GetResponse, error) {
		calls++
		if calls == 1 {
			return &kvrpcpb.GetResponse{Error: &kvrpcpb.KeyError{
				Locked: &kvrpcpb.LockInfo{Key: []byte("k"), PrimaryLock: []byte("k"), LockVersion: 7},
			}}, nil
		}
		return &kvrpcpb.GetResponse{Value: []byte("v2")}, nil
	}
	c.impl.kvCheckTxnStatus = func(*kvrpcpb.CheckTxnStatusRequest) (*kvrpcpb.CheckTxnStatusResponse, error) {
		return &kvrpcpb.CheckTxnStatusResponse{CommitVersion: 8}, nil
	}
	c.impl.kvResolveLock = func(*kvrpcpb.ResolveLockRequest) (*kvrpcpb.ResolveLockResponse, error) {
		return &kvrpcpb.ResolveLockResponse{}, nil
	}

	cl := c.client()
	v, err := cl.Get(context.Background(), newBo(), []byte("k"), 10)
	re.NoError(err)
	re.Equal([]byte("v2"), v)
	re.Equal(2, calls, "resolving the lock must not itself consume a KvGet retry beyond the expected second attempt")
}

func TestClientGetNonLockKeyErrorFails(t *testing.T) {
	re := require.New(t)
	c := newTestCluster(t)
	c.impl.kvGet = func(*kvrpcpb.GetRequest) (*kvrpcpb.GetResponse, error) {
		return &kvrpcpb.GetResponse{Error: &kvrpcpb.KeyError{Abort: "aborted"}}, nil
	}

	cl := c.client()
	_, err := cl.Get(context.Background(), newBo(), []byte("k"), 10)
	re.Error(err)
	var keyErr tikverr.ErrKeyException
	re.ErrorAs(err, &keyErr)
}

func TestClientGetNotLeaderRecoversInPlace(t *testing.T) {
	re := require.New(t)
	c := newTestCluster(t)

	newLeaderPeer := &metapb.Peer{Id: 12, StoreId: c.storeID}

	calls := 0
	c.impl.kvGet = func(*kvrpcpb.GetRequest) (*kvrpcpb.GetResponse, error) {
		calls++
		if calls == 1 {
			return &kvrpcpb.GetResponse{RegionError: &errorpb.Error{
				NotLeader: &errorpb.NotLeader{RegionId: c.region.GetId(), Leader: newLeaderPeer},
			}}, nil
		}
		return &kvrpcpb.GetResponse{Value: []byte("v3")}, nil
	}

	cl := c.client()
	v, err := cl.Get(context.Background(), newBo(), []byte("k"), 10)
	re.NoError(err)
	re.Equal([]byte("v3"), v)
	re.Equal(2, calls)
}

// TestClientNotLeaderWithChangedRangeSurfacesRegionException covers
// spec.md §8's range-change invariant: a not_leader hint is only
// trusted when the Region Manager's freshly fetched record of this
// region still covers the same [start, end) as the region the client is
// bound to. Here pd's record of the region has since narrowed (as if
// split), so the hint must not be adopted in place — the call must
// surface a region exception after exactly one RPC rather than rebind
// to the hinted leader and retry.
func TestClientNotLeaderWithChangedRangeSurfacesRegionException(t *testing.T) {
	re := require.New(t)
	c := newTestCluster(t)

	cl := c.client()

	splitRegion := &metapb.Region{
		Id:          c.region.GetId(),
		StartKey:    []byte("m"),
		EndKey:      nil,
		RegionEpoch: &metapb.RegionEpoch{ConfVer: 1, Version: 2},
		Peers:       []*metapb.Peer{{Id: 11, StoreId: c.storeID}, {Id: 12, StoreId: c.storeID}},
	}
	newLeaderPeer := &metapb.Peer{Id: 12, StoreId: c.storeID}
	c.pd.addRegion(splitRegion, newLeaderPeer)

	calls := 0
	c.impl.kvBatchGet = func(*kvrpcpb.BatchGetRequest) (*kvrpcpb.BatchGetResponse, error) {
		calls++
		return &kvrpcpb.BatchGetResponse{RegionError: &errorpb.Error{
			NotLeader: &errorpb.NotLeader{RegionId: c.region.GetId(), Leader: newLeaderPeer},
		}}, nil
	}

	_, err := cl.BatchGet(context.Background(), newBo(), [][]byte{[]byte("a"), []byte("b")}, 10)
	re.Error(err)
	var regionErr tikverr.ErrRegionException
	re.ErrorAs(err, &regionErr)
	re.Equal(1, calls, "a range change must surface a region exception after exactly one RPC, not rebind and retry")
}

func TestClientBatchGetRegionErrorIsFatal(t *testing.T) {
	re := require.New(t)
	c := newTestCluster(t)
	c.impl.kvBatchGet = func(*kvrpcpb.BatchGetRequest) (*kvrpcpb.BatchGetResponse, error) {
		return &kvrpcpb.BatchGetResponse{RegionError: &errorpb.Error{
			EpochNotMatch: &errorpb.EpochNotMatch{},
		}}, nil
	}

	cl := c.client()
	_, err := cl.BatchGet(context.Background(), newBo(), [][]byte{[]byte("a"), []byte("b")}, 10)
	re.Error(err)
	var regionErr tikverr.ErrRegionException
	re.ErrorAs(err, &regionErr)
}

func TestClientBatchGetPartialLockBacksOffOnceAndReturnsPairs(t *testing.T) {
	re := require.New(t)
	c := newTestCluster(t)
	pairs := []*kvrpcpb.KvPair{
		{Key: []byte("a"), Value: []byte("va")},
		{Key: []byte("b"), Error: &kvrpcpb.KeyError{Locked: &kvrpcpb.LockInfo{
			Key: []byte("b"), PrimaryLock: []byte("b"), LockVersion: 3,
		}}},
	}
	c.impl.kvBatchGet = func(*kvrpcpb.BatchGetRequest) (*kvrpcpb.BatchGetResponse, error) {
		return &kvrpcpb.BatchGetResponse{Pairs: pairs}, nil
	}
	c.impl.kvCheckTxnStatus = func(*kvrpcpb.CheckTxnStatusRequest) (*kvrpcpb.CheckTxnStatusResponse, error) {
		return &kvrpcpb.CheckTxnStatusResponse{LockTtl: 1000}, nil
	}

	resolveCalls := 0
	c.impl.kvResolveLock = func(*kvrpcpb.ResolveLockRequest) (*kvrpcpb.ResolveLockResponse, error) {
		resolveCalls++
		return &kvrpcpb.ResolveLockResponse{}, nil
	}

	cl := c.client()
	bo := newBo()
	got, err := cl.BatchGet(context.Background(), bo, [][]byte{[]byte("a"), []byte("b")}, 10)
	re.NoError(err)
	re.Len(got, 2)
	re.Equal(0, resolveCalls, "a lock still in CheckTxnStatus's LockTtl window is never cleared with ResolveLock")
}

func TestClientRawGetSuccess(t *testing.T) {
	re := require.New(t)
	c := newTestCluster(t)
	c.impl.rawGet = func(*kvrpcpb.RawGetRequest) (*kvrpcpb.RawGetResponse, error) {
		return &kvrpcpb.RawGetResponse{Value: []byte("raw1")}, nil
	}

	cl := c.client()
	v, err := cl.RawGet(context.Background(), newBo(), []byte("k"), "")
	re.NoError(err)
	re.Equal([]byte("raw1"), v)
}

func TestClientRawGetServerErrorString(t *testing.T) {
	re := require.New(t)
	c := newTestCluster(t)
	c.impl.rawGet = func(*kvrpcpb.RawGetRequest) (*kvrpcpb.RawGetResponse, error) {
		return &kvrpcpb.RawGetResponse{Error: "not found in cf"}, nil
	}

	cl := c.client()
	_, err := cl.RawGet(context.Background(), newBo(), []byte("k"), "")
	re.Error(err)
	var rawErr tikverr.ErrRawKeyException
	re.ErrorAs(err, &rawErr)
	re.Equal("not found in cf", rawErr.Message)
}

func TestClientRawBatchPutEmptyIsNoop(t *testing.T) {
	re := require.New(t)
	c := newTestCluster(t)
	c.impl.rawBatchPut = func(*kvrpcpb.RawBatchPutRequest) (*kvrpcpb.RawBatchPutResponse, error) {
		t.Fatal("RawBatchPut must not be called for an empty batch")
		return nil, nil
	}

	cl := c.client()
	re.NoError(cl.RawBatchPut(context.Background(), newBo(), nil, ""))
}

func TestClientRawCASReportsSucceed(t *testing.T) {
	re := require.New(t)
	c := newTestCluster(t)
	c.impl.rawCAS = func(req *kvrpcpb.RawCASRequest) (*kvrpcpb.RawCASResponse, error) {
		return &kvrpcpb.RawCASResponse{Succeed: true}, nil
	}

	cl := c.client()
	swapped, err := cl.RawCAS(context.Background(), newBo(), []byte("k"), []byte("new"), []byte("old"), false, "")
	re.NoError(err)
	re.True(swapped)
}

func TestClientTransportErrorBacksOffThenSucceeds(t *testing.T) {
	re := require.New(t)
	c := newTestCluster(t)

	calls := 0
	c.impl.rawGet = func(*kvrpcpb.RawGetRequest) (*kvrpcpb.RawGetResponse, error) {
		calls++
		if calls == 1 {
			return nil, errors.New("boom")
		}
		return &kvrpcpb.RawGetResponse{Value: []byte("ok")}, nil
	}

	cl := c.client()
	v, err := cl.RawGet(context.Background(), newBo(), []byte("k"), "")
	re.NoError(err)
	re.Equal([]byte("ok"), v)
	re.Equal(2, calls)
}

func TestClientBuilderAttachesAResolver(t *testing.T) {
	re := require.New(t)
	c := newTestCluster(t)
	cl := c.client()
	re.NotNil(cl.resolver)
}
