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
	"net"
	"testing"

	"github.com/pingcap/kvproto/pkg/kvrpcpb"
	"github.com/pingcap/kvproto/pkg/metapb"
	"github.com/pingcap/kvproto/pkg/tikvpb"
	"go.uber.org/goleak"
	"google.golang.org/grpc"

	"github.com/tikv/kvstore-client/internal/testutil"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, testutil.LeakOptions...)
}

// fakePD is a minimal locate.PDClient backed by a single fixed region
// routed entirely to one store, enough for the resolver's own routing
// needs (it never splits or merges a region mid-test).
type fakePD struct {
	region *metapb.Region
	leader *metapb.Peer
	store  *metapb.Store
}

func newFakePD(storeID uint64, addr string) *fakePD {
	return &fakePD{
		region: &metapb.Region{
			Id: 1, StartKey: nil, EndKey: nil,
			RegionEpoch: &metapb.RegionEpoch{ConfVer: 1, Version: 1},
			Peers:       []*metapb.Peer{{Id: 11, StoreId: storeID}},
		},
		leader: &metapb.Peer{Id: 11, StoreId: storeID},
		store:  &metapb.Store{Id: storeID, Address: addr},
	}
}

func (f *fakePD) GetRegion(context.Context, []byte) (*metapb.Region, *metapb.Peer, error) {
	return f.region, f.leader, nil
}

func (f *fakePD) GetRegionByID(context.Context, uint64) (*metapb.Region, *metapb.Peer, error) {
	return f.region, f.leader, nil
}

func (f *fakePD) GetStore(_ context.Context, id uint64) (*metapb.Store, error) {
	if id != f.store.GetId() {
		return nil, nil
	}
	return f.store, nil
}

// fakeTikvServer implements the handful of tikvpb.TikvServer methods the
// resolver exercises; every other method falls through to
// UnimplementedTikvServer and fails loudly if ever called.
type fakeTikvServer struct {
	tikvpb.UnimplementedTikvServer

	checkTxnStatus func(*kvrpcpb.CheckTxnStatusRequest) (*kvrpcpb.CheckTxnStatusResponse, error)
	resolveLock    func(*kvrpcpb.ResolveLockRequest) (*kvrpcpb.ResolveLockResponse, error)
}

func (f *fakeTikvServer) KvCheckTxnStatus(_ context.Context, in *kvrpcpb.CheckTxnStatusRequest) (*kvrpcpb.CheckTxnStatusResponse, error) {
	return f.checkTxnStatus(in)
}

func (f *fakeTikvServer) KvResolveLock(_ context.Context, in *kvrpcpb.ResolveLockRequest) (*kvrpcpb.ResolveLockResponse, error) {
	return f.resolveLock(in)
}

// startFakeTikvServer serves impl over a real loopback listener, the
// same grpc.NewServer/net.Listen shape used elsewhere in the corpus for
// exercising generated clients against a real (if minimal) server
// rather than hand-rolling a client-side mock.
func startFakeTikvServer(t *testing.T, impl tikvpb.TikvServer) string {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	server := grpc.NewServer()
	tikvpb.RegisterTikvServer(server, impl)
	go func() { _ = server.Serve(lis) }()
	t.Cleanup(server.Stop)
	return lis.Addr().String()
}
