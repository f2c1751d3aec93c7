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

	"github.com/tikv/kvstore-client/config"
	"github.com/tikv/kvstore-client/errs"
	"github.com/tikv/kvstore-client/internal/locate"
	"github.com/tikv/kvstore-client/internal/rpcclient"
	"github.com/tikv/kvstore-client/txnlock"
)

// Builder is the Client Builder (spec.md §4.5): it owns the
// collaborators every Client shares — configuration, the Channel
// Factory, and the Region Manager — and resolves a region/store pair
// into a ready-to-use Client.
type Builder struct {
	conf     config.Config
	regions  *locate.RegionManager
	channels rpcclient.ChannelFactory
}

// NewBuilder builds a Builder over the given shared collaborators.
func NewBuilder(conf config.Config, regions *locate.RegionManager, channels rpcclient.ChannelFactory) *Builder {
	return &Builder{conf: conf, regions: regions, channels: channels}
}

// RegionManager exposes the shared Region Manager, mirroring the
// original's RegionStoreClientBuilder.getRegionManager().
func (b *Builder) RegionManager() *locate.RegionManager { return b.regions }

// Build binds a new Client to region and store directly, skipping a
// Region Manager lookup. Both must be non-nil and region must carry a
// leader peer.
func (b *Builder) Build(region *locate.Region, store *locate.Store) (*Client, error) {
	if region == nil {
		return nil, errs.ErrRegionRequired.GenWithStackByArgs()
	}
	if store == nil {
		return nil, errs.ErrStoreRequired.GenWithStackByArgs()
	}
	if region.GetLeaderPeer() == nil {
		return nil, errs.ErrLeaderRequired.GenWithStackByArgs()
	}
	conn, err := b.channels.GetChannel(store.GetAddr())
	if err != nil {
		return nil, err
	}
	c := &Client{
		conf:     b.conf,
		region:   region,
		store:    store,
		stub:     rpcclient.NewStub(conn, b.conf.Timeout),
		regions:  b.regions,
		channels: b.channels,
	}
	c.resolver = txnlock.NewResolver(b.regions, b.channels)
	return c, nil
}

// BuildByKey resolves the region covering key and its leader's store
// through the Region Manager, then builds a Client bound to them.
func (b *Builder) BuildByKey(ctx context.Context, key []byte) (*Client, error) {
	region, store, err := b.regions.GetRegionStorePairByKey(ctx, key)
	if err != nil {
		return nil, err
	}
	return b.Build(region, store)
}

// BuildByRegion resolves region's leader's store through the Region
// Manager, then builds a Client bound to them.
func (b *Builder) BuildByRegion(ctx context.Context, region *locate.Region) (*Client, error) {
	if region == nil {
		return nil, errs.ErrRegionRequired.GenWithStackByArgs()
	}
	store, err := b.regions.GetStoreByID(ctx, region.GetLeaderStoreID())
	if err != nil {
		return nil, err
	}
	return b.Build(region, store)
}
