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

// Package locate is the Region Manager (spec.md §4, component table):
// a process-wide cache mapping keys and region ids to the Region/Store
// pair currently believed to own them. Its field layout follows
// pkg/core/region.go's "immutable snapshot, replace don't mutate"
// discipline, pared down to the routing-only data spec.md §3 actually
// names — the scheduling/heartbeat statistics RegionInfo carries
// upstream have no place in a store client.
package locate

import (
	"github.com/pingcap/kvproto/pkg/metapb"
)

// RegionVerID identifies one version of one region: the id plus both
// halves of its epoch. Two Region values with the same RegionVerID are
// the same observation; a differing epoch means the region changed
// underneath the cache (split, merge, conf change).
type RegionVerID struct {
	ID      uint64
	ConfVer uint64
	Ver     uint64
}

// Region is the immutable routing snapshot spec.md §3 describes.
// Updates replace the cached value; nothing here is mutated in place.
type Region struct {
	meta   *metapb.Region
	leader *metapb.Peer
}

// NewRegion builds a Region from a freshly observed metapb.Region and
// its leader peer. leader must be one of meta's peers.
func NewRegion(meta *metapb.Region, leader *metapb.Peer) *Region {
	return &Region{meta: meta, leader: leader}
}

// VerID returns the region's identity-plus-epoch triple.
func (r *Region) VerID() RegionVerID {
	epoch := r.meta.GetRegionEpoch()
	return RegionVerID{ID: r.meta.GetId(), ConfVer: epoch.GetConfVer(), Ver: epoch.GetVersion()}
}

// GetID returns the region id.
func (r *Region) GetID() uint64 { return r.meta.GetId() }

// StartKey returns the region's inclusive lower bound.
func (r *Region) StartKey() []byte { return r.meta.GetStartKey() }

// EndKey returns the region's exclusive upper bound. An empty slice
// means +∞.
func (r *Region) EndKey() []byte { return r.meta.GetEndKey() }

// SameRange reports whether r and other cover the same [start, end).
func (r *Region) SameRange(other *Region) bool {
	if other == nil {
		return false
	}
	return string(r.StartKey()) == string(other.StartKey()) && string(r.EndKey()) == string(other.EndKey())
}

// Contains reports whether key falls within [start, end).
func (r *Region) Contains(key []byte) bool {
	start, end := r.StartKey(), r.EndKey()
	if string(key) < string(start) {
		return false
	}
	if len(end) == 0 {
		return true
	}
	return string(key) < string(end)
}

// GetLeaderPeer returns the region's current leader peer. It is never
// nil for a Region obtained through the Region Manager (spec.md §3
// invariant).
func (r *Region) GetLeaderPeer() *metapb.Peer { return r.leader }

// GetLeaderStoreID returns the store id hosting the leader peer.
func (r *Region) GetLeaderStoreID() uint64 { return r.leader.GetStoreId() }

// Peers returns the region's full peer list.
func (r *Region) Peers() []*metapb.Peer { return r.meta.GetPeers() }

// Meta returns the underlying metapb.Region, for constructing a
// RoutingContext (context.Context proto field) on outgoing requests.
func (r *Region) Meta() *metapb.Region { return r.meta }

// WithLeader returns a new Region with the same meta but a different
// leader peer — the in-place routing update spec.md §3 describes as
// "mutated in place only by... the on_not_leader callback" expressed as
// a replacement value rather than a mutation, per the design note in
// spec.md §9 ("express it as an in-place updatable record, not shared
// mutable state").
func (r *Region) WithLeader(leader *metapb.Peer) *Region {
	return &Region{meta: r.meta, leader: leader}
}
