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

package locate

import (
	"context"
	"sort"
	"sync"

	"github.com/pingcap/failpoint"
	"github.com/pingcap/kvproto/pkg/metapb"
	"github.com/pingcap/log"
	"github.com/tikv/kvstore-client/errs"
	"go.uber.org/zap"
)

// PDClient is the backing discovery service the Region Manager
// consults on a cache miss. Its implementation — talking to a real
// placement driver cluster — is explicitly out of scope for this spec
// (spec.md §1); only this narrow interface matters.
type PDClient interface {
	// GetRegion returns the region covering key and its current
	// leader peer.
	GetRegion(ctx context.Context, key []byte) (*metapb.Region, *metapb.Peer, error)
	// GetRegionByID returns the region identified by id and its
	// current leader peer.
	GetRegionByID(ctx context.Context, id uint64) (*metapb.Region, *metapb.Peer, error)
	// GetStore returns the store descriptor for id.
	GetStore(ctx context.Context, id uint64) (*metapb.Store, error)
}

// RegionManager is the process-wide, shared routing cache spec.md §3
// describes. Its own consistency is its responsibility; clients treat
// everything it returns as an immutable snapshot.
type RegionManager struct {
	pd PDClient

	mu struct {
		sync.RWMutex
		// byStartKey is sorted ascending by StartKey, giving the
		// region covering a key via a binary search for the
		// right-most region whose StartKey <= key.
		byStartKey []*Region
		byID       map[uint64]*Region
		stores     map[uint64]*Store
	}
}

// NewRegionManager builds an empty cache backed by pd.
func NewRegionManager(pd PDClient) *RegionManager {
	m := &RegionManager{pd: pd}
	m.mu.byID = make(map[uint64]*Region)
	m.mu.stores = make(map[uint64]*Store)
	return m
}

// GetRegionByKey returns the region covering key, consulting pd and
// populating the cache on a miss.
func (m *RegionManager) GetRegionByKey(ctx context.Context, key []byte) (*Region, error) {
	r := m.lookupByKey(key)
	failpoint.Inject("forceRegionCacheMiss", func() {
		if r != nil {
			m.OnRequestFail(r)
			r = nil
		}
	})
	if r != nil {
		return r, nil
	}
	meta, leader, err := m.pd.GetRegion(ctx, key)
	if err != nil {
		return nil, err
	}
	if meta == nil {
		return nil, errs.ErrRegionUnavailable.GenWithStackByArgs(key)
	}
	r = NewRegion(meta, leader)
	m.insert(r)
	return r, nil
}

// GetRegionByID returns the region identified by id, consulting pd and
// populating the cache on a miss.
func (m *RegionManager) GetRegionByID(ctx context.Context, id uint64) (*Region, error) {
	m.mu.RLock()
	if r, ok := m.mu.byID[id]; ok {
		m.mu.RUnlock()
		return r, nil
	}
	m.mu.RUnlock()

	meta, leader, err := m.pd.GetRegionByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if meta == nil {
		return nil, errs.ErrRegionNotFound.GenWithStackByArgs(id)
	}
	r := NewRegion(meta, leader)
	m.insert(r)
	return r, nil
}

// GetStoreByID returns the store descriptor for id, consulting pd and
// populating the cache on a miss.
func (m *RegionManager) GetStoreByID(ctx context.Context, id uint64) (*Store, error) {
	m.mu.RLock()
	if s, ok := m.mu.stores[id]; ok {
		m.mu.RUnlock()
		return s, nil
	}
	m.mu.RUnlock()

	meta, err := m.pd.GetStore(ctx, id)
	if err != nil {
		return nil, err
	}
	if meta == nil {
		return nil, errs.ErrStoreNotFound.GenWithStackByArgs(id)
	}
	s := NewStore(meta)
	m.mu.Lock()
	m.mu.stores[id] = s
	m.mu.Unlock()
	return s, nil
}

// GetRegionStorePairByKey resolves both the region covering key and its
// leader's store in one call, for the Client Builder's build(key) path
// (spec.md §4.5).
func (m *RegionManager) GetRegionStorePairByKey(ctx context.Context, key []byte) (*Region, *Store, error) {
	region, err := m.GetRegionByKey(ctx, key)
	if err != nil {
		return nil, nil, err
	}
	store, err := m.GetStoreByID(ctx, region.GetLeaderStoreID())
	if err != nil {
		return nil, nil, err
	}
	return region, store, nil
}

// UpdateLeader refreshes the cached entry for region's id with a newly
// observed leader peer, without a round trip to pd. Called after a
// not-leader error reveals the new leader directly (spec.md §9's
// in-place leader-switch note).
func (m *RegionManager) UpdateLeader(region *Region) {
	m.insert(region)
}

// OnRequestFail evicts region from the cache so the next lookup goes
// back to pd. Called on transport failure (spec.md §4.2.1).
func (m *RegionManager) OnRequestFail(region *Region) {
	if region == nil {
		return
	}
	log.Debug("region manager invalidating region after request failure", zap.Uint64("region-id", region.GetID()))
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.mu.byID, region.GetID())
	for i, r := range m.mu.byStartKey {
		if r.GetID() == region.GetID() {
			m.mu.byStartKey = append(m.mu.byStartKey[:i], m.mu.byStartKey[i+1:]...)
			break
		}
	}
}

func (m *RegionManager) lookupByKey(key []byte) *Region {
	m.mu.RLock()
	defer m.mu.RUnlock()
	regions := m.mu.byStartKey
	i := sort.Search(len(regions), func(i int) bool {
		return string(regions[i].StartKey()) > string(key)
	})
	if i == 0 {
		return nil
	}
	r := regions[i-1]
	if r.Contains(key) {
		return r
	}
	return nil
}

func (m *RegionManager) insert(r *Region) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mu.byID[r.GetID()] = r
	i := sort.Search(len(m.mu.byStartKey), func(i int) bool {
		return string(m.mu.byStartKey[i].StartKey()) >= string(r.StartKey())
	})
	if i < len(m.mu.byStartKey) && m.mu.byStartKey[i].GetID() == r.GetID() {
		m.mu.byStartKey[i] = r
		return
	}
	m.mu.byStartKey = append(m.mu.byStartKey, nil)
	copy(m.mu.byStartKey[i+1:], m.mu.byStartKey[i:])
	m.mu.byStartKey[i] = r
}
