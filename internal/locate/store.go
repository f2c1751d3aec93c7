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

import "github.com/pingcap/kvproto/pkg/metapb"

// Store is the data-node descriptor spec.md §3 names: an id plus the
// network address the Channel Factory dials.
type Store struct {
	meta *metapb.Store
}

// NewStore wraps a metapb.Store.
func NewStore(meta *metapb.Store) *Store { return &Store{meta: meta} }

// GetID returns the store id.
func (s *Store) GetID() uint64 { return s.meta.GetId() }

// GetAddr returns the store's network address.
func (s *Store) GetAddr() string { return s.meta.GetAddress() }
