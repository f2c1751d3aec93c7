// Copyright 2022 TiKV Project Authors.
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

package syncutil

import "sync"

// Mutex is a typedef of sync.Mutex, giving the package a single place
// to swap in a deadlock-detecting implementation later without
// touching every call site.
type Mutex = sync.Mutex

// RWMutex is a typedef of sync.RWMutex, for the same reason as Mutex.
type RWMutex = sync.RWMutex
