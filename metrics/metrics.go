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

package metrics

import "github.com/prometheus/client_golang/prometheus"

const (
	namespace = "region_store_client"

	rpcSubsystem     = "rpc"
	backoffSubsystem = "backoff"
	lockSubsystem    = "lock"

	methodLabel   = "method"
	categoryLabel = "category"
	resultLabel   = "result"
)

var (
	// RPCDuration observes wall time per attempt of a single RPC method.
	RPCDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: rpcSubsystem,
			Name:      "duration_seconds",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 16),
			Help:      "Bucketed histogram of per-attempt RPC latency.",
		}, []string{methodLabel, resultLabel})

	// BackoffCount counts every sleep the retry driver performs, by
	// category.
	BackoffCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: backoffSubsystem,
			Name:      "total",
			Help:      "Counter of backoff sleeps taken, by category.",
		}, []string{categoryLabel})

	// LockResolveCount counts calls into the lock resolver, by outcome
	// (all-resolved, partial, error).
	LockResolveCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: lockSubsystem,
			Name:      "resolve_total",
			Help:      "Counter of lock resolution attempts, by outcome.",
		}, []string{resultLabel})
)

func init() {
	prometheus.MustRegister(RPCDuration)
	prometheus.MustRegister(BackoffCount)
	prometheus.MustRegister(LockResolveCount)
}
