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

package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCallWithRetryAcceptsFirstTry(t *testing.T) {
	re := require.New(t)
	bo := NewBackoffer(context.Background(), time.Second)
	noSleep(bo)

	calls := 0
	resp, err := CallWithRetry(
		context.Background(), bo,
		func(context.Context, string) (int, error) { calls++; return 42, nil },
		func() string { return "req" },
		func(resp int, err error) Outcome { return Outcome{Action: Accept} },
	)
	re.NoError(err)
	re.Equal(42, resp)
	re.Equal(1, calls)
}

func TestCallWithRetryRefreshesWithoutSleep(t *testing.T) {
	re := require.New(t)
	bo := NewBackoffer(context.Background(), time.Second)
	noSleep(bo)

	attempt := 0
	_, err := CallWithRetry(
		context.Background(), bo,
		func(context.Context, string) (int, error) { attempt++; return attempt, nil },
		func() string { return "req" },
		func(resp int, err error) Outcome {
			if resp < 3 {
				return Outcome{Action: RefreshAndRetry}
			}
			return Outcome{Action: Accept}
		},
	)
	re.NoError(err)
	re.Equal(3, attempt)
	re.Equal(time.Duration(0), bo.TotalSlept())
}

func TestCallWithRetryBacksOffThenFails(t *testing.T) {
	re := require.New(t)
	bo := NewBackoffer(context.Background(), 0)
	noSleep(bo)

	cause := errors.New("region miss")
	_, err := CallWithRetry(
		context.Background(), bo,
		func(context.Context, string) (int, error) { return 0, nil },
		func() string { return "req" },
		func(resp int, err error) Outcome {
			return Outcome{Action: RetryAfterBackoff, Category: BoRegionMiss, Cause: cause}
		},
	)
	re.Error(err)
}

func TestCallWithRetryFailsImmediately(t *testing.T) {
	re := require.New(t)
	bo := NewBackoffer(context.Background(), time.Second)
	noSleep(bo)

	wantErr := errors.New("fatal")
	_, err := CallWithRetry(
		context.Background(), bo,
		func(context.Context, string) (int, error) { return 0, nil },
		func() string { return "req" },
		func(resp int, err error) Outcome { return Outcome{Action: Fail, Err: wantErr} },
	)
	re.ErrorIs(err, wantErr)
}
