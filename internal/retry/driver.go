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

import "context"

// Action is the disposition an error handler returns for one attempt's
// response (spec.md §4.1).
type Action int

const (
	// Accept returns the response to the caller as-is.
	Accept Action = iota
	// RetryAfterBackoff sleeps on Category before the next attempt.
	RetryAfterBackoff
	// RefreshAndRetry retries immediately, with no sleep. The handler
	// is expected to have already refreshed whatever routing state it
	// needed to before returning this.
	RefreshAndRetry
	// Fail terminates the call; Err is returned to the caller.
	Fail
)

// Outcome is what an error handler returns after inspecting one
// attempt's response.
type Outcome struct {
	Action   Action
	Category Category
	Cause    error
	Err      error
}

// CallWithRetry drives method against freshly-built requests until the
// handler Accepts, Fails, or the backoff budget is exhausted.
// request_factory is invoked on every attempt — never memoized — so a
// routing refresh made by a previous attempt's handler is always
// reflected in the next request (spec.md §4.1).
func CallWithRetry[Req any, Resp any](
	ctx context.Context,
	bo *Backoffer,
	rpc func(context.Context, Req) (Resp, error),
	factory func() Req,
	handle func(Resp, error) Outcome,
) (Resp, error) {
	for {
		req := factory()
		resp, err := rpc(ctx, req)
		outcome := handle(resp, err)
		switch outcome.Action {
		case Accept:
			return resp, nil
		case Fail:
			var zero Resp
			return zero, outcome.Err
		case RefreshAndRetry:
			continue
		case RetryAfterBackoff:
			if bErr := bo.Backoff(outcome.Category, outcome.Cause); bErr != nil {
				var zero Resp
				return zero, bErr
			}
			continue
		default:
			var zero Resp
			return zero, outcome.Err
		}
	}
}
