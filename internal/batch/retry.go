package batch

import (
	"context"
	"slices"
)

// Stage runs one full fetch pass over the given records and returns them with
// result fields populated. Stages preserve record identity and order; they
// bind their own executor width.
type Stage[R any] func(ctx context.Context, records []R) []R

// RetryOptions tunes the fault-rate retry loop.
type RetryOptions struct {
	// AcceptableFaultRate is the failure fraction (0.0-1.0) at or below which
	// the loop stops retrying.
	AcceptableFaultRate float64
	// MaxTries is the retry budget on top of the initial pass.
	MaxTries int
	// RunInitialPass runs one full pass first; disable it when the records
	// already carry a prior attempt's results.
	RunInitialPass bool
}

// PassObserver is notified after each retry pass with the remaining failure
// count, the fixed denominator, and the remaining budget. Nil observers are
// ignored.
type PassObserver func(failing, denominator, triesLeft int)

// RunWithRetry wraps a Stage in a fault-rate loop. After the initial pass it
// computes the fraction of eligible records still failing; while that rate
// exceeds the acceptable threshold and budget remains, it re-runs the stage
// on exactly the failing subset and merges results back by key.
//
// The denominator is the eligible-record count fixed before the first retry
// pass; it never shrinks as records succeed. Budget exhaustion is not an
// error: the best achieved record set is returned with residual failures
// intact. Cancellation returns the best-effort merged set accumulated so far.
func RunWithRetry[R any, K comparable](
	ctx context.Context,
	records []R,
	key func(R) K,
	stage Stage[R],
	isFailure func(R) bool,
	eligible func(R) bool,
	opts RetryOptions,
	onPass PassObserver,
) []R {
	var out []R
	if opts.RunInitialPass {
		out = stage(ctx, records)
	} else {
		out = slices.Clone(records)
	}

	denominator := 0
	for _, r := range out {
		if eligible(r) {
			denominator++
		}
	}

	failing := collectFailing(out, isFailure)
	rate := failureRate(len(failing), denominator)
	tries := opts.MaxTries

	for rate > opts.AcceptableFaultRate && tries > 0 {
		if ctx.Err() != nil {
			return out
		}

		updated := stage(ctx, failing)
		mergeByKey(out, updated, key)

		failing = collectFailing(out, isFailure)
		rate = failureRate(len(failing), denominator)
		tries--

		if onPass != nil {
			onPass(len(failing), denominator, tries)
		}
	}
	return out
}

func collectFailing[R any](records []R, isFailure func(R) bool) []R {
	var failing []R
	for _, r := range records {
		if isFailure(r) {
			failing = append(failing, r)
		}
	}
	return failing
}

// failureRate defines the rate as 0 when no records are eligible, so the
// retry loop never runs on an empty denominator.
func failureRate(failing, denominator int) float64 {
	if denominator == 0 {
		return 0
	}
	return float64(failing) / float64(denominator)
}

// mergeByKey writes updated records over their originals by identity.
// Positions shift when subsetting, so positional merging would corrupt the
// set; identity is the only safe join.
func mergeByKey[R any, K comparable](dst, updated []R, key func(R) K) {
	index := make(map[K]int, len(dst))
	for i, r := range dst {
		index[key(r)] = i
	}
	for _, r := range updated {
		if i, ok := index[key(r)]; ok {
			dst[i] = r
		}
	}
}
