package batch

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type record struct {
	id    int
	value string
	land  bool
}

func (r record) failed() bool { return r.value == "" }

// flakyStage succeeds each record after a per-id number of attempts.
func flakyStage(succeedAfter map[int]int) Stage[record] {
	attempts := map[int]int{}
	return func(_ context.Context, records []record) []record {
		out := make([]record, len(records))
		for i, r := range records {
			attempts[r.id]++
			if attempts[r.id] >= succeedAfter[r.id] {
				r.value = "ok"
			}
			out[i] = r
		}
		return out
	}
}

func TestRunWithRetryConverges(t *testing.T) {
	t.Parallel()

	records := []record{
		{id: 0, land: true},
		{id: 1, land: true},
		{id: 2, land: true},
	}
	stage := flakyStage(map[int]int{0: 1, 1: 2, 2: 3})

	out := RunWithRetry(
		context.Background(),
		records,
		func(r record) int { return r.id },
		stage,
		record.failed,
		func(r record) bool { return r.land },
		RetryOptions{AcceptableFaultRate: 0.0, MaxTries: 5, RunInitialPass: true},
		nil,
	)

	require.Len(t, out, 3)
	for _, r := range out {
		assert.Equal(t, "ok", r.value, "record %d should have converged", r.id)
	}
}

func TestRunWithRetryFixedDenominator(t *testing.T) {
	t.Parallel()

	// Ten eligible records, nine succeed on the first pass. The remaining
	// failure rate must be 1/10 against the fixed denominator, which is
	// within a 10% threshold, so no retry pass may run.
	records := make([]record, 10)
	succeedAfter := map[int]int{}
	for i := range records {
		records[i] = record{id: i, land: true}
		succeedAfter[i] = 1
	}
	succeedAfter[9] = 100

	stageCalls := 0
	inner := flakyStage(succeedAfter)
	stage := func(ctx context.Context, rs []record) []record {
		stageCalls++
		return inner(ctx, rs)
	}

	out := RunWithRetry(
		context.Background(),
		records,
		func(r record) int { return r.id },
		stage,
		record.failed,
		func(r record) bool { return r.land },
		RetryOptions{AcceptableFaultRate: 0.10, MaxTries: 5, RunInitialPass: true},
		nil,
	)

	assert.Equal(t, 1, stageCalls, "initial pass only")
	assert.Equal(t, 1, countFailed(out))
}

func TestRunWithRetryDenominatorDoesNotShrink(t *testing.T) {
	t.Parallel()

	// Four eligible records; two succeed immediately, two never succeed.
	// 2/4 exceeds 0.30 so retries run, but the denominator stays 4 on
	// every pass even though only two records are re-attempted.
	records := []record{
		{id: 0, land: true}, {id: 1, land: true},
		{id: 2, land: true}, {id: 3, land: true},
	}
	stage := flakyStage(map[int]int{0: 1, 1: 1, 2: 100, 3: 100})

	var denominators []int
	out := RunWithRetry(
		context.Background(),
		records,
		func(r record) int { return r.id },
		stage,
		record.failed,
		func(r record) bool { return r.land },
		RetryOptions{AcceptableFaultRate: 0.30, MaxTries: 3, RunInitialPass: true},
		func(_, denominator, _ int) {
			denominators = append(denominators, denominator)
		},
	)

	require.Equal(t, []int{4, 4, 4}, denominators, "budget exhausted over three passes")
	assert.Equal(t, 2, countFailed(out))
}

func TestRunWithRetryRetriesOnlyFailingSubset(t *testing.T) {
	t.Parallel()

	records := []record{
		{id: 0, land: true},
		{id: 1, land: true},
		{id: 2, land: true},
	}
	var passSizes []int
	inner := flakyStage(map[int]int{0: 1, 1: 1, 2: 2})
	stage := func(ctx context.Context, rs []record) []record {
		passSizes = append(passSizes, len(rs))
		return inner(ctx, rs)
	}

	out := RunWithRetry(
		context.Background(),
		records,
		func(r record) int { return r.id },
		stage,
		record.failed,
		func(r record) bool { return r.land },
		RetryOptions{AcceptableFaultRate: 0.0, MaxTries: 5, RunInitialPass: true},
		nil,
	)

	assert.Equal(t, []int{3, 1}, passSizes)
	// The retried record merged back into its original position.
	assert.Equal(t, 2, out[2].id)
	assert.Equal(t, "ok", out[2].value)
}

func TestRunWithRetrySkipsInitialPass(t *testing.T) {
	t.Parallel()

	// Records already carry a prior attempt's results: one failing. With
	// the initial pass disabled the controller goes straight to retrying
	// that record.
	records := []record{
		{id: 0, value: "ok", land: true},
		{id: 1, land: true},
	}
	var passSizes []int
	inner := flakyStage(map[int]int{1: 1})
	stage := func(ctx context.Context, rs []record) []record {
		passSizes = append(passSizes, len(rs))
		return inner(ctx, rs)
	}

	out := RunWithRetry(
		context.Background(),
		records,
		func(r record) int { return r.id },
		stage,
		record.failed,
		func(r record) bool { return r.land },
		RetryOptions{AcceptableFaultRate: 0.0, MaxTries: 3, RunInitialPass: false},
		nil,
	)

	assert.Equal(t, []int{1}, passSizes)
	assert.Equal(t, 0, countFailed(out))
}

func TestRunWithRetryZeroEligible(t *testing.T) {
	t.Parallel()

	// Nothing is eligible, so the failure rate is defined as zero and no
	// retries run even though every record fails the predicate.
	records := []record{{id: 0}, {id: 1}}
	stageCalls := 0
	stage := func(_ context.Context, rs []record) []record {
		stageCalls++
		return rs
	}

	RunWithRetry(
		context.Background(),
		records,
		func(r record) int { return r.id },
		stage,
		record.failed,
		func(r record) bool { return r.land },
		RetryOptions{AcceptableFaultRate: 0.0, MaxTries: 5, RunInitialPass: true},
		nil,
	)

	assert.Equal(t, 1, stageCalls)
}

func TestRunWithRetryCancellationReturnsBestEffort(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	records := []record{{id: 0, land: true}, {id: 1, land: true}}
	stage := func(_ context.Context, rs []record) []record {
		out := make([]record, len(rs))
		copy(out, rs)
		for i := range out {
			if out[i].id == 0 {
				out[i].value = "ok"
			}
		}
		cancel()
		return out
	}

	out := RunWithRetry(
		ctx,
		records,
		func(r record) int { return r.id },
		stage,
		record.failed,
		func(r record) bool { return r.land },
		RetryOptions{AcceptableFaultRate: 0.0, MaxTries: 5, RunInitialPass: true},
		nil,
	)

	require.Len(t, out, 2)
	assert.Equal(t, "ok", out[0].value)
	assert.Equal(t, 1, countFailed(out), "failing record kept as-is after interrupt")
}

func countFailed(records []record) int {
	n := 0
	for _, r := range records {
		if r.failed() {
			n++
		}
	}
	return n
}
