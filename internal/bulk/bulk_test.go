package bulk

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunAllSucceed(t *testing.T) {
	keys := []string{"c", "a", "b"}

	result, err := Run(context.Background(), "copy", keys, 2, func(ctx context.Context, key string) error {
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, result.Succeeded)
	assert.Empty(t, result.Failed)
	assert.NoError(t, result.Err())
}

func TestRunCollectsFailuresAndContinues(t *testing.T) {
	keys := []string{"a", "b", "c", "d"}
	boom := errors.New("boom")

	result, err := Run(context.Background(), "copy", keys, 1, func(ctx context.Context, key string) error {
		if key == "b" || key == "d" {
			return boom
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, result.Succeeded)
	require.Len(t, result.Failed, 2)
	assert.Equal(t, "b", result.Failed[0].Key)
	assert.Equal(t, "boom", result.Failed[0].Reason())

	var partial *PartialFailure
	require.ErrorAs(t, result.Err(), &partial)
	assert.Equal(t, 4, partial.Total)
	assert.Equal(t, "copy: 2 of 4 objects failed; b: boom; d: boom", partial.Error())
}

func TestRunRespectsConcurrencyLimit(t *testing.T) {
	var inFlight, peak int32
	keys := make([]string, 20)
	for i := range keys {
		keys[i] = fmt.Sprintf("k%02d", i)
	}

	_, err := Run(context.Background(), "copy", keys, 3, func(ctx context.Context, key string) error {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		atomic.AddInt32(&inFlight, -1)
		return nil
	})

	require.NoError(t, err)
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(3))
}

func TestRunStopsIssuingCallsOnceCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	keys := []string{"a", "b", "c", "d", "e"}
	var calls int32

	result, err := Run(ctx, "delete", keys, 1, func(ctx context.Context, key string) error {
		if atomic.AddInt32(&calls, 1) == 2 {
			cancel()
		}
		return nil
	})

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	assert.Equal(t, 5, result.Total())
	assert.Len(t, result.Succeeded, 2)
	for _, f := range result.Failed {
		assert.ErrorIs(t, f.Err, context.Canceled)
	}
}

func TestPartialFailureTruncatesMessage(t *testing.T) {
	pf := &PartialFailure{Op: "copy", Total: 5}
	for _, k := range []string{"a", "b", "c", "d", "e"} {
		pf.Failed = append(pf.Failed, Failure{Key: k, Err: errors.New("x")})
	}
	assert.Equal(t, "copy: 5 of 5 objects failed; a: x; b: x; c: x; and 2 more", pf.Error())
}

func TestNilResultHasNoError(t *testing.T) {
	var r *Result
	assert.NoError(t, r.Err())
}
