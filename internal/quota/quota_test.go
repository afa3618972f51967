package quota

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nudgegate/internal/period"
	"nudgegate/internal/store"
	"nudgegate/internal/types"
)

type nopLogger struct{}

func (nopLogger) Info(string, ...any)        {}
func (nopLogger) Error(string, ...any)       {}
func (nopLogger) Warn(string, ...any)        {}
func (l nopLogger) With(...any) types.Logger { return l }

// fakePending is a canned PendingLister.
type fakePending struct {
	items []types.ScheduledItem
	err   error
}

func (f *fakePending) ListPending(context.Context) ([]types.ScheduledItem, error) {
	return f.items, f.err
}

var (
	sep = period.Key{Year: 2026, Month: time.September}
	oct = period.Key{Year: 2026, Month: time.October}
)

func newTestStore(pending *fakePending) (*Store, *store.Memory) {
	kv := store.NewMemory()
	return New(kv, pending, 1, nopLogger{}), kv
}

func TestTryReserve_FirstClaimWins(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(&fakePending{})

	ok, err := s.TryReserve(ctx, sep)
	require.NoError(t, err)
	assert.True(t, ok)

	// Same period: slot already consumed whole.
	ok, err = s.TryReserve(ctx, sep)
	require.NoError(t, err)
	assert.False(t, ok)

	// Different period: another period holds the claim.
	ok, err = s.TryReserve(ctx, oct)
	require.NoError(t, err)
	assert.False(t, ok)

	res := s.Snapshot(ctx)
	assert.Equal(t, sep, res.Period)
	assert.Equal(t, 1, res.ClaimedCount)
}

func TestTryReserve_ConcurrentSinglePeriod(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(&fakePending{})

	const k = 32
	var wg sync.WaitGroup
	wins := make(chan struct{}, k)
	for i := 0; i < k; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.TryReserve(ctx, sep)
			assert.NoError(t, err)
			if ok {
				wins <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(wins)

	won := 0
	for range wins {
		won++
	}
	assert.Equal(t, 1, won, "exactly one concurrent reservation may win")
}

func TestRelease_ClearsWhenNothingPending(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(&fakePending{})

	ok, _ := s.TryReserve(ctx, sep)
	require.True(t, ok)

	require.NoError(t, s.Release(ctx, sep))
	assert.False(t, s.Snapshot(ctx).Active())

	// Slot is reclaimable after release.
	ok, err := s.TryReserve(ctx, sep)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRelease_KeepsClaimWhileItemTargetsPeriod(t *testing.T) {
	ctx := context.Background()
	fire := time.Date(2026, time.September, 1, 10, 30, 0, 0, time.UTC)
	pending := &fakePending{items: []types.ScheduledItem{{ID: "challenge-w1", NextTrigger: &fire}}}
	s, _ := newTestStore(pending)

	ok, _ := s.TryReserve(ctx, sep)
	require.True(t, ok)

	require.NoError(t, s.Release(ctx, sep))
	assert.True(t, s.Snapshot(ctx).Active(), "claim must survive while a pending item targets the period")
}

func TestRelease_KeepsClaimWhenPendingUnavailable(t *testing.T) {
	ctx := context.Background()
	pending := &fakePending{err: assert.AnError}
	s, _ := newTestStore(pending)

	ok, _ := s.TryReserve(ctx, sep)
	require.True(t, ok)

	require.NoError(t, s.Release(ctx, sep))
	assert.True(t, s.Snapshot(ctx).Active())
}

func TestRelease_IgnoresMismatchedPeriod(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(&fakePending{})

	ok, _ := s.TryReserve(ctx, sep)
	require.True(t, ok)

	require.NoError(t, s.Release(ctx, oct))
	assert.True(t, s.Snapshot(ctx).Active())
}

func TestResetIfRolledOver(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(&fakePending{})

	ok, _ := s.TryReserve(ctx, sep)
	require.True(t, ok)

	// Still inside September: no reset.
	rolled, err := s.ResetIfRolledOver(ctx, time.Date(2026, time.September, 30, 23, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.False(t, rolled)
	assert.True(t, s.Snapshot(ctx).Active())

	// One period later, e.g. after a process restart with no surviving timer.
	rolled, err = s.ResetIfRolledOver(ctx, time.Date(2026, time.October, 1, 0, 0, 1, 0, time.UTC))
	require.NoError(t, err)
	assert.True(t, rolled)
	assert.False(t, s.Snapshot(ctx).Active())

	// The slot for the new period is open again.
	ok, err = s.TryReserve(ctx, oct)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCorruptStateFailsOpen(t *testing.T) {
	ctx := context.Background()
	s, kv := newTestStore(&fakePending{})

	require.NoError(t, kv.Set(ctx, "quota/reservation", []byte("{not json")))

	res := s.Snapshot(ctx)
	assert.False(t, res.Active(), "corrupt state must read as no reservation")

	ok, err := s.TryReserve(ctx, sep)
	require.NoError(t, err)
	assert.True(t, ok, "a corrupt flag must never permanently block reservations")
}

func TestOverCapCountSurvivesLoad(t *testing.T) {
	ctx := context.Background()
	s, kv := newTestStore(&fakePending{})

	require.NoError(t, kv.Set(ctx, "quota/reservation",
		[]byte(`{"period":{"year":2026,"month":9},"claimed_count":3}`)))

	res := s.Snapshot(ctx)
	assert.Equal(t, 3, res.ClaimedCount, "over-cap counts are surfaced for the auditor, not clamped")

	ok, err := s.TryReserve(ctx, sep)
	require.NoError(t, err)
	assert.False(t, ok)
}
