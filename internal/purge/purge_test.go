package purge

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nudgegate/internal/policy"
	"nudgegate/internal/types"
)

type nopLogger struct{}

func (nopLogger) Info(string, ...any)        {}
func (nopLogger) Error(string, ...any)       {}
func (nopLogger) Warn(string, ...any)        {}
func (l nopLogger) With(...any) types.Logger { return l }

type stubDelivery struct {
	items     map[string]types.ScheduledItem
	listCalls int
}

func newStubDelivery(items ...types.ScheduledItem) *stubDelivery {
	d := &stubDelivery{items: map[string]types.ScheduledItem{}}
	for _, it := range items {
		d.items[it.ID] = it
	}
	return d
}

func (d *stubDelivery) Add(context.Context, string, types.NotificationContent, types.CanonicalTrigger) error {
	return nil
}

func (d *stubDelivery) Remove(_ context.Context, ids ...string) error {
	for _, id := range ids {
		delete(d.items, id)
	}
	return nil
}

func (d *stubDelivery) ListPending(context.Context) ([]types.ScheduledItem, error) {
	d.listCalls++
	out := make([]types.ScheduledItem, 0, len(d.items))
	for _, it := range d.items {
		out = append(out, it)
	}
	return out, nil
}

func (d *stubDelivery) AuthorizationStatus(context.Context) (types.AuthorizationStatus, error) {
	return types.AuthorizationGranted, nil
}

func at(hour int) *time.Time {
	t := time.Date(2026, time.October, 1, hour, 30, 0, 0, time.UTC)
	return &t
}

func tagged(id string, pol types.DeliveryPolicy, hour int) types.ScheduledItem {
	return types.ScheduledItem{
		ID:          id,
		NextTrigger: at(hour),
		Metadata:    map[string]string{types.MetadataPolicyKey: string(pol)},
	}
}

func TestSweepRemovesKnownLegacyShapes(t *testing.T) {
	ctx := context.Background()
	d := newStubDelivery(
		types.ScheduledItem{ID: "daily-nudge-42", NextTrigger: at(10)},
		types.ScheduledItem{ID: "loop", NextTrigger: at(10), Repeats: true,
			Metadata: map[string]string{types.MetadataPolicyKey: string(types.PolicyNudge)}},
		types.ScheduledItem{ID: "old-hour", NextTrigger: at(legacyHour)},
		tagged("off-window", types.PolicyPeriodCapped, 22),
		tagged("keep", types.PolicyPeriodCapped, 10),
	)
	p := New(d, policy.DefaultConfig(), nopLogger{})

	removed, err := p.RunOnce(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"daily-nudge-42", "loop", "old-hour", "off-window"}, removed)

	_, kept := d.items["keep"]
	assert.True(t, kept)
	assert.Len(t, d.items, 1)
}

func TestSweepLeavesUnrecognizedItemsAlone(t *testing.T) {
	ctx := context.Background()
	d := newStubDelivery(
		// Untagged, not at the retired hour, no deprecated prefix: could be
		// anything, so it stays.
		types.ScheduledItem{ID: "mystery", NextTrigger: at(7)},
		// Untagged with no trigger at all.
		types.ScheduledItem{ID: "asap"},
		// Critical items keep whatever time they carry.
		tagged("crit", types.PolicyCritical, 23),
	)
	p := New(d, policy.DefaultConfig(), nopLogger{})

	removed, err := p.RunOnce(ctx)
	require.NoError(t, err)
	assert.Empty(t, removed)
	assert.Len(t, d.items, 3)
}

func TestRunOnceIsOncePerProcess(t *testing.T) {
	ctx := context.Background()
	d := newStubDelivery(types.ScheduledItem{ID: "daily-nudge-1", NextTrigger: at(10)})
	p := New(d, policy.DefaultConfig(), nopLogger{})

	removed, err := p.RunOnce(ctx)
	require.NoError(t, err)
	assert.Len(t, removed, 1)

	removed, err = p.RunOnce(ctx)
	require.NoError(t, err)
	assert.Nil(t, removed)
	assert.Equal(t, 1, d.listCalls, "second call must not rescan")
}
