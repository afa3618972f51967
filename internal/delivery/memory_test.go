package delivery

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nudgegate/internal/types"
)

type nopLogger struct{}

func (nopLogger) Info(string, ...any)        {}
func (nopLogger) Error(string, ...any)       {}
func (nopLogger) Warn(string, ...any)        {}
func (l nopLogger) With(...any) types.Logger { return l }

func content(title string) types.NotificationContent {
	return types.NotificationContent{Title: title, Category: types.CategoryOther}
}

func futureTrigger(d time.Duration) types.CanonicalTrigger {
	at := time.Now().UTC().Add(d)
	return types.CanonicalTrigger{At: &at}
}

func TestAddReplacesByID(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(types.RealClock{}, nopLogger{})
	defer m.Close()

	require.NoError(t, m.Add(ctx, "n1", content("first"), futureTrigger(time.Hour)))
	require.NoError(t, m.Add(ctx, "n1", content("second"), futureTrigger(2*time.Hour)))

	items, err := m.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "n1", items[0].ID)
}

func TestRemoveIgnoresUnknownIDs(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(types.RealClock{}, nopLogger{})
	defer m.Close()

	require.NoError(t, m.Add(ctx, "keep", content("keep"), futureTrigger(time.Hour)))
	require.NoError(t, m.Remove(ctx, "missing", "keep"))

	items, err := m.ListPending(ctx)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestListPendingOrderedBySchedulingTime(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(types.RealClock{}, nopLogger{})
	defer m.Close()

	require.NoError(t, m.Add(ctx, "a", content("a"), futureTrigger(3*time.Hour)))
	time.Sleep(5 * time.Millisecond)
	require.NoError(t, m.Add(ctx, "b", content("b"), futureTrigger(time.Hour)))

	items, err := m.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "a", items[0].ID)
	assert.Equal(t, "b", items[1].ID)
}

func TestImmediateTriggerFires(t *testing.T) {
	ctx := context.Background()

	var mu sync.Mutex
	var firedID, firedMsg string
	fired := make(chan struct{})

	m := NewMemory(types.RealClock{}, nopLogger{}, WithFireFunc(func(msgID, id string, _ types.NotificationContent) {
		mu.Lock()
		firedID, firedMsg = id, msgID
		mu.Unlock()
		close(fired)
	}))
	defer m.Close()

	require.NoError(t, m.Add(ctx, "asap", content("asap"), types.CanonicalTrigger{}))

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("immediate trigger did not fire")
	}

	mu.Lock()
	assert.Equal(t, "asap", firedID)
	assert.NotEmpty(t, firedMsg)
	mu.Unlock()

	items, err := m.ListPending(ctx)
	require.NoError(t, err)
	assert.Empty(t, items, "fired item leaves the pending set")
}

func TestRemoveCancelsFire(t *testing.T) {
	ctx := context.Background()

	m := NewMemory(types.RealClock{}, nopLogger{}, WithFireFunc(func(_, _ string, _ types.NotificationContent) {
		t.Error("removed item must not fire")
	}))
	defer m.Close()

	require.NoError(t, m.Add(ctx, "doomed", content("doomed"), futureTrigger(50*time.Millisecond)))
	require.NoError(t, m.Remove(ctx, "doomed"))

	time.Sleep(150 * time.Millisecond)
}

func TestAuthorizationStatusConfigurable(t *testing.T) {
	ctx := context.Background()

	granted := NewMemory(types.RealClock{}, nopLogger{})
	defer granted.Close()
	s, err := granted.AuthorizationStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.AuthorizationGranted, s)

	denied := NewMemory(types.RealClock{}, nopLogger{}, WithAuthorizationStatus(types.AuthorizationDenied))
	defer denied.Close()
	s, err = denied.AuthorizationStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.AuthorizationDenied, s)
}

func TestAddAfterCloseFails(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(types.RealClock{}, nopLogger{})
	m.Close()

	err := m.Add(ctx, "late", content("late"), futureTrigger(time.Hour))
	require.Error(t, err)
	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeDeliveryUnavailable, appErr.Code)
}
