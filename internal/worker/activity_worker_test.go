package worker

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"society/internal/activity"
	"society/internal/amqp"
	"society/internal/backend/memory"
	"society/internal/core"
	sheetmem "society/internal/sheets/memory"
)

type flakyMirror struct {
	fail  bool
	calls int
}

func (m *flakyMirror) AppendActivity(context.Context, activity.Event) (string, error) {
	m.calls++
	if m.fail {
		return "", errors.New("quota exceeded")
	}
	return "Activity!A2:G2", nil
}

func TestHandleActivityMessageRecordsAndMirrors(t *testing.T) {
	store := memory.New()
	mirror := sheetmem.New()
	w := NewActivityWorker(activity.NewRecorder(store), mirror)
	ctx := context.Background()

	e := activity.New(ctx, activity.ActionCreate, core.TableHouses, "h1", nil)
	require.NoError(t, w.HandleActivityMessage(ctx, amqp.NewActivityMessage(e)))

	assert.Equal(t, 1, store.Len(core.TableActivityLogs))
	mirrored, err := mirror.ListActivity(ctx)
	require.NoError(t, err)
	require.Len(t, mirrored, 1)
	assert.Equal(t, e.ID, mirrored[0].ID)
}

func TestHandleActivityMessageRedeliveryRetriesMirrorOnly(t *testing.T) {
	store := memory.New()
	mirror := &flakyMirror{fail: true}
	w := NewActivityWorker(activity.NewRecorder(store), mirror)
	ctx := context.Background()
	msg := amqp.NewActivityMessage(activity.New(ctx, activity.ActionDelete, core.TableVehicles, "v1", nil))

	err := w.HandleActivityMessage(ctx, msg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mirror activity")
	assert.Equal(t, 1, store.Len(core.TableActivityLogs))

	mirror.fail = false
	require.NoError(t, w.HandleActivityMessage(ctx, msg))
	assert.Equal(t, 1, store.Len(core.TableActivityLogs))
	assert.Equal(t, 2, mirror.calls)
}

func TestHandleActivityMessageWithoutMirror(t *testing.T) {
	store := memory.New()
	w := NewActivityWorker(activity.NewRecorder(store), nil)
	ctx := context.Background()

	require.NoError(t, w.HandleActivityMessage(ctx, amqp.NewActivityMessage(activity.New(ctx, activity.ActionSignIn, core.TableProfiles, "u1", nil))))
	assert.Equal(t, 1, store.Len(core.TableActivityLogs))
}

type outcomeRecorder []string

func (o *outcomeRecorder) ActivityEvent(action, outcome string) {
	*o = append(*o, action+":"+outcome)
}

func TestHandleActivityMessageReportsOutcomes(t *testing.T) {
	store := memory.New()
	mirror := &flakyMirror{fail: true}
	var outcomes outcomeRecorder
	w := NewActivityWorker(activity.NewRecorder(store), mirror, WithObserver(&outcomes))
	ctx := context.Background()
	msg := amqp.NewActivityMessage(activity.New(ctx, activity.ActionUpdate, core.TableHouses, "h1", nil))

	_ = w.HandleActivityMessage(ctx, msg)
	mirror.fail = false
	require.NoError(t, w.HandleActivityMessage(ctx, msg))

	assert.Equal(t, outcomeRecorder{
		"update:recorded", "update:failed",
		"update:duplicate", "update:mirrored",
	}, outcomes)
}
