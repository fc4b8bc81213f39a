package worker

import (
	"context"
	"fmt"
	"log/slog"

	"society/internal/activity"
	"society/internal/amqp"
	"society/internal/backend"
	"society/internal/sheets"
)

// ActivityWorker persists audit events delivered over AMQP and optionally
// mirrors them to a spreadsheet.
type ActivityWorker struct {
	recorder *activity.Recorder
	mirror   sheets.ActivityWriter
	observer Observer
}

// Observer is told the outcome of every handled event.
type Observer interface {
	ActivityEvent(action, outcome string)
}

// Outcomes reported to the Observer.
const (
	OutcomeRecorded  = "recorded"
	OutcomeDuplicate = "duplicate"
	OutcomeFailed    = "failed"
	OutcomeMirrored  = "mirrored"
)

type Option func(*ActivityWorker)

func WithObserver(o Observer) Option {
	return func(w *ActivityWorker) { w.observer = o }
}

// NewActivityWorker builds a worker. mirror may be nil.
func NewActivityWorker(recorder *activity.Recorder, mirror sheets.ActivityWriter, opts ...Option) *ActivityWorker {
	w := &ActivityWorker{recorder: recorder, mirror: mirror}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *ActivityWorker) observe(action, outcome string) {
	if w.observer != nil {
		w.observer.ActivityEvent(action, outcome)
	}
}

// HandleActivityMessage records one event. A redelivered event whose row
// already exists is not recorded twice, but is still mirrored so a
// previous mirror failure gets retried.
func (w *ActivityWorker) HandleActivityMessage(ctx context.Context, msg *amqp.ActivityMessage) error {
	e := msg.Event
	logger := slog.With("event_id", e.ID, "action", e.Action, "entity", e.EntityType)

	if err := w.recorder.Record(ctx, e); err != nil {
		if !backend.IsUniqueViolation(err) {
			w.observe(e.Action, OutcomeFailed)
			return fmt.Errorf("record activity: %w", err)
		}
		w.observe(e.Action, OutcomeDuplicate)
		logger.InfoContext(ctx, "Activity already recorded, skipping insert")
	} else {
		w.observe(e.Action, OutcomeRecorded)
	}

	if w.mirror == nil {
		return nil
	}
	ref, err := w.mirror.AppendActivity(ctx, e)
	if err != nil {
		w.observe(e.Action, OutcomeFailed)
		return fmt.Errorf("mirror activity: %w", err)
	}
	w.observe(e.Action, OutcomeMirrored)
	logger.DebugContext(ctx, "Mirrored activity to sheet", "row_ref", ref)
	return nil
}
