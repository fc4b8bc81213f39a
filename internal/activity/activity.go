// Package activity describes audit events emitted after successful writes
// and the sinks that persist them.
package activity

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"society/internal/backend"
	"society/internal/core"
)

// Actions recorded in activity_logs.
const (
	ActionCreate   = "create"
	ActionUpdate   = "update"
	ActionDelete   = "delete"
	ActionGenerate = "generate"
	ActionSignIn   = "sign_in"
)

// Event is one audit record.
type Event struct {
	ID         string          `json:"id"`
	Action     string          `json:"action"`
	EntityType string          `json:"entity_type"`
	EntityID   string          `json:"entity_id,omitempty"`
	UserID     string          `json:"user_id,omitempty"`
	Details    json.RawMessage `json:"details,omitempty"`
	Timestamp  time.Time       `json:"timestamp"`
}

// Publisher hands events to a sink. Implementations must be safe for
// concurrent use.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// New builds an event for the actor carried by ctx. Details are marshalled
// to JSON; a value that cannot be encoded is dropped.
func New(ctx context.Context, action, entityType, entityID string, details any) Event {
	e := Event{
		ID:         uuid.NewString(),
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		UserID:     ActorFrom(ctx),
		Timestamp:  time.Now().UTC(),
	}
	if details != nil {
		if b, err := json.Marshal(details); err == nil {
			e.Details = b
		}
	}
	return e
}

// Validate checks the fields the activity_logs table requires.
func (e Event) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("activity event: empty id")
	}
	if e.Action == "" {
		return fmt.Errorf("activity event %s: empty action", e.ID)
	}
	return nil
}

type actorKey struct{}

// WithActor attaches the acting user's id to ctx.
func WithActor(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, actorKey{}, userID)
}

// ActorFrom returns the acting user's id, or "" for anonymous/system work.
func ActorFrom(ctx context.Context) string {
	id, _ := ctx.Value(actorKey{}).(string)
	return id
}

// Recorder persists events as activity_logs rows.
type Recorder struct {
	client backend.Client
}

func NewRecorder(client backend.Client) *Recorder {
	return &Recorder{client: client}
}

// Record inserts e. Re-recording an event whose id already exists is
// reported by the backend as a conflict.
func (r *Recorder) Record(ctx context.Context, e Event) error {
	if err := e.Validate(); err != nil {
		return err
	}
	rec := backend.Record{
		"id":     e.ID,
		"action": e.Action,
	}
	if e.UserID != "" {
		rec["user_id"] = e.UserID
	}
	if e.EntityType != "" {
		rec["entity_type"] = e.EntityType
	}
	if e.EntityID != "" {
		rec["entity_id"] = e.EntityID
	}
	if len(e.Details) > 0 {
		rec["details"] = e.Details
	}
	if err := backend.From(r.client, core.TableActivityLogs).Insert(ctx, []backend.Record{rec}, nil); err != nil {
		return fmt.Errorf("record activity %s: %w", e.ID, err)
	}
	return nil
}

// Recent returns the newest n activity rows.
func (r *Recorder) Recent(ctx context.Context, n int) ([]core.ActivityLogRow, error) {
	var rows []core.ActivityLogRow
	err := backend.From(r.client, core.TableActivityLogs).
		Order("created_at", false).
		Limit(n).
		Rows(ctx, &rows)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// Publish makes Recorder usable as an in-process Publisher when no broker
// is configured.
func (r *Recorder) Publish(ctx context.Context, e Event) error {
	return r.Record(ctx, e)
}

// Fanout publishes to every sink and returns the first failure after trying
// them all.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, e Event) error {
	var first error
	for _, p := range f {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, e); err != nil {
			slog.WarnContext(ctx, "Activity sink failed", "event_id", e.ID, "error", err)
			if first == nil {
				first = err
			}
		}
	}
	return first
}
