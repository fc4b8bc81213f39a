package memory

import (
	"context"
	"fmt"
	"sync"

	"society/internal/activity"
	ports "society/internal/sheets"
)

// Store keeps mirrored activity rows in process.
type Store struct {
	mu    sync.Mutex
	items []activity.Event
}

var (
	_ ports.ActivityWriter = (*Store)(nil)
	_ ports.ActivityLister = (*Store)(nil)
)

func New() *Store {
	return &Store{}
}

// AppendActivity stores the event and returns a synthetic row reference.
// Row 1 is reserved for the header, matching the spreadsheet layout.
func (s *Store) AppendActivity(_ context.Context, e activity.Event) (string, error) {
	if err := e.Validate(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, e)
	return fmt.Sprintf("mem!A%d:G%d", len(s.items)+1, len(s.items)+1), nil
}

func (s *Store) ListActivity(_ context.Context) ([]activity.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]activity.Event(nil), s.items...), nil
}
