package sheets

import (
	"context"

	"society/internal/activity"
)

// Ports for outbound adapters.
type (
	// ActivityWriter mirrors audit events to a spreadsheet.
	ActivityWriter interface {
		AppendActivity(ctx context.Context, e activity.Event) (rowRef string, err error)
	}

	// ActivityLister reads mirrored events back, newest last.
	ActivityLister interface {
		ListActivity(ctx context.Context) ([]activity.Event, error)
	}
)

// Header is the first row of an activity sheet.
var Header = []string{"Timestamp", "Action", "Entity", "Entity ID", "User ID", "Details", "Event ID"}
