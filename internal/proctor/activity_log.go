package proctor

import (
	"sync"
	"time"

	"github.com/stemsi/exstem-proctor/internal/model"
)

// DefaultDedupWindow is how long a repeated action is suppressed.
const DefaultDedupWindow = 1000 * time.Millisecond

// ActivityLog is the append-only record of one student's suspicious actions
// within one session. A label identical to the previous entry is dropped
// while it arrives inside the dedup window.
type ActivityLog struct {
	mu      sync.Mutex
	window  time.Duration
	entries []model.ActivityLogEntry
}

// NewActivityLog creates an empty log. A non-positive window uses the default.
func NewActivityLog(window time.Duration) *ActivityLog {
	if window <= 0 {
		window = DefaultDedupWindow
	}
	return &ActivityLog{window: window}
}

// Record appends label at ts unless it repeats the last entry within the
// window. The returned bool reports whether an entry was appended.
func (l *ActivityLog) Record(label string, ts time.Time) (model.ActivityLogEntry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if n := len(l.entries); n > 0 {
		last := l.entries[n-1]
		if last.Action == label && ts.Sub(last.Timestamp) < l.window {
			return model.ActivityLogEntry{}, false
		}
	}

	entry := model.ActivityLogEntry{Action: label, Timestamp: ts}
	l.entries = append(l.entries, entry)
	return entry, true
}

// Entries returns a copy of the log in append order.
func (l *ActivityLog) Entries() []model.ActivityLogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]model.ActivityLogEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

func (l *ActivityLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
