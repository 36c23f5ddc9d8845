package proctor

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/stemsi/exstem-proctor/internal/model"
)

// ErrSessionEnded is returned by transitions attempted on an ended session.
var ErrSessionEnded = errors.New("exam session has ended")

// Session owns the Created -> Active -> Ended lifecycle of one sitting and
// one ActivityLog per registered student.
//
// Recording holds the read lock for the whole append, End takes the write
// lock, so once End returns no further entry can land in any log.
type Session struct {
	mu        sync.RWMutex
	state     model.SessionStatus
	window    time.Duration
	logs      map[string]*ActivityLog
	startedAt time.Time
	endedAt   time.Time
}

// NewSession returns an inactive session without students.
func NewSession(dedupWindow time.Duration) *Session {
	return &Session{
		state:  model.SessionStatusCreated,
		window: dedupWindow,
		logs:   make(map[string]*ActivityLog),
	}
}

// RegisterStudent allocates a log for studentID. Registering twice keeps the
// existing log.
func (s *Session) RegisterStudent(studentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == model.SessionStatusEnded {
		return ErrSessionEnded
	}
	if _, ok := s.logs[studentID]; !ok {
		s.logs[studentID] = NewActivityLog(s.window)
	}
	return nil
}

// Start activates the session. Starting an active session is a no-op.
func (s *Session) Start(now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case model.SessionStatusEnded:
		return ErrSessionEnded
	case model.SessionStatusActive:
		return nil
	}
	s.state = model.SessionStatusActive
	s.startedAt = now
	return nil
}

// End closes the session for good. Logs stay readable.
func (s *Session) End(now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == model.SessionStatusEnded {
		return nil
	}
	s.state = model.SessionStatusEnded
	s.endedAt = now
	return nil
}

// RecordStudentEvent classifies n and appends the label to the student's
// log. Nothing happens unless the session is active, the student is
// registered and the notification is suspicious.
func (s *Session) RecordStudentEvent(studentID string, n Notification) (model.ActivityLogEntry, bool) {
	label, ok := Classify(n)
	if !ok {
		return model.ActivityLogEntry{}, false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.state != model.SessionStatusActive {
		return model.ActivityLogEntry{}, false
	}
	log, ok := s.logs[studentID]
	if !ok {
		return model.ActivityLogEntry{}, false
	}
	return log.Record(label, n.Timestamp)
}

// Log returns a copy of the student's log; empty if never registered.
func (s *Session) Log(studentID string) []model.ActivityLogEntry {
	s.mu.RLock()
	log, ok := s.logs[studentID]
	s.mu.RUnlock()

	if !ok {
		return []model.ActivityLogEntry{}
	}
	return log.Entries()
}

// IsRegistered reports whether studentID has a log in this session.
func (s *Session) IsRegistered(studentID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.logs[studentID]
	return ok
}

// Students lists registered students in lexical order.
func (s *Session) Students() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.logs))
	for id := range s.logs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (s *Session) State() model.SessionStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Session) IsActive() bool {
	return s.State() == model.SessionStatusActive
}

// StartedAt is zero until Start succeeds.
func (s *Session) StartedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.startedAt
}

// EndedAt is zero until End succeeds.
func (s *Session) EndedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.endedAt
}

// Snapshot is the persisted form of a session: its lifecycle state and
// every student's log.
type Snapshot struct {
	State     model.SessionStatus
	StartedAt time.Time
	EndedAt   time.Time
	Logs      map[string][]model.ActivityLogEntry
}

// Snapshot captures the session for persistence or monitoring.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	logs := make(map[string][]model.ActivityLogEntry, len(s.logs))
	for id, log := range s.logs {
		logs[id] = log.Entries()
	}
	return Snapshot{State: s.state, StartedAt: s.startedAt, EndedAt: s.endedAt, Logs: logs}
}

// RestoreSession rebuilds a session from a snapshot. Stored entries are
// taken as they are; the dedup window applies to new entries only.
func RestoreSession(snap Snapshot, dedupWindow time.Duration) *Session {
	s := NewSession(dedupWindow)
	if snap.State != "" {
		s.state = snap.State
	}
	s.startedAt = snap.StartedAt
	s.endedAt = snap.EndedAt
	for id, entries := range snap.Logs {
		log := NewActivityLog(dedupWindow)
		log.entries = append(log.entries, entries...)
		s.logs[id] = log
	}
	return s
}
