package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/config"
	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/proctor"
	"github.com/stemsi/exstem-proctor/internal/worker"
)

// Session errors
var (
	ErrSessionNotFound = errors.New("exam session not found")
	ErrNotRegistered   = errors.New("student is not registered in this session")
	ErrNotEligible     = errors.New("student is not eligible for this exam")
)

// Monitor event types published on a session's channel.
const (
	EventActivity = "activity"
	EventStatus   = "status"
	EventJoined   = "joined"
)

// MonitorEvent is what proctors watching a session receive.
type MonitorEvent struct {
	Type      string              `json:"type"`
	SessionID string              `json:"session_id"`
	StudentID string              `json:"student_id,omitempty"`
	Action    string              `json:"action,omitempty"`
	Status    model.SessionStatus `json:"status,omitempty"`
	Timestamp time.Time           `json:"timestamp"`
}

// StudentProgress summarizes one student in a monitor snapshot.
type StudentProgress struct {
	StudentID     string     `json:"student_id"`
	ActivityCount int        `json:"activity_count"`
	LastAction    string     `json:"last_action,omitempty"`
	LastActionAt  *time.Time `json:"last_action_at,omitempty"`
	Submitted     bool       `json:"submitted"`
}

// MonitorSnapshot is the full state of a session for a proctor dashboard.
type MonitorSnapshot struct {
	Session       model.ExamSession `json:"session"`
	Students      []StudentProgress `json:"students"`
	TotalActivity int               `json:"total_activity"`
}

// EntryTokens hashes and checks session entry tokens.
type EntryTokens interface {
	HashEntryToken(token string) (string, error)
	CheckEntryToken(hash, token string) error
}

type liveSession struct {
	info model.ExamSession
	core *proctor.Session

	// lifecycle orders transitions with their store writes.
	lifecycle sync.Mutex
}

// view renders the session record with its current lifecycle state.
func (l *liveSession) view() model.ExamSession {
	v := l.info
	v.Status = l.core.State()
	if at := l.core.StartedAt(); !at.IsZero() {
		v.StartedAt = &at
	}
	if at := l.core.EndedAt(); !at.IsZero() {
		v.EndedAt = &at
	}
	v.Students = l.core.Students()
	return v
}

// ProctorService is the registry of proctored sessions. Live state is kept
// in memory; every transition, enrollment and recorded action is mirrored
// to Postgres (directly or through the activity queue) so a restart can
// rebuild it.
type ProctorService struct {
	exams    ExamReader
	history  model.SubmissionHistory
	store    SessionStore
	activity ActivityStore
	producer Producer
	tokens   EntryTokens
	window   time.Duration
	now      func() time.Time
	log      zerolog.Logger

	mu   sync.RWMutex
	live map[uuid.UUID]*liveSession
}

// NewProctorService creates a new ProctorService.
func NewProctorService(
	exams ExamReader,
	history model.SubmissionHistory,
	store SessionStore,
	activity ActivityStore,
	producer Producer,
	tokens EntryTokens,
	dedupWindow time.Duration,
	log zerolog.Logger,
) *ProctorService {
	return &ProctorService{
		exams:    exams,
		history:  history,
		store:    store,
		activity: activity,
		producer: producer,
		tokens:   tokens,
		window:   dedupWindow,
		now:      time.Now,
		log:      log.With().Str("component", "proctor_service").Logger(),
		live:     make(map[uuid.UUID]*liveSession),
	}
}

// CreateSession opens a session on a published exam. A non-empty entry
// token is stored hashed and required from students joining.
func (s *ProctorService) CreateSession(ctx context.Context, req model.CreateSessionRequest, createdBy string) (model.ExamSession, error) {
	exam, err := s.exams.GetExam(ctx, req.ExamID)
	if err != nil {
		return model.ExamSession{}, err
	}
	if !exam.IsPublished() {
		return model.ExamSession{}, ErrExamNotPublished
	}

	info := model.ExamSession{
		ID:        uuid.New(),
		ExamID:    exam.ID,
		Status:    model.SessionStatusCreated,
		CreatedBy: createdBy,
	}
	if req.EntryToken != "" {
		if info.EntryTokenHash, err = s.tokens.HashEntryToken(req.EntryToken); err != nil {
			return model.ExamSession{}, fmt.Errorf("hash entry token: %w", err)
		}
	}

	if err := s.store.Create(ctx, &info); err != nil {
		return model.ExamSession{}, fmt.Errorf("create session: %w", err)
	}

	ls := &liveSession{info: info, core: proctor.NewSession(s.window)}
	s.mu.Lock()
	s.live[info.ID] = ls
	s.mu.Unlock()

	s.log.Info().
		Str("session_id", info.ID.String()).
		Str("exam_id", exam.ID).
		Bool("entry_token", info.EntryTokenHash != "").
		Msg("Session created")
	return ls.view(), nil
}

// Get returns a session with its current state and roster.
func (s *ProctorService) Get(ctx context.Context, id uuid.UUID) (model.ExamSession, error) {
	ls, err := s.lookup(ctx, id)
	if err != nil {
		return model.ExamSession{}, err
	}
	return ls.view(), nil
}

// List returns stored sessions with live state applied where loaded.
func (s *ProctorService) List(ctx context.Context, examID string) ([]model.ExamSession, error) {
	stored, err := s.store.List(ctx, examID)
	if err != nil {
		return nil, err
	}

	out := make([]model.ExamSession, 0, len(stored))
	s.mu.RLock()
	for _, info := range stored {
		if ls, ok := s.live[info.ID]; ok {
			out = append(out, ls.view())
			continue
		}
		out = append(out, info)
	}
	s.mu.RUnlock()
	return out, nil
}

// Start activates a session. Starting an active session is a no-op.
func (s *ProctorService) Start(ctx context.Context, id uuid.UUID) (model.ExamSession, error) {
	return s.transition(ctx, id, model.SessionStatusActive)
}

// End closes a session for good. Ending twice is a no-op.
func (s *ProctorService) End(ctx context.Context, id uuid.UUID) (model.ExamSession, error) {
	return s.transition(ctx, id, model.SessionStatusEnded)
}

func (s *ProctorService) transition(ctx context.Context, id uuid.UUID, to model.SessionStatus) (model.ExamSession, error) {
	ls, err := s.lookup(ctx, id)
	if err != nil {
		return model.ExamSession{}, err
	}

	ls.lifecycle.Lock()
	defer ls.lifecycle.Unlock()

	var at time.Time
	switch to {
	case model.SessionStatusActive:
		if err := ls.core.Start(s.now()); err != nil {
			return model.ExamSession{}, err
		}
		at = ls.core.StartedAt()
	case model.SessionStatusEnded:
		if err := ls.core.End(s.now()); err != nil {
			return model.ExamSession{}, err
		}
		at = ls.core.EndedAt()
	}

	if err := s.store.UpdateStatus(ctx, id, to, at); err != nil {
		s.log.Error().Err(err).Str("session_id", id.String()).Str("status", string(to)).Msg("Failed to persist session status")
	}
	s.publish(ctx, MonitorEvent{Type: EventStatus, SessionID: id.String(), Status: to, Timestamp: at})

	s.log.Info().Str("session_id", id.String()).Str("status", string(to)).Msg("Session transitioned")
	return ls.view(), nil
}

// RegisterStudent enrolls an eligible student. Enrolling a student twice is
// a no-op that keeps their log.
func (s *ProctorService) RegisterStudent(ctx context.Context, id uuid.UUID, studentID string) error {
	ls, err := s.lookup(ctx, id)
	if err != nil {
		return err
	}
	if ls.core.IsRegistered(studentID) {
		return nil
	}
	return s.register(ctx, ls, studentID)
}

// Join enrolls the calling student after checking the session's entry
// token. A student already enrolled may rejoin.
func (s *ProctorService) Join(ctx context.Context, id uuid.UUID, studentID, entryToken string) (model.ExamSession, error) {
	ls, err := s.lookup(ctx, id)
	if err != nil {
		return model.ExamSession{}, err
	}
	if err := s.tokens.CheckEntryToken(ls.info.EntryTokenHash, entryToken); err != nil {
		return model.ExamSession{}, err
	}
	if ls.core.State() == model.SessionStatusEnded {
		return model.ExamSession{}, proctor.ErrSessionEnded
	}
	if !ls.core.IsRegistered(studentID) {
		if err := s.register(ctx, ls, studentID); err != nil {
			return model.ExamSession{}, err
		}
	}
	return ls.view(), nil
}

func (s *ProctorService) register(ctx context.Context, ls *liveSession, studentID string) error {
	if ls.core.State() == model.SessionStatusEnded {
		return proctor.ErrSessionEnded
	}

	exam, err := s.exams.GetExam(ctx, ls.info.ExamID)
	if err != nil {
		return err
	}
	eligible, err := exam.IsEligible(ctx, studentID, s.history)
	if err != nil {
		return err
	}
	if !eligible {
		return ErrNotEligible
	}

	if err := ls.core.RegisterStudent(studentID); err != nil {
		return err
	}
	if err := s.store.AddStudent(ctx, ls.info.ID, studentID); err != nil {
		s.log.Error().Err(err).
			Str("session_id", ls.info.ID.String()).
			Str("student_id", studentID).
			Msg("Failed to persist enrollment")
	}

	s.publish(ctx, MonitorEvent{
		Type:      EventJoined,
		SessionID: ls.info.ID.String(),
		StudentID: studentID,
		Timestamp: s.now(),
	})
	return nil
}

// Record classifies a client notification and, when it is suspicious and
// not a burst repeat, appends it to the student's log, queues it for
// persistence and broadcasts it to monitors. Once the session has ended it
// fails with proctor.ErrSessionEnded.
func (s *ProctorService) Record(ctx context.Context, id uuid.UUID, studentID string, n proctor.Notification) (model.ActivityLogEntry, bool, error) {
	ls, err := s.lookup(ctx, id)
	if err != nil {
		return model.ActivityLogEntry{}, false, err
	}
	if !ls.core.IsRegistered(studentID) {
		return model.ActivityLogEntry{}, false, ErrNotRegistered
	}

	entry, ok := ls.core.RecordStudentEvent(studentID, n)
	if !ok {
		if ls.core.State() == model.SessionStatusEnded {
			return entry, false, proctor.ErrSessionEnded
		}
		return entry, false, nil
	}

	activity := model.StudentActivity{SessionID: id, StudentID: studentID, ActivityLogEntry: entry}
	if err := s.producer.Enqueue(ctx, config.WorkerKey.PersistActivityQueue, worker.NewActivityPayload(activity)); err != nil {
		s.log.Error().Err(err).
			Str("session_id", id.String()).
			Str("student_id", studentID).
			Str("label", entry.Action).
			Msg("Failed to queue activity")
	}
	s.publish(ctx, MonitorEvent{
		Type:      EventActivity,
		SessionID: id.String(),
		StudentID: studentID,
		Action:    entry.Action,
		Timestamp: entry.Timestamp,
	})

	s.log.Debug().
		Str("session_id", id.String()).
		Str("student_id", studentID).
		Str("label", entry.Action).
		Msg("Suspicious activity recorded")
	return entry, true, nil
}

// Log returns a student's activity log; empty if never registered.
func (s *ProctorService) Log(ctx context.Context, id uuid.UUID, studentID string) ([]model.ActivityLogEntry, error) {
	ls, err := s.lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	return ls.core.Log(studentID), nil
}

// Monitor builds a per-student summary of a session. Submission lookups
// run concurrently and are best-effort.
func (s *ProctorService) Monitor(ctx context.Context, id uuid.UUID) (*MonitorSnapshot, error) {
	ls, err := s.lookup(ctx, id)
	if err != nil {
		return nil, err
	}

	snap := ls.core.Snapshot()
	students := ls.core.Students()
	progress := make([]StudentProgress, len(students))

	var wg sync.WaitGroup
	total := 0
	for i, sid := range students {
		entries := snap.Logs[sid]
		p := StudentProgress{StudentID: sid, ActivityCount: len(entries)}
		if n := len(entries); n > 0 {
			last := entries[n-1]
			p.LastAction = last.Action
			p.LastActionAt = &last.Timestamp
		}
		total += len(entries)
		progress[i] = p

		wg.Add(1)
		go func(i int, sid string) {
			defer wg.Done()
			submitted, err := s.history.HasPriorSubmission(ctx, sid, ls.info.ExamID)
			if err != nil {
				s.log.Warn().Err(err).Str("student_id", sid).Msg("Submission lookup failed")
				return
			}
			progress[i].Submitted = submitted
		}(i, sid)
	}
	wg.Wait()

	return &MonitorSnapshot{Session: ls.view(), Students: progress, TotalActivity: total}, nil
}

// Restore reloads every session that had not ended, logs included.
func (s *ProctorService) Restore(ctx context.Context) (int, error) {
	open, err := s.store.ListOpen(ctx)
	if err != nil {
		return 0, fmt.Errorf("list open sessions: %w", err)
	}

	restored := 0
	for i := range open {
		if _, err := s.restore(ctx, &open[i]); err != nil {
			s.log.Warn().Err(err).Str("session_id", open[i].ID.String()).Msg("Failed to restore session, skipping")
			continue
		}
		restored++
	}
	return restored, nil
}

// lookup returns the live session, loading it from storage on first use.
func (s *ProctorService) lookup(ctx context.Context, id uuid.UUID) (*liveSession, error) {
	s.mu.RLock()
	ls, ok := s.live[id]
	s.mu.RUnlock()
	if ok {
		return ls, nil
	}

	info, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("load session: %w", err)
	}
	return s.restore(ctx, info)
}

func (s *ProctorService) restore(ctx context.Context, info *model.ExamSession) (*liveSession, error) {
	logs, err := s.activity.ListBySession(ctx, info.ID)
	if err != nil {
		return nil, fmt.Errorf("load activity: %w", err)
	}

	snap := proctor.Snapshot{State: info.Status, Logs: make(map[string][]model.ActivityLogEntry)}
	if info.StartedAt != nil {
		snap.StartedAt = *info.StartedAt
	}
	if info.EndedAt != nil {
		snap.EndedAt = *info.EndedAt
	}
	for _, sid := range info.Students {
		snap.Logs[sid] = logs[sid]
	}

	record := *info
	record.Students = nil
	ls := &liveSession{info: record, core: proctor.RestoreSession(snap, s.window)}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.live[info.ID]; ok {
		return existing, nil
	}
	s.live[info.ID] = ls
	return ls, nil
}

func (s *ProctorService) publish(ctx context.Context, ev MonitorEvent) {
	if err := s.producer.Publish(ctx, ev.SessionID, ev); err != nil {
		s.log.Warn().Err(err).Str("session_id", ev.SessionID).Str("type", ev.Type).Msg("Failed to publish monitor event")
	}
}
