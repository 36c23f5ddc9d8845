package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/repository"
)

var errBackend = errors.New("backend unavailable")

func quietLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

// ─── Exams ────────────────────────────────────────────────────────────

type fakeExamStore struct {
	mu    sync.Mutex
	exams map[string]model.ExamPayload
	loads int

	// beforeInsert runs once, unlocked, ahead of the next AddQuestion.
	beforeInsert func()
}

func newFakeExamStore() *fakeExamStore {
	return &fakeExamStore{exams: make(map[string]model.ExamPayload)}
}

func copyQuestions(qs []*model.Question) []*model.Question {
	out := make([]*model.Question, len(qs))
	for i, q := range qs {
		cp := *q
		cp.Options = append([]string(nil), q.Options...)
		out[i] = &cp
	}
	return out
}

func (f *fakeExamStore) Create(_ context.Context, e *model.Exam) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.exams[e.ID]; ok {
		return repository.ErrDuplicate
	}
	e.CreatedAt = time.Now()
	f.exams[e.ID] = model.ExamPayload{Exam: *e}
	return nil
}

func (f *fakeExamStore) Load(_ context.Context, id string) (*model.Exam, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loads++
	p, ok := f.exams[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	p.Questions = copyQuestions(p.Questions)
	return model.FromPayload(p)
}

func (f *fakeExamStore) AddQuestion(_ context.Context, q *model.Question) error {
	f.mu.Lock()
	hook := f.beforeInsert
	f.beforeInsert = nil
	f.mu.Unlock()
	if hook != nil {
		hook()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.exams[q.ExamID]
	if !ok || p.Exam.Status != model.ExamStatusDraft {
		return model.ErrExamPublished
	}
	for _, existing := range p.Questions {
		if existing.ID == q.ID {
			return repository.ErrDuplicate
		}
	}
	p.Questions = append(p.Questions, copyQuestions([]*model.Question{q})...)
	f.exams[q.ExamID] = p
	return nil
}

func (f *fakeExamStore) UpdateCorrectOption(_ context.Context, examID, questionID, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.exams[examID]
	if !ok || p.Exam.Status == model.ExamStatusPublished {
		return pgx.ErrNoRows
	}
	for _, q := range p.Questions {
		if q.ID == questionID {
			q.CorrectOption = token
			return nil
		}
	}
	return pgx.ErrNoRows
}

func (f *fakeExamStore) MarkPublished(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := f.exams[id]
	p.Exam.Status = model.ExamStatusPublished
	f.exams[id] = p
	return nil
}

func (f *fakeExamStore) List(_ context.Context, status model.ExamStatus) ([]model.Exam, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Exam
	for _, p := range f.exams {
		if status == "" || p.Exam.Status == status {
			out = append(out, p.Exam)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type fakeExamCache struct {
	mu      sync.Mutex
	exams   map[string]*model.Exam
	failGet bool
	sets    int
}

func newFakeExamCache() *fakeExamCache {
	return &fakeExamCache{exams: make(map[string]*model.Exam)}
}

func (f *fakeExamCache) Get(_ context.Context, id string) (*model.Exam, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failGet {
		return nil, errBackend
	}
	e, ok := f.exams[id]
	if !ok {
		return nil, repository.ErrCacheMiss
	}
	return e, nil
}

func (f *fakeExamCache) Set(_ context.Context, e *model.Exam) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sets++
	f.exams[e.ID] = e
	return nil
}

// staticExams serves prebuilt exams.
type staticExams map[string]*model.Exam

func (s staticExams) GetExam(_ context.Context, id string) (*model.Exam, error) {
	e, ok := s[id]
	if !ok {
		return nil, ErrExamNotFound
	}
	return e, nil
}

// ─── Sessions and activity ───────────────────────────────────────────

type fakeSessionStore struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]model.ExamSession
	updates  []model.SessionStatus
	getCalls int
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{sessions: make(map[uuid.UUID]model.ExamSession)}
}

func (f *fakeSessionStore) Create(_ context.Context, s *model.ExamSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s.CreatedAt = time.Now()
	f.sessions[s.ID] = *s
	return nil
}

func (f *fakeSessionStore) GetByID(_ context.Context, id uuid.UUID) (*model.ExamSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls++
	s, ok := f.sessions[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	s.Students = append([]string(nil), s.Students...)
	return &s, nil
}

func (f *fakeSessionStore) UpdateStatus(_ context.Context, id uuid.UUID, status model.SessionStatus, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.sessions[id]
	if status == model.SessionStatusActive && s.Status != model.SessionStatusCreated {
		f.updates = append(f.updates, status)
		return nil
	}
	s.Status = status
	switch status {
	case model.SessionStatusActive:
		s.StartedAt = &at
	case model.SessionStatusEnded:
		s.EndedAt = &at
	}
	f.sessions[id] = s
	f.updates = append(f.updates, status)
	return nil
}

func (f *fakeSessionStore) AddStudent(_ context.Context, id uuid.UUID, studentID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.sessions[id]
	for _, existing := range s.Students {
		if existing == studentID {
			return nil
		}
	}
	s.Students = append(s.Students, studentID)
	f.sessions[id] = s
	return nil
}

func (f *fakeSessionStore) List(_ context.Context, examID string) ([]model.ExamSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.ExamSession
	for _, s := range f.sessions {
		if examID == "" || s.ExamID == examID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeSessionStore) ListOpen(_ context.Context) ([]model.ExamSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.ExamSession
	for _, s := range f.sessions {
		if s.Status != model.SessionStatusEnded {
			s.Students = append([]string(nil), s.Students...)
			out = append(out, s)
		}
	}
	return out, nil
}

// gatedSessionStore holds ACTIVE writes until release is closed.
type gatedSessionStore struct {
	*fakeSessionStore
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func newGatedSessionStore(inner *fakeSessionStore) *gatedSessionStore {
	return &gatedSessionStore{fakeSessionStore: inner, entered: make(chan struct{}), release: make(chan struct{})}
}

func (g *gatedSessionStore) UpdateStatus(ctx context.Context, id uuid.UUID, status model.SessionStatus, at time.Time) error {
	if status == model.SessionStatusActive {
		g.once.Do(func() { close(g.entered) })
		<-g.release
	}
	return g.fakeSessionStore.UpdateStatus(ctx, id, status, at)
}

type fakeActivityStore struct {
	logs map[uuid.UUID]map[string][]model.ActivityLogEntry
}

func (f *fakeActivityStore) ListByStudent(_ context.Context, id uuid.UUID, studentID string) ([]model.ActivityLogEntry, error) {
	return f.logs[id][studentID], nil
}

func (f *fakeActivityStore) ListBySession(_ context.Context, id uuid.UUID) (map[string][]model.ActivityLogEntry, error) {
	out := make(map[string][]model.ActivityLogEntry)
	for sid, entries := range f.logs[id] {
		out[sid] = append([]model.ActivityLogEntry(nil), entries...)
	}
	return out, nil
}

// ─── Submissions, answers, results ───────────────────────────────────

type fakeSet struct {
	mu      sync.Mutex
	members map[string]map[string]bool
	fail    bool
}

func newFakeSet() *fakeSet {
	return &fakeSet{members: make(map[string]map[string]bool)}
}

func (f *fakeSet) Contains(_ context.Context, examID, studentID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return false, errBackend
	}
	return f.members[examID][studentID], nil
}

func (f *fakeSet) Add(_ context.Context, examID string, studentIDs ...string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return false, errBackend
	}
	if f.members[examID] == nil {
		f.members[examID] = make(map[string]bool)
	}
	added := false
	for _, id := range studentIDs {
		if !f.members[examID][id] {
			added = true
		}
		f.members[examID][id] = true
	}
	return added, nil
}

func (f *fakeSet) Remove(_ context.Context, examID, studentID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.members[examID], studentID)
	return nil
}

type fakeAnswerStore struct {
	mu      sync.Mutex
	answers map[string][]*model.Answer // exam|student
	results map[string]*model.ExamResult
	fail    bool
}

func newFakeAnswerStore() *fakeAnswerStore {
	return &fakeAnswerStore{
		answers: make(map[string][]*model.Answer),
		results: make(map[string]*model.ExamResult),
	}
}

func pairKey(examID, studentID string) string { return examID + "|" + studentID }

func (f *fakeAnswerStore) ListByStudent(_ context.Context, examID, studentID string) ([]*model.Answer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.Answer
	for _, a := range f.answers[pairKey(examID, studentID)] {
		cp := *a
		out = append(out, &cp)
	}
	return out, nil
}

func (f *fakeAnswerStore) HasSubmission(_ context.Context, examID, studentID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return false, errBackend
	}
	k := pairKey(examID, studentID)
	return len(f.answers[k]) > 0 || f.results[k] != nil, nil
}

func (f *fakeAnswerStore) ListSubmittedStudents(_ context.Context, examID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []string
	for _, r := range f.results {
		if r.ExamID == examID {
			ids = append(ids, r.StudentID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (f *fakeAnswerStore) Get(_ context.Context, examID, studentID string) (*model.ExamResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.results[pairKey(examID, studentID)]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *r
	return &cp, nil
}

func (f *fakeAnswerStore) ListByExam(_ context.Context, examID string, limit, offset int) ([]model.ExamResult, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var all []model.ExamResult
	for _, r := range f.results {
		if r.ExamID == examID {
			all = append(all, *r)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].StudentID < all[j].StudentID })
	total := len(all)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

type fakeDrafts struct {
	mu     sync.Mutex
	drafts map[string]map[string]string
}

func newFakeDrafts() *fakeDrafts {
	return &fakeDrafts{drafts: make(map[string]map[string]string)}
}

func (f *fakeDrafts) Save(_ context.Context, examID, studentID, questionID, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := pairKey(examID, studentID)
	if f.drafts[k] == nil {
		f.drafts[k] = make(map[string]string)
	}
	f.drafts[k][questionID] = content
	return nil
}

func (f *fakeDrafts) Load(_ context.Context, examID, studentID string) (map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]string)
	for k, v := range f.drafts[pairKey(examID, studentID)] {
		out[k] = v
	}
	return out, nil
}

// ─── Producer ────────────────────────────────────────────────────────

type queued struct {
	queue   string
	payload any
}

type fakeProducer struct {
	mu        sync.Mutex
	queued    []queued
	published []MonitorEvent
	failQueue string
}

func (f *fakeProducer) Enqueue(_ context.Context, queue string, v any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if queue == f.failQueue {
		return errBackend
	}
	f.queued = append(f.queued, queued{queue: queue, payload: v})
	return nil
}

func (f *fakeProducer) Publish(_ context.Context, _ string, v any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ev, ok := v.(MonitorEvent); ok {
		f.published = append(f.published, ev)
	}
	return nil
}

func (f *fakeProducer) onQueue(queue string) []any {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []any
	for _, q := range f.queued {
		if q.queue == queue {
			out = append(out, q.payload)
		}
	}
	return out
}

func (f *fakeProducer) events(kind string) []MonitorEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []MonitorEvent
	for _, ev := range f.published {
		if ev.Type == kind {
			out = append(out, ev)
		}
	}
	return out
}

// ─── History ─────────────────────────────────────────────────────────

type fakeHistory struct {
	prior map[string]bool // exam|student
	err   error
}

func (f *fakeHistory) HasPriorSubmission(_ context.Context, studentID, examID string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.prior[pairKey(examID, studentID)], nil
}

// ─── Fixtures ────────────────────────────────────────────────────────

// javaExam builds the published five-question sample exam.
func javaExam(t *testing.T) *model.Exam {
	t.Helper()
	keys := []string{"B", "B", "B", "A", "C"}
	exam := model.NewExam("E001", "Java Basics")
	for i, key := range keys {
		q := model.NewQuestion(fmt.Sprintf("Q%d", i+1), "question", model.QuestionTypeMultipleChoice)
		q.AddOption("A. first")
		q.AddOption("B. second")
		q.AddOption("C. third")
		if err := q.SetCorrectAnswer(key); err != nil {
			t.Fatalf("SetCorrectAnswer: %v", err)
		}
		if err := exam.AddQuestion(q); err != nil {
			t.Fatalf("AddQuestion: %v", err)
		}
	}
	if err := exam.Publish(); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	return exam
}
