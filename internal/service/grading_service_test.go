package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stemsi/exstem-proctor/internal/config"
	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/scoring"
	"github.com/stemsi/exstem-proctor/internal/worker"
)

type gradingFixture struct {
	svc      *GradingService
	set      *fakeSet
	answers  *fakeAnswerStore
	drafts   *fakeDrafts
	producer *fakeProducer
}

func newGradingFixture(t *testing.T) *gradingFixture {
	t.Helper()
	f := &gradingFixture{
		set:      newFakeSet(),
		answers:  newFakeAnswerStore(),
		drafts:   newFakeDrafts(),
		producer: &fakeProducer{},
	}
	exams := staticExams{"E001": javaExam(t), "E002": model.NewExam("E002", "Draft")}
	index := NewSubmissionIndex(f.set, f.answers, quietLogger())
	f.svc = NewGradingService(exams, index, f.answers, f.answers, f.drafts, f.producer, scoring.NewEngine(0, 0), quietLogger())
	return f
}

func sheet(keys ...string) []model.SubmittedAnswer {
	out := make([]model.SubmittedAnswer, len(keys))
	for i, k := range keys {
		out[i] = model.SubmittedAnswer{QuestionID: fmt.Sprintf("Q%d", i+1), Content: k}
	}
	return out
}

// persist mimics the workers writing queued payloads.
func (f *gradingFixture) persist(t *testing.T) {
	t.Helper()
	for _, v := range f.producer.onQueue(config.WorkerKey.PersistAnswersQueue) {
		p := v.(worker.AnswerSetPayload)
		k := pairKey(p.ExamID, p.StudentID)
		f.answers.answers[k] = nil
		for _, a := range p.Answers {
			f.answers.answers[k] = append(f.answers.answers[k], model.NewAnswer(p.StudentID, p.ExamID, a.QuestionID, a.Content))
		}
	}
	for _, v := range f.producer.onQueue(config.WorkerKey.PersistResultsQueue) {
		p := v.(worker.ResultPayload)
		f.answers.results[pairKey(p.ExamID, p.StudentID)] = &model.ExamResult{
			ExamID: p.ExamID, StudentID: p.StudentID, Score: p.Score, Graded: true, Source: p.Source,
		}
	}
}

func TestSubmitGrades(t *testing.T) {
	tests := []struct {
		name    string
		answers []model.SubmittedAnswer
		want    float64
		stored  int
	}{
		{"all correct", sheet("B", "B", "B", "A", "C"), 100, 5},
		{"one wrong", sheet("B", "B", "A", "A", "C"), 80, 5},
		{"blank dropped", sheet("B", "  ", "B", "A", "C"), 80, 4},
		{"option label is not the key", sheet("B. second", "B", "B", "A", "C"), 80, 5},
		{"all blank", sheet("", "", ""), 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newGradingFixture(t)
			res, err := f.svc.Submit(context.Background(), "E001", "S1", tt.answers)
			if err != nil {
				t.Fatalf("Submit: %v", err)
			}
			if res.Result.Score != tt.want || res.Result.Source != model.ScoreSourceAuto {
				t.Errorf("expected %v AUTO, got %+v", tt.want, res.Result)
			}
			if len(res.Answers) != tt.stored {
				t.Errorf("expected %d answers kept, got %d", tt.stored, len(res.Answers))
			}
			for _, a := range res.Answers {
				if !a.Graded || a.TotalScore != tt.want {
					t.Errorf("answer %s not stamped with the total: %+v", a.QuestionID, a)
				}
			}
			if got := len(f.producer.onQueue(config.WorkerKey.PersistAnswersQueue)); got != 1 {
				t.Errorf("expected one queued answer set, got %d", got)
			}
		})
	}
}

func TestSubmitRejectsSecondSubmission(t *testing.T) {
	f := newGradingFixture(t)
	ctx := context.Background()

	if _, err := f.svc.Submit(ctx, "E001", "S1", sheet("B")); err != nil {
		t.Fatalf("first Submit: %v", err)
	}
	if _, err := f.svc.Submit(ctx, "E001", "S1", sheet("B", "B")); !errors.Is(err, ErrAlreadySubmitted) {
		t.Errorf("expected ErrAlreadySubmitted, got %v", err)
	}
	if err := f.svc.Autosave(ctx, "E001", "S1", "Q1", "A"); !errors.Is(err, ErrAlreadySubmitted) {
		t.Errorf("expected autosave to be refused, got %v", err)
	}
}

func TestSubmitConcurrentOnlyOneWins(t *testing.T) {
	f := newGradingFixture(t)
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.svc.Submit(context.Background(), "E001", "S1", sheet("B")); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if wins != 1 {
		t.Errorf("expected exactly one accepted submission, got %d", wins)
	}
}

func TestSubmitReleasesClaimWhenQueueFails(t *testing.T) {
	f := newGradingFixture(t)
	f.producer.failQueue = config.WorkerKey.PersistAnswersQueue
	ctx := context.Background()

	if _, err := f.svc.Submit(ctx, "E001", "S1", sheet("B")); err == nil {
		t.Fatal("expected queue failure")
	}
	if f.set.members["E001"]["S1"] {
		t.Error("claim should be released")
	}

	f.producer.failQueue = ""
	if _, err := f.svc.Submit(ctx, "E001", "S1", sheet("B")); err != nil {
		t.Errorf("retry should succeed: %v", err)
	}
}

func TestSubmitRequiresPublishedExam(t *testing.T) {
	f := newGradingFixture(t)
	if _, err := f.svc.Submit(context.Background(), "E002", "S1", sheet("B")); !errors.Is(err, ErrExamNotPublished) {
		t.Errorf("expected ErrExamNotPublished, got %v", err)
	}
	if _, err := f.svc.Submit(context.Background(), "E404", "S1", sheet("B")); !errors.Is(err, ErrExamNotFound) {
		t.Errorf("expected ErrExamNotFound, got %v", err)
	}
}

func TestSubmitDraft(t *testing.T) {
	f := newGradingFixture(t)
	ctx := context.Background()
	for qid, content := range map[string]string{"Q1": "B", "Q2": "B", "Q4": "A"} {
		if err := f.svc.Autosave(ctx, "E001", "S1", qid, content); err != nil {
			t.Fatalf("Autosave: %v", err)
		}
	}
	f.svc.Autosave(ctx, "E001", "S1", "Q2", "C")

	res, err := f.svc.SubmitDraft(ctx, "E001", "S1")
	if err != nil {
		t.Fatalf("SubmitDraft: %v", err)
	}
	// Q1 and Q4 right, Q2 overwritten wrong: two of five.
	if res.Result.Score != 40 {
		t.Errorf("expected 40, got %v", res.Result.Score)
	}
}

func TestOverride(t *testing.T) {
	f := newGradingFixture(t)
	ctx := context.Background()
	f.svc.Submit(ctx, "E001", "S1", sheet("B", "B", "A", "A", "C"))
	f.persist(t)

	tests := []struct {
		name    string
		student string
		value   float64
		wantErr error
	}{
		{"above scale", "S1", 101, scoring.ErrScoreOutOfRange},
		{"negative", "S1", -1, scoring.ErrScoreOutOfRange},
		{"no submission", "S2", 50, ErrNoSubmission},
		{"upper bound", "S1", 100, nil},
		{"lower bound", "S1", 0, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := f.svc.Override(ctx, "E001", tt.student, tt.value)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if err != nil {
				return
			}
			if res.Result.Source != model.ScoreSourceManual || res.Result.Score != tt.value {
				t.Errorf("unexpected result %+v", res.Result)
			}
			for _, a := range res.Answers {
				if a.TotalScore != tt.value {
					t.Errorf("answer %s not overridden", a.QuestionID)
				}
			}
		})
	}

	results := f.producer.onQueue(config.WorkerKey.PersistResultsQueue)
	last := results[len(results)-1].(worker.ResultPayload)
	if last.Score != 0 || last.Source != model.ScoreSourceManual {
		t.Errorf("expected last queued override 0 MANUAL, got %+v", last)
	}
}

func TestOverrideAllBlankSubmission(t *testing.T) {
	f := newGradingFixture(t)
	ctx := context.Background()
	f.svc.Submit(ctx, "E001", "S1", sheet("", ""))
	f.persist(t)

	res, err := f.svc.Override(ctx, "E001", "S1", 35)
	if err != nil {
		t.Fatalf("Override: %v", err)
	}
	if res.Display != "35.0" {
		t.Errorf("expected display 35.0, got %q", res.Display)
	}
}

func TestResult(t *testing.T) {
	f := newGradingFixture(t)
	ctx := context.Background()

	if _, err := f.svc.Result(ctx, "E001", "S1"); !errors.Is(err, ErrNoSubmission) {
		t.Fatalf("expected ErrNoSubmission, got %v", err)
	}

	f.producer.failQueue = config.WorkerKey.PersistResultsQueue
	if _, err := f.svc.Submit(ctx, "E001", "S1", sheet("B", "B", "B", "A", "A")); err != nil {
		t.Fatalf("Submit should survive a result queue failure: %v", err)
	}
	f.persist(t)

	res, err := f.svc.Result(ctx, "E001", "S1")
	if err != nil {
		t.Fatalf("Result: %v", err)
	}
	if res.Result.Score != 80 || res.Display != "80.0" {
		t.Errorf("expected recomputed 80, got %+v %q", res.Result, res.Display)
	}

	f.answers.results[pairKey("E001", "S1")] = &model.ExamResult{ExamID: "E001", StudentID: "S1", Score: 55, Graded: true, Source: model.ScoreSourceManual}
	res, _ = f.svc.Result(ctx, "E001", "S1")
	if res.Result.Score != 55 {
		t.Errorf("stored result should win, got %v", res.Result.Score)
	}
}

func TestResultsPagination(t *testing.T) {
	f := newGradingFixture(t)
	for _, sid := range []string{"S1", "S2", "S3"} {
		f.answers.results[pairKey("E001", sid)] = &model.ExamResult{ExamID: "E001", StudentID: sid}
	}

	results, page, err := f.svc.Results(context.Background(), "E001", 2, 2)
	if err != nil {
		t.Fatalf("Results: %v", err)
	}
	if len(results) != 1 || results[0].StudentID != "S3" {
		t.Errorf("unexpected page %v", results)
	}
	if page.TotalItems != 3 || page.TotalPages != 2 {
		t.Errorf("unexpected pagination %+v", page)
	}
}

func TestMaxScore(t *testing.T) {
	f := newGradingFixture(t)
	best, err := f.svc.MaxScore(context.Background(), "E001")
	if err != nil || best != 100 {
		t.Errorf("expected 100, got %v %v", best, err)
	}
}

func TestEligible(t *testing.T) {
	f := newGradingFixture(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		examID  string
		student string
		want    bool
	}{
		{"fresh student", "E001", "S1", true},
		{"submitted student", "E001", "S2", false},
		{"draft exam", "E002", "S1", false},
	}
	f.svc.Submit(ctx, "E001", "S2", sheet("B"))

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.svc.Eligible(ctx, tt.examID, tt.student)
			if err != nil {
				t.Fatalf("Eligible: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}
