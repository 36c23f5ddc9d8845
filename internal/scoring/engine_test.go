package scoring

import (
	"errors"
	"math"
	"testing"

	"github.com/stemsi/exstem-proctor/internal/model"
)

// sampleExam mirrors the seeded Java exam: five multiple choice questions.
func sampleExam(t *testing.T) (*model.Exam, map[string]string) {
	t.Helper()
	keys := map[string]string{"Q1": "B", "Q2": "B", "Q3": "B", "Q4": "A", "Q5": "C"}
	exam := model.NewExam("E001", "Java Basics")
	for _, id := range []string{"Q1", "Q2", "Q3", "Q4", "Q5"} {
		q := model.NewQuestion(id, "question "+id, model.QuestionTypeMultipleChoice)
		q.AddOption("A. first")
		q.AddOption("B. second")
		q.AddOption("C. third")
		if err := q.SetCorrectAnswer(keys[id]); err != nil {
			t.Fatalf("SetCorrectAnswer: %v", err)
		}
		if err := exam.AddQuestion(q); err != nil {
			t.Fatalf("AddQuestion: %v", err)
		}
	}
	if err := exam.Publish(); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	return exam, keys
}

func answersFor(keys map[string]string) []*model.Answer {
	var out []*model.Answer
	for _, id := range []string{"Q1", "Q2", "Q3", "Q4", "Q5"} {
		out = append(out, model.NewAnswer("S1", "E001", id, keys[id]))
	}
	return out
}

func TestScoreEmpty(t *testing.T) {
	exam, _ := sampleExam(t)
	e := NewEngine(20, 100)

	if got := e.Score(exam, []*model.Answer{}); got != 0 {
		t.Errorf("empty answers scored %v", got)
	}
	if got := e.Score(exam, nil); got != 0 {
		t.Errorf("nil answers scored %v", got)
	}
	if got := e.Score(nil, answersFor(map[string]string{})); got != 0 {
		t.Errorf("nil exam scored %v", got)
	}
}

func TestScoreAllCorrectAndOneMismatch(t *testing.T) {
	exam, keys := sampleExam(t)
	e := NewEngine(20, 100)

	if got := e.Score(exam, answersFor(keys)); got != 100 {
		t.Errorf("all correct: expected 100, got %v", got)
	}

	answers := answersFor(keys)
	answers[2].Content = "A"
	if got := e.Score(exam, answers); got != 80 {
		t.Errorf("one mismatch: expected 80, got %v", got)
	}
}

func TestScoreIgnoresUnknownAndDuplicateQuestions(t *testing.T) {
	exam, keys := sampleExam(t)
	e := NewEngine(20, 100)

	answers := []*model.Answer{
		model.NewAnswer("S1", "E001", "Q1", keys["Q1"]),
		model.NewAnswer("S1", "E001", "Q1", keys["Q1"]),
		model.NewAnswer("S1", "E001", "Q99", "B"),
		nil,
	}
	if got := e.Score(exam, answers); got != 20 {
		t.Errorf("expected 20, got %v", got)
	}
}

func TestWeightPrecedence(t *testing.T) {
	e := NewEngine(20, 100)
	exam := model.NewExam("E002", "Weighted")

	plain := model.NewQuestion("Q1", "free", model.QuestionTypeFreeText)
	heavy := model.NewQuestion("Q2", "free", model.QuestionTypeFreeText)
	heavy.Points = 50
	_ = exam.AddQuestion(plain)
	_ = exam.AddQuestion(heavy)

	if got := e.Weight(exam, plain); got != 20 {
		t.Errorf("engine default: expected 20, got %v", got)
	}
	exam.PointsPerQuestion = 10
	if got := e.Weight(exam, plain); got != 10 {
		t.Errorf("exam weight: expected 10, got %v", got)
	}
	if got := e.Weight(exam, heavy); got != 50 {
		t.Errorf("question weight: expected 50, got %v", got)
	}
	if got := e.MaxScore(exam); got != 60 {
		t.Errorf("max score: expected 60, got %v", got)
	}

	answers := []*model.Answer{
		model.NewAnswer("S1", "E002", "Q1", "something"),
		model.NewAnswer("S1", "E002", "Q2", "   "),
	}
	if got := e.Score(exam, answers); got != 10 {
		t.Errorf("free text scoring: expected 10, got %v", got)
	}
}

func TestGradeStampsTotal(t *testing.T) {
	exam, keys := sampleExam(t)
	e := NewEngine(20, 100)
	answers := answersFor(keys)
	answers[0].Content = "C"

	total := e.Grade(exam, answers)
	if total != 80 {
		t.Fatalf("expected 80, got %v", total)
	}
	for _, a := range answers {
		if !a.Graded || a.TotalScore != 80 {
			t.Errorf("answer %s not stamped: %+v", a.QuestionID, a)
		}
	}
}

func TestOverride(t *testing.T) {
	e := NewEngine(20, 100)
	a := model.NewAnswer("S1", "E001", "Q1", "B")

	if err := e.Override(a, 75); err != nil {
		t.Fatalf("Override: %v", err)
	}
	if err := e.Override(a, 60); err != nil {
		t.Fatalf("second Override: %v", err)
	}
	if !a.Graded || a.TotalScore != 60 {
		t.Fatalf("last write should win, got %+v", a)
	}

	for _, bad := range []float64{-1, 100.5, 1000, math.NaN(), math.Inf(1)} {
		err := e.Override(a, bad)
		if !errors.Is(err, ErrScoreOutOfRange) {
			t.Errorf("Override(%v): expected ErrScoreOutOfRange, got %v", bad, err)
		}
	}
	if !a.Graded || a.TotalScore != 60 {
		t.Errorf("rejected override changed the answer: %+v", a)
	}

	for _, edge := range []float64{0, 100} {
		if err := e.Override(a, edge); err != nil {
			t.Errorf("Override(%v) should be accepted: %v", edge, err)
		}
	}
}

func TestOverrideRespectsConfiguredScale(t *testing.T) {
	e := NewEngine(10, 50)
	a := model.NewAnswer("S1", "E001", "Q1", "B")
	if err := e.Override(a, 60); !errors.Is(err, ErrScoreOutOfRange) {
		t.Errorf("expected out of range on a 50-point scale, got %v", err)
	}
	if a.Graded {
		t.Error("ungraded answer became graded after a rejected override")
	}
}

func TestOverrideAllIsAllOrNothing(t *testing.T) {
	e := NewEngine(20, 100)
	answers := []*model.Answer{
		model.NewAnswer("S1", "E001", "Q1", "B"),
		model.NewAnswer("S1", "E001", "Q2", "A"),
	}
	answers[0].SetScore(40)

	for _, bad := range []float64{101, math.NaN()} {
		if err := e.OverrideAll(answers, bad); !errors.Is(err, ErrScoreOutOfRange) {
			t.Fatalf("OverrideAll(%v): expected ErrScoreOutOfRange, got %v", bad, err)
		}
	}
	if answers[0].TotalScore != 40 || answers[1].Graded {
		t.Fatalf("rejected override mutated answers: %+v %+v", answers[0], answers[1])
	}

	if err := e.OverrideAll(answers, 90); err != nil {
		t.Fatalf("OverrideAll: %v", err)
	}
	for _, a := range answers {
		if !a.Graded || a.TotalScore != 90 {
			t.Errorf("answer %s not overridden: %+v", a.QuestionID, a)
		}
	}
}

func TestNewEngineDefaults(t *testing.T) {
	e := NewEngine(0, -5)
	if e.PointsPerQuestion != DefaultPointsPerQuestion || e.ScaleMax != DefaultScaleMax {
		t.Errorf("unexpected defaults %+v", e)
	}
}
