// Package scoring grades submitted answer sets against an exam.
package scoring

import (
	"errors"
	"fmt"
	"math"

	"github.com/stemsi/exstem-proctor/internal/model"
)

// ErrScoreOutOfRange is returned when a manual score falls outside the scale.
var ErrScoreOutOfRange = errors.New("score is outside the configured scale")

const (
	DefaultPointsPerQuestion = 20
	DefaultScaleMax          = 100
)

// Engine computes exam totals. PointsPerQuestion is the fallback weight of
// a question; ScaleMax bounds manual overrides.
type Engine struct {
	PointsPerQuestion float64
	ScaleMax          float64
}

// NewEngine builds an engine, substituting defaults for non-positive values.
func NewEngine(pointsPerQuestion, scaleMax float64) *Engine {
	if pointsPerQuestion <= 0 {
		pointsPerQuestion = DefaultPointsPerQuestion
	}
	if scaleMax <= 0 {
		scaleMax = DefaultScaleMax
	}
	return &Engine{PointsPerQuestion: pointsPerQuestion, ScaleMax: scaleMax}
}

// Weight returns the points a correct answer to q earns in exam.
// Question weight beats exam weight beats the engine default.
func (e *Engine) Weight(exam *model.Exam, q *model.Question) float64 {
	switch {
	case q.Points > 0:
		return q.Points
	case exam.PointsPerQuestion > 0:
		return exam.PointsPerQuestion
	default:
		return e.PointsPerQuestion
	}
}

// Score sums the weights of validated answers. Answers to unknown questions
// count zero, and a question is credited at most once.
func (e *Engine) Score(exam *model.Exam, answers []*model.Answer) float64 {
	if exam == nil || len(answers) == 0 {
		return 0
	}

	var total float64
	seen := make(map[string]struct{}, len(answers))
	for _, a := range answers {
		if a == nil {
			continue
		}
		if _, dup := seen[a.QuestionID]; dup {
			continue
		}
		seen[a.QuestionID] = struct{}{}

		q := exam.Question(a.QuestionID)
		if q == nil {
			continue
		}
		if q.Validate(a.Content) {
			total += e.Weight(exam, q)
		}
	}
	return total
}

// Grade scores the answer set and stamps the total on every answer.
func (e *Engine) Grade(exam *model.Exam, answers []*model.Answer) float64 {
	total := e.Score(exam, answers)
	for _, a := range answers {
		if a != nil {
			a.SetScore(total)
		}
	}
	return total
}

// MaxScore is the total an exam yields when every question is answered
// correctly under this engine's weights.
func (e *Engine) MaxScore(exam *model.Exam) float64 {
	var total float64
	for _, q := range exam.Questions() {
		total += e.Weight(exam, q)
	}
	return total
}

func (e *Engine) checkRange(value float64) error {
	if math.IsNaN(value) || value < 0 || value > e.ScaleMax {
		return fmt.Errorf("%w: %.2f not in [0, %.2f]", ErrScoreOutOfRange, value, e.ScaleMax)
	}
	return nil
}

// Override assigns a manual score. Out-of-range values leave the answer as
// it was. The latest accepted value always wins.
func (e *Engine) Override(a *model.Answer, value float64) error {
	if err := e.checkRange(value); err != nil {
		return err
	}
	a.SetScore(value)
	return nil
}

// OverrideAll applies a manual score to a whole answer set, or to none of it.
func (e *Engine) OverrideAll(answers []*model.Answer, value float64) error {
	if err := e.checkRange(value); err != nil {
		return err
	}
	for _, a := range answers {
		if a != nil {
			a.SetScore(value)
		}
	}
	return nil
}
