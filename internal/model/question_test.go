package model

import (
	"errors"
	"testing"
)

func TestOptionToken(t *testing.T) {
	tests := []struct {
		option string
		want   string
	}{
		{"A. Coffee", "A"},
		{"B) Programming Language", "B"},
		{"  C . Island", "C"},
		{"No prefix here", ""},
		{".leading dot", ""},
	}
	for _, tc := range tests {
		if got := OptionToken(tc.option); got != tc.want {
			t.Errorf("OptionToken(%q) = %q, want %q", tc.option, got, tc.want)
		}
	}
}

func TestSetCorrectAnswer(t *testing.T) {
	newQ := func() *Question {
		q := NewQuestion("Q1", "Java is:", QuestionTypeMultipleChoice)
		q.AddOption("A. Compiled Language")
		q.AddOption("B. Interpreted Language")
		q.AddOption("C. Both A and B")
		return q
	}

	tests := []struct {
		name    string
		token   string
		wantErr error
	}{
		{"prefix token", "C", nil},
		{"full label", "B. Interpreted Language", nil},
		{"unknown token", "D", ErrInvalidCorrectAnswer},
		{"lowercase token", "c", ErrInvalidCorrectAnswer},
		{"empty", "", ErrInvalidCorrectAnswer},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			q := newQ()
			err := q.SetCorrectAnswer(tc.token)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
			if tc.wantErr == nil && q.CorrectOption != tc.token {
				t.Errorf("expected correct option %q, got %q", tc.token, q.CorrectOption)
			}
		})
	}

	free := NewQuestion("Q2", "Explain the JVM", QuestionTypeFreeText)
	if err := free.SetCorrectAnswer("anything"); !errors.Is(err, ErrNotMultipleChoice) {
		t.Errorf("expected ErrNotMultipleChoice, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	mc := NewQuestion("Q1", "What is the default value of int?", QuestionTypeMultipleChoice)
	mc.AddOption("A. 0")
	mc.AddOption("B. null")
	if err := mc.SetCorrectAnswer("A"); err != nil {
		t.Fatalf("SetCorrectAnswer: %v", err)
	}
	free := NewQuestion("Q2", "Explain the JVM", QuestionTypeFreeText)

	tests := []struct {
		name    string
		q       *Question
		content string
		want    bool
	}{
		{"mc exact", mc, "A", true},
		{"mc wrong", mc, "B", false},
		{"mc case sensitive", mc, "a", false},
		{"mc not trimmed", mc, " A", false},
		{"mc empty", mc, "", false},
		{"free text", free, "platform independence", true},
		{"free text blank", free, "   \t", false},
		{"free text empty", free, "", false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.q.Validate(tc.content); got != tc.want {
				t.Errorf("Validate(%q) = %v, want %v", tc.content, got, tc.want)
			}
		})
	}
}

func TestMultipleChoiceWithoutCorrectAnswerNeverValidates(t *testing.T) {
	q := NewQuestion("Q1", "unset", QuestionTypeMultipleChoice)
	q.AddOption("A. x")
	if q.Validate("") || q.Validate("A") {
		t.Error("question without a correct option must not validate")
	}
}

func TestAnswerDisplayScore(t *testing.T) {
	a := NewAnswer("S1", "E001", "Q1", "B")
	if a.DisplayScore() != "Ungraded" {
		t.Errorf("expected Ungraded, got %q", a.DisplayScore())
	}
	a.SetScore(80)
	if !a.Graded || a.DisplayScore() != "80.0" {
		t.Errorf("unexpected graded state %+v / %q", a, a.DisplayScore())
	}
	if NewAnswer("S1", "E001", "Q1", "  ").Validate() {
		t.Error("blank answer must not validate")
	}
}
