package validator

import (
	"errors"
	"testing"

	"github.com/stemsi/exstem-proctor/internal/model"
)

func init() {
	Setup()
}

func TestStructUsesJSONFieldNames(t *testing.T) {
	fields := Struct(&model.CreateExamRequest{Title: "ab"})
	if fields == nil {
		t.Fatal("expected validation errors")
	}
	if _, ok := fields["id"]; !ok {
		t.Errorf("expected an error keyed by json name \"id\", got %v", fields)
	}
	if _, ok := fields["title"]; !ok {
		t.Errorf("expected an error keyed by json name \"title\", got %v", fields)
	}
}

func TestStructAcceptsValidPayload(t *testing.T) {
	req := &model.AddQuestionRequest{
		ID:            "Q1",
		QuestionText:  "What is Java?",
		QuestionType:  string(model.QuestionTypeMultipleChoice),
		Options:       []string{"A. Coffee", "B. Programming Language"},
		CorrectOption: "B",
	}
	if fields := Struct(req); fields != nil {
		t.Errorf("unexpected errors %v", fields)
	}
}

func TestStructMultipleChoiceNeedsOptions(t *testing.T) {
	req := &model.AddQuestionRequest{
		ID:           "Q1",
		QuestionText: "What is Java?",
		QuestionType: string(model.QuestionTypeMultipleChoice),
	}
	fields := Struct(req)
	if _, ok := fields["options"]; !ok {
		t.Errorf("expected options to be required, got %v", fields)
	}
}

func TestTranslateErrorsNonValidation(t *testing.T) {
	fields := TranslateErrors(errors.New("unexpected EOF"))
	if fields["detail"] != "unexpected EOF" {
		t.Errorf("unexpected fields %v", fields)
	}
}
