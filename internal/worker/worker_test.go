package worker

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-proctor/internal/model"
)

func TestCollapseResultsKeepsLastPerStudent(t *testing.T) {
	batch := []*ResultPayload{
		{ExamID: "E1", StudentID: "S1", Score: 80, Source: model.ScoreSourceAuto},
		{ExamID: "E1", StudentID: "S2", Score: 60, Source: model.ScoreSourceAuto},
		{ExamID: "E1", StudentID: "S1", Score: 95, Source: model.ScoreSourceManual},
		{ExamID: "E2", StudentID: "S1", Score: 40, Source: model.ScoreSourceAuto},
	}

	got := collapseResults(batch)
	if len(got) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(got))
	}
	if got[0].StudentID != "S1" || got[0].Score != 95 || got[0].Source != model.ScoreSourceManual {
		t.Errorf("expected the later manual score to win, got %+v", got[0])
	}
	if got[1].StudentID != "S2" || got[2].ExamID != "E2" {
		t.Errorf("first-seen order not preserved: %+v %+v", got[1], got[2])
	}
}

func TestActivityRows(t *testing.T) {
	sid := uuid.New()
	at := time.UnixMilli(1700000000123)

	rows, err := activityRows([]*ActivityPayload{
		{SessionID: sid.String(), StudentID: "S1", Action: "Pressed Ctrl+C", Timestamp: at.UnixMilli()},
	})
	if err != nil {
		t.Fatalf("activityRows: %v", err)
	}
	if len(rows) != 1 || rows[0][0] != sid || rows[0][1] != "S1" {
		t.Fatalf("unexpected rows %v", rows)
	}
	if ts := rows[0][3].(time.Time); !ts.Equal(at) {
		t.Errorf("timestamp lost precision: %v", ts)
	}

	if _, err := activityRows([]*ActivityPayload{{SessionID: "bogus"}}); err == nil {
		t.Error("expected malformed session id to fail the batch")
	}
}

func TestPayloadConstructors(t *testing.T) {
	at := time.UnixMilli(1700000000500)
	sid := uuid.New()

	a := NewActivityPayload(model.StudentActivity{
		SessionID:        sid,
		StudentID:        "S1",
		ActivityLogEntry: model.ActivityLogEntry{Action: "Switching Window", Timestamp: at},
	})
	if a.SessionID != sid.String() || a.Timestamp != at.UnixMilli() {
		t.Errorf("unexpected activity payload %+v", a)
	}

	answers := []*model.Answer{
		model.NewAnswer("S1", "E1", "Q1", "B"),
		model.NewAnswer("S1", "E1", "Q2", "A"),
	}
	set := NewAnswerSetPayload("E1", "S1", answers, at)
	if len(set.Answers) != 2 || set.Answers[1].QuestionID != "Q2" || set.SubmittedAt != at.UnixMilli() {
		t.Errorf("unexpected answer set payload %+v", set)
	}

	r := NewResultPayload(model.ExamResult{ExamID: "E1", StudentID: "S1", Score: 80, Source: model.ScoreSourceAuto, UpdatedAt: at})
	if r.Score != 80 || r.At != at.UnixMilli() || r.Source != model.ScoreSourceAuto {
		t.Errorf("unexpected result payload %+v", r)
	}
}
