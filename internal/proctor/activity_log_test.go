package proctor

import (
	"testing"
	"time"
)

func TestRecordSuppressesBurst(t *testing.T) {
	log := NewActivityLog(0)
	base := time.Unix(1700000000, 0)

	for _, offset := range []time.Duration{0, 100, 250, 600, 999} {
		log.Record(LabelCopy, base.Add(offset*time.Millisecond))
	}
	if got := log.Len(); got != 1 {
		t.Fatalf("expected burst to collapse into 1 entry, got %d", got)
	}

	if _, ok := log.Record(LabelCopy, base.Add(1000*time.Millisecond)); !ok {
		t.Fatal("expected same label after the window to be recorded")
	}
	if got := log.Len(); got != 2 {
		t.Fatalf("expected 2 entries, got %d", got)
	}
}

func TestRecordDifferentLabelsAreNotSuppressed(t *testing.T) {
	log := NewActivityLog(time.Second)
	at := time.Unix(1700000000, 0)

	log.Record(LabelCopy, at)
	log.Record(LabelPaste, at.Add(10*time.Millisecond))
	log.Record(LabelCopy, at.Add(20*time.Millisecond))

	entries := log.Entries()
	want := []string{LabelCopy, LabelPaste, LabelCopy}
	if len(entries) != len(want) {
		t.Fatalf("expected %d entries, got %d", len(want), len(entries))
	}
	for i, e := range entries {
		if e.Action != want[i] {
			t.Errorf("entry %d = %q, want %q", i, e.Action, want[i])
		}
	}
}

func TestRecordWindowIsMeasuredFromLastAppended(t *testing.T) {
	log := NewActivityLog(time.Second)
	base := time.Unix(1700000000, 0)

	log.Record(LabelMeta, base)
	log.Record(LabelMeta, base.Add(600*time.Millisecond))
	log.Record(LabelMeta, base.Add(1200*time.Millisecond))

	entries := log.Entries()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if !entries[1].Timestamp.Equal(base.Add(1200 * time.Millisecond)) {
		t.Errorf("unexpected second timestamp %v", entries[1].Timestamp)
	}
}

func TestEntriesIsDefensiveCopy(t *testing.T) {
	log := NewActivityLog(time.Second)
	log.Record(LabelAltTab, time.Unix(1700000000, 0))

	entries := log.Entries()
	entries[0].Action = "tampered"
	_ = append(entries, entries[0])

	if got := log.Entries(); len(got) != 1 || got[0].Action != LabelAltTab {
		t.Errorf("stored log was mutated through the returned slice: %+v", got)
	}
}

func TestCustomWindow(t *testing.T) {
	log := NewActivityLog(50 * time.Millisecond)
	at := time.Unix(1700000000, 0)
	log.Record(LabelPrintScreen, at)
	log.Record(LabelPrintScreen, at.Add(60*time.Millisecond))
	if got := log.Len(); got != 2 {
		t.Errorf("expected 2 entries with a 50ms window, got %d", got)
	}
}
