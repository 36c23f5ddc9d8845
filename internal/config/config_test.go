package config

import (
	"testing"
	"time"
)

func TestGetEnvFloat(t *testing.T) {
	tests := []struct {
		name     string
		envValue string
		fallback float64
		expected float64
	}{
		{"parses float", "12.5", 20, 12.5},
		{"uses fallback when empty", "", 20, 20},
		{"uses fallback for garbage", "abc", 20, 20},
		{"uses fallback for negative", "-3", 20, 20},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("TEST_FLOAT", tc.envValue)
			if got := getEnvFloat("TEST_FLOAT", tc.fallback); got != tc.expected {
				t.Errorf("expected %v, got %v", tc.expected, got)
			}
		})
	}
}

func TestParseOrigins(t *testing.T) {
	if got := parseOrigins(""); got != nil {
		t.Fatalf("expected nil for empty input, got %v", got)
	}
	got := parseOrigins(" http://a.test , ,http://b.test")
	if len(got) != 2 || got[0] != "http://a.test" || got[1] != "http://b.test" {
		t.Errorf("unexpected origins: %v", got)
	}
}

func TestLoadScoringDefaults(t *testing.T) {
	t.Setenv("POINTS_PER_QUESTION", "")
	t.Setenv("SCORE_SCALE_MAX", "")
	t.Setenv("PROCTOR_DEDUP_WINDOW_MS", "")

	cfg := Load()
	if cfg.PointsPerQuestion != 20 {
		t.Errorf("expected 20 points per question, got %v", cfg.PointsPerQuestion)
	}
	if cfg.ScoreScaleMax != 100 {
		t.Errorf("expected scale max 100, got %v", cfg.ScoreScaleMax)
	}
	if cfg.DedupWindow != time.Second {
		t.Errorf("expected 1s dedup window, got %v", cfg.DedupWindow)
	}
}

func TestCacheKeys(t *testing.T) {
	if got := CacheKey.ExamSubmittedKey("E001"); got != "exam:E001:submitted" {
		t.Errorf("unexpected key %q", got)
	}
	if got := CacheKey.StudentAnswersKey("E001", "S1"); got != "student:S1:exam:E001:answers" {
		t.Errorf("unexpected key %q", got)
	}
}
