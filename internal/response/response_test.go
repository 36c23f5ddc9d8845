package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRequestIDMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(RequestIDMiddleware())
	r.GET("/", func(c *gin.Context) {
		Fail(c, http.StatusNotFound, ErrSessionNotFound)
	})

	tests := []struct {
		name    string
		header  string
		reuseID bool
	}{
		{"generated when absent", "", false},
		{"reused when valid", "6f1c1f4e-7a1d-4b59-9a49-1d0b0f5e9a11", true},
		{"replaced when malformed", "not-a-uuid", false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				req.Header.Set("X-Request-ID", tc.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			got := w.Header().Get("X-Request-ID")
			if got == "" {
				t.Fatal("missing X-Request-ID header")
			}
			if tc.reuseID && got != tc.header {
				t.Errorf("expected %q to be reused, got %q", tc.header, got)
			}
			if !tc.reuseID && got == tc.header {
				t.Errorf("expected a fresh id, got %q", got)
			}

			var body Response
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if body.Metadata.RequestID != got {
				t.Errorf("metadata id %q does not match header %q", body.Metadata.RequestID, got)
			}
			if body.Error == nil || body.Error.Code != ErrSessionNotFound {
				t.Errorf("unexpected error body %+v", body.Error)
			}
			if body.Error.Message != GetMessage(ErrSessionNotFound) {
				t.Errorf("unexpected message %q", body.Error.Message)
			}
		})
	}
}

func TestNewPagination(t *testing.T) {
	p := NewPagination(2, 10, 21)
	if p.TotalPages != 3 || p.Page != 2 || p.TotalItems != 21 {
		t.Errorf("unexpected pagination %+v", p)
	}
	if NewPagination(1, 0, 5).TotalPages != 0 {
		t.Error("zero per_page should yield zero pages")
	}
}

func TestEveryCodeHasMessage(t *testing.T) {
	fallback := GetMessage(ErrCode("SOMETHING_ELSE"))
	codes := []ErrCode{
		ErrTokenRequired, ErrTokenInvalid, ErrPermissionDenied, ErrStudentAccessOnly,
		ErrProctorAccessOnly, ErrValidation, ErrInvalidID, ErrInvalidPayload, ErrNotFound,
		ErrConflict, ErrExamNotPublished, ErrExamPublished, ErrNoQuestions,
		ErrInvalidCorrectAnswer, ErrNotMultipleChoice, ErrSessionNotFound, ErrSessionEnded,
		ErrSessionNotActive, ErrNotRegistered, ErrInvalidEntryToken, ErrNotEligible,
		ErrAlreadySubmitted, ErrNoSubmission, ErrScoreOutOfRange,
		ErrRateLimitExceeded, ErrInternal,
	}
	for _, code := range codes {
		if GetMessage(code) == fallback {
			t.Errorf("%s falls back to the generic message", code)
		}
	}
}
