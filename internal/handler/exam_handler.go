package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/middleware"
	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/response"
	"github.com/stemsi/exstem-proctor/internal/validator"
)

// ExamAPI is the exam authoring surface of service.ExamService.
type ExamAPI interface {
	Create(ctx context.Context, req model.CreateExamRequest, authorID string) (*model.Exam, error)
	AddQuestion(ctx context.Context, examID string, req model.AddQuestionRequest) (*model.Question, error)
	SetCorrectAnswer(ctx context.Context, examID, questionID, token string) (*model.Question, error)
	Publish(ctx context.Context, examID string) (*model.Exam, error)
	GetExam(ctx context.Context, examID string) (*model.Exam, error)
	StudentView(ctx context.Context, examID string) (model.ExamPayload, error)
	List(ctx context.Context, status model.ExamStatus) ([]model.Exam, error)
}

// ExamHandler handles exam management endpoints.
type ExamHandler struct {
	exams ExamAPI
	log   zerolog.Logger
}

// NewExamHandler creates a new ExamHandler.
func NewExamHandler(exams ExamAPI, log zerolog.Logger) *ExamHandler {
	return &ExamHandler{
		exams: exams,
		log:   log.With().Str("component", "exam_handler").Logger(),
	}
}

// ListExams godoc
// GET /api/v1/admin/exams?status=PUBLISHED
func (h *ExamHandler) ListExams(c *gin.Context) {
	status := model.ExamStatus(c.Query("status"))
	switch status {
	case "", model.ExamStatusDraft, model.ExamStatusPublished:
	default:
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation,
			map[string]string{"status": "status must be one of [DRAFT PUBLISHED]"})
		return
	}

	exams, err := h.exams.List(c.Request.Context(), status)
	if err != nil {
		failErr(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"exams": exams})
}

// CreateExam godoc
// POST /api/v1/admin/exams
// Creates a new draft exam.
func (h *ExamHandler) CreateExam(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.CreateExamRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	exam, err := h.exams.Create(c.Request.Context(), req, claims.UserID())
	if err != nil {
		failErr(c, h.log, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"exam": exam})
}

// GetExam godoc
// GET /api/v1/admin/exams/:exam_id
// Returns the exam with its answer key.
func (h *ExamHandler) GetExam(c *gin.Context) {
	exam, err := h.exams.GetExam(c.Request.Context(), c.Param("exam_id"))
	if err != nil {
		failErr(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, exam.ToPayload())
}

// AddQuestion godoc
// POST /api/v1/admin/exams/:exam_id/questions
func (h *ExamHandler) AddQuestion(c *gin.Context) {
	var req model.AddQuestionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	q, err := h.exams.AddQuestion(c.Request.Context(), c.Param("exam_id"), req)
	if err != nil {
		failErr(c, h.log, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"question": q})
}

// SetCorrectAnswer godoc
// PUT /api/v1/admin/exams/:exam_id/questions/:question_id/correct-option
func (h *ExamHandler) SetCorrectAnswer(c *gin.Context) {
	var req model.SetCorrectAnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	q, err := h.exams.SetCorrectAnswer(c.Request.Context(), c.Param("exam_id"), c.Param("question_id"), req.CorrectOption)
	if err != nil {
		failErr(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"question": q})
}

// PublishExam godoc
// POST /api/v1/admin/exams/:exam_id/publish
// Publishes an exam and warms its cache entry.
func (h *ExamHandler) PublishExam(c *gin.Context) {
	exam, err := h.exams.Publish(c.Request.Context(), c.Param("exam_id"))
	if err != nil {
		failErr(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"exam": exam})
}

// StudentExam godoc
// GET /api/v1/student/exams/:exam_id
// Returns the published exam without answer keys.
func (h *ExamHandler) StudentExam(c *gin.Context) {
	view, err := h.exams.StudentView(c.Request.Context(), c.Param("exam_id"))
	if err != nil {
		failErr(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, view)
}
