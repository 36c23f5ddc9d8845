package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/middleware"
	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/response"
	"github.com/stemsi/exstem-proctor/internal/service"
	"github.com/stemsi/exstem-proctor/internal/validator"
)

// GradingAPI is the submission and grading surface of service.GradingService.
type GradingAPI interface {
	Eligible(ctx context.Context, examID, studentID string) (bool, error)
	Submit(ctx context.Context, examID, studentID string, answers []model.SubmittedAnswer) (*service.StudentResult, error)
	SubmitDraft(ctx context.Context, examID, studentID string) (*service.StudentResult, error)
	Autosave(ctx context.Context, examID, studentID, questionID, content string) error
	Override(ctx context.Context, examID, studentID string, value float64) (*service.StudentResult, error)
	Result(ctx context.Context, examID, studentID string) (*service.StudentResult, error)
	Results(ctx context.Context, examID string, page, perPage int) ([]model.ExamResult, *response.Pagination, error)
}

// GradingHandler handles submissions, scores and manual overrides.
type GradingHandler struct {
	grading GradingAPI
	log     zerolog.Logger
}

// NewGradingHandler creates a new GradingHandler.
func NewGradingHandler(grading GradingAPI, log zerolog.Logger) *GradingHandler {
	return &GradingHandler{
		grading: grading,
		log:     log.With().Str("component", "grading_handler").Logger(),
	}
}

// Eligibility godoc
// GET /api/v1/student/exams/:exam_id/eligibility
func (h *GradingHandler) Eligibility(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	ok, err := h.grading.Eligible(c.Request.Context(), c.Param("exam_id"), claims.UserID())
	if err != nil {
		failErr(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"eligible": ok})
}

// StudentSubmit godoc
// POST /api/v1/student/exams/:exam_id/submit
// Hands in the calling student's answer set and returns the graded total.
func (h *GradingHandler) StudentSubmit(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.StudentSubmitRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	res, err := h.grading.Submit(c.Request.Context(), c.Param("exam_id"), claims.UserID(), req.Answers)
	if err != nil {
		failErr(c, h.log, err)
		return
	}
	response.Success(c, http.StatusCreated, res)
}

// SubmitOnBehalf godoc
// POST /api/v1/admin/exams/:exam_id/submissions
// Hands in an answer set collected outside the student stream.
func (h *GradingHandler) SubmitOnBehalf(c *gin.Context) {
	var req model.SubmitAnswersRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	res, err := h.grading.Submit(c.Request.Context(), c.Param("exam_id"), req.StudentID, req.Answers)
	if err != nil {
		failErr(c, h.log, err)
		return
	}
	response.Success(c, http.StatusCreated, res)
}

// StudentResult godoc
// GET /api/v1/student/exams/:exam_id/result
func (h *GradingHandler) StudentResult(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}
	h.result(c, claims.UserID())
}

// GetResult godoc
// GET /api/v1/admin/exams/:exam_id/results/:student_id
func (h *GradingHandler) GetResult(c *gin.Context) {
	h.result(c, c.Param("student_id"))
}

func (h *GradingHandler) result(c *gin.Context, studentID string) {
	res, err := h.grading.Result(c.Request.Context(), c.Param("exam_id"), studentID)
	if err != nil {
		failErr(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, res)
}

// ListResults godoc
// GET /api/v1/admin/exams/:exam_id/results?page=1&per_page=20
func (h *GradingHandler) ListResults(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "20"))

	results, pagination, err := h.grading.Results(c.Request.Context(), c.Param("exam_id"), page, perPage)
	if err != nil {
		failErr(c, h.log, err)
		return
	}
	if results == nil {
		results = []model.ExamResult{}
	}
	response.SuccessWithPagination(c, http.StatusOK, gin.H{"results": results}, pagination)
}

// OverrideScore godoc
// PUT /api/v1/admin/exams/:exam_id/results/:student_id
// Assigns a manual total to a submitted answer set.
func (h *GradingHandler) OverrideScore(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.OverrideScoreRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	examID, studentID := c.Param("exam_id"), c.Param("student_id")
	res, err := h.grading.Override(c.Request.Context(), examID, studentID, *req.Score)
	if err != nil {
		failErr(c, h.log, err)
		return
	}

	h.log.Info().
		Str("exam_id", examID).
		Str("student_id", studentID).
		Str("grader_id", claims.UserID()).
		Float64("score", *req.Score).
		Msg("Manual score assigned")
	response.Success(c, http.StatusOK, res)
}
