package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/proctor"
	"github.com/stemsi/exstem-proctor/internal/response"
	"github.com/stemsi/exstem-proctor/internal/scoring"
	"github.com/stemsi/exstem-proctor/internal/service"
)

type errMapping struct {
	err    error
	status int
	code   response.ErrCode
}

// domainErrors is checked top-down with errors.Is.
var domainErrors = []errMapping{
	{service.ErrExamNotFound, http.StatusNotFound, response.ErrNotFound},
	{service.ErrQuestionNotFound, http.StatusNotFound, response.ErrNotFound},
	{service.ErrSessionNotFound, http.StatusNotFound, response.ErrSessionNotFound},
	{service.ErrNoSubmission, http.StatusNotFound, response.ErrNoSubmission},
	{service.ErrExamExists, http.StatusConflict, response.ErrConflict},
	{model.ErrDuplicateQuestion, http.StatusConflict, response.ErrConflict},
	{service.ErrExamNotPublished, http.StatusConflict, response.ErrExamNotPublished},
	{model.ErrExamPublished, http.StatusConflict, response.ErrExamPublished},
	{proctor.ErrSessionEnded, http.StatusConflict, response.ErrSessionEnded},
	{service.ErrAlreadySubmitted, http.StatusConflict, response.ErrAlreadySubmitted},
	{model.ErrNoQuestions, http.StatusUnprocessableEntity, response.ErrNoQuestions},
	{model.ErrInvalidCorrectAnswer, http.StatusUnprocessableEntity, response.ErrInvalidCorrectAnswer},
	{model.ErrNotMultipleChoice, http.StatusUnprocessableEntity, response.ErrNotMultipleChoice},
	{scoring.ErrScoreOutOfRange, http.StatusUnprocessableEntity, response.ErrScoreOutOfRange},
	{service.ErrNotRegistered, http.StatusForbidden, response.ErrNotRegistered},
	{service.ErrInvalidEntryToken, http.StatusForbidden, response.ErrInvalidEntryToken},
	{service.ErrNotEligible, http.StatusForbidden, response.ErrNotEligible},
}

// classify maps a service error to its HTTP status and error code.
func classify(err error) (int, response.ErrCode) {
	for _, m := range domainErrors {
		if errors.Is(err, m.err) {
			return m.status, m.code
		}
	}
	return http.StatusInternalServerError, response.ErrInternal
}

// failErr writes the envelope for err. Unexpected errors are logged.
func failErr(c *gin.Context, log zerolog.Logger, err error) {
	status, code := classify(err)
	if status == http.StatusInternalServerError {
		log.Error().Err(err).
			Str("request_id", response.RequestID(c)).
			Str("path", c.FullPath()).
			Msg("Request failed")
	}
	response.Fail(c, status, code)
}
