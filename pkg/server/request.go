package server

import (
	"net/http"

	"github.com/barekit/rihlat/pkg/errs"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// AskRequest is the body of POST /api/ask.
type AskRequest struct {
	Text  string `json:"text" validate:"required,max=2000"`
	Limit int    `json:"limit" validate:"omitempty,min=1,max=100"`
}

// SpeechRequest is the body of POST /api/speech.
type SpeechRequest struct {
	Text string `json:"text" validate:"required,max=5000"`
}

// HistoryQuery holds the query string of GET /api/history.
type HistoryQuery struct {
	Limit int `form:"limit" validate:"omitempty,min=1,max=100"`
}

// APIError is the error envelope of every failed request.
type APIError struct {
	Error ErrorBody `json:"error"`
}

// ErrorBody describes a failure.
type ErrorBody struct {
	Kind      errs.Kind `json:"kind"`
	Message   string    `json:"message"`
	RequestID string    `json:"request_id,omitempty"`
}

// ParseAndValidate binds a JSON body into dto and validates it.
func ParseAndValidate(c *gin.Context, dto any) error {
	if err := c.ShouldBindJSON(dto); err != nil {
		return err
	}
	return validate.Struct(dto)
}

// statusOf maps an error kind to an HTTP status.
func statusOf(kind errs.Kind) int {
	switch kind {
	case errs.KindParse:
		return http.StatusBadRequest
	case errs.KindConfiguration, errs.KindStorageUnavailable:
		return http.StatusServiceUnavailable
	case errs.KindUpstreamAPI:
		return http.StatusBadGateway
	case errs.KindTimeout:
		return http.StatusGatewayTimeout
	case errs.KindStepLimit:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
