package api

import (
	"errors"
	"net/http"

	"call-audit-go/internal/apperr"
)

type errorBody struct {
	Error     string   `json:"error"`
	Models    []string `json:"models,omitempty"`
	Retryable bool     `json:"retryable"`
}

// statusFor maps pipeline failures to HTTP status codes.
func statusFor(err error) int {
	var (
		decode      *apperr.DecodeError
		unavailable *apperr.ServiceUnavailableError
		label       *apperr.UnrecognizedLabelError
		timeout     *apperr.TimeoutError
		tooLarge    *http.MaxBytesError
		upload      *uploadError
	)
	switch {
	case errors.As(err, &upload):
		return upload.status
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, apperr.ErrEmptyText):
		return http.StatusBadRequest
	case errors.As(err, &decode):
		return http.StatusUnprocessableEntity
	case errors.As(err, &unavailable):
		return http.StatusServiceUnavailable
	case errors.As(err, &label):
		return http.StatusBadGateway
	case errors.As(err, &timeout):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	body := errorBody{Error: err.Error(), Retryable: apperr.Retryable(err)}
	var unavailable *apperr.ServiceUnavailableError
	if errors.As(err, &unavailable) {
		body.Models = unavailable.Models
	}
	if status >= 500 {
		s.log.WithRequest(r).WithField("error", err.Error()).WithField("status", status).Error("request error")
	}
	writeJSON(w, status, body)
}

// uploadError rejects a request before it reaches the pipeline.
type uploadError struct {
	status int
	msg    string
}

func (e *uploadError) Error() string { return e.msg }
