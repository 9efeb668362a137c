package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/Clark-Hu/movplay/internal/auth"
	"github.com/Clark-Hu/movplay/internal/domain"
)

const maxRequestBody = 1 << 20 // 1 MiB

type errorResponse struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			s.logger.Warn("encode response", zap.Error(err))
		}
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, code, message string) {
	s.respondJSON(w, status, errorResponse{
		Code:    code,
		Message: message,
	})
}

func (s *Server) respondDecodeError(w http.ResponseWriter, err error) {
	var syntaxError *json.SyntaxError
	var typeError *json.UnmarshalTypeError
	var maxBytesError *http.MaxBytesError
	switch {
	case errors.As(err, &syntaxError), errors.Is(err, io.ErrUnexpectedEOF):
		s.respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Malformed JSON payload")
	case errors.As(err, &typeError):
		s.respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", fmt.Sprintf("Invalid value for field %s", typeError.Field))
	case errors.Is(err, io.EOF):
		s.respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Request body cannot be empty")
	case errors.As(err, &maxBytesError):
		s.respondError(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "Request body is too large")
	case strings.HasPrefix(err.Error(), "json: unknown field"):
		s.respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error()[len("json: "):])
	default:
		s.respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Unable to parse request body")
	}
}

// respondServiceError maps the domain error taxonomy onto HTTP statuses.
// Errors outside the taxonomy are logged and reported as internal.
func (s *Server) respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		status int
		code   string
	)
	switch domain.Kind(err) {
	case domain.ErrNotFound:
		status, code = http.StatusNotFound, "NOT_FOUND"
	case domain.ErrConflict:
		status, code = http.StatusConflict, "CONFLICT"
	case domain.ErrInvalidInput:
		status, code = http.StatusUnprocessableEntity, "VALIDATION_ERROR"
	case domain.ErrDependencyUnavailable:
		status, code = http.StatusServiceUnavailable, "DEPENDENCY_UNAVAILABLE"
	case domain.ErrUnauthorized:
		status, code = http.StatusUnauthorized, "UNAUTHORIZED"
	case domain.ErrForbidden:
		status, code = http.StatusForbidden, "FORBIDDEN"
	default:
		s.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Something went wrong")
		return
	}
	s.respondError(w, status, code, domain.Message(err))
}

// currentUser returns the authenticated caller; routes that reach it are
// guarded by RequireUser.
func currentUser(r *http.Request) string {
	id, _ := auth.UserIDFromContext(r.Context())
	return id
}

func parsePage(r *http.Request) (domain.PageRequest, error) {
	var page domain.PageRequest
	query := r.URL.Query()
	if val := strings.TrimSpace(query.Get("page")); val != "" {
		n, err := strconv.Atoi(val)
		if err != nil || n < 1 {
			return page, domain.Errorf(domain.ErrInvalidInput, "invalid page value")
		}
		page.Page = n
	}
	if val := strings.TrimSpace(query.Get("limit")); val != "" {
		n, err := strconv.Atoi(val)
		if err != nil || n < 1 {
			return page, domain.Errorf(domain.ErrInvalidInput, "invalid limit value")
		}
		page.Limit = n
	}
	return page.Normalize(), nil
}

type pageMeta struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}
