package apiutil

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"sync/atomic"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"github.com/codr1/ChargeEase/internal/api/authz"
	"github.com/codr1/ChargeEase/internal/request"
)

// ProductionStack replaces stack traces in production error bodies.
const ProductionStack = "🥞"

var hideStacks atomic.Bool

// SetProduction controls whether error bodies carry real stack traces.
func SetProduction(production bool) {
	hideStacks.Store(production)
}

type FieldError struct {
	Field  string
	Reason string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

type HandlerError struct {
	Status  int
	Message string
	Err     error
}

func (e HandlerError) Error() string {
	return e.Message
}

func (e HandlerError) Unwrap() error {
	return e.Err
}

func BadRequest(message string) HandlerError {
	return HandlerError{Status: http.StatusBadRequest, Message: message}
}

func NotFound(message string) HandlerError {
	return HandlerError{Status: http.StatusNotFound, Message: message}
}

func Conflict(message string, err error) HandlerError {
	return HandlerError{Status: http.StatusConflict, Message: message, Err: err}
}

func Forbidden(message string) HandlerError {
	return HandlerError{Status: http.StatusForbidden, Message: message}
}

// Envelope wraps every successful JSON response.
type Envelope struct {
	Success    bool      `json:"success"`
	Data       any       `json:"data,omitempty"`
	Message    string    `json:"message,omitempty"`
	Pagination *PageInfo `json:"pagination,omitempty"`
}

type PageInfo struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
}

type ErrorBody struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Stack   string `json:"stack"`
}

// HandlerFunc is an http handler that reports failures by returning them.
type HandlerFunc func(w http.ResponseWriter, r *http.Request) error

// Handle adapts fn to net/http, rendering any returned error as JSON.
func Handle(fn HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := fn(w, r); err != nil {
			WriteError(w, r, err)
		}
	}
}

func WriteJSON(w http.ResponseWriter, status int, payload any) error {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	if err := encoder.Encode(payload); err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, err := w.Write(buf.Bytes())
	return err
}

func Success(w http.ResponseWriter, status int, data any) error {
	return WriteJSON(w, status, Envelope{Success: true, Data: data})
}

func SuccessMessage(w http.ResponseWriter, status int, data any, message string) error {
	return WriteJSON(w, status, Envelope{Success: true, Data: data, Message: message})
}

func Paginated(w http.ResponseWriter, data any, page request.Pagination, total int64) error {
	return WriteJSON(w, http.StatusOK, Envelope{
		Success: true,
		Data:    data,
		Pagination: &PageInfo{
			Page:       page.Page,
			Limit:      page.Limit,
			Total:      total,
			TotalPages: page.TotalPages(total),
		},
	})
}

// Stack is the stack field for error bodies.
func Stack() string {
	if hideStacks.Load() {
		return ProductionStack
	}
	return string(debug.Stack())
}

// StatusFor classifies err. Anything unclassified is a 500.
func StatusFor(err error) int {
	var handlerErr HandlerError
	var fieldErr FieldError
	var validationErrs validator.ValidationErrors
	var maxBytesErr *http.MaxBytesError
	switch {
	case errors.As(err, &handlerErr):
		return handlerErr.Status
	case errors.As(err, &fieldErr), errors.As(err, &validationErrs):
		return http.StatusBadRequest
	case errors.As(err, &maxBytesErr):
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusInternalServerError
}

// WriteError logs err and writes the JSON error body.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	logger := log.Ctx(r.Context())

	event := logger.Warn()
	if status >= http.StatusInternalServerError {
		event = logger.Error()
	}
	if user := authz.UserFromContext(r.Context()); user != nil {
		event = event.Str("user_id", user.ID)
	}
	event.Err(err).
		Int("status", status).
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Msg("Request failed")

	if writeErr := WriteJSON(w, status, ErrorBody{
		Success: false,
		Message: err.Error(),
		Stack:   Stack(),
	}); writeErr != nil {
		logger.Error().Err(writeErr).Msg("Failed to write error response")
	}
}

// RequireUser returns the authenticated user or a 401.
func RequireUser(r *http.Request) (*authz.AuthUser, error) {
	user, err := authz.RequireUser(r.Context())
	if err != nil {
		return nil, HandlerError{Status: http.StatusUnauthorized, Message: "Authentication required", Err: err}
	}
	return user, nil
}
