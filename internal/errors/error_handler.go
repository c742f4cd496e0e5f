// Package errors defines the error codes and response envelope shared by
// every API failure path.
package errors

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/devrev/docstore/internal/document"
)

// ErrorCode identifies a failure class in API error responses.
type ErrorCode string

const (
	ErrCodeMissingTenant      ErrorCode = "MISSING_TENANT"
	ErrCodeInvalidTenant      ErrorCode = "INVALID_TENANT"
	ErrCodeForbiddenWrite     ErrorCode = "FORBIDDEN_WRITE"
	ErrCodeRateLimited        ErrorCode = "RATE_LIMITED"
	ErrCodeInvalidBody        ErrorCode = "INVALID_BODY"
	ErrCodeCollectionNotFound ErrorCode = "COLLECTION_NOT_FOUND"
	ErrCodeRecordNotFound     ErrorCode = "RECORD_NOT_FOUND"
	ErrCodeRecordExists       ErrorCode = "RECORD_EXISTS"
	ErrCodeNotFound           ErrorCode = "NOT_FOUND"
	ErrCodeMethodNotAllowed   ErrorCode = "METHOD_NOT_ALLOWED"
	ErrCodeInternal           ErrorCode = "INTERNAL_ERROR"
)

// ErrorResponse is the JSON body written for every failed request.
type ErrorResponse struct {
	Error     string    `json:"error"`
	Code      ErrorCode `json:"code"`
	RequestID string    `json:"request_id,omitempty"`
}

// Handler writes uniform error responses and logs them.
type Handler struct {
	logger *zap.Logger
}

// NewHandler creates an error handler.
func NewHandler(logger *zap.Logger) *Handler {
	return &Handler{logger: logger}
}

// WriteError logs the failure and writes the JSON error body.
func (h *Handler) WriteError(w http.ResponseWriter, statusCode int, code ErrorCode, message, requestID string) {
	h.logger.Warn("API error response",
		zap.Int("status", statusCode),
		zap.String("code", string(code)),
		zap.String("message", message),
		zap.String("request_id", requestID),
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := ErrorResponse{
		Error:     message,
		Code:      code,
		RequestID: requestID,
	}
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.Error("Failed to encode error response", zap.Error(err))
	}
}

// WriteStoreError maps a document store failure onto the matching API
// error. Unrecognized errors become a 500 without leaking detail.
func (h *Handler) WriteStoreError(w http.ResponseWriter, err error, requestID string) {
	switch {
	case errors.Is(err, document.ErrCollectionNotFound):
		h.WriteError(w, http.StatusNotFound, ErrCodeCollectionNotFound, "collection not found", requestID)
	case errors.Is(err, document.ErrRecordNotFound):
		h.WriteError(w, http.StatusNotFound, ErrCodeRecordNotFound, "record not found", requestID)
	case errors.Is(err, document.ErrRecordExists):
		h.WriteError(w, http.StatusConflict, ErrCodeRecordExists, "record with this id already exists", requestID)
	default:
		h.WriteError(w, http.StatusInternalServerError, ErrCodeInternal, "internal server error", requestID)
	}
}
