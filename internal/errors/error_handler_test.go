package errors

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/devrev/docstore/internal/document"
)

func TestHandler_WriteError(t *testing.T) {
	h := NewHandler(zap.NewNop())
	rec := httptest.NewRecorder()

	h.WriteError(rec, http.StatusBadRequest, ErrCodeMissingTenant, "missing X-Tenant-ID header", "req-1")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "missing X-Tenant-ID header", body.Error)
	assert.Equal(t, ErrCodeMissingTenant, body.Code)
	assert.Equal(t, "req-1", body.RequestID)
}

func TestHandler_WriteError_OmitsEmptyRequestID(t *testing.T) {
	h := NewHandler(zap.NewNop())
	rec := httptest.NewRecorder()

	h.WriteError(rec, http.StatusTooManyRequests, ErrCodeRateLimited, "rate limit exceeded", "")

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	assert.NotContains(t, raw, "request_id")
}

func TestHandler_WriteStoreError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   ErrorCode
	}{
		{"collection not found", document.ErrCollectionNotFound, http.StatusNotFound, ErrCodeCollectionNotFound},
		{"record not found", document.ErrRecordNotFound, http.StatusNotFound, ErrCodeRecordNotFound},
		{"record exists", document.ErrRecordExists, http.StatusConflict, ErrCodeRecordExists},
		{"unknown error", errors.New("disk on fire"), http.StatusInternalServerError, ErrCodeInternal},
	}

	h := NewHandler(zap.NewNop())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()

			h.WriteStoreError(rec, tt.err, "req-9")

			assert.Equal(t, tt.wantStatus, rec.Code)

			var body ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantCode, body.Code)
		})
	}
}

func TestHandler_WriteStoreError_DoesNotLeakInternalDetail(t *testing.T) {
	h := NewHandler(zap.NewNop())
	rec := httptest.NewRecorder()

	h.WriteStoreError(rec, errors.New("pgx: connection refused to 10.0.0.4"), "")

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "internal server error", body.Error)
	assert.NotContains(t, body.Error, "pgx")
}
