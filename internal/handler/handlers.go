// Package handler provides HTTP request handlers for the document store API.
package handler

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/devrev/docstore/internal/document"
	apierrors "github.com/devrev/docstore/internal/errors"
	"github.com/devrev/docstore/internal/middleware"
	"github.com/devrev/docstore/internal/service"
)

// maxBodyBytes caps request bodies at 1 MiB. Datasets are snapshot-sized,
// individual records should stay far below this.
const maxBodyBytes = 1 << 20

// Handlers contains all HTTP handlers and their dependencies.
type Handlers struct {
	documents    *service.DocumentService
	errorHandler *apierrors.Handler
	logger       *zap.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(
	documents *service.DocumentService,
	errorHandler *apierrors.Handler,
	logger *zap.Logger,
) *Handlers {
	return &Handlers{
		documents:    documents,
		errorHandler: errorHandler,
		logger:       logger,
	}
}

// GetDataset handles GET /v1 requests and returns the tenant's full dataset.
func (h *Handlers) GetDataset(w http.ResponseWriter, r *http.Request) {
	requestID := r.Header.Get("X-Request-ID")
	tenantID := middleware.GetTenantID(r)

	dataset, err := h.documents.Dataset(r.Context(), tenantID)
	if err != nil {
		h.errorHandler.WriteStoreError(w, err, requestID)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, dataset)
}

// ListRecords handles GET /v1/{collection} requests.
func (h *Handlers) ListRecords(w http.ResponseWriter, r *http.Request) {
	requestID := r.Header.Get("X-Request-ID")
	tenantID := middleware.GetTenantID(r)
	collection := mux.Vars(r)["collection"]

	records, err := h.documents.ListRecords(r.Context(), tenantID, collection)
	if err != nil {
		h.errorHandler.WriteStoreError(w, err, requestID)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, records)
}

// GetRecord handles GET /v1/{collection}/{id} requests.
func (h *Handlers) GetRecord(w http.ResponseWriter, r *http.Request) {
	requestID := r.Header.Get("X-Request-ID")
	tenantID := middleware.GetTenantID(r)
	vars := mux.Vars(r)

	record, err := h.documents.GetRecord(r.Context(), tenantID, vars["collection"], vars["id"])
	if err != nil {
		h.errorHandler.WriteStoreError(w, err, requestID)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, record)
}

// CreateRecord handles POST /v1/{collection} requests.
func (h *Handlers) CreateRecord(w http.ResponseWriter, r *http.Request) {
	requestID := r.Header.Get("X-Request-ID")
	tenantID := middleware.GetTenantID(r)
	collection := mux.Vars(r)["collection"]

	// Parse request body
	record, err := h.decodeRecord(w, r)
	if err != nil {
		h.errorHandler.WriteError(w, http.StatusBadRequest, apierrors.ErrCodeInvalidBody, err.Error(), requestID)
		return
	}

	created, err := h.documents.CreateRecord(r.Context(), tenantID, collection, record)
	if err != nil {
		h.errorHandler.WriteStoreError(w, err, requestID)
		return
	}

	h.writeJSONResponse(w, http.StatusCreated, created)
}

// ReplaceRecord handles PUT /v1/{collection}/{id} requests.
func (h *Handlers) ReplaceRecord(w http.ResponseWriter, r *http.Request) {
	requestID := r.Header.Get("X-Request-ID")
	tenantID := middleware.GetTenantID(r)
	vars := mux.Vars(r)

	// Parse request body
	record, err := h.decodeRecord(w, r)
	if err != nil {
		h.errorHandler.WriteError(w, http.StatusBadRequest, apierrors.ErrCodeInvalidBody, err.Error(), requestID)
		return
	}

	updated, err := h.documents.ReplaceRecord(r.Context(), tenantID, vars["collection"], vars["id"], record)
	if err != nil {
		h.errorHandler.WriteStoreError(w, err, requestID)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, updated)
}

// PatchRecord handles PATCH /v1/{collection}/{id} requests.
func (h *Handlers) PatchRecord(w http.ResponseWriter, r *http.Request) {
	requestID := r.Header.Get("X-Request-ID")
	tenantID := middleware.GetTenantID(r)
	vars := mux.Vars(r)

	// Parse request body
	fields, err := h.decodeRecord(w, r)
	if err != nil {
		h.errorHandler.WriteError(w, http.StatusBadRequest, apierrors.ErrCodeInvalidBody, err.Error(), requestID)
		return
	}

	updated, err := h.documents.PatchRecord(r.Context(), tenantID, vars["collection"], vars["id"], fields)
	if err != nil {
		h.errorHandler.WriteStoreError(w, err, requestID)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, updated)
}

// DeleteRecord handles DELETE /v1/{collection}/{id} requests.
func (h *Handlers) DeleteRecord(w http.ResponseWriter, r *http.Request) {
	requestID := r.Header.Get("X-Request-ID")
	tenantID := middleware.GetTenantID(r)
	vars := mux.Vars(r)

	if err := h.documents.DeleteRecord(r.Context(), tenantID, vars["collection"], vars["id"]); err != nil {
		h.errorHandler.WriteStoreError(w, err, requestID)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// decodeRecord reads and parses a request body into a single record. The
// body must be a JSON object.
func (h *Handlers) decodeRecord(w http.ResponseWriter, r *http.Request) (document.Record, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read request body: %w", err)
	}
	defer r.Body.Close()

	var record document.Record
	if err := json.Unmarshal(body, &record); err != nil {
		return nil, fmt.Errorf("request body must be a JSON object: %w", err)
	}
	if record == nil {
		return nil, fmt.Errorf("request body must be a JSON object")
	}
	return record, nil
}

// writeJSONResponse writes a JSON response to the HTTP response writer.
func (h *Handlers) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", zap.Error(err))
	}
}
