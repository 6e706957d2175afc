package errors

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAPIError_Error(t *testing.T) {
	err := New(http.StatusBadRequest, "INVALID_REQUEST", "Invalid request format")
	assert.Equal(t, "Invalid request format", err.Error())
}

func TestHandleError_APIError(t *testing.T) {
	handler := NewErrorHandler(nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/stats/nope", nil)
	handler.HandleError(rec, req, ErrBatchNotFound)

	assert.Equal(t, http.StatusNotFound, rec.Code)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, "BATCH_NOT_FOUND", payload["error_code"])
	assert.Equal(t, "Upload batch not found", payload["message"])
}

func TestHandleError_WrapsUnknownErrors(t *testing.T) {
	handler := NewErrorHandler(nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/upload", nil)
	handler.HandleError(rec, req, fmt.Errorf("disk full"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, "INTERNAL_SERVER_ERROR", payload["error_code"])
	assert.Equal(t, "disk full", payload["details"])
}

func TestHandleError_NilIsNoop(t *testing.T) {
	handler := NewErrorHandler(nil)

	rec := httptest.NewRecorder()
	handler.HandleError(rec, httptest.NewRequest(http.MethodGet, "/", nil), nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestErrValidation(t *testing.T) {
	err := ErrValidation("files", "No files provided")

	assert.Equal(t, http.StatusBadRequest, err.StatusCode)
	assert.Equal(t, "VALIDATION_FAILED", err.ErrorCode)
	detail, ok := err.Details.(ValidationError)
	require.True(t, ok)
	assert.Equal(t, "files", detail.Field)
}

func TestNotFoundError(t *testing.T) {
	err := NotFoundError("Extraction snapshot")

	assert.Equal(t, http.StatusNotFound, err.StatusCode)
	assert.Equal(t, "Extraction snapshot not found", err.Message)
}
