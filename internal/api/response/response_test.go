package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newthinker/analog/internal/core"
)

func TestJSON_WrapsDataWithTimestamp(t *testing.T) {
	w := httptest.NewRecorder()
	JSON(w, http.StatusCreated, map[string]string{"ticker": "XLF"})

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var resp SuccessResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, map[string]any{"ticker": "XLF"}, resp.Data)
	assert.False(t, resp.Meta.Timestamp.IsZero())
}

func TestError_CoreErrorKeepsCodeAndCause(t *testing.T) {
	w := httptest.NewRecorder()
	Error(w, http.StatusBadRequest, core.WrapError(core.ErrInvalidRequest, fmt.Errorf("title required")))

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "INVALID_REQUEST", resp.Error.Code)
	assert.Equal(t, "title required", resp.Error.Cause)
}

func TestError_PlainErrorIsHidden(t *testing.T) {
	w := httptest.NewRecorder()
	Error(w, http.StatusInternalServerError, errors.New("disk on fire"))

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "INTERNAL_ERROR", resp.Error.Code)
	assert.Empty(t, resp.Error.Cause)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{core.WrapError(core.ErrNotFound, nil), http.StatusNotFound},
		{core.WrapError(core.ErrInvalidRequest, nil), http.StatusBadRequest},
		{core.WrapError(core.ErrInvalidVocabulary, nil), http.StatusBadRequest},
		{core.WrapError(core.ErrClassification, nil), http.StatusUnprocessableEntity},
		{core.WrapError(core.ErrLLMTimeout, nil), http.StatusServiceUnavailable},
		{core.WrapError(core.ErrStorageFailed, nil), http.StatusInternalServerError},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StatusFor(tt.err), "%v", tt.err)
	}
}
