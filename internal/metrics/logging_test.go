package metrics

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func bufferLogger(buf *bytes.Buffer) *zap.Logger {
	encoder := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	return zap.New(zapcore.NewCore(encoder, zapcore.AddSync(buf), zapcore.InfoLevel))
}

func serve(t *testing.T, req *http.Request) (map[string]any, *httptest.ResponseRecorder) {
	t.Helper()
	var buf bytes.Buffer
	handler := LoggingMiddleware(bufferLogger(&buf))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry), buf.String())
	return entry, w
}

func TestLoggingMiddleware(t *testing.T) {
	req := httptest.NewRequest("POST", "/api/v1/recommendations", nil)
	req.RemoteAddr = "10.0.0.1:54321"
	entry, w := serve(t, req)

	assert.Equal(t, "POST", entry["method"])
	assert.Equal(t, "/api/v1/recommendations", entry["path"])
	assert.Equal(t, 201.0, entry["status"])
	assert.Equal(t, "10.0.0.1:54321", entry["client_ip"])
	assert.Contains(t, entry, "duration_ms")

	id := w.Header().Get(RequestIDHeader)
	assert.NotEmpty(t, id)
	assert.Equal(t, id, entry["request_id"])
}

func TestLoggingMiddleware_PropagatesRequestID(t *testing.T) {
	req := httptest.NewRequest("GET", "/api/health", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	req.Header.Set("X-Forwarded-For", "203.0.113.50, 10.0.0.1")
	entry, w := serve(t, req)

	assert.Equal(t, "abc-123", w.Header().Get(RequestIDHeader))
	assert.Equal(t, "203.0.113.50", entry["client_ip"])
}
