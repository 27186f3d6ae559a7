package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Prathaban-G/ecommerce/internal/platform/requestctx"
)

func TestWriteErrorIncludesContextIdentifiers(t *testing.T) {
	ctx := context.WithValue(context.Background(), middleware.RequestIDKey, "req-1")
	ctx = requestctx.WithTrace(ctx, requestctx.TraceInfo{TraceID: "abc"})
	ctx = requestctx.WithSessionID(ctx, "s1")

	rec := httptest.NewRecorder()
	WriteError(ctx, rec, NewError("session_closed", "session has been closed", http.StatusGone))

	require.Equal(t, http.StatusGone, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "session_closed", body["error"])
	assert.Equal(t, "session has been closed", body["message"])
	assert.EqualValues(t, http.StatusGone, body["status"])
	assert.Equal(t, "req-1", body["request_id"])
	assert.Equal(t, "abc", body["trace_id"])
	assert.Equal(t, "s1", body["session_id"])
}

func TestWriteErrorOmitsMissingIdentifiers(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(context.Background(), rec, Error{Code: "internal_error"})

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotContains(t, body, "request_id")
	assert.NotContains(t, body, "trace_id")
	assert.NotContains(t, body, "session_id")
}

func TestNewErrorSanitizes(t *testing.T) {
	err := NewError(" bad\ncode ", "line one\r\nline two", 0)
	assert.Equal(t, "bad code", err.Code)
	assert.Equal(t, "line one  line two", err.Message)
	assert.Equal(t, http.StatusInternalServerError, err.Status)
	assert.Equal(t, "bad code: line one  line two", err.Error())
}
