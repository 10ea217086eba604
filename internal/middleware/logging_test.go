package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestWithRequestLogging(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	logger := zap.New(core)

	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("hello"))
	})
	h := chiMiddleware.RequestID(WithRequestLogging(logger)(inner))

	req := httptest.NewRequest("POST", "/api/crops", nil)
	req.Header.Set("Authorization", "Bearer secret-token")
	req = req.WithContext(WithUser(req.Context(), "alice"))
	h.ServeHTTP(httptest.NewRecorder(), req)

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["method"] != "POST" || fields["uri"] != "/api/crops" {
		t.Errorf("unexpected method/uri: %v", fields)
	}
	if fields["status"] != int64(http.StatusCreated) {
		t.Errorf("expected status 201, got %v", fields["status"])
	}
	if fields["size"] != int64(5) {
		t.Errorf("expected size 5, got %v", fields["size"])
	}
	if fields["request_id"] == "" {
		t.Error("expected request id")
	}
	if fields["username"] != "alice" {
		t.Errorf("expected username alice, got %v", fields["username"])
	}
	for _, v := range fields {
		if s, ok := v.(string); ok && s == "Bearer secret-token" {
			t.Error("authorization header must not be logged")
		}
	}
}

func TestWithRequestLogging_ServerErrorIsWarn(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	WithRequestLogging(zap.New(core))(inner).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))

	if logs.FilterLevelExact(zapcore.WarnLevel).Len() != 1 {
		t.Errorf("expected one warn entry, got %v", logs.All())
	}
}
