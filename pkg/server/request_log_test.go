package server

import (
	"bytes"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRequestLogMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(&buf, "", 0)
	mw := requestLogMiddleware(logger)
	h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Test", "ok")
		_, _ = w.Write([]byte("hello"))
	}))
	req := httptest.NewRequest(http.MethodPost, "/verify-webhook", strings.NewReader("{}"))
	req.RemoteAddr = "127.0.0.1:9999"
	req.Header.Set("User-Agent", "test-agent")
	req.Header.Set("X-Request-Id", "req-1")
	res := httptest.NewRecorder()
	h.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	line := buf.String()
	checks := []string{
		"method=POST",
		"path=/verify-webhook",
		"status=200",
		"request_id=req-1",
		"remote_ip=127.0.0.1",
		`ua="test-agent"`,
	}
	for _, want := range checks {
		if !strings.Contains(line, want) {
			t.Fatalf("expected log to contain %q, got %q", want, line)
		}
	}
}

func TestRequestLogUsesResponseRequestID(t *testing.T) {
	var buf bytes.Buffer
	h := requestLogMiddleware(log.New(&buf, "", 0))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Request-Id", "generated-1")
		w.WriteHeader(http.StatusForbidden)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/webhook", nil))

	line := buf.String()
	if !strings.Contains(line, "status=403") || !strings.Contains(line, "request_id=generated-1") {
		t.Fatalf("unexpected log line %q", line)
	}
}

func TestStatusRecorderHijackUnsupported(t *testing.T) {
	rec := &statusRecorder{ResponseWriter: httptest.NewRecorder()}
	if _, _, err := rec.Hijack(); err == nil {
		t.Fatalf("expected hijack error for recorder without hijacker")
	}
}
