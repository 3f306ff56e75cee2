package forward

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

type captured struct {
	mu          sync.Mutex
	bodies      []map[string]interface{}
	contentType string
}

func downstream(t *testing.T, status int) (*httptest.Server, *captured) {
	t.Helper()
	c := &captured{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode forwarded body: %v", err)
		}
		c.mu.Lock()
		c.bodies = append(c.bodies, body)
		c.contentType = r.Header.Get("Content-Type")
		c.mu.Unlock()
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, c
}

func newForwarder(t *testing.T, url, transformJS string) *Forwarder {
	t.Helper()
	fwd, err := New(Config{URL: url, Timeout: time.Second, TransformJS: transformJS, Logger: log.New(io.Discard, "", 0)})
	if err != nil {
		t.Fatalf("new forwarder: %v", err)
	}
	return fwd
}

func TestForwardSuccess(t *testing.T) {
	srv, got := downstream(t, http.StatusOK)
	fwd := newForwarder(t, srv.URL, "")

	if err := fwd.Forward(context.Background(), map[string]interface{}{"id": "42", "message": "hi"}); err != nil {
		t.Fatalf("forward: %v", err)
	}
	if len(got.bodies) != 1 || got.bodies[0]["id"] != "42" {
		t.Fatalf("unexpected forwarded bodies %v", got.bodies)
	}
	if got.contentType != "application/json" {
		t.Fatalf("unexpected content type %q", got.contentType)
	}
}

func TestForwardNon200IsFailure(t *testing.T) {
	for _, status := range []int{http.StatusCreated, http.StatusNoContent, http.StatusInternalServerError} {
		srv, _ := downstream(t, status)
		fwd := newForwarder(t, srv.URL, "")
		err := fwd.Forward(context.Background(), map[string]interface{}{"id": "1"})
		var statusErr *StatusError
		if !errors.As(err, &statusErr) || statusErr.StatusCode != status {
			t.Fatalf("status %d: expected StatusError, got %v", status, err)
		}
	}
}

func TestForwardUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	fwd := newForwarder(t, url, "")
	if err := fwd.Forward(context.Background(), map[string]interface{}{}); err == nil {
		t.Fatalf("expected transport error")
	}
}

func TestForwardTransform(t *testing.T) {
	srv, got := downstream(t, http.StatusOK)
	fwd := newForwarder(t, srv.URL, `function transform(post){ return { post_id: post.id, text: post.message }; }`)

	payload := map[string]interface{}{"id": "7", "message": "hello"}
	if err := fwd.Forward(context.Background(), payload); err != nil {
		t.Fatalf("forward: %v", err)
	}
	if got.bodies[0]["post_id"] != "7" || got.bodies[0]["text"] != "hello" {
		t.Fatalf("expected transformed body, got %v", got.bodies[0])
	}
	if _, ok := payload["post_id"]; ok {
		t.Fatalf("transform must not mutate caller payload")
	}
}

func TestForwardTransformErrorsSendNothing(t *testing.T) {
	srv, got := downstream(t, http.StatusOK)
	fwd := newForwarder(t, srv.URL, `function transform(post){ throw new Error("boom"); }`)
	if err := fwd.Forward(context.Background(), map[string]interface{}{"id": "1"}); err == nil {
		t.Fatalf("expected transform error")
	}
	if len(got.bodies) != 0 {
		t.Fatalf("expected nothing forwarded, got %v", got.bodies)
	}
}

func TestNewRejectsBadConfig(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatalf("expected missing url error")
	}
	if _, err := New(Config{URL: "http://x", TransformJS: "bad javascript"}); err == nil {
		t.Fatalf("expected compile failure")
	}
	if _, err := New(Config{URL: "http://x", TransformJS: "({ value: 1 })"}); err == nil {
		t.Fatalf("expected missing transform function")
	}
}

func TestTransformConcurrentCalls(t *testing.T) {
	tr, err := compileTransform(`function transform(post){ post.seen = true; return post; }`)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := tr.apply(map[string]interface{}{"id": "x"})
			if err != nil {
				t.Errorf("apply: %v", err)
				return
			}
			if out.(map[string]interface{})["seen"] != true {
				t.Errorf("expected seen flag, got %v", out)
			}
		}()
	}
	wg.Wait()
}
