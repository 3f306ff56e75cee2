package relay

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"

	"github.com/relaymesh/postrelay/pkg/workplace"
)

type stubFetcher struct {
	details workplace.PostDetails
	err     error
	calls   []string
}

func (s *stubFetcher) FetchPost(ctx context.Context, postID string) (workplace.PostDetails, error) {
	s.calls = append(s.calls, postID)
	return s.details, s.err
}

type stubForwarder struct {
	err      error
	payloads []interface{}
}

func (s *stubForwarder) Forward(ctx context.Context, payload interface{}) error {
	s.payloads = append(s.payloads, payload)
	return s.err
}

func quiet() *log.Logger { return log.New(io.Discard, "", 0) }

func TestProcessSuccess(t *testing.T) {
	details := workplace.PostDetails{"id": "42", "message": "hi"}
	fetcher := &stubFetcher{details: details}
	forwarder := &stubForwarder{}

	result := NewProcessor(fetcher, forwarder, quiet()).Process(context.Background(), "42")
	if result.Status != StatusSuccess || result.Message != MessageSuccess {
		t.Fatalf("unexpected result %+v", result)
	}
	if !result.OK() || result.Stage != StageForwarded {
		t.Fatalf("expected forwarded stage, got %q", result.Stage)
	}
	if result.Data["id"] != "42" {
		t.Fatalf("expected details attached, got %v", result.Data)
	}
	if len(forwarder.payloads) != 1 {
		t.Fatalf("expected one forward, got %d", len(forwarder.payloads))
	}
	if len(fetcher.calls) != 1 || fetcher.calls[0] != "42" {
		t.Fatalf("unexpected fetch calls %v", fetcher.calls)
	}
}

func TestProcessFetchFailureSkipsForward(t *testing.T) {
	fetcher := &stubFetcher{err: &workplace.StatusError{StatusCode: 500}}
	forwarder := &stubForwarder{}

	result := NewProcessor(fetcher, forwarder, quiet()).Process(context.Background(), "42")
	if result.Status != StatusError || result.Message != MessageFetchFailed {
		t.Fatalf("unexpected result %+v", result)
	}
	if result.Stage != StageFetchFailed || result.Data != nil {
		t.Fatalf("expected fetch_failed without data, got %+v", result)
	}
	var statusErr *workplace.StatusError
	if !errors.As(result.Err, &statusErr) {
		t.Fatalf("expected wrapped status error, got %v", result.Err)
	}
	if len(forwarder.payloads) != 0 {
		t.Fatalf("forward must not be attempted")
	}
}

func TestProcessForwardFailure(t *testing.T) {
	fetcher := &stubFetcher{details: workplace.PostDetails{"id": "9"}}
	forwarder := &stubForwarder{err: errors.New("downstream returned 500")}

	result := NewProcessor(fetcher, forwarder, quiet()).Process(context.Background(), "9")
	if result.Status != StatusError || result.Message != MessageForwardFailed {
		t.Fatalf("unexpected result %+v", result)
	}
	if result.Stage != StageForwardFailed || result.OK() {
		t.Fatalf("expected forward_failed, got %q", result.Stage)
	}
	if result.Data["id"] != "9" {
		t.Fatalf("expected details attached on forward failure")
	}
}
