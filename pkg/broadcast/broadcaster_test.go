package broadcast

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/relaymesh/postrelay/pkg/core"
)

func quietLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func event(n int) core.WebhookEvent {
	return core.NewWebhookEvent(time.Unix(int64(n), 0), map[string]interface{}{"n": float64(n)}, "")
}

func frameN(t *testing.T, frame []byte) int {
	t.Helper()
	var decoded struct {
		Data struct {
			N int `json:"n"`
		} `json:"data"`
	}
	if err := json.Unmarshal(frame, &decoded); err != nil {
		t.Fatalf("decode frame: %v", err)
	}
	return decoded.Data.N
}

func TestHistoryKeepsLastTen(t *testing.T) {
	b := New(10, 64, quietLogger())
	for i := 1; i <= 11; i++ {
		if err := b.Publish(event(i)); err != nil {
			t.Fatalf("publish %d: %v", i, err)
		}
	}
	history := b.History()
	if len(history) != 10 {
		t.Fatalf("expected 10 events, got %d", len(history))
	}
	for i, evt := range history {
		want := float64(i + 2)
		if got := evt.Data.(map[string]interface{})["n"]; got != want {
			t.Fatalf("position %d: expected %v, got %v", i, want, got)
		}
	}
}

func TestLateSubscriberGetsHistoryFirst(t *testing.T) {
	b := New(10, 64, quietLogger())
	for i := 1; i <= 3; i++ {
		_ = b.Publish(event(i))
	}
	sub := b.Subscribe()
	_ = b.Publish(event(4))

	for want := 1; want <= 4; want++ {
		select {
		case frame := <-sub.Frames():
			if got := frameN(t, frame); got != want {
				t.Fatalf("expected event %d, got %d", want, got)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for event %d", want)
		}
	}
}

func TestSlowSubscriberIsDropped(t *testing.T) {
	b := New(2, 2, quietLogger())
	slow := b.Subscribe()
	fast := b.Subscribe()

	for i := 1; i <= 2; i++ {
		_ = b.Publish(event(i))
		<-fast.Frames()
	}
	_ = b.Publish(event(3))

	if b.Subscribers() != 1 {
		t.Fatalf("expected slow subscriber dropped, got %d subscribers", b.Subscribers())
	}
	drained := 0
	for range slow.Frames() {
		drained++
	}
	if drained != 2 {
		t.Fatalf("expected 2 queued frames before drop, got %d", drained)
	}
	if got := frameN(t, <-fast.Frames()); got != 3 {
		t.Fatalf("expected fast subscriber to receive event 3, got %d", got)
	}
}

func TestUnsubscribeIsIdempotent(t *testing.T) {
	b := New(10, 10, quietLogger())
	sub := b.Subscribe()
	b.Unsubscribe(sub)
	b.Unsubscribe(sub)
	b.Unsubscribe(nil)
	if _, ok := <-sub.Frames(); ok {
		t.Fatalf("expected closed queue")
	}
	if err := b.Publish(event(1)); err != nil {
		t.Fatalf("publish after unsubscribe: %v", err)
	}
}

func TestCloseEndsSubscriptions(t *testing.T) {
	b := New(10, 10, quietLogger())
	sub := b.Subscribe()
	b.Close()
	if _, ok := <-sub.Frames(); ok {
		t.Fatalf("expected closed queue after Close")
	}
	late := b.Subscribe()
	if _, ok := <-late.Frames(); ok {
		t.Fatalf("expected subscription after Close to be closed")
	}
}

func TestPublishRejectsUnencodableEvent(t *testing.T) {
	b := New(10, 10, quietLogger())
	if err := b.Publish(core.WebhookEvent{Data: make(chan int)}); err == nil {
		t.Fatalf("expected encode error")
	}
	if len(b.History()) != 0 {
		t.Fatalf("expected nothing recorded")
	}
}

func TestConcurrentPublishKeepsOrderPerSubscriber(t *testing.T) {
	b := New(10, 256, quietLogger())
	sub := b.Subscribe()

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				_ = b.Publish(core.NewWebhookEvent(time.Now(), map[string]interface{}{"w": fmt.Sprint(w), "i": float64(i)}, ""))
			}
		}(w)
	}
	wg.Wait()

	last := map[string]float64{}
	for i := 0; i < 100; i++ {
		var decoded struct {
			Data struct {
				W string  `json:"w"`
				I float64 `json:"i"`
			} `json:"data"`
		}
		if err := json.Unmarshal(<-sub.Frames(), &decoded); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if prev, ok := last[decoded.Data.W]; ok && decoded.Data.I <= prev {
			t.Fatalf("worker %s out of order: %v after %v", decoded.Data.W, decoded.Data.I, prev)
		}
		last[decoded.Data.W] = decoded.Data.I
	}
	if len(b.History()) != 10 {
		t.Fatalf("expected bounded history")
	}
}
