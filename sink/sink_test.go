package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hazyhaar/farmshift/search"
	"github.com/hazyhaar/farmshift/settings"
)

func testEvent() Event {
	rep := &search.Report{Provider: "google", Transformed: map[settings.Mode]int{settings.ModeRewrite: 2}}
	return NewEvent(TypeBatch, "p1", rep)
}

func TestWriter_JSONLines(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	if err := w.Send(context.Background(), testEvent()); err != nil {
		t.Fatal(err)
	}
	if err := w.Send(context.Background(), testEvent()); err != nil {
		t.Fatal(err)
	}
	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	if len(lines) != 2 {
		t.Fatalf("lines: got %d, want 2", len(lines))
	}
	var ev Event
	if err := json.Unmarshal(lines[0], &ev); err != nil {
		t.Fatal(err)
	}
	if ev.Type != TypeBatch || ev.PageID != "p1" {
		t.Errorf("event: got %+v", ev)
	}
	if ev.Report.Transformed[settings.ModeRewrite] != 2 {
		t.Errorf("report: got %+v", ev.Report)
	}
}

func TestRouter_FanOutContinuesOnError(t *testing.T) {
	boom := errors.New("boom")
	var got int
	r := NewRouter(nil,
		NewCallback(func(context.Context, Event) error { return boom }),
		NewCallback(func(context.Context, Event) error { got++; return nil }),
	)
	if err := r.Send(context.Background(), testEvent()); !errors.Is(err, boom) {
		t.Errorf("Send: got %v, want boom", err)
	}
	if got != 1 {
		t.Errorf("second sink: got %d calls, want 1", got)
	}
	if err := r.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestWebhook_RetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		var ev Event
		if err := json.NewDecoder(r.Body).Decode(&ev); err != nil || ev.PageID != "p1" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	wh := NewWebhook(srv.URL, WithWebhookRetries(2), WithWebhookBackoff(time.Millisecond))
	if err := wh.Send(context.Background(), testEvent()); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("calls: got %d, want 2", calls.Load())
	}
}

func TestWebhook_Exhausted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	wh := NewWebhook(srv.URL, WithWebhookRetries(1), WithWebhookBackoff(time.Millisecond))
	if err := wh.Send(context.Background(), testEvent()); err == nil {
		t.Error("Send: want error after retries")
	}
}
