package notify

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"sync"
	"testing"

	"operatorMonitor/internal/model"
)

type fakeNotifier struct {
	name  string
	fail  bool
	panic bool
	sent  []string
}

func (f *fakeNotifier) Name() string { return f.name }

func (f *fakeNotifier) Send(_ context.Context, message string, _ *model.ChainEvent) error {
	if f.panic {
		panic("boom")
	}
	if f.fail {
		return errors.New("unavailable")
	}
	f.sent = append(f.sent, message)
	return nil
}

func (f *fakeNotifier) TestConnection(context.Context) error {
	if f.fail {
		return errors.New("unavailable")
	}
	return nil
}

func TestFanoutAnyPrimarySucceeds(t *testing.T) {
	a := &fakeNotifier{name: "a", fail: true}
	b := &fakeNotifier{name: "b"}
	c := &fakeNotifier{name: "c", panic: true}
	fb := &fakeNotifier{name: "fallback"}

	f := NewFanout(nil)
	f.AddPrimary(a)
	f.AddPrimary(b)
	f.AddPrimary(c)
	f.AddFallback(fb)

	if !f.Send(context.Background(), "hello", nil) {
		t.Fatalf("expected success")
	}
	if len(b.sent) != 1 {
		t.Fatalf("primary b not used")
	}
	if len(fb.sent) != 0 {
		t.Fatalf("fallback used although a primary succeeded")
	}
}

func TestFanoutFallbackInOrder(t *testing.T) {
	f := NewFanout(nil)
	f.AddPrimary(&fakeNotifier{name: "a", fail: true})
	f.AddPrimary(&fakeNotifier{name: "b", panic: true})

	first := &fakeNotifier{name: "first", fail: true}
	second := &fakeNotifier{name: "second"}
	third := &fakeNotifier{name: "third"}
	f.AddFallback(first)
	f.AddFallback(second)
	f.AddFallback(third)

	if !f.Send(context.Background(), "hello", nil) {
		t.Fatalf("expected fallback success")
	}
	if len(second.sent) != 1 || len(third.sent) != 0 {
		t.Fatalf("fallbacks should stop at the first success: second=%d third=%d", len(second.sent), len(third.sent))
	}
}

func TestFanoutAllFail(t *testing.T) {
	f := NewFanout(nil)
	f.AddPrimary(&fakeNotifier{name: "a", fail: true})
	f.AddFallback(&fakeNotifier{name: "b", fail: true})

	if f.Send(context.Background(), "hello", nil) {
		t.Fatalf("expected failure")
	}
	if NewFanout(nil).Send(context.Background(), "hello", nil) {
		t.Fatalf("expected failure without channels")
	}
}

func TestFanoutTestConnections(t *testing.T) {
	f := NewFanout(nil)
	f.AddPrimary(&fakeNotifier{name: "a"})
	f.AddFallback(&fakeNotifier{name: "b", fail: true})

	results := f.TestConnections(context.Background())
	if len(results) != 2 || results[0].Err != nil || results[1].Err == nil || !results[1].Fallback {
		t.Fatalf("results mismatch: %+v", results)
	}
	if !reflect.DeepEqual(f.Channels(), []string{"a", "b (fallback)"}) {
		t.Fatalf("channels mismatch: %v", f.Channels())
	}
}

func TestConsole(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf)
	if err := c.Send(context.Background(), "event line", nil); err != nil {
		t.Fatalf("send: %v", err)
	}
	if buf.String() != "event line\n" {
		t.Fatalf("output mismatch: %q", buf.String())
	}
}

func TestSlackSend(t *testing.T) {
	var mu sync.Mutex
	var posted []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/chat.postMessage"):
			mu.Lock()
			posted = append(posted, r.Form.Get("channel")+"|"+r.Form.Get("text"))
			mu.Unlock()
			_, _ = w.Write([]byte(`{"ok":true,"channel":"C123","ts":"1700000000.000100"}`))
		case strings.HasSuffix(r.URL.Path, "/auth.test"):
			_, _ = w.Write([]byte(`{"ok":true,"team":"taiyi","user":"monitor"}`))
		default:
			_, _ = w.Write([]byte(`{"ok":false,"error":"unknown_method"}`))
		}
	}))
	defer srv.Close()

	s, err := NewSlack(SlackConfig{Token: "xoxb-test", Channel: "C123", APIURL: srv.URL + "/"}, nil)
	if err != nil {
		t.Fatalf("new slack: %v", err)
	}

	if err := s.Send(context.Background(), "operator registered", nil); err != nil {
		t.Fatalf("send: %v", err)
	}
	if err := s.TestConnection(context.Background()); err != nil {
		t.Fatalf("test connection: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if !reflect.DeepEqual(posted, []string{"C123|operator registered"}) {
		t.Fatalf("posted mismatch: %v", posted)
	}
}

func TestSlackSendError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":false,"error":"channel_not_found"}`))
	}))
	defer srv.Close()

	s, err := NewSlack(SlackConfig{Token: "xoxb-test", Channel: "C404", APIURL: srv.URL + "/"}, nil)
	if err != nil {
		t.Fatalf("new slack: %v", err)
	}
	if err := s.Send(context.Background(), "x", nil); err == nil {
		t.Fatalf("expected error")
	}

	if _, err := NewSlack(SlackConfig{Channel: "C1"}, nil); err == nil {
		t.Fatalf("expected error without token")
	}
}
