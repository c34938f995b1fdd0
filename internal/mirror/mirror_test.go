package mirror

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"edgeadmin/internal/eventbus"
	"edgeadmin/internal/notice"
	logx "edgeadmin/pkg/logx"
)

type fakeSender struct {
	mu    sync.Mutex
	texts []string
	fails int
	calls int
}

func (f *fakeSender) Send(_ context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.fails > 0 {
		f.fails--
		return errors.New("boom")
	}
	f.texts = append(f.texts, text)
	return nil
}

func (f *fakeSender) sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.texts...)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met")
}

func TestForwardFiltersBySeverity(t *testing.T) {
	t.Parallel()
	s := New(Config{MinSeverity: notice.SeverityWarning, QueueSize: 8}, &fakeSender{}, logx.Nop())

	_ = s.Forward(notice.Notice{Message: "hi", Severity: notice.SeverityInfo})
	_ = s.Forward(notice.Notice{Message: "ok", Severity: notice.SeveritySuccess})
	_ = s.Forward(notice.Notice{Message: "careful", Severity: notice.SeverityWarning})
	_ = s.Forward(notice.Notice{Message: "broken", Severity: notice.SeverityError})

	if got := len(s.queue); got != 2 {
		t.Fatalf("queued = %d, want 2", got)
	}
}

func TestForwardDedupWindow(t *testing.T) {
	t.Parallel()
	s := New(Config{QueueSize: 8, DedupWindow: time.Minute}, &fakeSender{}, logx.Nop())
	n := notice.Notice{Message: "disk full", Severity: notice.SeverityError}

	_ = s.Forward(n)
	_ = s.Forward(n)
	if got := len(s.queue); got != 1 {
		t.Fatalf("queued = %d, want 1", got)
	}
	if got := s.Counters().Deduped; got != 1 {
		t.Fatalf("deduped = %d, want 1", got)
	}

	// Expired entries no longer suppress.
	if !s.allow("other", time.Now()) || !s.allow("other", time.Now().Add(2*time.Minute)) {
		t.Fatal("expected allow after window")
	}
}

func TestForwardQueueFull(t *testing.T) {
	t.Parallel()
	s := New(Config{QueueSize: 1}, &fakeSender{}, logx.Nop())
	if err := s.Forward(notice.Notice{Message: "a", Severity: notice.SeverityError}); err != nil {
		t.Fatal(err)
	}
	if err := s.Forward(notice.Notice{Message: "b", Severity: notice.SeverityError}); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("err = %v, want ErrQueueFull", err)
	}
	if got := s.Counters().Dropped; got != 1 {
		t.Fatalf("dropped = %d, want 1", got)
	}
}

func TestRunForwardsFromBus(t *testing.T) {
	t.Parallel()
	bus := eventbus.New()
	sender := &fakeSender{fails: 1}
	s := New(Config{RatePerSec: 100, RetryMax: 2, RetryBase: time.Millisecond}, sender, logx.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, bus) }()
	waitFor(t, func() bool { return bus.Subscribers() == 1 })

	bus.Publish(eventbus.Event{Type: eventbus.NoticePublished, Data: notice.Notice{Message: "fetch failed", Severity: notice.SeverityError}})
	bus.Publish(eventbus.Event{Type: eventbus.NoticePublished, Data: notice.Notice{Message: "welcome", Severity: notice.SeverityInfo}})
	bus.Publish(eventbus.Event{Type: eventbus.RefreshStarted})

	waitFor(t, func() bool { return len(sender.sent()) == 1 })
	if got := sender.sent()[0]; !strings.HasSuffix(got, "fetch failed") || !strings.HasPrefix(got, "🚨") {
		t.Fatalf("text = %q", got)
	}
	if c := s.Counters(); c.Sent != 1 || c.Failed != 0 {
		t.Fatalf("counters = %+v", c)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not return")
	}
}

func TestSendGivesUpAfterRetries(t *testing.T) {
	t.Parallel()
	sender := &fakeSender{fails: 10}
	s := New(Config{RatePerSec: 100, RetryMax: 2, RetryBase: time.Millisecond}, sender, logx.Nop())

	s.sendWithRetry(context.Background(), "x")
	if sender.calls != 3 {
		t.Fatalf("calls = %d, want 3", sender.calls)
	}
	if got := s.Counters().Failed; got != 1 {
		t.Fatalf("failed = %d, want 1", got)
	}
}

func TestNewTelegramSenderValidates(t *testing.T) {
	t.Parallel()
	if _, err := NewTelegramSender("", 1, 0); err == nil {
		t.Fatal("expected error for empty token")
	}
	if _, err := NewTelegramSender("123:abc", 0, 0); err == nil {
		t.Fatal("expected error for empty chat")
	}
}
