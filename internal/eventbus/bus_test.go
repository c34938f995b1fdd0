package eventbus

import (
	"testing"
	"time"
)

func TestPublishFansOut(t *testing.T) {
	t.Parallel()
	b := New()
	a, unsubA := b.Subscribe(4)
	c, unsubC := b.Subscribe(4)
	defer unsubA()
	defer unsubC()

	b.Publish(Event{Type: NoticePublished, Data: "n1"})

	for _, ch := range []<-chan Event{a, c} {
		select {
		case e := <-ch:
			if e.Type != NoticePublished || e.Data != "n1" {
				t.Fatalf("unexpected event %+v", e)
			}
			if e.Time.IsZero() {
				t.Fatal("expected Time to be stamped")
			}
		case <-time.After(time.Second):
			t.Fatal("event not delivered")
		}
	}
}

func TestSlowSubscriberDrops(t *testing.T) {
	t.Parallel()
	b := New()
	_, unsub := b.Subscribe(1)
	defer unsub()

	b.Publish(Event{Type: RefreshFailed})
	b.Publish(Event{Type: RefreshFailed})
	b.Publish(Event{Type: RefreshFailed})

	if got := b.Dropped(); got != 2 {
		t.Fatalf("Dropped = %d, want 2", got)
	}
}

func TestUnsubscribeClosesAndIsIdempotent(t *testing.T) {
	t.Parallel()
	b := New()
	ch, unsub := b.Subscribe(1)
	unsub()
	unsub()
	if _, ok := <-ch; ok {
		t.Fatal("expected closed channel")
	}
	if b.Subscribers() != 0 {
		t.Fatalf("Subscribers = %d, want 0", b.Subscribers())
	}
	// publishing after unsubscribe must not panic
	b.Publish(Event{Type: NoticePurged})
}
