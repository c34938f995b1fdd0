package format

import (
	"testing"
	"time"
)

func TestDuration(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "0s"},
		{5 * time.Second, "5s"},
		{3*time.Minute + 4*time.Second, "3m 4s"},
		{time.Hour + 2*time.Minute + 59*time.Second, "1h 2m"},
		{49 * time.Hour, "49h 0m"},
		{1500 * time.Millisecond, "1s"},
	}
	for _, tt := range tests {
		if got := Duration(tt.in); got != tt.want {
			t.Fatalf("Duration(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestBytes(t *testing.T) {
	t.Parallel()
	tests := map[uint64]string{
		0:       "0 B",
		1024:    "1.0 KiB",
		1536:    "1.5 KiB",
		1 << 20: "1.0 MiB",
	}
	for in, want := range tests {
		if got := Bytes(in); got != want {
			t.Fatalf("Bytes(%d) = %q, want %q", in, got, want)
		}
	}
}

func TestAgo(t *testing.T) {
	t.Parallel()
	if got := Ago(time.Now().Add(-3 * time.Minute)); got != "3 minutes ago" {
		t.Fatalf("Ago = %q", got)
	}
	if got := Ago(time.Now()); got != "now" {
		t.Fatalf("Ago(now) = %q", got)
	}
}
