package refresh

import (
	"testing"
	"time"
)

func TestParseScheduleVariants(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		raw      string
		kind     SpecKind
		source   string
		duration time.Duration
	}{
		{name: "cron", raw: "*/5 * * * *", kind: SpecCron, source: "cron"},
		{name: "descriptor", raw: "@every 1m", kind: SpecCron, source: "cron"},
		{name: "prefixed cron", raw: "cron:0 0 * * *", kind: SpecCron, source: "cron"},
		{name: "duration", raw: "10s", kind: SpecInterval, source: "duration", duration: 10 * time.Second},
		{name: "sub-second", raw: "500ms", kind: SpecInterval, source: "duration", duration: 500 * time.Millisecond},
		{name: "prefixed interval", raw: "interval:45s", kind: SpecInterval, source: "duration", duration: 45 * time.Second},
		{name: "prefixed every", raw: "every:00:05", kind: SpecInterval, source: "hhmm", duration: 5 * time.Minute},
		{name: "hhmm", raw: "01:30", kind: SpecInterval, source: "hhmm", duration: 90 * time.Minute},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSchedule(tt.raw)
			if err != nil {
				t.Fatalf("ParseSchedule(%q) error: %v", tt.raw, err)
			}
			if got.Kind != tt.kind {
				t.Fatalf("Kind = %v, want %v", got.Kind, tt.kind)
			}
			if got.Source != tt.source {
				t.Fatalf("Source = %s, want %s", got.Source, tt.source)
			}
			if tt.kind == SpecInterval && got.Every != tt.duration {
				t.Fatalf("Every = %v, want %v", got.Every, tt.duration)
			}
			now := time.Now()
			if next := got.Schedule().Next(now); !next.After(now) {
				t.Fatalf("Next(%v) = %v, want later", now, next)
			}
		})
	}
}

func TestParseScheduleInvalid(t *testing.T) {
	t.Parallel()
	for _, raw := range []string{"", "not-a-schedule", "0s", "-5s", "00:00", "01:75", "cron:", "cron:61 * * * *"} {
		if _, err := ParseSchedule(raw); err == nil {
			t.Fatalf("expected error for %q", raw)
		}
	}
}

func TestEveryScheduleKeepsSubSecond(t *testing.T) {
	t.Parallel()
	now := time.Unix(100, 0)
	if got := every(250 * time.Millisecond).Next(now); got.Sub(now) != 250*time.Millisecond {
		t.Fatalf("Next delta = %v", got.Sub(now))
	}
}
