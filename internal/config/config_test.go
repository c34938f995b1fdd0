package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const sampleYAML = `
logging:
  level: debug
  console: true
notices:
  ceiling: 3
  grace: 150ms
refresh:
  enabled: false
  default_interval: 2s
  tasks:
    - key: metrics-panel
      source: /api/metrics
      schedule: 5s
regions: [metrics-panel, alerts-panel]
welcome:
  disabled: false
storage:
  driver: memory
`

func TestDecodeYAML(t *testing.T) {
	t.Parallel()
	cfg, err := Decode("edgeadmin.yaml", []byte(sampleYAML))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if err := Validate(cfg); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cfg.Logging.Level != "debug" || !cfg.Logging.Console {
		t.Fatalf("unexpected logging: %+v", cfg.Logging)
	}
	if got := cfg.Notices.CeilingOrDefault(); got != 3 {
		t.Fatalf("ceiling = %d, want 3", got)
	}
	if got := cfg.Notices.GraceOrDefault(); got != 150*time.Millisecond {
		t.Fatalf("grace = %v, want 150ms", got)
	}
	if cfg.RefreshEnabled() {
		t.Fatal("expected refresh disabled")
	}
	if len(cfg.Refresh.Tasks) != 1 || cfg.Refresh.Tasks[0].Key != "metrics-panel" {
		t.Fatalf("unexpected tasks: %+v", cfg.Refresh.Tasks)
	}
	if len(cfg.Regions) != 2 {
		t.Fatalf("unexpected regions: %v", cfg.Regions)
	}
}

func TestDecodeRejectsUnknownFieldsAndTrailingData(t *testing.T) {
	t.Parallel()
	if _, err := Decode("c.json", []byte(`{"notices":{"ceilin":3}}`)); err == nil {
		t.Fatal("expected unknown field error")
	}
	if _, err := Decode("c.json", []byte(`{} {}`)); err == nil {
		t.Fatal("expected trailing data error")
	}
}

func TestDefaults(t *testing.T) {
	t.Parallel()
	var cfg Config
	if !cfg.RefreshEnabled() {
		t.Fatal("refresh should default to enabled")
	}
	if cfg.Notices.CeilingOrDefault() != DefaultCeiling {
		t.Fatalf("ceiling default mismatch")
	}
	if cfg.Notices.TimeoutOrDefault() != 5*time.Second {
		t.Fatalf("notice timeout default = %v", cfg.Notices.TimeoutOrDefault())
	}
	if cfg.Refresh.IntervalOrDefault() != 10*time.Second {
		t.Fatalf("refresh interval default = %v", cfg.Refresh.IntervalOrDefault())
	}
	if cfg.Welcome.DelayOrDefault() != time.Second || cfg.Welcome.TimeoutOrDefault() != 8*time.Second {
		t.Fatalf("welcome defaults mismatch")
	}
	if cfg.Welcome.MessageOrDefault() != DefaultWelcomeMessage {
		t.Fatalf("welcome message default mismatch")
	}
}

func TestValidateErrors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{name: "bad duration", cfg: Config{Notices: NoticesConfig{Grace: "soon"}}, want: "notices.grace"},
		{name: "negative duration", cfg: Config{Refresh: RefreshConfig{FetchTimeout: "-1s"}}, want: "refresh.fetch_timeout"},
		{name: "missing key", cfg: Config{Refresh: RefreshConfig{Tasks: []RefreshTaskConfig{{Source: "/x"}}}}, want: "key is required"},
		{name: "duplicate key", cfg: Config{Refresh: RefreshConfig{Tasks: []RefreshTaskConfig{
			{Key: "a", Source: "/x"}, {Key: "a", Source: "/y"},
		}}}, want: "duplicate key"},
		{name: "unknown driver", cfg: Config{Storage: &StorageConfig{Driver: "etcd"}}, want: "unknown driver"},
		{name: "mirror without token", cfg: Config{Mirror: &MirrorConfig{Enabled: true, ChatID: 1}}, want: "mirror.token"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(&tt.cfg)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("Validate error = %v, want containing %q", err, tt.want)
			}
		})
	}
}

func TestSummarizeChange(t *testing.T) {
	t.Parallel()
	old := &Config{Notices: NoticesConfig{Ceiling: 5}, Mirror: &MirrorConfig{Token: "secret"}}
	next := &Config{Notices: NoticesConfig{Ceiling: 3}, Mirror: &MirrorConfig{Token: "other"}}
	got := SummarizeChange(old, next)
	if !strings.Contains(got, "notices") || !strings.Contains(got, "mirror") {
		t.Fatalf("unexpected summary %q", got)
	}
	if strings.Contains(got, "secret") || strings.Contains(got, "other") {
		t.Fatalf("summary leaked a secret: %q", got)
	}
	if SummarizeChange(old, old) != "no effective change" {
		t.Fatalf("expected no change")
	}
}

func TestManagerWatchPublishesReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "edgeadmin.json")
	if err := os.WriteFile(path, []byte(`{"notices":{"ceiling":2}}`), 0o644); err != nil {
		t.Fatal(err)
	}

	m := NewManager(path)
	m.SetDebounce(20 * time.Millisecond)
	if _, err := m.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	sub := m.Subscribe(1)
	defer m.Unsubscribe(sub)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		_ = m.Watch(ctx)
		close(done)
	}()

	// give the watcher a moment to register
	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(path, []byte(`{"notices":{"ceiling":4}}`), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case cfg := <-sub:
		if cfg.Notices.Ceiling != 4 {
			t.Fatalf("ceiling = %d, want 4", cfg.Notices.Ceiling)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for reload")
	}
	if m.Get().Notices.Ceiling != 4 {
		t.Fatalf("committed config not updated")
	}

	cancel()
	<-done
}
