package config

import (
	"fmt"
	"slices"
	"strings"
)

// SummarizeChange lists the top-level sections that differ between two
// configs, for the reload log line. Secrets are never included.
func SummarizeChange(old, next *Config) string {
	if old == nil || next == nil {
		return "initial"
	}
	var parts []string
	if old.Logging.Level != next.Logging.Level {
		parts = append(parts, fmt.Sprintf("logging.level %q->%q", old.Logging.Level, next.Logging.Level))
	}
	if old.Logging.Console != next.Logging.Console || old.Logging.File != next.Logging.File || old.Logging.Notice != next.Logging.Notice {
		parts = append(parts, "logging")
	}
	if old.HTTP != next.HTTP {
		parts = append(parts, "http (restart required)")
	}
	if old.Notices != next.Notices {
		parts = append(parts, "notices")
	}
	if old.RefreshEnabled() != next.RefreshEnabled() {
		parts = append(parts, fmt.Sprintf("refresh.enabled %v->%v", old.RefreshEnabled(), next.RefreshEnabled()))
	}
	if old.Refresh.DefaultInterval != next.Refresh.DefaultInterval ||
		old.Refresh.FetchTimeout != next.Refresh.FetchTimeout ||
		old.Refresh.BaseURL != next.Refresh.BaseURL ||
		old.Refresh.NotifyFailures != next.Refresh.NotifyFailures {
		parts = append(parts, "refresh")
	}
	if !slices.Equal(old.Refresh.Tasks, next.Refresh.Tasks) {
		parts = append(parts, fmt.Sprintf("refresh.tasks %d->%d", len(old.Refresh.Tasks), len(next.Refresh.Tasks)))
	}
	if !slices.Equal(old.Regions, next.Regions) {
		parts = append(parts, "regions")
	}
	if old.Welcome != next.Welcome {
		parts = append(parts, "welcome")
	}
	if !storageEqual(old.Storage, next.Storage) {
		parts = append(parts, "storage (restart required)")
	}
	if !mirrorEqual(old.Mirror, next.Mirror) {
		parts = append(parts, "mirror (restart required)")
	}
	if len(parts) == 0 {
		return "no effective change"
	}
	return strings.Join(parts, ", ")
}

func storageEqual(a, b *StorageConfig) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func mirrorEqual(a, b *MirrorConfig) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
