// Package format renders sizes and durations for dashboard labels.
package format

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
)

// Bytes formats n with IEC units ("0 B", "1.5 KiB", "3.2 MiB").
func Bytes(n uint64) string { return humanize.IBytes(n) }

// Duration keeps the two most significant units: "1h 2m", "3m 4s", "5s".
func Duration(d time.Duration) string {
	if d < 0 {
		d = -d
	}
	secs := int64(d / time.Second)
	h := secs / 3600
	m := (secs % 3600) / 60
	s := secs % 60
	switch {
	case h > 0:
		return fmt.Sprintf("%dh %dm", h, m)
	case m > 0:
		return fmt.Sprintf("%dm %ds", m, s)
	default:
		return fmt.Sprintf("%ds", s)
	}
}

// Ago is a relative time ("3 minutes ago").
func Ago(t time.Time) string { return humanize.Time(t) }
