package refresh

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// SpecKind describes the normalized kind of a schedule string.
type SpecKind int

const (
	SpecInterval SpecKind = iota
	SpecCron
)

// ParsedSpec is a parsed refresh schedule.
//
// Supported forms:
//   - Interval duration: "500ms", "10s", "2h30m"
//   - Interval HH:MM: "00:05" (5 minutes), "01:30"
//   - Cron: "*/5 * * * *", "@hourly", "@every 1m"
//
// Optional prefixes: "cron:" forces cron parsing, "interval:" or "every:"
// force interval parsing.
type ParsedSpec struct {
	Kind   SpecKind
	Cron   string
	Every  time.Duration
	Source string // "cron" | "duration" | "hhmm"
	sched  cron.Schedule
}

// Schedule returns the tick schedule.
func (p ParsedSpec) Schedule() cron.Schedule {
	if p.sched != nil {
		return p.sched
	}
	return every(p.Every)
}

func (p ParsedSpec) String() string {
	if p.Kind == SpecCron {
		return "cron:" + p.Cron
	}
	return p.Every.String()
}

var (
	reHHMM     = regexp.MustCompile(`^\s*(\d{1,3}):(\d{2})\s*$`)
	cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
)

// ParseSchedule parses a schedule string into a cron expression or a fixed interval.
func ParseSchedule(raw string) (ParsedSpec, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ParsedSpec{}, fmt.Errorf("schedule required")
	}

	low := strings.ToLower(s)
	switch {
	case strings.HasPrefix(low, "cron:"):
		return parseCron(strings.TrimSpace(s[len("cron:"):]))
	case strings.HasPrefix(low, "interval:"):
		return parseInterval(s[len("interval:"):])
	case strings.HasPrefix(low, "every:"):
		return parseInterval(s[len("every:"):])
	}

	if strings.ContainsAny(s, " \t\n\r") || strings.HasPrefix(s, "@") {
		return parseCron(s)
	}
	if reHHMM.MatchString(s) || isDuration(s) {
		return parseInterval(s)
	}
	return ParsedSpec{}, fmt.Errorf(
		"invalid schedule %q (use a duration like '10s', HH:MM like '00:05', or cron like '*/5 * * * *')",
		raw,
	)
}

func isDuration(s string) bool {
	_, err := time.ParseDuration(s)
	return err == nil
}

func parseCron(expr string) (ParsedSpec, error) {
	if expr == "" {
		return ParsedSpec{}, fmt.Errorf("cron schedule required after 'cron:'")
	}
	sched, err := cronParser.Parse(expr)
	if err != nil {
		return ParsedSpec{}, fmt.Errorf("invalid cron %q: %w", expr, err)
	}
	return ParsedSpec{Kind: SpecCron, Cron: expr, Source: "cron", sched: sched}, nil
}

func parseInterval(v string) (ParsedSpec, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return ParsedSpec{}, fmt.Errorf("interval required")
	}
	if m := reHHMM.FindStringSubmatch(v); m != nil {
		hh, _ := strconv.Atoi(m[1])
		mm, _ := strconv.Atoi(m[2])
		if mm > 59 {
			return ParsedSpec{}, fmt.Errorf("invalid minutes in %q", v)
		}
		d := time.Duration(hh)*time.Hour + time.Duration(mm)*time.Minute
		if d <= 0 {
			return ParsedSpec{}, fmt.Errorf("interval must be > 0")
		}
		return ParsedSpec{Kind: SpecInterval, Every: d, Source: "hhmm"}, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return ParsedSpec{}, fmt.Errorf("invalid interval %q (use HH:MM or a Go duration like '10s')", v)
	}
	if d <= 0 {
		return ParsedSpec{}, fmt.Errorf("interval must be > 0")
	}
	return ParsedSpec{Kind: SpecInterval, Every: d, Source: "duration"}, nil
}

// everySchedule is a fixed interval. cron.ConstantDelaySchedule rounds to
// whole seconds, which is too coarse for sub-second panels.
type everySchedule time.Duration

func every(d time.Duration) cron.Schedule { return everySchedule(d) }

func (e everySchedule) Next(t time.Time) time.Time { return t.Add(time.Duration(e)) }
