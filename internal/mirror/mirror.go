// Package mirror forwards dashboard notices to a Telegram chat so operators
// who are not looking at the dashboard still see warnings and errors.
package mirror

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"edgeadmin/internal/eventbus"
	"edgeadmin/internal/notice"
	logx "edgeadmin/pkg/logx"
)

var ErrQueueFull = errors.New("mirror: queue full")

// Sender delivers one message.
type Sender interface {
	Send(ctx context.Context, text string) error
}

type Config struct {
	MinSeverity notice.Severity
	RatePerSec  int
	QueueSize   int
	RetryMax    int
	RetryBase   time.Duration
	// DedupWindow suppresses identical messages published within the window.
	DedupWindow time.Duration
}

func (c Config) normalized() Config {
	if v, ok := notice.ParseSeverity(string(c.MinSeverity)); ok {
		c.MinSeverity = v
	} else {
		c.MinSeverity = notice.SeverityWarning
	}
	if c.RatePerSec <= 0 {
		c.RatePerSec = 1
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 64
	}
	if c.RetryMax < 0 {
		c.RetryMax = 0
	}
	if c.RetryBase <= 0 {
		c.RetryBase = 500 * time.Millisecond
	}
	if c.DedupWindow < 0 {
		c.DedupWindow = 0
	}
	return c
}

// Counters are best-effort delivery statistics.
type Counters struct {
	Sent    uint64 `json:"sent"`
	Failed  uint64 `json:"failed"`
	Deduped uint64 `json:"deduped"`
	Dropped uint64 `json:"dropped"`
}

type Service struct {
	cfg     Config
	sender  Sender
	log     logx.Logger
	limiter *rate.Limiter
	queue   chan string

	dmu   sync.Mutex
	dedup map[uint64]time.Time

	sent, failed, deduped, dropped atomic.Uint64
}

func New(cfg Config, sender Sender, log logx.Logger) *Service {
	cfg = cfg.normalized()
	return &Service{
		cfg:     cfg,
		sender:  sender,
		log:     log.With(logx.String("comp", "mirror")),
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec),
		queue:   make(chan string, cfg.QueueSize),
		dedup:   map[uint64]time.Time{},
	}
}

func (s *Service) Counters() Counters {
	return Counters{
		Sent:    s.sent.Load(),
		Failed:  s.failed.Load(),
		Deduped: s.deduped.Load(),
		Dropped: s.dropped.Load(),
	}
}

// Run forwards qualifying notices from bus until ctx is done.
func (s *Service) Run(ctx context.Context, bus eventbus.Bus) error {
	events, unsub := bus.Subscribe(128)
	defer unsub()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case e, ok := <-events:
				if !ok {
					return nil
				}
				if e.Type != eventbus.NoticePublished {
					continue
				}
				if n, ok := e.Data.(notice.Notice); ok {
					_ = s.Forward(n)
				}
			}
		}
	})
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case text := <-s.queue:
				s.sendWithRetry(gctx, text)
			}
		}
	})
	return g.Wait()
}

// Forward queues n if it meets the severity threshold and is not a recent duplicate.
func (s *Service) Forward(n notice.Notice) error {
	if n.Severity.Rank() < s.cfg.MinSeverity.Rank() {
		return nil
	}
	text := prefix(n.Severity) + n.Message
	if !s.allow(text, time.Now()) {
		s.deduped.Add(1)
		return nil
	}
	select {
	case s.queue <- text:
		return nil
	default:
		s.dropped.Add(1)
		return ErrQueueFull
	}
}

func (s *Service) allow(text string, now time.Time) bool {
	if s.cfg.DedupWindow <= 0 {
		return true
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	key := h.Sum64()

	s.dmu.Lock()
	defer s.dmu.Unlock()
	if until, ok := s.dedup[key]; ok && now.Before(until) {
		return false
	}
	for k, until := range s.dedup {
		if !now.Before(until) {
			delete(s.dedup, k)
		}
	}
	s.dedup[key] = now.Add(s.cfg.DedupWindow)
	return true
}

func (s *Service) sendWithRetry(ctx context.Context, text string) {
	attempts := 1 + s.cfg.RetryMax
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := s.limiter.Wait(ctx); err != nil {
			return
		}
		callCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		err := s.sender.Send(callCtx, text)
		cancel()
		if err == nil {
			s.sent.Add(1)
			return
		}
		lastErr = err
		s.log.Debug("mirror send failed", logx.Err(err), logx.Int("attempt", attempt), logx.Int("max", attempts))
		if attempt == attempts {
			break
		}
		delay := s.cfg.RetryBase << (attempt - 1)
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
	s.failed.Add(1)
	// Warn, not error: error lines may be forwarded back here as notices.
	s.log.Warn("mirror gave up", logx.Err(lastErr), logx.Int("attempts", attempts))
}

func prefix(sev notice.Severity) string {
	switch sev {
	case notice.SeverityError:
		return "🚨 "
	case notice.SeverityWarning:
		return "⚠️ "
	case notice.SeveritySuccess:
		return "✅ "
	default:
		return "ℹ️ "
	}
}

// Describe is a short, secret-free summary for startup logs.
func (c Config) Describe() string {
	c = c.normalized()
	return fmt.Sprintf("min=%s rate=%d/s queue=%d", c.MinSeverity, c.RatePerSec, c.QueueSize)
}
