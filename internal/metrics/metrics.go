// Package metrics exports dashboard activity to Prometheus. It observes the
// event bus, so the notice manager and the refresh scheduler stay unaware of it.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"edgeadmin/internal/eventbus"
	"edgeadmin/internal/notice"
	"edgeadmin/internal/refresh"
)

const namespace = "edgeadmin"

// Gauges reads live values at scrape time.
type Gauges struct {
	LiveNotices    func() int
	RefreshTasks   func() int
	RefreshEnabled func() bool
	BusDropped     func() uint64
}

type Metrics struct {
	NoticesTotal        *prometheus.CounterVec
	NoticeEvictionTotal prometheus.Counter
	NoticesClosedTotal  prometheus.Counter

	RefreshTicksTotal   *prometheus.CounterVec
	RefreshFetchSeconds *prometheus.HistogramVec
	RefreshStopsTotal   *prometheus.CounterVec
	RegionUpdatesTotal  prometheus.Counter

	registry *prometheus.Registry
}

func New(g Gauges) *Metrics {
	m := &Metrics{
		NoticesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notices_published_total",
			Help:      "Notices published, by severity",
		}, []string{"severity"}),
		NoticeEvictionTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notices_evicted_total",
			Help:      "Notices evicted because the visible ceiling was reached",
		}),
		NoticesClosedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notices_closed_total",
			Help:      "Notices dismissed manually or by timeout",
		}),
		RefreshTicksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_ticks_total",
			Help:      "Refresh ticks by region key and result (ok, error, skipped)",
		}, []string{"key", "result"}),
		RefreshFetchSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "refresh_fetch_duration_seconds",
			Help:      "Duration of refresh fetches in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		}, []string{"key"}),
		RefreshStopsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_task_stops_total",
			Help:      "Refresh task stops by reason",
		}, []string{"reason"}),
		RegionUpdatesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "region_updates_total",
			Help:      "Region content replacements",
		}),
		registry: prometheus.NewRegistry(),
	}

	m.registry.MustRegister(
		m.NoticesTotal,
		m.NoticeEvictionTotal,
		m.NoticesClosedTotal,
		m.RefreshTicksTotal,
		m.RefreshFetchSeconds,
		m.RefreshStopsTotal,
		m.RegionUpdatesTotal,
	)
	if g.LiveNotices != nil {
		m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "notices_live",
			Help:      "Notices currently visible (active or closing)",
		}, func() float64 { return float64(g.LiveNotices()) }))
	}
	if g.RefreshTasks != nil {
		m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "refresh_tasks",
			Help:      "Running refresh tasks",
		}, func() float64 { return float64(g.RefreshTasks()) }))
	}
	if g.RefreshEnabled != nil {
		m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "refresh_enabled",
			Help:      "1 when auto-refresh is enabled",
		}, func() float64 {
			if g.RefreshEnabled() {
				return 1
			}
			return 0
		}))
	}
	if g.BusDropped != nil {
		m.registry.MustRegister(prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "eventbus_dropped_total",
			Help:      "Events dropped because a subscriber was full",
		}, func() float64 { return float64(g.BusDropped()) }))
	}
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the private registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Observe applies one bus event.
func (m *Metrics) Observe(e eventbus.Event) {
	switch e.Type {
	case eventbus.NoticePublished:
		if n, ok := e.Data.(notice.Notice); ok {
			m.NoticesTotal.WithLabelValues(string(n.Severity)).Inc()
		}
	case eventbus.NoticeEvicted:
		m.NoticeEvictionTotal.Inc()
	case eventbus.NoticeClosing:
		m.NoticesClosedTotal.Inc()
	case eventbus.RefreshReplaced:
		if r, ok := e.Data.(refresh.TickResult); ok {
			m.RefreshTicksTotal.WithLabelValues(r.Key, "ok").Inc()
			m.RefreshFetchSeconds.WithLabelValues(r.Key).Observe(r.Took.Seconds())
		}
	case eventbus.RefreshFailed:
		if r, ok := e.Data.(refresh.TickResult); ok {
			m.RefreshTicksTotal.WithLabelValues(r.Key, "error").Inc()
			m.RefreshFetchSeconds.WithLabelValues(r.Key).Observe(r.Took.Seconds())
		}
	case eventbus.RefreshSkipped:
		if d, ok := e.Data.(map[string]string); ok {
			m.RefreshTicksTotal.WithLabelValues(d["key"], "skipped").Inc()
		}
	case eventbus.RefreshStopped:
		if d, ok := e.Data.(map[string]string); ok {
			m.RefreshStopsTotal.WithLabelValues(d["reason"]).Inc()
		}
	case eventbus.RegionUpdated:
		m.RegionUpdatesTotal.Inc()
	}
}

// Run consumes bus events until ctx is done or the subscription closes.
func (m *Metrics) Run(ctx context.Context, bus eventbus.Bus) error {
	ch, unsub := bus.Subscribe(256)
	defer unsub()
	for {
		select {
		case <-ctx.Done():
			return nil
		case e, ok := <-ch:
			if !ok {
				return nil
			}
			m.Observe(e)
		}
	}
}
