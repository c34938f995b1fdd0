package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"

	"edgeadmin/internal/eventbus"
	"edgeadmin/internal/notice"
	"edgeadmin/internal/refresh"
)

func gather(t *testing.T, m *Metrics) map[string]*dto.MetricFamily {
	t.Helper()
	mfs, err := m.Registry().Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	out := map[string]*dto.MetricFamily{}
	for _, mf := range mfs {
		out[mf.GetName()] = mf
	}
	return out
}

func TestObserveEvents(t *testing.T) {
	t.Parallel()
	m := New(Gauges{
		LiveNotices:    func() int { return 3 },
		RefreshTasks:   func() int { return 2 },
		RefreshEnabled: func() bool { return true },
	})

	m.Observe(eventbus.Event{Type: eventbus.NoticePublished, Data: notice.Notice{Severity: notice.SeverityError}})
	m.Observe(eventbus.Event{Type: eventbus.NoticePublished, Data: notice.Notice{Severity: notice.SeverityError}})
	m.Observe(eventbus.Event{Type: eventbus.NoticeEvicted})
	m.Observe(eventbus.Event{Type: eventbus.RefreshReplaced, Data: refresh.TickResult{Key: "panel", Took: 20 * time.Millisecond}})
	m.Observe(eventbus.Event{Type: eventbus.RefreshFailed, Data: refresh.TickResult{Key: "panel", Took: time.Second}})
	m.Observe(eventbus.Event{Type: eventbus.RefreshStopped, Data: map[string]string{"key": "panel", "reason": "disabled"}})

	mfs := gather(t, m)
	if got := mfs["edgeadmin_notices_published_total"].GetMetric()[0].GetCounter().GetValue(); got != 2 {
		t.Fatalf("published = %v, want 2", got)
	}
	if got := mfs["edgeadmin_notices_evicted_total"].GetMetric()[0].GetCounter().GetValue(); got != 1 {
		t.Fatalf("evicted = %v, want 1", got)
	}
	if got := len(mfs["edgeadmin_refresh_ticks_total"].GetMetric()); got != 2 {
		t.Fatalf("tick series = %d, want 2 (ok, error)", got)
	}
	if got := mfs["edgeadmin_refresh_fetch_duration_seconds"].GetMetric()[0].GetHistogram().GetSampleCount(); got != 2 {
		t.Fatalf("histogram samples = %d, want 2", got)
	}
	if got := mfs["edgeadmin_notices_live"].GetMetric()[0].GetGauge().GetValue(); got != 3 {
		t.Fatalf("live gauge = %v, want 3", got)
	}
	if got := mfs["edgeadmin_refresh_enabled"].GetMetric()[0].GetGauge().GetValue(); got != 1 {
		t.Fatalf("enabled gauge = %v, want 1", got)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	t.Parallel()
	m := New(Gauges{RefreshTasks: func() int { return 1 }})
	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "edgeadmin_refresh_tasks 1") {
		t.Fatalf("exposition missing gauge:\n%s", body)
	}
}
