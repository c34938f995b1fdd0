package refresh

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"edgeadmin/internal/notice"
)

type fakeFetcher struct {
	mu      sync.Mutex
	calls   []string
	err     error
	entered chan string
	release chan struct{}
}

func (f *fakeFetcher) Fetch(ctx context.Context, source string) (Content, error) {
	f.mu.Lock()
	f.calls = append(f.calls, source)
	err := f.err
	entered, release := f.entered, f.release
	f.mu.Unlock()

	if entered != nil {
		select {
		case entered <- source:
		default:
		}
	}
	if release != nil {
		<-release
	}
	if err != nil {
		return Content{}, err
	}
	return Content{Body: []byte("<p>" + source + "</p>"), ContentType: "text/html", FetchedAt: time.Now()}, nil
}

func (f *fakeFetcher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeFetcher) sources() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

type fakeRegions struct {
	mu       sync.Mutex
	exists   map[string]bool
	replaced map[string]string
}

func newFakeRegions(keys ...string) *fakeRegions {
	r := &fakeRegions{exists: map[string]bool{}, replaced: map[string]string{}}
	for _, k := range keys {
		r.exists[k] = true
	}
	return r
}

func (r *fakeRegions) Exists(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.exists[key]
}

func (r *fakeRegions) Replace(key string, c Content) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.replaced[key] = string(c.Body)
	return nil
}

func (r *fakeRegions) body(key string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.replaced[key]
}

type fakeNotifier struct {
	mu   sync.Mutex
	msgs []string
	sevs []notice.Severity
}

func (n *fakeNotifier) Notify(message string, severity notice.Severity) notice.Handle {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs = append(n.msgs, message)
	n.sevs = append(n.sevs, severity)
	return notice.Handle("h")
}

func waitFor(t *testing.T, d time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v", d)
}

func closeScheduler(t *testing.T, s *Scheduler) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestRestartReplacesTask(t *testing.T) {
	t.Parallel()
	f := &fakeFetcher{}
	regions := newFakeRegions("panel")
	s := New(f, regions, Config{})
	defer closeScheduler(t, s)

	if err := s.Start("panel", "/api/panel", time.Second); err != nil {
		t.Fatal(err)
	}
	if err := s.Start("panel", "/api/panel2", 20*time.Millisecond); err != nil {
		t.Fatal(err)
	}
	if s.Len() != 1 {
		t.Fatalf("Len = %d, want 1", s.Len())
	}
	tasks := s.Tasks()
	if tasks[0].Source != "/api/panel2" || tasks[0].Schedule != "20ms" {
		t.Fatalf("unexpected task %+v", tasks[0])
	}

	waitFor(t, time.Second, func() bool { return f.count() >= 3 })
	for _, src := range f.sources() {
		if src != "/api/panel2" {
			t.Fatalf("replaced task still polled %s", src)
		}
	}
	if got := regions.body("panel"); got != "<p>/api/panel2</p>" {
		t.Fatalf("region body = %q", got)
	}
}

func TestStartUsesDefaultInterval(t *testing.T) {
	t.Parallel()
	s := New(&fakeFetcher{}, newFakeRegions("a"), Config{DefaultInterval: 42 * time.Second})
	defer closeScheduler(t, s)
	if err := s.Start("a", "/a", 0); err != nil {
		t.Fatal(err)
	}
	if got := s.Tasks()[0].Schedule; got != "42s" {
		t.Fatalf("Schedule = %q, want 42s", got)
	}
}

func TestDisableTearsDownAndHaltsFetches(t *testing.T) {
	t.Parallel()
	f := &fakeFetcher{}
	s := New(f, newFakeRegions("a", "b"), Config{})
	defer closeScheduler(t, s)

	_ = s.Start("a", "/a", 10*time.Millisecond)
	_ = s.Start("b", "/b", 10*time.Millisecond)
	waitFor(t, time.Second, func() bool { return f.count() >= 2 })

	s.SetGlobalEnabled(false)
	if s.Len() != 0 {
		t.Fatalf("Len = %d after disable, want 0", s.Len())
	}
	// let any fetch that passed the gate before disable land
	time.Sleep(30 * time.Millisecond)
	before := f.count()
	time.Sleep(80 * time.Millisecond)
	if f.count() != before {
		t.Fatalf("fetches continued after disable: %d -> %d", before, f.count())
	}

	// enabling does not recreate tasks
	s.SetGlobalEnabled(true)
	time.Sleep(40 * time.Millisecond)
	if s.Len() != 0 || f.count() != before {
		t.Fatal("enable must not restart tasks")
	}
}

func TestPauseGatesWithoutTeardown(t *testing.T) {
	t.Parallel()
	f := &fakeFetcher{}
	s := New(f, newFakeRegions("a"), Config{})
	defer closeScheduler(t, s)

	s.Pause()
	_ = s.Start("a", "/a", 10*time.Millisecond)
	waitFor(t, time.Second, func() bool {
		tasks := s.Tasks()
		return len(tasks) == 1 && tasks[0].Skipped >= 2
	})
	if f.count() != 0 {
		t.Fatalf("paused scheduler fetched %d times", f.count())
	}

	s.Resume()
	waitFor(t, time.Second, func() bool { return f.count() >= 1 })
	if s.Len() != 1 {
		t.Fatal("pause/resume must keep tasks")
	}
}

func TestMissingRegionStopsTask(t *testing.T) {
	t.Parallel()
	f := &fakeFetcher{}
	s := New(f, newFakeRegions(), Config{})
	defer closeScheduler(t, s)

	_ = s.Start("gone", "/x", 10*time.Millisecond)
	waitFor(t, time.Second, func() bool { return s.Len() == 0 })
	if f.count() != 0 {
		t.Fatal("no fetch expected for a missing region")
	}
}

func TestStaleFetchIsDiscarded(t *testing.T) {
	t.Parallel()
	f := &fakeFetcher{entered: make(chan string, 1), release: make(chan struct{})}
	regions := newFakeRegions("a")
	s := New(f, regions, Config{})
	defer closeScheduler(t, s)

	_ = s.Start("a", "/slow", 10*time.Millisecond)
	select {
	case <-f.entered:
	case <-time.After(time.Second):
		t.Fatal("fetch never started")
	}
	s.Stop("a")
	s.Stop("a")
	close(f.release)

	time.Sleep(30 * time.Millisecond)
	if got := regions.body("a"); got != "" {
		t.Fatalf("stale fetch wrote %q", got)
	}
}

func TestFailureIsLoggedAndNotified(t *testing.T) {
	t.Parallel()
	f := &fakeFetcher{err: errors.New("HTTP 500: Internal Server Error")}
	n := &fakeNotifier{}
	s := New(f, newFakeRegions("a"), Config{NotifyFailures: true}, WithNotifier(n))
	defer closeScheduler(t, s)

	_ = s.Start("a", "/a", 10*time.Millisecond)
	waitFor(t, time.Second, func() bool {
		n.mu.Lock()
		defer n.mu.Unlock()
		return len(n.msgs) >= 2
	})
	if s.Len() != 1 {
		t.Fatal("a failed fetch must not cancel the task")
	}
	info := s.Tasks()[0]
	if info.Failures < 2 || !strings.Contains(info.LastError, "HTTP 500") {
		t.Fatalf("unexpected info %+v", info)
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.sevs[0] != notice.SeverityError {
		t.Fatalf("severity = %s, want error", n.sevs[0])
	}
}

func TestToggleNotifies(t *testing.T) {
	t.Parallel()
	n := &fakeNotifier{}
	s := New(&fakeFetcher{}, newFakeRegions("a"), Config{}, WithNotifier(n))
	defer closeScheduler(t, s)
	_ = s.Start("a", "/a", time.Hour)

	if s.Toggle() {
		t.Fatal("first toggle should disable")
	}
	if s.Len() != 0 {
		t.Fatal("disable via toggle must clear tasks")
	}
	if !s.Toggle() || !s.Enabled() {
		t.Fatal("second toggle should enable")
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.msgs) != 2 || n.msgs[0] != "Auto-refresh disabled" || n.msgs[1] != "Auto-refresh enabled" {
		t.Fatalf("unexpected notices %v", n.msgs)
	}
	if n.sevs[0] != notice.SeverityInfo || n.sevs[1] != notice.SeveritySuccess {
		t.Fatalf("unexpected severities %v", n.sevs)
	}
}

func TestStartValidation(t *testing.T) {
	t.Parallel()
	s := New(&fakeFetcher{}, newFakeRegions(), Config{})
	defer closeScheduler(t, s)
	if err := s.Start("", "/a", time.Second); err == nil {
		t.Fatal("expected key error")
	}
	if err := s.StartSchedule("a", "/a", "whenever"); err == nil {
		t.Fatal("expected schedule error")
	}
	closeScheduler(t, s)
	if err := s.Start("a", "/a", time.Second); !errors.Is(err, ErrClosed) {
		t.Fatalf("Start after Close err = %v", err)
	}
}

func TestHTTPFetcher(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/panel":
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte("<b>ok</b>"))
		default:
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	}))
	defer srv.Close()

	f, err := NewHTTPFetcher(srv.Client(), srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	c, err := f.Fetch(context.Background(), "/api/panel")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if string(c.Body) != "<b>ok</b>" || c.ContentType != "text/html" {
		t.Fatalf("unexpected content %+v", c)
	}

	_, err = f.Fetch(context.Background(), srv.URL+"/down")
	if err == nil || err.Error() != "HTTP 503: Service Unavailable" {
		t.Fatalf("err = %v", err)
	}

	noBase, _ := NewHTTPFetcher(nil, "")
	if _, err := noBase.Fetch(context.Background(), "/api/panel"); err == nil {
		t.Fatal("relative source without base url should fail")
	}
}

func TestHTTPFetcherRejectsOversizedBody(t *testing.T) {
	t.Parallel()
	big := strings.Repeat("x", maxBodyBytes+1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/big":
			_, _ = w.Write([]byte(big))
		default:
			_, _ = w.Write([]byte(big[:maxBodyBytes]))
		}
	}))
	defer srv.Close()

	f, err := NewHTTPFetcher(srv.Client(), srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.Fetch(context.Background(), "/big"); !errors.Is(err, ErrBodyTooLarge) {
		t.Fatalf("oversized err = %v, want ErrBodyTooLarge", err)
	}
	c, err := f.Fetch(context.Background(), "/exact")
	if err != nil {
		t.Fatalf("body at the limit: %v", err)
	}
	if len(c.Body) != maxBodyBytes {
		t.Fatalf("len = %d, want %d", len(c.Body), maxBodyBytes)
	}
}

func TestOversizedBodyLeavesRegionUntouched(t *testing.T) {
	t.Parallel()
	big := strings.Repeat("x", maxBodyBytes+1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(big))
	}))
	defer srv.Close()

	f, err := NewHTTPFetcher(srv.Client(), srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	regions := newFakeRegions("a")
	n := &fakeNotifier{}
	s := New(f, regions, Config{NotifyFailures: true}, WithNotifier(n))
	defer closeScheduler(t, s)

	_ = s.Start("a", "/a", 20*time.Millisecond)
	waitFor(t, 5*time.Second, func() bool {
		n.mu.Lock()
		defer n.mu.Unlock()
		return len(n.msgs) >= 1
	})
	if got := regions.body("a"); got != "" {
		t.Fatalf("region replaced with %d bytes", len(got))
	}
	info := s.Tasks()[0]
	if info.Failures == 0 || !strings.Contains(info.LastError, "body exceeds") {
		t.Fatalf("unexpected info %+v", info)
	}
}
