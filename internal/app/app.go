// Package app wires the dashboard components together and owns their lifecycle.
package app

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"edgeadmin/internal/board"
	"edgeadmin/internal/chart"
	"edgeadmin/internal/config"
	"edgeadmin/internal/eventbus"
	"edgeadmin/internal/httpapi"
	"edgeadmin/internal/metrics"
	"edgeadmin/internal/mirror"
	"edgeadmin/internal/notice"
	"edgeadmin/internal/refresh"
	"edgeadmin/internal/runtime/supervisor"
	"edgeadmin/internal/storage"
	logx "edgeadmin/pkg/logx"
)

// prefHasVisited marks that the welcome notice was shown.
const prefHasVisited = "hasVisited"

type App struct {
	cfgm *config.Manager
	sup  *supervisor.Supervisor

	log  logx.Logger
	logs *logx.Service
	bus  *eventbus.MemBus

	board   *board.Board
	notices *notice.Manager
	refresh *refresh.Scheduler
	store   storage.Store
	prefs   *storage.Prefs
	charts  *chart.Registry
	metrics *metrics.Metrics
	mirror  *mirror.Service
	http    *httpapi.Server

	// managed holds refresh tasks and regions that came from config, so a
	// reload only touches what config owns.
	mu             sync.Mutex
	managedTasks   map[string]config.RefreshTaskConfig
	managedRegions map[string]bool

	started time.Time
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logSvc, root := logx.New(mapLogConfig(cfg))
	log := root.With(logx.String("comp", "app"))

	bus := eventbus.New()
	b := board.New(bus)

	notices := notice.NewManager(b, mapNoticeConfig(cfg),
		notice.WithBus(bus),
		notice.WithLogger(root),
	)

	fetcher, err := refresh.NewHTTPFetcher(&http.Client{}, cfg.Refresh.BaseURL)
	if err != nil {
		return nil, err
	}
	sched := refresh.New(fetcher, b, mapRefreshConfig(cfg),
		refresh.WithBus(bus),
		refresh.WithLogger(root),
		refresh.WithNotifier(notices),
		refresh.WithEnabled(cfg.RefreshEnabled()),
	)

	sc, err := mapStorageConfig(cfg)
	if err != nil {
		return nil, err
	}
	store, err := storage.Open(sc, root)
	if err != nil {
		return nil, err
	}
	log.Info("storage ready", logx.String("driver", sc.Driver))

	m := metrics.New(metrics.Gauges{
		LiveNotices:    notices.Len,
		RefreshTasks:   sched.Len,
		RefreshEnabled: sched.Enabled,
		BusDropped:     bus.Dropped,
	})

	var mir *mirror.Service
	if mc, ok := mapMirrorConfig(cfg); ok {
		sender, err := mirror.NewTelegramSender(cfg.Mirror.Token, cfg.Mirror.ChatID, cfg.Mirror.ThreadID)
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("mirror: %w", err)
		}
		mir = mirror.New(mc, sender, root)
		log.Info("notice mirror enabled", logx.String("cfg", mc.Describe()))
	}

	a := &App{
		cfgm:           cfgm,
		log:            log,
		logs:           logSvc,
		bus:            bus,
		board:          b,
		notices:        notices,
		refresh:        sched,
		store:          store,
		prefs:          storage.NewPrefs(store, root),
		charts:         chart.NewRegistry(),
		metrics:        m,
		mirror:         mir,
		managedTasks:   map[string]config.RefreshTaskConfig{},
		managedRegions: map[string]bool{},
	}

	opts, err := mapHTTPOptions(cfg)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	a.started = time.Now()
	a.http = httpapi.New(httpapi.Deps{
		Notices: notices,
		Board:   b,
		Refresh: sched,
		Prefs:   a.prefs,
		Charts:  a.charts,
		Bus:     bus,
		Metrics: m.Handler(),
		Log:     root,
		Started: a.started,
	}, opts)

	// Error-level log lines surface on the dashboard.
	logSvc.SetNoticeSink(func(_ logx.Level, text string) {
		notices.Notify(text, notice.SeverityError)
	})

	return a, nil
}

// Done is closed when the app supervisor context is canceled (fatal error or Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Notices() *notice.Manager    { return a.notices }
func (a *App) Refresh() *refresh.Scheduler { return a.refresh }
func (a *App) Board() *board.Board         { return a.board }
func (a *App) Handler() http.Handler       { return a.http.Handler() }

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))

	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		if _, err := mapStorageConfig(cfg); err != nil {
			return err
		}
		if _, err := mapHTTPOptions(cfg); err != nil {
			return err
		}
		for _, t := range cfg.Refresh.Tasks {
			if t.Schedule == "" {
				continue
			}
			if _, err := refresh.ParseSchedule(t.Schedule); err != nil {
				return fmt.Errorf("refresh.tasks[%s].schedule: %w", t.Key, err)
			}
		}
		return nil
	})

	a.reconcile(a.cfgm.Get())

	a.sup.GoRestart("http.serve", a.http.Serve,
		supervisor.WithRestartBackoff(500*time.Millisecond, 10*time.Second),
		supervisor.WithMaxRestarts(5),
	)
	a.sup.Go("metrics.observe", func(c context.Context) error { return a.metrics.Run(c, a.bus) })
	if a.mirror != nil {
		a.sup.Go("mirror", func(c context.Context) error { return a.mirror.Run(c, a.bus) })
	}

	events, unsub := a.bus.Subscribe(128)
	a.sup.Go0("eventbus.log", func(c context.Context) {
		defer unsub()
		for {
			select {
			case <-c.Done():
				return
			case e, ok := <-events:
				if !ok {
					return
				}
				// Debug only: refresh ticks are frequent.
				a.log.Debug("event", logx.String("type", e.Type), logx.Time("time", e.Time))
			}
		}
	})

	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		a.reloadLoop(c, sub)
	})
	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})

	a.sup.Go0("welcome", func(c context.Context) {
		a.welcome(c, a.cfgm.Get().Welcome)
	})

	if ok, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		a.log.Warn("sd_notify ready failed", logx.Err(err))
	} else if ok {
		a.log.Debug("sd_notify ready sent")
	}
	a.log.Info("app started")
	return nil
}

// welcome shows the first-visit notice once per store.
func (a *App) welcome(ctx context.Context, w config.WelcomeConfig) {
	if w.Disabled || a.prefs.Bool(prefHasVisited, false) {
		return
	}
	a.prefs.Set(prefHasVisited, true)

	t := time.NewTimer(w.DelayOrDefault())
	defer t.Stop()
	select {
	case <-ctx.Done():
		return
	case <-t.C:
	}
	a.notices.Publish(w.MessageOrDefault(), notice.SeveritySuccess, w.TimeoutOrDefault())
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)

	a.sup.Cancel()

	// step bounds one shutdown step so a stuck component can't stall the rest.
	step := func(name string, max time.Duration, fn func(context.Context) error) {
		start := time.Now()
		stepCtx := ctx
		if max > 0 {
			if dl, ok := ctx.Deadline(); ok && time.Until(dl) < max {
				max = time.Until(dl)
			}
			var cancel context.CancelFunc
			stepCtx, cancel = context.WithTimeout(ctx, max)
			defer cancel()
		}

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()

		select {
		case err := <-done:
			if err != nil {
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			}
			a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached (continuing)",
				logx.String("name", name),
				logx.Duration("elapsed", time.Since(start)),
			)
		}
	}

	step("refresh", 3*time.Second, a.refresh.Close)
	step("notices", time.Second, func(context.Context) error { a.notices.Close(); return nil })
	step("supervisor", 6*time.Second, a.sup.Wait)
	step("storage", time.Second, func(context.Context) error { return a.store.Close() })

	a.log.Info("stopped")
	if a.logs != nil {
		a.logs.SetNoticeSink(nil)
		_ = a.logs.Close()
	}
	return nil
}
