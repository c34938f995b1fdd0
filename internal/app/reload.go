package app

import (
	"context"
	"strings"

	"edgeadmin/internal/config"
	"edgeadmin/internal/eventbus"
	logx "edgeadmin/pkg/logx"
)

func (a *App) reloadLoop(ctx context.Context, sub <-chan *config.Config) {
	lastApplied := a.cfgm.Get()
	for {
		select {
		case <-ctx.Done():
			return
		case next, ok := <-sub:
			if !ok {
				return
			}
			// Coalesce bursts: keep only the latest config.
		drain:
			for {
				select {
				case newer := <-sub:
					if newer != nil {
						next = newer
					}
				default:
					break drain
				}
			}

			summary := config.SummarizeChange(lastApplied, next)
			if strings.Contains(summary, "restart required") {
				a.log.Warn("config change needs a restart to take effect", logx.String("changed", summary))
			}
			a.apply(next)
			lastApplied = next
			a.log.Info("config reloaded", logx.String("changed", summary))
		}
	}
}

// apply pushes the live-reloadable sections into running components.
func (a *App) apply(cfg *config.Config) {
	a.logs.Apply(mapLogConfig(cfg))
	a.notices.Apply(mapNoticeConfig(cfg))
	a.refresh.Apply(mapRefreshConfig(cfg))
	if want := cfg.RefreshEnabled(); want != a.refresh.Enabled() {
		a.refresh.SetGlobalEnabled(want)
	}
	a.reconcile(cfg)
	a.bus.Publish(eventbus.Event{Type: eventbus.ConfigApplied, Data: map[string]int{
		"regions": len(cfg.Regions),
		"tasks":   len(cfg.Refresh.Tasks),
	}})
}

// reconcile declares configured regions and brings configured refresh tasks
// in line with cfg. Tasks and regions created over the API are left alone.
func (a *App) reconcile(cfg *config.Config) {
	a.mu.Lock()
	defer a.mu.Unlock()

	wantRegions := map[string]bool{}
	for _, id := range cfg.Regions {
		if id = strings.TrimSpace(id); id == "" {
			continue
		}
		wantRegions[id] = true
		if err := a.board.Declare(id); err != nil {
			a.log.Warn("region declare failed", logx.String("region", id), logx.Err(err))
		}
	}
	for id := range a.managedRegions {
		if !wantRegions[id] {
			a.board.Drop(id)
		}
	}
	a.managedRegions = wantRegions

	wantTasks := map[string]config.RefreshTaskConfig{}
	for _, t := range cfg.Refresh.Tasks {
		wantTasks[strings.TrimSpace(t.Key)] = t
	}
	for key := range a.managedTasks {
		if _, ok := wantTasks[key]; !ok {
			a.refresh.Stop(key)
		}
	}
	// A disabled scheduler has no tasks; they start again once config re-enables it.
	enabled := a.refresh.Enabled()
	running := map[string]bool{}
	for _, ti := range a.refresh.Tasks() {
		running[ti.Key] = true
	}
	started := map[string]config.RefreshTaskConfig{}
	for key, t := range wantTasks {
		if !enabled {
			continue
		}
		if prev, ok := a.managedTasks[key]; ok && prev == t && running[key] {
			started[key] = t
			continue
		}
		if err := a.refresh.StartSchedule(key, t.Source, t.Schedule); err != nil {
			a.log.Warn("refresh task start failed", logx.String("key", key), logx.Err(err))
			continue
		}
		started[key] = t
	}
	a.managedTasks = started
}
