package app

import (
	"fmt"
	"strings"
	"time"

	"edgeadmin/internal/config"
	"edgeadmin/internal/httpapi"
	"edgeadmin/internal/mirror"
	"edgeadmin/internal/notice"
	"edgeadmin/internal/refresh"
	"edgeadmin/internal/storage"
	logx "edgeadmin/pkg/logx"
)

// defaultErrorNotice replaces raw log text in dashboard notices.
const defaultErrorNotice = "Unexpected application error"

func mapLogConfig(cfg *config.Config) logx.Config {
	msg := strings.TrimSpace(cfg.Logging.Notice.Message)
	if msg == "" {
		msg = defaultErrorNotice
	}
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		Notice: logx.NoticeConfig{
			Enabled:    cfg.Logging.Notice.Enabled,
			MinLevel:   cfg.Logging.Notice.MinLevel,
			RatePerSec: cfg.Logging.Notice.RatePerSec,
			Message:    msg,
		},
	}
}

func mapNoticeConfig(cfg *config.Config) notice.Config {
	return notice.Config{
		Ceiling:        cfg.Notices.CeilingOrDefault(),
		DefaultTimeout: cfg.Notices.TimeoutOrDefault(),
		Grace:          cfg.Notices.GraceOrDefault(),
	}
}

func mapRefreshConfig(cfg *config.Config) refresh.Config {
	return refresh.Config{
		DefaultInterval: cfg.Refresh.IntervalOrDefault(),
		FetchTimeout:    cfg.Refresh.FetchTimeoutOrDefault(),
		NotifyFailures:  cfg.Refresh.NotifyFailures,
	}
}

func mapStorageConfig(cfg *config.Config) (storage.Config, error) {
	if cfg == nil || cfg.Storage == nil {
		return storage.Config{Driver: "memory"}, nil
	}
	sc := cfg.Storage
	driver := strings.ToLower(strings.TrimSpace(sc.Driver))
	path := strings.TrimSpace(sc.Path)

	switch driver {
	case "", "none", "memory":
		return storage.Config{Driver: "memory"}, nil
	case "file":
		return storage.Config{Driver: "file", Path: path}, nil
	case "sqlite", "sqlite3":
		if path == "" {
			return storage.Config{}, fmt.Errorf("storage.path is required when storage.driver=sqlite")
		}
		busy, err := config.ParseDurationOrDefault("storage.busy_timeout", sc.BusyTimeout, time.Second)
		if err != nil {
			return storage.Config{}, err
		}
		return storage.Config{Driver: driver, Path: path, BusyTimeout: busy}, nil
	case "redis":
		return storage.Config{
			Driver:   "redis",
			Addr:     strings.TrimSpace(sc.Addr),
			Password: sc.Password,
			DB:       sc.DB,
			Prefix:   sc.Prefix,
		}, nil
	default:
		return storage.Config{}, fmt.Errorf("unknown storage.driver: %s", sc.Driver)
	}
}

func mapHTTPOptions(cfg *config.Config) (httpapi.Options, error) {
	h := cfg.HTTP
	read, err := config.ParseDurationOrDefault("http.read_timeout", h.ReadTimeout, 15*time.Second)
	if err != nil {
		return httpapi.Options{}, err
	}
	write, err := config.ParseDurationField("http.write_timeout", h.WriteTimeout)
	if err != nil {
		return httpapi.Options{}, err
	}
	idle, err := config.ParseDurationOrDefault("http.idle_timeout", h.IdleTimeout, 60*time.Second)
	if err != nil {
		return httpapi.Options{}, err
	}
	return httpapi.Options{
		Addr:         h.Addr,
		ReadTimeout:  read,
		WriteTimeout: write,
		IdleTimeout:  idle,
		Pprof:        h.Pprof,
		PprofToken:   h.PprofToken,
	}, nil
}

// mapMirrorConfig reports false when the mirror is not configured.
func mapMirrorConfig(cfg *config.Config) (mirror.Config, bool) {
	m := cfg.Mirror
	if m == nil || !m.Enabled {
		return mirror.Config{}, false
	}
	return mirror.Config{
		MinSeverity: notice.Severity(m.MinSeverity),
		RatePerSec:  m.RatePerSec,
		RetryMax:    2,
		DedupWindow: time.Minute,
	}, true
}
