package storage

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	logx "edgeadmin/pkg/logx"
)

const prefsOpTimeout = 2 * time.Second

// Prefs is a JSON view over a Store that never returns errors. Failures are
// logged and reported as false, so callers fall back to defaults.
type Prefs struct {
	store Store
	log   logx.Logger
}

func NewPrefs(store Store, log logx.Logger) *Prefs {
	if store == nil {
		store = NewMemory()
	}
	return &Prefs{store: store, log: log.With(logx.String("comp", "prefs"))}
}

// Get decodes key into dst. It reports false when the key is missing or unreadable.
func (p *Prefs) Get(key string, dst any) bool {
	ctx, cancel := context.WithTimeout(context.Background(), prefsOpTimeout)
	defer cancel()
	b, err := p.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			p.log.Warn("prefs get failed", logx.String("key", key), logx.Err(err))
		}
		return false
	}
	if err := json.Unmarshal(b, dst); err != nil {
		p.log.Warn("prefs decode failed", logx.String("key", key), logx.Err(err))
		return false
	}
	return true
}

// Raw returns the stored JSON for key.
func (p *Prefs) Raw(key string) (json.RawMessage, bool) {
	var v json.RawMessage
	if !p.Get(key, &v) {
		return nil, false
	}
	return v, true
}

func (p *Prefs) Set(key string, v any) bool {
	b, err := json.Marshal(v)
	if err != nil {
		p.log.Warn("prefs encode failed", logx.String("key", key), logx.Err(err))
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), prefsOpTimeout)
	defer cancel()
	if err := p.store.Set(ctx, key, b); err != nil {
		p.log.Warn("prefs set failed", logx.String("key", key), logx.Err(err))
		return false
	}
	return true
}

func (p *Prefs) Remove(key string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), prefsOpTimeout)
	defer cancel()
	if err := p.store.Remove(ctx, key); err != nil {
		p.log.Warn("prefs remove failed", logx.String("key", key), logx.Err(err))
		return false
	}
	return true
}

func (p *Prefs) Clear() bool {
	ctx, cancel := context.WithTimeout(context.Background(), prefsOpTimeout)
	defer cancel()
	if err := p.store.Clear(ctx); err != nil {
		p.log.Warn("prefs clear failed", logx.Err(err))
		return false
	}
	return true
}

// Bool returns the stored boolean, or def when missing or unreadable.
func (p *Prefs) Bool(key string, def bool) bool {
	var v bool
	if !p.Get(key, &v) {
		return def
	}
	return v
}
