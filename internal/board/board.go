// Package board is the in-memory page model the dashboard renders: the notice
// container and the named content regions that refresh tasks write into.
package board

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"edgeadmin/internal/eventbus"
	"edgeadmin/internal/notice"
	"edgeadmin/internal/refresh"
)

var (
	ErrNoContainer    = errors.New("board: notice container missing")
	ErrRegionNotFound = errors.New("board: region not found")
)

// Region is a named block of replaceable content.
type Region struct {
	ID          string    `json:"id"`
	Body        string    `json:"body"`
	ContentType string    `json:"content_type,omitempty"`
	UpdatedAt   time.Time `json:"updated_at,omitzero"`
	Version     uint64    `json:"version"`
}

// View is a notice as the page shows it.
type View struct {
	notice.Notice
	Leaving bool `json:"leaving"`
}

type Board struct {
	bus eventbus.Bus

	mu        sync.RWMutex
	container bool
	notices   []*View
	regions   map[string]*Region
}

var (
	_ notice.Surface  = (*Board)(nil)
	_ refresh.Regions = (*Board)(nil)
)

// New returns a board with the notice container present.
func New(bus eventbus.Bus) *Board {
	if bus == nil {
		bus = eventbus.Nop{}
	}
	return &Board{bus: bus, container: true, regions: map[string]*Region{}}
}

// SetContainer mounts or removes the notice container. Removing it clears the
// mounted notices; notice.Manager drops its entries on its next call.
func (b *Board) SetContainer(present bool) {
	b.mu.Lock()
	b.container = present
	if !present {
		b.notices = nil
	}
	b.mu.Unlock()
}

func (b *Board) Ready() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.container
}

func (b *Board) Mount(n notice.Notice) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.container {
		return ErrNoContainer
	}
	b.notices = append(b.notices, &View{Notice: n})
	return nil
}

func (b *Board) Leave(id notice.Handle) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, v := range b.notices {
		if v.ID == id {
			v.Leaving = true
			v.State = notice.StateClosing
			return
		}
	}
}

func (b *Board) Unmount(id notice.Handle) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, v := range b.notices {
		if v.ID == id {
			b.notices = append(b.notices[:i], b.notices[i+1:]...)
			return
		}
	}
}

// Notices returns the mounted notices in display order.
func (b *Board) Notices() []View {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]View, 0, len(b.notices))
	for _, v := range b.notices {
		out = append(out, *v)
	}
	return out
}

// Declare adds an empty region. Declaring an existing region keeps its content.
func (b *Board) Declare(id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return errors.New("board: region id required")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.regions[id]; !ok {
		b.regions[id] = &Region{ID: id}
	}
	return nil
}

// Drop removes a region. Refresh tasks targeting it stop on their next tick.
func (b *Board) Drop(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.regions[id]; !ok {
		return false
	}
	delete(b.regions, id)
	return true
}

func (b *Board) Exists(id string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.regions[id]
	return ok
}

func (b *Board) Replace(id string, c refresh.Content) error {
	b.mu.Lock()
	r, ok := b.regions[id]
	if !ok {
		b.mu.Unlock()
		return ErrRegionNotFound
	}
	r.Body = string(c.Body)
	r.ContentType = c.ContentType
	r.UpdatedAt = c.FetchedAt
	if r.UpdatedAt.IsZero() {
		r.UpdatedAt = time.Now()
	}
	r.Version++
	snap := *r
	b.mu.Unlock()

	b.bus.Publish(eventbus.Event{Type: eventbus.RegionUpdated, Data: map[string]any{
		"id":      snap.ID,
		"version": snap.Version,
		"bytes":   len(snap.Body),
	}})
	return nil
}

func (b *Board) Region(id string) (Region, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	r, ok := b.regions[id]
	if !ok {
		return Region{}, false
	}
	return *r, true
}

// Regions returns every region sorted by id.
func (b *Board) Regions() []Region {
	b.mu.RLock()
	out := make([]Region, 0, len(b.regions))
	for _, r := range b.regions {
		out = append(out, *r)
	}
	b.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
