// Package chart builds Chart.js-shaped line chart configs and keeps their
// data as a sliding window.
package chart

import (
	"maps"
	"slices"
	"sort"
	"sync"
)

// DefaultMaxPoints is the window width used when Update gets maxPoints <= 0.
const DefaultMaxPoints = 20

type Dataset struct {
	Label           string    `json:"label"`
	Data            []float64 `json:"data"`
	BorderColor     string    `json:"borderColor,omitempty"`
	BackgroundColor string    `json:"backgroundColor,omitempty"`
}

type Data struct {
	Labels   []string  `json:"labels"`
	Datasets []Dataset `json:"datasets"`
}

type Config struct {
	Type    string         `json:"type"`
	Data    *Data          `json:"data,omitempty"`
	Options map[string]any `json:"options,omitempty"`
}

// Chart is a line chart config guarded for concurrent updates.
type Chart struct {
	mu   sync.Mutex
	typ  string
	data Data
	opts map[string]any
}

func defaultOptions() map[string]any {
	return map[string]any{
		"responsive":          true,
		"maintainAspectRatio": false,
		"scales": map[string]any{
			"y": map[string]any{"beginAtZero": true},
		},
		"plugins": map[string]any{
			"legend": map[string]any{"display": true, "position": "top"},
		},
	}
}

// NewLine returns a line chart with the defaults overridden by o. Options are
// merged one level deep: a key in o.Options replaces the whole default value
// under that key.
func NewLine(o Config) *Chart {
	c := &Chart{typ: "line", opts: defaultOptions()}
	if o.Type != "" {
		c.typ = o.Type
	}
	if o.Data != nil {
		c.data = cloneData(*o.Data)
	}
	maps.Copy(c.opts, o.Options)
	return c
}

// Update appends labels and points (by dataset index; extra incoming datasets
// are ignored) and trims from the front once labels exceed maxPoints.
func (c *Chart) Update(next Data, maxPoints int) {
	if maxPoints <= 0 {
		maxPoints = DefaultMaxPoints
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.data.Labels = append(c.data.Labels, next.Labels...)
	for i, ds := range next.Datasets {
		if i >= len(c.data.Datasets) {
			break
		}
		c.data.Datasets[i].Data = append(c.data.Datasets[i].Data, ds.Data...)
	}

	if excess := len(c.data.Labels) - maxPoints; excess > 0 {
		c.data.Labels = slices.Clone(c.data.Labels[excess:])
		for i := range c.data.Datasets {
			d := c.data.Datasets[i].Data
			c.data.Datasets[i].Data = slices.Clone(d[min(excess, len(d)):])
		}
	}
}

// Config returns a snapshot of the chart config.
func (c *Chart) Config() Config {
	c.mu.Lock()
	defer c.mu.Unlock()
	d := cloneData(c.data)
	return Config{Type: c.typ, Data: &d, Options: maps.Clone(c.opts)}
}

func cloneData(d Data) Data {
	out := Data{Labels: slices.Clone(d.Labels), Datasets: make([]Dataset, len(d.Datasets))}
	if out.Labels == nil {
		out.Labels = []string{}
	}
	for i, ds := range d.Datasets {
		ds.Data = slices.Clone(ds.Data)
		if ds.Data == nil {
			ds.Data = []float64{}
		}
		out.Datasets[i] = ds
	}
	return out
}

// Registry holds charts by id.
type Registry struct {
	mu     sync.RWMutex
	charts map[string]*Chart
}

func NewRegistry() *Registry {
	return &Registry{charts: map[string]*Chart{}}
}

// Put creates (or replaces) the chart under id.
func (r *Registry) Put(id string, o Config) *Chart {
	c := NewLine(o)
	r.mu.Lock()
	r.charts[id] = c
	r.mu.Unlock()
	return c
}

func (r *Registry) Get(id string) (*Chart, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.charts[id]
	return c, ok
}

func (r *Registry) Delete(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.charts[id]; !ok {
		return false
	}
	delete(r.charts, id)
	return true
}

func (r *Registry) IDs() []string {
	r.mu.RLock()
	ids := make([]string, 0, len(r.charts))
	for id := range r.charts {
		ids = append(ids, id)
	}
	r.mu.RUnlock()
	sort.Strings(ids)
	return ids
}
