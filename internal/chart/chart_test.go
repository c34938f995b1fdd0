package chart

import (
	"reflect"
	"testing"
)

func TestNewLineMergesOptionsOneLevel(t *testing.T) {
	t.Parallel()
	c := NewLine(Config{Options: map[string]any{
		"scales":    map[string]any{"x": map[string]any{"display": false}},
		"animation": false,
	}})
	cfg := c.Config()

	if cfg.Type != "line" {
		t.Fatalf("Type = %q", cfg.Type)
	}
	if cfg.Options["responsive"] != true || cfg.Options["maintainAspectRatio"] != false {
		t.Fatalf("defaults lost: %v", cfg.Options)
	}
	scales := cfg.Options["scales"].(map[string]any)
	if _, ok := scales["y"]; ok {
		t.Fatal("scales should be replaced wholesale, not deep-merged")
	}
	if cfg.Options["animation"] != false {
		t.Fatal("caller option missing")
	}
	if _, ok := cfg.Options["plugins"]; !ok {
		t.Fatal("untouched default key missing")
	}
	if len(cfg.Data.Labels) != 0 || len(cfg.Data.Datasets) != 0 {
		t.Fatalf("expected empty data, got %+v", cfg.Data)
	}
}

func TestUpdateSlidingWindow(t *testing.T) {
	t.Parallel()
	c := NewLine(Config{Data: &Data{Datasets: []Dataset{{Label: "cpu"}, {Label: "mem"}}}})

	c.Update(Data{
		Labels:   []string{"t1", "t2", "t3"},
		Datasets: []Dataset{{Data: []float64{1, 2, 3}}, {Data: []float64{10, 20, 30}}, {Data: []float64{99}}},
	}, 2)

	cfg := c.Config()
	if !reflect.DeepEqual(cfg.Data.Labels, []string{"t2", "t3"}) {
		t.Fatalf("labels = %v", cfg.Data.Labels)
	}
	if !reflect.DeepEqual(cfg.Data.Datasets[0].Data, []float64{2, 3}) {
		t.Fatalf("cpu = %v", cfg.Data.Datasets[0].Data)
	}
	if !reflect.DeepEqual(cfg.Data.Datasets[1].Data, []float64{20, 30}) {
		t.Fatalf("mem = %v", cfg.Data.Datasets[1].Data)
	}
	if len(cfg.Data.Datasets) != 2 {
		t.Fatal("extra incoming datasets must be ignored")
	}
}

func TestUpdateDefaultMaxPoints(t *testing.T) {
	t.Parallel()
	c := NewLine(Config{Data: &Data{Datasets: []Dataset{{Label: "x"}}}})
	for i := 0; i < 25; i++ {
		c.Update(Data{Labels: []string{"l"}, Datasets: []Dataset{{Data: []float64{float64(i)}}}}, 0)
	}
	cfg := c.Config()
	if len(cfg.Data.Labels) != DefaultMaxPoints {
		t.Fatalf("labels = %d, want %d", len(cfg.Data.Labels), DefaultMaxPoints)
	}
	if got := cfg.Data.Datasets[0].Data[0]; got != 5 {
		t.Fatalf("oldest kept point = %v, want 5", got)
	}
}

func TestRegistry(t *testing.T) {
	t.Parallel()
	r := NewRegistry()
	r.Put("b", Config{})
	r.Put("a", Config{Type: "bar"})
	if got := r.IDs(); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Fatalf("IDs = %v", got)
	}
	c, ok := r.Get("a")
	if !ok || c.Config().Type != "bar" {
		t.Fatal("Get(a) mismatch")
	}
	if !r.Delete("a") || r.Delete("a") {
		t.Fatal("Delete should succeed once")
	}
}
