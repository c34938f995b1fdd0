package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/grafana/grafana-foundation-sdk/go/common"
	"github.com/grafana/grafana-foundation-sdk/go/dashboard"
	"github.com/grafana/grafana-foundation-sdk/go/prometheus"
	"github.com/grafana/grafana-foundation-sdk/go/timeseries"
)

func query(expr, legend string) *prometheus.DataqueryBuilder {
	return prometheus.NewDataqueryBuilder().Expr(expr).LegendFormat(legend)
}

func main() {
	var out string
	flag.StringVar(&out, "out", "", "output path (default $DASHBOARD_OUT or dashboard.json)")
	flag.Parse()

	builder := dashboard.NewDashboardBuilder("EdgeAdmin").
		Uid("edgeadmin").
		Tags([]string{"edgeadmin", "dashboard", "prometheus"}).
		Refresh("1m").
		Time("now-6h", "now").
		Timezone(common.TimeZoneBrowser)

	builder = builder.WithRow(dashboard.NewRowBuilder("Notices"))
	builder = builder.WithPanel(
		timeseries.NewPanelBuilder().
			Title("Notices published by severity").
			WithTarget(query(`sum by (severity) (rate(edgeadmin_notices_published_total[5m]))`, "{{severity}}")),
	)
	builder = builder.WithPanel(
		timeseries.NewPanelBuilder().
			Title("Live notices / evictions").
			WithTarget(query(`edgeadmin_notices_live`, "live")).
			WithTarget(query(`sum(rate(edgeadmin_notices_evicted_total[5m]))`, "evicted")).
			WithTarget(query(`sum(rate(edgeadmin_notices_closed_total[5m]))`, "closed")),
	)

	builder = builder.WithRow(dashboard.NewRowBuilder("Refresh"))
	builder = builder.WithPanel(
		timeseries.NewPanelBuilder().
			Title("Refresh ticks by result").
			WithTarget(query(`sum by (result) (rate(edgeadmin_refresh_ticks_total[5m]))`, "{{result}}")),
	)
	builder = builder.WithPanel(
		timeseries.NewPanelBuilder().
			Title("Fetch duration avg by region").
			WithTarget(query(`sum by (key) (rate(edgeadmin_refresh_fetch_duration_seconds_sum[5m])) / sum by (key) (rate(edgeadmin_refresh_fetch_duration_seconds_count[5m]))`, "{{key}}")),
	)
	builder = builder.WithPanel(
		timeseries.NewPanelBuilder().
			Title("Tasks / enabled / stops").
			WithTarget(query(`edgeadmin_refresh_tasks`, "tasks")).
			WithTarget(query(`edgeadmin_refresh_enabled`, "enabled")).
			WithTarget(query(`sum by (reason) (rate(edgeadmin_refresh_task_stops_total[5m]))`, "stop {{reason}}")),
	)

	builder = builder.WithRow(dashboard.NewRowBuilder("Internals"))
	builder = builder.WithPanel(
		timeseries.NewPanelBuilder().
			Title("Region updates / dropped events").
			WithTarget(query(`sum(rate(edgeadmin_region_updates_total[5m]))`, "region updates")).
			WithTarget(query(`sum(rate(edgeadmin_eventbus_dropped_total[5m]))`, "bus dropped")),
	)

	dashboardJSON, err := builder.Build()
	if err != nil {
		fmt.Fprintln(os.Stderr, "build dashboard:", err)
		os.Exit(1)
	}

	if out == "" {
		out = os.Getenv("DASHBOARD_OUT")
	}
	if out == "" {
		out = "dashboard.json"
	}

	payload, err := json.MarshalIndent(dashboardJSON, "", "  ")
	if err != nil {
		fmt.Fprintln(os.Stderr, "encode dashboard:", err)
		os.Exit(1)
	}
	if err := os.WriteFile(out, payload, 0o600); err != nil {
		fmt.Fprintln(os.Stderr, "write dashboard:", err)
		os.Exit(1)
	}
	fmt.Printf("dashboard written to %s\n", out)
}
