package metrics_test

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/l1jgo/workbench/internal/core/ecs"
	"github.com/l1jgo/workbench/internal/core/event"
	"github.com/l1jgo/workbench/internal/metrics"
)

func scrape(t *testing.T, m *metrics.Metrics) string {
	t.Helper()
	srv := httptest.NewServer(m.Handler())
	defer srv.Close()
	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return string(body)
}

func TestCountersFollowEvents(t *testing.T) {
	m := metrics.New()
	bus := event.NewBus()
	m.Subscribe(bus)

	event.Emit(bus, event.ModeChanged{From: "edit", To: "play", Event: "start_play"})
	event.Emit(bus, event.HistoryPushed{Label: "x", Outcome: "appended", Depth: 1})
	event.Emit(bus, event.HistoryUndone{Label: "x"})
	event.Emit(bus, event.HistoryUndone{Label: "x"})
	event.Emit(bus, event.RestoreConflict{Cause: "stop"})
	bus.SwapBuffers()
	bus.DispatchAll()

	out := scrape(t, m)
	for _, line := range []string{
		`workbench_mode_transitions_total{from="edit",to="play"} 1`,
		`workbench_history_operations_total{op="appended"} 1`,
		`workbench_history_operations_total{op="undo"} 2`,
		`workbench_restore_conflicts_total{cause="stop"} 1`,
	} {
		if !strings.Contains(out, line) {
			t.Errorf("missing %q in scrape:\n%s", line, out)
		}
	}
}

func TestGaugeSystem(t *testing.T) {
	m := metrics.New()
	w := ecs.NewWorld(ecs.NewRegistry())
	w.CreateEntity()
	w.CreateEntity()
	sys := m.System(func() (string, time.Duration) { return "paused", 1500 * time.Millisecond })
	sys.Update(w, 0)
	m.ObserveTick(time.Millisecond)

	out := scrape(t, m)
	for _, line := range []string{
		`workbench_entities 2`,
		`workbench_simulation_elapsed_seconds 1.5`,
		`workbench_mode{mode="paused"} 1`,
		`workbench_mode{mode="edit"} 0`,
		`workbench_tick_duration_seconds_count 1`,
	} {
		if !strings.Contains(out, line) {
			t.Errorf("missing %q in scrape:\n%s", line, out)
		}
	}
}
