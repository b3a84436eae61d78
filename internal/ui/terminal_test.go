package ui

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/dshills/flok/internal/app"
	"github.com/dshills/flok/internal/process"
	"github.com/dshills/flok/internal/supervisor"
	"github.com/dshills/flok/internal/terminal"
)

func newSimTerminal(t *testing.T, w, h int) (*Terminal, tcell.SimulationScreen) {
	t.Helper()
	sim := tcell.NewSimulationScreen("UTF-8")
	term := NewTerminalWithScreen(sim)
	if err := term.Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	sim.SetSize(w, h)
	t.Cleanup(term.Shutdown)
	return term, sim
}

// row returns the text of screen row y from x to x+n.
func row(sim tcell.SimulationScreen, x, y, n int) string {
	var sb strings.Builder
	for i := x; i < x+n; i++ {
		r, _, _, _ := sim.GetContent(i, y) //nolint:staticcheck // GetContent is the correct API
		if r == 0 {
			r = ' '
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

func gridOf(t *testing.T, rows, cols int, output string) terminal.Grid {
	t.Helper()
	buf, err := terminal.NewBuffer(rows, cols)
	if err != nil {
		t.Fatal(err)
	}
	buf.Write([]byte(output))
	return buf.Snapshot()
}

func TestConvertEvent(t *testing.T) {
	tests := []struct {
		name string
		ev   tcell.Event
		want app.Action
	}{
		{"up", tcell.NewEventKey(tcell.KeyUp, 0, tcell.ModNone), app.ActionMoveUp},
		{"k", tcell.NewEventKey(tcell.KeyRune, 'k', tcell.ModNone), app.ActionMoveUp},
		{"down", tcell.NewEventKey(tcell.KeyDown, 0, tcell.ModNone), app.ActionMoveDown},
		{"j", tcell.NewEventKey(tcell.KeyRune, 'j', tcell.ModNone), app.ActionMoveDown},
		{"enter", tcell.NewEventKey(tcell.KeyEnter, 0, tcell.ModNone), app.ActionConfirm},
		{"r", tcell.NewEventKey(tcell.KeyRune, 'r', tcell.ModNone), app.ActionRestart},
		{"q", tcell.NewEventKey(tcell.KeyRune, 'q', tcell.ModNone), app.ActionQuit},
		{"ctrl-c", tcell.NewEventKey(tcell.KeyCtrlC, 0, tcell.ModCtrl), app.ActionQuit},
		{"alt-q", tcell.NewEventKey(tcell.KeyRune, 'q', tcell.ModAlt), app.ActionNone},
		{"x", tcell.NewEventKey(tcell.KeyRune, 'x', tcell.ModNone), app.ActionNone},
		{"resize", tcell.NewEventResize(90, 40), app.ActionResize},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := convertEvent(tt.ev)
			if tt.want == app.ActionNone {
				if ok {
					t.Errorf("convertEvent() = %v, want no action", got.Action)
				}
				return
			}
			if !ok || got.Action != tt.want {
				t.Errorf("convertEvent() = %v, %v, want %v", got.Action, ok, tt.want)
			}
		})
	}

	got, _ := convertEvent(tcell.NewEventResize(90, 40))
	if got.Width != 90 || got.Height != 40 {
		t.Errorf("resize = %dx%d, want 90x40", got.Width, got.Height)
	}
}

func TestEventsFromScreen(t *testing.T) {
	term, sim := newSimTerminal(t, 80, 24)

	_ = sim.PostEvent(tcell.NewEventKey(tcell.KeyRune, 'x', tcell.ModNone))
	_ = sim.PostEvent(tcell.NewEventKey(tcell.KeyRune, 'j', tcell.ModNone))

	for {
		select {
		case ev := <-term.Events():
			if ev.Action == app.ActionResize {
				continue
			}
			if ev.Action != app.ActionMoveDown {
				t.Fatalf("event = %v, want move-down", ev.Action)
			}
			return
		case <-time.After(2 * time.Second):
			t.Fatal("no input event")
		}
	}
}

func TestShutdownClosesEvents(t *testing.T) {
	term, _ := newSimTerminal(t, 80, 24)
	term.Shutdown()
	term.Shutdown()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-term.Events():
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("events channel not closed after Shutdown")
		}
	}
}

func TestDrawFrame(t *testing.T) {
	term, sim := newSimTerminal(t, 50, 12)

	layout := app.NewLayout(50, 12)
	panes := layout.Panes(2)
	rows, cols := app.PaneSize(panes[0])

	frame := app.Frame{
		Layout:   layout,
		Watching: true,
		Snapshot: supervisor.Snapshot{
			Selected: 1,
			Flocks: []supervisor.FlockView{
				{Index: 0, Name: "api", Running: 1},
				{Index: 1, Name: "docs", Selected: true, Processes: []supervisor.ProcessView{
					{
						Name:   "site",
						Status: process.Status{Phase: process.PhaseRunning},
						Grid:   gridOf(t, rows, cols, "hello \x1b[31mred\x1b[0m"),
					},
					{
						Name:   "build",
						Status: process.Status{Phase: process.PhaseExited, ExitCode: 1},
					},
				}},
			},
		},
	}
	term.Draw(frame)

	if got := row(sim, 3, 1, 3); got != "api" {
		t.Errorf("sidebar row 1 = %q, want api", got)
	}
	if r, _, _, _ := sim.GetContent(1, 1); r != runningMark { //nolint:staticcheck // GetContent is the correct API
		t.Errorf("running mark = %q, want %q", r, runningMark)
	}
	_, _, sel, _ := sim.GetContent(3, 2) //nolint:staticcheck // GetContent is the correct API
	if _, _, attrs := sel.Decompose(); attrs&tcell.AttrReverse == 0 {
		t.Error("selected flock is not highlighted")
	}

	// Pane 0 starts after the 10-column sidebar.
	if got := row(sim, 11, 1, 9); got != "hello red" {
		t.Errorf("pane text = %q, want %q", got, "hello red")
	}
	_, _, style, _ := sim.GetContent(17, 1) //nolint:staticcheck // GetContent is the correct API
	if fg, _, _ := style.Decompose(); fg != tcell.PaletteColor(int(terminal.Red)) {
		t.Errorf("red cell fg = %v", fg)
	}

	top := row(sim, panes[1].X, panes[1].Y, panes[1].Width)
	if !strings.Contains(top, "build [Exited 1]") {
		t.Errorf("pane 1 title = %q, want exit indicator", top)
	}
	if got := row(sim, 0, 11, len(hints)); !strings.HasPrefix(strings.TrimSpace(got), "↑/k") {
		t.Errorf("status line = %q, want key hints", got)
	}
}

func TestDrawWarningAndIdle(t *testing.T) {
	term, sim := newSimTerminal(t, 60, 10)
	layout := app.NewLayout(60, 10)

	term.Draw(app.Frame{
		Layout:  layout,
		Warning: "file watching unavailable",
		Snapshot: supervisor.Snapshot{Flocks: []supervisor.FlockView{
			{Name: "api", Selected: true, Processes: []supervisor.ProcessView{{Name: "server", Idle: true}}},
		}},
	})

	if got := row(sim, 0, 9, 60); !strings.Contains(got, "file watching unavailable") {
		t.Errorf("status line = %q, want warning", got)
	}
	in := layout.Panes(1)[0].Inner()
	if got := row(sim, in.X, in.Y, 20); got != "Press Enter to start" {
		t.Errorf("idle pane = %q", got)
	}
}

func TestDrawClipsToPane(t *testing.T) {
	term, sim := newSimTerminal(t, 30, 6)
	layout := app.NewLayout(30, 6)

	// Grid larger than the pane must not spill over the border.
	term.Draw(app.Frame{
		Layout: layout,
		Snapshot: supervisor.Snapshot{Flocks: []supervisor.FlockView{
			{Name: "f", Selected: true, Processes: []supervisor.ProcessView{{
				Name:   "p",
				Status: process.Status{Phase: process.PhaseRunning},
				Grid:   gridOf(t, 10, 80, strings.Repeat("x", 80)),
			}}},
		}},
	})

	pane := layout.Panes(1)[0]
	right := pane.X + pane.Width - 1
	if r, _, _, _ := sim.GetContent(right, 1); r != tcell.RuneVLine { //nolint:staticcheck // GetContent is the correct API
		t.Errorf("border cell = %q, want vertical line", r)
	}
}

func TestIndicator(t *testing.T) {
	tests := []struct {
		pv   supervisor.ProcessView
		want string
	}{
		{supervisor.ProcessView{Idle: true}, ""},
		{supervisor.ProcessView{Status: process.Status{Phase: process.PhaseRunning}}, ""},
		{supervisor.ProcessView{Restarting: true, Status: process.Status{Phase: process.PhaseTerminating}}, "[Restarting...]"},
		{supervisor.ProcessView{Status: process.Status{Phase: process.PhaseFailed}, Err: errors.New("x")}, "[Failed]"},
		{supervisor.ProcessView{Status: process.Status{Phase: process.PhaseTerminating, Unresponsive: true}}, "[Unresponsive]"},
		{supervisor.ProcessView{Status: process.Status{Phase: process.PhaseTerminating}}, "[Stopping...]"},
		{supervisor.ProcessView{Status: process.Status{Phase: process.PhaseStarting}}, "[Starting...]"},
		{supervisor.ProcessView{Status: process.Status{Phase: process.PhaseExited, ExitCode: -1, Signal: "SIGKILL"}}, "[Killed]"},
		{supervisor.ProcessView{Status: process.Status{Phase: process.PhaseExited, ExitCode: 2}}, "[Exited 2]"},
		{supervisor.ProcessView{Status: process.Status{Phase: process.PhaseExited}}, "[Exited 0]"},
	}
	for _, tt := range tests {
		if got := Indicator(tt.pv); got != tt.want {
			t.Errorf("Indicator(%+v) = %q, want %q", tt.pv.Status, got, tt.want)
		}
	}
}

func TestConvertStyle(t *testing.T) {
	s := convertStyle(terminal.Style{Fg: terminal.BrightBlue, Bg: terminal.ColorDefault, Attrs: terminal.AttrBold | terminal.AttrUnderline})
	fg, bg, attrs := s.Decompose()
	if fg != tcell.PaletteColor(int(terminal.BrightBlue)) {
		t.Errorf("fg = %v", fg)
	}
	if bg != tcell.ColorDefault {
		t.Errorf("bg = %v, want default", bg)
	}
	if attrs&tcell.AttrBold == 0 || attrs&tcell.AttrUnderline == 0 || attrs&tcell.AttrItalic != 0 {
		t.Errorf("attrs = %v", attrs)
	}
}
