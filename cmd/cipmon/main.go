// Command cipmon is a terminal dashboard showing the last-known value of
// every polled tag, refreshed as the poll loop produces new snapshots.
// Layout and color scheme are grounded on the teacher's tui package
// (app.go's status bar, styles.go's connected/disconnected indicators),
// trimmed to a single scrolling table instead of a tabbed multi-PLC UI.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"sync"
	"syscall"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/amrhady2/go-logix-cip/config"
	"github.com/amrhady2/go-logix-cip/logging"
	"github.com/amrhady2/go-logix-cip/logix"
	"github.com/amrhady2/go-logix-cip/transport"
)

var configPath = flag.String("config", "cipctl.yaml", "path to YAML configuration file")

const (
	colorConnected    = tcell.ColorGreen
	colorDisconnected = tcell.ColorGray
	colorError        = tcell.ColorRed
)

// snapshot holds the dashboard's current rendering state, guarded by mu
// since the poll goroutine writes it and the tview draw goroutine reads it.
type snapshot struct {
	mu        sync.Mutex
	connected bool
	lastErr   error
	values    map[string]logix.TagValue
}

func newSnapshot() *snapshot {
	return &snapshot{values: make(map[string]logix.TagValue)}
}

func (s *snapshot) update(values []logix.TagValue) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = true
	s.lastErr = nil
	for _, v := range values {
		s.values[v.Name] = v
	}
}

func (s *snapshot) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = false
	s.lastErr = err
}

func (s *snapshot) sortedNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.values))
	for n := range s.values {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (s *snapshot) get(name string) (logix.TagValue, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[name]
	return v, ok
}

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NopLogger{}
	if cfg.Logging.FilePath != "" {
		wl, f, err := logging.NewFileLogger(cfg.Logging.FilePath, cfg.Logging.HexDump)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error opening log: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		logger = wl
	}

	tr, err := transport.New(cfg.PLC.Address,
		transport.WithTimeout(5*time.Second),
		transport.WithLogger(logger),
		transport.WithForwardOpenConfig(transport.DefaultForwardOpenConfig(cfg.PLC.Slot)),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error connecting: %v\n", err)
		os.Exit(1)
	}
	defer tr.Close()
	if err := tr.ForwardOpen(); err != nil {
		fmt.Fprintf(os.Stderr, "forward open failed: %v\n", err)
		os.Exit(1)
	}

	client := logix.NewClient(tr, logix.WithLogger(logger))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	snap := newSnapshot()

	app := tview.NewApplication()

	statusBar := tview.NewTextView().SetDynamicColors(true).SetTextAlign(tview.AlignLeft)
	table := tview.NewTable().SetBorders(false).SetFixed(1, 0)
	table.SetCell(0, 0, tview.NewTableCell("TAG").SetSelectable(false).SetTextColor(tcell.ColorYellow))
	table.SetCell(0, 1, tview.NewTableCell("VALUE").SetSelectable(false).SetTextColor(tcell.ColorYellow))
	table.SetCell(0, 2, tview.NewTableCell("TYPE").SetSelectable(false).SetTextColor(tcell.ColorYellow))
	table.SetCell(0, 3, tview.NewTableCell("UPDATED").SetSelectable(false).SetTextColor(tcell.ColorYellow))

	flex := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(statusBar, 1, 0, false).
		AddItem(table, 0, 1, true)

	app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Key() == tcell.KeyEscape || event.Rune() == 'q' {
			app.Stop()
			stop()
			return nil
		}
		return event
	})

	redraw := func() {
		snap.mu.Lock()
		connected := snap.connected
		lastErr := snap.lastErr
		snap.mu.Unlock()

		status := fmt.Sprintf("[%s]●[-] %s   connected to %s   (q to quit)",
			colorName(connected, lastErr), cfg.PLC.Name, cfg.PLC.Address)
		if lastErr != nil {
			status += fmt.Sprintf("   [red]%v[-]", lastErr)
		}
		statusBar.SetText(status)

		names := snap.sortedNames()
		for i, name := range names {
			v, ok := snap.get(name)
			if !ok {
				continue
			}
			row := i + 1
			table.SetCell(row, 0, tview.NewTableCell(name))
			table.SetCell(row, 1, tview.NewTableCell(fmt.Sprintf("%v", v.Value)))
			table.SetCell(row, 2, tview.NewTableCell(v.Type.String()))
			table.SetCell(row, 3, tview.NewTableCell(v.Timestamp.Format("15:04:05.000")))
		}
	}

	go pollLoop(ctx, client, cfg, snap, func() { app.QueueUpdateDraw(redraw) })

	if err := app.SetRoot(flex, true).EnableMouse(true).Run(); err != nil {
		fmt.Fprintf(os.Stderr, "tui error: %v\n", err)
		os.Exit(1)
	}
}

func colorName(connected bool, err error) string {
	switch {
	case err != nil:
		return "red"
	case connected:
		return "green"
	default:
		return "gray"
	}
}

func pollLoop(ctx context.Context, client *logix.Client, cfg *config.Config, snap *snapshot, onUpdate func()) {
	ticker := time.NewTicker(cfg.PLC.PollRate)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			values := client.Snapshot(cfg.PLC.Tags)
			if len(values) == 0 {
				snap.fail(fmt.Errorf("no tags returned"))
			} else {
				snap.update(values)
			}
			onUpdate()
		}
	}
}
