package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/chzyer/readline"

	"github.com/ryansname/savedemissions/src/channel"
	"github.com/ryansname/savedemissions/src/dashboard"
	"github.com/ryansname/savedemissions/src/log"
)

// widgetStates is the view of the dashboard tracker the console needs
type widgetStates interface {
	Snapshot() []dashboard.WidgetState
}

// formatConsoleValue formats a float with smart precision
func formatConsoleValue(v float64) string {
	if v >= 100 || v <= -100 {
		return fmt.Sprintf("%.0f", v)
	}
	return fmt.Sprintf("%.2f", v)
}

// ANSI color codes for highlighting changes
const (
	ansiReset  = "\033[0m"
	ansiYellow = "\033[33m" // Yellow for changed values
)

// readlineWriter wraps log output to work with readline
type readlineWriter struct {
	rl  *readline.Instance
	out io.Writer
}

func (w *readlineWriter) Write(p []byte) (n int, err error) {
	w.rl.Clean()
	n, err = w.out.Write(p)
	w.rl.Refresh()
	return n, err
}

// ConsoleState manages the list of watched channels
type ConsoleState struct {
	watches       []channel.Address
	headerPrinted bool
	columnWidths  []int
	latestData    *channel.CurrentData
	widgets       widgetStates
	channels      []channel.Address // subscribed channels, the only ones that can be watched
	rl            *readline.Instance
	out           io.Writer
	prevValues    map[channel.Address]string // Track previous value per watch for change highlighting
}

// NewConsoleState creates a new console state printing to out
func NewConsoleState(widgets widgetStates, channels []channel.Address, out io.Writer) *ConsoleState {
	return &ConsoleState{
		widgets:    widgets,
		channels:   channels,
		out:        out,
		prevValues: make(map[channel.Address]string),
	}
}

// AddWatch adds a watch and re-sorts the list. Channels no widget subscribed to are rejected.
func (s *ConsoleState) AddWatch(a channel.Address) bool {
	if !slices.Contains(s.channels, a) {
		logger.Warnf("Not subscribed to %s, only widget channels can be watched (try 'list')", a)
		return false
	}
	if slices.Contains(s.watches, a) {
		logger.Infof("Already watching: %s", a)
		return true
	}

	s.watches = append(s.watches, a)
	slices.SortFunc(s.watches, channel.Compare)
	s.headerPrinted = false
	logger.Infof("Watching: %s", a)
	return true
}

// RemoveWatch removes a watch, reporting whether it existed
func (s *ConsoleState) RemoveWatch(a channel.Address) bool {
	i := slices.Index(s.watches, a)
	if i < 0 {
		logger.Infof("No watch found for: %s", a)
		return false
	}
	s.watches = slices.Delete(s.watches, i, i+1)
	s.headerPrinted = false
	logger.Infof("Unwatched: %s", a)
	return true
}

// RemoveAll removes all watches
func (s *ConsoleState) RemoveAll() {
	s.watches = s.watches[:0]
	s.headerPrinted = false
	logger.Infof("All watches removed")
}

// UpdateData stores the latest snapshot for use by the list command
func (s *ConsoleState) UpdateData(data channel.CurrentData) {
	s.latestData = &data
}

// SetReadline sets the readline instance for proper output handling
func (s *ConsoleState) SetReadline(rl *readline.Instance) {
	s.rl = rl
}

// print outputs a line, handling readline prompt properly
func (s *ConsoleState) print(format string, args ...any) {
	if s.rl != nil {
		s.rl.Clean()
		defer s.rl.Refresh()
	}
	_, _ = fmt.Fprintf(s.out, format+"\n", args...)
}

// ListChannels prints every channel of the latest snapshot
func (s *ConsoleState) ListChannels() {
	if s.latestData == nil {
		logger.Infof("No data received yet")
		return
	}

	addrs := s.latestData.Addresses()
	s.print("Available channels (%d):", len(addrs))
	for _, a := range addrs {
		s.print("  %s = %s", a, formatConsoleValue(s.latestData.ValueOrZero(a)))
	}
}

// ListWidgets prints the latest readings of every widget
func (s *ConsoleState) ListWidgets() {
	states := s.widgets.Snapshot()
	if len(states) == 0 {
		logger.Infof("No widgets registered")
		return
	}

	for _, st := range states {
		s.print("%s [%s] ticks=%d", st.Name, st.ID, st.Ticks)
		for _, r := range st.Readings {
			value := "-"
			if r.Value != nil {
				value = strconv.FormatFloat(*r.Value, 'f', r.Precision, 64)
			}
			if r.Unit != "" {
				value += " " + r.Unit
			}
			s.print("  %-20s %s", r.Name, value)
		}
	}
}

// PrintHeader prints the column headers
func (s *ConsoleState) PrintHeader() {
	if len(s.watches) == 0 {
		return
	}

	s.columnWidths = make([]int, len(s.watches))
	parts := make([]string, 0, len(s.watches))
	for i, a := range s.watches {
		s.columnWidths[i] = len(a.Property)
		parts = append(parts, a.Property)
	}
	s.print("%s", strings.Join(parts, " | "))
	s.headerPrinted = true
	s.prevValues = make(map[channel.Address]string) // Reset previous values when header changes
}

// PrintRow prints the current values for all watches (only if changed)
func (s *ConsoleState) PrintRow(data channel.CurrentData) {
	if len(s.watches) == 0 {
		return
	}

	if !s.headerPrinted {
		s.PrintHeader()
	}

	parts := make([]string, 0, len(s.watches))
	anyChanged := false
	newValues := make(map[channel.Address]string, len(s.watches))

	for i, a := range s.watches {
		value := "-"
		if v, ok := data.Value(a); ok {
			value = formatConsoleValue(v)
		}
		newValues[a] = value

		width := max(s.columnWidths[i], len(value))
		s.columnWidths[i] = width

		prevValue, hasPrev := s.prevValues[a]
		if !hasPrev || prevValue != value {
			anyChanged = true
			parts = append(parts, fmt.Sprintf("%s%*s%s", ansiYellow, width, value, ansiReset))
		} else {
			parts = append(parts, fmt.Sprintf("%*s", width, value))
		}
	}

	if anyChanged {
		s.print("%s", strings.Join(parts, " | "))
		s.prevValues = newValues
	}
}

// handleConsoleCommand processes a console command
func handleConsoleCommand(cmd string, state *ConsoleState) {
	parts := strings.Fields(cmd)
	if len(parts) == 0 {
		return
	}

	switch parts[0] {
	case "watch":
		if len(parts) != 2 {
			logger.Infof("Usage: watch <component/property>")
			return
		}
		a, err := channel.ParseAddress(parts[1])
		if err != nil {
			logger.Warnf("Error: %v", err)
			return
		}
		state.AddWatch(a)

	case "unwatch":
		if len(parts) != 2 {
			logger.Infof("Usage: unwatch <component/property> | unwatch --all")
			return
		}
		if parts[1] == "--all" {
			state.RemoveAll()
			return
		}
		a, err := channel.ParseAddress(parts[1])
		if err != nil {
			logger.Warnf("Error: %v", err)
			return
		}
		state.RemoveWatch(a)

	case "list":
		state.ListChannels()

	case "widgets":
		state.ListWidgets()

	case "help":
		state.print("Commands:")
		state.print("  list                             - List all channels of the latest snapshot")
		state.print("  widgets                          - Show the readings of every widget")
		state.print("  watch <component/property>       - Watch a widget channel, e.g. watch _sum/GridSellActiveEnergy")
		state.print("  unwatch <component/property>     - Remove watch")
		state.print("  unwatch --all                    - Remove all watches")
		state.print("  help                             - Show this help")

	default:
		logger.Infof("Unknown command: %s (try 'help')", parts[0])
	}
}

// readlineLoop runs the readline loop, sending commands to the channel
func readlineLoop(
	ctx context.Context,
	cancel context.CancelFunc,
	rl *readline.Instance,
	commandChan chan<- string,
) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			cancel() // Ctrl+C pressed, shutdown the app
			return
		}
		if err != nil {
			return // EOF or other error
		}
		line = strings.TrimSpace(line)
		if line != "" {
			select {
			case commandChan <- line:
			case <-ctx.Done():
				return
			}
		}
	}
}

// historyFilePath returns the path for the console history file
func historyFilePath() string {
	cacheDir := os.Getenv("XDG_CACHE_HOME")
	if cacheDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "" // No history if we can't find home
		}
		cacheDir = filepath.Join(home, ".cache")
	}
	appCache := filepath.Join(cacheDir, "savedemissions")
	_ = os.MkdirAll(appCache, 0750)
	return filepath.Join(appCache, "console_history")
}

// drainUntilDone discards snapshots so the broadcast worker never sees a full channel
func drainUntilDone(ctx context.Context, dataChan <-chan channel.CurrentData) {
	for {
		select {
		case <-dataChan:
		case <-ctx.Done():
			return
		}
	}
}

// consoleWorker provides interactive introspection of channels and widgets
func consoleWorker(
	ctx context.Context,
	cancel context.CancelFunc,
	dataChan <-chan channel.CurrentData,
	widgets widgetStates,
	channels []channel.Address,
) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:      "> ",
		HistoryFile: historyFilePath(),
	})
	if err != nil {
		logger.Errorf("Console worker: readline init failed, console disabled: %v", err)
		drainUntilDone(ctx, dataChan)
		return
	}

	// Redirect log output through readline-aware writer
	prev := log.Output.Swap(&readlineWriter{rl: rl, out: os.Stderr})
	defer func() {
		log.Output.Swap(prev)
		_ = rl.Close()
	}()

	logger.Infof("Console worker started (type 'help' for commands)")

	commandChan := make(chan string, 10)
	state := NewConsoleState(widgets, channels, os.Stdout)
	state.SetReadline(rl)

	go readlineLoop(ctx, cancel, rl, commandChan)

	for {
		select {
		case cmd := <-commandChan:
			handleConsoleCommand(cmd, state)
		case data := <-dataChan:
			state.UpdateData(data)
			state.PrintRow(data)
		case <-ctx.Done():
			logger.Infof("Console worker stopped")
			return
		}
	}
}
