// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/Thermoquad/kyobridge/pkg/bridge"
	"github.com/Thermoquad/kyobridge/pkg/kyo"
	"github.com/Thermoquad/kyobridge/pkg/store"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Log entry
type logEntry struct {
	timestamp time.Time
	message   string
	isError   bool
}

// Messages
type tickMsg time.Time
type storeEventMsg store.Event
type anomalyMsg kyo.ValidationError
type frameMsg struct {
	cmd kyo.Command
}
type frameErrorMsg struct {
	err       error
	discarded int
}

// statusSource is what the monitor reads on every tick.
type statusSource interface {
	Stats() bridge.Stats
}

type monitorModel struct {
	source        string
	bridge        statusSource
	store         *store.Store
	started       time.Time
	state         store.State
	stats         bridge.Stats
	logEntries    []logEntry
	maxLogEntries int
	log           viewport.Model
	width         int
	height        int
	quitting      bool
}

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("12")).
			Background(lipgloss.Color("235")).
			Padding(0, 1)
	headerStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	labelStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	valueStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	errorStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	warningStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	boxStyle        = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240")).Padding(0, 1)
	zoneIdleStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("250"))
	zoneExclStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	zoneAlarmStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("15")).Background(lipgloss.Color("1")).Bold(true)
	zoneTamperStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("0")).Background(lipgloss.Color("11"))
)

func newMonitorModel(source string, b *bridge.Bridge) monitorModel {
	return monitorModel{
		source:        source,
		bridge:        b,
		store:         b.Store,
		started:       time.Now(),
		maxLogEntries: 200,
		log:           viewport.New(76, 8),
		width:         80,
		height:        24,
	}
}

// formatDuration formats an elapsed time as a human-friendly string
func formatDuration(d time.Duration) string {
	seconds := int64(d / time.Second)
	if seconds <= 0 {
		return "0 seconds"
	}

	days := seconds / 86400
	hours := seconds / 3600 % 24
	minutes := seconds / 60 % 60
	seconds %= 60

	plural := func(n int64, unit string) string {
		if n == 1 {
			return "1 " + unit
		}
		return fmt.Sprintf("%d %ss", n, unit)
	}

	parts := []string{}
	if days > 0 {
		parts = append(parts, plural(days, "day"))
	}
	if hours > 0 {
		parts = append(parts, plural(hours, "hour"))
	}
	if minutes > 0 {
		parts = append(parts, plural(minutes, "minute"))
	}
	if seconds > 0 {
		parts = append(parts, plural(seconds, "second"))
	}

	if len(parts) == 1 {
		return parts[0]
	}
	last := parts[len(parts)-1]
	rest := strings.Join(parts[:len(parts)-1], ", ")
	return rest + " and " + last
}

func (m monitorModel) Init() tea.Cmd {
	return tickCmd()
}

func tickCmd() tea.Cmd {
	return tea.Tick(500*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}
		m.log, cmd = m.log.Update(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.log.Width = max(msg.Width-6, 20)
		m.log.Height = max(msg.Height-30, 5)
		m.log.SetContent(m.renderLog())

	case tickMsg:
		if m.store != nil {
			m.state = m.store.Snapshot()
		}
		if m.bridge != nil {
			m.stats = m.bridge.Stats()
		}
		return m, tickCmd()

	case storeEventMsg:
		text := string(msg.Type)
		if msg.Name != "" {
			text += " " + msg.Name
		} else if msg.Index > 0 {
			text += fmt.Sprintf(" %d", msg.Index)
		}
		m.addLogEntry(msg.Time, text+": "+msg.Value, false)
		if m.store != nil {
			m.state = m.store.Snapshot()
		}

	case anomalyMsg:
		m.addLogEntry(time.Now(), "ANOMALY: "+msg.Message, true)

	case frameMsg:
		m.addLogEntry(time.Now(), msg.cmd.String()+" (valid)", false)

	case frameErrorMsg:
		m.addLogEntry(time.Now(), fmt.Sprintf("DECODE ERROR: %v (%d bytes discarded)", msg.err, msg.discarded), true)
	}

	return m, nil
}

func (m *monitorModel) addLogEntry(ts time.Time, message string, isError bool) {
	m.logEntries = append(m.logEntries, logEntry{timestamp: ts, message: message, isError: isError})

	// Keep only last N entries
	if len(m.logEntries) > m.maxLogEntries {
		m.logEntries = m.logEntries[len(m.logEntries)-m.maxLogEntries:]
	}

	atBottom := m.log.AtBottom()
	m.log.SetContent(m.renderLog())
	if atBottom {
		m.log.GotoBottom()
	}
}

func (m monitorModel) renderLog() string {
	if len(m.logEntries) == 0 {
		return headerStyle.Render("  (no events yet)")
	}

	var sb strings.Builder
	for i, entry := range m.logEntries {
		if i > 0 {
			sb.WriteString("\n")
		}
		timestamp := headerStyle.Render(entry.timestamp.Format("15:04:05.000"))
		if entry.isError {
			sb.WriteString(timestamp + " " + errorStyle.Render("✗ "+entry.message))
		} else {
			sb.WriteString(timestamp + " " + warningStyle.Render("ℹ "+entry.message))
		}
	}
	return sb.String()
}

func (m monitorModel) renderZones() string {
	const columns = 4

	var sb strings.Builder
	for i, z := range m.state.Zones {
		name := z.Name
		if name == "" {
			name = fmt.Sprintf("Zone %d", i+1)
		}
		cell := fmt.Sprintf("%2d %-16s", i+1, name)

		switch {
		case z.Alarm:
			cell = zoneAlarmStyle.Render(cell)
		case z.Sabotage:
			cell = zoneTamperStyle.Render(cell)
		case !z.Included:
			cell = zoneExclStyle.Render(cell)
		default:
			cell = zoneIdleStyle.Render(cell)
		}
		sb.WriteString(cell)

		if (i+1)%columns == 0 {
			if i+1 < len(m.state.Zones) {
				sb.WriteString("\n")
			}
		} else {
			sb.WriteString(" ")
		}
	}
	return sb.String()
}

func (m monitorModel) renderPartitions() string {
	var sb strings.Builder
	for i, p := range m.state.Partitions {
		name := p.Name
		if name == "" {
			name = fmt.Sprintf("Area %d", i+1)
		}

		mode := valueStyle.Render(p.Mode.String())
		if p.Armed {
			mode = warningStyle.Render(p.Mode.String())
		}
		if p.Alarm {
			mode += " " + errorStyle.Render("ALARM")
		}

		fmt.Fprintf(&sb, "%s %s", labelStyle.Render(fmt.Sprintf("%d %-16s", i+1, name)), mode)
		if i+1 < len(m.state.Partitions) {
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

func (m monitorModel) renderFaults() string {
	f := m.state.Faults
	s := m.state.Sabotage

	active := []string{}
	for _, flag := range []struct {
		on   bool
		name string
	}{
		{f.Power, "power"},
		{f.BPI, "bpi"},
		{f.Fuse, "fuse"},
		{f.BatteryLow, "battery low"},
		{f.TelephoneLine, "telephone line"},
		{f.DefaultCodes, "default codes"},
		{f.Wireless, "wireless"},
		{s.Partition, "partition tamper"},
		{s.FakeKey, "fake key"},
		{s.BPI, "bpi tamper"},
		{s.System, "system tamper"},
	} {
		if flag.on {
			active = append(active, flag.name)
		}
	}

	siren := valueStyle.Render("off")
	if m.state.Siren {
		siren = errorStyle.Render("ON")
	}

	faults := valueStyle.Render("none")
	if len(active) > 0 {
		faults = errorStyle.Render(strings.Join(active, ", "))
	}
	return fmt.Sprintf("%s %s   %s %s", labelStyle.Render("Faults:"), faults, labelStyle.Render("Siren:"), siren)
}

func (m monitorModel) renderStats() string {
	ps := m.stats.Protocol
	ps.CalculateRates()
	po := m.stats.Poller

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %s   %s %s   %s %s\n",
		labelStyle.Render("Frames:"), valueStyle.Render(fmt.Sprintf("%d", ps.ValidFrames)),
		labelStyle.Render("Errors:"), errorStyle.Render(fmt.Sprintf("%d", ps.Errors())),
		labelStyle.Render("Rate:"), valueStyle.Render(fmt.Sprintf("%.1f frames/s", ps.FrameRate)),
	)
	fmt.Fprintf(&sb, "%s %s   %s %d   %s %d   %s %d",
		labelStyle.Render("Poller:"), valueStyle.Render(po.State),
		labelStyle.Render("Cycles:"), po.Cycles,
		labelStyle.Render("Timeouts:"), po.Timeouts,
		labelStyle.Render("Skipped:"), po.Skipped,
	)
	if t := m.stats.Transport; t != nil {
		link := valueStyle.Render("connected")
		if !t.Connected {
			link = errorStyle.Render("disconnected")
		}
		fmt.Fprintf(&sb, "\n%s %s   %s %d   %s %d",
			labelStyle.Render("Link:"), link,
			labelStyle.Render("Reconnects:"), t.Reconnects,
			labelStyle.Render("Dropped:"), t.Dropped,
		)
	}
	return sb.String()
}

func (m monitorModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	var s strings.Builder
	s.WriteString(titleStyle.Render("KYOBRIDGE - PANEL MONITOR"))
	s.WriteString("\n")

	model := "waiting for panel..."
	if m.state.Model != "" {
		model = fmt.Sprintf("%s fw %s", m.state.Model, m.state.Firmware())
	}
	s.WriteString(headerStyle.Render(fmt.Sprintf("%s | %s | up %s | Press 'q' to quit",
		m.source, model, formatDuration(time.Since(m.started)))))
	s.WriteString("\n\n")

	s.WriteString(boxStyle.Render(m.renderZones()))
	s.WriteString("\n")
	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		boxStyle.Render(m.renderPartitions()),
		boxStyle.Render(m.renderFaults()+"\n\n"+m.renderStats()),
	))
	s.WriteString("\n")

	s.WriteString(labelStyle.Render("Recent Events:"))
	s.WriteString("\n")
	s.WriteString(boxStyle.Render(m.log.View()))

	return s.String()
}
