// Package ui renders a live terminal view of the engine output: level, beat
// flash, tempo, classification and the interpolated profile palette.
package ui

import (
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/auraviz/auraviz/internal/engine"
	"github.com/auraviz/auraviz/internal/utils"
)

var (
	vizContainerStyle    = lipgloss.NewStyle().Padding(0, 2)
	vizTitleStyle        = lipgloss.NewStyle().Bold(true)
	vizSectionStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Bold(true)
	vizTimestampStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	vizMetricLabelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	vizMetricValueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Bold(true)
	vizBeatActiveStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("197")).Bold(true)
	vizBeatInactiveStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	vizManualStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("220")).Bold(true)
	vizBarFillStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("45"))
	vizBarEmptyStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("236"))
	vizWaitingStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Italic(true)
	vizHintStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
)

const (
	vizBarWidth   = 32
	swatchBlocks  = 12
	renderLatency = 45 * time.Millisecond
)

// Visualizer is a throttled bridge from the tick loop to the bubbletea
// program.
type Visualizer struct {
	program   *tea.Program
	mu        sync.Mutex
	lastSend  time.Time
	throttle  time.Duration
	closeOnce sync.Once
}

type outputMsg struct {
	output     engine.Output
	receivedAt time.Time
}

type visualizerModel struct {
	output      engine.Output
	lastUpdated time.Time
	ready       bool
	onExit      func()
	exitOnce    sync.Once
}

// NewVisualizer starts the terminal UI. onExit is invoked once when the user
// quits from the UI side.
func NewVisualizer(onExit func()) *Visualizer {
	model := &visualizerModel{onExit: onExit}
	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithoutSignalHandler())

	v := &Visualizer{
		program:  program,
		throttle: renderLatency,
	}

	go program.Run()

	return v
}

// Update pushes one tick's output to the UI, dropping frames that arrive
// faster than the render throttle.
func (v *Visualizer) Update(out engine.Output) {
	v.mu.Lock()
	if time.Since(v.lastSend) < v.throttle {
		v.mu.Unlock()
		return
	}
	v.lastSend = time.Now()
	v.mu.Unlock()

	v.program.Send(outputMsg{output: out, receivedAt: time.Now()})
}

// Close shuts the UI down.
func (v *Visualizer) Close() {
	v.closeOnce.Do(func() {
		v.program.Quit()
	})
}

func (m *visualizerModel) Init() tea.Cmd {
	return nil
}

func (m *visualizerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case outputMsg:
		m.output = msg.output
		m.lastUpdated = msg.receivedAt
		m.ready = true
	case tea.KeyMsg:
		switch {
		case msg.Type == tea.KeyCtrlC:
			m.invokeExit()
			return m, tea.Quit
		case msg.String() == "q", msg.String() == "esc":
			m.invokeExit()
			return m, tea.Quit
		}
	case tea.QuitMsg:
		return m, tea.Quit
	}
	return m, nil
}

func (m *visualizerModel) View() string {
	body := ""
	if !m.ready {
		header := vizTitleStyle.Render("Auraviz Engine")
		waiting := vizWaitingStyle.Render("Waiting for engine ticks…")
		body = lipgloss.JoinVertical(lipgloss.Left, header, "", waiting)
	} else {
		body = renderView(m.output, m.lastUpdated)
	}
	return vizContainerStyle.Render(body)
}

func renderView(out engine.Output, updatedAt time.Time) string {
	header := renderHeader(out, updatedAt)
	classification := renderClassification(out)
	tempo := renderTempo(out)
	swatch := renderPaletteSwatch(out)
	bars := renderBars(out)
	controls := vizHintStyle.Render("Press q / esc / ctrl+c to stop visualization")

	return lipgloss.JoinVertical(
		lipgloss.Left,
		header,
		classification,
		tempo,
		"",
		swatch,
		"",
		bars,
		"",
		controls,
	)
}

func renderHeader(out engine.Output, updatedAt time.Time) string {
	color := lipgloss.Color(out.Display.Palette.Accent.Hex())
	title := vizTitleStyle.Foreground(color).Render("Auraviz Engine")
	timestamp := vizTimestampStyle.Render(updatedAt.Format("15:04:05.000"))

	source := "audio"
	if !out.AudioPresent {
		source = "controller"
	}

	return lipgloss.JoinHorizontal(lipgloss.Left,
		title, "  ", timestamp, "  ",
		vizMetricLabelStyle.Render("source:"), " ", vizMetricValueStyle.Render(source))
}

func renderClassification(out engine.Output) string {
	genre := renderMetric("Genre", fmt.Sprintf("%s (%.2f)", out.Genre, out.GenreConfidence))
	energy := renderMetric("Energy", fmt.Sprintf("%4.2f %s", out.Energy, out.EnergyTrend))

	profileValue := out.Active.CurrentProfileID
	if out.Active.TargetProfileID != "" {
		profileValue = fmt.Sprintf("%s → %s (%.0f%%)",
			out.Active.CurrentProfileID, out.Active.TargetProfileID, out.Active.Progress*100)
	}
	prof := renderMetric("Profile", profileValue)

	line := lipgloss.JoinHorizontal(lipgloss.Left, genre, "   ", energy, "   ", prof)
	if !out.Active.ManualUntil.IsZero() {
		line = lipgloss.JoinHorizontal(lipgloss.Left, line, "   ", vizManualStyle.Render("MANUAL"))
	}
	return line
}

func renderTempo(out engine.Output) string {
	beatMarker := vizBeatInactiveStyle.Render("○")
	if out.Beat {
		beatMarker = vizBeatActiveStyle.Render("●")
	}

	bpm := 0.0
	if out.Tempo.MeanInterval > 0 {
		bpm = float64(time.Minute) / float64(out.Tempo.MeanInterval)
	}

	return lipgloss.JoinHorizontal(lipgloss.Left,
		vizMetricLabelStyle.Render("Beat:"), " ", beatMarker, "   ",
		renderMetric("BPM", fmt.Sprintf("%5.1f", bpm)), "   ",
		renderMetric("Confidence", fmt.Sprintf("%4.2f", out.Tempo.Confidence)), "   ",
		renderMetric("Stability", fmt.Sprintf("%4.2f", out.Tempo.Stability)))
}

func renderMetric(label, value string) string {
	return lipgloss.JoinHorizontal(
		lipgloss.Left,
		vizMetricLabelStyle.Render(label+":"),
		" ",
		vizMetricValueStyle.Render(value),
	)
}

func renderPaletteSwatch(out engine.Output) string {
	pal := out.Display.Palette
	colors := []struct {
		name string
		hex  string
	}{
		{"primary", pal.Primary.Hex()},
		{"secondary", pal.Secondary.Hex()},
		{"tertiary", pal.Tertiary.Hex()},
		{"accent", pal.Accent.Hex()},
	}

	parts := make([]string, 0, len(colors)*2)
	for _, c := range colors {
		block := lipgloss.NewStyle().Background(lipgloss.Color(c.hex)).Render(strings.Repeat("  ", swatchBlocks/4))
		parts = append(parts, block, " ")
	}
	swatch := strings.Join(parts, "")

	particles := vizMetricValueStyle.Render(fmt.Sprintf("%d particles", out.Display.Complexity.ParticleCount))
	return lipgloss.JoinHorizontal(lipgloss.Left,
		vizSectionStyle.Render("Palette"), "  ", swatch, "  ", particles)
}

func renderBars(out engine.Output) string {
	lowBand, midBand, highBand := bandTriplet(out)
	lines := []string{
		renderBar("Level", out.Level),
		renderBar("Energy", out.Energy),
		renderBar("Low", lowBand),
		renderBar("Mid", midBand),
		renderBar("High", highBand),
		renderBar("Progress", out.Active.Progress),
	}
	return strings.Join(lines, "\n")
}

// bandTriplet coarsely folds the 13 timbre bands into low/mid/high for
// display.
func bandTriplet(out engine.Output) (float64, float64, float64) {
	bands := out.Spectral.TimbreBands
	low := (bands[0] + bands[1] + bands[2]) / 3
	mid := (bands[3] + bands[4] + bands[5] + bands[6] + bands[7]) / 5
	high := (bands[8] + bands[9] + bands[10] + bands[11] + bands[12]) / 5
	norm := func(v float64) float64 { return utils.Clamp(v/3.0, 0.0, 1.0) }
	return norm(low), norm(mid), norm(high)
}

func renderBar(label string, value float64) string {
	clamped := utils.Clamp(value, 0.0, 1.0)
	filled := int(math.Round(clamped * vizBarWidth))
	if clamped > 0 && filled == 0 {
		filled = 1
	}
	if filled > vizBarWidth {
		filled = vizBarWidth
	}

	builder := strings.Builder{}
	builder.Grow(128)
	builder.WriteString(vizMetricLabelStyle.Render(fmt.Sprintf("%-10s", label)))
	builder.WriteString(" [")
	if filled > 0 {
		builder.WriteString(vizBarFillStyle.Render(strings.Repeat("█", filled)))
	}
	if empty := vizBarWidth - filled; empty > 0 {
		builder.WriteString(vizBarEmptyStyle.Render(strings.Repeat("░", empty)))
	}
	builder.WriteString("] ")
	builder.WriteString(vizMetricValueStyle.Render(fmt.Sprintf("%3.0f%%", clamped*100)))

	return builder.String()
}

func (m *visualizerModel) invokeExit() {
	m.exitOnce.Do(func() {
		if m.onExit != nil {
			m.onExit()
		}
	})
}
