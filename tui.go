package main

import (
	"fmt"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// TUI message types
type RecordingStartMsg struct{}
type RecordingStopMsg struct{}
type LevelMsg struct {
	Volume   float64
	Speaking bool
}
type PreviewMsg struct{ Text string }
type ExchangeMsg struct {
	Role   string // "you" or "ai"
	Text   string
	Copied bool
}
type ThinkingMsg struct{}
type StatusMsg struct{ Text string }
type DeviceLineMsg struct{ Text string }
type tickMsg time.Time

type tuiState int

const (
	tuiStateIdle tuiState = iota
	tuiStateRecording
	tuiStateThinking
)

type exchange struct {
	role   string
	text   string
	copied bool
}

type tuiModel struct {
	state          tuiState
	frame          int
	recordingStart time.Time
	volume         float64 // smoothed amplitude, 0..1
	peak           float64
	speaking       bool
	preview        string // live transcript while recording
	history        []exchange
	deviceLine     string
	status         string
	width, height  int
}

var (
	tuiProgram   *tea.Program
	tuiMu        sync.Mutex
	tuiReady     = make(chan struct{})
	tuiReadyOnce sync.Once
)

// recordToggleChan carries keypresses from the TUI to the main loop.
var recordToggleChan = make(chan struct{}, 1)

var (
	styleRec      = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	styleThinking = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	styleStandby  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	stylePreview  = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
	styleYou      = lipgloss.NewStyle().Foreground(lipgloss.Color("6")).Bold(true)
	styleAI       = lipgloss.NewStyle().Foreground(lipgloss.Color("255"))
	styleCopied   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	styleStatus   = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	styleDim      = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	styleHelp     = lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
	styleHelpKey  = lipgloss.NewStyle().Foreground(lipgloss.Color("239")).Bold(true)
	styleMeterOn  = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	styleMeterHot = lipgloss.NewStyle().Foreground(lipgloss.Color("226"))
	styleMeterOff = lipgloss.NewStyle().Foreground(lipgloss.Color("236"))
)

func NewTUIProgram() *tea.Program {
	m := tuiModel{}
	return tea.NewProgram(m, tea.WithAltScreen())
}

func tuiSend(msg tea.Msg) {
	tuiMu.Lock()
	p := tuiProgram
	tuiMu.Unlock()
	if p != nil {
		p.Send(msg)
	}
}

func tuiTick() tea.Cmd {
	return tea.Tick(60*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m tuiModel) Init() tea.Cmd {
	tuiReadyOnce.Do(func() { close(tuiReady) })
	return tuiTick()
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case " ", "enter":
			select {
			case recordToggleChan <- struct{}{}:
			default:
			}
		}

	case tickMsg:
		m.frame++
		return m, tuiTick()

	case RecordingStartMsg:
		m.state = tuiStateRecording
		m.recordingStart = time.Now()
		m.volume = 0
		m.peak = 0
		m.speaking = false
		m.preview = ""
		m.status = ""

	case RecordingStopMsg:
		if m.state == tuiStateRecording {
			m.state = tuiStateIdle
		}
		m.volume = 0
		m.speaking = false
		m.preview = ""

	case ThinkingMsg:
		m.state = tuiStateThinking

	case LevelMsg:
		if m.state == tuiStateRecording {
			m.volume = m.volume*0.6 + msg.Volume*0.4
			m.speaking = msg.Speaking
			if msg.Volume > m.peak {
				m.peak = msg.Volume
			}
		}

	case PreviewMsg:
		m.preview = msg.Text

	case ExchangeMsg:
		m.history = append(m.history, exchange{role: msg.Role, text: msg.Text, copied: msg.Copied})
		if msg.Role == "ai" && m.state == tuiStateThinking {
			m.state = tuiStateIdle
		}

	case StatusMsg:
		m.status = msg.Text
		if m.state == tuiStateThinking {
			m.state = tuiStateIdle
		}

	case DeviceLineMsg:
		m.deviceLine = msg.Text
	}
	return m, nil
}

const meterWidth = 30

func renderMeter(volume float64, speaking bool) string {
	filled := int(volume * meterWidth)
	if filled > meterWidth {
		filled = meterWidth
	}
	var b strings.Builder
	for i := 0; i < meterWidth; i++ {
		switch {
		case i >= filled:
			b.WriteString(styleMeterOff.Render("─"))
		case speaking:
			b.WriteString(styleMeterHot.Render("█"))
		default:
			b.WriteString(styleMeterOn.Render("█"))
		}
	}
	return b.String()
}

func (m tuiModel) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	wrapWidth := m.width - 6
	if wrapWidth < 20 {
		wrapWidth = 20
	}

	var lines []string
	lines = append(lines, styleDim.Render("parley "+version))
	if m.deviceLine != "" {
		lines = append(lines, styleDim.Render(m.deviceLine))
	}
	lines = append(lines, "")

	switch m.state {
	case tuiStateRecording:
		elapsed := time.Since(m.recordingStart).Seconds()
		lines = append(lines, styleRec.Render(fmt.Sprintf("● REC %.1fs", elapsed))+"  "+renderMeter(m.volume, m.speaking))
		if elapsed > 1.5 && m.peak < 0.02 {
			lines = append(lines, styleStatus.Render("  no voice detected"))
		}
		if m.preview != "" {
			for _, l := range wrapText(m.preview, wrapWidth) {
				lines = append(lines, stylePreview.Render("  "+l))
			}
		}
	case tuiStateThinking:
		dots := strings.Repeat(".", m.frame/8%4)
		lines = append(lines, styleThinking.Render("◌ thinking"+dots))
	default:
		lines = append(lines, styleStandby.Render("○ STANDBY"))
	}

	if m.status != "" {
		lines = append(lines, styleStatus.Render(m.status))
	}
	lines = append(lines, "")

	// Conversation, newest at the bottom. Trim from the top to fit.
	var convo []string
	for _, ex := range m.history {
		prefix := styleYou.Render("you ")
		style := styleDim
		if ex.role == "ai" {
			prefix = styleYou.Render(" ai ")
			style = styleAI
		}
		wrapped := wrapText(ex.text, wrapWidth)
		for i, l := range wrapped {
			rendered := "    " + style.Render(l)
			if i == 0 {
				rendered = prefix + style.Render(l)
			}
			if i == len(wrapped)-1 && ex.copied {
				rendered += " " + styleCopied.Render("[✓ copied]")
			}
			convo = append(convo, rendered)
		}
		convo = append(convo, "")
	}
	avail := m.height - len(lines) - 2
	if avail < 0 {
		avail = 0
	}
	if len(convo) > avail {
		convo = convo[len(convo)-avail:]
	}
	lines = append(lines, convo...)

	help := styleHelpKey.Render("space") + styleHelp.Render(" to talk  ") +
		styleHelpKey.Render("ctrl+c") + styleHelp.Render(" to quit")
	lines = append(lines, help)

	return strings.Join(lines, "\n")
}

func wrapText(text string, width int) []string {
	if len(text) == 0 {
		return []string{""}
	}
	if width <= 0 {
		width = 1
	}

	var lines []string
	for len(text) > width {
		splitAt := width
		for i := width; i > 0; i-- {
			if text[i] == ' ' {
				splitAt = i
				break
			}
		}
		lines = append(lines, text[:splitAt])
		text = strings.TrimLeft(text[splitAt:], " ")
	}
	if len(text) > 0 {
		lines = append(lines, text)
	}
	return lines
}
