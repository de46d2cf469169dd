package main

import (
	"fmt"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/LivingInDrm/voice-assistant/config"
	"github.com/LivingInDrm/voice-assistant/model"
	"github.com/LivingInDrm/voice-assistant/pipeline"
	"github.com/LivingInDrm/voice-assistant/transcriber"
	"github.com/LivingInDrm/voice-assistant/translator"
)

// TUI message types
type StatusMsg struct{ Text string }
type PhaseMsg struct{ Phase pipeline.Phase }
type AudioLevelMsg struct{ Level float64 }
type RecordEnabledMsg struct{ Enabled bool }
type ModelsMsg struct{ States map[string]model.Availability }
type TranscriptionMsg struct{ Result transcriber.Result }
type TranslationPartialMsg struct{ Text string }
type TranslationMsg struct{ Result translator.Result }
type ShowWindowMsg struct{}
type tickMsg time.Time

// tuiSink bridges pipeline events onto the bubbletea message loop. The
// program pointer is attached after construction because the pipeline
// needs the sink before the program exists.
type tuiSink struct {
	mu sync.Mutex
	p  *tea.Program
}

func (s *tuiSink) attach(p *tea.Program) {
	s.mu.Lock()
	s.p = p
	s.mu.Unlock()
}

func (s *tuiSink) send(msg tea.Msg) {
	s.mu.Lock()
	p := s.p
	s.mu.Unlock()
	if p != nil {
		p.Send(msg)
	}
}

func (s *tuiSink) Status(text string) { s.send(StatusMsg{Text: text}) }
func (s *tuiSink) Phase(p pipeline.Phase) { s.send(PhaseMsg{Phase: p}) }
func (s *tuiSink) Volume(level float64) { s.send(AudioLevelMsg{Level: level}) }
func (s *tuiSink) RecordEnabled(enabled bool) { s.send(RecordEnabledMsg{Enabled: enabled}) }
func (s *tuiSink) TranslationPartial(text string) { s.send(TranslationPartialMsg{Text: text}) }

func (s *tuiSink) ModelAvailability(states map[string]model.Availability) {
	s.send(ModelsMsg{States: states})
}

func (s *tuiSink) Transcription(res transcriber.Result) {
	s.send(TranscriptionMsg{Result: res})
}

func (s *tuiSink) Translation(res translator.Result) {
	s.send(TranslationMsg{Result: res})
}

type tuiModel struct {
	orch *pipeline.Orchestrator

	width, height int
	frame         int

	phase         pipeline.Phase
	audioLevel    float64
	peakLevel     float64
	status        string
	recordEnabled bool
	models        map[string]model.Availability
	selected      string
	translationOn bool
	targetLang    string

	msgCount        int
	lastResult      transcriber.Result
	haveTranscript  bool
	partial         string
	lastTranslation translator.Result
	haveTranslation bool
}

func newTUIModel(orch *pipeline.Orchestrator, cfg config.Config) tuiModel {
	return tuiModel{
		orch:          orch,
		recordEnabled: true,
		selected:      cfg.Model,
		translationOn: cfg.Translation.Enabled,
		targetLang:    cfg.Translation.TargetLanguage,
	}
}

func tuiTick() tea.Cmd {
	return tea.Tick(80*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m tuiModel) Init() tea.Cmd {
	return tuiTick()
}

// nextModel cycles through the catalog in declaration order.
func nextModel(current string) string {
	catalog := model.Catalog()
	for i, d := range catalog {
		if d.ID == current {
			return catalog[(i+1)%len(catalog)].ID
		}
	}
	return catalog[0].ID
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
		case "r", "enter", " ":
			m.orch.ToggleRecording()
		case "m":
			m.selected = nextModel(m.selected)
			m.orch.SelectModel(m.selected)
		case "t":
			m.translationOn = !m.translationOn
			m.orch.SetTranslation(m.translationOn)
		case "s":
			m.orch.SettingsChanged()
		}

	case tickMsg:
		m.frame++
		return m, tuiTick()

	case PhaseMsg:
		m.phase = msg.Phase
		if msg.Phase == pipeline.Recording {
			m.audioLevel = 0
			m.peakLevel = 0
		}
		if msg.Phase == pipeline.Idle {
			m.audioLevel = 0
		}

	case AudioLevelMsg:
		if m.phase == pipeline.Recording {
			m.audioLevel = m.audioLevel*0.6 + msg.Level*0.4
			if msg.Level > m.peakLevel {
				m.peakLevel = msg.Level
			}
		}

	case StatusMsg:
		m.status = msg.Text

	case RecordEnabledMsg:
		m.recordEnabled = msg.Enabled

	case ModelsMsg:
		m.models = msg.States

	case TranscriptionMsg:
		m.msgCount++
		m.lastResult = msg.Result
		m.haveTranscript = true
		m.partial = ""
		m.haveTranslation = false

	case TranslationPartialMsg:
		m.partial += msg.Text

	case TranslationMsg:
		m.lastTranslation = msg.Result
		m.haveTranslation = true
		m.partial = ""

	case ShowWindowMsg:
		// Already visible in the terminal; nothing to raise.
	}
	return m, nil
}

var (
	recStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	busyStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	idleStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	statusStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	disabledStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	titleStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("246"))
	textStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
	partialStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("243")).Italic(true)
	transStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	metricsStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
	helpStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
	helpBoldStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("239")).Bold(true)
	barStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
	peakStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

func renderVolumeBar(level, peak float64, width int) string {
	if width < 4 {
		width = 4
	}
	filled := int(level * float64(width))
	if filled > width {
		filled = width
	}
	peakPos := int(peak * float64(width))
	if peakPos >= width {
		peakPos = width - 1
	}

	var b strings.Builder
	for i := 0; i < width; i++ {
		switch {
		case i < filled:
			b.WriteString(barStyle.Render("━"))
		case i == peakPos && peak > 0:
			b.WriteString(peakStyle.Render("┃"))
		default:
			b.WriteString(idleStyle.Render("─"))
		}
	}
	return b.String()
}

func availabilityMark(a model.Availability) string {
	switch a {
	case model.Ready:
		return transStyle.Render("●")
	case model.Downloading:
		return busyStyle.Render("◐")
	default:
		return idleStyle.Render("○")
	}
}

func (m tuiModel) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	const leftWidth = 34

	var left []string

	switch m.phase {
	case pipeline.Recording:
		left = append(left, recStyle.Render("● REC"))
		left = append(left, renderVolumeBar(m.audioLevel, m.peakLevel, leftWidth-4))
	case pipeline.Transcribing:
		spin := spinnerFrames[m.frame%len(spinnerFrames)]
		left = append(left, busyStyle.Render(spin+" TRANSCRIBING"))
		left = append(left, "")
	default:
		if m.recordEnabled {
			left = append(left, idleStyle.Render("○ STANDBY"))
		} else {
			left = append(left, disabledStyle.Render("○ STANDBY (recording disabled)"))
		}
		left = append(left, "")
	}
	left = append(left, "")

	if m.status != "" {
		for _, line := range wrapText(m.status, leftWidth-2) {
			left = append(left, statusStyle.Render(line))
		}
		left = append(left, "")
	}

	left = append(left, titleStyle.Render("Models"))
	for _, d := range model.Catalog() {
		mark := availabilityMark(m.models[d.ID])
		name := d.ID
		if d.ID == m.selected {
			name = "▶ " + name
		} else {
			name = "  " + name
		}
		left = append(left, fmt.Sprintf("%s %s", mark, idleStyle.Render(name)))
	}
	left = append(left, "")

	if m.translationOn {
		left = append(left, statusStyle.Render("Translation: on → "+m.targetLang))
	} else {
		left = append(left, idleStyle.Render("Translation: off"))
	}
	left = append(left, "")

	left = append(left,
		helpBoldStyle.Render("Ctrl+Shift+Space")+helpStyle.Render(" record"),
		helpStyle.Render("m model · t translation · q quit"),
		helpStyle.Render("voice-assistant "+version),
	)

	rightWidth := m.width - leftWidth - 1
	if rightWidth < 20 {
		rightWidth = 20
	}
	wrapWidth := rightWidth - 2
	if wrapWidth < 10 {
		wrapWidth = 10
	}

	var right strings.Builder
	if m.haveTranscript {
		right.WriteString(titleStyle.Render(fmt.Sprintf("Last transcription (#%d)", m.msgCount)) + "\n\n")
		for _, line := range wrapText(m.lastResult.Text, wrapWidth) {
			right.WriteString(textStyle.Render(line) + "\n")
		}
		right.WriteString("\n")
		right.WriteString(metricsStyle.Render(fmt.Sprintf("%.1fs audio · %.1fs processing · lang %s",
			m.lastResult.AudioDuration.Seconds(),
			m.lastResult.ProcessingDuration.Seconds(),
			m.lastResult.Language)) + "\n")

		if m.partial != "" {
			right.WriteString("\n" + titleStyle.Render("Translation") + "\n\n")
			for _, line := range wrapText(m.partial, wrapWidth) {
				right.WriteString(partialStyle.Render(line) + "\n")
			}
		} else if m.haveTranslation {
			right.WriteString("\n" + titleStyle.Render("Translation ("+m.lastTranslation.Provider+")") + "\n\n")
			for _, line := range wrapText(m.lastTranslation.TranslatedText, wrapWidth) {
				right.WriteString(transStyle.Render(line) + "\n")
			}
		}
	} else {
		right.WriteString(idleStyle.Render("No transcriptions yet"))
	}

	leftPanel := lipgloss.NewStyle().
		Width(leftWidth).
		Height(m.height).
		PaddingLeft(1).
		Render(strings.Join(left, "\n"))

	rightPanel := lipgloss.NewStyle().
		Width(rightWidth).
		Height(m.height).
		PaddingLeft(1).
		Render(right.String())

	return lipgloss.JoinHorizontal(lipgloss.Top, leftPanel, rightPanel)
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
