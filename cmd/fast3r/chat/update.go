package chat

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"fast3r/internal/assistant"
	"fast3r/internal/perception"
)

const (
	headerHeight = 1
	footerHeight = 2
)

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		tiCmd tea.Cmd
		vpCmd tea.Cmd
		spCmd tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, m.quit()

		case tea.KeyCtrlT:
			m.extendedReasoning = !m.extendedReasoning
			m.statusMessage = fmt.Sprintf("Extended reasoning: %s", onOff(m.extendedReasoning))
			return m, nil

		case tea.KeyCtrlR:
			return m.toggleRecording()

		case tea.KeyEnter:
			return m.submit()
		}

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		vpHeight := msg.Height - headerHeight - footerHeight - m.textarea.Height() - 2
		if vpHeight < 3 {
			vpHeight = 3
		}
		if !m.ready {
			m.viewport = viewport.New(msg.Width, vpHeight)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = vpHeight
		}
		m.textarea.SetWidth(msg.Width - 2)
		m.renderer, _ = glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(msg.Width-4),
		)
		m.refreshHistory()
		return m, nil

	case replyMsg:
		m.isLoading = false
		switch {
		case errors.Is(msg.err, assistant.ErrBusy):
			m.statusMessage = "Still working on the previous request"
		case msg.err != nil:
			m.err = msg.err
		default:
			m.statusMessage = ""
		}
		m.refreshHistory()
		return m, nil

	case transcriptMsg:
		m.isLoading = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		// Draft only; the user reviews and sends it.
		m.textarea.SetValue(msg.text)
		m.textarea.CursorEnd()
		m.statusMessage = "Transcript ready, press Enter to send"
		return m, nil

	case spinner.TickMsg:
		m.spinner, spCmd = m.spinner.Update(msg)
		return m, spCmd
	}

	m.textarea, tiCmd = m.textarea.Update(msg)
	m.viewport, vpCmd = m.viewport.Update(msg)
	return m, tea.Batch(tiCmd, vpCmd)
}

// submit handles Enter: local commands run immediately, everything else is
// sent to the session in the background.
func (m Model) submit() (tea.Model, tea.Cmd) {
	input := strings.TrimSpace(m.textarea.Value())
	if input == "" && m.attached == nil {
		return m, nil
	}
	if m.isLoading {
		m.statusMessage = "Still working on the previous request"
		return m, nil
	}
	m.err = nil
	m.localNotice = ""

	if handled, cmd := m.handleLocalCommand(input); handled {
		m.textarea.Reset()
		m.refreshHistory()
		return m, cmd
	}

	req := assistant.Request{Text: input, UseExtendedReasoning: m.extendedReasoning, Image: m.attached}
	capability := string(perception.Classify(perception.Input{Text: input, HasAttachedImage: m.attached != nil}).Capability)
	m.attached, m.attachedName = nil, ""
	m.textarea.Reset()
	m.isLoading = true
	m.statusMessage = loadingStatus(capability)
	return m, tea.Batch(m.sendCmd(req, capability), m.spinner.Tick)
}

func (m Model) toggleRecording() (tea.Model, tea.Cmd) {
	if m.isLoading {
		return m, nil
	}
	if !m.isRecording {
		if err := m.session.StartRecording(m.ctx); err != nil {
			m.err = err
			return m, nil
		}
		m.isRecording = true
		m.statusMessage = "Recording... press Ctrl+R to stop"
		return m, nil
	}
	m.isRecording = false
	m.isLoading = true
	m.statusMessage = "Transcribing..."
	return m, tea.Batch(m.stopRecordingCmd(), m.spinner.Tick)
}

func (m *Model) refreshHistory() {
	if !m.ready {
		return
	}
	m.viewport.SetContent(m.renderHistory())
	m.viewport.GotoBottom()
}

func loadingStatus(capability string) string {
	switch capability {
	case "generate_image", "edit_image":
		return "Generating image..."
	case "generate_video":
		return "Generating video, this can take a few minutes..."
	case "analyze_image":
		return "Analyzing image..."
	}
	return "Thinking..."
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
