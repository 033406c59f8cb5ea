// Package chat provides the interactive TUI for the fast3r assistant.
package chat

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"fast3r/cmd/fast3r/ui"
	"fast3r/internal/assistant"
	"fast3r/internal/logging"
	"fast3r/internal/media"
	"fast3r/internal/types"
	"fast3r/internal/usage"
)

// =============================================================================
// CONFIGURATION
// =============================================================================

// Config holds what the chat interface drives.
type Config struct {
	Session *assistant.Session
	// Media resolves blob: handles for /save.
	Media *media.Store
	Usage *usage.Tracker
	// RequestTimeout bounds one submission; zero means none. Video requests
	// are bounded by the poller instead.
	RequestTimeout time.Duration
}

// =============================================================================
// MESSAGES
// =============================================================================

// replyMsg carries the assistant reply for a finished submission.
type replyMsg struct {
	reply types.Message
	err   error
}

// transcriptMsg carries a push-to-talk transcript destined for the input draft.
type transcriptMsg struct {
	text string
	err  error
}

// =============================================================================
// MODEL
// =============================================================================

// Model is the bubbletea model for the chat interface.
type Model struct {
	textarea textarea.Model
	viewport viewport.Model
	spinner  spinner.Model
	styles   ui.Styles
	renderer *glamour.TermRenderer

	cfg     Config
	session *assistant.Session
	// ctx parents every request; cancel fires on quit.
	ctx    context.Context
	cancel context.CancelFunc

	// attached is sent with the next submission (set by /attach).
	attached     *types.Attachment
	attachedName string

	extendedReasoning bool
	isLoading         bool
	isRecording       bool
	statusMessage     string
	localNotice       string
	err               error

	width  int
	height int
	ready  bool
}

// New creates the chat model.
func New(cfg Config) Model {
	return newModel(context.Background(), cfg)
}

func newModel(ctx context.Context, cfg Config) Model {
	ctx, cancel := context.WithCancel(ctx)
	ta := textarea.New()
	ta.Placeholder = "Ask anything, /image <prompt>, /video <prompt>, /help"
	ta.Focus()
	ta.Prompt = "┃ "
	ta.CharLimit = 4000
	ta.SetHeight(3)
	ta.ShowLineNumbers = false
	ta.KeyMap.InsertNewline.SetEnabled(false)

	styles := ui.DefaultStyles()
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styles.Spinner

	return Model{
		textarea: ta,
		spinner:  sp,
		styles:   styles,
		cfg:      cfg,
		session:  cfg.Session,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// quit cancels outstanding requests and stops the program.
func (m Model) quit() tea.Cmd {
	m.cancel()
	return tea.Quit
}

// Init starts the cursor blink and spinner.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.spinner.Tick)
}

// shutdownGrace bounds how long Run waits for a cancelled request to return.
const shutdownGrace = 5 * time.Second

// Run starts the program and blocks until the user quits. Any request still
// in flight is cancelled and has returned by the time Run does, so callers
// may close what the session writes to.
func Run(ctx context.Context, cfg Config) error {
	m := newModel(ctx, cfg)
	defer m.cancel()

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if err != nil {
		logging.Get(logging.CategorySession).Error("chat UI exited: %v", err)
	}

	m.cancel()
	closeCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if cerr := cfg.Session.Close(closeCtx); cerr != nil {
		logging.Get(logging.CategorySession).Warn("chat shutdown: %v", cerr)
	}
	return err
}

// =============================================================================
// ASYNC COMMANDS
// =============================================================================

func (m Model) requestContext(capability string) (context.Context, context.CancelFunc) {
	if m.cfg.RequestTimeout > 0 && capability != string(types.CapabilityGenerateVideo) {
		return context.WithTimeout(m.ctx, m.cfg.RequestTimeout)
	}
	return context.WithCancel(m.ctx)
}

func (m Model) sendCmd(req assistant.Request, capability string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := m.requestContext(capability)
		defer cancel()
		reply, err := m.session.Send(ctx, req)
		return replyMsg{reply: reply, err: err}
	}
}

func (m Model) uploadCmd(img types.Attachment, caption string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := m.requestContext("upload")
		defer cancel()
		reply, err := m.session.UploadImage(ctx, img, caption)
		return replyMsg{reply: reply, err: err}
	}
}

func (m Model) stopRecordingCmd() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := m.requestContext("transcribe")
		defer cancel()
		text, err := m.session.StopRecording(ctx)
		return transcriptMsg{text: text, err: err}
	}
}
