package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/fwojciec/murmur"
	"github.com/fwojciec/murmur/capture"
	"github.com/fwojciec/murmur/chat"
	"github.com/fwojciec/murmur/content"
	"github.com/fwojciec/murmur/fsx"
	"github.com/fwojciec/murmur/markdown"
	"github.com/fwojciec/murmur/store"
	"github.com/mattn/go-runewidth"
)

var _ tea.Model = Model{}

// Config carries presentation-only wiring for the TUI.
type Config struct {
	SessionID  string
	ServerURL  string
	AttachBase string // base directory for /attach globs
}

// entry is one rendered transcript item. Assistant entries accumulate
// text as deltas arrive; pending entries are provisional until their
// committed event lands.
type entry struct {
	role    murmur.Role
	text    string
	parts   []murmur.Part
	pending bool
}

// Model is the Bubble Tea model for the murmur TUI.
type Model struct {
	// Input is the text input component. Exported for test access.
	Input textinput.Model
	// Viewport is the scrollable output area. Exported for test access.
	Viewport viewport.Model

	send   SendFunc
	orch   *chat.Orchestrator
	rec    *capture.Recorder
	store  *store.Store
	events <-chan chat.TurnEvent
	theme  murmur.Theme
	styles Styles
	cfg    Config

	sessionID string
	entries   []entry
	status    string // transient stream status indicator
	notice    string // one-shot local notice (alerts, command feedback)
	sending   bool
	cancel    context.CancelFunc
	ready     bool
}

// New creates a TUI Model. The events channel must be fed by the
// orchestrator's event handler.
func New(send SendFunc, orch *chat.Orchestrator, rec *capture.Recorder, st *store.Store, events <-chan chat.TurnEvent, theme murmur.Theme, cfg Config) Model {
	ti := textinput.New()
	ti.Placeholder = "Type a message, /attach, /rec..."
	ti.Prompt = ""
	ti.Focus()
	ti.CharLimit = 0

	m := Model{
		Input:     ti,
		send:      send,
		orch:      orch,
		rec:       rec,
		store:     st,
		events:    events,
		theme:     theme,
		styles:    NewStyles(theme),
		cfg:       cfg,
		sessionID: cfg.SessionID,
	}
	return m.loadSession()
}

// loadSession rebuilds the transcript from the store.
func (m Model) loadSession() Model {
	m.entries = nil
	for _, msg := range m.store.Messages(m.sessionID) {
		m.entries = append(m.entries, entry{
			role:  msg.Role,
			text:  msg.Text(),
			parts: msg.Parts,
		})
	}
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, listenForEvent(m.events))
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.handleWindowSize(msg), nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case TurnEventMsg:
		m = m.processEvent(msg.Event)
		m.Viewport.SetContent(m.renderContent())
		m.Viewport.GotoBottom()
		return m, listenForEvent(m.events)

	case TurnDoneMsg:
		m.sending = false
		m.cancel = nil
		m.status = ""
		if msg.Err != nil {
			m.notice = msg.Err.Error()
		}
		cmd := m.Input.Focus()
		return m, cmd
	}

	var cmds []tea.Cmd
	var cmd tea.Cmd
	m.Viewport, cmd = m.Viewport.Update(msg)
	cmds = append(cmds, cmd)
	if !m.sending {
		m.Input, cmd = m.Input.Update(msg)
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}
	var b strings.Builder
	b.WriteString(m.Viewport.View())
	b.WriteString("\n")
	b.WriteString(m.statusLine())
	b.WriteString("\n")
	b.WriteString(m.Input.View())
	return b.String()
}

func (m Model) handleWindowSize(msg tea.WindowSizeMsg) Model {
	vpHeight := msg.Height - 3 // status line, input, spacing
	if vpHeight < 1 {
		vpHeight = 1
	}
	if !m.ready {
		m.Viewport = viewport.New(msg.Width, vpHeight)
		m.ready = true
	} else {
		m.Viewport.Width = msg.Width
		m.Viewport.Height = vpHeight
	}
	m.Viewport.SetContent(m.renderContent())
	m.Viewport.GotoBottom()
	m.Input.Width = msg.Width
	return m
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		if m.sending {
			if m.cancel != nil {
				m.cancel()
			}
			return m, nil
		}
		return m, tea.Quit

	case tea.KeyEnter:
		if m.sending {
			return m, nil
		}
		line := strings.TrimSpace(m.Input.Value())
		if line == "" {
			return m, nil
		}
		m.Input.SetValue("")
		m.notice = ""
		if strings.HasPrefix(line, "/") {
			return m.handleCommand(line)
		}
		return m.submitTurn(line)
	}

	if !m.sending {
		var cmd tea.Cmd
		var cmds []tea.Cmd
		if msg.Type != tea.KeyRunes {
			m.Viewport, cmd = m.Viewport.Update(msg)
			cmds = append(cmds, cmd)
		}
		m.Input, cmd = m.Input.Update(msg)
		cmds = append(cmds, cmd)
		return m, tea.Batch(cmds...)
	}
	return m, nil
}

// handleCommand runs a local slash command. None of these touch the
// backend; they only mutate pending capture and attachment state.
func (m Model) handleCommand(line string) (tea.Model, tea.Cmd) {
	cmd, arg, _ := strings.Cut(line, " ")
	switch cmd {
	case "/attach":
		attachments, err := fsx.Resolve(m.cfg.AttachBase, strings.TrimSpace(arg))
		if err != nil {
			m.notice = err.Error()
			return m, nil
		}
		for _, a := range attachments {
			m.orch.AddAttachment(a)
		}
		m.notice = fmt.Sprintf("attached %d file(s)", len(attachments))

	case "/rec":
		if err := m.rec.Start(context.Background()); err != nil {
			m.notice = err.Error()
			return m, nil
		}
		m.notice = "recording... /stop to finish"

	case "/stop":
		if err := m.rec.Stop(); err != nil {
			m.notice = err.Error()
			return m, nil
		}
		m.notice = "clip ready: /use to attach, /drop to discard"

	case "/use":
		a, err := m.rec.Attach()
		if err != nil {
			m.notice = err.Error()
			return m, nil
		}
		m.orch.AddAttachment(a)
		m.notice = "attached " + a.Name

	case "/drop":
		if err := m.rec.Discard(); err != nil {
			m.notice = err.Error()
			return m, nil
		}
		m.notice = "clip discarded"

	case "/new":
		// Switching sessions releases pending transient handles; an
		// in-flight stream is left to finalize into its own session.
		m.orch.DiscardAttachments()
		m.sessionID = murmur.NewID()
		m = m.loadSession()
		m.Viewport.SetContent(m.renderContent())
		m.notice = "new session"

	default:
		m.notice = "unknown command: " + cmd
	}
	return m, nil
}

func (m Model) submitTurn(text string) (tea.Model, tea.Cmd) {
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.sending = true
	m.Input.Blur()

	send, sessionID := m.send, m.sessionID
	return m, func() tea.Msg {
		return TurnDoneMsg{Err: send(ctx, sessionID, text)}
	}
}

// processEvent folds one lifecycle event into the transcript. Events
// for other sessions are dropped: their history is already correct in
// the store and renders when that session is revisited.
func (m Model) processEvent(evt chat.TurnEvent) Model {
	switch e := evt.(type) {
	case chat.UserPending:
		if e.SessionID != m.sessionID {
			return m
		}
		parts := make([]murmur.Part, 0, len(e.Attachments))
		for _, a := range e.Attachments {
			parts = append(parts, murmur.TextPart{Text: a.Name})
		}
		m.entries = append(m.entries, entry{role: murmur.RoleUser, text: e.Text, parts: parts, pending: true})

	case chat.UserCommitted:
		if e.SessionID != m.sessionID {
			return m
		}
		if i := m.lastPending(murmur.RoleUser); i >= 0 {
			m.entries[i] = entry{role: murmur.RoleUser, text: e.Message.Text(), parts: e.Message.Parts}
		}

	case chat.TurnAborted:
		if e.SessionID != m.sessionID {
			return m
		}
		if i := m.lastPending(murmur.RoleUser); i >= 0 {
			m.entries = append(m.entries[:i], m.entries[i+1:]...)
		}
		m.notice = e.Err.Error()

	case chat.AssistantStarted:
		if e.SessionID != m.sessionID {
			return m
		}
		m.entries = append(m.entries, entry{role: murmur.RoleAssistant, pending: true})

	case chat.AssistantDelta:
		if e.SessionID != m.sessionID {
			return m
		}
		if i := m.lastPending(murmur.RoleAssistant); i >= 0 {
			m.entries[i].text += e.Delta
		}

	case chat.AssistantStatus:
		if e.SessionID != m.sessionID {
			return m
		}
		m.status = e.Label

	case chat.AssistantFinal:
		if e.SessionID != m.sessionID {
			return m
		}
		if i := m.lastPending(murmur.RoleAssistant); i >= 0 {
			m.entries[i] = entry{role: murmur.RoleAssistant, text: e.Message.Text(), parts: e.Message.Parts}
		}
		m.status = ""
	}
	return m
}

func (m Model) lastPending(role murmur.Role) int {
	for i := len(m.entries) - 1; i >= 0; i-- {
		if m.entries[i].role == role && m.entries[i].pending {
			return i
		}
	}
	return -1
}

func (m Model) renderContent() string {
	var b strings.Builder
	for i, e := range m.entries {
		if i > 0 {
			b.WriteString("\n\n")
		}
		switch e.role {
		case murmur.RoleUser:
			b.WriteString(m.styles.UserMsg.Render("> " + e.text))
			for _, chip := range m.attachmentChips(e) {
				b.WriteString("\n")
				b.WriteString(m.styles.Attachment.Render(chip))
			}
		case murmur.RoleAssistant:
			b.WriteString(markdown.Render(e.text, m.Viewport.Width, m.theme))
		}
	}
	return b.String()
}

// attachmentChips labels a message's media parts for the transcript.
// Unsupported parts render as such instead of breaking history.
func (m Model) attachmentChips(e entry) []string {
	var chips []string
	for _, p := range e.parts {
		if e.pending {
			if tp, ok := p.(murmur.TextPart); ok {
				chips = append(chips, "[pending: "+tp.Text+"]")
			}
			continue
		}
		switch content.DecodeForDisplay(p).Kind {
		case content.KindImage:
			chips = append(chips, "[image]")
		case content.KindAudio:
			chips = append(chips, "[audio]")
		case content.KindUnsupported:
			if _, ok := p.(murmur.TextPart); !ok {
				chips = append(chips, "[unsupported]")
			}
		}
	}
	return chips
}

// statusLine builds the one-line indicator bar. Truncation happens on
// the plain text, before styling, so it never cuts an escape sequence.
func (m Model) statusLine() string {
	var suffix, suffixStyled string
	if n := len(m.orch.PendingAttachments()); n > 0 {
		chip := fmt.Sprintf("  [%d attachment(s) pending]", n)
		suffix += chip
		suffixStyled += m.styles.Attachment.Render(chip)
	}
	if m.rec != nil && m.rec.State() == capture.StateRecording {
		dot := "  ● rec"
		suffix += dot
		suffixStyled += m.styles.Error.Render(dot)
	}

	var text string
	var style lipgloss.Style
	switch {
	case m.notice != "":
		text, style = m.notice, m.styles.Error
	case m.status != "":
		text, style = m.status, m.styles.Status
	case m.sending:
		text, style = "Waiting for reply...", m.styles.Muted
	default:
		text, style = "Enter to send, /attach, /rec, /new, Ctrl+C to quit", m.styles.Muted
	}

	avail := maxStatusWidth(m.Viewport.Width) - runewidth.StringWidth(suffix)
	if avail < 0 {
		avail = 0
	}
	return style.Render(runewidth.Truncate(text, avail, "…")) + suffixStyled
}

func maxStatusWidth(w int) int {
	if w <= 0 {
		return 80
	}
	return w
}

// listenForEvent waits for the next orchestrator lifecycle event.
func listenForEvent(ch <-chan chat.TurnEvent) tea.Cmd {
	return func() tea.Msg {
		return TurnEventMsg{Event: <-ch}
	}
}
