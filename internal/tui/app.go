// Package tui provides the terminal user interface for Moji.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog/log"

	"github.com/xonecas/moji/internal/chat"
	"github.com/xonecas/moji/internal/constants"
)

// Pane is the pane that receives navigation keys.
type Pane int

const (
	PaneSidebar Pane = iota
	PaneChat
)

const (
	maxSidebarWidth = 28
	inputHeight     = 3 // bordered single line
)

// Model is the main TUI model.
type Model struct {
	ctx     context.Context
	session *chat.Session
	eventCh <-chan chat.Event

	width    int
	height   int
	focus    Pane
	showHelp bool

	entries     []chat.User
	selectedIdx int
	requests    []chat.User

	view         chat.View
	shape        chat.Shape
	contentLines int
	viewport     viewport.Model
	anchor       *chat.ScrollAnchor

	input InputModel
	conn  ConnIndicator

	notice        string
	noticeIsError bool
	noticeSeq     int
}

// EventMsg wraps an engine event for the TUI.
type EventMsg struct {
	Event chat.Event
}

type (
	startedMsg      struct{ err error }
	openedMsg       struct{ err error }
	olderLoadedMsg  struct {
		count int
		err   error
	}
	sentMsg     struct{ err error }
	requestsMsg struct {
		users []chat.User
		err   error
	}
	friendsChangedMsg struct{ err error }
	reconnectedMsg    struct{ err error }
	noticeExpiredMsg  struct{ seq int }
)

// New creates the TUI for session. eventCh must be subscribed to the
// session bus before the session starts so no state change is missed.
func New(ctx context.Context, session *chat.Session, eventCh <-chan chat.Event, scrollThreshold int) Model {
	conn := NewConnIndicator()
	conn.SetState(session.Conn.State())

	return Model{
		ctx:      ctx,
		session:  session,
		eventCh:  eventCh,
		focus:    PaneSidebar,
		entries:  session.Index.Entries(),
		viewport: viewport.New(0, 0),
		anchor:   chat.NewScrollAnchor(scrollThreshold),
		input:    NewInputModel(),
		conn:     conn,
	}
}

// Init starts the session and the background listeners.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.startSession(),
		m.loadRequests(),
		m.listenForEvents(),
		m.conn.Init(),
	)
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.input.SetWidth(msg.Width - 2)
		m.layout()
		return m, nil

	case tea.KeyMsg:
		if m.input.IsActive() {
			return m.handleInputKey(msg)
		}

		if key.Matches(msg, keys.Help) {
			m.showHelp = !m.showHelp
			return m, nil
		}
		if m.showHelp {
			m.showHelp = false
			return m, nil
		}

		if cmd, handled := m.handleGlobalKey(msg); handled {
			return m, cmd
		}

		if m.focus == PaneChat {
			return m.handleChatKey(msg)
		}
		return m.handleSidebarKey(msg)

	case EventMsg:
		cmd := m.handleEvent(msg.Event)
		return m, tea.Batch(cmd, m.listenForEvents())

	case startedMsg:
		if msg.err != nil {
			log.Warn().Err(msg.err).Msg("session start incomplete")
		}
		m.entries = m.session.Index.Entries()
		m.clampSelection()
		m.conn.SetState(m.session.Conn.State())
		if m.session.Conn.State() == chat.ConnDisconnected {
			return m, m.setNotice("Offline. Press 'r' to reconnect.", true)
		}
		return m, nil

	case openedMsg:
		// Opening is a full reset even for the conversation already on screen.
		m.anchor.Cancel()
		m.refreshView()
		m.viewport.GotoBottom()
		return m, nil

	case tea.MouseMsg:
		if m.showHelp || !m.view.Selected() {
			return m, nil
		}
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		if msg.Button == tea.MouseButtonWheelUp {
			return m, tea.Batch(cmd, m.maybeLoadOlder())
		}
		return m, cmd

	case olderLoadedMsg:
		if msg.count == 0 || msg.err != nil {
			m.anchor.Cancel()
		}
		m.refreshView()
		return m, nil

	case sentMsg:
		if msg.err != nil {
			return m, m.setNotice(sendErrorText(msg.err), true)
		}
		return m, nil

	case requestsMsg:
		if msg.err == nil {
			m.requests = msg.users
		}
		return m, nil

	case friendsChangedMsg:
		m.entries = m.session.Index.Entries()
		m.clampSelection()
		return m, m.loadRequests()

	case reconnectedMsg:
		if msg.err != nil {
			return m, m.setNotice(fmt.Sprintf("Reconnect failed: %v", msg.err), true)
		}
		return m, nil

	case noticeExpiredMsg:
		if msg.seq == m.noticeSeq {
			m.notice = ""
			m.noticeIsError = false
		}
		return m, nil

	case ConnIndicatorTickMsg:
		var cmd tea.Cmd
		m.conn, cmd = m.conn.Update(msg)
		return m, cmd
	}

	if m.input.IsActive() {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View renders the UI.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}
	if m.showHelp {
		return RenderHelp(m.width, m.height)
	}

	sidebarWidth, chatWidth, bodyHeight := m.dimensions()
	body := lipgloss.JoinHorizontal(lipgloss.Top,
		RenderSidebar(m.entries, m.selectedIdx, m.view.Partner.ID, len(m.requests), m.focus == PaneSidebar, sidebarWidth, bodyHeight),
		RenderChatPane(m.view, m.viewport, m.contentLines, m.focus == PaneChat, chatWidth, bodyHeight),
	)

	return lipgloss.JoinVertical(lipgloss.Left,
		renderHeader(m.session.Profile, m.width),
		body,
		m.input.ViewAlways(m.width, m.view.Selected()),
		renderStatusBar(m.conn.View(), m.notice, m.noticeIsError, m.width),
	)
}

// dimensions splits the screen between the sidebar and the chat pane.
func (m Model) dimensions() (sidebarWidth, chatWidth, bodyHeight int) {
	sidebarWidth = m.width / 3
	if sidebarWidth > maxSidebarWidth {
		sidebarWidth = maxSidebarWidth
	}
	chatWidth = m.width - sidebarWidth
	bodyHeight = m.height - 1 - inputHeight - 1 // header, input, status bar
	if bodyHeight < 5 {
		bodyHeight = 5
	}
	return sidebarWidth, chatWidth, bodyHeight
}

// layout sizes the viewport and re-renders its content.
func (m *Model) layout() {
	_, chatWidth, bodyHeight := m.dimensions()
	// Border on both sides, then a gap and the scrollbar.
	m.viewport.Width = chatWidth - 2 - 2
	// Border top and bottom, then the title line.
	m.viewport.Height = bodyHeight - 2 - 1
	if m.viewport.Width < 10 {
		m.viewport.Width = 10
	}
	if m.viewport.Height < 1 {
		m.viewport.Height = 1
	}

	atBottom := m.viewport.AtBottom()
	content, total := renderConversation(m.view, m.session.Profile, m.viewport.Width)
	m.viewport.SetContent(content)
	m.contentLines = total
	if atBottom {
		m.viewport.GotoBottom()
	}
}

// refreshView pulls a fresh snapshot of the open conversation. Offsets only
// move when the message sequence changes shape: an older page keeps the
// reader's place, anything else lands at the bottom.
func (m *Model) refreshView() {
	view := m.session.Messages.Snapshot()
	content, total := renderConversation(view, m.session.Profile, m.viewport.Width)
	shape := chat.ShapeOf(view.Messages)

	prev := m.shape
	switched := view.Partner.ID != m.view.Partner.ID

	m.view = view
	m.shape = shape
	m.contentLines = total
	m.viewport.SetContent(content)

	if switched {
		m.anchor.Cancel()
		m.viewport.GotoBottom()
		return
	}
	if !prev.Changed(shape) {
		return
	}
	// Messages that landed after the old tail while an older page is in
	// flight are not part of the prepend; the anchor absorbs their height.
	if m.anchor.Pending() && prev.Len > 0 {
		m.anchor.Extend(tailHeight(view, prev.LastID, m.session.Profile, m.viewport.Width))
		if prev.FirstID == shape.FirstID {
			return
		}
	}
	m.viewport.SetYOffset(m.anchor.Apply(m.viewport.YOffset, total, m.viewport.Height))
}

// maybeLoadOlder asks for older history when the reader nears the top.
func (m *Model) maybeLoadOlder() tea.Cmd {
	if !m.view.Selected() || !m.view.HasMore {
		return nil
	}
	busy := m.view.Loading || m.view.LoadingMore
	if !m.anchor.ShouldLoadOlder(m.viewport.YOffset, m.contentLines, busy, m.view.Loaded) {
		return nil
	}
	return m.loadOlder()
}

func (m *Model) handleEvent(event chat.Event) tea.Cmd {
	switch event.Type {
	case chat.EventConnState:
		if data, ok := event.Data.(chat.StateChangeData); ok {
			m.conn.SetState(data.NewState)
		}

	case chat.EventConnectionLost:
		m.conn.SetState(chat.ConnDisconnected)
		return m.setNotice("Connection lost. Press 'r' to reconnect.", true)

	case chat.EventHistoryLoaded, chat.EventOlderLoaded, chat.EventMessageAppended:
		m.refreshView()

	case chat.EventFetchFailed:
		m.anchor.Cancel()
		m.refreshView()
		if data, ok := event.Data.(chat.ErrorData); ok {
			return m.setNotice("Could not load messages: "+data.Error, true)
		}

	case chat.EventIndexChanged:
		m.syncEntries()

	case chat.EventNotice:
		if data, ok := event.Data.(chat.NoticeData); ok {
			return m.setNotice(data.Text, data.IsError)
		}
	}
	return nil
}

// syncEntries reloads the partner list and keeps the highlight on the same
// partner.
func (m *Model) syncEntries() {
	var selectedID string
	if m.selectedIdx < len(m.entries) {
		selectedID = m.entries[m.selectedIdx].ID
	}
	m.entries = m.session.Index.Entries()
	for i, u := range m.entries {
		if u.ID == selectedID {
			m.selectedIdx = i
			return
		}
	}
	m.clampSelection()
}

func (m *Model) clampSelection() {
	if m.selectedIdx >= len(m.entries) {
		m.selectedIdx = len(m.entries) - 1
	}
	if m.selectedIdx < 0 {
		m.selectedIdx = 0
	}
}

func (m *Model) setNotice(text string, isError bool) tea.Cmd {
	m.noticeSeq++
	m.notice = text
	m.noticeIsError = isError
	seq := m.noticeSeq
	return tea.Tick(constants.NoticeDisplayDuration, func(_ time.Time) tea.Msg {
		return noticeExpiredMsg{seq: seq}
	})
}

func sendErrorText(err error) string {
	switch {
	case errors.Is(err, chat.ErrNotConnected):
		return "Not connected. Message not sent."
	case errors.Is(err, chat.ErrNoConversation):
		return "Conversation is not ready yet."
	case errors.Is(err, chat.ErrEmptyMessage):
		return "Nothing to send."
	}
	return fmt.Sprintf("Send failed: %v", err)
}

func (m Model) handleGlobalKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	switch {
	case key.Matches(msg, keys.Quit):
		return tea.Quit, true

	case key.Matches(msg, keys.Reconnect):
		return m.reconnect(), true

	case key.Matches(msg, keys.Refresh):
		return m.refreshFriends(), true
	}
	return nil, false
}

func (m Model) handleSidebarKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Up):
		if m.selectedIdx > 0 {
			m.selectedIdx--
		}

	case key.Matches(msg, keys.Down):
		if m.selectedIdx < len(m.entries)-1 {
			m.selectedIdx++
		}

	case key.Matches(msg, keys.Enter):
		if m.selectedIdx < len(m.entries) {
			partner := m.entries[m.selectedIdx]
			m.focus = PaneChat
			m.anchor.Cancel()
			return m, m.open(partner)
		}
	}
	return m.handleSharedKey(msg)
}

func (m Model) handleChatKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Up):
		m.viewport.LineUp(1)
		return m, m.maybeLoadOlder()

	case key.Matches(msg, keys.Down):
		m.viewport.LineDown(1)
		return m, nil

	case key.Matches(msg, keys.PageUp):
		m.viewport.LineUp(m.viewport.Height / 2)
		return m, m.maybeLoadOlder()

	case key.Matches(msg, keys.PageDown):
		m.viewport.LineDown(m.viewport.Height / 2)
		return m, nil

	case key.Matches(msg, keys.Bottom):
		m.viewport.GotoBottom()
		return m, nil

	case key.Matches(msg, keys.Enter):
		if m.view.Selected() {
			m.input.SetMode(InputModeMessage)
			return m, m.input.Focus()
		}

	case key.Matches(msg, keys.Escape):
		m.focus = PaneSidebar
		return m, nil
	}
	return m.handleSharedKey(msg)
}

// handleSharedKey covers keys that behave the same in both panes.
func (m Model) handleSharedKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Tab):
		if m.focus == PaneSidebar {
			m.focus = PaneChat
		} else {
			m.focus = PaneSidebar
		}

	case key.Matches(msg, keys.AddFriend):
		m.input.SetMode(InputModeAddFriend)
		return m, m.input.Focus()

	case key.Matches(msg, keys.Accept):
		if len(m.requests) > 0 {
			return m, m.acceptFriend(m.requests[0].ID)
		}
		return m, m.setNotice("No pending friend requests.", false)

	case key.Matches(msg, keys.Compose):
		if m.view.Selected() {
			m.input.SetMode(InputModeMessage)
			return m, m.input.Focus()
		}

	case key.Matches(msg, keys.Image):
		if m.view.Selected() {
			m.input.SetMode(InputModeImage)
			return m, m.input.Focus()
		}
	}
	return m, nil
}

func (m Model) handleInputKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Escape):
		m.input.Reset()
		return m, nil

	case key.Matches(msg, keys.Enter):
		value := strings.TrimSpace(m.input.Value())
		mode := m.input.Mode()
		if mode == InputModeMessage {
			m.input.AddToHistory(value)
		}
		m.input.Reset()
		if value == "" {
			return m, nil
		}

		switch mode {
		case InputModeMessage:
			return m, m.send(value, "")
		case InputModeImage:
			return m, m.send("", value)
		case InputModeAddFriend:
			return m, m.addFriend(value)
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) startSession() tea.Cmd {
	return func() tea.Msg {
		return startedMsg{err: m.session.Start(m.ctx)}
	}
}

func (m Model) open(partner chat.User) tea.Cmd {
	return func() tea.Msg {
		return openedMsg{err: m.session.Open(m.ctx, partner)}
	}
}

func (m Model) loadOlder() tea.Cmd {
	return func() tea.Msg {
		n, err := m.session.Messages.LoadOlder(m.ctx)
		return olderLoadedMsg{count: n, err: err}
	}
}

func (m Model) send(content, imageURL string) tea.Cmd {
	return func() tea.Msg {
		return sentMsg{err: m.session.Send(m.ctx, content, imageURL)}
	}
}

func (m Model) loadRequests() tea.Cmd {
	return func() tea.Msg {
		users, err := m.session.FriendRequests(m.ctx)
		return requestsMsg{users: users, err: err}
	}
}

func (m Model) addFriend(id string) tea.Cmd {
	return func() tea.Msg {
		return friendsChangedMsg{err: m.session.SendFriendRequest(m.ctx, id)}
	}
}

func (m Model) acceptFriend(id string) tea.Cmd {
	return func() tea.Msg {
		return friendsChangedMsg{err: m.session.AcceptFriendRequest(m.ctx, id)}
	}
}

func (m Model) refreshFriends() tea.Cmd {
	return func() tea.Msg {
		return friendsChangedMsg{err: m.session.RefreshFriends(m.ctx)}
	}
}

func (m Model) reconnect() tea.Cmd {
	return func() tea.Msg {
		return reconnectedMsg{err: m.session.Connect(m.ctx)}
	}
}

func (m Model) listenForEvents() tea.Cmd {
	return func() tea.Msg {
		event, ok := <-m.eventCh
		if !ok {
			return nil
		}
		return EventMsg{Event: event}
	}
}

// Key bindings
var keys = struct {
	Quit      key.Binding
	Help      key.Binding
	Escape    key.Binding
	Enter     key.Binding
	Tab       key.Binding
	Up        key.Binding
	Down      key.Binding
	PageUp    key.Binding
	PageDown  key.Binding
	Bottom    key.Binding
	Compose   key.Binding
	Image     key.Binding
	AddFriend key.Binding
	Accept    key.Binding
	Refresh   key.Binding
	Reconnect key.Binding
}{
	Quit:      key.NewBinding(key.WithKeys("q", "ctrl+c")),
	Help:      key.NewBinding(key.WithKeys("?")),
	Escape:    key.NewBinding(key.WithKeys("esc")),
	Enter:     key.NewBinding(key.WithKeys("enter")),
	Tab:       key.NewBinding(key.WithKeys("tab", "shift+tab")),
	Up:        key.NewBinding(key.WithKeys("up", "k")),
	Down:      key.NewBinding(key.WithKeys("down", "j")),
	PageUp:    key.NewBinding(key.WithKeys("pgup")),
	PageDown:  key.NewBinding(key.WithKeys("pgdown")),
	Bottom:    key.NewBinding(key.WithKeys("G", "end")),
	Compose:   key.NewBinding(key.WithKeys("i", "m")),
	Image:     key.NewBinding(key.WithKeys("p")),
	AddFriend: key.NewBinding(key.WithKeys("a")),
	Accept:    key.NewBinding(key.WithKeys("f")),
	Refresh:   key.NewBinding(key.WithKeys("R")),
	Reconnect: key.NewBinding(key.WithKeys("r")),
}
