package tui

import (
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/xonecas/moji/internal/constants"
)

// InputMode says what the compose bar is collecting.
type InputMode int

const (
	InputModeNone InputMode = iota
	InputModeMessage
	InputModeImage
	InputModeAddFriend
)

const maxHistorySize = 100

type modeLook struct {
	icon        string
	placeholder string
}

var inputModes = map[InputMode]modeLook{
	InputModeMessage:   {"💬", "Type a message..."},
	InputModeImage:     {"🖼", "Paste an image URL..."},
	InputModeAddFriend: {"➕", "User id to add..."},
}

// sentHistory is a ring of sent texts browsed newest first. cursor is -1
// while not browsing.
type sentHistory struct {
	entries []string
	cursor  int
	draft   string
}

func (h *sentHistory) add(text string) {
	if text == "" || (len(h.entries) > 0 && h.entries[len(h.entries)-1] == text) {
		return
	}
	h.entries = append(h.entries, text)
	if over := len(h.entries) - maxHistorySize; over > 0 {
		h.entries = h.entries[over:]
	}
}

func (h *sentHistory) reset() {
	h.cursor = -1
	h.draft = ""
}

// step moves the cursor; +1 is older. current is the text being edited and
// is kept as the draft when browsing starts. The text to show is returned.
func (h *sentHistory) step(delta int, current string) (string, bool) {
	if len(h.entries) == 0 {
		return "", false
	}
	if h.cursor == -1 {
		if delta < 0 {
			return "", false
		}
		h.draft = current
	}
	h.cursor = min(max(h.cursor+delta, -1), len(h.entries)-1)
	if h.cursor == -1 {
		return h.draft, true
	}
	return h.entries[len(h.entries)-1-h.cursor], true
}

// InputModel is the compose bar.
type InputModel struct {
	textInput textinput.Model
	mode      InputMode
	history   sentHistory
}

// NewInputModel creates an inactive compose bar.
func NewInputModel() InputModel {
	ti := textinput.New()
	ti.CharLimit = constants.MaxMessageLength
	ti.Width = 60

	return InputModel{
		textInput: ti,
		history:   sentHistory{cursor: -1},
	}
}

// SetMode switches mode. InputModeNone blurs the bar.
func (m *InputModel) SetMode(mode InputMode) {
	m.mode = mode
	m.history.reset()
	m.textInput.Reset()

	look, ok := inputModes[mode]
	if !ok {
		m.textInput.Placeholder = ""
		m.textInput.Prompt = ""
		m.textInput.Blur()
		return
	}
	m.textInput.Placeholder = look.placeholder
	m.textInput.Prompt = inputPromptStyle.Render(look.icon+" ") + " "
	m.textInput.Focus()
}

// Mode returns the current input mode.
func (m InputModel) Mode() InputMode {
	return m.mode
}

// Value returns the text typed so far.
func (m InputModel) Value() string {
	return m.textInput.Value()
}

// IsActive reports whether the bar has focus.
func (m InputModel) IsActive() bool {
	return m.mode != InputModeNone
}

// Focus returns the cursor blink command.
func (m InputModel) Focus() tea.Cmd {
	return textinput.Blink
}

var historyKeys = struct {
	Older key.Binding
	Newer key.Binding
}{
	Older: key.NewBinding(key.WithKeys("up")),
	Newer: key.NewBinding(key.WithKeys("down")),
}

// Update forwards msg to the text field. In message mode up and down browse
// sent history.
func (m InputModel) Update(msg tea.Msg) (InputModel, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok && m.mode == InputModeMessage {
		delta := 0
		switch {
		case key.Matches(keyMsg, historyKeys.Older):
			delta = 1
		case key.Matches(keyMsg, historyKeys.Newer):
			delta = -1
		}
		if delta != 0 {
			if text, ok := m.history.step(delta, m.textInput.Value()); ok {
				m.textInput.SetValue(text)
				m.textInput.CursorEnd()
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.textInput, cmd = m.textInput.Update(msg)
	return m, cmd
}

// ViewAlways renders the bar, with a hint when inactive.
func (m InputModel) ViewAlways(width int, canCompose bool) string {
	box := inputStyle.Width(width - 2)
	if m.mode != InputModeNone {
		return box.Render(m.textInput.View())
	}
	hint := "Select a friend and press Enter to chat..."
	if canCompose {
		hint = "Press 'i' to write, 'p' to send an image..."
	}
	return box.Render(dimmedStyle.Render(hint))
}

// Reset clears the text and leaves compose mode.
func (m *InputModel) Reset() {
	m.SetMode(InputModeNone)
}

// AddToHistory records a sent message.
func (m *InputModel) AddToHistory(text string) {
	m.history.add(text)
}

// SetWidth sets the text field width.
func (m *InputModel) SetWidth(width int) {
	m.textInput.Width = width - 4
}
