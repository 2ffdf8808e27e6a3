package main

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	"github.com/muesli/reflow/wordwrap"

	"github.com/dmkeith/dungeonmaster/internal/handlers"
	"github.com/dmkeith/dungeonmaster/internal/session"
)

const (
	AgentName       = "Keith"
	PlaceHolderText = "Type a message or /help..."
)

// ConsoleUI is the BubbleTea model that runs the UI.
// https://github.com/charmbracelet/bubbletea
type ConsoleUI struct {
	config       *ConsoleConfig
	client       *http.Client
	sessionID    uuid.UUID
	snapshot     *handlers.SessionResponse
	transcript   []transcriptEntry
	lastReply    string
	chatViewport viewport.Model
	metaViewport viewport.Model
	textarea     textarea.Model
	ready        bool
	width        int
	height       int
	err          error
	loading      bool

	// Quit confirmation state
	showQuitModal bool

	// Progress bar state
	progressTick int

	// Transient status line, e.g. after copying a reply
	status string
}

type transcriptEntry struct {
	role    string // "user" or "keith"
	content string
}

type turnResultMsg struct {
	result *session.TurnResult
	err    error
}

type snapshotMsg struct {
	snapshot *handlers.SessionResponse
	err      error
}

type progressTickMsg struct{}

var (
	chatPanelStyle = lipgloss.NewStyle().
			PaddingTop(2).
			PaddingBottom(1).
			PaddingLeft(3).
			PaddingRight(0)

	metaPanelStyle = lipgloss.NewStyle().
			PaddingTop(2).
			PaddingBottom(0).
			PaddingLeft(0).
			PaddingRight(2)

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")). // pink
			Bold(true)

	keithStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")) // green

	userStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")) // teal

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")) // red

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")) // dark grey

	modalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(1, 2).
			Background(lipgloss.Color("235")).
			Foreground(lipgloss.Color("255"))

	modalTitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true).
			Align(lipgloss.Center)

	separatorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")) // dark grey
)

func NewConsoleUI(cfg *ConsoleConfig, client *http.Client) ConsoleUI {
	ta := textarea.New()
	ta.Placeholder = PlaceHolderText
	ta.Focus()
	ta.Prompt = promptStyle.Render(":: ")
	ta.CharLimit = 1000
	ta.SetWidth(50)
	ta.SetHeight(3)
	ta.ShowLineNumbers = false

	chatVp := viewport.New(50, 20)
	chatVp.MouseWheelEnabled = true

	metaVp := viewport.New(20, 20)

	return ConsoleUI{
		config:       cfg,
		client:       client,
		sessionID:    uuid.New(),
		textarea:     ta,
		chatViewport: chatVp,
		metaViewport: metaVp,
	}
}

func (m ConsoleUI) Init() tea.Cmd {
	return textarea.Blink
}

func (m ConsoleUI) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.showQuitModal {
		return m.updateQuitModal(msg)
	}

	var (
		tiCmd tea.Cmd
		vpCmd tea.Cmd
		mvCmd tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.MouseMsg:
		m.chatViewport, vpCmd = m.chatViewport.Update(msg)
		m.textarea, tiCmd = m.textarea.Update(msg)
		m.metaViewport, mvCmd = m.metaViewport.Update(msg)
		return m, tea.Batch(tiCmd, vpCmd, mvCmd)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		chatWidth := int(float64(m.width)*0.75) - 4
		metaWidth := m.width - chatWidth - 6

		m.chatViewport.Width = chatWidth - 2
		m.chatViewport.Height = m.height - 7
		m.metaViewport.Width = metaWidth - 2
		m.metaViewport.Height = m.height - 4
		m.textarea.SetWidth(chatWidth - 4)

		m.ready = true
		m.writeChatContent()
		m.metaViewport.SetContent(m.writeMetadata())

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.showQuitModal = true
			return m, nil

		case tea.KeyCtrlY:
			if m.lastReply != "" {
				if err := clipboard.WriteAll(m.lastReply); err != nil {
					m.status = "Copy failed: " + err.Error()
				} else {
					m.status = "Copied last reply to clipboard."
				}
				m.writeChatContent()
			}
			return m, nil

		case tea.KeyEnter:
			if m.loading {
				return m, nil
			}
			input := strings.TrimSpace(m.textarea.Value())
			if input == "" {
				return m, nil
			}

			m.textarea.Reset()
			m.loading = true
			m.progressTick = 0
			m.status = ""
			m.transcript = append(m.transcript, transcriptEntry{role: "user", content: input})
			m.writeChatContent()

			return m, tea.Batch(m.submitTurn(input), progressTick())
		}

	case turnResultMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			m.transcript = append(m.transcript, transcriptEntry{role: "error", content: msg.err.Error()})
			m.writeChatContent()
			return m, nil
		}
		m.err = nil
		m.lastReply = msg.result.Message
		m.transcript = append(m.transcript, transcriptEntry{role: "keith", content: msg.result.Message})
		m.writeChatContent()
		m.chatViewport.GotoBottom()
		return m, m.refreshSnapshot()

	case snapshotMsg:
		if msg.err == nil && msg.snapshot != nil {
			m.snapshot = msg.snapshot
			m.metaViewport.SetContent(m.writeMetadata())
		}

	case progressTickMsg:
		if m.loading {
			m.progressTick++
			m.writeChatContent()
			return m, progressTick()
		}
	}

	m.textarea, tiCmd = m.textarea.Update(msg)
	m.chatViewport, vpCmd = m.chatViewport.Update(msg)
	m.metaViewport, mvCmd = m.metaViewport.Update(msg)

	return m, tea.Batch(tiCmd, vpCmd, mvCmd)
}

// writeChatContent rebuilds the transcript for the current viewport width.
func (m *ConsoleUI) writeChatContent() {
	chatWidth := m.chatViewport.Width - 6

	var content strings.Builder
	content.WriteString(titleStyle.Render("DUNGEON MASTER KEITH") + "\n\n")
	content.WriteString("Type your messages below. /help lists the table commands.\n\n")
	content.WriteString(separatorStyle.Render(strings.Repeat("─", max(chatWidth-6, 1))) + "\n\n")

	for _, entry := range m.transcript {
		switch entry.role {
		case "user":
			content.WriteString(userStyle.Render("You: ") + wordwrap.String(entry.content, chatWidth-6) + "\n\n")
		case "keith":
			prefix := keithStyle.Render(AgentName + ": ")
			content.WriteString(prefix + wordwrap.String(entry.content, chatWidth-len(AgentName)-2) + "\n\n")
		case "error":
			content.WriteString(errorStyle.Render("Error: "+entry.content) + "\n\n")
		}
	}

	if m.loading {
		content.WriteString(m.renderProgressBar())
	}
	if m.status != "" {
		content.WriteString(promptStyle.Render(m.status) + "\n")
	}

	m.chatViewport.SetContent(content.String())
	m.chatViewport.GotoBottom()
}

func (m *ConsoleUI) writeMetadata() string {
	var content strings.Builder
	content.WriteString(titleStyle.Render("SESSION") + "\n\n")

	content.WriteString("Session ID:\n")
	content.WriteString(m.sessionID.String()[:8] + "...\n\n")

	if m.snapshot != nil && m.snapshot.Session != nil {
		sess := m.snapshot.Session
		content.WriteString("Mode:\n" + string(sess.Mode) + "\n\n")
		content.WriteString(fmt.Sprintf("Toggles:\n• profanity %d\n• rating %s\n• tangents %d\n• density %s\n\n",
			sess.Toggles.ProfanityLevel, sess.Toggles.Rating,
			sess.Toggles.TangentsLevel, sess.Toggles.AchievementDensity))
	}

	if m.snapshot != nil && m.snapshot.Profile != nil {
		p := m.snapshot.Profile
		name := p.Name
		if name == "" {
			name = "(unnamed)"
		}
		content.WriteString(fmt.Sprintf("Character:\n%s\nLevel %d (%d XP)\n\n", name, p.Level, p.Experience))
	}

	if m.snapshot != nil && m.snapshot.Scene != nil {
		content.WriteString("Scene:\n" + m.snapshot.Scene.ID + "\n\n")
	}

	if m.snapshot != nil && len(m.snapshot.Grants) > 0 {
		content.WriteString("Achievements:\n")
		for _, g := range m.snapshot.Grants {
			content.WriteString("• " + g.AchievementID + "\n")
		}
		content.WriteString("\n")
	}

	content.WriteString("Keys:\n")
	content.WriteString("• Ctrl+C: Quit\n")
	content.WriteString("• Enter: Send\n")
	content.WriteString("• Ctrl+Y: Copy reply\n")

	return content.String()
}

func (m ConsoleUI) submitTurn(text string) tea.Cmd {
	return func() tea.Msg {
		result, err := sendTurn(m.client, m.config, m.sessionID, text)
		return turnResultMsg{result, err}
	}
}

func (m ConsoleUI) refreshSnapshot() tea.Cmd {
	return func() tea.Msg {
		snapshot, err := getSession(m.client, m.config.APIBaseURL, m.sessionID)
		return snapshotMsg{snapshot, err}
	}
}

func (m ConsoleUI) updateQuitModal(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc, tea.KeyEnter:
			return m, tea.Quit
		default:
			switch msg.String() {
			case "y", "Y":
				return m, tea.Quit
			case "n", "N":
				m.showQuitModal = false
				m.textarea.Focus()
				return m, textarea.Blink
			}
		}
	}

	return m, nil
}

func (m ConsoleUI) renderQuitModal() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	var content strings.Builder
	content.WriteString(modalTitleStyle.Render("Quit Game?"))
	content.WriteString("\n\n")
	content.WriteString("Are you sure you want to leave the table?")
	content.WriteString("\n\n")
	content.WriteString(promptStyle.Render("Press Y to quit, N to continue, or Ctrl+C to force quit"))

	modal := modalStyle.Width(50).Render(content.String())
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal, lipgloss.WithWhitespaceChars(" "))
}

func (m ConsoleUI) View() string {
	if m.showQuitModal {
		return m.renderQuitModal()
	}
	if !m.ready {
		return "\n  Initializing..."
	}

	chatWidth := int(float64(m.width)*0.75) - 4
	metaWidth := m.width - chatWidth - 6

	chatPanel := chatPanelStyle.Width(chatWidth).Height(m.height - 3).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			m.chatViewport.View(),
			"",
			separatorStyle.Render(strings.Repeat("─", max(chatWidth-4, 1))),
			m.textarea.View(),
		),
	)

	metaPanel := metaPanelStyle.Width(metaWidth).Height(m.height - 2).Render(
		m.metaViewport.View(),
	)

	return lipgloss.JoinHorizontal(lipgloss.Top, chatPanel, metaPanel)
}

// renderProgressBar creates an animated progress bar for loading states
func (m ConsoleUI) renderProgressBar() string {
	usable := m.chatViewport.Width - 6
	if usable <= 0 {
		usable = 30
	}
	if usable > 80 {
		usable = 80
	} else if usable < 10 {
		usable = 10
	}

	const totalFrames = 40
	frame := m.progressTick % totalFrames
	filled := (frame * usable) / totalFrames

	var bar strings.Builder
	for i := 0; i < usable; i++ {
		if i < filled {
			bar.WriteString("█")
		} else if i == filled && frame%4 < 2 {
			bar.WriteString("▓")
		} else {
			bar.WriteString("░")
		}
	}
	return separatorStyle.Render(bar.String())
}

// progressTick creates a command that sends a progress tick message
func progressTick() tea.Cmd {
	return tea.Tick(time.Millisecond*200, func(time.Time) tea.Msg {
		return progressTickMsg{}
	})
}
