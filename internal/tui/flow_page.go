package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/brizzai/oauth-playground/internal/auth/flow"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// flowKeyMap holds key bindings for the flow page.
type flowKeyMap struct {
	open     key.Binding
	exchange key.Binding
	back     key.Binding
	quit     key.Binding
}

func newFlowKeyMap() flowKeyMap {
	return flowKeyMap{
		open: key.NewBinding(
			key.WithKeys("ctrl+o"),
			key.WithHelp("ctrl+o", "Open in browser"),
		),
		exchange: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "Exchange code"),
		),
		back: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "Edit configuration"),
		),
		quit: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("ctrl+c", "Quit"),
		),
	}
}

// CallbackMsg carries a provider redirect received while the flow page is shown.
type CallbackMsg struct {
	Callback flow.Callback
}

// AuthenticatedMsg is sent after a successful exchange
type AuthenticatedMsg struct{}

// BackToConfigMsg signals to go back to the configuration form
type BackToConfigMsg struct{}

type exchangeDoneMsg struct {
	err error
}

type browserOpenedMsg struct {
	err error
}

// FlowPageModel shows the authorization URL and takes the code to exchange.
type FlowPageModel struct {
	engine  *flow.Engine
	session *flow.Session
	openURL func(string) error
	keys    flowKeyMap

	authURL   string
	urlErr    error
	listening string
	codeInput textinput.Model
	status    string
	busy      bool
	width     int
}

// NewFlowPage builds the authorization URL of session. listening is the address of the
// callback listener, empty when codes have to be pasted.
func NewFlowPage(engine *flow.Engine, session *flow.Session, openURL func(string) error, listening string) FlowPageModel {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "paste the code or the full redirect URL"
	ti.Width = 60
	ti.CharLimit = 4096
	ti.SetValue(session.Code())
	ti.Focus()

	m := FlowPageModel{
		engine:    engine,
		session:   session,
		openURL:   openURL,
		keys:      newFlowKeyMap(),
		listening: listening,
		codeInput: ti,
	}
	m.authURL, m.urlErr = engine.AuthorizationURL(session)
	return m
}

// Init initializes the flow page
func (m FlowPageModel) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles messages for the flow page
func (m FlowPageModel) Update(msg tea.Msg) (FlowPageModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.back):
			if m.busy {
				return m, nil
			}
			return m, func() tea.Msg { return BackToConfigMsg{} }
		case key.Matches(msg, m.keys.open):
			if m.urlErr != nil || m.openURL == nil {
				return m, nil
			}
			authURL, open := m.authURL, m.openURL
			return m, func() tea.Msg { return browserOpenedMsg{err: open(authURL)} }
		case key.Matches(msg, m.keys.exchange):
			return m.startExchange()
		}

	case CallbackMsg:
		return m.handleCallback(msg.Callback), nil

	case browserOpenedMsg:
		if msg.err != nil {
			m.status = errorMessageStyle("Could not open a browser, copy the URL above.")
		} else {
			m.status = statusMessageStyle("Browser opened, finish the consent screen there.")
		}
		return m, nil

	case exchangeDoneMsg:
		m.busy = false
		if msg.err != nil {
			m.status = errorMessageStyle(describeError(msg.err))
			return m, nil
		}
		m.status = completeMessageStyle("Access token obtained.")
		return m, func() tea.Msg { return AuthenticatedMsg{} }

	case tea.WindowSizeMsg:
		m.width = msg.Width
	}

	var cmd tea.Cmd
	m.codeInput, cmd = m.codeInput.Update(msg)
	return m, cmd
}

func (m FlowPageModel) handleCallback(cb flow.Callback) FlowPageModel {
	if cb.Error != "" {
		m.status = errorMessageStyle(strings.TrimSpace("Provider returned " + cb.Error + " " + cb.ErrorDescription))
		return m
	}
	if m.busy {
		return m
	}
	if _, err := m.engine.SubmitCode(m.session, cb.Code); err != nil {
		m.status = errorMessageStyle(describeError(err))
		return m
	}
	m.codeInput.SetValue(cb.Code)
	m.status = statusMessageStyle("Authorization code received, press enter to exchange it.")
	return m
}

func (m FlowPageModel) startExchange() (FlowPageModel, tea.Cmd) {
	if m.busy {
		return m, nil
	}

	input := strings.TrimSpace(m.codeInput.Value())
	if strings.Contains(input, "code=") {
		if cb, err := flow.ParseCallback(input); err == nil && cb.HasCode() {
			input = cb.Code
			m.codeInput.SetValue(input)
		}
	}
	if _, err := m.engine.SubmitCode(m.session, input); err != nil {
		m.status = errorMessageStyle(describeError(err))
		return m, nil
	}

	m.busy = true
	m.status = statusMessageStyle("Exchanging the code...")
	engine, session := m.engine, m.session
	return m, func() tea.Msg {
		_, err := engine.Exchange(context.Background(), session)
		return exchangeDoneMsg{err: err}
	}
}

// Status returns the last status line without styling applied by the caller.
func (m FlowPageModel) Status() string {
	return m.status
}

// AuthURL returns the authorization URL shown on the page.
func (m FlowPageModel) AuthURL() string {
	return m.authURL
}

// View renders the flow page
func (m FlowPageModel) View() string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render(m.session.Provider().Name() + " / " + m.session.State().String()))
	sb.WriteString("\n\n")

	sb.WriteString(labelStyle.Render("1. Authorize"))
	sb.WriteString("\n")
	if m.urlErr != nil {
		sb.WriteString(errorMessageStyle(m.urlErr.Error()))
	} else {
		width := m.width - 6
		if width < 20 {
			width = 80
		}
		sb.WriteString(lipgloss.NewStyle().Width(width).Render(m.authURL))
	}
	sb.WriteString("\n")
	if m.listening != "" {
		sb.WriteString(helpStyle.Render("Listening for the redirect on " + m.listening))
		sb.WriteString("\n")
	}
	sb.WriteString("\n")

	sb.WriteString(labelStyle.Render("2. Authorization code"))
	sb.WriteString("\n")
	sb.WriteString(m.codeInput.View())
	sb.WriteString("\n\n")

	debug := m.engine.Debug(m.session)
	sb.WriteString(labelStyle.Render("3. Exchange"))
	sb.WriteString("\n")
	sb.WriteString(helpStyle.Render(fmt.Sprintf("POST %s client_id=%s client_secret=%s (%d chars) redirect_uri=%s",
		debug.TokenURL, debug.ClientID, debug.ClientSecret, debug.SecretLength, debug.RedirectURI)))
	sb.WriteString("\n\n")

	if m.status != "" {
		sb.WriteString(m.status)
		sb.WriteString("\n\n")
	}
	sb.WriteString(helpStyle.Render("(ctrl+o) open browser | (enter) exchange | (esc) configuration | (ctrl+c) quit"))
	return docStyle.Render(sb.String())
}

// describeError turns flow errors into an operator message.
func describeError(err error) string {
	var failed *flow.ExchangeFailedError
	var missing *flow.MissingCredentialError
	switch {
	case errors.As(err, &missing):
		return fmt.Sprintf("Enter a %s before exchanging.", strings.ReplaceAll(missing.Field, "_", " "))
	case errors.As(err, &failed):
		if failed.StatusCode == 0 {
			return "Token exchange failed: " + failed.Detail()
		}
		return fmt.Sprintf("Token exchange failed with status %d\n%s", failed.StatusCode, failed.Detail())
	case errors.Is(err, flow.ErrNoCode):
		return "Enter the authorization code first."
	default:
		return err.Error()
	}
}
