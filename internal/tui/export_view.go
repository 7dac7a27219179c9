package tui

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/brizzai/oauth-playground/internal/auth/flow"
	"github.com/brizzai/oauth-playground/internal/auth/providers"
	"github.com/brizzai/oauth-playground/internal/persistence"
	"github.com/brizzai/oauth-playground/internal/present"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

type credentialsKeyMap struct {
	reset     key.Binding
	longLived key.Binding
	persist   key.Binding
	export    key.Binding
	quit      key.Binding
}

func newCredentialsKeyMap() credentialsKeyMap {
	return credentialsKeyMap{
		reset:     key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "Clear credentials")),
		longLived: key.NewBinding(key.WithKeys("l"), key.WithHelp("l", "Long-lived token")),
		persist:   key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "Save to database")),
		export:    key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "Export to file")),
		quit:      key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "Quit")),
	}
}

// ResetMsg is sent after the credentials were cleared
type ResetMsg struct{}

type longLivedDoneMsg struct {
	err error
}

type persistDoneMsg struct {
	record persistence.Record
	err    error
}

// ExportView shows the obtained credentials and exports them to a file
type ExportView struct {
	engine    *flow.Engine
	session   *flow.Session
	persister *persistence.Persister
	keys      credentialsKeyMap

	textInput    textinput.Model
	exporting    bool
	busy         bool
	exportStatus string
	width        int
	height       int

	// Success is set once the credentials were written to a file
	Success bool
}

// NewExportView creates the credentials view of an authenticated session
func NewExportView(engine *flow.Engine, session *flow.Session, persister *persistence.Persister) ExportView {
	ti := textinput.New()
	ti.Placeholder = "credentials.yaml"
	ti.Width = 40

	return ExportView{
		engine:    engine,
		session:   session,
		persister: persister,
		keys:      newCredentialsKeyMap(),
		textInput: ti,
	}
}

// Init initializes the export view
func (m ExportView) Init() tea.Cmd {
	return nil
}

// Update handles messages for the export view
func (m ExportView) Update(msg tea.Msg) (ExportView, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.exporting {
			return m.updateExport(msg)
		}
		if m.busy {
			if msg.String() == "ctrl+c" {
				return m, tea.Quit
			}
			return m, nil
		}
		switch {
		case key.Matches(msg, m.keys.quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.reset):
			if err := m.engine.Reset(m.session); err != nil {
				m.exportStatus = errorMessageStyle(describeError(err))
				return m, nil
			}
			return m, func() tea.Msg { return ResetMsg{} }
		case key.Matches(msg, m.keys.export):
			m.exporting = true
			m.exportStatus = ""
			return m, m.textInput.Focus()
		case key.Matches(msg, m.keys.longLived):
			if _, ok := m.session.Provider().(providers.LongLivedExchanger); !ok {
				m.exportStatus = statusMessageStyle(m.session.Provider().Name() + " has no long-lived tokens")
				return m, nil
			}
			m.busy = true
			m.exportStatus = statusMessageStyle("Exchanging for a long-lived token...")
			engine, session := m.engine, m.session
			return m, func() tea.Msg {
				_, err := engine.ExchangeLongLived(context.Background(), session)
				return longLivedDoneMsg{err: err}
			}
		case key.Matches(msg, m.keys.persist):
			if !m.persister.Enabled() {
				m.exportStatus = statusMessageStyle("No persistence sink configured")
				return m, nil
			}
			m.busy = true
			persister, snap := m.persister, m.session.Snapshot()
			return m, func() tea.Msg {
				rec, err := persister.Persist(context.Background(), snap)
				return persistDoneMsg{record: rec, err: err}
			}
		}

	case longLivedDoneMsg:
		m.busy = false
		if msg.err != nil {
			m.exportStatus = errorMessageStyle(describeError(msg.err))
		} else {
			m.exportStatus = completeMessageStyle("Long-lived token obtained.")
		}

	case persistDoneMsg:
		m.busy = false
		if msg.err != nil {
			m.exportStatus = errorMessageStyle(msg.err.Error())
		} else {
			m.exportStatus = completeMessageStyle(fmt.Sprintf("Credentials for %s saved.", msg.record.Email))
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	}
	return m, nil
}

func (m ExportView) updateExport(msg tea.KeyMsg) (ExportView, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "esc":
		m.exporting = false
		m.textInput.Blur()
		return m, nil
	case "enter":
		if m.textInput.Value() == "" {
			m.exportStatus = "Please enter a filename"
			return m, nil
		}

		filename, err := ExportCredentialsToFile(present.FromSnapshot(m.session.Snapshot()), m.textInput.Value())
		if err != nil {
			m.exportStatus = errorMessageStyle(fmt.Sprintf("Error exporting: %v", err))
			return m, nil
		}

		m.Success = true
		m.exporting = false
		m.textInput.Blur()
		m.exportStatus = completeMessageStyle(fmt.Sprintf("Successfully exported to %s", filename))
		return m, nil
	}

	var cmd tea.Cmd
	m.textInput, cmd = m.textInput.Update(msg)
	return m, cmd
}

// Status returns the last status line
func (m ExportView) Status() string {
	return m.exportStatus
}

// View renders the export view
func (m ExportView) View() string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render(m.session.Provider().Name() + " / " + m.session.State().String()))
	sb.WriteString("\n\n")

	c := present.FromSnapshot(m.session.Snapshot())
	if c == nil {
		sb.WriteString("No credentials.\n")
		return docStyle.Render(sb.String())
	}

	writeRow(&sb, "Access Token", c.AccessTokenPreview)
	if c.RefreshToken != "" {
		writeRow(&sb, "Refresh Token", present.Preview(c.RefreshToken))
	}
	for _, row := range c.Rows() {
		writeRow(&sb, row.Label, row.Value)
	}
	if c.Profile != nil {
		sb.WriteString("\n")
		sb.WriteString(labelStyle.Render("Profile"))
		sb.WriteString("\n")
		for _, row := range c.ProfileRows() {
			writeRow(&sb, row.Label, row.Value)
		}
	}
	if c.IDToken != nil {
		verified := "not verified"
		if c.IDToken.Verified {
			verified = "signature verified"
		}
		sb.WriteString("\n")
		writeRow(&sb, "ID Token", fmt.Sprintf("%d claims, %s", len(c.IDToken.Claims), verified))
	}
	sb.WriteString("\n")

	if m.exporting {
		sb.WriteString("Enter filename to export credentials (.json or .yaml):\n")
		sb.WriteString(m.textInput.View())
		sb.WriteString("\n\n")
	}
	if m.exportStatus != "" {
		sb.WriteString(m.exportStatus)
		sb.WriteString("\n\n")
	}

	help := "(e) export | (r) clear credentials | (q) quit"
	if _, ok := m.session.Provider().(providers.LongLivedExchanger); ok {
		help = "(l) long-lived token | " + help
	}
	if m.persister.Enabled() {
		help = "(p) save to database | " + help
	}
	if m.exporting {
		help = "(esc) cancel | (enter) export"
	}
	sb.WriteString(helpStyle.Render(help))
	return docStyle.Render(sb.String())
}

func writeRow(sb *strings.Builder, label, value string) {
	sb.WriteString(labelStyle.Render(label + ":"))
	sb.WriteString(" ")
	sb.WriteString(value)
	sb.WriteString("\n")
}

// ExportCredentialsToFile writes c as json or yaml, picked by the file extension.
// A name without extension gets .yaml. It returns the name written.
func ExportCredentialsToFile(c *present.Credentials, filename string) (string, error) {
	if c == nil {
		return "", fmt.Errorf("no credentials to export")
	}

	format := present.FormatYAML
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".json":
		format = present.FormatJSON
	case ".yaml", ".yml":
	default:
		filename += ".yaml"
	}

	data, err := present.Marshal(c, format)
	if err != nil {
		return "", err
	}
	// tokens are secrets
	if err := os.WriteFile(filename, data, 0o600); err != nil {
		return "", err
	}
	return filename, nil
}
