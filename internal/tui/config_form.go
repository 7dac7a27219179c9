package tui

import (
	"strings"

	authmodels "github.com/brizzai/oauth-playground/internal/auth/models"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

const (
	fieldAuthURL = iota
	fieldTokenURL
	fieldUserinfoURL
	fieldClientID
	fieldClientSecret
	fieldRedirectURI
	fieldScope
)

var fieldLabels = map[int]string{
	fieldAuthURL:      "Authorization URL",
	fieldTokenURL:     "Token URL",
	fieldUserinfoURL:  "User info URL",
	fieldClientID:     "Client ID",
	fieldClientSecret: "Client Secret",
	fieldRedirectURI:  "Redirect URI",
	fieldScope:        "Scope",
}

type formKeyMap struct {
	next   key.Binding
	prev   key.Binding
	submit key.Binding
	back   key.Binding
	quit   key.Binding
}

func newFormKeyMap() formKeyMap {
	return formKeyMap{
		next:   key.NewBinding(key.WithKeys("tab", "down", "enter"), key.WithHelp("tab", "Next field")),
		prev:   key.NewBinding(key.WithKeys("shift+tab", "up"), key.WithHelp("shift+tab", "Previous field")),
		submit: key.NewBinding(key.WithKeys("ctrl+s"), key.WithHelp("ctrl+s", "Save")),
		back:   key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "Providers")),
		quit:   key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "Quit")),
	}
}

// ConfigFormModel edits the provider configuration, and the endpoints of a custom provider.
type ConfigFormModel struct {
	provider  string
	envLoaded bool
	fields    []int
	inputs    map[int]textinput.Model
	focus     int
	keys      formKeyMap
}

// ConfigSubmittedMsg carries the edited configuration. Endpoints is set for a custom provider.
type ConfigSubmittedMsg struct {
	Config    authmodels.ProviderConfig
	Endpoints *authmodels.Endpoints
}

// BackToProvidersMsg signals to go back to the provider list
type BackToProvidersMsg struct{}

// NewConfigForm creates a form pre-filled with cfg. endpoints is nil for registered providers.
func NewConfigForm(cfg authmodels.ProviderConfig, endpoints *authmodels.Endpoints, envLoaded bool) ConfigFormModel {
	m := ConfigFormModel{
		provider:  cfg.Name,
		envLoaded: envLoaded,
		inputs:    make(map[int]textinput.Model),
		keys:      newFormKeyMap(),
	}

	values := map[int]string{
		fieldClientID:     cfg.ClientID,
		fieldClientSecret: cfg.ClientSecret,
		fieldRedirectURI:  cfg.RedirectURI,
		fieldScope:        cfg.Scope,
	}
	if endpoints != nil {
		m.fields = append(m.fields, fieldAuthURL, fieldTokenURL, fieldUserinfoURL)
		values[fieldAuthURL] = endpoints.AuthURL
		values[fieldTokenURL] = endpoints.TokenURL
		values[fieldUserinfoURL] = endpoints.UserinfoURL
	}
	m.fields = append(m.fields, fieldClientID, fieldClientSecret, fieldRedirectURI, fieldScope)

	for _, f := range m.fields {
		ti := textinput.New()
		ti.Prompt = "> "
		ti.Width = 60
		ti.CharLimit = 2048
		ti.Placeholder = fieldLabels[f]
		if f == fieldClientSecret {
			ti.EchoMode = textinput.EchoPassword
			ti.EchoCharacter = '*'
		}
		ti.SetValue(values[f])
		m.inputs[f] = ti
	}
	m.setFocus(0)
	return m
}

func (m *ConfigFormModel) setFocus(i int) tea.Cmd {
	m.focus = i
	var cmd tea.Cmd
	for idx, f := range m.fields {
		ti := m.inputs[f]
		if idx == i {
			cmd = ti.Focus()
		} else {
			ti.Blur()
		}
		m.inputs[f] = ti
	}
	return cmd
}

// Init returns the initial command for the form (cursor blink).
func (m ConfigFormModel) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles navigation and forwards typing to the focused input.
func (m ConfigFormModel) Update(msg tea.Msg) (ConfigFormModel, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(msg, m.keys.quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.back):
			return m, func() tea.Msg { return BackToProvidersMsg{} }
		case key.Matches(msg, m.keys.submit):
			return m, m.submit()
		case key.Matches(msg, m.keys.next):
			if msg.String() == "enter" && m.focus == len(m.fields)-1 {
				return m, m.submit()
			}
			return m, m.setFocus((m.focus + 1) % len(m.fields))
		case key.Matches(msg, m.keys.prev):
			return m, m.setFocus((m.focus - 1 + len(m.fields)) % len(m.fields))
		}
	}

	f := m.fields[m.focus]
	var cmd tea.Cmd
	m.inputs[f], cmd = m.inputs[f].Update(msg)
	return m, cmd
}

func (m ConfigFormModel) value(f int) string {
	return strings.TrimSpace(m.inputs[f].Value())
}

// Values returns the configuration and custom endpoints as currently entered.
func (m ConfigFormModel) Values() (authmodels.ProviderConfig, *authmodels.Endpoints) {
	cfg := authmodels.ProviderConfig{
		Name:         m.provider,
		ClientID:     m.value(fieldClientID),
		ClientSecret: m.value(fieldClientSecret),
		RedirectURI:  m.value(fieldRedirectURI),
		Scope:        m.value(fieldScope),
	}
	if _, custom := m.inputs[fieldAuthURL]; !custom {
		return cfg, nil
	}
	return cfg, &authmodels.Endpoints{
		AuthURL:     m.value(fieldAuthURL),
		TokenURL:    m.value(fieldTokenURL),
		UserinfoURL: m.value(fieldUserinfoURL),
	}
}

func (m ConfigFormModel) submit() tea.Cmd {
	cfg, endpoints := m.Values()
	return func() tea.Msg {
		return ConfigSubmittedMsg{Config: cfg, Endpoints: endpoints}
	}
}

// View renders the form.
func (m ConfigFormModel) View() string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render(m.provider))
	sb.WriteString("\n")
	if m.envLoaded {
		sb.WriteString(completeMessageStyle("Credentials loaded from environment"))
		sb.WriteString("\n")
	}
	sb.WriteString("\n")

	for _, f := range m.fields {
		sb.WriteString(editHeaderStyle.Render(fieldLabels[f]))
		sb.WriteString("\n")
		sb.WriteString(m.inputs[f].View())
		sb.WriteString("\n\n")
	}
	sb.WriteString(helpStyle.Render("(tab) next | (shift+tab) previous | (ctrl+s) save | (esc) providers"))
	return docStyle.Render(sb.String())
}
