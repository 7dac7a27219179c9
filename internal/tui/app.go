// Package tui is the terminal front end of the playground.
package tui

import (
	"context"
	"time"

	"github.com/brizzai/oauth-playground/internal/auth"
	"github.com/brizzai/oauth-playground/internal/auth/flow"
	authmodels "github.com/brizzai/oauth-playground/internal/auth/models"
	"github.com/brizzai/oauth-playground/internal/auth/providers"
	"github.com/brizzai/oauth-playground/internal/callback"
	"github.com/brizzai/oauth-playground/internal/logger"
	"github.com/brizzai/oauth-playground/internal/persistence"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"
)

const (
	pageMain        = "main"
	pageForm        = "form"
	pageFlow        = "flow"
	pageCredentials = "credentials"
)

// Options wires the app to the flow. OpenURL and Listen are optional.
type Options struct {
	Service   *auth.Service
	Engine    *flow.Engine
	Persister *persistence.Persister

	// OpenURL opens the authorization URL in a browser
	OpenURL func(string) error
	// Listen starts a callback listener on a redirect URI
	Listen func(redirectURI string) (*callback.Listener, error)
}

// AppModel is the main application model that manages page switching
type AppModel struct {
	opts      Options
	session   *flow.Session
	envLoaded bool

	mainPage   MainPageModel
	form       ConfigFormModel
	flowPage   FlowPageModel
	exportView ExportView
	page       string

	listener    *callback.Listener
	listenerURI string
	size        *tea.WindowSizeMsg
}

// NewAppModel creates a new AppModel starting on the provider list
func NewAppModel(opts Options) AppModel {
	return AppModel{
		opts:     opts,
		mainPage: NewMainPageModel(opts.Service),
		page:     pageMain,
	}
}

// Init initializes the AppModel
func (m AppModel) Init() tea.Cmd {
	return m.mainPage.Init()
}

// Update handles app-level messages and delegates to the appropriate page model
func (m AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case ProviderSelectedMsg:
		return m.selectProvider(msg.Name)

	case ConfigSubmittedMsg:
		return m.applyConfig(msg)

	case BackToProvidersMsg:
		m.page = pageMain
		return m, nil

	case BackToConfigMsg:
		m.form = NewConfigForm(m.session.Config(), m.customEndpoints(), m.envLoaded)
		m.page = pageForm
		return m, m.form.Init()

	case AuthenticatedMsg:
		m.exportView = NewExportView(m.opts.Engine, m.session, m.opts.Persister)
		m.page = pageCredentials
		return m, m.resize()

	case ResetMsg:
		m.flowPage = NewFlowPage(m.opts.Engine, m.session, m.opts.OpenURL, m.listenAddr())
		m.flowPage.status = statusMessageStyle("Credentials cleared.")
		m.page = pageFlow
		return m, tea.Batch(m.flowPage.Init(), m.resize())

	case CallbackMsg:
		// a redirect always lands on the flow page, whatever is shown
		var cmd tea.Cmd
		m.flowPage, cmd = m.flowPage.Update(msg)
		m.page = pageFlow
		return m, tea.Batch(cmd, waitForCallback(m.listener))

	case tea.WindowSizeMsg:
		m.size = &msg
		var cmds []tea.Cmd
		var cmd tea.Cmd
		var tempModel tea.Model

		tempModel, cmd = m.mainPage.Update(msg)
		m.mainPage = tempModel.(MainPageModel)
		cmds = append(cmds, cmd)

		if m.session != nil {
			m.flowPage, cmd = m.flowPage.Update(msg)
			cmds = append(cmds, cmd)
			m.exportView, cmd = m.exportView.Update(msg)
			cmds = append(cmds, cmd)
		}
		return m, tea.Batch(cmds...)
	}

	// Delegate message to the active page
	var cmd tea.Cmd
	switch m.page {
	case pageMain:
		var tempModel tea.Model
		tempModel, cmd = m.mainPage.Update(msg)
		m.mainPage = tempModel.(MainPageModel)
	case pageForm:
		m.form, cmd = m.form.Update(msg)
	case pageFlow:
		m.flowPage, cmd = m.flowPage.Update(msg)
	case pageCredentials:
		m.exportView, cmd = m.exportView.Update(msg)
	}
	return m, cmd
}

func (m AppModel) selectProvider(name string) (tea.Model, tea.Cmd) {
	if m.session == nil {
		m.session, m.envLoaded = m.opts.Service.NewSession(name)
	} else if m.session.Provider().Name() != name {
		loaded, err := m.opts.Service.Switch(m.session, name, nil)
		if err != nil {
			// an exchange is still running, stay where we are
			logger.Warn("Provider switch refused", zap.String("provider", name), zap.Error(err))
			return m, nil
		}
		m.envLoaded = loaded
	}

	m.form = NewConfigForm(m.session.Config(), m.customEndpoints(), m.envLoaded)
	m.page = pageForm
	return m, m.form.Init()
}

func (m AppModel) customEndpoints() *authmodels.Endpoints {
	g, ok := m.session.Provider().(*providers.GenericProvider)
	if !ok {
		return nil
	}
	e := g.Endpoints()
	return &e
}

func (m AppModel) applyConfig(msg ConfigSubmittedMsg) (tea.Model, tea.Cmd) {
	name := m.session.Provider().Name()
	if msg.Endpoints != nil {
		if current := m.customEndpoints(); current == nil || *current != *msg.Endpoints {
			if _, err := m.opts.Service.Switch(m.session, name, msg.Endpoints); err != nil {
				logger.Warn("Endpoint update refused", zap.Error(err))
				return m, nil
			}
		}
	}
	cfg := msg.Config
	cfg.Name = name
	m.session.UpdateConfig(cfg)

	cmds := []tea.Cmd{m.startListener(cfg.RedirectURI)}
	m.flowPage = NewFlowPage(m.opts.Engine, m.session, m.opts.OpenURL, m.listenAddr())
	if m.opts.Listen != nil && m.listener == nil {
		m.flowPage.status = helpStyle.Render("No callback listener on the redirect URI, paste the code below.")
	}
	m.page = pageFlow
	cmds = append(cmds, m.flowPage.Init(), m.resize())
	return m, tea.Batch(cmds...)
}

// startListener moves the callback listener to redirectURI. It returns the command
// waiting for the first callback of a new listener.
func (m *AppModel) startListener(redirectURI string) tea.Cmd {
	if m.opts.Listen == nil || (m.listener != nil && m.listenerURI == redirectURI) {
		return nil
	}
	m.closeListener()

	l, err := m.opts.Listen(redirectURI)
	if err != nil {
		logger.Debug("Callback listener not started", zap.String("redirect_uri", redirectURI), zap.Error(err))
		return nil
	}
	m.listener, m.listenerURI = l, redirectURI
	return waitForCallback(l)
}

func (m *AppModel) closeListener() {
	if m.listener == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := m.listener.Close(ctx); err != nil {
		logger.Debug("Callback listener close failed", zap.Error(err))
	}
	m.listener, m.listenerURI = nil, ""
}

func (m AppModel) listenAddr() string {
	if m.listener == nil {
		return ""
	}
	return m.listener.Addr()
}

// resize replays the last window size to freshly built pages.
func (m AppModel) resize() tea.Cmd {
	if m.size == nil {
		return nil
	}
	size := *m.size
	return func() tea.Msg { return size }
}

func waitForCallback(l *callback.Listener) tea.Cmd {
	if l == nil {
		return nil
	}
	return func() tea.Msg {
		cb, err := l.Wait(context.Background())
		if err != nil {
			return nil
		}
		return CallbackMsg{Callback: cb}
	}
}

// View renders the active page
func (m AppModel) View() string {
	switch m.page {
	case pageForm:
		return m.form.View()
	case pageFlow:
		return m.flowPage.View()
	case pageCredentials:
		return m.exportView.View()
	default:
		return m.mainPage.View()
	}
}

// Session returns the flow session, nil before a provider was picked
func (m AppModel) Session() *flow.Session {
	return m.session
}

// IsFinished reports whether the session ended with credentials
func (m AppModel) IsFinished() bool {
	return m.session != nil && m.session.State() == flow.StateAuthenticated
}

// Close stops the callback listener
func (m AppModel) Close() {
	m.closeListener()
}
