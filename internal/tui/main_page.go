package tui

import (
	"github.com/brizzai/oauth-playground/internal/auth"
	"github.com/brizzai/oauth-playground/internal/tui/models"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
)

// MainPageKeyMap holds key bindings for the main page actions
type MainPageKeyMap struct {
	quit key.Binding
}

func newMainPageKeyMap() *MainPageKeyMap {
	return &MainPageKeyMap{
		quit: key.NewBinding(
			key.WithKeys("ctrl+c", "q"),
			key.WithHelp("ctrl+c/q", "Quit"),
		),
	}
}

// MainPageModel lists the providers to pick from
type MainPageModel struct {
	list list.Model
	keys *MainPageKeyMap
}

// ProviderSelectedMsg is sent when the user picks a provider
type ProviderSelectedMsg struct {
	Name string
}

// NewMainPageModel creates the provider list from the service registry
func NewMainPageModel(service *auth.Service) MainPageModel {
	keys := newMainPageKeyMap()
	registry := service.Registry()

	names := service.Choices()
	items := make([]list.Item, len(names))
	for i, name := range names {
		p := service.Resolve(name)
		_, loaded := service.Defaults(p)
		envKeys := p.EnvKeys()
		items[i] = models.ProviderItem{
			Name:      name,
			EnvKeys:   []string{envKeys.ClientID, envKeys.ClientSecret},
			EnvLoaded: loaded,
			Custom:    registry.IsCustom(name),
		}
	}

	l := list.New(items, newItemDelegate(newDelegateKeyMap()), 0, 0)
	l.Title = titleStyle.Render("OAuth Playground")
	l.SetShowFilter(true)
	l.AdditionalShortHelpKeys = func() []key.Binding {
		return []key.Binding{keys.quit}
	}

	return MainPageModel{list: l, keys: keys}
}

// Init initializes the model
func (m MainPageModel) Init() tea.Cmd {
	return nil
}

// Update handles messages for the main page
func (m MainPageModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.list.FilterState() != list.Filtering && key.Matches(msg, m.keys.quit) {
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		h, v := docStyle.GetFrameSize()
		m.list.SetSize(msg.Width-h, msg.Height-v)
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// View renders the main page
func (m MainPageModel) View() string {
	return docStyle.Render(m.list.View())
}

// Selected returns the highlighted provider name
func (m MainPageModel) Selected() string {
	item, ok := m.list.SelectedItem().(models.ProviderItem)
	if !ok {
		return ""
	}
	return item.Name
}
