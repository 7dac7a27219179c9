package models

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

// ProviderItem is a registry entry shown in the provider list.
// Implements list.Item
type ProviderItem struct {
	Name      string
	EnvKeys   []string
	EnvLoaded bool
	Custom    bool
}

func (i ProviderItem) Title() string {
	if i.Custom {
		return i.Name + " (enter your own endpoints)"
	}
	return i.Name
}

func (i ProviderItem) Description() string {
	if i.EnvLoaded {
		return lipgloss.NewStyle().
			Foreground(lipgloss.Color("#56FF4E")).
			Render("credentials loaded from environment")
	}
	if len(i.EnvKeys) < 2 {
		return ""
	}
	return fmt.Sprintf("set %s and %s to pre-fill", i.EnvKeys[0], i.EnvKeys[1])
}

func (i ProviderItem) FilterValue() string {
	return i.Name
}
