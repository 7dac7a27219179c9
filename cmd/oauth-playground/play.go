package main

import (
	"io"
	"os"
	"runtime/debug"

	"github.com/pkg/browser"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/brizzai/oauth-playground/internal/callback"
	"github.com/brizzai/oauth-playground/internal/logger"
	"github.com/brizzai/oauth-playground/internal/persistence"
	"github.com/brizzai/oauth-playground/internal/present"
	"github.com/brizzai/oauth-playground/internal/tui"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"
)

var playCmd = &cobra.Command{
	Use:   "play",
	Short: "Run the terminal UI",
	Long: `Walk through the authorization-code grant in the terminal. When the redirect URI
points at localhost, the code is captured by a local listener, otherwise paste it.`,
	Args: cobra.NoArgs,
	Run:  runTUI,
}

// runTUI is the main function that runs the TUI
func runTUI(cmd *cobra.Command, args []string) {
	defer func() {
		if r := recover(); r != nil {
			pterm.Error.Printf("\nCaught panic: %v\n", r)
			pterm.Error.Printf("%s\n", debug.Stack())
			os.Exit(2)
		}
	}()

	service, err := newService()
	if err != nil {
		pterm.Error.Printf("Error loading providers: %v\n", err)
		os.Exit(1)
	}

	// xdg-open chatter would end up on the alt screen
	browser.Stdout = io.Discard
	browser.Stderr = io.Discard

	persister := persistence.NewPersister(cfg.Persistence, nil)
	defer func() {
		if err := persister.Close(); err != nil {
			logger.Warn("Closing the persistence sink failed", zap.Error(err))
		}
	}()

	p := tea.NewProgram(tui.NewAppModel(tui.Options{
		Service:   service,
		Engine:    newEngine(nil),
		Persister: persister,
		OpenURL:   browser.OpenURL,
		Listen:    callback.Listen,
	}), tea.WithAltScreen())

	m, err := p.Run()
	if err != nil {
		pterm.Error.Printf("Error running program: %v\n", err)
		os.Exit(1)
	}

	finalModel := m.(tui.AppModel)
	finalModel.Close()

	// Only display summary if the session ended with credentials
	if finalModel.IsFinished() {
		c := present.FromSnapshot(finalModel.Session().Snapshot())
		pterm.Info.Printfln("Authenticated with %s, access token %s.",
			pterm.LightGreen(c.Provider),
			pterm.White(c.AccessTokenPreview))
	}
}
