package main

import (
	"context"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/brizzai/oauth-playground/internal/auth"
	"github.com/brizzai/oauth-playground/internal/inspect"
	"github.com/brizzai/oauth-playground/internal/logger"
	"github.com/brizzai/oauth-playground/internal/metrics"
	"github.com/brizzai/oauth-playground/internal/persistence"
	"github.com/brizzai/oauth-playground/internal/requester"
	"github.com/brizzai/oauth-playground/internal/server"
	"github.com/brizzai/oauth-playground/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the browser dashboard",
	Long: `Serve the playground dashboard. Register the dashboard address as the
redirect URI of your OAuth client and the provider sends the code straight back to it.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		newServeApp().Run()
	},
}

func newServeApp() *fx.App {
	return fx.New(
		fx.WithLogger(func() fxevent.Logger {
			return &fxevent.ZapLogger{Logger: logger.GetLogger()}
		}),
		fx.Supply(&cfg.Server, &cfg.HTTP, &cfg.Persistence, &cfg.OIDC),
		requester.Module,
		metrics.Module,
		inspect.Module,
		persistence.Module,
		auth.Module,
		web.Module,
		server.Module,
		fx.Invoke(announce),
	)
}

// announce prints the dashboard address once the server is listening.
func announce(lc fx.Lifecycle, s *server.Server) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			pterm.Success.Printfln("Dashboard listening on http://%s", s.Addr())
			return nil
		},
	})
}
