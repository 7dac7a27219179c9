package main

import (
	"os"

	"github.com/pterm/pterm"

	"github.com/brizzai/oauth-playground/internal/auth"
	"github.com/brizzai/oauth-playground/internal/auth/flow"
	"github.com/brizzai/oauth-playground/internal/config"
	"github.com/brizzai/oauth-playground/internal/inspect"
	"github.com/brizzai/oauth-playground/internal/logger"
	"github.com/brizzai/oauth-playground/internal/requester"
	"github.com/spf13/cobra"
)

func main() {
	Execute()
}

var (
	envFiles []string

	// cfg is loaded once the flags are parsed
	cfg *config.Config
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "oauth-playground",
	Short: "Exercise the OAuth2 authorization-code grant against real providers",
	Long: `OAuth Playground walks through the authorization-code grant step by step:
it builds the authorization URL, captures the code, exchanges it for tokens and
fetches the user profile, so you can inspect every credential the provider returns.

Run "serve" for the browser dashboard or "play" for the terminal UI.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	// Place version check in PreRun to ensure flags are parsed first
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		versionFlag, _ := cmd.Flags().GetBool("version")
		if versionFlag {
			pterm.Info.Println(config.GetVersionInfo())
			os.Exit(0)
		}
		return bootstrap(cmd)
	}
	rootCmd.RunE = func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	}

	if err := rootCmd.Execute(); err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}
}

func init() {
	config.InitFlags(rootCmd.PersistentFlags())
	rootCmd.PersistentFlags().StringSliceVar(&envFiles, "env-file", []string{".env"}, "Dotenv files with provider credentials")
	rootCmd.PersistentFlags().BoolP("version", "v", false, "Show version information")

	rootCmd.AddCommand(providersCmd, urlCmd, exchangeCmd, serveCmd, playCmd)
}

// bootstrap loads .env files and settings, then starts logging unless the command
// draws on the terminal itself.
func bootstrap(cmd *cobra.Command) error {
	if err := config.LoadDotEnv(envFiles...); err != nil {
		return err
	}

	loaded, err := config.Load(cmd.Flags())
	if err != nil {
		return err
	}
	cfg = loaded

	if cmd == playCmd && cfg.Logging.OutputPath == "" {
		// the TUI owns the terminal
		return nil
	}
	return logger.InitLogger(&cfg.Logging)
}

// newService reads provider defaults from the process environment.
func newService() (*auth.Service, error) {
	return auth.NewService(nil, nil)
}

// newEngine builds the flow engine the one-shot commands use.
func newEngine(observer flow.Observer) *flow.Engine {
	httpCfg := cfg.HTTP
	opts := []flow.Option{flow.WithVerifier(inspect.NewFromConfig(inspect.VerifierParams{Config: &cfg.OIDC}))}
	if observer != nil {
		opts = append(opts, flow.WithObserver(observer))
	}
	return flow.New(requester.NewHTTPRequester(requester.HTTPRequesterParams{HTTPConfig: &httpCfg}), opts...)
}
