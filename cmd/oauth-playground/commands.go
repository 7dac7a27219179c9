package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/pkg/browser"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/brizzai/oauth-playground/internal/auth"
	"github.com/brizzai/oauth-playground/internal/auth/constants"
	"github.com/brizzai/oauth-playground/internal/auth/flow"
	"github.com/brizzai/oauth-playground/internal/auth/providers"
	"github.com/brizzai/oauth-playground/internal/persistence"
	"github.com/brizzai/oauth-playground/internal/present"
)

// flowFlags are the provider settings shared by url and exchange.
type flowFlags struct {
	provider     string
	clientID     string
	clientSecret string
	redirectURI  string
	scope        string
	authURL      string
	tokenURL     string
	userinfoURL  string
}

func (f *flowFlags) register(cmd *cobra.Command, withSecret bool) {
	fs := cmd.Flags()
	fs.StringVarP(&f.provider, "provider", "p", providers.GoogleAnalyticsName, "Provider name, see the providers command")
	fs.StringVar(&f.clientID, "client-id", "", "Client ID (defaults to the provider's environment key)")
	if withSecret {
		fs.StringVar(&f.clientSecret, "client-secret", "", "Client secret (defaults to the provider's environment key)")
	}
	fs.StringVar(&f.redirectURI, "redirect-uri", "", "Redirect URI")
	fs.StringVar(&f.scope, "scope", "", "Scope, in the provider's own delimiter convention")
	fs.StringVar(&f.authURL, "auth-url", "", "Authorization URL of the Custom provider")
	fs.StringVar(&f.tokenURL, "token-url", "", "Token URL of the Custom provider")
	fs.StringVar(&f.userinfoURL, "userinfo-url", "", "User info URL of the Custom provider")
}

// session starts a session for the selected provider with the flags laid over the
// environment defaults.
func (f *flowFlags) session(service *auth.Service) (*flow.Session, error) {
	registry := service.Registry()
	name := strings.TrimSpace(f.provider)
	if registry.IsCustom(name) && !strings.EqualFold(name, constants.CustomProviderName) {
		return nil, fmt.Errorf("%w: %s, expected one of %s", providers.ErrUnknownProvider, name, strings.Join(service.Choices(), ", "))
	}
	if registry.IsCustom(name) {
		name = constants.CustomProviderName
	}

	s, _ := service.NewSession(name)
	if name == constants.CustomProviderName {
		endpoints := service.CustomEndpoints()
		override(&endpoints.AuthURL, f.authURL)
		override(&endpoints.TokenURL, f.tokenURL)
		override(&endpoints.UserinfoURL, f.userinfoURL)
		if _, err := service.Switch(s, name, &endpoints); err != nil {
			return nil, err
		}
	}

	c := s.Config()
	override(&c.ClientID, f.clientID)
	override(&c.ClientSecret, f.clientSecret)
	override(&c.RedirectURI, f.redirectURI)
	override(&c.Scope, f.scope)
	s.UpdateConfig(c)
	return s, nil
}

func override(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "List the available providers and their environment keys",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		service, err := newService()
		if err != nil {
			return err
		}

		rows := pterm.TableData{{"Provider", "Authorization URL", "Token URL", "Profile URL", "Environment", "Loaded"}}
		for _, name := range service.Choices() {
			p := service.Resolve(name)
			_, loaded := service.Defaults(p)
			keys := p.EnvKeys()
			rows = append(rows, []string{
				name,
				orDash(p.AuthorizationEndpoint()),
				orDash(p.TokenEndpoint()),
				orDash(providers.ProfileEndpoint(p)),
				strings.Join([]string{keys.ClientID, keys.ClientSecret, keys.RedirectURI}, " "),
				fmt.Sprintf("%t", loaded),
			})
		}
		return pterm.DefaultTable.WithHasHeader().WithData(rows).Render()
	},
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

var (
	urlFlags flowFlags
	urlOpen  bool
)

var urlCmd = &cobra.Command{
	Use:   "url",
	Short: "Print the authorization URL of a provider",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		service, err := newService()
		if err != nil {
			return err
		}
		s, err := urlFlags.session(service)
		if err != nil {
			return err
		}

		authURL, err := newEngine(nil).AuthorizationURL(s)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), authURL)

		if urlOpen {
			browser.Stdout = cmd.ErrOrStderr()
			if err := browser.OpenURL(authURL); err != nil {
				pterm.Warning.Println("Could not open a browser, copy the URL above.")
			}
		}
		return nil
	},
}

var (
	exchangeFlags   flowFlags
	exchangeCode    string
	exchangeFormat  string
	exchangePersist bool
)

var exchangeCmd = &cobra.Command{
	Use:   "exchange",
	Short: "Exchange an authorization code and print the credentials",
	Long: `Exchange an authorization code for tokens, fetch the profile and print
everything as json or yaml. --code takes the bare code or the whole redirect URL.`,
	Args: cobra.NoArgs,
	RunE: runExchange,
}

func runExchange(cmd *cobra.Command, args []string) error {
	format, err := present.ParseFormat(exchangeFormat)
	if err != nil {
		return err
	}

	service, err := newService()
	if err != nil {
		return err
	}
	s, err := exchangeFlags.session(service)
	if err != nil {
		return err
	}
	engine := newEngine(nil)

	code := exchangeCode
	if strings.Contains(code, "code=") {
		cb, err := flow.ParseCallback(code)
		if err != nil {
			return err
		}
		if cb.Error != "" {
			return fmt.Errorf("provider returned %s: %s", cb.Error, cb.ErrorDescription)
		}
		code = cb.Code
	}
	if _, err := engine.SubmitCode(s, code); err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if _, err := engine.Exchange(ctx, s); err != nil {
		var failed *flow.ExchangeFailedError
		if errors.As(err, &failed) && failed.StatusCode != 0 {
			fmt.Fprintln(cmd.ErrOrStderr(), pterm.Error.Sprintf("Token exchange failed with status %d", failed.StatusCode))
			fmt.Fprintln(cmd.ErrOrStderr(), failed.Detail())
		}
		return err
	}

	snap := s.Snapshot()
	if snap.Profile == nil {
		fmt.Fprintln(cmd.ErrOrStderr(), pterm.Warning.Sprint("No profile was fetched."))
	}
	out, err := present.Marshal(present.FromSnapshot(snap), format)
	if err != nil {
		return err
	}
	if _, err := cmd.OutOrStdout().Write(out); err != nil {
		return err
	}

	if exchangePersist {
		return persist(ctx, cmd, snap)
	}
	return nil
}

// persist appends snap to the sink. Messages go to stderr, stdout carries the credentials.
func persist(ctx context.Context, cmd *cobra.Command, snap flow.Snapshot) error {
	p := persistence.NewPersister(cfg.Persistence, nil)
	defer func() {
		if err := p.Close(); err != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), pterm.Warning.Sprintf("Closing the persistence sink failed: %v", err))
		}
	}()

	rec, err := p.Persist(ctx, snap)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.ErrOrStderr(), pterm.Success.Sprintf("Credentials for %s saved to %s.", rec.Email, cfg.Persistence.Table))
	return nil
}

func init() {
	urlFlags.register(urlCmd, false)
	urlCmd.Flags().BoolVar(&urlOpen, "open", false, "Open the URL in the default browser")

	exchangeFlags.register(exchangeCmd, true)
	exchangeCmd.Flags().StringVarP(&exchangeCode, "code", "c", "", "Authorization code or redirect URL")
	exchangeCmd.Flags().StringVarP(&exchangeFormat, "format", "o", "json", "Output format (json|yaml)")
	exchangeCmd.Flags().BoolVar(&exchangePersist, "persist", false, "Append the credentials to the configured persistence sink")
	_ = exchangeCmd.MarkFlagRequired("code")
}
