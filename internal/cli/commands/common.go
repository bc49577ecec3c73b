package commands

import (
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/crmdash/crmdash/internal/cli/auth"
	"github.com/crmdash/crmdash/internal/cli/authsession"
	"github.com/crmdash/crmdash/internal/cli/client"
	"github.com/crmdash/crmdash/internal/cli/config"
	"github.com/crmdash/crmdash/internal/cli/endpointselect"
	"github.com/crmdash/crmdash/internal/cli/output"
)

// GlobalOptions holds the persistent flags shared by every command
type GlobalOptions struct {
	Endpoint string
	Store    string
	LogLevel string
}

// session bundles what a session-aware command needs
type session struct {
	endpoint *config.Endpoint
	gateway  client.Executor
	manager  *authsession.Manager
	printer  *output.Printer
}

// newSession resolves the endpoint and wires store, client and manager.
// A missing crmdash.json is tolerated when CRMDASH_ENDPOINT is set.
func newSession(cmd *cobra.Command, opts *GlobalOptions) (*session, error) {
	cfg, err := loadProjectConfig()
	if err != nil {
		return nil, err
	}

	endpoint, err := endpointselect.ResolveEndpoint(cfg, opts.Endpoint)
	if err != nil {
		return nil, err
	}

	store, err := auth.NewStore(opts.Store, endpoint.URL)
	if err != nil {
		return nil, err
	}

	gateway := client.New(endpoint.URL, log.Logger)
	printer := output.NewPrinterWithWriters(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.ResolveColors())

	return &session{
		endpoint: endpoint,
		gateway:  gateway,
		manager:  authsession.New(store, gateway, log.Logger.With().Str("endpoint", endpoint.URL).Logger()),
		printer:  printer,
	}, nil
}

// loadProjectConfig returns nil (no error) when no crmdash.json exists
func loadProjectConfig() (*config.Config, error) {
	path, err := config.FindConfigFile()
	if err != nil {
		if os.Getenv(endpointselect.EnvEndpoint) != "" {
			return nil, nil
		}
		return nil, fmt.Errorf("%w\nRun 'crmdash init' to create a configuration file", err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// reportSessionError prints a hint when a request forced a logout
func reportSessionError(p *output.Printer, err error) error {
	if errors.Is(err, authsession.ErrSessionExpired) {
		p.Warning("Your session has expired. Run 'crmdash login' to sign in again")
	}
	return err
}
