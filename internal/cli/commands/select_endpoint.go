package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/crmdash/crmdash/internal/cli/config"
	"github.com/crmdash/crmdash/internal/cli/endpointselect"
	"github.com/crmdash/crmdash/internal/cli/output"
	"github.com/crmdash/crmdash/internal/cli/userconfig"
)

// NewSelectEndpointCmd creates the select-endpoint command
func NewSelectEndpointCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "select-endpoint [url-or-alias]",
		Short: "Select the endpoint to use for commands",
		Long: `Select the endpoint to use for commands.

If no param is provided, an interactive prompt will be shown.

Examples:
  $ crmdash select-endpoint                                      # Interactive selection
  $ crmdash select-endpoint https://api.crm.example.com/graphql  # Select by URL
  $ crmdash select-endpoint prod                                 # Select by alias`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var urlOrAlias string
			if len(args) > 0 {
				urlOrAlias = args[0]
			}
			printer := output.NewPrinterWithWriters(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.ResolveColors())
			return runSelectEndpoint(printer, urlOrAlias)
		},
	}

	return cmd
}

func runSelectEndpoint(p *output.Printer, urlOrAlias string) error {
	cfg, err := config.LoadFromCurrentDir()
	if err != nil {
		return fmt.Errorf("failed to load config: %w\nRun 'crmdash init' to create a configuration file", err)
	}

	var endpoint *config.Endpoint
	if urlOrAlias != "" {
		endpoint, err = cfg.GetEndpointByURLOrAlias(urlOrAlias)
	} else {
		endpoint, err = endpointselect.Prompter(cfg)
	}
	if err != nil {
		return err
	}

	if err := userconfig.SetSelectedEndpoint(endpoint.URL); err != nil {
		return fmt.Errorf("failed to save selected endpoint: %w", err)
	}

	p.Success("Selected endpoint: %s", endpoint.Label())
	return nil
}
