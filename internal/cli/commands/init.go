package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/crmdash/crmdash/internal/cli/config"
	"github.com/crmdash/crmdash/internal/cli/output"
)

// NewInitCmd creates the init command
func NewInitCmd() *cobra.Command {
	var alias string

	cmd := &cobra.Command{
		Use:   "init [graphql-url]",
		Short: "Create or extend crmdash.json in the current directory",
		Long: `Create or extend crmdash.json in the current directory.

Without an argument the local development endpoint is added.

Examples:
  $ crmdash init
  $ crmdash init https://api.crm.example.com/graphql --alias prod`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			currentDir, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("failed to get current directory: %w", err)
			}

			endpointURL := config.DefaultConfig().Endpoints[0].URL
			if len(args) > 0 {
				endpointURL = args[0]
			}

			printer := output.NewPrinterWithWriters(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.ResolveColors())
			return runInit(printer, currentDir, endpointURL, alias)
		},
	}

	cmd.Flags().StringVar(&alias, "alias", "", "Alias for the endpoint (defaults to 'local' or 'endpoint-N')")

	return cmd
}

func runInit(p *output.Printer, dir, endpointURL, alias string) error {
	if err := config.ValidateURL(endpointURL); err != nil {
		return err
	}

	configPath := filepath.Join(dir, config.ConfigFileName)

	var cfg *config.Config
	isNewConfig := false

	if _, err := os.Stat(configPath); err == nil {
		cfg, err = config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load existing config: %w", err)
		}
		p.Info("Found existing %s", config.ConfigFileName)
	} else {
		cfg = &config.Config{Endpoints: []config.Endpoint{}}
		isNewConfig = true
	}

	if _, err := cfg.GetEndpointByURL(endpointURL); err == nil {
		p.Warning("Endpoint %s already exists in %s", endpointURL, config.ConfigFileName)
		return nil
	}

	if alias == "" {
		if len(cfg.Endpoints) == 0 {
			alias = "local"
		} else {
			alias = fmt.Sprintf("endpoint-%d", len(cfg.Endpoints)+1)
		}
	}

	cfg.Endpoints = append(cfg.Endpoints, config.Endpoint{
		URL:   endpointURL,
		Alias: alias,
	})

	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := config.Save(configPath, cfg); err != nil {
		return err
	}

	if isNewConfig {
		p.Success("Created ./%s with endpoint %s (%s)", config.ConfigFileName, endpointURL, alias)
	} else {
		p.Success("Added endpoint %s (%s) to ./%s", endpointURL, alias, config.ConfigFileName)
	}

	p.Print("\nNext steps:")
	p.Print("  1. Run 'crmdash login' to authenticate")
	p.Print("  2. Run 'crmdash dash deals' to see your pipeline")

	return nil
}
