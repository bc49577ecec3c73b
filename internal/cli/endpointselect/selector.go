package endpointselect

import (
	"fmt"
	"os"

	"github.com/manifoldco/promptui"
	"github.com/rs/zerolog/log"

	"github.com/crmdash/crmdash/internal/cli/config"
	"github.com/crmdash/crmdash/internal/cli/userconfig"
)

// EnvEndpoint overrides the configured endpoint without touching crmdash.json
const EnvEndpoint = "CRMDASH_ENDPOINT"

// Prompter asks the user to pick one endpoint. Tests replace it.
var Prompter = PromptEndpointSelection

// ResolveEndpoint determines which endpoint to use based on the following priority:
// 1. CRMDASH_ENDPOINT, when set, is used as-is (no project config required)
// 2. If alias is provided, use that endpoint
// 3. If user has a selected endpoint in their local config, use that
// 4. If only one endpoint in project config, use that
// 5. Otherwise, prompt user to select an endpoint interactively
func ResolveEndpoint(projectConfig *config.Config, alias string) (*config.Endpoint, error) {
	if raw := os.Getenv(EnvEndpoint); raw != "" {
		if err := config.ValidateURL(raw); err != nil {
			return nil, fmt.Errorf("%s: %w", EnvEndpoint, err)
		}
		return &config.Endpoint{URL: raw, Alias: "env"}, nil
	}

	if projectConfig == nil {
		return nil, fmt.Errorf("no %s found. Run 'crmdash init' or set %s", config.ConfigFileName, EnvEndpoint)
	}

	if alias != "" {
		return projectConfig.GetEndpointByURLOrAlias(alias)
	}

	selectedURL, err := userconfig.GetSelectedEndpoint()
	if err != nil {
		return nil, fmt.Errorf("failed to load user config: %w", err)
	}

	if selectedURL != "" {
		endpoint, err := projectConfig.GetEndpointByURL(selectedURL)
		if err == nil {
			return endpoint, nil
		}
		// Selected endpoint no longer exists in project config
		_ = userconfig.SetSelectedEndpoint("")
	}

	if len(projectConfig.Endpoints) == 1 {
		endpoint := &projectConfig.Endpoints[0]
		remember(endpoint)
		return endpoint, nil
	}

	endpoint, err := Prompter(projectConfig)
	if err != nil {
		return nil, err
	}
	remember(endpoint)

	return endpoint, nil
}

func remember(endpoint *config.Endpoint) {
	if err := userconfig.SetSelectedEndpoint(endpoint.URL); err != nil {
		log.Warn().Err(err).Msg("Failed to save selected endpoint")
	}
}

// PromptEndpointSelection shows an interactive prompt for the user to select an endpoint
func PromptEndpointSelection(projectConfig *config.Config) (*config.Endpoint, error) {
	if len(projectConfig.Endpoints) == 0 {
		return nil, fmt.Errorf("no endpoints configured in %s", config.ConfigFileName)
	}

	type endpointOption struct {
		Label    string
		Endpoint *config.Endpoint
	}

	options := make([]endpointOption, len(projectConfig.Endpoints))
	for i := range projectConfig.Endpoints {
		endpoint := &projectConfig.Endpoints[i]
		options[i] = endpointOption{
			Label:    endpoint.Label(),
			Endpoint: endpoint,
		}
	}

	templates := &promptui.SelectTemplates{
		Label:    "{{ . }}",
		Active:   "> {{ .Label | cyan }}",
		Inactive: "  {{ .Label }}",
		Selected: "{{ .Label | green }}",
	}

	prompt := promptui.Select{
		Label:     "Select an endpoint",
		Items:     options,
		Templates: templates,
		Size:      10,
	}

	index, _, err := prompt.Run()
	if err != nil {
		return nil, fmt.Errorf("endpoint selection cancelled: %w", err)
	}

	return options[index].Endpoint, nil
}
