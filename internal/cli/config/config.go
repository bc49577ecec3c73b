package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

const ConfigFileName = "crmdash.json"

// Endpoint is a CRM GraphQL API the CLI can talk to
type Endpoint struct {
	URL   string `json:"url"`
	Alias string `json:"alias"`
}

// Label renders the endpoint for prompts and messages
func (e Endpoint) Label() string {
	if e.Alias == "" {
		return e.URL
	}
	return fmt.Sprintf("%s (%s)", e.Alias, e.URL)
}

// Config represents the CLI configuration file
type Config struct {
	Endpoints []Endpoint `json:"endpoints"`
}

// DefaultConfig returns a configuration pointing at a local dev server
func DefaultConfig() *Config {
	return &Config{
		Endpoints: []Endpoint{
			{
				URL:   "http://localhost:8080/graphql",
				Alias: "local",
			},
		},
	}
}

// FindConfigFile searches for crmdash.json in current directory and parent directories
func FindConfigFile() (string, error) {
	currentDir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get current directory: %w", err)
	}

	return FindConfigFileFrom(currentDir)
}

// FindConfigFileFrom searches for crmdash.json starting at dir
func FindConfigFileFrom(start string) (string, error) {
	dir := start
	for {
		configPath := filepath.Join(dir, ConfigFileName)
		if _, err := os.Stat(configPath); err == nil {
			return configPath, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", fmt.Errorf("%s not found in %s or any parent directory", ConfigFileName, start)
}

// Load reads and validates the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}

	return &cfg, nil
}

// LoadFromCurrentDir loads config from current directory or parent directories
func LoadFromCurrentDir() (*Config, error) {
	configPath, err := FindConfigFile()
	if err != nil {
		return nil, err
	}

	return Load(configPath)
}

// Save writes the configuration to a file
func Save(path string, cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks that every endpoint has an absolute http(s) URL and that
// aliases are unique
func (c *Config) Validate() error {
	aliases := make(map[string]bool)
	for i, endpoint := range c.Endpoints {
		if err := ValidateURL(endpoint.URL); err != nil {
			return fmt.Errorf("endpoint %d: %w", i+1, err)
		}
		if endpoint.Alias == "" {
			continue
		}
		if aliases[endpoint.Alias] {
			return fmt.Errorf("duplicate endpoint alias '%s'", endpoint.Alias)
		}
		aliases[endpoint.Alias] = true
	}
	return nil
}

// ValidateURL checks that raw is an absolute http or https URL
func ValidateURL(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return fmt.Errorf("url is empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid url '%s': %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid url '%s': scheme must be http or https", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid url '%s': missing host", raw)
	}
	return nil
}

// GetEndpointByAlias returns an endpoint by its alias
func (c *Config) GetEndpointByAlias(alias string) (*Endpoint, error) {
	for i := range c.Endpoints {
		if c.Endpoints[i].Alias == alias {
			return &c.Endpoints[i], nil
		}
	}
	return nil, fmt.Errorf("endpoint with alias '%s' not found", alias)
}

// GetEndpointByURL returns an endpoint by its URL
func (c *Config) GetEndpointByURL(rawURL string) (*Endpoint, error) {
	for i := range c.Endpoints {
		if c.Endpoints[i].URL == rawURL {
			return &c.Endpoints[i], nil
		}
	}
	return nil, fmt.Errorf("endpoint with url '%s' not found", rawURL)
}

// GetEndpointByURLOrAlias finds an endpoint by URL first, then by alias
func (c *Config) GetEndpointByURLOrAlias(urlOrAlias string) (*Endpoint, error) {
	if endpoint, err := c.GetEndpointByURL(urlOrAlias); err == nil {
		return endpoint, nil
	}
	if endpoint, err := c.GetEndpointByAlias(urlOrAlias); err == nil {
		return endpoint, nil
	}
	return nil, fmt.Errorf("endpoint with url or alias '%s' not found", urlOrAlias)
}
