package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr string
	}{
		{name: "http", url: "http://localhost:8080/graphql"},
		{name: "https", url: "https://api.crm.example.com/graphql"},
		{name: "empty", url: "  ", wantErr: "url is empty"},
		{name: "no scheme", url: "localhost:8080/graphql", wantErr: "scheme must be http or https"},
		{name: "ftp", url: "ftp://example.com", wantErr: "scheme must be http or https"},
		{name: "no host", url: "http:///graphql", wantErr: "missing host"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateURL(tt.url)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	t.Run("default is valid", func(t *testing.T) {
		assert.NoError(t, DefaultConfig().Validate())
	})

	t.Run("duplicate alias", func(t *testing.T) {
		cfg := &Config{Endpoints: []Endpoint{
			{URL: "http://a.example.com/graphql", Alias: "prod"},
			{URL: "http://b.example.com/graphql", Alias: "prod"},
		}}
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "duplicate endpoint alias 'prod'")
	})

	t.Run("bad url reports position", func(t *testing.T) {
		cfg := &Config{Endpoints: []Endpoint{
			{URL: "http://a.example.com/graphql"},
			{URL: "not a url"},
		}}
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "endpoint 2")
	})
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), ConfigFileName)
	cfg := &Config{Endpoints: []Endpoint{
		{URL: "http://localhost:8080/graphql", Alias: "local"},
		{URL: "https://api.crm.example.com/graphql", Alias: "prod"},
	}}

	require.NoError(t, Save(path, cfg))
	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestLoad_InvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), ConfigFileName)
	require.NoError(t, os.WriteFile(path, []byte("{"), 0644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config file")
}

func TestFindConfigFileFrom_WalksParents(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b", "c")
	require.NoError(t, os.MkdirAll(nested, 0755))
	require.NoError(t, Save(filepath.Join(root, ConfigFileName), DefaultConfig()))

	path, err := FindConfigFileFrom(nested)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, ConfigFileName), path)
}

func TestFindConfigFileFrom_NotFound(t *testing.T) {
	_, err := FindConfigFileFrom(t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "crmdash.json not found")
}

func TestLookups(t *testing.T) {
	cfg := &Config{Endpoints: []Endpoint{
		{URL: "http://localhost:8080/graphql", Alias: "local"},
		{URL: "https://api.crm.example.com/graphql", Alias: "prod"},
	}}

	endpoint, err := cfg.GetEndpointByAlias("prod")
	require.NoError(t, err)
	assert.Equal(t, "https://api.crm.example.com/graphql", endpoint.URL)

	endpoint, err = cfg.GetEndpointByURLOrAlias("http://localhost:8080/graphql")
	require.NoError(t, err)
	assert.Equal(t, "local", endpoint.Alias)

	endpoint, err = cfg.GetEndpointByURLOrAlias("local")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/graphql", endpoint.URL)

	_, err = cfg.GetEndpointByURLOrAlias("staging")
	assert.Error(t, err)

	assert.Equal(t, "prod (https://api.crm.example.com/graphql)", cfg.Endpoints[1].Label())
	assert.Equal(t, "http://x/graphql", Endpoint{URL: "http://x/graphql"}.Label())
}
