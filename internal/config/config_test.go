package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/aleister1102/oerscout/internal/models"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultGlobalConfig(t *testing.T) {
	cfg := NewDefaultGlobalConfig()

	require.NotNil(t, cfg)
	assert.Equal(t, DefaultFetcherRetries, cfg.FetcherConfig.Retries)
	assert.Equal(t, DefaultFetcherRetryDelayMs, cfg.FetcherConfig.RetryDelayMs)
	assert.True(t, cfg.FetcherConfig.RespectRobotsTxt)
	assert.Equal(t, "sqlite", cfg.StoreConfig.Driver)
	assert.Equal(t, float64(10), cfg.DiscoveryConfig.MinScore)
	assert.Equal(t, 2, cfg.RetrievalConfig.Concurrency)
	assert.NotEmpty(t, cfg.Seeds)
	assert.NotEmpty(t, cfg.ScanConfig.AllowedDomains)
	assert.NoError(t, ValidateConfig(cfg))
}

func TestLoadGlobalConfig_NoConfigFile(t *testing.T) {
	t.Setenv(ConfigPathEnv, "")
	cfg, err := LoadGlobalConfig("", zerolog.Nop())

	require.NoError(t, err)
	assert.Equal(t, DefaultFetcherUserAgent, cfg.FetcherConfig.UserAgent)
}

func TestLoadGlobalConfig_NonExistentFile(t *testing.T) {
	cfg, err := LoadGlobalConfig("/nonexistent/config.json", zerolog.Nop())

	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "config file does not exist")
}

func TestLoadGlobalConfig_YAMLFile(t *testing.T) {
	configFile := filepath.Join(t.TempDir(), "config.yaml")
	content := `
fetcher_config:
  user_agent: "TestBot/1.0"
  retries: 5
log_config:
  log_level: debug
store_config:
  driver: sqlite
  sqlite_path: /tmp/test.db
seeds:
  - name: Example Docs
    type: generic_html
    base_url: https://docs.example.org
    seed_url: https://docs.example.org/start
    rate_limit_per_minute: 12
`
	require.NoError(t, os.WriteFile(configFile, []byte(content), 0644))

	cfg, err := LoadGlobalConfig(configFile, zerolog.Nop())
	require.NoError(t, err)

	assert.Equal(t, "TestBot/1.0", cfg.FetcherConfig.UserAgent)
	assert.Equal(t, 5, cfg.FetcherConfig.Retries)
	// untouched fields keep their defaults
	assert.Equal(t, DefaultFetcherTimeoutSecs, cfg.FetcherConfig.TimeoutSecs)
	assert.Equal(t, "debug", cfg.LogConfig.LogLevel)
	assert.Equal(t, "sqlite", cfg.StoreConfig.Driver)
	require.Len(t, cfg.Seeds, 1)
	assert.Equal(t, models.SourceTypeGenericHTML, cfg.Seeds[0].Type)
	assert.Equal(t, 12, cfg.Seeds[0].RateLimitPerMinute)

	seed, ok := cfg.FindSeed("Example Docs")
	assert.True(t, ok)
	assert.Equal(t, "https://docs.example.org/start", seed.SeedURL)
	assert.NoError(t, ValidateConfig(cfg))
}

func TestLoadGlobalConfig_JSONFile(t *testing.T) {
	configFile := filepath.Join(t.TempDir(), "config.json")
	content := `{"discovery_config": {"min_score": 15, "enable_web_search": false}}`
	require.NoError(t, os.WriteFile(configFile, []byte(content), 0644))

	cfg, err := LoadGlobalConfig(configFile, zerolog.Nop())
	require.NoError(t, err)

	assert.Equal(t, float64(15), cfg.DiscoveryConfig.MinScore)
	assert.False(t, cfg.DiscoveryConfig.EnableWebSearch)
}

func TestLoadGlobalConfig_InvalidJSON(t *testing.T) {
	configFile := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(configFile, []byte(`{"fetcher_config": `), 0644))

	cfg, err := LoadGlobalConfig(configFile, zerolog.Nop())
	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "failed to parse config content")
}

func TestGetConfigPath_EnvVar(t *testing.T) {
	configFile := filepath.Join(t.TempDir(), "custom.yaml")
	require.NoError(t, os.WriteFile(configFile, []byte("{}"), 0644))
	t.Setenv(ConfigPathEnv, configFile)

	assert.Equal(t, configFile, GetConfigPath(""))
	assert.Equal(t, "", GetConfigPath("/does/not/exist.yaml"))
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(cfg *GlobalConfig)
		wantErr string
	}{
		{
			name:   "defaults are valid",
			mutate: func(cfg *GlobalConfig) {},
		},
		{
			name:    "bad log level",
			mutate:  func(cfg *GlobalConfig) { cfg.LogConfig.LogLevel = "verbose" },
			wantErr: "loglevel",
		},
		{
			name:    "bad log format",
			mutate:  func(cfg *GlobalConfig) { cfg.LogConfig.LogFormat = "xml" },
			wantErr: "logformat",
		},
		{
			name:    "unknown store driver",
			mutate:  func(cfg *GlobalConfig) { cfg.StoreConfig.Driver = "postgres" },
			wantErr: "storedriver",
		},
		{
			name: "sqlite without path",
			mutate: func(cfg *GlobalConfig) {
				cfg.StoreConfig.Driver = "sqlite"
				cfg.StoreConfig.SQLitePath = ""
			},
			wantErr: "sqlite_path is required",
		},
		{
			name:    "unknown source type",
			mutate:  func(cfg *GlobalConfig) { cfg.Seeds[0].Type = "wiki" },
			wantErr: "sourcetype",
		},
		{
			name:    "seed url must be absolute",
			mutate:  func(cfg *GlobalConfig) { cfg.Seeds[0].SeedURL = "not a url" },
			wantErr: "url",
		},
		{
			name:    "duplicate seed names",
			mutate:  func(cfg *GlobalConfig) { cfg.Seeds[1].Name = cfg.Seeds[0].Name },
			wantErr: "duplicate seed name",
		},
		{
			name:    "search template without placeholder",
			mutate:  func(cfg *GlobalConfig) { cfg.DiscoveryConfig.WebSearchURLTemplate = "https://search.example.org/" },
			wantErr: "querytemplate",
		},
		{
			name: "invalid seed selector",
			mutate: func(cfg *GlobalConfig) {
				cfg.Seeds[0].Config = map[string]interface{}{"toc_selector": "div[unclosed"}
			},
			wantErr: "invalid selector in toc_selector",
		},
		{
			name: "valid selector list",
			mutate: func(cfg *GlobalConfig) {
				cfg.Seeds[0].Config = map[string]interface{}{"nav_selectors": []interface{}{"nav a", ".sidebar a"}}
			},
		},
		{
			name:    "empty allowlist entry",
			mutate:  func(cfg *GlobalConfig) { cfg.ScanConfig.AllowedDomains = []string{"python.org", ""} },
			wantErr: "required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultGlobalConfig()
			tt.mutate(cfg)
			err := ValidateConfig(cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDefaultSeedsCoverEveryAdapterFamily(t *testing.T) {
	types := map[models.SourceType]bool{}
	for _, s := range DefaultSeeds() {
		types[s.Type] = true
	}
	assert.True(t, types[models.SourceTypeCatalogAPI])
	assert.True(t, types[models.SourceTypeCuratedCourse])
	assert.True(t, types[models.SourceTypeSphinxDocs])
	assert.True(t, types[models.SourceTypeGenericHTML])
}
