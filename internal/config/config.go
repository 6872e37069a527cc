package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/aleister1102/oerscout/internal/common"
	"github.com/aleister1102/oerscout/internal/models"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

const (
	// Fetcher Defaults
	DefaultFetcherUserAgent             = "OERScout/1.0 (+https://github.com/aleister1102/oerscout)"
	DefaultFetcherBotToken              = "oerscout"
	DefaultFetcherTimeoutSecs           = 30
	DefaultFetcherRetries               = 3
	DefaultFetcherRetryDelayMs          = 1000
	DefaultFetcherRatePerMinute         = 30
	DefaultFetcherBurstSize             = 3
	DefaultFetcherRobotsCacheTTLMinutes = 60
	DefaultFetcherMaxBodyMB             = 10

	// Store Defaults
	DefaultStoreDriver          = "sqlite"
	DefaultStoreSQLitePath      = "database/oerscout.db"
	DefaultStoreInsertBatchSize = 100

	// Discovery Defaults
	DefaultDiscoveryCatalogTTLMinutes = 60
	DefaultDiscoveryMinScore          = 10
	DefaultDiscoveryWebSearchURL      = "https://html.duckduckgo.com/html/?q={query}"
	DefaultDiscoveryMaxHeuristicNodes = 50

	// Retrieval Defaults
	DefaultRetrievalConcurrency        = 2
	DefaultRetrievalBatchDelayMs       = 500
	DefaultRetrievalMinParagraphLength = 20
	DefaultRetrievalBatchTimeoutSecs   = 120

	// Log Defaults
	DefaultLogLevel      = "info"
	DefaultLogFormat     = "console"
	DefaultLogFile       = ""
	DefaultMaxLogSizeMB  = 100
	DefaultMaxLogBackups = 3
)

// ConfigPathEnv overrides the config file location.
const ConfigPathEnv = "OERSCOUT_CONFIG_PATH"

type GlobalConfig struct {
	DiscoveryConfig DiscoveryConfig     `json:"discovery_config,omitempty" yaml:"discovery_config,omitempty"`
	FetcherConfig   FetcherConfig       `json:"fetcher_config,omitempty" yaml:"fetcher_config,omitempty"`
	LogConfig       LogConfig           `json:"log_config,omitempty" yaml:"log_config,omitempty"`
	RetrievalConfig RetrievalConfig     `json:"retrieval_config,omitempty" yaml:"retrieval_config,omitempty"`
	ScanConfig      ScanConfig          `json:"scan_config,omitempty" yaml:"scan_config,omitempty"`
	Seeds           []models.SeedConfig `json:"seeds,omitempty" yaml:"seeds,omitempty" validate:"dive"`
	StoreConfig     StoreConfig         `json:"store_config,omitempty" yaml:"store_config,omitempty"`
}

func NewDefaultGlobalConfig() *GlobalConfig {
	return &GlobalConfig{
		DiscoveryConfig: NewDefaultDiscoveryConfig(),
		FetcherConfig:   NewDefaultFetcherConfig(),
		LogConfig:       NewDefaultLogConfig(),
		RetrievalConfig: NewDefaultRetrievalConfig(),
		ScanConfig:      NewDefaultScanConfig(),
		Seeds:           DefaultSeeds(),
		StoreConfig:     NewDefaultStoreConfig(),
	}
}

// FindSeed returns the seed with the given name.
func (c *GlobalConfig) FindSeed(name string) (models.SeedConfig, bool) {
	for _, s := range c.Seeds {
		if s.Name == name {
			return s, true
		}
	}
	return models.SeedConfig{}, false
}

// LoadGlobalConfig loads the configuration from a file or default locations.
// It supports both JSON and YAML; YAML is used for .yaml and .yml extensions.
// Without any config file the defaults are returned.
func LoadGlobalConfig(providedPath string, logger zerolog.Logger) (*GlobalConfig, error) {
	cfg := NewDefaultGlobalConfig()

	filePath := GetConfigPath(providedPath)
	if filePath == "" {
		if providedPath != "" {
			return nil, common.NewValidationError("config_file", providedPath, "config file does not exist")
		}
		logger.Debug().Msg("No config file found, using defaults")
		return cfg, nil
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, common.WrapError(err, "failed to load config file content")
	}

	if err := parseConfigContent(data, filePath, cfg); err != nil {
		return nil, common.WrapError(err, "failed to parse config content")
	}

	logger.Info().Str("path", filePath).Int("seeds", len(cfg.Seeds)).Msg("Configuration loaded")
	return cfg, nil
}

// parseConfigContent parses the config content based on file extension
func parseConfigContent(data []byte, filePath string, cfg *GlobalConfig) error {
	ext := filepath.Ext(filePath)
	if isYAMLFile(ext) {
		return parseYAMLConfig(data, filePath, cfg)
	}
	return parseJSONConfig(data, filePath, cfg)
}

// isYAMLFile checks if the file extension indicates a YAML file
func isYAMLFile(ext string) bool {
	return ext == ".yaml" || ext == ".yml"
}

// parseYAMLConfig parses YAML configuration
func parseYAMLConfig(data []byte, filePath string, cfg *GlobalConfig) error {
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return common.NewError("failed to unmarshal YAML from '%s': %w", filePath, err)
	}
	return nil
}

// parseJSONConfig parses JSON configuration
func parseJSONConfig(data []byte, filePath string, cfg *GlobalConfig) error {
	if err := json.Unmarshal(data, cfg); err != nil {
		return common.NewError("failed to unmarshal JSON from '%s': %w", filePath, err)
	}
	return nil
}
