package config

import "time"

// DiscoveryConfig controls on-demand topic discovery.
type DiscoveryConfig struct {
	CatalogCacheTTLMinutes int     `json:"catalog_cache_ttl_minutes,omitempty" yaml:"catalog_cache_ttl_minutes,omitempty" validate:"omitempty,min=1"`
	EnableWebSearch        bool    `json:"enable_web_search" yaml:"enable_web_search"`
	MaxHeuristicNodes      int     `json:"max_heuristic_nodes,omitempty" yaml:"max_heuristic_nodes,omitempty" validate:"omitempty,min=1"`
	MinScore               float64 `json:"min_score,omitempty" yaml:"min_score,omitempty" validate:"omitempty,min=0"`
	WebSearchURLTemplate   string  `json:"web_search_url_template,omitempty" yaml:"web_search_url_template,omitempty" validate:"omitempty,querytemplate"`
}

func NewDefaultDiscoveryConfig() DiscoveryConfig {
	return DiscoveryConfig{
		CatalogCacheTTLMinutes: DefaultDiscoveryCatalogTTLMinutes,
		EnableWebSearch:        true,
		MaxHeuristicNodes:      DefaultDiscoveryMaxHeuristicNodes,
		MinScore:               DefaultDiscoveryMinScore,
		WebSearchURLTemplate:   DefaultDiscoveryWebSearchURL,
	}
}

// CatalogCacheTTL returns how long provider catalogs are cached.
func (c DiscoveryConfig) CatalogCacheTTL() time.Duration {
	return time.Duration(c.CatalogCacheTTLMinutes) * time.Minute
}
