package models

import "time"

// SourceType identifies which adapter family handles a Source.
type SourceType string

const (
	SourceTypeCatalogAPI    SourceType = "catalog_api"
	SourceTypeCuratedCourse SourceType = "curated_course"
	SourceTypeSphinxDocs    SourceType = "sphinx_docs"
	SourceTypeGenericHTML   SourceType = "generic_html"
)

// IsValid reports whether t names a known adapter family.
func (t SourceType) IsValid() bool {
	switch t {
	case SourceTypeCatalogAPI, SourceTypeCuratedCourse, SourceTypeSphinxDocs, SourceTypeGenericHTML:
		return true
	}
	return false
}

// ScanStatus is the state of a Source or Asset in the scan state machine:
// idle -> scanning -> completed | failed.
type ScanStatus string

const (
	ScanStatusIdle      ScanStatus = "idle"
	ScanStatusScanning  ScanStatus = "scanning"
	ScanStatusCompleted ScanStatus = "completed"
	ScanStatusFailed    ScanStatus = "failed"
)

// RobotsStatus records the outcome of the robots.txt check.
type RobotsStatus string

const (
	RobotsAllowed    RobotsStatus = "allowed"
	RobotsDisallowed RobotsStatus = "disallowed"
	RobotsUnknown    RobotsStatus = "unknown"
)

// Source is a content provider. One row per provider, created lazily on first scan.
type Source struct {
	ID                 string       `json:"id"`
	Name               string       `json:"name"`
	BaseURL            string       `json:"base_url"`
	Type               SourceType   `json:"type"`
	Description        string       `json:"description,omitempty"`
	LicenseName        string       `json:"license_name,omitempty"`
	LicenseURL         string       `json:"license_url,omitempty"`
	RobotsStatus       RobotsStatus `json:"robots_status"`
	RateLimitPerMinute int          `json:"rate_limit_per_minute"`
	ScanStatus         ScanStatus   `json:"scan_status"`
	ScanError          string       `json:"scan_error,omitempty"`
	LastScannedAt      *time.Time   `json:"last_scanned_at,omitempty"`
	CreatedAt          time.Time    `json:"created_at"`
	UpdatedAt          time.Time    `json:"updated_at"`
}

// SeedConfig is one statically configured, pre-approved provider entry point.
type SeedConfig struct {
	Name               string                 `json:"name" yaml:"name" validate:"required"`
	Type               SourceType             `json:"type" yaml:"type" validate:"required,sourcetype"`
	BaseURL            string                 `json:"base_url" yaml:"base_url" validate:"required,url"`
	SeedURL            string                 `json:"seed_url" yaml:"seed_url" validate:"required,url"`
	Description        string                 `json:"description,omitempty" yaml:"description,omitempty"`
	RateLimitPerMinute int                    `json:"rate_limit_per_minute,omitempty" yaml:"rate_limit_per_minute,omitempty" validate:"omitempty,min=1"`
	Config             map[string]interface{} `json:"config,omitempty" yaml:"config,omitempty"`
}
