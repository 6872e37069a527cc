package models

import "time"

// Asset is one discoverable unit within a Source: a book, a course or a doc version.
// Assets are created inactive and only become active once robots allow them and their
// TOC was extracted successfully.
type Asset struct {
	ID                   string                 `json:"id"`
	SourceID             string                 `json:"source_id"`
	Slug                 string                 `json:"slug"`
	Title                string                 `json:"title"`
	URL                  string                 `json:"url"`
	Description          string                 `json:"description,omitempty"`
	Subjects             []string               `json:"subjects,omitempty"`
	LicenseName          string                 `json:"license_name,omitempty"`
	LicenseURL           string                 `json:"license_url,omitempty"`
	LicenseConfidence    float64                `json:"license_confidence"`
	RobotsStatus         RobotsStatus           `json:"robots_status"`
	Active               bool                   `json:"active"`
	TocExtractionSuccess bool                   `json:"toc_extraction_success"`
	TocStats             *TocStats              `json:"toc_stats,omitempty"`
	ScanStatus           ScanStatus             `json:"scan_status"`
	ScanError            string                 `json:"scan_error,omitempty"`
	ValidationReport     *ValidationResult      `json:"validation_report,omitempty"`
	Metadata             map[string]interface{} `json:"metadata,omitempty"`
	LastScannedAt        *time.Time             `json:"last_scanned_at,omitempty"`
	CreatedAt            time.Time              `json:"created_at"`
	UpdatedAt            time.Time              `json:"updated_at"`
}

// AssetCandidate is what an adapter's discovery step returns before persistence.
type AssetCandidate struct {
	Slug              string                 `json:"slug"`
	Title             string                 `json:"title"`
	URL               string                 `json:"url"`
	Description       string                 `json:"description,omitempty"`
	Subjects          []string               `json:"subjects,omitempty"`
	LicenseName       string                 `json:"license_name,omitempty"`
	LicenseURL        string                 `json:"license_url,omitempty"`
	LicenseConfidence float64                `json:"license_confidence,omitempty"`
	Metadata          map[string]interface{} `json:"metadata,omitempty"`
}

// MetadataString returns a string metadata value or "".
func (c AssetCandidate) MetadataString(key string) string {
	if c.Metadata == nil {
		return ""
	}
	if s, ok := c.Metadata[key].(string); ok {
		return s
	}
	return ""
}

// ToCandidate rebuilds the candidate view of a persisted asset, used when an asset is
// re-mapped outside a full scan.
func (a *Asset) ToCandidate() AssetCandidate {
	return AssetCandidate{
		Slug:              a.Slug,
		Title:             a.Title,
		URL:               a.URL,
		Description:       a.Description,
		Subjects:          a.Subjects,
		LicenseName:       a.LicenseName,
		LicenseURL:        a.LicenseURL,
		LicenseConfidence: a.LicenseConfidence,
		Metadata:          a.Metadata,
	}
}
