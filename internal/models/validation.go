package models

import "time"

// Validation issue codes.
const (
	IssueNoLicense         = "NO_LICENSE"
	IssueLowConfidence     = "LOW_LICENSE_CONFIDENCE"
	IssueRobotsDisallowed  = "ROBOTS_DISALLOWED"
	IssueRobotsCheckFailed = "ROBOTS_CHECK_FAILED"
	IssueFetchFailed       = "FETCH_FAILED"
	IssueNoToc             = "NO_TOC"
	IssueTocMappingFailed  = "TOC_MAPPING_FAILED"
)

// ValidationIssue is one error or warning raised while validating an asset.
type ValidationIssue struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ValidationResult is the per-asset, per-scan validation report.
type ValidationResult struct {
	LicenseName       string            `json:"license_name,omitempty"`
	LicenseURL        string            `json:"license_url,omitempty"`
	LicenseConfidence float64           `json:"license_confidence"`
	RobotsStatus      RobotsStatus      `json:"robots_status"`
	Errors            []ValidationIssue `json:"errors"`
	Warnings          []ValidationIssue `json:"warnings"`
	CheckedAt         time.Time         `json:"checked_at"`
}

// NewValidationResult returns an empty report stamped with the current time.
func NewValidationResult() ValidationResult {
	return ValidationResult{
		RobotsStatus: RobotsUnknown,
		Errors:       []ValidationIssue{},
		Warnings:     []ValidationIssue{},
		CheckedAt:    time.Now().UTC(),
	}
}

// AddError appends a blocking issue.
func (v *ValidationResult) AddError(code, message string) {
	v.Errors = append(v.Errors, ValidationIssue{Code: code, Message: message})
}

// AddWarning appends a non-blocking issue.
func (v *ValidationResult) AddWarning(code, message string) {
	v.Warnings = append(v.Warnings, ValidationIssue{Code: code, Message: message})
}

// HasErrors reports whether any blocking issue was recorded.
func (v *ValidationResult) HasErrors() bool {
	return len(v.Errors) > 0
}

// HasIssue reports whether an error or warning with code exists.
func (v *ValidationResult) HasIssue(code string) bool {
	for _, i := range v.Errors {
		if i.Code == code {
			return true
		}
	}
	for _, i := range v.Warnings {
		if i.Code == code {
			return true
		}
	}
	return false
}
