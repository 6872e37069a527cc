package config

// ScanConfig controls the registry scan pipeline.
type ScanConfig struct {
	AllowedDomains []string `json:"allowed_domains,omitempty" yaml:"allowed_domains,omitempty" validate:"dive,required"`
	AutoActivate   bool     `json:"auto_activate" yaml:"auto_activate"`
	ResumeMode     bool     `json:"resume_mode" yaml:"resume_mode"`
}

func NewDefaultScanConfig() ScanConfig {
	return ScanConfig{
		AllowedDomains: DefaultAllowedDomains(),
		AutoActivate:   false,
		ResumeMode:     false,
	}
}
