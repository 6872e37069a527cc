package config

import "github.com/aleister1102/oerscout/internal/models"

// DefaultSeeds returns the built-in, pre-approved provider entry points.
func DefaultSeeds() []models.SeedConfig {
	return []models.SeedConfig{
		{
			Name:               "OpenStax",
			Type:               models.SourceTypeCatalogAPI,
			BaseURL:            "https://openstax.org",
			SeedURL:            "https://openstax.org/apps/cms/api/v2/pages/?type=books.Book&fields=title,id,slug,book_state,description,book_subjects,license_name,license_url,webview_rex_link&limit=250",
			Description:        "Peer-reviewed, openly licensed college textbooks",
			RateLimitPerMinute: 30,
			Config: map[string]interface{}{
				"license_name": "CC BY 4.0",
				"license_url":  "https://creativecommons.org/licenses/by/4.0/",
				"book_path":    "/books/{slug}/pages/1-introduction",
			},
		},
		{
			Name:               "MIT OpenCourseWare",
			Type:               models.SourceTypeCuratedCourse,
			BaseURL:            "https://ocw.mit.edu",
			SeedURL:            "https://ocw.mit.edu/search/",
			Description:        "Course materials from MIT under CC BY-NC-SA",
			RateLimitPerMinute: 20,
		},
		{
			Name:               "Python Documentation",
			Type:               models.SourceTypeSphinxDocs,
			BaseURL:            "https://docs.python.org",
			SeedURL:            "https://docs.python.org/3/",
			Description:        "Official Python language and library documentation",
			RateLimitPerMinute: 30,
			Config: map[string]interface{}{
				"family": "python",
			},
		},
		{
			Name:               "MDN Learn",
			Type:               models.SourceTypeGenericHTML,
			BaseURL:            "https://developer.mozilla.org",
			SeedURL:            "https://developer.mozilla.org/en-US/docs/Learn_web_development",
			Description:        "MDN learning area for web development",
			RateLimitPerMinute: 20,
			Config: map[string]interface{}{
				"max_pages":    25,
				"link_pattern": "/en-US/docs/Learn_web_development/",
			},
		},
	}
}

// DefaultAllowedDomains returns the apex domains discovery may follow.
func DefaultAllowedDomains() []string {
	return []string{
		"openstax.org",
		"mit.edu",
		"python.org",
		"mozilla.org",
		"readthedocs.io",
		"libretexts.org",
		"opentextbc.ca",
		"open.umn.edu",
	}
}
