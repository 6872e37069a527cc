package adapters

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/aleister1102/oerscout/internal/htmlutil"
)

// License is a detected license with the confidence of the detection.
type License struct {
	Name       string
	URL        string
	Confidence float64
}

// Found reports whether a license was detected.
func (l License) Found() bool {
	return l.Name != ""
}

type licensePattern struct {
	name       string
	url        string
	confidence float64
	re         *regexp.Regexp
}

// licensePatterns is ordered from most to least specific; the first match wins.
var licensePatterns = []licensePattern{
	{
		name: "CC BY-NC-SA 4.0", url: "https://creativecommons.org/licenses/by-nc-sa/4.0/", confidence: 0.95,
		re: regexp.MustCompile(`(?i)creative\s+commons\s+attribution[-\s]+non[-\s]?commercial[-\s]+share[-\s]?alike|\bcc[-\s]by[-\s]nc[-\s]sa\b`),
	},
	{
		name: "CC BY-NC-ND 4.0", url: "https://creativecommons.org/licenses/by-nc-nd/4.0/", confidence: 0.95,
		re: regexp.MustCompile(`(?i)creative\s+commons\s+attribution[-\s]+non[-\s]?commercial[-\s]+no[-\s]?deriv|\bcc[-\s]by[-\s]nc[-\s]nd\b`),
	},
	{
		name: "CC BY-NC 4.0", url: "https://creativecommons.org/licenses/by-nc/4.0/", confidence: 0.9,
		re: regexp.MustCompile(`(?i)creative\s+commons\s+attribution[-\s]+non[-\s]?commercial|\bcc[-\s]by[-\s]nc\b`),
	},
	{
		name: "CC BY-ND 4.0", url: "https://creativecommons.org/licenses/by-nd/4.0/", confidence: 0.9,
		re: regexp.MustCompile(`(?i)creative\s+commons\s+attribution[-\s]+no[-\s]?deriv|\bcc[-\s]by[-\s]nd\b`),
	},
	{
		name: "CC BY-SA 4.0", url: "https://creativecommons.org/licenses/by-sa/4.0/", confidence: 0.95,
		re: regexp.MustCompile(`(?i)creative\s+commons\s+attribution[-\s]+share[-\s]?alike|\bcc[-\s]by[-\s]sa\b`),
	},
	{
		name: "CC BY 4.0", url: "https://creativecommons.org/licenses/by/4.0/", confidence: 0.9,
		re: regexp.MustCompile(`(?i)creative\s+commons\s+attribution|\bcc[-\s]by\b`),
	},
	{
		name: "CC0 1.0", url: "https://creativecommons.org/publicdomain/zero/1.0/", confidence: 0.9,
		re: regexp.MustCompile(`(?i)\bcc0\b|creative\s+commons\s+zero`),
	},
	{
		name: "MIT", url: "https://opensource.org/licenses/MIT", confidence: 0.8,
		re: regexp.MustCompile(`(?i)\bMIT\s+License\b|licensed\s+under\s+the\s+MIT\b`),
	},
	{
		name: "Apache 2.0", url: "https://www.apache.org/licenses/LICENSE-2.0", confidence: 0.85,
		re: regexp.MustCompile(`(?i)apache\s+license,?\s*(version\s*)?2\.0|\bapache-2\.0\b`),
	},
	{
		name: "GPL", url: "https://www.gnu.org/licenses/gpl-3.0.html", confidence: 0.8,
		re: regexp.MustCompile(`(?i)gnu\s+general\s+public\s+license|\bGPL-?v?[23]\b`),
	},
	{
		name: "BSD", url: "https://opensource.org/licenses/BSD-3-Clause", confidence: 0.75,
		re: regexp.MustCompile(`(?i)\bBSD[-\s][23][-\s]clause\b|\bBSD\s+license\b`),
	},
	{
		name: "Public Domain", url: "", confidence: 0.7,
		re: regexp.MustCompile(`(?i)\bpublic\s+domain\b`),
	},
}

var ccLinkRegex = regexp.MustCompile(`(?i)creativecommons\.org/(licenses/([a-z-]+)/(\d+(?:\.\d+)?)|publicdomain/zero/(\d+(?:\.\d+)?))`)

// DetectLicenseText runs the ordered pattern table over text.
func DetectLicenseText(text string) License {
	for _, p := range licensePatterns {
		if p.re.MatchString(text) {
			return License{Name: p.name, URL: p.url, Confidence: p.confidence}
		}
	}
	return License{}
}

// LicenseFromCCURL names a Creative Commons license from its deed URL.
func LicenseFromCCURL(href string) License {
	m := ccLinkRegex.FindStringSubmatch(href)
	if m == nil {
		return License{}
	}
	if m[4] != "" {
		return License{Name: "CC0 " + m[4], URL: strings.TrimSpace(href), Confidence: 0.9}
	}
	code := strings.ToUpper(m[2])
	if !strings.HasPrefix(code, "BY") {
		return License{}
	}
	return License{Name: "CC " + code + " " + m[3], URL: strings.TrimSpace(href), Confidence: 0.9}
}

// DetectLicense looks for a license statement on a page. Footer and body text go
// through the pattern table first; otherwise Creative Commons links,
// rel="license" links and license meta tags are consulted.
func DetectLicense(doc *goquery.Document) License {
	if doc == nil {
		return License{}
	}
	text := htmlutil.Text(doc.Find("footer"))
	if lic := DetectLicenseText(text); lic.Found() {
		return lic
	}
	if lic := DetectLicenseText(htmlutil.Text(doc.Find("body"))); lic.Found() {
		return lic
	}
	return detectLicenseMarkup(doc)
}

func detectLicenseMarkup(doc *goquery.Document) License {
	var found License
	doc.Find(`a[href*="creativecommons.org"], a[rel~="license"], link[rel~="license"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href := s.AttrOr("href", "")
		if lic := LicenseFromCCURL(href); lic.Found() {
			found = lic
			return false
		}
		if rel := s.AttrOr("rel", ""); strings.Contains(rel, "license") && href != "" {
			lic := DetectLicenseText(htmlutil.Text(s) + " " + href)
			if !lic.Found() {
				lic = License{Name: htmlutil.Text(s), Confidence: 0.7}
			}
			if lic.Name != "" {
				lic.URL = href
				found = lic
				return false
			}
		}
		return true
	})
	if found.Found() {
		return found
	}

	for _, name := range []string{"license", "dc.rights", "DC.rights", "dcterms.license"} {
		content := htmlutil.MetaContent(doc.Selection, name)
		if content == "" {
			continue
		}
		if lic := LicenseFromCCURL(content); lic.Found() {
			return lic
		}
		if lic := DetectLicenseText(content); lic.Found() {
			return lic
		}
		return License{Name: content, Confidence: 0.7}
	}
	return License{}
}
