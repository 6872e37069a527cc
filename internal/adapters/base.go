package adapters

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/aleister1102/oerscout/internal/fetcher"
	"github.com/aleister1102/oerscout/internal/htmlutil"
	"github.com/aleister1102/oerscout/internal/models"
	"github.com/aleister1102/oerscout/internal/urlhandler"
	"github.com/rs/zerolog"
)

// minLicenseConfidence is the confidence below which a detected license is reported
// as a warning.
const minLicenseConfidence = 0.8

var (
	nonWordRegex   = regexp.MustCompile(`[^\w\s-]`)
	separatorRegex = regexp.MustCompile(`[\s_-]+`)
)

// Slugify lowercases s, strips non-word characters, collapses separators into single
// dashes and trims leading and trailing dashes.
func Slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = nonWordRegex.ReplaceAllString(s, "")
	s = separatorRegex.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// ResolveURL resolves href against base, returning href unchanged when it cannot be
// resolved.
func ResolveURL(href, base string) string {
	return urlhandler.MustResolve(href, base)
}

// FlattenTree flattens a TOC tree in pre-order without children.
func FlattenTree(roots []*models.TocNode) []*models.TocNode {
	return models.FlattenTree(roots)
}

// BuildTree rebuilds a tree from flattened nodes.
func BuildTree(flat []*models.TocNode) []*models.TocNode {
	return models.BuildTree(flat)
}

// Base carries the behaviour shared by every adapter. Adapters embed it.
type Base struct {
	fetcher PageFetcher
	logger  zerolog.Logger
}

func newBase(f PageFetcher, logger zerolog.Logger, component string) Base {
	return Base{
		fetcher: f,
		logger:  logger.With().Str("component", component).Logger(),
	}
}

// Logger returns the adapter's component logger.
func (b *Base) Logger() zerolog.Logger {
	return b.logger
}

// FetchDocument fetches rawURL and parses the body as HTML.
func (b *Base) FetchDocument(ctx context.Context, rawURL string) (*goquery.Document, *fetcher.Result, error) {
	res := b.fetcher.Fetch(ctx, rawURL, fetcher.FetchOptions{})
	if !res.OK {
		return nil, res, res.Err()
	}
	doc, err := htmlutil.Parse(res.Body)
	if err != nil {
		return nil, res, err
	}
	return doc, res, nil
}

// ValidateCommon checks robots permission for the candidate URL, fetches the page and
// detects its license. A license asserted on the candidate wins over a detection with
// lower confidence.
func (b *Base) ValidateCommon(ctx context.Context, candidate models.AssetCandidate) models.ValidationResult {
	result := models.NewValidationResult()

	robots := b.fetcher.CheckRobots(ctx, candidate.URL)
	result.RobotsStatus = robots.Status()
	if !robots.Checked {
		msg := "robots.txt could not be checked"
		if robots.Error != "" {
			msg = fmt.Sprintf("robots.txt could not be checked: %s", robots.Error)
		}
		result.AddWarning(models.IssueRobotsCheckFailed, msg)
	}
	if !robots.Allowed {
		result.AddError(models.IssueRobotsDisallowed, fmt.Sprintf("robots.txt disallows %s", candidate.URL))
		b.applyAssertedLicense(&result, candidate, License{})
		return result
	}

	var detected License
	doc, res, err := b.FetchDocument(ctx, candidate.URL)
	if err != nil {
		result.AddError(models.IssueFetchFailed, fmt.Sprintf("failed to fetch %s: %v", candidate.URL, err))
		b.logger.Warn().
			Str("action", "validate").
			Str("url", candidate.URL).
			Int("status", res.Status).
			Err(err).
			Msg("Validation fetch failed")
	} else {
		detected = DetectLicense(doc)
	}

	b.applyAssertedLicense(&result, candidate, detected)
	return result
}

func (b *Base) applyAssertedLicense(result *models.ValidationResult, candidate models.AssetCandidate, detected License) {
	lic := detected
	if candidate.LicenseName != "" && candidate.LicenseConfidence >= detected.Confidence {
		lic = License{Name: candidate.LicenseName, URL: candidate.LicenseURL, Confidence: candidate.LicenseConfidence}
	}

	result.LicenseName = lic.Name
	result.LicenseURL = lic.URL
	result.LicenseConfidence = lic.Confidence

	switch {
	case !lic.Found():
		result.AddWarning(models.IssueNoLicense, "no license statement detected")
	case lic.Confidence < minLicenseConfidence:
		result.AddWarning(models.IssueLowConfidence, fmt.Sprintf("license '%s' detected with confidence %.2f", lic.Name, lic.Confidence))
	}
}

// originOf returns scheme://host of rawURL, or rawURL when it does not parse.
func originOf(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Host == "" {
		return rawURL
	}
	return u.Scheme + "://" + u.Host
}

// nodeSlug builds a node slug scoped to an asset.
func nodeSlug(parts ...string) string {
	return Slugify(strings.Join(parts, " "))
}

// slugTree assigns slugs to every node without one, prefixed with the asset slug.
func slugTree(nodes []*models.TocNode, prefix string) {
	for _, n := range nodes {
		if n.Slug == "" {
			n.Slug = nodeSlug(prefix, n.Title)
		}
		slugTree(n.Children, prefix)
	}
}

// capNodes truncates a tree so at most limit nodes remain in pre-order.
func capNodes(nodes []*models.TocNode, limit int) []*models.TocNode {
	remaining := limit
	var walk func([]*models.TocNode) []*models.TocNode
	walk = func(list []*models.TocNode) []*models.TocNode {
		var out []*models.TocNode
		for _, n := range list {
			if remaining <= 0 {
				break
			}
			remaining--
			n.Children = walk(n.Children)
			out = append(out, n)
		}
		return out
	}
	return walk(nodes)
}
