// Package registry orchestrates seed scans: discovery, validation, TOC mapping,
// persistence and asset activation.
package registry

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/aleister1102/oerscout/internal/adapters"
	"github.com/aleister1102/oerscout/internal/common"
	"github.com/aleister1102/oerscout/internal/common/contextutils"
	"github.com/aleister1102/oerscout/internal/datastore"
	"github.com/aleister1102/oerscout/internal/models"
	"github.com/aleister1102/oerscout/internal/urlhandler"
	"github.com/rs/zerolog"
)

// AdapterProvider resolves the adapter for a source family.
type AdapterProvider interface {
	Get(t models.SourceType) (adapters.Adapter, error)
}

// RateLimitSetter receives per-domain budgets from seed configuration.
type RateLimitSetter interface {
	SetRateLimit(domain string, perMinute int)
}

// ScanOptions tune a scan.
type ScanOptions struct {
	// ResumeMode skips assets already completed with a successful TOC extraction.
	ResumeMode bool
	// AutoActivate activates every asset that becomes eligible during the scan.
	AutoActivate bool
}

// ScanResult summarises one seed scan.
type ScanResult struct {
	SourceID   string        `json:"source_id"`
	SourceName string        `json:"source_name"`
	Assets     int           `json:"assets"`
	Nodes      int           `json:"nodes"`
	Skipped    int           `json:"skipped"`
	Activated  int           `json:"activated"`
	Errors     []string      `json:"errors"`
	Duration   time.Duration `json:"duration"`
}

// Service runs scans against a store.
type Service struct {
	store     datastore.Store
	adapters  AdapterProvider
	limiter   RateLimitSetter
	allowlist *urlhandler.DomainAllowlist
	logger    zerolog.Logger
	now       func() time.Time
}

// NewService creates a registry service. limiter may be nil; a nil or empty allowlist
// admits every candidate.
func NewService(store datastore.Store, provider AdapterProvider, limiter RateLimitSetter, allowlist *urlhandler.DomainAllowlist, logger zerolog.Logger) *Service {
	return &Service{
		store:     store,
		adapters:  provider,
		limiter:   limiter,
		allowlist: allowlist,
		logger:    logger.With().Str("component", "RegistryService").Logger(),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// ScanAll scans seeds one after another. A failing seed does not stop the others; the
// loop only ends early when ctx is cancelled.
func (s *Service) ScanAll(ctx context.Context, seeds []models.SeedConfig, opts ScanOptions) []*ScanResult {
	results := make([]*ScanResult, 0, len(seeds))
	for _, seed := range seeds {
		if check := contextutils.CheckCancellationWithLog(ctx, s.logger, "scan_all"); check.Cancelled {
			s.logger.Warn().Err(check.Error).Int("remaining", len(seeds)-len(results)).Msg("Remaining seeds skipped")
			break
		}
		result, err := s.ScanSeed(ctx, seed, opts)
		if err != nil {
			s.logger.Error().Err(err).Str("seed", seed.Name).Msg("Seed scan failed")
		}
		results = append(results, result)
	}
	return results
}

// ScanSeed scans one seed. Per-candidate failures are collected in the result; a
// source-level failure marks the Source failed and is also returned as an error.
func (s *Service) ScanSeed(ctx context.Context, seed models.SeedConfig, opts ScanOptions) (*ScanResult, error) {
	start := time.Now()
	result := &ScanResult{SourceName: seed.Name, Errors: []string{}}
	log := s.logger.With().Str("seed", seed.Name).Str("type", string(seed.Type)).Logger()

	source, _, err := datastore.GetOrCreateSource(ctx, s.store, sourceFromSeed(seed))
	if err != nil {
		result.Errors = append(result.Errors, err.Error())
		return result, common.WrapErrorf(err, "failed to load source '%s'", seed.Name)
	}
	result.SourceID = source.ID

	source.ScanStatus = models.ScanStatusScanning
	source.ScanError = ""
	if err := s.store.UpdateSource(ctx, source); err != nil {
		log.Warn().Err(err).Msg("Failed to mark source as scanning")
	}
	s.record(ctx, &models.ScanLog{SourceID: source.ID, Action: models.ActionScanSource, Status: models.LogStatusStarted,
		Message: fmt.Sprintf("scan of '%s' started", seed.Name), Details: map[string]interface{}{"url": seed.SeedURL}})

	s.applyRateLimit(seed)

	candidates, err := s.discover(ctx, seed)
	if err != nil {
		s.failSource(ctx, source, result, err)
		result.Duration = time.Since(start)
		return result, err
	}
	log.Info().Int("candidates", len(candidates)).Msg("Assets discovered")

	for _, candidate := range candidates {
		if !s.allowlist.IsEmpty() && !s.allowlist.IsAllowed(candidate.URL) {
			result.Skipped++
			s.record(ctx, &models.ScanLog{SourceID: source.ID, Action: models.ActionScanAsset, Status: models.LogStatusSkipped,
				Message: fmt.Sprintf("'%s' is outside the domain allowlist", candidate.URL)})
			continue
		}
		outcome, err := s.scanCandidate(ctx, seed, source, candidate, opts)
		if outcome.persisted {
			result.Assets++
		}
		result.Nodes += outcome.nodes
		if outcome.skipped {
			result.Skipped++
		}
		if outcome.activated {
			result.Activated++
		}
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", candidate.Slug, err))
		}
	}

	scannedAt := s.now()
	source.ScanStatus = models.ScanStatusCompleted
	source.LastScannedAt = &scannedAt
	if err := s.store.UpdateSource(ctx, source); err != nil {
		log.Warn().Err(err).Msg("Failed to mark source as completed")
	}
	result.Duration = time.Since(start)

	status := models.LogStatusSuccess
	if len(result.Errors) > 0 {
		status = models.LogStatusWarning
	}
	s.record(ctx, &models.ScanLog{SourceID: source.ID, Action: models.ActionScanSource, Status: status,
		Message: fmt.Sprintf("scan of '%s' finished", seed.Name),
		Details: map[string]interface{}{
			"assets":      result.Assets,
			"nodes":       result.Nodes,
			"skipped":     result.Skipped,
			"errors":      len(result.Errors),
			"duration_ms": result.Duration.Milliseconds(),
		}})
	return result, nil
}

// ScanCandidate persists and scans one candidate under seed's Source, creating the
// Source when missing. It is used by on-demand discovery; the allowlist is not applied.
func (s *Service) ScanCandidate(ctx context.Context, seed models.SeedConfig, candidate models.AssetCandidate, opts ScanOptions) (*models.Asset, error) {
	source, _, err := datastore.GetOrCreateSource(ctx, s.store, sourceFromSeed(seed))
	if err != nil {
		return nil, common.WrapErrorf(err, "failed to load source '%s'", seed.Name)
	}
	s.applyRateLimit(seed)
	if _, err := s.scanCandidate(ctx, seed, source, candidate, opts); err != nil {
		return nil, err
	}
	return s.store.GetAssetBySlug(ctx, source.ID, candidate.Slug)
}

func (s *Service) discover(ctx context.Context, seed models.SeedConfig) ([]models.AssetCandidate, error) {
	adapter, err := s.adapters.Get(seed.Type)
	if err != nil {
		return nil, err
	}
	candidates, err := adapter.DiscoverAssets(ctx, seed.SeedURL, seed.Config)
	if err != nil {
		return nil, common.WrapErrorf(err, "asset discovery failed for '%s'", seed.Name)
	}
	return candidates, nil
}

func (s *Service) failSource(ctx context.Context, source *models.Source, result *ScanResult, cause error) {
	source.ScanStatus = models.ScanStatusFailed
	source.ScanError = cause.Error()
	if err := s.store.UpdateSource(ctx, source); err != nil {
		s.logger.Warn().Err(err).Str("source_id", source.ID).Msg("Failed to mark source as failed")
	}
	result.Errors = append(result.Errors, cause.Error())
	s.record(ctx, &models.ScanLog{SourceID: source.ID, Action: models.ActionScanSource, Status: models.LogStatusError, Message: cause.Error()})
}

func (s *Service) applyRateLimit(seed models.SeedConfig) {
	if s.limiter == nil || seed.RateLimitPerMinute <= 0 {
		return
	}
	for _, raw := range []string{seed.BaseURL, seed.SeedURL} {
		if host := hostOf(raw); host != "" {
			s.limiter.SetRateLimit(host, seed.RateLimitPerMinute)
		}
	}
}

type candidateOutcome struct {
	persisted bool
	skipped   bool
	activated bool
	nodes     int
}

// scanCandidate runs validate and map for one candidate. Panics inside the adapter are
// turned into errors so one asset cannot stop the scan.
func (s *Service) scanCandidate(ctx context.Context, seed models.SeedConfig, source *models.Source, candidate models.AssetCandidate, opts ScanOptions) (outcome candidateOutcome, err error) {
	asset, created, err := datastore.GetOrCreateAsset(ctx, s.store, newAsset(source.ID, candidate))
	if err != nil {
		s.record(ctx, &models.ScanLog{SourceID: source.ID, Action: models.ActionScanAsset, Status: models.LogStatusError, Message: err.Error()})
		return outcome, err
	}
	outcome.persisted = true
	if !created {
		refreshAsset(asset, candidate)
	}

	if opts.ResumeMode && asset.ScanStatus == models.ScanStatusCompleted && asset.TocExtractionSuccess {
		outcome.skipped = true
		s.record(ctx, &models.ScanLog{SourceID: source.ID, AssetID: asset.ID, Action: models.ActionScanAsset, Status: models.LogStatusSkipped,
			Message: fmt.Sprintf("'%s' already scanned", asset.Slug)})
		return outcome, nil
	}

	asset.ScanStatus = models.ScanStatusScanning
	if err := s.store.UpdateAsset(ctx, asset); err != nil {
		s.logger.Warn().Err(err).Str("asset_id", asset.ID).Msg("Failed to mark asset as scanning")
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("adapter panic: %v", r)
			s.failAsset(ctx, source, asset, nil, err)
		}
	}()

	adapter, err := s.adapters.Get(seed.Type)
	if err != nil {
		s.failAsset(ctx, source, asset, nil, err)
		return outcome, err
	}

	start := time.Now()
	report := adapter.Validate(ctx, candidate, seed.BaseURL)
	asset.RobotsStatus = report.RobotsStatus
	if report.LicenseName != "" {
		asset.LicenseName = report.LicenseName
		asset.LicenseURL = report.LicenseURL
		asset.LicenseConfidence = report.LicenseConfidence
	}

	nodes, err := adapter.MapToc(ctx, candidate, seed.BaseURL)
	if err != nil {
		report.AddError(models.IssueTocMappingFailed, err.Error())
		s.failAsset(ctx, source, asset, &report, err)
		return outcome, common.WrapError(err, "TOC mapping failed")
	}

	details := map[string]interface{}{"duration_ms": time.Since(start).Milliseconds()}
	// An empty TOC leaves the stored nodes from the last good scan in place; only
	// the asset's stats and extraction flag record the miss.
	if len(nodes) == 0 {
		report.AddWarning(models.IssueNoToc, common.ErrNoTocFound.Error())
	} else {
		previous, err := s.store.ListTocNodes(ctx, asset.ID)
		if err != nil {
			s.logger.Warn().Err(err).Str("asset_id", asset.ID).Msg("Failed to load previous TOC")
		}
		if len(previous) > 0 {
			diff := DiffToc(previous, nodes)
			details["toc_added"], details["toc_removed"] = diff.Added, diff.Removed
		}
		if err := s.store.ReplaceTocNodes(ctx, asset.ID, nodes); err != nil {
			s.failAsset(ctx, source, asset, &report, err)
			return outcome, common.WrapError(err, "failed to persist TOC")
		}
		outcome.nodes = len(nodes)
	}

	stats := models.ComputeTocStats(nodes)
	scannedAt := s.now()
	asset.TocStats = &stats
	asset.TocExtractionSuccess = len(nodes) > 0 && !report.HasErrors()
	asset.ValidationReport = &report
	asset.ScanStatus = models.ScanStatusCompleted
	asset.ScanError = ""
	asset.LastScannedAt = &scannedAt

	if opts.AutoActivate && !asset.Active && eligible(asset) == "" {
		asset.Active = true
		outcome.activated = true
	}
	if err := s.store.UpdateAsset(ctx, asset); err != nil {
		return outcome, common.WrapError(err, "failed to persist asset")
	}

	details["nodes"] = stats.TotalNodes
	details["chapters"] = stats.Chapters
	details["sections"] = stats.Sections
	details["max_depth"] = stats.MaxDepth
	status := models.LogStatusSuccess
	if !asset.TocExtractionSuccess {
		status = models.LogStatusWarning
	}
	s.record(ctx, &models.ScanLog{SourceID: source.ID, AssetID: asset.ID, Action: models.ActionScanAsset, Status: status,
		Message: fmt.Sprintf("'%s' scanned", asset.Slug), Details: details})
	if outcome.activated {
		s.record(ctx, &models.ScanLog{SourceID: source.ID, AssetID: asset.ID, Action: models.ActionActivateAsset, Status: models.LogStatusSuccess,
			Message: fmt.Sprintf("'%s' activated automatically", asset.Slug)})
	}
	return outcome, nil
}

func (s *Service) failAsset(ctx context.Context, source *models.Source, asset *models.Asset, report *models.ValidationResult, cause error) {
	asset.ScanStatus = models.ScanStatusFailed
	asset.ScanError = cause.Error()
	asset.TocExtractionSuccess = false
	if report != nil {
		asset.ValidationReport = report
	}
	if err := s.store.UpdateAsset(ctx, asset); err != nil {
		s.logger.Warn().Err(err).Str("asset_id", asset.ID).Msg("Failed to mark asset as failed")
	}
	s.record(ctx, &models.ScanLog{SourceID: source.ID, AssetID: asset.ID, Action: models.ActionScanAsset, Status: models.LogStatusError,
		Message: cause.Error(), Details: map[string]interface{}{"url": asset.URL}})
}

// ActivateAsset makes an asset available. Assets disallowed by robots.txt or without a
// successful TOC extraction are refused with an error wrapping common.ErrActivationDenied.
func (s *Service) ActivateAsset(ctx context.Context, assetID string) (*models.Asset, error) {
	asset, err := s.store.GetAsset(ctx, assetID)
	if err != nil {
		return nil, err
	}
	if reason := eligible(asset); reason != "" {
		denied := common.NewActivationError(assetID, reason)
		s.record(ctx, &models.ScanLog{SourceID: asset.SourceID, AssetID: asset.ID, Action: models.ActionActivateAsset, Status: models.LogStatusError, Message: denied.Error()})
		return asset, denied
	}
	asset.Active = true
	if err := s.store.UpdateAsset(ctx, asset); err != nil {
		return nil, err
	}
	s.record(ctx, &models.ScanLog{SourceID: asset.SourceID, AssetID: asset.ID, Action: models.ActionActivateAsset, Status: models.LogStatusSuccess,
		Message: fmt.Sprintf("'%s' activated", asset.Slug)})
	return asset, nil
}

// DeactivateAsset withdraws an asset.
func (s *Service) DeactivateAsset(ctx context.Context, assetID string) (*models.Asset, error) {
	asset, err := s.store.GetAsset(ctx, assetID)
	if err != nil {
		return nil, err
	}
	asset.Active = false
	if err := s.store.UpdateAsset(ctx, asset); err != nil {
		return nil, err
	}
	s.record(ctx, &models.ScanLog{SourceID: asset.SourceID, AssetID: asset.ID, Action: models.ActionDeactivateAsset, Status: models.LogStatusSuccess,
		Message: fmt.Sprintf("'%s' deactivated", asset.Slug)})
	return asset, nil
}

// ScanLogs returns audit records matching filter.
func (s *Service) ScanLogs(ctx context.Context, filter datastore.ScanLogFilter) ([]*models.ScanLog, error) {
	return s.store.ListScanLogs(ctx, filter)
}

// eligible returns why asset cannot be activated, or "".
func eligible(asset *models.Asset) string {
	switch {
	case asset.RobotsStatus == models.RobotsDisallowed:
		return "robots.txt disallows this asset"
	case !asset.TocExtractionSuccess:
		return "TOC extraction has not succeeded"
	}
	return ""
}

// record appends a scan log row and mirrors it to the structured logger.
func (s *Service) record(ctx context.Context, entry *models.ScanLog) {
	var event *zerolog.Event
	switch entry.Status {
	case models.LogStatusError:
		event = s.logger.Error()
	case models.LogStatusWarning:
		event = s.logger.Warn()
	case models.LogStatusSkipped:
		event = s.logger.Debug()
	default:
		event = s.logger.Info()
	}
	event = event.Str("action", entry.Action).Str("status", entry.Status)
	if entry.SourceID != "" {
		event = event.Str("source_id", entry.SourceID)
	}
	if entry.AssetID != "" {
		event = event.Str("asset_id", entry.AssetID)
	}
	if len(entry.Details) > 0 {
		event = event.Interface("details", entry.Details)
	}
	event.Msg(entry.Message)

	if err := s.store.AppendScanLog(ctx, entry); err != nil {
		s.logger.Warn().Err(err).Str("action", entry.Action).Msg("Failed to append scan log")
	}
}

func sourceFromSeed(seed models.SeedConfig) *models.Source {
	return &models.Source{
		Name:               seed.Name,
		BaseURL:            seed.BaseURL,
		Type:               seed.Type,
		Description:        seed.Description,
		LicenseName:        configString(seed.Config, "license_name"),
		LicenseURL:         configString(seed.Config, "license_url"),
		RateLimitPerMinute: seed.RateLimitPerMinute,
	}
}

func newAsset(sourceID string, c models.AssetCandidate) *models.Asset {
	return &models.Asset{
		SourceID:          sourceID,
		Slug:              c.Slug,
		Title:             c.Title,
		URL:               c.URL,
		Description:       c.Description,
		Subjects:          c.Subjects,
		LicenseName:       c.LicenseName,
		LicenseURL:        c.LicenseURL,
		LicenseConfidence: c.LicenseConfidence,
		Metadata:          c.Metadata,
	}
}

func refreshAsset(asset *models.Asset, c models.AssetCandidate) {
	asset.Title = c.Title
	asset.URL = c.URL
	if c.Description != "" {
		asset.Description = c.Description
	}
	if len(c.Subjects) > 0 {
		asset.Subjects = c.Subjects
	}
	if c.Metadata != nil {
		asset.Metadata = c.Metadata
	}
}

func hostOf(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

func configString(cfg map[string]interface{}, key string) string {
	if s, ok := cfg[key].(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}
