package datastore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aleister1102/oerscout/internal/common"
	"github.com/aleister1102/oerscout/internal/config"
	"github.com/aleister1102/oerscout/internal/models"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Store is the catalog persistence contract. Lookups that find nothing return an
// error wrapping common.ErrNotFound.
type Store interface {
	GetSource(ctx context.Context, id string) (*models.Source, error)
	GetSourceByName(ctx context.Context, name string) (*models.Source, error)
	CreateSource(ctx context.Context, src *models.Source) error
	UpdateSource(ctx context.Context, src *models.Source) error

	GetAsset(ctx context.Context, id string) (*models.Asset, error)
	GetAssetBySlug(ctx context.Context, sourceID, slug string) (*models.Asset, error)
	CreateAsset(ctx context.Context, asset *models.Asset) error
	UpdateAsset(ctx context.Context, asset *models.Asset) error
	ListAssets(ctx context.Context, filter AssetFilter) ([]*models.Asset, error)

	// ReplaceTocNodes deletes every node of the asset, then inserts nodes in batches.
	// IDs are assigned and ParentSlug links are resolved to ParentID in place.
	ReplaceTocNodes(ctx context.Context, assetID string, nodes []*models.TocNode) error
	ListTocNodes(ctx context.Context, assetID string) ([]*models.TocNode, error)

	AppendScanLog(ctx context.Context, entry *models.ScanLog) error
	ListScanLogs(ctx context.Context, filter ScanLogFilter) ([]*models.ScanLog, error)

	Close() error
}

// AssetFilter narrows ListAssets. Zero values match everything.
type AssetFilter struct {
	SourceID   string
	ActiveOnly bool
}

// ScanLogFilter narrows ListScanLogs. Results are oldest first; Limit keeps the most
// recent entries when positive.
type ScanLogFilter struct {
	SourceID string
	AssetID  string
	Action   string
	Limit    int
}

// New builds the store selected by cfg.Driver.
func New(cfg config.StoreConfig, logger zerolog.Logger) (Store, error) {
	switch strings.ToLower(cfg.Driver) {
	case "", config.StoreDriverMemory:
		return NewMemoryStore(), nil
	case config.StoreDriverSQLite:
		return NewSQLiteStore(cfg.SQLitePath, cfg.InsertBatchSize, logger)
	default:
		return nil, common.NewConfigurationError("store_config", "driver", fmt.Sprintf("unknown driver '%s'", cfg.Driver))
	}
}

// IsNotFound reports whether err means a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, common.ErrNotFound)
}

func notFound(kind, key string) error {
	return common.WrapErrorf(common.ErrNotFound, "%s '%s'", kind, key)
}

// GetOrCreateSource returns the source named src.Name, creating it from src when
// missing. The boolean reports whether a row was created.
func GetOrCreateSource(ctx context.Context, st Store, src *models.Source) (*models.Source, bool, error) {
	existing, err := st.GetSourceByName(ctx, src.Name)
	if err == nil {
		return existing, false, nil
	}
	if !IsNotFound(err) {
		return nil, false, err
	}
	if err := st.CreateSource(ctx, src); err != nil {
		return nil, false, err
	}
	return src, true, nil
}

// GetOrCreateAsset returns the asset keyed by (asset.SourceID, asset.Slug), creating
// it inactive when missing.
func GetOrCreateAsset(ctx context.Context, st Store, asset *models.Asset) (*models.Asset, bool, error) {
	existing, err := st.GetAssetBySlug(ctx, asset.SourceID, asset.Slug)
	if err == nil {
		return existing, false, nil
	}
	if !IsNotFound(err) {
		return nil, false, err
	}
	asset.Active = false
	if err := st.CreateAsset(ctx, asset); err != nil {
		return nil, false, err
	}
	return asset, true, nil
}

func newID() string {
	return uuid.NewString()
}

func now() time.Time {
	return time.Now().UTC()
}

func stampSource(src *models.Source) {
	t := now()
	if src.ID == "" {
		src.ID = newID()
	}
	if src.CreatedAt.IsZero() {
		src.CreatedAt = t
	}
	if src.ScanStatus == "" {
		src.ScanStatus = models.ScanStatusIdle
	}
	if src.RobotsStatus == "" {
		src.RobotsStatus = models.RobotsUnknown
	}
	src.UpdatedAt = t
}

func stampAsset(asset *models.Asset) {
	t := now()
	if asset.ID == "" {
		asset.ID = newID()
	}
	if asset.CreatedAt.IsZero() {
		asset.CreatedAt = t
	}
	if asset.ScanStatus == "" {
		asset.ScanStatus = models.ScanStatusIdle
	}
	if asset.RobotsStatus == "" {
		asset.RobotsStatus = models.RobotsUnknown
	}
	asset.UpdatedAt = t
}

// prepareNodes assigns IDs and resolves parent slugs within one asset's node list.
func prepareNodes(assetID string, nodes []*models.TocNode) {
	bySlug := make(map[string]string, len(nodes))
	for _, n := range nodes {
		n.ID = newID()
		n.AssetID = assetID
		bySlug[n.Slug] = n.ID
	}
	for _, n := range nodes {
		n.ParentID = nil
		if n.ParentSlug == "" {
			continue
		}
		if id, ok := bySlug[n.ParentSlug]; ok {
			parentID := id
			n.ParentID = &parentID
		}
	}
}

func stampLog(entry *models.ScanLog) {
	if entry.ID == "" {
		entry.ID = newID()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now()
	}
}

func matchLog(entry *models.ScanLog, f ScanLogFilter) bool {
	return (f.SourceID == "" || entry.SourceID == f.SourceID) &&
		(f.AssetID == "" || entry.AssetID == f.AssetID) &&
		(f.Action == "" || entry.Action == f.Action)
}
