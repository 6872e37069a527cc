package datastore

import (
	"context"
	"sort"
	"sync"

	"github.com/aleister1102/oerscout/internal/common"
	"github.com/aleister1102/oerscout/internal/models"
)

// MemoryStore keeps the catalog in process memory. Returned records are copies.
type MemoryStore struct {
	mu           sync.RWMutex
	sources      map[string]*models.Source
	sourceByName map[string]string
	assets       map[string]*models.Asset
	assetBySlug  map[string]string
	assetOrder   []string
	nodes        map[string][]*models.TocNode
	logs         []*models.ScanLog
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sources:      make(map[string]*models.Source),
		sourceByName: make(map[string]string),
		assets:       make(map[string]*models.Asset),
		assetBySlug:  make(map[string]string),
		nodes:        make(map[string][]*models.TocNode),
	}
}

func assetKey(sourceID, slug string) string {
	return sourceID + "\x00" + slug
}

func (m *MemoryStore) GetSource(_ context.Context, id string) (*models.Source, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	src, ok := m.sources[id]
	if !ok {
		return nil, notFound("source", id)
	}
	c := *src
	return &c, nil
}

func (m *MemoryStore) GetSourceByName(_ context.Context, name string) (*models.Source, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.sourceByName[name]
	if !ok {
		return nil, notFound("source", name)
	}
	c := *m.sources[id]
	return &c, nil
}

func (m *MemoryStore) CreateSource(_ context.Context, src *models.Source) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, dup := m.sourceByName[src.Name]; dup {
		return common.NewError("source '%s' already exists", src.Name)
	}
	stampSource(src)
	c := *src
	m.sources[src.ID] = &c
	m.sourceByName[src.Name] = src.ID
	return nil
}

func (m *MemoryStore) UpdateSource(_ context.Context, src *models.Source) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	old, ok := m.sources[src.ID]
	if !ok {
		return notFound("source", src.ID)
	}
	src.UpdatedAt = now()
	c := *src
	if old.Name != src.Name {
		delete(m.sourceByName, old.Name)
		m.sourceByName[src.Name] = src.ID
	}
	m.sources[src.ID] = &c
	return nil
}

func (m *MemoryStore) GetAsset(_ context.Context, id string) (*models.Asset, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.assets[id]
	if !ok {
		return nil, notFound("asset", id)
	}
	return cloneAsset(a), nil
}

func (m *MemoryStore) GetAssetBySlug(_ context.Context, sourceID, slug string) (*models.Asset, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.assetBySlug[assetKey(sourceID, slug)]
	if !ok {
		return nil, notFound("asset", slug)
	}
	return cloneAsset(m.assets[id]), nil
}

func (m *MemoryStore) CreateAsset(_ context.Context, asset *models.Asset) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := assetKey(asset.SourceID, asset.Slug)
	if _, dup := m.assetBySlug[key]; dup {
		return common.NewError("asset '%s' already exists for source '%s'", asset.Slug, asset.SourceID)
	}
	stampAsset(asset)
	m.assets[asset.ID] = cloneAsset(asset)
	m.assetBySlug[key] = asset.ID
	m.assetOrder = append(m.assetOrder, asset.ID)
	return nil
}

func (m *MemoryStore) UpdateAsset(_ context.Context, asset *models.Asset) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.assets[asset.ID]; !ok {
		return notFound("asset", asset.ID)
	}
	asset.UpdatedAt = now()
	m.assets[asset.ID] = cloneAsset(asset)
	return nil
}

func (m *MemoryStore) ListAssets(_ context.Context, filter AssetFilter) ([]*models.Asset, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.Asset
	for _, id := range m.assetOrder {
		a := m.assets[id]
		if filter.SourceID != "" && a.SourceID != filter.SourceID {
			continue
		}
		if filter.ActiveOnly && !a.Active {
			continue
		}
		out = append(out, cloneAsset(a))
	}
	return out, nil
}

func (m *MemoryStore) ReplaceTocNodes(_ context.Context, assetID string, nodes []*models.TocNode) error {
	prepareNodes(assetID, nodes)
	stored := make([]*models.TocNode, 0, len(nodes))
	for _, n := range nodes {
		c := *n
		c.Children = nil
		stored = append(stored, &c)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.nodes, assetID)
	if len(stored) > 0 {
		m.nodes[assetID] = stored
	}
	return nil
}

func (m *MemoryStore) ListTocNodes(_ context.Context, assetID string) ([]*models.TocNode, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*models.TocNode, 0, len(m.nodes[assetID]))
	for _, n := range m.nodes[assetID] {
		c := *n
		out = append(out, &c)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].SortOrder < out[j].SortOrder })
	return out, nil
}

func (m *MemoryStore) AppendScanLog(_ context.Context, entry *models.ScanLog) error {
	stampLog(entry)
	c := *entry
	m.mu.Lock()
	m.logs = append(m.logs, &c)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) ListScanLogs(_ context.Context, filter ScanLogFilter) ([]*models.ScanLog, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.ScanLog
	for _, l := range m.logs {
		if matchLog(l, filter) {
			c := *l
			out = append(out, &c)
		}
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[len(out)-filter.Limit:]
	}
	return out, nil
}

func (m *MemoryStore) Close() error {
	return nil
}

func cloneAsset(a *models.Asset) *models.Asset {
	c := *a
	c.Subjects = append([]string(nil), a.Subjects...)
	if a.TocStats != nil {
		stats := *a.TocStats
		c.TocStats = &stats
	}
	if a.ValidationReport != nil {
		report := *a.ValidationReport
		c.ValidationReport = &report
	}
	return &c
}
