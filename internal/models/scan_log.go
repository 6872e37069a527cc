package models

import "time"

// Scan log actions.
const (
	ActionScanSource      = "scan_source"
	ActionDiscoverAssets  = "discover_assets"
	ActionScanAsset       = "scan_asset"
	ActionMapToc          = "map_toc"
	ActionActivateAsset   = "activate_asset"
	ActionDeactivateAsset = "deactivate_asset"
	ActionDynamicDiscover = "dynamic_discover"
)

// Scan log statuses.
const (
	LogStatusStarted = "started"
	LogStatusSuccess = "success"
	LogStatusWarning = "warning"
	LogStatusError   = "error"
	LogStatusSkipped = "skipped"
)

// ScanLog is an append-only audit record.
type ScanLog struct {
	ID        string                 `json:"id"`
	SourceID  string                 `json:"source_id,omitempty"`
	AssetID   string                 `json:"asset_id,omitempty"`
	Action    string                 `json:"action"`
	Status    string                 `json:"status"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}
