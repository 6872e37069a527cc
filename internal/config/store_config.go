package config

// Store drivers.
const (
	StoreDriverMemory = "memory"
	StoreDriverSQLite = "sqlite"
)

// StoreConfig selects and configures the catalog store.
type StoreConfig struct {
	Driver          string `json:"driver,omitempty" yaml:"driver,omitempty" validate:"omitempty,storedriver"`
	InsertBatchSize int    `json:"insert_batch_size,omitempty" yaml:"insert_batch_size,omitempty" validate:"omitempty,min=1"`
	SQLitePath      string `json:"sqlite_path,omitempty" yaml:"sqlite_path,omitempty"`
}

func NewDefaultStoreConfig() StoreConfig {
	return StoreConfig{
		Driver:          DefaultStoreDriver,
		InsertBatchSize: DefaultStoreInsertBatchSize,
		SQLitePath:      DefaultStoreSQLitePath,
	}
}
