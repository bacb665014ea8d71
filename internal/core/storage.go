package core

import (
	"context"
	"fmt"

	"herdbook/internal/infra/persistence/memory"
	"herdbook/internal/infra/persistence/sqlite"
)

// StorageDriver identifies a concrete persistent storage implementation.
type StorageDriver string

const (
	StorageMemory StorageDriver = "memory" // in-memory only (tests / ephemeral)
	StorageSQLite StorageDriver = "sqlite" // embedded sqlite file
)

// StorageOptions selects and configures a backend.
type StorageOptions struct {
	Driver     StorageDriver
	SQLitePath string
}

// OpenPersistentStore selects a backend. Defaults to sqlite when the driver
// is unset.
func OpenPersistentStore(ctx context.Context, opts StorageOptions, engine *RulesEngine) (PersistentStore, error) {
	driver := opts.Driver
	if driver == "" {
		driver = StorageSQLite
	}
	switch driver {
	case StorageMemory:
		return memory.NewStore(engine), nil
	case StorageSQLite:
		return sqlite.NewStore(ctx, opts.SQLitePath, engine)
	default:
		return nil, fmt.Errorf("unknown storage driver %s", driver)
	}
}
