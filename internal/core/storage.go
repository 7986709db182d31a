package core

import (
	"context"
	"fmt"

	"github.com/caarlos0/env/v11"

	"falciparum/internal/infra/persistence/memory"
	"falciparum/internal/infra/persistence/postgres"
	"falciparum/internal/infra/persistence/sqlite"
	"falciparum/pkg/domain"
)

// StorageDriver identifies a checkpoint store implementation.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // process memory (tests, ephemeral runs)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
)

// StorageConfig selects the checkpoint store.
//
//	MALARIA_STORAGE_DRIVER: memory|sqlite|postgres (default sqlite)
//	MALARIA_SQLITE_PATH: sqlite file (default ./falciparum.db)
//	MALARIA_POSTGRES_DSN: DSN when driver=postgres
type StorageConfig struct {
	Driver      StorageDriver `env:"STORAGE_DRIVER" envDefault:"sqlite"`
	SQLitePath  string        `env:"SQLITE_PATH"`
	PostgresDSN string        `env:"POSTGRES_DSN"`
}

// StorageConfigFromEnv parses StorageConfig from environ, or the process
// environment when environ is nil.
func StorageConfigFromEnv(environ map[string]string) (StorageConfig, error) {
	var cfg StorageConfig
	opts := env.Options{Prefix: "MALARIA_"}
	if environ != nil {
		opts.Environment = environ
	}
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return StorageConfig{}, &domain.ConfigError{Param: "storage", Reason: "parse env", Cause: err}
	}
	return cfg, nil
}

// OpenSnapshotStore opens the store selected by the process environment.
func OpenSnapshotStore(ctx context.Context) (domain.SnapshotStore, error) {
	cfg, err := StorageConfigFromEnv(nil)
	if err != nil {
		return nil, err
	}
	return OpenSnapshotStoreConfig(ctx, cfg)
}

// OpenSnapshotStoreConfig opens the store described by cfg.
func OpenSnapshotStoreConfig(ctx context.Context, cfg StorageConfig) (domain.SnapshotStore, error) {
	switch cfg.Driver {
	case StorageMemory:
		return memory.NewStore(), nil
	case StorageSQLite:
		return sqlite.NewStore(cfg.SQLitePath)
	case StoragePostgres:
		return postgres.NewStore(ctx, cfg.PostgresDSN)
	default:
		return nil, &domain.ConfigError{Param: "MALARIA_STORAGE_DRIVER", Reason: fmt.Sprintf("unknown storage driver %q", cfg.Driver)}
	}
}
