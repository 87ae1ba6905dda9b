package app

import (
	"fmt"

	"anthology-downloader/internal/config"
	"anthology-downloader/internal/observability"
	"anthology-downloader/internal/storage"
	"anthology-downloader/internal/storage/mssql"
	"anthology-downloader/internal/storage/sqlite"
)

// OpenRepository opens the catalog named by cfg.Storage. It returns nil when
// no driver is configured.
func OpenRepository(cfg *config.Config, logger *observability.Logger) (storage.Repository, error) {
	switch cfg.Storage.Driver {
	case "":
		return nil, nil
	case "sqlite":
		repo, err := sqlite.NewRepository(cfg.Storage.DSN, cfg.GetCommandTimeout(), logger)
		if err != nil {
			return nil, fmt.Errorf("sqlite catalog: %w", err)
		}
		return repo, nil
	case "mssql":
		repo, err := mssql.NewRepository(cfg.Storage.DSN, cfg.GetCommandTimeout(), logger)
		if err != nil {
			return nil, fmt.Errorf("mssql catalog: %w", err)
		}
		return repo, nil
	default:
		return nil, fmt.Errorf("unknown storage driver: %s", cfg.Storage.Driver)
	}
}
