// Package di provides dependency injection for database connections.
package di

import (
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/aristath/worktime/internal/config"
	"github.com/aristath/worktime/internal/database"
)

// DatabaseFile is the name of the tracking database inside the data directory
const DatabaseFile = "worktime.db"

// InitializeDatabases opens the tracking database and applies the schema
func InitializeDatabases(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	db, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, DatabaseFile),
		Profile: database.ProfileStandard,
		Name:    "worktime",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize worktime database: %w", err)
	}

	if err := db.Migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate worktime database: %w", err)
	}

	log.Info().Str("path", db.Path()).Msg("Database initialized")
	return &Container{DB: db}, nil
}
