package di

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/worktime/internal/config"
	"github.com/aristath/worktime/internal/events"
	"github.com/aristath/worktime/internal/modules/aggregation"
	"github.com/aristath/worktime/internal/modules/settings"
	"github.com/aristath/worktime/internal/modules/timetracking"
	"github.com/aristath/worktime/internal/reliability"
)

// InitializeServices creates the services. Backups are wired only when enabled,
// and a bad object storage configuration fails startup.
func InitializeServices(container *Container, cfg *config.Config, log zerolog.Logger) error {
	if container.ItemRepo == nil || container.SettingsRepo == nil {
		return fmt.Errorf("repositories not initialized")
	}

	container.EventBus = events.NewBus(log)
	container.EventManager = events.NewManager(container.EventBus, log)

	defaults := settings.DefaultTimerSettings(cfg.DefaultTimezone)
	if cfg.TimerPolicyFile != "" {
		loaded, err := settings.LoadDefaultsFile(cfg.TimerPolicyFile, defaults)
		if err != nil {
			return err
		}
		defaults = loaded
		log.Info().Str("path", cfg.TimerPolicyFile).Msg("Timer policy defaults loaded")
	}
	container.SettingsService = settings.NewService(container.SettingsRepo, defaults, container.EventManager, log)

	container.TimerEngine = timetracking.NewService(container.ItemRepo, container.EventManager, log)
	container.TimerEngine.SetOffHoursPolicy(container.SettingsService)

	container.AggregationService = aggregation.NewService(container.ItemRepo, log)

	if cfg.Backup != nil && cfg.Backup.Enabled {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		store, err := reliability.NewS3Store(ctx, cfg.Backup, log)
		if err != nil {
			return fmt.Errorf("failed to create backup store: %w", err)
		}
		container.BackupService = reliability.NewBackupService(container.DB, store, cfg.DataDir, cfg.Backup.Prefix, log)
	}

	log.Debug().Msg("Services initialized")
	return nil
}
