/**
 * Package di provides dependency injection type definitions.
 *
 * This package defines the Container type which holds all application dependencies.
 * The Container is the single source of truth for all service instances and is
 * passed to the HTTP server for access to services.
 */
package di

import (
	"github.com/aristath/worktime/internal/database"
	"github.com/aristath/worktime/internal/events"
	"github.com/aristath/worktime/internal/modules/aggregation"
	"github.com/aristath/worktime/internal/modules/settings"
	"github.com/aristath/worktime/internal/modules/timetracking"
	"github.com/aristath/worktime/internal/reliability"
	"github.com/aristath/worktime/internal/scheduler"
)

/**
 * Container holds all dependencies for the application.
 *
 * Architecture:
 * - Database: a single SQLite database (items, settings) in WAL mode
 * - Repositories: item timer state and key/value settings
 * - Services: timer engine, settings, aggregation, backups
 * - Scheduler: cron runner for the sweeps and reliability jobs
 */
type Container struct {
	DB *database.DB // Items and settings

	// Repositories
	ItemRepo     *timetracking.Repository
	SettingsRepo *settings.Repository

	// Services
	EventBus           *events.Bus
	EventManager       *events.Manager
	TimerEngine        *timetracking.Service
	SettingsService    *settings.Service
	AggregationService *aggregation.Service
	BackupService      *reliability.BackupService // nil unless backups are enabled

	Scheduler *scheduler.Scheduler
}

// Close releases the database connection
func (c *Container) Close() error {
	if c == nil || c.DB == nil {
		return nil
	}
	return c.DB.Close()
}

// JobInstances holds references to every registered job
type JobInstances struct {
	InactivityMonitor *scheduler.InactivityMonitor
	EndOfDay          *scheduler.EndOfDayJob
	ExtraHours        *scheduler.ExtraHoursJob
	Maintenance       *reliability.DatabaseMaintenanceJob
	Backup            *reliability.BackupJob // nil unless backups are enabled
}
