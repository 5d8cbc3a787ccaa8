// Package di provides dependency injection for scheduler jobs.
package di

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/worktime/internal/config"
	"github.com/aristath/worktime/internal/reliability"
	"github.com/aristath/worktime/internal/scheduler"
)

// RegisterJobs creates every job and registers it with the scheduler.
// Returns JobInstances for manual triggering and tests.
func RegisterJobs(container *Container, cfg *config.Config, log zerolog.Logger) (*JobInstances, error) {
	if container == nil {
		return nil, fmt.Errorf("container cannot be nil")
	}
	if container.TimerEngine == nil || container.SettingsService == nil {
		return nil, fmt.Errorf("services not initialized")
	}

	sched := scheduler.New(log)
	instances := &JobInstances{}

	// Job 1: Inactivity monitor
	instances.InactivityMonitor = scheduler.NewInactivityMonitor(
		container.TimerEngine,
		container.EventManager,
		cfg.InactivityThreshold,
	)
	instances.InactivityMonitor.SetLogger(log.With().Str("job", "inactivity_monitor").Logger())
	if err := sched.AddJob(fmt.Sprintf("@every %s", cfg.InactivitySweepInterval), instances.InactivityMonitor); err != nil {
		return nil, err
	}

	// Job 2: End of day, polls every minute against the stored cutoff
	instances.EndOfDay = scheduler.NewEndOfDayJob(
		container.TimerEngine,
		container.SettingsService,
		container.EventManager,
		cfg.DefaultTimezone,
	)
	instances.EndOfDay.SetLogger(log.With().Str("job", "end_of_day").Logger())
	if err := sched.AddJob(scheduler.EndOfDaySchedule, instances.EndOfDay); err != nil {
		return nil, err
	}

	// Job 3: Extra hours, start of the work day in the workday timezone.
	// The zone is read once here; a later timezone change applies on restart.
	instances.ExtraHours = scheduler.NewExtraHoursJob(container.TimerEngine, container.EventManager)
	instances.ExtraHours.SetLogger(log.With().Str("job", "extra_hours").Logger())
	zone := workdayTimezone(container.SettingsService, cfg.DefaultTimezone, log)
	extraHoursSchedule := fmt.Sprintf("CRON_TZ=%s %s", zone, cfg.ExtraHoursSchedule)
	if err := sched.AddJob(extraHoursSchedule, instances.ExtraHours); err != nil {
		return nil, err
	}

	// Job 4: Database maintenance
	instances.Maintenance = reliability.NewDatabaseMaintenanceJob(container.DB)
	instances.Maintenance.SetLogger(log.With().Str("job", "database_maintenance").Logger())
	if err := sched.AddJob(cfg.MaintenanceSchedule, instances.Maintenance); err != nil {
		return nil, err
	}

	// Job 5: Backup (optional)
	if container.BackupService != nil {
		instances.Backup = reliability.NewBackupJob(container.BackupService, cfg.Backup.RetentionDays)
		instances.Backup.SetLogger(log.With().Str("job", "backup").Logger())
		if err := sched.AddJob(cfg.Backup.Schedule, instances.Backup); err != nil {
			return nil, err
		}
	}

	container.Scheduler = sched
	log.Info().Strs("jobs", sched.JobNames()).Msg("Jobs registered")
	return instances, nil
}

// workdayTimezone returns the stored auto-stop timezone, or fallback when it
// cannot be read or loaded
func workdayTimezone(provider scheduler.SettingsProvider, fallback string, log zerolog.Logger) string {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	policy, err := provider.GetTimerSettings(ctx)
	if err != nil {
		log.Warn().Err(err).Str("fallback", fallback).Msg("Failed to read workday timezone")
		return fallback
	}
	loc, configured := policy.Location(fallback)
	if !configured {
		log.Warn().
			Str("timezone", policy.AutoStopTimezone).
			Str("fallback", fallback).
			Msg("Invalid workday timezone, using default")
	}
	return loc.String()
}
