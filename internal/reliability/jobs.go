package reliability

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/disk"

	"github.com/aristath/worktime/internal/database"
)

const (
	backupTimeout      = 30 * time.Minute
	maintenanceTimeout = 10 * time.Minute

	// Below this much free space maintenance fails loudly
	criticalFreeBytes = 500 * 1024 * 1024
	lowFreeBytes      = 5 * 1024 * 1024 * 1024
)

// BackupJob uploads a snapshot archive and rotates old ones
type BackupJob struct {
	service       *BackupService
	retentionDays int
	log           zerolog.Logger
}

// NewBackupJob creates a new backup job
func NewBackupJob(service *BackupService, retentionDays int) *BackupJob {
	return &BackupJob{
		service:       service,
		retentionDays: retentionDays,
		log:           zerolog.Nop(),
	}
}

// SetLogger sets the logger for the job
func (j *BackupJob) SetLogger(log zerolog.Logger) {
	j.log = log
}

// Name returns the job name
func (j *BackupJob) Name() string {
	return "backup"
}

// Run executes the backup job
func (j *BackupJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), backupTimeout)
	defer cancel()

	key, err := j.service.CreateAndUploadBackup(ctx)
	if err != nil {
		return fmt.Errorf("backup failed: %w", err)
	}

	deleted, err := j.service.RotateOldBackups(ctx, j.retentionDays)
	if err != nil {
		// The new archive is already stored
		j.log.Warn().Err(err).Msg("Backup rotation failed")
	}

	j.log.Info().Str("key", key).Int("rotated", deleted).Msg("Backup job completed")
	return nil
}

// DatabaseMaintenanceJob checks integrity, truncates the WAL and watches disk space
type DatabaseMaintenanceJob struct {
	db  *database.DB
	log zerolog.Logger

	usage func(path string) (*disk.UsageStat, error)
}

// NewDatabaseMaintenanceJob creates a new maintenance job
func NewDatabaseMaintenanceJob(db *database.DB) *DatabaseMaintenanceJob {
	return &DatabaseMaintenanceJob{
		db:    db,
		log:   zerolog.Nop(),
		usage: disk.Usage,
	}
}

// SetLogger sets the logger for the job
func (j *DatabaseMaintenanceJob) SetLogger(log zerolog.Logger) {
	j.log = log
}

// Name returns the job name
func (j *DatabaseMaintenanceJob) Name() string {
	return "database_maintenance"
}

// Run executes the maintenance job
func (j *DatabaseMaintenanceJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), maintenanceTimeout)
	defer cancel()

	if err := j.db.HealthCheck(ctx); err != nil {
		j.log.Error().Err(err).Str("database", j.db.Name()).Msg("Integrity check failed")
		return fmt.Errorf("integrity check failed for %s: %w", j.db.Name(), err)
	}

	var busy, logFrames, checkpointed int
	err := j.db.Conn().QueryRowContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)").Scan(&busy, &logFrames, &checkpointed)
	if err != nil {
		j.log.Warn().Err(err).Msg("WAL checkpoint failed")
	} else {
		j.log.Debug().
			Int("busy", busy).
			Int("log_frames", logFrames).
			Int("checkpointed", checkpointed).
			Msg("WAL checkpoint completed")
	}

	return j.checkDiskSpace()
}

func (j *DatabaseMaintenanceJob) checkDiskSpace() error {
	dir := filepath.Dir(j.db.Path())
	usage, err := j.usage(dir)
	if err != nil {
		j.log.Warn().Err(err).Str("path", dir).Msg("Failed to read disk usage")
		return nil
	}

	freeGB := float64(usage.Free) / 1e9
	switch {
	case usage.Free < criticalFreeBytes:
		j.log.Error().Float64("free_gb", freeGB).Msg("CRITICAL: Insufficient disk space")
		return fmt.Errorf("only %.2f GB free on %s", freeGB, dir)
	case usage.Free < lowFreeBytes:
		j.log.Warn().Float64("free_gb", freeGB).Msg("Disk space running low")
	default:
		j.log.Debug().Float64("free_gb", freeGB).Msg("Disk space check")
	}
	return nil
}
