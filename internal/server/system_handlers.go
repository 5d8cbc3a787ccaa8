package server

import (
	"net/http"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aristath/worktime/internal/database"
)

// JobLister reports the registered scheduler jobs
type JobLister interface {
	JobNames() []string
}

// SystemHandlers serves process and database status
type SystemHandlers struct {
	db        *database.DB
	jobs      JobLister
	startedAt time.Time
	log       zerolog.Logger

	cpuPercent    func(interval time.Duration, percpu bool) ([]float64, error)
	virtualMemory func() (*mem.VirtualMemoryStat, error)
}

// NewSystemHandlers creates the system handlers
func NewSystemHandlers(db *database.DB, jobs JobLister, log zerolog.Logger) *SystemHandlers {
	return &SystemHandlers{
		db:            db,
		jobs:          jobs,
		startedAt:     time.Now(),
		log:           log.With().Str("handler", "system").Logger(),
		cpuPercent:    cpu.Percent,
		virtualMemory: mem.VirtualMemory,
	}
}

// SystemStatusResponse is returned by GET /api/system/status
type SystemStatusResponse struct {
	Status        string   `json:"status"`
	UptimeSeconds int64    `json:"uptime_seconds"`
	CPUPercent    float64  `json:"cpu_percent"`
	MemoryPercent float64  `json:"memory_percent"`
	Goroutines    int      `json:"goroutines"`
	ActiveTimers  int      `json:"active_timers"`
	Jobs          []string `json:"jobs"`
	LastChecked   string   `json:"last_checked"`
}

// DatabaseStatsResponse represents database statistics
type DatabaseStatsResponse struct {
	Name        string  `json:"name"`
	Path        string  `json:"path"`
	SizeMB      float64 `json:"size_mb"`
	WALSizeMB   float64 `json:"wal_size_mb"`
	PageCount   int64   `json:"page_count"`
	PageSize    int64   `json:"page_size"`
	ItemCount   int     `json:"item_count"`
	LastChecked string  `json:"last_checked"`
}

// HandleSystemStatus returns process resource usage and timer counts
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	h.log.Debug().Msg("Getting system status")

	cpuPercent, memPercent := h.getSystemStats()

	var activeTimers int
	err := h.db.Conn().QueryRowContext(r.Context(),
		"SELECT COALESCE(SUM(active_count), 0) FROM items").Scan(&activeTimers)
	status := "healthy"
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to count active timers")
		status = "degraded"
	}

	jobs := []string{}
	if h.jobs != nil {
		jobs = h.jobs.JobNames()
	}

	writeJSON(w, http.StatusOK, SystemStatusResponse{
		Status:        status,
		UptimeSeconds: int64(time.Since(h.startedAt) / time.Second),
		CPUPercent:    cpuPercent,
		MemoryPercent: memPercent,
		Goroutines:    runtime.NumGoroutine(),
		ActiveTimers:  activeTimers,
		Jobs:          jobs,
		LastChecked:   time.Now().Format(time.RFC3339),
	}, h.log)
}

// HandleDatabaseStats returns database statistics
func (h *SystemHandlers) HandleDatabaseStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.db.GetStats()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to get database stats")
		http.Error(w, "Failed to get database stats", http.StatusInternalServerError)
		return
	}

	var items int
	if err := h.db.Conn().QueryRowContext(r.Context(), "SELECT COUNT(*) FROM items").Scan(&items); err != nil {
		h.log.Warn().Err(err).Msg("Failed to count items")
	}

	writeJSON(w, http.StatusOK, DatabaseStatsResponse{
		Name:        h.db.Name(),
		Path:        h.db.Path(),
		SizeMB:      float64(stats.SizeBytes) / 1024 / 1024,
		WALSizeMB:   float64(stats.WALSizeBytes) / 1024 / 1024,
		PageCount:   stats.PageCount,
		PageSize:    stats.PageSize,
		ItemCount:   items,
		LastChecked: time.Now().Format(time.RFC3339),
	}, h.log)
}

// getSystemStats calculates CPU and RAM usage percentages.
// CPU is sampled over 100ms to keep the endpoint responsive.
func (h *SystemHandlers) getSystemStats() (float64, float64) {
	cpuPercent, err := h.cpuPercent(100*time.Millisecond, false)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memStat, err := h.virtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return 0, 0
	}

	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}
	return cpuAvg, memStat.UsedPercent
}
