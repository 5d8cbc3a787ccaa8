package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/worktime/internal/scheduler"
)

// JobRunner runs registered jobs on demand
type JobRunner interface {
	JobLister
	RunNow(name string) error
}

// JobHandlers exposes manual job triggering
type JobHandlers struct {
	runner JobRunner
	log    zerolog.Logger
}

// NewJobHandlers creates the job handlers
func NewJobHandlers(runner JobRunner, log zerolog.Logger) *JobHandlers {
	return &JobHandlers{
		runner: runner,
		log:    log.With().Str("handler", "jobs").Logger(),
	}
}

// HandleListJobs lists the registered jobs
// GET /api/jobs
func (h *JobHandlers) HandleListJobs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"jobs": h.runner.JobNames(),
	}, h.log)
}

// HandleRunJob runs a job synchronously and reports its outcome
// POST /api/jobs/{name}/run
func (h *JobHandlers) HandleRunJob(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	start := time.Now()

	err := h.runner.RunNow(name)
	if errors.Is(err, scheduler.ErrJobNotFound) {
		http.Error(w, "Job not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("job", name).Msg("Manual job run failed")
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"status":  "failed",
			"job":     name,
			"message": err.Error(),
		}, h.log)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":      "success",
		"job":         name,
		"duration_ms": time.Since(start).Milliseconds(),
	}, h.log)
}
