package settings

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/worktime/internal/events"
)

// EventEmitter publishes settings events
type EventEmitter interface {
	EmitTyped(eventType events.EventType, module string, data events.EventData)
}

// Service reads and updates TimerSettings.
// Nothing is cached: every call goes to the store so sweeps observe admin
// changes on their next cycle.
type Service struct {
	repo     *Repository
	defaults TimerSettings
	emitter  EventEmitter
	log      zerolog.Logger
}

// NewService creates the settings service. defaults are materialized into the
// store the first time TimerSettings are read.
func NewService(repo *Repository, defaults TimerSettings, emitter EventEmitter, log zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		defaults: defaults,
		emitter:  emitter,
		log:      log.With().Str("service", "settings").Logger(),
	}
}

// Defaults returns the values used for missing keys
func (s *Service) Defaults() TimerSettings {
	return s.defaults
}

// GetTimerSettings returns the current policy, writing defaults for any missing key
func (s *Service) GetTimerSettings(ctx context.Context) (TimerSettings, error) {
	stored, err := s.repo.GetAll(ctx)
	if err != nil {
		return s.defaults, err
	}

	missing := make(map[string]string)
	for key, value := range s.defaults.values() {
		if _, ok := stored[key]; !ok {
			missing[key] = value
		}
	}
	if len(missing) > 0 {
		if err := s.repo.SetMany(ctx, missing, true); err != nil {
			s.log.Warn().Err(err).Msg("Failed to materialize default timer settings")
		} else {
			s.log.Info().Int("keys", len(missing)).Msg("Materialized default timer settings")
		}
	}

	return s.fromStored(stored), nil
}

// fromStored builds TimerSettings from one GetAll snapshot; absent keys keep their default
func (s *Service) fromStored(stored map[string]string) TimerSettings {
	settings := s.defaults
	if v, ok := stored[KeyAutoStopHour]; ok {
		settings.AutoStopHour = s.repo.intValue(KeyAutoStopHour, v, s.defaults.AutoStopHour)
	}
	if v, ok := stored[KeyAutoStopMinute]; ok {
		settings.AutoStopMinute = s.repo.intValue(KeyAutoStopMinute, v, s.defaults.AutoStopMinute)
	}
	if v, ok := stored[KeyAutoStopEnabled]; ok {
		settings.AutoStopEnabled = parseBool(v)
	}
	if v, ok := stored[KeyAutoStopTimezone]; ok {
		settings.AutoStopTimezone = stringValue(v, s.defaults.AutoStopTimezone)
	}
	if v, ok := stored[KeyAutoStopWeekdaysOnly]; ok {
		settings.AutoStopWeekdaysOnly = parseBool(v)
	}
	return settings
}

// UpdateTimerSettings validates and stores a new policy
func (s *Service) UpdateTimerSettings(ctx context.Context, updated TimerSettings) (TimerSettings, error) {
	if err := updated.Validate(); err != nil {
		return TimerSettings{}, err
	}

	if err := s.repo.SetMany(ctx, updated.values(), false); err != nil {
		return TimerSettings{}, fmt.Errorf("failed to store timer settings: %w", err)
	}

	s.log.Info().
		Int("hour", updated.AutoStopHour).
		Int("minute", updated.AutoStopMinute).
		Bool("enabled", updated.AutoStopEnabled).
		Str("timezone", updated.AutoStopTimezone).
		Bool("weekdays_only", updated.AutoStopWeekdaysOnly).
		Msg("Timer settings updated")

	if s.emitter != nil {
		s.emitter.EmitTyped(events.SettingsChanged, "settings", &events.SettingsChangedData{
			Key:   "timer",
			Value: updated,
		})
	}
	return updated, nil
}

// LastEndOfDayCycle returns the cycle key stored by SetLastEndOfDayCycle, or ""
func (s *Service) LastEndOfDayCycle(ctx context.Context) (string, error) {
	return s.repo.GetString(ctx, KeyEndOfDayLastCycle, "")
}

// SetLastEndOfDayCycle records a completed end-of-day sweep so a restarted
// process does not sweep the same cutoff again
func (s *Service) SetLastEndOfDayCycle(ctx context.Context, cycle string) error {
	desc := SettingDescriptions[KeyEndOfDayLastCycle]
	return s.repo.Set(ctx, KeyEndOfDayLastCycle, cycle, &desc)
}

// IsOffHours reports whether t falls outside the working day: after today's
// cutoff, or on a weekend under weekdays-only. Always false when auto-stop is
// disabled or the settings cannot be read.
func (s *Service) IsOffHours(ctx context.Context, t time.Time) bool {
	settings, err := s.GetTimerSettings(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to read timer settings for off-hours check")
		return false
	}
	if !settings.AutoStopEnabled {
		return false
	}

	loc, _ := settings.Location(s.defaults.AutoStopTimezone)
	local := t.In(loc)
	if !settings.IsWorkday(local) {
		return true
	}
	return !local.Before(settings.CutoffOn(local))
}
