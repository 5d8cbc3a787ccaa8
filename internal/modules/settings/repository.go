// Package settings stores runtime-configurable settings as key/value rows and
// exposes the timer policy (TimerSettings) built on top of them.
package settings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/worktime/internal/database"
)

// Repository handles settings database operations.
//
// Settings are stored as strings and converted to the appropriate type when
// retrieved. A missing key is not an error: typed getters return the caller's
// default instead.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new settings repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repository", "settings").Logger(),
	}
}

// Get retrieves a setting value by key.
// Returns nil if the setting doesn't exist.
func (r *Repository) Get(ctx context.Context, key string) (*string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, "SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get setting %s: %w", key, err)
	}
	return &value, nil
}

// Set upserts a setting value. The description is left unchanged when nil.
func (r *Repository) Set(ctx context.Context, key, value string, description *string) error {
	now := time.Now().Unix()

	if description != nil {
		_, err := r.db.ExecContext(ctx, `
			INSERT INTO settings (key, value, description, updated_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(key) DO UPDATE SET
				value = excluded.value,
				description = excluded.description,
				updated_at = excluded.updated_at
		`, key, value, *description, now)
		if err != nil {
			return fmt.Errorf("failed to set setting %s: %w", key, err)
		}
		return nil
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO settings (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at
	`, key, value, now)
	if err != nil {
		return fmt.Errorf("failed to set setting %s: %w", key, err)
	}
	return nil
}

// SetMany writes all values in one transaction.
// With onlyMissing set, existing keys keep their stored value.
func (r *Repository) SetMany(ctx context.Context, values map[string]string, onlyMissing bool) error {
	stmt := `
		INSERT INTO settings (key, value, description, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at
	`
	if onlyMissing {
		stmt = `
			INSERT INTO settings (key, value, description, updated_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(key) DO NOTHING
		`
	}

	now := time.Now().Unix()
	return database.WithTransaction(r.db, func(tx *sql.Tx) error {
		for key, value := range values {
			if _, err := tx.ExecContext(ctx, stmt, key, value, SettingDescriptions[key], now); err != nil {
				return fmt.Errorf("failed to set setting %s: %w", key, err)
			}
		}
		return nil
	})
}

// GetAll retrieves all settings as a map
func (r *Repository) GetAll(ctx context.Context) (map[string]string, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT key, value FROM settings")
	if err != nil {
		return nil, fmt.Errorf("failed to get all settings: %w", err)
	}
	defer rows.Close()

	result := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			r.log.Warn().Err(err).Msg("Failed to scan setting row")
			continue
		}
		result[key] = value
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating settings: %w", err)
	}
	return result, nil
}

// GetInt retrieves a setting value as integer.
// Unparseable values are logged and yield defaultValue.
func (r *Repository) GetInt(ctx context.Context, key string, defaultValue int) (int, error) {
	value, err := r.Get(ctx, key)
	if err != nil || value == nil {
		return defaultValue, err
	}
	return r.intValue(key, *value, defaultValue), nil
}

// GetBool retrieves a setting value as boolean.
// "true", "1", "yes" and "on" are truthy; anything else is false.
func (r *Repository) GetBool(ctx context.Context, key string, defaultValue bool) (bool, error) {
	value, err := r.Get(ctx, key)
	if err != nil || value == nil {
		return defaultValue, err
	}
	return parseBool(*value), nil
}

// GetString retrieves a setting value, or defaultValue if missing or blank
func (r *Repository) GetString(ctx context.Context, key, defaultValue string) (string, error) {
	value, err := r.Get(ctx, key)
	if err != nil || value == nil {
		return defaultValue, err
	}
	return stringValue(*value, defaultValue), nil
}

func (r *Repository) intValue(key, value string, defaultValue int) int {
	// Parse via float to accept "17.0"
	floatVal, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		r.log.Warn().
			Err(err).
			Str("key", key).
			Str("value", value).
			Msg("Failed to parse int setting")
		return defaultValue
	}
	return int(floatVal)
}

func stringValue(value, defaultValue string) string {
	if strings.TrimSpace(value) == "" {
		return defaultValue
	}
	return value
}

// Delete removes a setting. Deleting a missing key is not an error.
func (r *Repository) Delete(ctx context.Context, key string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM settings WHERE key = ?", key)
	if err != nil {
		return fmt.Errorf("failed to delete setting %s: %w", key, err)
	}
	return nil
}

func parseBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "true", "1", "yes", "on":
		return true
	}
	return false
}

func formatBool(value bool) string {
	if value {
		return "true"
	}
	return "false"
}
