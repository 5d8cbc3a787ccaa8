package testing

import (
	"testing"
	"time"

	"github.com/aristath/worktime/internal/database"
)

// ItemFixture describes a tracked item row to seed in a test database
type ItemFixture struct {
	ID        string
	Key       string
	ProjectID string
	ParentID  string
	Title     string
}

// InsertItems seeds item rows with an empty time tracking sub-state.
func InsertItems(t *testing.T, db *database.DB, items ...ItemFixture) {
	t.Helper()

	now := time.Now().Unix()
	for _, item := range items {
		var parent interface{}
		if item.ParentID != "" {
			parent = item.ParentID
		}
		key := item.Key
		if key == "" {
			key = item.ID
		}
		_, err := db.Conn().Exec(`
			INSERT INTO items (id, item_key, project_id, parent_id, title, time_tracking, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, '{}', ?, ?)
		`, item.ID, key, item.ProjectID, parent, item.Title, now, now)
		if err != nil {
			t.Fatalf("Failed to insert item fixture %s: %v", item.ID, err)
		}
	}
}
