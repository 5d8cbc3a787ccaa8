package di

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/worktime/internal/modules/settings"
	"github.com/aristath/worktime/internal/modules/timetracking"
)

// InitializeRepositories creates the repositories on top of the open database
func InitializeRepositories(container *Container, log zerolog.Logger) error {
	if container == nil || container.DB == nil {
		return fmt.Errorf("container database not initialized")
	}

	container.ItemRepo = timetracking.NewRepository(container.DB.Conn(), log)
	container.SettingsRepo = settings.NewRepository(container.DB.Conn(), log)

	log.Debug().Msg("Repositories initialized")
	return nil
}
