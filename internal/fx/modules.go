package fx

import (
	"go.uber.org/fx"

	"ace-league/internal/config"
	"ace-league/internal/database"
	"ace-league/internal/logger"
	"ace-league/internal/repository"
	"ace-league/internal/server"
	"ace-league/internal/service"
)

// CoreModule wires the infrastructure ring: logging, configuration and
// the SQLite document store.
var CoreModule = fx.Options(
	fx.Provide(
		logger.New,
		config.Load,
		database.New,
	),
)

// LeagueModule wires the repositories, the orchestration service and the
// HTTP surface on top of the core.
var LeagueModule = fx.Options(
	fx.Provide(
		repository.NewClusterRepository,
		repository.NewSessionStatusRepository,
		ProvideStateStore,
		ProvideStatusStore,
		service.NewLeagueService,
		server.NewLeagueServer,
	),
)

func ProvideStateStore(repo *repository.ClusterRepository) service.StateStore {
	return repo
}

func ProvideStatusStore(repo *repository.SessionStatusRepository) service.StatusStore {
	return repo
}
