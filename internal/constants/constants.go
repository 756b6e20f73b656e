package constants

import "time"

const (
	DatabaseTimeout = 5 * time.Second
	RequestTimeout  = 30 * time.Second
)

const (
	DBMaxOpenConns    = 10
	DBMaxIdleConns    = 5
	DBConnMaxLifetime = 1 * time.Hour
	DBMaxIdleTime     = 10 * time.Minute
)

const (
	ShutdownTimeout = 5 * time.Second

	// WatchInterval is how often the service polls the store for changes
	// written by other processes.
	WatchInterval = 3 * time.Second
)

const (
	DefaultCluster = "Default"

	// LegacyCluster is the pre-cluster document key; its content is copied
	// into the default cluster exactly once, when the default is empty.
	LegacyCluster = "legacy"

	SessionStatusPrefix = "sessionStatus_"
)

const (
	MaxMatchScore   = 6
	LeaderboardSize = 15
)
