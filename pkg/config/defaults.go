package config

import "time"

const (
	DefaultMongoURI          = "mongodb://localhost:27017"
	DefaultMongoDatabaseName = "wayfare"
	DefaultMongoConnTimeout  = 10 * time.Second

	DefaultPort     = "8080"
	DefaultLogLevel = "info"

	DefaultRateLimitRequests = 10
	DefaultRateLimitWindow   = 1 * time.Minute

	DefaultRequestTimeout = 30 * time.Second
	DefaultIdempotencyTTL = 24 * time.Hour
	DefaultMaxRequestSize = 1 * 1024 * 1024 // 1MB

	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	DefaultPaginationLimit = 100

	// Transition sweeps tick hourly; the task lock interval matches the
	// tick so at most one instance runs a given sweep per hour.
	DefaultTransitionSweepInterval = 1 * time.Hour
	DefaultTransitionLockInterval  = 1 * time.Hour

	// Reminder sweep runs daily and emits facts only, so it needs no lock.
	DefaultReminderSweepInterval = 24 * time.Hour
	DefaultDraftReminderAge      = 72 * time.Hour
	DefaultUpcomingTripWindow    = 48 * time.Hour
)
