package config

const (
	EnvMongoURI          = "MONGO_URI"
	EnvMongoDatabaseName = "MONGO_DATABASE_NAME"
	EnvMongoConnTimeout  = "MONGO_CONN_TIMEOUT"

	EnvPort     = "PORT"
	EnvLogLevel = "LOG_LEVEL"

	EnvRateLimitRequests = "RATE_LIMIT_REQUESTS"
	EnvRateLimitWindow   = "RATE_LIMIT_WINDOW"

	EnvRequestTimeout = "REQUEST_TIMEOUT"
	EnvIdempotencyTTL = "IDEMPOTENCY_TTL"
	EnvMaxRequestSize = "MAX_REQUEST_SIZE"

	EnvReadTimeout     = "READ_TIMEOUT"
	EnvWriteTimeout    = "WRITE_TIMEOUT"
	EnvIdleTimeout     = "IDLE_TIMEOUT"
	EnvShutdownTimeout = "SHUTDOWN_TIMEOUT"

	EnvTransitionSweepInterval = "TRANSITION_SWEEP_INTERVAL"
	EnvTransitionLockInterval  = "TRANSITION_LOCK_INTERVAL"
	EnvReminderSweepInterval   = "REMINDER_SWEEP_INTERVAL"
	EnvDraftReminderAge        = "DRAFT_REMINDER_AGE"
	EnvUpcomingTripWindow      = "UPCOMING_TRIP_WINDOW"
)
