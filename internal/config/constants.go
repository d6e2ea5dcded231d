package config

import "time"

// Database connection pool settings
const (
	DBMaxOpenConns    = 25
	DBMaxIdleConns    = 5
	DBConnMaxLifetime = 5 * time.Minute
)

// HTTP server timeouts
const (
	ServerRequestTimeout  = 60 * time.Second
	ServerReadTimeout     = 15 * time.Second
	ServerWriteTimeout    = 30 * time.Second
	ServerIdleTimeout     = 120 * time.Second
	ServerShutdownTimeout = 30 * time.Second
)

// Database ping timeout for health checks
const DBPingTimeout = 5 * time.Second

// Cleanup sweep timeout per run
const CleanupRunTimeout = 30 * time.Second

// Staff sessions
const StaffSessionTTL = 12 * time.Hour

// Rate limiting windows
const (
	IssueLimitWindow = 10 * time.Minute
	StaffLoginLimit  = 5
	StaffLoginWindow = time.Minute
	StaffAPILimit    = 120
	StaffAPIWindow   = time.Minute
)
