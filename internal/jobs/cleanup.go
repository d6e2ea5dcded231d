package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/clinicrecords/securelink-server/internal/audit"
	"github.com/clinicrecords/securelink-server/internal/config"
)

type TokenSweeper interface {
	CleanupExpired(ctx context.Context) (int64, error)
}

type AccessLogSweeper interface {
	CleanupOldAccessLogs(ctx context.Context, retention time.Duration) (int64, error)
}

type StaffSessionSweeper interface {
	CleanupExpiredSessions(ctx context.Context) (int64, error)
}

// CleanupResult counts rows removed by one sweep. Failed targets are listed
// in Errors and counted as zero.
type CleanupResult struct {
	Tokens        int64
	AccessLogs    int64
	StaffSessions int64
	Errors        []string
}

// CleanupJob periodically removes expired tokens, staff sessions and access
// log entries past retention. Validation never depends on it having run.
type CleanupJob struct {
	tokens       TokenSweeper
	accessLogs   AccessLogSweeper
	sessions     StaffSessionSweeper
	logRetention time.Duration
	interval     time.Duration
	done         chan struct{}
	stopOnce     sync.Once
}

func NewCleanupJob(
	tokens TokenSweeper,
	accessLogs AccessLogSweeper,
	sessions StaffSessionSweeper,
	logRetention time.Duration,
	interval time.Duration,
) *CleanupJob {
	return &CleanupJob{
		tokens:       tokens,
		accessLogs:   accessLogs,
		sessions:     sessions,
		logRetention: logRetention,
		interval:     interval,
		done:         make(chan struct{}),
	}
}

func (j *CleanupJob) Start() {
	go j.run()
	log.Info().Dur("interval", j.interval).Msg("cleanup job started")
}

func (j *CleanupJob) Stop() {
	j.stopOnce.Do(func() {
		close(j.done)
		log.Info().Msg("cleanup job stopped")
	})
}

func (j *CleanupJob) run() {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.cleanup()

	for {
		select {
		case <-j.done:
			return
		case <-ticker.C:
			j.cleanup()
		}
	}
}

func (j *CleanupJob) cleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), config.CleanupRunTimeout)
	defer cancel()

	j.RunOnce(ctx)
}

// RunOnce performs a single sweep. It is also the entry point for the
// cleanup command run by an external scheduler.
func (j *CleanupJob) RunOnce(ctx context.Context) CleanupResult {
	var result CleanupResult

	result.Tokens = j.runCleanup(ctx, "secure link tokens", &result, j.tokens.CleanupExpired)
	if j.accessLogs != nil && j.logRetention > 0 {
		result.AccessLogs = j.runCleanup(ctx, "access logs", &result, func(ctx context.Context) (int64, error) {
			return j.accessLogs.CleanupOldAccessLogs(ctx, j.logRetention)
		})
	}
	if j.sessions != nil {
		result.StaffSessions = j.runCleanup(ctx, "staff sessions", &result, j.sessions.CleanupExpiredSessions)
	}

	audit.Log(ctx, audit.Event{
		Type: audit.EventCleanupRun,
		Details: map[string]interface{}{
			"tokens":         result.Tokens,
			"access_logs":    result.AccessLogs,
			"staff_sessions": result.StaffSessions,
			"errors":         len(result.Errors),
		},
	})

	return result
}

func (j *CleanupJob) runCleanup(ctx context.Context, name string, result *CleanupResult, fn func(context.Context) (int64, error)) int64 {
	count, err := fn(ctx)
	if err != nil {
		log.Error().Err(err).Msgf("failed to cleanup %s", name)
		result.Errors = append(result.Errors, name)
		return 0
	}
	if count > 0 {
		log.Info().Int64("count", count).Msgf("cleaned up %s", name)
	}
	return count
}
