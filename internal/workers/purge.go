package workers

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/launchkit-dev/launchkit/internal/tasks"
)

// Purger deletes expired sessions. Implemented by session.Store.
type Purger interface {
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

// HandlePurgeExpiredSessions removes sessions that expired before the task's cutoff
func HandlePurgeExpiredSessions(ctx context.Context, t *asynq.Task, purger Purger, logger zerolog.Logger) error {
	payload, err := tasks.ParsePurgePayload(t)
	if err != nil {
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	}

	removed, err := purger.PurgeExpired(ctx, payload.Before)
	if err != nil {
		logger.Error().Err(err).Time("before", payload.Before).Msg("Failed to purge expired sessions")
		return err
	}

	logger.Info().
		Int64("removed", removed).
		Time("before", payload.Before).
		Msg("Purged expired sessions")
	return nil
}
