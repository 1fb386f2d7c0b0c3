package workers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/launchkit-dev/launchkit/internal/tasks"
)

// Enqueuer is the subset of *asynq.Client the scheduler needs
type Enqueuer interface {
	Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

var scheduleParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// ParseSchedule validates a five-field cron expression
func ParseSchedule(expr string) (cron.Schedule, error) {
	schedule, err := scheduleParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid purge schedule %q: %w", expr, err)
	}
	return schedule, nil
}

// StartPurgeScheduler enqueues a purge task at every tick of schedule until
// ctx is cancelled. Task IDs are derived from the tick so several workers
// running the scheduler enqueue each purge once.
func StartPurgeScheduler(ctx context.Context, client Enqueuer, schedule cron.Schedule, logger zerolog.Logger) {
	for {
		next := schedule.Next(time.Now())
		logger.Debug().Time("next_purge_at", next).Msg("Scheduled session purge")

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		if err := enqueuePurge(client, next); err != nil {
			logger.Error().Err(err).Time("tick", next).Msg("Failed to enqueue session purge")
		}
	}
}

func enqueuePurge(client Enqueuer, tick time.Time) error {
	task, err := tasks.NewPurgeExpiredSessionsTask(tick)
	if err != nil {
		return err
	}

	_, err = client.Enqueue(task,
		asynq.Queue("low"),
		asynq.TaskID(fmt.Sprintf("%s:%d", tasks.TypePurgeExpiredSessions, tick.Unix())),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	return err
}
