package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/ruJakara/bot-project/internal/observability/logger"
	"github.com/ruJakara/bot-project/internal/reminder"
)

// Start runs a periodic job that processes due reminders. The job is a
// plain re-invocation of ProcessDue: the service's list-then-recheck
// protocol makes overlapping or repeated ticks harmless.
func Start(tick time.Duration, svc *reminder.Service) (gocron.Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	_, err = s.NewJob(
		gocron.DurationJob(tick),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), tick)
			defer cancel()

			count, err := svc.ProcessDue(ctx, time.Now().UTC())
			if err != nil {
				slog.ErrorContext(ctx, "reminder tick failed",
					logger.Component("scheduler"), logger.Error(err))
				return
			}
			if count > 0 {
				slog.InfoContext(ctx, "reminder tick",
					logger.Component("scheduler"), slog.Int("processed", count))
			}
		}),
	)
	if err != nil {
		return nil, err
	}

	s.Start()
	return s, nil
}
