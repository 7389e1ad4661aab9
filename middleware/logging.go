package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/BaudehloBiz/planllama-go/job"
)

// Logging returns middleware that logs handler start and completion.
func Logging(logger *slog.Logger) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, j *job.Job) (any, error) {
			logger.Info("job started",
				slog.String("job_name", j.Name),
				slog.String("job_id", j.ID),
			)

			start := time.Now()
			result, err := next(ctx, j)
			elapsed := time.Since(start)

			if err != nil {
				logger.Error("job failed",
					slog.String("job_name", j.Name),
					slog.String("job_id", j.ID),
					slog.Duration("elapsed", elapsed),
					slog.String("error", err.Error()),
				)
			} else {
				logger.Info("job completed",
					slog.String("job_name", j.Name),
					slog.String("job_id", j.ID),
					slog.Duration("elapsed", elapsed),
				)
			}

			return result, err
		}
	}
}
