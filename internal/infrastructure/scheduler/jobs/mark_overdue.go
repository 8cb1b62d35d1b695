// Package jobs contains the scheduled jobs of recordsd.
package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/campus-records/records-core/internal/application/command"
	"github.com/campus-records/records-core/pkg/logger"
	"github.com/campus-records/records-core/pkg/timeutil"
)

// MarkOverdueName is the scheduler name of MarkOverdueJob.
const MarkOverdueName = "mark_overdue"

// OverdueMarker is the command the job drives.
type OverdueMarker interface {
	Handle(ctx context.Context, asOf time.Time) (*command.MarkOverdueResult, error)
}

// MarkOverdueJob moves PENDING transactions past their due date to OVERDUE.
type MarkOverdueJob struct {
	marker OverdueMarker
	logger *slog.Logger
	today  func() time.Time
}

// NewMarkOverdueJob creates the job.
func NewMarkOverdueJob(marker OverdueMarker, log *slog.Logger) *MarkOverdueJob {
	if log == nil {
		log = logger.Discard()
	}
	return &MarkOverdueJob{
		marker: marker,
		logger: log.With(logger.Component("job"), slog.String("job", MarkOverdueName)),
		today:  timeutil.Today,
	}
}

// Name returns the job name.
func (j *MarkOverdueJob) Name() string { return MarkOverdueName }

// Run sweeps everything due before today.
func (j *MarkOverdueJob) Run(ctx context.Context) error {
	result, err := j.marker.Handle(ctx, j.today())
	if err != nil {
		return err
	}
	if len(result.Marked) > 0 {
		j.logger.InfoContext(ctx, "transactions marked overdue",
			logger.BatchID(result.BatchID),
			slog.Int("count", len(result.Marked)),
			slog.String("as_of", timeutil.FormatDay(result.AsOf)),
		)
	}
	return nil
}
