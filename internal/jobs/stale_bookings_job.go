package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/straye-as/travel-crm-api/internal/auth"
	"github.com/straye-as/travel-crm-api/internal/domain"
	"go.uber.org/zap"
)

// StaleBookingsJobName is the name of the stale pending_documents reminder job
const StaleBookingsJobName = "stale_bookings"

// AgencyLister lists the agencies a job iterates over
type AgencyLister interface {
	ListActive(ctx context.Context) ([]domain.Agency, error)
}

// StaleBookingReminder appends reminders to bookings of the agency in ctx
type StaleBookingReminder interface {
	RemindStale(ctx context.Context, staleAfter time.Duration) (int, error)
}

// StaleBookingsJob reminds agencies of bookings still waiting for documents
type StaleBookingsJob struct {
	agencies   AgencyLister
	reminder   StaleBookingReminder
	staleAfter time.Duration
	logger     *zap.Logger
}

func NewStaleBookingsJob(agencies AgencyLister, reminder StaleBookingReminder, staleAfter time.Duration, logger *zap.Logger) *StaleBookingsJob {
	return &StaleBookingsJob{
		agencies:   agencies,
		reminder:   reminder,
		staleAfter: staleAfter,
		logger:     logger,
	}
}

func (j *StaleBookingsJob) Name() string { return StaleBookingsJobName }

func (j *StaleBookingsJob) Run(ctx context.Context) error {
	_, err := j.RunOnce(ctx)
	return err
}

// RunOnce processes every active agency and returns the number of reminders
// written. A failing agency is logged and skipped.
func (j *StaleBookingsJob) RunOnce(ctx context.Context) (int, error) {
	start := time.Now()

	agencies, err := j.agencies.ListActive(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list agencies: %w", err)
	}

	total := 0
	for _, agency := range agencies {
		agencyCtx := auth.WithAgencyFilter(ctx, &auth.AgencyFilter{AgencyID: agency.ID})
		reminded, err := j.reminder.RemindStale(agencyCtx, j.staleAfter)
		if err != nil {
			j.logger.Error("stale bookings job failed for agency",
				zap.String("agency_id", agency.ID.String()),
				zap.Error(err))
			continue
		}
		total += reminded
	}

	j.logger.Info("stale bookings job completed",
		zap.Int("agencies", len(agencies)),
		zap.Int("reminded", total),
		zap.Duration("duration", time.Since(start)))
	return total, nil
}
