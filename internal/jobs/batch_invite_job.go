package jobs

import (
	"context"
	"fmt"
	"log"
	"time"

	"growth-ledger/internal/services"

	"github.com/robfig/cron/v3"
)

// batchTimeout bounds one scheduled run
const batchTimeout = 10 * time.Minute

// BatchInviter runs the waitlist invitation batch on a cron schedule
type BatchInviter struct {
	invitationService *services.InvitationService
	scheduler         *cron.Cron
	schedule          string
}

// NewBatchInviter creates a new batch invitation job. schedule is a
// standard five-field cron expression evaluated in loc.
func NewBatchInviter(invitationService *services.InvitationService, schedule string, loc *time.Location) *BatchInviter {
	if loc == nil {
		loc = time.UTC
	}
	return &BatchInviter{
		invitationService: invitationService,
		scheduler:         cron.New(cron.WithLocation(loc)),
		schedule:          schedule,
	}
}

// Start registers the batch and starts the scheduler
func (b *BatchInviter) Start() error {
	if _, err := b.scheduler.AddFunc(b.schedule, b.run); err != nil {
		return fmt.Errorf("invalid invite schedule %q: %w", b.schedule, err)
	}
	b.scheduler.Start()
	log.Printf("[BatchInviter] Scheduled invitation batch (%s)", b.schedule)
	return nil
}

// Stop stops the scheduler and waits for a running batch to finish
func (b *BatchInviter) Stop() {
	<-b.scheduler.Stop().Done()
	log.Println("[BatchInviter] Stopped")
}

func (b *BatchInviter) run() {
	ctx, cancel := context.WithTimeout(context.Background(), batchTimeout)
	defer cancel()

	results, err := b.invitationService.RunBatch(ctx)
	if err != nil {
		log.Printf("[BatchInviter] Batch aborted: %v", err)
	}

	invited, failed := 0, 0
	for _, result := range results {
		invited += result.Invited
		failed += result.Failed
	}
	if len(results) > 0 {
		log.Printf("[BatchInviter] %d apps processed: %d invited, %d failed", len(results), invited, failed)
	}
}
