package cron

import (
	"context"
	"time"

	"github.com/telstar/billing-backend-go/internal/domain/billing"
)

// BillingJobs contains billing-related cron jobs
type BillingJobs struct {
	billingService billing.Service
}

// NewBillingJobs creates billing cron jobs
func NewBillingJobs(billingService billing.Service) *BillingJobs {
	return &BillingJobs{
		billingService: billingService,
	}
}

// RegisterJobs registers all billing-related cron jobs
func (j *BillingJobs) RegisterJobs(scheduler *Scheduler, sweepInterval time.Duration) {
	// Expired subscriptions are detached, near-due postpaid ones are
	// metered and invoiced.
	scheduler.AddJob(
		"sweep_due_subscriptions",
		sweepInterval,
		j.SweepDueSubscriptions,
	)
}

// SweepDueSubscriptions evaluates every subscription inside the expiry
// warning window or past due
func (j *BillingJobs) SweepDueSubscriptions(ctx context.Context) error {
	return j.billingService.SweepDueSubscriptions(ctx)
}
