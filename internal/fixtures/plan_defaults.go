package fixtures

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/telstar/billing-backend-go/internal/domain/billing"
)

// DefaultPlans is the catalog a fresh installation starts with.
func DefaultPlans() []billing.Plan {
	prepaidStarter := billing.Plan{
		ID:          uuid.New().String(),
		Name:        "Starter Prepaid",
		Description: "Entry level prepaid plan",
		RatePerUnit: decimal.NewFromInt(2),
		Type:        billing.PlanTypePrepaid,
	}
	prepaidStarter.Prepaid = &billing.PrepaidPlan{
		ID:             uuid.New().String(),
		PlanID:         prepaidStarter.ID,
		UnitsAvailable: 100,
		PrepaidBalance: decimal.NewFromInt(200),
	}

	prepaidPlus := billing.Plan{
		ID:          uuid.New().String(),
		Name:        "Plus Prepaid",
		Description: "Bigger upfront allotment",
		RatePerUnit: decimal.NewFromInt(2),
		Type:        billing.PlanTypePrepaid,
	}
	prepaidPlus.Prepaid = &billing.PrepaidPlan{
		ID:             uuid.New().String(),
		PlanID:         prepaidPlus.ID,
		UnitsAvailable: 250,
		PrepaidBalance: decimal.NewFromInt(500),
	}

	postpaidStandard := billing.Plan{
		ID:               uuid.New().String(),
		Name:             "Standard Postpaid",
		Description:      "Monthly postpaid plan billed in arrears",
		RatePerUnit:      decimal.NewFromInt(3),
		BillingCycleDays: 30,
		Type:             billing.PlanTypePostpaid,
	}
	postpaidStandard.Postpaid = &billing.PostpaidPlan{
		ID:     uuid.New().String(),
		PlanID: postpaidStandard.ID,
	}

	return []billing.Plan{prepaidStarter, prepaidPlus, postpaidStandard}
}

// SeedDefaultPlans fills an empty catalog with the default plans. An
// installation that already carries plans is left untouched.
func SeedDefaultPlans(ctx context.Context, planRepo billing.PlanRepository) error {
	prepaid, err := planRepo.ListByType(ctx, billing.PlanTypePrepaid)
	if err != nil {
		return fmt.Errorf("failed to inspect catalog: %w", err)
	}
	postpaid, err := planRepo.ListByType(ctx, billing.PlanTypePostpaid)
	if err != nil {
		return fmt.Errorf("failed to inspect catalog: %w", err)
	}
	if len(prepaid) > 0 || len(postpaid) > 0 {
		return nil
	}

	for _, plan := range DefaultPlans() {
		if _, err := planRepo.Create(ctx, plan); err != nil {
			return fmt.Errorf("failed to seed plan %q: %w", plan.Name, err)
		}
	}
	return nil
}
