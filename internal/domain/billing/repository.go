package billing

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// PlanRepository handles plan catalog data operations. Reads expand the
// variant: the returned Plan carries its PrepaidPlan or PostpaidPlan.
type PlanRepository interface {
	// GetByID retrieves a plan with its variant resolved
	GetByID(ctx context.Context, id string) (Plan, error)

	// GetByName retrieves a plan with its variant resolved
	GetByName(ctx context.Context, name string) (Plan, error)

	// ListByType retrieves all plans of one variant
	ListByType(ctx context.Context, planType PlanType) ([]Plan, error)

	// Create inserts the plan row and its variant row
	Create(ctx context.Context, p Plan) (Plan, error)

	// UpdatePrepaidUsage persists a prepaid variant's balance and units
	UpdatePrepaidUsage(ctx context.Context, variantID string, unitsAvailable int64, prepaidBalance decimal.Decimal) error

	// UpdatePostpaidUsage persists a postpaid variant's accrued units
	UpdatePostpaidUsage(ctx context.Context, variantID string, unitsUsed int64) error
}

// CustomerPlanRepository handles subscription records
type CustomerPlanRepository interface {
	// Get retrieves the subscription for a (customer, plan) pair
	Get(ctx context.Context, customerID, planID string) (CustomerPlan, error)

	// Create creates a subscription record
	Create(ctx context.Context, cp CustomerPlan) (CustomerPlan, error)

	// UpdateDates rewrites purchase/activation/due dates on renewal
	UpdateDates(ctx context.Context, id string, purchased, activation, due time.Time) error

	// Delete removes the subscription record. Deleting a record that is
	// already gone is not an error.
	Delete(ctx context.Context, id string) error

	// ListDueBefore retrieves subscriptions whose due date falls before the
	// cutoff, for the periodic sweep
	ListDueBefore(ctx context.Context, cutoff time.Time) ([]CustomerPlan, error)
}

// InvoiceRepository handles invoice records. Invoices are append-only;
// UpdateStatus is the single mutation path.
type InvoiceRepository interface {
	// GetByID retrieves an invoice
	GetByID(ctx context.Context, id string) (Invoice, error)

	// Create appends a new invoice
	Create(ctx context.Context, inv Invoice) (Invoice, error)

	// UpdateStatus transitions an invoice's status
	UpdateStatus(ctx context.Context, id string, status InvoiceStatus) error

	// UpdateAmounts refreshes an open invoice's units and amount
	UpdateAmounts(ctx context.Context, id string, units int64, amount decimal.Decimal) error

	// ListByCustomer retrieves a customer's invoices, newest first
	ListByCustomer(ctx context.Context, customerID string) ([]Invoice, error)

	// GetPendingForPlan retrieves the open "not paid" invoice for a
	// (customer, plan) pair issued at or after the given instant
	GetPendingForPlan(ctx context.Context, customerID, planID string, since time.Time) (Invoice, error)
}
