package billing

import "context"

// Service is the plan lifecycle and billing engine.
type Service interface {
	// ==================== Lifecycle Operations ====================

	// CheckPlanStatus evaluates the customer's subscription against the
	// current time and performs the side effects the state demands:
	// EXPIRED detaches the plan; postpaid EXPIRING meters usage and
	// surfaces the cycle's pending invoice; ACTIVE and prepaid EXPIRING
	// mutate nothing.
	CheckPlanStatus(ctx context.Context, customerEmail string) (StatusResponse, error)

	// PurchasePlan subscribes the customer to a plan and issues the
	// initial invoice ("paid" for prepaid, "N/A" for postpaid).
	PurchasePlan(ctx context.Context, customerEmail string, req PurchaseRequest) (PurchaseResponse, error)

	// SettleInvoice marks an invoice paid and applies its renewal
	// consequence per req.Renew.
	SettleInvoice(ctx context.Context, customerEmail, invoiceID string, req SettleRequest) (SettleResponse, error)

	// SweepDueSubscriptions evaluates every customer whose due date is
	// inside the warning window or already past. Called by cron.
	SweepDueSubscriptions(ctx context.Context) error

	// ==================== Plan Catalog ====================

	// ListPlans retrieves the catalog for one variant
	ListPlans(ctx context.Context, planType PlanType) ([]PlanResponse, error)

	// GetPlan retrieves a single catalog plan
	GetPlan(ctx context.Context, id string) (PlanResponse, error)

	// CreatePlan adds a catalog plan with its variant (admin)
	CreatePlan(ctx context.Context, req CreatePlanRequest) (PlanResponse, error)

	// ==================== Invoices & History ====================

	// ListInvoices retrieves the customer's invoices, newest first
	ListInvoices(ctx context.Context, customerEmail string) ([]InvoiceResponse, error)

	// GetInvoice retrieves one invoice, scoped to the customer
	GetInvoice(ctx context.Context, customerEmail, invoiceID string) (InvoiceResponse, error)

	// GetInvoiceForRender retrieves an invoice with its plan for document
	// rendering
	GetInvoiceForRender(ctx context.Context, customerEmail, invoiceID string) (Invoice, Plan, error)

	// GenerateInvoice bills the active plan's current cycle on demand:
	// remaining balance for prepaid, accrued usage for postpaid. Refreshes
	// the cycle's open invoice instead of duplicating it.
	GenerateInvoice(ctx context.Context, customerEmail string) (InvoiceResponse, error)

	// PlanHistory lists the distinct plans appearing in the customer's
	// settled and record-only invoices
	PlanHistory(ctx context.Context, customerEmail string) ([]HistoryEntry, error)

	// ==================== Admin Levers ====================

	// MeterUsage forces one metering pass on the customer's active plan
	MeterUsage(ctx context.Context, customerEmail string) (UsageResponse, error)

	// SetDueDate moves the active subscription's due date relative to now
	SetDueDate(ctx context.Context, req SetDueDateRequest) (SubscriptionResponse, error)
}
