package billing

import "errors"

var (
	// Plan errors
	ErrPlanNotFound        = errors.New("plan not found")
	ErrInvalidPlanVariant  = errors.New("plan has no resolvable variant")
	ErrPlanTypeMismatch    = errors.New("declared plan type does not match the stored variant")
	ErrInvalidBillingCycle = errors.New("billing cycle must be a positive number of days")
	ErrPlanNameExists      = errors.New("a plan with this name already exists")

	// Subscription errors
	ErrSubscriptionNotFound = errors.New("subscription not found")
	ErrNoActivePlan         = errors.New("customer has no active plan")
	ErrAlreadySubscribed    = errors.New("customer already has this plan assigned")

	// Invoice errors
	ErrInvoiceNotFound    = errors.New("invoice not found")
	ErrInvoiceAlreadyPaid = errors.New("invoice has already been paid")
	ErrInvoiceNotPayable  = errors.New("invoice is record-only and cannot be paid")
)
