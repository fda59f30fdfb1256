package billing

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// PlanType tags the billing variant of a catalog plan.
type PlanType string

const (
	PlanTypePrepaid  PlanType = "PREPAID"
	PlanTypePostpaid PlanType = "POSTPAID"
)

// PlanState is the lifecycle state of a subscription at evaluation time.
type PlanState string

const (
	StateActive   PlanState = "ACTIVE"
	StateExpiring PlanState = "EXPIRING"
	StateExpired  PlanState = "EXPIRED"
)

// InvoiceStatus values match the original billing records. "N/A" marks
// record-only invoices (nothing billable yet) that are never payable.
type InvoiceStatus string

const (
	InvoiceStatusNotPaid       InvoiceStatus = "not paid"
	InvoiceStatusPaid          InvoiceStatus = "paid"
	InvoiceStatusNotApplicable InvoiceStatus = "N/A"
)

// ExpiryWarningDays is the size of the EXPIRING window before the due date.
const ExpiryWarningDays = 5

// DefaultPrepaidCycleDays applies when a prepaid plan has no explicit cycle.
const DefaultPrepaidCycleDays = 30

// Plan is a catalog entry. Exactly one of Prepaid/Postpaid is non-nil,
// matching Type; the repository resolves the variant at load.
type Plan struct {
	ID               string
	Name             string
	Description      string
	RatePerUnit      decimal.Decimal
	BillingCycleDays int
	Type             PlanType
	Prepaid          *PrepaidPlan
	Postpaid         *PostpaidPlan
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// CycleDays returns the billing cycle length, defaulting prepaid plans
// to 30 days when the catalog entry carries none.
func (p *Plan) CycleDays() int {
	if p.BillingCycleDays > 0 {
		return p.BillingCycleDays
	}
	if p.Type == PlanTypePrepaid {
		return DefaultPrepaidCycleDays
	}
	return 0
}

// HasVariant reports whether the tagged variant instance is present.
func (p *Plan) HasVariant() bool {
	switch p.Type {
	case PlanTypePrepaid:
		return p.Prepaid != nil
	case PlanTypePostpaid:
		return p.Postpaid != nil
	}
	return false
}

// PrepaidPlan holds the consumable side of a prepaid plan: a monetary
// balance paid upfront and the units it buys.
type PrepaidPlan struct {
	ID             string
	PlanID         string
	UnitsAvailable int64
	PrepaidBalance decimal.Decimal
}

// PostpaidPlan accrues metered usage billed in arrears.
type PostpaidPlan struct {
	ID        string
	PlanID    string
	UnitsUsed int64
}

// CustomerPlan is the subscription record joining one customer to one plan.
type CustomerPlan struct {
	ID             string
	CustomerID     string
	PlanID         string
	DatePurchased  time.Time
	ActivationDate time.Time
	DueDate        time.Time
}

// DaysLeft returns the calendar days remaining until the due date, rounding
// fractional days up: a due date 30 minutes away still counts as 1 day.
func (cp *CustomerPlan) DaysLeft(now time.Time) int {
	return int(math.Ceil(cp.DueDate.Sub(now).Hours() / 24))
}

// IsExpired reports whether the due date has passed.
func (cp *CustomerPlan) IsExpired(now time.Time) bool {
	return now.After(cp.DueDate)
}

// StateAt evaluates the subscription state at the given instant. The expired
// check always wins over the expiring window: a past-due subscription is
// never reported as "about to expire".
func (cp *CustomerPlan) StateAt(now time.Time) PlanState {
	if cp.IsExpired(now) {
		return StateExpired
	}
	if cp.DaysLeft(now) <= ExpiryWarningDays {
		return StateExpiring
	}
	return StateActive
}

// Invoice is an immutable record of a billing event. Only settlement may
// flip Status, and only from "not paid" to "paid".
type Invoice struct {
	ID           string
	CustomerID   string
	CustomerName string
	PlanID       string
	PlanType     PlanType
	Units        int64
	Amount       decimal.Decimal
	Date         time.Time
	Status       InvoiceStatus
	CreatedAt    time.Time
}

// IsPayable reports whether the invoice can still be settled.
func (i *Invoice) IsPayable() bool {
	return i.Status == InvoiceStatusNotPaid
}
