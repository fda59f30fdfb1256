package billing

import (
	"github.com/shopspring/decimal"
	"github.com/telstar/billing-backend-go/internal/pkg/validator"
)

// ==================== Request DTOs ====================

// PurchaseRequest subscribes the customer to a catalog plan.
type PurchaseRequest struct {
	PlanName string   `json:"plan_name"`
	PlanType PlanType `json:"plan_type"`
}

func (r *PurchaseRequest) Validate() error {
	var errs validator.ValidationErrors

	if r.PlanName == "" {
		errs = append(errs, validator.ValidationError{Field: "plan_name", Message: "plan_name is required"})
	}
	if r.PlanType != PlanTypePrepaid && r.PlanType != PlanTypePostpaid {
		errs = append(errs, validator.ValidationError{Field: "plan_type", Message: "plan_type must be 'PREPAID' or 'POSTPAID'"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// SettleRequest pays an invoice. Renew=false keeps the current plan and
// extends its dates for another cycle; Renew=true detaches the subscription
// so the customer can purchase a different plan.
type SettleRequest struct {
	Renew bool `json:"renew"`
}

// CreatePlanRequest adds a catalog plan with one variant (admin).
type CreatePlanRequest struct {
	PlanName         string          `json:"plan_name"`
	Description      string          `json:"description"`
	RatePerUnit      decimal.Decimal `json:"rate_per_unit"`
	PlanType         PlanType        `json:"plan_type"`
	PrepaidBalance   decimal.Decimal `json:"prepaid_balance"`
	BillingCycleDays int             `json:"billing_cycle_days"`
}

func (r *CreatePlanRequest) Validate() error {
	var errs validator.ValidationErrors

	if r.PlanName == "" {
		errs = append(errs, validator.ValidationError{Field: "plan_name", Message: "plan_name is required"})
	}
	if !r.RatePerUnit.IsPositive() {
		errs = append(errs, validator.ValidationError{Field: "rate_per_unit", Message: "rate_per_unit must be greater than zero"})
	}
	switch r.PlanType {
	case PlanTypePrepaid:
		if !r.PrepaidBalance.IsPositive() {
			errs = append(errs, validator.ValidationError{Field: "prepaid_balance", Message: "prepaid_balance is required for prepaid plans"})
		}
	case PlanTypePostpaid:
		if r.BillingCycleDays <= 0 {
			errs = append(errs, validator.ValidationError{Field: "billing_cycle_days", Message: "billing_cycle_days is required for postpaid plans"})
		}
	default:
		errs = append(errs, validator.ValidationError{Field: "plan_type", Message: "plan_type must be 'PREPAID' or 'POSTPAID'"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// SetDueDateRequest moves a subscription's due date (admin test lever).
type SetDueDateRequest struct {
	CustomerEmail string `json:"customer_email"`
	DaysFromNow   int    `json:"days_from_now"`
}

func (r *SetDueDateRequest) Validate() error {
	var errs validator.ValidationErrors

	if r.CustomerEmail == "" {
		errs = append(errs, validator.ValidationError{Field: "customer_email", Message: "customer_email is required"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// ==================== Response DTOs ====================

// PlanResponse is a catalog plan with its variant flattened.
type PlanResponse struct {
	ID               string          `json:"id"`
	Name             string          `json:"name"`
	Description      string          `json:"description"`
	RatePerUnit      decimal.Decimal `json:"rate_per_unit"`
	PlanType         PlanType        `json:"plan_type"`
	BillingCycleDays int             `json:"billing_cycle_days,omitempty"`
	UnitsAvailable   *int64          `json:"units_available,omitempty"`
	PrepaidBalance   *decimal.Decimal `json:"prepaid_balance,omitempty"`
	UnitsUsed        *int64          `json:"units_used,omitempty"`
}

// SubscriptionResponse describes a live subscription record.
type SubscriptionResponse struct {
	ID             string `json:"id"`
	PlanID         string `json:"plan_id"`
	DatePurchased  string `json:"date_purchased"`
	ActivationDate string `json:"activation_date"`
	DueDate        string `json:"due_date"`
}

// InvoiceResponse is the wire form of an invoice.
type InvoiceResponse struct {
	ID           string          `json:"id"`
	CustomerID   string          `json:"customer_id"`
	CustomerName string          `json:"customer_name"`
	PlanID       string          `json:"plan_id"`
	PlanType     PlanType        `json:"plan_type"`
	Units        int64           `json:"units"`
	Amount       decimal.Decimal `json:"amount"`
	Date         string          `json:"date"`
	Status       InvoiceStatus   `json:"status"`
}

// StatusResponse is the outcome of a lifecycle evaluation. Invoice is set
// only when the evaluation generated (or re-surfaced) a postpaid invoice.
type StatusResponse struct {
	State    PlanState        `json:"state"`
	DaysLeft int              `json:"days_left"`
	Message  string           `json:"message"`
	Plan     *PlanResponse    `json:"plan,omitempty"`
	Invoice  *InvoiceResponse `json:"invoice,omitempty"`
}

// PurchaseResponse returns the new subscription and its initial invoice.
type PurchaseResponse struct {
	Subscription SubscriptionResponse `json:"subscription"`
	Plan         PlanResponse         `json:"plan"`
	Invoice      InvoiceResponse      `json:"invoice"`
}

// SettleResponse returns the paid invoice, the follow-up placeholder invoice
// when the plan was kept, and the subscription if it survived settlement.
type SettleResponse struct {
	Invoice      InvoiceResponse       `json:"invoice"`
	NewInvoice   *InvoiceResponse      `json:"new_invoice,omitempty"`
	Subscription *SubscriptionResponse `json:"subscription,omitempty"`
}

// UsageResponse reports a metering pass.
type UsageResponse struct {
	PlanType PlanType     `json:"plan_type"`
	Plan     PlanResponse `json:"plan"`
}

// HistoryEntry is a plan the customer has held, drawn from settled and
// record-only invoices.
type HistoryEntry struct {
	PlanID      string          `json:"plan_id"`
	PlanName    string          `json:"plan_name"`
	Description string          `json:"description"`
	RatePerUnit decimal.Decimal `json:"rate_per_unit"`
	PlanType    PlanType        `json:"plan_type"`
}
