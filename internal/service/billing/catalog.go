package billing

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/telstar/billing-backend-go/internal/domain/billing"
)

// ListPlans implements billing.Service.
func (s *BillingServiceImpl) ListPlans(ctx context.Context, planType billing.PlanType) ([]billing.PlanResponse, error) {
	plans, err := s.planRepo.ListByType(ctx, planType)
	if err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}

	responses := make([]billing.PlanResponse, 0, len(plans))
	for _, plan := range plans {
		responses = append(responses, toPlanResponse(plan))
	}
	return responses, nil
}

// GetPlan implements billing.Service.
func (s *BillingServiceImpl) GetPlan(ctx context.Context, id string) (billing.PlanResponse, error) {
	plan, err := s.planRepo.GetByID(ctx, id)
	if err != nil {
		if err == pgx.ErrNoRows {
			return billing.PlanResponse{}, billing.ErrPlanNotFound
		}
		return billing.PlanResponse{}, fmt.Errorf("failed to get plan: %w", err)
	}
	return toPlanResponse(plan), nil
}

// CreatePlan implements billing.Service.
func (s *BillingServiceImpl) CreatePlan(ctx context.Context, req billing.CreatePlanRequest) (billing.PlanResponse, error) {
	existing, err := s.planRepo.GetByName(ctx, req.PlanName)
	if err != nil && err != pgx.ErrNoRows {
		return billing.PlanResponse{}, fmt.Errorf("failed to check plan name: %w", err)
	}
	if existing.ID != "" {
		return billing.PlanResponse{}, billing.ErrPlanNameExists
	}

	plan := billing.Plan{
		ID:               uuid.New().String(),
		Name:             req.PlanName,
		Description:      req.Description,
		RatePerUnit:      req.RatePerUnit,
		BillingCycleDays: req.BillingCycleDays,
		Type:             req.PlanType,
	}

	switch req.PlanType {
	case billing.PlanTypePrepaid:
		// The upfront balance buys a fixed allotment of units
		units := req.PrepaidBalance.Div(req.RatePerUnit).IntPart()
		plan.Prepaid = &billing.PrepaidPlan{
			ID:             uuid.New().String(),
			PlanID:         plan.ID,
			UnitsAvailable: units,
			PrepaidBalance: req.PrepaidBalance,
		}
	case billing.PlanTypePostpaid:
		if req.BillingCycleDays <= 0 {
			return billing.PlanResponse{}, billing.ErrInvalidBillingCycle
		}
		plan.Postpaid = &billing.PostpaidPlan{
			ID:        uuid.New().String(),
			PlanID:    plan.ID,
			UnitsUsed: 0,
		}
	default:
		return billing.PlanResponse{}, billing.ErrInvalidPlanVariant
	}

	err = s.inTransaction(ctx, func(txCtx context.Context) error {
		plan, err = s.planRepo.Create(txCtx, plan)
		if err != nil {
			return fmt.Errorf("failed to create plan: %w", err)
		}
		return nil
	})
	if err != nil {
		return billing.PlanResponse{}, err
	}

	return toPlanResponse(plan), nil
}

// ==================== Invoices & History ====================

// ListInvoices implements billing.Service.
func (s *BillingServiceImpl) ListInvoices(ctx context.Context, customerEmail string) ([]billing.InvoiceResponse, error) {
	customerData, err := s.getCustomer(ctx, customerEmail)
	if err != nil {
		return nil, err
	}

	invoices, err := s.invoiceRepo.ListByCustomer(ctx, customerData.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list invoices: %w", err)
	}

	responses := make([]billing.InvoiceResponse, 0, len(invoices))
	for _, invoice := range invoices {
		responses = append(responses, toInvoiceResponse(invoice))
	}
	return responses, nil
}

// GetInvoice implements billing.Service.
func (s *BillingServiceImpl) GetInvoice(ctx context.Context, customerEmail, invoiceID string) (billing.InvoiceResponse, error) {
	invoice, _, err := s.getCustomerInvoice(ctx, customerEmail, invoiceID)
	if err != nil {
		return billing.InvoiceResponse{}, err
	}
	return toInvoiceResponse(invoice), nil
}

// GetInvoiceForRender implements billing.Service.
func (s *BillingServiceImpl) GetInvoiceForRender(ctx context.Context, customerEmail, invoiceID string) (billing.Invoice, billing.Plan, error) {
	invoice, _, err := s.getCustomerInvoice(ctx, customerEmail, invoiceID)
	if err != nil {
		return billing.Invoice{}, billing.Plan{}, err
	}

	plan, err := s.planRepo.GetByID(ctx, invoice.PlanID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return billing.Invoice{}, billing.Plan{}, billing.ErrPlanNotFound
		}
		return billing.Invoice{}, billing.Plan{}, fmt.Errorf("failed to get plan: %w", err)
	}

	return invoice, plan, nil
}

// PlanHistory implements billing.Service.
func (s *BillingServiceImpl) PlanHistory(ctx context.Context, customerEmail string) ([]billing.HistoryEntry, error) {
	customerData, err := s.getCustomer(ctx, customerEmail)
	if err != nil {
		return nil, err
	}

	invoices, err := s.invoiceRepo.ListByCustomer(ctx, customerData.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list invoices: %w", err)
	}

	seen := make(map[string]bool)
	entries := make([]billing.HistoryEntry, 0)
	for _, invoice := range invoices {
		if invoice.Status == billing.InvoiceStatusNotPaid {
			continue
		}
		if seen[invoice.PlanID] {
			continue
		}
		seen[invoice.PlanID] = true

		plan, err := s.planRepo.GetByID(ctx, invoice.PlanID)
		if err != nil {
			if err == pgx.ErrNoRows {
				// Plan removed from the catalog; the invoice alone is not a
				// reconstructable history entry
				continue
			}
			return nil, fmt.Errorf("failed to get plan: %w", err)
		}

		entries = append(entries, billing.HistoryEntry{
			PlanID:      plan.ID,
			PlanName:    plan.Name,
			Description: plan.Description,
			RatePerUnit: plan.RatePerUnit,
			PlanType:    plan.Type,
		})
	}

	return entries, nil
}

// GenerateInvoice implements billing.Service. It bills the active plan's
// current cycle on demand: prepaid invoices carry the remaining balance,
// postpaid ones the accrued usage. The cycle's open invoice is refreshed
// rather than duplicated.
func (s *BillingServiceImpl) GenerateInvoice(ctx context.Context, customerEmail string) (billing.InvoiceResponse, error) {
	customerData, unlock, err := s.lockCustomer(ctx, customerEmail)
	if err != nil {
		return billing.InvoiceResponse{}, err
	}
	defer unlock()

	if !customerData.HasActivePlan() {
		return billing.InvoiceResponse{}, billing.ErrNoActivePlan
	}

	plan, err := s.planRepo.GetByID(ctx, *customerData.CurrentPlanID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return billing.InvoiceResponse{}, billing.ErrPlanNotFound
		}
		return billing.InvoiceResponse{}, fmt.Errorf("failed to get plan: %w", err)
	}
	if !plan.HasVariant() {
		return billing.InvoiceResponse{}, billing.ErrInvalidPlanVariant
	}

	subscription, err := s.customerPlanRepo.Get(ctx, customerData.ID, plan.ID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return billing.InvoiceResponse{}, billing.ErrSubscriptionNotFound
		}
		return billing.InvoiceResponse{}, fmt.Errorf("failed to get subscription: %w", err)
	}

	var units int64
	var amount decimal.Decimal
	if plan.Type == billing.PlanTypePrepaid {
		units = plan.Prepaid.UnitsAvailable
		amount = plan.Prepaid.PrepaidBalance
	} else {
		units = plan.Postpaid.UnitsUsed
		amount = plan.RatePerUnit.Mul(decimal.NewFromInt(units))
	}

	var invoice billing.Invoice
	err = s.inTransaction(ctx, func(txCtx context.Context) error {
		pending, err := s.invoiceRepo.GetPendingForPlan(txCtx, customerData.ID, plan.ID, subscription.ActivationDate)
		if err != nil && err != pgx.ErrNoRows {
			return fmt.Errorf("failed to look up pending invoice: %w", err)
		}
		if err == nil {
			pending.Units = units
			pending.Amount = amount
			if err := s.invoiceRepo.UpdateAmounts(txCtx, pending.ID, units, amount); err != nil {
				return fmt.Errorf("failed to refresh pending invoice: %w", err)
			}
			invoice = pending
			return nil
		}

		invoice, err = s.invoiceRepo.Create(txCtx, billing.Invoice{
			ID:           uuid.New().String(),
			CustomerID:   customerData.ID,
			CustomerName: customerData.Name,
			PlanID:       plan.ID,
			PlanType:     plan.Type,
			Units:        units,
			Amount:       amount,
			Date:         s.now(),
			Status:       billing.InvoiceStatusNotPaid,
		})
		if err != nil {
			return fmt.Errorf("failed to create invoice: %w", err)
		}
		return nil
	})
	if err != nil {
		return billing.InvoiceResponse{}, err
	}

	return toInvoiceResponse(invoice), nil
}

// ==================== Admin Levers ====================

// MeterUsage implements billing.Service.
func (s *BillingServiceImpl) MeterUsage(ctx context.Context, customerEmail string) (billing.UsageResponse, error) {
	customerData, unlock, err := s.lockCustomer(ctx, customerEmail)
	if err != nil {
		return billing.UsageResponse{}, err
	}
	defer unlock()

	if !customerData.HasActivePlan() {
		return billing.UsageResponse{}, billing.ErrNoActivePlan
	}

	plan, err := s.planRepo.GetByID(ctx, *customerData.CurrentPlanID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return billing.UsageResponse{}, billing.ErrPlanNotFound
		}
		return billing.UsageResponse{}, fmt.Errorf("failed to get plan: %w", err)
	}
	if !plan.HasVariant() {
		return billing.UsageResponse{}, billing.ErrInvalidPlanVariant
	}

	err = s.inTransaction(ctx, func(txCtx context.Context) error {
		switch plan.Type {
		case billing.PlanTypePrepaid:
			// Consumption draws down the monetary balance, with no floor
			consumed := decimal.NewFromInt(s.usage.PrepaidConsumption())
			plan.Prepaid.PrepaidBalance = plan.Prepaid.PrepaidBalance.Sub(consumed)
			return s.planRepo.UpdatePrepaidUsage(txCtx, plan.Prepaid.ID, plan.Prepaid.UnitsAvailable, plan.Prepaid.PrepaidBalance)
		default:
			plan.Postpaid.UnitsUsed += s.usage.PostpaidUsage()
			return s.planRepo.UpdatePostpaidUsage(txCtx, plan.Postpaid.ID, plan.Postpaid.UnitsUsed)
		}
	})
	if err != nil {
		return billing.UsageResponse{}, fmt.Errorf("failed to record usage: %w", err)
	}

	return billing.UsageResponse{
		PlanType: plan.Type,
		Plan:     toPlanResponse(plan),
	}, nil
}

// SetDueDate implements billing.Service.
func (s *BillingServiceImpl) SetDueDate(ctx context.Context, req billing.SetDueDateRequest) (billing.SubscriptionResponse, error) {
	customerData, unlock, err := s.lockCustomer(ctx, req.CustomerEmail)
	if err != nil {
		return billing.SubscriptionResponse{}, err
	}
	defer unlock()

	if !customerData.HasActivePlan() {
		return billing.SubscriptionResponse{}, billing.ErrNoActivePlan
	}

	subscription, err := s.customerPlanRepo.Get(ctx, customerData.ID, *customerData.CurrentPlanID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return billing.SubscriptionResponse{}, billing.ErrSubscriptionNotFound
		}
		return billing.SubscriptionResponse{}, fmt.Errorf("failed to get subscription: %w", err)
	}

	subscription.DueDate = s.now().AddDate(0, 0, req.DaysFromNow)
	err = s.inTransaction(ctx, func(txCtx context.Context) error {
		return s.customerPlanRepo.UpdateDates(txCtx, subscription.ID, subscription.DatePurchased, subscription.ActivationDate, subscription.DueDate)
	})
	if err != nil {
		return billing.SubscriptionResponse{}, fmt.Errorf("failed to move due date: %w", err)
	}

	return toSubscriptionResponse(subscription), nil
}

func (s *BillingServiceImpl) getCustomerInvoice(ctx context.Context, customerEmail, invoiceID string) (billing.Invoice, string, error) {
	customerData, err := s.getCustomer(ctx, customerEmail)
	if err != nil {
		return billing.Invoice{}, "", err
	}

	invoice, err := s.invoiceRepo.GetByID(ctx, invoiceID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return billing.Invoice{}, "", billing.ErrInvoiceNotFound
		}
		return billing.Invoice{}, "", fmt.Errorf("failed to get invoice: %w", err)
	}
	if invoice.CustomerID != customerData.ID {
		return billing.Invoice{}, "", billing.ErrInvoiceNotFound
	}

	return invoice, customerData.ID, nil
}

