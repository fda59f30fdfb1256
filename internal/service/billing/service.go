package billing

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/telstar/billing-backend-go/internal/domain/billing"
	"github.com/telstar/billing-backend-go/internal/domain/customer"
	"github.com/telstar/billing-backend-go/internal/pkg/database"
	"github.com/telstar/billing-backend-go/internal/repository/postgresql"
)

type BillingServiceImpl struct {
	db               *database.DB
	customerRepo     customer.Repository
	planRepo         billing.PlanRepository
	customerPlanRepo billing.CustomerPlanRepository
	invoiceRepo      billing.InvoiceRepository
	usage            billing.UsageSimulator
	locks            *customerLocks
	now              func() time.Time
}

func NewBillingService(
	db *database.DB,
	customerRepo customer.Repository,
	planRepo billing.PlanRepository,
	customerPlanRepo billing.CustomerPlanRepository,
	invoiceRepo billing.InvoiceRepository,
	usage billing.UsageSimulator,
) billing.Service {
	return &BillingServiceImpl{
		db:               db,
		customerRepo:     customerRepo,
		planRepo:         planRepo,
		customerPlanRepo: customerPlanRepo,
		invoiceRepo:      invoiceRepo,
		usage:            usage,
		locks:            newCustomerLocks(),
		now:              time.Now,
	}
}

// inTransaction wraps fn in a database transaction. Without a pool the
// repositories manage their own atomicity.
func (s *BillingServiceImpl) inTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.db == nil {
		return fn(ctx)
	}
	return postgresql.WithTransaction(ctx, s.db, func(tx pgx.Tx) error {
		return fn(context.WithValue(ctx, "tx", tx))
	})
}

// lockCustomer acquires the customer's lifecycle lock and returns the row as
// read under it. The first read only learns the ID that keys the lock; the
// second read runs after acquisition, so CurrentPlanID reflects whatever
// operation just released the lock.
func (s *BillingServiceImpl) lockCustomer(ctx context.Context, customerEmail string) (customer.Customer, func(), error) {
	customerData, err := s.getCustomer(ctx, customerEmail)
	if err != nil {
		return customer.Customer{}, nil, err
	}

	lock := s.locks.get(customerData.ID)
	lock.Lock()

	customerData, err = s.getCustomer(ctx, customerEmail)
	if err != nil {
		lock.Unlock()
		return customer.Customer{}, nil, err
	}
	return customerData, lock.Unlock, nil
}

// ==================== Lifecycle Operations ====================

// CheckPlanStatus implements billing.Service.
func (s *BillingServiceImpl) CheckPlanStatus(ctx context.Context, customerEmail string) (billing.StatusResponse, error) {
	customerData, unlock, err := s.lockCustomer(ctx, customerEmail)
	if err != nil {
		return billing.StatusResponse{}, err
	}
	defer unlock()

	if !customerData.HasActivePlan() {
		return billing.StatusResponse{}, billing.ErrNoActivePlan
	}

	plan, err := s.planRepo.GetByID(ctx, *customerData.CurrentPlanID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return billing.StatusResponse{}, billing.ErrPlanNotFound
		}
		return billing.StatusResponse{}, fmt.Errorf("failed to get plan: %w", err)
	}

	subscription, err := s.customerPlanRepo.Get(ctx, customerData.ID, plan.ID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return billing.StatusResponse{}, billing.ErrSubscriptionNotFound
		}
		return billing.StatusResponse{}, fmt.Errorf("failed to get subscription: %w", err)
	}

	now := s.now()
	state := subscription.StateAt(now)
	daysLeft := subscription.DaysLeft(now)
	planResp := toPlanResponse(plan)

	response := billing.StatusResponse{
		State:    state,
		DaysLeft: daysLeft,
		Plan:     &planResp,
	}

	switch state {
	case billing.StateExpired:
		err := s.inTransaction(ctx, func(txCtx context.Context) error {
			return s.detachSubscription(txCtx, customerData, subscription)
		})
		if err != nil {
			return billing.StatusResponse{}, err
		}
		response.DaysLeft = 0
		response.Message = "Your plan has expired and has been deactivated"

	case billing.StateExpiring:
		response.Message = fmt.Sprintf("Your plan expires in %d day(s)", daysLeft)

		if plan.Type == billing.PlanTypePostpaid {
			var invoice billing.Invoice
			err := s.inTransaction(ctx, func(txCtx context.Context) error {
				invoice, err = s.meterAndInvoicePostpaid(txCtx, customerData, &plan, subscription)
				return err
			})
			if err != nil {
				return billing.StatusResponse{}, err
			}
			invoiceResp := toInvoiceResponse(invoice)
			response.Invoice = &invoiceResp
			planResp = toPlanResponse(plan)
			response.Plan = &planResp
		}

	default:
		response.Message = fmt.Sprintf("Your plan is active, %d day(s) left", daysLeft)
	}

	return response, nil
}

// PurchasePlan implements billing.Service.
func (s *BillingServiceImpl) PurchasePlan(ctx context.Context, customerEmail string, req billing.PurchaseRequest) (billing.PurchaseResponse, error) {
	customerData, unlock, err := s.lockCustomer(ctx, customerEmail)
	if err != nil {
		return billing.PurchaseResponse{}, err
	}
	defer unlock()

	if customerData.HasActivePlan() {
		return billing.PurchaseResponse{}, billing.ErrAlreadySubscribed
	}

	plan, err := s.planRepo.GetByName(ctx, req.PlanName)
	if err != nil {
		if err == pgx.ErrNoRows {
			return billing.PurchaseResponse{}, billing.ErrPlanNotFound
		}
		return billing.PurchaseResponse{}, fmt.Errorf("failed to get plan by name: %w", err)
	}
	if plan.Type != req.PlanType {
		return billing.PurchaseResponse{}, billing.ErrPlanTypeMismatch
	}
	if !plan.HasVariant() {
		return billing.PurchaseResponse{}, billing.ErrInvalidPlanVariant
	}

	// A postpaid plan without a positive cycle would come due immediately
	cycleDays := plan.CycleDays()
	if cycleDays <= 0 {
		return billing.PurchaseResponse{}, billing.ErrInvalidBillingCycle
	}

	now := s.now()
	subscription := billing.CustomerPlan{
		ID:             uuid.New().String(),
		CustomerID:     customerData.ID,
		PlanID:         plan.ID,
		DatePurchased:  now,
		ActivationDate: now,
		DueDate:        now.AddDate(0, 0, cycleDays),
	}

	invoice := billing.Invoice{
		ID:           uuid.New().String(),
		CustomerID:   customerData.ID,
		CustomerName: customerData.Name,
		PlanID:       plan.ID,
		PlanType:     plan.Type,
		Date:         now,
	}
	if plan.Type == billing.PlanTypePrepaid {
		// Prepaid pays upfront: the purchase itself settles the cycle
		invoice.Units = plan.Prepaid.UnitsAvailable
		invoice.Amount = plan.Prepaid.PrepaidBalance
		invoice.Status = billing.InvoiceStatusPaid
	} else {
		// Postpaid bills in arrears: open the cycle with a record-only invoice
		invoice.Units = 0
		invoice.Amount = decimal.Zero
		invoice.Status = billing.InvoiceStatusNotApplicable
	}

	err = s.inTransaction(ctx, func(txCtx context.Context) error {
		subscription, err = s.customerPlanRepo.Create(txCtx, subscription)
		if err != nil {
			return fmt.Errorf("failed to create subscription: %w", err)
		}
		if err := s.customerRepo.UpdateCurrentPlan(txCtx, customerData.ID, &plan.ID); err != nil {
			return fmt.Errorf("failed to set current plan: %w", err)
		}
		invoice, err = s.invoiceRepo.Create(txCtx, invoice)
		if err != nil {
			return fmt.Errorf("failed to create invoice: %w", err)
		}
		return nil
	})
	if err != nil {
		return billing.PurchaseResponse{}, err
	}

	return billing.PurchaseResponse{
		Subscription: toSubscriptionResponse(subscription),
		Plan:         toPlanResponse(plan),
		Invoice:      toInvoiceResponse(invoice),
	}, nil
}

// SettleInvoice implements billing.Service.
func (s *BillingServiceImpl) SettleInvoice(ctx context.Context, customerEmail, invoiceID string, req billing.SettleRequest) (billing.SettleResponse, error) {
	customerData, unlock, err := s.lockCustomer(ctx, customerEmail)
	if err != nil {
		return billing.SettleResponse{}, err
	}
	defer unlock()

	invoice, err := s.invoiceRepo.GetByID(ctx, invoiceID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return billing.SettleResponse{}, billing.ErrInvoiceNotFound
		}
		return billing.SettleResponse{}, fmt.Errorf("failed to get invoice: %w", err)
	}
	if invoice.CustomerID != customerData.ID {
		return billing.SettleResponse{}, billing.ErrInvoiceNotFound
	}
	if invoice.Status == billing.InvoiceStatusPaid {
		return billing.SettleResponse{}, billing.ErrInvoiceAlreadyPaid
	}
	if !invoice.IsPayable() {
		return billing.SettleResponse{}, billing.ErrInvoiceNotPayable
	}

	plan, err := s.planRepo.GetByID(ctx, invoice.PlanID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return billing.SettleResponse{}, billing.ErrPlanNotFound
		}
		return billing.SettleResponse{}, fmt.Errorf("failed to get plan: %w", err)
	}

	subscription, err := s.customerPlanRepo.Get(ctx, customerData.ID, plan.ID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return billing.SettleResponse{}, billing.ErrSubscriptionNotFound
		}
		return billing.SettleResponse{}, fmt.Errorf("failed to get subscription: %w", err)
	}

	response := billing.SettleResponse{}

	err = s.inTransaction(ctx, func(txCtx context.Context) error {
		if err := s.invoiceRepo.UpdateStatus(txCtx, invoice.ID, billing.InvoiceStatusPaid); err != nil {
			return fmt.Errorf("failed to mark invoice paid: %w", err)
		}
		invoice.Status = billing.InvoiceStatusPaid

		if req.Renew {
			// Customer is moving on: detach so a different plan can be bought
			return s.detachSubscription(txCtx, customerData, subscription)
		}

		// Same plan for another cycle: reset the subscription dates and open
		// the next cycle with a record-only invoice
		now := s.now()
		subscription.DatePurchased = now
		subscription.ActivationDate = now
		subscription.DueDate = now.AddDate(0, 0, plan.CycleDays())
		if err := s.customerPlanRepo.UpdateDates(txCtx, subscription.ID, subscription.DatePurchased, subscription.ActivationDate, subscription.DueDate); err != nil {
			return fmt.Errorf("failed to extend subscription: %w", err)
		}

		placeholder := billing.Invoice{
			ID:           uuid.New().String(),
			CustomerID:   customerData.ID,
			CustomerName: customerData.Name,
			PlanID:       plan.ID,
			PlanType:     invoice.PlanType,
			Units:        0,
			Amount:       decimal.Zero,
			Date:         now,
			Status:       billing.InvoiceStatusNotApplicable,
		}
		placeholder, err := s.invoiceRepo.Create(txCtx, placeholder)
		if err != nil {
			return fmt.Errorf("failed to create placeholder invoice: %w", err)
		}

		placeholderResp := toInvoiceResponse(placeholder)
		subscriptionResp := toSubscriptionResponse(subscription)
		response.NewInvoice = &placeholderResp
		response.Subscription = &subscriptionResp
		return nil
	})
	if err != nil {
		return billing.SettleResponse{}, err
	}

	response.Invoice = toInvoiceResponse(invoice)
	return response, nil
}

// SweepDueSubscriptions implements billing.Service.
func (s *BillingServiceImpl) SweepDueSubscriptions(ctx context.Context) error {
	now := s.now()
	cutoff := now.AddDate(0, 0, billing.ExpiryWarningDays)

	subscriptions, err := s.customerPlanRepo.ListDueBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("failed to list due subscriptions: %w", err)
	}

	var failed int
	for _, subscription := range subscriptions {
		if err := s.sweepOne(ctx, subscription); err != nil {
			log.Printf("sweep: subscription %s: %v", subscription.ID, err)
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("sweep finished with %d of %d subscriptions failed", failed, len(subscriptions))
	}
	return nil
}

func (s *BillingServiceImpl) sweepOne(ctx context.Context, subscription billing.CustomerPlan) error {
	lock := s.locks.get(subscription.CustomerID)
	lock.Lock()
	defer lock.Unlock()

	customerData, err := s.customerRepo.GetByID(ctx, subscription.CustomerID)
	if err != nil {
		return fmt.Errorf("failed to get customer: %w", err)
	}

	plan, err := s.planRepo.GetByID(ctx, subscription.PlanID)
	if err != nil {
		return fmt.Errorf("failed to get plan: %w", err)
	}

	switch subscription.StateAt(s.now()) {
	case billing.StateExpired:
		return s.inTransaction(ctx, func(txCtx context.Context) error {
			return s.detachSubscription(txCtx, customerData, subscription)
		})
	case billing.StateExpiring:
		if plan.Type != billing.PlanTypePostpaid {
			return nil
		}
		return s.inTransaction(ctx, func(txCtx context.Context) error {
			_, err := s.meterAndInvoicePostpaid(txCtx, customerData, &plan, subscription)
			return err
		})
	}
	return nil
}

// detachSubscription removes the subscription record and clears the
// customer's current plan pointer.
func (s *BillingServiceImpl) detachSubscription(ctx context.Context, customerData customer.Customer, subscription billing.CustomerPlan) error {
	if err := s.customerPlanRepo.Delete(ctx, subscription.ID); err != nil {
		return fmt.Errorf("failed to delete subscription: %w", err)
	}
	if err := s.customerRepo.UpdateCurrentPlan(ctx, customerData.ID, nil); err != nil {
		return fmt.Errorf("failed to clear current plan: %w", err)
	}
	return nil
}

// meterAndInvoicePostpaid records one usage pass on the postpaid variant and
// returns the cycle's pending invoice, creating it if this is the first
// evaluation inside the warning window. At most one "not paid" invoice
// exists per cycle.
func (s *BillingServiceImpl) meterAndInvoicePostpaid(ctx context.Context, customerData customer.Customer, plan *billing.Plan, subscription billing.CustomerPlan) (billing.Invoice, error) {
	if plan.Postpaid == nil {
		return billing.Invoice{}, billing.ErrInvalidPlanVariant
	}

	plan.Postpaid.UnitsUsed += s.usage.PostpaidUsage()
	if err := s.planRepo.UpdatePostpaidUsage(ctx, plan.Postpaid.ID, plan.Postpaid.UnitsUsed); err != nil {
		return billing.Invoice{}, fmt.Errorf("failed to record postpaid usage: %w", err)
	}

	amount := plan.RatePerUnit.Mul(decimal.NewFromInt(plan.Postpaid.UnitsUsed))

	pending, err := s.invoiceRepo.GetPendingForPlan(ctx, customerData.ID, plan.ID, subscription.ActivationDate)
	if err != nil && err != pgx.ErrNoRows {
		return billing.Invoice{}, fmt.Errorf("failed to look up pending invoice: %w", err)
	}
	if err == nil {
		// Re-surface the cycle's open invoice with the usage metered so far
		pending.Units = plan.Postpaid.UnitsUsed
		pending.Amount = amount
		if err := s.invoiceRepo.UpdateAmounts(ctx, pending.ID, pending.Units, pending.Amount); err != nil {
			return billing.Invoice{}, fmt.Errorf("failed to refresh pending invoice: %w", err)
		}
		return pending, nil
	}

	invoice := billing.Invoice{
		ID:           uuid.New().String(),
		CustomerID:   customerData.ID,
		CustomerName: customerData.Name,
		PlanID:       plan.ID,
		PlanType:     billing.PlanTypePostpaid,
		Units:        plan.Postpaid.UnitsUsed,
		Amount:       amount,
		Date:         s.now(),
		Status:       billing.InvoiceStatusNotPaid,
	}
	invoice, err = s.invoiceRepo.Create(ctx, invoice)
	if err != nil {
		return billing.Invoice{}, fmt.Errorf("failed to create invoice: %w", err)
	}
	return invoice, nil
}

func (s *BillingServiceImpl) getCustomer(ctx context.Context, customerEmail string) (customer.Customer, error) {
	customerData, err := s.customerRepo.GetByEmail(ctx, customerEmail)
	if err != nil {
		if err == pgx.ErrNoRows {
			return customer.Customer{}, customer.ErrCustomerNotFound
		}
		return customer.Customer{}, fmt.Errorf("failed to get customer by email: %w", err)
	}
	return customerData, nil
}
