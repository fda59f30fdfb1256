package billing

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/telstar/billing-backend-go/internal/domain/billing"
	"github.com/telstar/billing-backend-go/internal/domain/customer"
)

// In-memory repositories backing the service tests. They mirror the
// PostgreSQL repositories' contract, including pgx.ErrNoRows on misses.

type fakeCustomerRepo struct {
	mu        sync.Mutex
	customers map[string]customer.Customer // by ID

	// afterGetByEmail, when set, runs after each GetByEmail read completes,
	// outside the repo's own lock. Lets tests stall goroutines at a chosen
	// interleaving point.
	afterGetByEmail func()
}

func newFakeCustomerRepo() *fakeCustomerRepo {
	return &fakeCustomerRepo{customers: make(map[string]customer.Customer)}
}

func (f *fakeCustomerRepo) get(id string) (customer.Customer, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.customers[id]
	return c, ok
}

func (f *fakeCustomerRepo) GetByID(ctx context.Context, id string) (customer.Customer, error) {
	c, ok := f.get(id)
	if !ok {
		return customer.Customer{}, pgx.ErrNoRows
	}
	return c, nil
}

func (f *fakeCustomerRepo) GetByEmail(ctx context.Context, email string) (customer.Customer, error) {
	f.mu.Lock()
	var found *customer.Customer
	for _, c := range f.customers {
		if c.Email == email {
			c := c
			found = &c
			break
		}
	}
	f.mu.Unlock()

	if f.afterGetByEmail != nil {
		f.afterGetByEmail()
	}
	if found == nil {
		return customer.Customer{}, pgx.ErrNoRows
	}
	return *found, nil
}

func (f *fakeCustomerRepo) Create(ctx context.Context, c customer.Customer) (customer.Customer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.customers[c.ID] = c
	return c, nil
}

func (f *fakeCustomerRepo) UpdateCurrentPlan(ctx context.Context, id string, planID *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.customers[id]
	if !ok {
		return pgx.ErrNoRows
	}
	c.CurrentPlanID = planID
	f.customers[id] = c
	return nil
}

func (f *fakeCustomerRepo) List(ctx context.Context) ([]customer.Customer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	customers := make([]customer.Customer, 0, len(f.customers))
	for _, c := range f.customers {
		customers = append(customers, c)
	}
	return customers, nil
}

type fakePlanRepo struct {
	plans map[string]billing.Plan // by ID
}

func newFakePlanRepo() *fakePlanRepo {
	return &fakePlanRepo{plans: make(map[string]billing.Plan)}
}

func clonePlan(p billing.Plan) billing.Plan {
	if p.Prepaid != nil {
		prepaid := *p.Prepaid
		p.Prepaid = &prepaid
	}
	if p.Postpaid != nil {
		postpaid := *p.Postpaid
		p.Postpaid = &postpaid
	}
	return p
}

func (f *fakePlanRepo) GetByID(ctx context.Context, id string) (billing.Plan, error) {
	p, ok := f.plans[id]
	if !ok {
		return billing.Plan{}, pgx.ErrNoRows
	}
	return clonePlan(p), nil
}

func (f *fakePlanRepo) GetByName(ctx context.Context, name string) (billing.Plan, error) {
	for _, p := range f.plans {
		if p.Name == name {
			return clonePlan(p), nil
		}
	}
	return billing.Plan{}, pgx.ErrNoRows
}

func (f *fakePlanRepo) ListByType(ctx context.Context, planType billing.PlanType) ([]billing.Plan, error) {
	plans := make([]billing.Plan, 0)
	for _, p := range f.plans {
		if p.Type == planType {
			plans = append(plans, clonePlan(p))
		}
	}
	return plans, nil
}

func (f *fakePlanRepo) Create(ctx context.Context, p billing.Plan) (billing.Plan, error) {
	f.plans[p.ID] = clonePlan(p)
	return p, nil
}

func (f *fakePlanRepo) UpdatePrepaidUsage(ctx context.Context, variantID string, unitsAvailable int64, prepaidBalance decimal.Decimal) error {
	for id, p := range f.plans {
		if p.Prepaid != nil && p.Prepaid.ID == variantID {
			p = clonePlan(p)
			p.Prepaid.UnitsAvailable = unitsAvailable
			p.Prepaid.PrepaidBalance = prepaidBalance
			f.plans[id] = p
			return nil
		}
	}
	return pgx.ErrNoRows
}

func (f *fakePlanRepo) UpdatePostpaidUsage(ctx context.Context, variantID string, unitsUsed int64) error {
	for id, p := range f.plans {
		if p.Postpaid != nil && p.Postpaid.ID == variantID {
			p = clonePlan(p)
			p.Postpaid.UnitsUsed = unitsUsed
			f.plans[id] = p
			return nil
		}
	}
	return pgx.ErrNoRows
}

type fakeCustomerPlanRepo struct {
	subscriptions map[string]billing.CustomerPlan // by ID
}

func newFakeCustomerPlanRepo() *fakeCustomerPlanRepo {
	return &fakeCustomerPlanRepo{subscriptions: make(map[string]billing.CustomerPlan)}
}

func (f *fakeCustomerPlanRepo) Get(ctx context.Context, customerID, planID string) (billing.CustomerPlan, error) {
	for _, cp := range f.subscriptions {
		if cp.CustomerID == customerID && cp.PlanID == planID {
			return cp, nil
		}
	}
	return billing.CustomerPlan{}, pgx.ErrNoRows
}

func (f *fakeCustomerPlanRepo) Create(ctx context.Context, cp billing.CustomerPlan) (billing.CustomerPlan, error) {
	f.subscriptions[cp.ID] = cp
	return cp, nil
}

func (f *fakeCustomerPlanRepo) UpdateDates(ctx context.Context, id string, purchased, activation, due time.Time) error {
	cp, ok := f.subscriptions[id]
	if !ok {
		return pgx.ErrNoRows
	}
	cp.DatePurchased = purchased
	cp.ActivationDate = activation
	cp.DueDate = due
	f.subscriptions[id] = cp
	return nil
}

func (f *fakeCustomerPlanRepo) Delete(ctx context.Context, id string) error {
	delete(f.subscriptions, id)
	return nil
}

func (f *fakeCustomerPlanRepo) ListDueBefore(ctx context.Context, cutoff time.Time) ([]billing.CustomerPlan, error) {
	subscriptions := make([]billing.CustomerPlan, 0)
	for _, cp := range f.subscriptions {
		if !cp.DueDate.After(cutoff) {
			subscriptions = append(subscriptions, cp)
		}
	}
	return subscriptions, nil
}

type fakeInvoiceRepo struct {
	invoices map[string]billing.Invoice // by ID
	order    []string
}

func newFakeInvoiceRepo() *fakeInvoiceRepo {
	return &fakeInvoiceRepo{invoices: make(map[string]billing.Invoice)}
}

func (f *fakeInvoiceRepo) GetByID(ctx context.Context, id string) (billing.Invoice, error) {
	inv, ok := f.invoices[id]
	if !ok {
		return billing.Invoice{}, pgx.ErrNoRows
	}
	return inv, nil
}

func (f *fakeInvoiceRepo) Create(ctx context.Context, inv billing.Invoice) (billing.Invoice, error) {
	f.invoices[inv.ID] = inv
	f.order = append(f.order, inv.ID)
	return inv, nil
}

func (f *fakeInvoiceRepo) UpdateStatus(ctx context.Context, id string, status billing.InvoiceStatus) error {
	inv, ok := f.invoices[id]
	if !ok {
		return pgx.ErrNoRows
	}
	inv.Status = status
	f.invoices[id] = inv
	return nil
}

func (f *fakeInvoiceRepo) UpdateAmounts(ctx context.Context, id string, units int64, amount decimal.Decimal) error {
	inv, ok := f.invoices[id]
	if !ok {
		return pgx.ErrNoRows
	}
	inv.Units = units
	inv.Amount = amount
	f.invoices[id] = inv
	return nil
}

func (f *fakeInvoiceRepo) ListByCustomer(ctx context.Context, customerID string) ([]billing.Invoice, error) {
	invoices := make([]billing.Invoice, 0)
	// Newest first, insertion order as a proxy for date ordering
	for i := len(f.order) - 1; i >= 0; i-- {
		inv := f.invoices[f.order[i]]
		if inv.CustomerID == customerID {
			invoices = append(invoices, inv)
		}
	}
	return invoices, nil
}

func (f *fakeInvoiceRepo) GetPendingForPlan(ctx context.Context, customerID, planID string, since time.Time) (billing.Invoice, error) {
	for i := len(f.order) - 1; i >= 0; i-- {
		inv := f.invoices[f.order[i]]
		if inv.CustomerID == customerID && inv.PlanID == planID &&
			inv.Status == billing.InvoiceStatusNotPaid && !inv.Date.Before(since) {
			return inv, nil
		}
	}
	return billing.Invoice{}, pgx.ErrNoRows
}

func (f *fakeInvoiceRepo) countByStatus(status billing.InvoiceStatus) int {
	n := 0
	for _, inv := range f.invoices {
		if inv.Status == status {
			n++
		}
	}
	return n
}

// scriptedUsage returns fixed quantities instead of random ones.
type scriptedUsage struct {
	prepaid  int64
	postpaid int64
}

func (u scriptedUsage) PrepaidConsumption() int64 { return u.prepaid }
func (u scriptedUsage) PostpaidUsage() int64      { return u.postpaid }
