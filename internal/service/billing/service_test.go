package billing

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/telstar/billing-backend-go/internal/domain/billing"
	"github.com/telstar/billing-backend-go/internal/domain/customer"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

type testEnv struct {
	service       *BillingServiceImpl
	customers     *fakeCustomerRepo
	plans         *fakePlanRepo
	subscriptions *fakeCustomerPlanRepo
	invoices      *fakeInvoiceRepo
}

func newTestEnv(usage billing.UsageSimulator) *testEnv {
	env := &testEnv{
		customers:     newFakeCustomerRepo(),
		plans:         newFakePlanRepo(),
		subscriptions: newFakeCustomerPlanRepo(),
		invoices:      newFakeInvoiceRepo(),
	}
	env.service = &BillingServiceImpl{
		customerRepo:     env.customers,
		planRepo:         env.plans,
		customerPlanRepo: env.subscriptions,
		invoiceRepo:      env.invoices,
		usage:            usage,
		locks:            newCustomerLocks(),
		now:              func() time.Time { return testNow },
	}
	return env
}

func (env *testEnv) addCustomer(id, email string, currentPlanID *string) customer.Customer {
	c := customer.Customer{
		ID:            id,
		Name:          "Test Customer",
		Email:         email,
		Role:          customer.RoleCustomer,
		CurrentPlanID: currentPlanID,
	}
	env.customers.customers[id] = c
	return c
}

func (env *testEnv) addPrepaidPlan(id, name string, rate decimal.Decimal, units int64, balance decimal.Decimal) billing.Plan {
	p := billing.Plan{
		ID:          id,
		Name:        name,
		Type:        billing.PlanTypePrepaid,
		RatePerUnit: rate,
		Prepaid: &billing.PrepaidPlan{
			ID:             id + "-prepaid",
			PlanID:         id,
			UnitsAvailable: units,
			PrepaidBalance: balance,
		},
	}
	env.plans.plans[id] = p
	return p
}

func (env *testEnv) addPostpaidPlan(id, name string, rate decimal.Decimal, cycleDays int, unitsUsed int64) billing.Plan {
	p := billing.Plan{
		ID:               id,
		Name:             name,
		Type:             billing.PlanTypePostpaid,
		RatePerUnit:      rate,
		BillingCycleDays: cycleDays,
		Postpaid: &billing.PostpaidPlan{
			ID:        id + "-postpaid",
			PlanID:    id,
			UnitsUsed: unitsUsed,
		},
	}
	env.plans.plans[id] = p
	return p
}

func (env *testEnv) addSubscription(id, customerID, planID string, dueDate time.Time) billing.CustomerPlan {
	cp := billing.CustomerPlan{
		ID:             id,
		CustomerID:     customerID,
		PlanID:         planID,
		DatePurchased:  testNow.AddDate(0, 0, -25),
		ActivationDate: testNow.AddDate(0, 0, -25),
		DueDate:        dueDate,
	}
	env.subscriptions.subscriptions[id] = cp
	return cp
}

func strPtr(s string) *string { return &s }

func TestCheckPlanStatus_Active(t *testing.T) {
	env := newTestEnv(scriptedUsage{})
	env.addCustomer("cust-1", "alice@example.com", strPtr("plan-1"))
	env.addPrepaidPlan("plan-1", "Basic Prepaid", decimal.NewFromInt(2), 100, decimal.NewFromInt(200))
	env.addSubscription("sub-1", "cust-1", "plan-1", testNow.AddDate(0, 0, 10))

	resp, err := env.service.CheckPlanStatus(context.Background(), "alice@example.com")
	require.NoError(t, err)

	assert.Equal(t, billing.StateActive, resp.State)
	assert.Equal(t, 10, resp.DaysLeft)
	assert.Nil(t, resp.Invoice)
	// Nothing mutated
	assert.Len(t, env.subscriptions.subscriptions, 1)
	assert.NotNil(t, env.customers.customers["cust-1"].CurrentPlanID)
}

func TestCheckPlanStatus_ExpiringPrepaid_NoInvoice(t *testing.T) {
	env := newTestEnv(scriptedUsage{})
	env.addCustomer("cust-1", "alice@example.com", strPtr("plan-1"))
	env.addPrepaidPlan("plan-1", "Basic Prepaid", decimal.NewFromInt(2), 100, decimal.NewFromInt(200))
	env.addSubscription("sub-1", "cust-1", "plan-1", testNow.AddDate(0, 0, 3))

	resp, err := env.service.CheckPlanStatus(context.Background(), "alice@example.com")
	require.NoError(t, err)

	assert.Equal(t, billing.StateExpiring, resp.State)
	assert.Equal(t, 3, resp.DaysLeft)
	assert.Nil(t, resp.Invoice)
	assert.Empty(t, env.invoices.invoices)
}

func TestCheckPlanStatus_ExpiringPostpaid_MetersAndInvoices(t *testing.T) {
	env := newTestEnv(scriptedUsage{postpaid: 150})
	env.addCustomer("cust-1", "alice@example.com", strPtr("plan-1"))
	env.addPostpaidPlan("plan-1", "Heavy Postpaid", decimal.NewFromInt(3), 30, 200)
	env.addSubscription("sub-1", "cust-1", "plan-1", testNow.AddDate(0, 0, 4))

	resp, err := env.service.CheckPlanStatus(context.Background(), "alice@example.com")
	require.NoError(t, err)

	assert.Equal(t, billing.StateExpiring, resp.State)
	require.NotNil(t, resp.Invoice)
	assert.Equal(t, billing.InvoiceStatusNotPaid, resp.Invoice.Status)
	assert.Equal(t, int64(350), resp.Invoice.Units)
	assert.True(t, resp.Invoice.Amount.Equal(decimal.NewFromInt(1050)), "amount = units x rate, got %s", resp.Invoice.Amount)

	// Usage was persisted
	plan := env.plans.plans["plan-1"]
	assert.Equal(t, int64(350), plan.Postpaid.UnitsUsed)
}

func TestCheckPlanStatus_ExpiringPostpaid_ReusesPendingInvoice(t *testing.T) {
	env := newTestEnv(scriptedUsage{postpaid: 100})
	env.addCustomer("cust-1", "alice@example.com", strPtr("plan-1"))
	env.addPostpaidPlan("plan-1", "Heavy Postpaid", decimal.NewFromInt(1), 30, 0)
	env.addSubscription("sub-1", "cust-1", "plan-1", testNow.AddDate(0, 0, 2))

	first, err := env.service.CheckPlanStatus(context.Background(), "alice@example.com")
	require.NoError(t, err)
	second, err := env.service.CheckPlanStatus(context.Background(), "alice@example.com")
	require.NoError(t, err)

	// One open invoice per cycle, re-surfaced with accumulated usage
	assert.Equal(t, 1, env.invoices.countByStatus(billing.InvoiceStatusNotPaid))
	assert.Equal(t, first.Invoice.ID, second.Invoice.ID)
	assert.Equal(t, int64(100), first.Invoice.Units)
	assert.Equal(t, int64(200), second.Invoice.Units)

	// The stored row carries the refreshed figures, so settlement and the
	// invoice views bill the same amount the evaluation reported
	stored := env.invoices.invoices[second.Invoice.ID]
	assert.Equal(t, int64(200), stored.Units)
	assert.True(t, stored.Amount.Equal(second.Invoice.Amount), "stored amount %s, reported %s", stored.Amount, second.Invoice.Amount)
}

func TestCheckPlanStatus_Expired_DetachesPlan(t *testing.T) {
	env := newTestEnv(scriptedUsage{})
	env.addCustomer("cust-1", "alice@example.com", strPtr("plan-1"))
	env.addPrepaidPlan("plan-1", "Basic Prepaid", decimal.NewFromInt(2), 100, decimal.NewFromInt(200))
	env.addSubscription("sub-1", "cust-1", "plan-1", testNow.AddDate(0, 0, -1))

	resp, err := env.service.CheckPlanStatus(context.Background(), "alice@example.com")
	require.NoError(t, err)

	assert.Equal(t, billing.StateExpired, resp.State)
	assert.Empty(t, env.subscriptions.subscriptions)
	assert.Nil(t, env.customers.customers["cust-1"].CurrentPlanID)
}

func TestCheckPlanStatus_ExpiredPostpaid_AlsoDetaches(t *testing.T) {
	env := newTestEnv(scriptedUsage{postpaid: 100})
	env.addCustomer("cust-1", "alice@example.com", strPtr("plan-1"))
	env.addPostpaidPlan("plan-1", "Heavy Postpaid", decimal.NewFromInt(3), 30, 0)
	env.addSubscription("sub-1", "cust-1", "plan-1", testNow.Add(-time.Hour))

	resp, err := env.service.CheckPlanStatus(context.Background(), "alice@example.com")
	require.NoError(t, err)

	// Past due always detaches, it never reports the warning window
	assert.Equal(t, billing.StateExpired, resp.State)
	assert.Empty(t, env.subscriptions.subscriptions)
	assert.Empty(t, env.invoices.invoices)
}

func TestCheckPlanStatus_DueWithinTheHour_CountsAsOneDay(t *testing.T) {
	env := newTestEnv(scriptedUsage{})
	env.addCustomer("cust-1", "alice@example.com", strPtr("plan-1"))
	env.addPrepaidPlan("plan-1", "Basic Prepaid", decimal.NewFromInt(2), 100, decimal.NewFromInt(200))
	env.addSubscription("sub-1", "cust-1", "plan-1", testNow.Add(30*time.Minute))

	resp, err := env.service.CheckPlanStatus(context.Background(), "alice@example.com")
	require.NoError(t, err)

	assert.Equal(t, billing.StateExpiring, resp.State)
	assert.Equal(t, 1, resp.DaysLeft)
}

func TestCheckPlanStatus_NoActivePlan(t *testing.T) {
	env := newTestEnv(scriptedUsage{})
	env.addCustomer("cust-1", "alice@example.com", nil)

	_, err := env.service.CheckPlanStatus(context.Background(), "alice@example.com")
	assert.ErrorIs(t, err, billing.ErrNoActivePlan)
}

func TestCheckPlanStatus_CustomerNotFound(t *testing.T) {
	env := newTestEnv(scriptedUsage{})

	_, err := env.service.CheckPlanStatus(context.Background(), "ghost@example.com")
	assert.ErrorIs(t, err, customer.ErrCustomerNotFound)
}

func TestPurchasePlan_Prepaid(t *testing.T) {
	env := newTestEnv(scriptedUsage{})
	env.addCustomer("cust-1", "alice@example.com", nil)
	env.addPrepaidPlan("plan-1", "Basic Prepaid", decimal.NewFromInt(2), 100, decimal.NewFromInt(200))

	resp, err := env.service.PurchasePlan(context.Background(), "alice@example.com", billing.PurchaseRequest{
		PlanName: "Basic Prepaid",
		PlanType: billing.PlanTypePrepaid,
	})
	require.NoError(t, err)

	// Upfront settlement: paid invoice carrying the full allotment
	assert.Equal(t, billing.InvoiceStatusPaid, resp.Invoice.Status)
	assert.Equal(t, int64(100), resp.Invoice.Units)
	assert.True(t, resp.Invoice.Amount.Equal(decimal.NewFromInt(200)))

	// Default 30 day cycle
	assert.Equal(t, testNow.AddDate(0, 0, 30).Format(time.RFC3339), resp.Subscription.DueDate)

	got := env.customers.customers["cust-1"]
	require.NotNil(t, got.CurrentPlanID)
	assert.Equal(t, "plan-1", *got.CurrentPlanID)
}

func TestPurchasePlan_Postpaid(t *testing.T) {
	env := newTestEnv(scriptedUsage{})
	env.addCustomer("cust-1", "alice@example.com", nil)
	env.addPostpaidPlan("plan-1", "Heavy Postpaid", decimal.NewFromInt(3), 14, 0)

	resp, err := env.service.PurchasePlan(context.Background(), "alice@example.com", billing.PurchaseRequest{
		PlanName: "Heavy Postpaid",
		PlanType: billing.PlanTypePostpaid,
	})
	require.NoError(t, err)

	// Billed in arrears: the opening invoice is record-only
	assert.Equal(t, billing.InvoiceStatusNotApplicable, resp.Invoice.Status)
	assert.Equal(t, int64(0), resp.Invoice.Units)
	assert.True(t, resp.Invoice.Amount.IsZero())
	assert.Equal(t, testNow.AddDate(0, 0, 14).Format(time.RFC3339), resp.Subscription.DueDate)
}

func TestPurchasePlan_AlreadySubscribed(t *testing.T) {
	env := newTestEnv(scriptedUsage{})
	env.addCustomer("cust-1", "alice@example.com", strPtr("plan-1"))
	env.addPrepaidPlan("plan-1", "Basic Prepaid", decimal.NewFromInt(2), 100, decimal.NewFromInt(200))

	_, err := env.service.PurchasePlan(context.Background(), "alice@example.com", billing.PurchaseRequest{
		PlanName: "Basic Prepaid",
		PlanType: billing.PlanTypePrepaid,
	})
	assert.ErrorIs(t, err, billing.ErrAlreadySubscribed)
}

func TestPurchasePlan_TypeMismatch(t *testing.T) {
	env := newTestEnv(scriptedUsage{})
	env.addCustomer("cust-1", "alice@example.com", nil)
	env.addPrepaidPlan("plan-1", "Basic Prepaid", decimal.NewFromInt(2), 100, decimal.NewFromInt(200))

	_, err := env.service.PurchasePlan(context.Background(), "alice@example.com", billing.PurchaseRequest{
		PlanName: "Basic Prepaid",
		PlanType: billing.PlanTypePostpaid,
	})
	assert.ErrorIs(t, err, billing.ErrPlanTypeMismatch)
}

func TestPurchasePlan_PlanNotFound(t *testing.T) {
	env := newTestEnv(scriptedUsage{})
	env.addCustomer("cust-1", "alice@example.com", nil)

	_, err := env.service.PurchasePlan(context.Background(), "alice@example.com", billing.PurchaseRequest{
		PlanName: "Nope",
		PlanType: billing.PlanTypePrepaid,
	})
	assert.ErrorIs(t, err, billing.ErrPlanNotFound)
}

func TestPurchasePlan_PostpaidZeroCycleRejected(t *testing.T) {
	env := newTestEnv(scriptedUsage{})
	env.addCustomer("cust-1", "alice@example.com", nil)
	env.addPostpaidPlan("plan-1", "Broken Postpaid", decimal.NewFromInt(3), 0, 0)

	_, err := env.service.PurchasePlan(context.Background(), "alice@example.com", billing.PurchaseRequest{
		PlanName: "Broken Postpaid",
		PlanType: billing.PlanTypePostpaid,
	})
	assert.ErrorIs(t, err, billing.ErrInvalidBillingCycle)
	assert.Empty(t, env.subscriptions.subscriptions)
}

func TestPurchasePlan_ConcurrentBuyersOnlyOneWins(t *testing.T) {
	env := newTestEnv(scriptedUsage{})
	env.addCustomer("cust-1", "alice@example.com", nil)
	env.addPrepaidPlan("plan-1", "Basic Prepaid", decimal.NewFromInt(2), 100, decimal.NewFromInt(200))
	env.addPostpaidPlan("plan-2", "Heavy Postpaid", decimal.NewFromInt(3), 30, 0)

	// Stall both buyers right after their unlocked customer read, so each
	// has observed "no active plan" before either commits
	var gated int32
	var arrived sync.WaitGroup
	arrived.Add(2)
	release := make(chan struct{})
	env.customers.afterGetByEmail = func() {
		if atomic.AddInt32(&gated, 1) <= 2 {
			arrived.Done()
			<-release
		}
	}

	results := make(chan error, 2)
	go func() {
		_, err := env.service.PurchasePlan(context.Background(), "alice@example.com", billing.PurchaseRequest{
			PlanName: "Basic Prepaid",
			PlanType: billing.PlanTypePrepaid,
		})
		results <- err
	}()
	go func() {
		_, err := env.service.PurchasePlan(context.Background(), "alice@example.com", billing.PurchaseRequest{
			PlanName: "Heavy Postpaid",
			PlanType: billing.PlanTypePostpaid,
		})
		results <- err
	}()

	arrived.Wait()
	close(release)

	rejected := 0
	for i := 0; i < 2; i++ {
		if err := <-results; err != nil {
			assert.ErrorIs(t, err, billing.ErrAlreadySubscribed)
			rejected++
		}
	}
	assert.Equal(t, 1, rejected, "exactly one buyer should lose the race")
	assert.Len(t, env.subscriptions.subscriptions, 1)
	require.NotNil(t, env.customers.customers["cust-1"].CurrentPlanID)
}

func TestSettleInvoice_KeepPlan_ExtendsCycle(t *testing.T) {
	env := newTestEnv(scriptedUsage{})
	env.addCustomer("cust-1", "alice@example.com", strPtr("plan-1"))
	env.addPostpaidPlan("plan-1", "Heavy Postpaid", decimal.NewFromInt(3), 30, 350)
	env.addSubscription("sub-1", "cust-1", "plan-1", testNow.AddDate(0, 0, 2))
	env.invoices.Create(context.Background(), billing.Invoice{
		ID: "inv-1", CustomerID: "cust-1", CustomerName: "Test Customer",
		PlanID: "plan-1", PlanType: billing.PlanTypePostpaid,
		Units: 350, Amount: decimal.NewFromInt(1050),
		Date: testNow, Status: billing.InvoiceStatusNotPaid,
	})

	resp, err := env.service.SettleInvoice(context.Background(), "alice@example.com", "inv-1", billing.SettleRequest{Renew: false})
	require.NoError(t, err)

	assert.Equal(t, billing.InvoiceStatusPaid, resp.Invoice.Status)
	require.NotNil(t, resp.NewInvoice)
	assert.Equal(t, billing.InvoiceStatusNotApplicable, resp.NewInvoice.Status)
	assert.Equal(t, int64(0), resp.NewInvoice.Units)

	require.NotNil(t, resp.Subscription)
	assert.Equal(t, testNow.AddDate(0, 0, 30).Format(time.RFC3339), resp.Subscription.DueDate)

	// Subscription survives and the customer keeps the plan
	assert.Len(t, env.subscriptions.subscriptions, 1)
	assert.NotNil(t, env.customers.customers["cust-1"].CurrentPlanID)
}

func TestSettleInvoice_ChangePlan_Detaches(t *testing.T) {
	env := newTestEnv(scriptedUsage{})
	env.addCustomer("cust-1", "alice@example.com", strPtr("plan-1"))
	env.addPostpaidPlan("plan-1", "Heavy Postpaid", decimal.NewFromInt(3), 30, 350)
	env.addSubscription("sub-1", "cust-1", "plan-1", testNow.AddDate(0, 0, 2))
	env.invoices.Create(context.Background(), billing.Invoice{
		ID: "inv-1", CustomerID: "cust-1", CustomerName: "Test Customer",
		PlanID: "plan-1", PlanType: billing.PlanTypePostpaid,
		Units: 350, Amount: decimal.NewFromInt(1050),
		Date: testNow, Status: billing.InvoiceStatusNotPaid,
	})

	resp, err := env.service.SettleInvoice(context.Background(), "alice@example.com", "inv-1", billing.SettleRequest{Renew: true})
	require.NoError(t, err)

	assert.Equal(t, billing.InvoiceStatusPaid, resp.Invoice.Status)
	assert.Nil(t, resp.NewInvoice)
	assert.Nil(t, resp.Subscription)

	assert.Empty(t, env.subscriptions.subscriptions)
	assert.Nil(t, env.customers.customers["cust-1"].CurrentPlanID)
}

func TestSettleInvoice_AlreadyPaid(t *testing.T) {
	env := newTestEnv(scriptedUsage{})
	env.addCustomer("cust-1", "alice@example.com", strPtr("plan-1"))
	env.invoices.Create(context.Background(), billing.Invoice{
		ID: "inv-1", CustomerID: "cust-1", PlanID: "plan-1",
		Status: billing.InvoiceStatusPaid,
	})

	_, err := env.service.SettleInvoice(context.Background(), "alice@example.com", "inv-1", billing.SettleRequest{})
	assert.ErrorIs(t, err, billing.ErrInvoiceAlreadyPaid)
}

func TestSettleInvoice_RecordOnlyNotPayable(t *testing.T) {
	env := newTestEnv(scriptedUsage{})
	env.addCustomer("cust-1", "alice@example.com", strPtr("plan-1"))
	env.invoices.Create(context.Background(), billing.Invoice{
		ID: "inv-1", CustomerID: "cust-1", PlanID: "plan-1",
		Status: billing.InvoiceStatusNotApplicable,
	})

	_, err := env.service.SettleInvoice(context.Background(), "alice@example.com", "inv-1", billing.SettleRequest{})
	assert.ErrorIs(t, err, billing.ErrInvoiceNotPayable)
}

func TestSettleInvoice_OtherCustomersInvoiceHidden(t *testing.T) {
	env := newTestEnv(scriptedUsage{})
	env.addCustomer("cust-1", "alice@example.com", strPtr("plan-1"))
	env.invoices.Create(context.Background(), billing.Invoice{
		ID: "inv-1", CustomerID: "cust-2", PlanID: "plan-1",
		Status: billing.InvoiceStatusNotPaid,
	})

	_, err := env.service.SettleInvoice(context.Background(), "alice@example.com", "inv-1", billing.SettleRequest{})
	assert.ErrorIs(t, err, billing.ErrInvoiceNotFound)
}

func TestSweepDueSubscriptions(t *testing.T) {
	env := newTestEnv(scriptedUsage{postpaid: 100})

	// Expired prepaid: gets detached
	env.addCustomer("cust-1", "alice@example.com", strPtr("plan-1"))
	env.addPrepaidPlan("plan-1", "Basic Prepaid", decimal.NewFromInt(2), 100, decimal.NewFromInt(200))
	env.addSubscription("sub-1", "cust-1", "plan-1", testNow.AddDate(0, 0, -2))

	// Postpaid in the warning window: gets metered and invoiced
	env.addCustomer("cust-2", "bob@example.com", strPtr("plan-2"))
	env.addPostpaidPlan("plan-2", "Heavy Postpaid", decimal.NewFromInt(3), 30, 0)
	env.addSubscription("sub-2", "cust-2", "plan-2", testNow.AddDate(0, 0, 3))

	// Healthy subscription: untouched
	env.addCustomer("cust-3", "carol@example.com", strPtr("plan-3"))
	env.addPrepaidPlan("plan-3", "Other Prepaid", decimal.NewFromInt(2), 100, decimal.NewFromInt(200))
	env.addSubscription("sub-3", "cust-3", "plan-3", testNow.AddDate(0, 0, 20))

	err := env.service.SweepDueSubscriptions(context.Background())
	require.NoError(t, err)

	_, hasExpired := env.subscriptions.subscriptions["sub-1"]
	assert.False(t, hasExpired)
	assert.Nil(t, env.customers.customers["cust-1"].CurrentPlanID)

	assert.Equal(t, 1, env.invoices.countByStatus(billing.InvoiceStatusNotPaid))
	assert.Equal(t, int64(100), env.plans.plans["plan-2"].Postpaid.UnitsUsed)

	_, hasHealthy := env.subscriptions.subscriptions["sub-3"]
	assert.True(t, hasHealthy)
}

func TestMeterUsage_PrepaidDrawsDownBalance(t *testing.T) {
	env := newTestEnv(scriptedUsage{prepaid: 60})
	env.addCustomer("cust-1", "alice@example.com", strPtr("plan-1"))
	env.addPrepaidPlan("plan-1", "Basic Prepaid", decimal.NewFromInt(2), 50, decimal.NewFromInt(100))

	resp, err := env.service.MeterUsage(context.Background(), "alice@example.com")
	require.NoError(t, err)

	assert.Equal(t, billing.PlanTypePrepaid, resp.PlanType)
	require.NotNil(t, resp.Plan.PrepaidBalance)
	assert.True(t, resp.Plan.PrepaidBalance.Equal(decimal.NewFromInt(40)), "balance should drop 100 -> 40, got %s", resp.Plan.PrepaidBalance)

	stored := env.plans.plans["plan-1"]
	assert.True(t, stored.Prepaid.PrepaidBalance.Equal(decimal.NewFromInt(40)))
	// Consumption spends money, not the upfront allotment
	assert.Equal(t, int64(50), stored.Prepaid.UnitsAvailable)
}

func TestMeterUsage_PrepaidMayOverdraw(t *testing.T) {
	env := newTestEnv(scriptedUsage{prepaid: 150})
	env.addCustomer("cust-1", "alice@example.com", strPtr("plan-1"))
	env.addPrepaidPlan("plan-1", "Basic Prepaid", decimal.NewFromInt(2), 50, decimal.NewFromInt(100))

	resp, err := env.service.MeterUsage(context.Background(), "alice@example.com")
	require.NoError(t, err)

	// No floor: the balance goes negative
	require.NotNil(t, resp.Plan.PrepaidBalance)
	assert.True(t, resp.Plan.PrepaidBalance.Equal(decimal.NewFromInt(-50)), "got %s", resp.Plan.PrepaidBalance)
	assert.True(t, env.plans.plans["plan-1"].Prepaid.PrepaidBalance.Equal(decimal.NewFromInt(-50)))
}

func TestMeterUsage_PostpaidAccrues(t *testing.T) {
	env := newTestEnv(scriptedUsage{postpaid: 250})
	env.addCustomer("cust-1", "alice@example.com", strPtr("plan-1"))
	env.addPostpaidPlan("plan-1", "Heavy Postpaid", decimal.NewFromInt(3), 30, 100)

	resp, err := env.service.MeterUsage(context.Background(), "alice@example.com")
	require.NoError(t, err)

	require.NotNil(t, resp.Plan.UnitsUsed)
	assert.Equal(t, int64(350), *resp.Plan.UnitsUsed)
	assert.Equal(t, int64(350), env.plans.plans["plan-1"].Postpaid.UnitsUsed)
}

func TestMeterUsage_NoActivePlan(t *testing.T) {
	env := newTestEnv(scriptedUsage{})
	env.addCustomer("cust-1", "alice@example.com", nil)

	_, err := env.service.MeterUsage(context.Background(), "alice@example.com")
	assert.ErrorIs(t, err, billing.ErrNoActivePlan)
}

func TestCreatePlan_PrepaidDerivesUnits(t *testing.T) {
	env := newTestEnv(scriptedUsage{})

	resp, err := env.service.CreatePlan(context.Background(), billing.CreatePlanRequest{
		PlanName:       "Starter",
		Description:    "Entry level",
		RatePerUnit:    decimal.NewFromInt(3),
		PlanType:       billing.PlanTypePrepaid,
		PrepaidBalance: decimal.NewFromInt(100),
	})
	require.NoError(t, err)

	require.NotNil(t, resp.UnitsAvailable)
	assert.Equal(t, int64(33), *resp.UnitsAvailable, "units are the balance divided by the rate, rounded down")
}

func TestCreatePlan_DuplicateName(t *testing.T) {
	env := newTestEnv(scriptedUsage{})
	env.addPrepaidPlan("plan-1", "Starter", decimal.NewFromInt(2), 100, decimal.NewFromInt(200))

	_, err := env.service.CreatePlan(context.Background(), billing.CreatePlanRequest{
		PlanName:       "Starter",
		RatePerUnit:    decimal.NewFromInt(3),
		PlanType:       billing.PlanTypePrepaid,
		PrepaidBalance: decimal.NewFromInt(100),
	})
	assert.ErrorIs(t, err, billing.ErrPlanNameExists)
}

func TestCreatePlan_PostpaidNeedsCycle(t *testing.T) {
	env := newTestEnv(scriptedUsage{})

	_, err := env.service.CreatePlan(context.Background(), billing.CreatePlanRequest{
		PlanName:    "Arrears",
		RatePerUnit: decimal.NewFromInt(3),
		PlanType:    billing.PlanTypePostpaid,
	})
	assert.ErrorIs(t, err, billing.ErrInvalidBillingCycle)
}

func TestSetDueDate(t *testing.T) {
	env := newTestEnv(scriptedUsage{})
	env.addCustomer("cust-1", "alice@example.com", strPtr("plan-1"))
	env.addPrepaidPlan("plan-1", "Basic Prepaid", decimal.NewFromInt(2), 100, decimal.NewFromInt(200))
	env.addSubscription("sub-1", "cust-1", "plan-1", testNow.AddDate(0, 0, 20))

	resp, err := env.service.SetDueDate(context.Background(), billing.SetDueDateRequest{
		CustomerEmail: "alice@example.com",
		DaysFromNow:   2,
	})
	require.NoError(t, err)

	assert.Equal(t, testNow.AddDate(0, 0, 2).Format(time.RFC3339), resp.DueDate)
	assert.Equal(t, testNow.AddDate(0, 0, 2), env.subscriptions.subscriptions["sub-1"].DueDate)
}

func TestPlanHistory_SkipsOpenInvoicesAndDeduplicates(t *testing.T) {
	env := newTestEnv(scriptedUsage{})
	env.addCustomer("cust-1", "alice@example.com", nil)
	env.addPrepaidPlan("plan-1", "Basic Prepaid", decimal.NewFromInt(2), 100, decimal.NewFromInt(200))
	env.addPostpaidPlan("plan-2", "Heavy Postpaid", decimal.NewFromInt(3), 30, 0)

	ctx := context.Background()
	env.invoices.Create(ctx, billing.Invoice{ID: "inv-1", CustomerID: "cust-1", PlanID: "plan-1", Status: billing.InvoiceStatusPaid, Date: testNow.AddDate(0, 0, -60)})
	env.invoices.Create(ctx, billing.Invoice{ID: "inv-2", CustomerID: "cust-1", PlanID: "plan-1", Status: billing.InvoiceStatusPaid, Date: testNow.AddDate(0, 0, -30)})
	env.invoices.Create(ctx, billing.Invoice{ID: "inv-3", CustomerID: "cust-1", PlanID: "plan-2", Status: billing.InvoiceStatusNotApplicable, Date: testNow.AddDate(0, 0, -10)})
	env.invoices.Create(ctx, billing.Invoice{ID: "inv-4", CustomerID: "cust-1", PlanID: "plan-2", Status: billing.InvoiceStatusNotPaid, Date: testNow})

	entries, err := env.service.PlanHistory(ctx, "alice@example.com")
	require.NoError(t, err)

	require.Len(t, entries, 2)
	names := []string{entries[0].PlanName, entries[1].PlanName}
	assert.Contains(t, names, "Basic Prepaid")
	assert.Contains(t, names, "Heavy Postpaid")
}

func TestGenerateInvoice_PrepaidBillsRemainingBalance(t *testing.T) {
	env := newTestEnv(scriptedUsage{})
	env.addCustomer("cust-1", "alice@example.com", strPtr("plan-1"))
	env.addPrepaidPlan("plan-1", "Basic Prepaid", decimal.NewFromInt(2), 100, decimal.NewFromInt(200))
	env.addSubscription("sub-1", "cust-1", "plan-1", testNow.AddDate(0, 0, 10))

	resp, err := env.service.GenerateInvoice(context.Background(), "alice@example.com")
	require.NoError(t, err)

	assert.Equal(t, billing.InvoiceStatusNotPaid, resp.Status)
	assert.Equal(t, billing.PlanTypePrepaid, resp.PlanType)
	assert.Equal(t, int64(100), resp.Units)
	assert.True(t, resp.Amount.Equal(decimal.NewFromInt(200)), "amount is the remaining balance, got %s", resp.Amount)
}

func TestGenerateInvoice_PostpaidBillsAccruedUsage(t *testing.T) {
	env := newTestEnv(scriptedUsage{})
	env.addCustomer("cust-1", "alice@example.com", strPtr("plan-1"))
	env.addPostpaidPlan("plan-1", "Heavy Postpaid", decimal.NewFromInt(3), 30, 350)
	env.addSubscription("sub-1", "cust-1", "plan-1", testNow.AddDate(0, 0, 10))

	resp, err := env.service.GenerateInvoice(context.Background(), "alice@example.com")
	require.NoError(t, err)

	assert.Equal(t, billing.InvoiceStatusNotPaid, resp.Status)
	assert.Equal(t, int64(350), resp.Units)
	assert.True(t, resp.Amount.Equal(decimal.NewFromInt(1050)), "amount = units x rate, got %s", resp.Amount)
}

func TestGenerateInvoice_RefreshesOpenInvoice(t *testing.T) {
	env := newTestEnv(scriptedUsage{prepaid: 60})
	env.addCustomer("cust-1", "alice@example.com", strPtr("plan-1"))
	env.addPrepaidPlan("plan-1", "Basic Prepaid", decimal.NewFromInt(2), 100, decimal.NewFromInt(200))
	env.addSubscription("sub-1", "cust-1", "plan-1", testNow.AddDate(0, 0, 10))

	ctx := context.Background()
	first, err := env.service.GenerateInvoice(ctx, "alice@example.com")
	require.NoError(t, err)

	_, err = env.service.MeterUsage(ctx, "alice@example.com")
	require.NoError(t, err)

	second, err := env.service.GenerateInvoice(ctx, "alice@example.com")
	require.NoError(t, err)

	// Still one open invoice for the cycle, rebilled at the drawn-down balance
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, env.invoices.countByStatus(billing.InvoiceStatusNotPaid))
	assert.True(t, second.Amount.Equal(decimal.NewFromInt(140)), "got %s", second.Amount)
	stored := env.invoices.invoices[second.ID]
	assert.True(t, stored.Amount.Equal(decimal.NewFromInt(140)))
}

func TestGenerateInvoice_NoActivePlan(t *testing.T) {
	env := newTestEnv(scriptedUsage{})
	env.addCustomer("cust-1", "alice@example.com", nil)

	_, err := env.service.GenerateInvoice(context.Background(), "alice@example.com")
	assert.ErrorIs(t, err, billing.ErrNoActivePlan)
}

func TestGetInvoice_ScopedToCustomer(t *testing.T) {
	env := newTestEnv(scriptedUsage{})
	env.addCustomer("cust-1", "alice@example.com", nil)
	env.invoices.Create(context.Background(), billing.Invoice{
		ID: "inv-1", CustomerID: "cust-2", PlanID: "plan-1",
		Status: billing.InvoiceStatusPaid,
	})

	_, err := env.service.GetInvoice(context.Background(), "alice@example.com", "inv-1")
	assert.ErrorIs(t, err, billing.ErrInvoiceNotFound)
}
