package billing

import (
	"time"

	"github.com/telstar/billing-backend-go/internal/domain/billing"
)

const dateLayout = time.RFC3339

func toPlanResponse(plan billing.Plan) billing.PlanResponse {
	resp := billing.PlanResponse{
		ID:               plan.ID,
		Name:             plan.Name,
		Description:      plan.Description,
		RatePerUnit:      plan.RatePerUnit,
		PlanType:         plan.Type,
		BillingCycleDays: plan.BillingCycleDays,
	}
	if plan.Prepaid != nil {
		unitsAvailable := plan.Prepaid.UnitsAvailable
		prepaidBalance := plan.Prepaid.PrepaidBalance
		resp.UnitsAvailable = &unitsAvailable
		resp.PrepaidBalance = &prepaidBalance
	}
	if plan.Postpaid != nil {
		unitsUsed := plan.Postpaid.UnitsUsed
		resp.UnitsUsed = &unitsUsed
	}
	return resp
}

func toSubscriptionResponse(subscription billing.CustomerPlan) billing.SubscriptionResponse {
	return billing.SubscriptionResponse{
		ID:             subscription.ID,
		PlanID:         subscription.PlanID,
		DatePurchased:  subscription.DatePurchased.Format(dateLayout),
		ActivationDate: subscription.ActivationDate.Format(dateLayout),
		DueDate:        subscription.DueDate.Format(dateLayout),
	}
}

func toInvoiceResponse(invoice billing.Invoice) billing.InvoiceResponse {
	return billing.InvoiceResponse{
		ID:           invoice.ID,
		CustomerID:   invoice.CustomerID,
		CustomerName: invoice.CustomerName,
		PlanID:       invoice.PlanID,
		PlanType:     invoice.PlanType,
		Units:        invoice.Units,
		Amount:       invoice.Amount,
		Date:         invoice.Date.Format(dateLayout),
		Status:       invoice.Status,
	}
}
