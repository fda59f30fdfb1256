package response

import (
	"errors"
	"net/http"

	"github.com/telstar/billing-backend-go/internal/domain/auth"
	"github.com/telstar/billing-backend-go/internal/domain/billing"
	"github.com/telstar/billing-backend-go/internal/domain/customer"
	"github.com/telstar/billing-backend-go/internal/pkg/validator"
)

// HandleError maps domain errors to HTTP responses
func HandleError(w http.ResponseWriter, err error) {
	// Check if it's a validation error
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		ValidationError(w, validationErrs.ToMap())
		return
	}

	// Auth domain errors
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		Unauthorized(w, err.Error())
	case errors.Is(err, auth.ErrInvalidToken):
		Unauthorized(w, "Invalid token")
	case errors.Is(err, auth.ErrTokenExpired):
		Unauthorized(w, "Token expired")
	case errors.Is(err, auth.ErrRefreshTokenRevoked):
		Unauthorized(w, "Refresh token revoked")
	case errors.Is(err, auth.ErrRefreshTokenCookieNotFound),
		errors.Is(err, auth.ErrRefreshTokenCookieEmpty):
		Unauthorized(w, "Refresh token cookie missing")

	// Customer domain errors
	case errors.Is(err, customer.ErrCustomerNotFound):
		NotFound(w, "Customer not found")
	case errors.Is(err, customer.ErrEmailExists):
		Conflict(w, "Email already registered")
	case errors.Is(err, customer.ErrAdminRequired):
		Forbidden(w, "Admin privilege required")

	// Plan catalog errors
	case errors.Is(err, billing.ErrPlanNotFound):
		NotFound(w, "Plan not found")
	case errors.Is(err, billing.ErrPlanNameExists):
		Conflict(w, "Plan name already exists")
	case errors.Is(err, billing.ErrPlanTypeMismatch):
		BadRequest(w, "Plan type does not match the requested plan", nil)
	case errors.Is(err, billing.ErrInvalidPlanVariant):
		BadRequest(w, "Plan has no usable variant", nil)
	case errors.Is(err, billing.ErrInvalidBillingCycle):
		BadRequest(w, "Billing cycle must be a positive number of days", nil)

	// Subscription errors
	case errors.Is(err, billing.ErrSubscriptionNotFound):
		NotFound(w, "Subscription not found")
	case errors.Is(err, billing.ErrNoActivePlan):
		NotFound(w, "Customer has no active plan")
	case errors.Is(err, billing.ErrAlreadySubscribed):
		Conflict(w, "Customer already has an active plan")

	// Invoice errors
	case errors.Is(err, billing.ErrInvoiceNotFound):
		NotFound(w, "Invoice not found")
	case errors.Is(err, billing.ErrInvoiceAlreadyPaid):
		Conflict(w, "Invoice has already been paid")
	case errors.Is(err, billing.ErrInvoiceNotPayable):
		BadRequest(w, "Invoice is record-only and cannot be paid", nil)

	// Default
	default:
		InternalServerError(w, "An unexpected error occurred")
	}
}
