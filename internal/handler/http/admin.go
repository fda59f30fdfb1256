package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/telstar/billing-backend-go/internal/domain/auth"
	"github.com/telstar/billing-backend-go/internal/domain/billing"
	"github.com/telstar/billing-backend-go/internal/handler/http/response"
)

// AdminHandler exposes the back-office levers: catalog management, customer
// onboarding and the test hooks that force metering or move a due date.
type AdminHandler interface {
	CreatePlan(w http.ResponseWriter, r *http.Request)
	CreateCustomer(w http.ResponseWriter, r *http.Request)
	MeterUsage(w http.ResponseWriter, r *http.Request)
	GenerateInvoice(w http.ResponseWriter, r *http.Request)
	SetDueDate(w http.ResponseWriter, r *http.Request)
}

type AdminHandlerImpl struct {
	billingService billing.Service
	authService    auth.AuthService
}

func NewAdminHandler(billingService billing.Service, authService auth.AuthService) AdminHandler {
	return &AdminHandlerImpl{
		billingService: billingService,
		authService:    authService,
	}
}

// CreatePlan implements AdminHandler.
func (a *AdminHandlerImpl) CreatePlan(w http.ResponseWriter, r *http.Request) {
	var createReq billing.CreatePlanRequest
	if err := json.NewDecoder(r.Body).Decode(&createReq); err != nil {
		slog.Error("CreatePlan decode error", "error", err)
		response.BadRequest(w, "Invalid request format", nil)
		return
	}

	if err := createReq.Validate(); err != nil {
		slog.Error("CreatePlan validate error", "error", err)
		response.HandleError(w, err)
		return
	}

	plan, err := a.billingService.CreatePlan(r.Context(), createReq)
	if err != nil {
		slog.Error("CreatePlan service error", "error", err)
		response.HandleError(w, err)
		return
	}

	slog.Info("Plan created", "plan", plan.Name, "type", plan.PlanType)
	response.Created(w, "Plan created successfully", plan)
}

// CreateCustomer implements AdminHandler.
func (a *AdminHandlerImpl) CreateCustomer(w http.ResponseWriter, r *http.Request) {
	var registerReq auth.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&registerReq); err != nil {
		slog.Error("CreateCustomer decode error", "error", err)
		response.BadRequest(w, "Invalid request format", nil)
		return
	}

	if err := registerReq.Validate(); err != nil {
		slog.Error("CreateCustomer validate error", "error", err)
		response.HandleError(w, err)
		return
	}

	// Onboarding through the back office issues no session tokens
	if _, err := a.authService.Register(r.Context(), registerReq); err != nil {
		slog.Error("CreateCustomer service error", "error", err)
		response.HandleError(w, err)
		return
	}

	slog.Info("Customer created", "email", registerReq.Email)
	response.Created(w, "Customer created successfully", nil)
}

// MeterUsage implements AdminHandler.
func (a *AdminHandlerImpl) MeterUsage(w http.ResponseWriter, r *http.Request) {
	var meterReq struct {
		CustomerEmail string `json:"customer_email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&meterReq); err != nil {
		slog.Error("MeterUsage decode error", "error", err)
		response.BadRequest(w, "Invalid request format", nil)
		return
	}
	if meterReq.CustomerEmail == "" {
		response.BadRequest(w, "customer_email is required", nil)
		return
	}

	usageResponse, err := a.billingService.MeterUsage(r.Context(), meterReq.CustomerEmail)
	if err != nil {
		slog.Error("MeterUsage service error", "error", err)
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Usage recorded", usageResponse)
}

// GenerateInvoice implements AdminHandler.
func (a *AdminHandlerImpl) GenerateInvoice(w http.ResponseWriter, r *http.Request) {
	var generateReq struct {
		CustomerEmail string `json:"customer_email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&generateReq); err != nil {
		slog.Error("GenerateInvoice decode error", "error", err)
		response.BadRequest(w, "Invalid request format", nil)
		return
	}
	if generateReq.CustomerEmail == "" {
		response.BadRequest(w, "customer_email is required", nil)
		return
	}

	invoice, err := a.billingService.GenerateInvoice(r.Context(), generateReq.CustomerEmail)
	if err != nil {
		slog.Error("GenerateInvoice service error", "error", err)
		response.HandleError(w, err)
		return
	}

	slog.Info("Invoice generated", "email", generateReq.CustomerEmail, "invoice_id", invoice.ID)
	response.Created(w, "Invoice generated successfully", invoice)
}

// SetDueDate implements AdminHandler.
func (a *AdminHandlerImpl) SetDueDate(w http.ResponseWriter, r *http.Request) {
	var dueDateReq billing.SetDueDateRequest
	if err := json.NewDecoder(r.Body).Decode(&dueDateReq); err != nil {
		slog.Error("SetDueDate decode error", "error", err)
		response.BadRequest(w, "Invalid request format", nil)
		return
	}

	if err := dueDateReq.Validate(); err != nil {
		slog.Error("SetDueDate validate error", "error", err)
		response.HandleError(w, err)
		return
	}

	subscription, err := a.billingService.SetDueDate(r.Context(), dueDateReq)
	if err != nil {
		slog.Error("SetDueDate service error", "error", err)
		response.HandleError(w, err)
		return
	}

	slog.Info("Due date moved", "email", dueDateReq.CustomerEmail, "days_from_now", dueDateReq.DaysFromNow)
	response.SuccessWithMessage(w, "Due date updated", subscription)
}
