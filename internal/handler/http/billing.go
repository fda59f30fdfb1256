package http

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/telstar/billing-backend-go/internal/domain/billing"
	"github.com/telstar/billing-backend-go/internal/handler/http/response"
	"github.com/telstar/billing-backend-go/internal/pkg/pdf"
)

type BillingHandler interface {
	CheckStatus(w http.ResponseWriter, r *http.Request)
	Purchase(w http.ResponseWriter, r *http.Request)
	Settle(w http.ResponseWriter, r *http.Request)
	ListInvoices(w http.ResponseWriter, r *http.Request)
	GetInvoice(w http.ResponseWriter, r *http.Request)
	DownloadInvoice(w http.ResponseWriter, r *http.Request)
	History(w http.ResponseWriter, r *http.Request)
}

type BillingHandlerImpl struct {
	billingService  billing.Service
	invoiceRenderer *pdf.InvoiceRenderer
}

func NewBillingHandler(billingService billing.Service, invoiceRenderer *pdf.InvoiceRenderer) BillingHandler {
	return &BillingHandlerImpl{
		billingService:  billingService,
		invoiceRenderer: invoiceRenderer,
	}
}

// CheckStatus implements BillingHandler.
func (b *BillingHandlerImpl) CheckStatus(w http.ResponseWriter, r *http.Request) {
	email, err := callerEmail(r)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	statusResponse, err := b.billingService.CheckPlanStatus(r.Context(), email)
	if err != nil {
		slog.Error("CheckStatus service error", "error", err)
		response.HandleError(w, err)
		return
	}

	response.Success(w, statusResponse)
}

// Purchase implements BillingHandler.
func (b *BillingHandlerImpl) Purchase(w http.ResponseWriter, r *http.Request) {
	email, err := callerEmail(r)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	var purchaseReq billing.PurchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&purchaseReq); err != nil {
		slog.Error("Purchase decode error", "error", err)
		response.BadRequest(w, "Invalid request format", nil)
		return
	}

	if err := purchaseReq.Validate(); err != nil {
		slog.Error("Purchase validate error", "error", err)
		response.HandleError(w, err)
		return
	}

	purchaseResponse, err := b.billingService.PurchasePlan(r.Context(), email, purchaseReq)
	if err != nil {
		slog.Error("Purchase service error", "error", err)
		response.HandleError(w, err)
		return
	}

	slog.Info("Plan purchased", "plan", purchaseReq.PlanName)
	response.Created(w, "Plan purchased successfully", purchaseResponse)
}

// Settle implements BillingHandler.
func (b *BillingHandlerImpl) Settle(w http.ResponseWriter, r *http.Request) {
	email, err := callerEmail(r)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	invoiceID := chi.URLParam(r, "invoiceID")

	var settleReq billing.SettleRequest
	if err := json.NewDecoder(r.Body).Decode(&settleReq); err != nil {
		slog.Error("Settle decode error", "error", err)
		response.BadRequest(w, "Invalid request format", nil)
		return
	}

	settleResponse, err := b.billingService.SettleInvoice(r.Context(), email, invoiceID, settleReq)
	if err != nil {
		slog.Error("Settle service error", "error", err)
		response.HandleError(w, err)
		return
	}

	slog.Info("Invoice settled", "invoice_id", invoiceID, "renew", settleReq.Renew)
	response.SuccessWithMessage(w, "Invoice paid successfully", settleResponse)
}

// ListInvoices implements BillingHandler.
func (b *BillingHandlerImpl) ListInvoices(w http.ResponseWriter, r *http.Request) {
	email, err := callerEmail(r)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	invoices, err := b.billingService.ListInvoices(r.Context(), email)
	if err != nil {
		slog.Error("ListInvoices service error", "error", err)
		response.HandleError(w, err)
		return
	}

	response.Success(w, invoices)
}

// GetInvoice implements BillingHandler.
func (b *BillingHandlerImpl) GetInvoice(w http.ResponseWriter, r *http.Request) {
	email, err := callerEmail(r)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	invoiceID := chi.URLParam(r, "invoiceID")

	invoice, err := b.billingService.GetInvoice(r.Context(), email, invoiceID)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, invoice)
}

// DownloadInvoice implements BillingHandler.
func (b *BillingHandlerImpl) DownloadInvoice(w http.ResponseWriter, r *http.Request) {
	email, err := callerEmail(r)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	invoiceID := chi.URLParam(r, "invoiceID")

	invoice, plan, err := b.billingService.GetInvoiceForRender(r.Context(), email, invoiceID)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	document, err := b.invoiceRenderer.Render(&invoice, &plan)
	if err != nil {
		slog.Error("DownloadInvoice render error", "error", err, "invoice_id", invoiceID)
		response.InternalServerError(w, "Failed to render invoice")
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=invoice-%s.pdf", invoice.ID))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(document); err != nil {
		slog.Error("DownloadInvoice write error", "error", err)
	}
}

// History implements BillingHandler.
func (b *BillingHandlerImpl) History(w http.ResponseWriter, r *http.Request) {
	email, err := callerEmail(r)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	entries, err := b.billingService.PlanHistory(r.Context(), email)
	if err != nil {
		slog.Error("History service error", "error", err)
		response.HandleError(w, err)
		return
	}

	response.Success(w, entries)
}
