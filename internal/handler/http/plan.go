package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/telstar/billing-backend-go/internal/domain/billing"
	"github.com/telstar/billing-backend-go/internal/handler/http/response"
)

type PlanHandler interface {
	ListPrepaid(w http.ResponseWriter, r *http.Request)
	ListPostpaid(w http.ResponseWriter, r *http.Request)
	Get(w http.ResponseWriter, r *http.Request)
}

type PlanHandlerImpl struct {
	billingService billing.Service
}

func NewPlanHandler(billingService billing.Service) PlanHandler {
	return &PlanHandlerImpl{billingService: billingService}
}

// ListPrepaid implements PlanHandler.
func (p *PlanHandlerImpl) ListPrepaid(w http.ResponseWriter, r *http.Request) {
	plans, err := p.billingService.ListPlans(r.Context(), billing.PlanTypePrepaid)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.Success(w, plans)
}

// ListPostpaid implements PlanHandler.
func (p *PlanHandlerImpl) ListPostpaid(w http.ResponseWriter, r *http.Request) {
	plans, err := p.billingService.ListPlans(r.Context(), billing.PlanTypePostpaid)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.Success(w, plans)
}

// Get implements PlanHandler.
func (p *PlanHandlerImpl) Get(w http.ResponseWriter, r *http.Request) {
	planID := chi.URLParam(r, "planID")

	plan, err := p.billingService.GetPlan(r.Context(), planID)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.Success(w, plan)
}
