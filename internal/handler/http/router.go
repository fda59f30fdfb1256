package http

import (
	"log/slog"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v3"
	"github.com/go-chi/jwtauth/v5"
	"github.com/telstar/billing-backend-go/internal/handler/http/middleware"
	"github.com/telstar/billing-backend-go/internal/pkg/jwt"
)

func NewRouter(
	JWTService jwt.Service,
	authHandler AuthHandler,
	planHandler PlanHandler,
	billingHandler BillingHandler,
	adminHandler AdminHandler,
) *chi.Mux {
	r := chi.NewRouter()
	logFormat := httplog.SchemaECS.Concise(false)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		ReplaceAttr: logFormat.ReplaceAttr,
	})).With(
		slog.String("app", "telstar-billing"),
		slog.String("version", "v1.0.0"),
		slog.String("env", "development"),
	)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000"},
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		MaxAge:           300,
	}))

	r.Use(httplog.RequestLogger(logger, &httplog.Options{
		Level:  slog.LevelDebug,
		Schema: httplog.SchemaECS,
	}))

	r.Use(chiMiddleware.AllowContentEncoding("application/json"))
	r.Use(chiMiddleware.CleanPath)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/"))

	r.Get("/yo", func(w http.ResponseWriter, r *http.Request) {
		w.Write(([]byte("hello world\n")))
	})

	r.Route("/api/v1", func(r chi.Router) {

		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
			r.Post("/refresh", authHandler.RefreshToken)
			r.Post("/logout", authHandler.Logout)
		})

		// Requires authentication
		r.Group(func(r chi.Router) {
			r.Use(jwtauth.Verifier(JWTService.JWTAuth()))
			r.Use(middleware.AuthRequired(JWTService.JWTAuth()))

			r.Route("/plans", func(r chi.Router) {
				r.Get("/prepaid", planHandler.ListPrepaid)
				r.Get("/postpaid", planHandler.ListPostpaid)
				r.Get("/{planID}", planHandler.Get)
			})

			r.Route("/billing", func(r chi.Router) {
				r.Get("/status", billingHandler.CheckStatus)
				r.Post("/purchase", billingHandler.Purchase)
				r.Get("/history", billingHandler.History)

				r.Route("/invoices", func(r chi.Router) {
					r.Get("/", billingHandler.ListInvoices)
					r.Get("/{invoiceID}", billingHandler.GetInvoice)
					r.Get("/{invoiceID}/download", billingHandler.DownloadInvoice)
					r.Post("/{invoiceID}/pay", billingHandler.Settle)
				})
			})

			// Admin only
			r.Route("/admin", func(r chi.Router) {
				r.Use(middleware.AdminOnly)
				r.Post("/plans", adminHandler.CreatePlan)
				r.Post("/customers", adminHandler.CreateCustomer)
				r.Post("/usage", adminHandler.MeterUsage)
				r.Post("/invoices", adminHandler.GenerateInvoice)
				r.Post("/due-date", adminHandler.SetDueDate)
			})
		})
	})
	return r
}
