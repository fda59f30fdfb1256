package main

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/telstar/billing-backend-go/internal/config"
	"github.com/telstar/billing-backend-go/internal/domain/billing"
	"github.com/telstar/billing-backend-go/internal/fixtures"
	appHTTP "github.com/telstar/billing-backend-go/internal/handler/http"
	"github.com/telstar/billing-backend-go/internal/pkg/cron"
	"github.com/telstar/billing-backend-go/internal/pkg/database"
	"github.com/telstar/billing-backend-go/internal/pkg/jwt"
	"github.com/telstar/billing-backend-go/internal/pkg/pdf"
	"github.com/telstar/billing-backend-go/internal/repository/postgresql"
	serviceAuth "github.com/telstar/billing-backend-go/internal/service/auth"
	serviceBilling "github.com/telstar/billing-backend-go/internal/service/billing"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Println("Error loading config:", err)
		return
	}

	dsn := cfg.DatabaseURL()
	db, err := database.NewPostgreSQLDB(dsn)
	if err != nil {
		fmt.Println("Error connecting to database:", err)
		return
	}
	defer db.Close()

	customerRepo := postgresql.NewCustomerRepository(db)
	planRepo := postgresql.NewPlanRepository(db)
	customerPlanRepo := postgresql.NewCustomerPlanRepository(db)
	invoiceRepo := postgresql.NewInvoiceRepository(db)
	JWTRepository := postgresql.NewJWTRepository(db)

	if err := fixtures.SeedDefaultPlans(context.Background(), planRepo); err != nil {
		log.Fatal("Failed to seed plan catalog: ", err)
	}

	JWTService := jwt.NewJWTService(cfg.JWT.Secret, cfg.JWT.AccessExpiration, cfg.JWT.RefreshExpiration)
	usageSimulator := billing.NewRandomUsage(rand.New(rand.NewSource(time.Now().UnixNano())))
	invoiceRenderer := pdf.NewInvoiceRenderer(cfg.Billing.CompanyName)

	authService := serviceAuth.NewAuthService(db, customerRepo, JWTService, JWTRepository)
	billingService := serviceBilling.NewBillingService(db, customerRepo, planRepo, customerPlanRepo, invoiceRepo, usageSimulator)

	authHandler := appHTTP.NewAuthHandler(JWTService, authService)
	planHandler := appHTTP.NewPlanHandler(billingService)
	billingHandler := appHTTP.NewBillingHandler(billingService, invoiceRenderer)
	adminHandler := appHTTP.NewAdminHandler(billingService, authService)

	router := appHTTP.NewRouter(
		JWTService,
		authHandler,
		planHandler,
		billingHandler,
		adminHandler,
	)

	scheduler := cron.NewScheduler()
	billingJobs := cron.NewBillingJobs(billingService)
	billingJobs.RegisterJobs(scheduler, cfg.Billing.SweepInterval)
	scheduler.Start()
	defer scheduler.Stop()

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.App.Port),
		Handler: router,
	}

	go func() {
		fmt.Printf("Server running at http://localhost%s\n", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Println("Server error:", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	fmt.Println("Shutting down...")
	if err := server.Close(); err != nil {
		fmt.Println("Server close error:", err)
	}
}
