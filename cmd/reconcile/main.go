// Command reconcile is the operator tool that audits local payment state
// against the gateway: it reports NEW rows older than the gateway timeout
// (an Init attempt that died without its ledger write) and refreshes PENDING
// rows via GetState. It never retries Init; a fresh attempt is a caller
// decision and requires a new payment.
package main

import (
	"context"
	"log"

	"github.com/joho/godotenv"

	"legalpay/internal/cache"
	"legalpay/internal/config"
	"legalpay/internal/db"
	"legalpay/internal/gateway"
	"legalpay/internal/model"
	"legalpay/internal/repository"
	"legalpay/internal/service"
)

func main() {
	log.Println("Starting reconcile run...")

	_ = godotenv.Load()
	cfg := config.Load()

	gormDB, err := db.NewMySQL(cfg.MySQLDSN)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	log.Println("Connected to database")

	if err := gormDB.AutoMigrate(&model.Payment{}, &model.PaymentEvent{}); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	paymentRepo := repository.NewPaymentRepository(gormDB)
	eventRepo := repository.NewPaymentEventRepository(gormDB)
	cacheClient := cache.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	gatewayClient := gateway.NewClient(
		cfg.GatewayBaseURL,
		cfg.GatewayTerminalKey,
		cfg.GatewaySecretKey,
		cfg.GatewayTimeout,
	)

	ledger := service.NewLedger(paymentRepo)
	paymentService := service.NewPaymentService(
		ledger,
		paymentRepo,
		eventRepo,
		gatewayClient,
		cacheClient,
		cfg.GatewayTimeout,
	)

	ctx := context.Background()

	// Stale NEW rows are anomalies: an Init attempt that never recorded its
	// outcome. Report them for the operator.
	stale, err := paymentService.ListStaleNew(ctx)
	if err != nil {
		log.Fatalf("Failed to list stale payments: %v", err)
	}
	for _, p := range stale {
		log.Printf("ANOMALY: payment %s (order %s) stuck in NEW since %s", p.ID, p.OrderID, p.CreatedAt.Format("2006-01-02 15:04:05"))
	}

	// Refresh every PENDING row from the gateway.
	pending, err := paymentRepo.ListByStatus(ctx, model.PaymentStatusPending)
	if err != nil {
		log.Fatalf("Failed to list pending payments: %v", err)
	}

	mirrored := 0
	failed := 0
	for _, p := range pending {
		refreshed, state, err := paymentService.CheckStatus(ctx, p.ID)
		if err != nil {
			log.Printf("Payment %s: status check failed: %v", p.ID, err)
			failed++
			continue
		}
		if refreshed.Status != model.PaymentStatusPending {
			log.Printf("Payment %s: remote %s, now %s locally", p.ID, state.Status, refreshed.Status)
			mirrored++
		}
	}

	log.Printf("Reconcile completed")
	log.Printf("  - Stale NEW payments reported: %d", len(stale))
	log.Printf("  - Pending payments checked: %d", len(pending))
	log.Printf("  - Status transitions mirrored: %d", mirrored)
	log.Printf("  - Status checks failed: %d", failed)
}
