package main

import (
	"log"
	"net/http"

	_ "legalpay/docs" // swagger docs

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"legalpay/internal/cache"
	"legalpay/internal/config"
	"legalpay/internal/db"
	"legalpay/internal/gateway"
	"legalpay/internal/handler"
	"legalpay/internal/model"
	"legalpay/internal/repository"
	"legalpay/internal/router"
	"legalpay/internal/service"
)

// @title Legal Services Payment API
// @version 1.0
// @description Payment initiation, reconciliation and cancellation against the T-Bank acquiring gateway.
// @host localhost:8080
// @BasePath /api
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	if cfg.GatewayTerminalKey == "" || cfg.GatewaySecretKey == "" {
		log.Println("Warning: gateway credentials not configured, Init calls will be rejected by the gateway")
	}

	e := echo.New()
	e.Use(middleware.RequestID())

	gormDB, err := db.NewMySQL(cfg.MySQLDSN)
	if err != nil {
		log.Fatalf("database init: %v", err)
	}

	if err := gormDB.AutoMigrate(
		&model.Payment{},
		&model.PaymentEvent{},
	); err != nil {
		log.Fatalf("auto-migrate: %v", err)
	}

	cacheClient := cache.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)

	gatewayClient := gateway.NewClient(
		cfg.GatewayBaseURL,
		cfg.GatewayTerminalKey,
		cfg.GatewaySecretKey,
		cfg.GatewayTimeout,
	)

	// Initialize repositories
	paymentRepo := repository.NewPaymentRepository(gormDB)
	eventRepo := repository.NewPaymentEventRepository(gormDB)

	// Initialize services
	ledger := service.NewLedger(paymentRepo)
	paymentService := service.NewPaymentService(
		ledger,
		paymentRepo,
		eventRepo,
		gatewayClient,
		cacheClient,
		cfg.GatewayTimeout,
	)

	// Initialize handlers
	paymentHandler := handler.NewPaymentHandler(paymentService)

	// Register routes
	router.Register(e, cfg, paymentHandler)

	addr := ":" + cfg.ServerPort
	if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server start: %v", err)
	}
}
