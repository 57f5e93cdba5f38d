package router

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	echoSwagger "github.com/swaggo/echo-swagger"

	"legalpay/internal/auth"
	"legalpay/internal/config"
	"legalpay/internal/handler"
)

// Register wires routes and middleware.
func Register(
	e *echo.Echo,
	cfg *config.Config,
	paymentHandler *handler.PaymentHandler,
) {
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	// Add validator
	e.Validator = &CustomValidator{validator: validator.New()}

	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	e.GET("/swagger/*", echoSwagger.WrapHandler)

	api := e.Group("/api")

	// Gateway callback: authenticated by its own signed token, not by JWT.
	api.POST("/payments/notifications", paymentHandler.HandleNotification)

	// Secured routes (require a JWT issued by the auth service)
	secured := api.Group("", echojwt.WithConfig(echojwt.Config{
		SigningKey:  []byte(cfg.JWTSecret),
		TokenLookup: "header:" + echo.HeaderAuthorization,
		NewClaimsFunc: func(c echo.Context) jwt.Claims {
			return new(auth.Claims)
		},
	}))

	// Caller routes
	secured.POST("/payments/init", paymentHandler.InitPayment)
	secured.GET("/payments/mine", paymentHandler.ListMyPayments)

	// Operator routes
	operator := secured.Group("", auth.RequireOperator)
	operator.GET("/payments", paymentHandler.ListPayments)
	operator.GET("/payments/stale", paymentHandler.ListStalePayments)
	operator.GET("/payments/:id", paymentHandler.GetPayment)
	operator.GET("/payments/:id/events", paymentHandler.ListPaymentEvents)
	operator.POST("/payments/:id/status", paymentHandler.CheckStatus)
	operator.POST("/payments/:id/cancel", paymentHandler.CancelPayment)
}

// CustomValidator wraps validator for Echo.
type CustomValidator struct {
	validator *validator.Validate
}

// Validate implements echo.Validator interface.
func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}
