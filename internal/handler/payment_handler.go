package handler

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"legalpay/internal/auth"
	"legalpay/internal/errors"
	"legalpay/internal/model"
	"legalpay/internal/service"
)

// PaymentHandler handles payment endpoints.
type PaymentHandler struct {
	paymentService service.PaymentService
}

// NewPaymentHandler creates a new payment handler.
func NewPaymentHandler(paymentService service.PaymentService) *PaymentHandler {
	return &PaymentHandler{paymentService: paymentService}
}

// InitPaymentRequest represents a payment initiation request.
type InitPaymentRequest struct {
	Amount      string `json:"amount" validate:"required"`
	Description string `json:"description"`
}

// InitPaymentResponse carries the hosted payment page for the caller.
type InitPaymentResponse struct {
	PaymentURL string `json:"paymentUrl"`
	PaymentID  string `json:"paymentId"`
	OrderID    string `json:"orderId"`
}

// PaymentView is the operator-facing representation of a payment.
type PaymentView struct {
	ID               string `json:"id"`
	OwnerID          string `json:"owner_id"`
	Amount           string `json:"amount"`
	OrderID          string `json:"order_id"`
	RemotePaymentID  string `json:"remote_payment_id,omitempty"`
	RemotePaymentURL string `json:"remote_payment_url,omitempty"`
	Description      string `json:"description"`
	Status           string `json:"status"`
	CreatedAt        string `json:"created_at"`
	UpdatedAt        string `json:"updated_at"`
}

func toPaymentView(p *model.Payment) PaymentView {
	return PaymentView{
		ID:               p.ID.String(),
		OwnerID:          p.OwnerID.String(),
		Amount:           p.Amount.StringFixed(2),
		OrderID:          p.OrderID,
		RemotePaymentID:  p.RemotePaymentID,
		RemotePaymentURL: p.RemotePaymentURL,
		Description:      p.Description,
		Status:           string(p.Status),
		CreatedAt:        p.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
		UpdatedAt:        p.UpdatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
}

// InitPayment godoc
// @Summary Initiate a payment and get the hosted payment page URL
// @Tags payments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body InitPaymentRequest true "Payment data"
// @Success 200 {object} InitPaymentResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 502 {object} errors.ErrorResponse
// @Router /payments/init [post]
func (h *PaymentHandler) InitPayment(c echo.Context) error {
	claims, err := auth.FromContext(c)
	if err != nil {
		return err
	}
	ownerID, err := claims.PrincipalID()
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, errors.ErrorResponse{
			Error: "invalid principal id",
			Code:  "INVALID_UUID",
		})
	}

	var req InitPaymentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, errors.ErrorResponse{
			Error: "invalid request body",
			Code:  "INVALID_REQUEST",
		})
	}

	if err := c.Validate(&req); err != nil {
		httpErr := errors.MapErrorToHTTP(errors.ErrMissingField)
		return echo.NewHTTPError(httpErr.StatusCode, httpErr.ToErrorResponse())
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		httpErr := errors.MapErrorToHTTP(errors.ErrInvalidAmount)
		return echo.NewHTTPError(httpErr.StatusCode, httpErr.ToErrorResponse())
	}

	payment, err := h.paymentService.InitiatePayment(c.Request().Context(), ownerID, claims.Email, amount, req.Description)
	if err != nil {
		httpErr := errors.MapErrorToHTTP(err)
		return echo.NewHTTPError(httpErr.StatusCode, httpErr.ToErrorResponse())
	}

	return c.JSON(http.StatusOK, InitPaymentResponse{
		PaymentURL: payment.RemotePaymentURL,
		PaymentID:  payment.RemotePaymentID,
		OrderID:    payment.OrderID,
	})
}

// ListMyPayments godoc
// @Summary List the caller's payments
// @Tags payments
// @Produce json
// @Security BearerAuth
// @Success 200 {array} PaymentView
// @Failure 401 {object} errors.ErrorResponse
// @Router /payments/mine [get]
func (h *PaymentHandler) ListMyPayments(c echo.Context) error {
	claims, err := auth.FromContext(c)
	if err != nil {
		return err
	}
	ownerID, err := claims.PrincipalID()
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, errors.ErrorResponse{
			Error: "invalid principal id",
			Code:  "INVALID_UUID",
		})
	}

	payments, err := h.paymentService.ListOwnerPayments(c.Request().Context(), ownerID)
	if err != nil {
		httpErr := errors.MapErrorToHTTP(err)
		return echo.NewHTTPError(httpErr.StatusCode, httpErr.ToErrorResponse())
	}

	views := make([]PaymentView, 0, len(payments))
	for i := range payments {
		views = append(views, toPaymentView(&payments[i]))
	}
	return c.JSON(http.StatusOK, views)
}

// ListPayments godoc
// @Summary List all payments (operator)
// @Tags operator
// @Produce json
// @Security BearerAuth
// @Success 200 {array} PaymentView
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Router /payments [get]
func (h *PaymentHandler) ListPayments(c echo.Context) error {
	payments, err := h.paymentService.ListPayments(c.Request().Context())
	if err != nil {
		httpErr := errors.MapErrorToHTTP(err)
		return echo.NewHTTPError(httpErr.StatusCode, httpErr.ToErrorResponse())
	}

	views := make([]PaymentView, 0, len(payments))
	for i := range payments {
		views = append(views, toPaymentView(&payments[i]))
	}
	return c.JSON(http.StatusOK, views)
}

// GetPayment godoc
// @Summary Get one payment (operator)
// @Tags operator
// @Produce json
// @Security BearerAuth
// @Param id path string true "Payment ID"
// @Success 200 {object} PaymentView
// @Failure 400 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /payments/{id} [get]
func (h *PaymentHandler) GetPayment(c echo.Context) error {
	paymentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, errors.ErrorResponse{
			Error: "invalid payment ID",
			Code:  "INVALID_UUID",
		})
	}

	payment, err := h.paymentService.GetPayment(c.Request().Context(), paymentID)
	if err != nil {
		httpErr := errors.MapErrorToHTTP(err)
		return echo.NewHTTPError(httpErr.StatusCode, httpErr.ToErrorResponse())
	}
	return c.JSON(http.StatusOK, toPaymentView(payment))
}

// StatusCheckResponse pairs the refreshed local payment with the raw remote
// envelope the gateway returned.
type StatusCheckResponse struct {
	Payment      PaymentView `json:"payment"`
	RemoteStatus string      `json:"remote_status"`
	Message      string      `json:"message,omitempty"`
}

// CheckStatus godoc
// @Summary Check the remote status of a payment and mirror it locally (operator)
// @Tags operator
// @Produce json
// @Security BearerAuth
// @Param id path string true "Payment ID"
// @Success 200 {object} StatusCheckResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Failure 409 {object} errors.ErrorResponse
// @Failure 502 {object} errors.ErrorResponse
// @Router /payments/{id}/status [post]
func (h *PaymentHandler) CheckStatus(c echo.Context) error {
	paymentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, errors.ErrorResponse{
			Error: "invalid payment ID",
			Code:  "INVALID_UUID",
		})
	}

	payment, state, err := h.paymentService.CheckStatus(c.Request().Context(), paymentID)
	if err != nil {
		httpErr := errors.MapErrorToHTTP(err)
		return echo.NewHTTPError(httpErr.StatusCode, httpErr.ToErrorResponse())
	}

	return c.JSON(http.StatusOK, StatusCheckResponse{
		Payment:      toPaymentView(payment),
		RemoteStatus: state.Status,
		Message:      state.Message,
	})
}

// CancelPaymentRequest optionally carries a partial refund amount in major
// units.
type CancelPaymentRequest struct {
	Amount string `json:"amount"`
}

// CancelPayment godoc
// @Summary Cancel or refund a payment at the gateway (operator)
// @Tags operator
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Payment ID"
// @Param request body CancelPaymentRequest false "Optional partial refund amount"
// @Success 200 {object} PaymentView
// @Failure 400 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Failure 409 {object} errors.ErrorResponse
// @Failure 502 {object} errors.ErrorResponse
// @Router /payments/{id}/cancel [post]
func (h *PaymentHandler) CancelPayment(c echo.Context) error {
	paymentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, errors.ErrorResponse{
			Error: "invalid payment ID",
			Code:  "INVALID_UUID",
		})
	}

	var req CancelPaymentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, errors.ErrorResponse{
			Error: "invalid request body",
			Code:  "INVALID_REQUEST",
		})
	}

	amount := decimal.Zero
	if req.Amount != "" {
		amount, err = decimal.NewFromString(req.Amount)
		if err != nil {
			httpErr := errors.MapErrorToHTTP(errors.ErrInvalidAmount)
			return echo.NewHTTPError(httpErr.StatusCode, httpErr.ToErrorResponse())
		}
	}

	payment, err := h.paymentService.CancelPayment(c.Request().Context(), paymentID, amount)
	if err != nil {
		httpErr := errors.MapErrorToHTTP(err)
		return echo.NewHTTPError(httpErr.StatusCode, httpErr.ToErrorResponse())
	}
	return c.JSON(http.StatusOK, toPaymentView(payment))
}

// ListStalePayments godoc
// @Summary List payments stuck in NEW past the gateway timeout (operator)
// @Tags operator
// @Produce json
// @Security BearerAuth
// @Success 200 {array} PaymentView
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Router /payments/stale [get]
func (h *PaymentHandler) ListStalePayments(c echo.Context) error {
	payments, err := h.paymentService.ListStaleNew(c.Request().Context())
	if err != nil {
		httpErr := errors.MapErrorToHTTP(err)
		return echo.NewHTTPError(httpErr.StatusCode, httpErr.ToErrorResponse())
	}

	views := make([]PaymentView, 0, len(payments))
	for i := range payments {
		views = append(views, toPaymentView(&payments[i]))
	}
	return c.JSON(http.StatusOK, views)
}

// ListPaymentEvents godoc
// @Summary List the audit trail of a payment (operator)
// @Tags operator
// @Produce json
// @Security BearerAuth
// @Param id path string true "Payment ID"
// @Success 200 {array} model.PaymentEvent
// @Failure 400 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /payments/{id}/events [get]
func (h *PaymentHandler) ListPaymentEvents(c echo.Context) error {
	paymentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, errors.ErrorResponse{
			Error: "invalid payment ID",
			Code:  "INVALID_UUID",
		})
	}

	events, err := h.paymentService.ListPaymentEvents(c.Request().Context(), paymentID)
	if err != nil {
		httpErr := errors.MapErrorToHTTP(err)
		return echo.NewHTTPError(httpErr.StatusCode, httpErr.ToErrorResponse())
	}
	return c.JSON(http.StatusOK, events)
}

// HandleNotification godoc
// @Summary Gateway payment notification callback
// @Tags payments
// @Accept json
// @Produce plain
// @Param request body gateway.Notification true "Notification payload"
// @Success 200 {string} string "OK"
// @Failure 400 {object} errors.ErrorResponse
// @Router /payments/notifications [post]
func (h *PaymentHandler) HandleNotification(c echo.Context) error {
	raw := map[string]any{}
	if err := c.Bind(&raw); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, errors.ErrorResponse{
			Error: "invalid request body",
			Code:  "INVALID_REQUEST",
		})
	}

	if err := h.paymentService.HandleNotification(c.Request().Context(), raw); err != nil {
		httpErr := errors.MapErrorToHTTP(err)
		return echo.NewHTTPError(httpErr.StatusCode, httpErr.ToErrorResponse())
	}

	// the gateway retries unless it reads the literal body OK
	return c.String(http.StatusOK, "OK")
}
