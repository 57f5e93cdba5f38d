package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"legalpay/internal/auth"
	apperrors "legalpay/internal/errors"
	"legalpay/internal/gateway"
	"legalpay/internal/model"
)

// MockPaymentService is a mock implementation of service.PaymentService.
type MockPaymentService struct {
	mock.Mock
}

func (m *MockPaymentService) InitiatePayment(ctx context.Context, ownerID uuid.UUID, ownerEmail string, amount decimal.Decimal, description string) (*model.Payment, error) {
	args := m.Called(ctx, ownerID, ownerEmail, amount, description)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Payment), args.Error(1)
}

func (m *MockPaymentService) GetPayment(ctx context.Context, id uuid.UUID) (*model.Payment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Payment), args.Error(1)
}

func (m *MockPaymentService) ListPayments(ctx context.Context) ([]model.Payment, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Payment), args.Error(1)
}

func (m *MockPaymentService) ListOwnerPayments(ctx context.Context, ownerID uuid.UUID) ([]model.Payment, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Payment), args.Error(1)
}

func (m *MockPaymentService) ListPaymentEvents(ctx context.Context, id uuid.UUID) ([]model.PaymentEvent, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.PaymentEvent), args.Error(1)
}

func (m *MockPaymentService) CheckStatus(ctx context.Context, id uuid.UUID) (*model.Payment, *gateway.StateResult, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).(*model.Payment), args.Get(1).(*gateway.StateResult), args.Error(2)
}

func (m *MockPaymentService) CancelPayment(ctx context.Context, id uuid.UUID, amount decimal.Decimal) (*model.Payment, error) {
	args := m.Called(ctx, id, amount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Payment), args.Error(1)
}

func (m *MockPaymentService) ListStaleNew(ctx context.Context) ([]model.Payment, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Payment), args.Error(1)
}

func (m *MockPaymentService) HandleNotification(ctx context.Context, raw map[string]any) error {
	args := m.Called(ctx, raw)
	return args.Error(0)
}

// requestValidator mirrors the validator registered by the router so the
// struct tags are exercised the same way they are in production.
type requestValidator struct {
	validate *validator.Validate
}

func (v *requestValidator) Validate(i interface{}) error {
	return v.validate.Struct(i)
}

func newInitContext(t *testing.T, body string, claims *auth.Claims) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()

	e := echo.New()
	e.Validator = &requestValidator{validate: validator.New()}
	req := httptest.NewRequest(http.MethodPost, "/api/payments/init", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if claims != nil {
		c.Set("user", &jwt.Token{Claims: claims})
	}
	return c, rec
}

func callerClaims(ownerID uuid.UUID) *auth.Claims {
	return &auth.Claims{UserID: ownerID.String(), Email: "client@example.com", Role: "client"}
}

func TestInitPayment_Success(t *testing.T) {
	ownerID := uuid.New()
	mockService := new(MockPaymentService)
	mockService.On("InitiatePayment", mock.Anything, ownerID, "client@example.com", decimal.RequireFromString("500.00"), "Consultation").
		Return(&model.Payment{
			ID:               uuid.New(),
			OwnerID:          ownerID,
			Amount:           decimal.RequireFromString("500.00"),
			OrderID:          "order-1",
			RemotePaymentID:  "12345",
			RemotePaymentURL: "https://securepay.example/page/12345",
			Status:           model.PaymentStatusPending,
			CreatedAt:        time.Now(),
			UpdatedAt:        time.Now(),
		}, nil)

	h := NewPaymentHandler(mockService)
	c, rec := newInitContext(t, `{"amount":"500.00","description":"Consultation"}`, callerClaims(ownerID))

	require.NoError(t, h.InitPayment(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp InitPaymentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "https://securepay.example/page/12345", resp.PaymentURL)
	assert.Equal(t, "12345", resp.PaymentID)
	assert.Equal(t, "order-1", resp.OrderID)

	mockService.AssertExpectations(t)
}

func TestInitPayment_Errors(t *testing.T) {
	ownerID := uuid.New()

	tests := []struct {
		name         string
		body         string
		claims       *auth.Claims
		setupService func(*MockPaymentService)
		wantStatus   int
		wantCode     string
	}{
		{
			name:       "missing amount",
			body:       `{"description":"Consultation"}`,
			claims:     callerClaims(ownerID),
			wantStatus: http.StatusBadRequest,
			wantCode:   "MISSING_FIELD",
		},
		{
			name:       "non numeric amount",
			body:       `{"amount":"abc"}`,
			claims:     callerClaims(ownerID),
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_AMOUNT",
		},
		{
			name:   "gateway rejection carries the remote message",
			body:   `{"amount":"500.00"}`,
			claims: callerClaims(ownerID),
			setupService: func(m *MockPaymentService) {
				m.On("InitiatePayment", mock.Anything, ownerID, "client@example.com", decimal.RequireFromString("500.00"), "").
					Return(&model.Payment{Status: model.PaymentStatusError}, apperrors.NewGatewayRejected("Invalid terminal", ""))
			},
			wantStatus: http.StatusBadGateway,
			wantCode:   "GATEWAY_REJECTED",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockPaymentService)
			if tt.setupService != nil {
				tt.setupService(mockService)
			}

			h := NewPaymentHandler(mockService)
			c, _ := newInitContext(t, tt.body, tt.claims)

			err := h.InitPayment(c)
			require.Error(t, err)

			httpErr, ok := err.(*echo.HTTPError)
			require.True(t, ok)
			assert.Equal(t, tt.wantStatus, httpErr.Code)

			resp, ok := httpErr.Message.(apperrors.ErrorResponse)
			require.True(t, ok)
			assert.Equal(t, tt.wantCode, resp.Code)
			if tt.wantCode == "GATEWAY_REJECTED" {
				assert.Equal(t, "Invalid terminal", resp.Error)
			}

			if tt.setupService == nil {
				mockService.AssertNotCalled(t, "InitiatePayment")
			}
		})
	}
}

func TestInitPayment_NoToken(t *testing.T) {
	h := NewPaymentHandler(new(MockPaymentService))
	c, _ := newInitContext(t, `{"amount":"500.00"}`, nil)

	err := h.InitPayment(c)
	require.Error(t, err)

	httpErr, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	assert.Equal(t, http.StatusUnauthorized, httpErr.Code)
}

func TestHandleNotification(t *testing.T) {
	t.Run("valid notification answers OK", func(t *testing.T) {
		mockService := new(MockPaymentService)
		mockService.On("HandleNotification", mock.Anything, mock.AnythingOfType("map[string]interface {}")).Return(nil)

		h := NewPaymentHandler(mockService)

		e := echo.New()
		body := `{"TerminalKey":"terminal","OrderId":"order-1","Status":"CONFIRMED","Success":true,"Token":"t"}`
		req := httptest.NewRequest(http.MethodPost, "/api/payments/notifications", strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)

		require.NoError(t, h.HandleNotification(c))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "OK", rec.Body.String())
	})

	t.Run("invalid signature is a 400", func(t *testing.T) {
		mockService := new(MockPaymentService)
		mockService.On("HandleNotification", mock.Anything, mock.Anything).Return(apperrors.ErrInvalidSignature)

		h := NewPaymentHandler(mockService)

		e := echo.New()
		req := httptest.NewRequest(http.MethodPost, "/api/payments/notifications", strings.NewReader(`{"Token":"bogus"}`))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)

		err := h.HandleNotification(c)
		require.Error(t, err)

		httpErr, ok := err.(*echo.HTTPError)
		require.True(t, ok)
		assert.Equal(t, http.StatusBadRequest, httpErr.Code)
	})
}

func TestCancelPayment_RedundantCancelKeepsTimestamps(t *testing.T) {
	paymentID := uuid.New()
	updatedAt := time.Now().Add(-time.Hour)

	mockService := new(MockPaymentService)
	mockService.On("CancelPayment", mock.Anything, paymentID, decimal.Zero).
		Return(&model.Payment{
			ID:        paymentID,
			OwnerID:   uuid.New(),
			Amount:    decimal.RequireFromString("500.00"),
			Status:    model.PaymentStatusCanceled,
			UpdatedAt: updatedAt,
		}, nil)

	h := NewPaymentHandler(mockService)

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/payments/:id/cancel")
	c.SetParamNames("id")
	c.SetParamValues(paymentID.String())

	require.NoError(t, h.CancelPayment(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var view PaymentView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, "CANCELED", view.Status)
	assert.Equal(t, updatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"), view.UpdatedAt)
}
