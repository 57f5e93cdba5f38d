package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"legalpay/internal/cache"
	"legalpay/internal/errors"
	"legalpay/internal/gateway"
	"legalpay/internal/model"
	"legalpay/internal/repository"
)

const paymentStateCacheTTL = 30 * time.Second

// GatewayClient is the slice of the gateway API the service depends on.
type GatewayClient interface {
	InitPayment(ctx context.Context, params gateway.InitParams) (*gateway.InitResult, error)
	CheckStatus(ctx context.Context, remotePaymentID string) (*gateway.StateResult, error)
	CancelPayment(ctx context.Context, remotePaymentID string, amount decimal.Decimal) (*gateway.CancelResult, error)
	VerifyNotification(raw map[string]any) bool
}

// PaymentService drives the payment lifecycle: initiation for callers,
// status check / cancel for operators, notification mirroring for the
// gateway callback.
type PaymentService interface {
	InitiatePayment(ctx context.Context, ownerID uuid.UUID, ownerEmail string, amount decimal.Decimal, description string) (*model.Payment, error)
	GetPayment(ctx context.Context, id uuid.UUID) (*model.Payment, error)
	ListPayments(ctx context.Context) ([]model.Payment, error)
	ListOwnerPayments(ctx context.Context, ownerID uuid.UUID) ([]model.Payment, error)
	ListPaymentEvents(ctx context.Context, id uuid.UUID) ([]model.PaymentEvent, error)
	CheckStatus(ctx context.Context, id uuid.UUID) (*model.Payment, *gateway.StateResult, error)
	CancelPayment(ctx context.Context, id uuid.UUID, amount decimal.Decimal) (*model.Payment, error)
	ListStaleNew(ctx context.Context) ([]model.Payment, error)
	HandleNotification(ctx context.Context, raw map[string]any) error
}

type paymentService struct {
	ledger     *Ledger
	payments   repository.PaymentRepository
	events     repository.PaymentEventRepository
	gateway    GatewayClient
	cache      *cache.Client
	staleAfter time.Duration
	// Mutex map for per-payment locking
	paymentMutexes sync.Map
	// Channel for async audit logging
	eventChannel chan model.PaymentEvent
}

// NewPaymentService creates a new payment service. staleAfter is the window
// after which a NEW payment counts as an anomaly (normally the gateway
// request timeout).
func NewPaymentService(
	ledger *Ledger,
	payments repository.PaymentRepository,
	events repository.PaymentEventRepository,
	gatewayClient GatewayClient,
	cacheClient *cache.Client,
	staleAfter time.Duration,
) PaymentService {
	service := &paymentService{
		ledger:       ledger,
		payments:     payments,
		events:       events,
		gateway:      gatewayClient,
		cache:        cacheClient,
		staleAfter:   staleAfter,
		eventChannel: make(chan model.PaymentEvent, 100),
	}

	// Start async audit worker
	go service.eventWorker(context.Background())

	return service
}

// getMutex returns a mutex for a specific payment ID.
func (s *paymentService) getMutex(paymentID uuid.UUID) *sync.Mutex {
	value, _ := s.paymentMutexes.LoadOrStore(paymentID.String(), &sync.Mutex{})
	return value.(*sync.Mutex)
}

// eventWorker persists audit events asynchronously in small batches.
func (s *paymentService) eventWorker(ctx context.Context) {
	batch := make([]model.PaymentEvent, 0, 10)
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-s.eventChannel:
			if !ok {
				if len(batch) > 0 {
					_ = s.events.CreateBatch(ctx, batch)
				}
				return
			}
			batch = append(batch, event)
			if len(batch) >= 10 {
				_ = s.events.CreateBatch(ctx, batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				_ = s.events.CreateBatch(ctx, batch)
				batch = batch[:0]
			}
		case <-ctx.Done():
			return
		}
	}
}

// recordEvent queues an audit entry, falling back to a synchronous write
// when the channel is full.
func (s *paymentService) recordEvent(ctx context.Context, paymentID uuid.UUID, status model.PaymentStatus, detail string) {
	event := model.PaymentEvent{
		PaymentID: paymentID,
		Status:    status,
		Detail:    detail,
	}
	select {
	case s.eventChannel <- event:
	default:
		_ = s.events.Create(ctx, &event)
	}
}

// InitiatePayment creates a NEW payment row, runs the gateway Init call and
// records its outcome. Whatever Init does, the row ends up PENDING or ERROR;
// it never stays NEW past this call.
func (s *paymentService) InitiatePayment(ctx context.Context, ownerID uuid.UUID, ownerEmail string, amount decimal.Decimal, description string) (*model.Payment, error) {
	// Local validation happens before any row exists.
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, errors.ErrInvalidAmount
	}

	payment, err := s.ledger.CreatePending(ctx, ownerID, amount, description)
	if err != nil {
		return nil, err
	}

	// The stored row is the source of truth for what the gateway is told, so
	// the fiscal receipt and the audited description can never disagree.
	result, initErr := s.gateway.InitPayment(ctx, gateway.InitParams{
		Amount:      amount,
		OrderID:     payment.OrderID,
		Description: payment.Description,
		CustomerKey: ownerID.String(),
		Email:       ownerEmail,
	})

	// Exactly one ledger write per attempt, success or failure.
	detail := ""
	if initErr != nil {
		detail = initErr.Error()
	}
	if recordErr := s.ledger.RecordInitResult(ctx, payment, result, initErr); recordErr != nil {
		s.recordEvent(ctx, payment.ID, payment.Status, fmt.Sprintf("record init result: %v", recordErr))
		return payment, recordErr
	}
	s.recordEvent(ctx, payment.ID, payment.Status, detail)

	if initErr != nil {
		return payment, initErr
	}
	return payment, nil
}

// GetPayment fetches one payment by local id.
func (s *paymentService) GetPayment(ctx context.Context, id uuid.UUID) (*model.Payment, error) {
	payment, err := s.payments.FindByID(ctx, id)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.ErrPaymentNotFound
		}
		return nil, err
	}
	return payment, nil
}

// ListPayments lists every payment (operator view).
func (s *paymentService) ListPayments(ctx context.Context) ([]model.Payment, error) {
	return s.payments.List(ctx)
}

// ListOwnerPayments lists payments belonging to the calling principal.
func (s *paymentService) ListOwnerPayments(ctx context.Context, ownerID uuid.UUID) ([]model.Payment, error) {
	return s.payments.ListByOwner(ctx, ownerID)
}

// ListPaymentEvents returns the audit trail of one payment.
func (s *paymentService) ListPaymentEvents(ctx context.Context, id uuid.UUID) ([]model.PaymentEvent, error) {
	if _, err := s.GetPayment(ctx, id); err != nil {
		return nil, err
	}
	return s.events.ListByPayment(ctx, id)
}

func (s *paymentService) stateCacheKey(remotePaymentID string) string {
	return fmt.Sprintf("payment:state:%s", remotePaymentID)
}

// CheckStatus asks the gateway for the remote state of a payment and mirrors
// it locally when it maps to a forward transition. The raw envelope is
// returned so the operator sees exactly what the gateway said.
func (s *paymentService) CheckStatus(ctx context.Context, id uuid.UUID) (*model.Payment, *gateway.StateResult, error) {
	payment, err := s.GetPayment(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if payment.RemotePaymentID == "" {
		return nil, nil, fmt.Errorf("%w: payment has no remote payment id", errors.ErrInconsistentState)
	}

	state, err := s.fetchState(ctx, payment.RemotePaymentID)
	if err != nil {
		return nil, nil, err
	}

	mutex := s.getMutex(payment.ID)
	mutex.Lock()
	defer mutex.Unlock()

	// A concurrent flow may have committed a transition while the gateway
	// call was in flight; mirror against the current row, not the snapshot.
	payment, err = s.GetPayment(ctx, payment.ID)
	if err != nil {
		return nil, nil, err
	}

	changed, err := s.ledger.MirrorRemoteStatus(ctx, payment, state.Status)
	if err != nil {
		return nil, nil, err
	}
	if changed {
		s.recordEvent(ctx, payment.ID, payment.Status, fmt.Sprintf("mirrored remote status %s", state.Status))
	}
	return payment, state, nil
}

// fetchState reads the remote envelope through a short-lived cache so
// repeated operator checks do not hammer the gateway.
func (s *paymentService) fetchState(ctx context.Context, remotePaymentID string) (*gateway.StateResult, error) {
	key := s.stateCacheKey(remotePaymentID)
	if data, _ := s.cache.Get(ctx, key); data != nil {
		var cached gateway.StateResult
		if err := json.Unmarshal(data, &cached); err == nil {
			return &cached, nil
		}
	}

	state, err := s.gateway.CheckStatus(ctx, remotePaymentID)
	if err != nil {
		return nil, err
	}

	if payload, err := json.Marshal(state); err == nil {
		_ = s.cache.Set(ctx, key, payload, paymentStateCacheTTL)
	}
	return state, nil
}

// CancelPayment voids or refunds a payment at the gateway and marks it
// CANCELED locally. A payment that is already CANCELED is a no-op: the
// gateway is not called again and updated_at stays put.
func (s *paymentService) CancelPayment(ctx context.Context, id uuid.UUID, amount decimal.Decimal) (*model.Payment, error) {
	// Fetch and validate under the payment's mutex so a concurrently
	// mirrored transition cannot invalidate the checks below.
	mutex := s.getMutex(id)
	mutex.Lock()
	defer mutex.Unlock()

	payment, err := s.GetPayment(ctx, id)
	if err != nil {
		return nil, err
	}
	if payment.RemotePaymentID == "" {
		return nil, fmt.Errorf("%w: payment has no remote payment id", errors.ErrInconsistentState)
	}
	if payment.Status == model.PaymentStatusCanceled {
		// redundant cancel, skip before touching the gateway
		return payment, nil
	}
	if !model.CanTransition(payment.Status, model.PaymentStatusCanceled) {
		return nil, fmt.Errorf("%w: cannot cancel %s payment", errors.ErrInconsistentState, payment.Status)
	}

	result, err := s.gateway.CancelPayment(ctx, payment.RemotePaymentID, amount)
	if err != nil {
		s.recordEvent(ctx, payment.ID, payment.Status, fmt.Sprintf("cancel failed: %v", err))
		return nil, err
	}

	if err := s.ledger.RecordCancelResult(ctx, payment, result); err != nil {
		s.recordEvent(ctx, payment.ID, payment.Status, fmt.Sprintf("cancel refused: %v", err))
		return nil, err
	}

	_ = s.cache.Delete(ctx, s.stateCacheKey(payment.RemotePaymentID))
	s.recordEvent(ctx, payment.ID, payment.Status, "")
	return payment, nil
}

// ListStaleNew lists payments stuck in NEW past the gateway timeout window.
// Such rows mean an Init attempt died without its ledger write; they are
// reported for the operator, never retried automatically.
func (s *paymentService) ListStaleNew(ctx context.Context) ([]model.Payment, error) {
	return s.payments.ListStale(ctx, model.PaymentStatusNew, time.Now().Add(-s.staleAfter))
}

// HandleNotification verifies and applies a gateway callback. The signature
// is checked before anything touches the ledger.
func (s *paymentService) HandleNotification(ctx context.Context, raw map[string]any) error {
	if !s.gateway.VerifyNotification(raw) {
		return errors.ErrInvalidSignature
	}

	notification, err := gateway.ParseNotification(raw)
	if err != nil {
		return fmt.Errorf("parse notification: %w", err)
	}

	payment, err := s.payments.FindByOrderID(ctx, notification.OrderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return errors.ErrPaymentNotFound
		}
		return err
	}

	mutex := s.getMutex(payment.ID)
	mutex.Lock()
	defer mutex.Unlock()

	// Same rule as CheckStatus: a transition committed between the lookup
	// and the lock must not be overwritten from a stale copy.
	payment, err = s.GetPayment(ctx, payment.ID)
	if err != nil {
		return err
	}

	changed, err := s.ledger.MirrorRemoteStatus(ctx, payment, notification.Status)
	if err != nil {
		return err
	}
	if changed {
		s.recordEvent(ctx, payment.ID, payment.Status, fmt.Sprintf("notification status %s", notification.Status))
		_ = s.cache.Delete(ctx, s.stateCacheKey(payment.RemotePaymentID))
	}
	return nil
}
