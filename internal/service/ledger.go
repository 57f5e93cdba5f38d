package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"legalpay/internal/errors"
	"legalpay/internal/gateway"
	"legalpay/internal/model"
	"legalpay/internal/repository"
)

// Ledger is the only component that creates or mutates Payment rows.
// Every transition goes through it, so the lifecycle invariants hold no
// matter which flow (init, cancel, status check, notification) triggered
// the write.
type Ledger struct {
	payments repository.PaymentRepository
}

// NewLedger creates a ledger over the payment repository.
func NewLedger(payments repository.PaymentRepository) *Ledger {
	return &Ledger{payments: payments}
}

// CreatePending persists a fresh NEW payment with a newly minted order id.
// Order ids are never reused: a retry after failure means a new row.
func (l *Ledger) CreatePending(ctx context.Context, ownerID uuid.UUID, amount decimal.Decimal, description string) (*model.Payment, error) {
	orderID := uuid.NewString()
	if description == "" {
		// same fallback the gateway receipt uses, so the stored row and the
		// fiscal document carry one description
		description = fmt.Sprintf("Payment for Order %s", orderID)
	}

	payment := &model.Payment{
		OwnerID:     ownerID,
		Amount:      amount,
		OrderID:     orderID,
		Description: description,
		Status:      model.PaymentStatusNew,
	}
	if err := l.payments.Create(ctx, payment); err != nil {
		return nil, fmt.Errorf("create payment: %w", err)
	}
	return payment, nil
}

// RecordInitResult writes the outcome of an Init attempt. Exactly one call is
// expected per attempt, success or failure, so no payment is left silently
// in NEW. A duplicate call on a payment that already holds a remote id is
// refused rather than overwriting it.
func (l *Ledger) RecordInitResult(ctx context.Context, payment *model.Payment, result *gateway.InitResult, initErr error) error {
	if initErr != nil {
		if !model.CanTransition(payment.Status, model.PaymentStatusError) {
			return fmt.Errorf("%w: cannot record init failure on %s payment", errors.ErrInconsistentState, payment.Status)
		}
		payment.Status = model.PaymentStatusError
		return l.payments.Update(ctx, payment)
	}

	if payment.RemotePaymentID != "" {
		return fmt.Errorf("%w: remote payment id already set", errors.ErrInconsistentState)
	}
	if !model.CanTransition(payment.Status, model.PaymentStatusPending) {
		return fmt.Errorf("%w: cannot record init success on %s payment", errors.ErrInconsistentState, payment.Status)
	}

	payment.RemotePaymentID = result.PaymentID
	payment.RemotePaymentURL = result.PaymentURL
	payment.Status = model.PaymentStatusPending
	return l.payments.Update(ctx, payment)
}

// RecordCancelResult applies a gateway Cancel outcome. On refusal the row is
// left untouched and the failure is surfaced to the operator.
func (l *Ledger) RecordCancelResult(ctx context.Context, payment *model.Payment, result *gateway.CancelResult) error {
	if !result.Success {
		return errors.NewGatewayRejected(result.Message, result.Details)
	}
	if !model.CanTransition(payment.Status, model.PaymentStatusCanceled) {
		return fmt.Errorf("%w: cannot cancel %s payment", errors.ErrInconsistentState, payment.Status)
	}
	payment.Status = model.PaymentStatusCanceled
	return l.payments.Update(ctx, payment)
}

// MirrorRemoteStatus maps a remote status onto the local lifecycle and writes
// it if it is a valid forward transition. Stale or intermediate remote
// statuses are informational and leave the row unchanged.
func (l *Ledger) MirrorRemoteStatus(ctx context.Context, payment *model.Payment, remoteStatus string) (bool, error) {
	local, ok := mapRemoteStatus(remoteStatus)
	if !ok || local == payment.Status {
		return false, nil
	}
	if !model.CanTransition(payment.Status, local) {
		return false, nil
	}
	payment.Status = local
	if err := l.payments.Update(ctx, payment); err != nil {
		return false, err
	}
	return true, nil
}

// mapRemoteStatus translates the gateway status vocabulary into the local
// lifecycle. Intermediate remote statuses (FORM_SHOWED, AUTHORIZING, ...)
// have no local counterpart and keep the payment PENDING.
func mapRemoteStatus(remote string) (model.PaymentStatus, bool) {
	switch remote {
	case "CONFIRMED":
		return model.PaymentStatusConfirmed, true
	case "REJECTED", "DEADLINE_EXPIRED", "AUTH_FAIL":
		return model.PaymentStatusRejected, true
	case "CANCELED", "REVERSED":
		return model.PaymentStatusCanceled, true
	case "REFUNDED", "PARTIAL_REFUNDED":
		return model.PaymentStatusRefunded, true
	default:
		return "", false
	}
}
