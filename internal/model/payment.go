package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PaymentStatus represents the local status of a payment.
type PaymentStatus string

const (
	// PaymentStatusNew is the initial status, before Init was attempted.
	PaymentStatusNew PaymentStatus = "NEW"
	// PaymentStatusPending means Init succeeded and the hosted payment page
	// is awaiting the payer.
	PaymentStatusPending PaymentStatus = "PENDING"
	// PaymentStatusConfirmed mirrors a confirmed remote payment.
	PaymentStatusConfirmed PaymentStatus = "CONFIRMED"
	// PaymentStatusCanceled mirrors a canceled or reversed remote payment.
	PaymentStatusCanceled PaymentStatus = "CANCELED"
	// PaymentStatusRejected mirrors a remote rejection.
	PaymentStatusRejected PaymentStatus = "REJECTED"
	// PaymentStatusRefunded mirrors a full or partial remote refund.
	PaymentStatusRefunded PaymentStatus = "REFUNDED"
	// PaymentStatusError means the Init attempt failed; the order id is
	// burned and a retry requires a fresh payment.
	PaymentStatusError PaymentStatus = "ERROR"
)

// validTransitions is the forward-only lifecycle. Missing source statuses
// (REJECTED, REFUNDED, ERROR) are terminal.
var validTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentStatusNew:       {PaymentStatusPending, PaymentStatusError},
	PaymentStatusPending:   {PaymentStatusConfirmed, PaymentStatusCanceled, PaymentStatusRejected, PaymentStatusRefunded},
	PaymentStatusConfirmed: {PaymentStatusCanceled, PaymentStatusRefunded},
}

// CanTransition reports whether moving from one status to another is allowed.
func CanTransition(from, to PaymentStatus) bool {
	for _, next := range validTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Payment represents a gateway-backed payment attempt.
// One row corresponds to exactly one Init attempt; order ids are never reused.
type Payment struct {
	ID               uuid.UUID       `json:"id" gorm:"type:char(36);primaryKey"`
	OwnerID          uuid.UUID       `json:"owner_id" gorm:"type:char(36);not null;index"`
	Amount           decimal.Decimal `json:"amount" gorm:"type:decimal(10,2);not null"`
	OrderID          string          `json:"order_id" gorm:"type:char(36);not null;uniqueIndex"`
	RemotePaymentID  string          `json:"remote_payment_id,omitempty" gorm:"type:varchar(100)"`
	RemotePaymentURL string          `json:"remote_payment_url,omitempty" gorm:"type:varchar(500)"`
	Description      string          `json:"description" gorm:"type:text"`
	Status           PaymentStatus   `json:"status" gorm:"type:varchar(20);not null;default:'NEW';index"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// BeforeCreate sets UUID before creating the record.
func (p *Payment) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// IsTerminal reports whether no further transition is possible from the
// payment's current status.
func (p *Payment) IsTerminal() bool {
	return len(validTransitions[p.Status]) == 0
}
