package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PaymentEvent is an append-only audit entry for a payment transition.
// Every Init attempt, status mirror and cancel is recorded regardless of
// outcome, so a failed attempt stays distinguishable from one never made.
type PaymentEvent struct {
	ID        uuid.UUID     `json:"id" gorm:"type:char(36);primaryKey"`
	PaymentID uuid.UUID     `json:"payment_id" gorm:"type:char(36);not null;index"`
	Status    PaymentStatus `json:"status" gorm:"type:varchar(20);not null;index"`
	Detail    string        `json:"detail,omitempty" gorm:"type:text"`
	CreatedAt time.Time     `json:"created_at"`

	// Relations
	Payment Payment `json:"-" gorm:"foreignKey:PaymentID"`
}

// BeforeCreate sets UUID before creating the record.
func (e *PaymentEvent) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
