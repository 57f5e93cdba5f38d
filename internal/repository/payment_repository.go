package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"legalpay/internal/model"
)

// PaymentRepository defines payment persistence operations.
type PaymentRepository interface {
	Create(ctx context.Context, payment *model.Payment) error
	Update(ctx context.Context, payment *model.Payment) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Payment, error)
	FindByOrderID(ctx context.Context, orderID string) (*model.Payment, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]model.Payment, error)
	List(ctx context.Context) ([]model.Payment, error)
	ListByStatus(ctx context.Context, status model.PaymentStatus) ([]model.Payment, error)
	ListStale(ctx context.Context, status model.PaymentStatus, olderThan time.Time) ([]model.Payment, error)
}

type paymentRepository struct {
	db *gorm.DB
}

// NewPaymentRepository creates a new payment repository.
func NewPaymentRepository(db *gorm.DB) PaymentRepository {
	return &paymentRepository{db: db}
}

// Create creates a new payment record.
func (r *paymentRepository) Create(ctx context.Context, payment *model.Payment) error {
	return r.db.WithContext(ctx).Create(payment).Error
}

// Update updates an existing payment record.
func (r *paymentRepository) Update(ctx context.Context, payment *model.Payment) error {
	return r.db.WithContext(ctx).Save(payment).Error
}

// FindByID finds a payment by its local ID.
func (r *paymentRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Payment, error) {
	var payment model.Payment
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&payment).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

// FindByOrderID finds a payment by its order id (the gateway idempotency key).
func (r *paymentRepository) FindByOrderID(ctx context.Context, orderID string) (*model.Payment, error) {
	var payment model.Payment
	if err := r.db.WithContext(ctx).Where("order_id = ?", orderID).First(&payment).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

// ListByOwner lists payments belonging to one principal, newest first.
func (r *paymentRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]model.Payment, error) {
	var payments []model.Payment
	if err := r.db.WithContext(ctx).Where("owner_id = ?", ownerID).Order("created_at DESC").Find(&payments).Error; err != nil {
		return nil, err
	}
	return payments, nil
}

// List lists all payments, newest first.
func (r *paymentRepository) List(ctx context.Context) ([]model.Payment, error) {
	var payments []model.Payment
	if err := r.db.WithContext(ctx).Order("created_at DESC").Find(&payments).Error; err != nil {
		return nil, err
	}
	return payments, nil
}

// ListByStatus lists payments in one status, oldest first.
func (r *paymentRepository) ListByStatus(ctx context.Context, status model.PaymentStatus) ([]model.Payment, error) {
	var payments []model.Payment
	if err := r.db.WithContext(ctx).Where("status = ?", status).Order("created_at ASC").Find(&payments).Error; err != nil {
		return nil, err
	}
	return payments, nil
}

// ListStale lists payments stuck in a status since before olderThan.
func (r *paymentRepository) ListStale(ctx context.Context, status model.PaymentStatus, olderThan time.Time) ([]model.Payment, error) {
	var payments []model.Payment
	if err := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", status, olderThan).
		Order("created_at ASC").
		Find(&payments).Error; err != nil {
		return nil, err
	}
	return payments, nil
}

// PaymentEventRepository defines audit log persistence operations.
type PaymentEventRepository interface {
	Create(ctx context.Context, event *model.PaymentEvent) error
	CreateBatch(ctx context.Context, events []model.PaymentEvent) error
	ListByPayment(ctx context.Context, paymentID uuid.UUID) ([]model.PaymentEvent, error)
}

type paymentEventRepository struct {
	db *gorm.DB
}

// NewPaymentEventRepository creates a new payment event repository.
func NewPaymentEventRepository(db *gorm.DB) PaymentEventRepository {
	return &paymentEventRepository{db: db}
}

// Create creates a new payment event entry.
func (r *paymentEventRepository) Create(ctx context.Context, event *model.PaymentEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

// CreateBatch creates multiple payment event entries in a single transaction.
func (r *paymentEventRepository) CreateBatch(ctx context.Context, events []model.PaymentEvent) error {
	if len(events) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(events, 100).Error
}

// ListByPayment lists the audit trail of one payment, oldest first.
func (r *paymentEventRepository) ListByPayment(ctx context.Context, paymentID uuid.UUID) ([]model.PaymentEvent, error) {
	var events []model.PaymentEvent
	if err := r.db.WithContext(ctx).Where("payment_id = ?", paymentID).Order("created_at ASC").Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}
