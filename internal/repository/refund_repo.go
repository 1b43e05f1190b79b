package repository

import (
	"context"
	"time"

	"backend/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type RefundRepository interface {
	Create(ctx context.Context, refund *model.Refund) error
	Update(ctx context.Context, refund *model.Refund) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Refund, error)
	// FindByIDForUpdate loads the refund with a row lock; call inside a transaction
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Refund, error)
	ExistsForForm(ctx context.Context, formID uuid.UUID) (bool, error)
	// FindDueForRetry returns FAILED refunds with retry budget whose
	// next_retry_at has elapsed, oldest first.
	FindDueForRetry(ctx context.Context, now time.Time) ([]model.Refund, error)
	List(ctx context.Context, status, method string, page, limit int) ([]model.Refund, int64, error)
	CreateAttempt(ctx context.Context, attempt *model.PaymentAttempt) error
	UpdateAttempt(ctx context.Context, attempt *model.PaymentAttempt) error
	ListAttempts(ctx context.Context, refundID uuid.UUID) ([]model.PaymentAttempt, error)
}

type refundRepository struct {
	db *gorm.DB
}

func NewRefundRepository(db *gorm.DB) RefundRepository {
	return &refundRepository{db: db}
}

func (r *refundRepository) Create(ctx context.Context, refund *model.Refund) error {
	return GetDB(ctx, r.db).Create(refund).Error
}

func (r *refundRepository) Update(ctx context.Context, refund *model.Refund) error {
	return GetDB(ctx, r.db).Save(refund).Error
}

func (r *refundRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Refund, error) {
	var refund model.Refund
	err := GetDB(ctx, r.db).
		Preload("Form").Preload("Form.Traveler").
		First(&refund, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &refund, nil
}

func (r *refundRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Refund, error) {
	var refund model.Refund
	err := GetDB(ctx, r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&refund, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &refund, nil
}

func (r *refundRepository) ExistsForForm(ctx context.Context, formID uuid.UUID) (bool, error) {
	var count int64
	err := GetDB(ctx, r.db).Model(&model.Refund{}).
		Where("form_id = ?", formID).
		Count(&count).Error
	return count > 0, err
}

func (r *refundRepository) FindDueForRetry(ctx context.Context, now time.Time) ([]model.Refund, error) {
	var refunds []model.Refund
	err := GetDB(ctx, r.db).
		Where("status = ? AND retry_count < max_retries AND next_retry_at <= ?", model.RefundFailed, now).
		Order("next_retry_at asc").
		Find(&refunds).Error
	return refunds, err
}

func (r *refundRepository) List(ctx context.Context, status, method string, page, limit int) ([]model.Refund, int64, error) {
	var refunds []model.Refund
	var total int64

	filter := func(db *gorm.DB) *gorm.DB {
		if status != "" {
			db = db.Where("status = ?", status)
		}
		if method != "" {
			db = db.Where("method = ?", method)
		}
		return db
	}

	if err := filter(GetDB(ctx, r.db).Model(&model.Refund{})).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	err := filter(GetDB(ctx, r.db).Preload("Form").Preload("Form.Traveler")).
		Order("created_at desc").Offset(offset).Limit(limit).
		Find(&refunds).Error
	if err != nil {
		return nil, 0, err
	}

	return refunds, total, nil
}

func (r *refundRepository) CreateAttempt(ctx context.Context, attempt *model.PaymentAttempt) error {
	return GetDB(ctx, r.db).Create(attempt).Error
}

func (r *refundRepository) UpdateAttempt(ctx context.Context, attempt *model.PaymentAttempt) error {
	return GetDB(ctx, r.db).Save(attempt).Error
}

func (r *refundRepository) ListAttempts(ctx context.Context, refundID uuid.UUID) ([]model.PaymentAttempt, error) {
	var attempts []model.PaymentAttempt
	err := GetDB(ctx, r.db).
		Where("refund_id = ?", refundID).
		Order("started_at desc").
		Find(&attempts).Error
	return attempts, err
}
