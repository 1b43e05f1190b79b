package repository

import (
	"context"
	"time"

	"backend/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type FormRepository interface {
	Create(ctx context.Context, form *model.TaxFreeForm) error
	Update(ctx context.Context, form *model.TaxFreeForm) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.TaxFreeForm, error)
	FindByNumber(ctx context.Context, formNumber string) (*model.TaxFreeForm, error)
	ExistsForInvoice(ctx context.Context, invoiceID uuid.UUID) (bool, error)
	CountRecentByTraveler(ctx context.Context, travelerID uuid.UUID, since time.Time) (int64, error)
	List(ctx context.Context, status string, page, limit int) ([]model.TaxFreeForm, int64, error)
}

type formRepository struct {
	db *gorm.DB
}

func NewFormRepository(db *gorm.DB) FormRepository {
	return &formRepository{db: db}
}

func (r *formRepository) Create(ctx context.Context, form *model.TaxFreeForm) error {
	return GetDB(ctx, r.db).Create(form).Error
}

func (r *formRepository) Update(ctx context.Context, form *model.TaxFreeForm) error {
	return GetDB(ctx, r.db).Save(form).Error
}

func (r *formRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.TaxFreeForm, error) {
	var form model.TaxFreeForm
	err := GetDB(ctx, r.db).
		Preload("Invoice").Preload("Invoice.Items").Preload("Invoice.Merchant").Preload("Traveler").
		First(&form, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &form, nil
}

func (r *formRepository) FindByNumber(ctx context.Context, formNumber string) (*model.TaxFreeForm, error) {
	var form model.TaxFreeForm
	err := GetDB(ctx, r.db).
		Preload("Invoice").Preload("Traveler").
		First(&form, "form_number = ?", formNumber).Error
	if err != nil {
		return nil, err
	}
	return &form, nil
}

// ExistsForInvoice enforces the one-form-per-invoice rule at the business layer
func (r *formRepository) ExistsForInvoice(ctx context.Context, invoiceID uuid.UUID) (bool, error) {
	var count int64
	err := GetDB(ctx, r.db).Model(&model.TaxFreeForm{}).
		Where("invoice_id = ?", invoiceID).
		Count(&count).Error
	return count > 0, err
}

// CountRecentByTraveler feeds the FREQUENT_TRAVELER built-in risk check
func (r *formRepository) CountRecentByTraveler(ctx context.Context, travelerID uuid.UUID, since time.Time) (int64, error) {
	var count int64
	err := GetDB(ctx, r.db).Model(&model.TaxFreeForm{}).
		Where("traveler_id = ? AND created_at >= ?", travelerID, since).
		Count(&count).Error
	return count, err
}

func (r *formRepository) List(ctx context.Context, status string, page, limit int) ([]model.TaxFreeForm, int64, error) {
	var forms []model.TaxFreeForm
	var total int64

	db := GetDB(ctx, r.db).Model(&model.TaxFreeForm{})
	if status != "" {
		db = db.Where("status = ?", status)
	}
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	query := GetDB(ctx, r.db).Preload("Traveler")
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if err := query.Order("created_at desc").Offset(offset).Limit(limit).Find(&forms).Error; err != nil {
		return nil, 0, err
	}

	return forms, total, nil
}
