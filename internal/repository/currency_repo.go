package repository

import (
	"context"

	"backend/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type CurrencyRepository interface {
	Create(ctx context.Context, c *model.Currency) error
	Update(ctx context.Context, c *model.Currency) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Currency, error)
	FindByCode(ctx context.Context, code string) (*model.Currency, error)
	FindActiveByCode(ctx context.Context, code string) (*model.Currency, error)
	FindBase(ctx context.Context) (*model.Currency, error)
	ListActive(ctx context.Context) ([]model.Currency, error)
	List(ctx context.Context) ([]model.Currency, error)
	AppendHistory(ctx context.Context, h *model.ExchangeRateHistory) error
	History(ctx context.Context, currencyID uuid.UUID, limit int) ([]model.ExchangeRateHistory, error)
}

type currencyRepository struct {
	db *gorm.DB
}

func NewCurrencyRepository(db *gorm.DB) CurrencyRepository {
	return &currencyRepository{db: db}
}

func (r *currencyRepository) Create(ctx context.Context, c *model.Currency) error {
	return GetDB(ctx, r.db).Create(c).Error
}

func (r *currencyRepository) Update(ctx context.Context, c *model.Currency) error {
	return GetDB(ctx, r.db).Save(c).Error
}

func (r *currencyRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Currency, error) {
	var c model.Currency
	if err := GetDB(ctx, r.db).First(&c, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *currencyRepository) FindByCode(ctx context.Context, code string) (*model.Currency, error) {
	var c model.Currency
	if err := GetDB(ctx, r.db).First(&c, "code = ?", code).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// FindActiveByCode resolves a payout currency; inactive currencies are never
// selectable for new refunds.
func (r *currencyRepository) FindActiveByCode(ctx context.Context, code string) (*model.Currency, error) {
	var c model.Currency
	if err := GetDB(ctx, r.db).First(&c, "code = ? AND is_active = ?", code, true).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *currencyRepository) FindBase(ctx context.Context) (*model.Currency, error) {
	var c model.Currency
	if err := GetDB(ctx, r.db).First(&c, "is_base_currency = ?", true).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *currencyRepository) ListActive(ctx context.Context) ([]model.Currency, error) {
	var currencies []model.Currency
	err := GetDB(ctx, r.db).
		Where("is_active = ?", true).
		Order("is_base_currency desc, code asc").
		Find(&currencies).Error
	return currencies, err
}

func (r *currencyRepository) List(ctx context.Context) ([]model.Currency, error) {
	var currencies []model.Currency
	err := GetDB(ctx, r.db).Order("is_base_currency desc, code asc").Find(&currencies).Error
	return currencies, err
}

func (r *currencyRepository) AppendHistory(ctx context.Context, h *model.ExchangeRateHistory) error {
	return GetDB(ctx, r.db).Create(h).Error
}

func (r *currencyRepository) History(ctx context.Context, currencyID uuid.UUID, limit int) ([]model.ExchangeRateHistory, error) {
	var history []model.ExchangeRateHistory
	err := GetDB(ctx, r.db).
		Where("currency_id = ?", currencyID).
		Order("changed_at desc").
		Limit(limit).
		Find(&history).Error
	return history, err
}
