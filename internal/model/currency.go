package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// BaseCurrencyCode is the reference currency all monetary computation is anchored to
const BaseCurrencyCode = "CDF"

// Currency holds a payout currency and its exchange rate against the base
// currency: 1 unit of base = ExchangeRate units of this currency. Exactly one
// currency carries IsBaseCurrency = true and its rate is always exactly 1.
type Currency struct {
	ID     uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Code   string    `gorm:"type:varchar(3);uniqueIndex;not null" json:"code"` // ISO 4217
	Name   string    `gorm:"type:varchar(100);not null" json:"name"`
	Symbol string    `gorm:"type:varchar(10)" json:"symbol"`

	ExchangeRate decimal.Decimal `gorm:"type:decimal(20,6);not null;default:1.000000" json:"exchange_rate"`

	IsBaseCurrency bool `gorm:"not null;default:false;index" json:"is_base_currency"`
	IsActive       bool `gorm:"not null;default:true;index" json:"is_active"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (c *Currency) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// ConvertFromBase converts a base-currency amount into this currency, rounded
// to 2 decimal places.
func (c *Currency) ConvertFromBase(amount decimal.Decimal) decimal.Decimal {
	if c.IsBaseCurrency {
		return amount
	}
	return amount.Mul(c.ExchangeRate).Round(2)
}

// ConvertToBase converts an amount in this currency back to the base currency,
// rounded to 2 decimal places.
func (c *Currency) ConvertToBase(amount decimal.Decimal) decimal.Decimal {
	if c.IsBaseCurrency {
		return amount
	}
	return amount.Div(c.ExchangeRate).Round(2)
}

// ExchangeRateHistory is an append-only log of rate transitions. Rows are
// written in the same transaction as the rate change and never edited.
type ExchangeRateHistory struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CurrencyID uuid.UUID `gorm:"type:uuid;not null;index" json:"currency_id"`
	Currency   *Currency `gorm:"foreignKey:CurrencyID" json:"currency,omitempty"`

	OldRate decimal.Decimal `gorm:"type:decimal(20,6);not null" json:"old_rate"`
	NewRate decimal.Decimal `gorm:"type:decimal(20,6);not null" json:"new_rate"`

	ChangedBy *uuid.UUID `gorm:"type:uuid" json:"changed_by"`
	Reason    string     `gorm:"type:text" json:"reason"`
	ChangedAt time.Time  `gorm:"autoCreateTime;index" json:"changed_at"`
}

func (h *ExchangeRateHistory) BeforeCreate(tx *gorm.DB) error {
	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}
	return nil
}
