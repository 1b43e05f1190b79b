package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// SaleInvoice is the commercial transaction a tax-free claim is based on
type SaleInvoice struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`

	MerchantID uuid.UUID `gorm:"type:uuid;not null;index:idx_invoices_merchant_number,unique" json:"merchant_id"`
	Merchant   *Merchant `gorm:"foreignKey:MerchantID" json:"merchant,omitempty"`
	OutletID   uuid.UUID `gorm:"type:uuid;not null;index" json:"outlet_id"`
	Outlet     *Outlet   `gorm:"foreignKey:OutletID" json:"outlet,omitempty"`

	InvoiceNumber string    `gorm:"type:varchar(100);not null;index:idx_invoices_merchant_number,unique" json:"invoice_number"`
	InvoiceDate   time.Time `gorm:"type:date;not null" json:"invoice_date"`

	Currency    string          `gorm:"type:varchar(3);not null;default:'CDF'" json:"currency"`
	Subtotal    decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"subtotal"`
	TotalVAT    decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"total_vat"`
	TotalAmount decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"total_amount"`

	PaymentMethod    string `gorm:"type:varchar(50)" json:"payment_method"`
	PaymentReference string `gorm:"type:varchar(100)" json:"payment_reference"`
	Notes            string `gorm:"type:text" json:"notes"`

	IsCancelled     bool       `gorm:"not null;default:false" json:"is_cancelled"`
	CancelledAt     *time.Time `json:"cancelled_at"`
	CancelledReason string     `gorm:"type:text" json:"cancelled_reason"`

	Items []SaleItem `gorm:"foreignKey:InvoiceID;constraint:OnDelete:CASCADE" json:"items,omitempty"`

	CreatedBy *uuid.UUID `gorm:"type:uuid" json:"created_by"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func (i *SaleInvoice) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

// SaleItem is one line of a sale invoice. LineTotal and VATAmount are computed
// from quantity, unit price and the item's own VAT rate when the invoice is
// recorded; the eligibility fields are rewritten by the engine against the
// active ruleset without touching the price fields.
type SaleItem struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	InvoiceID uuid.UUID `gorm:"type:uuid;not null;index" json:"invoice_id"`

	ProductCode     string `gorm:"type:varchar(100)" json:"product_code"`
	Barcode         string `gorm:"type:varchar(50)" json:"barcode"`
	ProductName     string `gorm:"type:varchar(255);not null" json:"product_name"`
	ProductCategory string `gorm:"type:varchar(50);not null;default:'GENERAL'" json:"product_category"`
	Description     string `gorm:"type:text" json:"description"`

	Quantity  decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"quantity"`
	UnitPrice decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"unit_price"`
	LineTotal decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"line_total"`

	VATRate   decimal.Decimal `gorm:"type:decimal(5,2);not null" json:"vat_rate"` // percentage, e.g. 16.00
	VATAmount decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"vat_amount"`

	IsEligible          bool   `gorm:"not null;default:true" json:"is_eligible"`
	IneligibilityReason string `gorm:"type:varchar(255)" json:"ineligibility_reason"`

	CreatedAt time.Time `json:"created_at"`
}

func (i *SaleItem) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

// ComputeAmounts fills LineTotal and VATAmount from quantity, unit price and
// the item's stored VAT rate: qty x price, then x rate/100.
func (i *SaleItem) ComputeAmounts() {
	i.LineTotal = i.Quantity.Mul(i.UnitPrice).Round(2)
	i.VATAmount = i.LineTotal.Mul(i.VATRate.Div(decimal.NewFromInt(100))).Round(2)
}
