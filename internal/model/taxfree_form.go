package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// TaxFreeForm status enum constants
const (
	FormCreated           = "CREATED"
	FormIssued            = "ISSUED"
	FormValidationPending = "VALIDATION_PENDING"
	FormValidated         = "VALIDATED"
	FormRefunded          = "REFUNDED"
	FormRefused           = "REFUSED"
	FormExpired           = "EXPIRED"
	FormCancelled         = "CANCELLED"
)

// RuleSnapshot is the subset of ruleset fields frozen into a form at creation
// time so later ruleset edits never retroactively change the form's meaning.
// It is constructed once and never references the live ruleset row.
type RuleSnapshot struct {
	RuleSetID             string          `json:"ruleset_id"`
	Version               string          `json:"version"`
	MinPurchaseAmount     decimal.Decimal `json:"min_purchase_amount"`
	MinAge                int             `json:"min_age"`
	ExitDeadlineMonths    int             `json:"exit_deadline_months"`
	ExcludedCategories    []string        `json:"excluded_categories"`
	DefaultVATRate        decimal.Decimal `json:"default_vat_rate"`
	OperatorFeePercentage decimal.Decimal `json:"operator_fee_percentage"`
	OperatorFeeFixed      decimal.Decimal `json:"operator_fee_fixed"`
	MinOperatorFee        decimal.Decimal `json:"min_operator_fee"`
}

// NewRuleSnapshot copies the pricing-relevant fields out of a ruleset
func NewRuleSnapshot(rs *RuleSet) RuleSnapshot {
	excluded := make([]string, len(rs.ExcludedCategories))
	copy(excluded, rs.ExcludedCategories)
	return RuleSnapshot{
		RuleSetID:             rs.ID.String(),
		Version:               rs.Version,
		MinPurchaseAmount:     rs.MinPurchaseAmount,
		MinAge:                rs.MinAge,
		ExitDeadlineMonths:    rs.ExitDeadlineMonths,
		ExcludedCategories:    excluded,
		DefaultVATRate:        rs.DefaultVATRate,
		OperatorFeePercentage: rs.OperatorFeePercentage,
		OperatorFeeFixed:      rs.OperatorFeeFixed,
		MinOperatorFee:        rs.MinOperatorFee,
	}
}

// TaxFreeForm is the engine's output artifact: one form per sale invoice.
// Monetary fields are immutable after creation; only status and
// validation-related timestamps change afterwards.
type TaxFreeForm struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	FormNumber string    `gorm:"type:varchar(20);uniqueIndex;not null" json:"form_number"`

	InvoiceID  uuid.UUID    `gorm:"type:uuid;uniqueIndex;not null" json:"invoice_id"`
	Invoice    *SaleInvoice `gorm:"foreignKey:InvoiceID" json:"invoice,omitempty"`
	TravelerID uuid.UUID    `gorm:"type:uuid;not null;index" json:"traveler_id"`
	Traveler   *Traveler    `gorm:"foreignKey:TravelerID" json:"traveler,omitempty"`

	Currency       string          `gorm:"type:varchar(3);not null;default:'CDF'" json:"currency"`
	EligibleAmount decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"eligible_amount"`
	VATAmount      decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"vat_amount"`
	RefundAmount   decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"refund_amount"` // VAT minus operator fee
	OperatorFee    decimal.Decimal `gorm:"type:decimal(15,2);not null;default:0.00" json:"operator_fee"`

	Status string `gorm:"type:varchar(20);not null;default:'CREATED';index" json:"status"`

	QRPayload   string `gorm:"type:text" json:"qr_payload"`
	QRSignature string `gorm:"type:varchar(64)" json:"qr_signature"`

	RuleSnapshot RuleSnapshot `gorm:"serializer:json" json:"rule_snapshot"`

	RiskScore       int      `gorm:"not null;default:0" json:"risk_score"`
	RiskFlags       []string `gorm:"serializer:json" json:"risk_flags"`
	RequiresControl bool     `gorm:"not null;default:false" json:"requires_control"`

	IssuedAt    *time.Time `json:"issued_at"`
	ExpiresAt   time.Time  `gorm:"not null;index" json:"expires_at"`
	ValidatedAt *time.Time `json:"validated_at"`

	CancelledAt        *time.Time `json:"cancelled_at"`
	CancelledBy        *uuid.UUID `gorm:"type:uuid" json:"cancelled_by"`
	CancellationReason string     `gorm:"type:text" json:"cancellation_reason"`

	CreatedBy *uuid.UUID `gorm:"type:uuid" json:"created_by"`
	CreatedAt time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func (f *TaxFreeForm) BeforeCreate(tx *gorm.DB) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	return nil
}

// CanBeValidated reports whether customs may still validate the form
func (f *TaxFreeForm) CanBeValidated(now time.Time) bool {
	return (f.Status == FormIssued || f.Status == FormValidationPending) && f.ExpiresAt.After(now)
}

// CanBeCancelled reports whether the form may still be cancelled
func (f *TaxFreeForm) CanBeCancelled() bool {
	return f.Status == FormCreated || f.Status == FormIssued
}
