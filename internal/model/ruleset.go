package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// RefundMethod enum constants
const (
	RefundMethodCard         = "CARD"
	RefundMethodBankTransfer = "BANK_TRANSFER"
	RefundMethodMobileMoney  = "MOBILE_MONEY"
	RefundMethodCash         = "CASH"
)

// RiskRule operator enum constants
const (
	OpEquals      = "equals"
	OpNotEquals   = "not_equals"
	OpGreaterThan = "greater_than"
	OpLessThan    = "less_than"
	OpIn          = "in"
	OpNotIn       = "not_in"
)

// RuleSet is a versioned bundle of eligibility, pricing and risk parameters.
// At most one ruleset is active at a time; once a ruleset has produced a
// TaxFreeForm its fields are treated as copy-only (forms keep a frozen
// snapshot, see TaxFreeForm.RuleSnapshot).
type RuleSet struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Version     string    `gorm:"type:varchar(20);uniqueIndex;not null" json:"version"`
	Name        string    `gorm:"type:varchar(100);not null" json:"name"`
	Description string    `gorm:"type:text" json:"description"`

	// Eligibility
	MinPurchaseAmount decimal.Decimal `gorm:"type:decimal(15,2);not null;default:50000.00" json:"min_purchase_amount"`
	MinAge            int             `gorm:"not null;default:16" json:"min_age"`

	// Time windows
	PurchaseWindowDays int `gorm:"not null;default:3" json:"purchase_window_days"`
	ExitDeadlineMonths int `gorm:"not null;default:3" json:"exit_deadline_months"`

	// Territories (empty list = no restriction from that list)
	EligibleResidenceCountries []string `gorm:"serializer:json" json:"eligible_residence_countries"`
	ExcludedResidenceCountries []string `gorm:"serializer:json" json:"excluded_residence_countries"`

	// Product categories
	ExcludedCategories []string `gorm:"serializer:json" json:"excluded_categories"`

	// VAT rates by category, e.g. {"GENERAL": "16.00", "FOOD": "0.00"}.
	// Advisory only: the item's stored rate is authoritative at computation time.
	VATRates       map[string]decimal.Decimal `gorm:"serializer:json" json:"vat_rates"`
	DefaultVATRate decimal.Decimal            `gorm:"type:decimal(5,2);not null;default:16.00" json:"default_vat_rate"`

	// Operator fees
	OperatorFeePercentage decimal.Decimal `gorm:"type:decimal(5,2);not null;default:15.00" json:"operator_fee_percentage"`
	OperatorFeeFixed      decimal.Decimal `gorm:"type:decimal(15,2);not null;default:0.00" json:"operator_fee_fixed"`
	MinOperatorFee        decimal.Decimal `gorm:"type:decimal(15,2);not null;default:0.00" json:"min_operator_fee"`

	// Refund methods
	AllowedRefundMethods []string `gorm:"serializer:json" json:"allowed_refund_methods"`

	// Risk thresholds
	RiskScoreThreshold int             `gorm:"not null;default:70" json:"risk_score_threshold"`
	HighValueThreshold decimal.Decimal `gorm:"type:decimal(15,2);not null;default:500000.00" json:"high_value_threshold"`

	// Status
	IsActive    bool       `gorm:"not null;default:false;index" json:"is_active"`
	ActivatedAt *time.Time `json:"activated_at"`
	ActivatedBy *uuid.UUID `gorm:"type:uuid" json:"activated_by"`

	RiskRules []RiskRule `gorm:"foreignKey:RuleSetID;constraint:OnDelete:CASCADE" json:"risk_rules,omitempty"`

	CreatedBy *uuid.UUID `gorm:"type:uuid" json:"created_by"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func (r *RuleSet) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// RiskRule is a single configurable risk predicate belonging to a ruleset:
// context[Field] <Operator> Value adds ScoreImpact to the risk score.
type RiskRule struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	RuleSetID   uuid.UUID `gorm:"type:uuid;not null;index" json:"ruleset_id"`
	Name        string    `gorm:"type:varchar(100);not null" json:"name"`
	Description string    `gorm:"type:text" json:"description"`

	Field    string `gorm:"type:varchar(50);not null" json:"field"`    // amount, traveler_country, ...
	Operator string `gorm:"type:varchar(20);not null" json:"operator"` // equals, not_equals, greater_than, less_than, in, not_in
	// Comparison value: number, string, or list depending on operator
	Value       any  `gorm:"serializer:json" json:"value"`
	ScoreImpact int  `gorm:"not null;default:10" json:"score_impact"`
	IsActive    bool `gorm:"not null;default:true" json:"is_active"`

	CreatedAt time.Time `json:"created_at"`
}

func (r *RiskRule) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// ProductCategory is a dynamic catalog entry for tax-free eligibility
type ProductCategory struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Code        string    `gorm:"type:varchar(50);uniqueIndex;not null" json:"code"`
	Name        string    `gorm:"type:varchar(100);not null" json:"name"`
	Description string    `gorm:"type:text" json:"description"`

	DefaultVATRate      decimal.Decimal `gorm:"type:decimal(5,2);not null;default:16.00" json:"default_vat_rate"`
	IsEligibleByDefault bool            `gorm:"not null;default:true" json:"is_eligible_by_default"`
	IsActive            bool            `gorm:"not null;default:true" json:"is_active"`
	DisplayOrder        int             `gorm:"not null;default:0" json:"display_order"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (p *ProductCategory) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
