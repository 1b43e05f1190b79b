package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// RefundStatus enum constants
const (
	RefundPending   = "PENDING"
	RefundInitiated = "INITIATED"
	RefundPaid      = "PAID"
	RefundFailed    = "FAILED"
	RefundCancelled = "CANCELLED"
)

// PaymentAttempt status enum constants
const (
	AttemptPending = "PENDING"
	AttemptSuccess = "SUCCESS"
	AttemptFailed  = "FAILED"
)

// Refund drives the settlement of a validated tax-free form. Amounts are
// copied from the form at creation time, never recomputed from the invoice.
// Invariants: NetAmount = GrossAmount - OperatorFee, ActualPayoutAmount <=
// PayoutAmount, ServiceGain >= 0.
type Refund struct {
	ID     uuid.UUID    `gorm:"type:uuid;primaryKey" json:"id"`
	FormID uuid.UUID    `gorm:"type:uuid;uniqueIndex;not null" json:"form_id"`
	Form   *TaxFreeForm `gorm:"foreignKey:FormID" json:"form,omitempty"`

	Currency    string          `gorm:"type:varchar(3);not null;default:'CDF'" json:"currency"`
	GrossAmount decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"gross_amount"` // form VAT amount
	OperatorFee decimal.Decimal `gorm:"type:decimal(15,2);not null;default:0.00" json:"operator_fee"`
	NetAmount   decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"net_amount"`

	Method         string            `gorm:"type:varchar(20);not null" json:"method"`
	PaymentDetails map[string]string `gorm:"serializer:json" json:"payment_details"`

	Status string `gorm:"type:varchar(20);not null;default:'PENDING';index" json:"status"`

	InitiatedAt *time.Time `json:"initiated_at"`
	InitiatedBy *uuid.UUID `gorm:"type:uuid" json:"initiated_by"`
	PaidAt      *time.Time `json:"paid_at"`

	// Cash collection
	CashCollected   bool       `gorm:"not null;default:false" json:"cash_collected"`
	CashCollectedAt *time.Time `json:"cash_collected_at"`
	CashCollectedBy *uuid.UUID `gorm:"type:uuid" json:"cash_collected_by"`

	// Retry bookkeeping
	RetryCount  int        `gorm:"not null;default:0" json:"retry_count"`
	MaxRetries  int        `gorm:"not null;default:3" json:"max_retries"`
	NextRetryAt *time.Time `gorm:"index" json:"next_retry_at"`

	// Cancellation
	CancelledAt        *time.Time `json:"cancelled_at"`
	CancelledBy        *uuid.UUID `gorm:"type:uuid" json:"cancelled_by"`
	CancellationReason string     `gorm:"type:text" json:"cancellation_reason"`

	// Currency conversion, frozen at creation
	PayoutCurrency      string           `gorm:"type:varchar(3);not null;default:'CDF'" json:"payout_currency"`
	ExchangeRateApplied *decimal.Decimal `gorm:"type:decimal(20,6)" json:"exchange_rate_applied"`
	PayoutAmount        *decimal.Decimal `gorm:"type:decimal(15,2)" json:"payout_amount"`

	// Cash reconciliation
	ActualPayoutAmount *decimal.Decimal `gorm:"type:decimal(15,2)" json:"actual_payout_amount"`
	ServiceGain        decimal.Decimal  `gorm:"type:decimal(15,2);not null;default:0.00" json:"service_gain"`
	ServiceGainCDF     decimal.Decimal  `gorm:"type:decimal(15,2);not null;default:0.00" json:"service_gain_cdf"`

	Attempts []PaymentAttempt `gorm:"foreignKey:RefundID;constraint:OnDelete:CASCADE" json:"attempts,omitempty"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (r *Refund) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// CanRetry reports whether a failed refund still has retry budget
func (r *Refund) CanRetry() bool {
	return r.Status == RefundFailed && r.RetryCount < r.MaxRetries
}

// ExpectedPayout is the amount owed to the traveler in the payout currency
func (r *Refund) ExpectedPayout() decimal.Decimal {
	if r.PayoutAmount != nil {
		return *r.PayoutAmount
	}
	return r.NetAmount
}

// PaymentAttempt is an append-only audit record of one provider call.
// Completed attempts are never mutated; a retry creates a new attempt.
type PaymentAttempt struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	RefundID uuid.UUID `gorm:"type:uuid;not null;index" json:"refund_id"`

	Provider           string `gorm:"type:varchar(50);not null" json:"provider"`
	ProviderRequestID  string `gorm:"type:varchar(100)" json:"provider_request_id"`
	ProviderResponseID string `gorm:"type:varchar(100)" json:"provider_response_id"`

	// Sanitized payloads: no raw card or account numbers
	RequestPayload  map[string]string `gorm:"serializer:json" json:"request_payload"`
	ResponsePayload map[string]string `gorm:"serializer:json" json:"response_payload"`

	Status       string `gorm:"type:varchar(20);not null;default:'PENDING';index" json:"status"`
	ErrorCode    string `gorm:"type:varchar(50)" json:"error_code"`
	ErrorMessage string `gorm:"type:text" json:"error_message"`

	StartedAt   time.Time  `gorm:"autoCreateTime" json:"started_at"`
	CompletedAt *time.Time `json:"completed_at"`
}

func (a *PaymentAttempt) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
