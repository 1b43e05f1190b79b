package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	ActionRuleSetCreated      = "RULESET_CREATED"
	ActionRuleSetUpdated      = "RULESET_UPDATED"
	ActionRuleSetActivated    = "RULESET_ACTIVATED"
	ActionRuleSetDuplicated   = "RULESET_DUPLICATED"
	ActionRiskRuleSaved       = "RISK_RULE_SAVED"
	ActionCurrencyCreated     = "CURRENCY_CREATED"
	ActionCurrencyRateChanged = "CURRENCY_RATE_CHANGED"
	ActionCurrencyBaseChanged = "CURRENCY_BASE_CHANGED"
	ActionCurrencyToggled     = "CURRENCY_STATUS_TOGGLED"
	ActionMerchantApproved    = "MERCHANT_APPROVED"
	ActionMerchantSuspended   = "MERCHANT_SUSPENDED"
	ActionFormCreated         = "FORM_CREATED"
	ActionFormIssued          = "FORM_ISSUED"
	ActionFormValidated       = "FORM_VALIDATED"
	ActionFormRefused         = "FORM_REFUSED"
	ActionFormExpired         = "FORM_EXPIRED"
	ActionFormCancelled       = "FORM_CANCELLED"
	ActionRefundInitiated     = "REFUND_INITIATED"
	ActionRefundRetry         = "REFUND_RETRY"
	ActionRefundRetryError    = "REFUND_RETRY_ERROR"
	ActionRefundCancelled     = "REFUND_CANCELLED"
	ActionCashCollected       = "CASH_COLLECTED"
	ActionInvoiceCancelled    = "INVOICE_CANCELLED"
)

// AuditLog tracks Who, What, and When for critical system changes
type AuditLog struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	UserID     *uuid.UUID `gorm:"type:uuid;index" json:"user_id"` // Nullable gracefully if automated sweep
	User       *User      `gorm:"foreignKey:UserID" json:"user"`
	Action     string     `gorm:"type:varchar(50);not null;index" json:"action"`
	EntityID   string     `gorm:"type:varchar(50);index" json:"entity_id"`        // Reference string (uuid/code)
	EntityName string     `gorm:"type:varchar(255)" json:"entity_name,omitempty"` // Human readable name
	Details    string     `gorm:"type:jsonb" json:"details"`                      // Serialized JSON payload of the action
	CreatedAt  time.Time  `gorm:"index" json:"created_at"`
}

func (a *AuditLog) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
