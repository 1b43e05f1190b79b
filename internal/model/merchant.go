package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MerchantStatus enum constants
const (
	MerchantPending   = "PENDING"
	MerchantApproved  = "APPROVED"
	MerchantSuspended = "SUSPENDED"
	MerchantRevoked   = "REVOKED"
)

// Merchant is a registered retailer allowed to issue tax-free forms once approved
type Merchant struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name          string    `gorm:"type:varchar(255);not null" json:"name"`
	TaxID         string    `gorm:"type:varchar(50);uniqueIndex;not null" json:"tax_id"`
	ContactPerson string    `gorm:"type:varchar(255)" json:"contact_person"`
	Phone         string    `gorm:"type:varchar(50)" json:"phone"`
	Email         string    `gorm:"type:varchar(255)" json:"email"`
	Address       string    `gorm:"type:text" json:"address"`

	Status       string     `gorm:"type:varchar(20);not null;default:'PENDING';index" json:"status"`
	StatusReason string     `gorm:"type:text" json:"status_reason"`
	ApprovedAt   *time.Time `json:"approved_at"`
	ApprovedBy   *uuid.UUID `gorm:"type:uuid" json:"approved_by"`

	Outlets []Outlet `gorm:"foreignKey:MerchantID;constraint:OnDelete:CASCADE" json:"outlets,omitempty"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (m *Merchant) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

// CanCreateForms reports whether the merchant may issue tax-free forms
func (m *Merchant) CanCreateForms() bool {
	return m.Status == MerchantApproved
}

// Outlet is a physical point of sale belonging to a merchant
type Outlet struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	MerchantID uuid.UUID `gorm:"type:uuid;not null;index" json:"merchant_id"`
	Name       string    `gorm:"type:varchar(255);not null" json:"name"`
	Address    string    `gorm:"type:text" json:"address"`
	City       string    `gorm:"type:varchar(100)" json:"city"`
	IsActive   bool      `gorm:"not null;default:true" json:"is_active"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (o *Outlet) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}
