package model

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Traveler holds the identity used for eligibility checks. The passport number
// is stored as a SHA-256 hash plus the last 4 characters in cleartext.
type Traveler struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`

	PassportNumberHash  string     `gorm:"type:varchar(64);not null;index" json:"-"`
	PassportNumberLast4 string     `gorm:"type:varchar(4);not null" json:"passport_number_last4"`
	PassportCountry     string     `gorm:"type:varchar(2);not null" json:"passport_country"` // ISO 3166-1 alpha-2
	PassportIssueDate   *time.Time `gorm:"type:date" json:"passport_issue_date"`
	PassportExpiryDate  *time.Time `gorm:"type:date" json:"passport_expiry_date"`

	FirstName   string    `gorm:"type:varchar(100);not null" json:"first_name"`
	LastName    string    `gorm:"type:varchar(100);not null" json:"last_name"`
	DateOfBirth time.Time `gorm:"type:date;not null" json:"date_of_birth"`

	Nationality      string `gorm:"type:varchar(2);not null" json:"nationality"`
	ResidenceCountry string `gorm:"type:varchar(2);not null;index" json:"residence_country"`
	ResidenceAddress string `gorm:"type:text" json:"residence_address"`

	Email string `gorm:"type:varchar(255)" json:"email"`
	Phone string `gorm:"type:varchar(20)" json:"phone"`

	PreferredRefundMethod string            `gorm:"type:varchar(20)" json:"preferred_refund_method"`
	RefundDetails         map[string]string `gorm:"serializer:json" json:"refund_details"` // bank / mobile money details

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (t *Traveler) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// HashPassport returns the canonical hash of a passport number
func HashPassport(passportNumber string) string {
	sum := sha256.Sum256([]byte(strings.ToUpper(passportNumber)))
	return hex.EncodeToString(sum[:])
}

// SetPassportNumber stores the hashed passport number and its last 4 characters
func (t *Traveler) SetPassportNumber(passportNumber string) {
	t.PassportNumberHash = HashPassport(passportNumber)
	if len(passportNumber) >= 4 {
		t.PassportNumberLast4 = passportNumber[len(passportNumber)-4:]
	} else {
		t.PassportNumberLast4 = passportNumber
	}
}

// VerifyPassport reports whether the given passport number matches the stored hash
func (t *Traveler) VerifyPassport(passportNumber string) bool {
	return t.PassportNumberHash == HashPassport(passportNumber)
}

// FullName returns the traveler's display name
func (t *Traveler) FullName() string {
	return t.FirstName + " " + t.LastName
}
