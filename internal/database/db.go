package database

import (
	"log"

	"backend/internal/model"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// NewConnection initializes a new connection pool using GORM
func NewConnection(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	// Auto-migrate core models
	err = db.AutoMigrate(
		&model.User{},
		&model.RefreshToken{},
		&model.AuditLog{},
		&model.RuleSet{},
		&model.RiskRule{},
		&model.ProductCategory{},
		&model.Currency{},
		&model.ExchangeRateHistory{},
		&model.Traveler{},
		&model.Merchant{},
		&model.Outlet{},
		&model.SaleInvoice{},
		&model.SaleItem{},
		&model.TaxFreeForm{},
		&model.Refund{},
		&model.PaymentAttempt{},
	)
	if err != nil {
		log.Println("WARNING: Failed to auto-migrate models:", err)
	}

	return db, nil
}
