package service

import (
	"testing"
	"time"

	"backend/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTestDB opens an isolated in-memory database with the full schema.
// A single connection is forced so ":memory:" is shared across all queries.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
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
	))

	return db
}

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	v, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return v
}

// seedRuleSet inserts an active ruleset with the standard parameters:
// 50000 CDF minimum, age 16, 15% fee floored at 5000 CDF, control at
// score 70 or 500000 CDF.
func seedRuleSet(t *testing.T, db *gorm.DB) *model.RuleSet {
	t.Helper()

	rs := &model.RuleSet{
		Version:               "2026.01",
		Name:                  "Standard rules",
		MinPurchaseAmount:     dec(t, "50000"),
		MinAge:                16,
		PurchaseWindowDays:    3,
		ExitDeadlineMonths:    3,
		ExcludedCategories:    []string{"ALCOHOL", "TOBACCO"},
		DefaultVATRate:        dec(t, "16.00"),
		OperatorFeePercentage: dec(t, "15.00"),
		OperatorFeeFixed:      decimal.Zero,
		MinOperatorFee:        dec(t, "5000"),
		RiskScoreThreshold:    70,
		HighValueThreshold:    dec(t, "500000"),
		IsActive:              true,
	}
	require.NoError(t, db.Create(rs).Error)
	return rs
}

// seedMerchant inserts an approved merchant with one active outlet
func seedMerchant(t *testing.T, db *gorm.DB) (*model.Merchant, *model.Outlet) {
	t.Helper()

	merchant := &model.Merchant{
		Name:   "Kin Electronics",
		TaxID:  "CD-" + uuid.NewString()[:8],
		Status: model.MerchantApproved,
		Outlets: []model.Outlet{
			{Name: "Gombe Store", City: "Kinshasa", IsActive: true},
		},
	}
	require.NoError(t, db.Create(merchant).Error)
	return merchant, &merchant.Outlets[0]
}

// seedInvoice inserts a 116000 CDF invoice: one GENERAL item of 100000 CDF
// plus 16000 CDF VAT at 16%.
func seedInvoice(t *testing.T, db *gorm.DB, merchant *model.Merchant, outlet *model.Outlet) *model.SaleInvoice {
	t.Helper()

	item := model.SaleItem{
		ProductName:     "Laptop",
		ProductCategory: "GENERAL",
		Quantity:        decimal.NewFromInt(1),
		UnitPrice:       dec(t, "100000"),
		VATRate:         dec(t, "16.00"),
		IsEligible:      true,
	}
	item.ComputeAmounts()

	invoice := &model.SaleInvoice{
		MerchantID:    merchant.ID,
		OutletID:      outlet.ID,
		InvoiceNumber: "INV-" + uuid.NewString()[:8],
		InvoiceDate:   mustDate(t, "2026-02-10"),
		Currency:      model.BaseCurrencyCode,
		Subtotal:      item.LineTotal,
		TotalVAT:      item.VATAmount,
		TotalAmount:   item.LineTotal.Add(item.VATAmount),
		Items:         []model.SaleItem{item},
	}
	require.NoError(t, db.Create(invoice).Error)
	return invoice
}

// seedCurrencies inserts the CDF base currency and an active USD at
// 0.0004 USD per CDF.
func seedCurrencies(t *testing.T, db *gorm.DB) (*model.Currency, *model.Currency) {
	t.Helper()

	cdf := &model.Currency{
		Code:           model.BaseCurrencyCode,
		Name:           "Congolese Franc",
		Symbol:         "FC",
		ExchangeRate:   decimal.NewFromInt(1),
		IsBaseCurrency: true,
		IsActive:       true,
	}
	require.NoError(t, db.Create(cdf).Error)

	usd := &model.Currency{
		Code:         "USD",
		Name:         "US Dollar",
		Symbol:       "$",
		ExchangeRate: dec(t, "0.0004"),
		IsActive:     true,
	}
	require.NoError(t, db.Create(usd).Error)

	return cdf, usd
}

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse("2006-01-02", s)
	require.NoError(t, err)
	return d
}

// recordingNotifier counts notifications so tests can assert delivery
// without a running websocket hub.
type recordingNotifier struct {
	paid     int
	controls int
}

func (n *recordingNotifier) RefundPaid(refund *model.Refund, traveler *model.Traveler, formNumber string) {
	n.paid++
}

func (n *recordingNotifier) ControlRequired(form *model.TaxFreeForm) {
	n.controls++
}

// travelerReq returns a valid adult traveler born 1990-05-15 residing in France
func travelerReq() TravelerRequest {
	return TravelerRequest{
		PassportNumber:   "AB1234567",
		PassportCountry:  "FR",
		FirstName:        "Claire",
		LastName:         "Dubois",
		DateOfBirth:      "1990-05-15",
		Nationality:      "FR",
		ResidenceCountry: "FR",
		Email:            "claire.dubois@example.com",
	}
}
