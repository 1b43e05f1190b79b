package engine

import (
	"testing"
	"time"

	"backend/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func baseRuleSet() *model.RuleSet {
	return &model.RuleSet{
		ID:                    uuid.New(),
		Version:               "v1",
		Name:                  "Test",
		MinPurchaseAmount:     d("50000"),
		MinAge:                16,
		PurchaseWindowDays:    3,
		ExitDeadlineMonths:    3,
		ExcludedCategories:    []string{"ALCOHOL", "TOBACCO"},
		DefaultVATRate:        d("16"),
		OperatorFeePercentage: d("15"),
		OperatorFeeFixed:      d("0"),
		MinOperatorFee:        d("5000"),
		RiskScoreThreshold:    70,
		HighValueThreshold:    d("500000"),
	}
}

func item(category string, lineTotal, vatAmount string) model.SaleItem {
	return model.SaleItem{
		ID:              uuid.New(),
		ProductName:     "Item",
		ProductCategory: category,
		Quantity:        d("1"),
		UnitPrice:       d(lineTotal),
		LineTotal:       d(lineTotal),
		VATRate:         d("16"),
		VATAmount:       d(vatAmount),
		IsEligible:      true,
	}
}

func baseEvaluation(rs *model.RuleSet) Evaluation {
	merchant := &model.Merchant{ID: uuid.New(), Status: model.MerchantApproved}
	invoice := &model.SaleInvoice{
		ID:          uuid.New(),
		MerchantID:  merchant.ID,
		Merchant:    merchant,
		InvoiceDate: time.Now().AddDate(0, 0, -1),
		Items: []model.SaleItem{
			item("GENERAL", "100000", "16000"),
		},
		Subtotal:    d("100000"),
		TotalVAT:    d("16000"),
		TotalAmount: d("116000"),
	}
	traveler := &model.Traveler{
		ID:               uuid.New(),
		DateOfBirth:      time.Now().AddDate(-30, 0, 0),
		Nationality:      "FR",
		ResidenceCountry: "FR",
	}
	return Evaluation{
		Invoice:  invoice,
		Traveler: traveler,
		RuleSet:  rs,
		Now:      time.Now(),
	}
}

func TestOperatorFee(t *testing.T) {
	rs := baseRuleSet()

	t.Run("minimum floor dominates", func(t *testing.T) {
		// 15% of 16000 = 2400, below the 5000 floor
		fee := OperatorFee(d("16000"), rs)
		assert.True(t, fee.Equal(d("5000")), "got %s", fee)
	})

	t.Run("percentage above floor", func(t *testing.T) {
		// 15% of 100000 = 15000
		fee := OperatorFee(d("100000"), rs)
		assert.True(t, fee.Equal(d("15000")), "got %s", fee)
	})

	t.Run("fixed fee added before floor comparison", func(t *testing.T) {
		rs := baseRuleSet()
		rs.OperatorFeeFixed = d("3000")
		// 2400 + 3000 = 5400 > 5000 floor
		fee := OperatorFee(d("16000"), rs)
		assert.True(t, fee.Equal(d("5400")), "got %s", fee)
	})

	t.Run("rounds to two decimals", func(t *testing.T) {
		rs := baseRuleSet()
		rs.MinOperatorFee = d("0")
		rs.OperatorFeePercentage = d("12.5")
		// 12.5% of 100.10 = 12.5125 -> 12.51
		fee := OperatorFee(d("100.10"), rs)
		assert.True(t, fee.Equal(d("12.51")), "got %s", fee)
	})
}

func TestAgeAt(t *testing.T) {
	now := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)

	t.Run("birthday already passed this year", func(t *testing.T) {
		dob := time.Date(2000, 3, 1, 0, 0, 0, 0, time.UTC)
		assert.Equal(t, 26, AgeAt(dob, now))
	})

	t.Run("birthday not yet reached", func(t *testing.T) {
		dob := time.Date(2000, 9, 1, 0, 0, 0, 0, time.UTC)
		assert.Equal(t, 25, AgeAt(dob, now))
	})

	t.Run("birthday today counts", func(t *testing.T) {
		dob := time.Date(2010, 6, 15, 0, 0, 0, 0, time.UTC)
		assert.Equal(t, 16, AgeAt(dob, now))
	})
}

func TestEligibleAmount(t *testing.T) {
	rs := baseRuleSet()
	items := []model.SaleItem{
		item("GENERAL", "60000", "9600"),
		item("ALCOHOL", "40000", "6400"), // excluded category
		item("GENERAL", "30000", "4800"),
	}
	items[2].IsEligible = false // flagged ineligible

	total := EligibleAmount(items, rs)
	assert.True(t, total.Equal(d("60000")), "got %s", total)

	vat := VATAmount(items, rs)
	assert.True(t, vat.Equal(d("9600")), "got %s", vat)
}

func TestEligibleAmountCategoryCaseInsensitive(t *testing.T) {
	rs := baseRuleSet()
	items := []model.SaleItem{item("alcohol", "40000", "6400")}
	assert.True(t, EligibleAmount(items, rs).IsZero())
}

func TestCheckEligibility(t *testing.T) {
	t.Run("eligible claim passes every check", func(t *testing.T) {
		ev := baseEvaluation(baseRuleSet())
		result := CheckEligibility(ev)
		require.True(t, result.Eligible, "reasons: %v", result.Reasons)
		assert.Empty(t, result.Reasons)
	})

	t.Run("amount below minimum", func(t *testing.T) {
		rs := baseRuleSet()
		rs.MinPurchaseAmount = d("200000")
		result := CheckEligibility(baseEvaluation(rs))
		require.False(t, result.Eligible)
		assert.Contains(t, result.Reasons[0], "Amount below minimum")
	})

	t.Run("traveler below minimum age", func(t *testing.T) {
		ev := baseEvaluation(baseRuleSet())
		ev.Traveler.DateOfBirth = ev.Now.AddDate(-15, 0, 0)
		result := CheckEligibility(ev)
		require.False(t, result.Eligible)
		assert.Contains(t, result.Reasons[0], "minimum age")
	})

	t.Run("excluded residence country", func(t *testing.T) {
		rs := baseRuleSet()
		rs.ExcludedResidenceCountries = []string{"fr"}
		result := CheckEligibility(baseEvaluation(rs))
		require.False(t, result.Eligible)
		assert.Contains(t, result.Reasons[0], "Residence country not eligible")
	})

	t.Run("not in eligible residence list", func(t *testing.T) {
		rs := baseRuleSet()
		rs.EligibleResidenceCountries = []string{"US", "GB"}
		result := CheckEligibility(baseEvaluation(rs))
		require.False(t, result.Eligible)
		assert.Contains(t, result.Reasons[0], "not in eligible list")
	})

	t.Run("merchant not approved", func(t *testing.T) {
		ev := baseEvaluation(baseRuleSet())
		ev.Invoice.Merchant.Status = model.MerchantSuspended
		result := CheckEligibility(ev)
		require.False(t, result.Eligible)
		assert.Contains(t, result.Reasons[0], "Merchant not approved")
	})

	t.Run("cancelled invoice", func(t *testing.T) {
		ev := baseEvaluation(baseRuleSet())
		ev.Invoice.IsCancelled = true
		result := CheckEligibility(ev)
		require.False(t, result.Eligible)
		assert.Contains(t, result.Reasons[0], "cancelled")
	})

	t.Run("duplicate form", func(t *testing.T) {
		ev := baseEvaluation(baseRuleSet())
		ev.HasExistingForm = true
		result := CheckEligibility(ev)
		require.False(t, result.Eligible)
		assert.Contains(t, result.Reasons[0], "already has a tax free form")
	})

	t.Run("fees consuming the VAT", func(t *testing.T) {
		rs := baseRuleSet()
		rs.MinOperatorFee = d("20000") // above the 16000 VAT
		result := CheckEligibility(baseEvaluation(rs))
		require.False(t, result.Eligible)
		assert.Contains(t, result.Reasons[0], "zero or negative")
	})

	t.Run("reasons accumulate instead of short-circuiting", func(t *testing.T) {
		rs := baseRuleSet()
		rs.MinPurchaseAmount = d("200000")
		ev := baseEvaluation(rs)
		ev.Traveler.DateOfBirth = ev.Now.AddDate(-10, 0, 0)
		ev.Invoice.IsCancelled = true
		ev.HasExistingForm = true

		result := CheckEligibility(ev)
		require.False(t, result.Eligible)
		assert.Len(t, result.Reasons, 4)
	})
}

func TestCompute(t *testing.T) {
	t.Run("amounts and expiry", func(t *testing.T) {
		ev := baseEvaluation(baseRuleSet())
		ev.Now = time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)

		comp := Compute(ev)
		assert.True(t, comp.EligibleAmount.Equal(d("100000")), "got %s", comp.EligibleAmount)
		assert.True(t, comp.VATAmount.Equal(d("16000")), "got %s", comp.VATAmount)
		assert.True(t, comp.OperatorFee.Equal(d("5000")), "got %s", comp.OperatorFee)
		assert.True(t, comp.RefundAmount.Equal(d("11000")), "got %s", comp.RefundAmount)
		assert.Equal(t, time.Date(2026, 4, 10, 0, 0, 0, 0, time.UTC), comp.ExpiresAt)
		assert.False(t, comp.RequiresControl)
	})

	t.Run("control forced by high value regardless of score", func(t *testing.T) {
		rs := baseRuleSet()
		rs.HighValueThreshold = d("100000")
		comp := Compute(baseEvaluation(rs))
		assert.True(t, comp.RequiresControl)
		assert.Contains(t, comp.RiskFlags, "HIGH_VALUE")
	})

	t.Run("control forced by risk score threshold", func(t *testing.T) {
		rs := baseRuleSet()
		rs.RiskScoreThreshold = 10
		rs.RiskRules = []model.RiskRule{{
			Name:        "Large amount",
			Field:       "amount",
			Operator:    model.OpGreaterThan,
			Value:       float64(50000),
			ScoreImpact: 25,
			IsActive:    true,
		}}
		comp := Compute(baseEvaluation(rs))
		assert.Equal(t, 25, comp.RiskScore)
		assert.True(t, comp.RequiresControl)
	})
}

func TestClassifyItems(t *testing.T) {
	rs := baseRuleSet()
	items := []model.SaleItem{
		item("GENERAL", "60000", "9600"),
		item("TOBACCO", "40000", "6400"),
	}

	verdicts := ClassifyItems(items, rs)
	require.Len(t, verdicts, 2)
	assert.True(t, verdicts[0].IsEligible)
	assert.Empty(t, verdicts[0].Reason)
	assert.False(t, verdicts[1].IsEligible)
	assert.Equal(t, "Category excluded from tax-free refund", verdicts[1].Reason)
}
