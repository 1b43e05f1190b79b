// Package engine implements the eligibility, pricing and risk engine for
// tax-free claims. Everything here is pure computation over its inputs: the
// active ruleset, the invoice and the traveler are passed in explicitly and
// nothing reaches for the database, so the engine is safe to call
// concurrently and trivially testable.
package engine

import (
	"fmt"
	"strings"
	"time"

	"backend/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Evaluation bundles the inputs of a single eligibility/pricing run. Invoice
// must carry its Items and Merchant; RuleSet must carry its RiskRules.
type Evaluation struct {
	Invoice  *model.SaleInvoice
	Traveler *model.Traveler
	RuleSet  *model.RuleSet

	// HasExistingForm is true when a form already exists for the invoice
	// (one-to-one enforced at the business layer, not just the schema).
	HasExistingForm bool

	// RecentFormCount is the number of forms created for this traveler in
	// the trailing 7 days, supplied by the caller.
	RecentFormCount int

	Now time.Time
}

// EligibilityResult accumulates every violated rule; checks are evaluated
// independently, never short-circuited, so the caller sees all reasons at once.
type EligibilityResult struct {
	Eligible bool     `json:"eligible"`
	Reasons  []string `json:"reasons"`
}

// Computation holds the monetary and risk outputs for an eligible claim
type Computation struct {
	EligibleAmount  decimal.Decimal
	VATAmount       decimal.Decimal
	OperatorFee     decimal.Decimal
	RefundAmount    decimal.Decimal
	RiskScore       int
	RiskFlags       []string
	RequiresControl bool
	ExpiresAt       time.Time
}

// CheckEligibility runs every eligibility rule against the evaluation inputs
func CheckEligibility(ev Evaluation) EligibilityResult {
	rs := ev.RuleSet
	var reasons []string

	eligibleAmount := EligibleAmount(ev.Invoice.Items, rs)
	if eligibleAmount.LessThan(rs.MinPurchaseAmount) {
		reasons = append(reasons, fmt.Sprintf("Amount below minimum (%s CDF required, got %s CDF)",
			rs.MinPurchaseAmount.StringFixed(2), eligibleAmount.StringFixed(2)))
	}

	if AgeAt(ev.Traveler.DateOfBirth, ev.Now) < rs.MinAge {
		reasons = append(reasons, fmt.Sprintf("Traveler below minimum age (%d)", rs.MinAge))
	}

	if len(rs.ExcludedResidenceCountries) > 0 && containsFold(rs.ExcludedResidenceCountries, ev.Traveler.ResidenceCountry) {
		reasons = append(reasons, "Residence country not eligible")
	}

	if len(rs.EligibleResidenceCountries) > 0 && !containsFold(rs.EligibleResidenceCountries, ev.Traveler.ResidenceCountry) {
		reasons = append(reasons, "Residence country not in eligible list")
	}

	if ev.Invoice.Merchant == nil || !ev.Invoice.Merchant.CanCreateForms() {
		reasons = append(reasons, "Merchant not approved")
	}

	if ev.Invoice.IsCancelled {
		reasons = append(reasons, "Invoice is cancelled")
	}

	if ev.HasExistingForm {
		reasons = append(reasons, "Invoice already has a tax free form")
	}

	vat := VATAmount(ev.Invoice.Items, rs)
	fee := OperatorFee(vat, rs)
	if !vat.Sub(fee).IsPositive() {
		reasons = append(reasons, fmt.Sprintf("Refund amount is zero or negative (fees %s CDF exceed VAT %s CDF)",
			fee.StringFixed(2), vat.StringFixed(2)))
	}

	return EligibilityResult{Eligible: len(reasons) == 0, Reasons: reasons}
}

// Compute derives the monetary amounts, risk assessment and expiry for an
// eligible claim. Callers are expected to have run CheckEligibility first.
func Compute(ev Evaluation) Computation {
	rs := ev.RuleSet

	eligibleAmount := EligibleAmount(ev.Invoice.Items, rs)
	vat := VATAmount(ev.Invoice.Items, rs)
	fee := OperatorFee(vat, rs)

	score, flags := AssessRisk(ev)

	// Two independently thresholded signals: either one alone forces control
	requiresControl := score >= rs.RiskScoreThreshold ||
		eligibleAmount.GreaterThanOrEqual(rs.HighValueThreshold)

	return Computation{
		EligibleAmount:  eligibleAmount,
		VATAmount:       vat,
		OperatorFee:     fee,
		RefundAmount:    vat.Sub(fee),
		RiskScore:       score,
		RiskFlags:       flags,
		RequiresControl: requiresControl,
		ExpiresAt:       ev.Now.AddDate(0, rs.ExitDeadlineMonths, 0),
	}
}

// EligibleAmount sums line totals over items whose category is not excluded
// and whose own eligibility flag is set.
func EligibleAmount(items []model.SaleItem, rs *model.RuleSet) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		if containsFold(rs.ExcludedCategories, item.ProductCategory) {
			continue
		}
		if !item.IsEligible {
			continue
		}
		total = total.Add(item.LineTotal)
	}
	return total
}

// VATAmount sums the pre-computed per-item VAT over the same filtered item
// set. The item's own stored rate is authoritative; the ruleset's category
// rate table is a UI default only.
func VATAmount(items []model.SaleItem, rs *model.RuleSet) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		if containsFold(rs.ExcludedCategories, item.ProductCategory) {
			continue
		}
		if !item.IsEligible {
			continue
		}
		total = total.Add(item.VATAmount)
	}
	return total
}

// OperatorFee computes max(vat * pct/100 + fixed, min fee), rounded to 2
// decimal places. The minimum floor dominates the formula.
func OperatorFee(vat decimal.Decimal, rs *model.RuleSet) decimal.Decimal {
	fee := vat.Mul(rs.OperatorFeePercentage.Div(decimal.NewFromInt(100))).Add(rs.OperatorFeeFixed)
	if fee.LessThan(rs.MinOperatorFee) {
		fee = rs.MinOperatorFee
	}
	return fee.Round(2)
}

// AgeAt returns the calendar-accurate age in whole years at the given
// instant. The year difference is decremented when the birthday anniversary
// has not been reached yet; the birthday itself counts as having the age.
func AgeAt(dateOfBirth, now time.Time) int {
	years := now.Year() - dateOfBirth.Year()
	if dateOfBirth.AddDate(years, 0, 0).After(now) {
		years--
	}
	return years
}

// ItemClassification is the persisted eligibility verdict for one sale item
type ItemClassification struct {
	ItemID     uuid.UUID
	IsEligible bool
	Reason     string
}

// ClassifyItems derives each item's eligibility flag and reason from the
// ruleset's excluded-category list. The verdicts are written back to the
// items by the caller without disturbing price or VAT fields.
func ClassifyItems(items []model.SaleItem, rs *model.RuleSet) []ItemClassification {
	out := make([]ItemClassification, 0, len(items))
	for _, item := range items {
		c := ItemClassification{ItemID: item.ID, IsEligible: true}
		if item.ProductCategory != "" && containsFold(rs.ExcludedCategories, item.ProductCategory) {
			c.IsEligible = false
			c.Reason = "Category excluded from tax-free refund"
		}
		out = append(out, c)
	}
	return out
}

func containsFold(list []string, v string) bool {
	for _, s := range list {
		if strings.EqualFold(s, v) {
			return true
		}
	}
	return false
}
