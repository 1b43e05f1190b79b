package engine

import (
	"testing"

	"backend/internal/model"

	"github.com/stretchr/testify/assert"
)

func rule(field, operator string, value any, impact int) *model.RiskRule {
	return &model.RiskRule{
		Name:        "rule",
		Field:       field,
		Operator:    operator,
		Value:       value,
		ScoreImpact: impact,
		IsActive:    true,
	}
}

func TestEvaluateRiskRule(t *testing.T) {
	context := map[string]any{
		"amount":           float64(250000),
		"traveler_country": "FR",
		"items_count":      4,
	}

	t.Run("equals on string", func(t *testing.T) {
		assert.Equal(t, 10, EvaluateRiskRule(rule("traveler_country", model.OpEquals, "FR", 10), context))
		assert.Equal(t, 0, EvaluateRiskRule(rule("traveler_country", model.OpEquals, "DE", 10), context))
	})

	t.Run("equals compares numbers across go types", func(t *testing.T) {
		// JSON decodes rule values as float64 while items_count is an int
		assert.Equal(t, 10, EvaluateRiskRule(rule("items_count", model.OpEquals, float64(4), 10), context))
	})

	t.Run("not equals", func(t *testing.T) {
		assert.Equal(t, 10, EvaluateRiskRule(rule("traveler_country", model.OpNotEquals, "DE", 10), context))
		assert.Equal(t, 0, EvaluateRiskRule(rule("traveler_country", model.OpNotEquals, "FR", 10), context))
	})

	t.Run("greater than", func(t *testing.T) {
		assert.Equal(t, 15, EvaluateRiskRule(rule("amount", model.OpGreaterThan, float64(100000), 15), context))
		assert.Equal(t, 0, EvaluateRiskRule(rule("amount", model.OpGreaterThan, float64(300000), 15), context))
	})

	t.Run("greater than coerces numeric strings", func(t *testing.T) {
		assert.Equal(t, 15, EvaluateRiskRule(rule("amount", model.OpGreaterThan, "100000", 15), context))
	})

	t.Run("ordering with non-numeric operand does not match", func(t *testing.T) {
		assert.Equal(t, 0, EvaluateRiskRule(rule("traveler_country", model.OpGreaterThan, float64(10), 15), context))
	})

	t.Run("in and not in", func(t *testing.T) {
		assert.Equal(t, 20, EvaluateRiskRule(rule("traveler_country", model.OpIn, []any{"FR", "BE"}, 20), context))
		assert.Equal(t, 0, EvaluateRiskRule(rule("traveler_country", model.OpIn, []any{"DE"}, 20), context))
		assert.Equal(t, 20, EvaluateRiskRule(rule("traveler_country", model.OpNotIn, []any{"DE"}, 20), context))
	})

	t.Run("missing field scores zero", func(t *testing.T) {
		assert.Equal(t, 0, EvaluateRiskRule(rule("unknown_field", model.OpEquals, "x", 50), context))
	})
}

func TestValidateRiskRule(t *testing.T) {
	assert.NoError(t, ValidateRiskRule(model.OpEquals, "FR"))
	assert.NoError(t, ValidateRiskRule(model.OpGreaterThan, float64(100)))
	assert.NoError(t, ValidateRiskRule(model.OpGreaterThan, "100"))
	assert.NoError(t, ValidateRiskRule(model.OpIn, []any{"FR", "BE"}))

	assert.Error(t, ValidateRiskRule(model.OpEquals, []any{"FR"}))
	assert.Error(t, ValidateRiskRule(model.OpGreaterThan, "not a number"))
	assert.Error(t, ValidateRiskRule(model.OpIn, "FR"))
	assert.Error(t, ValidateRiskRule("matches", "FR"))
}

func TestAssessRisk(t *testing.T) {
	t.Run("configured rules accumulate, inactive rules are skipped", func(t *testing.T) {
		rs := baseRuleSet()
		rs.RiskRules = []model.RiskRule{
			*rule("amount", model.OpGreaterThan, float64(50000), 25),
			*rule("traveler_country", model.OpEquals, "FR", 10),
		}
		rs.RiskRules[1].IsActive = false

		ev := baseEvaluation(rs)
		score, flags := AssessRisk(ev)
		assert.Equal(t, 25, score)
		assert.Equal(t, []string{"rule"}, flags)
	})

	t.Run("high value adds fixed 20", func(t *testing.T) {
		rs := baseRuleSet()
		rs.HighValueThreshold = d("116000") // equal to the invoice total
		score, flags := AssessRisk(baseEvaluation(rs))
		assert.Equal(t, 20, score)
		assert.Contains(t, flags, "HIGH_VALUE")
	})

	t.Run("frequent traveler adds fixed 15 from three recent forms", func(t *testing.T) {
		ev := baseEvaluation(baseRuleSet())
		ev.RecentFormCount = 2
		score, _ := AssessRisk(ev)
		assert.Equal(t, 0, score)

		ev.RecentFormCount = 3
		score, flags := AssessRisk(ev)
		assert.Equal(t, 15, score)
		assert.Contains(t, flags, "FREQUENT_TRAVELER")
	})
}
