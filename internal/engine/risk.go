package engine

import (
	"fmt"
	"reflect"
	"strconv"

	"backend/internal/model"
)

// Fixed impacts and flags for the two built-in checks that run in addition to
// the configured rules.
const (
	highValueImpact       = 20
	highValueFlag         = "HIGH_VALUE"
	frequentTravelerCount = 3
	frequentImpact        = 15
	frequentFlag          = "FREQUENT_TRAVELER"
)

// BuildRiskContext flattens the invoice and traveler into the context map the
// configured risk predicates evaluate against.
func BuildRiskContext(invoice *model.SaleInvoice, traveler *model.Traveler) map[string]any {
	amount, _ := invoice.TotalAmount.Float64()
	return map[string]any{
		"amount":               amount,
		"traveler_country":     traveler.ResidenceCountry,
		"traveler_nationality": traveler.Nationality,
		"merchant_id":          invoice.MerchantID.String(),
		"items_count":          len(invoice.Items),
	}
}

// AssessRisk accumulates the score impacts of every matching active rule plus
// the two built-in checks, and returns the score with the matched flags.
func AssessRisk(ev Evaluation) (int, []string) {
	score := 0
	flags := []string{}

	context := BuildRiskContext(ev.Invoice, ev.Traveler)
	for _, rule := range ev.RuleSet.RiskRules {
		if !rule.IsActive {
			continue
		}
		if impact := EvaluateRiskRule(&rule, context); impact > 0 {
			score += impact
			flags = append(flags, rule.Name)
		}
	}

	if ev.Invoice.TotalAmount.GreaterThanOrEqual(ev.RuleSet.HighValueThreshold) {
		score += highValueImpact
		flags = append(flags, highValueFlag)
	}

	if ev.RecentFormCount >= frequentTravelerCount {
		score += frequentImpact
		flags = append(flags, frequentFlag)
	}

	return score, flags
}

// EvaluateRiskRule returns the rule's score impact when its predicate matches
// the context, 0 otherwise. A field missing from the context scores 0; a type
// mismatch on a numeric comparison is treated as non-matching.
func EvaluateRiskRule(rule *model.RiskRule, context map[string]any) int {
	fieldValue, ok := context[rule.Field]
	if !ok || fieldValue == nil {
		return 0
	}

	matched := false
	switch rule.Operator {
	case model.OpEquals:
		matched = valuesEqual(fieldValue, rule.Value)
	case model.OpNotEquals:
		matched = !valuesEqual(fieldValue, rule.Value)
	case model.OpGreaterThan:
		a, aok := coerceFloat(fieldValue)
		b, bok := coerceFloat(rule.Value)
		matched = aok && bok && a > b
	case model.OpLessThan:
		a, aok := coerceFloat(fieldValue)
		b, bok := coerceFloat(rule.Value)
		matched = aok && bok && a < b
	case model.OpIn:
		if list, ok := rule.Value.([]any); ok {
			matched = listContains(list, fieldValue)
		}
	case model.OpNotIn:
		if list, ok := rule.Value.([]any); ok {
			matched = !listContains(list, fieldValue)
		}
	}

	if matched {
		return rule.ScoreImpact
	}
	return 0
}

// ValidateRiskRule checks operator/value compatibility at rule-save time so
// evaluation never has to guess: in/not_in need a list, ordering operators
// need a number, equality needs a scalar.
func ValidateRiskRule(operator string, value any) error {
	switch operator {
	case model.OpEquals, model.OpNotEquals:
		if _, isList := value.([]any); isList {
			return fmt.Errorf("operator %q requires a scalar value, got a list", operator)
		}
	case model.OpGreaterThan, model.OpLessThan:
		if _, ok := coerceFloat(value); !ok {
			return fmt.Errorf("operator %q requires a numeric value", operator)
		}
	case model.OpIn, model.OpNotIn:
		if _, isList := value.([]any); !isList {
			return fmt.Errorf("operator %q requires a list value", operator)
		}
	default:
		return fmt.Errorf("unknown operator %q", operator)
	}
	return nil
}

func listContains(list []any, fieldValue any) bool {
	for _, candidate := range list {
		if valuesEqual(fieldValue, candidate) {
			return true
		}
	}
	return false
}

// valuesEqual compares a context value with a JSON-decoded rule value.
// Numbers compare numerically regardless of Go type (JSON decodes all numbers
// as float64 while context values may be int); everything else compares
// exactly.
func valuesEqual(a, b any) bool {
	if af, aok := asNumber(a); aok {
		if bf, bok := asNumber(b); bok {
			return af == bf
		}
		return false
	}
	if as, ok := a.(string); ok {
		bs, ok := b.(string)
		return ok && as == bs
	}
	return reflect.DeepEqual(a, b)
}

func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// coerceFloat is the looser coercion used by the ordering operators: numeric
// strings count as numbers as well.
func coerceFloat(v any) (float64, bool) {
	if f, ok := asNumber(v); ok {
		return f, true
	}
	if s, ok := v.(string); ok {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f, true
		}
	}
	return 0, false
}
