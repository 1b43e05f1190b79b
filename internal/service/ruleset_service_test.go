package service

import (
	"context"
	"testing"

	"backend/internal/model"
	"backend/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newRuleSetService(t *testing.T) (RuleSetService, *gorm.DB) {
	t.Helper()
	db := setupTestDB(t)
	svc := NewRuleSetService(
		db,
		repository.NewRuleSetRepository(db),
		repository.NewAuditRepository(db),
		repository.NewTransactionManager(db),
	)
	return svc, db
}

func saveRuleSetReq(version string) SaveRuleSetRequest {
	return SaveRuleSetRequest{
		Version:               version,
		Name:                  "Standard rules",
		MinPurchaseAmount:     "50000",
		MinAge:                16,
		PurchaseWindowDays:    3,
		ExitDeadlineMonths:    3,
		ExcludedCategories:    []string{"ALCOHOL", "TOBACCO"},
		VATRates:              map[string]string{"GENERAL": "16.00", "FOOD": "0.00"},
		DefaultVATRate:        "16.00",
		OperatorFeePercentage: "15.00",
		MinOperatorFee:        "5000",
		AllowedRefundMethods:  []string{model.RefundMethodCard, model.RefundMethodCash},
		RiskScoreThreshold:    70,
		HighValueThreshold:    "500000",
	}
}

func TestCreateRuleSet(t *testing.T) {
	svc, _ := newRuleSetService(t)
	ctx := context.Background()

	t.Run("creates an inactive ruleset", func(t *testing.T) {
		resp, err := svc.CreateRuleSet(ctx, saveRuleSetReq("2026.01"), "")
		require.NoError(t, err)
		assert.Equal(t, "2026.01", resp.Version)
		assert.False(t, resp.IsActive)
		assert.Equal(t, "50000.00", resp.MinPurchaseAmount)
		assert.Equal(t, "5000.00", resp.MinOperatorFee)
	})

	t.Run("rejects duplicate version", func(t *testing.T) {
		_, err := svc.CreateRuleSet(ctx, saveRuleSetReq("2026.01"), "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "already exists")
	})

	t.Run("rejects malformed amount", func(t *testing.T) {
		req := saveRuleSetReq("2026.02")
		req.MinPurchaseAmount = "fifty thousand"
		_, err := svc.CreateRuleSet(ctx, req, "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "min_purchase_amount")
	})

	t.Run("rejects unknown refund method", func(t *testing.T) {
		req := saveRuleSetReq("2026.03")
		req.AllowedRefundMethods = []string{"CHEQUE"}
		_, err := svc.CreateRuleSet(ctx, req, "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown refund method")
	})
}

func TestUpdateRuleSet(t *testing.T) {
	svc, _ := newRuleSetService(t)
	ctx := context.Background()

	created, err := svc.CreateRuleSet(ctx, saveRuleSetReq("2026.01"), "")
	require.NoError(t, err)

	t.Run("rewrites an inactive ruleset", func(t *testing.T) {
		req := saveRuleSetReq("2026.01")
		req.MinAge = 18
		req.HighValueThreshold = "750000"
		resp, err := svc.UpdateRuleSet(ctx, created.ID, req, "")
		require.NoError(t, err)
		assert.Equal(t, 18, resp.MinAge)
		assert.Equal(t, "750000.00", resp.HighValueThreshold)
	})

	t.Run("active rulesets are immutable", func(t *testing.T) {
		_, err := svc.ActivateRuleSet(ctx, created.ID, "")
		require.NoError(t, err)

		_, err = svc.UpdateRuleSet(ctx, created.ID, saveRuleSetReq("2026.01"), "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cannot edit an active ruleset")
	})
}

func TestActivateRuleSet(t *testing.T) {
	svc, db := newRuleSetService(t)
	ctx := context.Background()

	first, err := svc.CreateRuleSet(ctx, saveRuleSetReq("2026.01"), "")
	require.NoError(t, err)
	second, err := svc.CreateRuleSet(ctx, saveRuleSetReq("2026.02"), "")
	require.NoError(t, err)

	t.Run("activation is exclusive", func(t *testing.T) {
		resp, err := svc.ActivateRuleSet(ctx, first.ID, "")
		require.NoError(t, err)
		assert.True(t, resp.IsActive)
		assert.NotNil(t, resp.ActivatedAt)

		resp, err = svc.ActivateRuleSet(ctx, second.ID, "")
		require.NoError(t, err)
		assert.True(t, resp.IsActive)

		var count int64
		require.NoError(t, db.Model(&model.RuleSet{}).Where("is_active = ?", true).Count(&count).Error)
		assert.Equal(t, int64(1), count)

		active, err := svc.GetActiveRuleSet(ctx)
		require.NoError(t, err)
		assert.Equal(t, "2026.02", active.Version)
	})

	t.Run("re-activating the active ruleset is a no-op", func(t *testing.T) {
		resp, err := svc.ActivateRuleSet(ctx, second.ID, "")
		require.NoError(t, err)
		assert.True(t, resp.IsActive)
	})

	t.Run("unknown ruleset", func(t *testing.T) {
		_, err := svc.ActivateRuleSet(ctx, "b2f9a550-74e3-4f3e-9f2e-1f0a4d1c9a11", "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not found")
	})
}

func TestDuplicateRuleSet(t *testing.T) {
	svc, _ := newRuleSetService(t)
	ctx := context.Background()

	source, err := svc.CreateRuleSet(ctx, saveRuleSetReq("2026.01"), "")
	require.NoError(t, err)
	_, err = svc.SaveRiskRule(ctx, source.ID, "", SaveRiskRuleRequest{
		Name:        "High amount",
		Field:       "amount",
		Operator:    model.OpGreaterThan,
		Value:       float64(300000),
		ScoreImpact: 25,
	}, "")
	require.NoError(t, err)
	_, err = svc.ActivateRuleSet(ctx, source.ID, "")
	require.NoError(t, err)

	t.Run("clones parameters and risk rules into an inactive version", func(t *testing.T) {
		clone, err := svc.DuplicateRuleSet(ctx, source.ID, "2026.02", "")
		require.NoError(t, err)

		assert.Equal(t, "2026.02", clone.Version)
		assert.Equal(t, "Standard rules (copy)", clone.Name)
		assert.False(t, clone.IsActive)
		assert.Nil(t, clone.ActivatedAt)
		require.Len(t, clone.RiskRules, 1)
		assert.Equal(t, "High amount", clone.RiskRules[0].Name)
		assert.NotEqual(t, source.ID, clone.ID)

		// The clone is editable while the source stays active
		fresh, err := svc.GetActiveRuleSet(ctx)
		require.NoError(t, err)
		assert.Equal(t, "2026.01", fresh.Version)
	})

	t.Run("rejects an existing version", func(t *testing.T) {
		_, err := svc.DuplicateRuleSet(ctx, source.ID, "2026.02", "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "already exists")
	})

	t.Run("requires a version", func(t *testing.T) {
		_, err := svc.DuplicateRuleSet(ctx, source.ID, "", "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "version is required")
	})
}

func TestSaveRiskRule(t *testing.T) {
	svc, _ := newRuleSetService(t)
	ctx := context.Background()

	rs, err := svc.CreateRuleSet(ctx, saveRuleSetReq("2026.01"), "")
	require.NoError(t, err)

	t.Run("creates a rule", func(t *testing.T) {
		rule, err := svc.SaveRiskRule(ctx, rs.ID, "", SaveRiskRuleRequest{
			Name:        "Watchlist country",
			Field:       "traveler_country",
			Operator:    model.OpIn,
			Value:       []any{"XX", "YY"},
			ScoreImpact: 40,
		}, "")
		require.NoError(t, err)
		assert.NotEmpty(t, rule.ID)
		assert.True(t, rule.IsActive)

		fetched, err := svc.GetRuleSet(ctx, rs.ID)
		require.NoError(t, err)
		require.Len(t, fetched.RiskRules, 1)
	})

	t.Run("updates an existing rule", func(t *testing.T) {
		created, err := svc.SaveRiskRule(ctx, rs.ID, "", SaveRiskRuleRequest{
			Name:        "Large claim",
			Field:       "amount",
			Operator:    model.OpGreaterThan,
			Value:       float64(200000),
			ScoreImpact: 10,
		}, "")
		require.NoError(t, err)

		inactive := false
		updated, err := svc.SaveRiskRule(ctx, rs.ID, created.ID, SaveRiskRuleRequest{
			Name:        "Large claim",
			Field:       "amount",
			Operator:    model.OpGreaterThan,
			Value:       float64(400000),
			ScoreImpact: 30,
			IsActive:    &inactive,
		}, "")
		require.NoError(t, err)
		assert.Equal(t, created.ID, updated.ID)
		assert.Equal(t, 30, updated.ScoreImpact)
		assert.False(t, updated.IsActive)
	})

	t.Run("rejects operator and value shape mismatch", func(t *testing.T) {
		_, err := svc.SaveRiskRule(ctx, rs.ID, "", SaveRiskRuleRequest{
			Name:        "Broken",
			Field:       "amount",
			Operator:    model.OpGreaterThan,
			Value:       []any{"not", "a", "number"},
			ScoreImpact: 10,
		}, "")
		require.Error(t, err)
	})

	t.Run("delete removes the rule", func(t *testing.T) {
		created, err := svc.SaveRiskRule(ctx, rs.ID, "", SaveRiskRuleRequest{
			Name:        "Ephemeral",
			Field:       "items_count",
			Operator:    model.OpGreaterThan,
			Value:       float64(50),
			ScoreImpact: 5,
		}, "")
		require.NoError(t, err)

		require.NoError(t, svc.DeleteRiskRule(ctx, rs.ID, created.ID, ""))

		err = svc.DeleteRiskRule(ctx, rs.ID, created.ID, "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not found")
	})
}
