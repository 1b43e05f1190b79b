package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"backend/internal/engine"
	"backend/internal/model"
	"backend/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// --- DTOs ---

type SaveRuleSetRequest struct {
	Version     string `json:"version" binding:"required"`
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`

	MinPurchaseAmount string `json:"min_purchase_amount" binding:"required"`
	MinAge            int    `json:"min_age" binding:"required"`

	PurchaseWindowDays int `json:"purchase_window_days"`
	ExitDeadlineMonths int `json:"exit_deadline_months"`

	EligibleResidenceCountries []string `json:"eligible_residence_countries"`
	ExcludedResidenceCountries []string `json:"excluded_residence_countries"`
	ExcludedCategories         []string `json:"excluded_categories"`

	VATRates       map[string]string `json:"vat_rates"`
	DefaultVATRate string            `json:"default_vat_rate" binding:"required"`

	OperatorFeePercentage string `json:"operator_fee_percentage" binding:"required"`
	OperatorFeeFixed      string `json:"operator_fee_fixed"`
	MinOperatorFee        string `json:"min_operator_fee"`

	AllowedRefundMethods []string `json:"allowed_refund_methods"`

	RiskScoreThreshold int    `json:"risk_score_threshold"`
	HighValueThreshold string `json:"high_value_threshold"`
}

type SaveRiskRuleRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	Field       string `json:"field" binding:"required"`
	Operator    string `json:"operator" binding:"required,oneof=equals not_equals greater_than less_than in not_in"`
	Value       any    `json:"value" binding:"required"`
	ScoreImpact int    `json:"score_impact" binding:"required"`
	IsActive    *bool  `json:"is_active"`
}

type RuleSetResponse struct {
	ID          string `json:"id"`
	Version     string `json:"version"`
	Name        string `json:"name"`
	Description string `json:"description"`

	MinPurchaseAmount string `json:"min_purchase_amount"`
	MinAge            int    `json:"min_age"`

	PurchaseWindowDays int `json:"purchase_window_days"`
	ExitDeadlineMonths int `json:"exit_deadline_months"`

	EligibleResidenceCountries []string `json:"eligible_residence_countries"`
	ExcludedResidenceCountries []string `json:"excluded_residence_countries"`
	ExcludedCategories         []string `json:"excluded_categories"`

	VATRates       map[string]string `json:"vat_rates"`
	DefaultVATRate string            `json:"default_vat_rate"`

	OperatorFeePercentage string `json:"operator_fee_percentage"`
	OperatorFeeFixed      string `json:"operator_fee_fixed"`
	MinOperatorFee        string `json:"min_operator_fee"`

	AllowedRefundMethods []string `json:"allowed_refund_methods"`

	RiskScoreThreshold int    `json:"risk_score_threshold"`
	HighValueThreshold string `json:"high_value_threshold"`

	IsActive    bool               `json:"is_active"`
	ActivatedAt *string            `json:"activated_at"`
	RiskRules   []RiskRuleResponse `json:"risk_rules,omitempty"`
	CreatedAt   string             `json:"created_at"`
}

type RiskRuleResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Field       string `json:"field"`
	Operator    string `json:"operator"`
	Value       any    `json:"value"`
	ScoreImpact int    `json:"score_impact"`
	IsActive    bool   `json:"is_active"`
}

// --- Interface ---

type RuleSetService interface {
	CreateRuleSet(ctx context.Context, req SaveRuleSetRequest, userID string) (RuleSetResponse, error)
	UpdateRuleSet(ctx context.Context, id string, req SaveRuleSetRequest, userID string) (RuleSetResponse, error)
	ActivateRuleSet(ctx context.Context, id string, userID string) (RuleSetResponse, error)
	DuplicateRuleSet(ctx context.Context, id string, newVersion string, userID string) (RuleSetResponse, error)
	GetRuleSets(ctx context.Context, page, limit int) ([]RuleSetResponse, int64, error)
	GetRuleSet(ctx context.Context, id string) (RuleSetResponse, error)
	GetActiveRuleSet(ctx context.Context) (RuleSetResponse, error)
	SaveRiskRule(ctx context.Context, rulesetID string, ruleID string, req SaveRiskRuleRequest, userID string) (RiskRuleResponse, error)
	DeleteRiskRule(ctx context.Context, rulesetID string, ruleID string, userID string) error
}

type ruleSetService struct {
	db          *gorm.DB
	ruleSetRepo repository.RuleSetRepository
	auditRepo   repository.AuditRepository
	txManager   repository.TransactionManager
}

func NewRuleSetService(
	db *gorm.DB,
	ruleSetRepo repository.RuleSetRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
) RuleSetService {
	return &ruleSetService{
		db:          db,
		ruleSetRepo: ruleSetRepo,
		auditRepo:   auditRepo,
		txManager:   txManager,
	}
}

// --- Implementation ---

func (s *ruleSetService) CreateRuleSet(ctx context.Context, req SaveRuleSetRequest, userID string) (RuleSetResponse, error) {
	ruleset, err := ruleSetFromRequest(req)
	if err != nil {
		return RuleSetResponse{}, err
	}

	if _, err := s.ruleSetRepo.FindByVersion(ctx, req.Version); err == nil {
		return RuleSetResponse{}, fmt.Errorf("ruleset version '%s' already exists", req.Version)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return RuleSetResponse{}, fmt.Errorf("failed to check ruleset version: %w", err)
	}

	userUUID := parseOptionalUUID(userID)
	ruleset.CreatedBy = userUUID

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if createErr := s.ruleSetRepo.Create(txCtx, ruleset); createErr != nil {
			return fmt.Errorf("failed to create ruleset: %w", createErr)
		}

		return nil
	})
	if err != nil {
		return RuleSetResponse{}, err
	}

	details, _ := json.Marshal(map[string]string{"version": req.Version, "name": req.Name})
	recordAudit(ctx, s.auditRepo, &model.AuditLog{
		UserID:     userUUID,
		Action:     model.ActionRuleSetCreated,
		EntityID:   ruleset.ID.String(),
		EntityName: req.Version,
		Details:    string(details),
	})

	return toRuleSetResponse(*ruleset), nil
}

// UpdateRuleSet rewrites the parameters of an INACTIVE ruleset. Active
// rulesets are immutable: changes go through duplicate-then-activate so that
// the version string always identifies one fixed parameter bundle.
func (s *ruleSetService) UpdateRuleSet(ctx context.Context, id string, req SaveRuleSetRequest, userID string) (RuleSetResponse, error) {
	rulesetID, err := uuid.Parse(id)
	if err != nil {
		return RuleSetResponse{}, fmt.Errorf("invalid ruleset id: %w", err)
	}

	existing, err := s.ruleSetRepo.FindByID(ctx, rulesetID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return RuleSetResponse{}, fmt.Errorf("ruleset not found")
		}
		return RuleSetResponse{}, fmt.Errorf("failed to fetch ruleset: %w", err)
	}
	if existing.IsActive {
		return RuleSetResponse{}, fmt.Errorf("cannot edit an active ruleset; duplicate it into a new version instead")
	}

	updated, err := ruleSetFromRequest(req)
	if err != nil {
		return RuleSetResponse{}, err
	}

	if req.Version != existing.Version {
		if _, findErr := s.ruleSetRepo.FindByVersion(ctx, req.Version); findErr == nil {
			return RuleSetResponse{}, fmt.Errorf("ruleset version '%s' already exists", req.Version)
		} else if !errors.Is(findErr, gorm.ErrRecordNotFound) {
			return RuleSetResponse{}, fmt.Errorf("failed to check ruleset version: %w", findErr)
		}
	}

	updated.ID = existing.ID
	updated.CreatedBy = existing.CreatedBy
	updated.CreatedAt = existing.CreatedAt

	userUUID := parseOptionalUUID(userID)
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if saveErr := s.ruleSetRepo.Update(txCtx, updated); saveErr != nil {
			return fmt.Errorf("failed to update ruleset: %w", saveErr)
		}

		return nil
	})
	if err != nil {
		return RuleSetResponse{}, err
	}

	details, _ := json.Marshal(map[string]string{"version": req.Version, "name": req.Name})
	recordAudit(ctx, s.auditRepo, &model.AuditLog{
		UserID:     userUUID,
		Action:     model.ActionRuleSetUpdated,
		EntityID:   updated.ID.String(),
		EntityName: req.Version,
		Details:    string(details),
	})

	return toRuleSetResponse(*updated), nil
}

// ActivateRuleSet deactivates every other ruleset and activates the target one
// in a single transaction, preserving the at-most-one-active invariant.
func (s *ruleSetService) ActivateRuleSet(ctx context.Context, id string, userID string) (RuleSetResponse, error) {
	rulesetID, err := uuid.Parse(id)
	if err != nil {
		return RuleSetResponse{}, fmt.Errorf("invalid ruleset id: %w", err)
	}

	userUUID := parseOptionalUUID(userID)

	var (
		activated   model.RuleSet
		didActivate bool
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ruleset model.RuleSet
		if findErr := tx.First(&ruleset, "id = ?", rulesetID).Error; findErr != nil {
			if errors.Is(findErr, gorm.ErrRecordNotFound) {
				return fmt.Errorf("ruleset not found")
			}
			return fmt.Errorf("failed to fetch ruleset: %w", findErr)
		}
		if ruleset.IsActive {
			activated = ruleset
			return nil
		}

		if updErr := tx.Model(&model.RuleSet{}).
			Where("is_active = ?", true).
			Updates(map[string]any{"is_active": false}).Error; updErr != nil {
			return fmt.Errorf("failed to deactivate current ruleset: %w", updErr)
		}

		now := time.Now()
		ruleset.IsActive = true
		ruleset.ActivatedAt = &now
		ruleset.ActivatedBy = userUUID
		if saveErr := tx.Save(&ruleset).Error; saveErr != nil {
			return fmt.Errorf("failed to activate ruleset: %w", saveErr)
		}

		didActivate = true
		activated = ruleset
		return nil
	})
	if err != nil {
		return RuleSetResponse{}, err
	}

	if didActivate {
		details, _ := json.Marshal(map[string]string{"version": activated.Version})
		recordAudit(ctx, s.auditRepo, &model.AuditLog{
			UserID:     userUUID,
			Action:     model.ActionRuleSetActivated,
			EntityID:   activated.ID.String(),
			EntityName: activated.Version,
			Details:    string(details),
		})
	}

	return toRuleSetResponse(activated), nil
}

// DuplicateRuleSet copies a ruleset and its risk rules into a new inactive
// version, the starting point for parameter changes.
func (s *ruleSetService) DuplicateRuleSet(ctx context.Context, id string, newVersion string, userID string) (RuleSetResponse, error) {
	rulesetID, err := uuid.Parse(id)
	if err != nil {
		return RuleSetResponse{}, fmt.Errorf("invalid ruleset id: %w", err)
	}
	if newVersion == "" {
		return RuleSetResponse{}, fmt.Errorf("new version is required")
	}

	source, err := s.ruleSetRepo.FindByID(ctx, rulesetID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return RuleSetResponse{}, fmt.Errorf("ruleset not found")
		}
		return RuleSetResponse{}, fmt.Errorf("failed to fetch ruleset: %w", err)
	}

	if _, err := s.ruleSetRepo.FindByVersion(ctx, newVersion); err == nil {
		return RuleSetResponse{}, fmt.Errorf("ruleset version '%s' already exists", newVersion)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return RuleSetResponse{}, fmt.Errorf("failed to check ruleset version: %w", err)
	}

	userUUID := parseOptionalUUID(userID)

	copied := *source
	copied.ID = uuid.Nil
	copied.Version = newVersion
	copied.Name = source.Name + " (copy)"
	copied.IsActive = false
	copied.ActivatedAt = nil
	copied.ActivatedBy = nil
	copied.CreatedBy = userUUID
	copied.CreatedAt = time.Time{}
	copied.UpdatedAt = time.Time{}

	copied.RiskRules = make([]model.RiskRule, 0, len(source.RiskRules))
	for _, rule := range source.RiskRules {
		clone := rule
		clone.ID = uuid.Nil
		clone.RuleSetID = uuid.Nil
		clone.CreatedAt = time.Time{}
		copied.RiskRules = append(copied.RiskRules, clone)
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if createErr := s.ruleSetRepo.Create(txCtx, &copied); createErr != nil {
			return fmt.Errorf("failed to create ruleset copy: %w", createErr)
		}
		return nil
	})
	if err != nil {
		return RuleSetResponse{}, err
	}

	details, _ := json.Marshal(map[string]string{
		"source_version": source.Version,
		"new_version":    newVersion,
	})
	recordAudit(ctx, s.auditRepo, &model.AuditLog{
		UserID:     userUUID,
		Action:     model.ActionRuleSetDuplicated,
		EntityID:   copied.ID.String(),
		EntityName: newVersion,
		Details:    string(details),
	})

	return toRuleSetResponse(copied), nil
}

func (s *ruleSetService) GetRuleSets(ctx context.Context, page, limit int) ([]RuleSetResponse, int64, error) {
	sets, total, err := s.ruleSetRepo.List(ctx, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch rulesets: %w", err)
	}

	res := make([]RuleSetResponse, 0, len(sets))
	for _, rs := range sets {
		res = append(res, toRuleSetResponse(rs))
	}
	return res, total, nil
}

func (s *ruleSetService) GetRuleSet(ctx context.Context, id string) (RuleSetResponse, error) {
	rulesetID, err := uuid.Parse(id)
	if err != nil {
		return RuleSetResponse{}, fmt.Errorf("invalid ruleset id: %w", err)
	}

	ruleset, err := s.ruleSetRepo.FindByID(ctx, rulesetID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return RuleSetResponse{}, fmt.Errorf("ruleset not found")
		}
		return RuleSetResponse{}, fmt.Errorf("failed to fetch ruleset: %w", err)
	}
	return toRuleSetResponse(*ruleset), nil
}

func (s *ruleSetService) GetActiveRuleSet(ctx context.Context) (RuleSetResponse, error) {
	ruleset, err := s.ruleSetRepo.FindActive(ctx)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return RuleSetResponse{}, fmt.Errorf("no active ruleset configured")
		}
		return RuleSetResponse{}, fmt.Errorf("failed to fetch active ruleset: %w", err)
	}
	return toRuleSetResponse(*ruleset), nil
}

// SaveRiskRule creates (empty ruleID) or updates a risk rule after validating
// that the operator and value shape are consistent.
func (s *ruleSetService) SaveRiskRule(ctx context.Context, rulesetID string, ruleID string, req SaveRiskRuleRequest, userID string) (RiskRuleResponse, error) {
	parentID, err := uuid.Parse(rulesetID)
	if err != nil {
		return RiskRuleResponse{}, fmt.Errorf("invalid ruleset id: %w", err)
	}

	if err := engine.ValidateRiskRule(req.Operator, req.Value); err != nil {
		return RiskRuleResponse{}, err
	}

	if _, err := s.ruleSetRepo.FindByID(ctx, parentID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return RiskRuleResponse{}, fmt.Errorf("ruleset not found")
		}
		return RiskRuleResponse{}, fmt.Errorf("failed to fetch ruleset: %w", err)
	}

	var rule model.RiskRule
	if ruleID != "" {
		id, parseErr := uuid.Parse(ruleID)
		if parseErr != nil {
			return RiskRuleResponse{}, fmt.Errorf("invalid risk rule id: %w", parseErr)
		}
		if findErr := s.db.WithContext(ctx).First(&rule, "id = ? AND rule_set_id = ?", id, parentID).Error; findErr != nil {
			if errors.Is(findErr, gorm.ErrRecordNotFound) {
				return RiskRuleResponse{}, fmt.Errorf("risk rule not found")
			}
			return RiskRuleResponse{}, fmt.Errorf("failed to fetch risk rule: %w", findErr)
		}
	} else {
		rule.RuleSetID = parentID
	}

	rule.Name = req.Name
	rule.Description = req.Description
	rule.Field = req.Field
	rule.Operator = req.Operator
	rule.Value = req.Value
	rule.ScoreImpact = req.ScoreImpact
	rule.IsActive = true
	if req.IsActive != nil {
		rule.IsActive = *req.IsActive
	}

	userUUID := parseOptionalUUID(userID)
	if saveErr := s.db.WithContext(ctx).Save(&rule).Error; saveErr != nil {
		return RiskRuleResponse{}, fmt.Errorf("failed to save risk rule: %w", saveErr)
	}

	details, _ := json.Marshal(map[string]any{
		"field":        rule.Field,
		"operator":     rule.Operator,
		"score_impact": rule.ScoreImpact,
	})
	recordAudit(ctx, s.auditRepo, &model.AuditLog{
		UserID:     userUUID,
		Action:     model.ActionRiskRuleSaved,
		EntityID:   rule.ID.String(),
		EntityName: rule.Name,
		Details:    string(details),
	})

	return toRiskRuleResponse(rule), nil
}

func (s *ruleSetService) DeleteRiskRule(ctx context.Context, rulesetID string, ruleID string, userID string) error {
	parentID, err := uuid.Parse(rulesetID)
	if err != nil {
		return fmt.Errorf("invalid ruleset id: %w", err)
	}
	id, err := uuid.Parse(ruleID)
	if err != nil {
		return fmt.Errorf("invalid risk rule id: %w", err)
	}

	var rule model.RiskRule
	if err := s.db.WithContext(ctx).First(&rule, "id = ? AND rule_set_id = ?", id, parentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("risk rule not found")
		}
		return fmt.Errorf("failed to fetch risk rule: %w", err)
	}

	if err := s.db.WithContext(ctx).Delete(&rule).Error; err != nil {
		return fmt.Errorf("failed to delete risk rule: %w", err)
	}

	userUUID := parseOptionalUUID(userID)
	details, _ := json.Marshal(map[string]string{"deleted_id": ruleID})
	recordAudit(ctx, s.auditRepo, &model.AuditLog{
		UserID:     userUUID,
		Action:     model.ActionRiskRuleSaved,
		EntityID:   ruleID,
		EntityName: rule.Name,
		Details:    string(details),
	})

	return nil
}

// --- Helpers ---

func ruleSetFromRequest(req SaveRuleSetRequest) (*model.RuleSet, error) {
	minPurchase, err := decimal.NewFromString(req.MinPurchaseAmount)
	if err != nil {
		return nil, fmt.Errorf("invalid min_purchase_amount: %w", err)
	}
	defaultVAT, err := decimal.NewFromString(req.DefaultVATRate)
	if err != nil {
		return nil, fmt.Errorf("invalid default_vat_rate: %w", err)
	}
	feePct, err := decimal.NewFromString(req.OperatorFeePercentage)
	if err != nil {
		return nil, fmt.Errorf("invalid operator_fee_percentage: %w", err)
	}

	feeFixed := decimal.Zero
	if req.OperatorFeeFixed != "" {
		feeFixed, err = decimal.NewFromString(req.OperatorFeeFixed)
		if err != nil {
			return nil, fmt.Errorf("invalid operator_fee_fixed: %w", err)
		}
	}
	minFee := decimal.Zero
	if req.MinOperatorFee != "" {
		minFee, err = decimal.NewFromString(req.MinOperatorFee)
		if err != nil {
			return nil, fmt.Errorf("invalid min_operator_fee: %w", err)
		}
	}

	highValue := decimal.NewFromInt(500000)
	if req.HighValueThreshold != "" {
		highValue, err = decimal.NewFromString(req.HighValueThreshold)
		if err != nil {
			return nil, fmt.Errorf("invalid high_value_threshold: %w", err)
		}
	}

	vatRates := make(map[string]decimal.Decimal, len(req.VATRates))
	for category, rateStr := range req.VATRates {
		rate, rateErr := decimal.NewFromString(rateStr)
		if rateErr != nil {
			return nil, fmt.Errorf("invalid vat rate for category '%s': %w", category, rateErr)
		}
		vatRates[category] = rate
	}

	for _, method := range req.AllowedRefundMethods {
		switch method {
		case model.RefundMethodCard, model.RefundMethodBankTransfer, model.RefundMethodMobileMoney, model.RefundMethodCash:
		default:
			return nil, fmt.Errorf("unknown refund method '%s'", method)
		}
	}

	purchaseWindow := req.PurchaseWindowDays
	if purchaseWindow <= 0 {
		purchaseWindow = 3
	}
	exitDeadline := req.ExitDeadlineMonths
	if exitDeadline <= 0 {
		exitDeadline = 3
	}
	riskThreshold := req.RiskScoreThreshold
	if riskThreshold <= 0 {
		riskThreshold = 70
	}

	return &model.RuleSet{
		Version:     req.Version,
		Name:        req.Name,
		Description: req.Description,

		MinPurchaseAmount: minPurchase,
		MinAge:            req.MinAge,

		PurchaseWindowDays: purchaseWindow,
		ExitDeadlineMonths: exitDeadline,

		EligibleResidenceCountries: req.EligibleResidenceCountries,
		ExcludedResidenceCountries: req.ExcludedResidenceCountries,
		ExcludedCategories:         req.ExcludedCategories,

		VATRates:       vatRates,
		DefaultVATRate: defaultVAT,

		OperatorFeePercentage: feePct,
		OperatorFeeFixed:      feeFixed,
		MinOperatorFee:        minFee,

		AllowedRefundMethods: req.AllowedRefundMethods,

		RiskScoreThreshold: riskThreshold,
		HighValueThreshold: highValue,
	}, nil
}

func toRuleSetResponse(rs model.RuleSet) RuleSetResponse {
	vatRates := make(map[string]string, len(rs.VATRates))
	for category, rate := range rs.VATRates {
		vatRates[category] = rate.StringFixed(2)
	}

	rules := make([]RiskRuleResponse, 0, len(rs.RiskRules))
	for _, rule := range rs.RiskRules {
		rules = append(rules, toRiskRuleResponse(rule))
	}

	resp := RuleSetResponse{
		ID:          rs.ID.String(),
		Version:     rs.Version,
		Name:        rs.Name,
		Description: rs.Description,

		MinPurchaseAmount: rs.MinPurchaseAmount.StringFixed(2),
		MinAge:            rs.MinAge,

		PurchaseWindowDays: rs.PurchaseWindowDays,
		ExitDeadlineMonths: rs.ExitDeadlineMonths,

		EligibleResidenceCountries: rs.EligibleResidenceCountries,
		ExcludedResidenceCountries: rs.ExcludedResidenceCountries,
		ExcludedCategories:         rs.ExcludedCategories,

		VATRates:       vatRates,
		DefaultVATRate: rs.DefaultVATRate.StringFixed(2),

		OperatorFeePercentage: rs.OperatorFeePercentage.StringFixed(2),
		OperatorFeeFixed:      rs.OperatorFeeFixed.StringFixed(2),
		MinOperatorFee:        rs.MinOperatorFee.StringFixed(2),

		AllowedRefundMethods: rs.AllowedRefundMethods,

		RiskScoreThreshold: rs.RiskScoreThreshold,
		HighValueThreshold: rs.HighValueThreshold.StringFixed(2),

		IsActive:  rs.IsActive,
		RiskRules: rules,
		CreatedAt: rs.CreatedAt.Format(time.RFC3339),
	}
	if rs.ActivatedAt != nil {
		at := rs.ActivatedAt.Format(time.RFC3339)
		resp.ActivatedAt = &at
	}
	return resp
}

func toRiskRuleResponse(rule model.RiskRule) RiskRuleResponse {
	return RiskRuleResponse{
		ID:          rule.ID.String(),
		Name:        rule.Name,
		Description: rule.Description,
		Field:       rule.Field,
		Operator:    rule.Operator,
		Value:       rule.Value,
		ScoreImpact: rule.ScoreImpact,
		IsActive:    rule.IsActive,
	}
}
