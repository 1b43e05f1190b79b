package repository

import (
	"context"

	"backend/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type RuleSetRepository interface {
	Create(ctx context.Context, rs *model.RuleSet) error
	Update(ctx context.Context, rs *model.RuleSet) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.RuleSet, error)
	FindByVersion(ctx context.Context, version string) (*model.RuleSet, error)
	FindActive(ctx context.Context) (*model.RuleSet, error)
	List(ctx context.Context, page, limit int) ([]model.RuleSet, int64, error)
}

type ruleSetRepository struct {
	db *gorm.DB
}

func NewRuleSetRepository(db *gorm.DB) RuleSetRepository {
	return &ruleSetRepository{db: db}
}

func (r *ruleSetRepository) Create(ctx context.Context, rs *model.RuleSet) error {
	return GetDB(ctx, r.db).Create(rs).Error
}

func (r *ruleSetRepository) Update(ctx context.Context, rs *model.RuleSet) error {
	return GetDB(ctx, r.db).Save(rs).Error
}

func (r *ruleSetRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.RuleSet, error) {
	var rs model.RuleSet
	if err := GetDB(ctx, r.db).Preload("RiskRules").First(&rs, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &rs, nil
}

func (r *ruleSetRepository) FindByVersion(ctx context.Context, version string) (*model.RuleSet, error) {
	var rs model.RuleSet
	if err := GetDB(ctx, r.db).First(&rs, "version = ?", version).Error; err != nil {
		return nil, err
	}
	return &rs, nil
}

// FindActive returns the single active ruleset with its risk rules preloaded
func (r *ruleSetRepository) FindActive(ctx context.Context) (*model.RuleSet, error) {
	var rs model.RuleSet
	if err := GetDB(ctx, r.db).Preload("RiskRules").First(&rs, "is_active = ?", true).Error; err != nil {
		return nil, err
	}
	return &rs, nil
}

func (r *ruleSetRepository) List(ctx context.Context, page, limit int) ([]model.RuleSet, int64, error) {
	var sets []model.RuleSet
	var total int64

	db := GetDB(ctx, r.db)
	if err := db.Model(&model.RuleSet{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := db.Order("created_at desc").Offset(offset).Limit(limit).Find(&sets).Error; err != nil {
		return nil, 0, err
	}

	return sets, total, nil
}
