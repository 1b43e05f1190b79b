package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"backend/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// --- DTOs ---

type RegisterMerchantRequest struct {
	Name          string                  `json:"name" binding:"required"`
	TaxID         string                  `json:"tax_id" binding:"required"`
	ContactPerson string                  `json:"contact_person"`
	Phone         string                  `json:"phone"`
	Email         string                  `json:"email"`
	Address       string                  `json:"address"`
	Outlets       []RegisterOutletRequest `json:"outlets"`
}

type RegisterOutletRequest struct {
	Name    string `json:"name" binding:"required"`
	Address string `json:"address"`
	City    string `json:"city"`
}

type MerchantStatusRequest struct {
	Reason string `json:"reason"`
}

type MerchantResponse struct {
	ID            string           `json:"id"`
	Name          string           `json:"name"`
	TaxID         string           `json:"tax_id"`
	ContactPerson string           `json:"contact_person"`
	Phone         string           `json:"phone"`
	Email         string           `json:"email"`
	Address       string           `json:"address"`
	Status        string           `json:"status"`
	StatusReason  string           `json:"status_reason"`
	ApprovedAt    *string          `json:"approved_at"`
	Outlets       []OutletResponse `json:"outlets,omitempty"`
	CreatedAt     string           `json:"created_at"`
}

type OutletResponse struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Address  string `json:"address"`
	City     string `json:"city"`
	IsActive bool   `json:"is_active"`
}

// --- Interface ---

type MerchantService interface {
	RegisterMerchant(ctx context.Context, req RegisterMerchantRequest, userID string) (MerchantResponse, error)
	ApproveMerchant(ctx context.Context, id string, userID string) (MerchantResponse, error)
	SuspendMerchant(ctx context.Context, id string, req MerchantStatusRequest, userID string) (MerchantResponse, error)
	GetMerchants(ctx context.Context, status string, page, limit int) ([]MerchantResponse, int64, error)
	GetMerchant(ctx context.Context, id string) (MerchantResponse, error)
	AddOutlet(ctx context.Context, merchantID string, req RegisterOutletRequest) (OutletResponse, error)
}

type merchantService struct {
	db *gorm.DB
}

func NewMerchantService(db *gorm.DB) MerchantService {
	return &merchantService{db: db}
}

// --- Implementation ---

func (s *merchantService) RegisterMerchant(ctx context.Context, req RegisterMerchantRequest, userID string) (MerchantResponse, error) {
	var existing model.Merchant
	err := s.db.WithContext(ctx).First(&existing, "tax_id = ?", req.TaxID).Error
	if err == nil {
		return MerchantResponse{}, fmt.Errorf("a merchant with tax id '%s' already exists", req.TaxID)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return MerchantResponse{}, fmt.Errorf("failed to check merchant tax id: %w", err)
	}

	merchant := model.Merchant{
		Name:          req.Name,
		TaxID:         req.TaxID,
		ContactPerson: req.ContactPerson,
		Phone:         req.Phone,
		Email:         req.Email,
		Address:       req.Address,
		Status:        model.MerchantPending,
	}
	for _, o := range req.Outlets {
		merchant.Outlets = append(merchant.Outlets, model.Outlet{
			Name:     o.Name,
			Address:  o.Address,
			City:     o.City,
			IsActive: true,
		})
	}

	if err := s.db.WithContext(ctx).Create(&merchant).Error; err != nil {
		return MerchantResponse{}, fmt.Errorf("failed to register merchant: %w", err)
	}

	return toMerchantResponse(merchant), nil
}

func (s *merchantService) ApproveMerchant(ctx context.Context, id string, userID string) (MerchantResponse, error) {
	merchantID, err := uuid.Parse(id)
	if err != nil {
		return MerchantResponse{}, fmt.Errorf("invalid merchant id: %w", err)
	}

	userUUID := parseOptionalUUID(userID)

	var merchant model.Merchant
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if findErr := tx.First(&merchant, "id = ?", merchantID).Error; findErr != nil {
			if errors.Is(findErr, gorm.ErrRecordNotFound) {
				return fmt.Errorf("merchant not found")
			}
			return fmt.Errorf("failed to fetch merchant: %w", findErr)
		}
		if merchant.Status == model.MerchantApproved {
			return fmt.Errorf("merchant is already approved")
		}
		if merchant.Status == model.MerchantRevoked {
			return fmt.Errorf("a revoked merchant cannot be approved")
		}

		now := time.Now()
		merchant.Status = model.MerchantApproved
		merchant.StatusReason = ""
		merchant.ApprovedAt = &now
		merchant.ApprovedBy = userUUID
		if saveErr := tx.Save(&merchant).Error; saveErr != nil {
			return fmt.Errorf("failed to approve merchant: %w", saveErr)
		}
		return nil
	})
	if err != nil {
		return MerchantResponse{}, err
	}

	details, _ := json.Marshal(map[string]string{"tax_id": merchant.TaxID})
	recordAuditDB(ctx, s.db, &model.AuditLog{
		UserID:     userUUID,
		Action:     model.ActionMerchantApproved,
		EntityID:   merchant.ID.String(),
		EntityName: merchant.Name,
		Details:    string(details),
	})

	return toMerchantResponse(merchant), nil
}

func (s *merchantService) SuspendMerchant(ctx context.Context, id string, req MerchantStatusRequest, userID string) (MerchantResponse, error) {
	merchantID, err := uuid.Parse(id)
	if err != nil {
		return MerchantResponse{}, fmt.Errorf("invalid merchant id: %w", err)
	}

	userUUID := parseOptionalUUID(userID)

	var merchant model.Merchant
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if findErr := tx.First(&merchant, "id = ?", merchantID).Error; findErr != nil {
			if errors.Is(findErr, gorm.ErrRecordNotFound) {
				return fmt.Errorf("merchant not found")
			}
			return fmt.Errorf("failed to fetch merchant: %w", findErr)
		}
		if merchant.Status != model.MerchantApproved {
			return fmt.Errorf("only an approved merchant can be suspended")
		}

		merchant.Status = model.MerchantSuspended
		merchant.StatusReason = req.Reason
		if saveErr := tx.Save(&merchant).Error; saveErr != nil {
			return fmt.Errorf("failed to suspend merchant: %w", saveErr)
		}
		return nil
	})
	if err != nil {
		return MerchantResponse{}, err
	}

	details, _ := json.Marshal(map[string]string{"reason": req.Reason})
	recordAuditDB(ctx, s.db, &model.AuditLog{
		UserID:     userUUID,
		Action:     model.ActionMerchantSuspended,
		EntityID:   merchant.ID.String(),
		EntityName: merchant.Name,
		Details:    string(details),
	})

	return toMerchantResponse(merchant), nil
}

func (s *merchantService) GetMerchants(ctx context.Context, status string, page, limit int) ([]MerchantResponse, int64, error) {
	var total int64
	countQuery := s.db.WithContext(ctx).Model(&model.Merchant{})
	if status != "" {
		countQuery = countQuery.Where("status = ?", status)
	}
	if err := countQuery.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count merchants: %w", err)
	}

	var merchants []model.Merchant
	fetch := s.db.WithContext(ctx).Preload("Outlets")
	if status != "" {
		fetch = fetch.Where("status = ?", status)
	}
	offset := (page - 1) * limit
	if err := fetch.Order("created_at desc").Offset(offset).Limit(limit).Find(&merchants).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch merchants: %w", err)
	}

	res := make([]MerchantResponse, 0, len(merchants))
	for _, m := range merchants {
		res = append(res, toMerchantResponse(m))
	}
	return res, total, nil
}

func (s *merchantService) GetMerchant(ctx context.Context, id string) (MerchantResponse, error) {
	merchantID, err := uuid.Parse(id)
	if err != nil {
		return MerchantResponse{}, fmt.Errorf("invalid merchant id: %w", err)
	}

	var merchant model.Merchant
	if err := s.db.WithContext(ctx).Preload("Outlets").First(&merchant, "id = ?", merchantID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return MerchantResponse{}, fmt.Errorf("merchant not found")
		}
		return MerchantResponse{}, fmt.Errorf("failed to fetch merchant: %w", err)
	}
	return toMerchantResponse(merchant), nil
}

func (s *merchantService) AddOutlet(ctx context.Context, merchantID string, req RegisterOutletRequest) (OutletResponse, error) {
	id, err := uuid.Parse(merchantID)
	if err != nil {
		return OutletResponse{}, fmt.Errorf("invalid merchant id: %w", err)
	}

	var merchant model.Merchant
	if err := s.db.WithContext(ctx).First(&merchant, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return OutletResponse{}, fmt.Errorf("merchant not found")
		}
		return OutletResponse{}, fmt.Errorf("failed to fetch merchant: %w", err)
	}

	outlet := model.Outlet{
		MerchantID: merchant.ID,
		Name:       req.Name,
		Address:    req.Address,
		City:       req.City,
		IsActive:   true,
	}
	if err := s.db.WithContext(ctx).Create(&outlet).Error; err != nil {
		return OutletResponse{}, fmt.Errorf("failed to create outlet: %w", err)
	}

	return toOutletResponse(outlet), nil
}

// --- Helpers ---

func toMerchantResponse(m model.Merchant) MerchantResponse {
	outlets := make([]OutletResponse, 0, len(m.Outlets))
	for _, o := range m.Outlets {
		outlets = append(outlets, toOutletResponse(o))
	}

	resp := MerchantResponse{
		ID:            m.ID.String(),
		Name:          m.Name,
		TaxID:         m.TaxID,
		ContactPerson: m.ContactPerson,
		Phone:         m.Phone,
		Email:         m.Email,
		Address:       m.Address,
		Status:        m.Status,
		StatusReason:  m.StatusReason,
		Outlets:       outlets,
		CreatedAt:     m.CreatedAt.Format(time.RFC3339),
	}
	if m.ApprovedAt != nil {
		at := m.ApprovedAt.Format(time.RFC3339)
		resp.ApprovedAt = &at
	}
	return resp
}

func toOutletResponse(o model.Outlet) OutletResponse {
	return OutletResponse{
		ID:       o.ID.String(),
		Name:     o.Name,
		Address:  o.Address,
		City:     o.City,
		IsActive: o.IsActive,
	}
}
