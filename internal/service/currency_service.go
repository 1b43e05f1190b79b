package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"backend/internal/model"
	"backend/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// --- DTOs ---

type CreateCurrencyRequest struct {
	Code         string `json:"code" binding:"required,len=3"`
	Name         string `json:"name" binding:"required"`
	Symbol       string `json:"symbol"`
	ExchangeRate string `json:"exchange_rate" binding:"required"` // Decimal string, units per 1 base unit
	IsActive     *bool  `json:"is_active"`
}

type UpdateRateRequest struct {
	ExchangeRate string `json:"exchange_rate" binding:"required"`
	Reason       string `json:"reason"`
}

type ConvertRequest struct {
	From   string `json:"from" binding:"required,len=3"`
	To     string `json:"to" binding:"required,len=3"`
	Amount string `json:"amount" binding:"required"`
}

type CurrencyResponse struct {
	ID             string `json:"id"`
	Code           string `json:"code"`
	Name           string `json:"name"`
	Symbol         string `json:"symbol"`
	ExchangeRate   string `json:"exchange_rate"`
	IsBaseCurrency bool   `json:"is_base_currency"`
	IsActive       bool   `json:"is_active"`
	UpdatedAt      string `json:"updated_at"`
}

type RateHistoryResponse struct {
	ID        string `json:"id"`
	OldRate   string `json:"old_rate"`
	NewRate   string `json:"new_rate"`
	ChangedBy string `json:"changed_by"`
	Reason    string `json:"reason"`
	ChangedAt string `json:"changed_at"`
}

type ConvertResponse struct {
	From       string `json:"from"`
	To         string `json:"to"`
	Amount     string `json:"amount"`
	BaseAmount string `json:"base_amount"`
	Result     string `json:"result"`
}

// --- Interface ---

type CurrencyService interface {
	CreateCurrency(ctx context.Context, req CreateCurrencyRequest, userID string) (CurrencyResponse, error)
	UpdateRate(ctx context.Context, code string, req UpdateRateRequest, userID string) (CurrencyResponse, error)
	SetBaseCurrency(ctx context.Context, code string, userID string) (CurrencyResponse, error)
	ToggleActive(ctx context.Context, code string, userID string) (CurrencyResponse, error)
	GetCurrencies(ctx context.Context, activeOnly bool) ([]CurrencyResponse, error)
	GetRateHistory(ctx context.Context, code string, limit int) ([]RateHistoryResponse, error)
	Convert(ctx context.Context, req ConvertRequest) (ConvertResponse, error)
}

type currencyService struct {
	currencyRepo repository.CurrencyRepository
	auditRepo    repository.AuditRepository
	txManager    repository.TransactionManager
}

func NewCurrencyService(
	currencyRepo repository.CurrencyRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
) CurrencyService {
	return &currencyService{
		currencyRepo: currencyRepo,
		auditRepo:    auditRepo,
		txManager:    txManager,
	}
}

// --- Implementation ---

func (s *currencyService) CreateCurrency(ctx context.Context, req CreateCurrencyRequest, userID string) (CurrencyResponse, error) {
	rate, err := decimal.NewFromString(req.ExchangeRate)
	if err != nil {
		return CurrencyResponse{}, fmt.Errorf("invalid exchange_rate: %w", err)
	}
	if !rate.IsPositive() {
		return CurrencyResponse{}, fmt.Errorf("exchange rate must be positive")
	}

	if _, err := s.currencyRepo.FindByCode(ctx, req.Code); err == nil {
		return CurrencyResponse{}, fmt.Errorf("currency '%s' already exists", req.Code)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return CurrencyResponse{}, fmt.Errorf("failed to check currency code: %w", err)
	}

	currency := model.Currency{
		Code:         req.Code,
		Name:         req.Name,
		Symbol:       req.Symbol,
		ExchangeRate: rate,
		IsActive:     true,
	}
	if req.IsActive != nil {
		currency.IsActive = *req.IsActive
	}

	userUUID := parseOptionalUUID(userID)

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if createErr := s.currencyRepo.Create(txCtx, &currency); createErr != nil {
			return fmt.Errorf("failed to create currency: %w", createErr)
		}

		// Seed the history with the opening rate
		history := &model.ExchangeRateHistory{
			CurrencyID: currency.ID,
			OldRate:    rate,
			NewRate:    rate,
			ChangedBy:  userUUID,
			Reason:     "Initial rate",
		}
		if histErr := s.currencyRepo.AppendHistory(txCtx, history); histErr != nil {
			return fmt.Errorf("failed to record rate history: %w", histErr)
		}

		return nil
	})
	if err != nil {
		return CurrencyResponse{}, err
	}

	details, _ := json.Marshal(map[string]string{
		"code": req.Code,
		"rate": rate.StringFixed(6),
	})
	recordAudit(ctx, s.auditRepo, &model.AuditLog{
		UserID:     userUUID,
		Action:     model.ActionCurrencyCreated,
		EntityID:   currency.ID.String(),
		EntityName: req.Code,
		Details:    string(details),
	})

	return toCurrencyResponse(currency), nil
}

// UpdateRate changes a currency's exchange rate and appends the transition to
// the rate history in the same transaction.
func (s *currencyService) UpdateRate(ctx context.Context, code string, req UpdateRateRequest, userID string) (CurrencyResponse, error) {
	newRate, err := decimal.NewFromString(req.ExchangeRate)
	if err != nil {
		return CurrencyResponse{}, fmt.Errorf("invalid exchange_rate: %w", err)
	}
	if !newRate.IsPositive() {
		return CurrencyResponse{}, fmt.Errorf("exchange rate must be positive")
	}

	userUUID := parseOptionalUUID(userID)

	var (
		updated model.Currency
		oldRate decimal.Decimal
	)
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		currency, findErr := s.currencyRepo.FindByCode(txCtx, code)
		if findErr != nil {
			if errors.Is(findErr, gorm.ErrRecordNotFound) {
				return fmt.Errorf("currency '%s' not found", code)
			}
			return fmt.Errorf("failed to fetch currency: %w", findErr)
		}

		// The base currency's rate is pinned to 1
		if currency.IsBaseCurrency {
			return fmt.Errorf("cannot change the exchange rate of the base currency")
		}

		oldRate = currency.ExchangeRate
		currency.ExchangeRate = newRate
		if saveErr := s.currencyRepo.Update(txCtx, currency); saveErr != nil {
			return fmt.Errorf("failed to update currency: %w", saveErr)
		}

		history := &model.ExchangeRateHistory{
			CurrencyID: currency.ID,
			OldRate:    oldRate,
			NewRate:    newRate,
			ChangedBy:  userUUID,
			Reason:     req.Reason,
		}
		if histErr := s.currencyRepo.AppendHistory(txCtx, history); histErr != nil {
			return fmt.Errorf("failed to record rate history: %w", histErr)
		}

		updated = *currency
		return nil
	})
	if err != nil {
		return CurrencyResponse{}, err
	}

	details, _ := json.Marshal(map[string]string{
		"old_rate": oldRate.StringFixed(6),
		"new_rate": newRate.StringFixed(6),
		"reason":   req.Reason,
	})
	recordAudit(ctx, s.auditRepo, &model.AuditLog{
		UserID:     userUUID,
		Action:     model.ActionCurrencyRateChanged,
		EntityID:   updated.ID.String(),
		EntityName: updated.Code,
		Details:    string(details),
	})

	return toCurrencyResponse(updated), nil
}

// SetBaseCurrency promotes one currency to base atomically: the previous base
// is demoted and the new base's rate is forced to exactly 1 in the same
// transaction, so there is never a moment with zero or two base currencies.
func (s *currencyService) SetBaseCurrency(ctx context.Context, code string, userID string) (CurrencyResponse, error) {
	userUUID := parseOptionalUUID(userID)

	var (
		updated      model.Currency
		previousCode string
		promoted     bool
	)
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		currency, findErr := s.currencyRepo.FindByCode(txCtx, code)
		if findErr != nil {
			if errors.Is(findErr, gorm.ErrRecordNotFound) {
				return fmt.Errorf("currency '%s' not found", code)
			}
			return fmt.Errorf("failed to fetch currency: %w", findErr)
		}
		if currency.IsBaseCurrency {
			updated = *currency
			return nil
		}
		if !currency.IsActive {
			return fmt.Errorf("cannot set an inactive currency as base")
		}

		previous, findErr := s.currencyRepo.FindBase(txCtx)
		if findErr != nil && !errors.Is(findErr, gorm.ErrRecordNotFound) {
			return fmt.Errorf("failed to fetch base currency: %w", findErr)
		}
		if previous != nil {
			previous.IsBaseCurrency = false
			if saveErr := s.currencyRepo.Update(txCtx, previous); saveErr != nil {
				return fmt.Errorf("failed to demote base currency: %w", saveErr)
			}
		}

		oldRate := currency.ExchangeRate
		currency.IsBaseCurrency = true
		currency.ExchangeRate = decimal.NewFromInt(1)
		if saveErr := s.currencyRepo.Update(txCtx, currency); saveErr != nil {
			return fmt.Errorf("failed to promote base currency: %w", saveErr)
		}

		if !oldRate.Equal(currency.ExchangeRate) {
			history := &model.ExchangeRateHistory{
				CurrencyID: currency.ID,
				OldRate:    oldRate,
				NewRate:    currency.ExchangeRate,
				ChangedBy:  userUUID,
				Reason:     "Promoted to base currency",
			}
			if histErr := s.currencyRepo.AppendHistory(txCtx, history); histErr != nil {
				return fmt.Errorf("failed to record rate history: %w", histErr)
			}
		}

		if previous != nil {
			previousCode = previous.Code
		}
		promoted = true

		updated = *currency
		return nil
	})
	if err != nil {
		return CurrencyResponse{}, err
	}

	if promoted {
		details, _ := json.Marshal(map[string]string{
			"previous_base": previousCode,
			"new_base":      updated.Code,
		})
		recordAudit(ctx, s.auditRepo, &model.AuditLog{
			UserID:     userUUID,
			Action:     model.ActionCurrencyBaseChanged,
			EntityID:   updated.ID.String(),
			EntityName: updated.Code,
			Details:    string(details),
		})
	}

	return toCurrencyResponse(updated), nil
}

func (s *currencyService) ToggleActive(ctx context.Context, code string, userID string) (CurrencyResponse, error) {
	userUUID := parseOptionalUUID(userID)

	var updated model.Currency
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		currency, findErr := s.currencyRepo.FindByCode(txCtx, code)
		if findErr != nil {
			if errors.Is(findErr, gorm.ErrRecordNotFound) {
				return fmt.Errorf("currency '%s' not found", code)
			}
			return fmt.Errorf("failed to fetch currency: %w", findErr)
		}

		if currency.IsBaseCurrency && currency.IsActive {
			return fmt.Errorf("cannot deactivate the base currency")
		}

		currency.IsActive = !currency.IsActive
		if saveErr := s.currencyRepo.Update(txCtx, currency); saveErr != nil {
			return fmt.Errorf("failed to update currency: %w", saveErr)
		}

		updated = *currency
		return nil
	})
	if err != nil {
		return CurrencyResponse{}, err
	}

	details, _ := json.Marshal(map[string]bool{"is_active": updated.IsActive})
	recordAudit(ctx, s.auditRepo, &model.AuditLog{
		UserID:     userUUID,
		Action:     model.ActionCurrencyToggled,
		EntityID:   updated.ID.String(),
		EntityName: updated.Code,
		Details:    string(details),
	})

	return toCurrencyResponse(updated), nil
}

func (s *currencyService) GetCurrencies(ctx context.Context, activeOnly bool) ([]CurrencyResponse, error) {
	var (
		currencies []model.Currency
		err        error
	)
	if activeOnly {
		currencies, err = s.currencyRepo.ListActive(ctx)
	} else {
		currencies, err = s.currencyRepo.List(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch currencies: %w", err)
	}

	res := make([]CurrencyResponse, 0, len(currencies))
	for _, c := range currencies {
		res = append(res, toCurrencyResponse(c))
	}
	return res, nil
}

func (s *currencyService) GetRateHistory(ctx context.Context, code string, limit int) ([]RateHistoryResponse, error) {
	currency, err := s.currencyRepo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("currency '%s' not found", code)
		}
		return nil, fmt.Errorf("failed to fetch currency: %w", err)
	}

	if limit <= 0 {
		limit = 50
	}
	history, err := s.currencyRepo.History(ctx, currency.ID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch rate history: %w", err)
	}

	res := make([]RateHistoryResponse, 0, len(history))
	for _, h := range history {
		item := RateHistoryResponse{
			ID:        h.ID.String(),
			OldRate:   h.OldRate.StringFixed(6),
			NewRate:   h.NewRate.StringFixed(6),
			Reason:    h.Reason,
			ChangedAt: h.ChangedAt.Format(time.RFC3339),
		}
		if h.ChangedBy != nil {
			item.ChangedBy = h.ChangedBy.String()
		}
		res = append(res, item)
	}
	return res, nil
}

// Convert translates an amount between two active currencies via the base
// currency: to-base first, then from-base, each leg rounded to 2 decimals.
func (s *currencyService) Convert(ctx context.Context, req ConvertRequest) (ConvertResponse, error) {
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return ConvertResponse{}, fmt.Errorf("invalid amount: %w", err)
	}
	if amount.IsNegative() {
		return ConvertResponse{}, fmt.Errorf("amount must not be negative")
	}

	from, err := s.currencyRepo.FindActiveByCode(ctx, req.From)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ConvertResponse{}, fmt.Errorf("currency '%s' not found or inactive", req.From)
		}
		return ConvertResponse{}, fmt.Errorf("failed to fetch currency: %w", err)
	}
	to, err := s.currencyRepo.FindActiveByCode(ctx, req.To)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ConvertResponse{}, fmt.Errorf("currency '%s' not found or inactive", req.To)
		}
		return ConvertResponse{}, fmt.Errorf("failed to fetch currency: %w", err)
	}

	baseAmount := from.ConvertToBase(amount)
	result := to.ConvertFromBase(baseAmount)

	return ConvertResponse{
		From:       from.Code,
		To:         to.Code,
		Amount:     amount.StringFixed(2),
		BaseAmount: baseAmount.StringFixed(2),
		Result:     result.StringFixed(2),
	}, nil
}

// --- Helpers ---

func toCurrencyResponse(c model.Currency) CurrencyResponse {
	return CurrencyResponse{
		ID:             c.ID.String(),
		Code:           c.Code,
		Name:           c.Name,
		Symbol:         c.Symbol,
		ExchangeRate:   c.ExchangeRate.StringFixed(6),
		IsBaseCurrency: c.IsBaseCurrency,
		IsActive:       c.IsActive,
		UpdatedAt:      c.UpdatedAt.Format(time.RFC3339),
	}
}

func parseOptionalUUID(id string) *uuid.UUID {
	if id == "" {
		return nil
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil
	}
	return &parsed
}
