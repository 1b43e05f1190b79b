package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"backend/internal/model"
	"backend/internal/provider"
	"backend/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	// retryBackoff is the fixed delay before a failed refund becomes
	// eligible for another attempt.
	retryBackoff = 4 * time.Hour

	// providerTimeout bounds a single payment provider call
	providerTimeout = 30 * time.Second
)

// --- DTOs ---

type CreateRefundRequest struct {
	FormID         string            `json:"form_id" binding:"required"`
	Method         string            `json:"method" binding:"required,oneof=CARD BANK_TRANSFER MOBILE_MONEY CASH"`
	PayoutCurrency string            `json:"payout_currency"` // defaults to the base currency
	PaymentDetails map[string]string `json:"payment_details"`
}

type CollectCashRequest struct {
	// ActualAmount is what was physically handed over, in the payout
	// currency. Empty means the full expected payout.
	ActualAmount string `json:"actual_amount"`
}

type CancelRefundRequest struct {
	Reason string `json:"reason" binding:"required"`
}

type RefundResponse struct {
	ID         string `json:"id"`
	FormID     string `json:"form_id"`
	FormNumber string `json:"form_number,omitempty"`

	Currency    string `json:"currency"`
	GrossAmount string `json:"gross_amount"`
	OperatorFee string `json:"operator_fee"`
	NetAmount   string `json:"net_amount"`

	Method string `json:"method"`
	Status string `json:"status"`

	PayoutCurrency      string  `json:"payout_currency"`
	ExchangeRateApplied *string `json:"exchange_rate_applied"`
	PayoutAmount        *string `json:"payout_amount"`

	CashCollected      bool    `json:"cash_collected"`
	ActualPayoutAmount *string `json:"actual_payout_amount"`
	ServiceGain        string  `json:"service_gain"`
	ServiceGainCDF     string  `json:"service_gain_cdf"`

	RetryCount  int     `json:"retry_count"`
	MaxRetries  int     `json:"max_retries"`
	NextRetryAt *string `json:"next_retry_at"`

	InitiatedAt *string `json:"initiated_at"`
	PaidAt      *string `json:"paid_at"`
	CreatedAt   string  `json:"created_at"`
}

type PaymentAttemptResponse struct {
	ID           string  `json:"id"`
	Provider     string  `json:"provider"`
	Status       string  `json:"status"`
	ErrorCode    string  `json:"error_code,omitempty"`
	ErrorMessage string  `json:"error_message,omitempty"`
	StartedAt    string  `json:"started_at"`
	CompletedAt  *string `json:"completed_at"`
}

type RefundFilter struct {
	Status string
	Method string
	Page   int
	Limit  int
}

// --- Interface ---

type RefundService interface {
	// CreateRefund freezes the payout amounts and exchange rate for a
	// VALIDATED form. The refund starts in PENDING; no provider is called.
	CreateRefund(ctx context.Context, req CreateRefundRequest, userID string) (RefundResponse, error)
	// ProcessRefund runs one payment attempt: PENDING (or FAILED with retry
	// budget) -> INITIATED -> PAID or FAILED. Cash refunds stay INITIATED
	// until the traveler collects at the counter.
	ProcessRefund(ctx context.Context, id string, userID string) (RefundResponse, error)
	// CollectCash settles a cash refund at the counter and records the
	// operator's gain when less than the expected payout is handed over.
	CollectCash(ctx context.Context, id string, req CollectCashRequest, userID string) (RefundResponse, error)
	CancelRefund(ctx context.Context, id string, req CancelRefundRequest, userID string) (RefundResponse, error)
	GetRefund(ctx context.Context, id string) (RefundResponse, error)
	ListRefunds(ctx context.Context, filter RefundFilter) ([]RefundResponse, int64, error)
	GetAttempts(ctx context.Context, id string) ([]PaymentAttemptResponse, error)
}

type refundService struct {
	refundRepo   repository.RefundRepository
	formRepo     repository.FormRepository
	currencyRepo repository.CurrencyRepository
	ruleSetRepo  repository.RuleSetRepository
	auditRepo    repository.AuditRepository
	txManager    repository.TransactionManager
	providers    provider.Registry
	notifier     provider.Notifier
}

func NewRefundService(
	refundRepo repository.RefundRepository,
	formRepo repository.FormRepository,
	currencyRepo repository.CurrencyRepository,
	ruleSetRepo repository.RuleSetRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	providers provider.Registry,
	notifier provider.Notifier,
) RefundService {
	return &refundService{
		refundRepo:   refundRepo,
		formRepo:     formRepo,
		currencyRepo: currencyRepo,
		ruleSetRepo:  ruleSetRepo,
		auditRepo:    auditRepo,
		txManager:    txManager,
		providers:    providers,
		notifier:     notifier,
	}
}

// --- Implementation ---

func (s *refundService) CreateRefund(ctx context.Context, req CreateRefundRequest, userID string) (RefundResponse, error) {
	formID, err := uuid.Parse(req.FormID)
	if err != nil {
		return RefundResponse{}, fmt.Errorf("invalid form_id: %w", err)
	}

	form, err := s.formRepo.FindByID(ctx, formID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return RefundResponse{}, fmt.Errorf("form not found")
		}
		return RefundResponse{}, fmt.Errorf("failed to fetch form: %w", err)
	}
	if form.Status != model.FormValidated {
		return RefundResponse{}, fmt.Errorf("refunds require a VALIDATED form (current status: %s)", form.Status)
	}

	exists, err := s.refundRepo.ExistsForForm(ctx, formID)
	if err != nil {
		return RefundResponse{}, fmt.Errorf("failed to check existing refund: %w", err)
	}
	if exists {
		return RefundResponse{}, fmt.Errorf("a refund already exists for form %s", form.FormNumber)
	}

	if err := s.checkMethodAllowed(ctx, req.Method); err != nil {
		return RefundResponse{}, err
	}

	payoutCode := req.PayoutCurrency
	if payoutCode == "" {
		payoutCode = model.BaseCurrencyCode
	}
	currency, err := s.currencyRepo.FindActiveByCode(ctx, payoutCode)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return RefundResponse{}, fmt.Errorf("payout currency '%s' not found or inactive", payoutCode)
		}
		return RefundResponse{}, fmt.Errorf("failed to fetch payout currency: %w", err)
	}

	// Freeze the conversion now: later rate changes never move this payout
	rate := currency.ExchangeRate
	payout := currency.ConvertFromBase(form.RefundAmount)

	details := req.PaymentDetails
	if len(details) == 0 && form.Traveler != nil {
		details = form.Traveler.RefundDetails
	}

	refund := model.Refund{
		FormID:      form.ID,
		Currency:    form.Currency,
		GrossAmount: form.VATAmount,
		OperatorFee: form.OperatorFee,
		NetAmount:   form.RefundAmount,

		Method:         req.Method,
		PaymentDetails: details,
		Status:         model.RefundPending,

		PayoutCurrency:      currency.Code,
		ExchangeRateApplied: &rate,
		PayoutAmount:        &payout,
	}

	if err := s.refundRepo.Create(ctx, &refund); err != nil {
		return RefundResponse{}, fmt.Errorf("failed to create refund: %w", err)
	}

	refund.Form = form
	return toRefundResponse(refund), nil
}

func (s *refundService) ProcessRefund(ctx context.Context, id string, userID string) (RefundResponse, error) {
	refundID, err := uuid.Parse(id)
	if err != nil {
		return RefundResponse{}, fmt.Errorf("invalid refund id: %w", err)
	}

	userUUID := parseOptionalUUID(userID)

	// Phase 1: claim the refund under a row lock and open the attempt. The
	// transaction commits before the provider is called so a crash mid-call
	// leaves an INITIATED refund with a PENDING attempt, not a stale lock.
	var (
		refund   *model.Refund
		attempt  *model.PaymentAttempt
		wasRetry bool
	)
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		locked, lockErr := s.refundRepo.FindByIDForUpdate(txCtx, refundID)
		if lockErr != nil {
			if errors.Is(lockErr, gorm.ErrRecordNotFound) {
				return fmt.Errorf("refund not found")
			}
			return fmt.Errorf("failed to lock refund: %w", lockErr)
		}

		wasRetry = locked.Status == model.RefundFailed
		if locked.Status != model.RefundPending && !locked.CanRetry() {
			return fmt.Errorf("refund cannot be processed (status: %s, retries: %d/%d)",
				locked.Status, locked.RetryCount, locked.MaxRetries)
		}

		now := time.Now()
		locked.Status = model.RefundInitiated
		locked.InitiatedAt = &now
		locked.InitiatedBy = userUUID
		if saveErr := s.refundRepo.Update(txCtx, locked); saveErr != nil {
			return fmt.Errorf("failed to update refund: %w", saveErr)
		}

		p := s.providers.ForMethod(locked.Method)
		attempt = &model.PaymentAttempt{
			RefundID: locked.ID,
			Provider: p.Name(),
			Status:   model.AttemptPending,
		}
		if createErr := s.refundRepo.CreateAttempt(txCtx, attempt); createErr != nil {
			return fmt.Errorf("failed to create payment attempt: %w", createErr)
		}

		refund = locked
		return nil
	})
	if err != nil {
		return RefundResponse{}, err
	}

	action := model.ActionRefundInitiated
	if wasRetry {
		action = model.ActionRefundRetry
	}
	auditDetails, _ := json.Marshal(map[string]any{
		"method":      refund.Method,
		"payout":      refund.ExpectedPayout().StringFixed(2),
		"currency":    refund.PayoutCurrency,
		"retry_count": refund.RetryCount,
	})
	recordAudit(ctx, s.auditRepo, &model.AuditLog{
		UserID:   userUUID,
		Action:   action,
		EntityID: refund.ID.String(),
		Details:  string(auditDetails),
	})

	// Phase 2: call the provider outside any transaction
	result := s.callProvider(ctx, refund)

	// Phase 3: record the outcome atomically
	updated, err := s.recordOutcome(ctx, refund.ID, attempt, result)
	if err != nil {
		return RefundResponse{}, err
	}

	return toRefundResponse(*updated), nil
}

func (s *refundService) CollectCash(ctx context.Context, id string, req CollectCashRequest, userID string) (RefundResponse, error) {
	refundID, err := uuid.Parse(id)
	if err != nil {
		return RefundResponse{}, fmt.Errorf("invalid refund id: %w", err)
	}

	userUUID := parseOptionalUUID(userID)

	var collected *model.Refund
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		refund, lockErr := s.refundRepo.FindByIDForUpdate(txCtx, refundID)
		if lockErr != nil {
			if errors.Is(lockErr, gorm.ErrRecordNotFound) {
				return fmt.Errorf("refund not found")
			}
			return fmt.Errorf("failed to lock refund: %w", lockErr)
		}

		if refund.Method != model.RefundMethodCash {
			return fmt.Errorf("only cash refunds can be collected at the counter")
		}
		if refund.Status != model.RefundInitiated {
			return fmt.Errorf("cash collection requires an INITIATED refund (current status: %s)", refund.Status)
		}
		if refund.CashCollected {
			return fmt.Errorf("cash has already been collected for this refund")
		}

		expected := refund.ExpectedPayout()
		actual := expected
		if req.ActualAmount != "" {
			actual, err = decimal.NewFromString(req.ActualAmount)
			if err != nil {
				return fmt.Errorf("invalid actual_amount: %w", err)
			}
		}
		if actual.IsNegative() {
			return fmt.Errorf("actual_amount must not be negative")
		}
		if actual.GreaterThan(expected) {
			return fmt.Errorf("actual amount %s exceeds expected payout %s",
				actual.StringFixed(2), expected.StringFixed(2))
		}

		// The difference stays with the operator; book it in both the
		// payout currency and the base currency.
		gain := expected.Sub(actual)
		gainCDF := gain
		if refund.ExchangeRateApplied != nil && !refund.ExchangeRateApplied.Equal(decimal.NewFromInt(1)) {
			gainCDF = gain.Div(*refund.ExchangeRateApplied).Round(2)
		}

		now := time.Now()
		refund.Status = model.RefundPaid
		refund.PaidAt = &now
		refund.CashCollected = true
		refund.CashCollectedAt = &now
		refund.CashCollectedBy = userUUID
		refund.ActualPayoutAmount = &actual
		refund.ServiceGain = gain
		refund.ServiceGainCDF = gainCDF
		if saveErr := s.refundRepo.Update(txCtx, refund); saveErr != nil {
			return fmt.Errorf("failed to update refund: %w", saveErr)
		}

		if formErr := s.markFormRefunded(txCtx, refund.FormID); formErr != nil {
			return formErr
		}

		collected = refund
		return nil
	})
	if err != nil {
		return RefundResponse{}, err
	}

	auditDetails, _ := json.Marshal(map[string]string{
		"expected":         collected.ExpectedPayout().StringFixed(2),
		"actual":           collected.ActualPayoutAmount.StringFixed(2),
		"service_gain":     collected.ServiceGain.StringFixed(2),
		"service_gain_cdf": collected.ServiceGainCDF.StringFixed(2),
		"currency":         collected.PayoutCurrency,
	})
	recordAudit(ctx, s.auditRepo, &model.AuditLog{
		UserID:   userUUID,
		Action:   model.ActionCashCollected,
		EntityID: collected.ID.String(),
		Details:  string(auditDetails),
	})

	s.notifyPaid(ctx, collected)
	return toRefundResponse(*collected), nil
}

func (s *refundService) CancelRefund(ctx context.Context, id string, req CancelRefundRequest, userID string) (RefundResponse, error) {
	refundID, err := uuid.Parse(id)
	if err != nil {
		return RefundResponse{}, fmt.Errorf("invalid refund id: %w", err)
	}

	userUUID := parseOptionalUUID(userID)

	var cancelled *model.Refund
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		refund, lockErr := s.refundRepo.FindByIDForUpdate(txCtx, refundID)
		if lockErr != nil {
			if errors.Is(lockErr, gorm.ErrRecordNotFound) {
				return fmt.Errorf("refund not found")
			}
			return fmt.Errorf("failed to lock refund: %w", lockErr)
		}

		if refund.Status != model.RefundPending && refund.Status != model.RefundFailed {
			return fmt.Errorf("only a PENDING or FAILED refund can be cancelled (current status: %s)", refund.Status)
		}

		now := time.Now()
		refund.Status = model.RefundCancelled
		refund.CancelledAt = &now
		refund.CancelledBy = userUUID
		refund.CancellationReason = req.Reason
		if saveErr := s.refundRepo.Update(txCtx, refund); saveErr != nil {
			return fmt.Errorf("failed to update refund: %w", saveErr)
		}

		cancelled = refund
		return nil
	})
	if err != nil {
		return RefundResponse{}, err
	}

	auditDetails, _ := json.Marshal(map[string]string{"reason": req.Reason})
	recordAudit(ctx, s.auditRepo, &model.AuditLog{
		UserID:   userUUID,
		Action:   model.ActionRefundCancelled,
		EntityID: cancelled.ID.String(),
		Details:  string(auditDetails),
	})

	return toRefundResponse(*cancelled), nil
}

func (s *refundService) GetRefund(ctx context.Context, id string) (RefundResponse, error) {
	refundID, err := uuid.Parse(id)
	if err != nil {
		return RefundResponse{}, fmt.Errorf("invalid refund id: %w", err)
	}

	refund, err := s.refundRepo.FindByID(ctx, refundID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return RefundResponse{}, fmt.Errorf("refund not found")
		}
		return RefundResponse{}, fmt.Errorf("failed to fetch refund: %w", err)
	}
	return toRefundResponse(*refund), nil
}

func (s *refundService) ListRefunds(ctx context.Context, filter RefundFilter) ([]RefundResponse, int64, error) {
	refunds, total, err := s.refundRepo.List(ctx, filter.Status, filter.Method, filter.Page, filter.Limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch refunds: %w", err)
	}

	res := make([]RefundResponse, 0, len(refunds))
	for _, refund := range refunds {
		res = append(res, toRefundResponse(refund))
	}
	return res, total, nil
}

func (s *refundService) GetAttempts(ctx context.Context, id string) ([]PaymentAttemptResponse, error) {
	refundID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("invalid refund id: %w", err)
	}

	attempts, err := s.refundRepo.ListAttempts(ctx, refundID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch payment attempts: %w", err)
	}

	res := make([]PaymentAttemptResponse, 0, len(attempts))
	for _, a := range attempts {
		item := PaymentAttemptResponse{
			ID:           a.ID.String(),
			Provider:     a.Provider,
			Status:       a.Status,
			ErrorCode:    a.ErrorCode,
			ErrorMessage: a.ErrorMessage,
			StartedAt:    a.StartedAt.Format(time.RFC3339),
		}
		if a.CompletedAt != nil {
			at := a.CompletedAt.Format(time.RFC3339)
			item.CompletedAt = &at
		}
		res = append(res, item)
	}
	return res, nil
}

// --- Helpers ---

func (s *refundService) checkMethodAllowed(ctx context.Context, method string) error {
	ruleset, err := s.ruleSetRepo.FindActive(ctx)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil // no active ruleset restriction
		}
		return fmt.Errorf("failed to fetch active ruleset: %w", err)
	}
	if len(ruleset.AllowedRefundMethods) == 0 {
		return nil
	}
	for _, allowed := range ruleset.AllowedRefundMethods {
		if allowed == method {
			return nil
		}
	}
	return fmt.Errorf("refund method '%s' is not allowed by the active ruleset", method)
}

// callProvider executes one payment call with a timeout. Provider panics are
// converted into failed results so a misbehaving integration can never take
// the refund flow down.
func (s *refundService) callProvider(ctx context.Context, refund *model.Refund) (result provider.Result) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("payment provider panic for refund %s: %v", refund.ID, r)
			result = provider.Result{
				Success:      false,
				ErrorCode:    "PROVIDER_PANIC",
				ErrorMessage: fmt.Sprintf("provider panic: %v", r),
			}
		}
	}()

	callCtx, cancel := context.WithTimeout(ctx, providerTimeout)
	defer cancel()

	p := s.providers.ForMethod(refund.Method)
	res, err := p.ProcessPayment(callCtx, refund.ExpectedPayout(), refund.PayoutCurrency, refund.PaymentDetails, refund.ID.String())
	if err != nil {
		return provider.Result{
			Success:      false,
			ErrorCode:    "PROVIDER_ERROR",
			ErrorMessage: err.Error(),
		}
	}
	return res
}

// recordOutcome closes the attempt and moves the refund to its next state.
// Cash refunds stay INITIATED on success: the money only moves at the counter.
func (s *refundService) recordOutcome(ctx context.Context, refundID uuid.UUID, attempt *model.PaymentAttempt, result provider.Result) (*model.Refund, error) {
	var out *model.Refund
	var paid bool

	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		refund, lockErr := s.refundRepo.FindByIDForUpdate(txCtx, refundID)
		if lockErr != nil {
			return fmt.Errorf("failed to lock refund: %w", lockErr)
		}

		now := time.Now()

		attempt.ProviderRequestID = result.RequestID
		attempt.ProviderResponseID = result.ResponseID
		attempt.RequestPayload = result.Request
		attempt.ResponsePayload = result.Response
		attempt.Status = model.AttemptSuccess
		attempt.CompletedAt = &now
		if !result.Success {
			attempt.Status = model.AttemptFailed
			attempt.ErrorCode = result.ErrorCode
			attempt.ErrorMessage = result.ErrorMessage
		}
		if saveErr := s.refundRepo.UpdateAttempt(txCtx, attempt); saveErr != nil {
			return fmt.Errorf("failed to update payment attempt: %w", saveErr)
		}

		if result.Success {
			if refund.Method == model.RefundMethodCash {
				// Await counter collection; the provider call only reserved
				// the cash payout.
				out = refund
				return nil
			}

			refund.Status = model.RefundPaid
			refund.PaidAt = &now
			if saveErr := s.refundRepo.Update(txCtx, refund); saveErr != nil {
				return fmt.Errorf("failed to update refund: %w", saveErr)
			}
			if formErr := s.markFormRefunded(txCtx, refund.FormID); formErr != nil {
				return formErr
			}
			paid = true
		} else {
			refund.Status = model.RefundFailed
			refund.RetryCount++
			if refund.RetryCount < refund.MaxRetries {
				next := now.Add(retryBackoff)
				refund.NextRetryAt = &next
			} else {
				refund.NextRetryAt = nil
			}
			if saveErr := s.refundRepo.Update(txCtx, refund); saveErr != nil {
				return fmt.Errorf("failed to update refund: %w", saveErr)
			}
		}

		out = refund
		return nil
	})
	if err != nil {
		return nil, err
	}

	if paid {
		s.notifyPaid(ctx, out)
	}
	return out, nil
}

func (s *refundService) markFormRefunded(txCtx context.Context, formID uuid.UUID) error {
	form, err := s.formRepo.FindByID(txCtx, formID)
	if err != nil {
		return fmt.Errorf("failed to fetch form: %w", err)
	}
	form.Status = model.FormRefunded
	if err := s.formRepo.Update(txCtx, form); err != nil {
		return fmt.Errorf("failed to mark form refunded: %w", err)
	}
	return nil
}

func (s *refundService) notifyPaid(ctx context.Context, refund *model.Refund) {
	form, err := s.formRepo.FindByID(ctx, refund.FormID)
	if err != nil {
		log.Printf("refund %s paid but form lookup for notification failed: %v", refund.ID, err)
		return
	}
	s.notifier.RefundPaid(refund, form.Traveler, form.FormNumber)
}

func toRefundResponse(r model.Refund) RefundResponse {
	resp := RefundResponse{
		ID:     r.ID.String(),
		FormID: r.FormID.String(),

		Currency:    r.Currency,
		GrossAmount: r.GrossAmount.StringFixed(2),
		OperatorFee: r.OperatorFee.StringFixed(2),
		NetAmount:   r.NetAmount.StringFixed(2),

		Method: r.Method,
		Status: r.Status,

		PayoutCurrency: r.PayoutCurrency,

		CashCollected:  r.CashCollected,
		ServiceGain:    r.ServiceGain.StringFixed(2),
		ServiceGainCDF: r.ServiceGainCDF.StringFixed(2),

		RetryCount: r.RetryCount,
		MaxRetries: r.MaxRetries,

		CreatedAt: r.CreatedAt.Format(time.RFC3339),
	}
	if r.Form != nil {
		resp.FormNumber = r.Form.FormNumber
	}
	if r.ExchangeRateApplied != nil {
		v := r.ExchangeRateApplied.StringFixed(6)
		resp.ExchangeRateApplied = &v
	}
	if r.PayoutAmount != nil {
		v := r.PayoutAmount.StringFixed(2)
		resp.PayoutAmount = &v
	}
	if r.ActualPayoutAmount != nil {
		v := r.ActualPayoutAmount.StringFixed(2)
		resp.ActualPayoutAmount = &v
	}
	if r.NextRetryAt != nil {
		at := r.NextRetryAt.Format(time.RFC3339)
		resp.NextRetryAt = &at
	}
	if r.InitiatedAt != nil {
		at := r.InitiatedAt.Format(time.RFC3339)
		resp.InitiatedAt = &at
	}
	if r.PaidAt != nil {
		at := r.PaidAt.Format(time.RFC3339)
		resp.PaidAt = &at
	}
	return resp
}
