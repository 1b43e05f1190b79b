package service

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"backend/internal/engine"
	"backend/internal/model"
	"backend/internal/provider"
	"backend/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// recentFormWindow is the trailing window used for the frequent-traveler signal
const recentFormWindow = 7 * 24 * time.Hour

// EligibilityError carries every violated rule of a rejected claim so the
// caller can show all of them at once.
type EligibilityError struct {
	Reasons []string
}

func (e *EligibilityError) Error() string {
	return "invoice not eligible: " + strings.Join(e.Reasons, "; ")
}

// --- DTOs ---

type TravelerRequest struct {
	PassportNumber  string `json:"passport_number" binding:"required"`
	PassportCountry string `json:"passport_country" binding:"required,len=2"`

	FirstName   string `json:"first_name" binding:"required"`
	LastName    string `json:"last_name" binding:"required"`
	DateOfBirth string `json:"date_of_birth" binding:"required"` // YYYY-MM-DD

	Nationality      string `json:"nationality" binding:"required,len=2"`
	ResidenceCountry string `json:"residence_country" binding:"required,len=2"`
	ResidenceAddress string `json:"residence_address"`

	Email string `json:"email"`
	Phone string `json:"phone"`

	PreferredRefundMethod string            `json:"preferred_refund_method"`
	RefundDetails         map[string]string `json:"refund_details"`
}

type CreateFormRequest struct {
	InvoiceID string          `json:"invoice_id" binding:"required"`
	Traveler  TravelerRequest `json:"traveler" binding:"required"`
}

type RefuseFormRequest struct {
	Reason string `json:"reason" binding:"required"`
}

type CancelFormRequest struct {
	Reason string `json:"reason" binding:"required"`
}

type VerifyQRRequest struct {
	Payload   string `json:"payload" binding:"required"`
	Signature string `json:"signature" binding:"required"`
}

type EligibilityResponse struct {
	Eligible       bool     `json:"eligible"`
	Reasons        []string `json:"reasons,omitempty"`
	EligibleAmount string   `json:"eligible_amount"`
	VATAmount      string   `json:"vat_amount"`
	OperatorFee    string   `json:"operator_fee"`
	RefundAmount   string   `json:"refund_amount"`
}

type FormResponse struct {
	ID         string `json:"id"`
	FormNumber string `json:"form_number"`
	Status     string `json:"status"`

	InvoiceID     string `json:"invoice_id"`
	InvoiceNumber string `json:"invoice_number,omitempty"`
	MerchantName  string `json:"merchant_name,omitempty"`

	TravelerID    string `json:"traveler_id"`
	TravelerName  string `json:"traveler_name,omitempty"`
	PassportLast4 string `json:"passport_last4,omitempty"`

	Currency       string `json:"currency"`
	EligibleAmount string `json:"eligible_amount"`
	VATAmount      string `json:"vat_amount"`
	OperatorFee    string `json:"operator_fee"`
	RefundAmount   string `json:"refund_amount"`

	RiskScore       int      `json:"risk_score"`
	RiskFlags       []string `json:"risk_flags,omitempty"`
	RequiresControl bool     `json:"requires_control"`

	RuleSetVersion string `json:"ruleset_version"`

	QRPayload   string `json:"qr_payload,omitempty"`
	QRSignature string `json:"qr_signature,omitempty"`

	IssuedAt    *string `json:"issued_at"`
	ExpiresAt   string  `json:"expires_at"`
	ValidatedAt *string `json:"validated_at"`
	CreatedAt   string  `json:"created_at"`
}

type VerifyQRResponse struct {
	Valid bool          `json:"valid"`
	Form  *FormResponse `json:"form,omitempty"`
}

// --- Interface ---

type TaxFreeService interface {
	// CheckEligibility is a dry run: nothing is persisted, the traveler may
	// not exist yet.
	CheckEligibility(ctx context.Context, req CreateFormRequest) (EligibilityResponse, error)
	CreateForm(ctx context.Context, req CreateFormRequest, userID string) (FormResponse, error)
	IssueForm(ctx context.Context, id string, userID string) (FormResponse, error)
	ValidateForm(ctx context.Context, id string, userID string) (FormResponse, error)
	RefuseForm(ctx context.Context, id string, req RefuseFormRequest, userID string) (FormResponse, error)
	CancelForm(ctx context.Context, id string, req CancelFormRequest, userID string) (FormResponse, error)
	GetForm(ctx context.Context, id string) (FormResponse, error)
	GetFormByNumber(ctx context.Context, formNumber string) (FormResponse, error)
	VerifyQR(ctx context.Context, req VerifyQRRequest) (VerifyQRResponse, error)
	ListForms(ctx context.Context, status string, page, limit int) ([]FormResponse, int64, error)
	// ExpireOverdueForms transitions every overdue ISSUED or pending form to
	// EXPIRED and returns how many were affected.
	ExpireOverdueForms(ctx context.Context) (int64, error)
}

type taxFreeService struct {
	db          *gorm.DB
	formRepo    repository.FormRepository
	ruleSetRepo repository.RuleSetRepository
	notifier    provider.Notifier
	qrSecret    []byte
}

func NewTaxFreeService(
	db *gorm.DB,
	formRepo repository.FormRepository,
	ruleSetRepo repository.RuleSetRepository,
	notifier provider.Notifier,
	qrSecret []byte,
) TaxFreeService {
	return &taxFreeService{
		db:          db,
		formRepo:    formRepo,
		ruleSetRepo: ruleSetRepo,
		notifier:    notifier,
		qrSecret:    qrSecret,
	}
}

// --- Implementation ---

func (s *taxFreeService) CheckEligibility(ctx context.Context, req CreateFormRequest) (EligibilityResponse, error) {
	ev, _, err := s.buildEvaluation(ctx, req, false)
	if err != nil {
		return EligibilityResponse{}, err
	}

	result := engine.CheckEligibility(*ev)
	comp := engine.Compute(*ev)

	return EligibilityResponse{
		Eligible:       result.Eligible,
		Reasons:        result.Reasons,
		EligibleAmount: comp.EligibleAmount.StringFixed(2),
		VATAmount:      comp.VATAmount.StringFixed(2),
		OperatorFee:    comp.OperatorFee.StringFixed(2),
		RefundAmount:   comp.RefundAmount.StringFixed(2),
	}, nil
}

// CreateForm runs the full eligibility and pricing pipeline and persists the
// resulting form with a frozen ruleset snapshot. The per-item eligibility
// verdicts are written back to the sale items in the same transaction.
func (s *taxFreeService) CreateForm(ctx context.Context, req CreateFormRequest, userID string) (FormResponse, error) {
	ev, traveler, err := s.buildEvaluation(ctx, req, true)
	if err != nil {
		return FormResponse{}, err
	}

	result := engine.CheckEligibility(*ev)
	if !result.Eligible {
		return FormResponse{}, &EligibilityError{Reasons: result.Reasons}
	}

	comp := engine.Compute(*ev)
	classifications := engine.ClassifyItems(ev.Invoice.Items, ev.RuleSet)

	formNumber, err := generateFormNumber(ev.Now)
	if err != nil {
		return FormResponse{}, fmt.Errorf("failed to generate form number: %w", err)
	}

	form := model.TaxFreeForm{
		FormNumber: formNumber,
		InvoiceID:  ev.Invoice.ID,
		TravelerID: traveler.ID,

		Currency:       model.BaseCurrencyCode,
		EligibleAmount: comp.EligibleAmount,
		VATAmount:      comp.VATAmount,
		RefundAmount:   comp.RefundAmount,
		OperatorFee:    comp.OperatorFee,

		Status:       model.FormCreated,
		RuleSnapshot: model.NewRuleSnapshot(ev.RuleSet),

		RiskScore:       comp.RiskScore,
		RiskFlags:       comp.RiskFlags,
		RequiresControl: comp.RequiresControl,
		ExpiresAt:       comp.ExpiresAt,

		CreatedBy: parseOptionalUUID(userID),
	}

	payload, signature, err := s.signQR(&form, traveler)
	if err != nil {
		return FormResponse{}, err
	}
	form.QRPayload = payload
	form.QRSignature = signature

	userUUID := parseOptionalUUID(userID)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if createErr := tx.Create(&form).Error; createErr != nil {
			return fmt.Errorf("failed to create form: %w", createErr)
		}

		// Persist item verdicts without touching price columns
		for _, c := range classifications {
			updates := map[string]any{
				"is_eligible":          c.IsEligible,
				"ineligibility_reason": c.Reason,
			}
			if updErr := tx.Model(&model.SaleItem{}).Where("id = ?", c.ItemID).Updates(updates).Error; updErr != nil {
				return fmt.Errorf("failed to update item eligibility: %w", updErr)
			}
		}

		return nil
	})
	if err != nil {
		return FormResponse{}, err
	}

	details, _ := json.Marshal(map[string]any{
		"invoice_id":       ev.Invoice.ID.String(),
		"traveler_id":      traveler.ID.String(),
		"refund_amount":    comp.RefundAmount.StringFixed(2),
		"risk_score":       comp.RiskScore,
		"requires_control": comp.RequiresControl,
		"ruleset_version":  ev.RuleSet.Version,
	})
	recordAuditDB(ctx, s.db, &model.AuditLog{
		UserID:     userUUID,
		Action:     model.ActionFormCreated,
		EntityID:   form.ID.String(),
		EntityName: formNumber,
		Details:    string(details),
	})

	if form.RequiresControl {
		s.notifier.ControlRequired(&form)
	}

	form.Invoice = ev.Invoice
	form.Traveler = traveler
	return toFormResponse(form), nil
}

func (s *taxFreeService) IssueForm(ctx context.Context, id string, userID string) (FormResponse, error) {
	return s.transitionForm(ctx, id, userID, func(form *model.TaxFreeForm, now time.Time) (string, error) {
		if form.Status != model.FormCreated {
			return "", fmt.Errorf("only a CREATED form can be issued (current status: %s)", form.Status)
		}
		form.Status = model.FormIssued
		form.IssuedAt = &now
		return model.ActionFormIssued, nil
	})
}

// ValidateForm is the customs scan. An overdue form is marked EXPIRED on the
// spot. A form flagged for control is parked in VALIDATION_PENDING on the
// first scan; a second validation after physical control completes it.
func (s *taxFreeService) ValidateForm(ctx context.Context, id string, userID string) (FormResponse, error) {
	return s.transitionForm(ctx, id, userID, func(form *model.TaxFreeForm, now time.Time) (string, error) {
		if form.Status == model.FormIssued || form.Status == model.FormValidationPending {
			if !form.ExpiresAt.After(now) {
				form.Status = model.FormExpired
				return model.ActionFormExpired, nil
			}
		}
		if !form.CanBeValidated(now) {
			return "", fmt.Errorf("form cannot be validated (current status: %s)", form.Status)
		}

		if form.RequiresControl && form.Status == model.FormIssued {
			form.Status = model.FormValidationPending
			return model.ActionFormValidated, nil
		}

		form.Status = model.FormValidated
		form.ValidatedAt = &now
		return model.ActionFormValidated, nil
	})
}

func (s *taxFreeService) RefuseForm(ctx context.Context, id string, req RefuseFormRequest, userID string) (FormResponse, error) {
	return s.transitionForm(ctx, id, userID, func(form *model.TaxFreeForm, now time.Time) (string, error) {
		if form.Status != model.FormIssued && form.Status != model.FormValidationPending {
			return "", fmt.Errorf("only an issued or pending form can be refused (current status: %s)", form.Status)
		}
		form.Status = model.FormRefused
		form.CancellationReason = req.Reason
		return model.ActionFormRefused, nil
	})
}

func (s *taxFreeService) CancelForm(ctx context.Context, id string, req CancelFormRequest, userID string) (FormResponse, error) {
	return s.transitionForm(ctx, id, userID, func(form *model.TaxFreeForm, now time.Time) (string, error) {
		if !form.CanBeCancelled() {
			return "", fmt.Errorf("form cannot be cancelled (current status: %s)", form.Status)
		}
		form.Status = model.FormCancelled
		form.CancelledAt = &now
		form.CancelledBy = parseOptionalUUID(userID)
		form.CancellationReason = req.Reason
		return model.ActionFormCancelled, nil
	})
}

func (s *taxFreeService) GetForm(ctx context.Context, id string) (FormResponse, error) {
	formID, err := uuid.Parse(id)
	if err != nil {
		return FormResponse{}, fmt.Errorf("invalid form id: %w", err)
	}

	form, err := s.formRepo.FindByID(ctx, formID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return FormResponse{}, fmt.Errorf("form not found")
		}
		return FormResponse{}, fmt.Errorf("failed to fetch form: %w", err)
	}
	return toFormResponse(*form), nil
}

func (s *taxFreeService) GetFormByNumber(ctx context.Context, formNumber string) (FormResponse, error) {
	form, err := s.formRepo.FindByNumber(ctx, formNumber)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return FormResponse{}, fmt.Errorf("form not found")
		}
		return FormResponse{}, fmt.Errorf("failed to fetch form: %w", err)
	}
	return toFormResponse(*form), nil
}

// VerifyQR checks the HMAC signature over the payload and, when it matches,
// resolves the referenced form.
func (s *taxFreeService) VerifyQR(ctx context.Context, req VerifyQRRequest) (VerifyQRResponse, error) {
	mac := hmac.New(sha256.New, s.qrSecret)
	mac.Write([]byte(req.Payload))
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(strings.ToLower(req.Signature))) {
		return VerifyQRResponse{Valid: false}, nil
	}

	var payload struct {
		FormNumber string `json:"form_number"`
	}
	if err := json.Unmarshal([]byte(req.Payload), &payload); err != nil {
		return VerifyQRResponse{Valid: false}, nil
	}

	form, err := s.formRepo.FindByNumber(ctx, payload.FormNumber)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return VerifyQRResponse{Valid: false}, nil
		}
		return VerifyQRResponse{}, fmt.Errorf("failed to fetch form: %w", err)
	}

	resp := toFormResponse(*form)
	return VerifyQRResponse{Valid: true, Form: &resp}, nil
}

func (s *taxFreeService) ListForms(ctx context.Context, status string, page, limit int) ([]FormResponse, int64, error) {
	forms, total, err := s.formRepo.List(ctx, status, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch forms: %w", err)
	}

	res := make([]FormResponse, 0, len(forms))
	for _, form := range forms {
		res = append(res, toFormResponse(form))
	}
	return res, total, nil
}

func (s *taxFreeService) ExpireOverdueForms(ctx context.Context) (int64, error) {
	result := s.db.WithContext(ctx).Model(&model.TaxFreeForm{}).
		Where("status IN ? AND expires_at <= ?",
			[]string{model.FormCreated, model.FormIssued, model.FormValidationPending}, time.Now()).
		Update("status", model.FormExpired)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to expire forms: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// --- Helpers ---

// buildEvaluation loads everything the engine needs. With persist set, the
// traveler is created or updated from the request; otherwise an existing
// traveler is reused and a transient one is built if none matches.
func (s *taxFreeService) buildEvaluation(ctx context.Context, req CreateFormRequest, persist bool) (*engine.Evaluation, *model.Traveler, error) {
	invoiceID, err := uuid.Parse(req.InvoiceID)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid invoice_id: %w", err)
	}

	var invoice model.SaleInvoice
	if err := s.db.WithContext(ctx).Preload("Items").Preload("Merchant").First(&invoice, "id = ?", invoiceID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, fmt.Errorf("invoice not found")
		}
		return nil, nil, fmt.Errorf("failed to fetch invoice: %w", err)
	}

	ruleset, err := s.ruleSetRepo.FindActive(ctx)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, fmt.Errorf("no active ruleset configured")
		}
		return nil, nil, fmt.Errorf("failed to fetch active ruleset: %w", err)
	}

	traveler, err := s.resolveTraveler(ctx, req.Traveler, persist)
	if err != nil {
		return nil, nil, err
	}

	now := time.Now()

	hasForm, err := s.formRepo.ExistsForInvoice(ctx, invoice.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to check existing form: %w", err)
	}

	recent := int64(0)
	if traveler.ID != uuid.Nil {
		recent, err = s.formRepo.CountRecentByTraveler(ctx, traveler.ID, now.Add(-recentFormWindow))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to count recent forms: %w", err)
		}
	}

	ev := &engine.Evaluation{
		Invoice:         &invoice,
		Traveler:        traveler,
		RuleSet:         ruleset,
		HasExistingForm: hasForm,
		RecentFormCount: int(recent),
		Now:             now,
	}
	return ev, traveler, nil
}

// resolveTraveler finds a traveler by passport hash and refreshes their
// details, creating the record when persist is set and none exists.
func (s *taxFreeService) resolveTraveler(ctx context.Context, req TravelerRequest, persist bool) (*model.Traveler, error) {
	dob, err := time.Parse("2006-01-02", req.DateOfBirth)
	if err != nil {
		return nil, fmt.Errorf("invalid date_of_birth format (expected YYYY-MM-DD): %w", err)
	}

	hash := model.HashPassport(req.PassportNumber)

	var traveler model.Traveler
	err = s.db.WithContext(ctx).First(&traveler, "passport_number_hash = ?", hash).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to fetch traveler: %w", err)
	}
	found := err == nil

	traveler.SetPassportNumber(req.PassportNumber)
	traveler.PassportCountry = req.PassportCountry
	traveler.FirstName = req.FirstName
	traveler.LastName = req.LastName
	traveler.DateOfBirth = dob
	traveler.Nationality = req.Nationality
	traveler.ResidenceCountry = req.ResidenceCountry
	traveler.ResidenceAddress = req.ResidenceAddress
	traveler.Email = req.Email
	traveler.Phone = req.Phone
	if req.PreferredRefundMethod != "" {
		traveler.PreferredRefundMethod = req.PreferredRefundMethod
	}
	if len(req.RefundDetails) > 0 {
		traveler.RefundDetails = req.RefundDetails
	}

	if !persist {
		return &traveler, nil
	}

	if found {
		if err := s.db.WithContext(ctx).Save(&traveler).Error; err != nil {
			return nil, fmt.Errorf("failed to update traveler: %w", err)
		}
	} else {
		if err := s.db.WithContext(ctx).Create(&traveler).Error; err != nil {
			return nil, fmt.Errorf("failed to create traveler: %w", err)
		}
	}
	return &traveler, nil
}

// transitionForm applies a status transition atomically, then records its
// audit entry
func (s *taxFreeService) transitionForm(ctx context.Context, id string, userID string, apply func(form *model.TaxFreeForm, now time.Time) (string, error)) (FormResponse, error) {
	formID, err := uuid.Parse(id)
	if err != nil {
		return FormResponse{}, fmt.Errorf("invalid form id: %w", err)
	}

	userUUID := parseOptionalUUID(userID)

	var (
		form     model.TaxFreeForm
		previous string
		action   string
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if findErr := tx.Preload("Invoice").Preload("Traveler").First(&form, "id = ?", formID).Error; findErr != nil {
			if errors.Is(findErr, gorm.ErrRecordNotFound) {
				return fmt.Errorf("form not found")
			}
			return fmt.Errorf("failed to fetch form: %w", findErr)
		}

		previous = form.Status
		now := time.Now()
		var applyErr error
		action, applyErr = apply(&form, now)
		if applyErr != nil {
			return applyErr
		}

		if saveErr := tx.Save(&form).Error; saveErr != nil {
			return fmt.Errorf("failed to update form: %w", saveErr)
		}
		return nil
	})
	if err != nil {
		return FormResponse{}, err
	}

	details, _ := json.Marshal(map[string]string{
		"from": previous,
		"to":   form.Status,
	})
	recordAuditDB(ctx, s.db, &model.AuditLog{
		UserID:     userUUID,
		Action:     action,
		EntityID:   form.ID.String(),
		EntityName: form.FormNumber,
		Details:    string(details),
	})

	return toFormResponse(form), nil
}

// signQR builds the scannable payload and its HMAC-SHA256 signature
func (s *taxFreeService) signQR(form *model.TaxFreeForm, traveler *model.Traveler) (string, string, error) {
	payload, err := json.Marshal(map[string]string{
		"form_number":    form.FormNumber,
		"invoice_id":     form.InvoiceID.String(),
		"passport_last4": traveler.PassportNumberLast4,
		"refund_amount":  form.RefundAmount.StringFixed(2),
		"expires_at":     form.ExpiresAt.Format(time.RFC3339),
	})
	if err != nil {
		return "", "", fmt.Errorf("failed to build qr payload: %w", err)
	}

	mac := hmac.New(sha256.New, s.qrSecret)
	mac.Write(payload)
	return string(payload), hex.EncodeToString(mac.Sum(nil)), nil
}

const formNumberAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// generateFormNumber builds "TF" + YYYYMM + 8 random characters from an
// unambiguous alphabet (no 0/O, 1/I).
func generateFormNumber(now time.Time) (string, error) {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i, b := range buf {
		buf[i] = formNumberAlphabet[int(b)%len(formNumberAlphabet)]
	}
	return "TF" + now.Format("200601") + string(buf), nil
}

func toFormResponse(form model.TaxFreeForm) FormResponse {
	resp := FormResponse{
		ID:         form.ID.String(),
		FormNumber: form.FormNumber,
		Status:     form.Status,

		InvoiceID:  form.InvoiceID.String(),
		TravelerID: form.TravelerID.String(),

		Currency:       form.Currency,
		EligibleAmount: form.EligibleAmount.StringFixed(2),
		VATAmount:      form.VATAmount.StringFixed(2),
		OperatorFee:    form.OperatorFee.StringFixed(2),
		RefundAmount:   form.RefundAmount.StringFixed(2),

		RiskScore:       form.RiskScore,
		RiskFlags:       form.RiskFlags,
		RequiresControl: form.RequiresControl,

		RuleSetVersion: form.RuleSnapshot.Version,

		QRPayload:   form.QRPayload,
		QRSignature: form.QRSignature,

		ExpiresAt: form.ExpiresAt.Format(time.RFC3339),
		CreatedAt: form.CreatedAt.Format(time.RFC3339),
	}
	if form.Invoice != nil {
		resp.InvoiceNumber = form.Invoice.InvoiceNumber
		if form.Invoice.Merchant != nil {
			resp.MerchantName = form.Invoice.Merchant.Name
		}
	}
	if form.Traveler != nil {
		resp.TravelerName = form.Traveler.FullName()
		resp.PassportLast4 = form.Traveler.PassportNumberLast4
	}
	if form.IssuedAt != nil {
		at := form.IssuedAt.Format(time.RFC3339)
		resp.IssuedAt = &at
	}
	if form.ValidatedAt != nil {
		at := form.ValidatedAt.Format(time.RFC3339)
		resp.ValidatedAt = &at
	}
	return resp
}
