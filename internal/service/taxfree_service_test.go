package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"backend/internal/model"
	"backend/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTaxFreeService(t *testing.T) (TaxFreeService, *gorm.DB, *recordingNotifier) {
	t.Helper()
	db := setupTestDB(t)
	notifier := &recordingNotifier{}
	svc := NewTaxFreeService(
		db,
		repository.NewFormRepository(db),
		repository.NewRuleSetRepository(db),
		notifier,
		[]byte("test_qr_signing_key"),
	)
	return svc, db, notifier
}

func TestCheckEligibility(t *testing.T) {
	svc, db, _ := newTaxFreeService(t)
	ctx := context.Background()
	seedRuleSet(t, db)
	merchant, outlet := seedMerchant(t, db)
	invoice := seedInvoice(t, db, merchant, outlet)

	t.Run("eligible claim computes amounts without persisting", func(t *testing.T) {
		resp, err := svc.CheckEligibility(ctx, CreateFormRequest{
			InvoiceID: invoice.ID.String(),
			Traveler:  travelerReq(),
		})
		require.NoError(t, err)

		assert.True(t, resp.Eligible)
		assert.Empty(t, resp.Reasons)
		assert.Equal(t, "100000.00", resp.EligibleAmount)
		assert.Equal(t, "16000.00", resp.VATAmount)
		// max(16000 x 15%, 5000) = 5000
		assert.Equal(t, "5000.00", resp.OperatorFee)
		assert.Equal(t, "11000.00", resp.RefundAmount)

		var travelers int64
		require.NoError(t, db.Model(&model.Traveler{}).Count(&travelers).Error)
		assert.Zero(t, travelers)
	})

	t.Run("reports every violated rule", func(t *testing.T) {
		traveler := travelerReq()
		traveler.DateOfBirth = "2015-01-01"

		require.NoError(t, db.Model(&model.SaleInvoice{}).
			Where("id = ?", invoice.ID).
			Update("is_cancelled", true).Error)
		t.Cleanup(func() {
			require.NoError(t, db.Model(&model.SaleInvoice{}).
				Where("id = ?", invoice.ID).
				Update("is_cancelled", false).Error)
		})

		resp, err := svc.CheckEligibility(ctx, CreateFormRequest{
			InvoiceID: invoice.ID.String(),
			Traveler:  traveler,
		})
		require.NoError(t, err)

		assert.False(t, resp.Eligible)
		joined := strings.Join(resp.Reasons, "; ")
		assert.Contains(t, joined, "below minimum age")
		assert.Contains(t, joined, "Invoice is cancelled")
	})

	t.Run("requires an active ruleset", func(t *testing.T) {
		require.NoError(t, db.Model(&model.RuleSet{}).
			Where("is_active = ?", true).
			Update("is_active", false).Error)
		t.Cleanup(func() {
			require.NoError(t, db.Model(&model.RuleSet{}).
				Where("version = ?", "2026.01").
				Update("is_active", true).Error)
		})

		_, err := svc.CheckEligibility(ctx, CreateFormRequest{
			InvoiceID: invoice.ID.String(),
			Traveler:  travelerReq(),
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no active ruleset")
	})
}

func TestCreateForm(t *testing.T) {
	svc, db, _ := newTaxFreeService(t)
	ctx := context.Background()
	rs := seedRuleSet(t, db)
	merchant, outlet := seedMerchant(t, db)
	invoice := seedInvoice(t, db, merchant, outlet)

	t.Run("persists form with frozen snapshot and signed QR", func(t *testing.T) {
		resp, err := svc.CreateForm(ctx, CreateFormRequest{
			InvoiceID: invoice.ID.String(),
			Traveler:  travelerReq(),
		}, "")
		require.NoError(t, err)

		assert.Equal(t, model.FormCreated, resp.Status)
		assert.True(t, strings.HasPrefix(resp.FormNumber, "TF"))
		assert.Equal(t, "11000.00", resp.RefundAmount)
		assert.Equal(t, rs.Version, resp.RuleSetVersion)
		assert.NotEmpty(t, resp.QRPayload)
		assert.Len(t, resp.QRSignature, 64)
		assert.False(t, resp.RequiresControl)

		var travelers int64
		require.NoError(t, db.Model(&model.Traveler{}).Count(&travelers).Error)
		assert.Equal(t, int64(1), travelers)

		var audits int64
		require.NoError(t, db.Model(&model.AuditLog{}).
			Where("action = ?", model.ActionFormCreated).
			Count(&audits).Error)
		assert.Equal(t, int64(1), audits)

		var stored model.TaxFreeForm
		require.NoError(t, db.First(&stored, "form_number = ?", resp.FormNumber).Error)
		assert.Equal(t, rs.ID.String(), stored.RuleSnapshot.RuleSetID)
		assert.Equal(t, "5000", stored.RuleSnapshot.MinOperatorFee.String())
	})

	t.Run("one form per invoice", func(t *testing.T) {
		_, err := svc.CreateForm(ctx, CreateFormRequest{
			InvoiceID: invoice.ID.String(),
			Traveler:  travelerReq(),
		}, "")
		require.Error(t, err)

		var eligErr *EligibilityError
		require.True(t, errors.As(err, &eligErr))
		assert.Contains(t, strings.Join(eligErr.Reasons, "; "), "already has a tax free form")
	})

	t.Run("ineligible claim surfaces typed error", func(t *testing.T) {
		second := seedInvoice(t, db, merchant, outlet)
		traveler := travelerReq()
		traveler.PassportNumber = "CD7654321"
		traveler.DateOfBirth = "2015-01-01"

		_, err := svc.CreateForm(ctx, CreateFormRequest{
			InvoiceID: second.ID.String(),
			Traveler:  traveler,
		}, "")
		require.Error(t, err)

		var eligErr *EligibilityError
		require.True(t, errors.As(err, &eligErr))
		assert.Contains(t, err.Error(), "invoice not eligible")
	})
}

func TestFormControlNotification(t *testing.T) {
	svc, db, notifier := newTaxFreeService(t)
	ctx := context.Background()
	rs := seedRuleSet(t, db)
	merchant, outlet := seedMerchant(t, db)
	invoice := seedInvoice(t, db, merchant, outlet)

	// 100000 CDF eligible crosses a lowered high-value threshold
	require.NoError(t, db.Model(&model.RuleSet{}).
		Where("id = ?", rs.ID).
		Update("high_value_threshold", "90000").Error)

	resp, err := svc.CreateForm(ctx, CreateFormRequest{
		InvoiceID: invoice.ID.String(),
		Traveler:  travelerReq(),
	}, "")
	require.NoError(t, err)

	assert.True(t, resp.RequiresControl)
	assert.Contains(t, resp.RiskFlags, "HIGH_VALUE")
	assert.Equal(t, 1, notifier.controls)
}

func TestFormLifecycle(t *testing.T) {
	svc, db, _ := newTaxFreeService(t)
	ctx := context.Background()
	seedRuleSet(t, db)
	merchant, outlet := seedMerchant(t, db)

	createForm := func(t *testing.T, passport string) FormResponse {
		t.Helper()
		invoice := seedInvoice(t, db, merchant, outlet)
		traveler := travelerReq()
		traveler.PassportNumber = passport
		resp, err := svc.CreateForm(ctx, CreateFormRequest{
			InvoiceID: invoice.ID.String(),
			Traveler:  traveler,
		}, "")
		require.NoError(t, err)
		return resp
	}

	t.Run("issue then validate", func(t *testing.T) {
		form := createForm(t, "AA0000001")

		issued, err := svc.IssueForm(ctx, form.ID, "")
		require.NoError(t, err)
		assert.Equal(t, model.FormIssued, issued.Status)
		assert.NotNil(t, issued.IssuedAt)

		_, err = svc.IssueForm(ctx, form.ID, "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "only a CREATED form")

		validated, err := svc.ValidateForm(ctx, form.ID, "")
		require.NoError(t, err)
		assert.Equal(t, model.FormValidated, validated.Status)
		assert.NotNil(t, validated.ValidatedAt)
	})

	t.Run("control flag parks the first scan", func(t *testing.T) {
		form := createForm(t, "AA0000002")
		require.NoError(t, db.Model(&model.TaxFreeForm{}).
			Where("id = ?", form.ID).
			Update("requires_control", true).Error)

		_, err := svc.IssueForm(ctx, form.ID, "")
		require.NoError(t, err)

		first, err := svc.ValidateForm(ctx, form.ID, "")
		require.NoError(t, err)
		assert.Equal(t, model.FormValidationPending, first.Status)
		assert.Nil(t, first.ValidatedAt)

		second, err := svc.ValidateForm(ctx, form.ID, "")
		require.NoError(t, err)
		assert.Equal(t, model.FormValidated, second.Status)
		assert.NotNil(t, second.ValidatedAt)
	})

	t.Run("overdue form expires on scan", func(t *testing.T) {
		form := createForm(t, "AA0000003")
		_, err := svc.IssueForm(ctx, form.ID, "")
		require.NoError(t, err)

		require.NoError(t, db.Model(&model.TaxFreeForm{}).
			Where("id = ?", form.ID).
			Update("expires_at", time.Now().Add(-time.Hour)).Error)

		resp, err := svc.ValidateForm(ctx, form.ID, "")
		require.NoError(t, err)
		assert.Equal(t, model.FormExpired, resp.Status)

		_, err = svc.ValidateForm(ctx, form.ID, "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cannot be validated")
	})

	t.Run("refuse requires an issued form", func(t *testing.T) {
		form := createForm(t, "AA0000004")

		_, err := svc.RefuseForm(ctx, form.ID, RefuseFormRequest{Reason: "goods not presented"}, "")
		require.Error(t, err)

		_, err = svc.IssueForm(ctx, form.ID, "")
		require.NoError(t, err)

		refused, err := svc.RefuseForm(ctx, form.ID, RefuseFormRequest{Reason: "goods not presented"}, "")
		require.NoError(t, err)
		assert.Equal(t, model.FormRefused, refused.Status)
	})

	t.Run("cancel only before validation", func(t *testing.T) {
		form := createForm(t, "AA0000005")

		cancelled, err := svc.CancelForm(ctx, form.ID, CancelFormRequest{Reason: "typo in invoice"}, "")
		require.NoError(t, err)
		assert.Equal(t, model.FormCancelled, cancelled.Status)

		_, err = svc.CancelForm(ctx, form.ID, CancelFormRequest{Reason: "again"}, "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cannot be cancelled")
	})
}

func TestVerifyQR(t *testing.T) {
	svc, db, _ := newTaxFreeService(t)
	ctx := context.Background()
	seedRuleSet(t, db)
	merchant, outlet := seedMerchant(t, db)
	invoice := seedInvoice(t, db, merchant, outlet)

	form, err := svc.CreateForm(ctx, CreateFormRequest{
		InvoiceID: invoice.ID.String(),
		Traveler:  travelerReq(),
	}, "")
	require.NoError(t, err)

	t.Run("valid signature resolves the form", func(t *testing.T) {
		resp, err := svc.VerifyQR(ctx, VerifyQRRequest{
			Payload:   form.QRPayload,
			Signature: form.QRSignature,
		})
		require.NoError(t, err)
		assert.True(t, resp.Valid)
		require.NotNil(t, resp.Form)
		assert.Equal(t, form.FormNumber, resp.Form.FormNumber)
	})

	t.Run("tampered payload fails", func(t *testing.T) {
		resp, err := svc.VerifyQR(ctx, VerifyQRRequest{
			Payload:   strings.Replace(form.QRPayload, form.FormNumber, "TF000000FORGED00", 1),
			Signature: form.QRSignature,
		})
		require.NoError(t, err)
		assert.False(t, resp.Valid)
		assert.Nil(t, resp.Form)
	})

	t.Run("wrong signature fails", func(t *testing.T) {
		resp, err := svc.VerifyQR(ctx, VerifyQRRequest{
			Payload:   form.QRPayload,
			Signature: strings.Repeat("0", 64),
		})
		require.NoError(t, err)
		assert.False(t, resp.Valid)
	})
}

func TestGetFormByNumber(t *testing.T) {
	svc, db, _ := newTaxFreeService(t)
	ctx := context.Background()
	seedRuleSet(t, db)
	merchant, outlet := seedMerchant(t, db)
	invoice := seedInvoice(t, db, merchant, outlet)

	created, err := svc.CreateForm(ctx, CreateFormRequest{
		InvoiceID: invoice.ID.String(),
		Traveler:  travelerReq(),
	}, "")
	require.NoError(t, err)

	found, err := svc.GetFormByNumber(ctx, created.FormNumber)
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)
	assert.Equal(t, "Claire Dubois", found.TravelerName)

	_, err = svc.GetFormByNumber(ctx, "TF203001MISSING0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "form not found")
}

func TestExpireOverdueForms(t *testing.T) {
	svc, db, _ := newTaxFreeService(t)
	ctx := context.Background()
	seedRuleSet(t, db)
	merchant, outlet := seedMerchant(t, db)

	overdue := seedInvoice(t, db, merchant, outlet)
	fresh := seedInvoice(t, db, merchant, outlet)

	overdueForm, err := svc.CreateForm(ctx, CreateFormRequest{
		InvoiceID: overdue.ID.String(),
		Traveler:  travelerReq(),
	}, "")
	require.NoError(t, err)

	other := travelerReq()
	other.PassportNumber = "EF9988776"
	freshForm, err := svc.CreateForm(ctx, CreateFormRequest{
		InvoiceID: fresh.ID.String(),
		Traveler:  other,
	}, "")
	require.NoError(t, err)

	require.NoError(t, db.Model(&model.TaxFreeForm{}).
		Where("id = ?", overdueForm.ID).
		Update("expires_at", time.Now().Add(-24*time.Hour)).Error)

	count, err := svc.ExpireOverdueForms(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	expired, err := svc.GetForm(ctx, overdueForm.ID)
	require.NoError(t, err)
	assert.Equal(t, model.FormExpired, expired.Status)

	untouched, err := svc.GetForm(ctx, freshForm.ID)
	require.NoError(t, err)
	assert.Equal(t, model.FormCreated, untouched.Status)
}
