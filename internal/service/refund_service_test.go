package service

import (
	"context"
	"testing"
	"time"

	"backend/internal/model"
	"backend/internal/provider"
	"backend/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// stubProvider returns a fixed outcome so settlement paths are deterministic
type stubProvider struct {
	name   string
	result provider.Result
	err    error
	calls  int
}

func (p *stubProvider) Name() string { return p.name }

func (p *stubProvider) ProcessPayment(ctx context.Context, amount decimal.Decimal, currency string, paymentDetails map[string]string, reference string) (provider.Result, error) {
	p.calls++
	return p.result, p.err
}

type stubRegistry struct {
	p provider.PaymentProvider
}

func (r stubRegistry) ForMethod(method string) provider.PaymentProvider { return r.p }

func successProvider() *stubProvider {
	return &stubProvider{
		name: "stub-pay",
		result: provider.Result{
			Success:    true,
			RequestID:  "req-1",
			ResponseID: "resp-1",
		},
	}
}

func failingProvider() *stubProvider {
	return &stubProvider{
		name: "stub-pay",
		result: provider.Result{
			Success:      false,
			ErrorCode:    "INSUFFICIENT_FUNDS",
			ErrorMessage: "provider declined",
		},
	}
}

func newRefundService(t *testing.T, db *gorm.DB, p provider.PaymentProvider) (RefundService, *recordingNotifier) {
	t.Helper()
	notifier := &recordingNotifier{}
	svc := NewRefundService(
		repository.NewRefundRepository(db),
		repository.NewFormRepository(db),
		repository.NewCurrencyRepository(db),
		repository.NewRuleSetRepository(db),
		repository.NewAuditRepository(db),
		repository.NewTransactionManager(db),
		stubRegistry{p: p},
		notifier,
	)
	return svc, notifier
}

// seedValidatedForm inserts a customs-validated form worth 11000 CDF net
// (16000 VAT minus 5000 operator fee) with its traveler and invoice.
func seedValidatedForm(t *testing.T, db *gorm.DB) *model.TaxFreeForm {
	t.Helper()

	merchant, outlet := seedMerchant(t, db)
	invoice := seedInvoice(t, db, merchant, outlet)

	traveler := &model.Traveler{
		PassportCountry:  "FR",
		FirstName:        "Claire",
		LastName:         "Dubois",
		DateOfBirth:      mustDate(t, "1990-05-15"),
		Nationality:      "FR",
		ResidenceCountry: "FR",
		RefundDetails:    map[string]string{"iban": "FR76XXXX"},
	}
	traveler.SetPassportNumber("AB1234567")
	require.NoError(t, db.Create(traveler).Error)

	now := time.Now()
	form := &model.TaxFreeForm{
		FormNumber:     "TF202602" + uuid.NewString()[:8],
		InvoiceID:      invoice.ID,
		TravelerID:     traveler.ID,
		Currency:       model.BaseCurrencyCode,
		EligibleAmount: dec(t, "100000"),
		VATAmount:      dec(t, "16000"),
		OperatorFee:    dec(t, "5000"),
		RefundAmount:   dec(t, "11000"),
		Status:         model.FormValidated,
		ValidatedAt:    &now,
		ExpiresAt:      now.AddDate(0, 3, 0),
		RuleSnapshot:   model.RuleSnapshot{Version: "2026.01"},
	}
	require.NoError(t, db.Create(form).Error)
	return form
}

func TestCreateRefund(t *testing.T) {
	db := setupTestDB(t)
	svc, _ := newRefundService(t, db, successProvider())
	ctx := context.Background()
	seedCurrencies(t, db)

	t.Run("freezes rate and payout at creation", func(t *testing.T) {
		form := seedValidatedForm(t, db)

		resp, err := svc.CreateRefund(ctx, CreateRefundRequest{
			FormID:         form.ID.String(),
			Method:         model.RefundMethodCard,
			PayoutCurrency: "USD",
		}, "")
		require.NoError(t, err)

		assert.Equal(t, model.RefundPending, resp.Status)
		assert.Equal(t, "16000.00", resp.GrossAmount)
		assert.Equal(t, "5000.00", resp.OperatorFee)
		assert.Equal(t, "11000.00", resp.NetAmount)
		assert.Equal(t, "USD", resp.PayoutCurrency)
		require.NotNil(t, resp.ExchangeRateApplied)
		assert.Equal(t, "0.000400", *resp.ExchangeRateApplied)
		require.NotNil(t, resp.PayoutAmount)
		assert.Equal(t, "4.40", *resp.PayoutAmount)

		// A later rate change never moves the frozen payout
		require.NoError(t, db.Model(&model.Currency{}).
			Where("code = ?", "USD").
			Update("exchange_rate", "0.0008").Error)

		unchanged, err := svc.GetRefund(ctx, resp.ID)
		require.NoError(t, err)
		assert.Equal(t, "4.40", *unchanged.PayoutAmount)
	})

	t.Run("defaults to the base currency and the traveler's details", func(t *testing.T) {
		form := seedValidatedForm(t, db)

		resp, err := svc.CreateRefund(ctx, CreateRefundRequest{
			FormID: form.ID.String(),
			Method: model.RefundMethodBankTransfer,
		}, "")
		require.NoError(t, err)

		assert.Equal(t, model.BaseCurrencyCode, resp.PayoutCurrency)
		require.NotNil(t, resp.PayoutAmount)
		assert.Equal(t, "11000.00", *resp.PayoutAmount)

		var stored model.Refund
		require.NoError(t, db.First(&stored, "id = ?", resp.ID).Error)
		assert.Equal(t, "FR76XXXX", stored.PaymentDetails["iban"])
	})

	t.Run("requires a validated form", func(t *testing.T) {
		form := seedValidatedForm(t, db)
		require.NoError(t, db.Model(&model.TaxFreeForm{}).
			Where("id = ?", form.ID).
			Update("status", model.FormIssued).Error)

		_, err := svc.CreateRefund(ctx, CreateRefundRequest{
			FormID: form.ID.String(),
			Method: model.RefundMethodCard,
		}, "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "VALIDATED form")
	})

	t.Run("one refund per form", func(t *testing.T) {
		form := seedValidatedForm(t, db)
		_, err := svc.CreateRefund(ctx, CreateRefundRequest{
			FormID: form.ID.String(),
			Method: model.RefundMethodCard,
		}, "")
		require.NoError(t, err)

		_, err = svc.CreateRefund(ctx, CreateRefundRequest{
			FormID: form.ID.String(),
			Method: model.RefundMethodCash,
		}, "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "already exists")
	})

	t.Run("method must be allowed by the active ruleset", func(t *testing.T) {
		rs := seedRuleSet(t, db)
		rs.AllowedRefundMethods = []string{model.RefundMethodCash}
		require.NoError(t, db.Save(rs).Error)

		form := seedValidatedForm(t, db)
		_, err := svc.CreateRefund(ctx, CreateRefundRequest{
			FormID: form.ID.String(),
			Method: model.RefundMethodCard,
		}, "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not allowed by the active ruleset")
	})

	t.Run("inactive payout currency is rejected", func(t *testing.T) {
		require.NoError(t, db.Model(&model.Currency{}).
			Where("code = ?", "USD").
			Update("is_active", false).Error)
		t.Cleanup(func() {
			require.NoError(t, db.Model(&model.Currency{}).
				Where("code = ?", "USD").
				Update("is_active", true).Error)
		})

		form := seedValidatedForm(t, db)
		_, err := svc.CreateRefund(ctx, CreateRefundRequest{
			FormID:         form.ID.String(),
			Method:         model.RefundMethodCard,
			PayoutCurrency: "USD",
		}, "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not found or inactive")
	})
}

func TestProcessRefund(t *testing.T) {
	ctx := context.Background()

	t.Run("successful card payment settles the refund", func(t *testing.T) {
		db := setupTestDB(t)
		p := successProvider()
		svc, notifier := newRefundService(t, db, p)
		seedCurrencies(t, db)
		form := seedValidatedForm(t, db)

		created, err := svc.CreateRefund(ctx, CreateRefundRequest{
			FormID: form.ID.String(),
			Method: model.RefundMethodCard,
		}, "")
		require.NoError(t, err)

		resp, err := svc.ProcessRefund(ctx, created.ID, "")
		require.NoError(t, err)

		assert.Equal(t, model.RefundPaid, resp.Status)
		assert.NotNil(t, resp.PaidAt)
		assert.Equal(t, 1, p.calls)
		assert.Equal(t, 1, notifier.paid)

		var storedForm model.TaxFreeForm
		require.NoError(t, db.First(&storedForm, "id = ?", form.ID).Error)
		assert.Equal(t, model.FormRefunded, storedForm.Status)

		attempts, err := svc.GetAttempts(ctx, created.ID)
		require.NoError(t, err)
		require.Len(t, attempts, 1)
		assert.Equal(t, model.AttemptSuccess, attempts[0].Status)
		assert.Equal(t, "stub-pay", attempts[0].Provider)
		assert.NotNil(t, attempts[0].CompletedAt)
	})

	t.Run("cash stays INITIATED until the counter", func(t *testing.T) {
		db := setupTestDB(t)
		svc, notifier := newRefundService(t, db, successProvider())
		seedCurrencies(t, db)
		form := seedValidatedForm(t, db)

		created, err := svc.CreateRefund(ctx, CreateRefundRequest{
			FormID: form.ID.String(),
			Method: model.RefundMethodCash,
		}, "")
		require.NoError(t, err)

		resp, err := svc.ProcessRefund(ctx, created.ID, "")
		require.NoError(t, err)

		assert.Equal(t, model.RefundInitiated, resp.Status)
		assert.Nil(t, resp.PaidAt)
		assert.Zero(t, notifier.paid)

		var storedForm model.TaxFreeForm
		require.NoError(t, db.First(&storedForm, "id = ?", form.ID).Error)
		assert.Equal(t, model.FormValidated, storedForm.Status)
	})

	t.Run("failure schedules a retry with backoff", func(t *testing.T) {
		db := setupTestDB(t)
		svc, notifier := newRefundService(t, db, failingProvider())
		seedCurrencies(t, db)
		form := seedValidatedForm(t, db)

		created, err := svc.CreateRefund(ctx, CreateRefundRequest{
			FormID: form.ID.String(),
			Method: model.RefundMethodCard,
		}, "")
		require.NoError(t, err)

		resp, err := svc.ProcessRefund(ctx, created.ID, "")
		require.NoError(t, err)

		assert.Equal(t, model.RefundFailed, resp.Status)
		assert.Equal(t, 1, resp.RetryCount)
		assert.Zero(t, notifier.paid)

		var stored model.Refund
		require.NoError(t, db.First(&stored, "id = ?", created.ID).Error)
		require.NotNil(t, stored.NextRetryAt)
		assert.WithinDuration(t, time.Now().Add(4*time.Hour), *stored.NextRetryAt, time.Minute)

		attempts, err := svc.GetAttempts(ctx, created.ID)
		require.NoError(t, err)
		require.Len(t, attempts, 1)
		assert.Equal(t, model.AttemptFailed, attempts[0].Status)
		assert.Equal(t, "INSUFFICIENT_FUNDS", attempts[0].ErrorCode)
	})

	t.Run("retry budget is exhausted after max retries", func(t *testing.T) {
		db := setupTestDB(t)
		svc, _ := newRefundService(t, db, failingProvider())
		seedCurrencies(t, db)
		form := seedValidatedForm(t, db)

		created, err := svc.CreateRefund(ctx, CreateRefundRequest{
			FormID: form.ID.String(),
			Method: model.RefundMethodCard,
		}, "")
		require.NoError(t, err)

		for i := 0; i < 3; i++ {
			resp, err := svc.ProcessRefund(ctx, created.ID, "")
			require.NoError(t, err)
			assert.Equal(t, model.RefundFailed, resp.Status)
			assert.Equal(t, i+1, resp.RetryCount)
		}

		var stored model.Refund
		require.NoError(t, db.First(&stored, "id = ?", created.ID).Error)
		assert.Nil(t, stored.NextRetryAt)

		_, err = svc.ProcessRefund(ctx, created.ID, "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cannot be processed")

		attempts, err := svc.GetAttempts(ctx, created.ID)
		require.NoError(t, err)
		assert.Len(t, attempts, 3)
	})

	t.Run("provider error is recorded as a failed attempt", func(t *testing.T) {
		db := setupTestDB(t)
		p := &stubProvider{name: "stub-pay", err: context.DeadlineExceeded}
		svc, _ := newRefundService(t, db, p)
		seedCurrencies(t, db)
		form := seedValidatedForm(t, db)

		created, err := svc.CreateRefund(ctx, CreateRefundRequest{
			FormID: form.ID.String(),
			Method: model.RefundMethodCard,
		}, "")
		require.NoError(t, err)

		resp, err := svc.ProcessRefund(ctx, created.ID, "")
		require.NoError(t, err)
		assert.Equal(t, model.RefundFailed, resp.Status)

		attempts, err := svc.GetAttempts(ctx, created.ID)
		require.NoError(t, err)
		require.Len(t, attempts, 1)
		assert.Equal(t, "PROVIDER_ERROR", attempts[0].ErrorCode)
	})
}

func TestCollectCash(t *testing.T) {
	ctx := context.Background()

	initiatedCashRefund := func(t *testing.T, db *gorm.DB, svc RefundService, payoutCurrency string) RefundResponse {
		t.Helper()
		form := seedValidatedForm(t, db)
		created, err := svc.CreateRefund(ctx, CreateRefundRequest{
			FormID:         form.ID.String(),
			Method:         model.RefundMethodCash,
			PayoutCurrency: payoutCurrency,
		}, "")
		require.NoError(t, err)
		initiated, err := svc.ProcessRefund(ctx, created.ID, "")
		require.NoError(t, err)
		require.Equal(t, model.RefundInitiated, initiated.Status)
		return initiated
	}

	t.Run("full collection pays out with zero gain", func(t *testing.T) {
		db := setupTestDB(t)
		svc, notifier := newRefundService(t, db, successProvider())
		seedCurrencies(t, db)
		refund := initiatedCashRefund(t, db, svc, "")

		resp, err := svc.CollectCash(ctx, refund.ID, CollectCashRequest{}, "")
		require.NoError(t, err)

		assert.Equal(t, model.RefundPaid, resp.Status)
		assert.True(t, resp.CashCollected)
		require.NotNil(t, resp.ActualPayoutAmount)
		assert.Equal(t, "11000.00", *resp.ActualPayoutAmount)
		assert.Equal(t, "0.00", resp.ServiceGain)
		assert.Equal(t, 1, notifier.paid)

		var storedForm model.TaxFreeForm
		require.NoError(t, db.First(&storedForm, "form_number LIKE ?", "TF%").Error)
		assert.Equal(t, model.FormRefunded, storedForm.Status)
	})

	t.Run("short payout books the gain in both currencies", func(t *testing.T) {
		db := setupTestDB(t)
		svc, _ := newRefundService(t, db, successProvider())
		seedCurrencies(t, db)
		refund := initiatedCashRefund(t, db, svc, "USD")
		require.Equal(t, "4.40", *refund.PayoutAmount)

		resp, err := svc.CollectCash(ctx, refund.ID, CollectCashRequest{ActualAmount: "4.00"}, "")
		require.NoError(t, err)

		assert.Equal(t, "4.00", *resp.ActualPayoutAmount)
		assert.Equal(t, "0.40", resp.ServiceGain)
		// 0.40 USD back at the frozen 0.0004 rate
		assert.Equal(t, "1000.00", resp.ServiceGainCDF)
	})

	t.Run("rejects amounts above the expected payout", func(t *testing.T) {
		db := setupTestDB(t)
		svc, _ := newRefundService(t, db, successProvider())
		seedCurrencies(t, db)
		refund := initiatedCashRefund(t, db, svc, "USD")

		_, err := svc.CollectCash(ctx, refund.ID, CollectCashRequest{ActualAmount: "5.00"}, "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "exceeds expected payout")
	})

	t.Run("double collection is refused", func(t *testing.T) {
		db := setupTestDB(t)
		svc, _ := newRefundService(t, db, successProvider())
		seedCurrencies(t, db)
		refund := initiatedCashRefund(t, db, svc, "")

		_, err := svc.CollectCash(ctx, refund.ID, CollectCashRequest{}, "")
		require.NoError(t, err)

		_, err = svc.CollectCash(ctx, refund.ID, CollectCashRequest{}, "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "INITIATED refund")
	})

	t.Run("only cash refunds can be collected", func(t *testing.T) {
		db := setupTestDB(t)
		svc, _ := newRefundService(t, db, failingProvider())
		seedCurrencies(t, db)
		form := seedValidatedForm(t, db)

		created, err := svc.CreateRefund(ctx, CreateRefundRequest{
			FormID: form.ID.String(),
			Method: model.RefundMethodCard,
		}, "")
		require.NoError(t, err)

		_, err = svc.CollectCash(ctx, created.ID, CollectCashRequest{}, "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "only cash refunds")
	})
}

func TestCancelRefund(t *testing.T) {
	db := setupTestDB(t)
	svc, _ := newRefundService(t, db, successProvider())
	ctx := context.Background()
	seedCurrencies(t, db)

	t.Run("pending refund can be cancelled", func(t *testing.T) {
		form := seedValidatedForm(t, db)
		created, err := svc.CreateRefund(ctx, CreateRefundRequest{
			FormID: form.ID.String(),
			Method: model.RefundMethodCard,
		}, "")
		require.NoError(t, err)

		resp, err := svc.CancelRefund(ctx, created.ID, CancelRefundRequest{Reason: "traveler request"}, "")
		require.NoError(t, err)
		assert.Equal(t, model.RefundCancelled, resp.Status)
	})

	t.Run("paid refund cannot be cancelled", func(t *testing.T) {
		form := seedValidatedForm(t, db)
		created, err := svc.CreateRefund(ctx, CreateRefundRequest{
			FormID: form.ID.String(),
			Method: model.RefundMethodCard,
		}, "")
		require.NoError(t, err)

		_, err = svc.ProcessRefund(ctx, created.ID, "")
		require.NoError(t, err)

		_, err = svc.CancelRefund(ctx, created.ID, CancelRefundRequest{Reason: "too late"}, "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "PENDING or FAILED")
	})

	t.Run("audit write failure does not block cancellation", func(t *testing.T) {
		form := seedValidatedForm(t, db)
		created, err := svc.CreateRefund(ctx, CreateRefundRequest{
			FormID: form.ID.String(),
			Method: model.RefundMethodCard,
		}, "")
		require.NoError(t, err)

		require.NoError(t, db.Migrator().DropTable(&model.AuditLog{}))

		resp, err := svc.CancelRefund(ctx, created.ID, CancelRefundRequest{Reason: "traveler request"}, "")
		require.NoError(t, err)
		assert.Equal(t, model.RefundCancelled, resp.Status)

		var stored model.Refund
		require.NoError(t, db.First(&stored, "id = ?", created.ID).Error)
		assert.Equal(t, model.RefundCancelled, stored.Status)
	})
}

func TestListRefunds(t *testing.T) {
	db := setupTestDB(t)
	svc, _ := newRefundService(t, db, successProvider())
	ctx := context.Background()
	seedCurrencies(t, db)

	for _, method := range []string{model.RefundMethodCard, model.RefundMethodCash} {
		form := seedValidatedForm(t, db)
		_, err := svc.CreateRefund(ctx, CreateRefundRequest{
			FormID: form.ID.String(),
			Method: method,
		}, "")
		require.NoError(t, err)
	}

	all, total, err := svc.ListRefunds(ctx, RefundFilter{Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, all, 2)

	cash, total, err := svc.ListRefunds(ctx, RefundFilter{Method: model.RefundMethodCash, Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, cash, 1)
	assert.Equal(t, model.RefundMethodCash, cash[0].Method)
}
