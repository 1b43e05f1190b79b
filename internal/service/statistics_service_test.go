package service

import (
	"context"
	"testing"
	"time"

	"backend/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func seedPaidRefund(t *testing.T, db *gorm.DB, form *model.TaxFreeForm, method string, net, fee, gainCDF string) {
	t.Helper()
	now := time.Now()
	refund := &model.Refund{
		FormID:         form.ID,
		Currency:       model.BaseCurrencyCode,
		GrossAmount:    dec(t, net).Add(dec(t, fee)),
		OperatorFee:    dec(t, fee),
		NetAmount:      dec(t, net),
		Method:         method,
		Status:         model.RefundPaid,
		PaidAt:         &now,
		PayoutCurrency: model.BaseCurrencyCode,
		ServiceGainCDF: dec(t, gainCDF),
	}
	require.NoError(t, db.Create(refund).Error)
}

func TestGetStatistics(t *testing.T) {
	db := setupTestDB(t)
	svc := NewStatisticsService(db)
	ctx := context.Background()

	formA := seedValidatedForm(t, db)
	formB := seedValidatedForm(t, db)
	require.NoError(t, db.Model(&model.TaxFreeForm{}).
		Where("id = ?", formB.ID).
		Update("status", model.FormRefunded).Error)

	seedPaidRefund(t, db, formA, model.RefundMethodCard, "11000", "5000", "0")
	seedPaidRefund(t, db, formB, model.RefundMethodCash, "11000", "5000", "1000")

	start := time.Now().Add(-time.Hour)
	end := time.Now().Add(time.Hour)

	stats, err := svc.GetStatistics(ctx, start, end)
	require.NoError(t, err)

	assert.Equal(t, int64(2), stats.TotalForms)
	assert.Equal(t, int64(1), stats.FormsByStatus[model.FormValidated])
	assert.Equal(t, int64(1), stats.FormsByStatus[model.FormRefunded])

	assert.Equal(t, int64(2), stats.TotalRefunds)
	assert.Equal(t, int64(2), stats.RefundsByStatus[model.RefundPaid])

	assert.Equal(t, "32000.00", stats.TotalVATAmount)
	assert.Equal(t, "22000.00", stats.TotalRefundPaid)
	assert.Equal(t, "10000.00", stats.TotalOperatorFees)
	assert.Equal(t, "1000.00", stats.TotalServiceGainCDF)

	require.Len(t, stats.RefundsByMethod, 2)
	require.Len(t, stats.TopMerchants, 2)
	assert.Equal(t, int64(1), stats.TopMerchants[0].FormCount)

	t.Run("empty bracket", func(t *testing.T) {
		past, err := svc.GetStatistics(ctx, start.Add(-48*time.Hour), start.Add(-24*time.Hour))
		require.NoError(t, err)
		assert.Zero(t, past.TotalForms)
		assert.Equal(t, "0.00", past.TotalRefundPaid)
	})
}

func TestGetAuditLogs(t *testing.T) {
	db := setupTestDB(t)
	svc := NewAuditService(db)
	ctx := context.Background()

	for _, action := range []string{model.ActionFormCreated, model.ActionFormCreated, model.ActionRefundInitiated} {
		require.NoError(t, db.Create(&model.AuditLog{
			Action:   action,
			EntityID: "e-1",
			Details:  "{}",
		}).Error)
	}

	t.Run("unfiltered with system fallback username", func(t *testing.T) {
		logs, total, err := svc.GetAuditLogs(ctx, "", 1, 10)
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)
		require.Len(t, logs, 3)
		assert.Equal(t, "System", logs[0].Username)
	})

	t.Run("filter by action", func(t *testing.T) {
		logs, total, err := svc.GetAuditLogs(ctx, model.ActionFormCreated, 1, 10)
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)
		assert.Len(t, logs, 2)
	})

	t.Run("pagination", func(t *testing.T) {
		logs, total, err := svc.GetAuditLogs(ctx, "", 2, 2)
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)
		assert.Len(t, logs, 1)
	})
}
