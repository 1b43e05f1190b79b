package service

import (
	"context"
	"time"

	"backend/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type StatisticsService interface {
	GetStatistics(ctx context.Context, startDate, endDate time.Time) (model.StatisticsResponse, error)
}

type statisticsService struct {
	db *gorm.DB
}

func NewStatisticsService(db *gorm.DB) StatisticsService {
	return &statisticsService{db: db}
}

// GetStatistics aggregates form and refund activity inside the time bracket
func (s *statisticsService) GetStatistics(ctx context.Context, startDate, endDate time.Time) (model.StatisticsResponse, error) {
	var response model.StatisticsResponse
	response.TimeRangeStartDate = startDate
	response.TimeRangeEndDate = endDate
	response.FormsByStatus = make(map[string]int64)
	response.RefundsByStatus = make(map[string]int64)

	// Form counts per status
	var formCounts []struct {
		Status string
		Count  int64
	}
	s.db.WithContext(ctx).Model(&model.TaxFreeForm{}).
		Select("status, COUNT(*) as count").
		Where("created_at >= ? AND created_at <= ?", startDate, endDate).
		Group("status").
		Scan(&formCounts)
	for _, row := range formCounts {
		response.FormsByStatus[row.Status] = row.Count
		response.TotalForms += row.Count
	}

	// Refund counts per status
	var refundCounts []struct {
		Status string
		Count  int64
	}
	s.db.WithContext(ctx).Model(&model.Refund{}).
		Select("status, COUNT(*) as count").
		Where("created_at >= ? AND created_at <= ?", startDate, endDate).
		Group("status").
		Scan(&refundCounts)
	for _, row := range refundCounts {
		response.RefundsByStatus[row.Status] = row.Count
		response.TotalRefunds += row.Count
	}

	// VAT claimed across forms in the bracket
	var vat struct {
		Value float64
	}
	s.db.WithContext(ctx).Model(&model.TaxFreeForm{}).
		Select("COALESCE(SUM(vat_amount), 0) as value").
		Where("created_at >= ? AND created_at <= ?", startDate, endDate).
		Scan(&vat)
	response.TotalVATAmount = decimal.NewFromFloat(vat.Value).StringFixed(2)

	// Settled totals: base-currency net amounts, fees and counter gains
	var settled struct {
		Paid float64
		Fees float64
		Gain float64
	}
	s.db.WithContext(ctx).Model(&model.Refund{}).
		Select("COALESCE(SUM(net_amount), 0) as paid, COALESCE(SUM(operator_fee), 0) as fees, COALESCE(SUM(service_gain_cdf), 0) as gain").
		Where("status = ? AND paid_at >= ? AND paid_at <= ?", model.RefundPaid, startDate, endDate).
		Scan(&settled)
	response.TotalRefundPaid = decimal.NewFromFloat(settled.Paid).StringFixed(2)
	response.TotalOperatorFees = decimal.NewFromFloat(settled.Fees).StringFixed(2)
	response.TotalServiceGainCDF = decimal.NewFromFloat(settled.Gain).StringFixed(2)

	// Paid volume broken down by method
	var methods []model.MethodBreakdown
	s.db.WithContext(ctx).Model(&model.Refund{}).
		Select("method, COUNT(*) as count, COALESCE(SUM(net_amount), 0) as total_paid").
		Where("status = ? AND paid_at >= ? AND paid_at <= ?", model.RefundPaid, startDate, endDate).
		Group("method").
		Order("total_paid DESC").
		Scan(&methods)
	response.RefundsByMethod = methods

	// Merchants ranked by issued refund value
	var topMerchants []model.MerchantRanking
	s.db.WithContext(ctx).Table("tax_free_forms").
		Select("merchants.id as merchant_id, merchants.name as merchant_name, COUNT(tax_free_forms.id) as form_count, COALESCE(SUM(tax_free_forms.refund_amount), 0) as total_refund").
		Joins("JOIN sale_invoices ON sale_invoices.id = tax_free_forms.invoice_id").
		Joins("JOIN merchants ON merchants.id = sale_invoices.merchant_id").
		Where("tax_free_forms.created_at >= ? AND tax_free_forms.created_at <= ?", startDate, endDate).
		Group("merchants.id, merchants.name").
		Order("total_refund DESC").
		Limit(5).
		Scan(&topMerchants)
	response.TopMerchants = topMerchants

	return response, nil
}
