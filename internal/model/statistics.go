package model

import (
	"time"
)

// StatisticsResponse aggregates form and refund activity over a time range
type StatisticsResponse struct {
	FormsByStatus   map[string]int64 `json:"forms_by_status"`
	TotalForms      int64            `json:"total_forms"`
	RefundsByStatus map[string]int64 `json:"refunds_by_status"`
	TotalRefunds    int64            `json:"total_refunds"`

	TotalVATAmount      string `json:"total_vat_amount"`
	TotalRefundPaid     string `json:"total_refund_paid"`
	TotalOperatorFees   string `json:"total_operator_fees"`
	TotalServiceGainCDF string `json:"total_service_gain_cdf"`

	RefundsByMethod []MethodBreakdown `json:"refunds_by_method"`
	TopMerchants    []MerchantRanking `json:"top_merchants"`

	TimeRangeStartDate time.Time `json:"time_range_start_date"`
	TimeRangeEndDate   time.Time `json:"time_range_end_date"`
}

// MethodBreakdown is the paid-refund volume for one refund method
type MethodBreakdown struct {
	Method    string  `json:"method"`
	Count     int64   `json:"count"`
	TotalPaid float64 `json:"total_paid"`
}

// MerchantRanking represents a merchant ranked by issued refund value
type MerchantRanking struct {
	MerchantID   string  `json:"merchant_id"`
	MerchantName string  `json:"merchant_name"`
	FormCount    int64   `json:"form_count"`
	TotalRefund  float64 `json:"total_refund"`
}
