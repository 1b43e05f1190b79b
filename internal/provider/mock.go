package provider

import (
	"context"
	"math/rand"
	"strings"

	"backend/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Mock providers stand in for real acquirer/bank/mobile-money integrations.
// They simulate realistic decline rates and always sanitize request payloads.

type MockCardProvider struct{}

func (MockCardProvider) Name() string { return "mock_card" }

func (MockCardProvider) ProcessPayment(ctx context.Context, amount decimal.Decimal, currency string, details map[string]string, reference string) (Result, error) {
	requestID := uuid.NewString()
	responseID := uuid.NewString()
	success := rand.Float64() < 0.9

	result := Result{
		Success:    success,
		RequestID:  requestID,
		ResponseID: responseID,
		Request: map[string]string{
			"amount":     amount.StringFixed(2),
			"currency":   currency,
			"card_token": maskPrefix(details["card_token"], 8),
			"reference":  reference,
		},
		Response: map[string]string{
			"status": "APPROVED",
		},
	}
	if success {
		result.Response["transaction_id"] = responseID
	} else {
		result.Response["status"] = "DECLINED"
		result.ErrorCode = "CARD_DECLINED"
		result.ErrorMessage = "Card was declined by issuer"
	}
	return result, nil
}

type MockBankTransferProvider struct{}

func (MockBankTransferProvider) Name() string { return "mock_bank" }

func (MockBankTransferProvider) ProcessPayment(ctx context.Context, amount decimal.Decimal, currency string, details map[string]string, reference string) (Result, error) {
	requestID := uuid.NewString()
	responseID := uuid.NewString()
	success := rand.Float64() < 0.95

	result := Result{
		Success:    success,
		RequestID:  requestID,
		ResponseID: responseID,
		Request: map[string]string{
			"amount":    amount.StringFixed(2),
			"currency":  currency,
			"account":   maskSuffix(details["account_number"], 4),
			"bank_code": details["bank_code"],
			"reference": reference,
		},
		Response: map[string]string{
			"status": "INITIATED",
		},
	}
	if success {
		result.Response["transfer_id"] = responseID
	} else {
		result.Response["status"] = "FAILED"
		result.ErrorCode = "TRANSFER_FAILED"
		result.ErrorMessage = "Bank transfer could not be initiated"
	}
	return result, nil
}

type MockMobileMoneyProvider struct{}

func (MockMobileMoneyProvider) Name() string { return "mock_momo" }

func (MockMobileMoneyProvider) ProcessPayment(ctx context.Context, amount decimal.Decimal, currency string, details map[string]string, reference string) (Result, error) {
	requestID := uuid.NewString()
	responseID := uuid.NewString()
	success := rand.Float64() < 0.85

	result := Result{
		Success:    success,
		RequestID:  requestID,
		ResponseID: responseID,
		Request: map[string]string{
			"amount":    amount.StringFixed(2),
			"currency":  currency,
			"phone":     maskSuffix(details["phone_number"], 4),
			"provider":  details["provider"],
			"reference": reference,
		},
		Response: map[string]string{
			"status": "SUCCESS",
		},
	}
	if success {
		result.Response["transaction_id"] = responseID
	} else {
		codes := []string{"INSUFFICIENT_BALANCE", "INVALID_NUMBER", "SERVICE_UNAVAILABLE"}
		result.Response["status"] = "FAILED"
		result.ErrorCode = codes[rand.Intn(len(codes))]
		result.ErrorMessage = "Mobile money error: " + result.ErrorCode
	}
	return result, nil
}

// MockCashProvider always succeeds: "success" only authorizes the cashier to
// count out money, the actual hand-over is a separate manual collection step.
type MockCashProvider struct{}

func (MockCashProvider) Name() string { return "mock_cash" }

func (MockCashProvider) ProcessPayment(ctx context.Context, amount decimal.Decimal, currency string, details map[string]string, reference string) (Result, error) {
	requestID := uuid.NewString()
	return Result{
		Success:    true,
		RequestID:  requestID,
		ResponseID: requestID,
		Request: map[string]string{
			"amount":    amount.StringFixed(2),
			"currency":  currency,
			"reference": reference,
		},
		Response: map[string]string{
			"status":          "READY_FOR_COLLECTION",
			"collection_code": strings.ToUpper(requestID[:8]),
		},
	}, nil
}

// MockRegistry maps refund methods to the mock providers
type MockRegistry struct{}

func NewMockRegistry() MockRegistry { return MockRegistry{} }

func (MockRegistry) ForMethod(method string) PaymentProvider {
	switch method {
	case model.RefundMethodBankTransfer:
		return MockBankTransferProvider{}
	case model.RefundMethodMobileMoney:
		return MockMobileMoneyProvider{}
	case model.RefundMethodCash:
		return MockCashProvider{}
	default:
		return MockCardProvider{}
	}
}

func maskPrefix(s string, keep int) string {
	if len(s) <= keep {
		return s + "****"
	}
	return s[:keep] + "****"
}

func maskSuffix(s string, keep int) string {
	if len(s) <= keep {
		return "****" + s
	}
	return "****" + s[len(s)-keep:]
}
