// Package provider holds the external collaborator contracts of the refund
// settlement flow: payment providers and the notification sink.
package provider

import (
	"context"

	"github.com/shopspring/decimal"
)

// Result is the provider-agnostic outcome of one payment call. The engine
// assumes nothing about a provider's error taxonomy beyond the Success flag
// and the opaque code/message strings.
type Result struct {
	Success      bool
	RequestID    string
	ResponseID   string
	Request      map[string]string // sanitized: no raw card/account numbers
	Response     map[string]string
	ErrorCode    string
	ErrorMessage string
}

// PaymentProvider processes one payout on behalf of a refund method
type PaymentProvider interface {
	Name() string
	ProcessPayment(ctx context.Context, amount decimal.Decimal, currency string, paymentDetails map[string]string, reference string) (Result, error)
}

// Registry resolves the provider for a refund method
type Registry interface {
	ForMethod(method string) PaymentProvider
}
