package provider

import (
	"encoding/json"
	"log"
	"strconv"

	"backend/internal/model"
)

// Notifier is the fire-and-forget notification sink. Implementations must
// never let a delivery failure propagate back into the refund flow; a PAID
// refund stays PAID whether or not the traveler hears about it.
type Notifier interface {
	RefundPaid(refund *model.Refund, traveler *model.Traveler, formNumber string)
	ControlRequired(form *model.TaxFreeForm)
}

// Broadcaster is the outbound fan-out the hub exposes
type Broadcaster interface {
	BroadcastJSON(event string, payload any)
}

// HubNotifier pushes refund/control events to connected operator dashboards
type HubNotifier struct {
	hub Broadcaster
}

func NewHubNotifier(hub Broadcaster) *HubNotifier {
	return &HubNotifier{hub: hub}
}

func (n *HubNotifier) RefundPaid(refund *model.Refund, traveler *model.Traveler, formNumber string) {
	payload := map[string]string{
		"form_number":     formNumber,
		"amount":          refund.ExpectedPayout().StringFixed(2),
		"payout_currency": refund.PayoutCurrency,
		"method":          refund.Method,
		"traveler":        traveler.FullName(),
		"email":           traveler.Email,
		"phone":           traveler.Phone,
	}
	n.hub.BroadcastJSON("refund.paid", payload)
}

func (n *HubNotifier) ControlRequired(form *model.TaxFreeForm) {
	flags, _ := json.Marshal(form.RiskFlags)
	n.hub.BroadcastJSON("form.control_required", map[string]string{
		"form_number": form.FormNumber,
		"risk_score":  strconv.Itoa(form.RiskScore),
		"risk_flags":  string(flags),
	})
}

// LogNotifier is the fallback sink used when no hub is wired (tests, CLI runs)
type LogNotifier struct{}

func (LogNotifier) RefundPaid(refund *model.Refund, traveler *model.Traveler, formNumber string) {
	log.Printf("refund paid: form=%s amount=%s %s traveler=%s",
		formNumber, refund.ExpectedPayout().StringFixed(2), refund.PayoutCurrency, traveler.FullName())
}

func (LogNotifier) ControlRequired(form *model.TaxFreeForm) {
	log.Printf("control required: form=%s score=%d", form.FormNumber, form.RiskScore)
}
