// Package worker runs the periodic background jobs of the refund pipeline:
// the failed-refund retry sweep and the form expiry sweep.
package worker

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"backend/internal/model"
	"backend/internal/repository"
	"backend/internal/service"
)

// RetrySweeper periodically re-drives failed refunds whose backoff has
// elapsed and expires overdue forms.
type RetrySweeper struct {
	refundRepo repository.RefundRepository
	auditRepo  repository.AuditRepository
	refunds    service.RefundService
	forms      service.TaxFreeService
	interval   time.Duration
}

func NewRetrySweeper(
	refundRepo repository.RefundRepository,
	auditRepo repository.AuditRepository,
	refunds service.RefundService,
	forms service.TaxFreeService,
	interval time.Duration,
) *RetrySweeper {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &RetrySweeper{
		refundRepo: refundRepo,
		auditRepo:  auditRepo,
		refunds:    refunds,
		forms:      forms,
		interval:   interval,
	}
}

// Run blocks until the context is cancelled, sweeping on every tick
func (w *RetrySweeper) Run(ctx context.Context) {
	log.Printf("retry sweeper started (interval %s)", w.interval)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("retry sweeper stopped")
			return
		case <-ticker.C:
			w.SweepOnce(ctx)
		}
	}
}

// SweepOnce processes everything currently due. One broken refund never
// blocks the rest of the batch: failures are audited and the sweep moves on.
func (w *RetrySweeper) SweepOnce(ctx context.Context) {
	due, err := w.refundRepo.FindDueForRetry(ctx, time.Now())
	if err != nil {
		log.Printf("retry sweep: failed to list due refunds: %v", err)
	} else {
		for _, refund := range due {
			if _, err := w.refunds.ProcessRefund(ctx, refund.ID.String(), ""); err != nil {
				log.Printf("retry sweep: refund %s: %v", refund.ID, err)
				w.auditRetryError(ctx, refund.ID.String(), err)
			}
		}
	}

	expired, err := w.forms.ExpireOverdueForms(ctx)
	if err != nil {
		log.Printf("retry sweep: form expiry failed: %v", err)
	} else if expired > 0 {
		log.Printf("retry sweep: expired %d overdue forms", expired)
	}
}

func (w *RetrySweeper) auditRetryError(ctx context.Context, refundID string, cause error) {
	details, _ := json.Marshal(map[string]string{"error": cause.Error()})
	entry := &model.AuditLog{
		Action:   model.ActionRefundRetryError,
		EntityID: refundID,
		Details:  string(details),
	}
	if err := w.auditRepo.Log(ctx, entry); err != nil {
		log.Printf("retry sweep: failed to audit retry error for %s: %v", refundID, err)
	}
}
