package service

import (
	"context"
	"testing"

	"backend/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMerchantLifecycle(t *testing.T) {
	db := setupTestDB(t)
	svc := NewMerchantService(db)
	ctx := context.Background()

	registered, err := svc.RegisterMerchant(ctx, RegisterMerchantRequest{
		Name:  "Kin Electronics",
		TaxID: "CD-12345678",
		Email: "contact@kinelectronics.cd",
		Outlets: []RegisterOutletRequest{
			{Name: "Gombe Store", City: "Kinshasa"},
		},
	}, "")
	require.NoError(t, err)

	t.Run("registration starts pending with outlets", func(t *testing.T) {
		assert.Equal(t, model.MerchantPending, registered.Status)
		require.Len(t, registered.Outlets, 1)
		assert.True(t, registered.Outlets[0].IsActive)
	})

	t.Run("tax id is unique", func(t *testing.T) {
		_, err := svc.RegisterMerchant(ctx, RegisterMerchantRequest{
			Name:  "Clone Shop",
			TaxID: "CD-12345678",
		}, "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "already exists")
	})

	t.Run("approval", func(t *testing.T) {
		approved, err := svc.ApproveMerchant(ctx, registered.ID, "")
		require.NoError(t, err)
		assert.Equal(t, model.MerchantApproved, approved.Status)
		assert.NotNil(t, approved.ApprovedAt)

		_, err = svc.ApproveMerchant(ctx, registered.ID, "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "already approved")
	})

	t.Run("suspension requires an approved merchant", func(t *testing.T) {
		suspended, err := svc.SuspendMerchant(ctx, registered.ID, MerchantStatusRequest{Reason: "missing paperwork"}, "")
		require.NoError(t, err)
		assert.Equal(t, model.MerchantSuspended, suspended.Status)
		assert.Equal(t, "missing paperwork", suspended.StatusReason)

		_, err = svc.SuspendMerchant(ctx, registered.ID, MerchantStatusRequest{Reason: "again"}, "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "only an approved merchant")
	})

	t.Run("add outlet", func(t *testing.T) {
		outlet, err := svc.AddOutlet(ctx, registered.ID, RegisterOutletRequest{
			Name: "Limete Annex",
			City: "Kinshasa",
		})
		require.NoError(t, err)
		assert.NotEmpty(t, outlet.ID)

		fetched, err := svc.GetMerchant(ctx, registered.ID)
		require.NoError(t, err)
		assert.Len(t, fetched.Outlets, 2)
	})

	t.Run("status filter on listing", func(t *testing.T) {
		_, err := svc.RegisterMerchant(ctx, RegisterMerchantRequest{
			Name:  "Fresh Trader",
			TaxID: "CD-87654321",
		}, "")
		require.NoError(t, err)

		pending, total, err := svc.GetMerchants(ctx, model.MerchantPending, 1, 10)
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		require.Len(t, pending, 1)
		assert.Equal(t, "Fresh Trader", pending[0].Name)
	})
}
