package service

import (
	"context"
	"testing"

	"backend/internal/model"
	"backend/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newUserService(t *testing.T) UserService {
	t.Helper()
	db := setupTestDB(t)
	return NewUserService(repository.NewUserRepository(db))
}

func TestCreateUser(t *testing.T) {
	svc := newUserService(t)
	ctx := context.Background()

	t.Run("creates an operator", func(t *testing.T) {
		resp, err := svc.CreateUser(ctx, CreateUserRequest{
			Username: "jmbala",
			Email:    "jmbala@example.com",
			Phone:    "+243810000001",
			Password: "s3cretpass",
			Role:     model.RoleOperator,
		})
		require.NoError(t, err)
		assert.Equal(t, model.RoleOperator, resp.Role)
		assert.NotEqual(t, "", resp.ID.String())
	})

	t.Run("rejects unknown role", func(t *testing.T) {
		_, err := svc.CreateUser(ctx, CreateUserRequest{
			Username: "ghost",
			Email:    "ghost@example.com",
			Phone:    "+243810000002",
			Password: "s3cretpass",
			Role:     "superuser",
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid role")
	})

	t.Run("merchant users require a merchant id", func(t *testing.T) {
		_, err := svc.CreateUser(ctx, CreateUserRequest{
			Username: "shopowner",
			Email:    "shop@example.com",
			Phone:    "+243810000003",
			Password: "s3cretpass",
			Role:     model.RoleMerchant,
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "merchant_id")
	})

	t.Run("duplicate email is refused", func(t *testing.T) {
		_, err := svc.CreateUser(ctx, CreateUserRequest{
			Username: "jmbala2",
			Email:    "jmbala@example.com",
			Phone:    "+243810000004",
			Password: "s3cretpass",
			Role:     model.RoleAuditor,
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "email already exists")
	})
}

func TestLoginAndRefresh(t *testing.T) {
	svc := newUserService(t)
	ctx := context.Background()

	_, err := svc.CreateUser(ctx, CreateUserRequest{
		Username: "customs1",
		Email:    "customs1@example.com",
		Phone:    "+243810000010",
		Password: "s3cretpass",
		Role:     model.RoleCustoms,
	})
	require.NoError(t, err)

	t.Run("login issues both tokens", func(t *testing.T) {
		tokens, err := svc.Login(ctx, LoginUserRequest{Email: "customs1@example.com", Password: "s3cretpass"})
		require.NoError(t, err)
		assert.NotEmpty(t, tokens.Token)
		assert.Len(t, tokens.RefreshToken, 64)
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := svc.Login(ctx, LoginUserRequest{Email: "customs1@example.com", Password: "wrong"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid email or password")
	})

	t.Run("refresh tokens are single-use", func(t *testing.T) {
		tokens, err := svc.Login(ctx, LoginUserRequest{Email: "customs1@example.com", Password: "s3cretpass"})
		require.NoError(t, err)

		rotated, err := svc.RefreshToken(ctx, RefreshTokenRequest{RefreshToken: tokens.RefreshToken})
		require.NoError(t, err)
		assert.NotEqual(t, tokens.RefreshToken, rotated.RefreshToken)

		// The consumed token is gone
		_, err = svc.RefreshToken(ctx, RefreshTokenRequest{RefreshToken: tokens.RefreshToken})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid refresh token")
	})

	t.Run("unknown refresh token", func(t *testing.T) {
		_, err := svc.RefreshToken(ctx, RefreshTokenRequest{RefreshToken: "deadbeef"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid refresh token")
	})
}
