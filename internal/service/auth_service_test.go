package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GTDGit/menu_api/internal/models"
	"github.com/GTDGit/menu_api/internal/utils"
)

func newAuthFixture(t *testing.T) (*fixture, *AuthService) {
	t.Helper()
	utils.ConfigureJWT("test-secret", time.Hour)
	f := newFixture(t, 9)
	stores := f.db.Stores()
	return f, NewAuthService(stores.Customers, stores.Sessions, f.carts)
}

func TestAuthService_RegisterThenLogin(t *testing.T) {
	f, auth := newAuthFixture(t)
	ctx := context.Background()

	reg, err := auth.Register(ctx, &RegisterRequest{
		Name:     " Ada Lovelace ",
		Email:    "Ada@Example.com",
		Password: "analytical",
	}, "")
	require.NoError(t, err)

	assert.Equal(t, "Ada Lovelace", reg.Customer.Name)
	assert.Equal(t, "ada@example.com", reg.Customer.Email)
	assert.Equal(t, models.RoleCustomer, reg.Customer.Role)
	assert.NotEqual(t, "analytical", reg.Customer.PasswordHash)

	claims, err := utils.ValidateJWT(reg.Token)
	require.NoError(t, err)
	assert.Equal(t, reg.Customer.ID, claims.UserID)
	assert.Equal(t, models.RoleCustomer, claims.Role)

	_, err = f.db.Stores().Sessions.GetByUser(ctx, reg.Customer.ID)
	assert.NoError(t, err, "registration opens a shopping session")

	login, err := auth.Login(ctx, &LoginRequest{Email: "ADA@example.com ", Password: "analytical"}, "")
	require.NoError(t, err)
	assert.Equal(t, reg.Customer.ID, login.Customer.ID)
}

func TestAuthService_LoginFailures(t *testing.T) {
	_, auth := newAuthFixture(t)
	ctx := context.Background()

	_, err := auth.Register(ctx, &RegisterRequest{Name: "Ada", Email: "ada@example.com", Password: "analytical"}, "")
	require.NoError(t, err)

	_, err = auth.Login(ctx, &LoginRequest{Email: "ada@example.com", Password: "difference"}, "")
	assert.ErrorIs(t, err, utils.ErrInvalidCredentials)

	_, err = auth.Login(ctx, &LoginRequest{Email: "nobody@example.com", Password: "analytical"}, "")
	assert.ErrorIs(t, err, utils.ErrInvalidCredentials)
}

func TestAuthService_DuplicateEmail(t *testing.T) {
	_, auth := newAuthFixture(t)
	ctx := context.Background()

	_, err := auth.Register(ctx, &RegisterRequest{Name: "Ada", Email: "ada@example.com", Password: "analytical"}, "")
	require.NoError(t, err)

	_, err = auth.Register(ctx, &RegisterRequest{Name: "Ada 2", Email: "ADA@example.com", Password: "analytical"}, "")
	assert.ErrorIs(t, err, utils.ErrEmailTaken)
}

func TestAuthService_LoginMigratesAnonymousCart(t *testing.T) {
	f, auth := newAuthFixture(t)
	f.db.PutProduct(product(1, "Latte", "3.00"), 10)
	ctx := context.Background()

	_, err := f.carts.Add(ctx, CartOwner{CartKey: "cart_abc"}, 1, 2)
	require.NoError(t, err)

	reg, err := auth.Register(ctx, &RegisterRequest{Name: "Ada", Email: "ada@example.com", Password: "analytical"}, "cart_abc")
	require.NoError(t, err)

	cart, err := f.carts.Get(ctx, CartOwner{UserID: reg.Customer.ID})
	require.NoError(t, err)
	assert.Equal(t, map[int]int{1: 2}, quantities(cart))
}
