package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/GTDGit/menu_api/internal/models"
	"github.com/GTDGit/menu_api/internal/repository"
	"github.com/GTDGit/menu_api/internal/utils"
)

// RegisterRequest is the sign-up body.
type RegisterRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	Address  string `json:"address"`
	Phone    string `json:"phone"`
}

// LoginRequest is the sign-in body.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// AuthResult is returned on successful register or login.
type AuthResult struct {
	Token    string           `json:"token"`
	Customer *models.Customer `json:"user"`
}

// AuthService registers and authenticates storefront customers.
type AuthService struct {
	customers repository.CustomerStore
	sessions  repository.SessionStore
	carts     *CartService
}

// NewAuthService constructs an AuthService. carts may be nil, in which case
// anonymous carts are not migrated on login.
func NewAuthService(customers repository.CustomerStore, sessions repository.SessionStore, carts *CartService) *AuthService {
	return &AuthService{customers: customers, sessions: sessions, carts: carts}
}

// Register creates a customer account and signs it in.
func (s *AuthService) Register(ctx context.Context, req *RegisterRequest, cartKey string) (*AuthResult, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	c := &models.Customer{
		Name:         strings.TrimSpace(req.Name),
		Email:        normalizeEmail(req.Email),
		PasswordHash: string(hash),
		Address:      req.Address,
		Phone:        req.Phone,
		Role:         models.RoleCustomer,
	}
	if err := s.customers.Create(ctx, c); err != nil {
		if errors.Is(err, utils.ErrEmailTaken) {
			return nil, err
		}
		return nil, fmt.Errorf("create customer: %w", err)
	}
	log.Info().Int("user_id", c.ID).Msg("Customer registered")

	return s.signIn(ctx, c, cartKey)
}

// Login verifies credentials and issues a token.
func (s *AuthService) Login(ctx context.Context, req *LoginRequest, cartKey string) (*AuthResult, error) {
	email := normalizeEmail(req.Email)
	log.Debug().Str("email", email).Msg("Login attempt")

	c, err := s.customers.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, utils.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("get customer: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(c.PasswordHash), []byte(req.Password)); err != nil {
		log.Warn().Str("email", email).Msg("Password verification failed")
		return nil, utils.ErrInvalidCredentials
	}

	log.Info().Int("user_id", c.ID).Msg("Login successful")
	return s.signIn(ctx, c, cartKey)
}

// signIn makes sure the customer has a session, moves any anonymous cart
// into it and returns a token.
func (s *AuthService) signIn(ctx context.Context, c *models.Customer, cartKey string) (*AuthResult, error) {
	if _, err := s.sessions.EnsureForUser(ctx, c.ID); err != nil {
		return nil, fmt.Errorf("ensure session: %w", err)
	}
	if s.carts != nil && cartKey != "" {
		if err := s.carts.MigrateAnonymous(ctx, cartKey, c.ID); err != nil {
			log.Warn().Err(err).Int("user_id", c.ID).Msg("Cart migration failed")
		}
	}

	token, err := utils.GenerateJWT(c.ID, c.Email, c.Role)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Token: token, Customer: c}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
