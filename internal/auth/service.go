// Package auth registers worker accounts and issues the bearer tokens that
// authenticate wallet routes.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/gigwallet/backend/internal/models"
	"github.com/gigwallet/backend/internal/store"
)

var (
	// ErrDuplicateEmail is returned when registering with an email that already exists.
	ErrDuplicateEmail     = errors.New("auth: email already registered")
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrInvalidInput       = errors.New("auth: invalid input")
	ErrInvalidToken       = errors.New("auth: invalid token")
)

const (
	tokenTTL          = 24 * time.Hour
	minPasswordLength = 8
)

type Service struct {
	repo   Repository
	secret []byte
	now    func() time.Time
}

func NewService(repo Repository, secret string) *Service {
	return &Service{repo: repo, secret: []byte(secret), now: time.Now}
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := mail.ParseAddress(email); err != nil || email == "" {
		return "", fmt.Errorf("%w: invalid email", ErrInvalidInput)
	}
	return email, nil
}

// Register opens a wallet account for the email and returns it with a token.
func (s *Service) Register(ctx context.Context, email, password string) (*models.Account, string, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, "", err
	}
	if len(password) < minPasswordLength {
		return nil, "", fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, minPasswordLength)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", err
	}
	now := s.now().UTC()
	acc := &models.Account{
		ID:               uuid.New(),
		SubscriptionTier: models.TierFree,
		Version:          1,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	cred := &models.Credential{AccountID: acc.ID, Email: email, PasswordHash: string(hash), CreatedAt: now}
	if err := s.repo.Create(ctx, acc, cred); err != nil {
		if errors.Is(err, store.ErrUniqueViolation) {
			return nil, "", ErrDuplicateEmail
		}
		return nil, "", err
	}
	token, err := s.issueToken(acc.ID)
	if err != nil {
		return nil, "", err
	}
	return acc, token, nil
}

func (s *Service) Login(ctx context.Context, email, password string) (uuid.UUID, string, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return uuid.Nil, "", ErrInvalidCredentials
	}
	cred, err := s.repo.GetByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return uuid.Nil, "", ErrInvalidCredentials
	}
	if err != nil {
		return uuid.Nil, "", err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(cred.PasswordHash), []byte(password)); err != nil {
		return uuid.Nil, "", ErrInvalidCredentials
	}
	token, err := s.issueToken(cred.AccountID)
	if err != nil {
		return uuid.Nil, "", err
	}
	return cred.AccountID, token, nil
}

func (s *Service) issueToken(accountID uuid.UUID) (string, error) {
	now := s.now()
	c := jwt.RegisteredClaims{
		Subject:   accountID.String(),
		ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
		IssuedAt:  jwt.NewNumericDate(now),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	return tok.SignedString(s.secret)
}

// ValidateToken returns the account id the token was issued to.
func (s *Service) ValidateToken(ctx context.Context, token string) (uuid.UUID, error) {
	tok, err := jwt.ParseWithClaims(token, &jwt.RegisteredClaims{}, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	c, ok := tok.Claims.(*jwt.RegisteredClaims)
	if !ok || !tok.Valid {
		return uuid.Nil, ErrInvalidToken
	}
	id, err := uuid.Parse(c.Subject)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return id, nil
}
