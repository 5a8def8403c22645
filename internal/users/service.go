// Package users handles registration and credential checks. Registering a
// user seeds the two default accounts (Cash and Bank) the ledger expects.
package users

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"moneyman/internal/core"
	"moneyman/internal/ledger"
	applog "moneyman/internal/log"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrMissingFields      = errors.New("username, email and password are required")
)

type Service struct {
	users    ledger.UserStore
	accounts ledger.AccountStore
}

func NewService(users ledger.UserStore, accounts ledger.AccountStore) *Service {
	return &Service{users: users, accounts: accounts}
}

// Register creates the user and seeds exactly two accounts, Cash and
// Bank Account, both with balance 0.
func (s *Service) Register(ctx context.Context, username, email, password string) (core.User, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	if username == "" || email == "" || password == "" {
		return core.User{}, ErrMissingFields
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return core.User{}, fmt.Errorf("hash password: %w", err)
	}

	u, err := s.users.CreateUser(ctx, core.User{
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
	})
	if err != nil {
		return core.User{}, err
	}

	defaults := []core.Account{
		{User: u.ID, Name: "Cash", Type: core.AccountCash},
		{User: u.ID, Name: "Bank Account", Type: core.AccountBank},
	}
	for _, acc := range defaults {
		if _, err := s.accounts.CreateAccount(ctx, acc); err != nil {
			return core.User{}, fmt.Errorf("seed default account %s: %w", acc.Name, err)
		}
	}

	slog.InfoContext(ctx, "User registered", applog.FieldUserID, u.ID, "username", u.Username)
	return u, nil
}

// Authenticate checks the password for the given email. It does not reveal
// whether the email or the password was wrong.
func (s *Service) Authenticate(ctx context.Context, email, password string) (core.User, error) {
	u, err := s.users.UserByEmail(ctx, strings.TrimSpace(email))
	if errors.Is(err, core.ErrUserNotFound) {
		return core.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return core.User{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return core.User{}, ErrInvalidCredentials
	}
	return u, nil
}
