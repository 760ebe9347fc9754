package account

import (
	"context"
	"errors"
	"regexp"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrNotFound           = errors.New("account not found")
	ErrNameTaken          = errors.New("account name already registered")
	ErrInvalidName        = errors.New("account name must be 1-12 characters of a-z, 1-5 or '.'")
	ErrWeakSecret         = errors.New("secret must be at least 8 characters")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

var namePattern = regexp.MustCompile(`^[a-z1-5.]{1,12}$`)

const minSecretLen = 8

// ValidName reports whether name is a well-formed account name.
func ValidName(name string) bool {
	return namePattern.MatchString(name)
}

// Service manages the account directory.
type Service struct {
	repo Repository
}

// NewService creates a new account service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Register creates an account and stores a hashed secret.
func (s *Service) Register(ctx context.Context, creds Credentials) (Account, error) {
	if !ValidName(creds.Name) {
		return Account{}, ErrInvalidName
	}
	if len(creds.Secret) < minSecretLen {
		return Account{}, ErrWeakSecret
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(creds.Secret), bcrypt.DefaultCost)
	if err != nil {
		return Account{}, err
	}

	acc := Account{
		ID:         uuid.New().String(),
		Name:       creds.Name,
		SecretHash: hash,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, acc); err != nil {
		return Account{}, err
	}
	return acc, nil
}

// Authenticate verifies credentials and records the login time.
func (s *Service) Authenticate(ctx context.Context, creds Credentials) (Account, error) {
	acc, err := s.repo.FindByName(ctx, creds.Name)
	if errors.Is(err, ErrNotFound) {
		return Account{}, ErrInvalidCredentials
	}
	if err != nil {
		return Account{}, err
	}
	if err := bcrypt.CompareHashAndPassword(acc.SecretHash, []byte(creds.Secret)); err != nil {
		return Account{}, ErrInvalidCredentials
	}

	now := time.Now().UTC()
	if err := s.repo.UpdateLastLogin(ctx, acc.Name, now); err != nil {
		return Account{}, err
	}
	acc.LastLogin = &now
	return acc, nil
}

// Get returns the account registered under name.
func (s *Service) Get(ctx context.Context, name string) (Account, error) {
	return s.repo.FindByName(ctx, name)
}

// Exists reports whether name is a registered account.
func (s *Service) Exists(ctx context.Context, name string) (bool, error) {
	if !ValidName(name) {
		return false, nil
	}
	_, err := s.repo.FindByName(ctx, name)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
