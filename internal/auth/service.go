package auth

import (
    "context"
    "errors"
    "time"

    "github.com/yotta-io/tokenledger/internal/account"
    "github.com/yotta-io/tokenledger/internal/config"
)

var ErrTokenInvalidated = errors.New("token invalidated")

// AccountFinder loads accounts for token verification.
type AccountFinder interface {
    Get(ctx context.Context, name string) (account.Account, error)
}

// Service issues and verifies access tokens naming the acting account.
type Service struct {
    cfg      config.Config
    accounts AccountFinder
    clock    func() time.Time
}

func NewService(cfg config.Config, accounts AccountFinder) *Service {
    return &Service{cfg: cfg, accounts: accounts, clock: time.Now}
}

// Token is a signed access token.
type Token struct {
    AccessToken string `json:"access_token"`
    ExpiresIn   int64  `json:"expires_in"`
}

// Login issues an access token for an authenticated account.
func (s *Service) Login(acc account.Account) (Token, error) {
    now := s.clock()
    claims := map[string]any{
        "sub": acc.Name,
        "ver": acc.TokenVersion,
        "iat": now.Unix(),
        "exp": now.Add(s.cfg.AccessTokenTTL).Unix(),
    }
    signed, err := SignHS256(claims, []byte(s.cfg.JWTSecret))
    if err != nil {
        return Token{}, err
    }
    return Token{AccessToken: signed, ExpiresIn: int64(s.cfg.AccessTokenTTL.Seconds())}, nil
}

// Verify checks the token and returns the account it was issued to.
func (s *Service) Verify(ctx context.Context, token string) (string, error) {
    claims, err := ParseAndVerifyHS256(token, []byte(s.cfg.JWTSecret), s.clock())
    if err != nil {
        return "", err
    }
    sub, _ := claims["sub"].(string)
    verFloat, _ := claims["ver"].(float64)

    acc, err := s.accounts.Get(ctx, sub)
    if err != nil || acc.TokenVersion != int(verFloat) {
        return "", ErrTokenInvalidated
    }
    return acc.Name, nil
}
