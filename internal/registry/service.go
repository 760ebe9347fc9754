package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/yotta-io/tokenledger/internal/notification"
	"github.com/yotta-io/tokenledger/internal/token"
)

var (
	ErrNotFound     = errors.New("registry record not found")
	ErrUnauthorized = errors.New("only the registry account may grant permissions")
	ErrPendingGrant = errors.New("issuer already holds an unused permission")
)

// Service sells currency-creation permissions and keeps the catalog of
// registered tokens. It answers the ledger's quota lookups and consumes its
// creation and supply notifications.
type Service struct {
	repo    Repository
	account string
	logger  *slog.Logger
	clock   func() time.Time
}

// NewService builds a registry operated by account.
func NewService(repo Repository, account string, logger *slog.Logger) *Service {
	return &Service{repo: repo, account: account, logger: logger, clock: time.Now}
}

// Account returns the account the registry operates under.
func (s *Service) Account() string { return s.account }

// Grant gives issuer one currency-creation permission and reserves the token
// number the next currency will carry.
func (s *Service) Grant(ctx context.Context, actor, issuer string) (Record, error) {
	if actor != s.account {
		return Record{}, ErrUnauthorized
	}
	if issuer == "" {
		return Record{}, fmt.Errorf("issuer is required")
	}
	rec, err := s.repo.Record(ctx, issuer)
	switch {
	case errors.Is(err, ErrNotFound):
		rec = Record{Issuer: issuer}
	case err != nil:
		return Record{}, err
	case rec.Pending():
		return Record{}, ErrPendingGrant
	}

	serial, err := s.repo.NextSerial(ctx)
	if err != nil {
		return Record{}, fmt.Errorf("allocate token number: %w", err)
	}
	rec.TotalCount = rec.RegCount + 1
	rec.NextTokenNo = serial
	rec.UpdatedAt = s.clock().UTC()
	if err := s.repo.SaveRecord(ctx, rec); err != nil {
		return Record{}, err
	}
	s.logger.Info("permission granted",
		slog.String("issuer", issuer),
		slog.Uint64("token_no", uint64(serial)),
	)
	return rec, nil
}

// Permission implements token.QuotaRegistry. Lookups against another
// registry account, and issuers without a record, yield a zero permission.
func (s *Service) Permission(ctx context.Context, registry, issuer string) (token.Permission, error) {
	if registry != s.account {
		return token.Permission{}, nil
	}
	rec, err := s.repo.Record(ctx, issuer)
	if errors.Is(err, ErrNotFound) {
		return token.Permission{}, nil
	}
	if err != nil {
		return token.Permission{}, err
	}
	return token.Permission{
		Issuer:      rec.Issuer,
		Used:        rec.RegCount,
		Total:       rec.TotalCount,
		NextTokenNo: rec.NextTokenNo,
	}, nil
}

// Record returns the permission record of issuer.
func (s *Service) Record(ctx context.Context, issuer string) (Record, error) {
	return s.repo.Record(ctx, issuer)
}

// Token returns the registered metadata of a currency.
func (s *Service) Token(ctx context.Context, code string) (TokenInfo, error) {
	return s.repo.Token(ctx, code)
}

// Send implements notification.Notifier. Messages addressed elsewhere are ignored.
func (s *Service) Send(ctx context.Context, msg notification.Message) error {
	if msg.Destination != s.account {
		return nil
	}
	now := s.clock().UTC()
	ev := msg.Token

	switch msg.Kind {
	case notification.KindCurrencyCreated:
		rec, err := s.repo.Record(ctx, ev.Issuer)
		if err != nil {
			return fmt.Errorf("register %s: %w", ev.Code, err)
		}
		rec.RegCount++
		rec.UpdatedAt = now
		if err := s.repo.SaveRecord(ctx, rec); err != nil {
			return err
		}
		info := TokenInfo{
			TokenNo:      ev.TokenNo,
			Code:         ev.Code,
			Precision:    ev.Precision,
			Name:         ev.Name,
			Memo:         ev.Memo,
			Issuer:       ev.Issuer,
			Supply:       ev.Supply,
			MaxSupply:    ev.MaxSupply,
			Registry:     s.account,
			RegisteredAt: now,
			UpdatedAt:    now,
		}
		if err := s.repo.SaveToken(ctx, info); err != nil {
			return err
		}
		s.logger.Info("token registered", slog.String("currency", ev.Code), slog.String("issuer", ev.Issuer))
		return nil

	case notification.KindSupplyUpdated:
		info, err := s.repo.Token(ctx, ev.Code)
		if err != nil {
			return fmt.Errorf("update supply of %s: %w", ev.Code, err)
		}
		info.Supply = ev.Supply
		info.MaxSupply = ev.MaxSupply
		info.UpdatedAt = now
		return s.repo.SaveToken(ctx, info)

	default:
		return nil
	}
}
