package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yotta-io/tokenledger/internal/logging"
	"github.com/yotta-io/tokenledger/internal/notification"
	"github.com/yotta-io/tokenledger/internal/token"
)

type accounts map[string]bool

func (a accounts) Exists(_ context.Context, account string) (bool, error) { return a[account], nil }

func TestService_Grant(t *testing.T) {
	ctx := context.Background()
	svc := NewService(NewMemoryRepository(), "yrcregistry", logging.Discard())

	_, err := svc.Grant(ctx, "alice", "issuer")
	require.ErrorIs(t, err, ErrUnauthorized)

	rec, err := svc.Grant(ctx, "yrcregistry", "issuer")
	require.NoError(t, err)
	require.Equal(t, uint32(0), rec.RegCount)
	require.Equal(t, uint32(1), rec.TotalCount)
	require.Equal(t, uint32(1), rec.NextTokenNo)
	require.True(t, rec.Pending())

	_, err = svc.Grant(ctx, "yrcregistry", "issuer")
	require.ErrorIs(t, err, ErrPendingGrant)

	perm, err := svc.Permission(ctx, "yrcregistry", "issuer")
	require.NoError(t, err)
	require.Equal(t, token.Permission{Issuer: "issuer", Used: 0, Total: 1, NextTokenNo: 1}, perm)

	perm, err = svc.Permission(ctx, "otherregistry", "issuer")
	require.NoError(t, err)
	require.Zero(t, perm)

	perm, err = svc.Permission(ctx, "yrcregistry", "nobody")
	require.NoError(t, err)
	require.Zero(t, perm)
}

func TestService_QuotaFlowWithLedger(t *testing.T) {
	ctx := context.Background()
	svc := NewService(NewMemoryRepository(), "yrcregistry", logging.Discard())
	dir := accounts{"tokenowner": true, "yrcregistry": true, "issuer": true}

	ledger, err := token.NewLedger(token.NewMemoryStore(), dir, svc,
		token.WithOwner("tokenowner"),
		token.WithNotifier(notification.Fanout{svc}),
	)
	require.NoError(t, err)
	require.NoError(t, ledger.SetRegistry(ctx, "tokenowner", "yrcregistry"))

	create := func(code string) (token.Currency, error) {
		return ledger.Create(ctx, token.CreateInput{
			Actor:     "issuer",
			Issuer:    "issuer",
			MaxSupply: token.NewAsset(1_000, code, 2),
			Name:      code + " token",
		})
	}

	_, err = create("AAA")
	require.ErrorIs(t, err, token.ErrQuotaExhausted)

	_, err = svc.Grant(ctx, "yrcregistry", "issuer")
	require.NoError(t, err)
	cur, err := create("AAA")
	require.NoError(t, err)
	require.Equal(t, uint32(1), cur.TokenNo)

	rec, err := svc.Record(ctx, "issuer")
	require.NoError(t, err)
	require.Equal(t, uint32(1), rec.RegCount)
	require.False(t, rec.Pending())

	_, err = create("BBB")
	require.ErrorIs(t, err, token.ErrQuotaExhausted)

	_, err = svc.Grant(ctx, "yrcregistry", "issuer")
	require.NoError(t, err)
	cur, err = create("BBB")
	require.NoError(t, err)
	require.Equal(t, uint32(2), cur.TokenNo)

	_, err = ledger.Issue(ctx, token.IssueInput{Actor: "issuer", To: "issuer", Quantity: token.NewAsset(250, "BBB", 2)})
	require.NoError(t, err)

	info, err := svc.Token(ctx, "BBB")
	require.NoError(t, err)
	require.Equal(t, "BBB token", info.Name)
	require.Equal(t, int64(250), info.Supply)
	require.Equal(t, int64(1_000), info.MaxSupply)
	require.Equal(t, uint32(2), info.TokenNo)
}

func TestService_SendIgnoresOtherDestinations(t *testing.T) {
	ctx := context.Background()
	svc := NewService(NewMemoryRepository(), "yrcregistry", logging.Discard())

	require.NoError(t, svc.Send(ctx, notification.Message{
		Kind:        notification.KindCurrencyCreated,
		Destination: "elsewhere",
		Token:       notification.TokenEvent{Code: "AAA", Issuer: "issuer"},
	}))
	_, err := svc.Token(ctx, "AAA")
	require.ErrorIs(t, err, ErrNotFound)

	err = svc.Send(ctx, notification.Message{
		Kind:        notification.KindSupplyUpdated,
		Destination: "yrcregistry",
		Token:       notification.TokenEvent{Code: "AAA"},
	})
	require.ErrorIs(t, err, ErrNotFound)
}
