package token

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/yotta-io/tokenledger/internal/notification"
)

var yta = Symbol{Code: "YTA", Precision: 4}

func q(amount int64) Asset { return Asset{Amount: amount, Symbol: yta} }

type fakeDirectory map[string]bool

func (d fakeDirectory) Exists(_ context.Context, account string) (bool, error) {
	return d[account], nil
}

type fakeQuotas map[string]Permission

func (q fakeQuotas) Permission(_ context.Context, _ string, issuer string) (Permission, error) {
	return q[issuer], nil
}

type recordingNotifier struct {
	mu       sync.Mutex
	messages []notification.Message
}

func (n *recordingNotifier) Send(_ context.Context, m notification.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, m)
	return nil
}

type fixture struct {
	ctx      context.Context
	ledger   *Ledger
	store    *MemoryStore
	notifier *recordingNotifier
	now      time.Time
}

func (f *fixture) at(unix int64) { f.now = time.Unix(unix, 0) }

func (f *fixture) position(t *testing.T, account string) Position {
	t.Helper()
	p, err := f.ledger.Position(f.ctx, account, yta.Code)
	require.NoError(t, err)
	return p
}

func (f *fixture) balance(t *testing.T, account string) int64 {
	t.Helper()
	b, err := f.ledger.Balance(f.ctx, account, yta.Code)
	require.NoError(t, err)
	return b.Amount
}

// newFixture creates YTA issued by "issuer" with "pool" registered as a pool,
// 100000 units at the pool and 10000 at alice.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		ctx:      context.Background(),
		store:    NewMemoryStore(),
		notifier: &recordingNotifier{},
		now:      time.Unix(500, 0),
	}
	accounts := fakeDirectory{
		"tokenowner": true, "yrcregistry": true, "issuer": true,
		"alice": true, "bob": true, "carol": true, "pool": true, "manager": true,
	}
	quotas := fakeQuotas{"issuer": {Issuer: "issuer", Used: 0, Total: 1, NextTokenNo: 7}}
	l, err := NewLedger(f.store, accounts, quotas,
		WithOwner("tokenowner"),
		WithNotifier(f.notifier),
		WithClock(func() time.Time { return f.now }),
	)
	require.NoError(t, err)
	f.ledger = l

	require.NoError(t, l.SetRegistry(f.ctx, "tokenowner", "yrcregistry"))
	_, err = l.Create(f.ctx, CreateInput{Actor: "issuer", Issuer: "issuer", MaxSupply: q(1_000_000), Name: "yotta", Memo: "genesis"})
	require.NoError(t, err)
	_, err = l.Issue(f.ctx, IssueInput{Actor: "issuer", To: "pool", Quantity: q(100_000)})
	require.NoError(t, err)
	_, err = l.Issue(f.ctx, IssueInput{Actor: "issuer", To: "alice", Quantity: q(10_000)})
	require.NoError(t, err)
	_, err = l.AddPool(f.ctx, PoolInput{Actor: "issuer", Symbol: yta, Account: "pool", Name: "team"})
	require.NoError(t, err)
	return f
}

func requireKind(t *testing.T, err error, kind error) {
	t.Helper()
	require.Error(t, err)
	require.True(t, errors.Is(err, kind), "expected %v, got %v", kind, err)
}

func TestNewLedger_RequiresCollaborators(t *testing.T) {
	_, err := NewLedger(nil, fakeDirectory{}, fakeQuotas{})
	require.Error(t, err)
	_, err = NewLedger(NewMemoryStore(), nil, fakeQuotas{})
	require.Error(t, err)
	_, err = NewLedger(NewMemoryStore(), fakeDirectory{}, nil)
	require.Error(t, err)
}

func TestLedger_CreateAndIssue(t *testing.T) {
	f := newFixture(t)

	cur, err := f.ledger.Currency(f.ctx, "YTA")
	require.NoError(t, err)
	require.Equal(t, int64(110_000), cur.Supply)
	require.Equal(t, int64(1_000_000), cur.MaxSupply)
	require.Equal(t, "issuer", cur.PoolSetter)
	require.Equal(t, "issuer", cur.Unlocker)
	require.Equal(t, uint32(7), cur.TokenNo)
	require.False(t, cur.ExTime.IsSet())

	require.Len(t, f.notifier.messages, 3)
	require.Equal(t, notification.KindCurrencyCreated, f.notifier.messages[0].Kind)
	require.Equal(t, "yrcregistry", f.notifier.messages[0].Destination)
	require.Equal(t, "yotta", f.notifier.messages[0].Token.Name)
	require.Equal(t, notification.KindSupplyUpdated, f.notifier.messages[2].Kind)
	require.Equal(t, int64(110_000), f.notifier.messages[2].Token.Supply)

	_, err = f.ledger.Create(f.ctx, CreateInput{Actor: "issuer", Issuer: "issuer", MaxSupply: q(5)})
	requireKind(t, err, ErrCurrencyAlreadyExists)

	_, err = f.ledger.Create(f.ctx, CreateInput{Actor: "alice", Issuer: "alice", MaxSupply: NewAsset(5, "ALC", 0)})
	requireKind(t, err, ErrQuotaExhausted)

	_, err = f.ledger.Create(f.ctx, CreateInput{Actor: "alice", Issuer: "issuer", MaxSupply: NewAsset(5, "ALC", 0)})
	requireKind(t, err, ErrUnauthorized)

	_, err = f.ledger.Create(f.ctx, CreateInput{Actor: "issuer", Issuer: "issuer", MaxSupply: NewAsset(5, "bad", 0)})
	requireKind(t, err, ErrInvalidCurrencyCode)

	_, err = f.ledger.Create(f.ctx, CreateInput{Actor: "issuer", Issuer: "issuer", MaxSupply: NewAsset(0, "ZERO", 0)})
	requireKind(t, err, ErrInvalidAmount)

	_, err = f.ledger.Issue(f.ctx, IssueInput{Actor: "issuer", To: "alice", Quantity: q(890_001)})
	requireKind(t, err, ErrSupplyOverflow)

	_, err = f.ledger.Issue(f.ctx, IssueInput{Actor: "alice", To: "alice", Quantity: q(1)})
	requireKind(t, err, ErrUnauthorized)

	_, err = f.ledger.Issue(f.ctx, IssueInput{Actor: "issuer", To: "ghost", Quantity: q(1)})
	requireKind(t, err, ErrUnknownAccount)

	r, err := f.ledger.Issue(f.ctx, IssueInput{Actor: "issuer", To: "alice", Quantity: q(890_000)})
	require.NoError(t, err)
	require.Equal(t, int64(900_000), r.ToBalance)
	require.NotEmpty(t, r.TransactionID)
}

func TestLedger_RegistryPointer(t *testing.T) {
	ctx := context.Background()
	accounts := fakeDirectory{"tokenowner": true, "issuer": true, "yrcregistry": true}
	quotas := fakeQuotas{"issuer": {Total: 1}}
	l, err := NewLedger(NewMemoryStore(), accounts, quotas, WithOwner("tokenowner"))
	require.NoError(t, err)

	_, err = l.Registry(ctx)
	requireKind(t, err, ErrRegistryUnset)

	_, err = l.Create(ctx, CreateInput{Actor: "issuer", Issuer: "issuer", MaxSupply: q(10)})
	requireKind(t, err, ErrRegistryUnset)

	requireKind(t, l.SetRegistry(ctx, "issuer", "yrcregistry"), ErrUnauthorized)
	requireKind(t, l.SetRegistry(ctx, "tokenowner", "ghost"), ErrUnknownAccount)
	require.NoError(t, l.SetRegistry(ctx, "tokenowner", "yrcregistry"))
	requireKind(t, l.SetRegistry(ctx, "tokenowner", "issuer"), ErrInvalidInput)

	reg, err := l.Registry(ctx)
	require.NoError(t, err)
	require.Equal(t, "yrcregistry", reg)

	// the registry account disappearing after it was set
	delete(accounts, "yrcregistry")
	_, err = l.Create(ctx, CreateInput{Actor: "issuer", Issuer: "issuer", MaxSupply: q(10)})
	requireKind(t, err, ErrRegistryAccountInvalid)
}

func TestLedger_SetExTime(t *testing.T) {
	f := newFixture(t)

	requireKind(t, f.ledger.SetExTime(f.ctx, "alice", yta, 1000), ErrUnauthorized)
	requireKind(t, f.ledger.SetExTime(f.ctx, "issuer", yta, -1), ErrInvalidInput)
	requireKind(t, f.ledger.SetExTime(f.ctx, "issuer", Symbol{Code: "NONE", Precision: 4}, 1000), ErrCurrencyNotFound)
	require.NoError(t, f.ledger.SetExTime(f.ctx, "issuer", yta, 1000))
	requireKind(t, f.ledger.SetExTime(f.ctx, "issuer", yta, 2000), ErrInvalidInput)

	cur, err := f.ledger.Currency(f.ctx, "YTA")
	require.NoError(t, err)
	epoch, ok := cur.ExTime.Get()
	require.True(t, ok)
	require.Equal(t, int64(1000), epoch)
}

func TestLedger_OpenClose(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.ledger.Open(f.ctx, OpenInput{Actor: "alice", Owner: "carol", Symbol: yta}))
	require.Zero(t, f.balance(t, "carol"))
	requireKind(t, f.ledger.Open(f.ctx, OpenInput{Actor: "alice", Owner: "carol", Symbol: yta}), ErrAccountAlreadyOpen)
	requireKind(t, f.ledger.Open(f.ctx, OpenInput{Actor: "alice", Owner: "ghost", Symbol: yta}), ErrUnknownAccount)
	requireKind(t, f.ledger.Open(f.ctx, OpenInput{Actor: "alice", Owner: "bob", Symbol: Symbol{Code: "YTA", Precision: 2}}), ErrInvalidCurrencyCode)

	requireKind(t, f.ledger.Close(f.ctx, "alice", "carol", yta), ErrUnauthorized)
	requireKind(t, f.ledger.Close(f.ctx, "alice", "alice", yta), ErrNonZeroBalance)
	require.NoError(t, f.ledger.Close(f.ctx, "carol", "carol", yta))
	requireKind(t, f.ledger.Close(f.ctx, "carol", "carol", yta), ErrAccountNotOpen)
}

func TestLedger_TransferGate(t *testing.T) {
	f := newFixture(t)

	_, err := f.ledger.LockedTransfer(f.ctx, LockedTransferInput{Actor: "pool", RuleID: CounterRuleID, From: "pool", To: "alice", Quantity: q(300)})
	require.NoError(t, err)

	p := f.position(t, "alice")
	require.Equal(t, int64(10_300), p.Balance)
	require.Equal(t, int64(300), p.Locked)
	require.Equal(t, int64(10_000), p.Available)

	_, err = f.ledger.Transfer(f.ctx, TransferInput{Actor: "alice", From: "alice", To: "bob", Quantity: q(10_001)})
	requireKind(t, err, ErrInsufficientFunds)
	require.Equal(t, int64(10_300), f.balance(t, "alice"))
	_, err = f.ledger.Balance(f.ctx, "bob", "YTA")
	requireKind(t, err, ErrAccountNotOpen)

	r, err := f.ledger.Transfer(f.ctx, TransferInput{Actor: "alice", From: "alice", To: "bob", Quantity: q(10_000)})
	require.NoError(t, err)
	require.Equal(t, int64(300), r.FromBalance)
	require.Equal(t, int64(10_000), r.ToBalance)
	require.Equal(t, "transfer", r.Op)
	require.True(t, r.CompletedAt.Equal(f.now))

	p = f.position(t, "alice")
	require.GreaterOrEqual(t, p.Balance, p.Locked)
	require.Zero(t, p.Available)
}

func TestLedger_TransferValidation(t *testing.T) {
	f := newFixture(t)

	_, err := f.ledger.Transfer(f.ctx, TransferInput{Actor: "bob", From: "alice", To: "bob", Quantity: q(1)})
	requireKind(t, err, ErrUnauthorized)
	_, err = f.ledger.Transfer(f.ctx, TransferInput{Actor: "alice", From: "alice", To: "alice", Quantity: q(1)})
	requireKind(t, err, ErrInvalidInput)
	_, err = f.ledger.Transfer(f.ctx, TransferInput{Actor: "alice", From: "alice", To: "ghost", Quantity: q(1)})
	requireKind(t, err, ErrUnknownAccount)
	_, err = f.ledger.Transfer(f.ctx, TransferInput{Actor: "alice", From: "alice", To: "bob", Quantity: q(0)})
	requireKind(t, err, ErrInvalidAmount)
	_, err = f.ledger.Transfer(f.ctx, TransferInput{Actor: "alice", From: "alice", To: "bob", Quantity: NewAsset(1, "YTA", 2)})
	requireKind(t, err, ErrInvalidCurrencyCode)
	_, err = f.ledger.Transfer(f.ctx, TransferInput{Actor: "alice", From: "alice", To: "bob", Quantity: q(1), Memo: string(make([]byte, 257))})
	requireKind(t, err, ErrInvalidInput)
	_, err = f.ledger.Transfer(f.ctx, TransferInput{Actor: "bob", From: "bob", To: "alice", Quantity: q(1)})
	requireKind(t, err, ErrAccountNotOpen)

	_, err = f.ledger.Transfer(f.ctx, TransferInput{Actor: "alice", From: "alice", To: "bob", Quantity: q(1), RequireOpen: true})
	requireKind(t, err, ErrAccountNotOpen)
	require.Equal(t, int64(10_000), f.balance(t, "alice"))

	_, err = f.ledger.Transfer(f.ctx, TransferInput{Actor: "alice", From: "alice", To: "bob", Quantity: q(1)})
	require.NoError(t, err)
	_, err = f.ledger.Transfer(f.ctx, TransferInput{Actor: "alice", From: "alice", To: "bob", Quantity: q(1), RequireOpen: true})
	require.NoError(t, err)
	require.Equal(t, int64(2), f.balance(t, "bob"))
}

func TestLedger_VestingRuleLock(t *testing.T) {
	f := newFixture(t)
	rule := Rule{ID: 101, Times: []int64{100}, Pcts: []uint32{10}, Base: 100, Period: 50, Description: "team"}

	_, err := f.ledger.AddRule(f.ctx, RuleInput{Actor: "pool", Symbol: yta, Rule: rule})
	require.NoError(t, err)

	_, err = f.ledger.LockedTransfer(f.ctx, LockedTransferInput{Actor: "pool", RuleID: 101, From: "pool", To: "bob", Quantity: q(600)})
	require.NoError(t, err)
	_, err = f.ledger.LockedTransfer(f.ctx, LockedTransferInput{Actor: "pool", RuleID: 101, From: "pool", To: "bob", Quantity: q(400)})
	require.NoError(t, err)

	set, err := f.ledger.Locks(f.ctx, "bob", "YTA")
	require.NoError(t, err)
	require.Zero(t, set.Counter)
	require.Len(t, set.Rules, 1)
	require.Equal(t, int64(1000), set.Rules[0].Quantity)
	require.Equal(t, LockKey(101, 7), set.Rules[0].Key)

	// no epoch yet: fully locked regardless of time
	f.at(1 << 40)
	require.Equal(t, int64(1000), f.position(t, "bob").Locked)

	require.NoError(t, f.ledger.SetExTime(f.ctx, "issuer", yta, 1000))
	for _, tc := range []struct{ now, locked int64 }{
		{1000, 1000}, {1149, 1000}, {1150, 900}, {1600, 0},
	} {
		f.at(tc.now)
		require.Equal(t, tc.locked, f.position(t, "bob").Locked, "t=%d", tc.now)
	}

	f.at(1150)
	_, err = f.ledger.Transfer(f.ctx, TransferInput{Actor: "bob", From: "bob", To: "alice", Quantity: q(101)})
	requireKind(t, err, ErrInsufficientFunds)
	_, err = f.ledger.Transfer(f.ctx, TransferInput{Actor: "bob", From: "bob", To: "alice", Quantity: q(100)})
	require.NoError(t, err)
}

func TestLedger_TieredRuleFromEpochZero(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.ledger.SetExTime(f.ctx, "issuer", yta, 0))
	_, err := f.ledger.AddRule(f.ctx, RuleInput{Actor: "pool", Symbol: yta, Rule: Rule{
		ID: 150, Times: []int64{0, 30, 60}, Pcts: []uint32{20, 60, 100}, Base: 100,
	}})
	require.NoError(t, err)
	_, err = f.ledger.LockedTransfer(f.ctx, LockedTransferInput{Actor: "pool", RuleID: 150, From: "pool", To: "carol", Quantity: q(1000)})
	require.NoError(t, err)

	for _, tc := range []struct{ now, locked int64 }{{10, 800}, {45, 400}, {60, 0}} {
		f.at(tc.now)
		require.Equal(t, tc.locked, f.position(t, "carol").Locked, "t=%d", tc.now)
	}
}

func TestLedger_LockedTransferRules(t *testing.T) {
	f := newFixture(t)

	_, err := f.ledger.LockedTransfer(f.ctx, LockedTransferInput{Actor: "pool", RuleID: 999, From: "pool", To: "bob", Quantity: q(1)})
	requireKind(t, err, ErrUnknownRule)
	require.Equal(t, int64(100_000), f.balance(t, "pool"))

	_, err = f.ledger.LockedTransfer(f.ctx, LockedTransferInput{Actor: "alice", RuleID: 0, From: "alice", To: "bob", Quantity: q(1)})
	requireKind(t, err, ErrUnauthorized)

	for id := uint32(101); id <= 201; id++ {
		_, err := f.ledger.AddRule(f.ctx, RuleInput{Actor: "pool", Symbol: yta, Rule: Rule{ID: id, Times: []int64{0}, Pcts: []uint32{1}, Base: 100, Period: 10}})
		require.NoError(t, err)
	}
	for id := uint32(101); id <= 200; id++ {
		_, err := f.ledger.LockedTransfer(f.ctx, LockedTransferInput{Actor: "pool", RuleID: id, From: "pool", To: "bob", Quantity: q(1)})
		require.NoError(t, err)
	}

	_, err = f.ledger.LockedTransfer(f.ctx, LockedTransferInput{Actor: "pool", RuleID: 201, From: "pool", To: "bob", Quantity: q(1)})
	requireKind(t, err, ErrTooManyLocks)
	require.Equal(t, int64(100), f.balance(t, "bob"))

	// merging into an existing lock is still allowed at the bound
	_, err = f.ledger.LockedTransfer(f.ctx, LockedTransferInput{Actor: "pool", RuleID: 101, From: "pool", To: "bob", Quantity: q(5)})
	require.NoError(t, err)
	set, err := f.ledger.Locks(f.ctx, "bob", "YTA")
	require.NoError(t, err)
	require.Len(t, set.Rules, MaxRuleLocks)
	require.Equal(t, int64(6), set.Rules[0].Quantity)
}

func TestLedger_AddRule(t *testing.T) {
	f := newFixture(t)
	rule := Rule{ID: 101, Times: []int64{0, 30}, Pcts: []uint32{50, 100}, Base: 100}

	_, err := f.ledger.AddRule(f.ctx, RuleInput{Actor: "alice", Symbol: yta, Rule: rule})
	requireKind(t, err, ErrUnauthorized)

	reserved := rule
	reserved.ID = 50
	_, err = f.ledger.AddRule(f.ctx, RuleInput{Actor: "pool", Symbol: yta, Rule: reserved})
	requireKind(t, err, ErrReservedID)

	malformed := rule
	malformed.Times = []int64{30, 30}
	_, err = f.ledger.AddRule(f.ctx, RuleInput{Actor: "pool", Symbol: yta, Rule: malformed})
	requireKind(t, err, ErrMalformedSchedule)

	_, err = f.ledger.AddRule(f.ctx, RuleInput{Actor: "pool", Symbol: yta, Rule: rule})
	require.NoError(t, err)
	_, err = f.ledger.AddRule(f.ctx, RuleInput{Actor: "pool", Symbol: yta, Rule: rule})
	requireKind(t, err, ErrDuplicateID)

	got, err := f.ledger.Rule(f.ctx, "YTA", 101)
	require.NoError(t, err)
	require.Equal(t, rule, got)
	require.Equal(t, ModeTiered, got.Mode())

	_, err = f.ledger.Rule(f.ctx, "YTA", 102)
	requireKind(t, err, ErrUnknownRule)
}

func TestLedger_Pools(t *testing.T) {
	f := newFixture(t)

	_, err := f.ledger.AddPool(f.ctx, PoolInput{Actor: "issuer", Symbol: yta, Account: "pool"})
	requireKind(t, err, ErrInvalidInput)
	_, err = f.ledger.AddPool(f.ctx, PoolInput{Actor: "alice", Symbol: yta, Account: "bob"})
	requireKind(t, err, ErrUnauthorized)
	_, err = f.ledger.AddPool(f.ctx, PoolInput{Actor: "issuer", Symbol: yta, Account: "ghost"})
	requireKind(t, err, ErrUnknownAccount)

	p, err := f.ledger.Pool(f.ctx, "YTA", "pool")
	require.NoError(t, err)
	require.Equal(t, "team", p.Name)

	requireKind(t, f.ledger.RemovePool(f.ctx, "issuer", yta, "bob"), ErrPoolNotFound)
	requireKind(t, f.ledger.RemovePool(f.ctx, "alice", yta, "pool"), ErrUnauthorized)
	require.NoError(t, f.ledger.RemovePool(f.ctx, "issuer", yta, "pool"))

	_, err = f.ledger.LockedTransfer(f.ctx, LockedTransferInput{Actor: "pool", From: "pool", To: "bob", Quantity: q(1)})
	requireKind(t, err, ErrUnauthorized)
}

func TestLedger_Unlock(t *testing.T) {
	f := newFixture(t)
	_, err := f.ledger.LockedTransfer(f.ctx, LockedTransferInput{Actor: "pool", From: "pool", To: "bob", Quantity: q(100)})
	require.NoError(t, err)
	_, err = f.ledger.LockedTransfer(f.ctx, LockedTransferInput{Actor: "pool", From: "pool", To: "bob", Quantity: q(200)})
	require.NoError(t, err)

	set, err := f.ledger.Locks(f.ctx, "bob", "YTA")
	require.NoError(t, err)
	require.Equal(t, int64(300), set.Counter)

	_, err = f.ledger.Unlock(f.ctx, UnlockInput{Actor: "alice", Account: "bob", Quantity: q(1)})
	requireKind(t, err, ErrUnauthorized)
	_, err = f.ledger.Unlock(f.ctx, UnlockInput{Actor: "issuer", Account: "bob", Quantity: q(301)})
	requireKind(t, err, ErrOverUnlock)
	_, err = f.ledger.Unlock(f.ctx, UnlockInput{Actor: "issuer", Account: "alice", Quantity: q(1)})
	requireKind(t, err, ErrNoSuchLock)
	_, err = f.ledger.Unlock(f.ctx, UnlockInput{Actor: "issuer", Account: "carol", Quantity: q(1)})
	requireKind(t, err, ErrAccountNotOpen)

	_, err = f.ledger.Unlock(f.ctx, UnlockInput{Actor: "issuer", Account: "bob", Quantity: q(-1)})
	requireKind(t, err, ErrInvalidAmount)
	remaining, err := f.ledger.Unlock(f.ctx, UnlockInput{Actor: "issuer", Account: "bob", Quantity: q(0)})
	require.NoError(t, err)
	require.Equal(t, int64(300), remaining)
	_, err = f.ledger.Unlock(f.ctx, UnlockInput{Actor: "issuer", Account: "alice", Quantity: q(0)})
	requireKind(t, err, ErrNoSuchLock)

	remaining, err = f.ledger.Unlock(f.ctx, UnlockInput{Actor: "issuer", Account: "bob", Quantity: q(100)})
	require.NoError(t, err)
	require.Equal(t, int64(200), remaining)
	require.Equal(t, int64(100), f.position(t, "bob").Available)

	remaining, err = f.ledger.Unlock(f.ctx, UnlockInput{Actor: "issuer", Account: "bob", Quantity: q(200)})
	require.NoError(t, err)
	require.Zero(t, remaining)

	_, err = f.ledger.Unlock(f.ctx, UnlockInput{Actor: "issuer", Account: "bob", Quantity: q(1)})
	requireKind(t, err, ErrNoSuchLock)
	require.Equal(t, int64(300), f.position(t, "bob").Available)
}

func TestLedger_Delegation(t *testing.T) {
	f := newFixture(t)

	d, err := f.ledger.Approve(f.ctx, ApproveInput{Actor: "alice", Owner: "alice", Manager: "manager", Quantity: q(4000)})
	require.NoError(t, err)
	require.Equal(t, int64(4000), d.Quantity)

	_, err = f.ledger.Approve(f.ctx, ApproveInput{Actor: "alice", Owner: "alice", Manager: "bob", Quantity: q(1)})
	requireKind(t, err, ErrManagerMismatch)
	_, err = f.ledger.Approve(f.ctx, ApproveInput{Actor: "alice", Owner: "alice", Manager: "manager", Quantity: q(6001)})
	requireKind(t, err, ErrInsufficientFunds)
	_, err = f.ledger.Approve(f.ctx, ApproveInput{Actor: "bob", Owner: "alice", Manager: "manager", Quantity: q(1)})
	requireKind(t, err, ErrUnauthorized)

	p := f.position(t, "alice")
	require.Equal(t, int64(4000), p.Delegated)
	require.Equal(t, int64(6000), p.Available)
	_, err = f.ledger.Transfer(f.ctx, TransferInput{Actor: "alice", From: "alice", To: "bob", Quantity: q(6001)})
	requireKind(t, err, ErrInsufficientFunds)

	d, err = f.ledger.Approve(f.ctx, ApproveInput{Actor: "alice", Owner: "alice", Manager: "manager", Quantity: q(1000)})
	require.NoError(t, err)
	require.Equal(t, int64(5000), d.Quantity)

	_, err = f.ledger.DelegatedTransfer(f.ctx, DelegatedTransferInput{Actor: "manager", From: "alice", To: "bob", Quantity: q(5001)})
	requireKind(t, err, ErrInsufficientDelegation)
	_, err = f.ledger.DelegatedTransfer(f.ctx, DelegatedTransferInput{Actor: "bob", From: "alice", To: "bob", Quantity: q(1)})
	requireKind(t, err, ErrNotManager)
	_, err = f.ledger.DelegatedTransfer(f.ctx, DelegatedTransferInput{Actor: "manager", From: "bob", To: "alice", Quantity: q(1)})
	requireKind(t, err, ErrInsufficientDelegation)

	r, err := f.ledger.DelegatedTransfer(f.ctx, DelegatedTransferInput{Actor: "manager", From: "alice", To: "bob", Quantity: q(2000)})
	require.NoError(t, err)
	require.Equal(t, int64(8000), r.FromBalance)
	d, err = f.ledger.Delegation(f.ctx, "YTA", "alice")
	require.NoError(t, err)
	require.Equal(t, int64(3000), d.Quantity)

	_, err = f.ledger.DelegatedTransfer(f.ctx, DelegatedTransferInput{Actor: "manager", From: "alice", To: "bob", Quantity: q(3000)})
	require.NoError(t, err)
	_, err = f.ledger.Delegation(f.ctx, "YTA", "alice")
	requireKind(t, err, ErrInsufficientDelegation)

	require.Equal(t, int64(5000), f.balance(t, "alice"))
	require.Equal(t, int64(5000), f.balance(t, "bob"))
	require.Equal(t, int64(5000), f.position(t, "alice").Available)
}

func TestLedger_DelegatedTransferGateCountsDelegation(t *testing.T) {
	f := newFixture(t)
	_, err := f.ledger.Approve(f.ctx, ApproveInput{Actor: "alice", Owner: "alice", Manager: "manager", Quantity: q(6000)})
	require.NoError(t, err)

	// 10000 - 0 locked - 6000 delegated leaves 4000 spendable
	_, err = f.ledger.DelegatedTransfer(f.ctx, DelegatedTransferInput{Actor: "manager", From: "alice", To: "bob", Quantity: q(6000)})
	requireKind(t, err, ErrInsufficientFunds)
	require.Equal(t, int64(10_000), f.balance(t, "alice"))
	d, err := f.ledger.Delegation(f.ctx, "YTA", "alice")
	require.NoError(t, err)
	require.Equal(t, int64(6000), d.Quantity)

	r, err := f.ledger.DelegatedTransfer(f.ctx, DelegatedTransferInput{Actor: "manager", From: "alice", To: "bob", Quantity: q(4000)})
	require.NoError(t, err)
	require.Equal(t, int64(6000), r.FromBalance)
	d, err = f.ledger.Delegation(f.ctx, "YTA", "alice")
	require.NoError(t, err)
	require.Equal(t, int64(2000), d.Quantity)
	require.Equal(t, int64(4000), f.position(t, "alice").Available)
}

func TestLedger_DelegationRespectsLocks(t *testing.T) {
	f := newFixture(t)
	_, err := f.ledger.LockedTransfer(f.ctx, LockedTransferInput{Actor: "pool", From: "pool", To: "alice", Quantity: q(500)})
	require.NoError(t, err)

	_, err = f.ledger.Approve(f.ctx, ApproveInput{Actor: "alice", Owner: "alice", Manager: "manager", Quantity: q(10_001)})
	requireKind(t, err, ErrInsufficientFunds)
	_, err = f.ledger.Approve(f.ctx, ApproveInput{Actor: "alice", Owner: "alice", Manager: "manager", Quantity: q(10_000)})
	require.NoError(t, err)
}

func TestLedger_BatchTransfer(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.ledger.Open(f.ctx, OpenInput{Actor: "bob", Owner: "bob", Symbol: yta}))

	res, err := f.ledger.BatchTransfer(f.ctx, BatchInput{
		Actor:  "alice",
		From:   "alice",
		Symbol: yta,
		Entries: []BatchEntry{
			{Account: "bob", Amount: 100},
			{Account: "ghost", Amount: 50},
			{Account: "pool", Amount: -5},
			{Account: "carol", Amount: 10},
		},
	})
	require.NoError(t, err)
	require.Equal(t, int64(100), res.Total)
	require.Equal(t, int64(9900), res.FromBalance)
	require.Equal(t, []BatchEntry{{Account: "bob", Amount: 100}}, res.Credited)
	require.Len(t, res.Skipped, 3)

	require.Equal(t, int64(9900), f.balance(t, "alice"))
	require.Equal(t, int64(100), f.balance(t, "bob"))
	require.Equal(t, int64(100_000), f.balance(t, "pool"))
	_, err = f.ledger.Balance(f.ctx, "carol", "YTA")
	requireKind(t, err, ErrAccountNotOpen)
}

func TestLedger_BatchTransferRollsBackOnDebitFailure(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.ledger.Open(f.ctx, OpenInput{Actor: "bob", Owner: "bob", Symbol: yta}))

	_, err := f.ledger.BatchTransfer(f.ctx, BatchInput{
		Actor:   "alice",
		From:    "alice",
		Symbol:  yta,
		Entries: []BatchEntry{{Account: "bob", Amount: 6000}, {Account: "pool", Amount: 6000}},
	})
	requireKind(t, err, ErrInsufficientFunds)
	require.Zero(t, f.balance(t, "bob"))
	require.Equal(t, int64(100_000), f.balance(t, "pool"))
	require.Equal(t, int64(10_000), f.balance(t, "alice"))

	_, err = f.ledger.BatchTransfer(f.ctx, BatchInput{Actor: "bob", From: "alice", Symbol: yta})
	requireKind(t, err, ErrUnauthorized)
}

func TestLedger_ConcurrentTransfers(t *testing.T) {
	f := newFixture(t)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = f.ledger.Transfer(f.ctx, TransferInput{Actor: "alice", From: "alice", To: "bob", Quantity: q(300)})
		}()
	}
	wg.Wait()

	// 33 transfers of 300 fit into 10000
	require.Equal(t, int64(100), f.balance(t, "alice"))
	require.Equal(t, int64(9900), f.balance(t, "bob"))
}
