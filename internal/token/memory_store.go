package token

import (
	"context"
	"errors"
	"sort"
	"sync"
)

var errReadOnly = errors.New("write in read-only transaction")

type scopeKey struct {
	code    string
	account string
}

type ruleKey struct {
	code string
	id   uint32
}

type lockKey struct {
	account string
	key     uint64
}

type balanceRecord struct {
	amount int64
	payer  string
}

type memoryState struct {
	registry    Once[string]
	currencies  map[string]Currency
	balances    map[scopeKey]balanceRecord
	pools       map[scopeKey]Pool
	rules       map[ruleKey]Rule
	counters    map[scopeKey]int64
	ruleLocks   map[lockKey]RuleLock
	delegations map[scopeKey]Delegation
}

func newMemoryState() *memoryState {
	return &memoryState{
		currencies:  make(map[string]Currency),
		balances:    make(map[scopeKey]balanceRecord),
		pools:       make(map[scopeKey]Pool),
		rules:       make(map[ruleKey]Rule),
		counters:    make(map[scopeKey]int64),
		ruleLocks:   make(map[lockKey]RuleLock),
		delegations: make(map[scopeKey]Delegation),
	}
}

// remember records how to restore m[k] to its value before the current write.
func remember[K comparable, V any](t *memoryTx, m map[K]V, k K) {
	old, existed := m[k]
	t.undo = append(t.undo, func() {
		if existed {
			m[k] = old
		} else {
			delete(m, k)
		}
	})
}

// MemoryStore keeps the ledger in process memory. Update serializes writers
// and applies writes in place while logging their inverse; a failed
// transaction replays the log backwards. Readers never observe a transaction
// in flight because they wait on the same lock.
type MemoryStore struct {
	mu    sync.RWMutex
	state *memoryState
}

// NewMemoryStore creates an empty in-memory store for development and tests.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: newMemoryState()}
}

func (s *MemoryStore) Update(_ context.Context, fn func(tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memoryTx{state: s.state}
	committed := false
	defer func() {
		if !committed {
			tx.rollback()
		}
	}()
	if err := fn(tx); err != nil {
		return err
	}
	committed = true
	return nil
}

func (s *MemoryStore) View(_ context.Context, fn func(tx Tx) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(&memoryTx{state: s.state, readOnly: true})
}

type memoryTx struct {
	state    *memoryState
	readOnly bool
	undo     []func()
}

func (t *memoryTx) rollback() {
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
}

func (t *memoryTx) writable() error {
	if t.readOnly {
		return errReadOnly
	}
	return nil
}

func (t *memoryTx) Registry(_ context.Context) (Once[string], error) {
	return t.state.registry, nil
}

func (t *memoryTx) SetRegistry(_ context.Context, account string) error {
	if err := t.writable(); err != nil {
		return err
	}
	old := t.state.registry
	t.undo = append(t.undo, func() { t.state.registry = old })
	t.state.registry = OnceOf(account)
	return nil
}

func (t *memoryTx) Currency(_ context.Context, code string) (Currency, error) {
	c, ok := t.state.currencies[code]
	if !ok {
		return Currency{}, errNotFound
	}
	return c, nil
}

func (t *memoryTx) InsertCurrency(_ context.Context, c Currency) error {
	if err := t.writable(); err != nil {
		return err
	}
	if _, exists := t.state.currencies[c.Symbol.Code]; exists {
		return ErrCurrencyAlreadyExists
	}
	remember(t, t.state.currencies, c.Symbol.Code)
	t.state.currencies[c.Symbol.Code] = c
	return nil
}

func (t *memoryTx) UpdateCurrency(_ context.Context, c Currency) error {
	if err := t.writable(); err != nil {
		return err
	}
	if _, exists := t.state.currencies[c.Symbol.Code]; !exists {
		return errNotFound
	}
	remember(t, t.state.currencies, c.Symbol.Code)
	t.state.currencies[c.Symbol.Code] = c
	return nil
}

func (t *memoryTx) Balance(_ context.Context, account, code string) (int64, error) {
	b, ok := t.state.balances[scopeKey{code: code, account: account}]
	if !ok {
		return 0, errNotFound
	}
	return b.amount, nil
}

func (t *memoryTx) InsertBalance(_ context.Context, account, code string, amount int64, payer string) error {
	if err := t.writable(); err != nil {
		return err
	}
	k := scopeKey{code: code, account: account}
	if _, exists := t.state.balances[k]; exists {
		return ErrAccountAlreadyOpen
	}
	remember(t, t.state.balances, k)
	t.state.balances[k] = balanceRecord{amount: amount, payer: payer}
	return nil
}

func (t *memoryTx) UpdateBalance(_ context.Context, account, code string, amount int64) error {
	if err := t.writable(); err != nil {
		return err
	}
	k := scopeKey{code: code, account: account}
	b, ok := t.state.balances[k]
	if !ok {
		return errNotFound
	}
	b.amount = amount
	remember(t, t.state.balances, k)
	t.state.balances[k] = b
	return nil
}

func (t *memoryTx) DeleteBalance(_ context.Context, account, code string) error {
	if err := t.writable(); err != nil {
		return err
	}
	k := scopeKey{code: code, account: account}
	remember(t, t.state.balances, k)
	delete(t.state.balances, k)
	return nil
}

func (t *memoryTx) Pool(_ context.Context, code, account string) (Pool, error) {
	p, ok := t.state.pools[scopeKey{code: code, account: account}]
	if !ok {
		return Pool{}, errNotFound
	}
	return p, nil
}

func (t *memoryTx) InsertPool(_ context.Context, code string, p Pool) error {
	if err := t.writable(); err != nil {
		return err
	}
	k := scopeKey{code: code, account: p.Account}
	remember(t, t.state.pools, k)
	t.state.pools[k] = p
	return nil
}

func (t *memoryTx) DeletePool(_ context.Context, code, account string) error {
	if err := t.writable(); err != nil {
		return err
	}
	k := scopeKey{code: code, account: account}
	remember(t, t.state.pools, k)
	delete(t.state.pools, k)
	return nil
}

func (t *memoryTx) Rule(_ context.Context, code string, id uint32) (Rule, error) {
	r, ok := t.state.rules[ruleKey{code: code, id: id}]
	if !ok {
		return Rule{}, errNotFound
	}
	return r, nil
}

func (t *memoryTx) InsertRule(_ context.Context, code string, r Rule) error {
	if err := t.writable(); err != nil {
		return err
	}
	k := ruleKey{code: code, id: r.ID}
	if _, exists := t.state.rules[k]; exists {
		return ErrDuplicateID
	}
	r.Times = append([]int64(nil), r.Times...)
	r.Pcts = append([]uint32(nil), r.Pcts...)
	remember(t, t.state.rules, k)
	t.state.rules[k] = r
	return nil
}

func (t *memoryTx) CounterLock(_ context.Context, code, account string) (int64, error) {
	amount, ok := t.state.counters[scopeKey{code: code, account: account}]
	if !ok {
		return 0, errNotFound
	}
	return amount, nil
}

func (t *memoryTx) PutCounterLock(_ context.Context, code, account string, amount int64) error {
	if err := t.writable(); err != nil {
		return err
	}
	k := scopeKey{code: code, account: account}
	remember(t, t.state.counters, k)
	t.state.counters[k] = amount
	return nil
}

func (t *memoryTx) DeleteCounterLock(_ context.Context, code, account string) error {
	if err := t.writable(); err != nil {
		return err
	}
	k := scopeKey{code: code, account: account}
	remember(t, t.state.counters, k)
	delete(t.state.counters, k)
	return nil
}

func (t *memoryTx) RuleLocks(_ context.Context, account, code string) ([]RuleLock, error) {
	var locks []RuleLock
	for k, l := range t.state.ruleLocks {
		if k.account == account && l.Currency == code {
			locks = append(locks, l)
		}
	}
	sort.Slice(locks, func(i, j int) bool { return locks[i].Key < locks[j].Key })
	return locks, nil
}

func (t *memoryTx) PutRuleLock(_ context.Context, l RuleLock) error {
	if err := t.writable(); err != nil {
		return err
	}
	k := lockKey{account: l.Account, key: l.Key}
	remember(t, t.state.ruleLocks, k)
	t.state.ruleLocks[k] = l
	return nil
}

func (t *memoryTx) Delegation(_ context.Context, code, owner string) (Delegation, error) {
	d, ok := t.state.delegations[scopeKey{code: code, account: owner}]
	if !ok {
		return Delegation{}, errNotFound
	}
	return d, nil
}

func (t *memoryTx) PutDelegation(_ context.Context, code string, d Delegation) error {
	if err := t.writable(); err != nil {
		return err
	}
	k := scopeKey{code: code, account: d.Owner}
	remember(t, t.state.delegations, k)
	t.state.delegations[k] = d
	return nil
}

func (t *memoryTx) DeleteDelegation(_ context.Context, code, owner string) error {
	if err := t.writable(); err != nil {
		return err
	}
	k := scopeKey{code: code, account: owner}
	remember(t, t.state.delegations, k)
	delete(t.state.delegations, k)
	return nil
}
