package token

import "time"

const (
	// CounterRuleID selects the counter lock in a locked transfer instead of a vesting rule.
	CounterRuleID uint32 = 0
	// ReservedRuleIDs is the highest rule id that cannot be created.
	ReservedRuleIDs uint32 = 100
	// MaxRuleLocks bounds the rule-instance locks per account and currency.
	MaxRuleLocks = 100
)

// Currency is the stats record of one currency code.
type Currency struct {
	Symbol     Symbol
	Supply     int64
	MaxSupply  int64
	Issuer     string
	PoolSetter string
	Unlocker   string
	// ExTime is the vesting epoch in unix seconds. Unset is tracked by Once,
	// not by a zero value: epoch 0 is a real epoch.
	ExTime  Once[int64]
	TokenNo uint32
}

// Pool is a registered token pool account allowed to define rules and lock funds.
type Pool struct {
	Account string
	Name    string
	Memo    string
}

// Rule is an immutable vesting schedule. A single time entry selects periodic
// release, several entries select tiered release.
type Rule struct {
	ID          uint32
	Times       []int64
	Pcts        []uint32
	Base        uint32
	Period      uint32
	Description string
}

// RuleLock is the quantity of an account's balance held under one rule.
type RuleLock struct {
	Key       uint64
	Account   string
	Currency  string
	Quantity  int64
	RuleID    uint32
	UpdatedAt int64
}

// LockKey combines a rule id with the currency's token number so rule ids of
// different currencies never collide in one account's lock set.
func LockKey(ruleID, tokenNo uint32) uint64 {
	return uint64(ruleID) | uint64(tokenNo)<<32
}

// Delegation lets Manager move up to Quantity out of Owner's balance.
type Delegation struct {
	Owner    string
	Manager  string
	Quantity int64
}

// Position is an account's balance split into its encumbrances at AsOf.
type Position struct {
	Account   string
	Symbol    Symbol
	Balance   int64
	Locked    int64
	Delegated int64
	Available int64
	AsOf      time.Time
}

// LockSet lists every lock held by an account in one currency.
type LockSet struct {
	Counter int64
	Rules   []RuleLock
}

// Receipt describes a committed movement of funds.
type Receipt struct {
	TransactionID string
	Op            string
	Currency      string
	From          string
	To            string
	Amount        int64
	FromBalance   int64
	ToBalance     int64
	CompletedAt   time.Time
}

// Permission is an issuer's currency-creation quota as kept by the registry.
type Permission struct {
	Issuer      string
	Used        uint32
	Total       uint32
	NextTokenNo uint32
}
