package registry

import "time"

// Record is an issuer's currency-creation permission. A grant is pending
// while TotalCount == RegCount+1.
type Record struct {
	Issuer      string
	RegCount    uint32
	TotalCount  uint32
	NextTokenNo uint32
	UpdatedAt   time.Time
}

// Pending reports whether the issuer holds an unused grant.
func (r Record) Pending() bool {
	return r.TotalCount == r.RegCount+1
}

// TokenInfo is the registry's copy of a created currency.
type TokenInfo struct {
	TokenNo      uint32
	Code         string
	Precision    uint8
	Name         string
	Memo         string
	Issuer       string
	Supply       int64
	MaxSupply    int64
	Registry     string
	RegisteredAt time.Time
	UpdatedAt    time.Time
}
