package token

import "math/bits"

// Mode discriminates how a rule releases its locked quantity.
type Mode int

const (
	ModePeriodic Mode = iota + 1
	ModeTiered
)

func (m Mode) String() string {
	switch m {
	case ModePeriodic:
		return "periodic"
	case ModeTiered:
		return "tiered"
	default:
		return "unknown"
	}
}

// Mode is periodic for a single time entry and tiered otherwise.
func (r Rule) Mode() Mode {
	if len(r.Times) == 1 {
		return ModePeriodic
	}
	return ModeTiered
}

// Validate checks the rule id and the shape of the schedule.
func (r Rule) Validate() error {
	const op = "add_rule"
	if r.ID <= ReservedRuleIDs {
		return fail(op, ErrReservedID, "rule id %d, ids up to %d are reserved", r.ID, ReservedRuleIDs)
	}
	if len(r.Description) > maxTextLen {
		return fail(op, ErrInvalidInput, "description has more than %d bytes", maxTextLen)
	}
	if len(r.Times) == 0 {
		return fail(op, ErrMalformedSchedule, "times is empty")
	}
	if len(r.Times) != len(r.Pcts) {
		return fail(op, ErrMalformedSchedule, "%d times but %d percentages", len(r.Times), len(r.Pcts))
	}
	if r.Base == 0 {
		return fail(op, ErrMalformedSchedule, "base must be positive")
	}
	if r.Mode() == ModePeriodic && r.Period == 0 {
		return fail(op, ErrMalformedSchedule, "period must be positive for a single-entry schedule")
	}
	for i := range r.Times {
		if r.Times[i] < 0 {
			return fail(op, ErrMalformedSchedule, "times[%d]=%d is negative", i, r.Times[i])
		}
		if r.Pcts[i] > r.Base {
			return fail(op, ErrMalformedSchedule, "pcts[%d]=%d exceeds base %d", i, r.Pcts[i], r.Base)
		}
		if i == 0 {
			continue
		}
		if r.Times[i] <= r.Times[i-1] {
			return fail(op, ErrMalformedSchedule, "times[%d]=%d not after times[%d]=%d", i, r.Times[i], i-1, r.Times[i-1])
		}
		if r.Pcts[i] <= r.Pcts[i-1] {
			return fail(op, ErrMalformedSchedule, "pcts[%d]=%d not above pcts[%d]=%d", i, r.Pcts[i], i-1, r.Pcts[i-1])
		}
	}
	return nil
}

// Locked returns how much of quantity the rule still holds at now for a
// vesting epoch that has been set. Rounding keeps fractions locked.
func (r Rule) Locked(quantity, epoch, now int64) int64 {
	if now <= epoch || len(r.Times) == 0 || r.Base == 0 {
		return quantity
	}
	elapsed := now - epoch
	base := uint64(r.Base)

	if r.Mode() == ModePeriodic {
		n := elapsed - r.Times[0]
		if n <= 0 || r.Period == 0 {
			return quantity
		}
		periods := uint64(n / int64(r.Period))
		if periods < 1 {
			return quantity
		}
		step := uint64(r.Pcts[0])
		if step == 0 {
			return quantity
		}
		// step*periods >= base, checked without overflowing the product
		if periods >= (base+step-1)/step {
			return 0
		}
		return portion(quantity, base-step*periods, base)
	}

	crossed := 0
	for _, offset := range r.Times {
		if offset > elapsed {
			break
		}
		crossed++
	}
	if crossed == 0 {
		return quantity
	}
	released := uint64(r.Pcts[crossed-1])
	if released >= base {
		return 0
	}
	return portion(quantity, base-released, base)
}

// portion computes floor(quantity*num/den) for num <= den without overflow.
func portion(quantity int64, num, den uint64) int64 {
	if quantity <= 0 || num == 0 {
		return 0
	}
	hi, lo := bits.Mul64(uint64(quantity), num)
	quo, _ := bits.Div64(hi, lo, den)
	return int64(quo)
}

// LockedAmount sums every encumbrance on one account's balance of cur at now:
// the counter lock plus each rule-instance lock evaluated against its rule.
// Locks whose rule is missing, and all locks before the epoch is set, count in full.
func LockedAmount(cur Currency, counter int64, locks []RuleLock, rules map[uint32]Rule, now int64) int64 {
	total := counter
	epoch, started := cur.ExTime.Get()
	for _, l := range locks {
		rule, ok := rules[l.RuleID]
		if !started || !ok {
			total += l.Quantity
			continue
		}
		total += rule.Locked(l.Quantity, epoch, now)
	}
	return total
}
