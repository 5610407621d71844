package binnacle

import "github.com/shopspring/decimal"

// ExpandOptionLots splits a multi-contract option trade into one record
// per contract so that closings can match openings contract by contract.
// Money amounts are divided equally across the units, rounded to the
// currency's precision; the rounding remainder lands on the first unit so
// the units always sum back to the original amounts. Trades for a single
// contract, and trades with a fractional or non-positive quantity, come
// back unchanged.
func ExpandOptionLots(t *OptionTrade) []*OptionTrade {
	q := t.Quantity.Decimal()
	if !q.IsInteger() || q.LessThanOrEqual(decimal.NewFromInt(1)) {
		return []*OptionTrade{t}
	}
	count := int(q.IntPart())

	firstPremium, eachPremium := splitEqually(t.Premium, count)
	firstNet, eachNet := splitEqually(t.NetPremium, count)
	firstCommissions, eachCommissions := splitEqually(t.Commissions, count)
	firstFees, eachFees := splitEqually(t.Fees, count)

	units := make([]*OptionTrade, count)
	for i := range units {
		u := *t
		u.Quantity = Q(1)
		if i == 0 {
			u.Premium = firstPremium
			u.NetPremium = firstNet
			u.Commissions = firstCommissions
			u.Fees = firstFees
		} else {
			u.id = NewID()
			u.Premium = eachPremium
			u.NetPremium = eachNet
			u.Commissions = eachCommissions
			u.Fees = eachFees
		}
		units[i] = &u
	}
	return units
}

// splitEqually divides a total into count parts rounded to the currency's
// precision. The first part absorbs the rounding remainder.
func splitEqually(total Money, count int) (first, each Money) {
	each = total.Div(Q(count)).Round()
	first = total.Sub(each.Mul(Q(count - 1)))
	return first, each
}

// ExpandAll expands every multi-contract option trade in a record list.
// Expanded units take the place of their source trade, so the overall
// order is preserved.
func ExpandAll(records []Record) []Record {
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if t, ok := r.(*OptionTrade); ok {
			for _, u := range ExpandOptionLots(t) {
				out = append(out, u)
			}
			continue
		}
		out = append(out, r)
	}
	return out
}
