package core

// CalculateRemainingCash applies the remaining-cash formula:
//
//	inflowShare - fixedBalance - savingsTransfer + sum(adjustments)
//
// A nil required input yields nil, never zero: "unresolved" and "resolved
// to zero" must stay distinguishable all the way to the UI.
func CalculateRemainingCash(inflowShare, fixedBalance, savingsTransfer *Money, adjustments []Money) *Money {
	if inflowShare == nil || fixedBalance == nil || savingsTransfer == nil {
		return nil
	}
	result := inflowShare.Sub(*fixedBalance).Sub(*savingsTransfer).Add(SumMoney(adjustments))
	return &result
}

// ApplyDueDateZeroing returns 0 once a bucket's due date is strictly in the
// past, the amount unchanged otherwise. An amount due today is not yet past.
// This is a display/allocation rule, re-derived every build; the stored
// transaction amounts are never touched.
func ApplyDueDateZeroing(amount Money, dueDate *Date, today Date) Money {
	if dueDate == nil || dueDate.IsZero() {
		return amount
	}
	if dueDate.Before(today) {
		return Money{}
	}
	return amount
}

// CalculateBucketTotals accumulates every non-nil bucket allocation across
// all accounts into all/pending/paid maps. Buckets listed in bucketOrder
// always appear in All, zero-valued if nothing contributed. A bucket with
// no explicit status counts as Pending.
func CalculateBucketTotals(m *AggregatedMonth) BucketTotals {
	totals := BucketTotals{
		All:     make(map[string]Money, len(m.BucketOrder)),
		Pending: make(map[string]Money, len(m.BucketOrder)),
		Paid:    make(map[string]Money, len(m.BucketOrder)),
	}
	for _, bucketID := range m.BucketOrder {
		totals.All[bucketID] = Money{}
		totals.Pending[bucketID] = Money{}
		totals.Paid[bucketID] = Money{}
	}
	for _, acc := range m.Accounts {
		for bucketID, amount := range acc.BucketAmounts {
			if amount == nil {
				continue
			}
			totals.All[bucketID] = totals.All[bucketID].Add(*amount)
			if m.StatusByBucket[bucketID] == BucketPaid {
				totals.Paid[bucketID] = totals.Paid[bucketID].Add(*amount)
			} else {
				totals.Pending[bucketID] = totals.Pending[bucketID].Add(*amount)
			}
		}
	}
	return totals
}
