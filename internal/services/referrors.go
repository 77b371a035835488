package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"hisab/internal/core"
	"hisab/internal/log"
	"hisab/internal/storage"
)

// remainingCashTolerance is the disagreement, in minor units, below which a
// stored remaining-cash value still counts as matching the recomputed one.
const remainingCashTolerance = 1

// ScanResult is the outcome of one ref-error scan.
type ScanResult struct {
	Issues []core.RefErrorIssue `json:"issues"`
}

// FixResult reports a remediation batch. The batch does not abort on a bad
// item: partial progress is the point, errors are collected per item.
type FixResult struct {
	Fixed  int      `json:"fixed"`
	Errors []string `json:"errors"`
}

// Remediator finds months whose stored remaining-cash values are missing or
// no longer match what the aggregation engine derives, and repairs them.
type Remediator struct {
	store  *storage.SnapshotStore
	months *MonthService
	now    func() time.Time
	logger *log.Logger
}

func NewRemediator(store *storage.SnapshotStore, months *MonthService, logger *log.Logger) *Remediator {
	return &Remediator{
		store:  store,
		months: months,
		now:    time.Now,
		logger: logger.WithComponent(log.ComponentRemediation),
	}
}

// ScanRefErrors rebuilds every month that has at least one transaction and
// compares each account's stored remaining cash against the fresh value.
// An account already pinned by an override is resolved by definition and
// never reported. canAutoFix is true when the account has transaction data
// in the month, which is exactly when the formula inputs resolve.
func (r *Remediator) ScanRefErrors(ctx context.Context) (ScanResult, error) {
	snap, err := r.store.LoadSnapshot(ctx)
	if err != nil {
		return ScanResult{}, fmt.Errorf("load snapshot: %w", err)
	}

	today := core.DateOf(r.now())
	presence := transactionPresence(snap)
	result := ScanResult{}

	for _, monthID := range MonthsWithTransactions(snap) {
		month := BuildAggregatedMonth(monthID, today, snap)
		for _, acc := range month.Accounts {
			key := core.MonthAccountKey(monthID, acc.ID)
			if _, pinned := snap.Overrides[key]; pinned {
				continue
			}
			stored := snap.Remaining[key]
			calculated := acc.RemainingCash

			mismatch := false
			switch {
			case calculated == nil:
				mismatch = true
			case stored == nil:
				mismatch = true
			default:
				mismatch = stored.Sub(*calculated).Abs().Cents > remainingCashTolerance
			}
			if !mismatch {
				continue
			}

			missing := presence[key]
			result.Issues = append(result.Issues, core.RefErrorIssue{
				MonthID:                 monthID,
				AccountID:               acc.ID,
				AccountName:             acc.AccountName,
				CurrentRemainingCash:    stored,
				CalculatedRemainingCash: calculated,
				CanAutoFix:              missing.TransactionCount > 0,
				MissingData:             missing,
			})
		}
	}

	r.logger.InfoContext(ctx, "ref-error scan complete", "issues", len(result.Issues))
	return result, nil
}

// ApplyRefErrorFixes writes the recalculated remaining cash for every
// fixable issue; the engine reproduces these values, so no override is
// needed. Non-fixable issues are skipped unless the caller opts in to
// pinning the calculated value as a manual override. With dryRun the batch
// is evaluated but nothing is written.
func (r *Remediator) ApplyRefErrorFixes(ctx context.Context, issues []core.RefErrorIssue, dryRun, applyOverridesForNonFixable bool) (FixResult, error) {
	snap, err := r.store.LoadSnapshot(ctx)
	if err != nil {
		return FixResult{}, fmt.Errorf("load snapshot: %w", err)
	}

	result := FixResult{}
	now := r.now().UTC()

	for _, issue := range issues {
		key := core.MonthAccountKey(issue.MonthID, issue.AccountID)
		switch {
		case issue.CanAutoFix:
			if issue.CalculatedRemainingCash == nil {
				result.Errors = append(result.Errors,
					fmt.Sprintf("%s: marked fixable but no calculated value", key))
				continue
			}
			amount := *issue.CalculatedRemainingCash
			snap.Remaining[key] = &amount
			result.Fixed++
		case applyOverridesForNonFixable:
			if issue.CalculatedRemainingCash == nil {
				result.Errors = append(result.Errors,
					fmt.Sprintf("%s: no calculated value to pin as override", key))
				continue
			}
			snap.Overrides[key] = core.RemainingCashOverride{
				MonthID:   issue.MonthID,
				AccountID: issue.AccountID,
				Amount:    *issue.CalculatedRemainingCash,
				SetAt:     now,
			}
			result.Fixed++
		}
	}

	if dryRun {
		return result, nil
	}

	// One atomic write for both collections so a failure cannot leave the
	// remaining values and overrides out of step.
	remaining, err := json.Marshal(snap.Remaining)
	if err != nil {
		return result, fmt.Errorf("encode remaining cash: %w", err)
	}
	overrides, err := json.Marshal(snap.Overrides)
	if err != nil {
		return result, fmt.Errorf("encode overrides: %w", err)
	}
	err = r.store.KV().SetMany(ctx, map[string][]byte{
		storage.KeyRemaining: remaining,
		storage.KeyOverrides: overrides,
	})
	if err != nil {
		return result, fmt.Errorf("persist fixes: %w", err)
	}

	r.months.InvalidateAll()
	r.logger.InfoContext(ctx, "ref-error fixes applied",
		"fixed", result.Fixed, "errors", len(result.Errors))
	return result, nil
}

// SetRemainingCashOverride pins remaining cash for one account and month.
// The override outranks the formula until explicitly cleared.
func (r *Remediator) SetRemainingCashOverride(ctx context.Context, monthID core.MonthID, accountID string, value core.Money) error {
	snap, err := r.store.LoadSnapshot(ctx)
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}
	snap.Overrides[core.MonthAccountKey(monthID, accountID)] = core.RemainingCashOverride{
		MonthID:   monthID,
		AccountID: accountID,
		Amount:    value,
		SetAt:     r.now().UTC(),
	}
	if err := r.store.SaveOverrides(ctx, snap.Overrides); err != nil {
		return err
	}
	r.months.Invalidate(monthID)
	return nil
}

// ClearRemainingCashOverride removes a pin, letting the formula result show
// again.
func (r *Remediator) ClearRemainingCashOverride(ctx context.Context, monthID core.MonthID, accountID string) error {
	snap, err := r.store.LoadSnapshot(ctx)
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}
	delete(snap.Overrides, core.MonthAccountKey(monthID, accountID))
	if err := r.store.SaveOverrides(ctx, snap.Overrides); err != nil {
		return err
	}
	r.months.Invalidate(monthID)
	return nil
}

// transactionPresence indexes, per month|account key, how much raw data
// exists. One pass over each stream.
func transactionPresence(snap *core.Snapshot) map[string]core.MissingData {
	presence := make(map[string]core.MissingData)
	bump := func(monthID core.MonthID, accountID string, kind int) {
		key := core.MonthAccountKey(monthID, accountID)
		md := presence[key]
		md.TransactionCount++
		switch kind {
		case 0:
			md.HasIncome = true
		case 1:
			md.HasExpense = true
		case 2:
			md.HasSavings = true
		}
		presence[key] = md
	}
	for _, t := range snap.Income {
		bump(core.MonthIDOf(t.Date), t.AccountID, 0)
	}
	for _, t := range snap.Expenses {
		bump(core.MonthIDOf(t.EffectiveDate()), t.AccountID, 1)
	}
	for _, t := range snap.Savings {
		bump(core.MonthIDOf(t.Date), t.AccountID, 2)
	}
	return presence
}
