package services

import (
	"context"
	"fmt"
	"time"

	"hisab/internal/core"
	"hisab/internal/log"
	"hisab/internal/storage"
)

// SyncResult reports one account's balance reconciliation.
type SyncResult struct {
	AccountID         string     `json:"accountId"`
	AccountName       string     `json:"accountName"`
	PreviousBalance   core.Money `json:"previousBalance"`
	CalculatedBalance core.Money `json:"calculatedBalance"`
	BalanceDifference core.Money `json:"balanceDifference"`
	Updated           bool       `json:"updated"`
}

// Reconciler recomputes account balances from status-resolved transaction
// effects across all history, independent of any per-month aggregation.
type Reconciler struct {
	store  *storage.SnapshotStore
	months *MonthService
	now    func() time.Time
	logger *log.Logger
}

func NewReconciler(store *storage.SnapshotStore, months *MonthService, logger *log.Logger) *Reconciler {
	return &Reconciler{
		store:  store,
		months: months,
		now:    time.Now,
		logger: logger.WithComponent(log.ComponentReconciler),
	}
}

// ReconcileBalances computes, for every account, opening balance plus all
// Received income minus all Paid expenses minus all Completed savings
// transfers. Pure; shared with the service entry point and tests.
func ReconcileBalances(snap *core.Snapshot) []SyncResult {
	effects := make(map[string]core.Money, len(snap.Accounts))
	for _, t := range snap.Income {
		if t.Status == core.StatusReceived {
			effects[t.AccountID] = effects[t.AccountID].Add(t.Amount)
		}
	}
	for _, t := range snap.Expenses {
		if t.Status == core.StatusPaid {
			effects[t.AccountID] = effects[t.AccountID].Sub(t.Amount)
		}
	}
	for _, t := range snap.Savings {
		if t.Status == core.StatusCompleted {
			effects[t.AccountID] = effects[t.AccountID].Sub(t.Amount)
		}
	}

	results := make([]SyncResult, 0, len(snap.Accounts))
	for _, acc := range snap.Accounts {
		calculated := acc.OpeningBalance.Add(effects[acc.ID])
		diff := calculated.Sub(acc.CurrentBalance)
		results = append(results, SyncResult{
			AccountID:         acc.ID,
			AccountName:       acc.Name,
			PreviousBalance:   acc.CurrentBalance,
			CalculatedBalance: calculated,
			BalanceDifference: diff,
			Updated:           !diff.IsZero(),
		})
	}
	return results
}

// SyncAccountBalances is the user-triggered batch: it rewrites every
// drifted account's current balance in a single write, so either all
// accounts move to their reconciled balances or none do.
func (r *Reconciler) SyncAccountBalances(ctx context.Context) ([]SyncResult, error) {
	snap, err := r.store.LoadSnapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}

	results := ReconcileBalances(snap)

	updated := 0
	byID := make(map[string]core.Money, len(results))
	for _, res := range results {
		if res.Updated {
			byID[res.AccountID] = res.CalculatedBalance
			updated++
		}
	}
	if updated == 0 {
		r.logger.InfoContext(ctx, "balances already in sync", "accounts", len(results))
		return results, nil
	}

	accounts := make([]core.BankAccount, len(snap.Accounts))
	copy(accounts, snap.Accounts)
	for i := range accounts {
		if balance, ok := byID[accounts[i].ID]; ok {
			accounts[i].CurrentBalance = balance
		}
	}

	// The whole collection is one key, so this write is atomic: an error
	// here means no account was touched.
	if err := r.store.SaveAccounts(ctx, accounts); err != nil {
		return nil, fmt.Errorf("persist balances: %w", err)
	}

	r.months.InvalidateAll()
	r.logger.InfoContext(ctx, "account balances synced",
		"accounts", len(results), "updated", updated)
	return results, nil
}
