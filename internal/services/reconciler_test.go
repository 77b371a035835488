package services

import (
	"context"
	"testing"

	"hisab/internal/core"
)

func resultFor(results []SyncResult, accountID string) *SyncResult {
	for i := range results {
		if results[i].AccountID == accountID {
			return &results[i]
		}
	}
	return nil
}

func TestReconcileBalances(t *testing.T) {
	snap := fixtureSnapshot()
	// acc-1: 100000 opening + 50000 received - 2000 paid - 5000 completed.
	// Pending income, pending expenses and pending savings contribute nothing.
	results := ReconcileBalances(snap)
	if len(results) != 3 {
		t.Fatalf("results = %d, want one per account", len(results))
	}

	acc1 := resultFor(results, "acc-1")
	if acc1.CalculatedBalance.Cents != 143000 {
		t.Errorf("acc-1 calculated = %d, want 143000", acc1.CalculatedBalance.Cents)
	}
	if acc1.BalanceDifference.Cents != 43000 || !acc1.Updated {
		t.Errorf("acc-1 diff = %d updated = %v, want 43000 true", acc1.BalanceDifference.Cents, acc1.Updated)
	}

	acc2 := resultFor(results, "acc-2")
	// 50000 opening + 20000 received - 15000 paid.
	if acc2.CalculatedBalance.Cents != 55000 {
		t.Errorf("acc-2 calculated = %d, want 55000", acc2.CalculatedBalance.Cents)
	}

	// acc-3 has no transactions: calculated equals opening, no drift.
	acc3 := resultFor(results, "acc-3")
	if acc3.Updated || acc3.CalculatedBalance.Cents != 0 {
		t.Errorf("acc-3 = %+v, want untouched zero", acc3)
	}
}

func TestSyncAccountBalances(t *testing.T) {
	svc, store := newTestMonthService(t)
	r := NewReconciler(store, svc, testLogger())
	ctx := context.Background()
	seedFixture(t, store, fixtureSnapshot())

	results, err := r.SyncAccountBalances(ctx)
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if resultFor(results, "acc-1").PreviousBalance.Cents != 100000 {
		t.Errorf("previous = %d, want 100000", resultFor(results, "acc-1").PreviousBalance.Cents)
	}

	snap, err := store.LoadSnapshot(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	byID := make(map[string]core.BankAccount)
	for _, a := range snap.Accounts {
		byID[a.ID] = a
	}
	if got := byID["acc-1"].CurrentBalance.Cents; got != 143000 {
		t.Errorf("acc-1 balance = %d, want 143000", got)
	}
	if got := byID["acc-2"].CurrentBalance.Cents; got != 55000 {
		t.Errorf("acc-2 balance = %d, want 55000", got)
	}
	// Opening balances are the reconciliation base and never move.
	if got := byID["acc-1"].OpeningBalance.Cents; got != 100000 {
		t.Errorf("acc-1 opening = %d, want 100000", got)
	}

	// A second sync starts from the rewritten balances and finds no drift.
	again, err := r.SyncAccountBalances(ctx)
	if err != nil {
		t.Fatalf("second sync: %v", err)
	}
	for _, res := range again {
		if res.Updated {
			t.Errorf("account %s still drifting after sync: %+v", res.AccountID, res)
		}
	}
}

func TestSyncAccountBalancesIsIdempotentOnResults(t *testing.T) {
	svc, store := newTestMonthService(t)
	r := NewReconciler(store, svc, testLogger())
	ctx := context.Background()
	seedFixture(t, store, fixtureSnapshot())

	first, err := r.SyncAccountBalances(ctx)
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	second, err := r.SyncAccountBalances(ctx)
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	for _, res := range second {
		want := resultFor(first, res.AccountID).CalculatedBalance
		if res.CalculatedBalance.Cents != want.Cents {
			t.Errorf("account %s calculated = %d, want stable %d",
				res.AccountID, res.CalculatedBalance.Cents, want.Cents)
		}
	}
}

func TestReconcileBalancesIgnoresDanglingReferences(t *testing.T) {
	snap := fixtureSnapshot()
	snap.Income = append(snap.Income, core.IncomeTransaction{
		ID: "inc-ghost", Date: core.NewDate(2025, 1, 2), Amount: core.Money{Cents: 100},
		AccountID: "ghost", Status: core.StatusReceived,
	})

	results := ReconcileBalances(snap)
	if len(results) != 3 {
		t.Errorf("results = %d, want 3 (ghost account not materialized)", len(results))
	}
	if resultFor(results, "ghost") != nil {
		t.Error("dangling reference produced a sync result")
	}
}
