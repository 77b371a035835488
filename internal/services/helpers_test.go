package services

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"hisab/internal/core"
	"hisab/internal/log"
	"hisab/internal/storage"
)

func testLogger() *log.Logger {
	return log.New(log.Config{Handler: slog.NewTextHandler(io.Discard, nil)})
}

func newTestStore(t *testing.T) *storage.SnapshotStore {
	t.Helper()
	return storage.NewSnapshotStore(storage.NewMemoryStore())
}

// seed marshals value under key, bypassing the typed save methods so tests
// can stage any collection shape, including legacy ones.
func seed(t *testing.T, store *storage.SnapshotStore, key string, value any) {
	t.Helper()
	data, err := json.Marshal(value)
	if err != nil {
		t.Fatalf("seed %s: %v", key, err)
	}
	if err := store.KV().Set(context.Background(), key, data); err != nil {
		t.Fatalf("seed %s: %v", key, err)
	}
}

func money(cents int64) *core.Money {
	m := core.Money{Cents: cents}
	return &m
}

func datePtr(y, m, d int) *core.Date {
	dd := core.NewDate(y, m, d)
	return &dd
}

// fixtureSnapshot is the baseline dataset most aggregation tests start
// from: two active accounts in 2025-01 plus a third that only appears
// through month settings.
func fixtureSnapshot() *core.Snapshot {
	return &core.Snapshot{
		Banks: []core.Bank{{ID: "hdfc", Name: "HDFC"}},
		Accounts: []core.BankAccount{
			{ID: "acc-1", BankID: "hdfc", Name: "Salary", Type: core.AccountSavings,
				OpeningBalance: core.Money{Cents: 100000}, CurrentBalance: core.Money{Cents: 100000}, Currency: "INR"},
			{ID: "acc-2", BankID: "hdfc", Name: "Household", Type: core.AccountCurrent,
				OpeningBalance: core.Money{Cents: 50000}, CurrentBalance: core.Money{Cents: 50000}, Currency: "INR"},
			{ID: "acc-3", BankID: "hdfc", Name: "Card", Type: core.AccountCreditCard, Currency: "INR"},
		},
		Income: []core.IncomeTransaction{
			{ID: "inc-1", Date: core.NewDate(2025, 1, 5), Amount: core.Money{Cents: 50000}, AccountID: "acc-1", Status: core.StatusReceived},
			{ID: "inc-2", Date: core.NewDate(2025, 1, 20), Amount: core.Money{Cents: 10000}, AccountID: "acc-1", Status: core.StatusPending},
			{ID: "inc-3", Date: core.NewDate(2025, 1, 7), Amount: core.Money{Cents: 20000}, AccountID: "acc-2", Status: core.StatusReceived},
		},
		Expenses: []core.ExpenseTransaction{
			{ID: "exp-1", Date: core.NewDate(2025, 1, 10), Amount: core.Money{Cents: 2000}, AccountID: "acc-1", Status: core.StatusPaid, Bucket: "food"},
			{ID: "exp-2", Date: core.NewDate(2025, 1, 15), Amount: core.Money{Cents: 3000}, AccountID: "acc-1", Status: core.StatusPending, Bucket: "food"},
			{ID: "exp-3", Date: core.NewDate(2025, 1, 1), Amount: core.Money{Cents: 15000}, AccountID: "acc-2", Status: core.StatusPaid, Bucket: "rent"},
		},
		Savings: []core.SavingsTransaction{
			{ID: "sav-1", Date: core.NewDate(2025, 1, 3), Amount: core.Money{Cents: 5000}, AccountID: "acc-1", Status: core.StatusCompleted},
			{ID: "sav-2", Date: core.NewDate(2025, 1, 25), Amount: core.Money{Cents: 4000}, AccountID: "acc-1", Status: core.StatusPending},
		},
		Buckets: []core.Bucket{
			{ID: "food", Name: "Food", DefaultStatus: core.BucketPending, Position: 1},
			{ID: "rent", Name: "Rent", DefaultStatus: core.BucketPending, Position: 0},
			{ID: "travel", Name: "Travel", DefaultStatus: core.BucketPending, Position: 2},
		},
		MonthSettings: map[core.MonthID]core.MonthSettings{
			"2025-01": {
				FixedFactor:   core.Money{Cents: 2500},
				FixedBalances: map[string]*core.Money{"acc-1": money(10000)},
			},
		},
		Overrides: map[string]core.RemainingCashOverride{},
		Remaining: map[string]*core.Money{},
	}
}
