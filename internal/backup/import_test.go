package backup

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"hisab/internal/cache"
	"hisab/internal/core"
	"hisab/internal/log"
	"hisab/internal/services"
	"hisab/internal/storage"
)

func newTestImporter(t *testing.T) (*Importer, *storage.SnapshotStore) {
	t.Helper()
	store := storage.NewSnapshotStore(storage.NewMemoryStore())
	logger := log.New(log.Config{Handler: slog.NewTextHandler(io.Discard, nil)})
	months := services.NewMonthService(store, cache.NewLRUCache[*core.AggregatedMonth](8, time.Minute), logger)
	imp := NewImporter(store, months, logger)
	imp.now = func() time.Time { return time.Date(2025, 1, 31, 12, 0, 0, 0, time.UTC) }
	return imp, store
}

func docBytes(t *testing.T, doc map[string]any) []byte {
	t.Helper()
	data, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("encode doc: %v", err)
	}
	return data
}

func account(id, name string, balance int64) core.BankAccount {
	return core.BankAccount{
		ID: id, BankID: "hdfc", Name: name, Type: core.AccountSavings,
		OpeningBalance: core.Money{Cents: balance}, CurrentBalance: core.Money{Cents: balance},
		Currency: "INR",
	}
}

func seedLive(t *testing.T, store *storage.SnapshotStore, accounts []core.BankAccount) {
	t.Helper()
	ctx := context.Background()
	if err := store.SetSchemaVersion(ctx, services.CurrentSchemaVersion); err != nil {
		t.Fatalf("seed version: %v", err)
	}
	data, err := json.Marshal([]core.Bank{{ID: "hdfc", Name: "HDFC"}})
	if err != nil {
		t.Fatal(err)
	}
	if err := store.KV().Set(ctx, storage.KeyBanks, data); err != nil {
		t.Fatal(err)
	}
	if err := store.SaveAccounts(ctx, accounts); err != nil {
		t.Fatalf("seed accounts: %v", err)
	}
}

func TestImportReplace(t *testing.T) {
	imp, store := newTestImporter(t)
	ctx := context.Background()
	seedLive(t, store, []core.BankAccount{account("acc-live", "Live Only", 100)})

	doc := docBytes(t, map[string]any{
		"version":  services.CurrentSchemaVersion,
		"banks":    []core.Bank{{ID: "hdfc", Name: "HDFC"}},
		"accounts": []core.BankAccount{account("acc-doc", "From Backup", 5000)},
	})

	result, err := imp.Import(ctx, doc, true)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if result.Mode != "replace" || result.Migrated {
		t.Errorf("result = %+v, want replace without migration", result)
	}
	if result.Counts["accounts"] != 1 {
		t.Errorf("accounts count = %d, want 1", result.Counts["accounts"])
	}

	snap, err := store.LoadSnapshot(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(snap.Accounts) != 1 || snap.Accounts[0].ID != "acc-doc" {
		t.Errorf("accounts = %+v, want only the document's", snap.Accounts)
	}
}

func TestImportMerge(t *testing.T) {
	imp, store := newTestImporter(t)
	ctx := context.Background()
	seedLive(t, store, []core.BankAccount{
		account("acc-1", "Stale Name", 100),
		account("acc-live", "Live Only", 200),
	})

	doc := docBytes(t, map[string]any{
		"version":  services.CurrentSchemaVersion,
		"banks":    []core.Bank{{ID: "hdfc", Name: "HDFC"}},
		"accounts": []core.BankAccount{account("acc-1", "Fresh Name", 300)},
	})

	result, err := imp.Import(ctx, doc, false)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if result.Mode != "merge" {
		t.Errorf("mode = %s, want merge", result.Mode)
	}

	snap, err := store.LoadSnapshot(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(snap.Accounts) != 2 {
		t.Fatalf("accounts = %d, want live-only plus updated", len(snap.Accounts))
	}
	for _, a := range snap.Accounts {
		if a.ID == "acc-1" && a.Name != "Fresh Name" {
			t.Errorf("acc-1 name = %s, want document to win the conflict", a.Name)
		}
	}
}

func TestImportMigratesOldDocuments(t *testing.T) {
	imp, store := newTestImporter(t)
	ctx := context.Background()
	seedLive(t, store, nil)

	// A v1 document still has the single transactions blob and accounts
	// without currency or opening balance.
	doc := docBytes(t, map[string]any{
		"version": 1,
		"banks":   []map[string]any{{"id": "hdfc", "name": "HDFC"}},
		"accounts": []map[string]any{
			{"id": "acc-1", "bankId": "hdfc", "name": "Salary", "accountType": "Savings", "currentBalance": 750.00},
		},
		"transactions": []map[string]any{
			{"id": "t1", "kind": "income", "accountId": "acc-1", "amount": 500.00, "date": "2025-01-05", "status": "Received"},
			{"id": "t2", "kind": "expense", "accountId": "acc-1", "amount": 120.50, "date": "2025-01-10", "status": "Paid", "bucket": "food"},
		},
		"buckets": []map[string]any{{"id": "food", "name": "Food", "position": 0}},
	})

	result, err := imp.Import(ctx, doc, true)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if !result.Migrated || result.FromVersion != 1 {
		t.Errorf("result = %+v, want migrated from v1", result)
	}

	snap, err := store.LoadSnapshot(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(snap.Income) != 1 || snap.Income[0].Amount.Cents != 50000 {
		t.Errorf("income = %+v, want the split 500.00 entry", snap.Income)
	}
	if len(snap.Expenses) != 1 || snap.Expenses[0].Amount.Cents != 12050 {
		t.Errorf("expenses = %+v, want the split 120.50 entry", snap.Expenses)
	}
	if snap.Accounts[0].Currency != "INR" || snap.Accounts[0].OpeningBalance.Cents != 75000 {
		t.Errorf("account = %+v, want currency and opening balance backfilled", snap.Accounts[0])
	}
	if len(snap.Buckets) == 0 || snap.Buckets[0].DefaultStatus != core.BucketPending {
		t.Errorf("buckets = %+v, want default status backfilled", snap.Buckets)
	}
	// The live store itself stays at the current schema version.
	version, ok, err := store.SchemaVersion(ctx)
	if err != nil || !ok || version != services.CurrentSchemaVersion {
		t.Errorf("version = %d (ok=%v, err=%v), want %d", version, ok, err, services.CurrentSchemaVersion)
	}
}

func TestImportRejectsBadVersions(t *testing.T) {
	imp, _ := newTestImporter(t)
	ctx := context.Background()

	for _, version := range []int{0, services.CurrentSchemaVersion + 1} {
		doc := docBytes(t, map[string]any{"version": version})
		if _, err := imp.Import(ctx, doc, true); err == nil {
			t.Errorf("version %d accepted", version)
		} else if !strings.Contains(err.Error(), "unsupported backup version") {
			t.Errorf("version %d error = %v", version, err)
		}
	}

	if _, err := imp.Import(ctx, []byte("{"), true); err == nil {
		t.Error("malformed document accepted")
	}
}

func TestImportAppendsHistory(t *testing.T) {
	imp, store := newTestImporter(t)
	ctx := context.Background()
	seedLive(t, store, nil)

	doc := docBytes(t, map[string]any{
		"version":  services.CurrentSchemaVersion,
		"accounts": []core.BankAccount{account("acc-1", "Salary", 100)},
	})
	if _, err := imp.Import(ctx, doc, false); err != nil {
		t.Fatalf("Import: %v", err)
	}

	data, ok, err := store.KV().Get(ctx, storage.KeyBackups)
	if err != nil || !ok {
		t.Fatalf("history missing (ok=%v, err=%v)", ok, err)
	}
	var history []storage.BackupRecord
	if err := json.Unmarshal(data, &history); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("history = %d records, want 1", len(history))
	}
	rec := history[0]
	if rec.ID == "" || rec.Mode != "merge" || rec.Version != services.CurrentSchemaVersion {
		t.Errorf("record = %+v, want id, merge mode and current version", rec)
	}
	if rec.Counts["accounts"] != 1 {
		t.Errorf("record counts = %v, want accounts 1", rec.Counts)
	}
}
