package storage

import (
	"context"
	"testing"
	"time"

	"hisab/internal/core"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryStore()

	if _, ok, err := kv.Get(ctx, "missing"); err != nil || ok {
		t.Fatalf("missing key: ok=%v err=%v", ok, err)
	}

	if err := kv.Set(ctx, "a", []byte("1")); err != nil {
		t.Fatalf("set: %v", err)
	}
	value, ok, err := kv.Get(ctx, "a")
	if err != nil || !ok || string(value) != "1" {
		t.Fatalf("get = %q ok=%v err=%v", value, ok, err)
	}

	if err := kv.SetMany(ctx, map[string][]byte{"b": []byte("2"), "c": []byte("3")}); err != nil {
		t.Fatalf("setmany: %v", err)
	}
	keys, err := kv.Keys(ctx)
	if err != nil {
		t.Fatalf("keys: %v", err)
	}
	if len(keys) != 3 {
		t.Errorf("keys = %v, want 3 entries", keys)
	}

	if err := kv.Delete(ctx, "a"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := kv.Get(ctx, "a"); ok {
		t.Error("deleted key still present")
	}
}

func TestSnapshotStoreLoadsMissingKeysAsEmpty(t *testing.T) {
	ctx := context.Background()
	store := NewSnapshotStore(NewMemoryStore())

	snap, err := store.LoadSnapshot(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(snap.Accounts) != 0 || len(snap.Income) != 0 {
		t.Error("fresh store should yield empty collections")
	}
	if snap.Overrides == nil || snap.Remaining == nil || snap.MonthSettings == nil {
		t.Error("maps must be initialized even when empty")
	}
}

func TestSnapshotStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewSnapshotStore(NewMemoryStore())

	accounts := []core.BankAccount{{
		ID:             "acc-1",
		BankID:         "bank-1",
		Name:           "Salary",
		Type:           core.AccountSavings,
		OpeningBalance: core.Money{Cents: 50000},
		CurrentBalance: core.Money{Cents: 75000},
		Currency:       "INR",
	}}
	if err := store.SaveAccounts(ctx, accounts); err != nil {
		t.Fatalf("save accounts: %v", err)
	}

	overrides := map[string]core.RemainingCashOverride{
		core.MonthAccountKey("2025-01", "acc-1"): {
			MonthID:   "2025-01",
			AccountID: "acc-1",
			Amount:    core.Money{Cents: 1234},
			SetAt:     time.Now().UTC(),
		},
	}
	if err := store.SaveOverrides(ctx, overrides); err != nil {
		t.Fatalf("save overrides: %v", err)
	}

	snap, err := store.LoadSnapshot(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(snap.Accounts) != 1 || snap.Accounts[0].OpeningBalance.Cents != 50000 {
		t.Errorf("accounts round trip = %+v", snap.Accounts)
	}
	ov, ok := snap.Overrides["2025-01|acc-1"]
	if !ok || ov.Amount.Cents != 1234 {
		t.Errorf("overrides round trip = %+v", snap.Overrides)
	}
}

func TestSchemaVersion(t *testing.T) {
	ctx := context.Background()
	store := NewSnapshotStore(NewMemoryStore())

	if _, ok, err := store.SchemaVersion(ctx); err != nil || ok {
		t.Fatalf("fresh store: ok=%v err=%v", ok, err)
	}

	if err := store.SetSchemaVersion(ctx, 4); err != nil {
		t.Fatalf("set: %v", err)
	}
	version, ok, err := store.SchemaVersion(ctx)
	if err != nil || !ok || version != 4 {
		t.Fatalf("got %d ok=%v err=%v, want 4", version, ok, err)
	}
}

func TestAppendBackupRecord(t *testing.T) {
	ctx := context.Background()
	store := NewSnapshotStore(NewMemoryStore())

	for i := 0; i < 2; i++ {
		err := store.AppendBackupRecord(ctx, BackupRecord{
			ID:         "rec",
			ImportedAt: time.Now().UTC(),
			Version:    4,
			Mode:       "replace",
		})
		if err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	data, ok, err := store.KV().Get(ctx, KeyBackups)
	if err != nil || !ok {
		t.Fatalf("history missing: %v", err)
	}
	if len(data) == 0 {
		t.Error("empty history payload")
	}
}
