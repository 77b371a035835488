package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"hisab/internal/core"
)

// SnapshotStore is the typed layer over the KV surface. Loads tolerate
// missing keys (fresh installs and partial spreadsheet imports both leave
// gaps), writes marshal whole collections.
type SnapshotStore struct {
	kv KV
}

func NewSnapshotStore(kv KV) *SnapshotStore {
	return &SnapshotStore{kv: kv}
}

// KV exposes the raw surface for the schema migrator and backup importer.
func (s *SnapshotStore) KV() KV { return s.kv }

func loadJSON[T any](ctx context.Context, kv KV, key string, out *T) error {
	data, ok, err := kv.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("load %s: %w", key, err)
	}
	if !ok {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

func saveJSON(ctx context.Context, kv KV, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := kv.Set(ctx, key, data); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

// LoadSnapshot reads every collection into one consistent in-memory view.
func (s *SnapshotStore) LoadSnapshot(ctx context.Context) (*core.Snapshot, error) {
	snap := &core.Snapshot{
		MonthSettings: make(map[core.MonthID]core.MonthSettings),
		Overrides:     make(map[string]core.RemainingCashOverride),
		Remaining:     make(map[string]*core.Money),
	}
	loads := []struct {
		key string
		out any
	}{
		{KeyBanks, &snap.Banks},
		{KeyAccounts, &snap.Accounts},
		{KeyIncome, &snap.Income},
		{KeyExpenses, &snap.Expenses},
		{KeySavings, &snap.Savings},
		{KeyBuckets, &snap.Buckets},
		{KeyMonthSettings, &snap.MonthSettings},
		{KeyAdjustments, &snap.Adjustments},
		{KeyOverrides, &snap.Overrides},
		{KeyRemaining, &snap.Remaining},
		{KeyRecurring, &snap.RecurringTemplates},
		{KeyEMIs, &snap.EMIs},
	}
	for _, l := range loads {
		data, ok, err := s.kv.Get(ctx, l.key)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", l.key, err)
		}
		if !ok {
			continue
		}
		if err := json.Unmarshal(data, l.out); err != nil {
			return nil, fmt.Errorf("decode %s: %w", l.key, err)
		}
	}
	return snap, nil
}

func (s *SnapshotStore) SaveAccounts(ctx context.Context, accounts []core.BankAccount) error {
	return saveJSON(ctx, s.kv, KeyAccounts, accounts)
}

func (s *SnapshotStore) SaveOverrides(ctx context.Context, overrides map[string]core.RemainingCashOverride) error {
	return saveJSON(ctx, s.kv, KeyOverrides, overrides)
}

func (s *SnapshotStore) SaveRemaining(ctx context.Context, remaining map[string]*core.Money) error {
	return saveJSON(ctx, s.kv, KeyRemaining, remaining)
}

func (s *SnapshotStore) SaveMonthSettings(ctx context.Context, settings map[core.MonthID]core.MonthSettings) error {
	return saveJSON(ctx, s.kv, KeyMonthSettings, settings)
}

// SchemaVersion returns the stored snapshot-shape version; ok is false on a
// fresh store.
func (s *SnapshotStore) SchemaVersion(ctx context.Context) (int, bool, error) {
	data, ok, err := s.kv.Get(ctx, KeySchemaVersion)
	if err != nil {
		return 0, false, fmt.Errorf("load %s: %w", KeySchemaVersion, err)
	}
	if !ok {
		return 0, false, nil
	}
	version, err := strconv.Atoi(string(data))
	if err != nil {
		return 0, false, fmt.Errorf("decode %s: %w", KeySchemaVersion, err)
	}
	return version, true, nil
}

func (s *SnapshotStore) SetSchemaVersion(ctx context.Context, version int) error {
	return s.kv.Set(ctx, KeySchemaVersion, []byte(strconv.Itoa(version)))
}

// BackupRecord is one line of import history.
type BackupRecord struct {
	ID         string         `json:"id"`
	ImportedAt time.Time      `json:"importedAt"`
	Version    int            `json:"version"`
	Mode       string         `json:"mode"`
	Counts     map[string]int `json:"counts"`
}

// AppendBackupRecord appends to the import history collection.
func (s *SnapshotStore) AppendBackupRecord(ctx context.Context, rec BackupRecord) error {
	var history []BackupRecord
	if err := loadJSON(ctx, s.kv, KeyBackups, &history); err != nil {
		return err
	}
	history = append(history, rec)
	return saveJSON(ctx, s.kv, KeyBackups, history)
}
