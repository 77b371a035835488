// Package backup consumes backup/export documents: full JSON snapshots of
// every entity collection tagged with the schema version that produced
// them. A document older than the current version is migrated on a staging
// store before any of it reaches live data.
package backup

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"hisab/internal/core"
	"hisab/internal/log"
	"hisab/internal/services"
	"hisab/internal/storage"
)

// collectionKeys maps document field names to storage keys. The legacy
// "transactions" field only appears in pre-v3 documents and is handled by
// the schema migrator once staged.
var collectionKeys = map[string]string{
	"banks":                  storage.KeyBanks,
	"accounts":               storage.KeyAccounts,
	"income":                 storage.KeyIncome,
	"expenses":               storage.KeyExpenses,
	"savings":                storage.KeySavings,
	"transactions":           storage.KeyLegacyTransactions,
	"buckets":                storage.KeyBuckets,
	"monthSettings":          storage.KeyMonthSettings,
	"manualAdjustments":      storage.KeyAdjustments,
	"remainingCashOverrides": storage.KeyOverrides,
	"remainingCash":          storage.KeyRemaining,
	"recurringTemplates":     storage.KeyRecurring,
	"emis":                   storage.KeyEMIs,
}

// ImportResult reports one import run.
type ImportResult struct {
	Mode        string         `json:"mode"`
	FromVersion int            `json:"fromVersion"`
	Migrated    bool           `json:"migrated"`
	Counts      map[string]int `json:"counts"`
	Warnings    []string       `json:"warnings,omitempty"`
}

// Importer stages, migrates and applies backup documents.
type Importer struct {
	store  *storage.SnapshotStore
	months *services.MonthService
	now    func() time.Time
	logger *log.Logger
}

func NewImporter(store *storage.SnapshotStore, months *services.MonthService, logger *log.Logger) *Importer {
	return &Importer{
		store:  store,
		months: months,
		now:    time.Now,
		logger: logger.WithComponent(log.ComponentBackup),
	}
}

// Import applies a backup document. With replaceMode every collection is
// overwritten wholesale; otherwise entities merge by id with the document
// winning conflicts. Either way the document is first staged on an
// in-memory store and walked through the schema migrator, so the live
// store only ever sees current-shape data.
func (i *Importer) Import(ctx context.Context, data []byte, replaceMode bool) (ImportResult, error) {
	result := ImportResult{Mode: "merge", Counts: make(map[string]int)}
	if replaceMode {
		result.Mode = "replace"
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return result, fmt.Errorf("decode backup document: %w", err)
	}

	var version int
	if raw, ok := doc["version"]; ok {
		if err := json.Unmarshal(raw, &version); err != nil {
			return result, fmt.Errorf("decode backup version: %w", err)
		}
	}
	if version < 1 || version > services.CurrentSchemaVersion {
		return result, fmt.Errorf("unsupported backup version %d (current %d)", version, services.CurrentSchemaVersion)
	}
	result.FromVersion = version

	// Stage the document and bring it to the current shape.
	stage := storage.NewSnapshotStore(storage.NewMemoryStore())
	for field, key := range collectionKeys {
		raw, ok := doc[field]
		if !ok {
			continue
		}
		if err := stage.KV().Set(ctx, key, raw); err != nil {
			return result, fmt.Errorf("stage %s: %w", field, err)
		}
	}
	if err := stage.SetSchemaVersion(ctx, version); err != nil {
		return result, fmt.Errorf("stage version: %w", err)
	}

	migration, err := services.NewMigrator(stage, i.logger).MigrateData(ctx)
	if err != nil {
		return result, fmt.Errorf("migrate staged backup: %w", err)
	}
	if len(migration.Errors) > 0 {
		return result, fmt.Errorf("backup migration failed: %s", migration.Errors[0])
	}
	result.Migrated = migration.Migrated

	staged, err := stage.LoadSnapshot(ctx)
	if err != nil {
		return result, fmt.Errorf("load staged snapshot: %w", err)
	}

	// Integrity problems in a backup are surfaced, never fatal: partial
	// historical data is expected.
	report := services.ValidateSnapshot(staged, core.DateOf(i.now()))
	for _, issue := range append(report.Errors, report.Warnings...) {
		result.Warnings = append(result.Warnings, issue.Message)
	}

	final := staged
	if !replaceMode {
		live, err := i.store.LoadSnapshot(ctx)
		if err != nil {
			return result, fmt.Errorf("load live snapshot: %w", err)
		}
		final = mergeSnapshots(live, staged)
	}

	entries, err := encodeSnapshot(final)
	if err != nil {
		return result, err
	}
	entries[storage.KeySchemaVersion] = []byte(fmt.Sprintf("%d", services.CurrentSchemaVersion))
	if err := i.store.KV().SetMany(ctx, entries); err != nil {
		return result, fmt.Errorf("apply backup: %w", err)
	}

	result.Counts = snapshotCounts(final)
	record := storage.BackupRecord{
		ID:         uuid.NewString(),
		ImportedAt: i.now().UTC(),
		Version:    version,
		Mode:       result.Mode,
		Counts:     result.Counts,
	}
	if err := i.store.AppendBackupRecord(ctx, record); err != nil {
		i.logger.WarnContext(ctx, "backup applied but history append failed", log.FieldError, err)
	}

	i.months.InvalidateAll()
	i.logger.InfoContext(ctx, "backup imported",
		"mode", result.Mode, log.FieldVersion, version, "migrated", result.Migrated)
	return result, nil
}

func mergeByID[T any](live, incoming []T, id func(T) string) []T {
	seen := make(map[string]int, len(live))
	merged := make([]T, len(live))
	copy(merged, live)
	for idx, item := range merged {
		seen[id(item)] = idx
	}
	for _, item := range incoming {
		if idx, ok := seen[id(item)]; ok {
			merged[idx] = item
			continue
		}
		seen[id(item)] = len(merged)
		merged = append(merged, item)
	}
	return merged
}

func mergeSnapshots(live, incoming *core.Snapshot) *core.Snapshot {
	merged := &core.Snapshot{
		Banks:    mergeByID(live.Banks, incoming.Banks, func(b core.Bank) string { return b.ID }),
		Accounts: mergeByID(live.Accounts, incoming.Accounts, func(a core.BankAccount) string { return a.ID }),
		Income:   mergeByID(live.Income, incoming.Income, func(t core.IncomeTransaction) string { return t.ID }),
		Expenses: mergeByID(live.Expenses, incoming.Expenses, func(t core.ExpenseTransaction) string { return t.ID }),
		Savings:  mergeByID(live.Savings, incoming.Savings, func(t core.SavingsTransaction) string { return t.ID }),
		Buckets:  mergeByID(live.Buckets, incoming.Buckets, func(b core.Bucket) string { return b.ID }),
		Adjustments: mergeByID(live.Adjustments, incoming.Adjustments,
			func(a core.ManualAdjustment) string { return a.ID }),
		RecurringTemplates: mergeByID(live.RecurringTemplates, incoming.RecurringTemplates,
			func(r core.RecurringTemplate) string { return r.ID }),
		EMIs:          mergeByID(live.EMIs, incoming.EMIs, func(e core.EMI) string { return e.ID }),
		MonthSettings: make(map[core.MonthID]core.MonthSettings, len(live.MonthSettings)),
		Overrides:     make(map[string]core.RemainingCashOverride, len(live.Overrides)),
		Remaining:     make(map[string]*core.Money, len(live.Remaining)),
	}
	for k, v := range live.MonthSettings {
		merged.MonthSettings[k] = v
	}
	for k, v := range incoming.MonthSettings {
		merged.MonthSettings[k] = v
	}
	for k, v := range live.Overrides {
		merged.Overrides[k] = v
	}
	for k, v := range incoming.Overrides {
		merged.Overrides[k] = v
	}
	for k, v := range live.Remaining {
		merged.Remaining[k] = v
	}
	for k, v := range incoming.Remaining {
		merged.Remaining[k] = v
	}
	return merged
}

func encodeSnapshot(snap *core.Snapshot) (map[string][]byte, error) {
	collections := map[string]any{
		storage.KeyBanks:         snap.Banks,
		storage.KeyAccounts:      snap.Accounts,
		storage.KeyIncome:        snap.Income,
		storage.KeyExpenses:      snap.Expenses,
		storage.KeySavings:       snap.Savings,
		storage.KeyBuckets:       snap.Buckets,
		storage.KeyMonthSettings: snap.MonthSettings,
		storage.KeyAdjustments:   snap.Adjustments,
		storage.KeyOverrides:     snap.Overrides,
		storage.KeyRemaining:     snap.Remaining,
		storage.KeyRecurring:     snap.RecurringTemplates,
		storage.KeyEMIs:          snap.EMIs,
	}
	entries := make(map[string][]byte, len(collections))
	for key, value := range collections {
		encoded, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", key, err)
		}
		entries[key] = encoded
	}
	return entries, nil
}

func snapshotCounts(snap *core.Snapshot) map[string]int {
	return map[string]int{
		"banks":              len(snap.Banks),
		"accounts":           len(snap.Accounts),
		"income":             len(snap.Income),
		"expenses":           len(snap.Expenses),
		"savings":            len(snap.Savings),
		"buckets":            len(snap.Buckets),
		"monthSettings":      len(snap.MonthSettings),
		"manualAdjustments":  len(snap.Adjustments),
		"overrides":          len(snap.Overrides),
		"remainingCash":      len(snap.Remaining),
		"recurringTemplates": len(snap.RecurringTemplates),
		"emis":               len(snap.EMIs),
	}
}
