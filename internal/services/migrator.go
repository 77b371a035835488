package services

import (
	"context"
	"encoding/json"
	"fmt"

	"hisab/internal/log"
	"hisab/internal/storage"
)

// CurrentSchemaVersion is the snapshot-shape version this build writes.
const CurrentSchemaVersion = 4

// MigrationResult reports one MigrateData run.
type MigrationResult struct {
	Migrated    bool     `json:"migrated"`
	FromVersion int      `json:"fromVersion"`
	ToVersion   int      `json:"toVersion"`
	Errors      []string `json:"errors"`
}

type migrationStep struct {
	to   int
	name string
	fn   func(ctx context.Context, kv storage.KV) error
}

// Migrator walks the stored snapshot shape forward one version at a time.
// Steps are idempotent and fail-stop: a step that errors is recorded and
// halts the run, leaving the store at the last successfully migrated
// version instead of half-transformed.
type Migrator struct {
	store  *storage.SnapshotStore
	steps  []migrationStep
	logger *log.Logger
}

func NewMigrator(store *storage.SnapshotStore, logger *log.Logger) *Migrator {
	return &Migrator{
		store: store,
		steps: []migrationStep{
			{to: 2, name: "bucket default status", fn: migrateBucketDefaultStatus},
			{to: 3, name: "split transaction streams", fn: migrateSplitTransactions},
			{to: 4, name: "account currency and opening balance", fn: migrateAccountBaseFields},
		},
		logger: logger.WithComponent(log.ComponentMigration),
	}
}

// MigrateData runs every pending step in ascending order. A fresh store
// (no stored version) initializes straight to the current version without
// running any step.
func (m *Migrator) MigrateData(ctx context.Context) (MigrationResult, error) {
	result := MigrationResult{}

	version, ok, err := m.store.SchemaVersion(ctx)
	if err != nil {
		return result, fmt.Errorf("read schema version: %w", err)
	}
	if !ok {
		if err := m.store.SetSchemaVersion(ctx, CurrentSchemaVersion); err != nil {
			return result, fmt.Errorf("initialize schema version: %w", err)
		}
		result.FromVersion = CurrentSchemaVersion
		result.ToVersion = CurrentSchemaVersion
		m.logger.InfoContext(ctx, "fresh store initialized at head", "version", CurrentSchemaVersion)
		return result, nil
	}

	result.FromVersion = version
	result.ToVersion = version

	for _, step := range m.steps {
		if step.to <= version {
			continue
		}
		if err := m.runStep(ctx, step); err != nil {
			result.Errors = append(result.Errors,
				fmt.Sprintf("migration to v%d (%s): %v", step.to, step.name, err))
			m.logger.ErrorContext(ctx, "migration step failed, halting",
				"to_version", step.to, "step", step.name, log.FieldError, err)
			break
		}
		if err := m.store.SetSchemaVersion(ctx, step.to); err != nil {
			result.Errors = append(result.Errors,
				fmt.Sprintf("persist version v%d: %v", step.to, err))
			break
		}
		version = step.to
		result.ToVersion = version
		result.Migrated = true
		m.logger.InfoContext(ctx, "migration step applied",
			"to_version", step.to, "step", step.name)
	}

	return result, nil
}

func (m *Migrator) runStep(ctx context.Context, step migrationStep) (err error) {
	// A panicking step must not take the process down; it is recorded like
	// any other failure and migration halts.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return step.fn(ctx, m.store.KV())
}

// v1 -> v2: buckets gain a defaultStatus field, Pending when absent.
func migrateBucketDefaultStatus(ctx context.Context, kv storage.KV) error {
	data, ok, err := kv.Get(ctx, storage.KeyBuckets)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	var buckets []map[string]any
	if err := json.Unmarshal(data, &buckets); err != nil {
		return fmt.Errorf("decode buckets: %w", err)
	}
	changed := false
	for _, b := range buckets {
		if _, has := b["defaultStatus"]; !has {
			b["defaultStatus"] = "Pending"
			changed = true
		}
	}
	if !changed {
		return nil
	}
	updated, err := json.Marshal(buckets)
	if err != nil {
		return fmt.Errorf("encode buckets: %w", err)
	}
	return kv.Set(ctx, storage.KeyBuckets, updated)
}

// v2 -> v3: the single legacy transactions blob splits into the three
// kind-keyed collections. A store without the legacy key is already split.
func migrateSplitTransactions(ctx context.Context, kv storage.KV) error {
	data, ok, err := kv.Get(ctx, storage.KeyLegacyTransactions)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	var legacy []map[string]any
	if err := json.Unmarshal(data, &legacy); err != nil {
		return fmt.Errorf("decode legacy transactions: %w", err)
	}

	byKind := map[string][]map[string]any{}
	for _, t := range legacy {
		kind, _ := t["kind"].(string)
		switch kind {
		case "income", "expense", "savings":
		default:
			return fmt.Errorf("transaction %v has unknown kind %q", t["id"], kind)
		}
		delete(t, "kind")
		byKind[kind] = append(byKind[kind], t)
	}

	entries := make(map[string][]byte, 3)
	for kind, key := range map[string]string{
		"income":  storage.KeyIncome,
		"expense": storage.KeyExpenses,
		"savings": storage.KeySavings,
	} {
		items := byKind[kind]
		if items == nil {
			items = []map[string]any{}
		}
		encoded, err := json.Marshal(items)
		if err != nil {
			return fmt.Errorf("encode %s: %w", kind, err)
		}
		entries[key] = encoded
	}
	if err := kv.SetMany(ctx, entries); err != nil {
		return err
	}
	return kv.Delete(ctx, storage.KeyLegacyTransactions)
}

// v3 -> v4: accounts gain currency (INR) and an explicit openingBalance
// backfilled from currentBalance, so the balance reconciler has an
// unambiguous base to apply transaction effects to.
func migrateAccountBaseFields(ctx context.Context, kv storage.KV) error {
	data, ok, err := kv.Get(ctx, storage.KeyAccounts)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	var accounts []map[string]any
	if err := json.Unmarshal(data, &accounts); err != nil {
		return fmt.Errorf("decode accounts: %w", err)
	}
	changed := false
	for _, a := range accounts {
		if _, has := a["currency"]; !has {
			a["currency"] = "INR"
			changed = true
		}
		if _, has := a["openingBalance"]; !has {
			a["openingBalance"] = a["currentBalance"]
			changed = true
		}
	}
	if !changed {
		return nil
	}
	updated, err := json.Marshal(accounts)
	if err != nil {
		return fmt.Errorf("encode accounts: %w", err)
	}
	return kv.Set(ctx, storage.KeyAccounts, updated)
}
