// Package services holds the engine: aggregation, validation, schema
// migration, ref-error remediation and balance reconciliation. Every
// computation is a pure function over a snapshot; the service types around
// them only add storage loads, caching and logging.
package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/singleflight"

	"hisab/internal/cache"
	"hisab/internal/core"
	"hisab/internal/log"
	"hisab/internal/storage"
)

// BuildAggregatedMonth derives the month view for monthID from a snapshot.
// It never fails: missing or partial data degrades to nil fields plus
// refErrors entries, because gaps are expected in data migrated from the
// legacy spreadsheet. today drives due-date zeroing and is passed in so the
// build stays a pure function of its arguments.
func BuildAggregatedMonth(monthID core.MonthID, today core.Date, snap *core.Snapshot) *core.AggregatedMonth {
	month := &core.AggregatedMonth{
		ID:             monthID,
		MonthStart:     monthID.Start(),
		StatusByBucket: make(map[string]core.BucketStatus),
		DueDates:       make(map[string]*core.Date),
	}

	settings := snap.MonthSettings[monthID]
	month.FixedFactor = settings.FixedFactor

	// Filter each stream by effective date. Expenses follow their due date
	// when one is set, income and savings always follow the posting date.
	var income []core.IncomeTransaction
	for _, t := range snap.Income {
		if core.MonthIDOf(t.Date) == monthID {
			income = append(income, t)
		}
	}
	var expenses []core.ExpenseTransaction
	for _, t := range snap.Expenses {
		if core.MonthIDOf(t.EffectiveDate()) == monthID {
			expenses = append(expenses, t)
		}
	}
	var savings []core.SavingsTransaction
	for _, t := range snap.Savings {
		if core.MonthIDOf(t.Date) == monthID {
			savings = append(savings, t)
		}
	}
	for _, t := range income {
		if t.Status == core.StatusReceived {
			month.InflowTotal = month.InflowTotal.Add(t.Amount)
		}
	}
	for _, adj := range snap.Adjustments {
		if core.MonthIDOf(adj.Date) == monthID {
			month.ManualAdjustments = append(month.ManualAdjustments, adj)
		}
	}

	// Accounts in scope: referenced by a filtered transaction or carrying a
	// fixed-balance allocation for the month. Snapshot order keeps the
	// result deterministic.
	referenced := make(map[string]bool)
	for _, t := range income {
		referenced[t.AccountID] = true
	}
	for _, t := range expenses {
		referenced[t.AccountID] = true
	}
	for _, t := range savings {
		referenced[t.AccountID] = true
	}
	for accountID := range settings.FixedBalances {
		referenced[accountID] = true
	}

	dueDates := resolveDueDates(settings, expenses)

	for _, acc := range snap.Accounts {
		if !referenced[acc.ID] {
			continue
		}
		agg := buildAccount(acc, monthID, today, settings, dueDates, income, expenses, savings, month)
		month.Accounts = append(month.Accounts, agg)
	}

	month.BucketOrder = bucketOrder(snap.Buckets, month.Accounts)
	for _, bucketID := range month.BucketOrder {
		month.StatusByBucket[bucketID] = core.BucketPending
		month.DueDates[bucketID] = dueDates[bucketID]
	}
	for _, b := range snap.Buckets {
		if _, ok := month.StatusByBucket[b.ID]; ok && b.DefaultStatus != "" {
			month.StatusByBucket[b.ID] = b.DefaultStatus
		}
	}
	for bucketID, status := range settings.StatusByBucket {
		if _, ok := month.StatusByBucket[bucketID]; ok {
			month.StatusByBucket[bucketID] = status
		}
	}

	// Apply overrides last: an override resolves an account even when the
	// formula could not.
	for i := range month.Accounts {
		key := core.MonthAccountKey(monthID, month.Accounts[i].ID)
		if ov, ok := snap.Overrides[key]; ok {
			amount := ov.Amount
			month.Accounts[i].RemainingCash = &amount
		}
	}

	return month
}

func buildAccount(acc core.BankAccount, monthID core.MonthID, today core.Date,
	settings core.MonthSettings, dueDates map[string]*core.Date,
	income []core.IncomeTransaction, expenses []core.ExpenseTransaction,
	savings []core.SavingsTransaction, month *core.AggregatedMonth) core.AggregatedAccount {

	agg := core.AggregatedAccount{
		ID:            acc.ID,
		AccountName:   acc.Name,
		AccountType:   acc.Type,
		BucketAmounts: make(map[string]*core.Money),
	}

	txnCount := 0
	var inflowShare core.Money
	for _, t := range income {
		if t.AccountID != acc.ID {
			continue
		}
		txnCount++
		if t.Status == core.StatusReceived {
			inflowShare = inflowShare.Add(t.Amount)
		}
	}
	for _, t := range savings {
		if t.AccountID != acc.ID {
			continue
		}
		txnCount++
		if t.Status == core.StatusCompleted {
			agg.SavingsTransfer = agg.SavingsTransfer.Add(t.Amount)
		}
	}

	// Raw per-bucket sums, status-independent: status only decides which
	// totals partition the bucket lands in later.
	raw := make(map[string]core.Money)
	for _, t := range expenses {
		if t.AccountID != acc.ID {
			continue
		}
		txnCount++
		raw[t.Bucket] = raw[t.Bucket].Add(t.Amount)
	}
	for bucketID, sum := range raw {
		amount := core.ApplyDueDateZeroing(sum, dueDates[bucketID], today)
		agg.BucketAmounts[bucketID] = &amount
	}

	// Bucket-scoped adjustments add back on top of zeroed allocations,
	// which keeps zeroing overridable.
	var formulaAdjustments []core.Money
	for _, adj := range month.ManualAdjustments {
		if adj.AccountID != acc.ID {
			continue
		}
		if adj.BucketID != "" {
			current := agg.BucketAmounts[adj.BucketID]
			if current == nil {
				current = &core.Money{}
			}
			adjusted := current.Add(adj.Amount)
			agg.BucketAmounts[adj.BucketID] = &adjusted
			continue
		}
		formulaAdjustments = append(formulaAdjustments, adj.Amount)
	}

	// Fixed balance comes from month settings. When unset it resolves to
	// zero for accounts with data that month and stays unresolved for
	// accounts that only appear through an allocation.
	agg.FixedBalance = settings.FixedBalances[acc.ID]
	if agg.FixedBalance == nil {
		if txnCount > 0 {
			agg.FixedBalance = &core.Money{}
		} else {
			month.RefErrors = append(month.RefErrors, core.RefError{
				AccountID: acc.ID,
				Field:     "fixedBalance",
				Message:   fmt.Sprintf("no fixed balance configured for %s in %s and no transactions to derive one from", acc.Name, monthID),
			})
		}
	}

	savingsTransfer := agg.SavingsTransfer
	agg.RemainingCash = core.CalculateRemainingCash(&inflowShare, agg.FixedBalance, &savingsTransfer, formulaAdjustments)
	if agg.RemainingCash == nil {
		month.RefErrors = append(month.RefErrors, core.RefError{
			AccountID: acc.ID,
			Field:     "remainingCash",
			Message:   fmt.Sprintf("remaining cash unresolved for %s in %s", acc.Name, monthID),
		})
	}

	return agg
}

// resolveDueDates picks each bucket's due date for the month: the explicit
// per-month setting wins, otherwise the latest due date among the bucket's
// expenses.
func resolveDueDates(settings core.MonthSettings, expenses []core.ExpenseTransaction) map[string]*core.Date {
	dueDates := make(map[string]*core.Date)
	for _, t := range expenses {
		if t.DueDate == nil || t.DueDate.IsZero() {
			continue
		}
		current := dueDates[t.Bucket]
		if current == nil || current.Before(*t.DueDate) {
			d := *t.DueDate
			dueDates[t.Bucket] = &d
		}
	}
	for bucketID, d := range settings.DueDates {
		if d != nil && !d.IsZero() {
			copied := *d
			dueDates[bucketID] = &copied
		}
	}
	return dueDates
}

// bucketOrder returns the global buckets that received at least one non-nil
// allocation this month, in global display order.
func bucketOrder(buckets []core.Bucket, accounts []core.AggregatedAccount) []string {
	allocated := make(map[string]bool)
	for _, acc := range accounts {
		for bucketID, amount := range acc.BucketAmounts {
			if amount != nil {
				allocated[bucketID] = true
			}
		}
	}
	ordered := make([]core.Bucket, len(buckets))
	copy(ordered, buckets)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Position < ordered[j].Position
	})
	var order []string
	for _, b := range ordered {
		if allocated[b.ID] {
			order = append(order, b.ID)
		}
	}
	return order
}

// MonthsWithTransactions lists every month touched by at least one
// transaction, using effective dates, in ascending order.
func MonthsWithTransactions(snap *core.Snapshot) []core.MonthID {
	seen := make(map[core.MonthID]bool)
	for _, t := range snap.Income {
		seen[core.MonthIDOf(t.Date)] = true
	}
	for _, t := range snap.Expenses {
		seen[core.MonthIDOf(t.EffectiveDate())] = true
	}
	for _, t := range snap.Savings {
		seen[core.MonthIDOf(t.Date)] = true
	}
	months := make([]core.MonthID, 0, len(seen))
	for id := range seen {
		months = append(months, id)
	}
	sort.Slice(months, func(i, j int) bool { return months[i] < months[j] })
	return months
}

// MonthService serves aggregated months from storage with an explicit
// month-id cache. Writes anywhere in the app must call Invalidate (or
// InvalidateAll) before the next read; singleflight collapses concurrent
// rebuilds of the same month.
type MonthService struct {
	store  *storage.SnapshotStore
	cache  cache.Cache[*core.AggregatedMonth]
	group  singleflight.Group
	now    func() time.Time
	logger *log.Logger
}

func NewMonthService(store *storage.SnapshotStore, months cache.Cache[*core.AggregatedMonth], logger *log.Logger) *MonthService {
	return &MonthService{
		store:  store,
		cache:  months,
		now:    time.Now,
		logger: logger.WithComponent(log.ComponentAggregation),
	}
}

// Month returns the aggregated view for monthID, building it on a cache
// miss.
func (s *MonthService) Month(ctx context.Context, monthID core.MonthID) (*core.AggregatedMonth, error) {
	if month, ok := s.cache.Get(string(monthID)); ok {
		return month, nil
	}

	result, err, _ := s.group.Do(string(monthID), func() (any, error) {
		snap, err := s.store.LoadSnapshot(ctx)
		if err != nil {
			return nil, fmt.Errorf("load snapshot: %w", err)
		}
		month := BuildAggregatedMonth(monthID, core.DateOf(s.now()), snap)
		s.cache.Set(string(monthID), month)
		s.logger.DebugContext(ctx, "aggregated month built",
			log.FieldMonth, monthID,
			"accounts", len(month.Accounts),
			"ref_errors", len(month.RefErrors))
		return month, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*core.AggregatedMonth), nil
}

// Invalidate drops one month from the cache.
func (s *MonthService) Invalidate(monthID core.MonthID) {
	s.cache.Delete(string(monthID))
}

// InvalidateAll drops every cached month; used after bulk writes such as
// backup imports and remediation fixes.
func (s *MonthService) InvalidateAll() {
	s.cache.Purge()
}
