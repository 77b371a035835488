package core

// AggregatedAccount is the per-account slice of an aggregated month.
// RemainingCash and FixedBalance are nil when unresolved, which is distinct
// from resolved-to-zero; the month's RefErrors name what was missing.
type AggregatedAccount struct {
	ID              string            `json:"id"`
	AccountName     string            `json:"accountName"`
	AccountType     AccountType       `json:"accountType"`
	FixedBalance    *Money            `json:"fixedBalance"`
	SavingsTransfer Money             `json:"savingsTransfer"`
	RemainingCash   *Money            `json:"remainingCash"`
	BucketAmounts   map[string]*Money `json:"bucketAmounts"`
}

// RefError records one unresolved derivation inside an aggregated month.
// Inherited terminology: the legacy spreadsheet showed these cells as #REF!.
type RefError struct {
	AccountID string `json:"accountId"`
	Field     string `json:"field"`
	Message   string `json:"message"`
}

// AggregatedMonth is the derived month view. It is rebuilt from a snapshot
// on every read and never persisted as source of truth.
type AggregatedMonth struct {
	ID                MonthID                 `json:"id"`
	MonthStart        Date                    `json:"monthStart"`
	InflowTotal       Money                   `json:"inflowTotal"`
	FixedFactor       Money                   `json:"fixedFactor"`
	Accounts          []AggregatedAccount     `json:"accounts"`
	BucketOrder       []string                `json:"bucketOrder"`
	StatusByBucket    map[string]BucketStatus `json:"statusByBucket"`
	DueDates          map[string]*Date        `json:"dueDates"`
	ManualAdjustments []ManualAdjustment      `json:"manualAdjustments"`
	RefErrors         []RefError              `json:"refErrors"`
}

// Account returns the aggregated account with the given id, or nil.
func (m *AggregatedMonth) Account(accountID string) *AggregatedAccount {
	for i := range m.Accounts {
		if m.Accounts[i].ID == accountID {
			return &m.Accounts[i]
		}
	}
	return nil
}

// BucketTotals partitions a month's bucket allocations by payment status.
// Every bucket in bucketOrder appears in All, with zero when nothing was
// allocated; Pending and Paid split All according to statusByBucket.
type BucketTotals struct {
	All     map[string]Money `json:"all"`
	Pending map[string]Money `json:"pending"`
	Paid    map[string]Money `json:"paid"`
}

// MissingData describes how much raw data backs a ref-error issue.
type MissingData struct {
	TransactionCount int  `json:"transactionCount"`
	HasIncome        bool `json:"hasIncome"`
	HasExpense       bool `json:"hasExpense"`
	HasSavings       bool `json:"hasSavings"`
}

// RefErrorIssue is one remaining-cash discrepancy found by the remediator.
// Transient: issues are recomputed on every scan and never persisted.
type RefErrorIssue struct {
	MonthID                 MonthID     `json:"monthId"`
	AccountID               string      `json:"accountId"`
	AccountName             string      `json:"accountName"`
	CurrentRemainingCash    *Money      `json:"currentRemainingCash"`
	CalculatedRemainingCash *Money      `json:"calculatedRemainingCash"`
	CanAutoFix              bool        `json:"canAutoFix"`
	MissingData             MissingData `json:"missingData"`
}

// IntegrityIssue is a single finding from the integrity validator.
type IntegrityIssue struct {
	Kind    string `json:"kind"`
	Entity  string `json:"entity"`
	ID      string `json:"id"`
	Message string `json:"message"`
}

// IntegrityReport is the result of a full read-only validation pass.
// Errors are structural (dangling hard references); warnings are
// informational and never block anything.
type IntegrityReport struct {
	IsValid  bool             `json:"isValid"`
	Errors   []IntegrityIssue `json:"errors"`
	Warnings []IntegrityIssue `json:"warnings"`
}
