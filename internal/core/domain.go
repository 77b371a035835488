package core

import (
	"errors"
	"strings"
	"time"
)

// AccountType classifies a bank account.
type AccountType string

const (
	AccountSavings    AccountType = "Savings"
	AccountCurrent    AccountType = "Current"
	AccountCreditCard AccountType = "CreditCard"
	AccountCash       AccountType = "Cash"
)

// TxnStatus is the settlement state of a transaction. The valid values
// differ by transaction kind: income settles to Received, expenses to Paid,
// savings/investment transfers to Completed. Pending is shared by all three.
type TxnStatus string

const (
	StatusPending   TxnStatus = "Pending"
	StatusReceived  TxnStatus = "Received"
	StatusPaid      TxnStatus = "Paid"
	StatusCompleted TxnStatus = "Completed"
)

// BucketStatus is the per-month paid/pending state of a whole bucket.
type BucketStatus string

const (
	BucketPending BucketStatus = "Pending"
	BucketPaid    BucketStatus = "Paid"
)

var (
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrInvalidDate     = errors.New("invalid date")
	ErrInvalidMonthID  = errors.New("invalid month id")
	ErrInvalidStatus   = errors.New("invalid status")
	ErrEmptyID         = errors.New("empty id")
	ErrEmptyName       = errors.New("empty name")
	ErrMissingAccount  = errors.New("missing account id")
	ErrNegativeBalance = errors.New("negative balance on non credit card account")
)

// Bank is an owning institution referenced by accounts.
type Bank struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// BankAccount is a user bank account. OpeningBalance is the fixed base the
// balance reconciler applies transaction effects on top of; CurrentBalance
// is the live figure the reconciler rewrites. Keeping the two separate is
// what prevents the reconciler from double-counting historical effects.
type BankAccount struct {
	ID             string      `json:"id"`
	BankID         string      `json:"bankId"`
	Name           string      `json:"name"`
	Type           AccountType `json:"accountType"`
	OpeningBalance Money       `json:"openingBalance"`
	CurrentBalance Money       `json:"currentBalance"`
	CreditLimit    *Money      `json:"creditLimit,omitempty"`
	Currency       string      `json:"currency"`
}

func (t AccountType) Valid() bool {
	switch t {
	case AccountSavings, AccountCurrent, AccountCreditCard, AccountCash:
		return true
	}
	return false
}

func (a BankAccount) Validate() error {
	if strings.TrimSpace(a.ID) == "" {
		return ErrEmptyID
	}
	if strings.TrimSpace(a.Name) == "" {
		return ErrEmptyName
	}
	if !a.Type.Valid() {
		return errors.New("invalid account type: " + string(a.Type))
	}
	if a.CurrentBalance.Cents < 0 && a.Type != AccountCreditCard {
		return ErrNegativeBalance
	}
	return nil
}

// IncomeTransaction records money received into an account.
type IncomeTransaction struct {
	ID                  string    `json:"id"`
	Date                Date      `json:"date"`
	Amount              Money     `json:"amount"`
	AccountID           string    `json:"accountId"`
	Status              TxnStatus `json:"status"`
	Source              string    `json:"source,omitempty"`
	RecurringTemplateID string    `json:"recurringTemplateId,omitempty"`
}

// ExpenseTransaction records money spent from an account against a bucket.
// DueDate, when set, is the date the expense is attributed to instead of
// Date (the effective-date rule), so due-date-driven buckets line up with
// calendar due cycles.
type ExpenseTransaction struct {
	ID                  string    `json:"id"`
	Date                Date      `json:"date"`
	Amount              Money     `json:"amount"`
	AccountID           string    `json:"accountId"`
	Status              TxnStatus `json:"status"`
	Bucket              string    `json:"bucket"`
	DueDate             *Date     `json:"dueDate,omitempty"`
	Description         string    `json:"description,omitempty"`
	RecurringTemplateID string    `json:"recurringTemplateId,omitempty"`
	EMIID               string    `json:"emiId,omitempty"`
}

// EffectiveDate returns the date the expense counts against: the due date
// when present, the transaction date otherwise.
func (e ExpenseTransaction) EffectiveDate() Date {
	if e.DueDate != nil && !e.DueDate.IsZero() {
		return *e.DueDate
	}
	return e.Date
}

// SavingsTransaction records a transfer out of an account into savings or
// an investment.
type SavingsTransaction struct {
	ID                  string    `json:"id"`
	Date                Date      `json:"date"`
	Amount              Money     `json:"amount"`
	AccountID           string    `json:"accountId"`
	Status              TxnStatus `json:"status"`
	Destination         string    `json:"destination,omitempty"`
	RecurringTemplateID string    `json:"recurringTemplateId,omitempty"`
}

func validateCommon(id string, amount Money, accountID string, date Date) error {
	if strings.TrimSpace(id) == "" {
		return ErrEmptyID
	}
	if amount.Cents < 0 {
		return ErrInvalidAmount
	}
	if strings.TrimSpace(accountID) == "" {
		return ErrMissingAccount
	}
	if date.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

func (t IncomeTransaction) Validate() error {
	if err := validateCommon(t.ID, t.Amount, t.AccountID, t.Date); err != nil {
		return err
	}
	if t.Status != StatusPending && t.Status != StatusReceived {
		return ErrInvalidStatus
	}
	return nil
}

func (t ExpenseTransaction) Validate() error {
	if err := validateCommon(t.ID, t.Amount, t.AccountID, t.Date); err != nil {
		return err
	}
	if t.Status != StatusPending && t.Status != StatusPaid {
		return ErrInvalidStatus
	}
	if strings.TrimSpace(t.Bucket) == "" {
		return errors.New("empty bucket")
	}
	return nil
}

func (t SavingsTransaction) Validate() error {
	if err := validateCommon(t.ID, t.Amount, t.AccountID, t.Date); err != nil {
		return err
	}
	if t.Status != StatusPending && t.Status != StatusCompleted {
		return ErrInvalidStatus
	}
	return nil
}

// Bucket is a user-configured expense category. Position orders buckets in
// the global display order; a month's bucketOrder is the subset of bucket
// ids allocated that month, in this order.
type Bucket struct {
	ID            string       `json:"id"`
	Name          string       `json:"name"`
	Color         string       `json:"color,omitempty"`
	DefaultStatus BucketStatus `json:"defaultStatus"`
	Position      int          `json:"position"`
}

// ManualAdjustment is a signed correction a user layers on top of derived
// values. AccountID and BucketID scope the adjustment: scoped to an account
// it feeds that account's remaining-cash formula, scoped to an account and
// bucket it adds back into that bucket's allocation (which is how due-date
// zeroing stays overridable).
type ManualAdjustment struct {
	ID          string `json:"id"`
	Amount      Money  `json:"amount"`
	Description string `json:"description"`
	AccountID   string `json:"accountId,omitempty"`
	BucketID    string `json:"bucketId,omitempty"`
	Date        Date   `json:"date"`
}

// RemainingCashOverride pins an account's remaining cash for one month to a
// user-supplied value, taking precedence over the formula until cleared.
type RemainingCashOverride struct {
	MonthID   MonthID   `json:"monthId"`
	AccountID string    `json:"accountId"`
	Amount    Money     `json:"amount"`
	SetAt     time.Time `json:"setAt"`
}

// RecurringTemplate generates transactions on a schedule. The engine only
// ever sees the weak back-reference from generated transactions.
type RecurringTemplate struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Amount      Money  `json:"amount"`
	Bucket      string `json:"bucket,omitempty"`
	DayOfMonth  int    `json:"dayOfMonth"`
}

// EMI is an equated monthly installment plan expenses can reference.
type EMI struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	MonthlyAmount Money  `json:"monthlyAmount"`
	AccountID     string `json:"accountId"`
	Months        int    `json:"months"`
}

// MonthSettings is the per-month configuration block: the fixed factor, the
// per-account fixed balances, and per-bucket status/due-date overrides.
// This mirrors the header block of the legacy spreadsheet's monthly sheet.
type MonthSettings struct {
	FixedFactor    Money                   `json:"fixedFactor"`
	FixedBalances  map[string]*Money       `json:"fixedBalances,omitempty"`
	StatusByBucket map[string]BucketStatus `json:"statusByBucket,omitempty"`
	DueDates       map[string]*Date        `json:"dueDates,omitempty"`
}

// Snapshot is the full persisted state handed to every engine entry point.
// Engine functions never reach into storage themselves; the caller loads a
// snapshot, the engine returns derived values, the caller owns all writes.
type Snapshot struct {
	Banks              []Bank
	Accounts           []BankAccount
	Income             []IncomeTransaction
	Expenses           []ExpenseTransaction
	Savings            []SavingsTransaction
	Buckets            []Bucket
	MonthSettings      map[MonthID]MonthSettings
	Adjustments        []ManualAdjustment
	Overrides          map[string]RemainingCashOverride
	Remaining          map[string]*Money
	RecurringTemplates []RecurringTemplate
	EMIs               []EMI
}

// MonthAccountKey builds the map key used for overrides and stored
// remaining-cash values.
func MonthAccountKey(monthID MonthID, accountID string) string {
	return string(monthID) + "|" + accountID
}
