package services

import (
	"fmt"

	"hisab/internal/core"
)

// Issue kinds reported by ValidateSnapshot.
const (
	IssueDanglingAccount  = "dangling_account"
	IssueDanglingBank     = "dangling_bank"
	IssueDanglingTemplate = "dangling_template"
	IssueDanglingEMI      = "dangling_emi"
	IssueNegativeBalance  = "negative_balance"
	IssueDuplicateTxn     = "duplicate_transaction"
	IssueFutureDate       = "future_date"
)

// ValidateSnapshot runs the read-only integrity pass: dangling hard
// references are errors, everything else (negative balances, duplicate
// signatures, far-future dates) is a warning. Single pass over each
// collection after building the id lookup maps, so linear in the number of
// transactions. Nothing is ever auto-corrected here.
func ValidateSnapshot(snap *core.Snapshot, today core.Date) core.IntegrityReport {
	report := core.IntegrityReport{IsValid: true}

	accounts := make(map[string]core.BankAccount, len(snap.Accounts))
	for _, a := range snap.Accounts {
		accounts[a.ID] = a
	}
	banks := make(map[string]bool, len(snap.Banks))
	for _, b := range snap.Banks {
		banks[b.ID] = true
	}
	templates := make(map[string]bool, len(snap.RecurringTemplates))
	for _, t := range snap.RecurringTemplates {
		templates[t.ID] = true
	}
	emis := make(map[string]bool, len(snap.EMIs))
	for _, e := range snap.EMIs {
		emis[e.ID] = true
	}

	addError := func(issue core.IntegrityIssue) {
		report.Errors = append(report.Errors, issue)
		report.IsValid = false
	}
	// Dangling account references are reported once per missing account,
	// not once per transaction pointing at it.
	missingAccounts := make(map[string]bool)
	danglingAccount := func(entity, id, accountID string) {
		if _, ok := accounts[accountID]; ok {
			return
		}
		if missingAccounts[accountID] {
			return
		}
		missingAccounts[accountID] = true
		addError(core.IntegrityIssue{
			Kind:    IssueDanglingAccount,
			Entity:  entity,
			ID:      id,
			Message: fmt.Sprintf("account %s referenced by %s %s does not exist", accountID, entity, id),
		})
	}
	// Weak references: a missing recurring template or EMI is a warning,
	// never a structural error.
	weakRef := func(kind, entity, id, refID string, ok bool) {
		if refID == "" || ok {
			return
		}
		report.Warnings = append(report.Warnings, core.IntegrityIssue{
			Kind:    kind,
			Entity:  entity,
			ID:      id,
			Message: fmt.Sprintf("%s %s references missing %s %s", entity, id, kind, refID),
		})
	}

	yearAhead := core.DateOf(today.Truncated().AddDate(1, 0, 0))
	futureDate := func(entity, id string, date core.Date) {
		if !yearAhead.Before(date) {
			return
		}
		report.Warnings = append(report.Warnings, core.IntegrityIssue{
			Kind:    IssueFutureDate,
			Entity:  entity,
			ID:      id,
			Message: fmt.Sprintf("%s %s is dated %s, more than a year ahead", entity, id, date),
		})
	}

	signatures := make(map[string]string)
	duplicate := func(entity, id, signature string) {
		if firstID, ok := signatures[signature]; ok {
			report.Warnings = append(report.Warnings, core.IntegrityIssue{
				Kind:    IssueDuplicateTxn,
				Entity:  entity,
				ID:      id,
				Message: fmt.Sprintf("%s %s duplicates %s (%s)", entity, id, firstID, signature),
			})
			return
		}
		signatures[signature] = id
	}

	for _, a := range snap.Accounts {
		if a.BankID != "" && !banks[a.BankID] {
			addError(core.IntegrityIssue{
				Kind:    IssueDanglingBank,
				Entity:  "account",
				ID:      a.ID,
				Message: fmt.Sprintf("bank %s referenced by account %s does not exist", a.BankID, a.ID),
			})
		}
		if a.CurrentBalance.Cents < 0 && a.Type != core.AccountCreditCard {
			report.Warnings = append(report.Warnings, core.IntegrityIssue{
				Kind:    IssueNegativeBalance,
				Entity:  "account",
				ID:      a.ID,
				Message: fmt.Sprintf("%s account %s has negative balance %s", a.Type, a.Name, a.CurrentBalance),
			})
		}
	}

	for _, t := range snap.Income {
		danglingAccount("income", t.ID, t.AccountID)
		weakRef(IssueDanglingTemplate, "income", t.ID, t.RecurringTemplateID, templates[t.RecurringTemplateID])
		futureDate("income", t.ID, t.Date)
		duplicate("income", t.ID, fmt.Sprintf("income|%s|%d|%s|%s", t.AccountID, t.Amount.Cents, t.Date, t.Source))
	}
	for _, t := range snap.Expenses {
		danglingAccount("expense", t.ID, t.AccountID)
		weakRef(IssueDanglingTemplate, "expense", t.ID, t.RecurringTemplateID, templates[t.RecurringTemplateID])
		weakRef(IssueDanglingEMI, "expense", t.ID, t.EMIID, emis[t.EMIID])
		futureDate("expense", t.ID, t.Date)
		duplicate("expense", t.ID, fmt.Sprintf("expense|%s|%d|%s|%s", t.AccountID, t.Amount.Cents, t.Date, t.Description))
	}
	for _, t := range snap.Savings {
		danglingAccount("savings", t.ID, t.AccountID)
		weakRef(IssueDanglingTemplate, "savings", t.ID, t.RecurringTemplateID, templates[t.RecurringTemplateID])
		futureDate("savings", t.ID, t.Date)
		duplicate("savings", t.ID, fmt.Sprintf("savings|%s|%d|%s|%s", t.AccountID, t.Amount.Cents, t.Date, t.Destination))
	}

	return report
}
