package core

import (
	"fmt"

	"github.com/shopspring/decimal"
)

type PostingDirection string

const (
	Debit  PostingDirection = "DEBIT"
	Credit PostingDirection = "CREDIT"
)

// LedgerPosting is one journal line derived from a document.
type LedgerPosting struct {
	LedgerCode string           `json:"ledger_code" jsonschema_description:"Ledger (account) code"`
	Direction  PostingDirection `json:"direction" jsonschema:"enum=DEBIT,enum=CREDIT"`
	Amount     decimal.Decimal  `json:"amount" jsonschema_description:"Always positive"`
	Narration  string           `json:"narration,omitempty"`
}

// DefaultRoundOffLedger receives the round-off adjustment when none is configured.
const DefaultRoundOffLedger = "ROUND_OFF"

// DerivePostings builds the journal for a ledger-posting document:
//
//	DR each distinct line ledger   sum of its line totals (incl. tax)
//	CR counterparty ledger         net amount
//	DR/CR round-off ledger         |round off|, only when non-zero
//
// Line ledgers keep their first-appearance order so the result is
// deterministic. Debits always equal credits.
func DerivePostings(lines []DocumentLine, totals DocumentTotals, counterpartyLedger, roundOffLedger string) ([]LedgerPosting, error) {
	if counterpartyLedger == "" {
		return nil, &UnresolvedLedgerError{Line: 0}
	}
	if roundOffLedger == "" {
		roundOffLedger = DefaultRoundOffLedger
	}

	var order []string
	byLedger := make(map[string]decimal.Decimal)
	for _, l := range lines {
		code := l.Input.LedgerCode
		if code == "" {
			return nil, &UnresolvedLedgerError{Line: l.LineNumber}
		}
		if _, seen := byLedger[code]; !seen {
			order = append(order, code)
			byLedger[code] = decimal.Zero
		}
		byLedger[code] = byLedger[code].Add(l.Computed.TotalAmount)
	}

	postings := make([]LedgerPosting, 0, len(order)+2)
	for _, code := range order {
		postings = append(postings, LedgerPosting{
			LedgerCode: code,
			Direction:  Debit,
			Amount:     byLedger[code],
		})
	}
	postings = append(postings, LedgerPosting{
		LedgerCode: counterpartyLedger,
		Direction:  Credit,
		Amount:     totals.NetAmount,
	})

	switch {
	case totals.RoundOff.IsPositive():
		postings = append(postings, LedgerPosting{LedgerCode: roundOffLedger, Direction: Debit, Amount: totals.RoundOff, Narration: "Round off"})
	case totals.RoundOff.IsNegative():
		postings = append(postings, LedgerPosting{LedgerCode: roundOffLedger, Direction: Credit, Amount: totals.RoundOff.Neg(), Narration: "Round off"})
	}

	if err := checkBalanced(postings); err != nil {
		return nil, err
	}
	return postings, nil
}

// checkBalanced enforces debits == credits.
func checkBalanced(postings []LedgerPosting) error {
	debits, credits := decimal.Zero, decimal.Zero
	for _, p := range postings {
		if p.Amount.IsNegative() {
			return fmt.Errorf("posting to %s has negative amount %s", p.LedgerCode, p.Amount)
		}
		if p.Direction == Debit {
			debits = debits.Add(p.Amount)
		} else {
			credits = credits.Add(p.Amount)
		}
	}
	if !debits.Equal(credits) {
		return fmt.Errorf("postings imbalance: debits %s != credits %s", debits, credits)
	}
	return nil
}
