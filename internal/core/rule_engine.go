package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Rule types understood by the account_rules table.
const (
	RulePurchaseControl = "PURCHASE_CONTROL"
	RuleSalesControl    = "SALES_CONTROL"
	RuleRoundOff        = "ROUND_OFF"
)

// RuleEngine resolves configurable ledger mappings from the account_rules table.
type RuleEngine interface {
	ResolveAccount(ctx context.Context, companyID int, ruleType string) (string, error)
}

type ruleEngine struct {
	pool *pgxpool.Pool
}

// NewRuleEngine constructs a RuleEngine backed by the account_rules table.
func NewRuleEngine(pool *pgxpool.Pool) RuleEngine {
	return &ruleEngine{pool: pool}
}

// ResolveAccount returns the ledger code for (companyID, ruleType), highest
// priority first. A missing rule wraps ErrUnresolvedLedger.
func (r *ruleEngine) ResolveAccount(ctx context.Context, companyID int, ruleType string) (string, error) {
	var accountCode string
	err := r.pool.QueryRow(ctx, `
		SELECT account_code
		FROM account_rules
		WHERE company_id = $1
		  AND rule_type = $2
		  AND (effective_to IS NULL OR effective_to >= CURRENT_DATE)
		ORDER BY priority DESC
		LIMIT 1
	`, companyID, ruleType).Scan(&accountCode)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", fmt.Errorf("%w: no account rule for company_id %d, rule_type %q", ErrUnresolvedLedger, companyID, ruleType)
		}
		return "", classify(fmt.Errorf("failed to resolve account rule (company_id=%d, rule_type=%q): %w", companyID, ruleType, err))
	}
	return accountCode, nil
}

// ControlRuleFor is the rule consulted when a party has no ledger of its own.
func ControlRuleFor(side Side) string {
	if side == SidePurchase {
		return RulePurchaseControl
	}
	return RuleSalesControl
}
