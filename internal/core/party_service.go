package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PartyInput holds the fields required to create a customer or supplier.
type PartyInput struct {
	Code       string  `json:"code"`
	Name       string  `json:"name"`
	Kind       string  `json:"kind"`
	GSTIN      *string `json:"gstin,omitempty"`
	StateCode  string  `json:"state_code"`
	LedgerCode *string `json:"ledger_code,omitempty"`
}

// PartyService provides company and party master data.
type PartyService interface {
	GetCompanyByCode(ctx context.Context, companyCode string) (*Company, error)
	CreateParty(ctx context.Context, companyID int, input PartyInput) (*Party, error)
	GetParties(ctx context.Context, companyID int) ([]Party, error)
	GetPartyByCode(ctx context.Context, companyID int, code string) (*Party, error)
}

type partyService struct {
	pool *pgxpool.Pool
}

// NewPartyService constructs a PartyService backed by PostgreSQL.
func NewPartyService(pool *pgxpool.Pool) PartyService {
	return &partyService{pool: pool}
}

func (s *partyService) GetCompanyByCode(ctx context.Context, companyCode string) (*Company, error) {
	c := &Company{}
	err := s.pool.QueryRow(ctx,
		"SELECT id, company_code, name, state_code FROM companies WHERE company_code = $1",
		companyCode,
	).Scan(&c.ID, &c.CompanyCode, &c.Name, &c.StateCode)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &ConfigurationError{Details: fmt.Sprintf("company code %s not found", companyCode)}
		}
		return nil, classify(fmt.Errorf("failed to resolve company: %w", err))
	}
	return c, nil
}

const partyColumns = "id, company_id, code, name, kind, gstin, state_code, ledger_code, is_active"

func scanParty(row pgx.Row) (*Party, error) {
	p := &Party{}
	err := row.Scan(&p.ID, &p.CompanyID, &p.Code, &p.Name, &p.Kind, &p.GSTIN, &p.StateCode, &p.LedgerCode, &p.IsActive)
	return p, err
}

func (s *partyService) CreateParty(ctx context.Context, companyID int, input PartyInput) (*Party, error) {
	if input.Code == "" {
		return nil, invalid("code", "is required")
	}
	if input.Name == "" {
		return nil, invalid("name", "is required")
	}
	kind := input.Kind
	if kind == "" {
		kind = "both"
	}
	p, err := scanParty(s.pool.QueryRow(ctx, `
		INSERT INTO parties (company_id, code, name, kind, gstin, state_code, ledger_code)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+partyColumns,
		companyID, input.Code, input.Name, kind, input.GSTIN, input.StateCode, input.LedgerCode,
	))
	if err != nil {
		return nil, classify(fmt.Errorf("create party %q: %w", input.Code, err))
	}
	return p, nil
}

// GetParties returns all active parties for a company, ordered by code.
func (s *partyService) GetParties(ctx context.Context, companyID int) ([]Party, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+partyColumns+`
		FROM parties
		WHERE company_id = $1 AND is_active = true
		ORDER BY code`,
		companyID,
	)
	if err != nil {
		return nil, classify(fmt.Errorf("get parties: %w", err))
	}
	defer rows.Close()

	var parties []Party
	for rows.Next() {
		p, err := scanParty(rows)
		if err != nil {
			return nil, fmt.Errorf("scan party: %w", err)
		}
		parties = append(parties, *p)
	}
	return parties, rows.Err()
}

func (s *partyService) GetPartyByCode(ctx context.Context, companyID int, code string) (*Party, error) {
	p, err := scanParty(s.pool.QueryRow(ctx, `
		SELECT `+partyColumns+`
		FROM parties
		WHERE company_id = $1 AND code = $2`,
		companyID, code,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, invalid("party", fmt.Sprintf("party %q not found", code))
		}
		return nil, classify(fmt.Errorf("get party %q: %w", code, err))
	}
	return p, nil
}
