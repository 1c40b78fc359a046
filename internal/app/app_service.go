package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"distributor-erp/internal/core"
	"distributor-erp/internal/metrics"

	"github.com/invopop/jsonschema"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// BalanceReader is the read side of the ledger.
type BalanceReader interface {
	GetBalances(ctx context.Context, companyID int) ([]core.AccountBalance, error)
}

// StockReader is the read side of the inventory.
type StockReader interface {
	GetWarehouses(ctx context.Context, companyID int) ([]core.Warehouse, error)
	GetStockLevels(ctx context.Context, companyID int) ([]core.StockLevel, error)
}

// Options carries process-level settings for the service.
type Options struct {
	CompanyCode    string
	RoundOffLedger string
	Metrics        *metrics.Metrics
	Logger         zerolog.Logger
}

type appService struct {
	documents core.DocumentService
	parties   core.PartyService
	rules     core.RuleEngine
	ledger    BalanceReader
	stock     StockReader
	submitter *core.Submitter
	metrics   *metrics.Metrics
	log       zerolog.Logger

	companyCode    string
	roundOffLedger string
	now            func() time.Time
}

// NewAppService constructs an appService that satisfies ApplicationService.
func NewAppService(
	documents core.DocumentService,
	parties core.PartyService,
	rules core.RuleEngine,
	ledger BalanceReader,
	stock StockReader,
	opts Options,
) ApplicationService {
	return &appService{
		documents:      documents,
		parties:        parties,
		rules:          rules,
		ledger:         ledger,
		stock:          stock,
		submitter:      core.NewSubmitter(documents, opts.Logger),
		metrics:        opts.Metrics,
		log:            opts.Logger,
		companyCode:    opts.CompanyCode,
		roundOffLedger: opts.RoundOffLedger,
		now:            time.Now,
	}
}

func (s *appService) company(ctx context.Context, code string) (*core.Company, error) {
	if code == "" {
		code = s.companyCode
	}
	return s.parties.GetCompanyByCode(ctx, code)
}

func (s *appService) LoadDefaultCompany(ctx context.Context) (*core.Company, error) {
	return s.company(ctx, "")
}

func (s *appService) ListVoucherTypes() []core.VoucherType {
	return core.VoucherTypes()
}

func (s *appService) ListCategories(typeCode string) ([]string, error) {
	if typeCode == "" {
		return core.CategoriesFor(""), nil
	}
	vt, err := core.LookupVoucherType(typeCode)
	if err != nil {
		return nil, err
	}
	if !vt.GSTBearing {
		return []string{}, nil
	}
	return core.CategoriesFor(vt.Side), nil
}

func (s *appService) ComputeLine(ctx context.Context, req ComputeLineRequest) (*core.LineItemComputed, error) {
	interstate := req.Interstate
	if req.GSTCategory != "" {
		is, err := core.IsInterstate(req.GSTCategory)
		if err != nil {
			return nil, err
		}
		interstate = is
	}
	c, err := core.ComputeLine(req.Line, interstate)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// buildDraft loads a request into a fresh draft. Party name and ledger are
// filled from the party master when the request leaves them empty; a party
// without its own ledger falls back to the control ledger rule of its side.
func (s *appService) buildDraft(ctx context.Context, company *core.Company, req DocumentRequest) (*core.DraftBuilder, *core.Party, error) {
	roundOff := s.roundOffLedger
	if code, err := s.rules.ResolveAccount(ctx, company.ID, core.RuleRoundOff); err == nil {
		roundOff = code
	} else if !errors.Is(err, core.ErrUnresolvedLedger) {
		return nil, nil, err
	}

	d, err := core.NewDraftBuilder(company.ID, req.TypeCode,
		core.WithIdempotencyKey(req.IdempotencyKey),
		core.WithRoundOffLedger(roundOff),
	)
	if err != nil {
		return nil, nil, err
	}
	vt := d.VoucherType()

	header := req.Header
	var party *core.Party
	if header.PartyCode != "" {
		p, err := s.parties.GetPartyByCode(ctx, company.ID, header.PartyCode)
		switch {
		case err == nil:
			party = p
			if header.PartyName == "" {
				header.PartyName = p.Name
			}
			if header.PartyLedgerCode == "" && p.LedgerCode != nil {
				header.PartyLedgerCode = *p.LedgerCode
			}
		case errors.Is(err, core.ErrValidation) && header.PartyName != "":
			// Walk-in party typed by name only.
		default:
			return nil, nil, err
		}
	}
	if vt.PostsLedger && header.PartyCode != "" && header.PartyLedgerCode == "" {
		code, err := s.rules.ResolveAccount(ctx, company.ID, core.ControlRuleFor(vt.Side))
		switch {
		case err == nil:
			header.PartyLedgerCode = code
		case !errors.Is(err, core.ErrUnresolvedLedger):
			return nil, nil, err
		}
	}

	if err := d.SetHeader(header); err != nil {
		return nil, nil, err
	}
	if req.GSTCategory != "" {
		if err := d.SetInterstateCategory(req.GSTCategory); err != nil {
			return nil, nil, err
		}
	}
	if err := d.SetRoundOff(req.ApplyRoundOff); err != nil {
		return nil, nil, err
	}
	if req.SourceDocumentID != nil {
		if err := d.SetSourceDocument(*req.SourceDocumentID); err != nil {
			return nil, nil, err
		}
	}
	if err := d.SetNumbering(core.NumberingDescriptor{
		Prefix:        req.Prefix,
		ManualNumber:  req.ManualNumber,
		FinancialYear: core.FinancialYear(req.FinancialYear),
	}); err != nil {
		return nil, nil, err
	}
	for i, l := range req.Lines {
		if _, err := d.AddLine(l); err != nil {
			return nil, nil, lineError(i+1, err)
		}
	}
	return d, party, nil
}

// lineError qualifies a line validation error with the 1-based line number.
func lineError(line int, err error) error {
	var ve *core.ValidationError
	if errors.As(err, &ve) {
		return &core.ValidationError{Field: fmt.Sprintf("lines[%d].%s", line, ve.Field), Reason: ve.Reason}
	}
	return err
}

func (s *appService) PreviewDraft(ctx context.Context, req DocumentRequest) (*DraftPreviewResult, error) {
	company, err := s.company(ctx, req.CompanyCode)
	if err != nil {
		return nil, err
	}
	d, party, err := s.buildDraft(ctx, company, req)
	if err != nil {
		return nil, err
	}
	vt := d.VoucherType()

	res := &DraftPreviewResult{
		TypeCode:       vt.Code,
		IdempotencyKey: d.IdempotencyKey(),
		Interstate:     d.Interstate(),
		Lines:          d.Lines(),
		Totals:         d.Totals(),
	}
	if vt.GSTBearing && party != nil && req.GSTCategory == "" {
		res.SuggestedCategory = core.SuggestCategory(vt.Side, company.StateCode, party.StateCode)
	}

	payload, err := d.ToSubmissionPayload()
	var incomplete *core.IncompleteDocumentError
	var unresolved *core.UnresolvedLedgerError
	switch {
	case err == nil:
		res.Postings = payload.Postings
	case errors.As(err, &incomplete):
		res.Missing = incomplete.Missing
		return res, nil
	case errors.As(err, &unresolved):
		res.Missing = append(res.Missing, unresolved.Error())
		return res, nil
	default:
		return nil, err
	}

	if req.ManualNumber == nil {
		next, err := s.documents.PreviewNextNumber(ctx, company.ID, vt.Code, payload.Numbering.Prefix, payload.Numbering.FinancialYear)
		switch {
		case err == nil:
			res.NextNumber = next
		case errors.Is(err, core.ErrPrefixNotConfigured):
			res.Missing = append(res.Missing, "prefix")
			return res, nil
		default:
			return nil, err
		}
	}
	res.Ready = true
	return res, nil
}

func (s *appService) PreviewNumber(ctx context.Context, req NumberPreviewRequest) (*core.NumberPreview, error) {
	company, err := s.company(ctx, req.CompanyCode)
	if err != nil {
		return nil, err
	}
	if _, err := core.LookupVoucherType(req.TypeCode); err != nil {
		return nil, err
	}
	fy, err := s.financialYear(req.FinancialYear, req.DocumentDate)
	if err != nil {
		return nil, err
	}
	return s.documents.PreviewNextNumber(ctx, company.ID, req.TypeCode, req.Prefix, fy)
}

// financialYear validates fy, or derives it from date, or from today when
// both are empty.
func (s *appService) financialYear(fy, date string) (core.FinancialYear, error) {
	if fy != "" {
		return core.ParseFinancialYear(fy)
	}
	if date != "" {
		t, err := time.Parse("2006-01-02", date)
		if err != nil {
			return "", &core.ValidationError{Field: "document_date", Reason: "must be YYYY-MM-DD"}
		}
		return core.FinancialYearFor(t), nil
	}
	return core.FinancialYearFor(s.now()), nil
}

func (s *appService) ListPrefixes(ctx context.Context, companyCode, typeCode, financialYear string) (*PrefixListResult, error) {
	company, err := s.company(ctx, companyCode)
	if err != nil {
		return nil, err
	}
	fy, err := s.financialYear(financialYear, "")
	if err != nil {
		return nil, err
	}
	prefixes, err := s.documents.ListPrefixes(ctx, company.ID, typeCode, fy)
	if err != nil {
		return nil, err
	}
	return &PrefixListResult{FinancialYear: fy, Prefixes: prefixes}, nil
}

func (s *appService) CreateDocument(ctx context.Context, req DocumentRequest) (*DocumentResult, error) {
	d, err := s.OpenDraft(ctx, req)
	if err != nil {
		s.metrics.ObserveSubmission(req.TypeCode, err, 0)
		return nil, err
	}
	return s.SubmitDraft(ctx, d)
}

func (s *appService) OpenDraft(ctx context.Context, req DocumentRequest) (*core.DraftBuilder, error) {
	company, err := s.company(ctx, req.CompanyCode)
	if err != nil {
		return nil, err
	}
	d, _, err := s.buildDraft(ctx, company, req)
	return d, err
}

func (s *appService) SubmitDraft(ctx context.Context, d *core.DraftBuilder) (*DocumentResult, error) {
	start := time.Now()
	doc, err := s.submitter.Submit(ctx, d)
	s.metrics.ObserveSubmission(d.VoucherType().Code, err, time.Since(start))
	if err != nil {
		return nil, err
	}
	return &DocumentResult{Document: doc}, nil
}

func (s *appService) ReconcileDraft(ctx context.Context, d *core.DraftBuilder) (*SubmissionCheckResult, error) {
	doc, err := s.submitter.Reconcile(ctx, d)
	if err != nil {
		return nil, err
	}
	return &SubmissionCheckResult{IdempotencyKey: d.IdempotencyKey(), Exists: doc != nil, Document: doc}, nil
}

func (s *appService) CheckSubmission(ctx context.Context, companyCode, idempotencyKey string) (*SubmissionCheckResult, error) {
	if idempotencyKey == "" {
		return nil, &core.ValidationError{Field: "idempotency_key", Reason: "is required"}
	}
	idempotencyKey, err := core.ParseIdempotencyKey(idempotencyKey)
	if err != nil {
		return nil, err
	}
	company, err := s.company(ctx, companyCode)
	if err != nil {
		return nil, err
	}
	doc, err := s.documents.FindByIdempotencyKey(ctx, company.ID, idempotencyKey)
	if err != nil {
		if errors.Is(err, core.ErrDocumentNotFound) {
			return &SubmissionCheckResult{IdempotencyKey: idempotencyKey}, nil
		}
		return nil, err
	}
	return &SubmissionCheckResult{IdempotencyKey: idempotencyKey, Exists: true, Document: doc}, nil
}

func (s *appService) GetDocument(ctx context.Context, companyCode string, id int64) (*DocumentResult, error) {
	company, err := s.company(ctx, companyCode)
	if err != nil {
		return nil, err
	}
	doc, err := s.documents.GetDocumentByID(ctx, company.ID, id)
	if err != nil {
		return nil, err
	}
	return &DocumentResult{Document: doc}, nil
}

func (s *appService) ListDocuments(ctx context.Context, companyCode, typeCode string, limit int) (*DocumentListResult, error) {
	company, err := s.company(ctx, companyCode)
	if err != nil {
		return nil, err
	}
	if typeCode != "" {
		if _, err := core.LookupVoucherType(typeCode); err != nil {
			return nil, err
		}
	}
	docs, err := s.documents.ListDocuments(ctx, company.ID, typeCode, limit)
	if err != nil {
		return nil, err
	}
	return &DocumentListResult{CompanyCode: company.CompanyCode, Documents: docs}, nil
}

func (s *appService) CancelDocument(ctx context.Context, companyCode string, id int64, reason string) (*DocumentResult, error) {
	if reason == "" {
		return nil, &core.ValidationError{Field: "reason", Reason: "is required"}
	}
	company, err := s.company(ctx, companyCode)
	if err != nil {
		return nil, err
	}
	doc, err := s.documents.CancelDocument(ctx, company.ID, id, reason)
	if err != nil {
		return nil, err
	}
	s.log.Info().Int64("document_id", id).Str("document_number", doc.DocumentNumber).Msg("document cancelled")
	return &DocumentResult{Document: doc}, nil
}

// CopyDocument prefills a draft of targetType from a stored document. The
// copy gets today's date, a fresh idempotency key and a link to the source.
// GST rates are cleared when the target type carries no GST.
func (s *appService) CopyDocument(ctx context.Context, companyCode string, sourceID int64, targetType string) (*DocumentRequest, error) {
	target, err := core.LookupVoucherType(targetType)
	if err != nil {
		return nil, err
	}
	company, err := s.company(ctx, companyCode)
	if err != nil {
		return nil, err
	}
	src, err := s.documents.GetDocumentByID(ctx, company.ID, sourceID)
	if err != nil {
		return nil, err
	}
	if !core.CanCopy(src.TypeCode, target.Code) {
		return nil, &core.ConfigurationError{Details: fmt.Sprintf("cannot create %s from %s", target.Code, src.TypeCode)}
	}
	if src.Status != core.DocumentStatusPosted {
		return nil, &core.ValidationError{Field: "source_document_id", Reason: fmt.Sprintf("document is %s", src.Status)}
	}

	id := src.ID
	req := &DocumentRequest{
		CompanyCode: company.CompanyCode,
		TypeCode:    target.Code,
		Header: core.DraftHeader{
			PartyCode:       src.Header.PartyCode,
			PartyName:       src.Header.PartyName,
			PartyLedgerCode: src.Header.PartyLedgerCode,
			DocumentDate:    s.now().Format("2006-01-02"),
			DeliveryAddress: src.Header.DeliveryAddress,
			WarehouseCode:   src.Header.WarehouseCode,
			ReferenceNumber: src.DocumentNumber,
			Narration:       src.Header.Narration,
		},
		ApplyRoundOff:    src.RoundOffApplied,
		SourceDocumentID: &id,
		Lines:            make([]core.LineItemInput, 0, len(src.Lines)),
	}
	if target.GSTBearing {
		req.GSTCategory = src.GSTCategory
	}
	for _, l := range src.Lines {
		in := l.Input
		if !target.GSTBearing {
			in.GSTPercent = decimal.Zero
		}
		req.Lines = append(req.Lines, in)
	}
	return req, nil
}

func (s *appService) SubmissionSchema() ([]byte, error) {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	schema := reflector.Reflect(&DocumentRequest{})
	return json.MarshalIndent(schema, "", "  ")
}

func (s *appService) ListParties(ctx context.Context, companyCode string) (*PartyListResult, error) {
	company, err := s.company(ctx, companyCode)
	if err != nil {
		return nil, err
	}
	parties, err := s.parties.GetParties(ctx, company.ID)
	if err != nil {
		return nil, err
	}
	return &PartyListResult{Parties: parties}, nil
}

func (s *appService) CreateParty(ctx context.Context, req CreatePartyRequest) (*core.Party, error) {
	company, err := s.company(ctx, req.CompanyCode)
	if err != nil {
		return nil, err
	}
	return s.parties.CreateParty(ctx, company.ID, core.PartyInput{
		Code:       req.Code,
		Name:       req.Name,
		Kind:       req.Kind,
		GSTIN:      req.GSTIN,
		StateCode:  req.StateCode,
		LedgerCode: req.LedgerCode,
	})
}

func (s *appService) GetLedgerBalances(ctx context.Context, companyCode string) (*BalancesResult, error) {
	company, err := s.company(ctx, companyCode)
	if err != nil {
		return nil, err
	}
	balances, err := s.ledger.GetBalances(ctx, company.ID)
	if err != nil {
		return nil, err
	}
	return &BalancesResult{CompanyCode: company.CompanyCode, CompanyName: company.Name, Accounts: balances}, nil
}

func (s *appService) ListWarehouses(ctx context.Context, companyCode string) (*WarehouseListResult, error) {
	company, err := s.company(ctx, companyCode)
	if err != nil {
		return nil, err
	}
	warehouses, err := s.stock.GetWarehouses(ctx, company.ID)
	if err != nil {
		return nil, err
	}
	return &WarehouseListResult{Warehouses: warehouses}, nil
}

func (s *appService) GetStockLevels(ctx context.Context, companyCode string) (*StockResult, error) {
	company, err := s.company(ctx, companyCode)
	if err != nil {
		return nil, err
	}
	levels, err := s.stock.GetStockLevels(ctx, company.ID)
	if err != nil {
		return nil, err
	}
	return &StockResult{Levels: levels, CompanyCode: company.CompanyCode}, nil
}
