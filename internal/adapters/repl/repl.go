package repl

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"distributor-erp/internal/app"
	"distributor-erp/internal/core"

	"github.com/google/uuid"
)

var errExit = errors.New("exit")

// session is the draft being edited at the prompt. The request is resent in
// full on every preview; its idempotency key is fixed for the life of the
// draft so a resubmission after a failure cannot duplicate it.
type session struct {
	req *app.DocumentRequest
	// draft is the builder of the last submission attempt. It is reused while
	// it waits for an existence check and rebuilt from req otherwise.
	draft *core.DraftBuilder
}

func (s *session) start(req *app.DocumentRequest) {
	if req.IdempotencyKey == "" {
		req.IdempotencyKey = uuid.NewString()
	}
	s.req = req
	s.draft = nil
}

func (s *session) close() {
	s.req = nil
	s.draft = nil
}

// awaitingCheck reports whether the last submission ended ambiguously.
func (s *session) awaitingCheck() bool {
	return s.draft != nil && s.draft.NeedsExistenceCheck()
}

// Run starts the interactive document entry loop. It returns when the input
// is exhausted or the user types /exit.
func Run(ctx context.Context, svc app.ApplicationService, reader *bufio.Reader, out io.Writer) error {
	company, err := svc.LoadDefaultCompany(ctx)
	if err != nil {
		return fmt.Errorf("failed to load company: %w", err)
	}

	fmt.Fprintln(out, "Distributor ERP")
	fmt.Fprintf(out, "Company: %s - %s (state %s)\n", company.CompanyCode, company.Name, company.StateCode)
	fmt.Fprintln(out, "Start a document with /new <type>, or use /help for commands.")
	fmt.Fprintln(out, strings.Repeat("-", 70))

	s := &session{}
	for {
		prompt := "> "
		if s.req != nil {
			prompt = s.req.TypeCode + "> "
		}
		fmt.Fprint(out, prompt)

		raw, readErr := reader.ReadString('\n')
		input := strings.TrimSpace(raw)
		if input != "" {
			if !strings.HasPrefix(input, "/") {
				fmt.Fprintln(out, "Commands start with /. Type /help for the list.")
			} else if err := dispatch(ctx, svc, reader, out, company, s, input); err != nil {
				if errors.Is(err, errExit) {
					fmt.Fprintln(out, "Goodbye.")
					return nil
				}
				reportError(out, s, err)
			}
		}
		if readErr != nil {
			fmt.Fprintln(out)
			return nil
		}
	}
}

func dispatch(ctx context.Context, svc app.ApplicationService, reader *bufio.Reader, out io.Writer, company *core.Company, s *session, input string) error {
	tokens := strings.Fields(strings.TrimPrefix(input, "/"))
	if len(tokens) == 0 {
		return nil
	}
	cmd := strings.ToLower(tokens[0])
	args := tokens[1:]
	rest := strings.TrimSpace(strings.TrimPrefix(strings.TrimPrefix(input, "/"), tokens[0]))

	switch cmd {
	case "exit", "quit":
		return errExit

	case "help", "h":
		printHelp(out)

	case "new":
		if len(args) != 1 {
			return usage("/new <type>")
		}
		typeCode := strings.ToUpper(args[0])
		if _, err := core.LookupVoucherType(typeCode); err != nil {
			return err
		}
		s.start(&app.DocumentRequest{
			CompanyCode: company.CompanyCode,
			TypeCode:    typeCode,
			Header:      core.DraftHeader{DocumentDate: time.Now().Format("2006-01-02")},
		})
		fmt.Fprintf(out, "New %s draft. Set /party, add lines with /line or /lines, then /submit.\n", typeCode)
		if cats, err := svc.ListCategories(typeCode); err == nil && len(cats) > 0 {
			printCategories(out, cats)
		}

	case "party":
		req, err := s.current()
		if err != nil {
			return err
		}
		if len(args) == 0 {
			return usage("/party <code> [name]")
		}
		req.Header.PartyCode = strings.ToUpper(args[0])
		req.Header.PartyName = strings.TrimSpace(strings.TrimPrefix(rest, args[0]))
		req.Header.PartyLedgerCode = ""
		return show(ctx, svc, out, s)

	case "date":
		req, err := s.current()
		if err != nil {
			return err
		}
		if len(args) != 1 {
			return usage("/date <YYYY-MM-DD>")
		}
		req.Header.DocumentDate = args[0]

	case "gst":
		req, err := s.current()
		if err != nil {
			return err
		}
		cats, err := svc.ListCategories(req.TypeCode)
		if err != nil {
			return err
		}
		if len(cats) == 0 {
			return fmt.Errorf("%s documents carry no GST", req.TypeCode)
		}
		if rest == "" {
			printCategories(out, cats)
			return nil
		}
		category, err := pickCategory(cats, rest)
		if err != nil {
			return err
		}
		req.GSTCategory = category
		return show(ctx, svc, out, s)

	case "set":
		req, err := s.current()
		if err != nil {
			return err
		}
		if len(args) < 1 {
			return usage("/set <field> <value>")
		}
		value := strings.TrimSpace(strings.TrimPrefix(rest, args[0]))
		if err := setField(req, strings.ToLower(args[0]), value); err != nil {
			return err
		}

	case "roundoff":
		req, err := s.current()
		if err != nil {
			return err
		}
		if len(args) != 1 || (args[0] != "on" && args[0] != "off") {
			return usage("/roundoff on|off")
		}
		req.ApplyRoundOff = args[0] == "on"
		return show(ctx, svc, out, s)

	case "line":
		req, err := s.current()
		if err != nil {
			return err
		}
		in, err := parseLine(args)
		if err != nil {
			return err
		}
		req.Lines = append(req.Lines, in)
		if err := show(ctx, svc, out, s); err != nil {
			req.Lines = req.Lines[:len(req.Lines)-1]
			return err
		}

	case "lines":
		if _, err := s.current(); err != nil {
			return err
		}
		if enterLines(reader, out, s.req) {
			return show(ctx, svc, out, s)
		}

	case "del":
		req, err := s.current()
		if err != nil {
			return err
		}
		n, err := lineIndex(args, len(req.Lines))
		if err != nil {
			return err
		}
		req.Lines = append(req.Lines[:n-1], req.Lines[n:]...)
		return show(ctx, svc, out, s)

	case "show":
		if _, err := s.current(); err != nil {
			return err
		}
		return show(ctx, svc, out, s)

	case "submit":
		if _, err := s.current(); err != nil {
			return err
		}
		blocked := s.awaitingCheck()
		if !blocked {
			d, err := svc.OpenDraft(ctx, *s.req)
			if err != nil {
				return err
			}
			s.draft = d
		}
		result, err := svc.SubmitDraft(ctx, s.draft)
		if err != nil {
			if blocked {
				return errors.New("the last submission may have been saved; run /check first, or /retry to resubmit")
			}
			return err
		}
		fmt.Fprintf(out, "Saved %s (id %d).\n", result.Document.DocumentNumber, result.Document.ID)
		printDocument(out, result.Document)
		s.close()

	case "check":
		if _, err := s.current(); err != nil {
			return err
		}
		if !s.awaitingCheck() {
			return errors.New("nothing to check; no submission of this draft has an unknown outcome")
		}
		result, err := svc.ReconcileDraft(ctx, s.draft)
		if err != nil {
			return err
		}
		if !result.Exists {
			fmt.Fprintln(out, "The draft was not saved. /submit again when ready.")
			return nil
		}
		fmt.Fprintf(out, "The draft was saved as %s.\n", result.Document.DocumentNumber)
		printDocument(out, result.Document)
		s.close()

	case "retry":
		if _, err := s.current(); err != nil {
			return err
		}
		if !s.awaitingCheck() {
			fmt.Fprintln(out, "Nothing to retry; /submit when ready.")
			return nil
		}
		s.draft.ConfirmRetry()
		fmt.Fprintln(out, "Check skipped. /submit resends the same key, so a saved draft is not duplicated.")

	case "discard":
		s.close()
		fmt.Fprintln(out, "Draft discarded.")

	case "docs":
		typeCode := ""
		if len(args) > 0 {
			typeCode = strings.ToUpper(args[0])
		}
		result, err := svc.ListDocuments(ctx, company.CompanyCode, typeCode, 20)
		if err != nil {
			return err
		}
		printDocuments(out, result)

	case "open":
		id, err := documentID(args)
		if err != nil {
			return err
		}
		result, err := svc.GetDocument(ctx, company.CompanyCode, id)
		if err != nil {
			return err
		}
		printDocument(out, result.Document)

	case "copy":
		if len(args) != 2 {
			return usage("/copy <id> <type>")
		}
		id, err := documentID(args)
		if err != nil {
			return err
		}
		req, err := svc.CopyDocument(ctx, company.CompanyCode, id, strings.ToUpper(args[1]))
		if err != nil {
			return err
		}
		s.start(req)
		fmt.Fprintf(out, "New %s draft from document %d.\n", req.TypeCode, id)
		return show(ctx, svc, out, s)

	case "cancel":
		if len(args) < 2 {
			return usage("/cancel <id> <reason>")
		}
		id, err := documentID(args)
		if err != nil {
			return err
		}
		reason := strings.TrimSpace(strings.TrimPrefix(rest, args[0]))
		result, err := svc.CancelDocument(ctx, company.CompanyCode, id, reason)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Cancelled %s.\n", result.Document.DocumentNumber)

	case "parties":
		result, err := svc.ListParties(ctx, company.CompanyCode)
		if err != nil {
			return err
		}
		printParties(out, result)

	case "bal", "balances":
		result, err := svc.GetLedgerBalances(ctx, company.CompanyCode)
		if err != nil {
			return err
		}
		printBalances(out, result)

	case "warehouses":
		result, err := svc.ListWarehouses(ctx, company.CompanyCode)
		if err != nil {
			return err
		}
		printWarehouses(out, result)

	case "stock":
		result, err := svc.GetStockLevels(ctx, company.CompanyCode)
		if err != nil {
			return err
		}
		printStockLevels(out, result)

	default:
		fmt.Fprintf(out, "Unknown command: /%s. Type /help for available commands.\n", cmd)
	}
	return nil
}

func (s *session) current() (*app.DocumentRequest, error) {
	if s.req == nil {
		return nil, errors.New("no draft open; start one with /new <type>")
	}
	return s.req, nil
}

func show(ctx context.Context, svc app.ApplicationService, out io.Writer, s *session) error {
	res, err := svc.PreviewDraft(ctx, *s.req)
	if err != nil {
		return err
	}
	printDraft(out, s.req, res)
	if s.draft != nil {
		if err := s.draft.LastError(); err != nil {
			fmt.Fprintf(out, "Last submission failed: %v\n", err)
		}
	}
	return nil
}

func reportError(out io.Writer, s *session, err error) {
	var incomplete *core.IncompleteDocumentError
	switch {
	case errors.As(err, &incomplete):
		fmt.Fprintf(out, "Cannot submit yet. Missing: %s\n", strings.Join(incomplete.Missing, ", "))
	case errors.Is(err, core.ErrAmbiguousOutcome):
		fmt.Fprintln(out, "The outcome of the submission is unknown. Run /check before submitting again.")
	case core.IsRetryable(err):
		fmt.Fprintln(out, "The server is unavailable. Nothing was saved; /submit again.")
	default:
		fmt.Fprintf(out, "Error: %v\n", err)
	}
	if s.req != nil && errors.Is(err, core.ErrAmbiguousOutcome) {
		fmt.Fprintf(out, "Idempotency key: %s\n", s.req.IdempotencyKey)
	}
}

func usage(format string) error {
	return fmt.Errorf("usage: %s", format)
}

func setField(req *app.DocumentRequest, field, value string) error {
	switch field {
	case "valid", "valid_until":
		req.Header.ValidUntil = value
	case "address", "delivery_address":
		req.Header.DeliveryAddress = value
	case "warehouse":
		req.Header.WarehouseCode = strings.ToUpper(value)
	case "ref", "reference":
		req.Header.ReferenceNumber = value
	case "narration":
		req.Header.Narration = value
	case "ledger":
		req.Header.PartyLedgerCode = strings.ToUpper(value)
	case "prefix":
		req.Prefix = strings.ToUpper(value)
	case "fy":
		req.FinancialYear = value
	case "number":
		if value == "" {
			req.ManualNumber = nil
			return nil
		}
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid number %q", value)
		}
		req.ManualNumber = &n
	default:
		return fmt.Errorf("unknown field %q", field)
	}
	return nil
}

func pickCategory(cats []string, choice string) (string, error) {
	if n, err := strconv.Atoi(choice); err == nil {
		if n < 1 || n > len(cats) {
			return "", fmt.Errorf("choose 1 to %d", len(cats))
		}
		return cats[n-1], nil
	}
	for _, c := range cats {
		if strings.EqualFold(c, choice) {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown GST category %q", choice)
}

func printCategories(out io.Writer, cats []string) {
	fmt.Fprintln(out, "GST categories:")
	for i, c := range cats {
		fmt.Fprintf(out, "  %d. %s\n", i+1, c)
	}
}

func documentID(args []string) (int64, error) {
	if len(args) == 0 {
		return 0, errors.New("document id required")
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid document id %q", args[0])
	}
	return id, nil
}

func lineIndex(args []string, count int) (int, error) {
	if len(args) != 1 {
		return 0, usage("/del <n>")
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 1 || n > count {
		return 0, fmt.Errorf("no line %s", args[0])
	}
	return n, nil
}
