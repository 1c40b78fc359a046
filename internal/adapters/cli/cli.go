package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"distributor-erp/internal/app"
)

// ErrUsage is returned for an unknown subcommand or missing arguments.
var ErrUsage = errors.New("usage")

// Run executes one one-shot command. args is os.Args[1:]; the first element
// is the subcommand name. Requests are read from stdin as JSON and results
// are written to stdout as indented JSON.
func Run(ctx context.Context, svc app.ApplicationService, args []string, stdin io.Reader, stdout io.Writer) error {
	if len(args) == 0 {
		return usage("app <command> [args]")
	}
	company, err := svc.LoadDefaultCompany(ctx)
	if err != nil {
		return fmt.Errorf("failed to load company: %w", err)
	}
	code := company.CompanyCode
	cmd, args := args[0], args[1:]

	switch cmd {
	case "types":
		return writeJSON(stdout, svc.ListVoucherTypes())

	case "categories", "cat":
		typeCode := ""
		if len(args) > 0 {
			typeCode = strings.ToUpper(args[0])
		}
		cats, err := svc.ListCategories(typeCode)
		if err != nil {
			return err
		}
		return writeJSON(stdout, cats)

	case "compute":
		var req app.ComputeLineRequest
		if err := readJSON(stdin, &req); err != nil {
			return err
		}
		result, err := svc.ComputeLine(ctx, req)
		if err != nil {
			return err
		}
		return writeJSON(stdout, result)

	case "preview", "prev":
		req, err := readRequest(stdin, code)
		if err != nil {
			return err
		}
		result, err := svc.PreviewDraft(ctx, req)
		if err != nil {
			return err
		}
		return writeJSON(stdout, result)

	case "submit", "sub":
		req, err := readRequest(stdin, code)
		if err != nil {
			return err
		}
		result, err := svc.CreateDocument(ctx, req)
		if err != nil {
			return err
		}
		return writeJSON(stdout, result.Document)

	case "check":
		if len(args) != 1 {
			return usage("app check <idempotency-key>")
		}
		result, err := svc.CheckSubmission(ctx, code, args[0])
		if err != nil {
			return err
		}
		return writeJSON(stdout, result)

	case "get":
		if len(args) != 1 {
			return usage("app get <document-id>")
		}
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		result, err := svc.GetDocument(ctx, code, id)
		if err != nil {
			return err
		}
		return writeJSON(stdout, result.Document)

	case "docs", "documents":
		typeCode, limit := "", 50
		if len(args) > 0 {
			typeCode = strings.ToUpper(args[0])
		}
		if len(args) > 1 {
			n, err := strconv.Atoi(args[1])
			if err != nil || n <= 0 {
				return fmt.Errorf("invalid limit %q", args[1])
			}
			limit = n
		}
		result, err := svc.ListDocuments(ctx, code, typeCode, limit)
		if err != nil {
			return err
		}
		return writeJSON(stdout, result)

	case "cancel":
		if len(args) < 2 {
			return usage("app cancel <document-id> <reason>")
		}
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		result, err := svc.CancelDocument(ctx, code, id, strings.Join(args[1:], " "))
		if err != nil {
			return err
		}
		return writeJSON(stdout, result.Document)

	case "copy":
		if len(args) != 2 {
			return usage("app copy <document-id> <target-type>")
		}
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		req, err := svc.CopyDocument(ctx, code, id, strings.ToUpper(args[1]))
		if err != nil {
			return err
		}
		return writeJSON(stdout, req)

	case "number", "num":
		if len(args) < 1 || len(args) > 3 {
			return usage("app number <type> [prefix] [financial-year]")
		}
		req := app.NumberPreviewRequest{CompanyCode: code, TypeCode: strings.ToUpper(args[0])}
		if len(args) > 1 && args[1] != "-" {
			req.Prefix = strings.ToUpper(args[1])
		}
		if len(args) > 2 {
			req.FinancialYear = args[2]
		}
		result, err := svc.PreviewNumber(ctx, req)
		if err != nil {
			return err
		}
		return writeJSON(stdout, result)

	case "prefixes":
		if len(args) < 1 || len(args) > 2 {
			return usage("app prefixes <type> [financial-year]")
		}
		fy := ""
		if len(args) > 1 {
			fy = args[1]
		}
		result, err := svc.ListPrefixes(ctx, code, strings.ToUpper(args[0]), fy)
		if err != nil {
			return err
		}
		return writeJSON(stdout, result)

	case "parties":
		result, err := svc.ListParties(ctx, code)
		if err != nil {
			return err
		}
		return writeJSON(stdout, result)

	case "balances", "bal":
		result, err := svc.GetLedgerBalances(ctx, code)
		if err != nil {
			return err
		}
		return writeJSON(stdout, result)

	case "warehouses":
		result, err := svc.ListWarehouses(ctx, code)
		if err != nil {
			return err
		}
		return writeJSON(stdout, result)

	case "stock":
		result, err := svc.GetStockLevels(ctx, code)
		if err != nil {
			return err
		}
		return writeJSON(stdout, result)

	case "schema":
		schema, err := svc.SubmissionSchema()
		if err != nil {
			return err
		}
		_, err = stdout.Write(append(schema, '\n'))
		return err

	default:
		return fmt.Errorf("%w: unknown command %q", ErrUsage, cmd)
	}
}

func usage(format string) error {
	return fmt.Errorf("%w: %s", ErrUsage, format)
}

// readRequest decodes a document request and defaults its company.
func readRequest(stdin io.Reader, companyCode string) (app.DocumentRequest, error) {
	var req app.DocumentRequest
	if err := readJSON(stdin, &req); err != nil {
		return req, err
	}
	if req.CompanyCode == "" {
		req.CompanyCode = companyCode
	}
	return req, nil
}

func readJSON(r io.Reader, v any) error {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid document id %q", s)
	}
	return id, nil
}
