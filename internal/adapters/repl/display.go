package repl

import (
	"fmt"
	"io"
	"strings"

	"distributor-erp/internal/app"
	"distributor-erp/internal/core"
)

func printBalances(w io.Writer, result *app.BalancesResult) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, strings.Repeat("=", 62))
	fmt.Fprintf(w, "  %-58s\n", "LEDGER BALANCES")
	fmt.Fprintf(w, "  Company  : %s - %s\n", result.CompanyCode, result.CompanyName)
	fmt.Fprintln(w, strings.Repeat("=", 62))
	fmt.Fprintf(w, "  %-10s %-30s %15s\n", "CODE", "NAME", "BALANCE")
	fmt.Fprintln(w, strings.Repeat("-", 62))
	for _, b := range result.Accounts {
		fmt.Fprintf(w, "  %-10s %-30s %15s\n", b.Code, b.Name, b.Balance.StringFixed(2))
	}
	fmt.Fprintln(w, strings.Repeat("=", 62))
}

func printDraft(w io.Writer, req *app.DocumentRequest, res *app.DraftPreviewResult) {
	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s draft  (key %s)\n", req.TypeCode, res.IdempotencyKey)
	h := req.Header
	fmt.Fprintf(w, "  Party    : %s %s\n", h.PartyCode, h.PartyName)
	fmt.Fprintf(w, "  Date     : %s\n", h.DocumentDate)
	if req.GSTCategory != "" {
		fmt.Fprintf(w, "  GST      : %s\n", req.GSTCategory)
	} else if res.SuggestedCategory != "" {
		fmt.Fprintf(w, "  GST      : (not set, suggested %s)\n", res.SuggestedCategory)
	}
	if h.WarehouseCode != "" {
		fmt.Fprintf(w, "  Warehouse: %s\n", h.WarehouseCode)
	}
	if h.ReferenceNumber != "" {
		fmt.Fprintf(w, "  Reference: %s\n", h.ReferenceNumber)
	}

	fmt.Fprintln(w, strings.Repeat("-", 78))
	fmt.Fprintf(w, "  %-3s %-10s %9s %11s %6s %5s %12s %12s\n", "#", "ITEM", "QTY", "PRICE", "DISC%", "GST%", "TAX", "TOTAL")
	for _, l := range res.Lines {
		fmt.Fprintf(w, "  %-3d %-10s %9s %11s %6s %5s %12s %12s\n",
			l.LineNumber, l.Input.ItemCode, l.Input.Quantity.String(), l.Input.UnitPrice.StringFixed(2),
			l.Input.DiscountPercent.String(), l.Input.GSTPercent.String(),
			l.Computed.TaxAmount().StringFixed(2), l.Computed.TotalAmount.StringFixed(2))
	}
	fmt.Fprintln(w, strings.Repeat("-", 78))

	t := res.Totals
	fmt.Fprintf(w, "  %-20s %15s\n", "Subtotal", t.Subtotal.StringFixed(2))
	if res.Interstate {
		fmt.Fprintf(w, "  %-20s %15s\n", "IGST", t.TotalIGST.StringFixed(2))
	} else {
		fmt.Fprintf(w, "  %-20s %15s\n", "CGST", t.TotalCGST.StringFixed(2))
		fmt.Fprintf(w, "  %-20s %15s\n", "SGST", t.TotalSGST.StringFixed(2))
	}
	if !t.RoundOff.IsZero() {
		fmt.Fprintf(w, "  %-20s %15s\n", "Round off", t.RoundOff.StringFixed(2))
	}
	fmt.Fprintf(w, "  %-20s %15s\n", "NET AMOUNT", t.NetAmount.StringFixed(2))

	if len(res.Postings) > 0 {
		fmt.Fprintln(w, "  Postings:")
		for _, p := range res.Postings {
			dOrC := "CR"
			if p.Direction == core.Debit {
				dOrC = "DR"
			}
			fmt.Fprintf(w, "    [%s] %-10s %15s\n", dOrC, p.LedgerCode, p.Amount.StringFixed(2))
		}
	}

	if res.Ready {
		if res.NextNumber != nil {
			fmt.Fprintf(w, "Ready to submit. Next number (not reserved): %s\n", res.NextNumber.FormattedNumber)
		} else {
			fmt.Fprintln(w, "Ready to submit.")
		}
		return
	}
	if len(res.Missing) > 0 {
		fmt.Fprintf(w, "Missing: %s\n", strings.Join(res.Missing, ", "))
	}
}

func printDocument(w io.Writer, d *core.Document) {
	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s  %s  [%s]\n", d.DocumentNumber, d.TypeCode, d.Status)
	fmt.Fprintf(w, "  Party : %s %s\n", d.Header.PartyCode, d.Header.PartyName)
	fmt.Fprintf(w, "  Date  : %s\n", d.Header.DocumentDate)
	fmt.Fprintf(w, "  Lines : %d\n", len(d.Lines))
	fmt.Fprintf(w, "  Net   : %s\n", d.Totals.NetAmount.StringFixed(2))
}

func printDocuments(w io.Writer, result *app.DocumentListResult) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, strings.Repeat("=", 72))
	fmt.Fprintf(w, "  DOCUMENTS - Company %s\n", result.CompanyCode)
	fmt.Fprintln(w, strings.Repeat("=", 72))
	if len(result.Documents) == 0 {
		fmt.Fprintln(w, "  No documents found.")
		fmt.Fprintln(w, strings.Repeat("=", 72))
		return
	}
	fmt.Fprintf(w, "  %-5s %-14s %-5s %-10s %-12s %-10s %12s\n", "ID", "NUMBER", "TYPE", "STATUS", "DATE", "PARTY", "NET")
	fmt.Fprintln(w, strings.Repeat("-", 72))
	for _, d := range result.Documents {
		fmt.Fprintf(w, "  %-5d %-14s %-5s %-10s %-12s %-10s %12s\n",
			d.ID, d.DocumentNumber, d.TypeCode, d.Status, d.Header.DocumentDate, d.Header.PartyCode, d.Totals.NetAmount.StringFixed(2))
	}
	fmt.Fprintln(w, strings.Repeat("=", 72))
}

func printParties(w io.Writer, result *app.PartyListResult) {
	fmt.Fprintln(w)
	if len(result.Parties) == 0 {
		fmt.Fprintln(w, "  No parties found.")
		return
	}
	fmt.Fprintf(w, "  %-8s %-28s %-9s %-6s %s\n", "CODE", "NAME", "KIND", "STATE", "LEDGER")
	fmt.Fprintln(w, strings.Repeat("-", 62))
	for _, p := range result.Parties {
		ledger := ""
		if p.LedgerCode != nil {
			ledger = *p.LedgerCode
		}
		fmt.Fprintf(w, "  %-8s %-28s %-9s %-6s %s\n", p.Code, p.Name, p.Kind, p.StateCode, ledger)
	}
}

func printWarehouses(w io.Writer, result *app.WarehouseListResult) {
	fmt.Fprintln(w)
	if len(result.Warehouses) == 0 {
		fmt.Fprintln(w, "  No warehouses found.")
		return
	}
	for _, wh := range result.Warehouses {
		fmt.Fprintf(w, "  %-8s %s\n", wh.Code, wh.Name)
	}
}

func printStockLevels(w io.Writer, result *app.StockResult) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, strings.Repeat("=", 72))
	fmt.Fprintf(w, "  STOCK LEVELS - Company %s\n", result.CompanyCode)
	fmt.Fprintln(w, strings.Repeat("=", 72))
	if len(result.Levels) == 0 {
		fmt.Fprintln(w, "  No stock on hand.")
		fmt.Fprintln(w, strings.Repeat("=", 72))
		return
	}
	fmt.Fprintf(w, "  %-10s %-24s %-8s %12s %12s\n", "ITEM", "NAME", "WH", "ON HAND", "UNIT COST")
	fmt.Fprintln(w, strings.Repeat("-", 72))
	for _, l := range result.Levels {
		fmt.Fprintf(w, "  %-10s %-24s %-8s %12s %12s\n",
			l.ItemCode, l.ItemName, l.WarehouseCode, l.OnHand.String(), l.UnitCost.StringFixed(2))
	}
	fmt.Fprintln(w, strings.Repeat("=", 72))
}

func printHelp(w io.Writer) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, "DOCUMENT ENTRY - COMMANDS")
	fmt.Fprintln(w, strings.Repeat("=", 62))
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  DRAFT")
	fmt.Fprintln(w, "  /new <type>                      Start a draft (ENQ QTN SO DC PO EXP GI)")
	fmt.Fprintln(w, "  /party <code> [name]             Set the party; an unknown code with a name is a walk-in")
	fmt.Fprintln(w, "  /date <YYYY-MM-DD>               Document date")
	fmt.Fprintln(w, "  /gst <n|name>                    GST category by list number or name")
	fmt.Fprintln(w, "  /set <field> <value>             valid_until, address, warehouse, ref, narration, prefix, number, fy")
	fmt.Fprintln(w, "  /roundoff on|off                 Round the net amount to the rupee")
	fmt.Fprintln(w, "  /line <item|-> <qty> <price> [disc%] [gst%] [ledger]")
	fmt.Fprintln(w, "  /del <n>                         Remove line n")
	fmt.Fprintln(w, "  /show                            Recompute and show the draft")
	fmt.Fprintln(w, "  /submit                          Allocate a number and save")
	fmt.Fprintln(w, "  /check                           Look up the draft after an unknown outcome")
	fmt.Fprintln(w, "  /retry                           Allow resubmitting without the check")
	fmt.Fprintln(w, "  /discard                         Drop the draft")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  DOCUMENTS")
	fmt.Fprintln(w, "  /docs [type]                     Recent documents")
	fmt.Fprintln(w, "  /open <id>                       Show a document")
	fmt.Fprintln(w, "  /copy <id> <type>                Start a draft from a document")
	fmt.Fprintln(w, "  /cancel <id> <reason>            Cancel a document")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  MASTERS")
	fmt.Fprintln(w, "  /parties  /bal  /warehouses  /stock")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  /help  /exit")
	fmt.Fprintln(w, strings.Repeat("=", 62))
}
