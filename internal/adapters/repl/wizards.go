package repl

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"distributor-erp/internal/app"
	"distributor-erp/internal/core"

	"github.com/shopspring/decimal"
)

const lineFormat = "<item|-> <qty> <price> [disc%] [gst%] [ledger]"

// enterLines runs an interactive line entry session on the open draft. Lines
// are only added when the user types 'done'; 'cancel' leaves the draft as it
// was. It reports whether any lines were added.
func enterLines(reader *bufio.Reader, out io.Writer, req *app.DocumentRequest) bool {
	fmt.Fprintln(out, "Enter lines. Type 'done' when finished, 'cancel' to abort.")
	fmt.Fprintf(out, "Format per line: %s\n", lineFormat)
	fmt.Fprintln(out, "  Example: SKU-001 10 450 5 18")
	fmt.Fprintln(out, "  Example: - 1 1200 0 18 5200   (free-text line on ledger 5200)")

	var lines []core.LineItemInput
	for {
		fmt.Fprintf(out, "  Line %d: ", len(req.Lines)+len(lines)+1)
		raw, err := reader.ReadString('\n')
		raw = strings.TrimSpace(raw)
		switch strings.ToLower(raw) {
		case "cancel":
			fmt.Fprintln(out, "Line entry cancelled.")
			return false
		case "done":
			req.Lines = append(req.Lines, lines...)
			return len(lines) > 0
		}
		if raw != "" {
			in, perr := parseLine(strings.Fields(raw))
			if perr != nil {
				fmt.Fprintf(out, "  %v\n", perr)
			} else {
				lines = append(lines, in)
			}
		}
		if err != nil {
			req.Lines = append(req.Lines, lines...)
			return len(lines) > 0
		}
	}
}

// parseLine reads one line in lineFormat. Range checks are left to the
// service so the prompt reports the same errors as every other client.
func parseLine(fields []string) (core.LineItemInput, error) {
	if len(fields) < 3 || len(fields) > 6 {
		return core.LineItemInput{}, usage("/line " + lineFormat)
	}
	var in core.LineItemInput
	if fields[0] != "-" {
		in.ItemCode = strings.ToUpper(fields[0])
	}

	nums := []struct {
		name string
		dst  *decimal.Decimal
	}{
		{"quantity", &in.Quantity},
		{"price", &in.UnitPrice},
		{"discount", &in.DiscountPercent},
		{"GST rate", &in.GSTPercent},
	}
	for i, n := range nums {
		if i+1 >= len(fields) {
			*n.dst = decimal.Zero
			continue
		}
		v, err := decimal.NewFromString(fields[i+1])
		if err != nil {
			return core.LineItemInput{}, fmt.Errorf("invalid %s %q", n.name, fields[i+1])
		}
		*n.dst = v
	}
	if len(fields) == 6 {
		in.LedgerCode = strings.ToUpper(fields[5])
	}
	return in, nil
}
