package core

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// FinancialYear is the April–March tax year label, e.g. "25-26".
type FinancialYear string

// FinancialYearFor returns the financial year containing t.
func FinancialYearFor(t time.Time) FinancialYear {
	start := t.Year()
	if t.Month() < time.April {
		start--
	}
	return FinancialYear(fmt.Sprintf("%02d-%02d", start%100, (start+1)%100))
}

// ParseFinancialYear validates a "YY-YY" label with consecutive years.
func ParseFinancialYear(s string) (FinancialYear, error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, "-")
	if len(parts) != 2 || len(parts[0]) != 2 || len(parts[1]) != 2 {
		return "", invalid("financial_year", fmt.Sprintf("%q is not in YY-YY form", s))
	}
	from, err1 := strconv.Atoi(parts[0])
	to, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil || (from+1)%100 != to {
		return "", invalid("financial_year", fmt.Sprintf("%q is not a pair of consecutive years", s))
	}
	return FinancialYear(s), nil
}

// PrefixRecord is the per-tenant numbering configuration of one voucher type
// in one financial year.
type PrefixRecord struct {
	ID            int           `json:"id"`
	CompanyID     int           `json:"company_id"`
	TypeCode      string        `json:"type_code"`
	FinancialYear FinancialYear `json:"financial_year"`
	Prefix        string        `json:"prefix"`
	Separator     string        `json:"separator"`
	PadWidth      int           `json:"pad_width"`
	StartNumber   int64         `json:"start_number"`
	MaxNumber     *int64        `json:"max_number,omitempty"`
	IsDefault     bool          `json:"is_default"`
	IsActive      bool          `json:"is_active"`
}

// Format renders the document number for seq.
func (p PrefixRecord) Format(seq int64) string {
	return FormatDocumentNumber(p.Prefix, p.Separator, seq, p.PadWidth)
}

// FormatDocumentNumber joins prefix, separator and the zero-padded sequence.
func FormatDocumentNumber(prefix, separator string, seq int64, padWidth int) string {
	if padWidth <= 0 {
		return fmt.Sprintf("%s%s%d", prefix, separator, seq)
	}
	return fmt.Sprintf("%s%s%0*d", prefix, separator, padWidth, seq)
}

// NumberingDescriptor is the numbering part of a draft. Prefix empty means the
// default active prefix; ManualNumber set means the user typed a number and no
// sequence value is consumed.
type NumberingDescriptor struct {
	Prefix        string        `json:"prefix,omitempty" jsonschema_description:"Chosen prefix; empty selects the default active prefix"`
	ManualNumber  *int64        `json:"manual_number,omitempty" jsonschema_description:"Manually entered sequence number"`
	FinancialYear FinancialYear `json:"financial_year" jsonschema_description:"Financial year label such as 25-26"`
}

// NumberPreview is a best-effort, possibly stale look at the next number.
type NumberPreview struct {
	Prefix          string        `json:"prefix"`
	FinancialYear   FinancialYear `json:"financial_year"`
	NextNumber      int64         `json:"next_number"`
	FormattedNumber string        `json:"formatted_number"`
}

// NumberAllocation is the committed result of allocating a number.
type NumberAllocation struct {
	SequenceNumber  int64  `json:"sequence_number"`
	FormattedNumber string `json:"formatted_number"`
}

// NumberPreviewer is the non-binding read side of the numbering authority. The
// committing side is not exposed on its own: allocation only happens inside
// DocumentCreator.AllocateAndCreateDocument, so a failed submission never
// consumes a number.
type NumberPreviewer interface {
	PreviewNextNumber(ctx context.Context, companyID int, typeCode, prefix string, fy FinancialYear) (*NumberPreview, error)
}
