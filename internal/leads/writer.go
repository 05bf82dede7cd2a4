package leads

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/solar-router/internal/qualify"
)

// Output formats accepted by Write.
const (
	FormatTable = "table"
	FormatCSV   = "csv"
	FormatJSON  = "json"
	FormatXLSX  = "xlsx"
)

// Columns is the flat result layout shared by table, CSV and XLSX output.
var Columns = []string{
	"lead_id", "zip_code", "system_size_kw", "net_cost", "monthly_savings", "payback_years",
	"score", "tier", "platform", "offer_price", "expected_revenue", "attempts", "error_code", "error",
}

// Row flattens an outcome in Columns order. Missing values are blank.
func Row(o *qualify.Outcome) []string {
	row := make([]string, len(Columns))
	row[0] = o.LeadID
	if r := o.Recommendation; r != nil {
		row[1] = r.ZipCode
		row[2] = num(r.SystemSizeKW)
		row[3] = num(r.NetCost)
		row[4] = num(r.MonthlySavings)
		if r.PaybackYears != nil {
			row[5] = num(*r.PaybackYears)
		}
	}
	if s := o.Score; s != nil {
		row[6] = strconv.Itoa(s.NumericScore)
		row[7] = string(s.QualityTier)
	}
	if d := o.Decision; d != nil {
		if d.ChosenPlatform != nil {
			row[8] = *d.ChosenPlatform
			row[9] = num(d.OfferPrice)
			row[10] = num(d.ExpectedRevenue)
		}
		row[11] = strconv.Itoa(d.Attempts)
	}
	row[12] = o.Code
	row[13] = o.Error
	return row
}

// Write renders outcomes to w in format.
func Write(w io.Writer, format string, outcomes []*qualify.Outcome) error {
	switch strings.ToLower(format) {
	case FormatTable, "":
		return WriteTable(w, outcomes)
	case FormatCSV:
		return WriteCSV(w, outcomes)
	case FormatJSON:
		return WriteJSON(w, outcomes)
	case FormatXLSX:
		return WriteXLSX(w, outcomes)
	default:
		return eris.Errorf("leads: unknown output format %q", format)
	}
}

// WriteTable writes an aligned text table.
func WriteTable(w io.Writer, outcomes []*qualify.Outcome) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.ToUpper(strings.Join(Columns[:len(Columns)-1], "\t")))
	for _, o := range outcomes {
		row := Row(o)
		fmt.Fprintln(tw, strings.Join(row[:len(row)-1], "\t"))
	}
	return eris.Wrap(tw.Flush(), "leads: write table")
}

// WriteCSV writes a header row followed by one row per outcome.
func WriteCSV(w io.Writer, outcomes []*qualify.Outcome) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return eris.Wrap(err, "leads: write csv header")
	}
	for _, o := range outcomes {
		if err := cw.Write(Row(o)); err != nil {
			return eris.Wrap(err, "leads: write csv row")
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "leads: flush csv")
}

// WriteJSON writes the full outcomes as an indented JSON array.
func WriteJSON(w io.Writer, outcomes []*qualify.Outcome) error {
	if outcomes == nil {
		outcomes = []*qualify.Outcome{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return eris.Wrap(enc.Encode(outcomes), "leads: write json")
}

// WriteXLSX writes a single-sheet workbook.
func WriteXLSX(w io.Writer, outcomes []*qualify.Outcome) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("results")
	if err != nil {
		return eris.Wrap(err, "leads: add sheet")
	}
	addRow(sheet, Columns)
	for _, o := range outcomes {
		addRow(sheet, Row(o))
	}
	return eris.Wrap(f.Write(w), "leads: write xlsx")
}

func addRow(sheet *xlsx.Sheet, values []string) {
	row := sheet.AddRow()
	for _, v := range values {
		row.AddCell().SetString(v)
	}
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
