// Package leads reads lead files for batch qualification and writes the
// results back out as CSV, JSON or XLSX.
package leads

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"golang.org/x/text/encoding/htmlindex"

	"github.com/sells-group/solar-router/internal/model"
)

// ColumnLeadID names the optional lead identifier column.
const ColumnLeadID = "lead_id"

// Lead is one row of a lead file.
type Lead struct {
	ID      string                `json:"lead_id"`
	Profile model.CustomerProfile `json:"profile"`
}

// ReadFile reads leads from a .csv, .xlsx or .json file. CSV and XLSX files
// need a header row naming profile fields (zip_code, monthly_bill, ...).
// Unknown columns are ignored and blank cells leave the field unset.
func ReadFile(path string) ([]Lead, error) {
	return ReadFileCharset(path, "")
}

// ReadFileCharset is ReadFile for CSV exports in a legacy charset such as
// "windows-1252". An empty charset means UTF-8. XLSX and JSON are always UTF-8.
func ReadFileCharset(path, charset string) ([]Lead, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		f, err := os.Open(path)
		if err != nil {
			return nil, eris.Wrapf(err, "leads: open %s", path)
		}
		defer f.Close() //nolint:errcheck
		r, err := decodeCharset(f, charset)
		if err != nil {
			return nil, err
		}
		return ReadCSV(r)
	case ".xlsx":
		return ReadXLSX(path)
	case ".json":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, eris.Wrapf(err, "leads: read %s", path)
		}
		return ParseJSON(data)
	default:
		return nil, eris.Errorf("leads: unsupported file type %q", filepath.Ext(path))
	}
}

// ReadCSV reads leads from CSV with a header row.
func ReadCSV(r io.Reader) ([]Lead, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, eris.Wrap(err, "leads: read csv")
	}
	return fromRows(records)
}

// decodeCharset wraps r to yield UTF-8 from the named charset.
func decodeCharset(r io.Reader, charset string) (io.Reader, error) {
	if charset == "" || strings.EqualFold(charset, "utf-8") || strings.EqualFold(charset, "utf8") {
		return r, nil
	}
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return nil, eris.Wrapf(err, "leads: unsupported charset %q", charset)
	}
	return enc.NewDecoder().Reader(r), nil
}

// ReadXLSX reads leads from the first sheet of an XLSX workbook.
func ReadXLSX(path string) ([]Lead, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "leads: open xlsx")
	}
	if len(f.Sheets) == 0 {
		return nil, eris.New("leads: workbook has no sheets")
	}

	var rows [][]string
	for _, row := range f.Sheets[0].Rows {
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = cell.String()
		}
		rows = append(rows, cells)
	}
	return fromRows(rows)
}

// ParseJSON decodes an array of {"lead_id": ..., "profile": {...}} objects.
func ParseJSON(data []byte) ([]Lead, error) {
	var out []Lead
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, eris.Wrap(err, "leads: parse json")
	}
	for i := range out {
		if out[i].ID == "" {
			out[i].ID = strconv.Itoa(i + 1)
		}
	}
	return out, nil
}

func fromRows(rows [][]string) ([]Lead, error) {
	if len(rows) == 0 {
		return nil, eris.New("leads: file is empty")
	}

	header := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		header[i] = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
	}

	var out []Lead
	for n, row := range rows[1:] {
		if blank(row) {
			continue
		}
		lead := Lead{ID: strconv.Itoa(n + 1)}
		for i, raw := range row {
			if i >= len(header) {
				break
			}
			v := strings.TrimSpace(raw)
			if v == "" {
				continue
			}
			if err := setField(&lead, header[i], v); err != nil {
				return nil, eris.Wrapf(err, "leads: row %d", n+2)
			}
		}
		out = append(out, lead)
	}
	return out, nil
}

func setField(l *Lead, column, v string) error {
	p := &l.Profile
	switch column {
	case ColumnLeadID:
		l.ID = v
	case model.FieldZipCode:
		p.ZipCode = v
	case model.FieldMonthlyBill:
		f, err := parseFloat(column, v)
		if err != nil {
			return err
		}
		p.MonthlyBill = f
	case model.FieldHomeownership:
		p.Homeownership = model.Homeownership(strings.ToLower(v))
	case model.FieldRoofType:
		p.RoofType = v
	case model.FieldRoofAge:
		n, err := strconv.Atoi(v)
		if err != nil {
			return eris.Wrapf(model.ErrInvalidInput, "%s: %q is not an integer", column, v)
		}
		p.RoofAge = &n
	case model.FieldRoofSize:
		f, err := parseFloat(column, v)
		if err != nil {
			return err
		}
		p.RoofSizeSqft = &f
	case model.FieldShading:
		f, err := parseFloat(column, v)
		if err != nil {
			return err
		}
		p.ShadingFactor = &f
	case model.FieldOrientation:
		p.Orientation = v
	case model.FieldTimeline:
		p.Timeline = model.Timeline(strings.ToLower(v))
	case model.FieldHomeType:
		p.HomeType = v
	}
	return nil
}

func parseFloat(column, v string) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimPrefix(v, "$"), 64)
	if err != nil {
		return 0, eris.Wrapf(model.ErrInvalidInput, "%s: %q is not a number", column, v)
	}
	return f, nil
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
