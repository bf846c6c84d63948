// Package fetcher reads address tables from CSV and XLSX files.
package fetcher

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
)

// Column names an address table must carry.
const (
	ColAddress = "Address"
	ColCity    = "City"
	ColState   = "State"
	ColZipCode = "Zip Code"
)

// RequiredColumns lists the header names ReadAddresses expects.
var RequiredColumns = []string{ColAddress, ColCity, ColState, ColZipCode}

// AddressRecord is one row of an address table. Extra columns are ignored.
type AddressRecord struct {
	Street  string `csv:"Address"`
	City    string `csv:"City"`
	State   string `csv:"State"`
	ZipCode string `csv:"Zip Code"`
}

// Query formats the record as a single-line search string:
// "{Address}, {City} {State} {Zip Code}". Cell text is used as read.
func (r AddressRecord) Query() string {
	return fmt.Sprintf("%s, %s %s %s", r.Street, r.City, r.State, r.ZipCode)
}

// Queries formats every record with Query, preserving order.
func Queries(records []AddressRecord) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.Query()
	}
	return out
}

// ReadAddresses loads an address table from path. The format is chosen by
// extension: .csv or .xlsx.
func ReadAddresses(path string) ([]AddressRecord, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv":
		f, err := os.Open(path)
		if err != nil {
			return nil, eris.Wrap(err, "fetcher: open csv")
		}
		defer f.Close() //nolint:errcheck
		return ReadAddressesCSV(f)
	case ".xlsx":
		return readAddressesXLSX(path)
	default:
		return nil, eris.Errorf("fetcher: unsupported input format %q (want .csv or .xlsx)", ext)
	}
}

// ReadAddressesCSV decodes a headed CSV address table.
func ReadAddressesCSV(r io.Reader) ([]AddressRecord, error) {
	cr := csv.NewReader(r)

	header, err := cr.Read()
	if err == io.EOF {
		return nil, eris.New("fetcher: csv has no header row")
	}
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: read csv header")
	}
	header = normalizeHeader(header)
	if err := checkColumns(header); err != nil {
		return nil, err
	}

	dec, err := csvutil.NewDecoder(cr, header...)
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: csv decoder")
	}

	var records []AddressRecord
	for {
		var rec AddressRecord
		if err := dec.Decode(&rec); err == io.EOF {
			break
		} else if err != nil {
			return nil, eris.Wrapf(err, "fetcher: decode csv row %d", len(records)+1)
		}
		records = append(records, rec)
	}
	return records, nil
}

func readAddressesXLSX(path string) ([]AddressRecord, error) {
	rows, err := ReadXLSX(path, XLSXOptions{})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, eris.New("fetcher: xlsx has no header row")
	}

	header := normalizeHeader(rows[0])
	if err := checkColumns(header); err != nil {
		return nil, err
	}
	colIdx := make(map[string]int, len(header))
	for i, h := range header {
		colIdx[h] = i
	}
	cell := func(row []string, col string) string {
		i := colIdx[col]
		if i >= len(row) {
			return ""
		}
		return row[i]
	}

	records := make([]AddressRecord, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if blankRow(row) {
			continue
		}
		records = append(records, AddressRecord{
			Street:  cell(row, ColAddress),
			City:    cell(row, ColCity),
			State:   cell(row, ColState),
			ZipCode: cell(row, ColZipCode),
		})
	}
	return records, nil
}

// normalizeHeader strips a UTF-8 byte order mark and surrounding spaces.
func normalizeHeader(header []string) []string {
	out := make([]string, len(header))
	for i, h := range header {
		out[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}
	return out
}

func checkColumns(header []string) error {
	var missing []string
	for _, col := range RequiredColumns {
		if !slices.Contains(header, col) {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return eris.Errorf("fetcher: missing required columns: %s", strings.Join(missing, ", "))
	}
	return nil
}

func blankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
