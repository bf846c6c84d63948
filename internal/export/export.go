// Package export writes geocode result tables to files and databases.
package export

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/sells-group/lightbox-cli/internal/geo"
	"github.com/sells-group/lightbox-cli/internal/store"
	"github.com/sells-group/lightbox-cli/pkg/geocode"
)

// Options describe the run being exported. Only database targets use them.
type Options struct {
	Source    string
	BatchSize int
}

// Write stores table at target. The target kind is inferred:
//
//	*.csv              CSV with a header row
//	*.xlsx             spreadsheet, numeric cells for matched rows
//	*.geojson, *.json  FeatureCollection, null geometry for unmatched rows
//	*.shp              point shapefile of matched rows
//	*.db, *.sqlite     SQLite run tables
//	postgres://...     PostgreSQL run tables
func Write(ctx context.Context, target string, table geocode.Table, opts Options) error {
	if target == "" {
		return eris.New("export: empty output target")
	}

	if isPostgresURL(target) {
		return writeStore(ctx, "postgres", target, table, opts)
	}

	switch ext := strings.ToLower(filepath.Ext(target)); ext {
	case ".csv":
		return writeFile(target, func(w io.Writer) error { return WriteCSV(w, table) })
	case ".xlsx":
		return WriteXLSX(target, table)
	case ".geojson", ".json":
		return writeFile(target, func(w io.Writer) error { return WriteGeoJSON(w, table) })
	case ".shp":
		_, err := geo.WriteShapefile(target, table)
		return err
	case ".db", ".sqlite", ".sqlite3":
		return writeStore(ctx, "sqlite", target, table, opts)
	default:
		return eris.Errorf("export: unsupported output format %q", ext)
	}
}

func isPostgresURL(target string) bool {
	return strings.HasPrefix(target, "postgres://") || strings.HasPrefix(target, "postgresql://")
}

func writeFile(path string, fn func(io.Writer) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "export: create %s", path)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = eris.Wrapf(cerr, "export: close %s", path)
		}
	}()
	return fn(f)
}

// csvRow is a result row rendered for the CSV encoder.
type csvRow struct {
	Address         string `csv:"address"`
	Latitude        string `csv:"latitude"`
	Longitude       string `csv:"longitude"`
	ConfidenceScore string `csv:"confidence_score"`
	PrecisionCode   string `csv:"precision_code"`
}

// WriteCSV writes the table with a header row. The header is written even
// when the table is empty.
func WriteCSV(w io.Writer, table geocode.Table) error {
	cw := csv.NewWriter(w)
	enc := csvutil.NewEncoder(cw)
	if err := enc.EncodeHeader(csvRow{}); err != nil {
		return eris.Wrap(err, "export: encode csv header")
	}
	for i, r := range table {
		rec := r.Record()
		row := csvRow{
			Address:         rec[0],
			Latitude:        rec[1],
			Longitude:       rec[2],
			ConfidenceScore: rec[3],
			PrecisionCode:   rec[4],
		}
		if err := enc.Encode(row); err != nil {
			return eris.Wrapf(err, "export: encode csv row %d", i)
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "export: flush csv")
}

// WriteXLSX writes the table to a single "results" sheet.
func WriteXLSX(path string, table geocode.Table) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("results")
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}

	header := sheet.AddRow()
	for _, col := range geocode.Columns {
		header.AddCell().SetString(col)
	}

	for _, r := range table {
		row := sheet.AddRow()
		for _, v := range r.Values() {
			cell := row.AddCell()
			switch v := v.(type) {
			case float64:
				cell.SetFloat(v)
			case string:
				cell.SetString(v)
			}
		}
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "export: save %s", path)
	}
	return nil
}

// WriteGeoJSON writes the table as an indented FeatureCollection.
func WriteGeoJSON(w io.Writer, table geocode.Table) error {
	fc, err := geo.TableToGeoJSON(table)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return eris.Wrap(enc.Encode(fc), "export: encode geojson")
}

func writeStore(ctx context.Context, driver, dsn string, table geocode.Table, opts Options) error {
	s, err := store.Open(ctx, driver, dsn)
	if err != nil {
		return eris.Wrap(err, "export: open store")
	}
	defer s.Close() //nolint:errcheck

	_, err = Save(ctx, s, table, opts)
	return err
}

// Save records table as a new run in s and returns the run.
func Save(ctx context.Context, s store.Store, table geocode.Table, opts Options) (*store.Run, error) {
	run := store.NewRun(opts.Source, opts.BatchSize, table)
	if err := s.SaveRun(ctx, run, table); err != nil {
		return nil, eris.Wrap(err, "export: save run")
	}

	zap.L().Info("export: run saved",
		zap.String("run_id", run.ID),
		zap.Int("rows", len(table)),
	)
	return run, nil
}
