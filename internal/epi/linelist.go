package epi

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sahel-analytics/epicast/internal/fetcher"
	"github.com/sahel-analytics/epicast/internal/model"
)

// defaultDateFormats are tried in order against each date cell.
var defaultDateFormats = []string{
	"2006-01-02",
	"2006/01/02",
	"02/01/2006",
	"2006-01-02 15:04:05",
	time.RFC3339,
}

// ParseOptions configures line-list reading.
type ParseOptions struct {
	Roles       ColumnRoles
	DateFormats []string // default: defaultDateFormats
	SheetName   string   // xlsx only
}

// ParseReport accounts for every input row. Kept + BadDate +
// MissingDistrict always equals Total.
type ParseReport struct {
	Total           int
	Kept            int
	BadDate         int
	MissingDistrict int
}

// ReadLineList parses a CSV or XLSX line list into EpiRecords. Rows with
// an unparseable date or an empty district are dropped and counted, never
// silently discarded; an unresolvable header is a hard error. District
// and state names are normalized on the way in.
func ReadLineList(ctx context.Context, path string, opts ParseOptions) ([]model.EpiRecord, *ParseReport, error) {
	var rows [][]string
	var err error
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv":
		rows, err = readCSVRows(ctx, path)
	case ".xlsx":
		rows, err = fetcher.ReadXLSX(path, fetcher.XLSXOptions{SheetName: opts.SheetName})
	default:
		return nil, nil, eris.Errorf("epi: unsupported line-list format %q", ext)
	}
	if err != nil {
		return nil, nil, err
	}
	if len(rows) == 0 {
		return nil, nil, eris.Errorf("epi: %s: empty line list", path)
	}

	cols, err := resolveColumns(rows[0], opts.Roles)
	if err != nil {
		return nil, nil, eris.Wrapf(err, "epi: %s", path)
	}

	formats := opts.DateFormats
	if len(formats) == 0 {
		formats = defaultDateFormats
	}

	report := &ParseReport{}
	var records []model.EpiRecord
	for _, row := range rows[1:] {
		report.Total++

		district := ""
		if cols.district < len(row) {
			district = model.NormalizeName(row[cols.district])
		}
		if district == "" {
			report.MissingDistrict++
			continue
		}

		raw := ""
		if cols.date < len(row) {
			raw = strings.TrimSpace(row[cols.date])
		}
		date, ok := parseDate(raw, formats)
		if !ok {
			report.BadDate++
			continue
		}

		state := ""
		if cols.state >= 0 && cols.state < len(row) {
			state = model.NormalizeName(row[cols.state])
		}

		records = append(records, model.EpiRecord{
			Date:     date,
			District: district,
			State:    state,
			Raw:      row,
		})
		report.Kept++
	}

	log := zap.L().With(zap.String("component", "epi"))
	if dropped := report.BadDate + report.MissingDistrict; dropped > 0 {
		log.Warn("dropped line-list rows",
			zap.String("path", path),
			zap.Int("bad_date", report.BadDate),
			zap.Int("missing_district", report.MissingDistrict),
		)
	}
	log.Info("parsed line list",
		zap.String("path", path),
		zap.Int("total", report.Total),
		zap.Int("kept", report.Kept),
	)
	return records, report, nil
}

func readCSVRows(ctx context.Context, path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "epi: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	rowCh, errCh := fetcher.StreamCSV(ctx, f, fetcher.CSVOptions{TrimSpace: true})
	var rows [][]string
	for row := range rowCh {
		rows = append(rows, row)
	}
	if err := <-errCh; err != nil {
		return nil, eris.Wrapf(err, "epi: read %s", path)
	}
	return rows, nil
}

// parseDate tries each format and truncates the result to UTC midnight.
func parseDate(s string, formats []string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, f := range formats {
		t, err := time.Parse(f, s)
		if err != nil {
			continue
		}
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
	}
	return time.Time{}, false
}
