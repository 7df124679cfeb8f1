// Package dataset materializes pipeline tables: the fused feature table
// to CSV, XLSX, and Postgres, and per-district checkpoint files for the
// extraction stage.
package dataset

import (
	"encoding/csv"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sahel-analytics/epicast/internal/model"
)

// WriteCSV writes the fused feature table in schema column order.
func WriteCSV(path string, table *model.FeatureTable) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "dataset: create %s", path)
	}
	defer f.Close() //nolint:errcheck

	w := csv.NewWriter(f)
	if err := w.Write(table.Schema.Columns()); err != nil {
		return eris.Wrapf(err, "dataset: write header %s", path)
	}
	for _, row := range table.Rows {
		if err := w.Write(table.Schema.Record(row)); err != nil {
			return eris.Wrapf(err, "dataset: write row %s", path)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return eris.Wrapf(err, "dataset: flush %s", path)
	}

	zap.L().With(zap.String("component", "dataset")).Info("wrote csv",
		zap.String("path", path),
		zap.Int("rows", len(table.Rows)),
	)
	return nil
}

// WriteDistrictCSV writes a district-level feature table, one row per
// district sorted by name. A cell absent from a row (a district the
// layer did not cover) is left empty rather than zero-filled.
func WriteDistrictCSV(path string, table *model.DistrictTable) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "dataset: create %s", path)
	}
	defer f.Close() //nolint:errcheck

	names := make([]string, 0, len(table.Rows))
	for name := range table.Rows {
		names = append(names, name)
	}
	sort.Strings(names)

	w := csv.NewWriter(f)
	if err := w.Write(append([]string{"lga_name"}, table.Columns...)); err != nil {
		return eris.Wrapf(err, "dataset: write header %s", path)
	}
	for _, name := range names {
		rec := []string{name}
		for _, c := range table.Columns {
			if v, ok := table.Rows[name][c]; ok {
				rec = append(rec, strconv.FormatFloat(v, 'g', -1, 64))
			} else {
				rec = append(rec, "")
			}
		}
		if err := w.Write(rec); err != nil {
			return eris.Wrapf(err, "dataset: write row %s", path)
		}
	}
	w.Flush()
	return eris.Wrapf(w.Error(), "dataset: flush %s", path)
}

// checkpoint identity columns precede the environmental columns.
var checkpointIdentity = []string{"lga_name", "state_name", "year", "period", "period_start", "period_end"}

// WriteCheckpoint writes one district's environmental rows so an
// interrupted extraction can resume without recomputing the district.
func WriteCheckpoint(path string, columns []string, rows []model.EnvRow) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "dataset: create checkpoint %s", path)
	}
	defer f.Close() //nolint:errcheck

	w := csv.NewWriter(f)
	header := append(append([]string{}, checkpointIdentity...), columns...)
	if err := w.Write(header); err != nil {
		return eris.Wrapf(err, "dataset: write checkpoint header %s", path)
	}
	for _, r := range rows {
		rec := []string{
			r.District,
			r.State,
			strconv.Itoa(r.Year),
			strconv.Itoa(r.Period),
			r.Start.Format("2006-01-02"),
			r.End.Format("2006-01-02"),
		}
		for _, c := range columns {
			rec = append(rec, strconv.FormatFloat(r.Values[c], 'g', -1, 64))
		}
		if err := w.Write(rec); err != nil {
			return eris.Wrapf(err, "dataset: write checkpoint row %s", path)
		}
	}
	w.Flush()
	return eris.Wrapf(w.Error(), "dataset: flush checkpoint %s", path)
}

// ReadCheckpoint reads a district checkpoint back. A valid checkpoint
// holds exactly one row per period of the extraction grid; anything
// else, including a truncated file from a killed run, is an error and
// the caller resets the work unit and recomputes rather than trusting
// it.
func ReadCheckpoint(path string, columns []string, periods int) ([]model.EnvRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "dataset: open checkpoint %s", path)
	}
	defer f.Close() //nolint:errcheck

	r := csv.NewReader(f)
	records, err := r.ReadAll()
	if err != nil {
		return nil, eris.Wrapf(err, "dataset: read checkpoint %s", path)
	}
	if len(records) == 0 {
		return nil, eris.Errorf("dataset: checkpoint %s is empty", path)
	}

	want := len(checkpointIdentity) + len(columns)
	if len(records[0]) != want {
		return nil, eris.Errorf("dataset: checkpoint %s has %d columns, want %d", path, len(records[0]), want)
	}
	if got := len(records) - 1; got != periods {
		return nil, eris.Errorf("dataset: checkpoint %s has %d period rows, want %d", path, got, periods)
	}

	rows := make([]model.EnvRow, 0, len(records)-1)
	for _, rec := range records[1:] {
		row := model.EnvRow{
			District: rec[0],
			State:    rec[1],
			Values:   make(map[string]float64, len(columns)),
		}
		if row.Year, err = strconv.Atoi(rec[2]); err != nil {
			return nil, eris.Wrapf(err, "dataset: checkpoint %s: year", path)
		}
		if row.Period, err = strconv.Atoi(rec[3]); err != nil {
			return nil, eris.Wrapf(err, "dataset: checkpoint %s: period", path)
		}
		if row.Start, err = time.ParseInLocation("2006-01-02", rec[4], time.UTC); err != nil {
			return nil, eris.Wrapf(err, "dataset: checkpoint %s: period start", path)
		}
		if row.End, err = time.ParseInLocation("2006-01-02", rec[5], time.UTC); err != nil {
			return nil, eris.Wrapf(err, "dataset: checkpoint %s: period end", path)
		}
		for i, c := range columns {
			v, err := strconv.ParseFloat(rec[len(checkpointIdentity)+i], 64)
			if err != nil {
				return nil, eris.Wrapf(err, "dataset: checkpoint %s: column %s", path, c)
			}
			row.Values[c] = v
		}
		rows = append(rows, row)
	}
	return rows, nil
}
