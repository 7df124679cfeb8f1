package dataset

import (
	"encoding/json"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Summary is the user-facing account of a pipeline run: what was read,
// what was dropped, what was degraded or imputed, and what was written.
type Summary struct {
	RunID       string    `json:"run_id"`
	GeneratedAt time.Time `json:"generated_at"`

	LineList struct {
		Total           int `json:"total"`
		Kept            int `json:"kept"`
		BadDate         int `json:"bad_date"`
		MissingDistrict int `json:"missing_district"`
	} `json:"line_list"`

	Extraction struct {
		Periods       int `json:"periods"`
		Districts     int `json:"districts"`
		DegradedUnits int `json:"degraded_units"`
	} `json:"extraction"`

	Fusion struct {
		Rows           int `json:"rows"`
		ZeroFilledRows int `json:"zero_filled_rows"`
		ImputedValues  int `json:"imputed_values"`
		OutOfGridCases int `json:"out_of_grid_cases"`
	} `json:"fusion"`

	Outputs []string `json:"outputs"`
}

// WriteSummary writes the run summary as pretty-printed JSON and logs
// the headline numbers.
func WriteSummary(path string, s Summary) error {
	if s.GeneratedAt.IsZero() {
		s.GeneratedAt = time.Now().UTC()
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return eris.Wrap(err, "dataset: marshal summary")
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return eris.Wrapf(err, "dataset: write summary %s", path)
	}

	zap.L().With(zap.String("component", "dataset")).Info("run summary",
		zap.String("path", path),
		zap.Int("rows", s.Fusion.Rows),
		zap.Int("dropped_rows", s.LineList.BadDate+s.LineList.MissingDistrict),
		zap.Int("degraded_units", s.Extraction.DegradedUnits),
		zap.Int("imputed_values", s.Fusion.ImputedValues),
	)
	return nil
}
