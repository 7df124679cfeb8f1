package dataset

import (
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/sahel-analytics/epicast/internal/model"
)

// WriteXLSX writes the fused feature table as a single-sheet workbook,
// same column order as the CSV export.
func WriteXLSX(path string, table *model.FeatureTable) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("features")
	if err != nil {
		return eris.Wrap(err, "dataset: add sheet")
	}

	header := sheet.AddRow()
	for _, c := range table.Schema.Columns() {
		header.AddCell().SetString(c)
	}
	for _, row := range table.Rows {
		r := sheet.AddRow()
		for _, v := range table.Schema.Record(row) {
			r.AddCell().SetString(v)
		}
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "dataset: save %s", path)
	}
	zap.L().With(zap.String("component", "dataset")).Info("wrote xlsx",
		zap.String("path", path),
		zap.Int("rows", len(table.Rows)),
	)
	return nil
}
