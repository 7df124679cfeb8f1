package dataset

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sahel-analytics/epicast/internal/db"
	"github.com/sahel-analytics/epicast/internal/model"
)

// Materialize writes the fused feature table to a Postgres table,
// creating it when absent and upserting on (district, period start) so
// re-running a campaign overwrites its rows instead of duplicating them.
func Materialize(ctx context.Context, pool db.Pool, table string, ft *model.FeatureTable) (int64, error) {
	if table == "" {
		return 0, eris.New("dataset: empty table name")
	}

	schema := ft.Schema
	columns := schema.Columns()
	identity := columns[:6]

	if _, err := pool.Exec(ctx, createTableSQL(table, schema)); err != nil {
		return 0, eris.Wrapf(err, "dataset: create table %s", table)
	}

	rows := make([][]any, 0, len(ft.Rows))
	for _, r := range ft.Rows {
		row := []any{r.District, r.State, r.Start, r.End, r.Year, r.Period}
		for _, c := range schema.EnvColumns {
			row = append(row, r.Env[c])
		}
		for _, c := range schema.ExtraColumns {
			row = append(row, r.Extra[c])
		}
		row = append(row, r.CaseCount)
		for _, k := range schema.Lags {
			row = append(row, r.Lags[k])
		}
		for _, w := range schema.Windows {
			row = append(row, r.Rolling[w])
		}
		rows = append(rows, row)
	}

	n, err := db.BulkUpsert(ctx, pool, db.UpsertConfig{
		Table:        table,
		Columns:      columns,
		ConflictKeys: []string{identity[0], identity[2]}, // lga_name, week_start/month_start
	}, rows)
	if err != nil {
		return 0, err
	}

	zap.L().With(zap.String("component", "dataset")).Info("materialized to postgres",
		zap.String("table", table),
		zap.Int64("rows", n),
	)
	return n, nil
}

// createTableSQL builds the DDL matching the schema's column contract.
func createTableSQL(table string, schema model.Schema) string {
	columns := schema.Columns()
	identity := columns[:6]

	var defs []string
	add := func(name, typ string) {
		defs = append(defs, fmt.Sprintf("%s %s", pgx.Identifier{name}.Sanitize(), typ))
	}
	add(identity[0], "TEXT NOT NULL") // lga_name
	add(identity[1], "TEXT NOT NULL") // state_name
	add(identity[2], "DATE NOT NULL") // period start
	add(identity[3], "DATE NOT NULL") // period end
	add(identity[4], "INTEGER NOT NULL")
	add(identity[5], "INTEGER NOT NULL")
	for _, c := range schema.EnvColumns {
		add(c, "DOUBLE PRECISION NOT NULL DEFAULT 0")
	}
	for _, c := range schema.ExtraColumns {
		add(c, "DOUBLE PRECISION NOT NULL DEFAULT 0")
	}
	add("case_count", "INTEGER NOT NULL DEFAULT 0")
	for _, k := range schema.Lags {
		add(schema.LagColumn(k), "INTEGER NOT NULL DEFAULT 0")
	}
	for _, w := range schema.Windows {
		add(schema.RollingColumn(w), "DOUBLE PRECISION NOT NULL DEFAULT 0")
	}
	defs = append(defs, fmt.Sprintf("PRIMARY KEY (%s, %s)",
		pgx.Identifier{identity[0]}.Sanitize(),
		pgx.Identifier{identity[2]}.Sanitize(),
	))

	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)",
		sanitize(table), strings.Join(defs, ", "))
}

func sanitize(table string) string {
	parts := strings.SplitN(table, ".", 2)
	if len(parts) == 2 {
		return pgx.Identifier{parts[0], parts[1]}.Sanitize()
	}
	return pgx.Identifier{table}.Sanitize()
}
