package dataset

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sahel-analytics/epicast/internal/model"
)

func TestCreateTableSQL(t *testing.T) {
	schema := testTable().Schema
	sql := createTableSQL("features", schema)

	assert.Contains(t, sql, `CREATE TABLE IF NOT EXISTS "features"`)
	assert.Contains(t, sql, `"lga_name" TEXT NOT NULL`)
	assert.Contains(t, sql, `"week_start" DATE NOT NULL`)
	assert.Contains(t, sql, `"precipitation_total" DOUBLE PRECISION NOT NULL DEFAULT 0`)
	assert.Contains(t, sql, `"case_count" INTEGER NOT NULL DEFAULT 0`)
	assert.Contains(t, sql, `"cases_lag_1w" INTEGER NOT NULL DEFAULT 0`)
	assert.Contains(t, sql, `"cases_rolling_4w" DOUBLE PRECISION NOT NULL DEFAULT 0`)
	assert.Contains(t, sql, `PRIMARY KEY ("lga_name", "week_start")`)
}

func TestCreateTableSQL_SchemaQualified(t *testing.T) {
	sql := createTableSQL("epicast.features", testTable().Schema)
	assert.Contains(t, sql, `"epicast"."features"`)
}

func TestMaterialize(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	table := testTable()

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS "features"`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_epicast_load_features"}, table.Schema.Columns()).
		WillReturnResult(int64(len(table.Rows)))
	mock.ExpectExec(`INSERT INTO "features"`).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()

	n, err := Materialize(context.Background(), mock, "features", table)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMaterialize_EmptyTableName(t *testing.T) {
	_, err := Materialize(context.Background(), nil, "", &model.FeatureTable{})
	require.Error(t, err)
}
