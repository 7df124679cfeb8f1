package main

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sahel-analytics/epicast/internal/ledger"
)

func testLedger(t *testing.T) *ledger.Ledger {
	t.Helper()
	led, err := ledger.Open(filepath.Join(t.TempDir(), "epicast.db"))
	require.NoError(t, err)
	t.Cleanup(func() { led.Close() })
	require.NoError(t, led.Migrate(context.Background()))
	return led
}

func TestRunStatus(t *testing.T) {
	led := testLedger(t)
	ctx := context.Background()

	start := time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 8, 31, 0, 0, 0, 0, time.UTC)
	run, err := led.CreateRun(ctx, "week", start, end)
	require.NoError(t, err)
	require.NoError(t, led.EnsureUnits(ctx, run.ID, []string{"Damaturu", "Fune", "Gulani"}))
	require.NoError(t, led.MarkDone(ctx, run.ID, "Fune", "ckpt/fune.csv"))

	req := httptest.NewRequest("GET", "/api/run", nil)
	body := runStatus(req, led, run)

	assert.Equal(t, run.ID, body.ID)
	assert.Equal(t, "week", body.Granularity)
	assert.Equal(t, "2024-06-02", body.Start)
	assert.Equal(t, "2024-08-31", body.End)
	assert.Equal(t, 1, body.Done)
	assert.Equal(t, 3, body.Total)
	require.Len(t, body.Units, 3)
	assert.Equal(t, "Damaturu", body.Units[0].District)
	assert.Equal(t, "pending", body.Units[0].Status)
	assert.Equal(t, "done", body.Units[1].Status)
	assert.Equal(t, "ckpt/fune.csv", body.Units[1].Checkpoint)
}

func TestWriteJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	writeJSON(rec, 404, map[string]string{"error": "unknown run"})

	assert.Equal(t, 404, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "unknown run", body["error"])
}
