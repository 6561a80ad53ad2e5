package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cartsync/internal/store"
)

func executeDemo(t *testing.T, format string, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewDemoCommand(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestDemoCommandText(t *testing.T) {
	out, err := executeDemo(t, "text")
	require.NoError(t, err)
	assert.Contains(t, out, "Scenario: checkout")
	assert.Contains(t, out, "invoke   add_item -> accepted")
	assert.Contains(t, out, "place_order")
	assert.Contains(t, out, "Final state:")
	assert.NotContains(t, out, "Expectation failures")
}

func TestDemoCommandUnknownScenario(t *testing.T) {
	_, err := executeDemo(t, "text", "--scenario", "nope")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestDemoCommandJSONWithMetrics(t *testing.T) {
	out, err := executeDemo(t, "json", "--metrics")
	require.NoError(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   DemoResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Pass)
	assert.NotEmpty(t, resp.Data.Trace)
	assert.Equal(t, float64(1), resp.Data.Metrics["cartsync_engine_operations_total{op=complete_order,outcome=ok}"])
}

func TestDemoCommandRecords(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "demo.db")

	out, err := executeDemo(t, "text", "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Scenario: checkout")

	db, err := store.Open(dbPath)
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	sessions, err := db.Sessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"default"}, sessions)

	dispatches, err := db.ReadDispatches(ctx, "default")
	require.NoError(t, err)
	require.NotEmpty(t, dispatches)
	actions := make([]string, 0, len(dispatches))
	for _, d := range dispatches {
		actions = append(actions, d.Action)
	}
	assert.Contains(t, actions, "clear_cart")
}

func TestDemoCommandRecordedSessionResumesClock(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "demo.db")

	_, err := executeDemo(t, "text", "--db", dbPath)
	require.NoError(t, err)
	first := readSession(t, dbPath, "default")

	_, err = executeDemo(t, "text", "--db", dbPath)
	require.NoError(t, err)
	all := readSession(t, dbPath, "default")
	require.Len(t, all, 2*len(first))

	var firstMax int64
	for _, d := range first {
		firstMax = max(firstMax, d.LastUpdated)
	}
	for i, d := range all {
		if i > 0 {
			assert.Greater(t, d.Seq, all[i-1].Seq, "seq is append-only across runs")
			assert.GreaterOrEqual(t, d.LastUpdated, all[i-1].LastUpdated, "last_updated never moves back")
		}
	}
	assert.Greater(t, all[len(first)].LastUpdated, int64(0))
	assert.GreaterOrEqual(t, all[len(all)-1].LastUpdated, 2*firstMax)
}

func readSession(t *testing.T, path, session string) []store.Dispatch {
	t.Helper()
	db, err := store.Open(path)
	require.NoError(t, err)
	defer db.Close()
	dispatches, err := db.ReadDispatches(context.Background(), session)
	require.NoError(t, err)
	return dispatches
}
