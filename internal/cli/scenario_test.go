package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cartsync/internal/store"
)

const passingScenario = `name: add_one
description: "A single add creates a cart"
catalog:
  variants:
    - { id: var_a, product_id: prod_a, title: "A", price: 1000, stock: 10, manage_inventory: true }
flow:
  - invoke: add_item
    args: { variant_id: var_a, quantity: 1 }
    expect: { accepted: true, error_kind: none }
assertions:
  - type: final_state
    expect: { item_count: 1 }
`

const failingScenario = `name: wrong_count
description: "Expects the wrong quantity"
catalog:
  variants:
    - { id: var_a, product_id: prod_a, title: "A", price: 1000, stock: 10, manage_inventory: true }
flow:
  - invoke: add_item
    args: { variant_id: var_a, quantity: 1 }
assertions:
  - type: final_state
    expect: { item_count: 7 }
`

func writeScenario(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name+".yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func executeScenario(t *testing.T, format string, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewScenarioCommand(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestScenarioCommandMissingArgs(t *testing.T) {
	_, err := executeScenario(t, "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}

func TestScenarioCommandNonExistentPath(t *testing.T) {
	_, err := executeScenario(t, "text", "/nonexistent/scenarios")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scenario path not found")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestScenarioCommandEmptyDir(t *testing.T) {
	out, err := executeScenario(t, "text", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found.")
}

func TestScenarioCommandPass(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "add_one", passingScenario)

	out, err := executeScenario(t, "text", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ add_one")
	assert.Contains(t, out, "Scenario Summary: 1 passed, 0 failed, 1 total")
}

func TestScenarioCommandFailureExitCode(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "add_one", passingScenario)
	writeScenario(t, dir, "wrong_count", failingScenario)

	out, err := executeScenario(t, "text", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ wrong_count")
	assert.Contains(t, out, "item_count: expected 7, got 1")
	assert.Contains(t, out, "1 passed, 1 failed, 2 total")
}

func TestScenarioCommandFilter(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "add_one", passingScenario)
	writeScenario(t, dir, "wrong_count", failingScenario)

	out, err := executeScenario(t, "text", dir, "--filter", "add_*")
	require.NoError(t, err)
	assert.NotContains(t, out, "wrong_count")
	assert.Contains(t, out, "1 total")
}

func TestScenarioCommandInvalidFilter(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "add_one", passingScenario)

	_, err := executeScenario(t, "text", dir, "--filter", "[")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestScenarioCommandGoldenRoundTrip(t *testing.T) {
	dir := t.TempDir()
	file := writeScenario(t, dir, "add_one", passingScenario)

	out, err := executeScenario(t, "text", file, "--update")
	require.NoError(t, err)
	assert.Contains(t, out, "golden updated")

	golden, err := os.ReadFile(filepath.Join(dir, "golden", "add_one.golden"))
	require.NoError(t, err)
	assert.Contains(t, string(golden), `"scenario_name":"add_one"`)

	out, err = executeScenario(t, "text", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ add_one (golden match)")
}

func TestScenarioCommandGoldenMismatch(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "add_one", passingScenario)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "golden"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "golden", "add_one.golden"), []byte(`{"stale":true}`), 0644))

	out, err := executeScenario(t, "text", dir)
	require.Error(t, err)
	assert.Contains(t, out, "trace does not match golden file")
}

func TestScenarioCommandJSON(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "add_one", passingScenario)

	out, err := executeScenario(t, "json", dir)
	require.NoError(t, err)

	var resp struct {
		Status string          `json:"status"`
		Data   ScenarioSummary `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 1, resp.Data.Passed)
	require.Len(t, resp.Data.Scenarios, 1)
	assert.Equal(t, "add_one", resp.Data.Scenarios[0].Name)
}

func TestScenarioCommandJSONFailure(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "wrong_count", failingScenario)

	out, err := executeScenario(t, "json", dir)
	require.Error(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, ErrCodeScenarioFailed, resp.Error.Code)
}

func TestScenarioCommandLoadError(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "broken", "name: broken\n")

	out, err := executeScenario(t, "text", dir)
	require.Error(t, err)
	assert.Contains(t, out, "✗ broken")
	assert.Contains(t, out, "failed to load scenario")
}

func TestScenarioCommandRecordsDispatches(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "add_one", passingScenario)
	dbPath := filepath.Join(t.TempDir(), "cartsync.db")

	_, err := executeScenario(t, "text", dir, "--db", dbPath)
	require.NoError(t, err)

	db, err := store.Open(dbPath)
	require.NoError(t, err)
	defer db.Close()

	dispatches, err := db.ReadDispatches(context.Background(), "scenario:add_one")
	require.NoError(t, err)
	require.NotEmpty(t, dispatches)
	assert.Equal(t, "set_loading", dispatches[0].Action)
	assert.Equal(t, "set_cart", dispatches[1].Action)
}

func TestScenarioCommandRerunReplacesSessionLog(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "add_one", passingScenario)
	dbPath := filepath.Join(t.TempDir(), "cartsync.db")

	_, err := executeScenario(t, "text", dir, "--db", dbPath)
	require.NoError(t, err)
	first := readSession(t, dbPath, "scenario:add_one")

	_, err = executeScenario(t, "text", dir, "--db", dbPath)
	require.NoError(t, err)
	second := readSession(t, dbPath, "scenario:add_one")

	require.Len(t, second, len(first))
	assert.Equal(t, int64(1), second[0].Seq)
	for i := range first {
		assert.Equal(t, first[i].Action, second[i].Action)
		assert.Equal(t, first[i].LastUpdated, second[i].LastUpdated)
	}
}

func TestFindScenarioFilesSkipsGolden(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "a", passingScenario)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "golden"), 0755))
	writeScenario(t, filepath.Join(dir, "golden"), "stray", passingScenario)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644))

	files, err := findScenarioFiles(dir, "")
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.yaml")}, files)
}

func TestGoldenFilePath(t *testing.T) {
	assert.Equal(t, filepath.Join("scenarios", "golden", "checkout.golden"), goldenFilePath(filepath.Join("scenarios", "checkout.yaml")))
}
