package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalScenario = `
name: minimal
description: "one add"
catalog:
  variants:
    - { id: var_a, product_id: prod_a, price: 100, stock: 1, manage_inventory: true }
flow:
  - invoke: add_item
    args: { variant_id: var_a }
`

func TestParseScenario_Minimal(t *testing.T) {
	s, err := ParseScenario([]byte(minimalScenario))
	require.NoError(t, err)
	assert.Equal(t, "minimal", s.Name)
	require.Len(t, s.Catalog.Variants, 1)
	assert.Equal(t, int64(100), s.Catalog.Variants[0].Price)
	assert.True(t, s.Catalog.Variants[0].ManageInventory)
	require.Len(t, s.Flow, 1)
	assert.Equal(t, "var_a", s.Flow[0].Args["variant_id"])
}

func TestLoadScenario_File(t *testing.T) {
	s, err := LoadScenario(filepath.Join("testdata", "scenarios", "inventory_conflict.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "inventory_conflict", s.Name)
	require.Len(t, s.Flow, 2)
	require.NotNil(t, s.Flow[1].Expect)
	assert.Equal(t, "inventory_conflict", s.Flow[1].Expect.ErrorKind)
	require.NotNil(t, s.Flow[1].Expect.Accepted)
	assert.True(t, *s.Flow[1].Expect.Accepted)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestParseScenario_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "unknown field",
			yaml:    minimalScenario + "assertion: []\n",
			wantErr: "field assertion not found",
		},
		{
			name: "missing name",
			yaml: `
description: "x"
catalog: { variants: [{ id: v }] }
flow: [{ invoke: clear_error }]
`,
			wantErr: "name is required",
		},
		{
			name: "missing description",
			yaml: `
name: x
catalog: { variants: [{ id: v }] }
flow: [{ invoke: clear_error }]
`,
			wantErr: "description is required",
		},
		{
			name: "empty catalog",
			yaml: `
name: x
description: "x"
flow: [{ invoke: clear_error }]
`,
			wantErr: "catalog.variants is required",
		},
		{
			name: "empty flow",
			yaml: `
name: x
description: "x"
catalog: { variants: [{ id: v }] }
`,
			wantErr: "flow list is required",
		},
		{
			name: "unknown action",
			yaml: `
name: x
description: "x"
catalog: { variants: [{ id: v }] }
flow: [{ invoke: add_items }]
`,
			wantErr: `unknown action "add_items"`,
		},
		{
			name: "unknown backend action",
			yaml: `
name: x
description: "x"
catalog: { variants: [{ id: v }] }
flow: [{ invoke: backend.explode }]
`,
			wantErr: `unknown backend action "explode"`,
		},
		{
			name: "backend step with expect",
			yaml: `
name: x
description: "x"
catalog: { variants: [{ id: v }] }
flow: [{ invoke: backend.set_stock, args: { variant_id: v, stock: 1 }, expect: { accepted: true } }]
`,
			wantErr: "backend actions take no expect clause",
		},
		{
			name: "unknown setup action",
			yaml: `
name: x
description: "x"
catalog: { variants: [{ id: v }] }
setup: [{ action: add_item, args: {} }]
flow: [{ invoke: clear_error }]
`,
			wantErr: `setup[0]: unknown backend action "add_item"`,
		},
		{
			name: "unknown assertion type",
			yaml: `
name: x
description: "x"
catalog: { variants: [{ id: v }] }
flow: [{ invoke: clear_error }]
assertions: [{ type: trace_sum }]
`,
			wantErr: `unknown assertion type "trace_sum"`,
		},
		{
			name: "unknown event type",
			yaml: `
name: x
description: "x"
catalog: { variants: [{ id: v }] }
flow: [{ invoke: clear_error }]
assertions: [{ type: trace_count, event: log, action: x }]
`,
			wantErr: `unknown event type "log"`,
		},
		{
			name: "final_state without expect",
			yaml: `
name: x
description: "x"
catalog: { variants: [{ id: v }] }
flow: [{ invoke: clear_error }]
assertions: [{ type: final_state }]
`,
			wantErr: "expect is required for final_state",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestBuiltinScenarios(t *testing.T) {
	names := BuiltinScenarios()
	assert.Contains(t, names, "checkout")

	s, err := BuiltinScenario("checkout")
	require.NoError(t, err)
	assert.Equal(t, "checkout", s.Name)

	_, err = BuiltinScenario("nope")
	require.Error(t, err)
}
