package harness

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/cartsync/internal/commerce"
)

// Scenario defines a checkout scenario.
// A scenario seeds a backend, executes a flow of actions and asserts on the
// resulting trace and final state.
type Scenario struct {
	// Name uniquely identifies this scenario. It names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// CountryCode is the engine's default country. Default: "us".
	CountryCode string `yaml:"country_code,omitempty"`

	// Catalog seeds the backend.
	Catalog commerce.Catalog `yaml:"catalog"`

	// Setup contains backend actions applied before the flow.
	// Setup actions must succeed.
	Setup []ActionStep `yaml:"setup,omitempty"`

	// Flow contains the steps under test, each with an optional expectation.
	Flow []FlowStep `yaml:"flow"`

	// Assertions validate the final trace and state.
	// Supported types: trace_contains, trace_order, trace_count, final_state
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// ActionStep is a backend action used in Setup.
type ActionStep struct {
	// Action is the backend action name (e.g., "set_stock").
	Action string `yaml:"action"`

	// Args contains the action arguments.
	Args map[string]any `yaml:"args"`
}

// FlowStep is one step of the main flow.
type FlowStep struct {
	// Invoke is an engine action, or a backend action prefixed "backend.".
	Invoke string `yaml:"invoke"`

	// Args contains the action arguments.
	Args map[string]any `yaml:"args,omitempty"`

	// Expect specifies the expected outcome.
	// If nil, no validation is performed.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause specifies the expected outcome of a flow step.
// Unset fields are not checked.
type ExpectClause struct {
	// Accepted is whether the engine ran the action (false means dropped
	// or, for complete_order, an error was returned).
	Accepted *bool `yaml:"accepted,omitempty"`

	// ErrorKind is the kind in the error slot after the step, or "none".
	ErrorKind string `yaml:"error_kind,omitempty"`

	// Error is a substring of the returned error or the error slot message.
	Error string `yaml:"error,omitempty"`
}

// Assertion validates the trace or the final state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "trace_contains": Check an event appears in the trace
	// - "trace_order": Check events appear in order
	// - "trace_count": Check an event appears exactly N times
	// - "final_state": Check final state fields (subset match)
	Type string `yaml:"type"`

	// Event is the trace event type: invoke, call or dispatch.
	// Default: call.
	Event string `yaml:"event,omitempty"`

	// Action is the event action (used by trace_contains, trace_count).
	Action string `yaml:"action,omitempty"`

	// Count is the expected number of occurrences (used by trace_count).
	Count int `yaml:"count,omitempty"`

	// Actions is the expected order (used by trace_order).
	Actions []string `yaml:"actions,omitempty"`

	// Expect contains expected final state values (used by final_state).
	Expect map[string]any `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
)

// BackendPrefix marks flow steps that act on the backend.
const BackendPrefix = "backend."

var engineActions = map[string]bool{
	"add_item":          true,
	"update_item":       true,
	"remove_item":       true,
	"set_address":       true,
	"set_shipping":      true,
	"set_payment":       true,
	"complete_order":    true,
	"refresh_cart":      true,
	"refresh_inventory": true,
	"clear_error":       true,
}

var backendActions = map[string]bool{
	"set_stock":     true,
	"fail_next":     true,
	"complete_cart": true,
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Catalog.Variants) == 0 {
		return fmt.Errorf("catalog.variants is required and must be non-empty")
	}
	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}

	for i, step := range s.Setup {
		if !backendActions[step.Action] {
			return fmt.Errorf("setup[%d]: unknown backend action %q", i, step.Action)
		}
	}

	for i, step := range s.Flow {
		if step.Invoke == "" {
			return fmt.Errorf("flow[%d]: invoke is required", i)
		}
		if name, ok := strings.CutPrefix(step.Invoke, BackendPrefix); ok {
			if !backendActions[name] {
				return fmt.Errorf("flow[%d]: unknown backend action %q", i, name)
			}
			if step.Expect != nil {
				return fmt.Errorf("flow[%d]: backend actions take no expect clause", i)
			}
			continue
		}
		if !engineActions[step.Invoke] {
			return fmt.Errorf("flow[%d]: unknown action %q", i, step.Invoke)
		}
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}
	switch a.Event {
	case "", EventInvoke, EventCall, EventDispatch:
	default:
		return fmt.Errorf("assertions[%d]: unknown event type %q", index, a.Event)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Action == "" {
			return fmt.Errorf("assertions[%d]: action is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Actions) == 0 {
			return fmt.Errorf("assertions[%d]: actions list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Action == "" {
			return fmt.Errorf("assertions[%d]: action is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertFinalState:
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
