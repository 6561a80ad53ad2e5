package harness

import (
	"fmt"
	"sort"
	"strings"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, ev := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s %s", ev.Seq, ev.Type, ev.Action)
			if ev.Outcome != "" {
				fmt.Fprintf(&buf, " -> %s", ev.Outcome)
			}
			buf.WriteByte('\n')
		}
	}
	return buf.String()
}

// EvaluateAssertions checks every assertion against result and returns the
// failure messages.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string
	for _, a := range assertions {
		var err error
		switch a.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, a)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, a)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, a)
		case AssertFinalState:
			err = assertFinalState(result.Final, a)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			errs = append(errs, err.Error())
		}
	}
	return errs
}

func eventType(a Assertion) string {
	if a.Event == "" {
		return EventCall
	}
	return a.Event
}

// actions returns the actions of the events of type t, in order.
func actions(trace []TraceEvent, t string) []string {
	var out []string
	for _, ev := range trace {
		if ev.Type == t {
			out = append(out, ev.Action)
		}
	}
	return out
}

// assertTraceContains checks an event with the action exists.
func assertTraceContains(trace []TraceEvent, a Assertion) error {
	t := eventType(a)
	for _, name := range actions(trace, t) {
		if name == a.Action {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: fmt.Sprintf("%s %s", t, a.Action),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks the actions appear in the given order.
// Events don't need to be consecutive (intervening events are allowed).
func assertTraceOrder(trace []TraceEvent, a Assertion) error {
	t := eventType(a)
	seen := actions(trace, t)
	next := 0
	for _, name := range seen {
		if next < len(a.Actions) && name == a.Actions[next] {
			next++
		}
	}
	if next == len(a.Actions) {
		return nil
	}
	return &AssertionError{
		Type:     AssertTraceOrder,
		Expected: fmt.Sprintf("%s events in order %v", t, a.Actions),
		Actual:   fmt.Sprintf("matched %d of %d; %s events were %v", next, len(a.Actions), t, seen),
		Trace:    trace,
	}
}

// assertTraceCount checks the action appears exactly Count times.
func assertTraceCount(trace []TraceEvent, a Assertion) error {
	t := eventType(a)
	n := 0
	for _, name := range actions(trace, t) {
		if name == a.Action {
			n++
		}
	}
	if n == a.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertTraceCount,
		Expected: fmt.Sprintf("%s %s x%d", t, a.Action, a.Count),
		Actual:   fmt.Sprintf("x%d", n),
		Trace:    trace,
	}
}

// assertFinalState checks expected fields against the final state.
// Maps match as subsets; scalars compare by their printed form so YAML ints
// match int64 state fields.
func assertFinalState(final map[string]any, a Assertion) error {
	var mismatches []string
	keys := make([]string, 0, len(a.Expect))
	for k := range a.Expect {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		mismatches = append(mismatches, matchValue(k, final[k], a.Expect[k])...)
	}
	if len(mismatches) == 0 {
		return nil
	}
	return &AssertionError{
		Type:     AssertFinalState,
		Expected: fmt.Sprintf("%v", a.Expect),
		Actual:   strings.Join(mismatches, "; "),
	}
}

func matchValue(path string, actual, expected any) []string {
	if want, ok := expected.(map[string]any); ok {
		got, ok := actual.(map[string]any)
		if !ok {
			return []string{fmt.Sprintf("%s: expected a map, got %v", path, actual)}
		}
		keys := make([]string, 0, len(want))
		for k := range want {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var out []string
		for _, k := range keys {
			out = append(out, matchValue(path+"."+k, got[k], want[k])...)
		}
		return out
	}
	if actual == nil {
		return []string{fmt.Sprintf("%s: missing, expected %v", path, expected)}
	}
	if fmt.Sprint(actual) != fmt.Sprint(expected) {
		return []string{fmt.Sprintf("%s: expected %v, got %v", path, expected, actual)}
	}
	return nil
}
