package harness

// Trace event types.
const (
	EventInvoke   = "invoke"
	EventCall     = "call"
	EventDispatch = "dispatch"
)

// TraceEvent is one entry of a scenario trace.
type TraceEvent struct {
	Type        string         `json:"type"`
	Action      string         `json:"action"`
	Args        map[string]any `json:"args,omitempty"`
	Outcome     string         `json:"outcome,omitempty"`
	CartID      string         `json:"cart_id,omitempty"`
	LastUpdated int64          `json:"last_updated,omitempty"`
	Seq         int64          `json:"seq"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every expect clause and assertion matched.
	Pass bool `json:"pass"`

	// Trace contains every invoke, call and dispatch in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains expectation and assertion failures.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Final is the engine and backend state after the flow.
	Final map[string]any `json:"final"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
		Final:  map[string]any{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

func (r *Result) add(ev TraceEvent) {
	ev.Seq = int64(len(r.Trace) + 1)
	r.Trace = append(r.Trace, ev)
}
