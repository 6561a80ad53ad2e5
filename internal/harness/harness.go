package harness

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/cartsync/internal/cache"
	"github.com/roach88/cartsync/internal/cart"
	"github.com/roach88/cartsync/internal/commerce"
	"github.com/roach88/cartsync/internal/engine"
	"github.com/roach88/cartsync/internal/testutil"
)

// DefaultCountryCode is used when a scenario sets none.
const DefaultCountryCode = "us"

// gatewayOps are the backend operations recorded as call events.
var gatewayOps = []string{
	commerce.OpRetrieveCart,
	commerce.OpRetrieveCartForAddress,
	commerce.OpRetrieveCartForShipping,
	commerce.OpRetrieveCartForPayment,
	commerce.OpAddToCart,
	commerce.OpUpdateLineItem,
	commerce.OpDeleteLineItem,
	commerce.OpSetAddresses,
	commerce.OpSetShippingMethod,
	commerce.OpInitiatePaymentSession,
	commerce.OpSelectPaymentSession,
	commerce.OpPlaceOrder,
	commerce.OpFetchInventory,
}

// Harness is the scenario execution engine.
// It runs one scenario with deterministic ids and clocks.
type Harness struct {
	backend *commerce.Backend
	engine  *engine.Engine
	cartIDs *engine.MemoryCartIDs
	sink    engine.DispatchLog
	logger  *slog.Logger
	extra   []engine.Option
	ttl     time.Duration

	mu     sync.Mutex
	result *Result
}

// Option configures a run.
type Option func(*Harness)

// WithDispatchSink also forwards every dispatch to log, e.g. a SQLite session.
func WithDispatchSink(log engine.DispatchLog) Option {
	return func(h *Harness) { h.sink = log }
}

// WithLogger sets the engine logger. Default: logs are discarded.
func WithLogger(l *slog.Logger) Option {
	return func(h *Harness) { h.logger = l }
}

// WithEngineOptions appends options to the engine the scenario runs on.
// They are applied after the harness defaults.
func WithEngineOptions(opts ...engine.Option) Option {
	return func(h *Harness) { h.extra = append(h.extra, opts...) }
}

// WithCacheTTL sets the default response cache TTL.
func WithCacheTTL(ttl time.Duration) Option {
	return func(h *Harness) { h.ttl = ttl }
}

// Run executes a scenario and returns the result.
//
// Each scenario runs against a fresh backend and engine for isolation.
// Execution flow:
// 1. Seed the backend from the catalog
// 2. Execute setup steps
// 3. Execute flow steps with expect validation
// 4. Capture the final state and evaluate assertions
//
// The returned error reports a scenario that could not be executed; a
// scenario whose expectations fail returns a Result with Pass false.
func Run(ctx context.Context, scenario *Scenario, opts ...Option) (*Result, error) {
	h := &Harness{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		result: NewResult(),
	}
	for _, opt := range opts {
		opt(h)
	}

	wall := testutil.NewStepClock(testutil.Epoch, time.Second)
	h.backend = commerce.New(scenario.Catalog,
		commerce.WithIDGenerator(testutil.NewSequentialIDs()),
		commerce.WithNow(wall.Now),
	)
	for _, op := range gatewayOps {
		h.backend.OnCall(op, func(context.Context) {
			h.record(TraceEvent{Type: EventCall, Action: op})
		})
	}

	country := scenario.CountryCode
	if country == "" {
		country = DefaultCountryCode
	}
	// Cache entries never expire within a run.
	cacheOpts := []cache.Option{
		cache.WithNow(func() time.Time { return testutil.Epoch }),
		cache.WithLogger(h.logger),
	}
	if h.ttl > 0 {
		cacheOpts = append(cacheOpts, cache.WithDefaultTTL(h.ttl))
	}
	h.cartIDs = engine.NewMemoryCartIDs()
	engineOpts := []engine.Option{
		engine.WithCache(cache.New(cacheOpts...)),
		engine.WithCartIDStore(h.cartIDs),
		engine.WithDispatchLog(dispatchRecorder{h: h}),
		engine.WithLogger(h.logger),
		engine.WithCountryCode(country),
	}
	h.engine = engine.New(h.backend, append(engineOpts, h.extra...)...)

	for i, step := range scenario.Setup {
		if err := h.backendAction(step.Action, step.Args); err != nil {
			return nil, fmt.Errorf("setup step %d (%s): %w", i, step.Action, err)
		}
	}

	for i, step := range scenario.Flow {
		if err := h.executeStep(ctx, i, step); err != nil {
			return nil, fmt.Errorf("flow step %d (%s): %w", i, step.Invoke, err)
		}
	}

	final, err := h.finalState(ctx)
	if err != nil {
		return nil, fmt.Errorf("capture final state: %w", err)
	}
	h.result.Final = final

	for _, msg := range EvaluateAssertions(h.result, scenario.Assertions) {
		h.result.AddError(msg)
	}
	return h.result, nil
}

// record appends ev to the trace and returns its index.
func (h *Harness) record(ev TraceEvent) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.result.add(ev)
	return len(h.result.Trace) - 1
}

func (h *Harness) setOutcome(index int, outcome string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.result.Trace[index].Outcome = outcome
}

type dispatchRecorder struct {
	h *Harness
}

func (r dispatchRecorder) RecordDispatch(ctx context.Context, rec engine.DispatchRecord) error {
	r.h.record(TraceEvent{
		Type:        EventDispatch,
		Action:      rec.Action,
		CartID:      rec.CartID,
		LastUpdated: rec.LastUpdated,
	})
	if r.h.sink != nil {
		return r.h.sink.RecordDispatch(ctx, rec)
	}
	return nil
}

func (h *Harness) executeStep(ctx context.Context, index int, step FlowStep) error {
	if name, ok := strings.CutPrefix(step.Invoke, BackendPrefix); ok {
		return h.backendAction(name, step.Args)
	}

	at := h.record(TraceEvent{Type: EventInvoke, Action: step.Invoke, Args: step.Args})
	accepted, stepErr, err := h.engineAction(ctx, step.Invoke, step.Args)
	if err != nil {
		return err
	}
	outcome := "accepted"
	switch {
	case stepErr != nil:
		outcome = "error"
	case !accepted:
		outcome = "dropped"
	}
	h.setOutcome(at, outcome)

	if step.Expect != nil {
		for _, msg := range h.checkExpect(index, step, accepted, stepErr) {
			h.result.AddError(msg)
		}
	}
	return nil
}

// engineAction runs one public engine action. stepErr is the error returned
// by the action itself (complete_order only); err means the step could not run.
func (h *Harness) engineAction(ctx context.Context, action string, args map[string]any) (accepted bool, stepErr, err error) {
	switch action {
	case "add_item":
		qty, err := intArg(args, "quantity", 1)
		if err != nil {
			return false, nil, err
		}
		meta, err := stringMapArg(args, "metadata")
		if err != nil {
			return false, nil, err
		}
		return h.engine.AddItem(ctx, stringArg(args, "variant_id"), qty, meta), nil, nil

	case "update_item":
		qty, err := intArg(args, "quantity", 1)
		if err != nil {
			return false, nil, err
		}
		return h.engine.UpdateItem(ctx, h.lineID(args), qty), nil, nil

	case "remove_item":
		return h.engine.RemoveItem(ctx, h.lineID(args)), nil, nil

	case "set_address":
		var in addressArgs
		if err := decodeArgs(args, &in); err != nil {
			return false, nil, err
		}
		return h.engine.SetAddress(ctx, in.input()), nil, nil

	case "set_shipping":
		var data map[string]any
		if raw, ok := args["data"]; ok {
			m, ok := raw.(map[string]any)
			if !ok {
				return false, nil, fmt.Errorf("data: expected a map, got %T", raw)
			}
			data = m
		}
		return h.engine.SetShipping(ctx, stringArg(args, "option_id"), data), nil, nil

	case "set_payment":
		return h.engine.SetPayment(ctx, stringArg(args, "provider_id")), nil, nil

	case "complete_order":
		skip, _ := args["skip_redirect_check"].(bool)
		_, stepErr := h.engine.CompleteOrder(ctx, skip, stringArg(args, "cart_id"))
		return stepErr == nil, stepErr, nil

	case "refresh_cart":
		scope, err := cart.ParseScope(stringArg(args, "scope"))
		if err != nil {
			return false, nil, err
		}
		h.engine.RefreshCart(ctx, scope)
		return true, nil, nil

	case "refresh_inventory":
		h.engine.RefreshInventory(ctx)
		return true, nil, nil

	case "clear_error":
		h.engine.ClearError(ctx)
		return true, nil, nil
	}
	return false, nil, fmt.Errorf("unknown action %q", action)
}

func (h *Harness) backendAction(action string, args map[string]any) error {
	at := h.record(TraceEvent{Type: EventInvoke, Action: BackendPrefix + action, Args: args})
	h.setOutcome(at, "ok")

	switch action {
	case "set_stock":
		stock, err := intArg(args, "stock", 0)
		if err != nil {
			return err
		}
		return h.backend.SetStock(stringArg(args, "variant_id"), stock)

	case "fail_next":
		op := stringArg(args, "op")
		if op == "" {
			return fmt.Errorf("fail_next: op is required")
		}
		kind := engine.KindGeneric
		if name := stringArg(args, "kind"); name != "" {
			k, err := engine.ParseErrorKind(name)
			if err != nil {
				return err
			}
			kind = k
		}
		msg := stringArg(args, "message")
		if msg == "" {
			msg = "injected failure"
		}
		h.backend.FailNext(op, engine.NewGatewayError(kind, op, msg))
		return nil

	case "complete_cart":
		id := stringArg(args, "cart_id")
		if id == "" {
			if c := h.engine.Cart(); c != nil {
				id = c.ID
			}
		}
		if id == "" {
			return fmt.Errorf("complete_cart: no active cart")
		}
		return h.backend.CompleteCart(id)
	}
	return fmt.Errorf("unknown backend action %q", action)
}

// lineID resolves item_id, or the line of variant_id in the current cart.
func (h *Harness) lineID(args map[string]any) string {
	if id := stringArg(args, "item_id"); id != "" {
		return id
	}
	if it, ok := h.engine.Cart().ItemByVariant(stringArg(args, "variant_id")); ok {
		return it.ID
	}
	return ""
}

func (h *Harness) checkExpect(index int, step FlowStep, accepted bool, stepErr error) []string {
	var errs []string
	exp := step.Expect
	state := h.engine.Snapshot()

	if exp.Accepted != nil && *exp.Accepted != accepted {
		errs = append(errs, fmt.Sprintf("flow[%d] %s: expected accepted=%v, got %v", index, step.Invoke, *exp.Accepted, accepted))
	}
	if exp.ErrorKind != "" {
		if got := errorKind(state); got != exp.ErrorKind {
			errs = append(errs, fmt.Sprintf("flow[%d] %s: expected error_kind %s, got %s", index, step.Invoke, exp.ErrorKind, got))
		}
	}
	if exp.Error != "" {
		var texts []string
		if stepErr != nil {
			texts = append(texts, stepErr.Error())
		}
		if state.Error != nil {
			texts = append(texts, state.Error.Message)
		}
		if !containsAny(texts, exp.Error) {
			errs = append(errs, fmt.Sprintf("flow[%d] %s: expected error containing %q, got %q", index, step.Invoke, exp.Error, texts))
		}
	}
	return errs
}

// finalState renders the engine and backend state for final_state assertions.
func (h *Harness) finalState(ctx context.Context) (map[string]any, error) {
	state := h.engine.Snapshot()
	derived := cart.Derive(state.Cart)
	stored, err := h.cartIDs.CartID(ctx)
	if err != nil {
		return nil, err
	}

	quantities := map[string]any{}
	final := map[string]any{
		"cart":               state.Cart != nil,
		"cart_id":            "",
		"item_count":         derived.ItemCount,
		"stage":              string(derived.Stage),
		"ready_for_checkout": derived.IsReadyForCheckout,
		"has_address":        derived.HasAddress,
		"has_shipping":       derived.HasShipping,
		"has_payment":        derived.HasPayment,
		"error_kind":         errorKind(state),
		"error":              "",
		"loading":            state.Loading,
		"last_updated":       state.LastUpdated,
		"stored_cart_id":     stored,
		"orders":             len(h.backend.Orders()),
		"quantities":         quantities,
		"total":              int64(0),
	}
	if state.Error != nil {
		final["error"] = state.Error.Message
	}
	if c := state.Cart; c != nil {
		final["cart_id"] = c.ID
		final["total"] = c.Totals.Total
		for _, it := range c.Items {
			prev, _ := quantities[it.VariantID].(int)
			quantities[it.VariantID] = prev + it.Quantity
		}
	}
	inventory := map[string]any{}
	for id, snap := range state.Inventory {
		inventory[id] = snap.InventoryQuantity
	}
	final["inventory"] = inventory
	return final, nil
}

// addressArgs is the YAML shape of set_address args.
type addressArgs struct {
	Email    string       `yaml:"email"`
	Shipping addressYAML  `yaml:"shipping_address"`
	Billing  *addressYAML `yaml:"billing_address"`
	Invoice  *struct {
		CompanyName string `yaml:"company_name"`
		TaxID       string `yaml:"tax_id"`
	} `yaml:"invoice"`
}

type addressYAML struct {
	FirstName   string `yaml:"first_name"`
	LastName    string `yaml:"last_name"`
	Company     string `yaml:"company"`
	Address1    string `yaml:"address_1"`
	Address2    string `yaml:"address_2"`
	City        string `yaml:"city"`
	PostalCode  string `yaml:"postal_code"`
	Province    string `yaml:"province"`
	CountryCode string `yaml:"country_code"`
	Phone       string `yaml:"phone"`
}

func (a addressYAML) address() cart.Address {
	return cart.Address{
		FirstName:   a.FirstName,
		LastName:    a.LastName,
		Company:     a.Company,
		Address1:    a.Address1,
		Address2:    a.Address2,
		City:        a.City,
		PostalCode:  a.PostalCode,
		Province:    a.Province,
		CountryCode: a.CountryCode,
		Phone:       a.Phone,
	}
}

func (a addressArgs) input() engine.AddressInput {
	in := engine.AddressInput{
		Email:           a.Email,
		ShippingAddress: a.Shipping.address(),
	}
	if a.Billing != nil {
		bill := a.Billing.address()
		in.BillingAddress = &bill
	}
	if a.Invoice != nil {
		in.Invoice = &engine.InvoiceDetails{CompanyName: a.Invoice.CompanyName, TaxID: a.Invoice.TaxID}
	}
	return in
}

// decodeArgs re-decodes generic YAML args into dst, rejecting unknown fields.
func decodeArgs(args map[string]any, dst any) error {
	data, err := yaml.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode args: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("decode args: %w", err)
	}
	return nil
}

func stringArg(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}

func intArg(args map[string]any, key string, def int) (int, error) {
	raw, ok := args[key]
	if !ok {
		return def, nil
	}
	n, ok := raw.(int)
	if !ok {
		return 0, fmt.Errorf("%s: expected an integer, got %T", key, raw)
	}
	return n, nil
}

func stringMapArg(args map[string]any, key string) (map[string]string, error) {
	raw, ok := args[key]
	if !ok {
		return nil, nil
	}
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%s: expected a map, got %T", key, raw)
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = fmt.Sprint(v)
	}
	return out, nil
}

func errorKind(state engine.State) string {
	if state.Error == nil {
		return "none"
	}
	return state.Error.Kind.String()
}

func containsAny(texts []string, sub string) bool {
	for _, t := range texts {
		if strings.Contains(t, sub) {
			return true
		}
	}
	return false
}
