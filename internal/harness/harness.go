package harness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/formsync/internal/form"
	"github.com/roach88/formsync/internal/formsync"
	"github.com/roach88/formsync/internal/store"
	"github.com/roach88/formsync/internal/testutil"
)

// errInjected is the local write failure injected by local: fail_writes.
var errInjected = errors.New("injected write failure")

// Harness is the scenario execution engine.
// It runs scenarios with a fixed session key and sequential remote ids.
type Harness struct {
	store  *store.Store
	local  *switchableStore
	remote *testutil.RecordingRemote
	sync   *formsync.Synchronizer
	logger *slog.Logger

	seenCalls int
}

// switchableStore fails local writes while failing is set.
type switchableStore struct {
	*store.Store

	mu      sync.Mutex
	failing bool
}

func (s *switchableStore) setFailing(v bool) {
	s.mu.Lock()
	s.failing = v
	s.mu.Unlock()
}

func (s *switchableStore) isFailing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failing
}

func (s *switchableStore) SetGroup(ctx context.Context, name string, values form.Values) error {
	if s.isFailing() {
		return &store.StorageWriteError{Op: store.OpSetGroup, Key: name, Err: errInjected}
	}
	return s.Store.SetGroup(ctx, name, values)
}

func (s *switchableStore) SetValue(ctx context.Context, key string, value form.Value) error {
	if s.isFailing() {
		return &store.StorageWriteError{Op: store.OpSetValue, Key: key, Err: errInjected}
	}
	return s.Store.SetValue(ctx, key, value)
}

// RunOption configures Run.
type RunOption func(*Harness)

// WithLogger sends step progress to logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) RunOption {
	return func(h *Harness) {
		h.logger = logger
	}
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
//
// Execution flow:
//  1. Create fresh in-memory database and recording remote
//  2. Execute steps, tracing submissions and the remote calls they made
//  3. Record the final snapshot and form identifier
//  4. Evaluate assertions
func Run(scenario *Scenario, opts ...RunOption) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	local := &switchableStore{Store: st}
	remote := testutil.NewRecordingRemote()
	h := &Harness{
		store:  st,
		local:  local,
		remote: remote,
		sync: formsync.New(local, remote,
			formsync.WithKeyGenerator(testutil.NewFixedKeyGenerator(scenario.SessionKey)),
		),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}

	ctx := context.Background()
	result := NewResult()

	for i, step := range scenario.Steps {
		if err := h.executeStep(ctx, i, step, result); err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
	}

	snapshot, err := st.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read final snapshot: %w", err)
	}
	formID, _, err := st.GetString(ctx, store.KeyFormIdentifier)
	if err != nil {
		return nil, fmt.Errorf("failed to read form identifier: %w", err)
	}
	result.Snapshot = snapshot
	result.FormID = formID
	result.addEvent(TraceEvent{Type: EventFinal, FormID: formID, Values: snapshot})

	for _, msg := range EvaluateAssertions(result, scenario.Assertions, remote) {
		result.AddError(msg)
	}
	return result, nil
}

func (h *Harness) executeStep(ctx context.Context, i int, step Step, result *Result) error {
	switch {
	case step.Submit != "":
		return h.executeSubmit(ctx, i, step, result)

	case step.Remote == "fail":
		h.remote.FailNext(step.Count, nil)
		result.addEvent(TraceEvent{Type: EventInject, Detail: fmt.Sprintf("remote fail x%d", step.Count)})

	case step.Remote == "lose_response":
		h.remote.LoseNextResponse(nil)
		result.addEvent(TraceEvent{Type: EventInject, Detail: "remote lose_response"})

	case step.Local != "":
		h.local.setFailing(step.Local == "fail_writes")
		result.addEvent(TraceEvent{Type: EventInject, Detail: "local " + step.Local})

	case step.Reset:
		if err := h.store.Reset(ctx); err != nil {
			return fmt.Errorf("reset: %w", err)
		}
		result.addEvent(TraceEvent{Type: EventReset})
	}
	return nil
}

func (h *Harness) executeSubmit(ctx context.Context, i int, step Step, result *Result) error {
	values, err := form.FromMap(step.Values)
	if err != nil {
		return fmt.Errorf("submit %q: %w", step.Submit, err)
	}
	result.addEvent(TraceEvent{Type: EventSubmit, Group: step.Submit, Values: values})

	id, err := h.sync.SubmitPage(ctx, step.Submit, values)
	h.traceRemoteCalls(result)

	ev := TraceEvent{Type: EventResult, Group: step.Submit}
	var se *formsync.SyncError
	switch {
	case err == nil:
		ev.Outcome = OutcomeOK
		ev.FormID = id
	case errors.As(err, &se):
		ev.Outcome = OutcomeSyncError
		ev.Code = string(se.Code)
		ev.FormID = se.FormID
	case formsync.IsStorageWriteError(err):
		ev.Outcome = OutcomeStorageError
	default:
		return fmt.Errorf("submit %q: %w", step.Submit, err)
	}
	result.addEvent(ev)

	if step.Expect != nil {
		if msg := checkExpect(i, step, ev); msg != "" {
			result.AddError(msg)
		}
	}

	h.logger.Info("submit step completed",
		"step", i,
		"group", step.Submit,
		"outcome", ev.Outcome,
		"form_id", ev.FormID,
	)
	return nil
}

// traceRemoteCalls appends the remote calls made since the last call.
func (h *Harness) traceRemoteCalls(result *Result) {
	calls := h.remote.Calls()
	for _, c := range calls[h.seenCalls:] {
		ev := TraceEvent{Type: c.Op, Key: c.Key, FormID: c.ID, Values: c.Snapshot}
		if c.Err != nil {
			ev.Error = c.Err.Error()
		}
		result.addEvent(ev)
	}
	h.seenCalls = len(calls)
}

func checkExpect(i int, step Step, ev TraceEvent) string {
	exp := step.Expect
	if exp.Outcome != ev.Outcome {
		return fmt.Sprintf("steps[%d] submit %q: expected outcome %s, got %s", i, step.Submit, exp.Outcome, ev.Outcome)
	}
	if exp.FormID != "" && exp.FormID != ev.FormID {
		return fmt.Sprintf("steps[%d] submit %q: expected form_id %s, got %s", i, step.Submit, exp.FormID, ev.FormID)
	}
	if exp.Code != "" && exp.Code != ev.Code {
		return fmt.Sprintf("steps[%d] submit %q: expected code %s, got %s", i, step.Submit, exp.Code, ev.Code)
	}
	return ""
}
