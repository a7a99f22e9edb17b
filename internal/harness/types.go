package harness

import "github.com/roach88/formsync/internal/form"

// Trace event types.
const (
	EventSubmit = "submit"
	EventCreate = "create"
	EventUpdate = "update"
	EventResult = "result"
	EventInject = "inject"
	EventReset  = "reset"
	EventFinal  = "final"
)

// Submit outcomes.
const (
	OutcomeOK           = "ok"
	OutcomeSyncError    = "sync_error"
	OutcomeStorageError = "storage_error"
)

// TraceEvent is one line of a scenario trace.
type TraceEvent struct {
	Seq     int         `json:"seq"`
	Type    string      `json:"type"`
	Group   string      `json:"group,omitempty"`
	Key     string      `json:"key,omitempty"`
	FormID  string      `json:"form_id,omitempty"`
	Outcome string      `json:"outcome,omitempty"`
	Code    string      `json:"code,omitempty"`
	Error   string      `json:"error,omitempty"`
	Detail  string      `json:"detail,omitempty"`
	Values  form.Values `json:"values,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every expect clause and assertion held.
	Pass bool `json:"pass"`

	// Trace lists submissions, remote calls and outcomes in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Snapshot is the final local snapshot.
	Snapshot form.Values `json:"snapshot"`

	// FormID is the final stored form identifier.
	FormID string `json:"form_id,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// addEvent appends ev with the next sequence number.
func (r *Result) addEvent(ev TraceEvent) {
	ev.Seq = len(r.Trace) + 1
	r.Trace = append(r.Trace, ev)
}
