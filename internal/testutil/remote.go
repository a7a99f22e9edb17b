package testutil

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/roach88/formsync/internal/form"
)

// ErrRemoteDown is the default error injected by RecordingRemote.
var ErrRemoteDown = errors.New("remote unavailable")

// RemoteCall records one call made against a RecordingRemote.
type RemoteCall struct {
	// Op is "create" or "update".
	Op string

	// Key is the idempotency key (create only).
	Key string

	// ID is the form id: returned by create, targeted by update.
	// Empty for failed creates.
	ID string

	// Snapshot is a copy of the answers sent.
	Snapshot form.Values

	// Err is the error returned to the caller, if any.
	Err error
}

type failure struct {
	err     error
	applied bool // apply the call, then report err (lost response)
}

// RecordingRemote is an in-memory remote form resource that records
// every call. Creates are idempotent by key, matching the server
// contract. Ids are "form-1", "form-2", ... in creation order.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type RecordingRemote struct {
	mu       sync.Mutex
	calls    []RemoteCall
	forms    map[string]form.Values
	byKey    map[string]string
	failures []failure
	nextID   int
}

// NewRecordingRemote creates an empty remote.
func NewRecordingRemote() *RecordingRemote {
	return &RecordingRemote{
		forms: make(map[string]form.Values),
		byKey: make(map[string]string),
	}
}

// FailNext makes the next n calls fail with err (ErrRemoteDown if nil)
// without being applied.
func (r *RecordingRemote) FailNext(n int, err error) {
	r.queueFailures(n, err, false)
}

// LoseNextResponse makes the next call succeed on the remote side but
// return err to the caller, as when the response is lost in transit.
func (r *RecordingRemote) LoseNextResponse(err error) {
	r.queueFailures(1, err, true)
}

func (r *RecordingRemote) queueFailures(n int, err error, applied bool) {
	if err == nil {
		err = ErrRemoteDown
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := 0; i < n; i++ {
		r.failures = append(r.failures, failure{err: err, applied: applied})
	}
}

// Create implements formsync.Remote.
func (r *RecordingRemote) Create(ctx context.Context, key string, snapshot form.Values) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	call := RemoteCall{Op: "create", Key: key, Snapshot: snapshot.Clone()}
	f, failing := r.takeFailureLocked()
	if failing && !f.applied {
		call.Err = f.err
		r.calls = append(r.calls, call)
		return "", f.err
	}

	id, ok := r.byKey[key]
	if !ok || key == "" {
		r.nextID++
		id = fmt.Sprintf("form-%d", r.nextID)
		if key != "" {
			r.byKey[key] = id
		}
	}
	r.forms[id] = snapshot.Clone()

	if failing {
		call.Err = f.err
		r.calls = append(r.calls, call)
		return "", f.err
	}
	call.ID = id
	r.calls = append(r.calls, call)
	return id, nil
}

// Update implements formsync.Remote.
func (r *RecordingRemote) Update(ctx context.Context, id string, snapshot form.Values) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	call := RemoteCall{Op: "update", ID: id, Snapshot: snapshot.Clone()}
	f, failing := r.takeFailureLocked()
	if failing && !f.applied {
		call.Err = f.err
		r.calls = append(r.calls, call)
		return f.err
	}

	if _, ok := r.forms[id]; !ok {
		call.Err = fmt.Errorf("form %q not found", id)
		r.calls = append(r.calls, call)
		return call.Err
	}
	r.forms[id] = snapshot.Clone()

	if failing {
		call.Err = f.err
	}
	r.calls = append(r.calls, call)
	return call.Err
}

func (r *RecordingRemote) takeFailureLocked() (failure, bool) {
	if len(r.failures) == 0 {
		return failure{}, false
	}
	f := r.failures[0]
	r.failures = r.failures[1:]
	return f, true
}

// Calls returns a copy of every call made so far.
func (r *RecordingRemote) Calls() []RemoteCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]RemoteCall, len(r.calls))
	copy(out, r.calls)
	return out
}

// CountOps returns how many calls of op were made, failed ones included.
func (r *RecordingRemote) CountOps(op string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.calls {
		if c.Op == op {
			n++
		}
	}
	return n
}

// Forms returns the number of remote form resources that exist.
func (r *RecordingRemote) Forms() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.forms)
}

// Form returns the answers stored remotely under id.
func (r *RecordingRemote) Form(id string) (form.Values, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.forms[id]
	if !ok {
		return nil, false
	}
	return v.Clone(), true
}
