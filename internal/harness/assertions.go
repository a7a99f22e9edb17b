package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/formsync/internal/form"
	"github.com/roach88/formsync/internal/testutil"
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

	fmt.Fprintf(&buf, "\nFull trace:\n")
	for _, event := range e.Trace {
		switch event.Type {
		case EventSubmit:
			fmt.Fprintf(&buf, "  [%d] submit %s\n", event.Seq, event.Group)
		case EventResult:
			fmt.Fprintf(&buf, "  [%d]   -> %s %s%s\n", event.Seq, event.Outcome, event.FormID, event.Code)
		case EventCreate, EventUpdate:
			fmt.Fprintf(&buf, "  [%d]   %s %s %s\n", event.Seq, event.Type, event.FormID, event.Error)
		}
	}

	return buf.String()
}

// assertRemoteCount checks how many remote calls of an operation were made.
func assertRemoteCount(result *Result, remote *testutil.RecordingRemote, a Assertion) error {
	got := remote.CountOps(a.Op)
	if got == a.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertRemoteCount,
		Expected: fmt.Sprintf("%d %s call(s)", a.Count, a.Op),
		Actual:   fmt.Sprintf("%d %s call(s)", got, a.Op),
		Trace:    result.Trace,
	}
}

// assertRemoteForms checks how many remote forms exist.
func assertRemoteForms(result *Result, remote *testutil.RecordingRemote, a Assertion) error {
	got := remote.Forms()
	if got == a.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertRemoteForms,
		Expected: fmt.Sprintf("%d remote form(s)", a.Count),
		Actual:   fmt.Sprintf("%d remote form(s)", got),
		Trace:    result.Trace,
	}
}

// assertFinalSnapshot checks the expected answers are in the final
// snapshot (subset match).
func assertFinalSnapshot(result *Result, a Assertion) error {
	want, err := form.FromMap(a.Expect)
	if err != nil {
		return &AssertionError{
			Type:     AssertFinalSnapshot,
			Expected: fmt.Sprintf("valid expect map: %v", err),
			Actual:   "invalid assertion",
			Trace:    result.Trace,
		}
	}

	var mismatches []string
	for _, k := range want.SortedKeys() {
		got, ok := result.Snapshot[k]
		if !ok {
			mismatches = append(mismatches, fmt.Sprintf("%s: missing", k))
			continue
		}
		if !valuesEqual(got, want[k]) {
			mismatches = append(mismatches, fmt.Sprintf("%s: got %v, want %v", k, form.ToAny(got), form.ToAny(want[k])))
		}
	}
	if len(mismatches) == 0 {
		return nil
	}
	return &AssertionError{
		Type:     AssertFinalSnapshot,
		Expected: fmt.Sprintf("snapshot containing %v", a.Expect),
		Actual:   strings.Join(mismatches, "; "),
		Trace:    result.Trace,
	}
}

// assertFormIdentifier checks the stored form identifier.
func assertFormIdentifier(result *Result, a Assertion) error {
	if result.FormID == a.FormID {
		return nil
	}
	return &AssertionError{
		Type:     AssertFormIdentifier,
		Expected: fmt.Sprintf("form identifier %q", a.FormID),
		Actual:   fmt.Sprintf("form identifier %q", result.FormID),
		Trace:    result.Trace,
	}
}

// assertOutcomeCount checks how many submissions ended with an outcome.
func assertOutcomeCount(result *Result, a Assertion) error {
	got := 0
	for _, ev := range result.Trace {
		if ev.Type == EventResult && ev.Outcome == a.Outcome {
			got++
		}
	}
	if got == a.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertOutcomeCount,
		Expected: fmt.Sprintf("%d %s submit(s)", a.Count, a.Outcome),
		Actual:   fmt.Sprintf("%d %s submit(s)", got, a.Outcome),
		Trace:    result.Trace,
	}
}

// valuesEqual compares two answers, treating nil as Null.
func valuesEqual(a, b form.Value) bool {
	if a == nil {
		a = form.Null{}
	}
	if b == nil {
		b = form.Null{}
	}
	return a == b
}

// EvaluateAssertions runs every assertion and returns the failure messages.
func EvaluateAssertions(result *Result, assertions []Assertion, remote *testutil.RecordingRemote) []string {
	var errs []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertRemoteCount:
			err = assertRemoteCount(result, remote, a)
		case AssertRemoteForms:
			err = assertRemoteForms(result, remote, a)
		case AssertFinalSnapshot:
			err = assertFinalSnapshot(result, a)
		case AssertFormIdentifier:
			err = assertFormIdentifier(result, a)
		case AssertOutcomeCount:
			err = assertOutcomeCount(result, a)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			errs = append(errs, fmt.Sprintf("assertion %d: %v", i, err))
		}
	}
	return errs
}
