package harness

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// MarshalTrace renders a trace as one JSON object per line. Answer maps
// are canonical, so identical runs produce identical bytes.
func MarshalTrace(trace []TraceEvent) ([]byte, error) {
	var buf bytes.Buffer
	for _, ev := range trace {
		line, err := json.Marshal(ev)
		if err != nil {
			return nil, fmt.Errorf("trace event %d: %w", ev.Seq, err)
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

// RunWithGolden executes a scenario, fails the test on any expect or
// assertion error and compares the trace against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(testLogWriter{t}, nil))
	result, err := Run(scenario, WithLogger(logger))
	if err != nil {
		return err
	}
	for _, msg := range result.Errors {
		t.Error(msg)
	}

	return AssertGolden(t, scenario.Name, result)
}

// testLogWriter forwards log lines to t.Log.
type testLogWriter struct {
	t *testing.T
}

func (w testLogWriter) Write(p []byte) (int, error) {
	w.t.Helper()
	w.t.Log(string(bytes.TrimRight(p, "\n")))
	return len(p), nil
}

// AssertGolden compares an existing result's trace against a golden file.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	traceJSON, err := MarshalTrace(result.Trace)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, traceJSON)
	return nil
}
