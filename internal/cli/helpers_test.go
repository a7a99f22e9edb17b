package cli

import (
	"bytes"
	"context"
	"fmt"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/roach88/formsync/internal/form"
	"github.com/roach88/formsync/internal/formserver"
	"github.com/roach88/formsync/internal/store"
	"github.com/roach88/formsync/internal/testutil"
)

// execute runs cmd with args and returns everything it printed.
func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

// testRootOptions returns text-format options with a fixed session key.
func testRootOptions() *RootOptions {
	return &RootOptions{
		Format:       "text",
		KeyGenerator: testutil.NewFixedKeyGenerator("cli-session"),
	}
}

// newFormServer starts an in-memory form service issuing form-1, form-2, ...
func newFormServer(t *testing.T) (*formserver.Server, string) {
	t.Helper()
	var n atomic.Int64
	srv := formserver.New(
		formserver.WithIDGenerator(func() string {
			return fmt.Sprintf("form-%d", n.Add(1))
		}),
		formserver.WithClock(func() time.Time { return testutil.Epoch }),
	)
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	return srv, ts.URL
}

// closedServerURL returns the URL of a server that no longer listens.
func closedServerURL(t *testing.T) string {
	t.Helper()
	ts := httptest.NewServer(formserver.New())
	url := ts.URL
	ts.Close()
	return url
}

// tempDB returns a database path in a fresh temp dir.
func tempDB(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "formsync.db")
}

// seedStore writes groups (in order) and point values into the database at path.
func seedStore(t *testing.T, path string, groups []string, values map[string]form.Values, points form.Values) {
	t.Helper()
	st, err := store.Open(path)
	require.NoError(t, err)
	defer st.Close()

	ctx := context.Background()
	for _, g := range groups {
		require.NoError(t, st.SetGroup(ctx, g, values[g]))
	}
	for k, v := range points {
		require.NoError(t, st.SetValue(ctx, k, v))
	}
}

// readSnapshot opens the database at path and returns its snapshot.
func readSnapshot(t *testing.T, path string) form.Values {
	t.Helper()
	st, err := store.Open(path)
	require.NoError(t, err)
	defer st.Close()

	snapshot, err := st.Snapshot(context.Background())
	require.NoError(t, err)
	return snapshot
}
