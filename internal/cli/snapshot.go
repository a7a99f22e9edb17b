package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/formsync/internal/form"
	"github.com/roach88/formsync/internal/formsync"
)

// LocalOptions holds flags for commands that only read or reset the
// local store.
type LocalOptions struct {
	*RootOptions
	Database string
}

func (o *LocalOptions) addFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.Database, "db", "", "path to SQLite database")
}

// StatusResult is the JSON payload of the status command.
type StatusResult struct {
	FormID       string            `json:"form_id,omitempty"`
	Groups       []string          `json:"groups"`
	GroupHashes  map[string]string `json:"group_hashes"`
	Fields       int               `json:"fields"`
	SnapshotHash string            `json:"snapshot_hash"`
	Syncing      bool              `json:"syncing,omitempty"`
}

// NewSnapshotCommand creates the snapshot command.
func NewSnapshotCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LocalOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Print the flattened local answers",
		Long: `Print every stored field group merged into one snapshot, exactly as it
would be sent to the remote form. Later groups win on conflicting fields.

Example:
  formsync snapshot --db ./formsync.db --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSnapshot(opts, cmd)
		},
	}
	opts.addFlags(cmd)

	return cmd
}

func runSnapshot(opts *LocalOptions, cmd *cobra.Command) error {
	cfg, err := opts.resolveConfig(cmd, map[string]string{keyStorePath: "db"})
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore(st)

	snapshot, err := st.Snapshot(cmd.Context())
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read snapshot", err)
	}

	return opts.formatter(cmd).Success(snapshot, formatValues(snapshot))
}

// formatValues renders answers one per line in canonical key order.
func formatValues(values form.Values) string {
	if len(values) == 0 {
		return "(no answers)"
	}
	var b strings.Builder
	for i, k := range values.SortedKeys() {
		if i > 0 {
			b.WriteByte('\n')
		}
		data, err := form.MarshalCanonical(values[k])
		if err != nil {
			data = []byte(fmt.Sprintf("%v", values[k]))
		}
		fmt.Fprintf(&b, "%s = %s", k, data)
	}
	return b.String()
}

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LocalOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show local progress and the remote form identifier",
		Long: `Show which field groups are stored on this device, the remote form
identifier (once the first sync succeeded) and the snapshot hash.

Example:
  formsync status --db ./formsync.db`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(opts, cmd)
		},
	}
	opts.addFlags(cmd)

	return cmd
}

func runStatus(opts *LocalOptions, cmd *cobra.Command) error {
	cfg, err := opts.resolveConfig(cmd, map[string]string{keyStorePath: "db"})
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore(st)

	ctx := cmd.Context()
	status, err := formsync.New(st, nil).Status(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read status", err)
	}
	groups, err := st.Groups(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read groups", err)
	}

	result := StatusResult{
		FormID:       status.FormID,
		Groups:       make([]string, 0, len(groups)),
		GroupHashes:  make(map[string]string, len(groups)),
		Fields:       status.Fields,
		SnapshotHash: status.SnapshotHash,
		Syncing:      status.Syncing,
	}
	for _, g := range groups {
		values, _, err := st.Group(ctx, g.Name)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read groups", err)
		}
		hash, err := form.GroupHash(g.Name, values)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to hash group", err)
		}
		result.Groups = append(result.Groups, g.Name)
		result.GroupHashes[g.Name] = hash
	}

	formID := result.FormID
	if formID == "" {
		formID = "(not synced)"
	}
	text := fmt.Sprintf("Form:     %s\nGroups:   %s\nFields:   %d\nSnapshot: %s",
		formID, strings.Join(result.Groups, ", "), result.Fields, result.SnapshotHash[:12])
	return opts.formatter(cmd).Success(result, text)
}

// NewResetCommand creates the reset command.
func NewResetCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LocalOptions{RootOptions: rootOpts}
	var yes bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete every local answer and the form identifier",
		Long: `Delete every stored field group, the remote form identifier and the
session key. The next submission creates a new remote form. The remote
form itself is left untouched.

Example:
  formsync reset --db ./formsync.db --yes`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return NewExitError(ExitCommandError, "refusing to reset without --yes")
			}
			return runReset(opts, cmd)
		},
	}
	opts.addFlags(cmd)
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm the reset")

	return cmd
}

func runReset(opts *LocalOptions, cmd *cobra.Command) error {
	cfg, err := opts.resolveConfig(cmd, map[string]string{keyStorePath: "db"})
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore(st)

	if err := st.Reset(cmd.Context()); err != nil {
		return WrapExitError(ExitCommandError, "reset failed", err)
	}
	return opts.formatter(cmd).Success(map[string]bool{"reset": true}, "Local answers deleted.")
}
