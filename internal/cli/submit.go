package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/formsync/internal/form"
	"github.com/roach88/formsync/internal/formsync"
	"github.com/roach88/formsync/internal/remote"
	"github.com/roach88/formsync/internal/store"
)

// SubmitOptions holds flags for the submit command.
type SubmitOptions struct {
	*RootOptions
	Database string
	Remote   string
	Set      []string // key=value pairs
	File     string   // JSON object of answers
}

// SubmitResult is the JSON payload of a successful submission.
type SubmitResult struct {
	Group  string `json:"group"`
	FormID string `json:"form_id"`
	Fields int    `json:"fields"`
}

// NewSubmitCommand creates the submit command.
func NewSubmitCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SubmitOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "submit <group>",
		Short: "Submit one page of answers",
		Long: `Save one field group on this device, then create or update the remote
form with the full local snapshot.

Values given with --set are parsed as YAML scalars: 61 is an integer,
true is a boolean, null clears the field and anything else is text.
Quote a value to force text. Decimal numbers are rejected.

Exit codes:
  0 - Saved locally and synced
  1 - Saved locally, sync failed (submit the page again to retry)
  2 - Not saved (storage failure or invalid input)

Examples:
  formsync submit identite --set nom=Durand --set age=61
  formsync submit maladie --file maladie.json --remote http://localhost:8080`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSubmit(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database")
	cmd.Flags().StringVar(&opts.Remote, "remote", "", "remote form service base URL")
	cmd.Flags().StringArrayVar(&opts.Set, "set", nil, "answer as key=value (repeatable)")
	cmd.Flags().StringVar(&opts.File, "file", "", "JSON file with the page answers")

	return cmd
}

func runSubmit(opts *SubmitOptions, group string, cmd *cobra.Command) error {
	values, err := submitValues(opts)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid answers", err)
	}

	cfg, err := opts.resolveConfig(cmd, map[string]string{
		keyStorePath:     "db",
		keyRemoteBaseURL: "remote",
	})
	if err != nil {
		return err
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore(st)

	sync, err := opts.newSynchronizer(cfg, st)
	if err != nil {
		return err
	}

	out := opts.formatter(cmd)
	formID, err := sync.SubmitPage(cmd.Context(), group, values)

	var syncErr *formsync.SyncError
	var writeErr *store.StorageWriteError
	switch {
	case err == nil:
		return out.Success(
			SubmitResult{Group: group, FormID: formID, Fields: len(values)},
			fmt.Sprintf("Saved %q and synced form %s.", group, formID),
		)

	case errors.As(err, &writeErr):
		if outErr := out.Error("STORAGE_WRITE_FAILED", "answers were not saved on this device", writeErr.Error()); outErr != nil {
			return outErr
		}
		return WrapExitError(ExitCommandError, "submit failed", err)

	case errors.As(err, &syncErr):
		details := map[string]any{"group": syncErr.Group, "cause": syncErr.Err.Error()}
		if syncErr.FormID != "" {
			details["form_id"] = syncErr.FormID
		}
		message := "saved locally; sync failed, submit again to retry"
		if remote.IsNotFound(syncErr) {
			message = fmt.Sprintf("saved locally; remote form %s no longer exists, run reset to start a new form", syncErr.FormID)
		}
		if outErr := out.Error(string(syncErr.Code), message, details); outErr != nil {
			return outErr
		}
		return WrapExitError(ExitFailure, "sync failed", err)

	default:
		return WrapExitError(ExitCommandError, "submit failed", err)
	}
}

// submitValues merges --file and --set answers. --set wins on conflict.
func submitValues(opts *SubmitOptions) (form.Values, error) {
	values := form.Values{}
	if opts.File != "" {
		data, err := os.ReadFile(opts.File)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", opts.File, err)
		}
		var fromFile form.Values
		if err := fromFile.UnmarshalJSON(data); err != nil {
			return nil, fmt.Errorf("parse %s: %w", opts.File, err)
		}
		for key := range fromFile {
			if isReservedKey(key) {
				return nil, fmt.Errorf("%s: %s is reserved", opts.File, key)
			}
		}
		values.Merge(fromFile)
	}

	for _, pair := range opts.Set {
		key, raw, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("--set %q: expected key=value", pair)
		}
		if isReservedKey(key) {
			return nil, fmt.Errorf("--set %q: %s is reserved", pair, key)
		}
		val, err := parseScalar(raw)
		if err != nil {
			return nil, fmt.Errorf("--set %s: %w", key, err)
		}
		values[key] = val
	}

	if len(values) == 0 {
		return nil, errors.New("no answers given (use --set or --file)")
	}
	return values, nil
}

// isReservedKey reports whether key is a point value the synchronizer
// owns and a page may not carry.
func isReservedKey(key string) bool {
	return key == store.KeyFormIdentifier || key == store.KeySessionKey
}

// parseScalar reads raw as a single YAML scalar. An empty value is text.
func parseScalar(raw string) (form.Value, error) {
	if strings.TrimSpace(raw) == "" {
		return form.String(raw), nil
	}
	var decoded any
	if err := yaml.Unmarshal([]byte(raw), &decoded); err != nil {
		return nil, err
	}
	switch decoded.(type) {
	case map[string]any, []any:
		return form.String(raw), nil
	}
	return form.FromAny(decoded)
}
