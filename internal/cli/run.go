package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/formsync/internal/fuzzy"
	"github.com/roach88/formsync/internal/idle"
	"github.com/roach88/formsync/internal/questionnaire"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database      string
	Remote        string
	Questionnaire string
	Catalog       string
	IdleTimeout   string

	// Prompter allows overriding the terminal prompter (for testing).
	// If nil, defaults to questionnaire.NewSurveyPrompter.
	Prompter questionnaire.Prompter

	// Clock allows overriding the idle clock (for testing).
	Clock idle.Clock
}

// RunResult is the JSON payload of a completed run.
type RunResult struct {
	FormID   string   `json:"form_id,omitempty"`
	Unsynced []string `json:"unsynced,omitempty"`
	Restarts int      `json:"restarts"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	return newRunCommand(&RunOptions{RootOptions: rootOpts})
}

func newRunCommand(opts *RunOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Fill in the questionnaire interactively",
		Long: `Ask the questionnaire page by page in the terminal.

Every page is saved on this device before it is sent, so answers survive
a lost connection or a crash; answers already stored are offered as
defaults. After the idle timeout without an answer you are asked whether
to continue or start over.

Example:
  formsync run --questionnaire patient.yaml --db ./formsync.db --remote http://localhost:8080`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuestionnaire(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database")
	cmd.Flags().StringVar(&opts.Remote, "remote", "", "remote form service base URL")
	cmd.Flags().StringVarP(&opts.Questionnaire, "questionnaire", "q", "", "questionnaire definition YAML file")
	cmd.Flags().StringVar(&opts.Catalog, "catalog", "", "entity catalog overriding the one of the same name")
	cmd.Flags().StringVar(&opts.IdleTimeout, "idle-timeout", "", "inactivity limit per page (e.g. 10m)")

	return cmd
}

func runQuestionnaire(opts *RunOptions, cmd *cobra.Command) error {
	cfg, err := opts.resolveConfig(cmd, map[string]string{
		keyStorePath:         "db",
		keyRemoteBaseURL:     "remote",
		keyQuestionnairePath: "questionnaire",
		keyCatalogPath:       "catalog",
		keyIdleTimeout:       "idle-timeout",
	})
	if err != nil {
		return err
	}

	def, err := questionnaire.LoadDefinition(cfg.QuestionnairePath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load questionnaire", err)
	}
	if cfg.CatalogPath != "" {
		cat, err := fuzzy.LoadCatalog(cfg.CatalogPath)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to load catalog", err)
		}
		if _, ok := def.Catalog(cat.Name); !ok {
			return NewExitError(ExitCommandError, fmt.Sprintf("catalog %q is not used by %s", cat.Name, cfg.QuestionnairePath))
		}
		def.SetCatalog(cat.Name, cat)
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

	prompter := opts.Prompter
	if prompter == nil {
		prompter = questionnaire.NewSurveyPrompter()
	}
	ctrlOpts := []questionnaire.ControllerOption{questionnaire.WithIdleTimeout(cfg.IdleTimeout)}
	if opts.Clock != nil {
		ctrlOpts = append(ctrlOpts, questionnaire.WithClock(opts.Clock))
	}
	ctrl := questionnaire.NewController(def, prompter, sync, st, ctrlOpts...)

	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("questionnaire starting", "title", def.Title, "pages", len(def.Pages), "db", cfg.StorePath)
	res, err := ctrl.Run(ctx)
	switch {
	case errors.Is(err, questionnaire.ErrAborted), errors.Is(err, context.Canceled):
		return NewExitError(ExitFailure, "questionnaire interrupted; answers given so far are saved on this device")
	case err != nil:
		return WrapExitError(ExitCommandError, "questionnaire stopped", err)
	}

	result := RunResult{FormID: res.FormID, Unsynced: res.Unsynced, Restarts: res.Restarts}
	if err := opts.formatter(cmd).Success(result, runSummary(result)); err != nil {
		return err
	}
	if len(result.Unsynced) > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d page(s) saved locally but not synced", len(result.Unsynced)))
	}
	return nil
}

func runSummary(r RunResult) string {
	var b strings.Builder
	if r.FormID != "" {
		fmt.Fprintf(&b, "Questionnaire complete. Form %s is up to date.", r.FormID)
	} else {
		b.WriteString("Questionnaire complete. Nothing was synced yet.")
	}
	if len(r.Unsynced) > 0 {
		fmt.Fprintf(&b, "\nSaved on this device only: %s", strings.Join(r.Unsynced, ", "))
	}
	return b.String()
}
