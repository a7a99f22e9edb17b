package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/formsync/internal/formserver"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Addr string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run an in-memory remote form service",
		Long: `Serve the remote form API (POST /forms, PUT /forms/{id},
GET /forms/{id}) from memory. Creates carrying an Idempotency-Key are
deduplicated. Forms are lost when the server stops.

Example:
  formsync serve --addr 127.0.0.1:8080`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address")

	return cmd
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	cfg, err := opts.resolveConfig(cmd, map[string]string{keyServerAddr: "addr"})
	if err != nil {
		return err
	}

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(cmd.OutOrStdout(), "Serving forms on http://%s\n", cfg.ServerAddr)
	fmt.Fprintln(cmd.OutOrStdout(), "Press Ctrl-C to stop.")

	srv := formserver.New()
	if err := srv.ListenAndServe(ctx, cfg.ServerAddr); err != nil {
		return WrapExitError(ExitFailure, "server error", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Stopped. %d form(s) held in memory were discarded.\n", srv.Repository().Len())
	return nil
}
