package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/formsync/internal/fuzzy"
)

// MatchOptions holds flags for the match command.
type MatchOptions struct {
	*RootOptions
	Catalog string
	Suggest int
}

// MatchResult is the JSON payload of the match command.
type MatchResult struct {
	Query       string         `json:"query"`
	Matched     bool           `json:"matched"`
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Suggestions []fuzzy.Entity `json:"suggestions,omitempty"`
}

// NewMatchCommand creates the match command.
func NewMatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "match <query>",
		Short: "Resolve free text against an entity catalog",
		Long: `Resolve free text against an entity catalog the same way the entity
questions do: accents and case are ignored and the first entity whose
label contains the query wins. Without a match the id is
AUCUN and the name is the text as typed.

Examples:
  formsync match foie --catalog organes.yaml
  formsync match "colon" --catalog organes.yaml --suggest 3`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMatch(opts, strings.Join(args, " "), cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Catalog, "catalog", "", "entity catalog YAML file")
	cmd.Flags().IntVar(&opts.Suggest, "suggest", 0, "also list up to N containing entities")

	return cmd
}

func runMatch(opts *MatchOptions, query string, cmd *cobra.Command) error {
	cfg, err := opts.resolveConfig(cmd, map[string]string{keyCatalogPath: "catalog"})
	if err != nil {
		return err
	}
	if cfg.CatalogPath == "" {
		return NewExitError(ExitCommandError, "no catalog given (use --catalog or "+keyCatalogPath+")")
	}

	catalog, err := fuzzy.LoadCatalog(cfg.CatalogPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load catalog", err)
	}

	res := catalog.Match(query)
	result := MatchResult{
		Query:   query,
		Matched: res.Matched,
		ID:      res.ID(),
		Name:    res.Name(),
	}
	if opts.Suggest > 0 {
		result.Suggestions = fuzzy.Suggest(query, catalog.Entities, opts.Suggest)
	}

	var text strings.Builder
	fmt.Fprintf(&text, "%s\t%s", result.ID, result.Name)
	for _, e := range result.Suggestions {
		fmt.Fprintf(&text, "\n  %s\t%s", e.ID, e.Label)
	}
	return opts.formatter(cmd).Success(result, text.String())
}
