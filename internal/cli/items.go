package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/purgegate/internal/approval"
)

// ItemsOptions holds flags for the items command.
type ItemsOptions struct {
	*RootOptions
	DB     string
	Group  string
	Filter string
}

// NewItemsCommand creates the items command.
func NewItemsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ItemsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "items",
		Short: "List a group's work items",
		Long: `List the live work items of a group.

Example:
  purgegate items --db purgegate.db --group chat-42 --filter incomplete`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runItems(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.DB, "db", "", "path to the SQLite database (required)")
	cmd.Flags().StringVar(&opts.Group, "group", "", "group id or external id (required)")
	cmd.Flags().StringVar(&opts.Filter, "filter", string(approval.FilterAll), "item filter (all|incomplete)")
	cmd.MarkFlagRequired("db")
	cmd.MarkFlagRequired("group")

	return cmd
}

func runItems(opts *ItemsOptions, cmd *cobra.Command) error {
	filter := approval.Filter(opts.Filter)
	if filter != approval.FilterAll && filter != approval.FilterIncomplete {
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid filter %q: must be all or incomplete", opts.Filter))
	}

	s, err := openStore(opts.DB)
	if err != nil {
		return err
	}
	defer s.Close()

	f := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}
	ctx := cmd.Context()

	group, err := s.Groups().ResolveGroup(ctx, opts.Group)
	if err != nil {
		return WrapExitError(ExitCommandError, "resolve group", err)
	}
	if group == nil {
		return NewExitError(ExitCommandError, fmt.Sprintf("group %q not found", opts.Group))
	}

	items, err := s.Items().ListGroupItems(ctx, group.ID, filter)
	if err != nil {
		return WrapExitError(ExitCommandError, "list items", err)
	}

	if opts.Format == "json" {
		return f.Success(items)
	}

	if len(items) == 0 {
		return f.Success("no items")
	}
	var b strings.Builder
	for i, item := range items {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%s\t%s\t%s", item.ID, item.Status, item.Title)
	}
	return f.Success(b.String())
}
