package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/purgegate/internal/approval"
)

// RequestOptions holds flags for the request command.
type RequestOptions struct {
	*RootOptions
	DB        string
	Group     string
	Requester string
	Items     []string
	Filter    string
}

// NewRequestCommand creates the request command.
func NewRequestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RequestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "request",
		Short: "Create a deletion request",
		Long: `Create a pending deletion request for a set of work items.

The requester must be a group admin and the group must not already have a
pending request. The request waits for member approvals; nothing is
deleted until the quorum threshold is reached.

Example:
  purgegate request --db purgegate.db --group chat-42 --requester u1 --items t1,t2`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRequest(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.DB, "db", "", "path to the SQLite database (required)")
	cmd.Flags().StringVar(&opts.Group, "group", "", "group id or external id (required)")
	cmd.Flags().StringVar(&opts.Requester, "requester", "", "requesting admin's identity id (required)")
	cmd.Flags().StringSliceVar(&opts.Items, "items", nil, "comma-separated item ids (required)")
	cmd.Flags().StringVar(&opts.Filter, "filter", string(approval.FilterCustom), "selection intent (all|incomplete|custom)")
	cmd.MarkFlagRequired("db")
	cmd.MarkFlagRequired("group")
	cmd.MarkFlagRequired("requester")
	cmd.MarkFlagRequired("items")

	return cmd
}

// requestData is the JSON payload for a created request.
type requestData struct {
	ID       string   `json:"id"`
	Items    []string `json:"items"`
	Required int      `json:"required_approvals"`
	Total    int      `json:"total_members"`
}

func runRequest(opts *RequestOptions, cmd *cobra.Command) error {
	s, err := openStore(opts.DB)
	if err != nil {
		return err
	}
	defer s.Close()

	f := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}
	svc := newService(s, newLogger(cmd.ErrOrStderr(), opts.Verbose))

	req, err := svc.Initiate(cmd.Context(), approval.InitiateParams{
		GroupRef:     opts.Group,
		RequesterRef: opts.Requester,
		ItemIDs:      opts.Items,
		Filter:       approval.Filter(opts.Filter),
	})
	if err != nil {
		f.Error(err.Error())
		return NewExitError(ExitFailure, "request rejected")
	}

	if opts.Format == "json" {
		return f.Success(requestData{
			ID:       req.ID,
			Items:    req.TaskIDs(),
			Required: req.RequiredApprovals,
			Total:    req.TotalMembers,
		})
	}
	return f.Success(fmt.Sprintf("request %s created: %s (%d of %d approvals required)",
		req.ID, strings.Join(req.TaskIDs(), ", "), req.RequiredApprovals, req.TotalMembers))
}
