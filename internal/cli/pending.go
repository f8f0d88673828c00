package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// PendingOptions holds flags for the pending command.
type PendingOptions struct {
	*RootOptions
	DB    string
	Group string
}

// NewPendingCommand creates the pending command.
func NewPendingCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PendingOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "pending",
		Short: "Show the pending deletion request",
		Long: `Show the group's pending deletion request, refreshed against live
state: vanished items are dropped and the approval threshold is re-derived
from the current membership.

Example:
  purgegate pending --db purgegate.db --group chat-42`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPending(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.DB, "db", "", "path to the SQLite database (required)")
	cmd.Flags().StringVar(&opts.Group, "group", "", "group id or external id (required)")
	cmd.MarkFlagRequired("db")
	cmd.MarkFlagRequired("group")

	return cmd
}

// pendingData is the JSON payload for a pending request.
type pendingData struct {
	ID        string   `json:"id"`
	Requester string   `json:"requester"`
	Items     []string `json:"items"`
	Approved  []string `json:"approved_by"`
	Required  int      `json:"required_approvals"`
	Total     int      `json:"total_members"`
}

func runPending(opts *PendingOptions, cmd *cobra.Command) error {
	s, err := openStore(opts.DB)
	if err != nil {
		return err
	}
	defer s.Close()

	f := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}
	svc := newService(s, newLogger(cmd.ErrOrStderr(), opts.Verbose))

	req, err := svc.PendingRequest(cmd.Context(), opts.Group)
	if err != nil {
		return WrapExitError(ExitCommandError, "read pending request", err)
	}
	if req == nil {
		return f.Success("no pending deletion request")
	}

	voters := make([]string, len(req.Approvals))
	for i, v := range req.Approvals {
		voters[i] = v.DisplayName
	}

	if opts.Format == "json" {
		voterIDs := make([]string, len(req.Approvals))
		for i, v := range req.Approvals {
			voterIDs[i] = v.VoterID
		}
		return f.Success(pendingData{
			ID:        req.ID,
			Requester: req.RequestedBy.IdentityID,
			Items:     req.TaskIDs(),
			Approved:  voterIDs,
			Required:  req.RequiredApprovals,
			Total:     req.TotalMembers,
		})
	}

	var b strings.Builder
	fmt.Fprintf(&b, "request %s by %s\n", req.ID, req.RequestedBy.DisplayName)
	fmt.Fprintf(&b, "  items: %s\n", strings.Join(req.TaskIDs(), ", "))
	fmt.Fprintf(&b, "  approvals: %d of %d", len(req.Approvals), req.RequiredApprovals)
	if len(voters) > 0 {
		fmt.Fprintf(&b, " (%s)", strings.Join(voters, ", "))
	}
	return f.Success(b.String())
}
