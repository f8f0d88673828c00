package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/purgegate/internal/approval"
)

// ApproveOptions holds flags for the approve command.
type ApproveOptions struct {
	*RootOptions
	DB    string
	Group string
	Voter string
}

// NewApproveCommand creates the approve command.
func NewApproveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ApproveOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "approve",
		Short: "Register an approval vote",
		Long: `Register a member's approval on the group's pending deletion request.

Votes are idempotent per voter. The vote that reaches the quorum threshold
triggers the deletion immediately and reports the result.

Example:
  purgegate approve --db purgegate.db --group chat-42 --voter u2`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApprove(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.DB, "db", "", "path to the SQLite database (required)")
	cmd.Flags().StringVar(&opts.Group, "group", "", "group id or external id (required)")
	cmd.Flags().StringVar(&opts.Voter, "voter", "", "voting member's identity id (required)")
	cmd.MarkFlagRequired("db")
	cmd.MarkFlagRequired("group")
	cmd.MarkFlagRequired("voter")

	return cmd
}

// approveData is the JSON payload for a vote outcome.
type approveData struct {
	Status   string                    `json:"status"`
	Message  string                    `json:"message"`
	Approved int                       `json:"approved,omitempty"`
	Required int                       `json:"required,omitempty"`
	Report   *approval.ExecutionReport `json:"report,omitempty"`
}

func runApprove(opts *ApproveOptions, cmd *cobra.Command) error {
	s, err := openStore(opts.DB)
	if err != nil {
		return err
	}
	defer s.Close()

	f := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}
	svc := newService(s, newLogger(cmd.ErrOrStderr(), opts.Verbose))

	out, err := svc.RegisterApproval(cmd.Context(), opts.Group, opts.Voter)
	if err != nil {
		return WrapExitError(ExitCommandError, "register approval", err)
	}

	if opts.Format == "json" {
		if err := f.Success(approveData{
			Status:   string(out.Status),
			Message:  out.Message,
			Approved: out.Approved,
			Required: out.Required,
			Report:   out.Report,
		}); err != nil {
			return err
		}
	} else {
		if err := f.Success(fmt.Sprintf("%s: %s", out.Status, out.Message)); err != nil {
			return err
		}
	}

	if out.Status == approval.StatusError {
		return NewExitError(ExitFailure, "vote not accepted")
	}
	return nil
}
