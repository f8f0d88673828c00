package cli

import (
	"bytes"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/purgegate/internal/approval"
)

// SeedOptions holds flags for the seed command.
type SeedOptions struct {
	*RootOptions
	DB   string
	File string
}

// SeedFile is the YAML layout consumed by the seed command.
type SeedFile struct {
	Groups []struct {
		ID         string `yaml:"id"`
		ExternalID string `yaml:"external_id"`
		Name       string `yaml:"name,omitempty"`
		Channel    string `yaml:"channel,omitempty"`
	} `yaml:"groups,omitempty"`

	Members []struct {
		Group string `yaml:"group"`
		ID    string `yaml:"id"`
		Name  string `yaml:"name"`
		Role  string `yaml:"role"`
	} `yaml:"members,omitempty"`

	Items []struct {
		ID        string   `yaml:"id"`
		Group     string   `yaml:"group"`
		Title     string   `yaml:"title"`
		Status    string   `yaml:"status,omitempty"`
		Assignees []string `yaml:"assignees,omitempty"`
	} `yaml:"items,omitempty"`
}

// NewSeedCommand creates the seed command.
func NewSeedCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SeedOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load groups, members and items from a YAML file",
		Long: `Load groups, members and work items from a YAML file.

Existing rows with matching ids are updated in place; pending deletion
requests are never touched.

Example:
  purgegate seed --db purgegate.db --file seed.yaml`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.DB, "db", "", "path to the SQLite database (required)")
	cmd.Flags().StringVarP(&opts.File, "file", "f", "", "seed YAML file (required)")
	cmd.MarkFlagRequired("db")
	cmd.MarkFlagRequired("file")

	return cmd
}

func runSeed(opts *SeedOptions, cmd *cobra.Command) error {
	data, err := os.ReadFile(opts.File)
	if err != nil {
		return WrapExitError(ExitCommandError, "read seed file", err)
	}

	var seed SeedFile
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&seed); err != nil {
		return WrapExitError(ExitCommandError, "parse seed file", err)
	}

	s, err := openStore(opts.DB)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := cmd.Context()
	groups := s.Groups()
	dir := s.Directory()
	items := s.Items()

	for _, g := range seed.Groups {
		if g.ID == "" || g.ExternalID == "" {
			return NewExitError(ExitCommandError, "seed group: id and external_id are required")
		}
		err := groups.UpsertGroup(ctx, approval.Group{
			ID:         g.ID,
			ExternalID: g.ExternalID,
			Name:       g.Name,
			ChannelRef: g.Channel,
		})
		if err != nil {
			return WrapExitError(ExitCommandError, "seed group", err)
		}
	}

	for _, m := range seed.Members {
		if m.Role != "admin" && m.Role != "member" {
			return NewExitError(ExitCommandError, fmt.Sprintf("seed member %s: role must be admin or member", m.ID))
		}
		if err := dir.UpsertMember(ctx, m.Group, m.ID, m.Name, m.Role); err != nil {
			return WrapExitError(ExitCommandError, "seed member", err)
		}
	}

	for _, it := range seed.Items {
		err := items.UpsertItem(ctx, approval.Item{
			ID:        it.ID,
			GroupID:   it.Group,
			Title:     it.Title,
			Status:    it.Status,
			Assignees: it.Assignees,
		})
		if err != nil {
			return WrapExitError(ExitCommandError, "seed item", err)
		}
	}

	f := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}
	return f.Success(fmt.Sprintf("seeded %d group(s), %d member(s), %d item(s)",
		len(seed.Groups), len(seed.Members), len(seed.Items)))
}
