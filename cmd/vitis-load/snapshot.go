package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"vitisexpr/internal/persistence"
)

func newSnapshotCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Inspect corpus snapshots in the configured storage",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List stored snapshots",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				st, err := persistence.Open(cmd.Context(), a.cfg.Storage)
				if err != nil {
					return err
				}
				defer func() { _ = st.Close() }()
				infos, err := st.List(cmd.Context())
				if err != nil {
					return err
				}
				for _, info := range infos {
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s/%s\t%d genes\t%d samples\t%s\n",
						info.Name, info.Species, info.Condition, info.Genes, info.Samples, info.SavedAt.Format("2006-01-02T15:04:05Z"))
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "show <name>",
			Short: "Rebuild a snapshot and print its summary",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				st, err := persistence.Open(cmd.Context(), a.cfg.Storage)
				if err != nil {
					return err
				}
				defer func() { _ = st.Close() }()
				c, err := persistence.LoadCorpus(cmd.Context(), st, args[0])
				if err != nil {
					return err
				}
				printSummary(cmd.OutOrStdout(), c)
				return nil
			},
		},
		&cobra.Command{
			Use:   "delete <name>",
			Short: "Remove a stored snapshot",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				st, err := persistence.Open(cmd.Context(), a.cfg.Storage)
				if err != nil {
					return err
				}
				defer func() { _ = st.Close() }()
				return st.Delete(cmd.Context(), args[0])
			},
		},
	)
	return cmd
}
