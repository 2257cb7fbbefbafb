package main

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"vitisexpr/internal/adapters/export"
	"vitisexpr/internal/blob"
	"vitisexpr/internal/corpus"
	"vitisexpr/internal/persistence"
)

type loadFlags struct {
	dataRoot     string
	species      string
	union        bool
	exportDir    string
	exportPrefix string
	snapshot     string
}

func newLoadCmd(a *app) *cobra.Command {
	var f loadFlags
	cmd := &cobra.Command{
		Use:   "load [condition]",
		Short: "Load a condition and print a summary",
		Long: `Discovers <root>/<species>/<condition>/<tissue>/*.txt, parses every file and
assembles one gene x sample matrix with aligned sample metadata.

With --export-dir the counts, metadata and snapshot are written below that
directory; with --snapshot the corpus is saved to the configured storage.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				a.cfg.Condition = args[0]
			}
			if f.dataRoot != "" {
				a.cfg.Blob.Driver = blob.DriverFilesystem
				a.cfg.Blob.Root = f.dataRoot
			}
			if f.species != "" {
				a.cfg.Species = f.species
			}
			if f.union {
				a.cfg.IntersectGenes = false
			}
			return a.runLoad(cmd.Context(), cmd.OutOrStdout(), f)
		},
	}
	cmd.Flags().StringVar(&f.dataRoot, "data-root", "", "read from this directory instead of the configured blob store")
	cmd.Flags().StringVar(&f.species, "species", "", "species folder (default from config)")
	cmd.Flags().BoolVar(&f.union, "union", false, "outer-join gene sets instead of intersecting them")
	cmd.Flags().StringVar(&f.exportDir, "export-dir", "", "write counts.tsv, metadata.tsv and snapshot.json below this directory")
	cmd.Flags().StringVar(&f.exportPrefix, "export-prefix", "", "key prefix inside --export-dir (default <species>/<condition>)")
	cmd.Flags().StringVar(&f.snapshot, "snapshot", "", "save the corpus to storage under this name")
	return cmd
}

func (a *app) runLoad(ctx context.Context, out io.Writer, f loadFlags) error {
	store, err := blob.Open(ctx, a.cfg.Blob)
	if err != nil {
		return err
	}
	metrics, err := newMetrics(a.cfg.Metrics)
	if err != nil {
		return err
	}
	opts := append(a.cfg.LoadOptions(), corpus.WithLogger(a.logger), corpus.WithRecorder(metrics.recorder))
	c, loadErr := corpus.Load(ctx, store, a.cfg.Condition, opts...)
	if err := metrics.flush(); err != nil {
		a.logger.Warn("write metrics", zap.Error(err))
	}
	if loadErr != nil {
		return loadErr
	}
	printSummary(out, c)

	if f.exportDir != "" {
		dst, err := blob.NewFilesystem(f.exportDir)
		if err != nil {
			return err
		}
		prefix := f.exportPrefix
		if prefix == "" {
			prefix = c.Species() + "/" + c.Condition()
		}
		artifacts, err := export.Publish(ctx, dst, prefix, c)
		if err != nil {
			return err
		}
		for _, art := range artifacts {
			fmt.Fprintf(out, "exported %s (%d bytes)\n", art.Location, art.SizeBytes)
		}
	}
	if f.snapshot != "" {
		st, err := persistence.Open(ctx, a.cfg.Storage)
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()
		if err := persistence.SaveCorpus(ctx, st, f.snapshot, c); err != nil {
			return err
		}
		a.logger.Info("snapshot saved", zap.String("name", f.snapshot), zap.String("driver", string(a.cfg.Storage.Driver)))
		fmt.Fprintf(out, "saved snapshot %s\n", f.snapshot)
	}
	return nil
}

func printSummary(out io.Writer, c *corpus.Corpus) {
	m := c.Counts()
	fmt.Fprintf(out, "species:   %s\n", c.Species())
	fmt.Fprintf(out, "condition: %s\n", c.Condition())
	if files := c.Files(); len(files) > 0 {
		fmt.Fprintf(out, "files:     %d\n", len(files))
	}
	fmt.Fprintf(out, "genes:     %d\n", m.Rows())
	fmt.Fprintf(out, "samples:   %d\n", m.Cols())
	if n := m.AbsentCount(); n > 0 {
		fmt.Fprintf(out, "absent:    %d\n", n)
	}
	tissues, _ := c.Metadata().Column("tissue")
	perTissue := make(map[string]int)
	for _, v := range tissues {
		perTissue[v.Text]++
	}
	names := make([]string, 0, len(perTissue))
	for name := range perTissue {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(out, "  %-12s %d\n", name, perTissue[name])
	}
}
