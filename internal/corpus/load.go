package corpus

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"vitisexpr/internal/blob"
	"vitisexpr/internal/observability"
	"vitisexpr/internal/parser"
	"vitisexpr/pkg/expression"
)

// LoadDir loads a condition from a directory tree laid out as
// root/species/condition/tissue/*.txt.
func LoadDir(ctx context.Context, root, condition string, opts ...Option) (*Corpus, error) {
	store, err := blob.NewFilesystem(root)
	if err != nil {
		return nil, err
	}
	return Load(ctx, store, condition, opts...)
}

// Load discovers, parses and assembles every count file of condition. Any
// failure aborts the whole load; no partial corpus is returned.
func Load(ctx context.Context, store blob.Store, condition string, opts ...Option) (c *Corpus, err error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	log := o.logger.With(zap.String("species", o.species), zap.String("condition", condition))
	start := time.Now()
	ctx, span := o.tracer.Start(ctx, "corpus.load")
	defer func() {
		stats := observability.LoadStats{Condition: condition, Duration: time.Since(start), Err: err}
		if c != nil {
			stats.Files = len(c.files)
			stats.Genes = c.counts.Rows()
			stats.Samples = c.counts.Cols()
			stats.Absent = c.counts.AbsentCount()
		}
		o.recorder.ObserveLoad(ctx, stats)
		span.End(err)
		if err != nil {
			log.Error("corpus load failed", zap.Error(err))
		}
	}()

	files, err := Discover(ctx, store, o.species, condition)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: %s/%s", expression.ErrEmptyCorpus, o.species, condition)
	}
	log.Info("discovered count files", zap.Int("files", len(files)), zap.String("driver", string(store.Driver())))

	parts := make([]*expression.GeneMatrix, 0, len(files))
	var records []expression.SampleRecord
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res, err := parseOne(ctx, store, f, condition, o)
		if err != nil {
			return nil, err
		}
		if res.DuplicateRows > 0 {
			log.Info("summed duplicate gene rows",
				zap.String("file", f.Location),
				zap.Int("duplicate_rows", res.DuplicateRows))
		}
		log.Debug("parsed count file",
			zap.String("file", f.Location),
			zap.String("tissue", f.Tissue),
			zap.Int("genes", res.Matrix.Rows()),
			zap.Int("samples", res.Matrix.Cols()))
		parts = append(parts, res.Matrix)
		records = append(records, res.Samples...)
	}

	md, err := expression.NewMetadataTable(records)
	if err != nil {
		return nil, err
	}
	genes, err := reconcileGenes(parts, o.intersect)
	if err != nil {
		return nil, fmt.Errorf("%s/%s: %w", o.species, condition, err)
	}
	if o.intersect {
		for i, p := range parts {
			if parts[i], err = p.Select(genes); err != nil {
				return nil, err
			}
		}
	}
	counts, err := expression.ConcatColumns(genes, parts)
	if err != nil {
		return nil, err
	}
	if md, err = md.Reindex(counts.Samples()); err != nil {
		return nil, err
	}
	if err := md.CheckAligned(counts); err != nil {
		return nil, err
	}
	log.Info("corpus loaded",
		zap.Int("files", len(files)),
		zap.Int("genes", counts.Rows()),
		zap.Int("samples", counts.Cols()),
		zap.Int("absent_cells", counts.AbsentCount()),
		zap.Bool("intersect", o.intersect))
	return &Corpus{
		species:   o.species,
		condition: condition,
		files:     files,
		counts:    counts,
		metadata:  md,
	}, nil
}

func parseOne(ctx context.Context, store blob.Store, f SourceFile, condition string, o options) (res *parser.Result, err error) {
	_, span := o.tracer.Start(ctx, "corpus.parse")
	defer func() { span.End(err) }()

	_, rc, err := store.Get(ctx, f.Key)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", f.Location, err)
	}
	defer func() { _ = rc.Close() }()
	res, err = parser.Parse(rc, parser.FileSource{Path: f.Location, Tissue: f.Tissue, Condition: condition})
	if err != nil {
		return nil, err
	}
	o.recorder.ObserveFile(ctx, observability.FileStats{
		Tissue:        f.Tissue,
		Samples:       res.Matrix.Cols(),
		Genes:         res.Matrix.Rows(),
		DuplicateRows: res.DuplicateRows,
	})
	return res, nil
}

// reconcileGenes returns the sorted gene intersection of parts, or the
// sorted union when intersect is false.
func reconcileGenes(parts []*expression.GeneMatrix, intersect bool) ([]string, error) {
	counts := make(map[string]int)
	for _, p := range parts {
		for _, g := range p.Genes() {
			counts[g]++
		}
	}
	genes := make([]string, 0, len(counts))
	for g, n := range counts {
		if !intersect || n == len(parts) {
			genes = append(genes, g)
		}
	}
	if intersect && len(genes) == 0 {
		return nil, expression.ErrNoCommonGenes
	}
	sort.Strings(genes)
	return genes, nil
}
