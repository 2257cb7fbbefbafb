package expression

import "errors"

// Every message is prefixed with "expression:" so load failures are easy to
// grep. Callers match with errors.Is; loaders add file context with %w.
var (
	// ErrDirectoryNotFound is returned when <species>/<condition> does not exist.
	ErrDirectoryNotFound = errors.New("expression: condition directory not found")

	// ErrMalformedInput marks a count file that cannot be parsed: fewer than
	// two columns, ragged rows, empty gene ids or non-numeric cells.
	ErrMalformedInput = errors.New("expression: malformed input")

	// ErrEmptyCorpus is returned when no .txt files exist under the condition.
	ErrEmptyCorpus = errors.New("expression: no expression files found")

	// ErrNoCommonGenes is returned in intersection mode when the gene sets of
	// the loaded files share no identifier.
	ErrNoCommonGenes = errors.New("expression: no intersecting genes across files")

	// ErrSampleIDCollision is returned when two sample columns map to the same
	// tissue|accession|column identifier.
	ErrSampleIDCollision = errors.New("expression: duplicate sample id")

	// ErrDuplicateGene is returned when a matrix is built with repeated row keys.
	ErrDuplicateGene = errors.New("expression: duplicate gene id")

	// ErrNonFinite is returned when a NaN or ±Inf value reaches a matrix.
	ErrNonFinite = errors.New("expression: NaN or Inf value")

	// ErrShape is returned when values do not match the declared dimensions.
	ErrShape = errors.New("expression: invalid matrix shape")

	ErrUnknownGene   = errors.New("expression: unknown gene id")
	ErrUnknownSample = errors.New("expression: unknown sample id")
	ErrUnknownField  = errors.New("expression: unknown metadata field")

	// ErrMisaligned is returned when the metadata index does not equal the
	// matrix columns.
	ErrMisaligned = errors.New("expression: metadata not aligned with counts")
)
