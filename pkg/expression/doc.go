// Package expression defines the gene expression data model shared by the
// loader, persistence and export layers: the gene × sample count matrix, the
// per-sample metadata records and the aligned metadata table.
//
// Values of these types are immutable once constructed. Accessors return
// copies so callers can never mutate a loaded corpus in place.
package expression
