package parser

import (
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"vitisexpr/pkg/expression"
)

var gseRegex = regexp.MustCompile(`(?i)GSE\d+`)

// cultivarKeywords is checked in order; the first substring match wins.
var cultivarKeywords = []string{"mueller", "regent"}

// Accession extracts the first GSE accession token from a filename,
// uppercased, or expression.UnknownAccession.
//
//	"GSE97900_control.txt" -> "GSE97900"
func Accession(filename string) string {
	if m := gseRegex.FindString(baseName(filename)); m != "" {
		return strings.ToUpper(m)
	}
	return expression.UnknownAccession
}

// Cultivar returns the first known cultivar keyword contained in the
// filename, or nil.
//
//	"GSE12345_leaf_regent.txt" -> "regent"
func Cultivar(filename string) *string {
	lower := strings.ToLower(baseName(filename))
	for _, kw := range cultivarKeywords {
		if strings.Contains(lower, kw) {
			c := kw
			return &c
		}
	}
	return nil
}

func baseName(p string) string {
	return path.Base(filepath.ToSlash(p))
}
