package corpus

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"vitisexpr/internal/blob"
	"vitisexpr/pkg/expression"
)

const countFileSuffix = ".txt"

// Discover lists the count files of species/condition in load order: tissue
// folders sorted by name, then files within each tissue sorted by name. Only
// direct children of a tissue folder with a .txt suffix (any case) count.
func Discover(ctx context.Context, store blob.Store, species, condition string) ([]SourceFile, error) {
	dir := species + "/" + condition
	ok, err := store.Exists(ctx, dir)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", store.Location(dir), err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", expression.ErrDirectoryNotFound, store.Location(dir))
	}
	infos, err := store.List(ctx, dir+"/")
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", store.Location(dir), err)
	}
	var files []SourceFile
	for _, info := range infos {
		rest := strings.TrimPrefix(info.Key, dir+"/")
		parts := strings.Split(rest, "/")
		if len(parts) != 2 || parts[0] == "" {
			continue
		}
		if !strings.HasSuffix(strings.ToLower(parts[1]), countFileSuffix) {
			continue
		}
		files = append(files, SourceFile{
			Tissue:   parts[0],
			Name:     parts[1],
			Key:      info.Key,
			Location: store.Location(info.Key),
		})
	}
	sort.Slice(files, func(i, j int) bool {
		if files[i].Tissue != files[j].Tissue {
			return files[i].Tissue < files[j].Tissue
		}
		return files[i].Name < files[j].Name
	})
	return files, nil
}
