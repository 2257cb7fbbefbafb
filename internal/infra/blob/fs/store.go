package fs

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"vitisexpr/internal/blob/core"
)

// Store implements core.Store over a plain directory tree. Keys are
// slash-separated paths relative to the root and map 1:1 to files, so an
// existing data directory can be read without any sidecar files.
type Store struct {
	root string
}

// New returns a filesystem-backed store rooted at root. The root is resolved
// to an absolute path but not created; reading a missing root lists nothing.
func New(root string) (*Store, error) {
	if root == "" {
		root = "."
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	return &Store{root: abs}, nil
}

func (s *Store) Driver() core.Driver { return core.DriverFilesystem }

// Root returns the absolute data root.
func (s *Store) Root() string { return s.root }

// sanitizeKey rejects empty and absolute keys and any ".." path segment.
// Dots inside a file name such as "rep..1.txt" are allowed.
func sanitizeKey(key string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", fmt.Errorf("empty key")
	}
	if strings.HasPrefix(key, "/") {
		return "", fmt.Errorf("invalid absolute key")
	}
	for _, seg := range strings.Split(filepath.ToSlash(key), "/") {
		if seg == ".." {
			return "", fmt.Errorf("invalid key traversal: %s", key)
		}
	}
	return path.Clean(filepath.ToSlash(key)), nil
}

func (s *Store) pathFor(key string) (string, error) {
	k, err := sanitizeKey(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.root, filepath.FromSlash(k)), nil
}

// Location returns the absolute filesystem path of key.
func (s *Store) Location(key string) string {
	return filepath.Join(s.root, filepath.FromSlash(key))
}

func (s *Store) Put(ctx context.Context, key string, r io.Reader, opts core.PutOptions) (core.Info, error) {
	dataPath, err := s.pathFor(key)
	if err != nil {
		return core.Info{}, err
	}
	// Fail if exists
	if _, err := os.Stat(dataPath); err == nil {
		return core.Info{}, fmt.Errorf("blob %s already exists", key)
	}
	if err := os.MkdirAll(filepath.Dir(dataPath), 0o755); err != nil {
		return core.Info{}, err
	}
	// stream to temp file to compute sha and size
	tmp, err := os.CreateTemp(filepath.Dir(dataPath), ".tmp-*")
	if err != nil {
		return core.Info{}, err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	h := sha256.New()
	if _, err := io.Copy(io.MultiWriter(tmp, h), r); err != nil {
		_ = tmp.Close()
		return core.Info{}, err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return core.Info{}, err
	}
	if err := tmp.Close(); err != nil {
		return core.Info{}, err
	}
	// atomically move into place
	if err := os.Rename(tmp.Name(), dataPath); err != nil {
		return core.Info{}, err
	}
	info, err := s.Head(ctx, key)
	if err != nil {
		return core.Info{}, err
	}
	info.ETag = hex.EncodeToString(h.Sum(nil))
	info.ContentType = opts.ContentType
	info.Metadata = cloneMetadata(opts.Metadata)
	return info, nil
}

func (s *Store) Get(ctx context.Context, key string) (core.Info, io.ReadCloser, error) {
	info, err := s.Head(ctx, key)
	if err != nil {
		return core.Info{}, nil, err
	}
	dataPath, err := s.pathFor(key)
	if err != nil {
		return core.Info{}, nil, err
	}
	file, err := os.Open(dataPath)
	if err != nil {
		return core.Info{}, nil, err
	}
	return info, file, nil
}

func (s *Store) Head(_ context.Context, key string) (core.Info, error) {
	dataPath, err := s.pathFor(key)
	if err != nil {
		return core.Info{}, err
	}
	st, err := os.Stat(dataPath)
	if err != nil {
		return core.Info{}, err
	}
	if st.IsDir() {
		return core.Info{}, fmt.Errorf("blob %s is a directory", key)
	}
	return infoFor(key, st), nil
}

// Exists reports whether dir is an existing directory under the root.
func (s *Store) Exists(_ context.Context, dir string) (bool, error) {
	p, err := s.pathFor(dir)
	if err != nil {
		return false, err
	}
	st, err := os.Stat(p)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return st.IsDir(), nil
}

// List returns regular files whose key starts with prefix. Symlinked files
// and directories are followed, including a symlinked root.
func (s *Store) List(ctx context.Context, prefix string) ([]core.Info, error) {
	var infos []core.Info
	if err := s.walk(ctx, s.root, "", prefix, make(map[string]struct{}), &infos); err != nil {
		return nil, err
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Key < infos[j].Key })
	return infos, nil
}

// walk lists dir, whose key is rel, and descends into directories that may
// hold keys under prefix. active holds the resolved directories on the
// current path so symlink cycles end.
func (s *Store) walk(ctx context.Context, dir, rel, prefix string, active map[string]struct{}, out *[]core.Info) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	resolved, err := filepath.EvalSymlinks(dir)
	if err != nil {
		if rel == "" && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	if _, loop := active[resolved]; loop {
		return nil
	}
	active[resolved] = struct{}{}
	defer delete(active, resolved)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		key := e.Name()
		if rel != "" {
			key = rel + "/" + e.Name()
		}
		p := filepath.Join(dir, e.Name())
		st, err := os.Stat(p)
		if errors.Is(err, fs.ErrNotExist) {
			// dangling symlink
			continue
		}
		if err != nil {
			return err
		}
		switch {
		case st.IsDir():
			if couldContain(key, prefix) {
				if err := s.walk(ctx, p, key, prefix, active, out); err != nil {
					return err
				}
			}
		case st.Mode().IsRegular():
			if strings.HasPrefix(e.Name(), ".tmp-") || !strings.HasPrefix(key, prefix) {
				continue
			}
			*out = append(*out, infoFor(key, st))
		}
	}
	return nil
}

// couldContain reports whether keys below directory dir may match prefix.
func couldContain(dir, prefix string) bool {
	d := dir + "/"
	return strings.HasPrefix(d, prefix) || strings.HasPrefix(prefix, d)
}

// --- helpers ---

func infoFor(key string, st fs.FileInfo) core.Info {
	return core.Info{Key: key, Size: st.Size(), LastModified: st.ModTime().UTC()}
}

func cloneMetadata(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
