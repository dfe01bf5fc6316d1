package securefs

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/birdnetpi/speciestools/internal/errors"
	"github.com/birdnetpi/speciestools/internal/logger"
)

// GetLogger returns the securefs logger. It is fetched from the global logger
// each time since the central logger may be installed after package init.
func GetLogger() logger.Logger {
	return logger.Global().Module("securefs")
}

// Root is a storage root resolved to its canonical real path at construction.
//
// Containment checks compare canonical absolute paths. Mutations go through
// an os.Root handle, so a symlink swapped in after the check still cannot
// reach outside the directory.
type Root struct {
	configured string   // path as configured, used to detect a root that moved
	dir        string   // canonical absolute path
	root       *os.Root // sandboxed handle on dir
}

// NewRoot resolves dir and opens a sandbox on it. The returned error wraps
// ErrRootUnresolvable when dir is empty, missing, or not a directory.
func NewRoot(dir string) (*Root, error) {
	canonical, err := canonicalDir(dir)
	if err != nil {
		return nil, err
	}

	osRoot, err := os.OpenRoot(canonical)
	if err != nil {
		return nil, rootError(dir, err)
	}

	return &Root{
		configured: dir,
		dir:        canonical,
		root:       osRoot,
	}, nil
}

func canonicalDir(dir string) (string, error) {
	if strings.TrimSpace(dir) == "" {
		return "", rootError(dir, errors.NewStd("storage root is not configured"))
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", rootError(dir, err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", rootError(dir, err)
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return "", rootError(dir, err)
	}
	if !info.IsDir() {
		return "", rootError(dir, fmt.Errorf("%s is not a directory", resolved))
	}
	return filepath.Clean(resolved), nil
}

func rootError(dir string, cause error) error {
	return errors.New(fmt.Errorf("%w: %w", ErrRootUnresolvable, cause)).
		Component("securefs").
		Category(errors.CategoryConfiguration).
		Context("storage_root", dir).
		Build()
}

// Dir returns the canonical root directory.
func (r *Root) Dir() string {
	return r.dir
}

// Revalidate checks that the configured root still resolves to the directory
// recorded by NewRoot. A nil Root always fails.
func (r *Root) Revalidate() error {
	if r == nil {
		return rootError("", errors.NewStd("storage root was never resolved"))
	}
	current, err := canonicalDir(r.configured)
	if err != nil {
		return err
	}
	if current != r.dir {
		return rootError(r.configured, fmt.Errorf("root now resolves to %s, expected %s", current, r.dir))
	}
	return nil
}

// Close releases the sandbox handle.
func (r *Root) Close() error {
	if r == nil || r.root == nil {
		return nil
	}
	return r.root.Close()
}

// Resolve returns the canonical form of a contained path. It fails with
// ErrPathTraversal when path resolves outside the root, and with
// fs.ErrNotExist when neither path nor its parent resolve.
func (r *Root) Resolve(path string) (string, error) {
	if r == nil || r.dir == "" {
		return "", rootError("", errors.NewStd("storage root was never resolved"))
	}
	if path == "" {
		return "", ErrInvalidPath
	}
	canonical, err := canonicalPath(path)
	if err != nil {
		return "", err
	}
	if !isPathPrefix(r.dir, canonical) {
		return "", fmt.Errorf("%w: %s", ErrPathTraversal, canonical)
	}
	return canonical, nil
}

// Canonicalize returns the canonical form of path and whether it lies on or
// under the root.
func (r *Root) Canonicalize(path string) (string, bool) {
	canonical, err := r.Resolve(path)
	if err != nil {
		return "", false
	}
	return canonical, true
}

// Contains reports whether path resolves to the root or a descendant of it.
func (r *Root) Contains(path string) bool {
	_, ok := r.Canonicalize(path)
	return ok
}

// IsContained resolves root and reports whether path lies on or under it.
// An unresolvable root rejects every path.
func IsContained(path, root string) bool {
	canonicalRoot, err := canonicalDir(root)
	if err != nil {
		return false
	}
	canonical, err := canonicalPath(path)
	if err != nil {
		return false
	}
	return isPathPrefix(canonicalRoot, canonical)
}

// canonicalPath fully resolves path. ".." elements are applied to the real
// directories, after any symlink before them. When path does not exist the
// parent is resolved instead and the original basename re-appended.
func canonicalPath(path string) (string, error) {
	abs, err := absPath(path)
	if err != nil {
		return "", err
	}
	dir, base := splitLast(abs)
	if base == "" || base == "." || base == ".." {
		return "", fmt.Errorf("%w: %s", ErrInvalidPath, path)
	}

	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return filepath.Clean(resolved), nil
	}

	parent, err := filepath.EvalSymlinks(dir)
	if err != nil {
		return "", fmt.Errorf("%w: parent of %s", fs.ErrNotExist, path)
	}
	return filepath.Join(parent, base), nil
}

// absPath makes path absolute without cleaning it, so ".." elements survive
// until EvalSymlinks.
func absPath(path string) (string, error) {
	if filepath.IsAbs(path) {
		return path, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidPath, err)
	}
	return wd + string(filepath.Separator) + path, nil
}

// splitLast splits path at its last separator, ignoring trailing ones.
// Neither half is cleaned.
func splitLast(path string) (dir, base string) {
	end := len(path)
	for end > 0 && os.IsPathSeparator(path[end-1]) {
		end--
	}
	path = path[:end]

	i := len(path) - 1
	for i >= 0 && !os.IsPathSeparator(path[i]) {
		i--
	}
	switch {
	case i < 0:
		return ".", path
	case i == 0:
		return path[:1], path[1:]
	default:
		return path[:i], path[i+1:]
	}
}

// isPathPrefix checks if target is within or equal to base
func isPathPrefix(absBase, absTarget string) bool {
	if absBase == string(filepath.Separator) {
		return strings.HasPrefix(absTarget, absBase)
	}
	return absTarget == absBase || strings.HasPrefix(absTarget, absBase+string(filepath.Separator))
}

// RelativePath converts a contained path to one relative to the root.
func (r *Root) RelativePath(path string) (string, error) {
	if r == nil || r.root == nil {
		return "", rootError("", errors.NewStd("storage root was never resolved"))
	}
	canonical, err := r.Resolve(path)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(r.dir, canonical)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidPath, err)
	}
	return rel, nil
}

// Lstat returns file info for path through the sandbox without following a
// final symlink.
func (r *Root) Lstat(path string) (fs.FileInfo, error) {
	rel, err := r.RelativePath(path)
	if err != nil {
		return nil, err
	}
	return r.root.Lstat(rel)
}

// IsFileOrSymlink reports whether path exists inside the root as a regular
// file or a symlink.
func (r *Root) IsFileOrSymlink(path string) bool {
	info, err := r.Lstat(path)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular() || info.Mode()&fs.ModeSymlink != 0
}

// Remove deletes a file inside the root. Directories are refused.
func (r *Root) Remove(path string) error {
	rel, err := r.RelativePath(path)
	if err != nil {
		return err
	}
	if rel == "." {
		return fmt.Errorf("%w: refusing to remove storage root", ErrInvalidPath)
	}
	info, err := r.root.Lstat(rel)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%w: %s", ErrNotRegularFile, path)
	}
	return r.root.Remove(rel)
}

// RemoveDirIfEmpty removes a directory inside the root. os.Root.Remove fails
// on a non-empty directory, which callers treat as best effort.
func (r *Root) RemoveDirIfEmpty(path string) error {
	rel, err := r.RelativePath(path)
	if err != nil {
		return err
	}
	if rel == "." {
		return fmt.Errorf("%w: refusing to remove storage root", ErrInvalidPath)
	}
	info, err := r.root.Lstat(rel)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrInvalidPath, path)
	}
	return r.root.Remove(rel)
}

// FS returns a read-only file system confined to the root.
func (r *Root) FS() fs.FS {
	if r == nil || r.root == nil {
		return nil
	}
	return r.root.FS()
}

// ReadDir lists a directory inside the root.
func (r *Root) ReadDir(path string) ([]os.DirEntry, error) {
	rel, err := r.RelativePath(path)
	if err != nil {
		return nil, err
	}

	dir, err := r.root.Open(rel)
	if err != nil {
		return nil, fmt.Errorf("failed to open directory: %w", err)
	}
	defer func() {
		if err := dir.Close(); err != nil {
			GetLogger().Warn("Failed to close directory", logger.Error(err))
		}
	}()

	entries, err := dir.ReadDir(0)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory entries: %w", err)
	}
	return entries, nil
}
