package securefs

import (
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/birdnetpi/speciestools/internal/errors"
)

// setupRoot creates a storage root inside a temp dir that also holds an
// "outside" sibling directory for escape attempts.
func setupRoot(t *testing.T) (root *Root, base, outside string) {
	t.Helper()

	tempDir := t.TempDir()
	base = filepath.Join(tempDir, "By_Date")
	outside = filepath.Join(tempDir, "outside")
	require.NoError(t, os.MkdirAll(base, 0o755))
	require.NoError(t, os.MkdirAll(outside, 0o755))

	root, err := NewRoot(base)
	require.NoError(t, err)
	t.Cleanup(func() { _ = root.Close() })

	// t.TempDir may itself sit behind a symlink (macOS /var -> /private/var)
	canonicalBase, err := filepath.EvalSymlinks(base)
	require.NoError(t, err)
	require.Equal(t, canonicalBase, root.Dir())

	return root, base, outside
}

func writeFile(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("RIFF"), 0o644))
}

func TestNewRoot_FailsClosed(t *testing.T) {
	t.Parallel()

	tempDir := t.TempDir()
	file := filepath.Join(tempDir, "not-a-dir")
	writeFile(t, file)

	tests := []struct {
		name string
		dir  string
	}{
		{"empty", ""},
		{"missing", filepath.Join(tempDir, "missing")},
		{"regular file", file},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			root, err := NewRoot(tt.dir)
			require.Error(t, err)
			assert.Nil(t, root)
			assert.ErrorIs(t, err, ErrRootUnresolvable)
			assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
		})
	}
}

func TestRoot_Contains(t *testing.T) {
	t.Parallel()

	root, base, outside := setupRoot(t)
	writeFile(t, filepath.Join(base, "2024-01-01", "American_Robin", "x.wav"))
	writeFile(t, filepath.Join(outside, "secrets.txt"))
	require.NoError(t, os.Symlink(outside, filepath.Join(base, "escape")))
	require.NoError(t, os.Symlink(filepath.Join(outside, "secrets.txt"), filepath.Join(base, "2024-01-01", "American_Robin", "link.wav")))

	tests := []struct {
		name string
		path string
		want bool
	}{
		{"root itself", base, true},
		{"existing file", filepath.Join(base, "2024-01-01", "American_Robin", "x.wav"), true},
		{"missing file in existing dir", filepath.Join(base, "2024-01-01", "American_Robin", "x.wav.png"), true},
		{"missing parent", filepath.Join(base, "2024-02-02", "Nope", "y.wav"), false},
		{"dotdot traversal", base + "/2024-01-01/American_Robin/../../../outside/secrets.txt", false},
		{"dotdot staying inside", base + "/2024-01-01/American_Robin/../American_Robin/x.wav", true},
		{"root as substring", base + "-evil/secrets.txt", false},
		{"sibling dir", filepath.Join(outside, "secrets.txt"), false},
		{"directory symlink escape", filepath.Join(base, "escape", "secrets.txt"), false},
		{"file symlink escape", filepath.Join(base, "2024-01-01", "American_Robin", "link.wav"), false},
		{"trailing dot", base + "/2024-01-01/.", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, root.Contains(tt.path), "path %q", tt.path)
		})
	}
}

func TestIsContained_UnresolvableRootRejectsEverything(t *testing.T) {
	t.Parallel()

	_, base, _ := setupRoot(t)
	file := filepath.Join(base, "a.wav")
	writeFile(t, file)

	assert.True(t, IsContained(file, base))
	assert.False(t, IsContained(file, filepath.Join(base, "missing-root")))
	assert.False(t, IsContained(file, ""))
}

func TestIsContained_DotDotResolvedAgainstRealDirs(t *testing.T) {
	t.Parallel()

	_, base, outside := setupRoot(t)
	require.NoError(t, os.MkdirAll(filepath.Join(base, "a"), 0o755))
	writeFile(t, filepath.Join(base, "f.wav"))
	writeFile(t, filepath.Join(outside, "secrets.txt"))
	// escape/.. is the temp dir, not the storage root
	require.NoError(t, os.Symlink(outside, filepath.Join(base, "escape")))

	tests := []struct {
		name string
		path string
		want bool
	}{
		{"dotdot landing inside", base + "/a/../f.wav", true},
		{"dotdot landing on missing file inside", base + "/a/../g.wav", true},
		{"dotdot escaping", base + "/a/../../outside/secrets.txt", false},
		{"dotdot escaping from filename", base + "/a/../../secrets.txt", false},
		{"dotdot after symlink escapes", base + "/escape/../outside/secrets.txt", false},
		{"dotdot after symlink comes back", base + "/escape/../By_Date/f.wav", true},
		{"dotdot below missing dir", base + "/missing/../f.wav", false},
		{"dotdot basename", base + "/a/..", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, IsContained(tt.path, base), "path %q", tt.path)
		})
	}
}

func TestRoot_NilRejectsEverything(t *testing.T) {
	t.Parallel()

	var root *Root
	assert.False(t, root.Contains("/tmp"))
	require.Error(t, root.Revalidate())
	_, err := root.Lstat("/tmp")
	require.Error(t, err)
}

func TestRoot_CanonicalizeResolvesSymlinkedDirs(t *testing.T) {
	t.Parallel()

	root, base, _ := setupRoot(t)
	realFile := filepath.Join(base, "2024-01-01", "Blue_Jay", "a.wav")
	writeFile(t, realFile)
	require.NoError(t, os.MkdirAll(filepath.Join(base, "shifted"), 0o755))
	require.NoError(t, os.Symlink(filepath.Join(base, "2024-01-01"), filepath.Join(base, "shifted", "2024-01-01")))

	direct, ok := root.Canonicalize(realFile)
	require.True(t, ok)
	viaLink, ok := root.Canonicalize(filepath.Join(base, "shifted", "2024-01-01", "Blue_Jay", "a.wav"))
	require.True(t, ok)
	assert.Equal(t, direct, viaLink)
}

func TestRoot_Revalidate(t *testing.T) {
	t.Parallel()

	root, base, _ := setupRoot(t)
	require.NoError(t, root.Revalidate())

	require.NoError(t, os.Rename(base, base+".moved"))
	err := root.Revalidate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRootUnresolvable)
}

func TestRoot_Remove(t *testing.T) {
	t.Parallel()

	root, base, outside := setupRoot(t)
	target := filepath.Join(base, "2024-01-01", "Pica_pica", "a.wav")
	writeFile(t, target)
	victim := filepath.Join(outside, "keep.txt")
	writeFile(t, victim)

	require.NoError(t, root.Remove(target))
	assert.NoFileExists(t, target)

	err := root.Remove(target)
	require.Error(t, err)
	assert.True(t, os.IsNotExist(err))

	err = root.Remove(base + "/../outside/keep.txt")
	require.ErrorIs(t, err, ErrPathTraversal)
	assert.FileExists(t, victim)

	err = root.Remove(base)
	require.ErrorIs(t, err, ErrInvalidPath)

	err = root.Remove(filepath.Join(base, "2024-01-01"))
	require.ErrorIs(t, err, ErrNotRegularFile)
}

func TestRoot_RemoveDirIfEmpty(t *testing.T) {
	t.Parallel()

	root, base, _ := setupRoot(t)
	empty := filepath.Join(base, "2024-01-01", "Empty")
	require.NoError(t, os.MkdirAll(empty, 0o755))
	full := filepath.Join(base, "2024-01-01", "Full")
	writeFile(t, filepath.Join(full, "a.wav"))

	require.NoError(t, root.RemoveDirIfEmpty(empty))
	assert.NoDirExists(t, empty)

	require.Error(t, root.RemoveDirIfEmpty(full))
	assert.DirExists(t, full)

	require.ErrorIs(t, root.RemoveDirIfEmpty(base), ErrInvalidPath)
}

func TestRoot_IsFileOrSymlink(t *testing.T) {
	t.Parallel()

	root, base, _ := setupRoot(t)
	file := filepath.Join(base, "d", "a.wav")
	writeFile(t, file)
	require.NoError(t, os.Symlink(file, filepath.Join(base, "d", "b.wav")))

	assert.True(t, root.IsFileOrSymlink(file))
	assert.True(t, root.IsFileOrSymlink(filepath.Join(base, "d", "b.wav")))
	assert.False(t, root.IsFileOrSymlink(filepath.Join(base, "d")))
	assert.False(t, root.IsFileOrSymlink(filepath.Join(base, "d", "missing.wav")))
}

func TestRoot_ReadDir(t *testing.T) {
	t.Parallel()

	root, base, _ := setupRoot(t)
	writeFile(t, filepath.Join(base, "2024-01-01", "A", "1.wav"))
	writeFile(t, filepath.Join(base, "2024-01-02", "A", "2.wav"))

	entries, err := root.ReadDir(base)
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	_, err = root.ReadDir(base + "/..")
	require.Error(t, err)

	matches, err := fs.Glob(root.FS(), "*/A")
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-01-01/A", "2024-01-02/A"}, matches)
}

func TestRoot_ConcurrentContains(t *testing.T) {
	t.Parallel()

	root, base, _ := setupRoot(t)
	file := filepath.Join(base, "2024-01-01", "A", "1.wav")
	writeFile(t, file)

	var wg sync.WaitGroup
	for range 16 {
		wg.Go(func() {
			for range 50 {
				assert.True(t, root.Contains(file))
				assert.False(t, root.Contains(base+"/../x"))
			}
		})
	}
	wg.Wait()
}

func TestRoot_ResolveDistinguishesMissingFromEscape(t *testing.T) {
	t.Parallel()

	root, base, outside := setupRoot(t)
	require.NoError(t, os.Symlink(outside, filepath.Join(base, "escape")))

	_, err := root.Resolve(filepath.Join(base, "2024-01-01", "Missing", "a.wav"))
	require.ErrorIs(t, err, fs.ErrNotExist)

	_, err = root.Resolve(filepath.Join(base, "escape", "keep.txt"))
	require.ErrorIs(t, err, ErrPathTraversal)

	_, err = root.Resolve(base + "/escape/../outside/keep.txt")
	require.ErrorIs(t, err, ErrPathTraversal)

	_, err = root.Resolve("")
	require.ErrorIs(t, err, ErrInvalidPath)

	var nilRoot *Root
	_, err = nilRoot.Resolve(base)
	require.ErrorIs(t, err, ErrRootUnresolvable)
}
