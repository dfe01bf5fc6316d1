// Package securefs validates that filesystem paths stay inside a storage root
// and performs mutations through an os.Root sandbox.
package securefs

import (
	"github.com/birdnetpi/speciestools/internal/errors"
)

// Sentinel errors for the securefs package.
var (
	// ErrRootUnresolvable means the configured storage root is missing, is not
	// a directory, or no longer resolves to the directory recorded at startup.
	ErrRootUnresolvable = errors.NewStd("storage root cannot be resolved")

	// ErrPathTraversal indicates a path that resolves outside the storage root.
	ErrPathTraversal = errors.NewStd("security error: path resolves outside storage root")

	// ErrInvalidPath indicates a path that cannot name a file, such as one ending in "..".
	ErrInvalidPath = errors.NewStd("security error: invalid path specification")

	// ErrNotRegularFile indicates the target is neither a regular file nor a symlink.
	ErrNotRegularFile = errors.NewStd("security error: not a regular file")
)
