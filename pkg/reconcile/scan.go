package reconcile

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/m-mizutani/goerr/v2"
)

var (
	// ErrInputMissing is returned when the input directory does not exist
	// or is not a directory.
	ErrInputMissing = errors.New("reconcile: input directory does not exist")

	// ErrNestedDirs is returned when the input and output directories are
	// the same or one contains the other.
	ErrNestedDirs = errors.New("reconcile: input and output directories overlap")
)

// checkDirs verifies the input directory exists and that neither directory
// contains the other. Both paths must be absolute.
func checkDirs(inputDir, outputDir string) error {
	info, err := os.Stat(inputDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return goerr.Wrap(ErrInputMissing, "input directory not found", goerr.V("input", inputDir))
		}
		return goerr.Wrap(err, "failed to stat input directory", goerr.V("input", inputDir))
	}
	if !info.IsDir() {
		return goerr.Wrap(ErrInputMissing, "input path is not a directory", goerr.V("input", inputDir))
	}

	in := resolvePath(inputDir)
	out := resolvePath(outputDir)

	if within(in, out) {
		return goerr.Wrap(ErrNestedDirs, "output directory is inside the input directory",
			goerr.V("input", inputDir), goerr.V("output", outputDir))
	}
	if within(out, in) {
		return goerr.Wrap(ErrNestedDirs, "input directory is inside the output directory",
			goerr.V("input", inputDir), goerr.V("output", outputDir))
	}
	return nil
}

// resolvePath resolves symlinks in the longest existing prefix of path so
// that aliases of the same directory compare equal.
func resolvePath(path string) string {
	path = filepath.Clean(path)

	var rest []string
	for cur := path; ; {
		if resolved, err := filepath.EvalSymlinks(cur); err == nil {
			return filepath.Join(append([]string{resolved}, rest...)...)
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return path
		}
		rest = append([]string{filepath.Base(cur)}, rest...)
		cur = parent
	}
}

// within reports whether path equals root or lies below it.
func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// Scan returns every regular file below root in lexical walk order.
// Directories are descended into; symlinks and other special files are
// skipped.
func Scan(root string) ([]FileEntry, error) {
	var entries []FileEntry

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return goerr.Wrap(err, "unable to read directory", goerr.V("path", path))
		}
		if !d.Type().IsRegular() {
			return nil
		}

		entry, err := newEntry(root, path)
		if err != nil {
			return goerr.Wrap(err, "failed to resolve relative path", goerr.V("path", path))
		}
		entries = append(entries, entry)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return entries, nil
}
