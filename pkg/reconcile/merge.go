package reconcile

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"

	"github.com/m-mizutani/goerr/v2"
)

// separator is written between consecutive source files.
var separator = []byte("\n")

// partReader streams a list of files in order, inserting a separator
// between consecutive files.
type partReader struct {
	ctx     context.Context
	entries []FileEntry

	next          int
	current       *os.File
	currentPath   string
	pendingSep    []byte
	closed        bool
	bytesStreamed int64
}

func newPartReader(ctx context.Context, entries []FileEntry) *partReader {
	return &partReader{ctx: ctx, entries: entries}
}

// Read implements io.Reader.
func (r *partReader) Read(p []byte) (int, error) {
	if r.closed {
		return 0, io.ErrClosedPipe
	}

	for {
		if len(r.pendingSep) > 0 {
			n := copy(p, r.pendingSep)
			r.pendingSep = r.pendingSep[n:]
			return n, nil
		}

		if r.current != nil {
			n, err := r.current.Read(p)
			r.bytesStreamed += int64(n)
			if err == io.EOF {
				r.current.Close()
				r.current = nil
				if r.next < len(r.entries) {
					r.pendingSep = separator
				}
				if n > 0 {
					return n, nil
				}
				continue
			}
			if err != nil {
				return n, goerr.Wrap(err, "failed to read file", goerr.V("path", r.currentPath))
			}
			return n, nil
		}

		if r.next >= len(r.entries) {
			return 0, io.EOF
		}
		if err := r.ctx.Err(); err != nil {
			return 0, err
		}

		entry := r.entries[r.next]
		f, err := os.Open(entry.Path)
		if err != nil {
			return 0, goerr.Wrap(err, "failed to read file", goerr.V("path", entry.Path))
		}
		r.current = f
		r.currentPath = entry.Path
		r.next++
	}
}

// Close releases the file currently being read.
func (r *partReader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true

	if r.current != nil {
		err := r.current.Close()
		r.current = nil
		return err
	}
	return nil
}

// readError marks errors that came from the source side of a copy.
type readError struct{ err error }

func (e *readError) Error() string { return e.err.Error() }
func (e *readError) Unwrap() error { return e.err }

// sourceReader tags errors from r so they can be told apart from write
// errors after io.Copy.
type sourceReader struct{ r io.Reader }

func (s sourceReader) Read(p []byte) (int, error) {
	n, err := s.r.Read(p)
	if err != nil && err != io.EOF {
		err = &readError{err: err}
	}
	return n, err
}

// mergeFiles streams entries into dest. The output is written to a
// temporary file in the destination directory and renamed into place once
// complete, so a failed merge never leaves a truncated output behind.
func mergeFiles(ctx context.Context, dest string, entries []FileEntry) (int64, error) {
	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, goerr.Wrap(err, "failed to create output directory", goerr.V("dir", dir))
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(dest)+".stitch-*")
	if err != nil {
		return 0, goerr.Wrap(err, "failed to create output file", goerr.V("path", dest))
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	r := newPartReader(ctx, entries)
	defer r.Close()

	n, err := io.Copy(tmp, sourceReader{r: r})
	if err != nil {
		var re *readError
		if errors.As(err, &re) {
			return n, re.err
		}
		return n, goerr.Wrap(err, "failed to write output file", goerr.V("path", dest))
	}

	if err := tmp.Chmod(0o644); err != nil {
		return n, goerr.Wrap(err, "failed to set output file mode", goerr.V("path", dest))
	}
	if err := tmp.Close(); err != nil {
		return n, goerr.Wrap(err, "failed to write output file", goerr.V("path", dest))
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		return n, goerr.Wrap(err, "failed to move output file into place", goerr.V("path", dest))
	}
	committed = true

	return n, nil
}
