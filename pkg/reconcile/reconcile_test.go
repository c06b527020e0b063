package reconcile

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// writeTree creates files below root from a map of relative path to content.
func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func kinds(warnings []Warning) []WarningKind {
	out := make([]WarningKind, len(warnings))
	for i, w := range warnings {
		out[i] = w.Kind
	}
	return out
}

func newDirs(t *testing.T) (string, string) {
	t.Helper()
	root := t.TempDir()
	in := filepath.Join(root, "ai_files")
	out := filepath.Join(root, "dist")
	require.NoError(t, os.Mkdir(in, 0o755))
	return in, out
}

func TestRunMergesParts(t *testing.T) {
	in, out := newDirs(t)
	writeTree(t, in, map[string]string{
		"report.part1.txt": "A",
		"report.part2.txt": "B",
		"report.part3.txt": "C",
	})

	res, err := Run(context.Background(), Options{InputDir: in, OutputDir: out})
	require.NoError(t, err)

	assert.Equal(t, "A\nB\nC", readFile(t, filepath.Join(out, "report.txt")))
	assert.Equal(t, []string{"report.txt"}, res.Outputs)
	assert.Equal(t, int64(5), res.Bytes)
	assert.Empty(t, res.Warnings)
}

func TestRunOrdersPartsNumerically(t *testing.T) {
	in, out := newDirs(t)
	writeTree(t, in, map[string]string{
		"x.part2.log":  "second",
		"x.part1.log":  "first",
		"x.part10.log": "tenth",
	})

	res, err := Run(context.Background(), Options{InputDir: in, OutputDir: out})
	require.NoError(t, err)

	// Parts 3..9 are missing; part 10 sorts after part 2.
	assert.Equal(t, "first\nsecond\ntenth", readFile(t, filepath.Join(out, "x.log")))
	for _, w := range res.Warnings {
		assert.Equal(t, WarnMissingPart, w.Kind)
		assert.GreaterOrEqual(t, w.Part, 3)
		assert.LessOrEqual(t, w.Part, 9)
	}
	assert.Len(t, res.Warnings, 7)
}

func TestRunNoMissingWarningForCompleteSequence(t *testing.T) {
	in, out := newDirs(t)
	writeTree(t, in, map[string]string{
		"x.part2.log": "two",
		"x.part1.log": "one",
	})

	res, err := Run(context.Background(), Options{InputDir: in, OutputDir: out})
	require.NoError(t, err)

	assert.Equal(t, "one\ntwo", readFile(t, filepath.Join(out, "x.log")))
	assert.Empty(t, res.Warnings)
}

func TestRunGapWarns(t *testing.T) {
	in, out := newDirs(t)
	writeTree(t, in, map[string]string{
		"notes.part1.md": "one",
		"notes.part3.md": "three",
	})

	res, err := Run(context.Background(), Options{InputDir: in, OutputDir: out})
	require.NoError(t, err)

	assert.Equal(t, "one\nthree", readFile(t, filepath.Join(out, "notes.md")))
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, WarnMissingPart, res.Warnings[0].Kind)
	assert.Equal(t, 2, res.Warnings[0].Part)
	assert.Equal(t, "notes.md", res.Warnings[0].Group)
	assert.Equal(t, "missing part number 2 for notes.md", res.Warnings[0].String())
}

func TestRunDuplicateParts(t *testing.T) {
	in, out := newDirs(t)
	writeTree(t, in, map[string]string{
		"a.part1.txt":  "one",
		"a.part01.txt": "uno",
		"a.part2.txt":  "two",
	})

	res, err := Run(context.Background(), Options{InputDir: in, OutputDir: out})
	require.NoError(t, err)

	// Both part 1 files are kept in scan (lexical) order.
	assert.Equal(t, "uno\none\ntwo", readFile(t, filepath.Join(out, "a.txt")))
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, WarnDuplicatePart, res.Warnings[0].Kind)
	assert.Equal(t, 1, res.Warnings[0].Part)
}

func TestRunMixedGroupIgnoresUnnumbered(t *testing.T) {
	in, out := newDirs(t)
	writeTree(t, in, map[string]string{
		"guide.md":       "stale",
		"guide.part1.md": "fresh 1",
		"guide.part2.md": "fresh 2",
	})

	res, err := Run(context.Background(), Options{InputDir: in, OutputDir: out})
	require.NoError(t, err)

	assert.Equal(t, "fresh 1\nfresh 2", readFile(t, filepath.Join(out, "guide.md")))
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, WarnUnnumberedIgnored, res.Warnings[0].Kind)
	assert.Equal(t, []string{"guide.md"}, res.Warnings[0].Files)
}

func TestRunMirrorsLayout(t *testing.T) {
	in, out := newDirs(t)
	writeTree(t, in, map[string]string{
		"docs/guide.part1.md":  "# Guide",
		"docs/guide.part2.md":  "body",
		"data/services.json":   `{"a":1}`,
		"data/deep/plain.txt":  "plain",
		"other/guide.part1.md": "other",
		"archive.part1.tar.gz": "not a part",
		"README.md":            "readme",
		"docs/empty.part1.txt": "",
		"docs/empty.part2.txt": "",
	})

	res, err := Run(context.Background(), Options{InputDir: in, OutputDir: out})
	require.NoError(t, err)
	assert.Empty(t, res.Warnings)

	assert.Equal(t, "# Guide\nbody", readFile(t, filepath.Join(out, "docs", "guide.md")))
	assert.Equal(t, `{"a":1}`, readFile(t, filepath.Join(out, "data", "services.json")))
	assert.Equal(t, "plain", readFile(t, filepath.Join(out, "data", "deep", "plain.txt")))
	assert.Equal(t, "other", readFile(t, filepath.Join(out, "other", "guide.md")))
	assert.Equal(t, "not a part", readFile(t, filepath.Join(out, "archive.part1.tar.gz")))
	assert.Equal(t, "readme", readFile(t, filepath.Join(out, "README.md")))
	assert.Equal(t, "\n", readFile(t, filepath.Join(out, "docs", "empty.txt")))

	assert.ElementsMatch(t, []string{
		"README.md",
		"archive.part1.tar.gz",
		filepath.Join("data", "deep", "plain.txt"),
		filepath.Join("data", "services.json"),
		filepath.Join("docs", "empty.txt"),
		filepath.Join("docs", "guide.md"),
		filepath.Join("other", "guide.md"),
	}, res.Outputs)

	// No temporary files are left behind.
	leftovers, err := filepath.Glob(filepath.Join(out, "docs", ".*"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestRunOverwritesExistingOutput(t *testing.T) {
	in, out := newDirs(t)
	writeTree(t, in, map[string]string{"a.part1.txt": "new"})
	writeTree(t, out, map[string]string{"a.txt": "old content that is longer"})

	_, err := Run(context.Background(), Options{InputDir: in, OutputDir: out})
	require.NoError(t, err)
	assert.Equal(t, "new", readFile(t, filepath.Join(out, "a.txt")))
}

func TestRunEmptyInput(t *testing.T) {
	in, out := newDirs(t)
	require.NoError(t, os.MkdirAll(filepath.Join(in, "empty", "nested"), 0o755))

	core, logs := observer.New(zapcore.WarnLevel)
	res, err := Run(context.Background(), Options{InputDir: in, OutputDir: out, Logger: zap.New(core)})
	require.NoError(t, err)

	assert.Equal(t, []WarningKind{WarnNoFiles}, kinds(res.Warnings))
	assert.Empty(t, res.Outputs)
	assert.Equal(t, 1, logs.FilterMessage("no files found in input directory").Len())

	_, err = os.Stat(out)
	assert.True(t, errors.Is(err, os.ErrNotExist), "output directory should not be created")
}

func TestRunInputMissing(t *testing.T) {
	root := t.TempDir()

	_, err := Run(context.Background(), Options{
		InputDir:  filepath.Join(root, "missing"),
		OutputDir: filepath.Join(root, "dist"),
	})
	require.ErrorIs(t, err, ErrInputMissing)

	_, err = os.Stat(filepath.Join(root, "dist"))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestRunInputIsFile(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"file": "x"})

	_, err := Run(context.Background(), Options{
		InputDir:  filepath.Join(root, "file"),
		OutputDir: filepath.Join(root, "dist"),
	})
	require.ErrorIs(t, err, ErrInputMissing)
}

func TestRunNestedDirectories(t *testing.T) {
	tests := []struct {
		name string
		out  func(in string) string
	}{
		{"output inside input", func(in string) string { return filepath.Join(in, "dist") }},
		{"input inside output", func(in string) string { return filepath.Dir(in) }},
		{"same directory", func(in string) string { return in }},
		{"same directory unclean", func(in string) string { return filepath.Join(in, "sub", "..") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, _ := newDirs(t)
			writeTree(t, in, map[string]string{"a.part1.txt": "A"})
			out := tt.out(in)

			_, err := Run(context.Background(), Options{InputDir: in, OutputDir: out})
			require.ErrorIs(t, err, ErrNestedDirs)

			_, err = os.Stat(filepath.Join(out, "a.txt"))
			assert.True(t, errors.Is(err, os.ErrNotExist), "no output should be written")
		})
	}
}

func TestRunSiblingWithSharedPrefixIsNotNested(t *testing.T) {
	root := t.TempDir()
	in := filepath.Join(root, "files")
	out := filepath.Join(root, "files-out")
	writeTree(t, in, map[string]string{"a.txt": "A"})

	_, err := Run(context.Background(), Options{InputDir: in, OutputDir: out})
	require.NoError(t, err)
	assert.Equal(t, "A", readFile(t, filepath.Join(out, "a.txt")))
}

func TestRunNestedThroughSymlink(t *testing.T) {
	root := t.TempDir()
	in := filepath.Join(root, "in")
	writeTree(t, in, map[string]string{"a.txt": "A"})
	link := filepath.Join(root, "link")
	if err := os.Symlink(in, link); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	_, err := Run(context.Background(), Options{InputDir: in, OutputDir: filepath.Join(link, "dist")})
	require.ErrorIs(t, err, ErrNestedDirs)
}

func TestRunLogsWarnings(t *testing.T) {
	in, out := newDirs(t)
	writeTree(t, in, map[string]string{
		"a.part1.txt": "1",
		"a.part3.txt": "3",
	})

	core, logs := observer.New(zapcore.InfoLevel)
	_, err := Run(context.Background(), Options{InputDir: in, OutputDir: out, Logger: zap.New(core)})
	require.NoError(t, err)

	warns := logs.FilterLevelExact(zapcore.WarnLevel).All()
	require.Len(t, warns, 1)
	assert.Equal(t, "missing part number 2 for a.txt", warns[0].Message)

	assert.Equal(t, 1, logs.FilterMessage("reconciled").Len())
	done := logs.FilterMessage("reconciliation complete").All()
	require.Len(t, done, 1)
	assert.Equal(t, int64(1), done[0].ContextMap()["files"])
}

func TestRunCanceled(t *testing.T) {
	in, out := newDirs(t)
	writeTree(t, in, map[string]string{"a.txt": "A", "b.txt": "B"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := Run(ctx, Options{InputDir: in, OutputDir: out})
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, res.Outputs)
}

func TestRunReadFailureAborts(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permissions are not enforced for root")
	}

	in, out := newDirs(t)
	writeTree(t, in, map[string]string{
		"a.txt":       "A",
		"b.part1.txt": "B1",
		"b.part2.txt": "B2",
	})
	require.NoError(t, os.Chmod(filepath.Join(in, "b.part2.txt"), 0o000))

	res, err := Run(context.Background(), Options{InputDir: in, OutputDir: out})
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrPermission)

	// Groups merged before the failure stay; the failed group leaves nothing.
	assert.Equal(t, []string{"a.txt"}, res.Outputs)
	assert.Equal(t, "A", readFile(t, filepath.Join(out, "a.txt")))
	_, err = os.Stat(filepath.Join(out, "b.txt"))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestRunWriteFailureAborts(t *testing.T) {
	in, out := newDirs(t)
	writeTree(t, in, map[string]string{
		"a.txt":       "A",
		"b.part1.txt": "B1",
		"b.part2.txt": "B2",
	})
	// A non-empty directory already occupies the output path of b.txt.
	writeTree(t, out, map[string]string{"b.txt/keep": "x"})

	res, err := Run(context.Background(), Options{InputDir: in, OutputDir: out})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to reconcile file")

	assert.Equal(t, []string{"a.txt"}, res.Outputs)
	assert.Equal(t, "A", readFile(t, filepath.Join(out, "a.txt")))

	info, err := os.Stat(filepath.Join(out, "b.txt"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Equal(t, "x", readFile(t, filepath.Join(out, "b.txt", "keep")))

	leftovers, err := filepath.Glob(filepath.Join(out, ".b.txt.stitch-*"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}
