package reconcile

import (
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
)

// partPattern matches <base>.part<N><ext>. The extension may not contain a
// dot, so archive.part1.tar.gz is not a part file.
var partPattern = regexp.MustCompile(`^(.+?)\.part(\d+)(\.[^.]+)?$`)

// FileEntry is one file found under the input directory.
type FileEntry struct {
	// Path is the absolute path of the file.
	Path string
	// Rel is the path relative to the input directory.
	Rel string
	// Part is the part number; only meaningful when Numbered is true.
	Part     int
	Numbered bool
}

// GroupKey identifies the output file a group is merged into.
type GroupKey struct {
	Dir  string // directory relative to the input root, "." for the root
	Name string // output file name
}

func (k GroupKey) String() string {
	return filepath.Join(k.Dir, k.Name)
}

// Group is the set of input files merged into one output file, in scan
// order.
type Group struct {
	Key     GroupKey
	Entries []FileEntry
}

// ParsePartName splits a file name of the form <base>.part<N><ext>. It
// returns the output name <base><ext> and N. ok is false for names that are
// not part files.
func ParsePartName(name string) (output string, part int, ok bool) {
	m := partPattern.FindStringSubmatch(name)
	if m == nil {
		return name, 0, false
	}

	n, err := strconv.Atoi(m[2])
	if err != nil {
		// Out of range for int.
		return name, 0, false
	}
	return m[1] + m[3], n, true
}

// newEntry builds a FileEntry for the file at path, relative to root.
func newEntry(root, path string) (FileEntry, error) {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return FileEntry{}, err
	}

	entry := FileEntry{Path: path, Rel: rel}
	if _, part, ok := ParsePartName(filepath.Base(rel)); ok {
		entry.Part = part
		entry.Numbered = true
	}
	return entry, nil
}

// key returns the group key of the entry.
func (e FileEntry) key() GroupKey {
	name, _, _ := ParsePartName(filepath.Base(e.Rel))
	return GroupKey{Dir: filepath.Dir(e.Rel), Name: name}
}

// GroupFiles groups entries by output file. Groups are returned in the order
// their first entry appears in entries.
func GroupFiles(entries []FileEntry) []*Group {
	index := make(map[GroupKey]*Group)
	var groups []*Group

	for _, e := range entries {
		k := e.key()
		g, ok := index[k]
		if !ok {
			g = &Group{Key: k}
			index[k] = g
			groups = append(groups, g)
		}
		g.Entries = append(g.Entries, e)
	}

	return groups
}

// numbered reports whether the group has at least one numbered part.
func (g *Group) numbered() bool {
	return slices.ContainsFunc(g.Entries, func(e FileEntry) bool { return e.Numbered })
}
