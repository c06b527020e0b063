// Package reconcile merges split part files back into whole files.
//
// [Run] scans an input tree, groups files that belong to the same logical
// file and writes one merged file per group into an output tree that
// mirrors the input layout.
//
// # Part Files
//
// A part file is named <base>.part<N><ext>, for example
//
//	report.part1.txt
//	report.part2.txt   ->  report.txt
//	report.part3.txt
//
// Parts are merged in ascending N with a single newline between
// consecutive parts. A file without a part suffix forms a group of its own
// named after the file, so plain files are copied through unchanged.
//
// # Anomalies
//
// Sequence problems never stop a run. They are logged and returned as
// [Warning] values:
//   - duplicate part numbers (both copies are merged, in scan order)
//   - missing part numbers between 1 and the highest part
//   - unnumbered files next to numbered parts (left out of the merge)
//   - several unnumbered files mapping to one output (merged by path)
//
// A missing input directory, input and output directories nested in one
// another, and any read or write error are fatal: Run stops and returns
// the error. Files merged before the failure stay on disk.
//
// # Layout
//
//	{input}/docs/guide.part1.md    ->  {output}/docs/guide.md
//	{input}/docs/guide.part2.md
//	{input}/data/services.json     ->  {output}/data/services.json
package reconcile
