// Package filetree provides the single file-set abstraction used by diff
// generation, conflict checking and writing.
//
// A Tree is an ordered list of slash-separated relative paths with content
// access. It is built once per operation, either by scanning a directory
// (Scan) or from in-memory content (FromFiles), and every stage iterates the
// same Paths so they agree on exactly the same file set.
//
// Example usage:
//
//	tree, err := filetree.Scan(filesDir, filetree.ScanOptions{IncludeHidden: true})
//	for _, rel := range tree.Paths() {
//	    data, err := tree.Read(rel)
//	    ...
//	}
package filetree
