// Package storage defines the file-tree abstraction used for both the source
// export and the destination vault.
package storage

// Provider is the interface for tree file operations. All paths are relative
// to the tree root.
type Provider interface {
	// List walks the tree and returns every file path with the given
	// extension (all files when ext is empty).
	List(ext string) ([]string, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically writes content to path, creating parent directories.
	Write(path string, content []byte) error
	// Exists reports whether a file is present at path.
	Exists(path string) bool
}
