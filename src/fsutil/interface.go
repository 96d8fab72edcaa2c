package fsutil

// FileStore provides an interface for file system operations
type FileStore interface {
	// ReadFile reads a file and returns its contents
	ReadFile(path string) ([]byte, error)

	// WriteFile writes contents to a file, creating it if needed
	WriteFile(path string, data []byte) error

	// MakeDirectory creates a new directory and all necessary parents
	MakeDirectory(path string) error

	// Exists reports whether a path exists
	Exists(path string) (bool, error)
}
