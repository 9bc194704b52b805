package validation

import (
	"fmt"
	"os"
	"path/filepath"
)

// PathError describes why a path failed a check.
type PathError struct {
	Path    string
	Message string
}

func (e *PathError) Error() string {
	return e.Message
}

// CheckDirExists returns a *PathError unless path is an existing directory.
func CheckDirExists(path string) error {
	if path == "" {
		return &PathError{Path: path, Message: "directory path cannot be empty"}
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &PathError{Path: path, Message: fmt.Sprintf("directory not found: %s", path)}
		}
		return &PathError{Path: path, Message: fmt.Sprintf("error checking %s: %v", path, err)}
	}
	if !info.IsDir() {
		return &PathError{Path: path, Message: fmt.Sprintf("path is a file, not a directory: %s", path)}
	}
	return nil
}

// CheckDirWritable creates path if needed and probes it with a temporary file.
//
// Example:
//
//	suite.Add("Output directory", func() (string, error) {
//	    return cfg.OutputDir, validation.CheckDirWritable(cfg.OutputDir)
//	})
func CheckDirWritable(path string) error {
	if path == "" {
		return &PathError{Path: path, Message: "directory path cannot be empty"}
	}
	if err := os.MkdirAll(path, 0755); err != nil {
		return &PathError{Path: path, Message: fmt.Sprintf("cannot create %s: %v", path, err)}
	}
	f, err := os.CreateTemp(path, ".probe-*")
	if err != nil {
		return &PathError{Path: path, Message: fmt.Sprintf("directory not writable: %s", path)}
	}
	name := f.Name()
	f.Close()
	os.Remove(name)
	return nil
}

// CheckFileExists returns a *PathError unless path is an existing regular file.
func CheckFileExists(path string) error {
	if path == "" {
		return &PathError{Path: path, Message: "file path cannot be empty"}
	}
	info, err := os.Stat(path)
	if err != nil {
		return &PathError{Path: path, Message: fmt.Sprintf("file not found: %s", filepath.Clean(path))}
	}
	if info.IsDir() {
		return &PathError{Path: path, Message: fmt.Sprintf("path is a directory, not a file: %s", path)}
	}
	return nil
}
