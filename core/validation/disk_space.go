package validation

import (
	"fmt"
	"os"
	"path/filepath"

	"jpegsize/core"
)

// ArtifactBytesPerTrial estimates the PNG output of one trial: challenge,
// piece and solution images at the default canvas size.
const ArtifactBytesPerTrial int64 = 3 * 400 * core.BytesPerKB

// DiskSpaceInfo describes the filesystem holding a path.
type DiskSpaceInfo struct {
	Path  string
	Total int64
	Free  int64
}

// DiskSpaceError indicates too little free space for the run's output.
type DiskSpaceError struct {
	Path      string
	Required  int64
	Available int64
}

func (e *DiskSpaceError) Error() string {
	return fmt.Sprintf("insufficient disk space at %s: need %s, have %s free",
		e.Path, core.FormatBytes(e.Required), core.FormatBytes(e.Available))
}

// GetDiskSpace reports space on the filesystem holding path. A path that does
// not exist yet is resolved to its nearest existing ancestor.
func GetDiskSpace(path string) (*DiskSpaceInfo, error) {
	dir, err := existingAncestor(path)
	if err != nil {
		return nil, err
	}
	total, free, err := getDiskSpace(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to get disk space for %s: %w", dir, err)
	}
	return &DiskSpaceInfo{Path: dir, Total: total, Free: free}, nil
}

// CheckDiskSpace returns a *DiskSpaceError when path has less than
// requiredBytes free.
func CheckDiskSpace(path string, requiredBytes int64) error {
	info, err := GetDiskSpace(path)
	if err != nil {
		return err
	}
	if info.Free < requiredBytes {
		return &DiskSpaceError{Path: info.Path, Required: requiredBytes, Available: info.Free}
	}
	return nil
}

func existingAncestor(path string) (string, error) {
	p, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("cannot resolve %s: %w", path, err)
	}
	for {
		info, err := os.Stat(p)
		if err == nil {
			if !info.IsDir() {
				return filepath.Dir(p), nil
			}
			return p, nil
		}
		if !os.IsNotExist(err) {
			return "", fmt.Errorf("cannot access path %s: %w", p, err)
		}
		parent := filepath.Dir(p)
		if parent == p {
			return "", fmt.Errorf("no existing ancestor for %s", path)
		}
		p = parent
	}
}
