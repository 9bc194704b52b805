//go:build windows

package validation

import "golang.org/x/sys/windows"

func getDiskSpace(dir string) (total, free int64, err error) {
	p, err := windows.UTF16PtrFromString(dir)
	if err != nil {
		return 0, 0, err
	}
	var callerFree, size, allFree uint64
	if err := windows.GetDiskFreeSpaceEx(p, &callerFree, &size, &allFree); err != nil {
		return 0, 0, err
	}
	return int64(size), int64(callerFree), nil
}
