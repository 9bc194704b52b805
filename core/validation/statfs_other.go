//go:build !unix && !windows

package validation

import "errors"

func getDiskSpace(string) (int64, int64, error) {
	return 0, 0, errors.ErrUnsupported
}
