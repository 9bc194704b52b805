//go:build unix

package validation

import "golang.org/x/sys/unix"

// getDiskSpace reports Bavail rather than Bfree: the space an unprivileged
// process can actually use.
func getDiskSpace(dir string) (total, free int64, err error) {
	var st unix.Statfs_t
	if err := unix.Statfs(dir, &st); err != nil {
		return 0, 0, err
	}
	bsize := int64(st.Bsize)
	return int64(st.Blocks) * bsize, int64(st.Bavail) * bsize, nil
}
