// SPDX-License-Identifier: MPL-2.0

//go:build linux

package extract

import (
	"errors"

	"golang.org/x/sys/unix"
)

// exchange atomically swaps src and dst with renameat2(RENAME_EXCHANGE).
// Kernels and filesystems without support report errExchangeUnsupported.
func exchange(src, dst string) error {
	err := unix.Renameat2(unix.AT_FDCWD, src, unix.AT_FDCWD, dst, unix.RENAME_EXCHANGE)
	if errors.Is(err, unix.ENOSYS) || errors.Is(err, unix.EINVAL) || errors.Is(err, unix.EOPNOTSUPP) {
		return errExchangeUnsupported
	}
	return err
}
