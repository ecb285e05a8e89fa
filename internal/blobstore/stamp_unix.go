// SPDX-License-Identifier: MIT

//go:build linux || darwin || freebsd

package blobstore

import (
	"strconv"

	"golang.org/x/sys/unix"
)

// changeStamp identifies path's inode and its last status change.
func changeStamp(path string) (string, bool) {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return "", false
	}
	sec, nsec := st.Ctim.Unix()
	return strconv.FormatUint(uint64(st.Ino), 10) + ":" + strconv.FormatInt(sec*1e9+nsec, 10), true
}
