// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

//go:build unix

package dnsmon

import "golang.org/x/sys/unix"

// statFile returns the size and inode of path.
func statFile(path string) (fileState, error) {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return fileState{}, err
	}
	return fileState{size: st.Size, inode: uint64(st.Ino), hasInode: true}, nil
}
