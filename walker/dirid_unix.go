//go:build unix

package walker

import (
	"os"
	"syscall"
)

// dirIdentity 用设备号和 inode 标识目录
func dirIdentity(info os.FileInfo) (fileID, bool) {
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok || st == nil {
		return fileID{}, false
	}
	return fileID{dev: uint64(st.Dev), ino: uint64(st.Ino)}, true
}
