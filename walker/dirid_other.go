//go:build !unix

package walker

import "os"

// dirIdentity 在没有 inode 的平台上不可用，由 os.SameFile 兜底
func dirIdentity(os.FileInfo) (fileID, bool) {
	return fileID{}, false
}
