//go:build windows

package walker

import (
	"os"
	"syscall"
)

// HostAttributes 直接读取 Win32 文件属性
func HostAttributes(_ string, info os.FileInfo) Attr {
	if sys, ok := info.Sys().(*syscall.Win32FileAttributeData); ok && sys != nil {
		return Attr(sys.FileAttributes)
	}
	return modeAttributes(info)
}
