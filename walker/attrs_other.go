//go:build !windows

package walker

import "os"

// HostAttributes 从权限位、文件类型和点号前缀推导属性
func HostAttributes(_ string, info os.FileInfo) Attr {
	return modeAttributes(info)
}
