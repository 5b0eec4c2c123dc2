package fingerprint

import (
	"fmt"
	"time"

	"github.com/shuakami/backupwatch/fserr"
)

// 早于 Windows 文件时间纪元的修改时间视为无效
var minValidModTime = time.Date(1601, time.January, 1, 0, 0, 0, 0, time.UTC)

// Metadata 是指纹计算之外调用方通常需要的文件元信息
type Metadata struct {
	Path    string
	Size    int64
	ModTime time.Time
	IsDir   bool
}

// Stat 读取 path 的元信息。
//
// 修改时间无效时仍返回已读到的 Size/IsDir，同时返回 fserr.ErrMetadataUnreadable 类错误，
// 调用方可以决定忽略时间还是放弃该文件。
func (f *Fingerprinter) Stat(path string) (Metadata, error) {
	info, err := f.fs.Stat(path)
	if err != nil {
		return Metadata{}, fserr.IO(fserr.OpStat, path, err)
	}

	md := Metadata{
		Path:    path,
		Size:    info.Size(),
		ModTime: info.ModTime(),
		IsDir:   info.IsDir(),
	}

	if mt := md.ModTime; mt.IsZero() || mt.Before(minValidModTime) {
		return md, fserr.Metadata(fserr.OpStat, path, fmt.Errorf("couldn't read last write time (%s)", mt.UTC().Format(time.RFC3339)))
	}

	return md, nil
}
