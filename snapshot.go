package backupwatch

import (
	"sort"
	"time"
)

// SnapshotNode 表示某一次快照(版本)的节点，形成一个DAG
//
// ID 是此版本的唯一标识，如 "snap-0f1c..."
// ParentIDs 表示它可能有多个父版本（支持多分支/合并）
// Files 存储该快照下每个被选中文件的元信息，键为完整路径
type SnapshotNode struct {
	ID          string                   // 唯一ID
	ParentIDs   []string                 // 父版本
	CreatedAt   time.Time                // 创建时间
	Description string                   // 描述(可为空)
	Files       map[string]*FileMetadata // 当前快照下的文件映射

	seq uint64 // 创建顺序，CreatedAt 相同时用于排序
}

// FileMetadata 表示单个文件在某个快照中的信息
//
// Fingerprint 是采样指纹，空文件为 ""，读取失败时也为 ""
type FileMetadata struct {
	Path        string    // 完整路径
	Size        int64     // 文件大小
	ModTime     time.Time // 修改时间，无法读取时为零值
	Fingerprint string    // 采样指纹
	IsDirectory bool      // 是否目录
	CreatedAt   time.Time // 记录此条目时
}

// ChangeKind 是两个快照之间单个文件的差异类型
type ChangeKind int

const (
	Added ChangeKind = iota + 1
	Removed
	Modified
)

func (k ChangeKind) String() string {
	switch k {
	case Added:
		return "added"
	case Removed:
		return "removed"
	case Modified:
		return "modified"
	default:
		return "unknown"
	}
}

// Change 描述一个文件在两个快照之间的变化
type Change struct {
	Path string
	Kind ChangeKind
	Old  *FileMetadata // Added 时为 nil
	New  *FileMetadata // Removed 时为 nil
}

// Diff 比较两个快照，按路径排序返回差异。
// 指纹或大小不同视为 Modified；只有修改时间变化不算。nil 快照视为空。
func Diff(old, new *SnapshotNode) []Change {
	var oldFiles, newFiles map[string]*FileMetadata
	if old != nil {
		oldFiles = old.Files
	}
	if new != nil {
		newFiles = new.Files
	}

	var changes []Change
	for path, nm := range newFiles {
		om, ok := oldFiles[path]
		switch {
		case !ok:
			changes = append(changes, Change{Path: path, Kind: Added, New: nm})
		case differs(om, nm):
			changes = append(changes, Change{Path: path, Kind: Modified, Old: om, New: nm})
		}
	}
	for path, om := range oldFiles {
		if _, ok := newFiles[path]; !ok {
			changes = append(changes, Change{Path: path, Kind: Removed, Old: om})
		}
	}

	sort.Slice(changes, func(i, j int) bool {
		return changes[i].Path < changes[j].Path
	})
	return changes
}

func differs(a, b *FileMetadata) bool {
	return a.Fingerprint != b.Fingerprint || a.Size != b.Size
}

// cloneFiles 复制父快照的文件表，供新快照修改
func (s *SnapshotNode) cloneFiles() map[string]*FileMetadata {
	files := make(map[string]*FileMetadata, len(s.Files))
	for k, v := range s.Files {
		copyMeta := *v
		files[k] = &copyMeta
	}
	return files
}
