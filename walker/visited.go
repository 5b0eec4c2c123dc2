package walker

import "os"

type fileID struct {
	dev uint64
	ino uint64
}

// visitedDirs 记录一次遍历中已入队的目录，防止符号链接造成重复访问或死循环
type visitedDirs struct {
	ids   map[fileID]struct{}
	infos []os.FileInfo // 拿不到 inode 时的兜底
}

func newVisitedDirs() *visitedDirs {
	return &visitedDirs{ids: make(map[fileID]struct{})}
}

// visit 登记目录，已经登记过时返回 false。
// 兜底路径只对经由符号链接到达的目录做 os.SameFile 比较：
// 普通子目录在一次遍历中只会出现一次。
func (v *visitedDirs) visit(info os.FileInfo, viaLink bool) bool {
	if id, ok := dirIdentity(info); ok {
		if _, dup := v.ids[id]; dup {
			return false
		}
		v.ids[id] = struct{}{}
		return true
	}

	if viaLink {
		for _, seen := range v.infos {
			if os.SameFile(seen, info) {
				return false
			}
		}
	}
	v.infos = append(v.infos, info)
	return true
}
