package walker

import (
	"fmt"
	"os"
	"strings"
)

// Attr 是文件/目录属性位集，位值与 Windows FILE_ATTRIBUTE_* 一致。
// 对遍历来说它是不透明的，只做“是否有交集”的判断。
type Attr uint32

const (
	AttrReadOnly          Attr = 0x1
	AttrHidden            Attr = 0x2
	AttrSystem            Attr = 0x4
	AttrDirectory         Attr = 0x10
	AttrArchive           Attr = 0x20
	AttrDevice            Attr = 0x40
	AttrNormal            Attr = 0x80
	AttrTemporary         Attr = 0x100
	AttrSparseFile        Attr = 0x200
	AttrReparsePoint      Attr = 0x400
	AttrCompressed        Attr = 0x800
	AttrOffline           Attr = 0x1000
	AttrNotContentIndexed Attr = 0x2000
	AttrEncrypted         Attr = 0x4000
)

// 按位值升序排列，String() 依赖这个顺序
var attrNames = []struct {
	name string
	attr Attr
}{
	{"readonly", AttrReadOnly},
	{"hidden", AttrHidden},
	{"system", AttrSystem},
	{"directory", AttrDirectory},
	{"archive", AttrArchive},
	{"device", AttrDevice},
	{"normal", AttrNormal},
	{"temporary", AttrTemporary},
	{"sparse", AttrSparseFile},
	{"reparsepoint", AttrReparsePoint},
	{"compressed", AttrCompressed},
	{"offline", AttrOffline},
	{"notcontentindexed", AttrNotContentIndexed},
	{"encrypted", AttrEncrypted},
}

// AttrFunc 由宿主提供，返回 path 对应实体的属性。info 来自 Lstat。
type AttrFunc func(path string, info os.FileInfo) Attr

// AnyFlagSet 当 value 与 mask 有交集时返回 true；空 mask 永远返回 false
func AnyFlagSet(value, mask Attr) bool {
	if mask == 0 {
		return false
	}
	return value&mask != 0
}

// Has 判断是否设置了 flag 中的全部位
func (a Attr) Has(flag Attr) bool {
	return flag != 0 && a&flag == flag
}

func (a Attr) String() string {
	if a == 0 {
		return "none"
	}
	var parts []string
	rest := a
	for _, n := range attrNames {
		if a&n.attr != 0 {
			parts = append(parts, n.name)
			rest &^= n.attr
		}
	}
	if rest != 0 {
		parts = append(parts, fmt.Sprintf("0x%x", uint32(rest)))
	}
	return strings.Join(parts, "|")
}

// ParseAttr 解析逗号或竖线分隔的属性名（大小写不敏感），如 "hidden,system"。
// 空字符串和 "none" 解析为 0。
func ParseAttr(s string) (Attr, error) {
	var out Attr
	for _, field := range strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == '|' }) {
		name := strings.ToLower(strings.TrimSpace(field))
		if name == "" || name == "none" {
			continue
		}
		found := false
		for _, n := range attrNames {
			if n.name == name {
				out |= n.attr
				found = true
				break
			}
		}
		if !found {
			return 0, fmt.Errorf("unknown attribute %q", field)
		}
	}
	return out, nil
}

// modeAttributes 从 Go 的 FileMode 推导属性，用于没有原生属性位的平台
func modeAttributes(info os.FileInfo) Attr {
	var a Attr
	mode := info.Mode()

	if mode.IsDir() {
		a |= AttrDirectory
	}
	if mode&os.ModeSymlink != 0 {
		a |= AttrReparsePoint
	}
	if mode&(os.ModeDevice|os.ModeCharDevice) != 0 {
		a |= AttrDevice
	}
	if mode&os.ModeTemporary != 0 {
		a |= AttrTemporary
	}
	if mode.Perm()&0o222 == 0 {
		a |= AttrReadOnly
	}
	if name := info.Name(); len(name) > 1 && name[0] == '.' && name != ".." {
		a |= AttrHidden
	}

	if a == 0 {
		a = AttrNormal
	}
	return a
}
