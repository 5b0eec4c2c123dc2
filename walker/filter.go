package walker

import (
	"regexp"
	"strings"

	"github.com/shuakami/backupwatch/fserr"
)

// Filter 是解析后的过滤表达式
//
// 表达式是逗号分隔的通配符列表，以 "!" 开头的是排除模式，其余为包含模式。
// 没有包含模式时默认为 "*"。所有匹配都针对文件名（不含目录），大小写不敏感。
type Filter struct {
	includes  []string
	excludes  []string
	includeRE []*regexp.Regexp
	excludeRE *regexp.Regexp // 没有排除模式时为 nil
}

// ParseFilter 解析过滤表达式
func ParseFilter(expr string) (*Filter, error) {
	f := &Filter{}

	for _, raw := range strings.Split(expr, ",") {
		pattern := strings.TrimSpace(raw)
		if pattern == "" {
			continue
		}
		if strings.HasPrefix(pattern, "!") {
			// 单独的 "!" 不产生任何排除项
			if p := strings.TrimSpace(strings.TrimLeft(pattern, "!")); p != "" {
				f.excludes = append(f.excludes, p)
			}
			continue
		}
		f.includes = append(f.includes, pattern)
	}

	if len(f.includes) == 0 {
		f.includes = []string{"*"}
	}

	for _, p := range f.includes {
		re, err := regexp.Compile("(?i)^" + globToRegex(p) + "$")
		if err != nil {
			return nil, &fserr.Error{Op: fserr.OpParse, Path: expr, Kind: fserr.ErrInvalidArgument, Err: err}
		}
		f.includeRE = append(f.includeRE, re)
	}

	if len(f.excludes) > 0 {
		alts := make([]string, len(f.excludes))
		for i, p := range f.excludes {
			alts[i] = "^" + globToRegex(p) + "$"
		}
		re, err := regexp.Compile("(?i)" + strings.Join(alts, "|"))
		if err != nil {
			return nil, &fserr.Error{Op: fserr.OpParse, Path: expr, Kind: fserr.ErrInvalidArgument, Err: err}
		}
		f.excludeRE = re
	}

	return f, nil
}

// Includes 返回包含模式（按表达式中的顺序）
func (f *Filter) Includes() []string {
	return append([]string(nil), f.includes...)
}

// Excludes 返回排除模式（已去掉 "!" 前缀）
func (f *Filter) Excludes() []string {
	return append([]string(nil), f.excludes...)
}

// Excluded 判断文件名是否命中任一排除模式
func (f *Filter) Excluded(name string) bool {
	return f.excludeRE != nil && f.excludeRE.MatchString(name)
}

// Match 判断文件名是否被某个包含模式选中且未被排除
func (f *Filter) Match(name string) bool {
	if f.Excluded(name) {
		return false
	}
	for _, re := range f.includeRE {
		if re.MatchString(name) {
			return true
		}
	}
	return false
}

// String 返回规范化后的表达式
func (f *Filter) String() string {
	parts := append([]string(nil), f.includes...)
	for _, p := range f.excludes {
		parts = append(parts, "!"+p)
	}
	return strings.Join(parts, ",")
}

// globToRegex 把通配符转成正则：* -> .*，? -> .，其余字符按字面转义
func globToRegex(pattern string) string {
	var b strings.Builder
	for _, r := range pattern {
		switch r {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteByte('.')
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	return b.String()
}
