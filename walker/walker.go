// Package walker 按过滤表达式和属性掩码枚举目录树下的文件。
//
// 遍历是广度优先的：用显式队列保存待访问目录，每个目录只列一次，
// 递归模式下把未被目录掩码剪掉的子目录入队，然后按包含模式的顺序挑出文件。
// 同一文件系统快照、同一模式顺序下，输出顺序是确定的，但不是字典序。
//
// 同一个文件被多个包含模式命中时只输出一次（位于首次命中的位置）。
//
// Walker 不持有共享可变状态，可以在多个 goroutine 中并发遍历不相交的子树。
package walker

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/shuakami/backupwatch/fserr"
	"github.com/shuakami/backupwatch/internal/logging"
	"github.com/shuakami/backupwatch/internal/metrics"
)

// Options 控制一次遍历
type Options struct {
	Filter    string // 过滤表达式，如 "*.txt,*.doc,!~*"；为空等同 "*"
	Recursive bool   // false 时只看根目录本身
	DirMask   Attr   // 命中任一属性的子目录不进入
	FileMask  Attr   // 命中任一属性的文件不输出
}

// VisitFunc 对每个访问到的目录调用一次，files 是该目录下被选中的文件。
// 返回非 nil 错误会终止遍历并原样返回。
type VisitFunc func(dir string, files []string) error

// Walker 在给定文件系统上执行过滤遍历
type Walker struct {
	fs     afero.Fs
	attrs  AttrFunc
	logger *logging.Logger
}

// Option 配置 Walker
type Option func(*Walker)

// WithFs 指定文件系统，默认是操作系统文件系统
func WithFs(fsys afero.Fs) Option {
	return func(w *Walker) { w.fs = fsys }
}

// WithAttrFunc 替换宿主属性来源
func WithAttrFunc(fn AttrFunc) Option {
	return func(w *Walker) { w.attrs = fn }
}

// WithLogger 指定日志器
func WithLogger(l *logging.Logger) Option {
	return func(w *Walker) { w.logger = l }
}

// New 创建 Walker
func New(opts ...Option) *Walker {
	w := &Walker{
		fs:     afero.NewOsFs(),
		attrs:  HostAttributes,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.Named("walker")
	return w
}

// Enumerate 使用操作系统文件系统和宿主属性枚举文件
func Enumerate(root, filter string, recursive bool, dirMask, fileMask Attr) ([]string, error) {
	return New().Enumerate(root, Options{
		Filter:    filter,
		Recursive: recursive,
		DirMask:   dirMask,
		FileMask:  fileMask,
	})
}

// Enumerate 返回 root 下所有被选中的文件路径。
// root 不存在或被剪掉时返回空切片（非 nil），不是错误。
func (w *Walker) Enumerate(root string, opts Options) ([]string, error) {
	found := make([]string, 0)
	err := w.Walk(root, opts, func(_ string, files []string) error {
		found = append(found, files...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

// Attributes 返回 path 的属性（不跟随符号链接）
func (w *Walker) Attributes(path string) (Attr, error) {
	info, err := w.lstat(path)
	if err != nil {
		return 0, fserr.IO(fserr.OpStat, path, err)
	}
	return w.attrs(path, info), nil
}

// Walk 广度优先遍历 root，对每个目录调用 fn
func (w *Walker) Walk(root string, opts Options, fn VisitFunc) error {
	filter, err := ParseFilter(opts.Filter)
	if err != nil {
		return err
	}

	info, err := w.fs.Stat(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			w.logger.Debug("root does not exist", zap.String("root", root))
			return nil
		}
		return fserr.IO(fserr.OpStat, root, err)
	}
	if !info.IsDir() {
		w.logger.Debug("root is not a directory", zap.String("root", root))
		return nil
	}

	// 文件系统根（没有父目录）不参与剪枝
	if opts.DirMask != 0 && !isTopLevel(root) {
		attrs, err := w.Attributes(root)
		if err != nil {
			return err
		}
		if AnyFlagSet(attrs, opts.DirMask) {
			metrics.DirsPruned.Inc()
			w.logger.Debug("root pruned by attribute mask",
				zap.String("root", root), zap.Stringer("attrs", attrs))
			return nil
		}
	}

	visited := newVisitedDirs()
	visited.visit(info, false)

	queue := []string{root}
	for len(queue) > 0 {
		dir := queue[0]
		queue = queue[1:]

		entries, err := afero.ReadDir(w.fs, dir)
		if err != nil {
			return fserr.IO(fserr.OpReadDir, dir, err)
		}
		metrics.DirsVisited.Inc()

		var candidates []candidate
		for _, entry := range entries {
			p := filepath.Join(dir, entry.Name())

			if target, ok := w.dirTarget(p, entry); ok {
				if !opts.Recursive {
					continue
				}
				if attrs := w.attrs(p, entry); AnyFlagSet(attrs, opts.DirMask) {
					metrics.DirsPruned.Inc()
					w.logger.Debug("directory pruned by attribute mask",
						zap.String("dir", p), zap.Stringer("attrs", attrs))
					continue
				}
				if !visited.visit(target, entry.Mode()&os.ModeSymlink != 0) {
					w.logger.Debug("directory already visited", zap.String("dir", p))
					continue
				}
				queue = append(queue, p)
				continue
			}

			candidates = append(candidates, candidate{path: p, info: entry})
		}

		files := w.selectFiles(candidates, filter, opts.FileMask)
		metrics.FilesEmitted.Add(float64(len(files)))
		w.logger.Trace("directory listed",
			zap.String("dir", dir), zap.Int("entries", len(entries)), zap.Int("selected", len(files)))

		if err := fn(dir, files); err != nil {
			return err
		}
	}

	return nil
}

type candidate struct {
	path  string
	info  os.FileInfo
	attrs Attr
	ready bool
}

// selectFiles 按包含模式顺序挑选文件，再依次应用排除模式与文件掩码
func (w *Walker) selectFiles(candidates []candidate, filter *Filter, mask Attr) []string {
	if len(candidates) == 0 {
		return nil
	}

	var out []string
	seen := make(map[string]struct{}, len(candidates))

	for _, include := range filter.includeRE {
		for i := range candidates {
			c := &candidates[i]
			name := c.info.Name()

			if _, dup := seen[c.path]; dup {
				continue
			}
			if !include.MatchString(name) || filter.Excluded(name) {
				continue
			}
			if mask != 0 {
				if !c.ready {
					c.attrs = w.attrs(c.path, c.info)
					c.ready = true
				}
				if AnyFlagSet(c.attrs, mask) {
					continue
				}
			}

			seen[c.path] = struct{}{}
			out = append(out, c.path)
		}
	}

	return out
}

// dirTarget 判断目录项是否为目录，并返回用于去重的目录信息。
// 指向目录的符号链接也按目录处理，此时返回链接目标的信息。
func (w *Walker) dirTarget(path string, info os.FileInfo) (os.FileInfo, bool) {
	if info.IsDir() {
		return info, true
	}
	if info.Mode()&os.ModeSymlink == 0 {
		return nil, false
	}
	target, err := w.fs.Stat(path)
	if err != nil || !target.IsDir() {
		return nil, false
	}
	return target, true
}

func (w *Walker) lstat(path string) (os.FileInfo, error) {
	if l, ok := w.fs.(afero.Lstater); ok {
		info, _, err := l.LstatIfPossible(path)
		return info, err
	}
	return w.fs.Stat(path)
}

// isTopLevel 判断 path 是否是文件系统根（"/" 或 "C:\"）
func isTopLevel(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = filepath.Clean(path)
	}
	return filepath.Dir(abs) == abs
}
