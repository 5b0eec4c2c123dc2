package walker

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shuakami/backupwatch/fserr"
)

// nameAttrs 用文件名前缀模拟宿主属性：hidden* -> Hidden，sys* -> System
func nameAttrs(_ string, info os.FileInfo) Attr {
	var a Attr
	name := info.Name()
	if strings.HasPrefix(name, "hidden") {
		a |= AttrHidden
	}
	if strings.HasPrefix(name, "sys") {
		a |= AttrSystem
	}
	if info.IsDir() {
		a |= AttrDirectory
	}
	return a
}

func newMemTree(t *testing.T, files ...string) afero.Fs {
	t.Helper()
	fsys := afero.NewMemMapFs()
	for _, f := range files {
		require.NoError(t, fsys.MkdirAll(filepath.Dir(f), 0o755))
		require.NoError(t, afero.WriteFile(fsys, f, []byte("content of "+f), 0o644))
	}
	return fsys
}

func newTestWalker(fsys afero.Fs) *Walker {
	return New(WithFs(fsys), WithAttrFunc(nameAttrs))
}

var root = filepath.FromSlash("/data")

func p(rel string) string {
	return filepath.Join(root, filepath.FromSlash(rel))
}

func TestEnumerate_MissingRoot(t *testing.T) {
	w := newTestWalker(afero.NewMemMapFs())

	files, err := w.Enumerate(p("nope"), Options{Recursive: true})
	require.NoError(t, err)
	assert.NotNil(t, files)
	assert.Empty(t, files)
}

func TestEnumerate_RootIsFile(t *testing.T) {
	fsys := newMemTree(t, p("a.txt"))
	w := newTestWalker(fsys)

	files, err := w.Enumerate(p("a.txt"), Options{Recursive: true})
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestEnumerate_AllFilesRecursive(t *testing.T) {
	fsys := newMemTree(t,
		p("a.txt"), p("b.log"),
		p("sub/c.txt"), p("sub/deep/d.bin"),
		p("other/e.TXT"),
	)
	w := newTestWalker(fsys)

	files, err := w.Enumerate(root, Options{Recursive: true})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		p("a.txt"), p("b.log"), p("sub/c.txt"), p("sub/deep/d.bin"), p("other/e.TXT"),
	}, files)
}

func TestEnumerate_TopLevelOnly(t *testing.T) {
	fsys := newMemTree(t, p("a.txt"), p("sub/c.txt"))
	w := newTestWalker(fsys)

	files, err := w.Enumerate(root, Options{Recursive: false})
	require.NoError(t, err)
	assert.Equal(t, []string{p("a.txt")}, files)
}

func TestEnumerate_ExcludeWinsOverInclude(t *testing.T) {
	fsys := newMemTree(t, p("a.txt"), p("secret.txt"))
	w := newTestWalker(fsys)

	files, err := w.Enumerate(root, Options{Filter: "*.txt,!secret.txt", Recursive: true})
	require.NoError(t, err)
	assert.Equal(t, []string{p("a.txt")}, files)

	// 排除匹配大小写不敏感
	files, err = w.Enumerate(root, Options{Filter: "*.txt, !SECRET.TXT", Recursive: true})
	require.NoError(t, err)
	assert.Equal(t, []string{p("a.txt")}, files)
}

func TestEnumerate_OnlyExcludesMeansEverythingElse(t *testing.T) {
	fsys := newMemTree(t, p("a.txt"), p("b.tmp"), p("sub/c.tmp"), p("sub/d.doc"))
	w := newTestWalker(fsys)

	files, err := w.Enumerate(root, Options{Filter: "!*.tmp", Recursive: true})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{p("a.txt"), p("sub/d.doc")}, files)
}

func TestEnumerate_OverlappingIncludesAreDeduplicated(t *testing.T) {
	fsys := newMemTree(t, p("a.txt"), p("abc.log"), p("z.txt"))
	w := newTestWalker(fsys)

	files, err := w.Enumerate(root, Options{Filter: "a*,*.txt", Recursive: true})
	require.NoError(t, err)
	assert.Equal(t, []string{p("a.txt"), p("abc.log"), p("z.txt")}, files)
}

func TestEnumerate_OrderFollowsQueueThenPatterns(t *testing.T) {
	fsys := newMemTree(t,
		p("a.txt"), p("b.log"),
		p("s1/c.txt"), p("s1/deeper/f.log"),
		p("s2/d.log"),
	)
	w := newTestWalker(fsys)

	want := []string{
		p("b.log"), p("a.txt"), // 根目录：先 *.log 后 *.txt
		p("s1/c.txt"),
		p("s2/d.log"),
		p("s1/deeper/f.log"), // 广度优先：第三层最后
	}

	for i := 0; i < 3; i++ {
		files, err := w.Enumerate(root, Options{Filter: "*.log,*.txt", Recursive: true})
		require.NoError(t, err)
		assert.Equal(t, want, files)
	}
}

func TestEnumerate_DirectoryMask(t *testing.T) {
	fsys := newMemTree(t, p("a.txt"), p("hiddendir/b.txt"), p("sysdir/deep/c.txt"), p("plain/d.txt"))
	w := newTestWalker(fsys)

	files, err := w.Enumerate(root, Options{Recursive: true, DirMask: AttrHidden | AttrSystem})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{p("a.txt"), p("plain/d.txt")}, files)

	files, err = w.Enumerate(root, Options{Recursive: true})
	require.NoError(t, err)
	assert.Len(t, files, 4)
}

func TestEnumerate_FileMask(t *testing.T) {
	fsys := newMemTree(t, p("a.txt"), p("hidden.txt"), p("sys.txt"), p("sub/hidden2.txt"))
	w := newTestWalker(fsys)

	files, err := w.Enumerate(root, Options{Recursive: true, FileMask: AttrHidden})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{p("a.txt"), p("sys.txt")}, files)
}

func TestEnumerate_PrunedRootYieldsNothing(t *testing.T) {
	hiddenRoot := p("hiddenroot")
	fsys := newMemTree(t, filepath.Join(hiddenRoot, "a.txt"))
	w := newTestWalker(fsys)

	files, err := w.Enumerate(hiddenRoot, Options{Recursive: true, DirMask: AttrHidden})
	require.NoError(t, err)
	assert.Empty(t, files)

	files, err = w.Enumerate(hiddenRoot, Options{Recursive: true})
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(hiddenRoot, "a.txt")}, files)
}

func TestWalk_VisitsEveryDirectory(t *testing.T) {
	fsys := newMemTree(t, p("a.txt"), p("empty/.keep"), p("sub/b.txt"))
	w := newTestWalker(fsys)

	var dirs []string
	err := w.Walk(root, Options{Filter: "*.txt", Recursive: true}, func(dir string, files []string) error {
		dirs = append(dirs, dir)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{root, p("empty"), p("sub")}, dirs)
}

func TestWalk_VisitErrorStops(t *testing.T) {
	fsys := newMemTree(t, p("a.txt"), p("sub/b.txt"))
	w := newTestWalker(fsys)
	stop := errors.New("stop")

	calls := 0
	err := w.Walk(root, Options{Recursive: true}, func(string, []string) error {
		calls++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)
}

// lockedFs 让某个目录无法打开
type lockedFs struct {
	afero.Fs
	locked string
}

func (l lockedFs) Open(name string) (afero.File, error) {
	if filepath.Clean(name) == l.locked {
		return nil, &os.PathError{Op: "open", Path: name, Err: os.ErrPermission}
	}
	return l.Fs.Open(name)
}

func TestEnumerate_ListingErrorPropagates(t *testing.T) {
	fsys := newMemTree(t, p("a.txt"), p("locked/b.txt"))
	w := newTestWalker(lockedFs{Fs: fsys, locked: p("locked")})

	_, err := w.Enumerate(root, Options{Recursive: true})
	require.Error(t, err)
	assert.True(t, fserr.IsIO(err))
	assert.ErrorIs(t, err, os.ErrPermission)

	var fe *fserr.Error
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, fserr.OpReadDir, fe.Op)
	assert.Equal(t, p("locked"), fe.Path)
}

func TestEnumerate_OSFilesystem(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "b.txt"), []byte("b"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "c.bin"), []byte("c"), 0o644))

	files, err := Enumerate(dir, "*.txt", true, 0, 0)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		filepath.Join(dir, "a.txt"),
		filepath.Join(dir, "sub", "b.txt"),
	}, files)

	files, err = Enumerate(filepath.Join(dir, "missing"), "", true, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{}, files)
}
