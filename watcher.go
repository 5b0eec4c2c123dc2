package backupwatch

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shuakami/backupwatch/fingerprint"
	"github.com/shuakami/backupwatch/fserr"
	"github.com/shuakami/backupwatch/internal/logging"
	"github.com/shuakami/backupwatch/internal/metrics"
	"github.com/shuakami/backupwatch/walker"
)

// ConfigWatcher 用于配置 Watcher
//
// Filter、TopLevelOnly、DirMask、FileMask 与 walker.Options 含义相同，
// 同时用于初始扫描和后续事件的过滤。
// Logger、Fingerprinter、Walker 为空时使用默认值。
type ConfigWatcher struct {
	WatchPaths   []string      // 要监控的路径
	Filter       string        // 过滤表达式，如 "*.txt,!~*"
	TopLevelOnly bool          // 只监控根目录本身，不进入子目录
	DirMask      walker.Attr   // 命中任一属性的目录不监控
	FileMask     walker.Attr   // 命中任一属性的文件忽略
	Debounce     time.Duration // 事件合并的时间间隔, 默认 10ms
	WorkerCount  int           // 并发处理 Worker 数, 默认 32

	Logger        *logging.Logger
	Fingerprinter *fingerprint.Fingerprinter
	Walker        *walker.Walker
}

// Watcher 负责监控文件系统变化 + 快照管理
//
// mu：对snapshots与current字段的读写上锁
// aggChan, aggMap, aggMu, aggTicker：用于事件合并（Debounce）
// workerPool：并发处理文件变更的令牌池，workers 等待在途任务
type Watcher struct {
	mu        sync.RWMutex
	cfg       ConfigWatcher
	walkOpts  walker.Options
	filter    *walker.Filter
	walker    *walker.Walker
	fp        *fingerprint.Fingerprinter
	logger    *logging.Logger
	fsWatcher *fsnotify.Watcher

	stopChan chan struct{}
	stopOnce sync.Once
	loops    sync.WaitGroup

	snapshots map[string]*SnapshotNode
	current   *SnapshotNode
	seq       uint64

	// 事件合并(防抖)
	aggChan   chan fsnotify.Event
	aggMap    map[string]fsnotify.Op
	aggMu     sync.Mutex
	aggTicker *time.Ticker

	// 事件处理并发控制
	workerPool chan struct{}
	workers    sync.WaitGroup

	// 向外部暴露的事件通道，Stop 后关闭
	EventChan chan FileEvent
}

// FileEvent 表示可供外部使用的"文件变更事件"结构
//
// Op：合并后的操作类型（可能是多个 fsnotify.Op 的组合）
// NewSnap：此变更产生的新快照
// Changed：指纹或大小是否与父快照不同（新增、删除总是 true）
type FileEvent struct {
	FilePath string
	Op       fsnotify.Op
	NewSnap  *SnapshotNode
	Changed  bool
}

// NewWatcher 根据给定配置创建一个新的 Watcher
//
// 若 cfg.Debounce <= 0，则默认使用 10ms
// 若 cfg.WorkerCount <= 0，则默认使用 32
func NewWatcher(cfg ConfigWatcher) (*Watcher, error) {
	if cfg.Debounce <= 0 {
		cfg.Debounce = 10 * time.Millisecond
	}
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 32
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NewNop()
	}
	if cfg.Walker == nil {
		cfg.Walker = walker.New(walker.WithLogger(cfg.Logger))
	}
	if cfg.Fingerprinter == nil {
		fp, err := fingerprint.New(fingerprint.WithLogger(cfg.Logger))
		if err != nil {
			return nil, err
		}
		cfg.Fingerprinter = fp
	}

	filter, err := walker.ParseFilter(cfg.Filter)
	if err != nil {
		return nil, fmt.Errorf("invalid filter: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	w := &Watcher{
		cfg: cfg,
		walkOpts: walker.Options{
			Filter:    cfg.Filter,
			Recursive: !cfg.TopLevelOnly,
			DirMask:   cfg.DirMask,
			FileMask:  cfg.FileMask,
		},
		filter:    filter,
		walker:    cfg.Walker,
		fp:        cfg.Fingerprinter,
		logger:    cfg.Logger.Named("watcher"),
		fsWatcher: fsw,
		stopChan:  make(chan struct{}),

		snapshots: make(map[string]*SnapshotNode),

		aggChan:   make(chan fsnotify.Event, 100000),
		aggMap:    make(map[string]fsnotify.Op),
		aggTicker: time.NewTicker(cfg.Debounce),

		workerPool: make(chan struct{}, cfg.WorkerCount),
		EventChan:  make(chan FileEvent, 20000),
	}

	// 创建初始快照(空)，Start 时填充
	initial := w.newSnapshot(nil, "Initial snapshot", make(map[string]*FileMetadata))
	w.snapshots[initial.ID] = initial
	w.current = initial
	metrics.Snapshots.Set(1)

	return w, nil
}

// Start 启动文件监控
//
// 用 walker 遍历 cfg.WatchPaths，为每个访问到的目录添加监控，
// 并把选中的文件指纹写入初始快照。然后启动2个后台goroutine：
//  1. runAggregator()：负责事件合并
//  2. runFsNotify()：读取 fsnotify 事件并投递到合并队列
func (w *Watcher) Start() error {
	files := make(map[string]*FileMetadata)
	for _, root := range w.cfg.WatchPaths {
		if err := w.scan(root, files); err != nil {
			return fmt.Errorf("failed to walk watch path %s: %w", root, err)
		}
	}

	w.mu.Lock()
	w.current.Files = files
	w.mu.Unlock()

	w.logger.Info("watcher started",
		zap.Strings("paths", w.cfg.WatchPaths), zap.Int("files", len(files)))

	w.loops.Add(2)
	go w.runAggregator()
	go w.runFsNotify()

	return nil
}

// Stop 停止监控
//
// 停止后台goroutine，关闭底层 fsnotify.Watcher 和 ticker，
// flush 一次合并队列并等待所有worker完成，最后关闭 EventChan。
// 可以重复调用。
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopChan)
		w.loops.Wait()

		_ = w.fsWatcher.Close()
		w.aggTicker.Stop()

		w.drainAgg()
		w.flushAgg()
		w.workers.Wait()

		close(w.EventChan)
		w.logger.Info("watcher stopped")
	})
}

// GetCurrentSnapshot 返回当前(最新)快照
//
// 并发安全
func (w *Watcher) GetCurrentSnapshot() *SnapshotNode {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// GetSnapshotByID 根据快照ID获取快照
//
// 若找不到则返回nil
// 并发安全
func (w *Watcher) GetSnapshotByID(id string) *SnapshotNode {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.snapshots[id]
}

// ListAllSnapshots 按创建顺序列出所有已知快照
//
// 并发安全
func (w *Watcher) ListAllSnapshots() []*SnapshotNode {
	w.mu.RLock()
	out := make([]*SnapshotNode, 0, len(w.snapshots))
	for _, sn := range w.snapshots {
		out = append(out, sn)
	}
	w.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].seq < out[j].seq
	})
	return out
}

// scan 遍历 root，添加目录监控并把选中文件的元信息写入 files
func (w *Watcher) scan(root string, files map[string]*FileMetadata) error {
	return w.walker.Walk(root, w.walkOpts, func(dir string, found []string) error {
		if err := w.fsWatcher.Add(dir); err != nil {
			w.logger.Warn("cannot watch dir", zap.String("dir", dir), zap.Error(err))
		}
		for _, p := range found {
			if meta := w.describe(p); meta != nil {
				files[p] = meta
			}
		}
		return nil
	})
}

// runFsNotify 不断读取 fsnotify 的事件并投递到合并队列
func (w *Watcher) runFsNotify() {
	defer w.loops.Done()
	for {
		select {
		case ev, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			w.queueAgg(ev)

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("fsnotify error", zap.Error(err))

		case <-w.stopChan:
			return
		}
	}
}

// runAggregator 负责对短时间内的事件进行合并
func (w *Watcher) runAggregator() {
	defer w.loops.Done()
	for {
		select {
		case ev := <-w.aggChan:
			w.merge(ev)

		case <-w.aggTicker.C:
			w.flushAgg()

		case <-w.stopChan:
			return
		}
	}
}

func (w *Watcher) merge(ev fsnotify.Event) {
	w.aggMu.Lock()
	w.aggMap[ev.Name] |= ev.Op
	w.aggMu.Unlock()
}

// drainAgg 把合并通道里剩余的事件并入 aggMap
func (w *Watcher) drainAgg() {
	for {
		select {
		case ev := <-w.aggChan:
			w.merge(ev)
		default:
			return
		}
	}
}

// flushAgg 将合并map(aggMap)中的事件批量提交给workerPool处理，池满时阻塞
func (w *Watcher) flushAgg() {
	w.aggMu.Lock()
	tmp := w.aggMap
	w.aggMap = make(map[string]fsnotify.Op)
	w.aggMu.Unlock()

	for p, op := range tmp {
		w.workerPool <- struct{}{}
		w.workers.Add(1)
		go func(fp string, fop fsnotify.Op) {
			defer func() {
				<-w.workerPool
				w.workers.Done()
			}()
			w.handleFileChange(fp, fop)
		}(p, op)
	}
}

// queueAgg 将事件放入合并通道，若满则阻塞
func (w *Watcher) queueAgg(ev fsnotify.Event) {
	select {
	case w.aggChan <- ev:
	case <-w.stopChan:
	}
}

// handleFileChange 处理一个合并后的路径变更
//
// 路径已不存在：从新快照中移除它（以及它下面的文件）
// 新建目录：遍历并监控，收录其中的文件
// 文件：重新计算指纹
func (w *Watcher) handleFileChange(path string, op fsnotify.Op) {
	metrics.WatchEvents.WithLabelValues(op.String()).Inc()

	md, err := w.fp.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		w.handleRemoval(path, op)
	case err != nil && !errors.Is(err, fserr.ErrMetadataUnreadable):
		w.logger.Warn("cannot stat changed path", zap.String("path", path), zap.Error(err))
	case md.IsDir:
		if op.Has(fsnotify.Create) || op.Has(fsnotify.Rename) {
			w.handleNewDir(path, op)
		}
	default:
		w.handleFile(path, op)
	}
}

func (w *Watcher) handleRemoval(path string, op fsnotify.Op) {
	prefix := path + string(filepath.Separator)
	var removed bool
	snap := w.commit(fmt.Sprintf("Snapshot after %s on %s", op, path), func(files map[string]*FileMetadata) bool {
		for p := range files {
			if p == path || strings.HasPrefix(p, prefix) {
				delete(files, p)
				removed = true
			}
		}
		return removed
	})
	if snap != nil {
		w.emitFileEvent(path, op, snap, true)
	}
}

func (w *Watcher) handleNewDir(path string, op fsnotify.Op) {
	if w.cfg.TopLevelOnly {
		return
	}

	found := make(map[string]*FileMetadata)
	visited := false
	err := w.walker.Walk(path, w.walkOpts, func(dir string, files []string) error {
		visited = true
		if err := w.fsWatcher.Add(dir); err != nil {
			w.logger.Warn("cannot watch dir", zap.String("dir", dir), zap.Error(err))
		}
		for _, p := range files {
			if meta := w.describe(p); meta != nil {
				found[p] = meta
			}
		}
		return nil
	})
	if err != nil {
		w.logger.Warn("cannot walk new dir", zap.String("dir", path), zap.Error(err))
	}
	if !visited {
		// 被目录掩码剪掉
		return
	}

	snap := w.commit(fmt.Sprintf("Snapshot after %s on %s", op, path), func(files map[string]*FileMetadata) bool {
		for p, meta := range found {
			files[p] = meta
		}
		return true
	})
	w.emitFileEvent(path, op, snap, len(found) > 0)
}

func (w *Watcher) handleFile(path string, op fsnotify.Op) {
	if !w.accepts(path) {
		return
	}
	meta := w.describe(path)
	if meta == nil {
		return
	}

	var changed bool
	snap := w.commit(fmt.Sprintf("Snapshot after %s on %s", op, path), func(files map[string]*FileMetadata) bool {
		old, ok := files[path]
		changed = !ok || differs(old, meta)
		files[path] = meta
		return true
	})
	w.emitFileEvent(path, op, snap, changed)
}

// accepts 判断文件是否通过过滤表达式和文件属性掩码。
// 事件进入合并队列前不做过滤：目录不受过滤表达式约束，要等 stat 之后才知道类型。
func (w *Watcher) accepts(path string) bool {
	if !w.filter.Match(filepath.Base(path)) {
		return false
	}
	if w.cfg.FileMask == 0 {
		return true
	}
	attrs, err := w.walker.Attributes(path)
	if err != nil {
		w.logger.Warn("cannot read attributes", zap.String("path", path), zap.Error(err))
		return false
	}
	return !walker.AnyFlagSet(attrs, w.cfg.FileMask)
}

// describe 读取元信息并计算指纹。元信息不可读时返回 nil；
// 修改时间无效或指纹失败只记录警告。
func (w *Watcher) describe(path string) *FileMetadata {
	md, err := w.fp.Stat(path)
	if err != nil {
		if !errors.Is(err, fserr.ErrMetadataUnreadable) {
			w.logger.Warn("cannot stat file", zap.String("path", path), zap.Error(err))
			return nil
		}
		w.logger.Warn("invalid modification time", zap.String("path", path), zap.Error(err))
		md.ModTime = time.Time{}
	}

	fp, err := w.fp.Path(path)
	if err != nil {
		// 可能只是临时问题，仍然收录
		w.logger.Warn("cannot fingerprint file", zap.String("path", path), zap.Error(err))
	}

	return &FileMetadata{
		Path:        path,
		Size:        md.Size,
		ModTime:     md.ModTime,
		Fingerprint: fp,
		IsDirectory: md.IsDir,
		CreatedAt:   time.Now(),
	}
}

// commit 复制当前快照，用 mutate 修改后设为新的 current。
// mutate 返回 false 时丢弃新快照并返回 nil。
func (w *Watcher) commit(desc string, mutate func(files map[string]*FileMetadata) bool) *SnapshotNode {
	w.mu.Lock()
	defer w.mu.Unlock()

	parent := w.current
	files := parent.cloneFiles()
	if !mutate(files) {
		return nil
	}

	snap := w.newSnapshot([]string{parent.ID}, desc, files)
	w.snapshots[snap.ID] = snap
	w.current = snap
	metrics.Snapshots.Set(float64(len(w.snapshots)))
	return snap
}

// emitFileEvent 向外部发送事件，通道满时丢弃并记录警告
func (w *Watcher) emitFileEvent(path string, op fsnotify.Op, snap *SnapshotNode, changed bool) {
	select {
	case w.EventChan <- FileEvent{FilePath: path, Op: op, NewSnap: snap, Changed: changed}:
	default:
		w.logger.Warn("event channel full, dropping event",
			zap.String("path", path), zap.Stringer("op", op))
	}
}

// newSnapshot 需在持有 mu 或构造期间调用
func (w *Watcher) newSnapshot(parents []string, desc string, files map[string]*FileMetadata) *SnapshotNode {
	w.seq++
	return &SnapshotNode{
		ID:          newSnapID(),
		ParentIDs:   parents,
		CreatedAt:   time.Now(),
		Description: desc,
		Files:       files,
		seq:         w.seq,
	}
}

// newSnapID 生成新快照ID
func newSnapID() string {
	return "snap-" + uuid.NewString()
}
