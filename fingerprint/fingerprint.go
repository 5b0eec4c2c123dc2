// Package fingerprint 通过采样文件首、中、尾三个固定大小的块计算内容指纹。
//
// 指纹用于备份/同步的变更检测：它只读取很少的数据，因此对大文件也很快，
// 但并不覆盖全部内容。阈值（三块大小之和，默认 48KiB）以上的文件，
// 未被采样区域内的修改不会改变指纹，这是有意的取舍。
//
// 所有读取都经过 ReadExact 的读循环，它会重试短读，因此同样适用于网络存储上的可寻址流。
// 每次计算都使用独立的哈希器和独立的文件句柄，可以并发调用。
package fingerprint

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/spf13/afero"
	"github.com/zeebo/blake3"
	"go.uber.org/zap"

	"github.com/shuakami/backupwatch/fserr"
	"github.com/shuakami/backupwatch/internal/logging"
	"github.com/shuakami/backupwatch/internal/metrics"
)

// 默认块大小
const (
	DefaultStartBlockSize  = 16 * 1024
	DefaultMiddleBlockSize = 16 * 1024
	DefaultEndBlockSize    = 16 * 1024
)

// ZeroByteHash 是 48KiB 全零内容在默认配置（MD5，16KiB×3）下的指纹。
// 调用方可以用它识别空洞文件或全零文件。
const ZeroByteHash = "f4f35d60b3cc18aaa6d8d92f0cd3708a"

// ErrNoSource 表示没有可计算的来源（空路径或 nil 流），与空文件的 "" 结果区分开
var ErrNoSource = errors.New("no source to fingerprint")

// Algorithm 是指纹使用的摘要算法
type Algorithm string

const (
	MD5    Algorithm = "md5"    // 128 位，32 个十六进制字符
	BLAKE3 Algorithm = "blake3" // 256 位，64 个十六进制字符
)

// ParseAlgorithm 解析算法名（大小写不敏感）
func ParseAlgorithm(s string) (Algorithm, error) {
	switch a := Algorithm(strings.ToLower(strings.TrimSpace(s))); a {
	case MD5, BLAKE3:
		return a, nil
	case "":
		return MD5, nil
	default:
		return "", fmt.Errorf("unknown fingerprint algorithm %q", s)
	}
}

// Fingerprinter 计算采样指纹
type Fingerprinter struct {
	fs         afero.Fs
	startSize  int
	middleSize int
	endSize    int
	algorithm  Algorithm
	logger     *logging.Logger

	zeroOnce sync.Once
	zeroHash string
}

// Option 配置 Fingerprinter
type Option func(*Fingerprinter)

// WithFs 指定按路径打开文件时使用的文件系统
func WithFs(fsys afero.Fs) Option {
	return func(f *Fingerprinter) { f.fs = fsys }
}

// WithBlockSizes 分别设置首、中、尾块大小
func WithBlockSizes(start, middle, end int) Option {
	return func(f *Fingerprinter) {
		f.startSize = start
		f.middleSize = middle
		f.endSize = end
	}
}

// WithAlgorithm 设置摘要算法，默认 MD5
func WithAlgorithm(a Algorithm) Option {
	return func(f *Fingerprinter) { f.algorithm = a }
}

// WithLogger 指定日志器
func WithLogger(l *logging.Logger) Option {
	return func(f *Fingerprinter) { f.logger = l }
}

func newDefault() *Fingerprinter {
	return &Fingerprinter{
		fs:         afero.NewOsFs(),
		startSize:  DefaultStartBlockSize,
		middleSize: DefaultMiddleBlockSize,
		endSize:    DefaultEndBlockSize,
		algorithm:  MD5,
		logger:     logging.NewNop(),
	}
}

// New 创建 Fingerprinter。块大小必须为正，算法必须是 MD5 或 BLAKE3。
func New(opts ...Option) (*Fingerprinter, error) {
	f := newDefault()
	for _, opt := range opts {
		opt(f)
	}

	if f.startSize <= 0 || f.middleSize <= 0 || f.endSize <= 0 {
		return nil, fserr.InvalidArgument("new", "", "block sizes must be positive, got %d/%d/%d",
			f.startSize, f.middleSize, f.endSize)
	}
	if f.algorithm != MD5 && f.algorithm != BLAKE3 {
		return nil, fserr.InvalidArgument("new", "", "unknown algorithm %q", f.algorithm)
	}
	if f.fs == nil {
		f.fs = afero.NewOsFs()
	}
	if f.logger == nil {
		f.logger = logging.NewNop()
	}
	f.logger = f.logger.Named("fingerprint")

	return f, nil
}

var defaultFingerprinter = newDefault()

// Path 用默认配置（MD5，16KiB×3，操作系统文件系统）计算文件指纹
func Path(path string) (string, error) {
	return defaultFingerprinter.Path(path)
}

// Stream 用默认配置计算已打开流的指纹
func Stream(rs io.ReadSeeker, size int64) (string, error) {
	return defaultFingerprinter.Stream(rs, size)
}

// Algorithm 返回使用的摘要算法
func (f *Fingerprinter) Algorithm() Algorithm {
	return f.algorithm
}

// Threshold 返回启用三块采样的最小文件大小
func (f *Fingerprinter) Threshold() int64 {
	return int64(f.startSize) + int64(f.middleSize) + int64(f.endSize)
}

// Path 打开 path 并计算其指纹。
// 空路径返回 ErrNoSource；空文件返回 ""。
// 文件句柄在任何返回路径上都会关闭。
func (f *Fingerprinter) Path(path string) (string, error) {
	if path == "" {
		return "", ErrNoSource
	}

	file, err := f.fs.Open(path)
	if err != nil {
		return "", fserr.IO(fserr.OpOpen, path, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return "", fserr.IO(fserr.OpStat, path, err)
	}
	if info.IsDir() {
		return "", fserr.InvalidArgument(fserr.OpOpen, path, "is a directory")
	}

	return f.sum(file, info.Size(), path)
}

// Stream 计算已打开的可寻址流的指纹，size 为流的总长度。
// rs 为 nil 返回 ErrNoSource；size <= 0 返回 ""。
// 调用期间 rs 不得被其他 goroutine 使用。
func (f *Fingerprinter) Stream(rs io.ReadSeeker, size int64) (string, error) {
	if rs == nil {
		return "", ErrNoSource
	}
	return f.sum(rs, size, "")
}

// ReadBlock 打开 path，读取 [offset, offset+length) 后关闭
func (f *Fingerprinter) ReadBlock(path string, offset int64, length int) ([]byte, error) {
	file, err := f.fs.Open(path)
	if err != nil {
		return nil, fserr.IO(fserr.OpOpen, path, err)
	}
	defer file.Close()

	block, err := ReadExact(file, offset, length)
	if err != nil {
		return nil, withPath(err, path)
	}
	return block, nil
}

// ZeroHash 返回当前配置下全零内容（阈值及以上大小）的指纹
func (f *Fingerprinter) ZeroHash() string {
	f.zeroOnce.Do(func() {
		h := f.newHash()
		h.Write(make([]byte, f.Threshold()))
		f.zeroHash = hex.EncodeToString(h.Sum(nil))
	})
	return f.zeroHash
}

// IsZero 判断指纹是否等于全零内容的指纹
func (f *Fingerprinter) IsZero(fp string) bool {
	return fp != "" && fp == f.ZeroHash()
}

type block struct {
	offset int64
	length int
}

func (f *Fingerprinter) sum(src io.ReadSeeker, size int64, path string) (string, error) {
	if size <= 0 {
		metrics.FingerprintsComputed.WithLabelValues(metrics.ModeEmpty).Inc()
		return "", nil
	}

	started := time.Now()
	mode := metrics.ModeSingle
	blocks := []block{{offset: 0, length: int(size)}}
	if size >= f.Threshold() {
		mode = metrics.ModeSampled
		// 文件略大于阈值时块之间会重叠
		blocks = []block{
			{offset: 0, length: f.startSize},
			{offset: size / 2, length: f.middleSize},
			{offset: size - int64(f.endSize), length: f.endSize},
		}
	}

	h := f.newHash()
	var read int
	for _, b := range blocks {
		data, err := readAt(src, b.offset, b.length, size)
		if err != nil {
			return "", withPath(err, path)
		}
		f.logger.Trace("block read",
			zap.String("path", path), zap.Int64("offset", b.offset),
			zap.Int("want", b.length), zap.Int("got", len(data)))
		h.Write(data)
		read += len(data)
	}

	fp := hex.EncodeToString(h.Sum(nil))

	metrics.FingerprintsComputed.WithLabelValues(mode).Inc()
	metrics.BytesRead.Add(float64(read))
	metrics.FingerprintDuration.Observe(time.Since(started).Seconds())
	f.logger.Debug("fingerprint computed",
		zap.String("path", path), zap.Int64("size", size),
		zap.String("mode", mode), zap.String("fingerprint", fp))

	return fp, nil
}

func (f *Fingerprinter) newHash() hash.Hash {
	if f.algorithm == BLAKE3 {
		return blake3.New()
	}
	return md5.New()
}

// withPath 给读取错误补上路径
func withPath(err error, path string) error {
	var fe *fserr.Error
	if path != "" && errors.As(err, &fe) && fe.Path == "" {
		fe.Path = path
	}
	return err
}
