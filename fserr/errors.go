// Package fserr 定义遍历与指纹计算共用的错误类型。
//
// 所有组件返回的错误都可以用 errors.Is 判断其类别（ErrIO / ErrInvalidArgument /
// ErrMetadataUnreadable），同时仍可匹配底层原因（如 fs.ErrNotExist）。
package fserr

import (
	"errors"
	"fmt"
)

// 错误类别
var (
	// ErrIO 表示打开、读取、定位或列目录时的 I/O 失败
	ErrIO = errors.New("i/o failure")

	// ErrInvalidArgument 表示调用方传入了非法参数（负长度、越界偏移等）
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrMetadataUnreadable 表示文件元信息（如修改时间）无法读取或无效
	ErrMetadataUnreadable = errors.New("metadata unreadable")
)

// 操作名，用于日志和错误信息
const (
	OpReadDir = "readdir"
	OpStat    = "stat"
	OpOpen    = "open"
	OpSeek    = "seek"
	OpRead    = "read"
	OpParse   = "parse"
)

// Error 携带失败的操作、路径与错误类别
type Error struct {
	Op   string // 失败的操作，如 "readdir"
	Path string // 相关路径，可为空
	Kind error  // ErrIO / ErrInvalidArgument / ErrMetadataUnreadable
	Err  error  // 底层错误
}

func (e *Error) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s %s: %v: %v", e.Op, e.Path, e.Kind, e.Err)
}

// Unwrap 返回底层错误
func (e *Error) Unwrap() error {
	return e.Err
}

// Is 让 errors.Is(err, ErrIO) 这类按类别的判断成立
func (e *Error) Is(target error) bool {
	return e.Kind != nil && target == e.Kind
}

// IO 包装一个 I/O 错误
func IO(op, path string, err error) *Error {
	return &Error{Op: op, Path: path, Kind: ErrIO, Err: err}
}

// InvalidArgument 构造一个参数错误
func InvalidArgument(op, path string, format string, args ...interface{}) *Error {
	return &Error{Op: op, Path: path, Kind: ErrInvalidArgument, Err: fmt.Errorf(format, args...)}
}

// Metadata 包装一个元信息读取错误
func Metadata(op, path string, err error) *Error {
	return &Error{Op: op, Path: path, Kind: ErrMetadataUnreadable, Err: err}
}

// IsIO 判断 err 是否属于 I/O 类错误
func IsIO(err error) bool {
	return errors.Is(err, ErrIO)
}
