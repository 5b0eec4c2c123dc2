package fingerprint

import (
	"errors"
	"io"

	"github.com/shuakami/backupwatch/fserr"
)

// ReadExact 从 offset 开始读取最多 length 个字节。
//
// r 实现了 io.Seeker 时先定位到 offset（offset 超过末尾视为参数错误）；
// 否则从当前位置读取，由调用方负责定位，见 Sequential。
// 短读会重试，直到读满 length 或某次读取返回 0 字节 / io.EOF。
// 数据提前耗尽时返回实际读到的较短结果，不填充，也不算错误。
func ReadExact(r io.Reader, offset int64, length int) ([]byte, error) {
	if r == nil {
		return nil, fserr.InvalidArgument(fserr.OpRead, "", "nil reader")
	}
	if offset < 0 {
		return nil, fserr.InvalidArgument(fserr.OpSeek, "", "negative offset %d", offset)
	}
	if length < 0 {
		return nil, fserr.InvalidArgument(fserr.OpRead, "", "negative length %d", length)
	}

	end := int64(-1)
	if s, ok := r.(io.Seeker); ok {
		var err error
		if end, err = s.Seek(0, io.SeekEnd); err != nil {
			return nil, fserr.IO(fserr.OpSeek, "", err)
		}
	}
	return readAt(r, offset, length, end)
}

// readAt 是 ReadExact 的主体，end 为调用方已知的流长度，负数表示未知。
// end 已知时不再探测流末尾，可寻址流只做一次定位。
func readAt(r io.Reader, offset int64, length int, end int64) ([]byte, error) {
	if end >= 0 && offset > end {
		return nil, fserr.InvalidArgument(fserr.OpSeek, "", "offset %d beyond end %d", offset, end)
	}
	if s, ok := r.(io.Seeker); ok {
		if _, err := s.Seek(offset, io.SeekStart); err != nil {
			return nil, fserr.IO(fserr.OpSeek, "", err)
		}
	}

	buf := make([]byte, length)
	sum := 0
	for sum < length {
		n, err := r.Read(buf[sum:])
		sum += n // sum 是下一次读取在 buf 中的起点
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fserr.IO(fserr.OpRead, "", err)
		}
		if n == 0 {
			break
		}
	}

	return buf[:sum:sum], nil
}

type sequential struct {
	io.Reader
}

// Sequential 隐藏 r 的 Seek 能力，使 ReadExact 从当前位置顺序读取。
// 用于已经定位好的远程流。
func Sequential(r io.Reader) io.Reader {
	if r == nil {
		return nil
	}
	return sequential{Reader: r}
}
