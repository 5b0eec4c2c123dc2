package logging

import (
	"go.uber.org/zap/zapcore"
)

// TraceLevel 是低于 Debug 的自定义级别，用于逐块读取这类细节
const TraceLevel = zapcore.Level(-2)

// LevelFromString 解析日志级别，额外支持 "trace"
func LevelFromString(level string) (zapcore.Level, error) {
	if level == "trace" {
		return TraceLevel, nil
	}
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return zapcore.InfoLevel, err
	}
	return l, nil
}
