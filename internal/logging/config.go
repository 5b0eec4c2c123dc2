package logging

import (
	"fmt"

	"go.uber.org/zap/zapcore"
)

// Config 日志配置
type Config struct {
	Level  zapcore.Level
	Format string // "json" 或 "console"
	Fields map[string]string
}

// NewDefaultConfig 返回默认配置：info 级别，json 格式
func NewDefaultConfig() *Config {
	return &Config{
		Level:  zapcore.InfoLevel,
		Format: "json",
		Fields: map[string]string{
			"service": "backupwatch",
		},
	}
}

// Validate 校验配置
func (c *Config) Validate() error {
	if c.Format != "json" && c.Format != "console" {
		return fmt.Errorf("format must be 'json' or 'console', got %q", c.Format)
	}
	for k, v := range c.Fields {
		if k == "" {
			return fmt.Errorf("field key cannot be empty")
		}
		if v == "" {
			return fmt.Errorf("field %q has empty value", k)
		}
	}
	return nil
}
