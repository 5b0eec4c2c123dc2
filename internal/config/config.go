// Package config 加载 backupwatch 的配置。
//
// 优先级（高到低）：
//  1. 环境变量（BACKUPWATCH_WALK_FILTER、BACKUPWATCH_WATCH_DEBOUNCE 等）
//  2. YAML 配置文件
//  3. 内置默认值
//
// 环境变量去掉前缀后按第一个下划线拆成 section.field：
//
//	BACKUPWATCH_WALK_FILTER          -> walk.filter
//	BACKUPWATCH_FINGERPRINT_END_BLOCK -> fingerprint.end_block
//	BACKUPWATCH_WATCH_PATHS=/a,/b    -> watch.paths
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/shuakami/backupwatch/fingerprint"
	"github.com/shuakami/backupwatch/internal/logging"
	"github.com/shuakami/backupwatch/walker"
)

// Config 是完整配置
type Config struct {
	Walk        WalkConfig        `koanf:"walk"`
	Fingerprint FingerprintConfig `koanf:"fingerprint"`
	Watch       WatchConfig       `koanf:"watch"`
	Logging     LogConfig         `koanf:"logging"`
}

// WalkConfig 遍历参数
type WalkConfig struct {
	Filter         string `koanf:"filter"`          // 如 "*.txt,*.doc,!~*"
	Recursive      bool   `koanf:"recursive"`       // 默认 true
	DirAttributes  string `koanf:"dir_attributes"`  // 如 "hidden,system"
	FileAttributes string `koanf:"file_attributes"` // 同上
}

// FingerprintConfig 指纹参数
type FingerprintConfig struct {
	Algorithm   string `koanf:"algorithm"` // md5 | blake3
	StartBlock  int    `koanf:"start_block"`
	MiddleBlock int    `koanf:"middle_block"`
	EndBlock    int    `koanf:"end_block"`
}

// WatchConfig 监控参数
type WatchConfig struct {
	Paths    []string      `koanf:"paths"`
	Debounce time.Duration `koanf:"debounce"`
	Workers  int           `koanf:"workers"`
}

// LogConfig 日志参数
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// Default 返回内置默认配置
func Default() *Config {
	return &Config{
		Walk: WalkConfig{
			Filter:    "*",
			Recursive: true,
		},
		Fingerprint: FingerprintConfig{
			Algorithm:   string(fingerprint.MD5),
			StartBlock:  fingerprint.DefaultStartBlockSize,
			MiddleBlock: fingerprint.DefaultMiddleBlockSize,
			EndBlock:    fingerprint.DefaultEndBlockSize,
		},
		Watch: WatchConfig{
			Debounce: 10 * time.Millisecond,
			Workers:  32,
		},
		Logging: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Validate 校验配置
func (c *Config) Validate() error {
	var errs []error

	if _, err := fingerprint.ParseAlgorithm(c.Fingerprint.Algorithm); err != nil {
		errs = append(errs, err)
	}
	if c.Fingerprint.StartBlock <= 0 || c.Fingerprint.MiddleBlock <= 0 || c.Fingerprint.EndBlock <= 0 {
		errs = append(errs, fmt.Errorf("fingerprint block sizes must be positive, got %d/%d/%d",
			c.Fingerprint.StartBlock, c.Fingerprint.MiddleBlock, c.Fingerprint.EndBlock))
	}
	if _, err := walker.ParseFilter(c.Walk.Filter); err != nil {
		errs = append(errs, fmt.Errorf("walk.filter: %w", err))
	}
	if _, err := walker.ParseAttr(c.Walk.DirAttributes); err != nil {
		errs = append(errs, fmt.Errorf("walk.dir_attributes: %w", err))
	}
	if _, err := walker.ParseAttr(c.Walk.FileAttributes); err != nil {
		errs = append(errs, fmt.Errorf("walk.file_attributes: %w", err))
	}
	if c.Watch.Workers < 0 {
		errs = append(errs, fmt.Errorf("watch.workers cannot be negative, got %d", c.Watch.Workers))
	}
	if c.Watch.Debounce < 0 {
		errs = append(errs, fmt.Errorf("watch.debounce cannot be negative, got %s", c.Watch.Debounce))
	}
	if _, err := logging.LevelFromString(c.Logging.Level); err != nil {
		errs = append(errs, fmt.Errorf("logging.level: %w", err))
	}
	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		errs = append(errs, fmt.Errorf("logging.format must be 'json' or 'console', got %q", c.Logging.Format))
	}

	return errors.Join(errs...)
}

// WalkOptions 把遍历配置转换为 walker.Options
func (c *Config) WalkOptions() (walker.Options, error) {
	dirMask, err := walker.ParseAttr(c.Walk.DirAttributes)
	if err != nil {
		return walker.Options{}, fmt.Errorf("walk.dir_attributes: %w", err)
	}
	fileMask, err := walker.ParseAttr(c.Walk.FileAttributes)
	if err != nil {
		return walker.Options{}, fmt.Errorf("walk.file_attributes: %w", err)
	}
	return walker.Options{
		Filter:    c.Walk.Filter,
		Recursive: c.Walk.Recursive,
		DirMask:   dirMask,
		FileMask:  fileMask,
	}, nil
}

// FingerprintOptions 把指纹配置转换为 fingerprint.Option 列表
func (c *Config) FingerprintOptions() ([]fingerprint.Option, error) {
	alg, err := fingerprint.ParseAlgorithm(c.Fingerprint.Algorithm)
	if err != nil {
		return nil, err
	}
	return []fingerprint.Option{
		fingerprint.WithAlgorithm(alg),
		fingerprint.WithBlockSizes(c.Fingerprint.StartBlock, c.Fingerprint.MiddleBlock, c.Fingerprint.EndBlock),
	}, nil
}

// LoggingConfig 把日志配置转换为 logging.Config
func (c *Config) LoggingConfig() (*logging.Config, error) {
	level, err := logging.LevelFromString(c.Logging.Level)
	if err != nil {
		return nil, err
	}
	cfg := logging.NewDefaultConfig()
	cfg.Level = level
	cfg.Format = c.Logging.Format
	return cfg, nil
}
