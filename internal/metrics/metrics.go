// Package metrics 定义遍历、指纹计算与监控的 Prometheus 指标
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "backupwatch"

// 指纹模式标签
const (
	ModeEmpty   = "empty"
	ModeSingle  = "single"
	ModeSampled = "sampled"
)

var (
	// DirsVisited 统计遍历过的目录数
	DirsVisited = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "walker",
			Name:      "dirs_visited_total",
			Help:      "Total number of directories listed by the walker",
		},
	)

	// DirsPruned 统计因属性掩码被剪掉的目录数
	DirsPruned = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "walker",
			Name:      "dirs_pruned_total",
			Help:      "Total number of directories skipped by the directory attribute mask",
		},
	)

	// FilesEmitted 统计遍历输出的文件数
	FilesEmitted = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "walker",
			Name:      "files_total",
			Help:      "Total number of files returned by the walker",
		},
	)

	// FingerprintsComputed 按模式统计指纹计算次数
	// Labels: mode (empty, single, sampled)
	FingerprintsComputed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fingerprint",
			Name:      "computed_total",
			Help:      "Total number of fingerprints computed by sampling mode",
		},
		[]string{"mode"},
	)

	// BytesRead 统计为计算指纹读取的字节数
	BytesRead = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fingerprint",
			Name:      "bytes_read_total",
			Help:      "Total number of bytes read while sampling files",
		},
	)

	// FingerprintDuration 指纹计算耗时
	FingerprintDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "fingerprint",
			Name:      "duration_seconds",
			Help:      "Duration of fingerprint computations in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)

	// WatchEvents 按操作类型统计处理过的文件事件
	// Labels: op (CREATE, WRITE, REMOVE, RENAME, CHMOD 及其组合)
	WatchEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "watcher",
			Name:      "events_total",
			Help:      "Total number of debounced file events handled",
		},
		[]string{"op"},
	)

	// Snapshots 当前保存的快照数量
	Snapshots = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "watcher",
			Name:      "snapshots",
			Help:      "Number of snapshots currently held by the watcher",
		},
	)
)
