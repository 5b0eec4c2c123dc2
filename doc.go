// Package backupwatch 为备份/同步场景提供过滤遍历、采样指纹与变更监控。
//
// 组成：
//   - walker：按 "*.txt,*.doc,!~*" 这类过滤表达式和属性掩码广度优先枚举文件
//   - fingerprint：读取首、中、尾三个 16KiB 块计算 MD5（或 BLAKE3）指纹，
//     小于 48KiB 的文件整体哈希；ReadExact 负责在网络存储上重试短读
//   - Watcher（本包）：基于 fsnotify 监控目录，用 walker 做初始扫描，
//     每次变更生成新快照（SnapshotNode），快照之间形成DAG
//
// 指纹只是变更检测的提示：大文件未被采样区域内的修改不会被发现。
// 需要精确比较时应在指纹相同后再做全量校验。
//
// 推荐使用方式：
//  1. 配置ConfigWatcher（过滤表达式、属性掩码、Debounce、WorkerCount）
//  2. 通过NewWatcher创建Watcher
//  3. 调用Start()完成初始扫描并开始监控
//  4. 通过EventChan接收变更，或用Diff比较任意两个快照
//  5. 调用Stop()结束监控，EventChan随之关闭
//
// 并发安全：
//   - 快照表由 sync.RWMutex 保护，GetCurrentSnapshot、GetSnapshotByID 等可并发调用
//   - 初始快照在 Start 中填充，之后发布的快照不再修改，调用方只读即可
//   - EventChan 满时新事件被丢弃并记录警告，不会阻塞处理流程
//
// 注意：
//   - Windows、Linux、macOS等不同平台对文件系统事件的支持存在差异
//   - 大量文件频繁变更时，可能需要调大Debounce
package backupwatch
