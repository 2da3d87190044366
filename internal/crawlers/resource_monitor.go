package crawlers

import (
	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v3/mem"
)

// MemoryStatus 内存状态信息
type MemoryStatus struct {
	TotalMemory     uint64 // 系统总内存(字节)
	AvailableMemory uint64 // 可用内存(字节)
	MemoryPressure  string // normal / warning / critical
	Low             bool   // 可用内存低于阈值
}

// ResourceMonitor 系统内存检查
// 每条记录处理前调用一次,只用于告警,不会跳过记录
type ResourceMonitor struct {
	minFreeBytes  uint64
	virtualMemory func() (*mem.VirtualMemoryStat, error)
}

// NewResourceMonitor 创建资源监控器,minFreeMB为0时不检查
func NewResourceMonitor(minFreeMB int) *ResourceMonitor {
	var minFree uint64
	if minFreeMB > 0 {
		minFree = uint64(minFreeMB) * 1024 * 1024
	}
	return &ResourceMonitor{
		minFreeBytes:  minFree,
		virtualMemory: mem.VirtualMemory,
	}
}

// Enabled 是否启用检查
func (rm *ResourceMonitor) Enabled() bool {
	return rm != nil && rm.minFreeBytes > 0
}

// CheckMemory 采样当前内存状态
func (rm *ResourceMonitor) CheckMemory() (MemoryStatus, error) {
	vmStat, err := rm.virtualMemory()
	if err != nil {
		log.Warn().Err(err).Msg("获取系统内存失败")
		return MemoryStatus{MemoryPressure: "unknown"}, err
	}

	status := MemoryStatus{
		TotalMemory:     vmStat.Total,
		AvailableMemory: vmStat.Available,
		MemoryPressure:  "normal",
	}

	switch {
	case rm.minFreeBytes == 0:
	case vmStat.Available < rm.minFreeBytes/2:
		status.MemoryPressure = "critical"
		status.Low = true
	case vmStat.Available < rm.minFreeBytes:
		status.MemoryPressure = "warning"
		status.Low = true
	}
	return status, nil
}
