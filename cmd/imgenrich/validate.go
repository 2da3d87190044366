package main

import (
	"fmt"
	"path/filepath"

	"github.com/RecoveryAshes/imgenrich/internal/core"
)

// ValidateFlags 验证合并后的运行参数
func ValidateFlags(config *core.Config) error {
	if err := config.Validate(); err != nil {
		return err
	}

	if samePath(config.Input.DataFile, config.Output.ResultFile) {
		return fmt.Errorf("结果文件不能覆盖输入文件: %s", config.Output.ResultFile)
	}

	if config.Resource.MinFreeMemoryMB < 0 {
		return fmt.Errorf("内存阈值不能为负数,当前值: %d", config.Resource.MinFreeMemoryMB)
	}

	return nil
}

func samePath(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	return absA == absB
}
