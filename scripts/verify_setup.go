package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/go-rod/rod/lib/launcher"
	"github.com/shirou/gopsutil/v3/mem"
)

func main() {
	fmt.Println("==============================================")
	fmt.Println("  imgenrich 环境验证")
	fmt.Println("==============================================")
	fmt.Println()

	allOK := true

	fmt.Printf("✅ Go版本: %s\n", runtime.Version())
	fmt.Printf("✅ 操作系统: %s/%s\n", runtime.GOOS, runtime.GOARCH)

	// dynamic模式需要本地浏览器,找不到时首次运行会自动下载
	if path, found := launcher.LookPath(); found {
		fmt.Printf("✅ 浏览器: %s\n", path)
	} else {
		fmt.Println("⚠️  未找到Chrome/Chromium - 首次运行dynamic模式时将自动下载")
		fmt.Println("   或使用 --mode static 不启动浏览器")
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		fmt.Printf("✅ 可用内存: %d MB / %d MB\n", vm.Available/(1024*1024), vm.Total/(1024*1024))
	} else {
		fmt.Printf("⚠️  无法读取内存信息: %v\n", err)
	}

	fmt.Println()
	fmt.Println("检查项目结构...")
	for _, path := range []string{
		"go.mod",
		"cmd/imgenrich",
		"internal/core",
		"internal/crawlers",
		"internal/models",
		"internal/utils",
	} {
		if _, err := os.Stat(path); err == nil {
			fmt.Printf("✅ %s\n", path)
		} else {
			fmt.Printf("❌ %s 不存在\n", path)
			allOK = false
		}
	}

	fmt.Println()
	fmt.Println("检查输入数据...")
	if _, err := os.Stat("data/test.json"); err == nil {
		fmt.Println("✅ data/test.json")
	} else {
		fmt.Println("⚠️  data/test.json 不存在 - 运行时请使用 -i 指定输入文件")
	}

	fmt.Println()
	fmt.Println("==============================================")
	if allOK {
		fmt.Println("✅ 环境验证通过!")
		fmt.Println()
		fmt.Println("下一步:")
		fmt.Println("  1. go build -o imgenrich ./cmd/imgenrich")
		fmt.Println("  2. ./imgenrich --validate-config")
		fmt.Println("  3. ./imgenrich -i data/test.json")
		os.Exit(0)
	}
	fmt.Println("❌ 环境验证失败,请解决上述问题。")
	os.Exit(1)
}
