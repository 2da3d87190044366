// Package crawlers 提供页面访问、主图定位和图片下载功能
//
// # 概述
//
// crawlers包把"打开页面 → 选出代表图片 → 下载"拆成三个互相独立的部分,
// 流水线(core.Pipeline)只依赖这里定义的接口。
//
// # 核心组件
//
// ## Session / Page
//
// Session负责创建页面,Page在加载完成后提供DocumentReader能力。两种实现:
//
//   - DynamicSession: 基于go-rod启动浏览器,查询在浏览器中执行,样式为真实的计算样式
//   - StaticSession: 基于Colly抓取HTML,不执行脚本,样式由内联样式推算
//
// 使用示例:
//
//	session, err := NewDynamicSession(ctx, BrowserConfig{Headless: true})
//	if err != nil { /* 处理错误 */ }
//	defer session.Close()
//
//	page, err := session.NewPage(ctx, PageOptions{ViewportWidth: 1200, ViewportHeight: 1600})
//	if err != nil { /* 处理错误 */ }
//	defer page.Close()
//
//	err = page.Navigate(ctx, "https://example.com/post/1", 30*time.Second)
//
// ## LocateImage (主图定位)
//
// 纯函数,只读取DocumentReader,不产生副作用。查找顺序:
//   - meta[property="og:image"], 其次 meta[name="twitter:image"]
//   - 正文区域(article img, .article img)中第一张居中的图片
//   - 正文区域的第一张图片
//
// 居中的判定: margin-left 与 margin-right 均为 auto,或 text-align 为 center。
//
//	imageURL, found, err := LocateImage(ctx, page)
//
// ## Downloader (图片下载)
//
// 按协议选择传输: https 使用TLS传输(可选utls随机指纹),http 使用普通传输,
// 其他协议直接失败。只有HTTP 200视为成功,数据先写入 <dest>.part,
// 完整写入后才重命名为目标文件,任何失败都会删除临时文件。每个地址只尝试一次。
//
//	result, err := downloader.Download(ctx, imageURL, "datajson/42.jpg")
//
// ## ResourceMonitor (资源监控)
//
// 基于gopsutil采样可用内存,低于 resource.min_free_memory_mb 时由批处理记录告警。
//
// # 配置参数
//
//	browser:
//	  mode: dynamic             # dynamic | static
//	  headless: true
//	  stealth: false            # 注入go-rod/stealth脚本
//	  viewport_width: 1200
//	  viewport_height: 1600
//	  nav_timeout: 30s
//
//	download:
//	  timeout: 0s               # 0表示不限时
//	  tls_fingerprint: false    # https下载使用utls随机ClientHello
//
// # 并发安全
//
// 批处理按顺序逐条处理,同一时刻只有一个页面。Page实现不是并发安全的。
package crawlers
