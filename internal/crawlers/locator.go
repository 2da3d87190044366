package crawlers

import (
	"context"
	"fmt"
	"strings"
)

// LocateImage 在已加载的文档中选出一张代表图片
//
// 查找顺序(命中即返回):
//  1. og:image, 其次 twitter:image (content为空视为不存在)
//  2. 正文区域中第一张居中的图片
//  3. 正文区域的第一张图片
//
// 没有候选图片,或选中图片的src为空时返回 found=false。
// 读取文档出错时原样返回错误,由调用方决定如何处理。
func LocateImage(ctx context.Context, reader DocumentReader) (imageURL string, found bool, err error) {
	for _, key := range metaPriority {
		content, err := reader.MetaImage(ctx, key)
		if err != nil {
			return "", false, fmt.Errorf("读取元数据 %s 失败: %w", key.Value, err)
		}
		if content = strings.TrimSpace(content); content != "" {
			return content, true, nil
		}
	}

	candidates, err := reader.ContentImages(ctx)
	if err != nil {
		return "", false, fmt.Errorf("查询正文图片失败: %w", err)
	}
	if len(candidates) == 0 {
		return "", false, nil
	}

	selected := candidates[0]
	for _, candidate := range candidates {
		style, err := reader.ComputedStyle(ctx, candidate)
		if err != nil {
			return "", false, fmt.Errorf("读取第%d张图片样式失败: %w", candidate.Index, err)
		}
		if style.IsCentered() {
			selected = candidate
			break
		}
	}

	src := strings.TrimSpace(selected.Src)
	if src == "" {
		return "", false, nil
	}
	return src, true, nil
}
