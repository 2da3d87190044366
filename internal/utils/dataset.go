package utils

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/RecoveryAshes/imgenrich/internal/models"
)

// LoadItems 读取JSON数组格式的数据集
func LoadItems(path string) ([]*models.Item, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取数据集失败: %w", err)
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, fmt.Errorf("数据集 %s 必须是JSON数组", path)
	}

	var items []*models.Item
	if err := json.Unmarshal(trimmed, &items); err != nil {
		return nil, fmt.Errorf("解析数据集 %s 失败: %w", path, err)
	}
	for i, item := range items {
		if item == nil {
			return nil, fmt.Errorf("数据集第%d项为null", i+1)
		}
	}

	Infof("📂 从 %s 加载了 %d 条记录", path, len(items))
	return items, nil
}

// SaveItems 一次性写出结果数据集
// 两空格缩进,不转义HTML字符,先写临时文件再重命名
func SaveItems(path string, items []*models.Item) error {
	if items == nil {
		items = []*models.Item{}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(items); err != nil {
		return fmt.Errorf("序列化结果失败: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("创建结果目录失败: %w", err)
		}
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("写入结果文件失败: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("写入结果文件失败: %w", err)
	}

	Infof("💾 结果已保存: %s (%d 条)", path, len(items))
	return nil
}
