package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// 数据集字段名
const (
	FieldID         = "id"
	FieldURL        = "url"
	FieldImageBrute = "image_brute"
	FieldType       = "type"
	FieldError      = "error"
)

// appendOrder 运行中新增字段的追加顺序
var appendOrder = []string{FieldImageBrute, FieldType, FieldError}

// Item 数据集中的一条记录
// 除已知字段外的其他字段原样透传,并保持输入时的键顺序
type Item struct {
	ID         json.RawMessage // 原始id值(字符串或数字)
	URL        string          // 来源页面URL,处理过程中不修改
	ImageBrute string          // 下载成功后的本地图片路径
	Type       string          // 页面分类标记
	Error      string          // 导航失败时的错误类型

	fields map[string]json.RawMessage // 输入中的全部原始字段
	order  []string                   // 输入中的键顺序
}

// NewItem 以id和url构造记录(主要用于测试和程序化构造)
func NewItem(id string, url string) Item {
	rawID, _ := json.Marshal(id)
	rawURL, _ := json.Marshal(url)
	return Item{
		ID:  rawID,
		URL: url,
		fields: map[string]json.RawMessage{
			FieldID:  rawID,
			FieldURL: rawURL,
		},
		order: []string{FieldID, FieldURL},
	}
}

// IDString 返回id的文本形式
// 字符串id去掉引号,数字id保留字面量,缺失或null返回空串
func (it *Item) IDString() string {
	raw := bytes.TrimSpace(it.ID)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
	}
	return string(raw)
}

// Apply 将流水线的处理结果合并到记录
// 只有导航失败会写入error字段,下载失败只记录在日志和报告中
func (it *Item) Apply(o Outcome) {
	if o.ImagePath != "" {
		it.ImageBrute = o.ImagePath
	}
	if o.Type != "" {
		it.Type = o.Type
	}
	if o.ErrorKind.Persisted() {
		it.Error = string(o.ErrorKind)
	}
}

// Shape 返回记录当前的终态形状
func (it *Item) Shape() Shape {
	switch {
	case it.Error != "" && it.Type == "" && it.ImageBrute == "":
		return ShapeNavFailed
	case it.Error == "" && it.Type != "" && it.ImageBrute != "":
		return ShapeComplete
	case it.Error == "" && it.Type != "" && it.ImageBrute == "":
		return ShapeLoaded
	case it.Error == "" && it.Type == "" && it.ImageBrute == "":
		return ShapeUntouched
	default:
		return ShapeInconsistent
	}
}

// UnmarshalJSON 解析记录并保留键顺序
func (it *Item) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("解析记录失败: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("记录必须是JSON对象")
	}

	fields := make(map[string]json.RawMessage)
	order := make([]string, 0, 8)
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("解析记录字段名失败: %w", err)
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("无效的字段名: %v", keyTok)
		}

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("解析字段 %s 失败: %w", key, err)
		}
		if _, seen := fields[key]; !seen {
			order = append(order, key)
		}
		fields[key] = raw
	}
	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("解析记录失败: %w", err)
	}

	*it = Item{fields: fields, order: order}
	it.ID = fields[FieldID]
	it.URL = rawString(fields[FieldURL])
	it.ImageBrute = rawString(fields[FieldImageBrute])
	it.Type = rawString(fields[FieldType])
	it.Error = rawString(fields[FieldError])
	return nil
}

// MarshalJSON 按输入键顺序输出,新增字段追加在末尾
func (it Item) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	first := true
	writeField := func(key string, value []byte) {
		if !first {
			buf.WriteByte(',')
		}
		first = false
		k, _ := marshalNoEscape(key)
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(value)
	}

	written := make(map[string]bool, len(it.order)+len(appendOrder))
	for _, key := range it.order {
		value, err := it.fieldValue(key)
		if err != nil {
			return nil, err
		}
		if value == nil {
			continue
		}
		writeField(key, value)
		written[key] = true
	}

	// 没有出现在输入中的id/url(程序化构造的记录)
	for _, key := range append([]string{FieldID, FieldURL}, appendOrder...) {
		if written[key] {
			continue
		}
		value, err := it.fieldValue(key)
		if err != nil {
			return nil, err
		}
		if value == nil {
			continue
		}
		writeField(key, value)
		written[key] = true
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// fieldValue 返回字段的输出值,nil表示不输出
func (it *Item) fieldValue(key string) ([]byte, error) {
	switch key {
	case FieldID:
		if len(it.ID) == 0 {
			return nil, nil
		}
		return it.ID, nil
	case FieldURL:
		if raw, ok := it.fields[FieldURL]; ok {
			return raw, nil
		}
		if it.URL == "" {
			return nil, nil
		}
		return marshalNoEscape(it.URL)
	case FieldImageBrute:
		return it.stringField(key, it.ImageBrute)
	case FieldType:
		return it.stringField(key, it.Type)
	case FieldError:
		return it.stringField(key, it.Error)
	default:
		return it.fields[key], nil
	}
}

// stringField 已设置的值优先,否则回退到输入中的原始值
func (it *Item) stringField(key string, value string) ([]byte, error) {
	if value != "" {
		return marshalNoEscape(value)
	}
	if raw, ok := it.fields[key]; ok {
		return raw, nil
	}
	return nil, nil
}

// rawString 将原始JSON字符串解码,非字符串返回空串
func rawString(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '"' {
		return ""
	}
	var s string
	if err := json.Unmarshal(trimmed, &s); err != nil {
		return ""
	}
	return s
}

// marshalNoEscape 序列化为JSON且不转义HTML字符
func marshalNoEscape(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return []byte(strings.TrimRight(buf.String(), "\n")), nil
}
