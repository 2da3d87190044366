package models

import (
	"encoding/json"
	"time"
)

// RunReport 一次运行的报告
type RunReport struct {
	// 运行信息
	RunID      string     `json:"run_id"`
	Mode       EnrichMode `json:"mode"`
	InputFile  string     `json:"input_file"`
	ResultFile string     `json:"result_file"`
	ImageDir   string     `json:"image_dir"`

	// 时间信息
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Duration  float64   `json:"duration"` // 秒

	// 统计信息
	Stats RunStats `json:"stats"`

	// 逐条结果
	Items []ItemReport `json:"items"`
}

// RunStats 运行统计
type RunStats struct {
	Total          int `json:"total"`
	Downloaded     int `json:"downloaded"`
	NoImage        int `json:"no_image"`
	DownloadFailed int `json:"download_failed"`
	NavFailed      int `json:"nav_failed"`
}

// ItemReport 单条记录的处理明细
type ItemReport struct {
	ID        string        `json:"id"`
	URL       string        `json:"url"`
	State     PipelineState `json:"state"`
	ErrorKind ErrorKind     `json:"error_kind,omitempty"`
	ImageURL  string        `json:"image_url,omitempty"`
	ImagePath string        `json:"image_path,omitempty"`
	Detail    string        `json:"detail,omitempty"`
}

// NewRunReport 创建报告并分配运行ID
func NewRunReport(mode EnrichMode, startTime time.Time) *RunReport {
	return &RunReport{
		RunID:     generateID(),
		Mode:      mode,
		StartTime: startTime,
		Items:     []ItemReport{},
	}
}

// Record 记录一条处理结果
func (r *RunReport) Record(item *Item, o Outcome) {
	r.Items = append(r.Items, ItemReport{
		ID:        item.IDString(),
		URL:       item.URL,
		State:     o.State,
		ErrorKind: o.ErrorKind,
		ImageURL:  o.ImageURL,
		ImagePath: o.ImagePath,
		Detail:    o.Detail,
	})

	r.Stats.Total++
	switch o.State {
	case StateDownloaded:
		r.Stats.Downloaded++
	case StateNoImage:
		r.Stats.NoImage++
	case StateDownloadFailed:
		r.Stats.DownloadFailed++
	case StateNavFailed:
		r.Stats.NavFailed++
	}
}

// Finish 记录结束时间
func (r *RunReport) Finish(endTime time.Time) {
	r.EndTime = endTime
	r.Duration = endTime.Sub(r.StartTime).Seconds()
}

// ToJSON 序列化为JSON
func (r *RunReport) ToJSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// FromJSON 从JSON反序列化
func (r *RunReport) FromJSON(data []byte) error {
	return json.Unmarshal(data, r)
}
