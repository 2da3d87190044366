package core

import (
	"errors"
	"testing"

	"github.com/RecoveryAshes/imgenrich/internal/models"
)

func TestHeaderManager_GetMergedHeaders(t *testing.T) {
	t.Run("默认头部存在", func(t *testing.T) {
		hm, err := NewHeaderManager(nil, nil, "")
		if err != nil {
			t.Fatalf("创建HeaderManager失败: %v", err)
		}

		headers := hm.GetMergedHeaders()
		if headers.Get("User-Agent") != DefaultUserAgent {
			t.Errorf("期望默认User-Agent, 实际='%s'", headers.Get("User-Agent"))
		}
		if headers.Get("Accept-Language") == "" {
			t.Error("期望默认Accept-Language存在")
		}
	})

	t.Run("优先级 默认 < 配置 < 命令行", func(t *testing.T) {
		hm, err := NewHeaderManager(
			map[string]string{"referer": "https://config.example/", "x-from": "config"},
			[]string{"X-From: cli"},
			"ConfiguredUA/1.0",
		)
		if err != nil {
			t.Fatalf("创建HeaderManager失败: %v", err)
		}

		headers := hm.GetMergedHeaders()
		if got := headers.Get("User-Agent"); got != "ConfiguredUA/1.0" {
			t.Errorf("User-Agent = %s", got)
		}
		if got := headers.Get("Referer"); got != "https://config.example/" {
			t.Errorf("配置文件头部未生效: %s", got)
		}
		if got := headers.Get("X-From"); got != "cli" {
			t.Errorf("命令行头部应覆盖配置文件: %s", got)
		}
	})

	t.Run("合并结果与内部状态隔离", func(t *testing.T) {
		hm, _ := NewHeaderManager(nil, []string{"X-A: 1"}, "")
		first := hm.GetMergedHeaders()
		first.Set("X-A", "changed")
		first.Set("User-Agent", "changed")

		second := hm.GetMergedHeaders()
		if second.Get("X-A") != "1" || second.Get("User-Agent") != DefaultUserAgent {
			t.Error("修改返回值不应影响管理器")
		}
	})
}

func TestHeaderManager_InvalidCliHeader(t *testing.T) {
	if _, err := NewHeaderManager(nil, []string{"NoColonHere"}, ""); err == nil {
		t.Error("缺少冒号的头部应报错")
	}
}

func TestHeaderManager_GetHeaders(t *testing.T) {
	tests := []struct {
		name    string
		config  map[string]string
		cli     []string
		wantErr bool
	}{
		{"合法头部", map[string]string{"Referer": "https://a/"}, []string{"X-Token: t"}, false},
		{"配置文件含禁止头部", map[string]string{"Host": "evil"}, nil, true},
		{"命令行含非法值", nil, []string{"X-Name: 中文"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hm, err := NewHeaderManager(tt.config, tt.cli, "")
			if err != nil {
				t.Fatalf("创建HeaderManager失败: %v", err)
			}

			_, err = hm.GetHeaders()
			if (err != nil) != tt.wantErr {
				t.Fatalf("GetHeaders() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				var ve *models.ValidationError
				if !errors.As(err, &ve) {
					t.Errorf("期望ValidationError, 得到 %T", err)
				}
			}
		})
	}
}

func TestHeaderManager_GetSafeHeaders(t *testing.T) {
	hm, err := NewHeaderManager(nil, []string{"Authorization: Bearer secret-token"}, "")
	if err != nil {
		t.Fatalf("创建HeaderManager失败: %v", err)
	}

	safe := hm.GetSafeHeaders()
	if safe["Authorization"] != "Bearer ***" {
		t.Errorf("Authorization未脱敏: %s", safe["Authorization"])
	}
	if safe["User-Agent"] != DefaultUserAgent {
		t.Error("非敏感头部应原样保留")
	}
}
