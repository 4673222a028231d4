// Package scripts 内置的拦截脚本
package scripts

import (
	"fmt"
	"time"

	"qxhooks/internal/hook"
)

// Config 内置脚本的可调参数
type Config struct {
	// RadioListURL 电台列表JSON地址
	RadioListURL string `yaml:"radio_list_url"`
	// GistBaseURL 一般只在测试时修改
	GistBaseURL string `yaml:"gist_base_url"`
	// SkeyDataKey 存放微信读书插件data.json内容的存储key
	SkeyDataKey string `yaml:"skey_data_key"`
	// WBI签名使用的两张图片地址
	WbiImgURL string `yaml:"wbi_img_url"`
	WbiSubURL string `yaml:"wbi_sub_url"`

	// Patterns 按名称覆盖默认的URL规则
	Patterns map[string]string `yaml:"patterns"`
	// Enabled 为空时启用全部
	Enabled []string `yaml:"enabled"`

	now func() time.Time
}

// All 按配置创建全部内置脚本
func All(cfg Config) []hook.Hook {
	return []hook.Hook{
		&CustomRadio{ListURL: cfg.RadioListURL},
		&PushAnswer{},
		&WeReadLogin{GistBaseURL: cfg.GistBaseURL, Now: cfg.now},
		&WeReadSkey{DataKey: cfg.SkeyDataKey},
		&WbiResign{ImgURL: cfg.WbiImgURL, SubURL: cfg.WbiSubURL, Now: cfg.now},
	}
}

// Register 把启用的脚本注册到registry
func Register(reg *hook.Registry, cfg Config) error {
	enabled := map[string]bool{}
	for _, name := range cfg.Enabled {
		enabled[name] = true
	}

	known := map[string]bool{}
	for _, h := range All(cfg) {
		known[h.Name()] = true
		if len(enabled) > 0 && !enabled[h.Name()] {
			continue
		}

		if err := reg.Register(h, cfg.Patterns[h.Name()]); err != nil {
			return err
		}
	}

	for name := range enabled {
		if !known[name] {
			return fmt.Errorf("unknown script %q", name)
		}
	}

	return nil
}
