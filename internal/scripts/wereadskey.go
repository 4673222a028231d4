package scripts

import (
	"context"
	"encoding/json"
	"fmt"

	"qxhooks/internal/env"
	"qxhooks/internal/hook"
)

const (
	// DefaultSkeyDataKey 微信读书插件 data.json 在存储中的key
	DefaultSkeyDataKey = "weread-data-file"
	// KeySkey 单独保存最近一次捕获的skey
	KeySkey = "wr_skey"
)

// Cookie data.json 中的一项
type Cookie struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// WeReadSkey 把请求头里的skey写回插件的cookie列表
type WeReadSkey struct {
	DataKey string
}

func (w *WeReadSkey) Name() string    { return "wereadskey" }
func (w *WeReadSkey) Kind() hook.Kind { return hook.KindRequest }
func (w *WeReadSkey) Pattern() string { return `^https?://i\.weread\.qq\.com/book/read` }

// UpsertCookie 更新同名项，没有则追加
func UpsertCookie(cookies []Cookie, name, value string) []Cookie {
	for i := range cookies {
		if cookies[i].Name == name {
			cookies[i].Value = value
			return cookies
		}
	}
	return append(cookies, Cookie{Name: name, Value: value})
}

func (w *WeReadSkey) Handle(ctx context.Context, e *env.Env, msg *hook.Message) (*hook.Result, error) {
	skey := msg.Header("skey")
	if skey == "" {
		e.Log("请求头中未找到 skey")
		return hook.PassThrough(), nil
	}

	e.Log("找到 skey: " + skey)

	dataKey := w.DataKey
	if dataKey == "" {
		dataKey = DefaultSkeyDataKey
	}

	var cookies []Cookie
	if raw := e.GetData(ctx, dataKey); raw != "" {
		if err := json.Unmarshal([]byte(raw), &cookies); err != nil {
			return nil, fmt.Errorf("解析 JSON 错误: %w", err)
		}
	}

	cookies = UpsertCookie(cookies, KeySkey, skey)

	out, err := json.MarshalIndent(cookies, "", "  ")
	if err != nil {
		return nil, err
	}

	if !e.SetData(ctx, string(out), dataKey) || !e.SetData(ctx, skey, KeySkey) {
		return nil, fmt.Errorf("写入 %s 失败", dataKey)
	}

	e.Log("成功更新 skey 为: " + skey)
	e.Msg(ctx, "微信读书 skey 已更新", "", "成功更新 skey 为: "+skey)

	return hook.PassThrough(), nil
}
