package scripts

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"qxhooks/internal/env"
	"qxhooks/internal/hook"
)

const DefaultRadioListURL = "https://raw.githubusercontent.com/ZiGmaX809/PrivateRules/master/QuantumultX/Scripts/CustomRadio/RadioList.json"

// RadioItem 远程列表中的一项
type RadioItem struct {
	URL   string `json:"url"`
	Name  string `json:"name"`
	Image string `json:"image"`
}

// Station 客户端需要的电台结构
type Station struct {
	ID          int    `json:"id"`
	StreamURL   string `json:"streamURL"`
	Name        string `json:"name"`
	ImageURL    string `json:"image_url"`
	Hidden      int    `json:"hidden"`
	CountryName string `json:"countryName"`
}

// CustomRadio 用远程列表替换电台搜索结果
type CustomRadio struct {
	ListURL string
}

func (c *CustomRadio) Name() string    { return "customradio" }
func (c *CustomRadio) Kind() hook.Kind { return hook.KindResponse }

// Pattern 只匹配域名里带radio的接口，路径部分包含search
func (c *CustomRadio) Pattern() string { return `^https?://[^/?#]*radio[^/?#]*/[^?#]*search` }

// Stations 按顺序编号
func Stations(items []RadioItem) []Station {
	out := make([]Station, 0, len(items))
	for i, item := range items {
		out = append(out, Station{
			ID:          i,
			StreamURL:   item.URL,
			Name:        item.Name,
			ImageURL:    item.Image,
			Hidden:      0,
			CountryName: "China",
		})
	}
	return out
}

func (c *CustomRadio) Handle(ctx context.Context, e *env.Env, msg *hook.Message) (*hook.Result, error) {
	obj := map[string]any{}
	if msg.Body != "" {
		// 不是JSON对象的响应原样放行
		if err := json.Unmarshal([]byte(msg.Body), &obj); err != nil || obj == nil {
			e.Debugf("响应不是JSON对象，跳过: %v", err)
			return hook.PassThrough(), nil
		}
	}

	listURL := c.ListURL
	if listURL == "" {
		listURL = DefaultRadioListURL
	}

	resp, err := e.Get(ctx, env.RequestOptions{URL: listURL})
	if err != nil {
		e.LogErr(err)
		return hook.PassThrough(), nil
	}

	if resp.Status != http.StatusOK {
		e.Log(fmt.Sprintf("获取电台列表失败: 状态码 %d", resp.Status))
		return hook.PassThrough(), nil
	}

	var list struct {
		List []RadioItem `json:"list"`
	}
	if err := json.Unmarshal([]byte(resp.Body), &list); err != nil {
		return nil, fmt.Errorf("decode radio list: %w", err)
	}

	data, ok := obj["data"].(map[string]any)
	if !ok {
		data = map[string]any{}
		obj["data"] = data
	}
	data["data"] = Stations(list.List)

	out, err := json.Marshal(obj)
	if err != nil {
		return nil, err
	}

	e.Debugf("替换电台列表 %d 项", len(list.List))
	return hook.Replace(string(out)), nil
}
