package scripts

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"qxhooks/internal/env"
	"qxhooks/internal/hook"
	"qxhooks/internal/wbi"
)

// 存储中的key，优先于配置
const (
	KeyWbiImgURL = "wbi_img_url"
	KeyWbiSubURL = "wbi_sub_url"
)

// WbiResign 用当前时间和配置的key重新计算请求的 w_rid
type WbiResign struct {
	ImgURL string
	SubURL string
	Now    func() time.Time
}

func (w *WbiResign) Name() string    { return "wbiresign" }
func (w *WbiResign) Kind() hook.Kind { return hook.KindRequest }
func (w *WbiResign) Pattern() string { return `^https?://api\.bilibili\.com/x/.*/wbi/` }

func (w *WbiResign) Handle(ctx context.Context, e *env.Env, msg *hook.Message) (*hook.Result, error) {
	imgURL, subURL := w.ImgURL, w.SubURL
	if v := e.GetData(ctx, KeyWbiImgURL); v != "" {
		imgURL = v
	}
	if v := e.GetData(ctx, KeyWbiSubURL); v != "" {
		subURL = v
	}

	if imgURL == "" || subURL == "" {
		e.Debugf("未配置WBI key，跳过")
		return hook.PassThrough(), nil
	}

	u, err := url.Parse(msg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}

	params := map[string]string{}
	for k, v := range u.Query() {
		if k == "w_rid" || k == "wts" || len(v) == 0 {
			continue
		}
		params[k] = v[0]
	}

	signer := wbi.NewSigner(imgURL, subURL)
	signer.Now = w.Now

	query, err := signer.Sign(params)
	if err != nil {
		return nil, err
	}

	u.RawQuery = query
	signed := u.String()
	e.Debugf("重新签名: %s", signed)

	return &hook.Result{URL: &signed}, nil
}
