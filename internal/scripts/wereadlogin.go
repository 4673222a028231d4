package scripts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"qxhooks/internal/body"
	"qxhooks/internal/env"
	"qxhooks/internal/gist"
	"qxhooks/internal/hook"
)

// 存储中的配置项
const (
	KeyGithubToken     = "wr_github_token"
	KeyGistID          = "wr_gist_id"
	KeyGistFilename    = "wr_gist_filename"
	KeyGistDescription = "wr_gist_description"
	KeyEnableGist      = "wr_enable_gist"
	KeyDebugMode       = "wr_debug_mode"
)

const (
	loginTitle       = "微信读书登录信息"
	loginSuccessMsg  = "登录信息已成功提取"
	loginGistSuccess = "已成功上传到Gist"
	loginGistError   = "Gist上传失败"
	defaultFilename  = "weread_login_info.json"
	defaultGistDesc  = "微信读书登录信息"
	loginGistNoToken = "请先在BoxJS中设置有效的GitHub Token"
	loginUserAgent   = "WeReadLoginMonitor"
)

// LoginInfo 推送到Gist的内容
type LoginInfo struct {
	VID         string            `json:"vid"`
	RequestBody map[string]any    `json:"requestBody"`
	Headers     map[string]string `json:"headers"`
	CaptureTime string            `json:"captureTime"`
}

// WeReadLogin 捕获微信读书登录请求里的vid和请求体，并推送到Gist
type WeReadLogin struct {
	GistBaseURL string
	Now         func() time.Time
}

func (w *WeReadLogin) Name() string    { return "wereadlogin" }
func (w *WeReadLogin) Kind() hook.Kind { return hook.KindRequest }
func (w *WeReadLogin) Pattern() string { return `^https?://i\.weread\.qq\.com/login` }

func (w *WeReadLogin) now() time.Time {
	if w.Now != nil {
		return w.Now()
	}
	return time.Now()
}

func (w *WeReadLogin) Handle(ctx context.Context, e *env.Env, msg *hook.Message) (*hook.Result, error) {
	if e.GetData(ctx, KeyDebugMode) == "true" {
		e.SetDebug(true)
	}

	e.Debugf("请求URL: %s", msg.URL)

	info := LoginInfo{
		VID:         msg.Header("vid"),
		RequestBody: body.Parse(msg.Body),
		Headers:     msg.Headers,
		CaptureTime: w.now().UTC().Format(time.RFC3339),
	}

	e.Msg(ctx, loginTitle, loginSuccessMsg, "VID: "+info.VID)

	content, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode login info: %w", err)
	}
	e.Debugf("微信读书登录信息:\n%s", content)

	if e.GetData(ctx, KeyEnableGist) != "true" {
		e.Debugf("Gist上传功能已禁用")
		return hook.PassThrough(), nil
	}

	filename := e.GetData(ctx, KeyGistFilename)
	if filename == "" {
		filename = defaultFilename
	}
	description := e.GetData(ctx, KeyGistDescription)
	if description == "" {
		description = defaultGistDesc
	}

	sink := gist.NewSink(e, gist.Config{
		Token:       e.GetData(ctx, KeyGithubToken),
		Filename:    filename,
		Description: description,
		IDKey:       KeyGistID,
		BaseURL:     w.GistBaseURL,
		UserAgent:   loginUserAgent,
	})

	res, err := sink.Push(ctx, string(content))
	switch {
	case errors.Is(err, gist.ErrNoToken):
		e.Msg(ctx, loginTitle, loginGistError, loginGistNoToken)
	case err != nil:
		e.LogErr(err)
		e.Msg(ctx, loginTitle, loginGistError, err.Error())
	case res.Created:
		e.Msg(ctx, loginTitle, loginGistSuccess, "新Gist已创建: "+res.ID)
	default:
		e.Msg(ctx, loginTitle, loginGistSuccess, "Gist已更新: "+res.ID)
	}

	// 登录请求本身不做修改
	return hook.PassThrough(), nil
}
