// Package gist 把文本推送到GitHub Gist：没有ID时创建，有ID时更新，ID失效时重新创建
package gist

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"qxhooks/internal/env"
)

const DefaultBaseURL = "https://api.github.com"

// ErrNoToken 没有配置GitHub Token
var ErrNoToken = errors.New("gist: github token not set")

// StatusError GitHub返回了非预期的状态码
type StatusError struct {
	Op     string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("gist %s failed: status %d: %s", e.Op, e.Status, Truncate(e.Body, 100))
}

// Truncate 截断用于通知展示的响应内容
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

type Config struct {
	Token       string
	Filename    string
	Description string
	// IDKey 存放gist id的存储key
	IDKey     string
	BaseURL   string
	UserAgent string
}

type Result struct {
	ID      string
	Created bool
	Status  int
}

type Sink struct {
	env *env.Env
	cfg Config
}

func NewSink(e *env.Env, cfg Config) *Sink {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")

	if cfg.UserAgent == "" {
		cfg.UserAgent = "qxhooks"
	}

	return &Sink{env: e, cfg: cfg}
}

type file struct {
	Content string `json:"content"`
}

type createBody struct {
	Description string          `json:"description"`
	Public      bool            `json:"public"`
	Files       map[string]file `json:"files"`
}

type updateBody struct {
	Description string          `json:"description"`
	Files       map[string]file `json:"files"`
}

// Push 写入content，成功创建时把新ID写回存储
func (s *Sink) Push(ctx context.Context, content string) (*Result, error) {
	if strings.TrimSpace(s.cfg.Token) == "" {
		return nil, ErrNoToken
	}

	files := map[string]file{s.cfg.Filename: {Content: content}}

	id := strings.TrimSpace(s.env.GetData(ctx, s.cfg.IDKey))
	if id == "" {
		s.env.Debugf("创建新的Gist")
		return s.create(ctx, files)
	}

	s.env.Debugf("使用现有Gist ID: %s", id)

	res, err := s.update(ctx, id, files)
	var se *StatusError
	if errors.As(err, &se) && se.Status == http.StatusNotFound {
		s.env.Log(fmt.Sprintf("Gist %s 不存在，尝试创建新的Gist", id))
		return s.create(ctx, files)
	}

	return res, err
}

func (s *Sink) headers() map[string]string {
	return map[string]string{
		"Authorization": "token " + s.cfg.Token,
		"Accept":        "application/vnd.github+json",
		"Content-Type":  "application/json",
		"User-Agent":    s.cfg.UserAgent,
	}
}

func (s *Sink) create(ctx context.Context, files map[string]file) (*Result, error) {
	resp, err := s.env.Post(ctx, env.RequestOptions{
		URL:     s.cfg.BaseURL + "/gists",
		Headers: s.headers(),
		Body:    env.ToStr(createBody{Description: s.cfg.Description, Public: false, Files: files}, "{}"),
	})
	if err != nil {
		return nil, fmt.Errorf("gist create: %w", err)
	}

	if resp.Status != http.StatusCreated {
		return nil, &StatusError{Op: "create", Status: resp.Status, Body: resp.Body}
	}

	created := env.ToObj(resp.Body, struct {
		ID string `json:"id"`
	}{})
	if created.ID == "" {
		return nil, fmt.Errorf("gist create: response has no id: %s", Truncate(resp.Body, 100))
	}

	if !s.env.SetData(ctx, created.ID, s.cfg.IDKey) {
		s.env.Log(fmt.Sprintf("保存Gist ID %s 失败", created.ID))
	}

	return &Result{ID: created.ID, Created: true, Status: resp.Status}, nil
}

func (s *Sink) update(ctx context.Context, id string, files map[string]file) (*Result, error) {
	resp, err := s.env.Patch(ctx, env.RequestOptions{
		URL:     s.cfg.BaseURL + "/gists/" + id,
		Headers: s.headers(),
		Body:    env.ToStr(updateBody{Description: s.cfg.Description, Files: files}, "{}"),
	})
	if err != nil {
		return nil, fmt.Errorf("gist update: %w", err)
	}

	if resp.Status != http.StatusOK {
		return nil, &StatusError{Op: "update", Status: resp.Status, Body: resp.Body}
	}

	return &Result{ID: id, Status: resp.Status}, nil
}
