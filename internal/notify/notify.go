// Package notify 发送系统通知
package notify

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/imroc/req/v3"
	"github.com/labstack/gommon/log"
)

// Options 通知附带的动作，各平台字段不同，这里统一成一份
type Options struct {
	OpenURL          string `json:"open_url,omitempty" yaml:"open_url"`
	MediaURL         string `json:"media_url,omitempty" yaml:"media_url"`
	UpdatePasteboard string `json:"update_pasteboard,omitempty" yaml:"update_pasteboard"`
}

type Notification struct {
	Title    string  `json:"title"`
	Subtitle string  `json:"subtitle,omitempty"`
	Body     string  `json:"body,omitempty"`
	Options  Options `json:"options,omitempty"`
}

// Lines 通知在日志里展示的行
func (n Notification) Lines() []string {
	lines := []string{"", "==============📣系统通知📣==============", n.Title}
	if n.Subtitle != "" {
		lines = append(lines, n.Subtitle)
	}
	if n.Body != "" {
		lines = append(lines, n.Body)
	}
	return lines
}

type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// Config 通知后端配置
type Config struct {
	Backend    string `yaml:"backend"`
	WebhookURL string `yaml:"webhook_url"`
}

// Open 根据配置创建通知后端，默认只写日志
func Open(cfg Config, client *req.Client, logger *log.Logger) (Notifier, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", "log":
		return NewLog(logger), nil
	case "webhook":
		if cfg.WebhookURL == "" {
			return nil, fmt.Errorf("notify: webhook backend requires webhook_url")
		}
		return NewWebhook(cfg.WebhookURL, client), nil
	default:
		return nil, fmt.Errorf("notify: unknown backend %q", cfg.Backend)
	}
}

// Log 把通知写到日志
type Log struct {
	logger *log.Logger
}

func NewLog(logger *log.Logger) *Log {
	return &Log{logger: logger}
}

func (l *Log) Notify(_ context.Context, n Notification) error {
	l.logger.Info(strings.Join(n.Lines(), "\n"))
	return nil
}

// Webhook 以JSON形式POST到指定地址
type Webhook struct {
	url    string
	client *req.Client
}

func NewWebhook(url string, client *req.Client) *Webhook {
	if client == nil {
		client = req.C()
	}
	return &Webhook{url: url, client: client}
}

func (w *Webhook) Notify(ctx context.Context, n Notification) error {
	resp, err := w.client.R().
		SetContext(ctx).
		SetBodyJsonMarshal(n).
		Post(w.url)
	if err != nil {
		return fmt.Errorf("notify webhook: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("notify webhook: unexpected status %d", resp.StatusCode)
	}
	return nil
}

// Recorder 记录收到的通知，用于测试
type Recorder struct {
	mu   sync.Mutex
	sent []Notification
}

func (r *Recorder) Notify(_ context.Context, n Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
	return nil
}

// Sent 返回已记录通知的副本
func (r *Recorder) Sent() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.sent...)
}
