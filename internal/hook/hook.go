// Package hook 定义拦截脚本的入口和宿主调用方式
package hook

import (
	"context"
	"fmt"
	"regexp"
	"runtime/debug"
	"sort"
	"strings"
	"sync"

	"qxhooks/internal/env"
)

type Kind string

const (
	// KindRequest 在请求发往服务器之前调用
	KindRequest Kind = "request"
	// KindResponse 在响应返回客户端之前调用
	KindResponse Kind = "response"
)

// Message 被拦截的请求或响应
type Message struct {
	Kind    Kind              `json:"kind"`
	URL     string            `json:"url"`
	Method  string            `json:"method,omitempty"`
	Status  int               `json:"status,omitempty"`
	Headers map[string]string `json:"headers"`
	Body    string            `json:"body"`
}

// Header 忽略大小写读取头部
func (m *Message) Header(name string) string {
	if v, ok := m.Headers[name]; ok {
		return v
	}
	for k, v := range m.Headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

// Result hook的处理结果，字段为空表示保持原样
type Result struct {
	// URL 仅对请求有效，改写请求地址
	URL     *string           `json:"url,omitempty"`
	Body    *string           `json:"body,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
	Status  int               `json:"status,omitempty"`
}

// PassThrough 不做任何修改
func PassThrough() *Result {
	return &Result{}
}

// Replace 替换消息体
func Replace(body string) *Result {
	return &Result{Body: &body}
}

func (r *Result) Modified() bool {
	return r != nil && (r.URL != nil || r.Body != nil || len(r.Headers) > 0 || r.Status != 0)
}

// Apply 把结果合并到msg上
func (r *Result) Apply(msg *Message) {
	if r == nil {
		return
	}
	if r.URL != nil {
		msg.URL = *r.URL
	}
	if r.Body != nil {
		msg.Body = *r.Body
	}
	if len(r.Headers) > 0 && msg.Headers == nil {
		msg.Headers = map[string]string{}
	}
	for k, v := range r.Headers {
		msg.Headers[k] = v
	}
	if r.Status != 0 {
		msg.Status = r.Status
	}
}

type Hook interface {
	// Name 唯一名称，用于配置和日志
	Name() string
	Kind() Kind
	// Pattern 默认匹配的URL规则
	Pattern() string
	Handle(ctx context.Context, e *env.Env, msg *Message) (*Result, error)
}

type entry struct {
	hook    Hook
	pattern *regexp.Regexp
}

// Registry 按URL查找hook
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

func NewRegistry() *Registry {
	return &Registry{entries: map[string]*entry{}}
}

// Register 使用hook自带的规则注册，pattern非空时覆盖
func (r *Registry) Register(h Hook, pattern string) error {
	if pattern == "" {
		pattern = h.Pattern()
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		return fmt.Errorf("hook %s: invalid pattern %q: %w", h.Name(), pattern, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[h.Name()] = &entry{hook: h, pattern: re}
	return nil
}

func (r *Registry) Get(name string) (Hook, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	if !ok {
		return nil, false
	}
	return e.hook, true
}

// Match 返回匹配url的同类hook，按名称排序
func (r *Registry) Match(kind Kind, url string) []Hook {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Hook
	for _, e := range r.entries {
		if e.hook.Kind() == kind && e.pattern.MatchString(url) {
			out = append(out, e.hook)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Info hook的描述信息
type Info struct {
	Name    string `json:"name"`
	Kind    Kind   `json:"kind"`
	Pattern string `json:"pattern"`
}

func (r *Registry) List() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Info, 0, len(r.entries))
	for name, e := range r.entries {
		out = append(out, Info{Name: name, Kind: e.hook.Kind(), Pattern: e.pattern.String()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Run 执行一次hook。错误和panic都只记录日志，并返回不做修改的结果，宿主一定能拿到结果
func Run(ctx context.Context, e *env.Env, h Hook, msg *Message) (res *Result) {
	he := e.With(h.Name())
	he.Begin()

	defer func() {
		if p := recover(); p != nil {
			he.LogErr(fmt.Errorf("panic: %v\n%s", p, debug.Stack()))
			res = PassThrough()
		}
		he.Finish()
	}()

	res, err := h.Handle(ctx, he, msg)
	if err != nil {
		he.LogErr(err)
		return PassThrough()
	}

	if res == nil {
		return PassThrough()
	}
	return res
}

// RunAll 依次执行所有匹配的hook，前一个的结果作为后一个的输入
func (r *Registry) RunAll(ctx context.Context, e *env.Env, msg *Message) (*Message, bool) {
	hooks := r.Match(msg.Kind, msg.URL)
	if len(hooks) == 0 {
		return msg, false
	}

	cur := *msg
	cur.Headers = make(map[string]string, len(msg.Headers))
	for k, v := range msg.Headers {
		cur.Headers[k] = v
	}

	modified := false
	for _, h := range hooks {
		res := Run(ctx, e, h, &cur)
		if res.Modified() {
			res.Apply(&cur)
			modified = true
		}
	}

	return &cur, modified
}
