// Package env 给所有hook提供统一的运行环境：存储、HTTP、通知和日志。
//
// 具体使用哪个存储和通知后端在进程启动时决定一次，再通过 Options 注入，
// hook内部不再判断自己运行在哪个平台上。
package env

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/imroc/req/v3"
	"github.com/labstack/gommon/log"

	"qxhooks/internal/notify"
	"qxhooks/internal/store"
)

// Version 运行环境接口版本，hook可据此判断可用的能力
const Version = "1.0.0"

type Options struct {
	Store    store.Store
	HTTP     *req.Client
	Notifier notify.Notifier
	Logger   *log.Logger

	// Mute 不再发送通知
	Mute bool
	// MuteLog 通知不再写入日志
	MuteLog bool
	// Debug 输出调试日志
	Debug bool
}

type Env struct {
	name      string
	store     store.Store
	http      *req.Client
	notifier  notify.Notifier
	logger    *log.Logger
	mute      bool
	muteLog   bool
	debug     bool
	startTime time.Time
}

// New 创建运行环境，未提供的能力使用内存存储、默认HTTP客户端和日志通知
func New(name string, opts Options) *Env {
	e := &Env{
		name:      name,
		store:     opts.Store,
		http:      opts.HTTP,
		notifier:  opts.Notifier,
		logger:    opts.Logger,
		mute:      opts.Mute,
		muteLog:   opts.MuteLog,
		debug:     opts.Debug,
		startTime: time.Now(),
	}

	if e.logger == nil {
		e.logger = log.New(name)
	}
	e.SetDebug(e.debug)

	if e.store == nil {
		e.store = store.NewMemory()
	}

	if e.http == nil {
		e.http = req.C()
	}

	if e.notifier == nil {
		e.notifier = notify.NewLog(e.logger)
	}

	return e
}

// With 返回共享同一组能力、但名称不同的运行环境，每次hook调用使用一个
func (e *Env) With(name string) *Env {
	c := *e
	c.name = name
	c.startTime = time.Now()
	return &c
}

func (e *Env) Name() string { return e.name }

func (e *Env) Logger() *log.Logger { return e.logger }

func (e *Env) Store() store.Store { return e.store }

func (e *Env) HTTP() *req.Client { return e.http }

// Debug 是否开启了调试模式
func (e *Env) Debug() bool { return e.debug }

// SetDebug 运行时根据存储里的开关切换调试模式。
// 共享的logger级别不够时换成只属于当前Env的DEBUG级logger，不影响其他hook
func (e *Env) SetDebug(on bool) {
	e.debug = on
	if !on || e.logger.Level() <= log.DEBUG {
		return
	}

	l := log.New(e.logger.Prefix())
	l.SetOutput(e.logger.Output())
	l.SetLevel(log.DEBUG)
	e.logger = l
}

// Log 多个参数按行拼接后输出
func (e *Env) Log(lines ...string) {
	e.logger.Info(strings.Join(lines, "\n"))
}

// Debugf 只在调试模式下输出
func (e *Env) Debugf(format string, args ...any) {
	if e.debug {
		e.logger.Debugf(format, args...)
	}
}

func (e *Env) LogErr(err error) {
	if err == nil {
		return
	}
	e.logger.Error(strings.Join([]string{"", fmt.Sprintf("❗️%s, 错误!", e.name), err.Error()}, "\n"))
}

// Begin 输出开始标记
func (e *Env) Begin() {
	e.startTime = time.Now()
	e.Log("", fmt.Sprintf("🔔%s, 开始!", e.name))
}

// Finish 输出结束标记和耗时
func (e *Env) Finish() time.Duration {
	elapsed := time.Since(e.startTime)
	e.Log("", fmt.Sprintf("🔔%s, 结束! 🕛 %.3f 秒", e.name, elapsed.Seconds()))
	return elapsed
}

// Notify 发送通知，通知失败只记录日志
func (e *Env) Notify(ctx context.Context, title, subtitle, body string, opts notify.Options) {
	if title == "" {
		title = e.name
	}

	n := notify.Notification{Title: title, Subtitle: subtitle, Body: body, Options: opts}

	if !e.mute {
		if err := e.notifier.Notify(ctx, n); err != nil {
			e.logger.Warnf("发送通知失败: %v", err)
		}
	}

	// 日志通知本身已经打印过一次
	if _, isLog := e.notifier.(*notify.Log); !e.muteLog && (e.mute || !isLog) {
		e.Log(n.Lines()...)
	}
}

// Msg 不带附加动作的通知
func (e *Env) Msg(ctx context.Context, title, subtitle, body string) {
	e.Notify(ctx, title, subtitle, body, notify.Options{})
}

// ToObj 解析JSON，失败返回def
func ToObj[T any](s string, def T) T {
	var v T
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return def
	}
	return v
}

// ToStr 序列化为JSON，失败返回def
func ToStr(v any, def string) string {
	b, err := json.Marshal(v)
	if err != nil {
		return def
	}
	return string(b)
}

// QueryStr 拼接 key=value&...，跳过空值，对象值序列化为JSON
func QueryStr(params map[string]any) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var pairs []string
	for _, k := range keys {
		v := params[k]
		if v == nil {
			continue
		}

		var s string
		switch val := v.(type) {
		case string:
			s = val
		case fmt.Stringer:
			s = val.String()
		case map[string]any, []any:
			s = ToStr(val, "")
		default:
			s = fmt.Sprint(val)
		}

		if s == "" {
			continue
		}
		pairs = append(pairs, k+"="+s)
	}

	return strings.Join(pairs, "&")
}

// 判断错误是否为key不存在
func isNotFound(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}
