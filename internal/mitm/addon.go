// Package mitm 把 go-mitmproxy 拦截到的流量交给hook处理
package mitm

import (
	"context"
	"net/url"
	"strconv"

	"github.com/lqqyt2423/go-mitmproxy/proxy"

	"qxhooks/internal/env"
	"qxhooks/internal/hook"
)

// Addon 对每个请求/响应执行匹配的hook，并把结果写回flow
type Addon struct {
	proxy.BaseAddon

	env      *env.Env
	registry *hook.Registry
}

func NewAddon(e *env.Env, reg *hook.Registry) *Addon {
	return &Addon{env: e, registry: reg}
}

// RequestMessage 把flow中的请求转换为hook消息
func RequestMessage(f *proxy.Flow) *hook.Message {
	return &hook.Message{
		Kind:    hook.KindRequest,
		URL:     f.Request.URL.String(),
		Method:  f.Request.Method,
		Headers: flatten(f.Request.Header),
		Body:    string(f.Request.Body),
	}
}

// ResponseMessage 把flow中的响应转换为hook消息，消息体已解压
func ResponseMessage(f *proxy.Flow) (*hook.Message, error) {
	body, err := f.Response.DecodedBody()
	if err != nil {
		return nil, err
	}

	return &hook.Message{
		Kind:    hook.KindResponse,
		URL:     f.Request.URL.String(),
		Method:  f.Request.Method,
		Status:  f.Response.StatusCode,
		Headers: flatten(f.Response.Header),
		Body:    string(body),
	}, nil
}

func (a *Addon) Request(f *proxy.Flow) {
	msg := RequestMessage(f)

	out, modified := a.registry.RunAll(context.Background(), a.env, msg)
	if !modified {
		return
	}

	if out.URL != msg.URL {
		u, err := url.Parse(out.URL)
		if err != nil {
			a.env.LogErr(err)
		} else {
			f.Request.URL = u
		}
	}

	for k, v := range out.Headers {
		f.Request.Header.Set(k, v)
	}

	if out.Body != msg.Body {
		f.Request.Body = []byte(out.Body)
		f.Request.Header.Set("Content-Length", strconv.Itoa(len(f.Request.Body)))
	}
}

func (a *Addon) Response(f *proxy.Flow) {
	if f.Response == nil {
		return
	}

	if len(a.registry.Match(hook.KindResponse, f.Request.URL.String())) == 0 {
		return
	}

	msg, err := ResponseMessage(f)
	if err != nil {
		a.env.LogErr(err)
		return
	}

	out, modified := a.registry.RunAll(context.Background(), a.env, msg)
	if !modified {
		return
	}

	if out.Status != 0 {
		f.Response.StatusCode = out.Status
	}

	for k, v := range out.Headers {
		f.Response.Header.Set(k, v)
	}

	if out.Body != msg.Body {
		f.Response.ReplaceToDecodedBody()
		f.Response.Body = []byte(out.Body)
		f.Response.Header.Set("Content-Length", strconv.Itoa(len(f.Response.Body)))
	}
}

func flatten(h map[string][]string) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		if len(v) > 0 {
			out[k] = v[0]
		}
	}
	return out
}
