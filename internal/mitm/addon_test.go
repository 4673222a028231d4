package mitm

import (
	"bytes"
	"compress/gzip"
	"context"
	"io"
	"net/http"
	"net/url"
	"testing"

	"github.com/labstack/gommon/log"
	"github.com/lqqyt2423/go-mitmproxy/proxy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"qxhooks/internal/env"
	"qxhooks/internal/hook"
)

type replaceHook struct {
	kind hook.Kind
	fn   func(msg *hook.Message) *hook.Result
}

func (r *replaceHook) Name() string    { return "replace-" + string(r.kind) }
func (r *replaceHook) Kind() hook.Kind { return r.kind }
func (r *replaceHook) Pattern() string { return `^https://api\.example\.com/` }

func (r *replaceHook) Handle(_ context.Context, _ *env.Env, msg *hook.Message) (*hook.Result, error) {
	return r.fn(msg), nil
}

func newAddon(t *testing.T, hooks ...hook.Hook) *Addon {
	t.Helper()

	logger := log.New("test")
	logger.SetOutput(io.Discard)

	reg := hook.NewRegistry()
	for _, h := range hooks {
		require.NoError(t, reg.Register(h, ""))
	}
	return NewAddon(env.New("mitm", env.Options{Logger: logger}), reg)
}

func newFlow(t *testing.T, rawURL string) *proxy.Flow {
	t.Helper()

	u, err := url.Parse(rawURL)
	require.NoError(t, err)

	return &proxy.Flow{
		Request: &proxy.Request{
			Method: http.MethodPost,
			URL:    u,
			Header: http.Header{"Vid": []string{"42"}},
			Body:   []byte("a=1"),
		},
	}
}

func TestRequestMessage(t *testing.T) {
	f := newFlow(t, "https://api.example.com/login?x=1")
	msg := RequestMessage(f)

	assert.Equal(t, &hook.Message{
		Kind:    hook.KindRequest,
		URL:     "https://api.example.com/login?x=1",
		Method:  http.MethodPost,
		Headers: map[string]string{"Vid": "42"},
		Body:    "a=1",
	}, msg)
}

func TestAddonRequest(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	a := newAddon(t, &replaceHook{kind: hook.KindRequest, fn: func(msg *hook.Message) *hook.Result {
		u := msg.URL + "&signed=1"
		r := hook.Replace("a=2")
		r.URL = &u
		r.Headers = map[string]string{"X-Hooked": "yes"}
		return r
	}})

	f := newFlow(t, "https://api.example.com/login?x=1")
	a.Request(f)

	assert.Equal(t, "https://api.example.com/login?x=1&signed=1", f.Request.URL.String())
	assert.Equal(t, "a=2", string(f.Request.Body))
	assert.Equal(t, "yes", f.Request.Header.Get("X-Hooked"))
	assert.Equal(t, "3", f.Request.Header.Get("Content-Length"))
}

func TestAddonRequestUnmatched(t *testing.T) {
	a := newAddon(t, &replaceHook{kind: hook.KindRequest, fn: func(*hook.Message) *hook.Result {
		return hook.Replace("changed")
	}})

	f := newFlow(t, "https://other.example.com/")
	a.Request(f)
	assert.Equal(t, "a=1", string(f.Request.Body))
}

func TestAddonResponse(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	var gz bytes.Buffer
	w := gzip.NewWriter(&gz)
	w.Write([]byte(`{"data":{}}`))
	w.Close()

	var seen string
	a := newAddon(t, &replaceHook{kind: hook.KindResponse, fn: func(msg *hook.Message) *hook.Result {
		seen = msg.Body
		return hook.Replace(`{"data":{"data":[]}}`)
	}})

	f := newFlow(t, "https://api.example.com/search")
	f.Response = &proxy.Response{
		StatusCode: http.StatusOK,
		Header:     http.Header{"Content-Encoding": []string{"gzip"}},
		Body:       gz.Bytes(),
	}

	a.Response(f)

	assert.Equal(t, `{"data":{}}`, seen)
	assert.Equal(t, `{"data":{"data":[]}}`, string(f.Response.Body))
	assert.Equal(t, "", f.Response.Header.Get("Content-Encoding"))
	assert.Equal(t, "20", f.Response.Header.Get("Content-Length"))
}

func TestAddonResponsePassThrough(t *testing.T) {
	a := newAddon(t, &replaceHook{kind: hook.KindResponse, fn: func(*hook.Message) *hook.Result {
		return nil
	}})

	f := newFlow(t, "https://api.example.com/search")
	f.Response = &proxy.Response{StatusCode: http.StatusOK, Header: http.Header{}, Body: []byte("orig")}
	a.Response(f)
	assert.Equal(t, "orig", string(f.Response.Body))

	// 没有响应时不处理
	f.Response = nil
	a.Response(f)
}

func TestHostAllowed(t *testing.T) {
	testCases := []struct {
		name     string
		host     string
		expected bool
	}{
		{"ShouldMatchExact", "i.weread.qq.com", true},
		{"ShouldMatchWithPort", "i.weread.qq.com:443", true},
		{"ShouldMatchWildcard", "api.bilibili.com", true},
		{"ShouldMatchCase", "API.BILIBILI.COM", true},
		{"ShouldRejectOther", "example.com", false},
	}

	patterns := []string{"i.weread.qq.com", "*.bilibili.com"}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, HostAllowed(patterns, tc.host))
		})
	}
}
