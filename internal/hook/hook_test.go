package hook

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/labstack/gommon/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qxhooks/internal/env"
)

type fakeHook struct {
	name    string
	kind    Kind
	pattern string
	handle  func(msg *Message) (*Result, error)
}

func (f *fakeHook) Name() string    { return f.name }
func (f *fakeHook) Kind() Kind      { return f.kind }
func (f *fakeHook) Pattern() string { return f.pattern }

func (f *fakeHook) Handle(_ context.Context, _ *env.Env, msg *Message) (*Result, error) {
	return f.handle(msg)
}

func newEnv() (*env.Env, *bytes.Buffer) {
	var buf bytes.Buffer
	logger := log.New("test")
	logger.SetOutput(&buf)
	return env.New("host", env.Options{Logger: logger}), &buf
}

func TestMessageHeader(t *testing.T) {
	m := &Message{Headers: map[string]string{"Skey": "a", "vid": "1"}}
	assert.Equal(t, "a", m.Header("skey"))
	assert.Equal(t, "1", m.Header("vid"))
	assert.Equal(t, "", m.Header("missing"))
}

func TestResultApply(t *testing.T) {
	msg := &Message{URL: "u", Body: "old", Status: 200}

	var nilResult *Result
	nilResult.Apply(msg)
	assert.False(t, nilResult.Modified())
	assert.False(t, PassThrough().Modified())

	r := Replace("new")
	r.Headers = map[string]string{"X-Hook": "1"}
	r.Status = 201
	require.True(t, r.Modified())
	r.Apply(msg)

	assert.Equal(t, &Message{URL: "u", Body: "new", Status: 201, Headers: map[string]string{"X-Hook": "1"}}, msg)

	u := "https://example.com/?a=1"
	(&Result{URL: &u}).Apply(msg)
	assert.Equal(t, u, msg.URL)
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	ok := func(*Message) (*Result, error) { return nil, nil }

	require.NoError(t, reg.Register(&fakeHook{name: "b", kind: KindRequest, pattern: `^https://a\.example/`, handle: ok}, ""))
	require.NoError(t, reg.Register(&fakeHook{name: "a", kind: KindRequest, pattern: `never`, handle: ok}, `^https://a\.example/login`))
	require.NoError(t, reg.Register(&fakeHook{name: "c", kind: KindResponse, pattern: `.*`, handle: ok}, ""))
	assert.Error(t, reg.Register(&fakeHook{name: "d", kind: KindRequest, pattern: `(`, handle: ok}, ""))

	matched := reg.Match(KindRequest, "https://a.example/login")
	require.Len(t, matched, 2)
	assert.Equal(t, "a", matched[0].Name())
	assert.Equal(t, "b", matched[1].Name())

	assert.Len(t, reg.Match(KindRequest, "https://b.example/"), 0)
	assert.Len(t, reg.Match(KindResponse, "https://b.example/"), 1)

	h, found := reg.Get("c")
	require.True(t, found)
	assert.Equal(t, KindResponse, h.Kind())
	_, found = reg.Get("zzz")
	assert.False(t, found)

	assert.Equal(t, []Info{
		{Name: "a", Kind: KindRequest, Pattern: `^https://a\.example/login`},
		{Name: "b", Kind: KindRequest, Pattern: `^https://a\.example/`},
		{Name: "c", Kind: KindResponse, Pattern: `.*`},
	}, reg.List())
}

func TestRunAlwaysReturnsResult(t *testing.T) {
	ctx := context.Background()

	t.Run("ShouldRecoverPanic", func(t *testing.T) {
		e, buf := newEnv()
		res := Run(ctx, e, &fakeHook{name: "panicky", handle: func(*Message) (*Result, error) {
			panic("boom")
		}}, &Message{})

		require.NotNil(t, res)
		assert.False(t, res.Modified())
		assert.Contains(t, buf.String(), "boom")
		assert.Contains(t, buf.String(), "🔔panicky, 结束!")
	})

	t.Run("ShouldSwallowError", func(t *testing.T) {
		e, buf := newEnv()
		res := Run(ctx, e, &fakeHook{name: "failing", handle: func(*Message) (*Result, error) {
			return Replace("ignored"), errors.New("bad body")
		}}, &Message{})

		assert.False(t, res.Modified())
		assert.Contains(t, buf.String(), "❗️failing, 错误!")
	})

	t.Run("ShouldNormaliseNil", func(t *testing.T) {
		e, _ := newEnv()
		res := Run(ctx, e, &fakeHook{name: "nil", handle: func(*Message) (*Result, error) {
			return nil, nil
		}}, &Message{})
		assert.NotNil(t, res)
	})
}

func TestRunAll(t *testing.T) {
	ctx := context.Background()
	e, _ := newEnv()
	reg := NewRegistry()

	require.NoError(t, reg.Register(&fakeHook{name: "1-upper", kind: KindResponse, pattern: `.*`, handle: func(m *Message) (*Result, error) {
		return Replace(m.Body + "-one"), nil
	}}, ""))
	require.NoError(t, reg.Register(&fakeHook{name: "2-second", kind: KindResponse, pattern: `.*`, handle: func(m *Message) (*Result, error) {
		r := Replace(m.Body + "-two")
		r.Headers = map[string]string{"X-Seen": "yes"}
		return r, nil
	}}, ""))

	orig := &Message{Kind: KindResponse, URL: "https://x", Body: "body", Headers: map[string]string{"A": "1"}}
	out, modified := reg.RunAll(ctx, e, orig)

	assert.True(t, modified)
	assert.Equal(t, "body-one-two", out.Body)
	assert.Equal(t, map[string]string{"A": "1", "X-Seen": "yes"}, out.Headers)
	assert.Equal(t, "body", orig.Body)
	assert.Equal(t, map[string]string{"A": "1"}, orig.Headers)

	same, modified := reg.RunAll(ctx, e, &Message{Kind: KindRequest, URL: "https://x"})
	assert.False(t, modified)
	assert.Equal(t, "https://x", same.URL)
}
