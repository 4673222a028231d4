package main

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qxhooks/internal/env"
	"qxhooks/internal/hook"
	"qxhooks/internal/notify"
	"qxhooks/internal/scripts"
	"qxhooks/internal/store"
)

const answerBody = `{"code":3001,"data":{"list":[{"win_id":"A"},{"win_id":"C"}]}}`

func newTestWeb(t *testing.T) (*echo.Echo, *env.Env, *notify.Recorder) {
	t.Helper()

	rec := &notify.Recorder{}
	e := env.New("qxhooks-test", env.Options{
		Store:    store.NewMemory(),
		Notifier: rec,
		MuteLog:  true,
	})

	reg := hook.NewRegistry()
	require.NoError(t, scripts.Register(reg, scripts.Config{Enabled: []string{"pushanswer"}}))

	return newWeb(e, reg), e, rec
}

func serve(w *echo.Echo, method, target string, body []byte, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	w.ServeHTTP(rr, req)
	return rr
}

func TestTimeHandler(t *testing.T) {
	w, _, _ := newTestWeb(t)

	rr := serve(w, http.MethodGet, "/time", nil, nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.NotEmpty(t, rr.Body.String())
}

func TestIndexPage(t *testing.T) {
	w, _, _ := newTestWeb(t)

	rr := serve(w, http.MethodGet, "/", nil, nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "qxhooks")
}

func TestListHooks(t *testing.T) {
	w, _, _ := newTestWeb(t)

	rr := serve(w, http.MethodGet, "/hooks", nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var list []hook.Info
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "pushanswer", list[0].Name)
	assert.Equal(t, hook.KindResponse, list[0].Kind)
}

func TestInvoke(t *testing.T) {
	msg, err := json.Marshal(hook.Message{URL: "https://quiz.example/api/question", Status: 200, Body: answerBody})
	require.NoError(t, err)

	t.Run("ShouldRunHookAndNotify", func(t *testing.T) {
		w, _, rec := newTestWeb(t)

		rr := serve(w, http.MethodPost, "/hooks/pushanswer/invoke", msg, map[string]string{echo.HeaderContentType: echo.MIMEApplicationJSON})
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

		var out invokeOutput
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
		assert.Equal(t, "pushanswer", out.Hook)
		assert.False(t, out.Modified)
		assert.Equal(t, answerBody, out.Message.Body)

		require.Len(t, rec.Sent(), 1)
		assert.Equal(t, "①[A],②[C]", rec.Sent()[0].Body)
	})

	t.Run("ShouldAcceptGzipBody", func(t *testing.T) {
		w, _, rec := newTestWeb(t)

		var buf bytes.Buffer
		gz := gzip.NewWriter(&buf)
		_, err := gz.Write(msg)
		require.NoError(t, err)
		require.NoError(t, gz.Close())

		rr := serve(w, http.MethodPost, "/hooks/pushanswer/invoke", buf.Bytes(), map[string]string{echo.HeaderContentEncoding: "gzip"})
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		assert.Len(t, rec.Sent(), 1)
	})

	t.Run("ShouldRejectUnknownHook", func(t *testing.T) {
		w, _, _ := newTestWeb(t)

		rr := serve(w, http.MethodPost, "/hooks/nope/invoke", msg, nil)
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("ShouldRejectWrongKind", func(t *testing.T) {
		w, _, _ := newTestWeb(t)

		rr := serve(w, http.MethodPost, "/hooks/pushanswer/invoke", []byte(`{"kind":"request","url":"https://quiz.example/question"}`), nil)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("ShouldRejectBadJSON", func(t *testing.T) {
		w, _, _ := newTestWeb(t)

		rr := serve(w, http.MethodPost, "/hooks/pushanswer/invoke", []byte("oops"), nil)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestStoreEndpoints(t *testing.T) {
	w, e, _ := newTestWeb(t)
	ctx := context.Background()

	rr := serve(w, http.MethodGet, "/store/missing", nil, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = serve(w, http.MethodPut, "/store/wr_github_token", []byte("ghp_x"), nil)
	require.Equal(t, http.StatusNoContent, rr.Code)
	v, found := e.GetVal(ctx, "wr_github_token")
	assert.True(t, found)
	assert.Equal(t, "ghp_x", v)

	rr = serve(w, http.MethodGet, "/store/wr_github_token", nil, nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ghp_x", rr.Body.String())

	rr = serve(w, http.MethodPut, "/store/@cfg.httpapi", []byte("key@127.0.0.1:6166"), nil)
	require.Equal(t, http.StatusNoContent, rr.Code)

	rr = serve(w, http.MethodGet, "/store/@cfg.httpapi", nil, nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "key@127.0.0.1:6166", rr.Body.String())

	rr = serve(w, http.MethodPut, "/store/big", []byte(strings.Repeat("x", maxStoreValue+1)), nil)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
}
