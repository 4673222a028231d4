package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/imroc/req/v3"
	"github.com/labstack/gommon/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLines(t *testing.T) {
	n := Notification{Title: "之江杯答案", Body: "①[A]"}
	assert.Equal(t, []string{"", "==============📣系统通知📣==============", "之江杯答案", "①[A]"}, n.Lines())
}

func TestLogNotifier(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New("test")
	logger.SetOutput(&buf)
	logger.SetHeader("${level}")

	require.NoError(t, NewLog(logger).Notify(context.Background(), Notification{Title: "t", Subtitle: "s", Body: "b"}))
	assert.Contains(t, buf.String(), "系统通知")
	assert.Contains(t, buf.String(), "t\ns\nb")
}

func TestWebhook(t *testing.T) {
	var got Notification
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	n := Notification{Title: "微信读书登录信息", Body: "VID: 1", Options: Options{OpenURL: "weread://"}}
	require.NoError(t, NewWebhook(srv.URL, req.C()).Notify(context.Background(), n))
	assert.Equal(t, n, got)
}

func TestWebhookStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	err := NewWebhook(srv.URL, nil).Notify(context.Background(), Notification{Title: "x"})
	assert.ErrorContains(t, err, "502")
}

func TestOpen(t *testing.T) {
	logger := log.New("test")

	n, err := Open(Config{}, nil, logger)
	require.NoError(t, err)
	assert.IsType(t, &Log{}, n)

	_, err = Open(Config{Backend: "webhook"}, nil, logger)
	assert.Error(t, err)

	n, err = Open(Config{Backend: "webhook", WebhookURL: "http://127.0.0.1:1"}, req.C(), logger)
	require.NoError(t, err)
	assert.IsType(t, &Webhook{}, n)

	_, err = Open(Config{Backend: "bark"}, nil, logger)
	assert.Error(t, err)
}

func TestRecorder(t *testing.T) {
	r := &Recorder{}
	require.NoError(t, r.Notify(context.Background(), Notification{Title: "a"}))
	sent := r.Sent()
	sent[0].Title = "changed"
	assert.Equal(t, "a", r.Sent()[0].Title)
}
