package main

import (
	"embed"
	"io"
	"io/fs"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	glog "github.com/labstack/gommon/log"
	"golang.org/x/net/http2"

	"qxhooks/internal/env"
	"qxhooks/internal/hook"
)

//go:embed public
var assets embed.FS

// maxStoreValue 单个值的大小上限
const maxStoreValue = 1 << 20

type webHandler struct {
	env      *env.Env
	registry *hook.Registry
}

func newWeb(e *env.Env, reg *hook.Registry) *echo.Echo {
	w := echo.New()
	w.HideBanner = true

	if cfg != nil && cfg.Debug {
		w.Use(middleware.Logger())
		w.Logger.SetLevel(glog.DEBUG)
	}

	w.Use(middleware.Recover())
	w.Use(middleware.Decompress())

	fsys, err := fs.Sub(assets, "public")
	if err != nil {
		log.Fatal(err)
	}

	// 默认寻找静态资源里面的index.html文件
	assetHandler := http.FileServer(http.FS(fsys))
	w.HEAD("/", echo.WrapHandler(assetHandler))
	w.GET("/", echo.WrapHandler(assetHandler))

	h := &webHandler{env: e, registry: reg}

	w.GET("/time", timeHandler)
	w.GET("/hooks", h.listHooks)
	w.POST("/hooks/:name/invoke", h.invoke)

	g := w.Group("/store")
	g.GET("/:key", h.getValue)
	g.PUT("/:key", h.putValue)

	return w
}

func startWeb(w *echo.Echo, bind string) error {
	h2s := &http2.Server{}

	err := w.StartH2CServer(bind, h2s)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func timeHandler(c echo.Context) error {
	return c.String(http.StatusOK, time.Now().String())
}

func (h *webHandler) listHooks(c echo.Context) error {
	return c.JSON(http.StatusOK, h.registry.List())
}

// invoke 对提交的消息执行指定hook，返回结果和处理后的消息
func (h *webHandler) invoke(c echo.Context) error {
	hk, ok := h.registry.Get(c.Param("name"))
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "hook not found")
	}

	msg, err := readMessage(c.Request().Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if msg.Kind == "" {
		msg.Kind = hk.Kind()
	}

	out, err := invokeHook(c.Request().Context(), h.env, hk, msg)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	return c.JSON(http.StatusOK, out)
}

// getValue key可以是 @object.path 形式
func (h *webHandler) getValue(c echo.Context) error {
	key := c.Param("key")
	ctx := c.Request().Context()

	if key == "" || key[0] != '@' {
		if _, found := h.env.GetVal(ctx, key); !found {
			return echo.NewHTTPError(http.StatusNotFound, "key not found")
		}
	}

	return c.String(http.StatusOK, h.env.GetData(ctx, key))
}

func (h *webHandler) putValue(c echo.Context) error {
	key := c.Param("key")

	value, err := io.ReadAll(io.LimitReader(c.Request().Body, maxStoreValue+1))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if len(value) > maxStoreValue {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "value too large")
	}

	if !h.env.SetData(c.Request().Context(), string(value), key) {
		return echo.NewHTTPError(http.StatusInternalServerError, "write failed")
	}

	return c.NoContent(http.StatusNoContent)
}
