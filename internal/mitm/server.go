package mitm

import (
	"net"
	"net/http"
	"path"
	"strings"

	"github.com/lqqyt2423/go-mitmproxy/proxy"

	"qxhooks/internal/env"
	"qxhooks/internal/hook"
)

type Config struct {
	Addr              string `yaml:"addr"`
	SslInsecure       bool   `yaml:"ssl_insecure"`
	StreamLargeBodies int64  `yaml:"stream_large_bodies"`
	CaRootPath        string `yaml:"ca_root_path"`
	// Hostnames 需要解密的域名，支持 *.example.com，为空时全部解密
	Hostnames []string `yaml:"hostnames"`
}

// Server 拦截代理
type Server struct {
	p   *proxy.Proxy
	cfg Config
}

func New(cfg Config, e *env.Env, reg *hook.Registry) (*Server, error) {
	if cfg.Addr == "" {
		cfg.Addr = ":9080"
	}
	if cfg.StreamLargeBodies <= 0 {
		cfg.StreamLargeBodies = 1024 * 1024 * 5
	}

	p, err := proxy.NewProxy(&proxy.Options{
		Addr:              cfg.Addr,
		StreamLargeBodies: cfg.StreamLargeBodies,
		SslInsecure:       cfg.SslInsecure,
		CaRootPath:        cfg.CaRootPath,
	})
	if err != nil {
		return nil, err
	}

	if len(cfg.Hostnames) > 0 {
		p.SetShouldInterceptRule(func(req *http.Request) bool {
			return HostAllowed(cfg.Hostnames, req.URL.Host)
		})
	}

	p.AddAddon(NewAddon(e, reg))

	return &Server{p: p, cfg: cfg}, nil
}

func (s *Server) Addr() string { return s.cfg.Addr }

func (s *Server) Start() error {
	return s.p.Start()
}

func (s *Server) Close() error {
	return s.p.Close()
}

// HostAllowed host（可带端口）是否在需要解密的域名列表中
func HostAllowed(patterns []string, host string) bool {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.ToLower(host)

	for _, p := range patterns {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == host {
			return true
		}
		if ok, err := path.Match(p, host); err == nil && ok {
			return true
		}
	}
	return false
}
