package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/imroc/req/v3"
	glog "github.com/labstack/gommon/log"
	"github.com/spf13/cobra"

	"qxhooks/internal/env"
	"qxhooks/internal/hook"
	"qxhooks/internal/mitm"
	"qxhooks/internal/notify"
	"qxhooks/internal/scripts"
	"qxhooks/internal/store"
	"qxhooks/internal/wbi"
)

const UA = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Mobile/15E148 MicroMessenger/8.0.47"

var (
	globalClient = req.C().SetUserAgent(UA)

	cfg *Config

	enableDebug bool
	enableProxy bool
	bindAddr    string
	listenAddr  string
	cfgPath     string
	rootCmd     = &cobra.Command{
		Use:     filepath.Base(os.Args[0]),
		Short:   "运行Quantumult X拦截脚本的中间人代理",
		Version: VERSION,
		Run:     runServer,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := loadDotEnv(); err != nil {
				return err
			}

			if enableDebug {
				globalClient.EnableDebugLog()
				globalClient.EnableDumpEachRequest()
			}

			if !enableProxy {
				globalClient.SetProxy(nil)
			}

			globalClient.SetTimeout(30 * time.Second)

			return loadConfig()
		},
	}
)

func init() {
	rootCmd.PersistentFlags().BoolVarP(&enableDebug, "debug", "d", false, "enable debug log level (default not enable)")
	rootCmd.PersistentFlags().BoolVarP(&enableProxy, "proxy", "p", false, "enable use system proxy for outgoing requests (default not enable)")
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file path (default name is "+CONFIG_FILE_NAME+")")
	rootCmd.PersistentFlags().StringVarP(&bindAddr, "bind", "b", "", "tcp address that admin web server listen (default is 127.0.0.1:3000)")
	rootCmd.PersistentFlags().StringVarP(&listenAddr, "listen", "l", "", "tcp address that mitm proxy listen (default is :9080)")

	rootCmd.AddCommand(runCmd, storeCmd, wbiCmd)
}

// loadConfig 没找到配置文件时使用默认配置，命令行参数优先
func loadConfig() error {
	if err := searchConfig(); err != nil {
		return err
	}

	if cfgPath == "" {
		cfg = DefaultConfig()
	} else {
		c, err := ParseConfig(cfgPath)
		if err != nil {
			return err
		}
		cfg = c
	}

	if enableDebug {
		cfg.Debug = true
	}
	if bindAddr != "" {
		cfg.Web.Bind = bindAddr
	}
	if listenAddr != "" {
		cfg.Proxy.Addr = listenAddr
	}

	return nil
}

// newRuntime 按配置打开存储和通知，返回共享的运行环境和已注册脚本的registry
func newRuntime(ctx context.Context, c *Config) (*env.Env, *hook.Registry, error) {
	logger := glog.New(c.Env.Name)
	if c.Debug {
		logger.SetLevel(glog.DEBUG)
	} else {
		logger.SetLevel(glog.INFO)
	}

	s, err := store.Open(ctx, c.Store)
	if err != nil {
		return nil, nil, fmt.Errorf("打开存储失败: %w", err)
	}

	n, err := notify.Open(c.Notify, globalClient, logger)
	if err != nil {
		s.Close()
		return nil, nil, fmt.Errorf("创建通知失败: %w", err)
	}

	e := env.New(c.Env.Name, env.Options{
		Store:    s,
		HTTP:     globalClient,
		Notifier: n,
		Logger:   logger,
		Mute:     c.Env.Mute,
		MuteLog:  c.Env.MuteLog,
		Debug:    c.Debug,
	})

	for key, value := range seedValues(c) {
		if _, found := e.GetVal(ctx, key); !found {
			e.SetVal(ctx, value, key)
		}
	}

	reg := hook.NewRegistry()
	if err = scripts.Register(reg, c.Scripts); err != nil {
		s.Close()
		return nil, nil, err
	}

	return e, reg, nil
}

func runServer(cmd *cobra.Command, args []string) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	e, reg, err := newRuntime(ctx, cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer e.Store().Close()

	p, err := mitm.New(cfg.Proxy, e, reg)
	if err != nil {
		log.Fatal(err)
	}

	go func() {
		e.Logger().Infof("mitm proxy listen on %s", p.Addr())
		if err := p.Start(); err != nil {
			e.Logger().Errorf("mitm proxy stopped: %v", err)
			stop()
		}
	}()

	w := newWeb(e, reg)
	go func() {
		if err := startWeb(w, cfg.Web.Bind); err != nil {
			e.Logger().Errorf("web server stopped: %v", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	w.Shutdown(shutdownCtx)
	p.Close()
}

var runCmd = &cobra.Command{
	Use:   "run <hook> <message.json>",
	Short: "对保存的请求或响应执行一次hook，输出处理结果",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		e, reg, err := newRuntime(ctx, cfg)
		if err != nil {
			return err
		}
		defer e.Store().Close()

		h, ok := reg.Get(args[0])
		if !ok {
			return fmt.Errorf("hook %q not found", args[0])
		}

		msg, err := readMessageFile(args[1])
		if err != nil {
			return err
		}
		if msg.Kind == "" {
			msg.Kind = h.Kind()
		}

		out, err := invokeHook(ctx, e, h, msg)
		if err != nil {
			return err
		}

		return printJSON(cmd.OutOrStdout(), out)
	},
}

var storeCmd = &cobra.Command{
	Use:   "store",
	Short: "读写脚本使用的持久化存储",
}

var storeGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "读取一个key，支持 @object.path",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, _, err := newRuntime(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer e.Store().Close()

		fmt.Fprintln(cmd.OutOrStdout(), e.GetData(cmd.Context(), args[0]))
		return nil
	},
}

var storeSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "写入一个key，支持 @object.path",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, _, err := newRuntime(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer e.Store().Close()

		if !e.SetData(cmd.Context(), args[1], args[0]) {
			return fmt.Errorf("写入 %s 失败", args[0])
		}
		return nil
	},
}

var (
	wbiImgURL string
	wbiSubURL string

	wbiCmd = &cobra.Command{
		Use:   "wbi",
		Short: "B站WBI签名工具",
	}

	wbiSignCmd = &cobra.Command{
		Use:   "sign key=value...",
		Short: "对查询参数签名，输出带 wts 和 w_rid 的查询串",
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := parseParams(args)
			if err != nil {
				return err
			}

			img, sub := wbiImgURL, wbiSubURL
			if img == "" {
				img = cfg.Scripts.WbiImgURL
			}
			if sub == "" {
				sub = cfg.Scripts.WbiSubURL
			}

			q, err := wbi.NewSigner(img, sub).Sign(params)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), q)
			return nil
		},
	}
)

func init() {
	storeCmd.AddCommand(storeGetCmd, storeSetCmd)

	wbiSignCmd.Flags().StringVar(&wbiImgURL, "img", "", "img_url from nav api")
	wbiSignCmd.Flags().StringVar(&wbiSubURL, "sub", "", "sub_url from nav api")
	wbiCmd.AddCommand(wbiSignCmd)
}
