package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"

	"qxhooks/internal/mitm"
	"qxhooks/internal/notify"
	"qxhooks/internal/scripts"
	"qxhooks/internal/store"
)

const CONFIG_FILE_NAME = "qxhooks.yml"

// .env 或环境变量里可以提供的值，启动时写入存储
var envSeeds = map[string]string{
	"QXHOOKS_GITHUB_TOKEN": scripts.KeyGithubToken,
	"QXHOOKS_GIST_ID":      scripts.KeyGistID,
	"QXHOOKS_WBI_IMG_URL":  scripts.KeyWbiImgURL,
	"QXHOOKS_WBI_SUB_URL":  scripts.KeyWbiSubURL,
}

type WebConfig struct {
	Bind string `yaml:"bind"`
}

type EnvConfig struct {
	Name    string `yaml:"name"`
	Mute    bool   `yaml:"mute"`
	MuteLog bool   `yaml:"mute_log"`
	// Seed 存储中不存在时写入的初始值
	Seed map[string]string `yaml:"seed"`
}

type Config struct {
	Debug   bool           `yaml:"debug"`
	Web     WebConfig      `yaml:"web"`
	Proxy   mitm.Config    `yaml:"proxy"`
	Store   store.Config   `yaml:"store"`
	Notify  notify.Config  `yaml:"notify"`
	Scripts scripts.Config `yaml:"scripts"`
	Env     EnvConfig      `yaml:"env"`
}

// DefaultConfig 没有配置文件时使用
func DefaultConfig() *Config {
	return &Config{
		Web:   WebConfig{Bind: "127.0.0.1:3000"},
		Proxy: mitm.Config{Addr: ":9080"},
		Store: store.Config{Backend: "file", Path: store.DefaultDataFile},
		Env:   EnvConfig{Name: "qxhooks"},
	}
}

func ParseConfig(p string) (*Config, error) {
	c := DefaultConfig()

	content, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("打开配置文件%s失败: %w", p, err)
	}

	if err = yaml.Unmarshal(content, c); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	return c, nil
}

// loadDotEnv 读取当前目录的.env，不存在时忽略
func loadDotEnv() error {
	err := godotenv.Load()
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// seedValues 合并配置和环境变量中的初始值，环境变量优先
func seedValues(c *Config) map[string]string {
	seeds := map[string]string{}
	for k, v := range c.Env.Seed {
		seeds[k] = v
	}
	for envKey, storeKey := range envSeeds {
		if v := os.Getenv(envKey); v != "" {
			seeds[storeKey] = v
		}
	}
	return seeds
}

func searchConfig() (err error) {
	var cwd, userHome string

	cwd, err = os.Getwd()
	if err != nil {
		return
	}

	if cfgPath != "" {
		if fileReadable(cfgPath) {
			cfgPath, err = filepath.Abs(cfgPath)
			if err != nil {
				cfgPath = ""
				return
			}

			return
		}

		err = fmt.Errorf("配置文件%s不存在或不可读", cfgPath)
		cfgPath = ""
		return
	} else {
		cfgPath = fmt.Sprintf("%s/etc/%s", cwd, CONFIG_FILE_NAME)
		if fileReadable(cfgPath) {
			return
		}

		userHome, err = os.UserHomeDir()
		if err != nil {
			cfgPath = ""
			return
		}

		cfgPath = fmt.Sprintf("%s/.%s", userHome, CONFIG_FILE_NAME)
		if dirExists(userHome) && fileReadable(cfgPath) {
			return
		}

		cfgPath = ""
	}

	return
}

func fileReadable(f string) bool {
	info, err := os.Stat(f)
	if err != nil {
		return false
	}

	if info.Mode().Perm()&0444 != 0444 {
		return false
	}

	return true
}

func dirExists(d string) bool {
	info, err := os.Stat(d)
	if err != nil {
		return false
	}

	if !info.IsDir() {
		return false
	}

	return true
}
