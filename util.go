package main

import (
	"bufio"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"qxhooks/internal/env"
	"qxhooks/internal/hook"
)

// invokeOutput 单次调用hook的输出
type invokeOutput struct {
	Hook     string        `json:"hook"`
	Modified bool          `json:"modified"`
	Result   *hook.Result  `json:"result"`
	Message  *hook.Message `json:"message"`
}

func invokeHook(ctx context.Context, e *env.Env, h hook.Hook, msg *hook.Message) (*invokeOutput, error) {
	if msg.Kind != h.Kind() {
		return nil, fmt.Errorf("hook %s 只处理%s，收到的是%s", h.Name(), h.Kind(), msg.Kind)
	}

	msg.URL = processPrefix(msg.URL)
	if msg.Headers == nil {
		msg.Headers = map[string]string{}
	}

	res := hook.Run(ctx, e, h, msg)

	out := *msg
	res.Apply(&out)

	return &invokeOutput{
		Hook:     h.Name(),
		Modified: res.Modified(),
		Result:   res,
		Message:  &out,
	}, nil
}

// readMessageFile 读取保存下来的消息，支持gzip压缩过的文件
func readMessageFile(p string) (*hook.Message, error) {
	f, err := os.Open(p)
	if err != nil {
		return nil, fmt.Errorf("打开消息文件%s失败: %w", p, err)
	}
	defer f.Close()

	return readMessage(f)
}

func readMessage(input io.Reader) (*hook.Message, error) {
	br := bufio.NewReader(input)
	var reader io.Reader = br

	peek, err := br.Peek(2)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("读取数据失败: %w", err)
	}

	if len(peek) >= 2 && peek[0] == 0x1f && peek[1] == 0x8b {
		gzReader, err := gzip.NewReader(reader)
		if err != nil {
			return nil, fmt.Errorf("gzip解压失败: %w", err)
		}
		defer gzReader.Close()
		reader = gzReader
	}

	msg := &hook.Message{}
	if err := json.NewDecoder(reader).Decode(msg); err != nil {
		return nil, fmt.Errorf("解析消息失败: %w", err)
	}

	if msg.URL == "" {
		return nil, fmt.Errorf("消息缺少url")
	}

	return msg, nil
}

// processPrefix 自动补全协议头，没有协议时按https处理
func processPrefix(p string) string {
	rawPath := strings.TrimSpace(p)

	for strings.HasPrefix(rawPath, "/") {
		rawPath = strings.TrimPrefix(rawPath, "/")
	}

	if strings.HasPrefix(rawPath, "https://") || strings.HasPrefix(rawPath, "http://") {
		return rawPath
	}

	if strings.HasPrefix(rawPath, "http:/") || strings.HasPrefix(rawPath, "https:/") {
		rawPath = strings.Replace(rawPath, "http:/", "", 1)
		rawPath = strings.Replace(rawPath, "https:/", "", 1)
	}

	return "https://" + rawPath
}

// parseParams 把 key=value 形式的参数转换为map
func parseParams(args []string) (map[string]string, error) {
	params := make(map[string]string, len(args))
	for _, arg := range args {
		k, v, ok := strings.Cut(arg, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("参数格式应为key=value: %q", arg)
		}
		params[k] = v
	}
	return params, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
