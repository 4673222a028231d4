// Package body 解析被拦截请求的请求体
package body

import (
	"encoding/json"
	"errors"
	"net/url"
	"strings"
	"unicode/utf8"
)

var errInvalidUTF8 = errors.New("body: invalid utf-8 after unescape")

// RawKey 无法解析时原始内容所在的字段
const RawKey = "raw"

// Parse 依次尝试：URL解码 -> JSON对象 -> 表单键值对 -> {raw: 原文}
func Parse(raw string) map[string]any {
	if raw == "" {
		return map[string]any{}
	}

	text, err := unescape(raw)
	if err != nil {
		return map[string]any{RawKey: raw}
	}

	trimmed := strings.TrimSpace(text)
	if strings.HasPrefix(trimmed, "{") && strings.HasSuffix(trimmed, "}") {
		obj := map[string]any{}
		if err := json.Unmarshal([]byte(trimmed), &obj); err != nil {
			return map[string]any{RawKey: raw}
		}
		return obj
	}

	form, ok := parseForm(text)
	if !ok {
		return map[string]any{RawKey: raw}
	}

	return form
}

// 只保留key和value都非空的键值对，a=b=c 只取 b
func parseForm(text string) (map[string]any, bool) {
	result := map[string]any{}

	for _, param := range strings.Split(text, "&") {
		parts := strings.Split(param, "=")
		if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
			continue
		}

		value, err := unescape(parts[1])
		if err != nil {
			return nil, false
		}
		result[parts[0]] = value
	}

	return result, len(result) > 0
}

// unescape 百分号解码，解码结果不是合法UTF-8时也算失败
func unescape(s string) (string, error) {
	text, err := url.PathUnescape(s)
	if err != nil {
		return "", err
	}
	if !utf8.ValidString(text) {
		return "", errInvalidUTF8
	}
	return text, nil
}

// ParseJSON 解析JSON对象，失败时返回def
func ParseJSON(data []byte, def map[string]any) map[string]any {
	obj := map[string]any{}
	if err := json.Unmarshal(data, &obj); err != nil {
		return def
	}
	return obj
}
