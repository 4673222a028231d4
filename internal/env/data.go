package env

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	indexSyntax  = regexp.MustCompile(`\[(\d+)\]`)
	pathSegments = regexp.MustCompile(`[^.\[\]]+`)
)

// GetVal 直接读取存储中的值，不存在时返回空串
func (e *Env) GetVal(ctx context.Context, key string) (string, bool) {
	v, err := e.store.Read(ctx, key)
	if err != nil {
		if !isNotFound(err) {
			e.logger.Warnf("读取 %s 失败: %v", key, err)
		}
		return "", false
	}
	return v, true
}

// SetVal 直接写入存储
func (e *Env) SetVal(ctx context.Context, value, key string) bool {
	if err := e.store.Write(ctx, key, value); err != nil {
		e.logger.Warnf("写入 %s 失败: %v", key, err)
		return false
	}
	return true
}

// splitObjectKey 拆分 @object.path.to.field
func splitObjectKey(key string) (object, path string, ok bool) {
	if !strings.HasPrefix(key, "@") {
		return "", "", false
	}

	object, path, ok = strings.Cut(key[1:], ".")
	if !ok || object == "" {
		return "", "", false
	}
	return object, path, true
}

// GetData 读取普通key，或用 @object.path 读取object中存放的JSON的某个字段
func (e *Env) GetData(ctx context.Context, key string) string {
	object, path, ok := splitObjectKey(key)
	if !ok {
		v, _ := e.GetVal(ctx, key)
		return v
	}

	blob, found := e.GetVal(ctx, object)
	if !found || blob == "" {
		return ""
	}

	var root any
	if err := json.Unmarshal([]byte(blob), &root); err != nil {
		return ""
	}

	v, found := getPath(root, path)
	if !found {
		return ""
	}
	return stringify(v)
}

// SetData 写入普通key，或更新 @object.path 指向的字段，中间缺失的层级自动创建
func (e *Env) SetData(ctx context.Context, value, key string) bool {
	object, path, ok := splitObjectKey(key)
	if !ok {
		return e.SetVal(ctx, value, key)
	}

	var root any
	blob, _ := e.GetVal(ctx, object)
	if blob != "" && blob != "null" {
		if err := json.Unmarshal([]byte(blob), &root); err != nil {
			root = nil
		}
	}

	switch root.(type) {
	case map[string]any, []any:
	default:
		root = map[string]any{}
	}

	root, ok = setPath(root, pathSegments.FindAllString(path, -1), value)
	if !ok {
		e.logger.Warnf("无法写入 %s: 路径与已有数据结构不符", key)
		return false
	}

	b, err := json.Marshal(root)
	if err != nil {
		return false
	}
	return e.SetVal(ctx, string(b), object)
}

// GetJSON 读取并解析JSON，不存在或解析失败返回def
func GetJSON[T any](ctx context.Context, e *Env, key string, def T) T {
	raw := e.GetData(ctx, key)
	if raw == "" {
		return def
	}
	return ToObj(raw, def)
}

// SetJSON 序列化后写入
func (e *Env) SetJSON(ctx context.Context, v any, key string) bool {
	b, err := json.Marshal(v)
	if err != nil {
		return false
	}
	return e.SetData(ctx, string(b), key)
}

// getPath 支持 a.b[0].c 形式的路径
func getPath(root any, path string) (any, bool) {
	cur := root
	for _, seg := range strings.Split(indexSyntax.ReplaceAllString(path, ".$1"), ".") {
		switch node := cur.(type) {
		case map[string]any:
			v, ok := node[seg]
			if !ok {
				return nil, false
			}
			cur = v
		case []any:
			i, err := strconv.Atoi(seg)
			if err != nil || i < 0 || i >= len(node) {
				return nil, false
			}
			cur = node[i]
		default:
			return nil, false
		}
	}
	return cur, true
}

// setPath 路径无法写入时（例如在数组上使用非下标的字段名）返回false
func setPath(node any, segs []string, value any) (any, bool) {
	if len(segs) == 0 {
		return value, true
	}

	seg, rest := segs[0], segs[1:]

	switch n := node.(type) {
	case map[string]any:
		child, ok := setPath(container(n[seg], rest), rest, value)
		if !ok {
			return n, false
		}
		n[seg] = child
		return n, true
	case []any:
		i, ok := arrayIndex(seg)
		if !ok {
			return n, false
		}
		for len(n) <= i {
			n = append(n, nil)
		}
		child, ok := setPath(container(n[i], rest), rest, value)
		if !ok {
			return n, false
		}
		n[i] = child
		return n, true
	}

	return node, false
}

// container 下一层已是对象或数组时沿用，否则按下一段是否为下标新建
func container(child any, rest []string) any {
	if len(rest) == 0 {
		return child
	}

	switch child.(type) {
	case map[string]any, []any:
		return child
	}

	if _, ok := arrayIndex(rest[0]); ok {
		return []any{}
	}
	return map[string]any{}
}

func arrayIndex(seg string) (int, bool) {
	i, err := strconv.Atoi(seg)
	if err != nil || i < 0 || strconv.Itoa(i) != seg {
		return 0, false
	}
	return i, true
}

func stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(b)
	}
}
