// Package wbi 实现WBI请求签名：混淆key + 排序查询串 + MD5
package wbi

import (
	"fmt"
	"net/url"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"qxhooks/internal/digest"
)

// 公开的固定置换表，64个下标各出现一次
var mixinKeyEncTab = [64]int{
	46, 47, 18, 2, 53, 8, 23, 32, 15, 50, 10, 31, 58, 3, 45, 35,
	27, 43, 5, 49, 33, 9, 42, 19, 29, 28, 14, 39, 12, 38, 41, 13,
	37, 48, 7, 16, 24, 55, 40, 61, 26, 17, 0, 1, 60, 51, 30, 4,
	22, 25, 54, 21, 56, 59, 6, 63, 57, 62, 11, 36, 20, 34, 44, 52,
}

const mixinKeyLen = 32

// 签名前需要从参数值里去掉的字符
var valueFilter = strings.NewReplacer("!", "", "'", "", "(", "", ")", "", "*", "")

// KeyFromURL 从形如 https://i0.hdslb.com/bfs/wbi/<key>.png 的地址里取出key
func KeyFromURL(u string) string {
	p := u
	if parsed, err := url.Parse(u); err == nil && parsed.Path != "" {
		p = parsed.Path
	}

	base := path.Base(p)
	return strings.TrimSuffix(base, path.Ext(base))
}

// MixinKey 按置换表打乱img_key+sub_key，取前32位
func MixinKey(imgKey, subKey string) (string, error) {
	orig := imgKey + subKey
	if len(orig) < len(mixinKeyEncTab) {
		return "", fmt.Errorf("wbi: key material too short: %d bytes, need %d", len(orig), len(mixinKeyEncTab))
	}

	var b strings.Builder
	b.Grow(mixinKeyLen)
	for _, i := range mixinKeyEncTab[:mixinKeyLen] {
		b.WriteByte(orig[i])
	}

	return b.String(), nil
}

// Signer 持有签名所需的两个key
type Signer struct {
	ImgKey string
	SubKey string

	// Now 为空时使用time.Now，测试时用于固定时间戳
	Now func() time.Time
}

// NewSigner 由两个配置的图片地址构造签名器
func NewSigner(imgURL, subURL string) *Signer {
	return &Signer{
		ImgKey: KeyFromURL(imgURL),
		SubKey: KeyFromURL(subURL),
	}
}

// Sign 返回附带 wts 与 w_rid 的完整查询串
func (s *Signer) Sign(params map[string]string) (string, error) {
	mixinKey, err := MixinKey(s.ImgKey, s.SubKey)
	if err != nil {
		return "", err
	}

	now := time.Now
	if s.Now != nil {
		now = s.Now
	}

	merged := make(map[string]string, len(params)+1)
	for k, v := range params {
		merged[k] = v
	}
	merged["wts"] = strconv.FormatInt(now().Unix(), 10)

	query := EncodeSorted(merged)
	return query + "&w_rid=" + digest.MD5Hex(query+mixinKey), nil
}

// EncodeSorted 按key排序后编码为 key=value&...
func EncodeSorted(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, encodeURIComponent(k)+"="+encodeURIComponent(valueFilter.Replace(params[k])))
	}

	return strings.Join(pairs, "&")
}

// 与浏览器的encodeURIComponent保持一致，空格编码为%20
func encodeURIComponent(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
