// Package digest 提供WBI签名使用的MD5摘要实现
package digest

import (
	"encoding/binary"
	"encoding/hex"
	"hash"
	"math/bits"
	"unicode/utf16"
)

const (
	Size      = 16
	BlockSize = 64
)

// 每轮的循环左移位数
var shifts = [64]uint{
	7, 12, 17, 22, 7, 12, 17, 22, 7, 12, 17, 22, 7, 12, 17, 22,
	5, 9, 14, 20, 5, 9, 14, 20, 5, 9, 14, 20, 5, 9, 14, 20,
	4, 11, 16, 23, 4, 11, 16, 23, 4, 11, 16, 23, 4, 11, 16, 23,
	6, 10, 15, 21, 6, 10, 15, 21, 6, 10, 15, 21, 6, 10, 15, 21,
}

// floor(abs(sin(i+1)) * 2^32)
var table = [64]uint32{
	0xd76aa478, 0xe8c7b756, 0x242070db, 0xc1bdceee, 0xf57c0faf, 0x4787c62a, 0xa8304613, 0xfd469501,
	0x698098d8, 0x8b44f7af, 0xffff5bb1, 0x895cd7be, 0x6b901122, 0xfd987193, 0xa679438e, 0x49b40821,
	0xf61e2562, 0xc040b340, 0x265e5a51, 0xe9b6c7aa, 0xd62f105d, 0x02441453, 0xd8a1e681, 0xe7d3fbc8,
	0x21e1cde6, 0xc33707d6, 0xf4d50d87, 0x455a14ed, 0xa9e3e905, 0xfcefa3f8, 0x676f02d9, 0x8d2a4c8a,
	0xfffa3942, 0x8771f681, 0x6d9d6122, 0xfde5380c, 0xa4beea44, 0x4bdecfa9, 0xf6bb4b60, 0xbebfbc70,
	0x289b7ec6, 0xeaa127fa, 0xd4ef3085, 0x04881d05, 0xd9d4d039, 0xe6db99e5, 0x1fa27cf8, 0xc4ac5665,
	0xf4292244, 0x432aff97, 0xab9423a7, 0xfc93a039, 0x655b59c3, 0x8f0ccc92, 0xffeff47d, 0x85845dd1,
	0x6fa87e4f, 0xfe2ce6e0, 0xa3014314, 0x4e0811a1, 0xf7537e82, 0xbd3af235, 0x2ad7d2bb, 0xeb86d391,
}

type state struct {
	s   [4]uint32
	buf [BlockSize]byte
	nx  int
	len uint64
}

// New 返回一个新的MD5 hash.Hash
func New() hash.Hash {
	d := new(state)
	d.Reset()
	return d
}

func (d *state) Reset() {
	d.s = [4]uint32{0x67452301, 0xefcdab89, 0x98badcfe, 0x10325476}
	d.nx = 0
	d.len = 0
}

func (d *state) Size() int      { return Size }
func (d *state) BlockSize() int { return BlockSize }

func (d *state) Write(p []byte) (int, error) {
	n := len(p)
	d.len += uint64(n)

	if d.nx > 0 {
		c := copy(d.buf[d.nx:], p)
		d.nx += c
		p = p[c:]
		if d.nx == BlockSize {
			d.block(d.buf[:])
			d.nx = 0
		}
	}

	for len(p) >= BlockSize {
		d.block(p[:BlockSize])
		p = p[BlockSize:]
	}

	if len(p) > 0 {
		d.nx = copy(d.buf[:], p)
	}

	return n, nil
}

// Sum 不修改当前状态，可以继续写入
func (d *state) Sum(in []byte) []byte {
	c := *d
	sum := c.checkSum()
	return append(in, sum[:]...)
}

func (d *state) checkSum() [Size]byte {
	bitLen := d.len << 3

	// 先补一个0x80，再补0直到长度 ≡ 56 (mod 64)，最后是64位小端长度
	var pad [BlockSize + 8]byte
	pad[0] = 0x80
	padLen := 56 - int(d.len%BlockSize)
	if padLen <= 0 {
		padLen += BlockSize
	}
	binary.LittleEndian.PutUint64(pad[padLen:], bitLen)
	d.Write(pad[:padLen+8])

	if d.nx != 0 {
		panic("digest: unexpected buffered data after padding")
	}

	var out [Size]byte
	for i, v := range d.s {
		binary.LittleEndian.PutUint32(out[i*4:], v)
	}
	return out
}

func (d *state) block(p []byte) {
	var x [16]uint32
	for i := range x {
		x[i] = binary.LittleEndian.Uint32(p[i*4:])
	}

	a, b, c, dd := d.s[0], d.s[1], d.s[2], d.s[3]

	for i := 0; i < 64; i++ {
		var f uint32
		var g int

		switch i / 16 {
		case 0:
			f = (b & c) | (^b & dd)
			g = i
		case 1:
			f = (dd & b) | (^dd & c)
			g = (5*i + 1) % 16
		case 2:
			f = b ^ c ^ dd
			g = (3*i + 5) % 16
		default:
			f = c ^ (b | ^dd)
			g = (7 * i) % 16
		}

		f += a + table[i] + x[g]
		a = dd
		dd = c
		c = b
		b += bits.RotateLeft32(f, int(shifts[i]))
	}

	d.s[0] += a
	d.s[1] += b
	d.s[2] += c
	d.s[3] += dd
}

// Sum 计算data的MD5摘要
func Sum(data []byte) [Size]byte {
	d := new(state)
	d.Reset()
	d.Write(data)
	return d.checkSum()
}

// MD5Hex 返回32位小写十六进制摘要。
// 文本按UTF-16码元逐个编码为1到3字节，BMP以内与UTF-8相同，
// emoji这类补充平面字符会编码成两个3字节的代理项，和浏览器端的md5脚本结果一致
func MD5Hex(s string) string {
	sum := Sum(encodeUnits(s))
	return hex.EncodeToString(sum[:])
}

func encodeUnits(s string) []byte {
	out := make([]byte, 0, len(s)+len(s)/2)
	for _, u := range utf16.Encode([]rune(s)) {
		switch {
		case u < 0x80:
			out = append(out, byte(u))
		case u < 0x800:
			out = append(out, 0xc0|byte(u>>6), 0x80|byte(u&0x3f))
		default:
			out = append(out, 0xe0|byte(u>>12), 0x80|byte(u>>6&0x3f), 0x80|byte(u&0x3f))
		}
	}
	return out
}
