// Package source 负责把原始字节转换成可用的源码文本：按声明或探测到的
// charset 解码，并剥离开头的解释器指令行（shebang）。
package source

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/unicode"
)

// DecodeError 表示字节内容无法按声明/探测到的字符集解码为合法文本。
type DecodeError struct {
	Charset string
	Err     error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("failed to decode content as %q: %v", e.Charset, e.Err)
	}
	return fmt.Sprintf("failed to decode content as %q", e.Charset)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// 可识别的三种 BOM 签名。
var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16BE = []byte{0xFE, 0xFF}
	bomUTF16LE = []byte{0xFF, 0xFE}
)

// DetectCharset 通过 BOM 探测字符集，无 BOM 时默认 utf-8。
func DetectCharset(b []byte) string {
	switch {
	case bytes.HasPrefix(b, bomUTF8):
		return "utf-8"
	case bytes.HasPrefix(b, bomUTF16BE):
		return "utf-16be"
	case bytes.HasPrefix(b, bomUTF16LE):
		return "utf-16le"
	default:
		return "utf-8"
	}
}

// Decode 把字节按 charset 解码为文本。charset 为空时先走 BOM 探测。
// BOM 对应的码点（U+FEFF）保留在输出里，由上层决定是否剥离。
func Decode(b []byte, charset string) (string, error) {
	if charset == "" {
		charset = DetectCharset(b)
	}

	switch normalizeCharsetName(charset) {
	case "utf-8":
		if !utf8.Valid(b) {
			return "", &DecodeError{Charset: charset}
		}
		return string(b), nil
	case "utf-16le":
		return decodeUTF16(b, charset, unicode.LittleEndian)
	case "utf-16be":
		return decodeUTF16(b, charset, unicode.BigEndian)
	default:
		return decodeNamed(b, charset)
	}
}

func decodeUTF16(b []byte, charset string, endianness unicode.Endianness) (string, error) {
	if len(b)%2 != 0 {
		return "", &DecodeError{Charset: charset, Err: fmt.Errorf("odd byte length %d", len(b))}
	}
	dec := unicode.UTF16(endianness, unicode.IgnoreBOM).NewDecoder()
	decoded, err := dec.Bytes(b)
	if err != nil {
		return "", &DecodeError{Charset: charset, Err: err}
	}
	return string(decoded), nil
}

// decodeNamed 通过 IANA 注册表解析 charset 名称（如 windows-1255）。
func decodeNamed(b []byte, charset string) (string, error) {
	enc, err := ianaindex.IANA.Encoding(charset)
	if err != nil || enc == nil {
		return "", &DecodeError{Charset: charset, Err: fmt.Errorf("unknown charset")}
	}
	decoded, err := decoderFor(enc).Bytes(b)
	if err != nil {
		return "", &DecodeError{Charset: charset, Err: err}
	}
	return string(decoded), nil
}

func decoderFor(enc encoding.Encoding) *encoding.Decoder {
	return enc.NewDecoder()
}

func normalizeCharsetName(charset string) string {
	name := strings.ToLower(strings.TrimSpace(charset))
	switch name {
	case "utf8":
		return "utf-8"
	case "utf-16", "utf16", "utf16le", "utf-16le":
		return "utf-16le"
	case "utf16be", "utf-16be":
		return "utf-16be"
	default:
		return name
	}
}

// StripShebang 删除开头的 `#!` 行（含换行符本身）；没有换行时清空全文。
// 本地与远端来源的文本都会无条件经过这一步。
func StripShebang(text string) string {
	if !strings.HasPrefix(text, "#!") {
		return text
	}
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		return text[i+1:]
	}
	return ""
}
