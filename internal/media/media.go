// Package media 负责把模块 specifier 与可选的 content-type 头映射为
// 语言/格式分类（Kind），供 fetcher 在构建 File 时使用。分类表全部以
// 字面量 map 维护，方便审计 `.d.ts`、charset 等边界情况。
package media

import (
	"net/url"
	"path"
	"strings"
)

// Kind 表示源文件的语言/格式分类，闭集枚举，无法识别时落到 Unknown。
type Kind int

const (
	Unknown Kind = iota
	TypeScript
	JSX
	TSX
	JavaScript
	Json
	Wasm
	// Dts 表示 `.d.ts` 类型声明文件；它没有独立的 MIME 类型，只能
	// 通过扩展名与 stem 后缀猜测。
	Dts
)

var kindNames = map[Kind]string{
	Unknown:    "Unknown",
	TypeScript: "TypeScript",
	JSX:        "JSX",
	TSX:        "TSX",
	JavaScript: "JavaScript",
	Json:       "Json",
	Wasm:       "Wasm",
	Dts:        "Dts",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "Unknown"
}

// extensionKinds 仅凭扩展名推断 Kind 的查表。`.d.ts` 的判定不在表里，
// 由 FromSpecifier 单独处理。
var extensionKinds = map[string]Kind{
	"ts":   TypeScript,
	"tsx":  TSX,
	"js":   JavaScript,
	"jsx":  JSX,
	"mjs":  JavaScript,
	"cjs":  JavaScript,
	"json": Json,
	"wasm": Wasm,
}

// typescriptMIMETypes 与 javascriptMIMETypes 覆盖历史上出现过的各种
// TS/JS MIME 写法，包括 MPEG transport stream 与 ts 扩展名撞车的两个
// video 类型。
var typescriptMIMETypes = map[string]struct{}{
	"application/typescript":   {},
	"text/typescript":          {},
	"video/vnd.dlna.mpeg-tts":  {},
	"video/mp2t":               {},
	"application/x-typescript": {},
}

var javascriptMIMETypes = map[string]struct{}{
	"application/javascript":   {},
	"text/javascript":          {},
	"application/ecmascript":   {},
	"text/ecmascript":          {},
	"application/x-javascript": {},
	"application/node":         {},
}

var jsonMIMETypes = map[string]struct{}{
	"application/json": {},
	"text/json":        {},
}

// genericMIMETypes 过于宽泛，此时扩展名比 content-type 更可信。
var genericMIMETypes = map[string]struct{}{
	"text/plain":               {},
	"application/octet-stream": {},
}

// FromSpecifier 只根据 URL path 的扩展名分类，完全忽略 content-type。
func FromSpecifier(u *url.URL) Kind {
	p := specifierPath(u)
	ext := strings.TrimPrefix(path.Ext(p), ".")
	kind, ok := extensionKinds[ext]
	if !ok {
		return Unknown
	}
	if kind == TypeScript && strings.HasSuffix(fileStem(p), ".d") {
		return Dts
	}
	return kind
}

// MapContentType 结合 content-type 头与扩展名推断 Kind，并返回头部声明
// 的 charset（若有）。contentType 为空时完全退化为 FromSpecifier。
func MapContentType(u *url.URL, contentType string) (Kind, string) {
	if contentType == "" {
		return FromSpecifier(u), ""
	}

	segments := strings.Split(contentType, ";")
	essence := strings.ToLower(strings.TrimSpace(segments[0]))

	var kind Kind
	switch {
	case containsMIME(typescriptMIMETypes, essence):
		kind = mapJSLikeExtension(u, TypeScript)
	case containsMIME(javascriptMIMETypes, essence):
		kind = mapJSLikeExtension(u, JavaScript)
	case containsMIME(jsonMIMETypes, essence):
		kind = Json
	case essence == "application/wasm":
		kind = Wasm
	case containsMIME(genericMIMETypes, essence):
		kind = FromSpecifier(u)
	default:
		kind = Unknown
	}

	var charset string
	for _, segment := range segments[1:] {
		if value, ok := strings.CutPrefix(strings.TrimSpace(segment), "charset="); ok {
			charset = value
			break
		}
	}

	return kind, charset
}

// mapJSLikeExtension 用 path 扩展名细化 MIME 推断出的默认 Kind：
// jsx/tsx 永远覆盖；ts 仅在默认值为 TypeScript 且 stem 以 `.d` 结尾时
// 升级为 Dts；其余扩展名保持默认值不变。
func mapJSLikeExtension(u *url.URL, defaultKind Kind) Kind {
	p := specifierPath(u)
	switch strings.TrimPrefix(path.Ext(p), ".") {
	case "jsx":
		return JSX
	case "tsx":
		return TSX
	case "ts":
		if defaultKind == TypeScript && strings.HasSuffix(fileStem(p), ".d") {
			return Dts
		}
		return defaultKind
	default:
		return defaultKind
	}
}

func containsMIME(table map[string]struct{}, essence string) bool {
	_, ok := table[essence]
	return ok
}

func specifierPath(u *url.URL) string {
	return u.Path
}

// fileStem 返回去掉最后一个扩展名后的文件名部分。
func fileStem(p string) string {
	base := path.Base(p)
	return strings.TrimSuffix(base, path.Ext(base))
}
