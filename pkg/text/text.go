// Package text 提供纯文本转义和正文标记渲染
package text

import (
	"bytes"
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	gmhtml "github.com/yuin/goldmark/renderer/html"
)

// 正文格式
const (
	FormatFilteredHTML = 1 // 过滤后的HTML（默认）
	FormatFullHTML     = 2 // 原样输出
	FormatPlainText    = 3 // 纯文本，换行转为<br />
	FormatMarkdown     = 4 // Markdown
)

// Renderer 文本渲染器，可并发使用
type Renderer struct {
	strict   *bluemonday.Policy
	ugc      *bluemonday.Policy
	markdown goldmark.Markdown
}

// NewRenderer 创建渲染器
func NewRenderer() *Renderer {
	return &Renderer{
		strict: bluemonday.StrictPolicy(),
		ugc:    bluemonday.UGCPolicy(),
		markdown: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithRendererOptions(gmhtml.WithHardWraps()),
		),
	}
}

// ValidFormat 是否为已知格式
func ValidFormat(format int) bool {
	return format >= FormatFilteredHTML && format <= FormatMarkdown
}

// Plain 去掉所有标签并转义剩余内容，用于安全显示
func (r *Renderer) Plain(raw string) string {
	return r.strict.Sanitize(raw)
}

// Markup 按格式渲染正文，未知格式按过滤HTML处理
func (r *Renderer) Markup(raw string, format int) string {
	switch format {
	case FormatFullHTML:
		return raw
	case FormatPlainText:
		escaped := html.EscapeString(raw)
		escaped = strings.ReplaceAll(escaped, "\r\n", "\n")
		return strings.ReplaceAll(escaped, "\n", "<br />\n")
	case FormatMarkdown:
		var buf bytes.Buffer
		if err := r.markdown.Convert([]byte(raw), &buf); err != nil {
			return r.Plain(raw)
		}
		return r.ugc.Sanitize(buf.String())
	default:
		return r.ugc.Sanitize(raw)
	}
}
