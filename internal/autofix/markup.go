package autofix

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	gmhtml "github.com/yuin/goldmark/renderer/html"
	"golang.org/x/net/html"
)

var (
	boldPattern = regexp.MustCompile(`\*\*([^*]+?)\*\*`)
	hrefPattern = regexp.MustCompile(`(?i)(href\s*=\s*)("([^"]*)"|'([^']*)')`)
	hrefBreak   = regexp.MustCompile(`[ \t]*[\r\n\t]+[ \t]*`)
)

// MarkdownBold replaces **text** with <strong>text</strong>.
func MarkdownBold(body string) string {
	if !strings.Contains(body, "**") {
		return body
	}
	return boldPattern.ReplaceAllString(body, "<strong>$1</strong>")
}

// HrefWhitespace normalizes quoted href values: ends are trimmed, line breaks
// and tabs are dropped with the spaces around them, and interior spaces become %20.
func HrefWhitespace(body string) string {
	return hrefPattern.ReplaceAllStringFunc(body, func(attr string) string {
		m := hrefPattern.FindStringSubmatch(attr)
		quote, value := `"`, m[3]
		if strings.HasPrefix(m[2], "'") {
			quote, value = "'", m[4]
		}
		return m[1] + quote + cleanHref(value) + quote
	})
}

func cleanHref(value string) string {
	value = hrefBreak.ReplaceAllString(strings.TrimSpace(value), "")
	return strings.ReplaceAll(value, " ", "%20")
}

var inlineTags = map[string]bool{
	"a": true, "abbr": true, "b": true, "br": true, "cite": true, "code": true,
	"em": true, "i": true, "img": true, "kbd": true, "mark": true, "q": true,
	"s": true, "small": true, "span": true, "strong": true, "sub": true,
	"sup": true, "time": true, "u": true,
}

var voidTags = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true, "hr": true,
	"img": true, "input": true, "link": true, "meta": true, "source": true,
	"track": true, "wbr": true,
}

// Paragraphs wraps top-level text and inline runs that sit outside any block
// element. Runs are rendered through goldmark so leftover markdown becomes HTML.
func Paragraphs(md goldmark.Markdown, body string) string {
	w := wrapper{md: md}
	z := html.NewTokenizer(strings.NewReader(body))

	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			break
		}
		raw := string(z.Raw())

		var name string
		if tt == html.StartTagToken || tt == html.EndTagToken || tt == html.SelfClosingTagToken {
			n, _ := z.TagName()
			name = string(n)
		}

		if w.depth > 0 {
			w.nested(tt, name, raw)
			continue
		}
		w.top(tt, name, raw)
	}
	w.flush()
	return w.out.String()
}

type wrapper struct {
	md    goldmark.Markdown
	out   strings.Builder
	run   strings.Builder
	depth int
	// inRun is set while the open top-level element belongs to the pending run.
	inRun bool
}

func (w *wrapper) top(tt html.TokenType, name, raw string) {
	switch tt {
	case html.TextToken:
		w.run.WriteString(raw)
	case html.StartTagToken:
		if inlineTags[name] {
			w.run.WriteString(raw)
			if !voidTags[name] {
				w.depth, w.inRun = 1, true
			}
			return
		}
		w.flush()
		w.out.WriteString(raw)
		if !voidTags[name] {
			w.depth, w.inRun = 1, false
		}
	case html.SelfClosingTagToken:
		if inlineTags[name] {
			w.run.WriteString(raw)
			return
		}
		w.flush()
		w.out.WriteString(raw)
	default:
		if w.run.Len() > 0 {
			w.run.WriteString(raw)
			return
		}
		w.out.WriteString(raw)
	}
}

func (w *wrapper) nested(tt html.TokenType, name, raw string) {
	if w.inRun {
		w.run.WriteString(raw)
	} else {
		w.out.WriteString(raw)
	}
	switch {
	case tt == html.StartTagToken && !voidTags[name]:
		w.depth++
	case tt == html.EndTagToken:
		w.depth--
	}
}

func (w *wrapper) flush() {
	pending := w.run.String()
	w.run.Reset()
	if pending == "" {
		return
	}

	trimmed := strings.TrimSpace(pending)
	if trimmed == "" {
		w.out.WriteString(pending)
		return
	}

	lead := pending[:strings.Index(pending, trimmed)]
	trail := pending[len(lead)+len(trimmed):]
	w.out.WriteString(lead)
	w.out.WriteString(w.render(trimmed))
	w.out.WriteString(trail)
}

func (w *wrapper) render(text string) string {
	if w.md != nil {
		var buf bytes.Buffer
		if err := w.md.Convert([]byte(text), &buf); err == nil {
			rendered := strings.TrimSpace(buf.String())
			if strings.HasPrefix(rendered, "<p>") && strings.HasSuffix(rendered, "</p>") {
				return rendered
			}
		}
	}
	return "<p>" + text + "</p>"
}

// NewMarkdown builds the renderer used for bare runs. Raw inline HTML is kept.
func NewMarkdown() goldmark.Markdown {
	return goldmark.New(goldmark.WithRendererOptions(gmhtml.WithUnsafe()))
}
