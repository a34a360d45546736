package quality

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"SourceGuard/internal/citation"
	"SourceGuard/internal/domain"
	"SourceGuard/internal/domainfilter"
)

// SectionView is a parsed section.
type SectionView struct {
	Index int
	Title string
	Body  string
	// DOM is nil when the body could not be parsed.
	DOM  *goquery.Selection
	Text string
}

// Document is the read-only view every rule inspects.
type Document struct {
	Draft      domain.ContentDraft
	Sections   []SectionView
	Citations  citation.Result
	Thresholds Thresholds
	Filter     *domainfilter.Filter
	Company    string
	Internal   map[string]bool
}

func newDocument(d domain.ContentDraft, opts Options) *Document {
	doc := &Document{
		Draft:      d,
		Citations:  citation.MatchDraft(d, len(d.Sources)),
		Thresholds: opts.Thresholds,
		Filter:     domainfilter.New(opts.CompanyDomain, opts.CompetitorDomains),
		Company:    domainfilter.RegistrableDomain(opts.CompanyDomain),
	}
	if len(opts.InternalLinks) > 0 {
		doc.Internal = map[string]bool{}
		for _, link := range opts.InternalLinks {
			doc.Internal[domainfilter.Key(link)] = true
		}
	}

	for i, s := range d.Sections {
		view := SectionView{Index: i, Title: strings.TrimSpace(s.Title), Body: s.HTMLBody, Text: PlainText(s.HTMLBody)}
		if parsed, err := goquery.NewDocumentFromReader(strings.NewReader(s.HTMLBody)); err == nil {
			view.DOM = parsed.Selection
		}
		doc.Sections = append(doc.Sections, view)
	}
	return doc
}

// ContentText joins the visible text of intro, sections, takeaways and FAQ.
func (d *Document) ContentText() string {
	parts := []string{PlainText(d.Draft.Intro)}
	for _, s := range d.Sections {
		parts = append(parts, s.Title, s.Text)
	}
	parts = append(parts, d.Draft.KeyTakeaways...)
	for _, qa := range d.Draft.FAQ {
		parts = append(parts, qa.Question, PlainText(qa.Answer))
	}
	return strings.Join(parts, " ")
}

// SearchableText adds headline and meta fields to the content text.
func (d *Document) SearchableText() string {
	return strings.Join([]string{d.Draft.Headline, d.Draft.MetaTitle, d.Draft.MetaDescription, d.ContentText()}, " ")
}

// PlainText strips markup and collapses whitespace.
func PlainText(body string) string {
	if body == "" {
		return ""
	}
	var b strings.Builder
	z := html.NewTokenizer(strings.NewReader(body))
	skip := 0
	for {
		switch z.Next() {
		case html.ErrorToken:
			return strings.Join(strings.Fields(b.String()), " ")
		case html.StartTagToken:
			name, _ := z.TagName()
			if string(name) == "script" || string(name) == "style" {
				skip++
			}
			separate(&b, name)
		case html.EndTagToken:
			name, _ := z.TagName()
			if (string(name) == "script" || string(name) == "style") && skip > 0 {
				skip--
			}
			separate(&b, name)
		case html.SelfClosingTagToken:
			name, _ := z.TagName()
			separate(&b, name)
		case html.TextToken:
			if skip == 0 {
				b.Write(z.Text())
			}
		}
	}
}

var inlineTags = map[string]bool{
	"a": true, "abbr": true, "b": true, "cite": true, "code": true, "em": true,
	"i": true, "mark": true, "q": true, "small": true, "span": true,
	"strong": true, "sub": true, "sup": true, "u": true,
}

// separate keeps words apart across block boundaries but not across inline markup.
func separate(b *strings.Builder, name []byte) {
	if !inlineTags[string(name)] {
		b.WriteByte(' ')
	}
}

// WordCount counts whitespace-separated words.
func WordCount(text string) int {
	return len(strings.Fields(text))
}
