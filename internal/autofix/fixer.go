package autofix

import (
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/yuin/goldmark"

	"SourceGuard/internal/citation"
	"SourceGuard/internal/domain"
)

// Fix names recorded in FixRecord.Fix.
const (
	FixMetaTitle       = "meta_title_truncated"
	FixMetaDescription = "meta_description_truncated"
	FixOrphanCitations = "orphan_citations_stripped"
	FixMarkdownBold    = "markdown_bold_converted"
	FixHrefWhitespace  = "href_whitespace_removed"
	FixParagraphs      = "paragraph_wrapped"
)

// Options configures the fixer.
type Options struct {
	MetaTitleMax       int
	MetaDescriptionMax int
	// StripOrphanCitations removes citation numbers with no matching source.
	StripOrphanCitations bool
}

// DefaultOptions returns the standard limits.
func DefaultOptions() Options {
	return Options{MetaTitleMax: 55, MetaDescriptionMax: 130}
}

// Fixer applies the deterministic auto-fixes in a fixed order.
type Fixer struct {
	opts   Options
	md     goldmark.Markdown
	logger *slog.Logger
}

// New builds a fixer. Zero limits fall back to the defaults.
func New(opts Options, logger *slog.Logger) *Fixer {
	def := DefaultOptions()
	if opts.MetaTitleMax <= 0 {
		opts.MetaTitleMax = def.MetaTitleMax
	}
	if opts.MetaDescriptionMax <= 0 {
		opts.MetaDescriptionMax = def.MetaDescriptionMax
	}
	return &Fixer{opts: opts, md: NewMarkdown(), logger: logger}
}

// Apply returns a fixed copy of d and the fixes that changed something.
// sourceCount is the length of the validated source list used for citations.
// Applying the result a second time changes nothing.
func (f *Fixer) Apply(d domain.ContentDraft, sourceCount int) (domain.ContentDraft, []domain.FixRecord) {
	out := d.Clone()
	var fixes []domain.FixRecord

	record := func(fix, locator, before, after string) string {
		if before != after {
			fixes = append(fixes, domain.FixRecord{Fix: fix, Locator: locator, Before: before, After: after})
			if f.logger != nil {
				f.logger.Debug("fix applied", "fix", fix, "locator", locator)
			}
		}
		return after
	}

	if utf8.RuneCountInString(out.MetaTitle) > f.opts.MetaTitleMax {
		out.MetaTitle = record(FixMetaTitle, "metaTitle", out.MetaTitle, TruncateWords(out.MetaTitle, f.opts.MetaTitleMax))
	}
	if utf8.RuneCountInString(out.MetaDescription) > f.opts.MetaDescriptionMax {
		out.MetaDescription = record(FixMetaDescription, "metaDescription", out.MetaDescription, TruncateWords(out.MetaDescription, f.opts.MetaDescriptionMax))
	}

	type field struct {
		locator string
		value   *string
		html    bool
	}
	fields := []field{{locator: "intro", value: &out.Intro}}
	for i := range out.Sections {
		fields = append(fields, field{locator: fmt.Sprintf("sections[%d].htmlBody", i), value: &out.Sections[i].HTMLBody, html: true})
	}
	for i := range out.FAQ {
		fields = append(fields, field{locator: fmt.Sprintf("faq[%d].answer", i), value: &out.FAQ[i].Answer})
	}
	for i := range out.PAA {
		fields = append(fields, field{locator: fmt.Sprintf("paa[%d].answer", i), value: &out.PAA[i].Answer})
	}

	if f.opts.StripOrphanCitations {
		for _, fl := range fields {
			*fl.value = record(FixOrphanCitations, fl.locator, *fl.value, citation.StripOrphans(*fl.value, sourceCount))
		}
	}
	for _, fl := range fields {
		*fl.value = record(FixMarkdownBold, fl.locator, *fl.value, MarkdownBold(*fl.value))
	}
	for _, fl := range fields {
		*fl.value = record(FixHrefWhitespace, fl.locator, *fl.value, HrefWhitespace(*fl.value))
	}
	for _, fl := range fields {
		if fl.html {
			*fl.value = record(FixParagraphs, fl.locator, *fl.value, Paragraphs(f.md, *fl.value))
		}
	}

	return out, fixes
}
