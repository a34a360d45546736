package autofix

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SourceGuard/internal/domain"
)

func sampleDraft() domain.ContentDraft {
	return domain.ContentDraft{
		PrimaryKeyword:  "ai customer service",
		Headline:        "AI customer service in practice",
		MetaTitle:       "AI Customer Service Platforms Compared for Growing Support Teams Today",
		MetaDescription: "Learn how ai customer service tools cut response times, which features matter most for scaling teams, and what to check before you buy one this year.",
		Intro:           "Support leaders ask about **automation** first.",
		Sections: []domain.Section{
			{Title: "Why it matters", HTMLBody: "Bots answer **simple** questions [1].\n<h3>Numbers</h3>\nResolution time drops [2]."},
			{Title: "Tools", HTMLBody: `<p>Compare <a href=" https://example.org/tools
">vendors</a> carefully [5].</p>`},
		},
		FAQ: []domain.QA{{Question: "Is it expensive?", Answer: "Not **always**."}},
	}
}

func TestApplyTruncatesMetaTitle(t *testing.T) {
	t.Parallel()

	d := domain.ContentDraft{MetaTitle: strings.Repeat("word ", 14)[:70]}
	require.Equal(t, 70, utf8.RuneCountInString(d.MetaTitle))

	fixed, fixes := New(DefaultOptions(), nil).Apply(d, 0)

	assert.LessOrEqual(t, utf8.RuneCountInString(fixed.MetaTitle), 55)
	assert.False(t, strings.HasSuffix(fixed.MetaTitle, " "))
	require.Len(t, fixes, 1)
	assert.Equal(t, FixMetaTitle, fixes[0].Fix)
	assert.Equal(t, "metaTitle", fixes[0].Locator)
	assert.Equal(t, d.MetaTitle, fixes[0].Before)
}

func TestApplyTruncatesMetaDescription(t *testing.T) {
	t.Parallel()

	fixed, _ := New(DefaultOptions(), nil).Apply(sampleDraft(), 3)

	assert.LessOrEqual(t, utf8.RuneCountInString(fixed.MetaDescription), 130)
	assert.True(t, strings.HasPrefix(sampleDraft().MetaDescription, fixed.MetaDescription))
}

func TestApplyConvertsMarkdownBold(t *testing.T) {
	t.Parallel()

	fixed, fixes := New(DefaultOptions(), nil).Apply(sampleDraft(), 3)

	for _, s := range fixed.Sections {
		assert.NotContains(t, s.HTMLBody, "**")
	}
	assert.Contains(t, fixed.Sections[0].HTMLBody, "<strong>simple</strong>")
	assert.Equal(t, "Support leaders ask about <strong>automation</strong> first.", fixed.Intro)
	assert.Equal(t, "Not <strong>always</strong>.", fixed.FAQ[0].Answer)

	var bold int
	for _, f := range fixes {
		if f.Fix == FixMarkdownBold {
			bold++
		}
	}
	assert.Equal(t, 3, bold)
}

func TestApplyConvertsBoldAcrossLines(t *testing.T) {
	t.Parallel()

	d := sampleDraft()
	d.Sections[0].HTMLBody = "<p>This is **bold\nacross lines** text [1].</p>"
	fixed, _ := New(DefaultOptions(), nil).Apply(d, 3)

	assert.Equal(t, "<p>This is <strong>bold\nacross lines</strong> text [1].</p>", fixed.Sections[0].HTMLBody)
}

func TestApplyRepairsHref(t *testing.T) {
	t.Parallel()

	fixed, _ := New(DefaultOptions(), nil).Apply(sampleDraft(), 3)

	assert.Contains(t, fixed.Sections[1].HTMLBody, `href="https://example.org/tools"`)
}

func TestApplyWrapsBareText(t *testing.T) {
	t.Parallel()

	fixed, _ := New(DefaultOptions(), nil).Apply(sampleDraft(), 3)

	assert.Equal(t,
		"<p>Bots answer <strong>simple</strong> questions [1].</p>\n<h3>Numbers</h3>\n<p>Resolution time drops [2].</p>",
		fixed.Sections[0].HTMLBody)
}

func TestApplyKeepsOrphansByDefault(t *testing.T) {
	t.Parallel()

	fixed, _ := New(DefaultOptions(), nil).Apply(sampleDraft(), 3)
	assert.Contains(t, fixed.Sections[1].HTMLBody, "[5]")

	opts := DefaultOptions()
	opts.StripOrphanCitations = true
	fixed, fixes := New(opts, nil).Apply(sampleDraft(), 3)
	assert.NotContains(t, fixed.Sections[1].HTMLBody, "[5]")
	assert.Equal(t, FixOrphanCitations, fixes[2].Fix)
}

func TestApplyIsIdempotent(t *testing.T) {
	t.Parallel()

	opts := DefaultOptions()
	opts.StripOrphanCitations = true
	fixer := New(opts, nil)

	drafts := []domain.ContentDraft{
		sampleDraft(),
		{MetaTitle: "Short", Sections: []domain.Section{{HTMLBody: "<p>Already fine.</p>"}}},
		{Sections: []domain.Section{{HTMLBody: "Text with *emphasis* & a [link](https://example.org).\n\nSecond paragraph."}}},
		{Sections: []domain.Section{{HTMLBody: "<ul><li>**x**</li></ul>tail <br> more"}}},
		{MetaDescription: strings.Repeat("description-without-spaces", 10)},
	}

	for i, d := range drafts {
		once, _ := fixer.Apply(d, 2)
		twice, fixes := fixer.Apply(once, 2)
		assert.Equal(t, once, twice, "draft %d", i)
		assert.Empty(t, fixes, "draft %d", i)
	}
}

func TestApplyNoChanges(t *testing.T) {
	t.Parallel()

	d := domain.ContentDraft{
		MetaTitle:       "Fine title",
		MetaDescription: "Fine description",
		Sections:        []domain.Section{{Title: "A", HTMLBody: "<p>Body [1].</p>"}},
	}
	fixed, fixes := New(Options{}, nil).Apply(d, 1)

	assert.Equal(t, d, fixed)
	assert.Empty(t, fixes)
}

func TestTruncateWords(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "short", TruncateWords("short", 10))
	assert.Equal(t, "one two", TruncateWords("one two three", 9))
	assert.Equal(t, "one two", TruncateWords("one two, three", 8))
	assert.Equal(t, "abcdefgh", TruncateWords("abcdefghijkl", 8))
	assert.Equal(t, "Überblick für", TruncateWords("Überblick für Teams", 15))
}

func TestParagraphs(t *testing.T) {
	t.Parallel()

	md := NewMarkdown()
	cases := map[string]struct{ in, want string }{
		"wrapped already": {"<p>a</p>\n<ul><li>x</li></ul>", "<p>a</p>\n<ul><li>x</li></ul>"},
		"bare text":       {"plain", "<p>plain</p>"},
		"inline run":      {`<a href="/x">link</a> after`, `<p><a href="/x">link</a> after</p>`},
		"whitespace only": {"\n<p>a</p>\n", "\n<p>a</p>\n"},
		"empty":           {"", ""},
	}
	for name, tc := range cases {
		assert.Equal(t, tc.want, Paragraphs(md, tc.in), name)
	}
}

func TestHrefWhitespace(t *testing.T) {
	t.Parallel()

	assert.Equal(t, `<a href="https://a.org/b">x</a>`, HrefWhitespace("<a href=\" https://a.org/\n  b \">x</a>"))
	assert.Equal(t, `<a href="/my%20page">x</a>`, HrefWhitespace(`<a href=" /my page ">x</a>`))
	assert.Equal(t, `<a href="/my%20page">x</a>`, HrefWhitespace(`<a href="/my%20page">x</a>`))
	assert.Equal(t, `<a href='https://a.org'>x</a>`, HrefWhitespace("<a href='https://a.org\n'>x</a>"))
	assert.Equal(t, `<a href="/ok">x</a>`, HrefWhitespace(`<a href="/ok">x</a>`))
}
