package quality

import (
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"SourceGuard/internal/domain"
	"SourceGuard/internal/domainfilter"
)

// Finding codes.
const (
	CodeMetaTitleTooLong       = "meta_title_too_long"
	CodeMetaDescriptionTooLong = "meta_description_too_long"
	CodeOrphanCitation         = "orphan_citation"
	CodeTooFewSections         = "too_few_sections"
	CodeSectionMissingTitle    = "section_missing_title"
	CodeSectionMissingBody     = "section_missing_body"
	CodeKeywordMissing         = "primary_keyword_missing"
	CodeUnclosedTag            = "unclosed_html_tag"
	CodeMarkdownBold           = "markdown_bold"
	CodeMalformedHref          = "malformed_href"
	CodeDuplicateSource        = "duplicate_source"
	CodeExcludedSource         = "excluded_source_domain"

	CodeKeywordSparse         = "primary_keyword_sparse"
	CodeWordCount             = "word_count_out_of_range"
	CodeIntroWordCount        = "intro_word_count_out_of_range"
	CodeSectionCount          = "section_count_out_of_range"
	CodeListSections          = "list_sections_out_of_range"
	CodeKeyTakeaways          = "key_takeaways_out_of_range"
	CodeFAQCount              = "faq_count_out_of_range"
	CodePAACount              = "paa_count_out_of_range"
	CodeMissingInternalLink   = "section_missing_internal_link"
	CodeUnknownInternalLink   = "unknown_internal_link"
	CodeInsufficientSources   = "insufficient_sources"
	CodeTooManySources        = "too_many_sources"
	CodeHostConcentration     = "source_host_concentration"
	CodeLowQualitySourceTitle = "low_quality_source_title"
	CodeUncitedSource         = "uncited_source"
	CodeMetaTitleShort        = "meta_title_short"
	CodeMetaDescriptionShort  = "meta_description_short"
	CodeSectionTitleTooLong   = "section_title_too_long"
)

var markdownBold = regexp.MustCompile(`\*\*([^*]+?)\*\*`)

func critical(code, locator, format string, args ...any) domain.QualityFinding {
	return domain.QualityFinding{Severity: domain.SeverityCritical, Code: code, Locator: locator, Message: fmt.Sprintf(format, args...)}
}

func warning(code, locator, format string, args ...any) domain.QualityFinding {
	return domain.QualityFinding{Severity: domain.SeverityWarning, Code: code, Locator: locator, Message: fmt.Sprintf(format, args...)}
}

func outside(n, min, max int) bool {
	return n < min || n > max
}

func checkMeta(doc *Document) []domain.QualityFinding {
	var out []domain.QualityFinding
	th := doc.Thresholds

	title := utf8.RuneCountInString(strings.TrimSpace(doc.Draft.MetaTitle))
	switch {
	case title > th.MetaTitleMax:
		out = append(out, critical(CodeMetaTitleTooLong, "metaTitle", "meta title has %d characters, limit is %d", title, th.MetaTitleMax))
	case title < th.MetaTitleMin:
		out = append(out, warning(CodeMetaTitleShort, "metaTitle", "meta title has %d characters, recommended minimum is %d", title, th.MetaTitleMin))
	}

	desc := utf8.RuneCountInString(strings.TrimSpace(doc.Draft.MetaDescription))
	switch {
	case desc > th.MetaDescriptionMax:
		out = append(out, critical(CodeMetaDescriptionTooLong, "metaDescription", "meta description has %d characters, limit is %d", desc, th.MetaDescriptionMax))
	case desc < th.MetaDescriptionMin:
		out = append(out, warning(CodeMetaDescriptionShort, "metaDescription", "meta description has %d characters, recommended minimum is %d", desc, th.MetaDescriptionMin))
	}
	return out
}

func checkSections(doc *Document) []domain.QualityFinding {
	var out []domain.QualityFinding
	th := doc.Thresholds

	if n := len(doc.Sections); n < th.MinSections {
		out = append(out, critical(CodeTooFewSections, "sections", "draft has %d sections, at least %d required", n, th.MinSections))
	}
	for _, s := range doc.Sections {
		if s.Title == "" {
			out = append(out, critical(CodeSectionMissingTitle, fmt.Sprintf("sections[%d].title", s.Index), "section %d has no title", s.Index+1))
		} else if n := utf8.RuneCountInString(s.Title); n > th.SectionTitleMax {
			out = append(out, warning(CodeSectionTitleTooLong, fmt.Sprintf("sections[%d].title", s.Index), "section title has %d characters, limit is %d", n, th.SectionTitleMax))
		}
		if s.Text == "" {
			out = append(out, critical(CodeSectionMissingBody, fmt.Sprintf("sections[%d].htmlBody", s.Index), "section %d has no body text", s.Index+1))
		}
	}
	if n := len(doc.Sections); n >= th.MinSections && outside(n, th.SectionsMin, th.SectionsMax) {
		out = append(out, warning(CodeSectionCount, "sections", "draft has %d sections, expected %d-%d", n, th.SectionsMin, th.SectionsMax))
	}
	return out
}

func checkKeyword(doc *Document) []domain.QualityFinding {
	keyword := strings.ToLower(strings.Join(strings.Fields(doc.Draft.PrimaryKeyword), " "))
	if keyword == "" {
		return nil
	}
	text := strings.ToLower(strings.Join(strings.Fields(doc.SearchableText()), " "))
	count := strings.Count(text, keyword)

	switch {
	case count == 0:
		return []domain.QualityFinding{critical(CodeKeywordMissing, "primaryKeyword", "primary keyword %q does not appear in the content", doc.Draft.PrimaryKeyword)}
	case count < doc.Thresholds.KeywordMin:
		return []domain.QualityFinding{warning(CodeKeywordSparse, "primaryKeyword", "primary keyword %q appears %d times, recommended minimum is %d", doc.Draft.PrimaryKeyword, count, doc.Thresholds.KeywordMin)}
	}
	return nil
}

type field struct {
	locator string
	value   string
}

func proseFields(d domain.ContentDraft) []field {
	out := []field{{"intro", d.Intro}}
	for i, s := range d.Sections {
		out = append(out, field{fmt.Sprintf("sections[%d].htmlBody", i), s.HTMLBody})
	}
	for i, qa := range d.FAQ {
		out = append(out, field{fmt.Sprintf("faq[%d].answer", i), qa.Answer})
	}
	for i, qa := range d.PAA {
		out = append(out, field{fmt.Sprintf("paa[%d].answer", i), qa.Answer})
	}
	return out
}

func checkMarkup(doc *Document) []domain.QualityFinding {
	var out []domain.QualityFinding
	for _, f := range proseFields(doc.Draft) {
		if m := markdownBold.FindString(f.value); m != "" {
			out = append(out, critical(CodeMarkdownBold, f.locator, "markdown bold syntax %q left in markup", m))
		}
		for _, problem := range UnclosedTags(f.value) {
			out = append(out, critical(CodeUnclosedTag, f.locator, "%s", problem))
		}
	}
	return out
}

var pairedTags = map[string]bool{
	"a": true, "b": true, "blockquote": true, "div": true, "em": true,
	"h2": true, "h3": true, "h4": true, "i": true, "li": true, "ol": true,
	"p": true, "span": true, "strong": true, "table": true, "ul": true,
}

// UnclosedTags reports open/close mismatches for tags that must be paired.
func UnclosedTags(body string) []string {
	var (
		stack    []string
		problems []string
	)
	z := html.NewTokenizer(strings.NewReader(body))
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			break
		}
		if tt != html.StartTagToken && tt != html.EndTagToken {
			continue
		}
		raw, _ := z.TagName()
		name := string(raw)
		if !pairedTags[name] {
			continue
		}
		if tt == html.StartTagToken {
			stack = append(stack, name)
			continue
		}

		idx := -1
		for i := len(stack) - 1; i >= 0; i-- {
			if stack[i] == name {
				idx = i
				break
			}
		}
		if idx < 0 {
			problems = append(problems, fmt.Sprintf("closing </%s> without matching opening tag", name))
			continue
		}
		for _, open := range stack[idx+1:] {
			problems = append(problems, fmt.Sprintf("<%s> is never closed", open))
		}
		stack = stack[:idx]
	}
	for _, open := range stack {
		problems = append(problems, fmt.Sprintf("<%s> is never closed", open))
	}
	return problems
}

func checkHrefs(doc *Document) []domain.QualityFinding {
	var out []domain.QualityFinding
	for _, f := range proseFields(doc.Draft) {
		if !strings.Contains(strings.ToLower(f.value), "href") {
			continue
		}
		parsed, err := goquery.NewDocumentFromReader(strings.NewReader(f.value))
		if err != nil {
			continue
		}
		parsed.Find("a").Each(func(_ int, a *goquery.Selection) {
			href, ok := a.Attr("href")
			if !ok || WellFormedHref(href) {
				return
			}
			out = append(out, critical(CodeMalformedHref, f.locator, "href %q is not a well-formed link", href))
		})
	}
	return out
}

// WellFormedHref accepts absolute http(s) URLs, relative paths, fragments,
// mailto: and tel: links without embedded whitespace.
func WellFormedHref(href string) bool {
	if href == "" || strings.IndexFunc(href, unicode.IsSpace) >= 0 {
		return false
	}
	u, err := url.Parse(href)
	if err != nil {
		return false
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return u.Host != ""
	case "mailto", "tel":
		return u.Opaque != "" || u.Path != ""
	case "":
		return true
	default:
		return false
	}
}

func checkCitations(doc *Document) []domain.QualityFinding {
	var out []domain.QualityFinding
	for _, m := range doc.Citations.Orphans {
		out = append(out, critical(CodeOrphanCitation, m.Locator, "citation %s has no matching source (%d sources)", m.Label(), len(doc.Draft.Sources)))
	}
	for _, n := range doc.Citations.Uncited {
		out = append(out, warning(CodeUncitedSource, fmt.Sprintf("sources[%d]", n-1), "source %d (%s) is never cited", n, doc.Draft.Sources[n-1].URL))
	}
	return out
}

var genericTitles = map[string]bool{
	"home": true, "homepage": true, "index": true, "untitled": true, "page": true,
	"404": true, "error": true, "access denied": true, "just a moment...": true,
	"attention required!": true, "login": true, "sign in": true,
}

// LowQualityTitle flags titles that say nothing about the page.
func LowQualityTitle(title, rawURL string, min int) bool {
	t := strings.TrimSpace(title)
	if utf8.RuneCountInString(t) < min {
		return true
	}
	lower := strings.ToLower(t)
	if genericTitles[lower] {
		return true
	}
	host := domainfilter.NormalizeHost(rawURL)
	if host == "" {
		return false
	}
	if lower == host || lower == "www."+host {
		return true
	}
	return strings.Contains(lower, ":") && strings.HasSuffix(lower, " "+host)
}

func checkSources(doc *Document) []domain.QualityFinding {
	var out []domain.QualityFinding
	th := doc.Thresholds
	sources := doc.Draft.Sources

	seen := map[string]int{}
	perHost := map[string]int{}
	for i, s := range sources {
		locator := fmt.Sprintf("sources[%d]", i)
		key := domainfilter.Key(s.URL)
		if first, dup := seen[key]; dup {
			out = append(out, critical(CodeDuplicateSource, locator, "source %d duplicates source %d (%s)", i+1, first+1, s.URL))
		} else {
			seen[key] = i
		}
		if doc.Filter.Excluded(s.URL) {
			out = append(out, critical(CodeExcludedSource, locator, "source %s belongs to an excluded domain", s.URL))
		}
		if LowQualityTitle(s.Title, s.URL, th.SourceTitleMin) {
			out = append(out, warning(CodeLowQualitySourceTitle, locator, "source title %q is generic", s.Title))
		}
		if host := domainfilter.NormalizeHost(s.URL); host != "" {
			perHost[host]++
		}
	}

	hosts := make([]string, 0, len(perHost))
	for host, n := range perHost {
		if n > th.SourcesPerHostMax {
			hosts = append(hosts, host)
		}
	}
	sort.Strings(hosts)
	for _, host := range hosts {
		out = append(out, warning(CodeHostConcentration, "sources", "%d sources share host %s, limit is %d", perHost[host], host, th.SourcesPerHostMax))
	}

	switch n := len(sources); {
	case n < th.SourcesMin:
		out = append(out, warning(CodeInsufficientSources, "sources", "draft has %d sources, recommended minimum is %d", n, th.SourcesMin))
	case n > th.SourcesMax:
		out = append(out, warning(CodeTooManySources, "sources", "draft has %d sources, recommended maximum is %d", n, th.SourcesMax))
	}
	return out
}

func checkStructure(doc *Document) []domain.QualityFinding {
	var out []domain.QualityFinding
	th := doc.Thresholds
	d := doc.Draft

	if n := WordCount(doc.ContentText()); outside(n, th.WordsMin, th.WordsMax) {
		out = append(out, warning(CodeWordCount, "article", "article has %d words, expected %d-%d", n, th.WordsMin, th.WordsMax))
	}
	if n := WordCount(PlainText(d.Intro)); outside(n, th.IntroWordsMin, th.IntroWordsMax) {
		out = append(out, warning(CodeIntroWordCount, "intro", "intro has %d words, expected %d-%d", n, th.IntroWordsMin, th.IntroWordsMax))
	}

	lists := 0
	for _, s := range doc.Sections {
		if s.DOM != nil && s.DOM.Find("ul, ol").Length() > 0 {
			lists++
		}
	}
	if outside(lists, th.ListSectionsMin, th.ListSectionsMax) {
		out = append(out, warning(CodeListSections, "sections", "%d sections contain a list, expected %d-%d", lists, th.ListSectionsMin, th.ListSectionsMax))
	}

	if n := len(d.KeyTakeaways); outside(n, th.TakeawaysMin, th.TakeawaysMax) {
		out = append(out, warning(CodeKeyTakeaways, "keyTakeaways", "draft has %d key takeaways, expected %d-%d", n, th.TakeawaysMin, th.TakeawaysMax))
	}
	if n := len(d.FAQ); outside(n, th.FAQMin, th.FAQMax) {
		out = append(out, warning(CodeFAQCount, "faq", "draft has %d FAQ entries, expected %d-%d", n, th.FAQMin, th.FAQMax))
	}
	if n := len(d.PAA); outside(n, th.PAAMin, th.PAAMax) {
		out = append(out, warning(CodePAACount, "paa", "draft has %d PAA entries, expected %d-%d", n, th.PAAMin, th.PAAMax))
	}
	return out
}

func checkInternalLinks(doc *Document) []domain.QualityFinding {
	var out []domain.QualityFinding
	for _, s := range doc.Sections {
		locator := fmt.Sprintf("sections[%d].htmlBody", s.Index)
		internal := 0
		if s.DOM != nil {
			s.DOM.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
				href, _ := a.Attr("href")
				kind := doc.linkKind(href)
				if kind == linkExternal {
					return
				}
				internal++
				if kind == linkUnlisted {
					out = append(out, warning(CodeUnknownInternalLink, locator, "internal link %s is not in the configured link list", href))
				}
			})
		}
		if internal == 0 {
			out = append(out, warning(CodeMissingInternalLink, locator, "section %d has no internal link", s.Index+1))
		}
	}
	return out
}

type linkKind int

const (
	linkExternal linkKind = iota
	linkInternal
	linkUnlisted
)

func (d *Document) linkKind(href string) linkKind {
	href = strings.TrimSpace(href)
	if strings.HasPrefix(href, "/") && !strings.HasPrefix(href, "//") {
		return linkInternal
	}
	if d.Internal[domainfilter.Key(href)] {
		return linkInternal
	}
	if d.Company == "" || !domainfilter.SameOrSubdomain(domainfilter.NormalizeHost(href), d.Company) {
		return linkExternal
	}
	if d.Internal != nil {
		return linkUnlisted
	}
	return linkInternal
}
