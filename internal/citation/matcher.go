package citation

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"SourceGuard/internal/domain"
)

// markerPattern matches bracketed citation groups such as [3] or [2, 5].
var markerPattern = regexp.MustCompile(`\[(\d+(?:[\s,]+?\d+)*)\]`)

var numberPattern = regexp.MustCompile(`\d+`)

// Unparseable stands in for citation numbers too large to fit an int.
const Unparseable = -1

// Marker is one citation number found in the draft. Number is Unparseable
// when the digits overflow; Locator still carries them verbatim.
type Marker struct {
	Number  int
	Locator string
}

// Label returns the bracketed marker as written, e.g. "[5]".
func (m Marker) Label() string {
	if i := strings.LastIndex(m.Locator, ":"); i >= 0 {
		return m.Locator[i+1:]
	}
	return fmt.Sprintf("[%d]", m.Number)
}

// Result lists the orphan markers and the sources nobody cites.
type Result struct {
	// Orphans keeps every orphan occurrence in scan order.
	Orphans []Marker
	// Uncited holds 1-based source positions that no marker references.
	Uncited []int
	// Cited holds the sorted, distinct source positions that are referenced.
	Cited []int
}

// OrphanNumbers returns the distinct orphan citation numbers in ascending order.
func (r Result) OrphanNumbers() []int {
	var out []int
	for _, m := range r.Orphans {
		out = append(out, m.Number)
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// Match scans section bodies for citation markers against a list of
// sourceCount sources numbered from 1.
func Match(sections []domain.Section, sourceCount int) Result {
	blocks := make([]block, len(sections))
	for i, s := range sections {
		blocks[i] = block{locator: fmt.Sprintf("sections[%d].htmlBody", i), text: s.HTMLBody}
	}
	return match(blocks, sourceCount)
}

// MatchDraft scans every prose field that can carry citations: intro,
// section bodies, FAQ and PAA answers.
func MatchDraft(d domain.ContentDraft, sourceCount int) Result {
	return match(draftBlocks(d), sourceCount)
}

type block struct {
	locator string
	text    string
}

// draftBlocks lists the draft's citation-bearing fields in document order.
func draftBlocks(d domain.ContentDraft) []block {
	var out []block
	if d.Intro != "" {
		out = append(out, block{locator: "intro", text: d.Intro})
	}
	for i, s := range d.Sections {
		out = append(out, block{locator: fmt.Sprintf("sections[%d].htmlBody", i), text: s.HTMLBody})
	}
	for i, qa := range d.FAQ {
		out = append(out, block{locator: fmt.Sprintf("faq[%d].answer", i), text: qa.Answer})
	}
	for i, qa := range d.PAA {
		out = append(out, block{locator: fmt.Sprintf("paa[%d].answer", i), text: qa.Answer})
	}
	return out
}

func match(blocks []block, sourceCount int) Result {
	cited := make([]bool, sourceCount+1)
	var res Result

	for _, b := range blocks {
		for _, c := range scan(b.text) {
			if c.n >= 1 && c.n <= sourceCount {
				cited[c.n] = true
				continue
			}
			res.Orphans = append(res.Orphans, Marker{Number: c.n, Locator: fmt.Sprintf("%s:[%s]", b.locator, c.digits)})
		}
	}

	for i := 1; i <= sourceCount; i++ {
		if cited[i] {
			res.Cited = append(res.Cited, i)
		} else {
			res.Uncited = append(res.Uncited, i)
		}
	}
	return res
}

type cite struct {
	n      int
	digits string
}

func scan(text string) []cite {
	var out []cite
	for _, group := range markerPattern.FindAllStringSubmatch(text, -1) {
		for _, digits := range numberPattern.FindAllString(group[1], -1) {
			n, err := strconv.Atoi(digits)
			if err != nil {
				n = Unparseable
			}
			out = append(out, cite{n: n, digits: digits})
		}
	}
	return out
}

// Numbers returns every citation number in text, in order of appearance.
// Numbers that overflow an int are reported as Unparseable.
func Numbers(text string) []int {
	var out []int
	for _, c := range scan(text) {
		out = append(out, c.n)
	}
	return out
}

// StripOrphans drops citation numbers outside 1..sourceCount. Groups left
// empty are removed together with the whitespace in front of them.
func StripOrphans(text string, sourceCount int) string {
	if !markerPattern.MatchString(text) {
		return text
	}

	var b strings.Builder
	last := 0
	for _, loc := range markerPattern.FindAllStringSubmatchIndex(text, -1) {
		start, end := loc[0], loc[1]
		var keep []string
		all := numberPattern.FindAllString(text[loc[2]:loc[3]], -1)
		for _, digits := range all {
			n, err := strconv.Atoi(digits)
			if err == nil && n >= 1 && n <= sourceCount {
				keep = append(keep, digits)
			}
		}

		switch {
		case len(keep) == 0:
			b.WriteString(strings.TrimRight(text[last:start], " \t"))
		case len(keep) == len(all):
			b.WriteString(text[last:end])
		default:
			b.WriteString(text[last:start])
			b.WriteString("[" + strings.Join(keep, ", ") + "]")
		}
		last = end
	}
	b.WriteString(text[last:])
	return b.String()
}
