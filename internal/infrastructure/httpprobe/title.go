package httpprobe

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"SourceGuard/internal/domainfilter"
)

const maxTitleRunes = 140

var (
	errorURLMarkers = []string{
		"/notfound", "/not-found", "/404", "/error", "/page-not-found",
		"notfound.aspx", "404.aspx", "error.aspx", "page-not-found.aspx",
	}
	errorTitleMarkers = []string{"not found", "404", "nicht gefunden", "page introuvable", "no encontrada"}
	errorBodyPhrases  = []string{
		"page not found", "404", "not found", "error 404",
		"die seite wurde nicht gefunden", "seite nicht gefunden",
		"page introuvable", "página no encontrada", "nicht gefunden",
	}
)

// ExtractTitle returns the collapsed <title> text, capped at 140 runes.
func ExtractTitle(doc *goquery.Document) string {
	if doc == nil {
		return ""
	}
	return CleanTitle(doc.Find("title").First().Text())
}

// CleanTitle collapses whitespace and caps length with a "..." suffix.
func CleanTitle(raw string) string {
	title := strings.Join(strings.Fields(raw), " ")
	if utf8.RuneCountInString(title) <= maxTitleRunes {
		return title
	}
	runes := []rune(title)
	return strings.TrimSpace(string(runes[:maxTitleRunes-3])) + "..."
}

// FallbackTitle synthesizes a localized "Source: host" title.
func FallbackTitle(rawURL, language string) string {
	host := domainfilter.NormalizeHost(rawURL)
	lang := strings.ToLower(language)
	if len(lang) > 2 {
		lang = lang[:2]
	}
	switch lang {
	case "de":
		return fmt.Sprintf("Quelle: %s", host)
	case "fr":
		return fmt.Sprintf("Source : %s", host)
	case "pt":
		return fmt.Sprintf("Fonte: %s", host)
	case "es":
		return fmt.Sprintf("Fuente: %s", host)
	default:
		return fmt.Sprintf("Source: %s", host)
	}
}

// looksLikeErrorPage detects "soft 404" pages served with status 200.
func looksLikeErrorPage(finalURL, title string, doc *goquery.Document) bool {
	lowerURL := strings.ToLower(finalURL)
	for _, marker := range errorURLMarkers {
		if strings.Contains(lowerURL, marker) {
			return true
		}
	}

	lowerTitle := strings.ToLower(title)
	for _, marker := range errorTitleMarkers {
		if strings.Contains(lowerTitle, marker) {
			return true
		}
	}

	if doc == nil {
		return false
	}
	text := strings.ToLower(doc.Find("body").Text())
	hits := 0
	for _, phrase := range errorBodyPhrases {
		if strings.Contains(text, phrase) {
			hits++
		}
	}
	return hits >= 2
}
