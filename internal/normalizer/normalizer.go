// internal/normalizer/normalizer.go
package normalizer

import (
	"regexp"
	"strings"

	"kiro-assistant/internal/models"
)

// Result is the display text plus the article links pulled out of it.
type Result struct {
	Text     string                    `json:"text"`
	Articles []models.ArticleReference `json:"articles"`
}

var articleMarker = regexp.MustCompile(`\[ARTICLE:([^:\]]+):([^:\]]+):([^\]]+)\]`)

type rule struct {
	name    string
	pattern *regexp.Regexp
	repl    string
}

// maxPasses bounds Clean; real replies settle in two or three.
const maxPasses = 8

// rules run in order. Clean repeats the whole list until the text stops changing.
var rules = []rule{
	{"markdown-heading", regexp.MustCompile(`(?m)^[ \t]*#{1,6}[^\n]*\n?`), ""},
	{"bold-numbered-section", regexp.MustCompile(`\*{0,2}\d+\.[ \t]*\*\*[A-ZÆØÅ \t&]+\*\*[ \t]*`), ""},
	{"numbered-caps-line", regexp.MustCompile(`(?m)^[ \t]*\d+\.[ \t]*[A-ZÆØÅ][A-ZÆØÅ \t&]+(?:\n|\z)`), ""},
	{"caps-line", regexp.MustCompile(`(?m)^[ \t]*[*#]*[ \t]*[A-ZÆØÅ \t&]{10,}[ \t]*[*#]*[ \t]*(?:\n|\z)`), ""},
	{"sentence-space", regexp.MustCompile(`([.!?])([A-ZÆØÅ])`), "$1 $2"},
	{"sentence-digit", regexp.MustCompile(`([a-zæøåA-ZÆØÅ])\.(\d)`), "$1. $2"},
	{"preposition-digit", regexp.MustCompile(`\bi(\d)`), "i $1"},
	{"phone-emoji", regexp.MustCompile(`📞\+?(\d+)`), "📞 +$1"},
	{"country-code", regexp.MustCompile(`\+(\d{2})(\d{8})\b`), "+$1 $2"},
	{"local-number", regexp.MustCompile(`\b(\d{3})(\d{2})(\d{3})\b`), "$1 $2 $3"},
	{"comma-space", regexp.MustCompile(`,([^\s\d,])`), ", $1"},
	{"comma-before-digit", regexp.MustCompile(`(\D),(\d)`), "$1, $2"},
	{"repeated-space", regexp.MustCompile(`[ \t]{2,}`), " "},
	{"trailing-space", regexp.MustCompile(`[ \t]+\n`), "\n"},
	{"blank-lines", regexp.MustCompile(`\n{3,}`), "\n\n"},
}

// Normalize extracts article markers and cleans typography. It never fails.
func Normalize(raw string) Result {
	text, articles := ExtractArticles(raw)
	return Result{Text: Clean(text), Articles: articles}
}

// ExtractArticles removes every [ARTICLE:id:title:url] marker and returns them in first-seen order.
// The url part is the rest of the marker, so it may contain colons.
func ExtractArticles(raw string) (string, []models.ArticleReference) {
	articles := []models.ArticleReference{}
	// removing one marker can splice the halves of another together
	for articleMarker.MatchString(raw) {
		for _, m := range articleMarker.FindAllStringSubmatch(raw, -1) {
			articles = append(articles, models.ArticleReference{
				ID:    strings.TrimSpace(m[1]),
				Title: strings.TrimSpace(m[2]),
				URL:   strings.TrimSpace(m[3]),
			})
		}
		raw = articleMarker.ReplaceAllString(raw, "")
	}
	return raw, articles
}

// Clean applies the typography rules until the text is stable, so Clean(Clean(s)) == Clean(s).
func Clean(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	for i := 0; i < maxPasses; i++ {
		next := cleanOnce(text)
		if next == text {
			break
		}
		text = next
	}
	return text
}

func cleanOnce(text string) string {
	for _, r := range rules {
		text = r.pattern.ReplaceAllString(text, r.repl)
	}
	return strings.TrimSpace(text)
}
