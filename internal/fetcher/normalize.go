package fetcher

import (
	"strings"
	"time"
	"unicode"

	"github.com/PuerkitoBio/goquery"
)

const defaultTitle = "Без заголовка"

var entityReplacer = strings.NewReplacer(
	"\u00a0", " ",
	"&nbsp;", " ",
	"\u2013", "-",
	"&ndash;", "-",
)

// CleanText strips markup and normalizes whitespace and punctuation spacing.
func CleanText(raw string) string {
	text := raw

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err == nil {
		text = doc.Text()
	}

	text = entityReplacer.Replace(text)
	text = strings.Join(strings.Fields(text), " ")

	return spaceAfterPunctuation(text)
}

func isSentenceEnd(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

// spaceAfterPunctuation вставляет пробел после .!? перед буквой, если его нет.
// Дробные числа вида 16.5 не трогаются.
func spaceAfterPunctuation(s string) string {
	runes := []rune(s)

	var b strings.Builder
	b.Grow(len(s))

	for i, r := range runes {
		b.WriteRune(r)

		if !isSentenceEnd(r) || i+1 >= len(runes) {
			continue
		}

		next := runes[i+1]
		if unicode.IsSpace(next) || unicode.IsPunct(next) {
			continue
		}

		if i > 0 && unicode.IsDigit(runes[i-1]) && unicode.IsDigit(next) {
			continue
		}

		b.WriteRune(' ')
	}

	return b.String()
}

// Truncate keeps the first n sentences. A sentence ends at .!? followed by whitespace.
func Truncate(text string, n int) string {
	runes := []rune(text)

	count := 0
	for i, r := range runes {
		if !isSentenceEnd(r) {
			continue
		}

		if i+1 < len(runes) && !unicode.IsSpace(runes[i+1]) {
			continue
		}

		count++
		if count == n {
			return string(runes[:i+1])
		}
	}

	return text
}

// RFC1123Z и RFC1123, день месяца из одной или двух цифр
var publishedLayouts = []string{
	"Mon, _2 Jan 2006 15:04:05 -0700",
	"Mon, _2 Jan 2006 15:04:05 MST",
}

// ParsePublished accepts RFC 822 style feed dates and falls back to now.
func ParsePublished(raw string, now time.Time) time.Time {
	raw = strings.TrimSpace(raw)

	for _, layout := range publishedLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC()
		}
	}

	return now.UTC()
}

// ExtractImage returns the src of the first <img> tag that has one.
func ExtractImage(raw string) string {
	rest := raw

	for {
		start := strings.Index(rest, "<img")
		if start < 0 {
			return ""
		}
		rest = rest[start:]

		tag := rest
		if end := strings.Index(rest, ">"); end >= 0 {
			tag = rest[:end]
		}

		if i := strings.Index(tag, `src="`); i >= 0 {
			value := tag[i+len(`src="`):]
			if j := strings.Index(value, `"`); j >= 0 {
				return value[:j]
			}
		}

		rest = rest[len("<img"):]
	}
}

func titleOrDefault(title string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		return defaultTitle
	}

	return title
}
