package contentgen

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const maxSlugLength = 80

// Slugify turns a topic into a URL-safe slug. Unicode letters are kept so
// non-Latin topics stay readable.
func Slugify(s string) string {
	var b strings.Builder
	lastDash := true // suppress a leading dash
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}

	slug := strings.Trim(b.String(), "-")
	if len(slug) > maxSlugLength {
		slug = strings.Trim(truncateRunes(slug, maxSlugLength), "-")
	}
	if slug == "" {
		slug = "untitled"
	}
	return slug
}

// truncateRunes cuts s to at most maxBytes without splitting a rune, so
// multibyte slugs stay valid UTF-8.
func truncateRunes(s string, maxBytes int) string {
	n := 0
	for i, r := range s {
		if i+utf8.RuneLen(r) > maxBytes {
			break
		}
		n = i + utf8.RuneLen(r)
	}
	return s[:n]
}

// Excerpt returns the first maxLen characters of the content's plain text,
// used as a fallback description.
func Excerpt(content string, maxLen int) string {
	text := strings.Join(strings.Fields(stripMarkdown(content)), " ")
	runes := []rune(text)
	if len(runes) <= maxLen {
		return text
	}
	return strings.TrimSpace(string(runes[:maxLen]))
}

func stripMarkdown(s string) string {
	var lines []string
	for _, line := range strings.Split(s, "\n") {
		trimmed := strings.TrimSpace(line)
		trimmed = strings.TrimLeft(trimmed, "#>*- ")
		trimmed = strings.ReplaceAll(trimmed, "`", "")
		trimmed = strings.ReplaceAll(trimmed, "**", "")
		if trimmed != "" {
			lines = append(lines, trimmed)
		}
	}
	return strings.Join(lines, " ")
}
