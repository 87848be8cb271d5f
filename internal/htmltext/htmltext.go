// Package htmltext извлекает читаемый текст из HTML-страниц.
package htmltext

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	scriptRe = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	styleRe  = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	tagRe    = regexp.MustCompile(`</?[^>]+(>|$)`)
)

// Strip удаляет из HTML блоки <script> и <style>, заменяет остальные
// теги пробелами и схлопывает пробельные символы.
func Strip(html string) string {
	text := scriptRe.ReplaceAllString(html, "")
	text = styleRe.ReplaceAllString(text, "")
	text = tagRe.ReplaceAllString(text, " ")
	return strings.Join(strings.Fields(text), " ")
}

// Truncate возвращает первые maxChars символов строки.
// maxChars <= 0 означает «без ограничения».
func Truncate(s string, maxChars int) string {
	if maxChars <= 0 || utf8.RuneCountInString(s) <= maxChars {
		return s
	}

	i := 0
	for pos := range s {
		if i == maxChars {
			return s[:pos]
		}
		i++
	}
	return s
}
