package telephony

import (
	"regexp"
	"strings"
)

var (
	markupTags    = regexp.MustCompile(`<[^>]*>`)
	markupInline  = regexp.MustCompile("[*_`#~]+")
	markupLinks   = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)
	spaceCollapse = regexp.MustCompile(`\s+`)
)

// SanitizeSpeech strips markup from agent output before it is handed to the
// speech layer, which would otherwise read formatting characters aloud.
func SanitizeSpeech(text string) string {
	text = markupLinks.ReplaceAllString(text, "$1")
	text = markupTags.ReplaceAllString(text, "")
	text = markupInline.ReplaceAllString(text, "")
	text = spaceCollapse.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}
