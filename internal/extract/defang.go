package extract

import (
	"regexp"
	"strings"
)

// Analysts routinely paste indicators in defanged form ("1[.]2[.]3[.]4",
// "hxxp://evil[.]com") so nothing renders or executes by accident. All
// candidate text is normalized back to canonical form before pattern
// matching and validation.

var (
	hxxpRe  = regexp.MustCompile(`(?i)\bh[x]{2}p(s?)\b`)
	atMarks = regexp.MustCompile(`(?i)\s*(?:\[at\]|\(at\)|\[@\])\s*`)
)

var defangReplacer = strings.NewReplacer(
	"[.]", ".",
	"(.)", ".",
	"{.}", ".",
	"[dot]", ".",
	"(dot)", ".",
	"[://]", "://",
	"[:]", ":",
	"[/]", "/",
)

// Refang rewrites defanging markers back to their canonical characters.
// Text without markers passes through unchanged.
func Refang(text string) string {
	text = defangReplacer.Replace(text)
	text = hxxpRe.ReplaceAllString(text, "http$1")
	text = atMarks.ReplaceAllString(text, "@")
	return text
}
