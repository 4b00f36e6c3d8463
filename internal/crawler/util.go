package crawler

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	pathUnsafe = strings.NewReplacer("/", "-", "\\", "-", "\x00", "")
	spaceRun   = regexp.MustCompile(`\s+`)
	yearToken  = regexp.MustCompile(`[0-9]{4}`)
)

// SanitizeName turns a journal display name into something usable as a file
// name. Colons are rewritten with colonReplacement, path separators become
// dashes, and whitespace runs collapse to a single space.
func SanitizeName(name, colonReplacement string) string {
	name = strings.ReplaceAll(name, ":", colonReplacement)
	name = pathUnsafe.Replace(name)
	name = spaceRun.ReplaceAllString(name, " ")
	name = strings.Trim(name, " .")
	return name
}

// FirstYear returns the first four digit token in s.
func FirstYear(s string) (int, bool) {
	token := yearToken.FindString(s)
	if token == "" {
		return 0, false
	}
	year, err := strconv.Atoi(token)
	if err != nil {
		return 0, false
	}
	return year, true
}
