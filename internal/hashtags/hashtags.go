// Package hashtags extracts and normalises the #tags written in video titles and
// descriptions.
package hashtags

import (
	"regexp"
	"slices"
	"strings"
)

// MaxLength is the longest tag name that is stored.
const MaxLength = 100

var tagPattern = regexp.MustCompile(`#([A-Za-z0-9_]+)`)

// Extract returns the distinct tags found in texts, lowercased and sorted. Tags longer
// than MaxLength are ignored.
func Extract(texts ...string) []string {
	seen := make(map[string]struct{})
	var tags []string
	for _, text := range texts {
		for _, match := range tagPattern.FindAllStringSubmatch(text, -1) {
			tag := strings.ToLower(match[1])
			if len(tag) > MaxLength {
				continue
			}
			if _, ok := seen[tag]; ok {
				continue
			}
			seen[tag] = struct{}{}
			tags = append(tags, tag)
		}
	}
	slices.Sort(tags)
	return tags
}

// Normalize turns user input such as "#GoLang" into the stored form "golang". It
// reports false when the input is not a valid tag.
func Normalize(raw string) (string, bool) {
	tag := strings.ToLower(strings.TrimLeft(strings.TrimSpace(raw), "#"))
	if tag == "" || len(tag) > MaxLength {
		return "", false
	}
	if m := tagPattern.FindString("#" + tag); len(m) != len(tag)+1 {
		return "", false
	}
	return tag, true
}
