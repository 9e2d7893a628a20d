package core

import "strings"

// Categorize maps a free-text description to a category by keyword
// substring match. Categories are tried in declaration order and the first
// one with any matching keyword wins; Others is the fallback.
func Categorize(description string) Category {
	desc := strings.ToLower(description)
	for _, info := range categoryTable {
		for _, kw := range info.Keywords {
			if strings.Contains(desc, kw) {
				return info.Name
			}
		}
	}
	return Others
}

// DetectHint returns the category a description would be filed under and
// whether it is worth showing as a hint while the user is still typing.
// Very short descriptions that match nothing produce no hint.
func DetectHint(description string) (Category, bool) {
	desc := strings.ToLower(strings.TrimSpace(description))
	cat := Categorize(desc)
	return cat, cat != Others || len(desc) > 2
}
