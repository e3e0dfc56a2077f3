package form

import "strings"

// fuzzyMatch reports whether every character of search appears in text in
// order, ignoring case, and returns the matched byte positions.
func fuzzyMatch(search, text string) (bool, []int) {
	search = strings.ToLower(search)
	text = strings.ToLower(text)

	var positions []int
	searchRunes := []rune(search)
	searchIdx := 0

	for i, char := range text {
		if searchIdx < len(searchRunes) && char == searchRunes[searchIdx] {
			positions = append(positions, i)
			searchIdx++
		}
	}

	return searchIdx == len(searchRunes), positions
}

// Filter returns the indexes of a reference field's choices that match
// query: labels starting with it first, then fuzzy matches, each group in
// the original order. An empty query matches every choice.
func (f *Field) Filter(query string) []int {
	var prefix, fuzzy []int
	lower := strings.ToLower(query)
	for i, c := range f.Choices {
		if query == "" || strings.HasPrefix(strings.ToLower(c.Label), lower) {
			prefix = append(prefix, i)
			continue
		}
		if ok, _ := fuzzyMatch(query, c.Label); ok {
			fuzzy = append(fuzzy, i)
		}
	}
	return append(prefix, fuzzy...)
}
