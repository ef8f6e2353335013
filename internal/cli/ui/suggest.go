package ui

import (
	"sort"
	"strings"
)

// maxSuggestDistance is the largest edit distance still offered as a suggestion
const maxSuggestDistance = 3

// Suggest returns the candidates within a small edit distance of target,
// closest first, compared case-insensitively
func Suggest(target string, candidates []string) []string {
	type match struct {
		value    string
		distance int
	}

	target = strings.ToLower(target)
	var matches []match
	for _, c := range candidates {
		if d := editDistance(target, strings.ToLower(c)); d <= maxSuggestDistance {
			matches = append(matches, match{c, d})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].distance < matches[j].distance
	})

	out := make([]string, len(matches))
	for i, m := range matches {
		out[i] = m.value
	}
	return out
}

// DidYouMean formats the closest candidate as an error suffix, or "" when
// nothing is close
func DidYouMean(target string, candidates []string) string {
	s := Suggest(target, candidates)
	if len(s) == 0 {
		return ""
	}
	return " (did you mean " + s[0] + "?)"
}

// editDistance is the Levenshtein distance between a and b
func editDistance(a, b string) int {
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}
