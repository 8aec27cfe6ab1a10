package utils

import "github.com/agnivade/levenshtein"

// Similarity returns the normalized edit-distance similarity between two
// strings: 1.0 for identical, 0.0 for completely different.
func Similarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	if a == "" || b == "" {
		return 0.0
	}

	longest := len([]rune(a))
	if l := len([]rune(b)); l > longest {
		longest = l
	}

	distance := levenshtein.ComputeDistance(a, b)
	return 1.0 - float64(distance)/float64(longest)
}

// MatchScore scores a library candidate against a parsed release title.
// Both titles must already be cleaned. An exact year match boosts the score,
// a clear mismatch penalizes it; the result is clamped to [0, 1].
func MatchScore(title string, year int, candidateTitle string, candidateYear int) float64 {
	score := Similarity(title, candidateTitle)

	if year != 0 && candidateYear != 0 {
		diff := year - candidateYear
		if diff < 0 {
			diff = -diff
		}
		switch {
		case diff == 0:
			score += 0.2
		case diff > 1:
			score -= 0.3
		}
	}

	if score > 1.0 {
		score = 1.0
	}
	if score < 0.0 {
		score = 0.0
	}
	return score
}
