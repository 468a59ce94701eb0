package categorize

import (
	"strings"

	"github.com/rumor-ml/commons.systems/finledger/internal/domain"
)

// nameAcceptThreshold is the minimum score for a category-name match.
const nameAcceptThreshold = 0.6

// historyAcceptThreshold is the minimum token similarity for a historical
// transaction to vote. Strictly greater-than.
const historyAcceptThreshold = 0.7

// Word-level scores used by historical matching.
const (
	wordExactScore       = 1.0
	wordContainmentScore = 0.85
	wordFuzzyScore       = 0.7
)

// MatchByName suggests a category whose name resembles the description.
// Only candidates of the requested type participate. An exact normalized
// match wins immediately, regardless of what any other candidate would
// score. Returns false when no candidate reaches the acceptance threshold.
func MatchByName(description string, categories []domain.Category, txType domain.TransactionType) (string, bool) {
	desc := Normalize(description)
	if desc == "" {
		return "", false
	}

	bestID := ""
	best := 0.0
	for _, c := range categories {
		if c.Type != txType {
			continue
		}
		name := Normalize(c.Name)
		if name == "" {
			continue
		}
		if name == desc {
			return c.ID, true
		}

		var score float64
		switch {
		case strings.Contains(desc, name):
			// The contained string's share of the longer one, plus a
			// fixed bonus so containment outranks plain edit distance.
			score = float64(len(name))/float64(len(desc)) + 0.5
		case strings.Contains(name, desc):
			score = float64(len(desc))/float64(len(name)) + 0.5
		default:
			longer := max(len(desc), len(name))
			score = 1 - float64(levenshtein(desc, name))/float64(longer)
		}
		if score > best {
			best = score
			bestID = c.ID
		}
	}

	if best >= nameAcceptThreshold {
		return bestID, true
	}
	return "", false
}

// DetectFromHistory suggests the category used most often by prior
// transactions of the same type whose descriptions are token-similar to
// this one. Ties resolve to the category that reached the maximum count
// first in history order. Returns false when no prior transaction
// qualifies.
func DetectFromHistory(description string, txType domain.TransactionType, history []domain.Transaction) (string, bool) {
	target := tokens(Normalize(description))
	if len(target) == 0 {
		return "", false
	}

	counts := make(map[string]int)
	var order []string
	for _, tx := range history {
		if tx.Type != txType || tx.CategoryID == "" {
			continue
		}
		candidate := tokens(Normalize(tx.Description))
		if tokenSimilarity(candidate, target) <= historyAcceptThreshold {
			continue
		}
		if _, seen := counts[tx.CategoryID]; !seen {
			order = append(order, tx.CategoryID)
		}
		counts[tx.CategoryID]++
	}

	bestID := ""
	best := 0
	for _, id := range order {
		if counts[id] > best {
			best = counts[id]
			bestID = id
		}
	}
	if bestID == "" {
		return "", false
	}
	return bestID, true
}

// tokenSimilarity greedily matches each candidate word against its best
// still-unmatched target word, then normalizes the summed scores by the
// average word count of the two descriptions.
func tokenSimilarity(candidate, target []string) float64 {
	if len(candidate) == 0 || len(target) == 0 {
		return 0
	}

	used := make([]bool, len(target))
	var sum float64
	for _, w := range candidate {
		bestIdx := -1
		best := 0.0
		for j, t := range target {
			if used[j] {
				continue
			}
			if s := wordScore(w, t); s > best {
				best = s
				bestIdx = j
			}
		}
		if bestIdx >= 0 {
			used[bestIdx] = true
			sum += best
		}
	}

	avg := float64(len(candidate)+len(target)) / 2
	return sum / avg
}

// wordScore rates how well two single words match.
func wordScore(a, b string) float64 {
	if a == b {
		return wordExactScore
	}

	shorter, longer := a, b
	if len(shorter) > len(longer) {
		shorter, longer = longer, shorter
	}
	// Containment of very short words ("the" in "theater") is noise.
	if len(shorter) >= 4 && strings.Contains(longer, shorter) {
		return wordContainmentScore
	}

	sim := 1 - float64(levenshtein(a, b))/float64(len(longer))
	threshold := 0.35
	if len(longer) <= 5 {
		threshold = 0.2
	}
	if sim > threshold {
		return wordFuzzyScore
	}
	return 0
}
