package memory

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Strategy selects the ranker feeding the packer.
type Strategy string

const (
	// StrategyRelevant ranks candidates by TF-IDF cosine relevance.
	StrategyRelevant Strategy = "relevant"
	// StrategyMMR ranks candidates by Maximal Marginal Relevance.
	StrategyMMR Strategy = "mmr"
)

// DefaultSeparator joins packed pieces when none is given.
const DefaultSeparator = "\n\n"

// defaultCandidateMultiplier controls packer over-fetching.
const defaultCandidateMultiplier = 3

// maxCandidateK caps the candidate pool ranked ahead of packing.
const maxCandidateK = 100

// ParseStrategy converts a wire value into a Strategy. Unrecognized values
// are an explicit error rather than a silent fallback.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case StrategyRelevant:
		return StrategyRelevant, nil
	case StrategyMMR:
		return StrategyMMR, nil
	case "":
		return StrategyRelevant, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownStrategy, s)
	}
}

// pack walks ranked candidates in order and greedily fills a character
// budget. Packing stops at the first candidate that would exceed the budget
// once anything is packed (strict prefix greedy, not bin-packing). If the
// very first candidate alone exceeds the budget it is truncated to exactly
// budgetChars characters; an empty truncation skips to the next candidate.
func pack(candidates []MemoryItem, k, budgetChars int, separator string) ([]MemoryItem, string) {
	if len(candidates) == 0 {
		return nil, ""
	}

	sepLen := utf8.RuneCountInString(separator)

	var (
		packed     []MemoryItem
		pieces     []string
		currentLen int
	)

	for _, item := range candidates {
		if len(packed) >= k {
			break
		}
		piece := item.Content
		addLen := utf8.RuneCountInString(piece)
		if len(pieces) > 0 {
			addLen += sepLen
		}

		if len(pieces) > 0 && currentLen+addLen > budgetChars {
			break
		}
		if len(pieces) == 0 && addLen > budgetChars {
			piece = truncateRunes(piece, budgetChars)
			addLen = utf8.RuneCountInString(piece)
			if piece == "" {
				continue
			}
		}

		pieces = append(pieces, piece)
		packed = append(packed, item)
		currentLen += addLen
	}

	return packed, strings.Join(pieces, separator)
}

// truncateRunes cuts s to at most n runes.
func truncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
