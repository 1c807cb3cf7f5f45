package memory

import (
	"math"
	"sort"
	"time"
)

// scoreEpsilon is the tolerance for treating two floating-point scores as
// equal when applying the recency tie-break.
const scoreEpsilon = 1e-9

// rankByRelevance scores each candidate by TF-IDF cosine similarity to the
// prompt, drops scores below minScore, and orders by score descending with
// timestamp descending as tie-break. Corpus statistics cover the candidates
// only. An empty prompt token set is handled by the caller.
func rankByRelevance(items []MemoryItem, docs [][]string, promptTokens []string, minScore float64) []ScoredItem {
	stats := newCorpusStats(docs)
	promptVec := stats.vector(promptTokens)

	scored := make([]ScoredItem, 0, len(items))
	for i, item := range items {
		score := cosine(promptVec, stats.vector(docs[i]))
		if score < minScore {
			continue
		}
		scored = append(scored, ScoredItem{Score: score, Item: item})
	}
	sortScored(scored)
	return scored
}

// rankByMMR greedily selects up to k candidates maximizing
// lambda*relevance - (1-lambda)*max_similarity_to_selected. Candidates below
// minScore relevance never enter the pool. Near-equal scores prefer the more
// recent item. Cost is O(k * |candidates|) similarity evaluations, acceptable
// at per-user corpus scale.
func rankByMMR(items []MemoryItem, docs [][]string, promptTokens []string, k int, lambda, minScore float64) []ScoredItem {
	lambda = clamp01(lambda)

	stats := newCorpusStats(docs)
	promptVec := stats.vector(promptTokens)

	docVecs := make([]termVector, len(docs))
	for i, tokens := range docs {
		docVecs[i] = stats.vector(tokens)
	}

	var pool []int
	relevance := make([]float64, len(items))
	for i := range items {
		relevance[i] = cosine(docVecs[i], promptVec)
		if relevance[i] >= minScore {
			pool = append(pool, i)
		}
	}
	if len(pool) == 0 {
		return nil
	}

	if k > len(pool) {
		k = len(pool)
	}

	selected := make([]int, 0, k)
	inSelected := make(map[int]bool, k)

	for len(selected) < k {
		bestIdx := -1
		bestScore := math.Inf(-1)
		for _, i := range pool {
			if inSelected[i] {
				continue
			}
			penalty := 0.0
			for _, j := range selected {
				if sim := cosine(docVecs[i], docVecs[j]); sim > penalty {
					penalty = sim
				}
			}
			score := lambda*relevance[i] - (1.0-lambda)*penalty

			switch {
			case score > bestScore+scoreEpsilon:
				bestIdx, bestScore = i, score
			case math.Abs(score-bestScore) <= scoreEpsilon && bestIdx >= 0 &&
				items[i].Timestamp.After(items[bestIdx].Timestamp):
				bestIdx, bestScore = i, score
			}
		}
		if bestIdx < 0 {
			break
		}
		selected = append(selected, bestIdx)
		inSelected[bestIdx] = true
	}

	out := make([]ScoredItem, len(selected))
	for n, i := range selected {
		out[n] = ScoredItem{Score: relevance[i], Item: items[i]}
	}
	return out
}

// decayWeight is the exponential recency weight 0.5^(age_hours/half_life).
func decayWeight(age time.Duration, halfLifeHours float64) float64 {
	if halfLifeHours <= 0 {
		return 1.0
	}
	return math.Pow(0.5, age.Hours()/halfLifeHours)
}

// mostRecent returns up to k items in reverse chronological order. Used as
// the fallback when a prompt tokenizes to nothing.
func mostRecent(items []MemoryItem, k int) []MemoryItem {
	if k > len(items) {
		k = len(items)
	}
	out := make([]MemoryItem, 0, k)
	for i := len(items) - 1; i >= 0 && len(out) < k; i-- {
		out = append(out, items[i])
	}
	return out
}

// sortScored orders by score descending, timestamp descending on ties.
func sortScored(scored []ScoredItem) {
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Item.Timestamp.After(scored[j].Item.Timestamp)
	})
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func itemsOf(scored []ScoredItem) []MemoryItem {
	items := make([]MemoryItem, len(scored))
	for i, s := range scored {
		items[i] = s.Item
	}
	return items
}
