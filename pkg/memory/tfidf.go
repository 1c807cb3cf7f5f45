package memory

import "math"

// termVector is a sparse mapping from term to non-negative TF-IDF weight.
// A document with no tokens maps to an empty vector.
type termVector map[string]float64

// corpusStats holds document frequencies for a fixed candidate set. The
// statistics are rebuilt on every retrieval call so they are always fresh
// relative to the store at call time; the query itself is never part of
// the corpus it is scored against.
type corpusStats struct {
	df      map[string]int
	numDocs int
}

// newCorpusStats computes document frequencies over the token lists of the
// candidate documents.
func newCorpusStats(docs [][]string) *corpusStats {
	df := make(map[string]int)
	for _, tokens := range docs {
		seen := make(map[string]struct{}, len(tokens))
		for _, term := range tokens {
			if _, ok := seen[term]; ok {
				continue
			}
			seen[term] = struct{}{}
			df[term]++
		}
	}
	return &corpusStats{df: df, numDocs: len(docs)}
}

// idf returns the smoothed inverse document frequency:
// ln((N+1)/(df+1)) + 1, positive and defined for terms absent from the corpus.
func (c *corpusStats) idf(term string) float64 {
	return math.Log(float64(c.numDocs+1)/float64(c.df[term]+1)) + 1.0
}

// vector builds the TF-IDF weight vector for one token list. Each term's
// weight is count/len(tokens) * idf(term).
func (c *corpusStats) vector(tokens []string) termVector {
	vec := make(termVector, len(tokens))
	if len(tokens) == 0 {
		return vec
	}
	counts := make(map[string]int, len(tokens))
	for _, term := range tokens {
		counts[term]++
	}
	invLen := 1.0 / float64(len(tokens))
	for term, count := range counts {
		vec[term] = float64(count) * invLen * c.idf(term)
	}
	return vec
}

// cosine returns the cosine similarity between two sparse vectors, in [0,1]
// for non-negative weights. Norms are floored at 1.0 so empty vectors score
// 0 rather than dividing by zero.
func cosine(a, b termVector) float64 {
	if len(a) > len(b) {
		a, b = b, a
	}
	dot := 0.0
	for term, av := range a {
		if bv, ok := b[term]; ok {
			dot += av * bv
		}
	}
	return dot / (norm(a) * norm(b))
}

func norm(v termVector) float64 {
	sum := 0.0
	for _, w := range v {
		sum += w * w
	}
	n := math.Sqrt(sum)
	if n < 1.0 {
		return 1.0
	}
	return n
}
