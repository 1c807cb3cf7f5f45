// Package memory implements the NeuraVault retrieval engine: a per-user,
// append-only timeline of short text memories with TF-IDF relevance ranking,
// MMR diversity re-ranking, exponential time decay, recency windowing, and
// budget-constrained context packing.
package memory

import (
	"errors"
	"time"
)

// Sentinel errors for the memory engine.
var (
	ErrInvalidUserID    = errors.New("memory: invalid user ID")
	ErrEmptyContent     = errors.New("memory: content must not be empty")
	ErrUnknownStrategy  = errors.New("memory: unknown ranking strategy")
	ErrStoreUnavailable = errors.New("memory: store unavailable")
)

// MemoryItem is a single piece of memory stored for a user. Items are
// immutable once appended; identity is structural (content + timestamp).
type MemoryItem struct {
	// UserID keys the timeline the item belongs to.
	UserID string `json:"user_id"`

	// LLM is the name of the model that produced the memory.
	LLM string `json:"llm"`

	// Content is the raw text of the memory.
	Content string `json:"content"`

	// Timestamp is the creation time (UTC). Defaults to time of append.
	Timestamp time.Time `json:"timestamp"`
}

// ScoredItem pairs a memory item with its relevance score. Produced by the
// rankers, consumed by the packer. Ordering is score descending with
// timestamp descending as tie-break.
type ScoredItem struct {
	Score float64    `json:"score"`
	Item  MemoryItem `json:"item"`
}

// Stats summarizes a user's timeline.
type Stats struct {
	Total          int        `json:"total"`
	FirstTimestamp *time.Time `json:"first_timestamp,omitempty"`
	LastTimestamp  *time.Time `json:"last_timestamp,omitempty"`
}

// Query holds the parameters for a retrieval call. Fields beyond K and
// MinScore apply only to specific rankers.
type Query struct {
	// Prompt is the conversation turn to retrieve context for.
	Prompt string `json:"prompt"`

	// LLM optionally restricts candidates to one originating model.
	LLM string `json:"llm,omitempty"`

	// K limits the number of results. Floored to 1 by the engine.
	K int `json:"k"`

	// MinScore discards candidates whose relevance falls below it.
	MinScore float64 `json:"min_score"`

	// LambdaMult is the MMR relevance/diversity tradeoff: 1 is pure
	// relevance, 0 pure diversity. Clamped into [0,1].
	LambdaMult float64 `json:"lambda_mult,omitempty"`

	// HalfLifeHours is the recency half-life for the time-decay ranker.
	HalfLifeHours float64 `json:"half_life_hours,omitempty"`

	// WindowCount restricts the candidate pool to the most recent N items
	// before ranking. Zero means no count window.
	WindowCount int `json:"window_count,omitempty"`

	// WindowHours restricts the candidate pool to items newer than the
	// given number of hours. Zero means no time window.
	WindowHours float64 `json:"window_hours,omitempty"`
}

// PackQuery holds the parameters for a packed-context retrieval call.
type PackQuery struct {
	Query

	// BudgetChars is the character budget for the packed text. Floored to 1.
	BudgetChars int `json:"budget_chars"`

	// Strategy selects the candidate ranker.
	Strategy Strategy `json:"strategy"`

	// CandidateMultiplier controls over-fetching: the packer ranks
	// clamp(k, k*multiplier, 100) candidates. Zero means the default of 3.
	CandidateMultiplier int `json:"candidate_multiplier,omitempty"`

	// Separator joins packed pieces. Empty means the default "\n\n".
	Separator string `json:"separator,omitempty"`
}
