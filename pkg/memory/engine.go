package memory

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"
)

// engineLogger is the minimal logger interface used by the Engine.
type engineLogger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// nopLogger is a no-op logger.
type nopLogger struct{}

func (nopLogger) Debug(msg string, args ...any) {}
func (nopLogger) Info(msg string, args ...any)  {}
func (nopLogger) Warn(msg string, args ...any)  {}
func (nopLogger) Error(msg string, args ...any) {}

// MetricsRecorder receives retrieval instrumentation from the Engine.
type MetricsRecorder interface {
	RecordRetrieval(strategy string, duration time.Duration)
	RecordPackedChars(n int)
}

// Engine is the retrieval engine over an injected Store. Every retrieval
// call is a self-contained computation over a snapshot of one user's items;
// the engine never mutates stored items.
type Engine struct {
	store   Store
	logger  engineLogger
	metrics MetricsRecorder
	now     func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(log engineLogger) Option {
	return func(e *Engine) {
		if log != nil {
			e.logger = log
		}
	}
}

// WithMetrics sets the retrieval metrics recorder.
func WithMetrics(m MetricsRecorder) Option {
	return func(e *Engine) { e.metrics = m }
}

// withClock overrides the engine clock. Test hook.
func withClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates a retrieval engine backed by the given store. The store
// is an explicit collaborator owned by the hosting process, never a hidden
// package-level singleton.
func NewEngine(store Store, opts ...Option) *Engine {
	e := &Engine{
		store:  store,
		logger: nopLogger{},
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Append stores one memory item. A zero timestamp defaults to the current
// time in UTC.
func (e *Engine) Append(ctx context.Context, item MemoryItem) error {
	if item.UserID == "" {
		return ErrInvalidUserID
	}
	if item.Content == "" {
		return ErrEmptyContent
	}
	if item.Timestamp.IsZero() {
		item.Timestamp = e.now().UTC()
	}
	if err := e.store.Append(ctx, item); err != nil {
		return fmt.Errorf("memory: append failed: %w", err)
	}
	return nil
}

// Timeline returns the user's full timeline, ascending by timestamp.
func (e *Engine) Timeline(ctx context.Context, userID string) ([]MemoryItem, error) {
	return e.store.GetAll(ctx, userID)
}

// Search returns items whose content contains the query, case-insensitively,
// optionally filtered by originating model.
func (e *Engine) Search(ctx context.Context, userID, query, llm string) ([]MemoryItem, error) {
	items, err := e.store.GetAll(ctx, userID)
	if err != nil {
		return nil, err
	}
	return searchSubstring(filterByLLM(items, llm), query), nil
}

// DeleteAll removes every memory for the user and returns the count.
func (e *Engine) DeleteAll(ctx context.Context, userID string) (int, error) {
	count, err := e.store.DeleteAll(ctx, userID)
	if err != nil {
		return 0, err
	}
	e.logger.Info("deleted user memories", "user_id", userID, "count", count)
	return count, nil
}

// GetStats summarizes the user's timeline.
func (e *Engine) GetStats(ctx context.Context, userID string) (*Stats, error) {
	items, err := e.store.GetAll(ctx, userID)
	if err != nil {
		return nil, err
	}
	stats := &Stats{Total: len(items)}
	if len(items) > 0 {
		first := items[0].Timestamp
		last := items[len(items)-1].Timestamp
		stats.FirstTimestamp = &first
		stats.LastTimestamp = &last
	}
	return stats, nil
}

// UserCounts maps each known user to their item count.
func (e *Engine) UserCounts(ctx context.Context) (map[string]int, error) {
	return e.store.UserCounts(ctx)
}

// Relevant returns the top-k items most relevant to the prompt using TF-IDF
// cosine similarity. An empty or non-tokenizable prompt falls back to the k
// most recent items; this is the documented fallback policy, not an error.
func (e *Engine) Relevant(ctx context.Context, userID string, q Query) ([]MemoryItem, error) {
	defer e.observe(string(StrategyRelevant), e.now())

	items, err := e.candidates(ctx, userID, q.LLM)
	if err != nil || len(items) == 0 {
		return nil, err
	}
	k := flooredK(q.K)

	docs, promptTokens := tokenizeAll(items, q.Prompt)
	if len(promptTokens) == 0 {
		return mostRecent(items, k), nil
	}

	scored := rankByRelevance(items, docs, promptTokens, q.MinScore)
	if len(scored) > k {
		scored = scored[:k]
	}
	return itemsOf(scored), nil
}

// RelevantDiverse returns top-k items using Maximal Marginal Relevance.
// LambdaMult 1 is relevance-only, 0 diversity-only; out-of-range values are
// clamped. If no candidate clears MinScore the result is empty.
func (e *Engine) RelevantDiverse(ctx context.Context, userID string, q Query) ([]MemoryItem, error) {
	defer e.observe(string(StrategyMMR), e.now())

	items, err := e.candidates(ctx, userID, q.LLM)
	if err != nil || len(items) == 0 {
		return nil, err
	}
	k := flooredK(q.K)

	docs, promptTokens := tokenizeAll(items, q.Prompt)
	if len(promptTokens) == 0 {
		return mostRecent(items, k), nil
	}

	return itemsOf(rankByMMR(items, docs, promptTokens, k, q.LambdaMult, q.MinScore)), nil
}

// RelevantTimeDecay blends TF-IDF relevance with an exponential recency
// weight 0.5^(age_hours/half_life_hours). The blend is multiplicative:
// final = relevance * decay. MinScore applies to the raw relevance score so
// the threshold means the same thing as in Relevant. A non-positive
// half-life disables decay rather than failing.
func (e *Engine) RelevantTimeDecay(ctx context.Context, userID string, q Query) ([]MemoryItem, error) {
	defer e.observe("time_decay", e.now())

	items, err := e.candidates(ctx, userID, q.LLM)
	if err != nil || len(items) == 0 {
		return nil, err
	}
	k := flooredK(q.K)

	docs, promptTokens := tokenizeAll(items, q.Prompt)
	if len(promptTokens) == 0 {
		return mostRecent(items, k), nil
	}

	scored := rankByRelevance(items, docs, promptTokens, q.MinScore)
	now := e.now()
	for i := range scored {
		scored[i].Score *= decayWeight(now.Sub(scored[i].Item.Timestamp), q.HalfLifeHours)
	}
	sortScored(scored)
	if len(scored) > k {
		scored = scored[:k]
	}
	return itemsOf(scored), nil
}

// RelevantWindow restricts the candidate pool to the most recent
// WindowCount items and/or items within WindowHours of now, then ranks the
// filtered pool by relevance. Both windows intersect when given.
func (e *Engine) RelevantWindow(ctx context.Context, userID string, q Query) ([]MemoryItem, error) {
	defer e.observe("window", e.now())

	items, err := e.candidates(ctx, userID, q.LLM)
	if err != nil || len(items) == 0 {
		return nil, err
	}
	items = windowFilter(items, q.WindowCount, q.WindowHours, e.now())
	if len(items) == 0 {
		return nil, nil
	}
	k := flooredK(q.K)

	docs, promptTokens := tokenizeAll(items, q.Prompt)
	if len(promptTokens) == 0 {
		return mostRecent(items, k), nil
	}

	scored := rankByRelevance(items, docs, promptTokens, q.MinScore)
	if len(scored) > k {
		scored = scored[:k]
	}
	return itemsOf(scored), nil
}

// RelevantPack ranks candidates with the selected strategy and greedily
// packs them into a character budget. It over-fetches
// clamp(k, k*multiplier, 100) candidates so the packer has room to stop
// early. Returns the packed items in ranking order and the joined text,
// whose length never exceeds BudgetChars except for the explicit first-item
// truncation path, which is exactly BudgetChars.
func (e *Engine) RelevantPack(ctx context.Context, userID string, q PackQuery) ([]MemoryItem, string, error) {
	defer e.observe("pack", e.now())

	k := flooredK(q.K)
	budget := q.BudgetChars
	if budget < 1 {
		budget = 1
	}
	multiplier := q.CandidateMultiplier
	if multiplier < 1 {
		multiplier = defaultCandidateMultiplier
	}
	separator := q.Separator
	if separator == "" {
		separator = DefaultSeparator
	}

	candidateK := k * multiplier
	if candidateK > maxCandidateK {
		candidateK = maxCandidateK
	}
	if candidateK < k {
		candidateK = k
	}

	candidateQuery := q.Query
	candidateQuery.K = candidateK

	var (
		candidates []MemoryItem
		err        error
	)
	switch q.Strategy {
	case StrategyMMR:
		candidates, err = e.RelevantDiverse(ctx, userID, candidateQuery)
	case StrategyRelevant, "":
		candidates, err = e.Relevant(ctx, userID, candidateQuery)
	default:
		return nil, "", fmt.Errorf("%w: %q", ErrUnknownStrategy, q.Strategy)
	}
	if err != nil {
		return nil, "", err
	}

	packed, text := pack(candidates, k, budget, separator)
	if e.metrics != nil {
		// Budgets are counted in runes; keep the metric in the same unit.
		e.metrics.RecordPackedChars(utf8.RuneCountInString(text))
	}
	return packed, text, nil
}

// candidates snapshots a user's timeline and applies the optional LLM
// filter. Unknown users yield an empty pool.
func (e *Engine) candidates(ctx context.Context, userID, llm string) ([]MemoryItem, error) {
	items, err := e.store.GetAll(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("memory: snapshot failed: %w", err)
	}
	return filterByLLM(items, llm), nil
}

// observe records a retrieval metric if a recorder is configured.
func (e *Engine) observe(strategy string, start time.Time) {
	if e.metrics == nil {
		return
	}
	e.metrics.RecordRetrieval(strategy, e.now().Sub(start))
}

// tokenizeAll tokenizes every candidate and the prompt.
func tokenizeAll(items []MemoryItem, prompt string) ([][]string, []string) {
	docs := make([][]string, len(items))
	for i, item := range items {
		docs[i] = tokenize(item.Content)
	}
	return docs, tokenize(prompt)
}

func flooredK(k int) int {
	if k < 1 {
		return 1
	}
	return k
}
