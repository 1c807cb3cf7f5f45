package memory

import (
	"context"
	"reflect"
	"testing"
	"time"
)

var testBase = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// seedEngine builds an engine over an in-memory store with the given
// contents at one-minute increments.
func seedEngine(t *testing.T, userID string, contents ...string) *Engine {
	t.Helper()
	store := NewInMemoryStore()
	eng := NewEngine(store)
	for i, content := range contents {
		err := eng.Append(context.Background(), MemoryItem{
			UserID:    userID,
			LLM:       "gpt-4",
			Content:   content,
			Timestamp: testBase.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatal(err)
		}
	}
	return eng
}

func contentsOf(items []MemoryItem) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = item.Content
	}
	return out
}

func TestEngine_Append_Validation(t *testing.T) {
	eng := NewEngine(NewInMemoryStore())
	ctx := context.Background()

	if err := eng.Append(ctx, MemoryItem{UserID: "", Content: "x"}); err != ErrInvalidUserID {
		t.Errorf("expected ErrInvalidUserID, got %v", err)
	}
	if err := eng.Append(ctx, MemoryItem{UserID: "u1", Content: ""}); err != ErrEmptyContent {
		t.Errorf("expected ErrEmptyContent, got %v", err)
	}
}

func TestEngine_Append_DefaultsTimestamp(t *testing.T) {
	now := testBase
	store := NewInMemoryStore()
	eng := NewEngine(store, withClock(func() time.Time { return now }))

	if err := eng.Append(context.Background(), MemoryItem{UserID: "u1", Content: "hello"}); err != nil {
		t.Fatal(err)
	}
	items, _ := store.GetAll(context.Background(), "u1")
	if !items[0].Timestamp.Equal(now) {
		t.Errorf("timestamp = %v, want %v", items[0].Timestamp, now)
	}
}

func TestEngine_Relevant_RanksMatchingItems(t *testing.T) {
	eng := seedEngine(t, "u1", "I like cats", "I like dogs", "Cats are great")

	items, err := eng.Relevant(context.Background(), "u1", Query{Prompt: "cats", K: 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	for _, item := range items {
		if item.Content == "I like dogs" {
			t.Errorf("dogs item ranked inside top-2 for prompt 'cats'")
		}
	}
}

func TestEngine_Relevant_TieBreakPrefersRecent(t *testing.T) {
	// Identical contents tie exactly on score; the later one must lead.
	eng := seedEngine(t, "u1", "cats cats", "unrelated topic", "cats cats")

	items, err := eng.Relevant(context.Background(), "u1", Query{Prompt: "cats", K: 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if !items[0].Timestamp.After(items[1].Timestamp) {
		t.Errorf("expected more recent item first on tied scores")
	}
}

func TestEngine_Relevant_MinScoreFilters(t *testing.T) {
	eng := seedEngine(t, "u1", "cats", "dogs", "birds")

	items, err := eng.Relevant(context.Background(), "u1", Query{Prompt: "cats", K: 10, MinScore: 0.5})
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 || items[0].Content != "cats" {
		t.Errorf("expected only the exact match above 0.5, got %v", contentsOf(items))
	}
}

func TestEngine_Relevant_EmptyPromptFallsBackToMostRecent(t *testing.T) {
	eng := seedEngine(t, "u1", "one", "two", "three", "four", "five")

	items, err := eng.Relevant(context.Background(), "u1", Query{Prompt: "   ", K: 3})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"five", "four", "three"}
	if !reflect.DeepEqual(contentsOf(items), want) {
		t.Errorf("fallback = %v, want %v", contentsOf(items), want)
	}
}

func TestEngine_Relevant_KFlooredToOne(t *testing.T) {
	eng := seedEngine(t, "u1", "cats", "more cats")

	items, err := eng.Relevant(context.Background(), "u1", Query{Prompt: "cats", K: 0})
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 {
		t.Errorf("k=0 should floor to 1, got %d items", len(items))
	}
}

func TestEngine_Relevant_LLMFilter(t *testing.T) {
	store := NewInMemoryStore()
	eng := NewEngine(store)
	ctx := context.Background()
	for i, m := range []MemoryItem{
		{UserID: "u1", LLM: "gpt-4", Content: "cats from gpt"},
		{UserID: "u1", LLM: "claude", Content: "cats from claude"},
	} {
		m.Timestamp = testBase.Add(time.Duration(i) * time.Minute)
		if err := eng.Append(ctx, m); err != nil {
			t.Fatal(err)
		}
	}

	items, err := eng.Relevant(ctx, "u1", Query{Prompt: "cats", LLM: "claude", K: 10})
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 || items[0].LLM != "claude" {
		t.Errorf("expected only claude items, got %v", items)
	}
}

func TestEngine_Relevant_UnknownUser(t *testing.T) {
	eng := NewEngine(NewInMemoryStore())

	items, err := eng.Relevant(context.Background(), "ghost", Query{Prompt: "anything", K: 5})
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 0 {
		t.Errorf("unknown user should yield empty results, got %v", items)
	}
}

func TestEngine_Relevant_Idempotent(t *testing.T) {
	eng := seedEngine(t, "u1", "cats are great", "dogs are fine", "cats again", "birds sing")
	q := Query{Prompt: "cats and birds", K: 3}

	first, err := eng.Relevant(context.Background(), "u1", q)
	if err != nil {
		t.Fatal(err)
	}
	second, err := eng.Relevant(context.Background(), "u1", q)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("identical calls diverged:\n%v\n%v", first, second)
	}
}

func TestEngine_Search(t *testing.T) {
	eng := seedEngine(t, "u1", "I like Cats", "dogs bark", "catalog entry")

	items, err := eng.Search(context.Background(), "u1", "cat", "")
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 2 {
		t.Errorf("expected 2 substring matches, got %v", contentsOf(items))
	}
}

func TestEngine_GetStats(t *testing.T) {
	eng := seedEngine(t, "u1", "a", "b", "c")

	stats, err := eng.GetStats(context.Background(), "u1")
	if err != nil {
		t.Fatal(err)
	}
	if stats.Total != 3 {
		t.Errorf("total = %d, want 3", stats.Total)
	}
	if stats.FirstTimestamp == nil || !stats.FirstTimestamp.Equal(testBase) {
		t.Errorf("first timestamp = %v, want %v", stats.FirstTimestamp, testBase)
	}
	if stats.LastTimestamp == nil || !stats.LastTimestamp.Equal(testBase.Add(2*time.Minute)) {
		t.Errorf("last timestamp = %v", stats.LastTimestamp)
	}

	empty, err := eng.GetStats(context.Background(), "nobody")
	if err != nil {
		t.Fatal(err)
	}
	if empty.Total != 0 || empty.FirstTimestamp != nil || empty.LastTimestamp != nil {
		t.Errorf("empty stats = %+v", empty)
	}
}

func TestEngine_DeleteAll(t *testing.T) {
	eng := seedEngine(t, "u1", "a", "b")

	count, err := eng.DeleteAll(context.Background(), "u1")
	if err != nil {
		t.Fatal(err)
	}
	if count != 2 {
		t.Errorf("deleted = %d, want 2", count)
	}
	items, _ := eng.Timeline(context.Background(), "u1")
	if len(items) != 0 {
		t.Errorf("timeline not empty after delete: %v", items)
	}
}

// recordingMetrics captures engine instrumentation calls for assertions.
type recordingMetrics struct {
	retrievals  []string
	packedChars []int
}

func (m *recordingMetrics) RecordRetrieval(strategy string, _ time.Duration) {
	m.retrievals = append(m.retrievals, strategy)
}

func (m *recordingMetrics) RecordPackedChars(n int) {
	m.packedChars = append(m.packedChars, n)
}

func TestEngine_PackMetricCountsRunes(t *testing.T) {
	store := NewInMemoryStore()
	metrics := &recordingMetrics{}
	eng := NewEngine(store, WithMetrics(metrics))

	// Multibyte content: 4 runes, 12 bytes. The budget is counted in
	// runes, so the packed-chars metric must be too.
	err := eng.Append(context.Background(), MemoryItem{
		UserID:    "u1",
		Content:   "日本語だ",
		Timestamp: testBase,
	})
	if err != nil {
		t.Fatal(err)
	}

	_, text, err := eng.RelevantPack(context.Background(), "u1", PackQuery{
		Query:       Query{Prompt: "日本語", K: 1},
		BudgetChars: 10,
	})
	if err != nil {
		t.Fatal(err)
	}
	if text != "日本語だ" {
		t.Fatalf("packed text = %q", text)
	}

	if want := []int{4}; !reflect.DeepEqual(metrics.packedChars, want) {
		t.Errorf("packed chars = %v, want %v", metrics.packedChars, want)
	}
	// The packer delegates candidate ranking, so both calls are observed.
	if want := []string{"relevant", "pack"}; !reflect.DeepEqual(metrics.retrievals, want) {
		t.Errorf("retrievals = %v, want %v", metrics.retrievals, want)
	}
}
