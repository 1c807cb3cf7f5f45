package memory

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"
)

func TestParseStrategy(t *testing.T) {
	tests := []struct {
		in      string
		want    Strategy
		wantErr bool
	}{
		{"relevant", StrategyRelevant, false},
		{"mmr", StrategyMMR, false},
		{"", StrategyRelevant, false},
		{"hybrid", "", true},
		{"RELEVANT", "", true},
	}
	for _, tt := range tests {
		got, err := ParseStrategy(tt.in)
		if tt.wantErr {
			if !errors.Is(err, ErrUnknownStrategy) {
				t.Errorf("ParseStrategy(%q) error = %v, want ErrUnknownStrategy", tt.in, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("ParseStrategy(%q) = %v, %v, want %v", tt.in, got, err, tt.want)
		}
	}
}

func packItems(contents ...string) []MemoryItem {
	items := make([]MemoryItem, len(contents))
	for i, c := range contents {
		items[i] = MemoryItem{UserID: "u1", Content: c, Timestamp: testBase.Add(time.Duration(i) * time.Minute)}
	}
	return items
}

func TestPack_RespectsBudget(t *testing.T) {
	items := packItems("aaaa", "bbbb", "cccc")

	packed, text := pack(items, 3, 9, " ")
	if len(packed) != 2 {
		t.Fatalf("packed %d items, want 2: %q", len(packed), text)
	}
	if text != "aaaa bbbb" {
		t.Errorf("text = %q", text)
	}
}

func TestPack_StrictPrefixStopsAtFirstOverflow(t *testing.T) {
	// "cc" would fit after "aaaa" but "bbbbbbbb" blocks it; no skipping.
	items := packItems("aaaa", "bbbbbbbb", "cc")

	packed, text := pack(items, 3, 8, " ")
	if len(packed) != 1 || text != "aaaa" {
		t.Errorf("packed = %d items, text = %q; want just the first", len(packed), text)
	}
}

func TestPack_FirstItemTruncatedToExactBudget(t *testing.T) {
	items := packItems("aaaaaaaaaaaaaaaaaaaa") // 20 chars

	packed, text := pack(items, 3, 10, DefaultSeparator)
	if len(packed) != 1 {
		t.Fatalf("packed %d items, want 1", len(packed))
	}
	if utf8.RuneCountInString(text) != 10 {
		t.Errorf("truncated text = %q (%d runes), want exactly 10", text, utf8.RuneCountInString(text))
	}
	if !strings.HasPrefix(items[0].Content, text) {
		t.Errorf("truncation is not a prefix: %q", text)
	}
}

func TestPack_TruncationCountsRunesNotBytes(t *testing.T) {
	items := packItems("ααααααααααααααααα") // 17 two-byte runes

	_, text := pack(items, 1, 5, DefaultSeparator)
	if utf8.RuneCountInString(text) != 5 {
		t.Errorf("text = %q (%d runes), want 5", text, utf8.RuneCountInString(text))
	}
	if !utf8.ValidString(text) {
		t.Errorf("truncation split a rune: %q", text)
	}
}

func TestPack_SeparatorCountsAgainstBudget(t *testing.T) {
	items := packItems("aaaa", "bbbb")

	// 4 + 2 + 4 = 10 runes with the default two-char separator.
	_, fits := pack(items, 2, 10, DefaultSeparator)
	if fits != "aaaa\n\nbbbb" {
		t.Errorf("text = %q", fits)
	}
	_, tight := pack(items, 2, 9, DefaultSeparator)
	if tight != "aaaa" {
		t.Errorf("separator not charged against budget: %q", tight)
	}
}

func TestPack_KLimitsPackedCount(t *testing.T) {
	items := packItems("a", "b", "c", "d")

	packed, _ := pack(items, 2, 1000, " ")
	if len(packed) != 2 {
		t.Errorf("packed %d items, want k=2", len(packed))
	}
}

func TestPack_Empty(t *testing.T) {
	packed, text := pack(nil, 3, 100, " ")
	if packed != nil || text != "" {
		t.Errorf("pack(nil) = %v, %q", packed, text)
	}
}

func TestEngine_RelevantPack(t *testing.T) {
	eng := seedEngine(t, "u1",
		"cats are great companions",
		"dogs need daily walks",
		"cats purr when content",
	)

	items, text, err := eng.RelevantPack(context.Background(), "u1", PackQuery{
		Query:       Query{Prompt: "cats", K: 2},
		BudgetChars: 60,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(items) == 0 || text == "" {
		t.Fatalf("empty pack: %v, %q", items, text)
	}
	if utf8.RuneCountInString(text) > 60 {
		t.Errorf("packed text exceeds budget: %d runes", utf8.RuneCountInString(text))
	}
	for _, item := range items {
		if strings.Contains(item.Content, "dogs") {
			t.Errorf("irrelevant item packed ahead of budget: %q", item.Content)
		}
	}
}

func TestEngine_RelevantPack_UnknownStrategy(t *testing.T) {
	eng := seedEngine(t, "u1", "anything")

	_, _, err := eng.RelevantPack(context.Background(), "u1", PackQuery{
		Query:       Query{Prompt: "anything", K: 1},
		BudgetChars: 100,
		Strategy:    "hybrid",
	})
	if !errors.Is(err, ErrUnknownStrategy) {
		t.Errorf("error = %v, want ErrUnknownStrategy", err)
	}
}

func TestEngine_RelevantPack_MMRStrategy(t *testing.T) {
	eng := seedEngine(t, "u1", "cats one", "cats one", "cats two")

	items, _, err := eng.RelevantPack(context.Background(), "u1", PackQuery{
		Query:       Query{Prompt: "cats", K: 2, LambdaMult: 0.4},
		BudgetChars: 200,
		Strategy:    StrategyMMR,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 2 {
		t.Fatalf("packed %d items, want 2", len(items))
	}
}
