package memory

import "strings"

// tokenize splits text into lowercase alphanumeric tokens. Maximal runs of
// ASCII letters and digits are tokens; every other rune is a separator.
func tokenize(text string) []string {
	text = strings.ToLower(text)

	// Pre-allocate with estimated capacity
	tokens := make([]string, 0, len(text)/4)
	var current strings.Builder

	for _, r := range text {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			current.WriteRune(r)
			continue
		}
		if current.Len() > 0 {
			tokens = append(tokens, current.String())
			current.Reset()
		}
	}
	if current.Len() > 0 {
		tokens = append(tokens, current.String())
	}

	return tokens
}
