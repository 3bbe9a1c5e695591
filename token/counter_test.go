package token_test

import (
	"strings"
	"testing"

	"github.com/docsift/docsift/token"
	"github.com/stretchr/testify/assert"
)

func TestHeuristic_Count(t *testing.T) {
	c := token.Heuristic{}

	tests := []struct {
		name string
		text string
		want int
	}{
		{name: "empty", text: "", want: 0},
		{name: "single word", text: "hello", want: 1}, // 1 word + 5/8
		{name: "two words", text: "hello world", want: 3},
		{name: "sixteen chars no spaces", text: strings.Repeat("a", 16), want: 3}, // 1 word + 16/8
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Count(tt.text))
		})
	}
}

func TestHeuristic_Monotonic(t *testing.T) {
	c := token.Heuristic{}

	a := "The quick brown fox jumps over the lazy dog."
	b := " It was the best of times, it was the worst of times."

	assert.GreaterOrEqual(t, c.Count(a+b), c.Count(a))
	assert.GreaterOrEqual(t, c.Count(a+b), c.Count(b))
}

func TestHeuristic_Deterministic(t *testing.T) {
	c := token.Heuristic{}
	text := "Some moderately long text\nwith newlines\nand punctuation."

	first := c.Count(text)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, c.Count(text))
	}
}

func TestForBackend_LocalUsesHeuristic(t *testing.T) {
	c := token.ForBackend("ollama", "llama3")
	assert.Equal(t, "heuristic", c.Name())

	c = token.ForBackend("runner", "qwen2.5")
	assert.Equal(t, "heuristic", c.Name())

	c = token.ForBackend("local", "llama3")
	assert.Equal(t, "heuristic", c.Name())
}
