package sentence

import (
	"slices"
	"testing"
)

func TestSplit(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"mixed punctuation", "A. B! C?", []string{"A.", "B!", "C?"}},
		{"empty", "", nil},
		{"whitespace only", "   \n\t ", nil},
		{"no terminal punctuation", "Hello world", []string{"Hello world"}},
		{"newline separator", "First line.\nSecond line.", []string{"First line.", "Second line."}},
		{"whitespace run", "One.   \n  Two.", []string{"One.", "Two."}},
		{"decimal is not a boundary", "It costs 9.99 today. Buy now!", []string{"It costs 9.99 today.", "Buy now!"}},
		{"abbreviation splits", "Mr. Smith left.", []string{"Mr.", "Smith left."}},
		{"leading and trailing space", "  Hi there.  Bye.  ", []string{"Hi there.", "Bye."}},
		{"repeated punctuation", "Wait!! Really?! Yes.", []string{"Wait!!", "Really?!", "Yes."}},
		{"non-breaking space", "Stop.\u00a0Go.", []string{"Stop.", "Go."}},
		{"semicolon is not a boundary",
			"Click here to continue your free trial; you will be charged automatically.",
			[]string{"Click here to continue your free trial; you will be charged automatically."}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Split(tt.input)
			if !slices.Equal(got, tt.want) {
				t.Errorf("Split(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestSplit_Idempotent(t *testing.T) {
	for _, s := range Split("Your card will be charged monthly. Only 2 left in stock! Are you sure?") {
		got := Split(s)
		if len(got) != 1 || got[0] != s {
			t.Errorf("Split(%q) = %q, want single unchanged sentence", s, got)
		}
	}
}
