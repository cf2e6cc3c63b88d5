package filter

import "testing"

func TestClean(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "single region with surrounding spaces",
			input: "Hello <think>secret</think> world",
			want:  "Hello world",
		},
		{
			name:  "no delimiters",
			input: "plain answer",
			want:  "plain answer",
		},
		{
			name:  "region only",
			input: "<think>nothing but reasoning</think>",
			want:  "",
		},
		{
			name:  "multiple regions",
			input: "a<think>x</think>b<think>y</think>c",
			want:  "abc",
		},
		{
			name:  "newline runs left by removal collapse to two",
			input: "intro\n<think>\nmulti\nline\nreasoning\n</think>\n\nanswer",
			want:  "intro\n\nanswer",
		},
		{
			name:  "unterminated open delimiter stays",
			input: "keep <think>this",
			want:  "keep <think>this",
		},
		{
			name:  "surrounding whitespace trimmed",
			input: "  <think>lead</think>  body  \n",
			want:  "body",
		},
		{
			name:  "multiline region",
			input: "before\n<think>line one\nline two</think>\nafter",
			want:  "before\n\nafter",
		},
		{
			name:  "empty input",
			input: "",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Clean(tt.input); got != tt.want {
				t.Errorf("Clean(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestCleanPreservesIndentation(t *testing.T) {
	input := "code:\n    indented()  // note  double\nend"
	want := "code:\n    indented() // note double\nend"
	if got := Clean(input); got != want {
		t.Errorf("Clean(%q) = %q, want %q", input, got, want)
	}
}

func TestCleanIdempotent(t *testing.T) {
	inputs := []string{
		"Hello <think>secret</think> world",
		"intro\n<think>x</think>\n\n\nanswer",
		"   padded   ",
		"plain",
	}
	for _, input := range inputs {
		once := Clean(input)
		if twice := Clean(once); twice != once {
			t.Errorf("Clean(%q) not idempotent: %q -> %q", input, once, twice)
		}
	}
}

// TestCleanAgreesWithStreaming checks that for well-formed input the two
// variants agree once the streaming output goes through the same whitespace
// cleanup.
func TestCleanAgreesWithStreaming(t *testing.T) {
	inputs := []string{
		"Hello <think>secret</think> world",
		"<think>only reasoning</think>",
		"a<think>x</think>b<think>y</think>c",
		"no tags at all",
		"before\n<think>line one\nline two</think>\nafter",
	}
	for _, input := range inputs {
		fromStream := Clean(streamFilter(input))
		fromText := Clean(input)
		if fromStream != fromText {
			t.Errorf("variants diverge on %q: streaming %q, whole-text %q", input, fromStream, fromText)
		}
	}
}

func TestRegionCount(t *testing.T) {
	tests := []struct {
		input string
		want  int
	}{
		{"no regions here", 0},
		{"one <think>x</think>", 1},
		{"a<think>x</think>b<think>y</think>c", 2},
		{"unclosed <think>tail", 0},
		{"", 0},
	}
	for _, tt := range tests {
		if got := RegionCount(tt.input); got != tt.want {
			t.Errorf("RegionCount(%q) = %d, want %d", tt.input, got, tt.want)
		}
	}
}
