package parser

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParse(t *testing.T) {
	testCases := []struct {
		name string
		raw  string
		want Response
	}{
		{
			name: "single block with trailing note",
			raw:  "```\nfixed();\n```\nNote: changed x",
			want: Response{Code: "fixed();", Commentary: "```\n\n```\nNote: changed x", Fenced: true},
		},
		{
			name: "language tag is captured",
			raw:  "Here you go:\n```go\nfunc main() {}\n```\n",
			want: Response{Code: "func main() {}", Commentary: "Here you go:\n```go\n\n```", Lang: "go", Fenced: true},
		},
		{
			name: "no fenced block",
			raw:  "  just some text\n",
			want: Response{Code: "just some text", Commentary: ""},
		},
		{
			name: "empty input",
			raw:  "",
			want: Response{},
		},
		{
			name: "whitespace only",
			raw:  " \n\t ",
			want: Response{},
		},
		{
			name: "empty fenced body keeps everything as commentary",
			raw:  "intro\n```\n```\noutro",
			want: Response{Code: "", Commentary: "intro\n```\n```\noutro", Fenced: true},
		},
		{
			name: "second block stays in commentary",
			raw:  "```\na\n```\nthen\n```js\nb\n```",
			want: Response{Code: "a", Commentary: "```\n\n```\nthen\n```js\nb\n```", Fenced: true},
		},
		{
			name: "repeat of the code outside the block is kept",
			raw:  "Use x := 1 like so:\n```\nx := 1\n```",
			want: Response{Code: "x := 1", Commentary: "Use x := 1 like so:\n```\n\n```", Fenced: true},
		},
		{
			name: "fence must start a line",
			raw:  "inline ```\nnot code\n``` here",
			want: Response{Code: "inline ```\nnot code\n``` here", Commentary: ""},
		},
		{
			name: "unclosed fence is not a block",
			raw:  "```go\nfunc f()",
			want: Response{Code: "```go\nfunc f()", Commentary: ""},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := Parse(tc.raw)
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("Parse(%q) mismatch (-want +got):\n%s", tc.raw, diff)
			}
		})
	}
}

func TestParseIdempotent(t *testing.T) {
	inputs := []string{
		"```python\ndef f():\n    return 1\n```\nexplained",
		"no fence at all",
		"prefix\n```\n  padded  \n```",
		"```\nfirst\n```\n```\nsecond\n```",
	}
	for _, raw := range inputs {
		code := Parse(raw).Code
		again := Parse("```\n" + code + "\n```").Code
		if again != code {
			t.Errorf("re-parse of %q changed code: %q -> %q", raw, code, again)
		}
	}
}
