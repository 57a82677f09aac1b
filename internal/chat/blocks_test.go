package chat

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestCodeBlocks(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    []CodeBlock
	}{
		{
			name:    "no code",
			content: "just some text",
		},
		{
			name:    "single python block",
			content: "Here you go:\n\n```python\nprint('hi')\n```\n\nDone.",
			want:    []CodeBlock{{Index: 0, Language: "python", Code: "print('hi')\n"}},
		},
		{
			name:    "fence without language",
			content: "```\nplain\n```",
			want:    []CodeBlock{{Index: 0, Language: "text", Code: "plain\n"}},
		},
		{
			name: "generated files section",
			content: "Summary\n\nGenerated Files:\nmain.js (javascript):\n```javascript\nconsole.log(1)\n```\n" +
				"util.go (go):\n```go\npackage util\n```\n",
			want: []CodeBlock{
				{Index: 0, Language: "javascript", Code: "console.log(1)\n"},
				{Index: 1, Language: "go", Code: "package util\n"},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CodeBlocks(tt.content)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("CodeBlocks() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCanRun(t *testing.T) {
	for _, lang := range []string{"python", "py", "JavaScript", "js", "node"} {
		if !CanRun(lang) {
			t.Errorf("CanRun(%q) = false", lang)
		}
	}
	for _, lang := range []string{"go", "text", "", "bash"} {
		if CanRun(lang) {
			t.Errorf("CanRun(%q) = true", lang)
		}
	}
	if !(CodeBlock{Language: "py"}).Runnable() {
		t.Error("py block should be runnable")
	}
}

func TestDefaultExportName(t *testing.T) {
	now := time.UnixMilli(1700000000000)
	tests := map[string]string{
		"python":     "generated_code_1700000000000.py",
		"javascript": "generated_code_1700000000000.js",
		"go":         "generated_code_1700000000000.go",
		"text":       "generated_code_1700000000000.txt",
	}
	for lang, want := range tests {
		if got := DefaultExportName(lang, now); got != want {
			t.Errorf("DefaultExportName(%q) = %q, want %q", lang, got, want)
		}
	}
}
