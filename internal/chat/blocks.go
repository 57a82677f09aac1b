package chat

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/aetherium/aetherium-cli/internal"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
)

// CodeBlock is a fenced code block found in a turn.
type CodeBlock struct {
	Index    int
	Language string
	Code     string
}

var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

// CodeBlocks returns the fenced code blocks of content in document order.
// A fence without an info string is reported as "text".
func CodeBlocks(content string) []CodeBlock {
	src := []byte(content)
	doc := markdown.Parser().Parse(text.NewReader(src))

	var blocks []CodeBlock
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		fenced, ok := n.(*ast.FencedCodeBlock)
		if !ok {
			return ast.WalkContinue, nil
		}
		lang := string(fenced.Language(src))
		if lang == "" {
			lang = "text"
		}
		var code bytes.Buffer
		lines := fenced.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			code.Write(seg.Value(src))
		}
		blocks = append(blocks, CodeBlock{Index: len(blocks), Language: lang, Code: code.String()})
		return ast.WalkSkipChildren, nil
	})
	return blocks
}

// Runnable reports whether the backend sandbox can execute the block.
func (b CodeBlock) Runnable() bool {
	return CanRun(b.Language)
}

// CanRun reports whether language is executable through /execute_code.
func CanRun(language string) bool {
	switch strings.ToLower(language) {
	case "python", "py", "javascript", "js", "node":
		return true
	}
	return false
}

// DefaultExportName suggests a workspace filename for a block.
func DefaultExportName(language string, now time.Time) string {
	ext := language
	switch language {
	case "python":
		ext = "py"
	case "javascript":
		ext = "js"
	case "", "text":
		ext = internal.ExtensionForLanguage(language)
	}
	return fmt.Sprintf("generated_code_%d.%s", now.UnixMilli(), ext)
}
