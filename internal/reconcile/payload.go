// Package reconcile turns realtime frames into changes on locally held
// conversation and task state.
package reconcile

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Payload is the decoded body of an output frame. Exactly one of the
// concrete types below is returned by ParsePayload.
type Payload interface {
	// Render returns the text shown to the user.
	Render() string
	// Structured returns the JSON value the text was derived from, or nil.
	Structured() json.RawMessage
}

// ErrorPayload is a structured payload carrying an "error" field.
type ErrorPayload struct {
	Message string
	Value   json.RawMessage
}

func (p ErrorPayload) Render() string              { return p.Message }
func (p ErrorPayload) Structured() json.RawMessage { return p.Value }

// FileDelivery is one generated file attached to a summary.
type FileDelivery struct {
	Filename string `json:"filename"`
	Language string `json:"language"`
	Content  string `json:"content"`
}

// SummaryPayload carries an "explanatory_summary" and optional files.
type SummaryPayload struct {
	Summary string
	Files   []FileDelivery
	Value   json.RawMessage
}

// Render appends generated files that are not plain text and are not
// already mentioned in the summary.
func (p SummaryPayload) Render() string {
	var extra []FileDelivery
	for _, f := range p.Files {
		if f.Language != "text" && !strings.Contains(p.Summary, f.Filename) {
			extra = append(extra, f)
		}
	}
	if len(extra) == 0 {
		return p.Summary
	}
	var b strings.Builder
	b.WriteString(p.Summary)
	b.WriteString("\n\nGenerated Files:\n")
	for _, f := range extra {
		fmt.Fprintf(&b, "%s (%s):\n```%s\n%s\n```\n", f.Filename, f.Language, f.Language, f.Content)
	}
	return b.String()
}

func (p SummaryPayload) Structured() json.RawMessage { return p.Value }

// ResponsePayload carries a plain "response" field.
type ResponsePayload struct {
	Response string
	Value    json.RawMessage
}

func (p ResponsePayload) Render() string              { return p.Response }
func (p ResponsePayload) Structured() json.RawMessage { return p.Value }

// StructuredPayload is any other JSON object or array; it renders as
// indented JSON.
type StructuredPayload struct {
	Value json.RawMessage
}

func (p StructuredPayload) Render() string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, p.Value, "", "  "); err != nil {
		return string(p.Value)
	}
	return buf.String()
}

func (p StructuredPayload) Structured() json.RawMessage { return p.Value }

// RawPayload is text that was not JSON, or JSON that is not an object or
// array. It renders verbatim.
type RawPayload struct {
	Text string
}

func (p RawPayload) Render() string              { return p.Text }
func (p RawPayload) Structured() json.RawMessage { return nil }

// ParsePayload decodes the "message" text of an output frame. A non-empty
// array contributes only its first element. The first present field of
// error, explanatory_summary and response selects the variant.
func ParsePayload(text string) Payload {
	raw := json.RawMessage(strings.TrimSpace(text))
	if !json.Valid(raw) {
		return RawPayload{Text: text}
	}

	var elems []json.RawMessage
	if json.Unmarshal(raw, &elems) == nil && len(elems) > 0 {
		raw = elems[0]
	}

	switch firstByte(raw) {
	case '[':
		return StructuredPayload{Value: raw}
	case '{':
	default:
		return RawPayload{Text: text}
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return RawPayload{Text: text}
	}
	if v, ok := truthy(fields["error"]); ok {
		return ErrorPayload{Message: v, Value: raw}
	}
	if v, ok := truthy(fields["explanatory_summary"]); ok {
		var files []FileDelivery
		_ = json.Unmarshal(fields["file_delivery"], &files)
		return SummaryPayload{Summary: v, Files: files, Value: raw}
	}
	if v, ok := truthy(fields["response"]); ok {
		return ResponsePayload{Response: v, Value: raw}
	}
	return StructuredPayload{Value: raw}
}

func firstByte(raw json.RawMessage) byte {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return 0
	}
	return trimmed[0]
}

// truthy reports whether a field is present with a non-empty, non-zero,
// non-false value. Strings come back unquoted; other values as JSON text.
func truthy(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 {
		return "", false
	}
	switch s := string(bytes.TrimSpace(raw)); s {
	case "null", "false", "0", `""`:
		return "", false
	}
	var str string
	if json.Unmarshal(raw, &str) == nil {
		return str, str != ""
	}
	var n float64
	if json.Unmarshal(raw, &n) == nil && n == 0 {
		return "", false
	}
	return string(raw), true
}

var (
	headingMarker = regexp.MustCompile(`(?m)^#+\s*`)
	ruleMarker    = regexp.MustCompile(`(?m)^--+\s*`)
)

// CleanExplanation strips leading heading and rule markers line by line.
func CleanExplanation(s string) string {
	s = headingMarker.ReplaceAllString(s, "")
	s = ruleMarker.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// Decorate appends an explanation and numbered run steps to content.
func Decorate(content, explanation string, runSteps []string) string {
	if explanation != "" {
		content += "\n\n" + CleanExplanation(explanation)
	}
	if len(runSteps) > 0 {
		steps := make([]string, len(runSteps))
		for i, step := range runSteps {
			steps[i] = fmt.Sprintf("%d. `%s`", i+1, step)
		}
		content += "\n\n**Run Steps:**\n" + strings.Join(steps, "\n")
	}
	return content
}
