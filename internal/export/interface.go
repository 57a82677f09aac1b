package export

import (
	"fmt"
	"io"

	"github.com/aetherium/aetherium-cli/internal"
)

// Exporter writes a saved chat in one file format
type Exporter interface {
	Export(chat *internal.SavedChat, w io.Writer) error
	Extension() string
}

// NewExporter creates a new exporter based on format
func NewExporter(format string) (Exporter, error) {
	switch format {
	case "jsonl":
		return &JSONLExporter{}, nil
	case "md", "markdown":
		return &MarkdownExporter{}, nil
	case "yaml":
		return &YAMLExporter{}, nil
	case "json":
		return &JSONExporter{}, nil
	default:
		return nil, fmt.Errorf("unsupported format: %s (supported: jsonl, md, yaml, json)", format)
	}
}

// Filename names the export file for chat.
func Filename(chat *internal.SavedChat, e Exporter) string {
	return fmt.Sprintf("chat-%s.%s", chat.ID, e.Extension())
}
