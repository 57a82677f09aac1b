package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aetherium/aetherium-cli/internal"
	"github.com/aetherium/aetherium-cli/internal/api"
)

// Transcript renders the whole conversation as "User:"/"Assistant:" paragraphs.
func (s *Session) Transcript() string {
	return internal.Transcript(s.Turns())
}

// CopyMessage puts turn i on the clipboard.
func (s *Session) CopyMessage(i int) error {
	turns := s.Turns()
	if i < 0 || i >= len(turns) {
		return &internal.ValidationError{Field: "message", Message: fmt.Sprintf("no message %d", i)}
	}
	return s.CopyText(turns[i].Content)
}

// CopyConversation puts the transcript on the clipboard.
func (s *Session) CopyConversation() error {
	return s.CopyText(s.Transcript())
}

// CopyText puts text on the clipboard and reports the outcome as a notification.
func (s *Session) CopyText(text string) error {
	if err := s.copy(text); err != nil {
		internal.LogWarn("clipboard write failed: %v", err)
		s.notes.Error("Failed to copy to clipboard. Please try selecting and copying manually.")
		return err
	}
	s.notes.Success("Copied to clipboard")
	return nil
}

// RunCode executes a snippet in the backend sandbox. A failed call is
// reported as a result with exit code 1 and the error on stderr.
func (s *Session) RunCode(ctx context.Context, code, language string) (api.CodeResult, error) {
	if !CanRun(language) {
		return api.CodeResult{}, &internal.ValidationError{
			Field:   "language",
			Message: fmt.Sprintf("code execution not supported for %q", language),
		}
	}
	res, err := s.backend.ExecuteCode(ctx, code, language)
	if err != nil {
		msg := err.Error()
		if msg == "" {
			msg = "Failed to execute code"
		}
		return api.CodeResult{Stderr: msg, ExitCode: 1}, err
	}
	return res, nil
}

// ExportCode writes code into the workspace as filename under dir.
// An empty filename is rejected before any request is made.
func (s *Session) ExportCode(ctx context.Context, filename, dir, code string) error {
	filename = strings.TrimSpace(filename)
	if filename == "" {
		s.notes.Error("Filename is required")
		return &internal.ValidationError{Field: "filename", Message: "is required"}
	}
	err := s.backend.CreateFile(ctx, api.CreateFileInput{
		Filename: filename,
		Path:     strings.TrimSpace(dir),
		Content:  code,
	})
	if err != nil {
		var apiErr *internal.APIError
		if errors.As(err, &apiErr) && apiErr.Conflict() {
			s.notes.Error("File already exists. Please choose a different filename.")
		} else {
			s.notes.Error("Failed to export code to workspace")
		}
		return err
	}
	s.notes.Success("Code exported to workspace as " + filename)
	return nil
}

// Shell runs command on the backend host and returns the terminal lines
// to append: the prompt echo followed by output or the error detail.
func (s *Session) Shell(ctx context.Context, command string) string {
	if strings.TrimSpace(command) == "" {
		return ""
	}
	out, err := s.backend.ShellExec(ctx, command)
	if err != nil {
		detail := "Command failed"
		var apiErr *internal.APIError
		if errors.As(err, &apiErr) && apiErr.Detail != "" {
			detail = apiErr.Detail
		}
		return fmt.Sprintf("\n$ %s\nError: %s", command, detail)
	}
	return fmt.Sprintf("\n$ %s\n%s", command, out)
}
