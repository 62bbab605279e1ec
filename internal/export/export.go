// Package export renders conversations and client state for download.
package export

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/capitalize-ai/gemini-chat/internal/i18n"
	"github.com/capitalize-ai/gemini-chat/internal/model"
	"github.com/capitalize-ai/gemini-chat/internal/state"
)

// Format is an export file format.
type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatJSON     Format = "json"
)

// ParseFormat accepts "markdown", "md" and "json".
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "markdown", "md", "":
		return FormatMarkdown, nil
	case "json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", s)
	}
}

// Extension returns the file extension for the format, with the dot.
func (f Format) Extension() string {
	if f == FormatJSON {
		return ".json"
	}
	return ".md"
}

// ContentType returns the MIME type of the rendered output.
func (f Format) ContentType() string {
	if f == FormatJSON {
		return "application/json"
	}
	return "text/markdown; charset=utf-8"
}

var unsafeFilenameChars = regexp.MustCompile(`[\\/:*?"<>|]`)

// SanitizeFilename replaces characters that are invalid in file names.
func SanitizeFilename(name string) string {
	return unsafeFilenameChars.ReplaceAllString(name, "_")
}

// Filename returns the download name of a conversation export.
func Filename(conv model.Conversation, f Format) string {
	title := strings.TrimSpace(conv.Title)
	if title == "" {
		title = conv.ID
	}
	return SanitizeFilename(title) + f.Extension()
}

// Conversation renders a conversation in the given format.
func Conversation(conv model.Conversation, f Format) ([]byte, error) {
	switch f {
	case FormatMarkdown:
		return []byte(Markdown(conv)), nil
	case FormatJSON:
		return JSON(conv)
	default:
		return nil, fmt.Errorf("unsupported export format %q", f)
	}
}

// Markdown renders a conversation as a Markdown document.
func Markdown(conv model.Conversation) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", conv.Title)

	for _, msg := range conv.Messages {
		role := "You"
		if msg.Role() == model.RoleModel {
			role = "Gemini"
		}
		fmt.Fprintf(&sb, "**%s:**\n\n", role)

		for _, part := range msg.Content.Parts {
			if part.InlineData != nil {
				fmt.Fprintf(&sb, "<inlineData mimeType=%s size=%d />", part.InlineData.MIMEType, len(part.InlineData.Data))
			} else {
				sb.WriteString(part.Text)
			}
			sb.WriteString("\n\n")
		}
	}
	return sb.String()
}

// JSON renders v as indented JSON.
func JSON(v any) ([]byte, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode export: %w", err)
	}
	return data, nil
}

// Settings is the exported settings section.
type Settings struct {
	APIKey *string `json:"apiKey"`
}

// LocaleState is the exported locale section.
type LocaleState struct {
	Locale i18n.Locale `json:"locale"`
}

// FullState is a snapshot of everything the client stores. It can be read
// back by persist.ParseImport.
type FullState struct {
	Chat     state.State `json:"chat"`
	Settings Settings    `json:"settings"`
	Locale   LocaleState `json:"locale"`
}

// NewFullState builds a full-state export. The API key is included only when
// includeKey is set.
func NewFullState(s state.State, apiKey string, includeKey bool, locale i18n.Locale) FullState {
	out := FullState{
		Chat:   s,
		Locale: LocaleState{Locale: locale},
	}
	if includeKey && apiKey != "" {
		out.Settings.APIKey = &apiKey
	}
	return out
}
