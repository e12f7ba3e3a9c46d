// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/jeranaias/rigrun-chatstore/internal/storage"
)

// =============================================================================
// CONVERSATION SHAPE
// =============================================================================

// Message is one chat turn pulled out of a conversation document.
type Message struct {
	Role    string
	Content string
}

// Summary describes a conversation document written by the desktop shell:
// {"title", "model", "messages": [{"role", "content"}], "lastResponseTime",
// "systemPrompt"}. Fields the document lacks are left empty.
type Summary struct {
	Filename     string `json:"filename"`
	Title        string `json:"title,omitempty"`
	Model        string `json:"model,omitempty"`
	Messages     int    `json:"messages"`
	LastResponse string `json:"last_response,omitempty"`
}

// Summarize extracts display metadata without assuming a schema.
func Summarize(conv *storage.Conversation) Summary {
	doc, _ := conv.Content.(map[string]any)
	return Summary{
		Filename:     conv.Filename,
		Title:        stringField(doc, "title"),
		Model:        stringField(doc, "model"),
		Messages:     len(Messages(conv)),
		LastResponse: stringField(doc, "lastResponseTime"),
	}
}

// Messages returns the chat turns in a conversation. Content may be an
// object with a "messages" array or the array itself. A message's content
// may be a string or a list of {"type": "text", "text": ...} parts.
func Messages(conv *storage.Conversation) []Message {
	var raw []any
	switch c := conv.Content.(type) {
	case map[string]any:
		raw, _ = c["messages"].([]any)
	case []any:
		raw = c
	}

	msgs := make([]Message, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		msgs = append(msgs, Message{
			Role:    stringField(m, "role"),
			Content: messageText(m["content"]),
		})
	}
	return msgs
}

func messageText(v any) string {
	switch c := v.(type) {
	case string:
		return c
	case []any:
		var parts []string
		for _, p := range c {
			if part, ok := p.(map[string]any); ok {
				if text := stringField(part, "text"); text != "" {
					parts = append(parts, text)
				}
			}
		}
		return strings.Join(parts, "\n\n")
	case nil:
		return ""
	default:
		return fmt.Sprint(c)
	}
}

func stringField(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	s, _ := m[key].(string)
	return s
}

// =============================================================================
// MARKDOWN RENDERING
// =============================================================================

// Markdown renders one conversation as a Markdown transcript. Documents
// without recognizable messages are rendered as a fenced JSON block.
func Markdown(conv *storage.Conversation) string {
	var sb strings.Builder
	summary := Summarize(conv)
	doc, _ := conv.Content.(map[string]any)

	title := summary.Title
	if title == "" {
		title = conv.Filename
	}
	sb.WriteString(fmt.Sprintf("# %s\n\n", escapeMarkdown(title)))

	sb.WriteString(fmt.Sprintf("- **File**: `%s`\n", conv.Filename))
	if summary.Model != "" {
		sb.WriteString(fmt.Sprintf("- **Model**: %s\n", summary.Model))
	}
	if summary.LastResponse != "" {
		sb.WriteString(fmt.Sprintf("- **Last Response**: %s\n", summary.LastResponse))
	}
	sb.WriteString(fmt.Sprintf("- **Messages**: %d\n\n", summary.Messages))

	if prompt := stringField(doc, "systemPrompt"); prompt != "" {
		sb.WriteString("> **System prompt**\n>\n")
		for _, line := range strings.Split(strings.TrimSpace(prompt), "\n") {
			sb.WriteString("> " + line + "\n")
		}
		sb.WriteString("\n")
	}

	msgs := Messages(conv)
	if len(msgs) == 0 {
		data, err := json.MarshalIndent(conv.Content, "", "  ")
		if err != nil {
			data = []byte(fmt.Sprint(conv.Content))
		}
		sb.WriteString("```json\n")
		sb.Write(data)
		sb.WriteString("\n```\n")
		return sb.String()
	}

	for _, msg := range msgs {
		sb.WriteString(fmt.Sprintf("### %s\n\n", roleLabel(msg.Role)))
		sb.WriteString(strings.TrimSpace(msg.Content))
		sb.WriteString("\n\n")
	}
	return sb.String()
}

func writeMarkdown(w io.Writer, convs []*storage.Conversation) error {
	for i, conv := range convs {
		if i > 0 {
			if _, err := io.WriteString(w, "\n---\n\n"); err != nil {
				return err
			}
		}
		if _, err := io.WriteString(w, Markdown(conv)); err != nil {
			return err
		}
	}
	return nil
}

// roleLabel returns a heading label for the message role.
func roleLabel(role string) string {
	switch role {
	case "":
		return "Unknown"
	case "user":
		return "User"
	case "assistant":
		return "Assistant"
	case "system":
		return "System"
	default:
		runes := []rune(role)
		return strings.ToUpper(string(runes[0])) + string(runes[1:])
	}
}

// escapeMarkdown escapes characters that would break a heading.
func escapeMarkdown(s string) string {
	r := strings.NewReplacer(
		"#", "\\#",
		"*", "\\*",
		"_", "\\_",
		"[", "\\[",
		"]", "\\]",
	)
	return r.Replace(s)
}
