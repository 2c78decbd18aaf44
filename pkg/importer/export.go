// Package importer backfills per-campaign transcript files from a
// Telegram Desktop JSON export, deduplicating against the ids it has
// already written so re-runs are no-ops.
package importer

import (
	"encoding/json"
	"path"
	"strings"
)

// Export is the top-level document produced by Telegram Desktop's
// "Export chat history" in machine-readable JSON form.
type Export struct {
	Messages []ExportMessage `json:"messages"`
}

// ExportMessage carries the fields the importer reads. Desktop exports
// thread topics through reply_to_message_id (the topic's root message),
// while Bot API style exports use message_thread_id; both are kept.
type ExportMessage struct {
	ID           int64           `json:"id"`
	Type         string          `json:"type"`
	ThreadID     int64           `json:"message_thread_id,omitempty"`
	ReplyToID    int64           `json:"reply_to_message_id,omitempty"`
	Date         string          `json:"date"`
	From         string          `json:"from,omitempty"`
	FromID       string          `json:"from_id,omitempty"`
	Text         json.RawMessage `json:"text,omitempty"`
	TextEntities []TextEntity    `json:"text_entities,omitempty"`
	MediaType    string          `json:"media_type,omitempty"`
	StickerEmoji string          `json:"sticker_emoji,omitempty"`
	Photo        string          `json:"photo,omitempty"`
	File         string          `json:"file,omitempty"`
	Action       string          `json:"action,omitempty"`
}

// TextEntity is one tagged span inside an export message's text.
type TextEntity struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// topicID returns the thread this message belongs to, preferring the Bot
// API field over the Desktop export's reply-chain root. Zero means no
// thread.
func (m *ExportMessage) topicID() int64 {
	if m.ThreadID != 0 {
		return m.ThreadID
	}
	return m.ReplyToID
}

// userID returns the sender id with the export's "user" prefix stripped,
// matching the plain ids configured for GMs.
func (m *ExportMessage) userID() string {
	return strings.TrimPrefix(m.FromID, "user")
}

// ExtractText pulls readable text out of an export message. The text
// field can be a plain string or a list mixing strings with tagged
// spans; Desktop exports may instead carry text_entities. Checked in
// that order, first non-empty result wins.
func ExtractText(msg *ExportMessage) string {
	if len(msg.Text) > 0 {
		var plain string
		if err := json.Unmarshal(msg.Text, &plain); err == nil {
			if t := strings.TrimSpace(plain); t != "" {
				return t
			}
		} else {
			var chunks []json.RawMessage
			if err := json.Unmarshal(msg.Text, &chunks); err == nil {
				var parts []string
				for _, chunk := range chunks {
					var s string
					if err := json.Unmarshal(chunk, &s); err == nil {
						parts = append(parts, s)
						continue
					}
					var span TextEntity
					if err := json.Unmarshal(chunk, &span); err == nil {
						parts = append(parts, span.Text)
					}
				}
				if t := strings.TrimSpace(strings.Join(parts, "")); t != "" {
					return t
				}
			}
		}
	}

	if len(msg.TextEntities) > 0 {
		var parts []string
		for _, e := range msg.TextEntities {
			parts = append(parts, e.Text)
		}
		return strings.TrimSpace(strings.Join(parts, ""))
	}

	return ""
}

// DetectMedia maps export media markers to a human-readable tag, at most
// one per message, in a fixed precedence order. Empty string means no
// media.
func DetectMedia(msg *ExportMessage) string {
	switch msg.MediaType {
	case "animation":
		return "gif"
	case "video_file":
		return "video"
	case "voice_message":
		return "voice message"
	case "video_message":
		return "video note"
	case "sticker":
		emoji := msg.StickerEmoji
		if emoji == "" {
			emoji = "?"
		}
		return "sticker:" + emoji
	}

	if msg.Photo != "" {
		return "image"
	}
	if msg.File != "" && msg.MediaType == "" {
		return "document:" + path.Base(msg.File)
	}

	return ""
}
