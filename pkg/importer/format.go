package importer

import (
	"fmt"
	"strings"
	"unicode"
)

// FormatEntry renders a message as a transcript entry: a header line
// with the sender, an optional GM marker and the timestamp, then the
// content line.
func FormatEntry(msg *ExportMessage, isGM bool) string {
	ts := msg.Date
	if len(ts) >= 19 {
		ts = ts[:19]
	}
	ts = strings.Replace(ts, "T", " ", 1)

	name := msg.From
	if name == "" {
		name = "Unknown"
	}
	roleTag := ""
	if isGM {
		roleTag = " [GM]"
	}

	var parts []string
	if media := DetectMedia(msg); media != "" {
		switch {
		case strings.HasPrefix(media, "sticker:"):
			parts = append(parts, "*[sticker "+strings.TrimPrefix(media, "sticker:")+"]*")
		case strings.HasPrefix(media, "document:"):
			parts = append(parts, "*["+strings.TrimPrefix(media, "document:")+"]*")
		default:
			parts = append(parts, "*["+media+"]*")
		}
	}
	if text := ExtractText(msg); text != "" {
		parts = append(parts, text)
	}

	content := "*[empty message]*"
	if len(parts) > 0 {
		content = strings.Join(parts, " ")
	}

	return fmt.Sprintf("**%s**%s (%s):\n%s\n", name, roleTag, ts, content)
}

// SanitizeDirName strips characters unsafe for directory names and
// collapses spaces to underscores.
func SanitizeDirName(name string) string {
	var b strings.Builder
	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == ' ' || r == '-' || r == '_' {
			b.WriteRune(r)
		}
	}
	return strings.ReplaceAll(strings.TrimSpace(b.String()), " ", "_")
}
