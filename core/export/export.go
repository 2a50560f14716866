// Package export renders transcript snapshots for download.
package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/koscakluka/ema-transcript/core/analysis"
	"github.com/koscakluka/ema-transcript/core/items"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	TranscriptPrefix = "call-transcript"
	AnalysisPrefix   = "call-analysis"

	// TimestampLayout formats item timestamps in exports.
	TimestampLayout = "15:04:05"
)

var roleTitle = cases.Title(language.English)

// Entries keeps the items that are part of an exported transcript.
func Entries(snapshot []items.Item) []items.Item {
	entries := make([]items.Item, 0, len(snapshot))
	for _, item := range snapshot {
		if item.IsTranscriptEntry() {
			entries = append(entries, item)
		}
	}
	return entries
}

// Text renders the transcript as "Label (time): text" blocks separated by a
// blank line.
func Text(snapshot []items.Item) string {
	blocks := []string{}
	for _, item := range Entries(snapshot) {
		blocks = append(blocks, fmt.Sprintf("%s (%s): %s",
			analysis.Label(item.Role), formatTimestamp(item.Timestamp), item.Text()))
	}
	return strings.Join(blocks, "\n\n")
}

// RoleName is the speaker name shown in documents.
func RoleName(role items.Role) string {
	switch role {
	case items.RoleUser:
		return "Caller"
	case items.RoleAssistant:
		return "Assistant"
	case items.RoleTool:
		return "Tool Response"
	case "":
		return "Unknown"
	default:
		return roleTitle.String(string(role))
	}
}

// Filename builds a dated download name such as
// call-transcript-2025-01-31.txt.
func Filename(prefix, extension string, at time.Time) string {
	return fmt.Sprintf("%s-%s.%s", prefix, at.Format(time.DateOnly), strings.TrimPrefix(extension, "."))
}

func formatTimestamp(timestamp time.Time) string {
	if timestamp.IsZero() {
		return ""
	}
	return timestamp.Format(TimestampLayout)
}
