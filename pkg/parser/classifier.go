package parser

import (
	"strconv"
	"strings"

	"github.com/logflow/actionlog/internal/model"
)

// fieldSeparator splits the record number, timestamp and content.
const fieldSeparator = " | "

// Classify trims raw and matches it against the numbered line shape
// "<digits> | <timestamp> | <content>".
//
// Only the first two separators split; any later " | " stays inside the
// content. The timestamp may be empty. The returned LogLine always carries
// Raw, Text and LineNumber; the remaining fields are set only on a match.
func Classify(raw string, lineNumber int) (model.LogLine, bool) {
	line := model.LogLine{
		Raw:        raw,
		Text:       strings.TrimSpace(raw),
		LineNumber: lineNumber,
	}

	head, rest, ok := strings.Cut(line.Text, fieldSeparator)
	if !ok || !isDigits(head) {
		return line, false
	}
	timestamp, content, ok := strings.Cut(rest, fieldSeparator)
	if !ok {
		return line, false
	}
	n, err := strconv.ParseInt(head, 10, 64)
	if err != nil {
		// out of range
		return line, false
	}

	line.RecordNumber = n
	line.Timestamp = timestamp
	line.Content = content
	return line, true
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
