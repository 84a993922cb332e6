package analyzer

import (
	"regexp"
	"strings"

	"github.com/sorahex/rubylsp/pkg/symbolindex"
)

var (
	paramTagRe  = regexp.MustCompile(`^@param\s+(\S+)\s+(\S+)`)
	returnTagRe = regexp.MustCompile(`^@return\s+(\S+)`)
)

// extractDoc implements the documentation-extraction rule: scan backwards
// from defStartByte collecting a contiguous run of comment-only lines,
// terminated by a blank line or code, strip comment markers, and parse
// @param/@return tags out of the result.
func extractDoc(src []byte, defStartByte uint32) symbolindex.Doc {
	raw := precedingCommentLines(src, defStartByte)
	if len(raw) == 0 {
		return symbolindex.Doc{}
	}

	doc := symbolindex.Doc{Params: make(map[string]string)}
	var textLines []string
	for _, line := range raw {
		stripped := stripCommentMarker(line)
		if m := paramTagRe.FindStringSubmatch(stripped); m != nil {
			doc.Params[m[1]] = m[2]
			continue
		}
		if m := returnTagRe.FindStringSubmatch(stripped); m != nil {
			doc.Returns = m[1]
			continue
		}
		textLines = append(textLines, stripped)
	}
	doc.Text = strings.TrimSpace(strings.Join(textLines, "\n"))
	if len(doc.Params) == 0 {
		doc.Params = nil
	}
	return doc
}

// precedingCommentLines walks backward line by line from the line
// containing pos, collecting comment lines (in source order) until a blank
// line, a non-comment line, or the start of the file is reached.
func precedingCommentLines(src []byte, pos uint32) []string {
	lineStart := startOfLine(src, pos)

	var collected []string
	cursor := lineStart
	for cursor > 0 {
		prevStart := startOfLine(src, cursor-1)
		line := strings.TrimRight(string(src[prevStart:cursor-1]), "\r")
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || !strings.HasPrefix(trimmed, "#") {
			break
		}
		collected = append(collected, trimmed)
		cursor = prevStart
	}

	// collected was appended innermost-first (closest to the definition
	// first); reverse to restore source order.
	for i, j := 0, len(collected)-1; i < j; i, j = i+1, j-1 {
		collected[i], collected[j] = collected[j], collected[i]
	}
	return collected
}

func startOfLine(src []byte, pos uint32) uint32 {
	for pos > 0 && src[pos-1] != '\n' {
		pos--
	}
	return pos
}

func stripCommentMarker(line string) string {
	line = strings.TrimPrefix(line, "#")
	return strings.TrimPrefix(line, " ")
}
