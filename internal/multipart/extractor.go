// Package multipart extracts a single uploaded file from a raw
// multipart/form-data body. The parsing is deliberately line-oriented:
// only CSV/text payloads are targeted, so binary part content is not
// supported.
package multipart

import (
	"regexp"
	"strings"

	"github.com/fpt-devteam/csv-processor/internal/apperr"
)

// DefaultFileName is used when a file part carries no filename parameter.
const DefaultFileName = "uploaded_file.csv"

var (
	quotedFileNameRe   = regexp.MustCompile(`filename="([^"]+)"`)
	unquotedFileNameRe = regexp.MustCompile(`filename=([^\r\n;]+)`)
	trailingDashesRe   = regexp.MustCompile(`-+\s*$`)
)

// Extract parses a raw multipart body and returns the first file part's
// name and content. The boundary is taken from the Content-Type header
// when present, otherwise sniffed from the first body line.
func Extract(contentType string, body []byte) (string, []byte, error) {
	boundary := boundaryFromHeader(contentType)
	if boundary == "" {
		boundary = boundaryFromBody(body)
	}

	if boundary == "" {
		return "", nil, apperr.BadRequest("missing boundary in multipart/form-data")
	}

	fileName, fileBytes := findFilePart(string(body), boundary)
	if fileName == "" || len(fileBytes) == 0 {
		return "", nil, apperr.BadRequest("no file found in request")
	}

	return fileName, fileBytes, nil
}

// boundaryFromHeader pulls the boundary parameter out of a Content-Type
// header. The parameter name is matched case-insensitively and the value
// may be quoted.
func boundaryFromHeader(contentType string) string {
	for _, part := range strings.Split(contentType, ";") {
		trimmed := strings.TrimSpace(part)
		if len(trimmed) < len("boundary=") {
			continue
		}
		if strings.EqualFold(trimmed[:len("boundary=")], "boundary=") {
			return strings.Trim(trimmed[len("boundary="):], `" `)
		}
	}
	return ""
}

// boundaryFromBody sniffs the boundary from the first line of the body,
// which by convention is the boundary delimiter itself.
func boundaryFromBody(body []byte) string {
	firstLine := string(body)
	if idx := strings.IndexAny(firstLine, "\r\n"); idx >= 0 {
		firstLine = firstLine[:idx]
	}

	if strings.HasPrefix(firstLine, "--") {
		return strings.TrimPrefix(firstLine, "--")
	}
	return ""
}

// findFilePart scans the boundary-delimited parts for the first one that
// carries a file and returns its name and text content. Only a single
// file per request is supported; later parts are ignored.
func findFilePart(content, boundary string) (string, []byte) {
	parts := strings.Split(content, "--"+boundary)

	for _, part := range parts {
		if !strings.Contains(part, "Content-Disposition") || !strings.Contains(part, "filename=") {
			continue
		}

		fileName := extractFileName(part)
		fileContent := extractContent(part)
		if fileContent == "" {
			return fileName, nil
		}

		return fileName, []byte(fileContent)
	}

	return "", nil
}

func extractFileName(part string) string {
	if m := quotedFileNameRe.FindStringSubmatch(part); m != nil {
		return strings.TrimSpace(m[1])
	}
	if m := unquotedFileNameRe.FindStringSubmatch(part); m != nil {
		return strings.TrimSpace(m[1])
	}
	return DefaultFileName
}

// extractContent returns everything after the part's header/body
// separator (the first blank line), with trailing boundary dashes and
// CR/LF stripped.
func extractContent(part string) string {
	lines := splitLines(part)

	// Parts start with the CRLF that followed the boundary line, so the
	// separator is the first blank line after at least one header line.
	contentStart := -1
	seenHeader := false
	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			if seenHeader {
				contentStart = i + 1
				break
			}
			continue
		}
		seenHeader = true
	}

	if contentStart <= 0 || contentStart >= len(lines) {
		return ""
	}

	content := strings.Join(lines[contentStart:], "\n")
	content = trailingDashesRe.ReplaceAllString(content, "")
	return strings.TrimRight(content, "\r\n")
}

// splitLines splits on CRLF or bare LF.
func splitLines(s string) []string {
	return strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
}
