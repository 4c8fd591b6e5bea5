package imap

import (
	"bytes"
	"io"
	"strings"

	"github.com/emersion/go-message/mail"
)

// snippetMaxLen bounds the plain-text preview attached to message details.
const snippetMaxLen = 256

// snippetFromBody parses a raw RFC 2822 message using go-message and
// extracts a short plain-text preview, preferring the text/plain part.
func snippetFromBody(raw []byte) string {
	reader := bytes.NewReader(raw)

	mr, err := mail.CreateReader(reader)
	if err != nil {
		// If parsing fails, treat the whole thing as plain text.
		return truncateSnippet(string(raw))
	}
	defer mr.Close()

	var htmlFallback string
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}

		header, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}

		contentType, _, _ := header.ContentType()
		body, readErr := io.ReadAll(part.Body)
		if readErr != nil {
			continue
		}

		switch {
		case strings.HasPrefix(contentType, "text/plain"):
			return truncateSnippet(string(body))
		case strings.HasPrefix(contentType, "text/html"):
			htmlFallback = string(body)
		}
	}

	return truncateSnippet(htmlFallback)
}

func truncateSnippet(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) > snippetMaxLen {
		s = s[:snippetMaxLen]
	}
	return s
}
