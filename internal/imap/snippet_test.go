package imap

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

const plainMessage = "From: a@example.org\r\n" +
	"To: b@example.org\r\n" +
	"Subject: hello\r\n" +
	"Content-Type: text/plain\r\n" +
	"\r\n" +
	"First line.\r\nSecond   line.\r\n"

func TestSnippetFromPlainBody(t *testing.T) {
	got := snippetFromBody([]byte(plainMessage))
	assert.Equal(t, "First line. Second line.", got)
}

func TestSnippetPrefersPlainOverHTML(t *testing.T) {
	raw := "From: a@example.org\r\n" +
		"Content-Type: multipart/alternative; boundary=BOUND\r\n" +
		"\r\n" +
		"--BOUND\r\n" +
		"Content-Type: text/html\r\n" +
		"\r\n" +
		"<p>rendered</p>\r\n" +
		"--BOUND\r\n" +
		"Content-Type: text/plain\r\n" +
		"\r\n" +
		"plain wins\r\n" +
		"--BOUND--\r\n"

	assert.Equal(t, "plain wins", snippetFromBody([]byte(raw)))
}

func TestSnippetUnparseableFallsBackToRawText(t *testing.T) {
	got := snippetFromBody([]byte("no headers, just   text"))
	assert.Equal(t, "no headers, just text", got)
}

func TestTruncateSnippet(t *testing.T) {
	long := strings.Repeat("word ", 200)
	got := truncateSnippet(long)
	assert.Len(t, got, snippetMaxLen)

	assert.Equal(t, "a b c", truncateSnippet("  a\n b\t\tc  "))
	assert.Equal(t, "", truncateSnippet("   "))
}
