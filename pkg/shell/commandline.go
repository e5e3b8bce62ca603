package shell

import (
	"strings"
	"unicode"
)

// CommandLine wraps one input line and hands out whitespace-delimited tokens
// from the left, keeping the untokenized tail intact so a file path or query
// text can be taken whole.
type CommandLine struct {
	text string
}

// NewCommandLine wraps a raw input line, trimming surrounding whitespace.
func NewCommandLine(line string) *CommandLine {
	return &CommandLine{text: strings.TrimSpace(line)}
}

// HasMore reports whether any non-whitespace text remains.
func (c *CommandLine) HasMore() bool {
	return c.text != ""
}

// Text returns the remaining buffer content.
func (c *CommandLine) Text() string {
	return c.text
}

// Peek returns the next token without consuming it, or "" when the buffer is
// exhausted.
func (c *CommandLine) Peek() string {
	token, _ := c.split()
	return token
}

// Pop consumes and returns the next token, leaving the left-trimmed
// remainder as the new buffer content. It returns "" when the buffer is
// exhausted.
func (c *CommandLine) Pop() string {
	token, rest := c.split()
	c.text = rest
	return token
}

func (c *CommandLine) split() (token, rest string) {
	if c.text == "" {
		return "", ""
	}
	if i := strings.IndexFunc(c.text, unicode.IsSpace); i >= 0 {
		return c.text[:i], strings.TrimLeftFunc(c.text[i:], unicode.IsSpace)
	}
	return c.text, ""
}
