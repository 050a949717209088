// Package cursor implements the byte cursor over source text that the
// lexer advances through, tracking line/column and classifying UTF-8
// multibyte sequences one logical character at a time.
package cursor

import "github.com/gohtmx/herb/internal/token"

// Cursor walks a source buffer byte-by-byte (or, for valid UTF-8 leading
// bytes, one multibyte character at a time), tracking line and column.
type Cursor struct {
	src  []byte
	pos  int
	line int
	col  int
}

// New returns a Cursor positioned at the start of src.
func New(src []byte) *Cursor {
	return &Cursor{src: src, pos: 0, line: 1, col: 0}
}

// Pos returns the current byte offset.
func (c *Cursor) Pos() int { return c.pos }

// Len returns the length of the source in bytes.
func (c *Cursor) Len() int { return len(c.src) }

// Position returns the current line/column as a token.Position.
func (c *Cursor) Position() token.Position {
	return token.Position{Line: c.line, Column: c.col}
}

// Eof reports whether the cursor has consumed the entire source.
func (c *Cursor) Eof() bool { return c.pos >= len(c.src) }

// Peek returns the byte at current position + offset, or 0 if out of range.
func (c *Cursor) Peek(offset int) byte {
	i := c.pos + offset
	if i < 0 || i >= len(c.src) {
		return 0
	}
	return c.src[i]
}

// Slice returns the raw bytes of the source in [from, to).
func (c *Cursor) Slice(from, to int) []byte {
	return c.src[from:to]
}

// HasPrefix reports whether the bytes starting at the current position
// equal s.
func (c *Cursor) HasPrefix(s string) bool {
	if c.pos+len(s) > len(c.src) {
		return false
	}
	return string(c.src[c.pos:c.pos+len(s)]) == s
}

// HasPrefixFold is like HasPrefix but compares ASCII letters case-insensitively.
func (c *Cursor) HasPrefixFold(s string) bool {
	if c.pos+len(s) > len(c.src) {
		return false
	}
	for i := 0; i < len(s); i++ {
		a, b := c.src[c.pos+i], s[i]
		a = toLowerASCII(a)
		b = toLowerASCII(b)
		if a != b {
			return false
		}
	}
	return true
}

func toLowerASCII(b byte) byte {
	if b >= 'A' && b <= 'Z' {
		return b + ('a' - 'A')
	}
	return b
}

// utf8Len returns the expected byte length of a UTF-8 sequence starting
// with the given lead byte: 1 for ASCII, 2/3/4 for multibyte lead bytes in
// range 0xC0-0xF7, or 0 if lead is not a valid sequence start (a stray
// continuation byte or otherwise invalid).
func utf8Len(lead byte) int {
	switch {
	case lead < 0x80:
		return 1
	case lead >= 0xC0 && lead < 0xE0:
		return 2
	case lead >= 0xE0 && lead < 0xF0:
		return 3
	case lead >= 0xF0 && lead < 0xF8:
		return 4
	default:
		return 0
	}
}

func isContinuation(b byte) bool {
	return b&0xC0 == 0x80
}

// Advance consumes one logical character at the current position: one byte
// for ASCII, or a validated multibyte UTF-8 sequence (2-4 bytes) for a
// recognized leading byte whose continuation bytes all match 10xxxxxx.
// Invalid sequences (bad lead byte, or missing/invalid continuation bytes)
// advance exactly one byte. \r\n is treated as a single newline advancing
// by 2 bytes. It returns the consumed bytes and never advances past the
// end of source; calling Advance at EOF returns nil without advancing.
func (c *Cursor) Advance() []byte {
	if c.Eof() {
		return nil
	}

	lead := c.src[c.pos]

	// \r\n counts as a single newline.
	if lead == '\r' && c.pos+1 < len(c.src) && c.src[c.pos+1] == '\n' {
		out := c.src[c.pos : c.pos+2]
		c.pos += 2
		c.line++
		c.col = 0
		return out
	}
	if lead == '\r' || lead == '\n' {
		out := c.src[c.pos : c.pos+1]
		c.pos++
		c.line++
		c.col = 0
		return out
	}

	n := utf8Len(lead)
	if n <= 1 {
		out := c.src[c.pos : c.pos+1]
		c.pos++
		c.col++
		return out
	}

	if c.pos+n > len(c.src) {
		// Truncated sequence: treat as invalid, advance one byte.
		out := c.src[c.pos : c.pos+1]
		c.pos++
		c.col++
		return out
	}
	for i := 1; i < n; i++ {
		if !isContinuation(c.src[c.pos+i]) {
			// Invalid continuation: advance one byte only.
			out := c.src[c.pos : c.pos+1]
			c.pos++
			c.col++
			return out
		}
	}

	out := c.src[c.pos : c.pos+n]
	c.pos += n
	c.col++
	return out
}
