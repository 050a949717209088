// Package extract implements the two extractor modes (C9): byte-length-
// preserving projections of the token stream that either blank out HTML and
// keep template expressions, or blank out template expressions and keep
// HTML. Both are used by tools that want to feed only one half of a
// template to an external formatter or type-checker while preserving byte
// offsets for diagnostics.
package extract

import (
	"strings"

	"github.com/gohtmx/herb/internal/lexer"
	"github.com/gohtmx/herb/internal/token"
)

func isSkipOpen(v string) bool {
	switch v {
	case "<%#", "<%%", "<%%=":
		return true
	default:
		return false
	}
}

func spaces(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat(" ", n)
}

// ExtractExpressions returns the expression-only projection of source:
// every HTML or template-delimiter byte is replaced with a space of the
// same length; EXPRESSION_CONTENT bytes pass through verbatim unless the
// enclosing block is a comment or escaped literal (`<%#`, `<%%`, `<%%=`),
// in which case they are blanked too. Newlines are preserved verbatim so
// line numbers survive.
func ExtractExpressions(source []byte) string {
	return extract(source, false)
}

// ExtractExpressionsWithSeparators is ExtractExpressions, except every
// EXPRESSION_END token emits one space, one ';', then spaces for the rest of
// its length - giving the external expression parser a valid statement
// separator between adjacent blocks on the same source line.
func ExtractExpressionsWithSeparators(source []byte) string {
	return extract(source, true)
}

func extract(source []byte, separators bool) string {
	toks := lexer.Lex(source)
	var b strings.Builder
	b.Grow(len(source))

	skip := false
	for _, tok := range toks {
		switch tok.Kind {
		case token.Newline:
			b.WriteString(tok.Value)
		case token.ExpressionOpen:
			skip = isSkipOpen(tok.Value)
			b.WriteString(spaces(len(tok.Value)))
		case token.ExpressionContent:
			if skip {
				b.WriteString(spaces(len(tok.Value)))
			} else {
				b.WriteString(tok.Value)
			}
		case token.ExpressionEnd:
			n := len(tok.Value)
			if separators && n >= 2 {
				b.WriteByte(' ')
				b.WriteByte(';')
				b.WriteString(spaces(n - 2))
			} else {
				b.WriteString(spaces(n))
			}
			skip = false
		case token.EOF:
			// synthesized sentinel, contributes no source bytes.
		default:
			b.WriteString(spaces(len(tok.Value)))
		}
	}
	return b.String()
}

// ExtractHTML returns the HTML-only projection: every EXPRESSION_OPEN,
// EXPRESSION_CONTENT, and EXPRESSION_END token is replaced with spaces of
// the same byte length; every other token passes through verbatim.
func ExtractHTML(source []byte) string {
	toks := lexer.Lex(source)
	var b strings.Builder
	b.Grow(len(source))

	for _, tok := range toks {
		switch tok.Kind {
		case token.ExpressionOpen, token.ExpressionContent, token.ExpressionEnd:
			b.WriteString(spaces(len(tok.Value)))
		case token.EOF:
		default:
			b.WriteString(tok.Value)
		}
	}
	return b.String()
}
