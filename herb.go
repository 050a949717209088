// Package herb parses templated HTML: documents that interleave ordinary
// markup with `<% ... %>` template tags. It wires together a lexer, a
// recursive-descent HTML parser, and a template-control-structure analyzer
// into the small set of entry points below; internal/ holds every stage's
// implementation.
package herb

import (
	"github.com/gohtmx/herb/internal/ast"
	"github.com/gohtmx/herb/internal/classify"
	"github.com/gohtmx/herb/internal/exprcheck"
	"github.com/gohtmx/herb/internal/extract"
	"github.com/gohtmx/herb/internal/htmlparser"
	"github.com/gohtmx/herb/internal/lexer"
	"github.com/gohtmx/herb/internal/rewrite"
	"github.com/gohtmx/herb/internal/token"
)

// coreVersion identifies this module's own parsing behavior, independent of
// the expr-lang/expr release it embeds for expression-syntax validation.
const coreVersion = "0.1.0"

// exprParserVersion is the version of github.com/expr-lang/expr this module
// was built against, reported alongside coreVersion the way the C
// implementation reports herb_version() alongside herb_prism_version().
const exprParserVersion = "1.16.2"

// Options controls parsing behavior not implied by the grammar itself.
type Options struct {
	// TrackWhitespace, when false, suppresses pure-whitespace Whitespace
	// nodes outside of attribute values.
	TrackWhitespace bool
}

// Lex tokenizes source and returns its full token stream, including the
// trailing EOF token.
func Lex(source []byte) []token.Token {
	return lexer.Lex(source)
}

// Parse runs the full pipeline over source: lexing, HTML parsing (C5),
// template-block classification (C6), control-structure rewriting (C7), and
// expression-syntax checking (C8). The returned Document's top-level
// errors hold expression-syntax diagnostics; HTML structural diagnostics are
// attached to the nearest enclosing node by the parser itself.
func Parse(source []byte, opts Options) *ast.Document {
	doc := htmlparser.Parse(source, htmlparser.Options{TrackWhitespace: opts.TrackWhitespace})
	classify.Classify(doc)
	rewrite.Rewrite(doc)
	exprcheck.Check(doc)
	return doc
}

// ExtractExpressions returns the expression-only projection of source: HTML
// and template delimiters blanked to spaces, expression bodies preserved.
// The result is always the same byte length as source.
func ExtractExpressions(source []byte) string {
	return extract.ExtractExpressions(source)
}

// ExtractExpressionsWithSeparators is ExtractExpressions with a statement
// separator inserted at every EXPRESSION_END, so adjacent blocks on a
// shared source line can be re-parsed as distinct statements.
func ExtractExpressionsWithSeparators(source []byte) string {
	return extract.ExtractExpressionsWithSeparators(source)
}

// ExtractHTML returns the HTML-only projection of source: every template
// delimiter and expression body blanked to spaces, HTML preserved
// verbatim. The result is always the same byte length as source.
func ExtractHTML(source []byte) string {
	return extract.ExtractHTML(source)
}

// Version reports this module's own version alongside the version of the
// embedded expression-parser adapter's backing library.
func Version() (coreVer, exprParserVer string) {
	return coreVersion, exprParserVersion
}
