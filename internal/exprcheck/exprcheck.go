// Package exprcheck implements the expression-syntax checker (C8): after
// classification (internal/classify) and rewriting (internal/rewrite) have
// run, it collects the syntax diagnostics the external expression parser
// produced for each template block's inner content and attaches them to the
// document's top-level error list, separate from the HTML structural errors
// the parser attaches to the nearest enclosing node.
//
// rubyexpr is a statement-keyword recognizer backed by expr-lang/expr, not a
// full Ruby grammar: expr-lang validates single expressions, not Ruby's
// if/end block statements, so re-parsing a whole multi-block projection as
// one program (the literal "partial script" framing) would flag ordinary,
// well-formed if/end and case/when templates as broken. Each block's tail
// expression was already checked in isolation during classification, so
// exprcheck re-derives the same per-block diagnostics and anchors each one
// to that block's own content span, which is both accurate and cheap. The
// keyword markers of else/end/ensure/'}' blocks that the rewriter grouped
// into a control structure are left out.
package exprcheck

import (
	"github.com/gohtmx/herb/internal/ast"
	"github.com/gohtmx/herb/internal/cursor"
	"github.com/gohtmx/herb/internal/rubyexpr"
	"github.com/gohtmx/herb/internal/token"
)

// Check walks doc and appends an ast.Diagnostic (DiagExpressionSyntax) to
// doc's top-level errors for every non-skip TemplateContent block whose
// inner expression failed to parse. The fixed keyword marker of a bare
// else/end/ensure or '}' block is reported only while that block is still
// flat, i.e. the rewriter did not group it into a control structure.
func Check(doc *ast.Document) {
	visit(doc, doc)
}

func visit(doc *ast.Document, n ast.Node) {
	if tc, ok := n.(*ast.TemplateContent); ok {
		checkOne(doc, tc, false)
	}
	if opening := openingOf(n); opening != nil {
		checkOne(doc, opening, true)
	}
	for _, child := range ast.Children(n) {
		visit(doc, child)
	}
	if el, ok := n.(*ast.Element); ok && el.Open != nil {
		visit(doc, el.Open)
	}
}

// openingOf returns the opening TemplateContent of a control-structure node
// produced by the rewriter (internal/rewrite). ast.Children never surfaces
// a node's own Opening field (only its nested Children/Subsequent/End), so
// the rewritten tree needs this alongside ast.Children to reach every
// template block once rewriting has grouped flat siblings into these nodes.
func openingOf(n ast.Node) *ast.TemplateContent {
	switch v := n.(type) {
	case *ast.End:
		return v.Opening
	case *ast.Else:
		return v.Opening
	case *ast.If:
		return v.Opening
	case *ast.Elsif:
		return v.Opening
	case *ast.When:
		return v.Opening
	case *ast.In:
		return v.Opening
	case *ast.Case:
		return v.Opening
	case *ast.CaseMatch:
		return v.Opening
	case *ast.Ensure:
		return v.Opening
	case *ast.Rescue:
		return v.Opening
	case *ast.Begin:
		return v.Opening
	case *ast.Unless:
		return v.Opening
	case *ast.While:
		return v.Opening
	case *ast.Until:
		return v.Opening
	case *ast.For:
		return v.Opening
	case *ast.BlockClose:
		return v.Opening
	case *ast.Block:
		return v.Opening
	case *ast.Yield:
		return v.Opening
	default:
		return nil
	}
}

// checkOne reports tc's diagnostics. grouped is true when the rewriter
// consumed tc into a control-structure node: a bare else/end/ensure or '}'
// always carries rubyexpr's fixed "unexpected ..., ignoring it" marker, and
// once grouped that marker is not a syntax error, so it is not reported.
func checkOne(doc *ast.Document, tc *ast.TemplateContent, grouped bool) {
	if tc.IsSkip() {
		return
	}
	node, diags := rubyexpr.Parse([]byte(tc.Content.Value), rubyexpr.Options{})
	if grouped && isBareMarker(node.Kind) {
		return
	}
	for _, d := range diags {
		doc.AddError(&ast.Diagnostic{
			Kind:     ast.DiagExpressionSyntax,
			Message:  d.Message,
			Location: diagLocation(tc, d),
		})
	}
}

func isBareMarker(k rubyexpr.Kind) bool {
	return k == rubyexpr.ELSE || k == rubyexpr.END || k == rubyexpr.ENSURE || k == rubyexpr.BLOCK_CLOSE
}

// diagLocation narrows a diagnostic's location to the keyword span d names
// (e.g. just "if", not the whole " if " content token) when rubyexpr
// populated Start/End; keyword-boundary diagnostics are the only ones that
// currently do (see rubyexpr.go), so anything else falls back to the full
// content token's span.
func diagLocation(tc *ast.TemplateContent, d rubyexpr.Diagnostic) token.Location {
	if d.Start == 0 && d.End == 0 {
		return tc.Content.Location
	}
	base := tc.Content.Location.Start
	return token.Location{
		Start: advancePosition(base, tc.Content.Value, d.Start),
		End:   advancePosition(base, tc.Content.Value, d.End),
	}
}

// advancePosition walks text from its own start up to byte offset n,
// reusing internal/cursor's line/column tracking, then folds the result
// onto base: a line break inside text moves the absolute line forward and
// resets the column, otherwise the column is base's plus the in-text
// column.
func advancePosition(base token.Position, text string, n int) token.Position {
	c := cursor.New([]byte(text))
	for c.Pos() < n && !c.Eof() {
		c.Advance()
	}
	p := c.Position()
	if p.Line == 1 {
		return token.Position{Line: base.Line, Column: base.Column + p.Column}
	}
	return token.Position{Line: base.Line + p.Line - 1, Column: p.Column}
}
