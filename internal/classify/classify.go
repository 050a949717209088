// Package classify implements the expression-block classifier (C6): for
// every TemplateContent node in a parsed document, it invokes the external
// expression parser (internal/rubyexpr) on the block's inner content and
// records a Classification tag that the control-structure rewriter (C7)
// consumes.
package classify

import (
	"github.com/gohtmx/herb/internal/ast"
	"github.com/gohtmx/herb/internal/rubyexpr"
)

// Classify walks doc in document order, classifying every TemplateContent
// node reachable through a document/element/open-tag/attribute-value child
// list. Classify runs before the rewriter (C7), so the tree it walks is
// still flat: control-structure nodes do not exist yet.
func Classify(doc *ast.Document) {
	visit(doc)
}

func visit(n ast.Node) {
	switch v := n.(type) {
	case *ast.Document:
		classifyList(v.Children)
		visitAll(v.Children)
	case *ast.Element:
		if v.Open != nil {
			visit(v.Open)
		}
		classifyList(v.Body)
		visitAll(v.Body)
	case *ast.OpenTag:
		classifyList(v.Children)
		visitAll(v.Children)
	case *ast.Attribute:
		if v.Value != nil {
			visit(v.Value)
		}
	case *ast.AttributeValue:
		classifyList(v.Children)
		visitAll(v.Children)
	case *ast.Doctype:
		classifyList(v.Children)
		visitAll(v.Children)
	case *ast.Comment:
		classifyList(v.Children)
		visitAll(v.Children)
	case *ast.CData:
		classifyList(v.Children)
		visitAll(v.Children)
	case *ast.XMLDecl:
		classifyList(v.Children)
		visitAll(v.Children)
	}
}

func visitAll(nodes []ast.Node) {
	for _, n := range nodes {
		visit(n)
	}
}

// classifyList classifies every TemplateContent directly in nodes (not
// recursively; the caller's visit already handles recursion) and then
// resolves the CASE vs CASE_MATCH ambiguity within this one sibling list.
func classifyList(nodes []ast.Node) {
	for _, n := range nodes {
		if tc, ok := n.(*ast.TemplateContent); ok {
			classifyOne(tc)
		}
	}
	promoteCaseMatch(nodes)
}

func classifyOne(tc *ast.TemplateContent) {
	if tc.IsSkip() {
		tc.Parsed = false
		tc.Valid = false
		tc.Classification = ast.ClassUnknown
		return
	}

	node, diags := rubyexpr.Parse([]byte(tc.Content.Value), rubyexpr.Options{})
	tc.ParsedExpr = node
	tc.Parsed = node.Parsed
	tc.Valid = node.Parsed && len(diags) == 0
	tc.Classification = ClassificationForKind(node.Kind)
}

// ClassificationForKind maps the expression-parser adapter's Kind directly
// onto an ast.Classification. rubyexpr always sets Kind from the leading
// keyword it recognized, regardless of whether the tail expression itself
// parsed cleanly (see internal/rubyexpr's doc comment on Parse) - so C6
// trusts Kind unconditionally rather than gating on Parsed, which is what
// lets a malformed `<% if ( %>` still classify as IF.
func ClassificationForKind(k rubyexpr.Kind) ast.Classification {
	switch k {
	case rubyexpr.IF:
		return ast.ClassIf
	case rubyexpr.ELSIF:
		return ast.ClassElsif
	case rubyexpr.ELSE:
		return ast.ClassElse
	case rubyexpr.END:
		return ast.ClassEnd
	case rubyexpr.CASE:
		return ast.ClassCase
	case rubyexpr.CASE_MATCH:
		return ast.ClassCaseMatch
	case rubyexpr.WHEN:
		return ast.ClassWhen
	case rubyexpr.IN:
		return ast.ClassIn
	case rubyexpr.BEGIN:
		return ast.ClassBegin
	case rubyexpr.RESCUE:
		return ast.ClassRescue
	case rubyexpr.ENSURE:
		return ast.ClassEnsure
	case rubyexpr.UNLESS:
		return ast.ClassUnless
	case rubyexpr.WHILE:
		return ast.ClassWhile
	case rubyexpr.UNTIL:
		return ast.ClassUntil
	case rubyexpr.FOR:
		return ast.ClassFor
	case rubyexpr.BLOCK:
		return ast.ClassBlock
	case rubyexpr.BLOCK_CLOSE:
		return ast.ClassBlockClose
	case rubyexpr.YIELD:
		return ast.ClassYield
	default:
		return ast.ClassUnknown
	}
}

// promoteCaseMatch resolves the ambiguity that Ruby's `case` keyword is
// lexically identical whether the block turns out to use `when` or `in`
// clauses: a fragment consisting of just `case` or `case subject` parses
// the same either way, so rubyexpr always reports CASE. This pass looks
// at the first TemplateContent sibling following a CASE block (skipping
// every sibling that is not a TemplateContent) and promotes to CASE_MATCH
// when that sibling is an IN clause.
func promoteCaseMatch(nodes []ast.Node) {
	for i, n := range nodes {
		tc, ok := n.(*ast.TemplateContent)
		if !ok || tc.Classification != ast.ClassCase {
			continue
		}
		for j := i + 1; j < len(nodes); j++ {
			sib, ok := nodes[j].(*ast.TemplateContent)
			if !ok {
				continue
			}
			if sib.Classification == ast.ClassIn {
				tc.Classification = ast.ClassCaseMatch
			}
			break
		}
	}
}
