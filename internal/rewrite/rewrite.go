// Package rewrite implements the control-structure rewriter (C7): it walks
// a classified document and nests flat TemplateContent siblings into the
// control-structure node shapes declared in internal/ast (If/Elsif/Else/End,
// Case/When, CaseMatch/In, Begin/Rescue/Ensure, Unless, While/Until/For,
// Block), per the opener/subsequent/terminator grammar.
package rewrite

import (
	"reflect"

	"github.com/gohtmx/herb/internal/ast"
	"github.com/gohtmx/herb/internal/rubyexpr"
	"github.com/gohtmx/herb/internal/token"
)

// Rewrite mutates doc in place, replacing every rewritable child list
// (document children, element body, open-tag children, attribute-value
// children, and the bodies of control-structure nodes themselves) with its
// nested form. Running Rewrite again on an already-rewritten tree is a
// no-op: consumeOpener only ever matches a bare *ast.TemplateContent, never
// a node it already produced.
func Rewrite(doc *ast.Document) {
	rewriteNode(doc)
}

func rewriteNode(n ast.Node) {
	if n == nil {
		return
	}
	for _, slot := range slots(n) {
		*slot = rewriteList(*slot)
	}
	for _, c := range ast.Children(n) {
		rewriteNode(c)
	}
	if el, ok := n.(*ast.Element); ok && el.Open != nil {
		rewriteNode(el.Open)
	}
}

// slots returns every ordered child-list field of n that may still contain
// unconsumed opener/subsequent/terminator TemplateContent nodes.
func slots(n ast.Node) []*[]ast.Node {
	switch v := n.(type) {
	case *ast.Document:
		return []*[]ast.Node{&v.Children}
	case *ast.Element:
		return []*[]ast.Node{&v.Body}
	case *ast.OpenTag:
		return []*[]ast.Node{&v.Children}
	case *ast.AttributeValue:
		return []*[]ast.Node{&v.Children}
	case *ast.If:
		return []*[]ast.Node{&v.Children}
	case *ast.Elsif:
		return []*[]ast.Node{&v.Children}
	case *ast.Else:
		return []*[]ast.Node{&v.Children}
	case *ast.When:
		return []*[]ast.Node{&v.Children}
	case *ast.In:
		return []*[]ast.Node{&v.Children}
	case *ast.Case:
		return []*[]ast.Node{&v.PreWhenChildren}
	case *ast.CaseMatch:
		return []*[]ast.Node{&v.PreWhenChildren}
	case *ast.Begin:
		return []*[]ast.Node{&v.Children}
	case *ast.Rescue:
		return []*[]ast.Node{&v.Children}
	case *ast.Ensure:
		return []*[]ast.Node{&v.Children}
	case *ast.Unless:
		return []*[]ast.Node{&v.Children}
	case *ast.While:
		return []*[]ast.Node{&v.Children}
	case *ast.Until:
		return []*[]ast.Node{&v.Children}
	case *ast.For:
		return []*[]ast.Node{&v.Children}
	case *ast.Block:
		return []*[]ast.Node{&v.Children}
	default:
		return nil
	}
}

// rewriteList performs one balanced-consumption pass over a flat sibling
// list per spec: openers absorb forward to their terminator, a YIELD block
// becomes a standalone Yield node, everything else passes through.
func rewriteList(nodes []ast.Node) []ast.Node {
	out := make([]ast.Node, 0, len(nodes))
	i := 0
	for i < len(nodes) {
		tc, ok := nodes[i].(*ast.TemplateContent)
		if !ok {
			out = append(out, nodes[i])
			i++
			continue
		}
		switch tc.Classification {
		case ast.ClassYield:
			y := &ast.Yield{Header: ast.NewHeader(ast.KindYield), Opening: tc}
			y.SetLoc(tc.Loc())
			out = append(out, y)
			i++
		case ast.ClassIf, ast.ClassCase, ast.ClassCaseMatch, ast.ClassBegin,
			ast.ClassUnless, ast.ClassWhile, ast.ClassUntil, ast.ClassFor, ast.ClassBlock:
			node, next := consumeOpener(nodes, i, tc)
			out = append(out, node)
			i = next
		default:
			out = append(out, nodes[i])
			i++
		}
	}
	return out
}

func consumeOpener(nodes []ast.Node, i int, tc *ast.TemplateContent) (ast.Node, int) {
	switch tc.Classification {
	case ast.ClassIf:
		return consumeIfOrElsif(nodes, i, false)
	case ast.ClassCase:
		return consumeCase(nodes, i)
	case ast.ClassCaseMatch:
		return consumeCaseMatch(nodes, i)
	case ast.ClassBegin:
		return consumeBegin(nodes, i)
	case ast.ClassUnless:
		return consumeUnless(nodes, i)
	case ast.ClassWhile:
		return consumeSimpleLoop(nodes, i, ast.KindWhile)
	case ast.ClassUntil:
		return consumeSimpleLoop(nodes, i, ast.KindUntil)
	case ast.ClassFor:
		return consumeFor(nodes, i)
	case ast.ClassBlock:
		return consumeBlock(nodes, i)
	default:
		// unreachable: rewriteList only calls this for opener classes.
		out := nodes[i]
		return out, i + 1
	}
}

// classSet builds a membership set for scanUntil's stop predicate.
func classSet(cs ...ast.Classification) map[ast.Classification]bool {
	m := make(map[ast.Classification]bool, len(cs))
	for _, c := range cs {
		m[c] = true
	}
	return m
}

// openerClasses are the classifications that open a control structure
// closed by a later END (or, for BLOCK, a BLOCK_CLOSE).
var openerClasses = classSet(ast.ClassIf, ast.ClassCase, ast.ClassCaseMatch, ast.ClassBegin,
	ast.ClassUnless, ast.ClassWhile, ast.ClassUntil, ast.ClassFor, ast.ClassBlock)

// scanUntil collects nodes[start:] up to (not including) the first
// TemplateContent whose Classification is in stop and which is not inside
// a nested opener and its own END/BLOCK_CLOSE, returning the collected
// children and the index of that node (len(nodes) if none found, meaning
// the opener is unbalanced).
func scanUntil(nodes []ast.Node, start int, stop map[ast.Classification]bool) ([]ast.Node, int) {
	var children []ast.Node
	depth := 0
	for j := start; j < len(nodes); j++ {
		if tc, ok := nodes[j].(*ast.TemplateContent); ok {
			switch c := tc.Classification; {
			case depth == 0 && stop[c]:
				return children, j
			case openerClasses[c]:
				depth++
			case depth > 0 && (c == ast.ClassEnd || c == ast.ClassBlockClose):
				depth--
			}
		}
		children = append(children, nodes[j])
	}
	return children, len(nodes)
}

// isNilNode reports whether n is either a true nil interface or a typed
// nil pointer (e.g. a (*ast.End)(nil) boxed into the ast.Node interface,
// which `n == nil` would not catch).
func isNilNode(n ast.Node) bool {
	if n == nil {
		return true
	}
	v := reflect.ValueOf(n)
	return v.Kind() == reflect.Ptr && v.IsNil()
}

func locEnd(start token.Position, parts ...ast.Node) token.Position {
	end := start
	for _, p := range parts {
		if isNilNode(p) {
			continue
		}
		if e := p.Loc().End; end.Less(e) {
			end = e
		}
	}
	return end
}

func setLocFromOpening(n ast.Node, opening *ast.TemplateContent, children []ast.Node, extra ...ast.Node) {
	end := locEnd(opening.Loc().End, children...)
	end = locEnd(end, extra...)
	n.SetLoc(token.Location{Start: opening.Loc().Start, End: end})
}

func buildEnd(tc *ast.TemplateContent) *ast.End {
	e := &ast.End{Header: ast.NewHeader(ast.KindEnd), Opening: tc}
	e.SetLoc(tc.Loc())
	return e
}

// ---- if / elsif / else ----

func consumeIfOrElsif(nodes []ast.Node, i int, elsif bool) (ast.Node, int) {
	tc := nodes[i].(*ast.TemplateContent)
	stop := classSet(ast.ClassElsif, ast.ClassElse, ast.ClassEnd)
	children, stopIdx := scanUntil(nodes, i+1, stop)

	var subsequent ast.Node
	var end *ast.End
	next := stopIdx

	if stopIdx < len(nodes) {
		stopTC := nodes[stopIdx].(*ast.TemplateContent)
		switch stopTC.Classification {
		case ast.ClassElsif:
			sub, n := consumeIfOrElsif(nodes, stopIdx, true)
			subsequent = sub
			next = n
			end = endFieldOf(sub)
		case ast.ClassElse:
			elseNode, elseStop := consumeElse(nodes, stopIdx)
			subsequent = elseNode
			if elseStop < len(nodes) {
				end = buildEnd(nodes[elseStop].(*ast.TemplateContent))
				next = elseStop + 1
			} else {
				next = elseStop
			}
		case ast.ClassEnd:
			end = buildEnd(stopTC)
			next = stopIdx + 1
		}
	}

	var node ast.Node
	if elsif {
		n := &ast.Elsif{Header: ast.NewHeader(ast.KindElsif), Opening: tc, Children: children, Subsequent: subsequent, End: end}
		node = n
	} else {
		n := &ast.If{Header: ast.NewHeader(ast.KindIf), Opening: tc, Children: children, Subsequent: subsequent, End: end}
		node = n
	}
	setLocFromOpening(node, tc, children, subsequent, end)
	return node, next
}

func endFieldOf(n ast.Node) *ast.End {
	switch v := n.(type) {
	case *ast.If:
		return v.End
	case *ast.Elsif:
		return v.End
	default:
		return nil
	}
}

func consumeElse(nodes []ast.Node, i int) (*ast.Else, int) {
	tc := nodes[i].(*ast.TemplateContent)
	children, stop := scanUntil(nodes, i+1, classSet(ast.ClassEnd))
	n := &ast.Else{Header: ast.NewHeader(ast.KindElse), Opening: tc, Children: children}
	setLocFromOpening(n, tc, children)
	return n, stop
}

// ---- case / when / case-match / in ----

func consumeCase(nodes []ast.Node, i int) (ast.Node, int) {
	tc := nodes[i].(*ast.TemplateContent)
	pre, stop := scanUntil(nodes, i+1, classSet(ast.ClassWhen, ast.ClassElse, ast.ClassEnd))

	var whens []*ast.When
	var elseNode *ast.Else
	var end *ast.End
	idx := stop

scanLoop:
	for idx < len(nodes) {
		stopTC := nodes[idx].(*ast.TemplateContent)
		switch stopTC.Classification {
		case ast.ClassWhen:
			w, next := consumeWhen(nodes, idx)
			whens = append(whens, w)
			idx = next
		case ast.ClassElse:
			e, elseStop := consumeElse(nodes, idx)
			elseNode = e
			if elseStop < len(nodes) {
				end = buildEnd(nodes[elseStop].(*ast.TemplateContent))
				idx = elseStop + 1
			} else {
				idx = elseStop
			}
			break scanLoop
		case ast.ClassEnd:
			end = buildEnd(stopTC)
			idx++
			break scanLoop
		default:
			break scanLoop
		}
	}

	node := &ast.Case{Header: ast.NewHeader(ast.KindCase), Opening: tc, PreWhenChildren: pre, Whens: whens, Else: elseNode, End: end}
	var extra []ast.Node
	for _, w := range whens {
		extra = append(extra, w)
	}
	if elseNode != nil {
		extra = append(extra, elseNode)
	}
	if end != nil {
		extra = append(extra, end)
	}
	setLocFromOpening(node, tc, pre, extra...)
	return node, idx
}

func consumeWhen(nodes []ast.Node, i int) (*ast.When, int) {
	tc := nodes[i].(*ast.TemplateContent)
	children, stop := scanUntil(nodes, i+1, classSet(ast.ClassWhen, ast.ClassElse, ast.ClassEnd))
	n := &ast.When{Header: ast.NewHeader(ast.KindWhen), Opening: tc, Children: children}
	setLocFromOpening(n, tc, children)
	return n, stop
}

func consumeCaseMatch(nodes []ast.Node, i int) (ast.Node, int) {
	tc := nodes[i].(*ast.TemplateContent)
	pre, stop := scanUntil(nodes, i+1, classSet(ast.ClassIn, ast.ClassElse, ast.ClassEnd))

	var ins []*ast.In
	var elseNode *ast.Else
	var end *ast.End
	idx := stop

scanLoop:
	for idx < len(nodes) {
		stopTC := nodes[idx].(*ast.TemplateContent)
		switch stopTC.Classification {
		case ast.ClassIn:
			in, next := consumeIn(nodes, idx)
			ins = append(ins, in)
			idx = next
		case ast.ClassElse:
			e, elseStop := consumeElse(nodes, idx)
			elseNode = e
			if elseStop < len(nodes) {
				end = buildEnd(nodes[elseStop].(*ast.TemplateContent))
				idx = elseStop + 1
			} else {
				idx = elseStop
			}
			break scanLoop
		case ast.ClassEnd:
			end = buildEnd(stopTC)
			idx++
			break scanLoop
		default:
			break scanLoop
		}
	}

	node := &ast.CaseMatch{Header: ast.NewHeader(ast.KindCaseMatch), Opening: tc, PreWhenChildren: pre, Ins: ins, Else: elseNode, End: end}
	var extra []ast.Node
	for _, in := range ins {
		extra = append(extra, in)
	}
	if elseNode != nil {
		extra = append(extra, elseNode)
	}
	if end != nil {
		extra = append(extra, end)
	}
	setLocFromOpening(node, tc, pre, extra...)
	return node, idx
}

func consumeIn(nodes []ast.Node, i int) (*ast.In, int) {
	tc := nodes[i].(*ast.TemplateContent)
	children, stop := scanUntil(nodes, i+1, classSet(ast.ClassIn, ast.ClassElse, ast.ClassEnd))
	n := &ast.In{Header: ast.NewHeader(ast.KindIn), Opening: tc, Children: children}
	setLocFromOpening(n, tc, children)
	return n, stop
}

// ---- begin / rescue / ensure ----

func consumeBegin(nodes []ast.Node, i int) (ast.Node, int) {
	tc := nodes[i].(*ast.TemplateContent)
	children, stop := scanUntil(nodes, i+1, classSet(ast.ClassRescue, ast.ClassElse, ast.ClassEnsure, ast.ClassEnd))

	var rescues *ast.Rescue
	var lastRescue *ast.Rescue
	var elseNode *ast.Else
	var ensureNode *ast.Ensure
	var end *ast.End
	idx := stop

scanLoop:
	for idx < len(nodes) {
		stopTC := nodes[idx].(*ast.TemplateContent)
		switch stopTC.Classification {
		case ast.ClassRescue:
			r, next := consumeRescue(nodes, idx)
			if rescues == nil {
				rescues = r
			} else {
				lastRescue.Next = r
			}
			lastRescue = r
			idx = next
		case ast.ClassElse:
			// Inside begin, else may be followed by ensure, so its body
			// stops at ensure as well as at end.
			elseChildren, elseStop := scanUntil(nodes, idx+1, classSet(ast.ClassEnsure, ast.ClassEnd))
			e := &ast.Else{Header: ast.NewHeader(ast.KindElse), Opening: stopTC, Children: elseChildren}
			setLocFromOpening(e, stopTC, elseChildren)
			elseNode = e
			idx = elseStop
		case ast.ClassEnsure:
			e, ensureStop := consumeEnsure(nodes, idx)
			ensureNode = e
			idx = ensureStop
		case ast.ClassEnd:
			end = buildEnd(stopTC)
			idx++
			break scanLoop
		default:
			break scanLoop
		}
	}

	node := &ast.Begin{Header: ast.NewHeader(ast.KindBegin), Opening: tc, Children: children, Rescues: rescues, Else: elseNode, Ensure: ensureNode, End: end}
	var extra []ast.Node
	for r := rescues; r != nil; r = r.Next {
		extra = append(extra, r)
	}
	if elseNode != nil {
		extra = append(extra, elseNode)
	}
	if ensureNode != nil {
		extra = append(extra, ensureNode)
	}
	if end != nil {
		extra = append(extra, end)
	}
	setLocFromOpening(node, tc, children, extra...)
	return node, idx
}

func consumeRescue(nodes []ast.Node, i int) (*ast.Rescue, int) {
	tc := nodes[i].(*ast.TemplateContent)
	children, stop := scanUntil(nodes, i+1, classSet(ast.ClassRescue, ast.ClassElse, ast.ClassEnsure, ast.ClassEnd))
	n := &ast.Rescue{Header: ast.NewHeader(ast.KindRescue), Opening: tc, Children: children}
	setLocFromOpening(n, tc, children)
	return n, stop
}

func consumeEnsure(nodes []ast.Node, i int) (*ast.Ensure, int) {
	tc := nodes[i].(*ast.TemplateContent)
	children, stop := scanUntil(nodes, i+1, classSet(ast.ClassEnd))
	n := &ast.Ensure{Header: ast.NewHeader(ast.KindEnsure), Opening: tc, Children: children}
	setLocFromOpening(n, tc, children)
	return n, stop
}

// ---- unless ----

func consumeUnless(nodes []ast.Node, i int) (ast.Node, int) {
	tc := nodes[i].(*ast.TemplateContent)
	children, stop := scanUntil(nodes, i+1, classSet(ast.ClassElse, ast.ClassEnd))

	var elseNode *ast.Else
	var end *ast.End
	next := stop

	if stop < len(nodes) {
		stopTC := nodes[stop].(*ast.TemplateContent)
		switch stopTC.Classification {
		case ast.ClassElse:
			e, elseStop := consumeElse(nodes, stop)
			elseNode = e
			if elseStop < len(nodes) {
				end = buildEnd(nodes[elseStop].(*ast.TemplateContent))
				next = elseStop + 1
			} else {
				next = elseStop
			}
		case ast.ClassEnd:
			end = buildEnd(stopTC)
			next = stop + 1
		}
	}

	node := &ast.Unless{Header: ast.NewHeader(ast.KindUnless), Opening: tc, Children: children, Else: elseNode, End: end}
	setLocFromOpening(node, tc, children, elseNode, end)
	return node, next
}

// ---- while / until ----

func consumeSimpleLoop(nodes []ast.Node, i int, kind ast.Kind) (ast.Node, int) {
	tc := nodes[i].(*ast.TemplateContent)
	children, stop := scanUntil(nodes, i+1, classSet(ast.ClassEnd))

	var end *ast.End
	next := stop
	if stop < len(nodes) {
		end = buildEnd(nodes[stop].(*ast.TemplateContent))
		next = stop + 1
	}

	var node ast.Node
	switch kind {
	case ast.KindWhile:
		node = &ast.While{Header: ast.NewHeader(ast.KindWhile), Opening: tc, Children: children, End: end}
	case ast.KindUntil:
		node = &ast.Until{Header: ast.NewHeader(ast.KindUntil), Opening: tc, Children: children, End: end}
	}
	setLocFromOpening(node, tc, children, end)
	return node, next
}

// ---- for ----

func consumeFor(nodes []ast.Node, i int) (ast.Node, int) {
	tc := nodes[i].(*ast.TemplateContent)
	children, stop := scanUntil(nodes, i+1, classSet(ast.ClassEnd))

	var end *ast.End
	next := stop
	if stop < len(nodes) {
		end = buildEnd(nodes[stop].(*ast.TemplateContent))
		next = stop + 1
	}

	node := &ast.For{Header: ast.NewHeader(ast.KindFor), Opening: tc, Children: children, End: end}
	if pe, ok := tc.ParsedExpr.(*rubyexpr.Node); ok {
		node.ValueVar, node.IndexVar, node.IterExpr = pe.ValueVar, pe.IndexVar, pe.IterExpr
	}
	setLocFromOpening(node, tc, children, end)
	return node, next
}

// ---- block ----

func consumeBlock(nodes []ast.Node, i int) (ast.Node, int) {
	tc := nodes[i].(*ast.TemplateContent)
	children, stop := scanUntil(nodes, i+1, classSet(ast.ClassEnd, ast.ClassBlockClose))

	var endNode ast.Node
	next := stop
	if stop < len(nodes) {
		stopTC := nodes[stop].(*ast.TemplateContent)
		switch stopTC.Classification {
		case ast.ClassEnd:
			endNode = buildEnd(stopTC)
		case ast.ClassBlockClose:
			bc := &ast.BlockClose{Header: ast.NewHeader(ast.KindBlockClose), Opening: stopTC}
			bc.SetLoc(stopTC.Loc())
			endNode = bc
		}
		next = stop + 1
	}

	node := &ast.Block{Header: ast.NewHeader(ast.KindBlock), Opening: tc, Children: children, End: endNode}
	setLocFromOpening(node, tc, children, endNode)
	return node, next
}
