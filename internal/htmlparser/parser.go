// Package htmlparser implements the token-driven recursive-descent HTML
// parser (C5): it consumes the lexer's token stream, maintains an open-tag
// stack for close-tag matching, recognizes void elements and foreign
// content (script/style), and recovers from mismatched or missing close
// tags by attaching structured error nodes instead of aborting.
package htmlparser

import (
	"fmt"
	"strings"

	"golang.org/x/net/html/atom"

	"github.com/gohtmx/herb/internal/ast"
	"github.com/gohtmx/herb/internal/lexer"
	"github.com/gohtmx/herb/internal/token"
)

// Options controls parser behavior not implied by the grammar itself.
type Options struct {
	// TrackWhitespace, when false, suppresses pure-whitespace Literal/
	// Whitespace nodes outside of attribute values.
	TrackWhitespace bool
}

// Parser walks a pre-lexed token stream with one-token lookahead. The
// DATA/FOREIGN_CONTENT distinction the design calls out is expressed by
// which parse function is active (parseNormalBody vs parseForeignBody)
// rather than by an explicit state field, which is the idiomatic
// recursive-descent rendering of the same state machine.
type Parser struct {
	toks []token.Token
	idx  int
	cur  token.Token

	opts Options
	doc  *ast.Document

	// oe is the open-tag stack (section 12.2.4.2-style naming, kept from
	// the teacher's nodeStack): the name tokens of elements currently
	// being parsed, innermost last.
	oe []token.Token
}

// Parse lexes src and parses it into a Document per the grammar in §4.3.
func Parse(src []byte, opts Options) *ast.Document {
	p := &Parser{toks: lexer.Lex(src), opts: opts}
	if len(p.toks) > 0 {
		p.cur = p.toks[0]
	}
	return p.parseDocument()
}

func (p *Parser) advance() {
	if p.idx+1 < len(p.toks) {
		p.idx++
	}
	p.cur = p.toks[p.idx]
}

func (p *Parser) peek(n int) token.Token {
	i := p.idx + n
	if i >= len(p.toks) {
		i = len(p.toks) - 1
	}
	if i < 0 {
		i = 0
	}
	return p.toks[i]
}

// ---- top level ----

func (p *Parser) parseDocument() *ast.Document {
	doc := ast.NewDocument()
	p.doc = doc

	for p.cur.Kind != token.EOF {
		if p.cur.Kind == token.HTMLTagStartClose {
			ct := p.consumeCloseTagRaw()
			doc.AddError(strayCloseTagDiag(ct))
			continue
		}
		n := p.parseNode()
		if n != nil {
			doc.Children = append(doc.Children, n)
		}
	}

	if len(doc.Children) > 0 {
		doc.SetLoc(token.Location{
			Start: doc.Children[0].Loc().Start,
			End:   doc.Children[len(doc.Children)-1].Loc().End,
		})
	} else {
		doc.SetLoc(token.Location{Start: p.cur.Location.Start, End: p.cur.Location.End})
	}
	return doc
}

// parseNode parses one Document/element-body level node: comments,
// doctype, XML declaration, CDATA, template blocks, elements, and text.
func (p *Parser) parseNode() ast.Node {
	switch p.cur.Kind {
	case token.HTMLCommentStart:
		return p.parseSentinelBlock(ast.KindComment, token.HTMLCommentEnd)
	case token.HTMLDoctype:
		return p.parseSentinelBlock(ast.KindDoctype, token.HTMLTagEnd)
	case token.XMLDeclaration:
		return p.parseSentinelBlock(ast.KindXMLDecl, token.XMLDeclarationEnd)
	case token.CDataStart:
		return p.parseSentinelBlock(ast.KindCData, token.CDataEnd)
	case token.ExpressionOpen:
		return p.parseTemplateBlock()
	case token.HTMLTagStart:
		return p.parseElement()
	case token.HTMLTagStartClose:
		// Defensive: parseDocument/parseNormalBody intercept this case
		// themselves before delegating here, so in normal operation this
		// branch is unreachable; treat it as a stray close if ever hit.
		ct := p.consumeCloseTagRaw()
		p.doc.AddError(strayCloseTagDiag(ct))
		return nil
	case token.Whitespace, token.NBSP:
		w := ast.NewWhitespace(p.cur)
		p.advance()
		if !p.opts.TrackWhitespace {
			return nil
		}
		return w
	case token.Newline:
		w := ast.NewWhitespace(p.cur)
		p.advance()
		if !p.opts.TrackWhitespace {
			return nil
		}
		return w
	case token.EOF:
		return nil
	default:
		lit := p.consumeLiteralRun(isBodyTextBoundary)
		return lit
	}
}

func isBodyTextBoundary(k token.Kind) bool {
	switch k {
	case token.HTMLTagStart, token.HTMLTagStartClose, token.HTMLCommentStart,
		token.HTMLDoctype, token.XMLDeclaration, token.CDataStart,
		token.ExpressionOpen, token.Whitespace, token.Newline, token.NBSP,
		token.EOF:
		return true
	default:
		return false
	}
}

// ---- comments / doctype / cdata / xml declaration ----

// parseSentinelBlock consumes an opening sentinel already at p.cur,
// accumulates literal text (and embedded template blocks) until closeKind
// or EOF, and returns the matching AST node. Used for Comment, CData,
// XMLDecl, and Doctype, which all share this shape.
func (p *Parser) parseSentinelBlock(kind ast.Kind, closeKind token.Kind) ast.Node {
	open := p.cur
	p.advance()

	var children []ast.Node
	var buf []token.Token
	flush := func() {
		if len(buf) > 0 {
			children = append(children, literalFromTokens(buf))
			buf = nil
		}
	}

	for p.cur.Kind != closeKind && p.cur.Kind != token.EOF {
		if p.cur.Kind == token.ExpressionOpen {
			flush()
			children = append(children, p.parseTemplateBlock())
			continue
		}
		buf = append(buf, p.cur)
		p.advance()
	}
	flush()

	var closeTok token.Token
	if p.cur.Kind == closeKind {
		closeTok = p.cur
		p.advance()
	}

	end := open.Location.End
	if closeTok.Kind == closeKind {
		end = closeTok.Location.End
	} else if len(children) > 0 {
		end = children[len(children)-1].Loc().End
	}
	loc := token.Location{Start: open.Location.Start, End: end}

	switch kind {
	case ast.KindComment:
		n := &ast.Comment{Header: ast.NewHeader(kind), Open: open, Children: children, Close: closeTok}
		n.SetLoc(loc)
		return n
	case ast.KindCData:
		n := &ast.CData{Header: ast.NewHeader(kind), Open: open, Children: children, Close: closeTok}
		n.SetLoc(loc)
		return n
	case ast.KindXMLDecl:
		n := &ast.XMLDecl{Header: ast.NewHeader(kind), Open: open, Children: children, Close: closeTok}
		n.SetLoc(loc)
		return n
	case ast.KindDoctype:
		n := &ast.Doctype{Header: ast.NewHeader(kind), Open: open, Children: children, Close: closeTok}
		n.SetLoc(loc)
		return n
	default:
		panic(fmt.Sprintf("htmlparser: unsupported sentinel kind %v", kind))
	}
}

// ---- template blocks ----

func (p *Parser) parseTemplateBlock() *ast.TemplateContent {
	open := p.cur
	p.advance()

	var content token.Token
	if p.cur.Kind == token.ExpressionContent {
		content = p.cur
		p.advance()
	} else {
		content = token.Token{
			Kind:     token.ExpressionContent,
			Range:    token.Range{From: open.Range.To, To: open.Range.To},
			Location: token.Location{Start: open.Location.End, End: open.Location.End},
		}
	}

	var closeTok token.Token
	if p.cur.Kind == token.ExpressionEnd {
		closeTok = p.cur
		p.advance()
	} else {
		closeTok = token.Token{
			Kind:     token.ExpressionEnd,
			Range:    token.Range{From: content.Range.To, To: content.Range.To},
			Location: token.Location{Start: content.Location.End, End: content.Location.End},
		}
	}

	return ast.NewTemplateContent(open, content, closeTok)
}

// ---- elements ----

func (p *Parser) parseOpenTag() *ast.OpenTag {
	startPos := p.cur.Location.Start
	p.advance() // consume '<'

	var nameTok token.Token
	if p.cur.Kind == token.Identifier {
		nameTok = p.cur
		p.advance()
	}

	ot := &ast.OpenTag{Header: ast.NewHeader(ast.KindOpenTag), NameTok: nameTok}
	var children []ast.Node

	for {
		switch p.cur.Kind {
		case token.Whitespace, token.Newline, token.NBSP:
			if p.opts.TrackWhitespace {
				children = append(children, ast.NewWhitespace(p.cur))
			}
			p.advance()
		case token.Identifier:
			children = append(children, p.parseAttribute())
		case token.ExpressionOpen:
			children = append(children, p.parseTemplateBlock())
		case token.HTMLTagEnd:
			ot.EndTok = p.cur
			p.advance()
			ot.Children = children
			ot.SetLoc(token.Location{Start: startPos, End: ot.EndTok.Location.End})
			return ot
		case token.HTMLTagSelfClose:
			ot.EndTok = p.cur
			ot.SelfClose = true
			p.advance()
			ot.Children = children
			ot.SetLoc(token.Location{Start: startPos, End: ot.EndTok.Location.End})
			return ot
		case token.EOF:
			ot.Children = children
			end := startPos
			if nameTok.Kind != 0 {
				end = nameTok.Location.End
			}
			if len(children) > 0 {
				end = children[len(children)-1].Loc().End
			}
			ot.SetLoc(token.Location{Start: startPos, End: end})
			return ot
		default:
			ot.AddError(unexpectedTokenDiag("attribute, '>', or '/>'", p.cur))
			p.advance()
		}
	}
}

func (p *Parser) parseAttribute() *ast.Attribute {
	nameTok := p.cur
	p.advance()

	name := &ast.AttributeName{Header: ast.NewHeader(ast.KindAttributeName), Tok: nameTok}
	name.SetLoc(nameTok.Location)

	attr := &ast.Attribute{Header: ast.NewHeader(ast.KindAttribute), Name: name}
	end := nameTok.Location.End

	if p.cur.Kind == token.Equals {
		eq := p.cur
		attr.Equals = &eq
		end = eq.Location.End
		p.advance()

		val := p.parseAttributeValue()
		attr.Value = val
		end = val.Loc().End
	}

	attr.SetLoc(token.Location{Start: nameTok.Location.Start, End: end})
	return attr
}

func (p *Parser) parseAttributeValue() *ast.AttributeValue {
	av := &ast.AttributeValue{Header: ast.NewHeader(ast.KindAttributeValue)}

	if p.cur.Kind == token.Quote {
		quoteByte := p.cur.Value
		openQuote := p.cur
		av.OpenQuote = &openQuote
		startPos := openQuote.Location.Start
		p.advance()

		var children []ast.Node
		for {
			switch {
			case p.cur.Kind == token.Quote && p.cur.Value == quoteByte:
				closeQuote := p.cur
				av.CloseQuote = &closeQuote
				p.advance()
				av.Children = children
				av.SetLoc(token.Location{Start: startPos, End: closeQuote.Location.End})
				return av
			case p.cur.Kind == token.EOF || p.cur.Kind == token.HTMLTagEnd || p.cur.Kind == token.HTMLTagSelfClose:
				av.AddError(unterminatedAttrValueDiag(openQuote))
				av.Children = children
				end := startPos
				if len(children) > 0 {
					end = children[len(children)-1].Loc().End
				}
				av.SetLoc(token.Location{Start: startPos, End: end})
				return av
			case p.cur.Kind == token.ExpressionOpen:
				children = append(children, p.parseTemplateBlock())
			default:
				lit := p.consumeLiteralRun(func(k token.Kind) bool {
					return k == token.Quote || k == token.ExpressionOpen ||
						k == token.HTMLTagEnd || k == token.HTMLTagSelfClose || k == token.EOF
				})
				if lit != nil {
					children = append(children, lit)
				}
			}
		}
	}

	// Unquoted value: a single Literal child, no error (spec.md §9 open
	// question resolution).
	lit := p.consumeLiteralRun(func(k token.Kind) bool {
		return k == token.Whitespace || k == token.Newline || k == token.NBSP ||
			k == token.HTMLTagEnd || k == token.HTMLTagSelfClose ||
			k == token.EOF || k == token.ExpressionOpen
	})
	if lit == nil {
		p0 := p.cur.Location.Start
		av.SetLoc(token.Location{Start: p0, End: p0})
		return av
	}
	av.Children = []ast.Node{lit}
	av.SetLoc(lit.Loc())
	return av
}

func (p *Parser) parseElement() ast.Node {
	open := p.parseOpenTag()
	name := open.NameTok.Value
	el := &ast.Element{Header: ast.NewHeader(ast.KindElement), Open: open}

	if open.EndTok.Kind == 0 {
		// Ran out of input before the open tag itself ever closed (e.g. a
		// lone "<" at EOF); nothing more to parse.
		el.SetLoc(open.Loc())
		return el
	}

	if open.SelfClose {
		el.Void = isVoidElement(name)
		el.SetLoc(open.Loc())
		return el
	}
	if isVoidElement(name) {
		el.Void = true
		el.SetLoc(open.Loc())
		return el
	}
	if foreignKind, ok := foreignContentKind(name); ok {
		return p.parseForeignBody(el, name, foreignKind)
	}
	return p.parseNormalBody(el, name)
}

func (p *Parser) parseNormalBody(el *ast.Element, name string) ast.Node {
	p.oe = append(p.oe, el.Open.NameTok)
	var body []ast.Node

	for {
		switch p.cur.Kind {
		case token.EOF:
			p.oe = p.oe[:len(p.oe)-1]
			el.Body = body
			el.AddError(missingCloseTagDiag(el.Open.NameTok))
			end := el.Open.Loc().End
			if len(body) > 0 {
				end = body[len(body)-1].Loc().End
			}
			el.SetLoc(token.Location{Start: el.Open.Loc().Start, End: end})
			return el
		case token.HTMLTagStartClose:
			ct := p.consumeCloseTagRaw()
			if ct.NameTok.Value != "" && strings.EqualFold(ct.NameTok.Value, name) {
				p.oe = p.oe[:len(p.oe)-1]
				el.Body = body
				el.Close = ct
				el.SetLoc(token.Location{Start: el.Open.Loc().Start, End: ct.Loc().End})
				return el
			}
			// Mismatched: record the error on this element (the nearest
			// enclosing node) and keep scanning for our own close tag;
			// the stack is not popped and the stray tokens are dropped.
			el.AddError(mismatchedCloseTagDiag(name, ct, el.Open.NameTok))
		default:
			child := p.parseNode()
			if child != nil {
				body = append(body, child)
			}
		}
	}
}

// parseForeignBody accumulates raw content inside <script>/<style> as
// Literal text, still recognizing embedded template blocks, until the
// matching close tag (case-insensitive) is found.
func (p *Parser) parseForeignBody(el *ast.Element, name, _ string) ast.Node {
	p.oe = append(p.oe, el.Open.NameTok)
	var body []ast.Node
	var buf []token.Token
	flush := func() {
		if len(buf) > 0 {
			body = append(body, literalFromTokens(buf))
			buf = nil
		}
	}

	for {
		switch {
		case p.cur.Kind == token.EOF:
			flush()
			p.oe = p.oe[:len(p.oe)-1]
			el.Body = body
			el.AddError(missingCloseTagDiag(el.Open.NameTok))
			end := el.Open.Loc().End
			if len(body) > 0 {
				end = body[len(body)-1].Loc().End
			}
			el.SetLoc(token.Location{Start: el.Open.Loc().Start, End: end})
			return el
		case p.cur.Kind == token.HTMLTagStartClose && p.peek(1).Kind == token.Identifier && strings.EqualFold(p.peek(1).Value, name):
			flush()
			ct := p.consumeCloseTagRaw()
			p.oe = p.oe[:len(p.oe)-1]
			el.Body = body
			el.Close = ct
			el.SetLoc(token.Location{Start: el.Open.Loc().Start, End: ct.Loc().End})
			return el
		case p.cur.Kind == token.ExpressionOpen:
			flush()
			body = append(body, p.parseTemplateBlock())
		default:
			buf = append(buf, p.cur)
			p.advance()
		}
	}
}

// consumeCloseTagRaw consumes "</ IDENT? WS* '>'?" starting at the current
// HTML_TAG_START_CLOSE token, tolerating a missing identifier or missing
// '>' (both recorded by the caller as appropriate, not here).
func (p *Parser) consumeCloseTagRaw() *ast.CloseTag {
	startPos := p.cur.Location.Start
	p.advance() // consume '</'

	var nameTok token.Token
	if p.cur.Kind == token.Identifier {
		nameTok = p.cur
		p.advance()
	}
	for p.cur.Kind == token.Whitespace || p.cur.Kind == token.Newline || p.cur.Kind == token.NBSP {
		p.advance()
	}
	var endTok token.Token
	if p.cur.Kind == token.HTMLTagEnd {
		endTok = p.cur
		p.advance()
	}

	ct := &ast.CloseTag{Header: ast.NewHeader(ast.KindCloseTag), NameTok: nameTok}
	end := startPos
	if endTok.Kind != 0 {
		end = endTok.Location.End
	} else if nameTok.Kind != 0 {
		end = nameTok.Location.End
	}
	ct.SetLoc(token.Location{Start: startPos, End: end})
	return ct
}

func (p *Parser) consumeLiteralRun(stop func(token.Kind) bool) *ast.Literal {
	var buf []token.Token
	for !stop(p.cur.Kind) {
		buf = append(buf, p.cur)
		p.advance()
	}
	if len(buf) == 0 {
		return nil
	}
	return literalFromTokens(buf)
}

func literalFromTokens(toks []token.Token) *ast.Literal {
	var sb strings.Builder
	for _, t := range toks {
		sb.WriteString(t.Value)
	}
	lit := &ast.Literal{Header: ast.NewHeader(ast.KindLiteral), Value: sb.String()}
	lit.SetLoc(token.Location{Start: toks[0].Location.Start, End: toks[len(toks)-1].Location.End})
	return lit
}

// ---- void elements / foreign content, via golang.org/x/net/html/atom ----

var voidAtoms = map[atom.Atom]bool{
	atom.Area: true, atom.Base: true, atom.Br: true, atom.Col: true,
	atom.Embed: true, atom.Hr: true, atom.Img: true, atom.Input: true,
	atom.Link: true, atom.Meta: true, atom.Param: true, atom.Source: true,
	atom.Track: true, atom.Wbr: true,
}

func isVoidElement(name string) bool {
	a := atom.Lookup([]byte(strings.ToLower(name)))
	if a == 0 {
		return false
	}
	return voidAtoms[a]
}

func foreignContentKind(name string) (string, bool) {
	switch atom.Lookup([]byte(strings.ToLower(name))) {
	case atom.Script:
		return "SCRIPT", true
	case atom.Style:
		return "STYLE", true
	default:
		return "", false
	}
}

// ---- diagnostics ----

func unexpectedTokenDiag(expected string, actual token.Token) *ast.Diagnostic {
	return &ast.Diagnostic{
		Kind:     ast.DiagUnexpectedToken,
		Message:  fmt.Sprintf("expected %s, got %s", expected, actual.Kind),
		Expected: expected,
		Actual:   actual.Kind.String(),
		Location: actual.Location,
	}
}

func missingCloseTagDiag(nameTok token.Token) *ast.Diagnostic {
	return &ast.Diagnostic{
		Kind:     ast.DiagMissingCloseTag,
		Message:  fmt.Sprintf("expected element %q to have a close tag", nameTok.Value),
		Expected: nameTok.Value,
		Location: nameTok.Location,
	}
}

func mismatchedCloseTagDiag(expected string, ct *ast.CloseTag, openNameTok token.Token) *ast.Diagnostic {
	return &ast.Diagnostic{
		Kind:     ast.DiagMismatchedCloseTag,
		Message:  fmt.Sprintf("mismatched closing tag: expected %q, got %q", expected, ct.NameTok.Value),
		Expected: expected,
		Actual:   ct.NameTok.Value,
		Location: openNameTok.Location,
	}
}

func strayCloseTagDiag(ct *ast.CloseTag) *ast.Diagnostic {
	return &ast.Diagnostic{
		Kind:     ast.DiagStrayCloseTag,
		Message:  fmt.Sprintf("closing tag %q has no matching open tag", ct.NameTok.Value),
		Actual:   ct.NameTok.Value,
		Location: ct.Loc(),
	}
}

func unterminatedAttrValueDiag(openQuote token.Token) *ast.Diagnostic {
	return &ast.Diagnostic{
		Kind:     ast.DiagUnterminatedAttributeValue,
		Message:  "unterminated attribute value",
		Location: openQuote.Location,
	}
}
