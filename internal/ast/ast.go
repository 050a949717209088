// Package ast defines the tagged-sum AST node model: every node carries a
// shared header (kind, location, errors) and pattern-matches on Kind rather
// than using virtual dispatch, per the design notes. Interior child lists
// that the control-structure rewriter (C7) can replace are exposed through
// ChildSlot so that component can stay generic over "any parent with a
// rewritable ordered child list".
package ast

import (
	"fmt"

	"github.com/gohtmx/herb/internal/token"
)

// Kind tags the concrete type of an AST node.
type Kind int

const (
	_ Kind = iota

	KindDocument
	KindLiteral
	KindDoctype
	KindComment
	KindCData
	KindXMLDecl

	KindElement
	KindOpenTag
	KindCloseTag
	KindAttribute
	KindAttributeName
	KindAttributeValue
	KindWhitespace

	KindTemplateContent

	KindIf
	KindElsif
	KindElse
	KindEnd
	KindCase
	KindCaseMatch
	KindWhen
	KindIn
	KindBegin
	KindRescue
	KindEnsure
	KindUnless
	KindWhile
	KindUntil
	KindFor
	KindBlock
	KindBlockClose
	KindYield

	KindDiagnostic
)

func (k Kind) String() string {
	names := [...]string{
		"", "Document", "Literal", "Doctype", "Comment", "CData", "XMLDecl",
		"Element", "OpenTag", "CloseTag", "Attribute", "AttributeName",
		"AttributeValue", "Whitespace", "TemplateContent",
		"If", "Elsif", "Else", "End", "Case", "CaseMatch", "When", "In",
		"Begin", "Rescue", "Ensure", "Unless", "While", "Until", "For",
		"Block", "BlockClose", "Yield", "Diagnostic",
	}
	if int(k) >= 0 && int(k) < len(names) {
		return names[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Node is implemented by every AST node via the embedded Header.
type Node interface {
	Kind() Kind
	Loc() token.Location
	SetLoc(token.Location)
	Errors() []*Diagnostic
	AddError(*Diagnostic)
}

// Header is embedded by every concrete node type and supplies the shared
// {kind, location, errors} fields invariant 1-4 in spec.md §3 describe.
type Header struct {
	kind Kind
	loc  token.Location
	errs []*Diagnostic
}

func NewHeader(k Kind) Header { return Header{kind: k} }

func (h *Header) Kind() Kind               { return h.kind }
func (h *Header) Loc() token.Location       { return h.loc }
func (h *Header) SetLoc(l token.Location)   { h.loc = l }
func (h *Header) Errors() []*Diagnostic     { return h.errs }
func (h *Header) AddError(d *Diagnostic)    { h.errs = append(h.errs, d) }

// ExtendEnd grows h's location so it ends no earlier than end, enforcing
// invariant 2 (a parent's location spans all of its children's locations)
// as nodes accumulate children.
func (h *Header) ExtendEnd(end token.Position) {
	if h.loc.End.Less(end) {
		h.loc.End = end
	}
}

// DiagnosticKind classifies error nodes per spec.md §7.
type DiagnosticKind int

const (
	DiagUnexpectedToken DiagnosticKind = iota
	DiagMissingCloseTag
	DiagMismatchedCloseTag
	DiagStrayCloseTag
	DiagUnterminatedAttributeValue
	DiagExpressionSyntax
)

// Diagnostic is a structural or expression-syntax error attached to the
// nearest enclosing node's error list (structural) or the document's
// top-level error list (expression-syntax, from C8).
type Diagnostic struct {
	Kind     DiagnosticKind
	Message  string
	Expected string
	Actual   string
	Location token.Location
}

func (d *Diagnostic) Error() string {
	return fmt.Sprintf("%s at %s", d.Message, d.Location.Start)
}

// ---- Document ----

type Document struct {
	Header
	Children []Node
	// The document's own Errors() hold the structural errors whose nearest
	// enclosing node is the document itself (a stray close tag at top
	// level) and, after C8 runs, expression-syntax errors. Structural
	// errors found inside an element stay on that element's node; this is
	// the document-level list spec.md §3 calls "parse-error list".
}

func NewDocument() *Document {
	return &Document{Header: NewHeader(KindDocument)}
}

// ---- Literal / text content ----

type Literal struct {
	Header
	Value string
}

func NewLiteral(tok token.Token) *Literal {
	l := &Literal{Header: NewHeader(KindLiteral), Value: tok.Value}
	l.SetLoc(tok.Location)
	return l
}

// IsWhitespace reports whether this literal contains only whitespace.
func (l *Literal) IsWhitespace() bool {
	for _, r := range l.Value {
		switch r {
		case ' ', '\t', '\n', '\r', '\f', '\v', ' ':
			continue
		default:
			return false
		}
	}
	return true
}

// ---- Doctype / Comment / CData / XMLDecl ----

type Doctype struct {
	Header
	Open     token.Token
	Children []Node
	Close    token.Token
}

type Comment struct {
	Header
	Open     token.Token
	Children []Node
	Close    token.Token
}

type CData struct {
	Header
	Open     token.Token
	Children []Node
	Close    token.Token
}

type XMLDecl struct {
	Header
	Open     token.Token
	Children []Node
	Close    token.Token
}

// ---- HTML elements ----

type AttributeName struct {
	Header
	Tok token.Token
}

type AttributeValue struct {
	Header
	OpenQuote  *token.Token
	Children   []Node
	CloseQuote *token.Token
}

type Attribute struct {
	Header
	Name   *AttributeName
	Equals *token.Token
	Value  *AttributeValue
}

type Whitespace struct {
	Header
	Tok token.Token
}

func NewWhitespace(tok token.Token) *Whitespace {
	w := &Whitespace{Header: NewHeader(KindWhitespace), Tok: tok}
	w.SetLoc(tok.Location)
	return w
}

// OpenTag holds the tag-name token, its ordered children (whitespace,
// attributes, and embedded template blocks), and the tag-end token.
type OpenTag struct {
	Header
	NameTok   token.Token
	Children  []Node
	EndTok    token.Token
	SelfClose bool
}

type CloseTag struct {
	Header
	NameTok token.Token
}

// Element is a tag pair (or a void element with no close tag).
type Element struct {
	Header
	Open  *OpenTag
	Body  []Node
	Close *CloseTag
	Void  bool
}

func TagName(t *OpenTag) string { return t.NameTok.Value }

// ---- Template content (raw, pre-classified) ----

// Classification is the control-structure category a TemplateContent node
// is assigned by the classifier (C6).
type Classification int

const (
	ClassUnknown Classification = iota
	ClassIf
	ClassElsif
	ClassElse
	ClassEnd
	ClassCase
	ClassCaseMatch
	ClassWhen
	ClassIn
	ClassBegin
	ClassRescue
	ClassEnsure
	ClassUnless
	ClassWhile
	ClassUntil
	ClassFor
	ClassBlock
	ClassBlockClose
	ClassYield
)

func (c Classification) String() string {
	names := [...]string{
		"UNKNOWN", "IF", "ELSIF", "ELSE", "END", "CASE", "CASE_MATCH",
		"WHEN", "IN", "BEGIN", "RESCUE", "ENSURE", "UNLESS", "WHILE",
		"UNTIL", "FOR", "BLOCK", "BLOCK_CLOSE", "YIELD",
	}
	if int(c) >= 0 && int(c) < len(names) {
		return names[c]
	}
	return fmt.Sprintf("Classification(%d)", int(c))
}

// TemplateContent is a `<% ... %>` span, opaque to the HTML parser until
// the classifier (C6) fills in Parsed/Valid/Classification/ParsedExpr.
type TemplateContent struct {
	Header
	TagOpening token.Token
	Content    token.Token
	TagClosing token.Token

	Parsed         bool
	Valid          bool
	Classification Classification
	// ParsedExpr holds the handle returned by the external expression
	// parser (an *rubyexpr.Node); left untyped here so this package does
	// not need to import the classifier's expression-parser adapter.
	ParsedExpr any
}

func NewTemplateContent(open, content, closeTok token.Token) *TemplateContent {
	tc := &TemplateContent{
		Header:     NewHeader(KindTemplateContent),
		TagOpening: open,
		Content:    content,
		TagClosing: closeTok,
	}
	tc.SetLoc(token.Location{Start: open.Location.Start, End: closeTok.Location.End})
	return tc
}

// IsSkip reports whether the block's opening delimiter marks it as a
// comment or escaped/literal block that the classifier never parses.
func (tc *TemplateContent) IsSkip() bool {
	switch tc.TagOpening.Value {
	case "<%#", "<%%", "<%%=":
		return true
	default:
		return false
	}
}

// ---- Control-structure nodes (produced by C7) ----

type End struct {
	Header
	Opening *TemplateContent
}

type Else struct {
	Header
	Opening  *TemplateContent
	Children []Node
}

type If struct {
	Header
	Opening    *TemplateContent
	Children   []Node
	Subsequent Node // *Elsif, *Else, or nil
	End        *End
}

type Elsif struct {
	Header
	Opening    *TemplateContent
	Children   []Node
	Subsequent Node // *Elsif, *Else, or nil
	End        *End
}

type When struct {
	Header
	Opening  *TemplateContent
	Children []Node
}

type In struct {
	Header
	Opening  *TemplateContent
	Children []Node
}

type Case struct {
	Header
	Opening         *TemplateContent
	PreWhenChildren []Node
	Whens           []*When
	Else            *Else
	End             *End
}

type CaseMatch struct {
	Header
	Opening         *TemplateContent
	PreWhenChildren []Node
	Ins             []*In
	Else            *Else
	End             *End
}

type Ensure struct {
	Header
	Opening  *TemplateContent
	Children []Node
}

// Rescue forms a right-leaning singly-linked list: Next is the following
// `<% rescue %>` clause, if any. The chain is terminated by the enclosing
// Begin's optional Else/Ensure, never by a back-reference.
type Rescue struct {
	Header
	Opening  *TemplateContent
	Children []Node
	Next     *Rescue
}

type Begin struct {
	Header
	Opening  *TemplateContent
	Children []Node
	Rescues  *Rescue // head of the Rescue chain, nil if none
	Else     *Else
	Ensure   *Ensure
	End      *End
}

type Unless struct {
	Header
	Opening  *TemplateContent
	Children []Node
	Else     *Else
	End      *End
}

type While struct {
	Header
	Opening  *TemplateContent
	Children []Node
	End      *End
}

type Until struct {
	Header
	Opening  *TemplateContent
	Children []Node
	End      *End
}

type For struct {
	Header
	Opening  *TemplateContent
	Children []Node
	End      *End

	// ValueVar/IndexVar/IterExpr are the decomposed `for v, i in expr`
	// header, filled in by the classifier alongside Classification.
	ValueVar string
	IndexVar string
	IterExpr string
}

type BlockClose struct {
	Header
	Opening *TemplateContent
}

// Block owns an opener like `<% items.each do |item| %>` and closes on
// either an End or a BlockClose marker (bare `}`).
type Block struct {
	Header
	Opening  *TemplateContent
	Children []Node
	End      Node // *End, *BlockClose, or nil if unterminated
}

type Yield struct {
	Header
	Opening *TemplateContent
}

// ---- Generic child-list access (design note: "a small helper that
// borrows a mutable slot of type 'ordered list of child nodes'") ----

// ChildSlot returns a pointer to the mutable, rewritable child-list slot
// of n: document children, element body, open-tag children, or
// attribute-value children. Returns nil for node kinds with no such slot.
func ChildSlot(n Node) *[]Node {
	switch v := n.(type) {
	case *Document:
		return &v.Children
	case *Element:
		return &v.Body
	case *OpenTag:
		return &v.Children
	case *AttributeValue:
		return &v.Children
	default:
		return nil
	}
}

// Children returns the read-only ordered child nodes of n, for any kind
// that owns one or more child lists (used by generic tree walks: error
// collection, printers, JSON/XML serialization).
func Children(n Node) []Node {
	switch v := n.(type) {
	case *Document:
		return v.Children
	case *Doctype:
		return v.Children
	case *Comment:
		return v.Children
	case *CData:
		return v.Children
	case *XMLDecl:
		return v.Children
	case *Element:
		return v.Body
	case *OpenTag:
		return v.Children
	case *AttributeValue:
		return v.Children
	case *Attribute:
		var out []Node
		if v.Name != nil {
			out = append(out, v.Name)
		}
		if v.Value != nil {
			out = append(out, v.Value)
		}
		return out
	case *If:
		out := append([]Node{}, v.Children...)
		if v.Subsequent != nil {
			out = append(out, v.Subsequent)
		}
		if v.End != nil {
			out = append(out, v.End)
		}
		return out
	case *Elsif:
		out := append([]Node{}, v.Children...)
		if v.Subsequent != nil {
			out = append(out, v.Subsequent)
		}
		if v.End != nil {
			out = append(out, v.End)
		}
		return out
	case *Else:
		return v.Children
	case *Case:
		out := append([]Node{}, v.PreWhenChildren...)
		for _, w := range v.Whens {
			out = append(out, w)
		}
		if v.Else != nil {
			out = append(out, v.Else)
		}
		if v.End != nil {
			out = append(out, v.End)
		}
		return out
	case *CaseMatch:
		out := append([]Node{}, v.PreWhenChildren...)
		for _, in := range v.Ins {
			out = append(out, in)
		}
		if v.Else != nil {
			out = append(out, v.Else)
		}
		if v.End != nil {
			out = append(out, v.End)
		}
		return out
	case *When:
		return v.Children
	case *In:
		return v.Children
	case *Begin:
		out := append([]Node{}, v.Children...)
		for r := v.Rescues; r != nil; r = r.Next {
			out = append(out, r)
		}
		if v.Else != nil {
			out = append(out, v.Else)
		}
		if v.Ensure != nil {
			out = append(out, v.Ensure)
		}
		if v.End != nil {
			out = append(out, v.End)
		}
		return out
	case *Rescue:
		return v.Children
	case *Ensure:
		return v.Children
	case *Unless:
		out := append([]Node{}, v.Children...)
		if v.Else != nil {
			out = append(out, v.Else)
		}
		if v.End != nil {
			out = append(out, v.End)
		}
		return out
	case *While:
		out := append([]Node{}, v.Children...)
		if v.End != nil {
			out = append(out, v.End)
		}
		return out
	case *Until:
		out := append([]Node{}, v.Children...)
		if v.End != nil {
			out = append(out, v.End)
		}
		return out
	case *For:
		out := append([]Node{}, v.Children...)
		if v.End != nil {
			out = append(out, v.End)
		}
		return out
	case *Block:
		out := append([]Node{}, v.Children...)
		if v.End != nil {
			out = append(out, v.End)
		}
		return out
	default:
		return nil
	}
}

// CollectErrors walks the tree rooted at n in document order and appends
// every node's errors, in order of discovery (§5 ordering guarantee).
func CollectErrors(n Node) []*Diagnostic {
	var out []*Diagnostic
	var walk func(Node)
	walk = func(n Node) {
		if n == nil {
			return
		}
		out = append(out, n.Errors()...)
		if el, ok := n.(*Element); ok && el.Open != nil {
			walk(el.Open)
		}
		for _, c := range Children(n) {
			walk(c)
		}
	}
	walk(n)
	return out
}
