package herb

import (
	"encoding/json"
	"io"
	"strconv"

	"github.com/beevik/etree"

	"github.com/gohtmx/herb/internal/ast"
)

// jsonNode is the plain, exported-field shape a Document's tree is
// flattened into before encoding/json walks it: ast.Header deliberately
// keeps kind/location/errors unexported (pattern-matching internals, not a
// public wire format), so this is the one place that shape gets projected
// into something JSON can see.
type jsonNode struct {
	Kind     string      `json:"kind"`
	Line     int         `json:"line"`
	Column   int         `json:"col"`
	Value    string      `json:"value,omitempty"`
	Errors   []string    `json:"errors,omitempty"`
	Children []*jsonNode `json:"children,omitempty"`
}

// WriteJSON encodes doc's tree as indented JSON.
func WriteJSON(w io.Writer, doc *ast.Document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(toJSONNode(doc))
}

func toJSONNode(n ast.Node) *jsonNode {
	loc := n.Loc()
	jn := &jsonNode{
		Kind:   n.Kind().String(),
		Line:   loc.Start.Line,
		Column: loc.Start.Column,
		Value:  nodeValue(n),
	}
	for _, e := range n.Errors() {
		jn.Errors = append(jn.Errors, e.Error())
	}
	for _, c := range ast.Children(n) {
		jn.Children = append(jn.Children, toJSONNode(c))
	}
	if el, ok := n.(*ast.Element); ok && el.Open != nil {
		jn.Children = append([]*jsonNode{toJSONNode(el.Open)}, jn.Children...)
	}
	return jn
}

func nodeValue(n ast.Node) string {
	switch v := n.(type) {
	case *ast.Literal:
		return v.Value
	case *ast.TemplateContent:
		return v.Content.Value
	case *ast.AttributeName:
		return v.Tok.Value
	case *ast.Whitespace:
		return v.Tok.Value
	default:
		return ""
	}
}

// WriteXML builds an etree.Document mirroring doc's tree - one
// etree.Element per node, carrying kind/line/col as attributes and Literal/
// TemplateContent text as element text - and writes it indented, mirroring
// the teacher's own use of beevik/etree as an output-tree representation.
func WriteXML(w io.Writer, doc *ast.Document) error {
	xdoc := etree.NewDocument()
	buildXMLElement(doc, xdoc.CreateElement)
	xdoc.Indent(2)
	_, err := xdoc.WriteTo(w)
	return err
}

// buildXMLElement appends one element (for n) via newChild, then recurses
// into n's children attached to that element, returning it.
func buildXMLElement(n ast.Node, newChild func(string) *etree.Element) *etree.Element {
	el := newChild(n.Kind().String())
	loc := n.Loc()
	el.CreateAttr("line", strconv.Itoa(loc.Start.Line))
	el.CreateAttr("col", strconv.Itoa(loc.Start.Column))
	if val := nodeValue(n); val != "" {
		el.SetText(val)
	}
	for i, e := range n.Errors() {
		errEl := el.CreateElement("error")
		errEl.CreateAttr("index", strconv.Itoa(i))
		errEl.SetText(e.Error())
	}

	childOf, ok := n.(*ast.Element)
	if ok && childOf.Open != nil {
		buildXMLElement(childOf.Open, el.CreateElement)
	}
	for _, c := range ast.Children(n) {
		buildXMLElement(c, el.CreateElement)
	}
	return el
}
