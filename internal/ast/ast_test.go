package ast

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gohtmx/herb/internal/token"
)

func loc(sl, sc, el, ec int) token.Location {
	return token.Location{
		Start: token.Position{Line: sl, Column: sc},
		End:   token.Position{Line: el, Column: ec},
	}
}

func TestHeaderKindLocEmbedding(t *testing.T) {
	lit := NewLiteral(token.Token{Kind: token.Identifier, Value: "hi", Location: loc(1, 0, 1, 2)})
	assert.Equal(t, KindLiteral, lit.Kind())
	assert.Equal(t, loc(1, 0, 1, 2), lit.Loc())
	assert.Empty(t, lit.Errors())

	d := &Diagnostic{Kind: DiagUnexpectedToken, Message: "boom"}
	lit.AddError(d)
	require.Len(t, lit.Errors(), 1)
	assert.Same(t, d, lit.Errors()[0])
}

func TestChildSlotMutatesInPlace(t *testing.T) {
	doc := NewDocument()
	slot := ChildSlot(doc)
	require.NotNil(t, slot)

	lit := NewLiteral(token.Token{Value: "x"})
	*slot = append(*slot, lit)
	require.Len(t, doc.Children, 1)
	assert.Same(t, lit, doc.Children[0])

	el := &Element{Header: NewHeader(KindElement)}
	elSlot := ChildSlot(el)
	require.NotNil(t, elSlot)
	*elSlot = append(*elSlot, lit)
	assert.Len(t, el.Body, 1)

	// Kinds with no rewritable slot return nil.
	assert.Nil(t, ChildSlot(lit))
}

func TestChildrenAttributeIncludesNameAndValue(t *testing.T) {
	name := &AttributeName{Header: NewHeader(KindAttributeName), Tok: token.Token{Value: "class"}}
	val := &AttributeValue{Header: NewHeader(KindAttributeValue)}
	attr := &Attribute{Header: NewHeader(KindAttribute), Name: name, Value: val}

	kids := Children(attr)
	require.Len(t, kids, 2)
	assert.Same(t, Node(name), kids[0])
	assert.Same(t, Node(val), kids[1])
}

func TestChildrenAttributeWithoutValue(t *testing.T) {
	name := &AttributeName{Header: NewHeader(KindAttributeName), Tok: token.Token{Value: "disabled"}}
	attr := &Attribute{Header: NewHeader(KindAttribute), Name: name}

	kids := Children(attr)
	require.Len(t, kids, 1)
	assert.Same(t, Node(name), kids[0])
}

func TestCollectErrorsFindsErrorsNestedInAttributeValue(t *testing.T) {
	// A malformed template block nested inside a quoted attribute value
	// must still surface through CollectErrors on the owning Element.
	badBlock := &TemplateContent{Header: NewHeader(KindTemplateContent)}
	badBlock.AddError(&Diagnostic{Kind: DiagExpressionSyntax, Message: "unexpected end-of-input"})

	av := &AttributeValue{Header: NewHeader(KindAttributeValue), Children: []Node{badBlock}}
	name := &AttributeName{Header: NewHeader(KindAttributeName), Tok: token.Token{Value: "href"}}
	attr := &Attribute{Header: NewHeader(KindAttribute), Name: name, Value: av}

	open := &OpenTag{Header: NewHeader(KindOpenTag), Children: []Node{attr}}
	el := &Element{Header: NewHeader(KindElement), Open: open}

	errs := CollectErrors(el)
	require.Len(t, errs, 1)
	assert.Equal(t, "unexpected end-of-input", errs[0].Message)
}

func TestCollectErrorsDocumentOrder(t *testing.T) {
	doc := NewDocument()

	a := NewLiteral(token.Token{Value: "a"})
	a.AddError(&Diagnostic{Message: "first"})

	b := NewLiteral(token.Token{Value: "b"})
	b.AddError(&Diagnostic{Message: "second"})

	doc.Children = []Node{a, b}
	doc.AddError(&Diagnostic{Message: "third"})

	errs := CollectErrors(doc)
	require.Len(t, errs, 3)
	assert.Equal(t, "third", errs[0].Message, "document's own errors come first in a pre-order walk")
	assert.Equal(t, "first", errs[1].Message)
	assert.Equal(t, "second", errs[2].Message)
}

func TestRescueChainOfThree(t *testing.T) {
	r3 := &Rescue{Header: NewHeader(KindRescue)}
	r2 := &Rescue{Header: NewHeader(KindRescue), Next: r3}
	r1 := &Rescue{Header: NewHeader(KindRescue), Next: r2}
	begin := &Begin{Header: NewHeader(KindBegin), Rescues: r1}

	count := 0
	for r := begin.Rescues; r != nil; r = r.Next {
		count++
	}
	assert.Equal(t, 3, count)

	kids := Children(begin)
	require.Len(t, kids, 3)
	assert.Same(t, Node(r1), kids[0])
	assert.Same(t, Node(r2), kids[1])
	assert.Same(t, Node(r3), kids[2])
}

func TestIfElsifElseEndChildren(t *testing.T) {
	end := &End{Header: NewHeader(KindEnd)}
	els := &Else{Header: NewHeader(KindElse)}
	elsif := &Elsif{Header: NewHeader(KindElsif), Subsequent: els}
	iff := &If{Header: NewHeader(KindIf), Subsequent: elsif, End: end}

	kids := Children(iff)
	require.Len(t, kids, 2)
	assert.Same(t, Node(elsif), kids[0])
	assert.Same(t, Node(end), kids[1])

	elsifKids := Children(elsif)
	require.Len(t, elsifKids, 1)
	assert.Same(t, Node(els), elsifKids[0])
}

func TestTemplateContentIsSkip(t *testing.T) {
	cases := []struct {
		open string
		skip bool
	}{
		{"<%", false},
		{"<%=", false},
		{"<%-", false},
		{"<%==", false},
		{"<%#", true},
		{"<%%", true},
		{"<%%=", true},
	}
	for _, c := range cases {
		tc := NewTemplateContent(token.Token{Value: c.open}, token.Token{}, token.Token{})
		assert.Equal(t, c.skip, tc.IsSkip(), c.open)
	}
}

func TestLiteralIsWhitespace(t *testing.T) {
	assert.True(t, NewLiteral(token.Token{Value: "  \t\n"}).IsWhitespace())
	assert.False(t, NewLiteral(token.Token{Value: "  x\n"}).IsWhitespace())
}

func TestKindStringAndDiagnosticError(t *testing.T) {
	assert.Equal(t, "Element", KindElement.String())
	assert.Contains(t, KindElement.String(), "Element")
	assert.Equal(t, "Kind(9999)", Kind(9999).String())

	d := &Diagnostic{Message: "oops", Location: loc(2, 3, 2, 3)}
	assert.Contains(t, d.Error(), "oops")
}
