package rewrite

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gohtmx/herb/internal/ast"
	"github.com/gohtmx/herb/internal/classify"
	"github.com/gohtmx/herb/internal/htmlparser"
)

func build(t *testing.T, src string) *ast.Document {
	t.Helper()
	doc := htmlparser.Parse([]byte(src), htmlparser.Options{})
	classify.Classify(doc)
	Rewrite(doc)
	return doc
}

func TestRewriteIfElsifElseEnd(t *testing.T) {
	doc := build(t, "<% if a %>x<% elsif b %>y<% else %>z<% end %>")
	require.Len(t, doc.Children, 1)

	ifNode, ok := doc.Children[0].(*ast.If)
	require.True(t, ok)
	require.Len(t, ifNode.Children, 1)
	assert.Equal(t, "x", ifNode.Children[0].(*ast.Literal).Value)

	elsif, ok := ifNode.Subsequent.(*ast.Elsif)
	require.True(t, ok)
	require.Len(t, elsif.Children, 1)
	assert.Equal(t, "y", elsif.Children[0].(*ast.Literal).Value)

	elseNode, ok := elsif.Subsequent.(*ast.Else)
	require.True(t, ok)
	require.Len(t, elseNode.Children, 1)
	assert.Equal(t, "z", elseNode.Children[0].(*ast.Literal).Value)

	require.NotNil(t, ifNode.End)
	require.NotNil(t, elsif.End)
	assert.Same(t, ifNode.End, elsif.End, "End is shared across the whole if/elsif chain")
}

func TestRewriteUnbalancedIfHasNilEnd(t *testing.T) {
	doc := build(t, "<% if a %>x")
	ifNode := doc.Children[0].(*ast.If)
	assert.Nil(t, ifNode.End)
	assert.Nil(t, ifNode.Subsequent)
	require.Len(t, ifNode.Children, 1)
}

func TestRewriteCaseWhenElseEnd(t *testing.T) {
	doc := build(t, "<% case status %><% when :a %>x<% when :b %>y<% else %>z<% end %>")
	c, ok := doc.Children[0].(*ast.Case)
	require.True(t, ok)
	require.Len(t, c.Whens, 2)
	assert.Equal(t, "x", c.Whens[0].Children[0].(*ast.Literal).Value)
	assert.Equal(t, "y", c.Whens[1].Children[0].(*ast.Literal).Value)
	require.NotNil(t, c.Else)
	assert.Equal(t, "z", c.Else.Children[0].(*ast.Literal).Value)
	require.NotNil(t, c.End)
}

func TestRewriteCaseMatchInEnd(t *testing.T) {
	doc := build(t, "<% case point %><% in [x, y] %>a<% in Integer %>b<% end %>")
	cm, ok := doc.Children[0].(*ast.CaseMatch)
	require.True(t, ok)
	require.Len(t, cm.Ins, 2)
	assert.Equal(t, "a", cm.Ins[0].Children[0].(*ast.Literal).Value)
	assert.Equal(t, "b", cm.Ins[1].Children[0].(*ast.Literal).Value)
	require.NotNil(t, cm.End)
}

func TestRewriteBeginRescueElseEnsureEnd(t *testing.T) {
	doc := build(t, "<% begin %>a<% rescue => e %>b<% rescue %>c<% else %>d<% ensure %>f<% end %>")
	beginNode, ok := doc.Children[0].(*ast.Begin)
	require.True(t, ok)
	require.NotNil(t, beginNode.Rescues)
	assert.Equal(t, "b", beginNode.Rescues.Children[0].(*ast.Literal).Value)
	require.NotNil(t, beginNode.Rescues.Next)
	assert.Equal(t, "c", beginNode.Rescues.Next.Children[0].(*ast.Literal).Value)
	assert.Nil(t, beginNode.Rescues.Next.Next)
	require.NotNil(t, beginNode.Else)
	assert.Equal(t, "d", beginNode.Else.Children[0].(*ast.Literal).Value)
	require.NotNil(t, beginNode.Ensure)
	assert.Equal(t, "f", beginNode.Ensure.Children[0].(*ast.Literal).Value)
	require.NotNil(t, beginNode.End)
}

func TestRewriteUnlessElseEnd(t *testing.T) {
	doc := build(t, "<% unless ok %>a<% else %>b<% end %>")
	u, ok := doc.Children[0].(*ast.Unless)
	require.True(t, ok)
	require.NotNil(t, u.Else)
	require.NotNil(t, u.End)
}

func TestRewriteWhileEnd(t *testing.T) {
	doc := build(t, "<% while cond %>a<% end %>")
	w, ok := doc.Children[0].(*ast.While)
	require.True(t, ok)
	require.Len(t, w.Children, 1)
	require.NotNil(t, w.End)
}

func TestRewriteUntilEnd(t *testing.T) {
	doc := build(t, "<% until cond %>a<% end %>")
	u, ok := doc.Children[0].(*ast.Until)
	require.True(t, ok)
	require.NotNil(t, u.End)
}

func TestRewriteForEndDecomposesHeader(t *testing.T) {
	doc := build(t, "<% for item in items %>a<% end %>")
	f, ok := doc.Children[0].(*ast.For)
	require.True(t, ok)
	assert.Equal(t, "item", f.ValueVar)
	assert.Equal(t, "", f.IndexVar)
	assert.Equal(t, "items", f.IterExpr)
	require.NotNil(t, f.End)
}

func TestRewriteBlockClosesOnEnd(t *testing.T) {
	doc := build(t, "<% items.each do |item| %>a<% end %>")
	b, ok := doc.Children[0].(*ast.Block)
	require.True(t, ok)
	_, isEnd := b.End.(*ast.End)
	assert.True(t, isEnd)
}

func TestRewriteBlockClosesOnBlockClose(t *testing.T) {
	doc := build(t, "<% items.each do |item| %>a<% } %>")
	b, ok := doc.Children[0].(*ast.Block)
	require.True(t, ok)
	_, isClose := b.End.(*ast.BlockClose)
	assert.True(t, isClose)
}

func TestRewriteYieldIsStandalone(t *testing.T) {
	doc := build(t, "<%= yield %>")
	_, ok := doc.Children[0].(*ast.Yield)
	assert.True(t, ok)
}

func TestRewriteIsIdempotent(t *testing.T) {
	doc := build(t, "<% if a %>x<% elsif b %>y<% else %>z<% end %>")
	before := len(doc.Children)
	Rewrite(doc)
	assert.Equal(t, before, len(doc.Children))
	ifNode, ok := doc.Children[0].(*ast.If)
	require.True(t, ok)
	require.Len(t, ifNode.Children, 1)
	assert.Equal(t, "x", ifNode.Children[0].(*ast.Literal).Value)
}

func TestRewriteNestedIfInsideElementBody(t *testing.T) {
	doc := build(t, "<div><% if x %><span>y</span><% end %></div>")
	div := doc.Children[0].(*ast.Element)
	require.Len(t, div.Body, 1)
	ifNode, ok := div.Body[0].(*ast.If)
	require.True(t, ok)
	require.Len(t, ifNode.Children, 1)
	span, ok := ifNode.Children[0].(*ast.Element)
	require.True(t, ok)
	assert.Equal(t, "span", ast.TagName(span.Open))
}

func TestRewriteNestedIfInsideAttributeValue(t *testing.T) {
	doc := build(t, `<a href="<% if x %>y<% end %>"></a>`)
	el := doc.Children[0].(*ast.Element)
	var attr *ast.Attribute
	for _, c := range el.Open.Children {
		if a, ok := c.(*ast.Attribute); ok {
			attr = a
		}
	}
	require.NotNil(t, attr)
	require.Len(t, attr.Value.Children, 1)
	_, ok := attr.Value.Children[0].(*ast.If)
	assert.True(t, ok)
}

func TestRewriteDeeplyNestedIf(t *testing.T) {
	doc := build(t, "<% if a %><% if b %>x<% end %><% end %>")
	outer, ok := doc.Children[0].(*ast.If)
	require.True(t, ok)
	require.Len(t, outer.Children, 1)
	inner, ok := outer.Children[0].(*ast.If)
	require.True(t, ok)
	require.Len(t, inner.Children, 1)
	assert.Equal(t, "x", inner.Children[0].(*ast.Literal).Value)
}
