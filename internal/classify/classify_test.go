package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gohtmx/herb/internal/ast"
	"github.com/gohtmx/herb/internal/htmlparser"
	"github.com/gohtmx/herb/internal/rubyexpr"
)

func parse(t *testing.T, src string) *ast.Document {
	t.Helper()
	doc := htmlparser.Parse([]byte(src), htmlparser.Options{})
	Classify(doc)
	return doc
}

func templateContents(t *testing.T, nodes []ast.Node) []*ast.TemplateContent {
	t.Helper()
	var out []*ast.TemplateContent
	for _, n := range nodes {
		if tc, ok := n.(*ast.TemplateContent); ok {
			out = append(out, tc)
		}
	}
	return out
}

func TestClassifyIfElsifElseEnd(t *testing.T) {
	doc := parse(t, "<% if a %>x<% elsif b %>y<% else %>z<% end %>")
	blocks := templateContents(t, doc.Children)
	require.Len(t, blocks, 4)
	assert.Equal(t, ast.ClassIf, blocks[0].Classification)
	assert.Equal(t, ast.ClassElsif, blocks[1].Classification)
	assert.Equal(t, ast.ClassElse, blocks[2].Classification)
	assert.Equal(t, ast.ClassEnd, blocks[3].Classification)
}

func TestClassifyCaseWhenPromotesNothing(t *testing.T) {
	doc := parse(t, "<% case status %><% when :a %>x<% end %>")
	blocks := templateContents(t, doc.Children)
	require.Len(t, blocks, 3)
	assert.Equal(t, ast.ClassCase, blocks[0].Classification)
	assert.Equal(t, ast.ClassWhen, blocks[1].Classification)
}

func TestClassifyCaseInPromotesToCaseMatch(t *testing.T) {
	doc := parse(t, "<% case point %><% in [x, y] %>x<% end %>")
	blocks := templateContents(t, doc.Children)
	require.Len(t, blocks, 3)
	assert.Equal(t, ast.ClassCaseMatch, blocks[0].Classification, "case followed by an in-clause promotes to case/in")
	assert.Equal(t, ast.ClassIn, blocks[1].Classification)
}

func TestClassifyCaseLookaheadSkipsLiteralAndWhitespace(t *testing.T) {
	doc := parse(t, "<% case point %>\n  some text\n<% in [x, y] %>x<% end %>")
	blocks := templateContents(t, doc.Children)
	require.Len(t, blocks, 3)
	assert.Equal(t, ast.ClassCaseMatch, blocks[0].Classification)
}

func TestClassifyBeginRescueElseEnsureEnd(t *testing.T) {
	doc := parse(t, "<% begin %>a<% rescue => e %>b<% else %>c<% ensure %>d<% end %>")
	blocks := templateContents(t, doc.Children)
	require.Len(t, blocks, 5)
	assert.Equal(t, ast.ClassBegin, blocks[0].Classification)
	assert.Equal(t, ast.ClassRescue, blocks[1].Classification)
	assert.Equal(t, ast.ClassElse, blocks[2].Classification)
	assert.Equal(t, ast.ClassEnsure, blocks[3].Classification)
	assert.Equal(t, ast.ClassEnd, blocks[4].Classification)
}

func TestClassifyForLoop(t *testing.T) {
	doc := parse(t, "<% for item in items %>x<% end %>")
	blocks := templateContents(t, doc.Children)
	require.Len(t, blocks, 2)
	assert.Equal(t, ast.ClassFor, blocks[0].Classification)
	expr, ok := blocks[0].ParsedExpr.(*rubyexpr.Node)
	require.True(t, ok)
	assert.Equal(t, "item", expr.ValueVar)
	assert.Equal(t, "items", expr.IterExpr)
}

func TestClassifyYield(t *testing.T) {
	doc := parse(t, "<%= yield %>")
	blocks := templateContents(t, doc.Children)
	require.Len(t, blocks, 1)
	assert.Equal(t, ast.ClassYield, blocks[0].Classification)
}

func TestClassifySkippedCommentBlockIsUnknownAndNotParsed(t *testing.T) {
	doc := parse(t, "<%# a comment %>")
	blocks := templateContents(t, doc.Children)
	require.Len(t, blocks, 1)
	assert.Equal(t, ast.ClassUnknown, blocks[0].Classification)
	assert.False(t, blocks[0].Parsed)
}

func TestClassifySkippedEscapedLiteralIsUnknown(t *testing.T) {
	doc := parse(t, "<%% not a template %%>")
	blocks := templateContents(t, doc.Children)
	require.Len(t, blocks, 1)
	assert.Equal(t, ast.ClassUnknown, blocks[0].Classification)
}

func TestClassifyBareExpressionIsUnknown(t *testing.T) {
	doc := parse(t, "<%= user.name %>")
	blocks := templateContents(t, doc.Children)
	require.Len(t, blocks, 1)
	assert.Equal(t, ast.ClassUnknown, blocks[0].Classification)
	assert.True(t, blocks[0].Parsed)
}

func TestClassifyDescendsIntoAttributeValues(t *testing.T) {
	doc := parse(t, `<a href="<% if x %>y<% end %>"></a>`)
	el := doc.Children[0].(*ast.Element)
	var attr *ast.Attribute
	for _, c := range el.Open.Children {
		if a, ok := c.(*ast.Attribute); ok {
			attr = a
		}
	}
	require.NotNil(t, attr)
	blocks := templateContents(t, attr.Value.Children)
	require.Len(t, blocks, 2)
	assert.Equal(t, ast.ClassIf, blocks[0].Classification)
	assert.Equal(t, ast.ClassEnd, blocks[1].Classification)
}

func TestClassifyDescendsIntoNestedElements(t *testing.T) {
	doc := parse(t, "<div><% if x %><span><%= y %></span><% end %></div>")
	div := doc.Children[0].(*ast.Element)
	blocks := templateContents(t, div.Body)
	require.Len(t, blocks, 2)
	assert.Equal(t, ast.ClassIf, blocks[0].Classification)
	assert.Equal(t, ast.ClassEnd, blocks[1].Classification)
}
