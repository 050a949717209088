package htmlparser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gohtmx/herb/internal/ast"
)

func TestParseSimpleElement(t *testing.T) {
	doc := Parse([]byte("<div>hi</div>"), Options{TrackWhitespace: true})
	require.Len(t, doc.Children, 1)

	el, ok := doc.Children[0].(*ast.Element)
	require.True(t, ok)
	assert.Equal(t, "div", ast.TagName(el.Open))
	assert.False(t, el.Void)
	require.NotNil(t, el.Close)
	require.Len(t, el.Body, 1)

	lit, ok := el.Body[0].(*ast.Literal)
	require.True(t, ok)
	assert.Equal(t, "hi", lit.Value)
	assert.Empty(t, ast.CollectErrors(doc))
}

func TestParseVoidElementNoClose(t *testing.T) {
	doc := Parse([]byte("<br>"), Options{})
	require.Len(t, doc.Children, 1)
	el := doc.Children[0].(*ast.Element)
	assert.True(t, el.Void)
	assert.Nil(t, el.Close)
	assert.Empty(t, el.Body)
}

func TestParseSelfClosingNonVoidTag(t *testing.T) {
	doc := Parse([]byte("<Foo/>"), Options{})
	el := doc.Children[0].(*ast.Element)
	assert.False(t, el.Void, "self-closing a non-void-set name should not mark it void")
	assert.True(t, el.Open.SelfClose)
}

func TestParseAttributesQuotedAndTemplate(t *testing.T) {
	doc := Parse([]byte(`<a href="<%= url %>" class='x'></a>`), Options{})
	el := doc.Children[0].(*ast.Element)

	var attrs []*ast.Attribute
	for _, c := range el.Open.Children {
		if a, ok := c.(*ast.Attribute); ok {
			attrs = append(attrs, a)
		}
	}
	require.Len(t, attrs, 2)

	href := attrs[0]
	assert.Equal(t, "href", href.Name.Tok.Value)
	require.Len(t, href.Value.Children, 1)
	_, isTemplate := href.Value.Children[0].(*ast.TemplateContent)
	assert.True(t, isTemplate)

	class := attrs[1]
	require.Len(t, class.Value.Children, 1)
	lit := class.Value.Children[0].(*ast.Literal)
	assert.Equal(t, "x", lit.Value)
}

func TestParseUnquotedAttributeValueNoError(t *testing.T) {
	doc := Parse([]byte(`<input value=42>`), Options{})
	el := doc.Children[0].(*ast.Element)
	attr := el.Open.Children[0].(*ast.Attribute)
	require.Len(t, attr.Value.Children, 1)
	lit := attr.Value.Children[0].(*ast.Literal)
	assert.Equal(t, "42", lit.Value)
	assert.Empty(t, ast.CollectErrors(doc))
}

func TestParseUnterminatedAttributeValueRecovers(t *testing.T) {
	doc := Parse([]byte(`<a href="never closed>`), Options{})
	el := doc.Children[0].(*ast.Element)
	attr := el.Open.Children[0].(*ast.Attribute)
	errs := attr.Value.Errors()
	require.Len(t, errs, 1)
	assert.Equal(t, ast.DiagUnterminatedAttributeValue, errs[0].Kind)
}

func TestParseMismatchedCloseTagRecovers(t *testing.T) {
	doc := Parse([]byte("<div><span></div></span>"), Options{})
	require.Len(t, doc.Children, 1)

	div := doc.Children[0].(*ast.Element)
	assert.Equal(t, "div", ast.TagName(div.Open))
	require.Len(t, div.Body, 1)

	span := div.Body[0].(*ast.Element)
	assert.Equal(t, "span", ast.TagName(span.Open))

	// The "</div>" inside <span> is a mismatch recorded on span (the
	// nearest enclosing element): it is consumed and dropped rather than
	// closing div, and span's body loop keeps scanning until it finds its
	// own matching "</span>". That leaves div, whose loop resumes at EOF,
	// missing its own close tag.
	spanErrs := span.Errors()
	require.Len(t, spanErrs, 1)
	assert.Equal(t, ast.DiagMismatchedCloseTag, spanErrs[0].Kind)
	require.NotNil(t, span.Close)

	divErrs := div.Errors()
	require.Len(t, divErrs, 1)
	assert.Equal(t, ast.DiagMissingCloseTag, divErrs[0].Kind)
	assert.Nil(t, div.Close)

	assert.Empty(t, doc.Errors())
}

func TestParseMissingCloseTagAtEOF(t *testing.T) {
	doc := Parse([]byte("<div>unterminated"), Options{})
	el := doc.Children[0].(*ast.Element)
	errs := el.Errors()
	require.Len(t, errs, 1)
	assert.Equal(t, ast.DiagMissingCloseTag, errs[0].Kind)
	assert.Nil(t, el.Close)
}

func TestParseStrayCloseTagAtTopLevel(t *testing.T) {
	doc := Parse([]byte("</div>"), Options{})
	assert.Empty(t, doc.Children)
	errs := doc.Errors()
	require.Len(t, errs, 1)
	assert.Equal(t, ast.DiagStrayCloseTag, errs[0].Kind)
}

func TestParseScriptForeignContentRaw(t *testing.T) {
	doc := Parse([]byte("<script>if (a < b) { x() }</script>"), Options{})
	el := doc.Children[0].(*ast.Element)
	require.Len(t, el.Body, 1)
	lit := el.Body[0].(*ast.Literal)
	assert.Equal(t, "if (a < b) { x() }", lit.Value)
}

func TestParseScriptForeignContentWithTemplateBlock(t *testing.T) {
	doc := Parse([]byte("<script>var x = <%= value %>;</script>"), Options{})
	el := doc.Children[0].(*ast.Element)
	require.Len(t, el.Body, 3)
	assert.Equal(t, "var x = ", el.Body[0].(*ast.Literal).Value)
	_, isTemplate := el.Body[1].(*ast.TemplateContent)
	assert.True(t, isTemplate)
	assert.Equal(t, ";", el.Body[2].(*ast.Literal).Value)
}

func TestParseDoctypeCommentCData(t *testing.T) {
	doc := Parse([]byte("<!DOCTYPE html><!-- hi --><![CDATA[raw]]>"), Options{})
	require.Len(t, doc.Children, 3)

	dt, ok := doc.Children[0].(*ast.Doctype)
	require.True(t, ok)
	assert.Equal(t, "<!DOCTYPE", dt.Open.Value)

	c, ok := doc.Children[1].(*ast.Comment)
	require.True(t, ok)
	require.Len(t, c.Children, 1)
	assert.Equal(t, " hi ", c.Children[0].(*ast.Literal).Value)

	cd, ok := doc.Children[2].(*ast.CData)
	require.True(t, ok)
	require.Len(t, cd.Children, 1)
	assert.Equal(t, "raw", cd.Children[0].(*ast.Literal).Value)
}

func TestParseWhitespaceSuppression(t *testing.T) {
	withWS := Parse([]byte("<p>a</p>\n\n<p>b</p>"), Options{TrackWhitespace: true})
	withoutWS := Parse([]byte("<p>a</p>\n\n<p>b</p>"), Options{TrackWhitespace: false})

	assert.Greater(t, len(withWS.Children), len(withoutWS.Children))
	for _, c := range withoutWS.Children {
		_, isWS := c.(*ast.Whitespace)
		assert.False(t, isWS, "pure-whitespace nodes outside attribute values must be suppressed")
	}
}

func TestParseTopLevelTemplateBlock(t *testing.T) {
	doc := Parse([]byte("<%= 1 + 1 %>"), Options{})
	require.Len(t, doc.Children, 1)
	tc := doc.Children[0].(*ast.TemplateContent)
	assert.Equal(t, "<%=", tc.TagOpening.Value)
	assert.Equal(t, " 1 + 1 ", tc.Content.Value)
	assert.Equal(t, "%>", tc.TagClosing.Value)
}

func TestParseEmptySource(t *testing.T) {
	doc := Parse([]byte(""), Options{})
	assert.Empty(t, doc.Children)
	assert.Empty(t, doc.Errors())
}

func TestParseLoneLessThanAtEOF(t *testing.T) {
	doc := Parse([]byte("<"), Options{})
	require.Len(t, doc.Children, 1)
	el := doc.Children[0].(*ast.Element)
	assert.Empty(t, el.Errors(), "a lone '<' at EOF must not produce an error")
}
