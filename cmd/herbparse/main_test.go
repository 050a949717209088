package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunTokensPrintsTokenStream(t *testing.T) {
	var out bytes.Buffer
	code := run([]string{"-tokens"}, strings.NewReader("<%= x %>"), &out)
	require.Equal(t, 0, code)
	assert.NotEmpty(t, out.String())
}

func TestRunDefaultPrintsJSON(t *testing.T) {
	var out bytes.Buffer
	code := run(nil, strings.NewReader("<div>hi</div>"), &out)
	require.Equal(t, 0, code)
	assert.Contains(t, out.String(), `"kind"`)
}

func TestRunXMLFlagPrintsXML(t *testing.T) {
	var out bytes.Buffer
	code := run([]string{"-xml"}, strings.NewReader("<div>hi</div>"), &out)
	require.Equal(t, 0, code)
	assert.Contains(t, out.String(), "<Document")
}

func TestRunTokensNoColorFlagStripsEscapeCodes(t *testing.T) {
	var out bytes.Buffer
	code := run([]string{"-tokens", "-no-color"}, strings.NewReader("<%= x %>"), &out)
	require.Equal(t, 0, code)
	assert.NotContains(t, out.String(), "\x1b[")
}

func TestRunVersionFlag(t *testing.T) {
	var out bytes.Buffer
	code := run([]string{"-version"}, strings.NewReader(""), &out)
	require.Equal(t, 0, code)
	assert.Contains(t, out.String(), "herb")
}
