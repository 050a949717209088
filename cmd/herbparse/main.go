// Command herbparse reads a templated-HTML file (or stdin) and prints its
// token stream, parsed AST as JSON, or an XML-ish dump, mirroring
// herb_lex/herb_parse's roles in the original C CLI.
package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/fatih/color"
	colorable "github.com/mattn/go-colorable"

	"github.com/gohtmx/herb"
	"github.com/gohtmx/herb/internal/ast"
	"github.com/gohtmx/herb/internal/token"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout))
}

func run(args []string, stdin io.Reader, stdout io.Writer) int {
	fs := flag.NewFlagSet("herbparse", flag.ContinueOnError)
	tokens := fs.Bool("tokens", false, "print the lexer's token stream instead of parsing")
	asJSON := fs.Bool("json", false, "print the parsed AST as JSON")
	asXML := fs.Bool("xml", false, "print the parsed AST as an XML-ish dump")
	trackWhitespace := fs.Bool("whitespace", false, "keep pure-whitespace literal nodes")
	showVersion := fs.Bool("version", false, "print the core and expression-parser versions")
	noColor := fs.Bool("no-color", false, "disable colorized -tokens output")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	if *noColor {
		color.NoColor = true
	}

	if *showVersion {
		core, exprVer := herb.Version()
		fmt.Fprintf(stdout, "herb %s (expr-lang/expr %s)\n", core, exprVer)
		return 0
	}

	source, err := readSource(fs.Args(), stdin)
	if err != nil {
		logger.Error("failed to read source", "error", err)
		return 1
	}

	switch {
	case *tokens:
		out := colorableWriter(stdout)
		for _, tok := range herb.Lex(source) {
			fmt.Fprintln(out, colorizeToken(tok))
		}
	case *asJSON:
		doc := herb.Parse(source, herb.Options{TrackWhitespace: *trackWhitespace})
		logDiagnostics(logger, doc)
		if err := herb.WriteJSON(stdout, doc); err != nil {
			logger.Error("failed to write JSON", "error", err)
			return 1
		}
	case *asXML:
		doc := herb.Parse(source, herb.Options{TrackWhitespace: *trackWhitespace})
		logDiagnostics(logger, doc)
		if err := herb.WriteXML(stdout, doc); err != nil {
			logger.Error("failed to write XML", "error", err)
			return 1
		}
	default:
		doc := herb.Parse(source, herb.Options{TrackWhitespace: *trackWhitespace})
		logDiagnostics(logger, doc)
		if err := herb.WriteJSON(stdout, doc); err != nil {
			logger.Error("failed to write JSON", "error", err)
			return 1
		}
	}

	return 0
}

func readSource(fileArgs []string, stdin io.Reader) ([]byte, error) {
	if len(fileArgs) == 0 {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(fileArgs[0])
}

// colorableWriter upgrades w to a colorable writer when it is the real
// stdout file (so ANSI codes render on Windows terminals too); a
// bytes.Buffer or pipe used in tests passes through unchanged.
func colorableWriter(w io.Writer) io.Writer {
	if f, ok := w.(*os.File); ok {
		return colorable.NewColorable(f)
	}
	return w
}

var (
	colorExpressionDelim = color.New(color.FgHiCyan).SprintFunc()
	colorExpressionBody  = color.New(color.FgHiMagenta).SprintFunc()
	colorHTMLStructure   = color.New(color.FgHiGreen).SprintFunc()
	colorIdentifier      = color.New(color.FgHiYellow).SprintFunc()
	colorError           = color.New(color.FgHiRed).SprintFunc()
)

// colorizeToken renders one token.Token the way the teacher's own CLI
// colors distinct node properties (bool/number/key/anchor, each its own
// color) - here keyed off the lexer's own token-kind groups instead of a
// YAML node's structural role.
func colorizeToken(tok token.Token) string {
	plain := tok.String()
	switch tok.Kind {
	case token.ExpressionOpen, token.ExpressionEnd:
		return colorExpressionDelim(plain)
	case token.ExpressionContent:
		return colorExpressionBody(plain)
	case token.HTMLTagStart, token.HTMLTagStartClose, token.HTMLTagEnd, token.HTMLTagSelfClose,
		token.HTMLDoctype, token.XMLDeclaration, token.XMLDeclarationEnd,
		token.HTMLCommentStart, token.HTMLCommentEnd, token.CDataStart, token.CDataEnd:
		return colorHTMLStructure(plain)
	case token.Identifier:
		return colorIdentifier(plain)
	case token.Error:
		return colorError(plain)
	default:
		return plain
	}
}

// logDiagnostics walks doc and logs every attached diagnostic - structural
// errors from the nearest node that has them, expression-syntax errors from
// the document's own top-level list.
func logDiagnostics(logger *slog.Logger, doc *ast.Document) {
	var walk func(ast.Node)
	walk = func(n ast.Node) {
		for _, d := range n.Errors() {
			logger.Warn("parse diagnostic", "kind", d.Kind, "message", d.Message,
				"line", d.Location.Start.Line, "col", d.Location.Start.Column)
		}
		for _, c := range ast.Children(n) {
			walk(c)
		}
		if el, ok := n.(*ast.Element); ok && el.Open != nil {
			walk(el.Open)
		}
	}
	walk(doc)
}
