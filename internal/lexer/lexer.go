// Package lexer implements the three-state (DATA, EXPRESSION_CONTENT,
// EXPRESSION_CLOSE) token scanner described in the design: a single forward
// pass over the source that disambiguates HTML punctuation, template
// delimiters, doctype/CDATA/comment sentinels, and UTF-8 multibyte
// characters via bounded-lookahead peeking, with a stall detector bounding
// buggy-lookahead catastrophes.
package lexer

import (
	"github.com/gohtmx/herb/internal/cursor"
	"github.com/gohtmx/herb/internal/token"
)

// State is one of the lexer's three states.
type State int

const (
	StateData State = iota
	StateExpressionContent
	StateExpressionClose
)

const maxStalls = 5

// expressionOpenVariants lists EXPRESSION_OPEN delimiters, longest first so
// that the lexer always takes the longest match (e.g. "<%==" before "<%").
var expressionOpenVariants = []string{"<%==", "<%%=", "<%#", "<%%", "<%-", "<%=", "<%"}

// expressionEndVariants lists EXPRESSION_END delimiters, longest first.
var expressionEndVariants = []string{"%%>", "=%>", "-%>", "%>"}

// Lexer scans source bytes into a stream of Tokens.
type Lexer struct {
	cur   *cursor.Cursor
	state State

	// pending* record the matched EXPRESSION_END variant detected while
	// scanning EXPRESSION_CONTENT, consumed verbatim by the following
	// EXPRESSION_CLOSE scan.
	pendingEndKind token.Kind
	pendingEndLen  int

	stallCount int
	stalled    bool
	errEmitted bool
}

// New returns a Lexer over src, starting in the DATA state.
func New(src []byte) *Lexer {
	return &Lexer{cur: cursor.New(src), state: StateData}
}

// State returns the lexer's current state, primarily for tests.
func (l *Lexer) State() State { return l.state }

// setState is exposed for tests that need to simulate an unreachable state
// to exercise the stall detector's safety net.
func (l *Lexer) setState(s State) { l.state = s }

// Lex tokenizes src in one pass and returns every token up to and
// including the terminating EOF.
func Lex(src []byte) []token.Token {
	l := New(src)
	var out []token.Token
	for {
		tok := l.NextToken()
		out = append(out, tok)
		if tok.Kind == token.EOF {
			return out
		}
	}
}

// NextToken returns the next token in the stream. Once the lexer has
// stalled (§4.2), it returns a single ERROR token followed by an unending
// stream of EOF tokens.
func (l *Lexer) NextToken() token.Token {
	if l.stalled {
		if !l.errEmitted {
			l.errEmitted = true
			return l.zeroToken(token.Error)
		}
		return l.eofToken()
	}

	startByte := l.cur.Pos()
	tok := l.scan()

	if tok.Kind != token.EOF && l.cur.Pos() == startByte {
		l.stallCount++
		if l.stallCount >= maxStalls {
			l.stalled = true
			l.errEmitted = true
			return l.zeroToken(token.Error)
		}
	} else {
		l.stallCount = 0
	}
	return tok
}

func (l *Lexer) scan() token.Token {
	switch l.state {
	case StateExpressionContent:
		return l.scanExpressionContent()
	case StateExpressionClose:
		return l.scanExpressionClose()
	case StateData:
		return l.scanData()
	default:
		// Unreachable in normal operation; guarded by the stall detector.
		return l.zeroToken(token.Error)
	}
}

func (l *Lexer) zeroToken(kind token.Kind) token.Token {
	p := l.cur.Position()
	b := l.cur.Pos()
	return token.Token{
		Kind:     kind,
		Value:    "",
		Range:    token.Range{From: b, To: b},
		Location: token.Location{Start: p, End: p},
	}
}

func (l *Lexer) eofToken() token.Token { return l.zeroToken(token.EOF) }

// consumeN advances n logical bytes (assumed ASCII, single-byte-per-char
// sentinels) from the current position and returns the resulting token.
func (l *Lexer) consumeN(kind token.Kind, n int) token.Token {
	startByte := l.cur.Pos()
	startPos := l.cur.Position()
	for i := 0; i < n && !l.cur.Eof(); i++ {
		l.cur.Advance()
	}
	return l.finish(kind, startByte, startPos)
}

func (l *Lexer) finish(kind token.Kind, startByte int, startPos token.Position) token.Token {
	endByte := l.cur.Pos()
	endPos := l.cur.Position()
	return token.Token{
		Kind:     kind,
		Value:    string(l.cur.Slice(startByte, endByte)),
		Range:    token.Range{From: startByte, To: endByte},
		Location: token.Location{Start: startPos, End: endPos},
	}
}

func (l *Lexer) matchExpressionOpen() int {
	for _, v := range expressionOpenVariants {
		if l.cur.HasPrefix(v) {
			return len(v)
		}
	}
	return 0
}

func (l *Lexer) matchExpressionEnd() (token.Kind, int) {
	for _, v := range expressionEndVariants {
		if l.cur.HasPrefix(v) {
			return token.ExpressionEnd, len(v)
		}
	}
	return 0, 0
}

func isUpperLower(b byte) bool {
	return (b >= 'A' && b <= 'Z') || (b >= 'a' && b <= 'z')
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

func isIdentContinue(b byte) bool {
	return isUpperLower(b) || isDigit(b) || b == '_' || b == '-' || b == ':'
}

func isInlineSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\f' || b == '\v'
}

func isNewlineByte(b byte) bool {
	return b == '\n' || b == '\r'
}

func (l *Lexer) scanData() token.Token {
	if l.cur.Eof() {
		return l.eofToken()
	}

	startByte := l.cur.Pos()
	startPos := l.cur.Position()
	b := l.cur.Peek(0)

	switch {
	case l.cur.HasPrefixFold("<!DOCTYPE"):
		return l.consumeN(token.HTMLDoctype, len("<!DOCTYPE"))
	case l.cur.HasPrefix("<![CDATA["):
		return l.consumeN(token.CDataStart, len("<![CDATA["))
	case l.cur.HasPrefix("<!--"):
		return l.consumeN(token.HTMLCommentStart, len("<!--"))
	case l.cur.HasPrefixFold("<?xml"):
		return l.consumeN(token.XMLDeclaration, len("<?xml"))
	case l.cur.HasPrefix("?>"):
		return l.consumeN(token.XMLDeclarationEnd, len("?>"))
	case l.cur.HasPrefix("-->"):
		return l.consumeN(token.HTMLCommentEnd, len("-->"))
	case l.cur.HasPrefix("]]>"):
		return l.consumeN(token.CDataEnd, len("]]>"))
	case l.cur.HasPrefix("<%"):
		n := l.matchExpressionOpen()
		tok := l.consumeN(token.ExpressionOpen, n)
		l.state = StateExpressionContent
		return tok
	case l.cur.HasPrefix("</"):
		return l.consumeN(token.HTMLTagStartClose, 2)
	case l.cur.HasPrefix("/>"):
		return l.consumeN(token.HTMLTagSelfClose, 2)
	case b == '<':
		return l.consumeN(token.HTMLTagStart, 1)
	case b == '>':
		return l.consumeN(token.HTMLTagEnd, 1)
	case isUpperLower(b) || isDigit(b):
		for !l.cur.Eof() && isIdentContinue(l.cur.Peek(0)) {
			l.cur.Advance()
		}
		return l.finish(token.Identifier, startByte, startPos)
	case isInlineSpace(b):
		for !l.cur.Eof() && isInlineSpace(l.cur.Peek(0)) {
			l.cur.Advance()
		}
		return l.finish(token.Whitespace, startByte, startPos)
	case isNewlineByte(b):
		for !l.cur.Eof() && isNewlineByte(l.cur.Peek(0)) {
			l.cur.Advance()
		}
		return l.finish(token.Newline, startByte, startPos)
	case l.cur.HasPrefix("\xC2\xA0"):
		for !l.cur.Eof() && l.cur.HasPrefix("\xC2\xA0") {
			l.cur.Advance()
		}
		return l.finish(token.NBSP, startByte, startPos)
	case b == '"' || b == '\'':
		return l.consumeN(token.Quote, 1)
	case b == '=':
		return l.consumeN(token.Equals, 1)
	case b == '/':
		return l.consumeN(token.Slash, 1)
	case b == '-':
		return l.consumeN(token.Dash, 1)
	case b == ':':
		return l.consumeN(token.Colon, 1)
	case b == ';':
		return l.consumeN(token.Semicolon, 1)
	case b == '_':
		return l.consumeN(token.Underscore, 1)
	case b == '@':
		return l.consumeN(token.At, 1)
	case b == '&':
		return l.consumeN(token.Ampersand, 1)
	case b == '!':
		return l.consumeN(token.Exclamation, 1)
	case b == '%':
		return l.consumeN(token.Percent, 1)
	case b == '`':
		return l.consumeN(token.Backtick, 1)
	case b == '\\':
		return l.consumeN(token.Backslash, 1)
	default:
		l.cur.Advance()
		return l.finish(token.Character, startByte, startPos)
	}
}

func (l *Lexer) scanExpressionContent() token.Token {
	startByte := l.cur.Pos()
	startPos := l.cur.Position()
	l.pendingEndLen = 0

	for !l.cur.Eof() {
		if kind, n := l.matchExpressionEnd(); n > 0 {
			l.pendingEndKind = kind
			l.pendingEndLen = n
			break
		}
		l.cur.Advance()
	}

	if l.pendingEndLen > 0 {
		l.state = StateExpressionClose
	} else {
		// Unterminated expression block: content runs to EOF.
		l.state = StateData
	}

	return l.finish(token.ExpressionContent, startByte, startPos)
}

func (l *Lexer) scanExpressionClose() token.Token {
	kind := l.pendingEndKind
	n := l.pendingEndLen
	l.pendingEndLen = 0
	tok := l.consumeN(kind, n)
	l.state = StateData
	return tok
}
