package rubyexpr

import (
	"errors"
	"strings"
)

// parseLoopHeader splits a `for` header of the form `IDENT (',' IDENT)?
// 'in' EXPR` into its value/index identifiers and iterable expression. It
// scans left to right for the first standalone `in` keyword - one not
// glued to an identifier on either side, so `index` or `info` never
// matches - then validates whatever sits in front of it as one or two
// comma-separated identifiers.
func parseLoopHeader(s string) (value, index, iter string, err error) {
	inAt, ok := findInKeyword(s)
	if !ok {
		return "", "", "", errors.New("missing loop body")
	}

	iter = strings.TrimSpace(s[inAt+2:])
	if iter == "" {
		return "", "", "", errors.New("missing loop body")
	}

	var idents []string
	for _, part := range strings.Split(s[:inAt], ",") {
		name := strings.TrimSpace(part)
		if name == "" {
			continue
		}
		if !isIdentifier(name) {
			return "", "", "", errors.New("bad character in for-loop header")
		}
		idents = append(idents, name)
	}

	switch len(idents) {
	case 0:
		return "", "", "", errors.New("missing loop variable")
	case 1:
		return idents[0], "", iter, nil
	case 2:
		return idents[0], idents[1], iter, nil
	default:
		return "", "", "", errors.New("too many loop variables")
	}
}

// findInKeyword returns the byte offset of the first occurrence of "in" in
// s that is not itself part of a longer identifier (so "index" and "info"
// are skipped, but " in " or ",in " match).
func findInKeyword(s string) (int, bool) {
	for i := 0; i+1 < len(s); i++ {
		if s[i] != 'i' || s[i+1] != 'n' {
			continue
		}
		if i > 0 && isIdentByte(s[i-1]) {
			continue
		}
		if i+2 < len(s) && isIdentByte(s[i+2]) {
			continue
		}
		return i, true
	}
	return 0, false
}

// isIdentifier reports whether s is a valid bare identifier: a leading
// letter or underscore followed by letters, digits, or underscores.
func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	if isDigit(s[0]) {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !isIdentByte(s[i]) {
			return false
		}
	}
	return true
}

func isIdentByte(b byte) bool {
	return b == '_' ||
		(b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || isDigit(b)
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}
