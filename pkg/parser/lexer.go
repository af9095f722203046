package parser

import (
	"strings"

	"github.com/gofhir/fsh/pkg/issue"
	"github.com/gofhir/fsh/pkg/location"
)

// lexer converts FSH source text into tokens. Whitespace separates tokens;
// newlines matter only for deciding which tokens start a line.
type lexer struct {
	src  []byte
	file string
	idx  *location.Index

	pos       int
	lineStart bool
	tokens    []Token
	diags     []issue.Issue
}

func newLexer(file string, src []byte) *lexer {
	return &lexer{src: src, file: file, idx: location.NewIndex(src), lineStart: true}
}

func (l *lexer) span(start, end int) location.Span {
	endPos := l.idx.Position(end)
	if end > start {
		// Spans end on the last character, not after it.
		endPos = l.idx.Position(end - 1)
	}
	return location.NewSpan(l.file, l.idx.Position(start), endPos)
}

func (l *lexer) errorf(start, end int, message string) {
	s := l.span(start, end)
	l.diags = append(l.diags, issue.New(issue.DiagSyntax, map[string]any{"message": message}, &s))
}

func (l *lexer) emit(kind TokenKind, text string, start, end int) *Token {
	l.tokens = append(l.tokens, Token{
		Kind:      kind,
		Text:      text,
		Span:      l.span(start, end),
		Start:     start,
		End:       end,
		LineStart: l.lineStart,
	})
	l.lineStart = false
	return &l.tokens[len(l.tokens)-1]
}

func (l *lexer) peekByte(offset int) byte {
	if l.pos+offset < len(l.src) {
		return l.src[l.pos+offset]
	}
	return 0
}

func (l *lexer) last() *Token {
	if len(l.tokens) == 0 {
		return nil
	}
	return &l.tokens[len(l.tokens)-1]
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\r' || b == '\n' || b == '\f'
}

// run lexes the whole input.
func (l *lexer) run() []Token {
	for {
		l.skipWhitespaceAndComments()
		if l.pos >= len(l.src) {
			break
		}
		l.next()
	}
	l.tokens = append(l.tokens, Token{Kind: TokEOF, Span: l.span(len(l.src), len(l.src)), Start: len(l.src), End: len(l.src), LineStart: true})
	return l.tokens
}

func (l *lexer) skipWhitespaceAndComments() {
	for l.pos < len(l.src) {
		b := l.src[l.pos]
		switch {
		case b == '\n':
			l.lineStart = true
			l.pos++
		case isSpace(b):
			l.pos++
		case b == '/' && l.peekByte(1) == '/':
			for l.pos < len(l.src) && l.src[l.pos] != '\n' {
				l.pos++
			}
		case b == '/' && l.peekByte(1) == '*':
			start := l.pos
			end := strings.Index(string(l.src[l.pos+2:]), "*/")
			if end < 0 {
				l.errorf(start, len(l.src), "Unterminated block comment.")
				l.pos = len(l.src)
				return
			}
			for _, c := range l.src[l.pos : l.pos+2+end+2] {
				if c == '\n' {
					l.lineStart = true
				}
			}
			l.pos += 2 + end + 2
		default:
			return
		}
	}
}

func (l *lexer) next() {
	start := l.pos
	b := l.src[l.pos]

	if l.lineStart {
		if b == '*' && (l.pos+1 >= len(l.src) || isSpace(l.src[l.pos+1])) {
			l.pos++
			l.emit(TokStar, "*", start, l.pos)
			return
		}
		if kw, end, ok := l.matchKeyword(); ok {
			l.pos = end
			l.emit(TokKeyword, kw, start, end)
			if kw == KwRuleSet {
				l.lexRuleSetRef(true)
			}
			return
		}
	}

	switch {
	case strings.HasPrefix(string(l.src[l.pos:min(l.pos+3, len(l.src))]), `"""`):
		l.lexMultilineString()
	case b == '"':
		l.lexString(TokString)
	case b == '\'':
		l.lexUnit()
	case b == '^':
		l.lexCaret()
	case b == '/' && l.peekByte(1) != '/' && l.peekByte(1) != '*':
		l.lexRegex()
	default:
		for _, p := range []struct {
			prefix string
			kind   TokenKind
		}{
			{"CodeableReference(", TokCodeableReference},
			{"Reference(", TokReference},
			{"Canonical(", TokCanonical},
		} {
			if strings.HasPrefix(string(l.src[l.pos:]), p.prefix) {
				l.lexParenthesized(p.kind, len(p.prefix))
				return
			}
		}
		l.lexWord()
	}
}

// matchKeyword recognizes "Keyword:" (spaces allowed before the colon) at
// the current position.
func (l *lexer) matchKeyword() (string, int, bool) {
	i := l.pos
	for i < len(l.src) && isLetter(l.src[i]) {
		i++
	}
	word := string(l.src[l.pos:i])
	if !entityKeywords[word] && !metadataKeywords[word] {
		return "", 0, false
	}
	for i < len(l.src) && (l.src[i] == ' ' || l.src[i] == '\t') {
		i++
	}
	if i < len(l.src) && l.src[i] == ':' {
		return word, i + 1, true
	}
	return "", 0, false
}

func isLetter(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z'
}

func (l *lexer) lexString(kind TokenKind) {
	start := l.pos
	l.pos++
	for l.pos < len(l.src) {
		switch l.src[l.pos] {
		case '\\':
			l.pos += 2
			continue
		case '"':
			l.pos++
			l.emit(kind, string(l.src[start:l.pos]), start, l.pos)
			return
		}
		l.pos++
	}
	l.pos = len(l.src)
	l.errorf(start, l.pos, "Unterminated string.")
	l.emit(kind, string(l.src[start:])+`"`, start, l.pos)
}

func (l *lexer) lexMultilineString() {
	start := l.pos
	end := strings.Index(string(l.src[l.pos+3:]), `"""`)
	if end < 0 {
		l.pos = len(l.src)
		l.errorf(start, l.pos, "Unterminated multiline string.")
		l.emit(TokMultilineString, string(l.src[start:])+`"""`, start, l.pos)
		return
	}
	l.pos += 3 + end + 3
	l.emit(TokMultilineString, string(l.src[start:l.pos]), start, l.pos)
}

func (l *lexer) lexUnit() {
	start := l.pos
	end := strings.IndexAny(string(l.src[l.pos+1:]), "'\n")
	if end < 0 || l.src[l.pos+1+end] != '\'' {
		l.lexWord()
		return
	}
	l.pos += 1 + end + 1
	l.emit(TokUnit, string(l.src[start:l.pos]), start, l.pos)
}

func (l *lexer) lexCaret() {
	start := l.pos
	l.pos++
	for l.pos < len(l.src) && !isSpace(l.src[l.pos]) {
		l.pos++
	}
	l.emit(TokCaret, string(l.src[start+1:l.pos]), start, l.pos)
}

func (l *lexer) lexRegex() {
	start := l.pos
	i := l.pos + 1
	for i < len(l.src) && l.src[i] != '\n' {
		if l.src[i] == '\\' {
			i += 2
			continue
		}
		if l.src[i] == '/' {
			l.pos = i + 1
			l.emit(TokRegex, string(l.src[start:l.pos]), start, l.pos)
			return
		}
		i++
	}
	l.lexWord()
}

// lexParenthesized reads a Reference(...), Canonical(...) or
// CodeableReference(...) token. The contents may hold spaces.
func (l *lexer) lexParenthesized(kind TokenKind, prefixLen int) {
	start := l.pos
	end := strings.IndexAny(string(l.src[l.pos+prefixLen:]), ")\n")
	if end < 0 || l.src[l.pos+prefixLen+end] != ')' {
		l.lexWord()
		return
	}
	l.pos += prefixLen + end + 1
	l.emit(kind, string(l.src[start:l.pos]), start, l.pos)
}

// lexWord reads a run of non-whitespace characters. A "#" followed by a
// quote starts a quoted code, which may contain spaces.
func (l *lexer) lexWord() {
	start := l.pos
	quoted := false
	for l.pos < len(l.src) && !isSpace(l.src[l.pos]) {
		if l.src[l.pos] == '#' && l.peekByte(1) == '"' {
			quoted = true
			l.pos += 2
			for l.pos < len(l.src) && l.src[l.pos] != '"' && l.src[l.pos] != '\n' {
				if l.src[l.pos] == '\\' {
					l.pos++
				}
				l.pos++
			}
			if l.pos < len(l.src) && l.src[l.pos] == '"' {
				l.pos++
			} else {
				l.errorf(start, l.pos, "Unterminated quoted code.")
			}
			continue
		}
		l.pos++
	}
	text := string(l.src[start:l.pos])

	kind := TokWord
	switch {
	case text == "=":
		kind = TokEqual
	case text == "->":
		kind = TokArrow
	case text == ":":
		kind = TokColon
	case quoted || strings.Contains(text, "#"):
		kind = TokCode
	}
	l.emit(kind, text, start, l.pos)

	if kind == TokWord && text == "insert" {
		l.lexRuleSetRef(false)
	}
}

// lexRuleSetRef reads the RuleSet named after "insert" or "RuleSet:". The
// name may be followed by a parenthesized parameter list in which "\)"
// and "\," are escapes and "[[...]]" protects its contents. For a
// parameterized RuleSet declaration the template body is captured too.
func (l *lexer) lexRuleSetRef(declaration bool) {
	for l.pos < len(l.src) && (l.src[l.pos] == ' ' || l.src[l.pos] == '\t') {
		l.pos++
	}
	start := l.pos
	for l.pos < len(l.src) && !isSpace(l.src[l.pos]) && l.src[l.pos] != '(' {
		l.pos++
	}
	if l.pos == start {
		return
	}
	name := string(l.src[start:l.pos])

	argStart := l.pos
	for argStart < len(l.src) && (l.src[argStart] == ' ' || l.src[argStart] == '\t') {
		argStart++
	}
	if argStart >= len(l.src) || l.src[argStart] != '(' {
		l.emit(TokRuleSetRef, name, start, l.pos)
		return
	}

	i := argStart + 1
	closed := false
	for i < len(l.src) && !closed {
		switch {
		case l.src[i] == '\\' && i+1 < len(l.src):
			i += 2
		case strings.HasPrefix(string(l.src[i:]), "[["):
			end := strings.Index(string(l.src[i+2:]), "]]")
			if end < 0 {
				i = len(l.src)
			} else {
				i += 2 + end + 2
			}
		case l.src[i] == ')':
			closed = true
			i++
		default:
			i++
		}
	}
	if !closed {
		l.errorf(start, len(l.src), "Unclosed parameter list for RuleSet "+name+".")
		l.pos = len(l.src)
		return
	}
	l.pos = i
	tok := l.emit(TokRuleSetRef, name, start, i)
	tok.Args = string(l.src[argStart+1 : i-1])
	tok.HasArgs = true

	if declaration {
		l.lexParamBody()
	}
}

// lexParamBody captures the raw text of a parameterized RuleSet: every line
// after the declaration up to the next entity keyword. The template is not
// tokenized; it is parsed only after parameters are substituted.
func (l *lexer) lexParamBody() {
	for l.pos < len(l.src) && l.src[l.pos] != '\n' {
		l.pos++
	}
	bodyStart := l.pos
	i := l.pos
	for i < len(l.src) {
		lineStart := i
		lineEnd := i
		for lineEnd < len(l.src) && l.src[lineEnd] != '\n' {
			lineEnd++
		}
		content := strings.TrimLeft(string(l.src[lineStart:lineEnd]), " \t\r\n")
		if startsEntity(content) {
			break
		}
		i = lineEnd + 1
	}
	bodyEnd := min(i, len(l.src))
	raw := string(l.src[bodyStart:bodyEnd])
	l.lineStart = true
	l.pos = bodyEnd
	tok := l.emit(TokParamBody, normalizeBody(raw), bodyStart, bodyEnd)
	tok.LineStart = false
	l.lineStart = true
}

func startsEntity(line string) bool {
	i := 0
	for i < len(line) && isLetter(line[i]) {
		i++
	}
	if !entityKeywords[line[:i]] {
		return false
	}
	rest := strings.TrimLeft(line[i:], " \t")
	return strings.HasPrefix(rest, ":")
}

// normalizeBody drops leading and trailing blank lines and strips the
// indentation of the first rule from every line.
func normalizeBody(raw string) string {
	lines := strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n")
	for len(lines) > 0 && strings.TrimSpace(lines[0]) == "" {
		lines = lines[1:]
	}
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}
	if len(lines) == 0 {
		return ""
	}
	indent := len(lines[0]) - len(strings.TrimLeft(lines[0], " "))
	for i, line := range lines {
		n := len(line) - len(strings.TrimLeft(line, " "))
		lines[i] = line[min(n, indent):]
	}
	return strings.Join(lines, "\n")
}
