package nixls

import (
	"io"
	"strings"
	"unicode/utf8"

	"github.com/alecthomas/participle/v2/lexer"
)

// Token type constants - negative values as per participle convention.
const (
	TokenEOF        lexer.TokenType = lexer.EOF
	TokenComment    lexer.TokenType = -(iota + 2) //nolint:mnd // participle convention
	TokenWhitespace                               // spaces, tabs, newlines
	TokenIdent                                    // identifiers
	TokenInt                                      // 42
	TokenFloat                                    // 1.5, .5e3
	TokenPath                                     // ./a, /a, ~/a
	TokenSearchPath                               // <nixpkgs>
	TokenURI                                      // https://example.org
	TokenStringOpen                               // " or ''
	TokenStringText                               // raw string content between interpolations
	TokenStringClose                              // " or ''
	TokenInterpOpen                               // ${
	TokenInterpClose                              // } closing an interpolation
	TokenOp                                       // binary and unary operators
	TokenDot                                      // .
	TokenEllipsis                                 // ...
	TokenColon                                    // :
	TokenSemi                                     // ;
	TokenComma                                    // ,
	TokenAt                                       // @
	TokenQuestion                                 // ?
	TokenAssign                                   // =
	TokenLParen                                   // (
	TokenRParen                                   // )
	TokenLBracket                                 // [
	TokenRBracket                                 // ]
	TokenLBrace                                   // {
	TokenRBrace                                   // }
	TokenError                                    // unlexable input, reported as a ParseError
	// Keywords - distinct token types so the parser can tell them from identifiers.
	TokenLet     // let
	TokenIn      // in
	TokenRec     // rec
	TokenWith    // with
	TokenInherit // inherit
	TokenIf      // if
	TokenThen    // then
	TokenElse    // else
	TokenAssert  // assert
	TokenOr      // or
)

// keywords maps keyword strings to their token types.
// true, false and null are plain identifiers in Nix and stay that way here.
var keywords = map[string]lexer.TokenType{
	"let":     TokenLet,
	"in":      TokenIn,
	"rec":     TokenRec,
	"with":    TokenWith,
	"inherit": TokenInherit,
	"if":      TokenIf,
	"then":    TokenThen,
	"else":    TokenElse,
	"assert":  TokenAssert,
	"or":      TokenOr,
}

// IsKeyword reports whether name is a reserved word.
func IsKeyword(name string) bool {
	_, ok := keywords[name]

	return ok
}

// IsIdentifier reports whether name lexes as a single identifier.
func IsIdentifier(name string) bool {
	if name == "" || IsKeyword(name) {
		return false
	}

	for i, r := range name {
		if i == 0 && !isIdentStart(r) || i > 0 && !isIdentContinue(r) {
			return false
		}
	}

	return true
}

// Lexer errors.
var (
	ErrUnterminatedString  = &LexerError{msg: "unterminated string"}
	ErrUnterminatedComment = &LexerError{msg: "unterminated comment"}
	ErrUnexpectedCharacter = &LexerError{msg: "unexpected character"}
)

// LexerError represents a lexer error with position.
type LexerError struct {
	msg string
	pos lexer.Position
	ch  rune
}

func (e *LexerError) Error() string {
	if e.ch != 0 {
		return e.pos.String() + ": " + e.msg + ": " + string(e.ch)
	}

	return e.pos.String() + ": " + e.msg
}

// Pos returns the position the error was reported at.
func (e *LexerError) Pos() lexer.Position {
	return e.pos
}

// Message returns the error message without position.
func (e *LexerError) Message() string {
	if e.ch != 0 {
		return e.msg + ": " + string(e.ch)
	}

	return e.msg
}

func (e *LexerError) withPos(pos lexer.Position) *LexerError {
	return &LexerError{msg: e.msg, pos: pos, ch: e.ch}
}

func (e *LexerError) withChar(ch rune) *LexerError {
	return &LexerError{msg: e.msg, pos: e.pos, ch: ch}
}

// nixDefinition implements lexer.Definition for Nix.
type nixDefinition struct {
	symbols map[string]lexer.TokenType
}

// Lexer returns the participle lexer definition for Nix source.
//
// The lexer never fails: problems are reported as TokenError tokens and
// collected on the lexer state so that the parser stays total.
//
//nolint:ireturn // participle's lexer.Definition interface.
func Lexer() lexer.Definition {
	return &nixDefinition{
		symbols: map[string]lexer.TokenType{
			"EOF":         TokenEOF,
			"Comment":     TokenComment,
			"Whitespace":  TokenWhitespace,
			"Ident":       TokenIdent,
			"Int":         TokenInt,
			"Float":       TokenFloat,
			"Path":        TokenPath,
			"SearchPath":  TokenSearchPath,
			"URI":         TokenURI,
			"StringOpen":  TokenStringOpen,
			"StringText":  TokenStringText,
			"StringClose": TokenStringClose,
			"InterpOpen":  TokenInterpOpen,
			"InterpClose": TokenInterpClose,
			"Op":          TokenOp,
			"Error":       TokenError,
			".":           TokenDot,
			"...":         TokenEllipsis,
			":":           TokenColon,
			";":           TokenSemi,
			",":           TokenComma,
			"@":           TokenAt,
			"?":           TokenQuestion,
			"=":           TokenAssign,
			"(":           TokenLParen,
			")":           TokenRParen,
			"[":           TokenLBracket,
			"]":           TokenRBracket,
			"{":           TokenLBrace,
			"}":           TokenRBrace,
			"let":         TokenLet,
			"in":          TokenIn,
			"rec":         TokenRec,
			"with":        TokenWith,
			"inherit":     TokenInherit,
			"if":          TokenIf,
			"then":        TokenThen,
			"else":        TokenElse,
			"assert":      TokenAssert,
			"or":          TokenOr,
		},
	}
}

// Symbols returns the mapping of symbol names to token types.
func (d *nixDefinition) Symbols() map[string]lexer.TokenType {
	return d.symbols
}

// Lex creates a new Lexer for the given reader.
//
//nolint:ireturn // Required by participle's lexer.Definition interface.
func (d *nixDefinition) Lex(filename string, r io.Reader) (lexer.Lexer, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	return newLexerState(filename, string(data), nil), nil
}

// LexString implements lexer.StringDefinition.
//
//nolint:ireturn // Required by participle's lexer.StringDefinition interface.
func (d *nixDefinition) LexString(filename string, input string) (lexer.Lexer, error) {
	return newLexerState(filename, input, nil), nil
}

// lexMode is one entry of the lexer's mode stack.
type lexMode struct {
	str      bool // inside a string literal
	indented bool // '' string (only meaningful when str)
	depth    int  // open braces in code mode
	interp   bool // this code mode was opened by ${ and closes with }
}

// lexerState holds the state for lexing.
type lexerState struct {
	filename       string
	input          string
	offset         int
	line           int
	col            int
	modes          []lexMode
	trivia         *TriviaList
	errors         []*LexerError
	lastWasNewline bool
}

func newLexerState(filename, input string, trivia *TriviaList) *lexerState {
	return &lexerState{
		filename: filename,
		input:    input,
		line:     1,
		col:      1,
		modes:    []lexMode{{}},
		trivia:   trivia,
	}
}

func (l *lexerState) mode() *lexMode {
	return &l.modes[len(l.modes)-1]
}

func (l *lexerState) push(m lexMode) {
	l.modes = append(l.modes, m)
}

func (l *lexerState) pop() {
	if len(l.modes) > 1 {
		l.modes = l.modes[:len(l.modes)-1]
	}
}

// Next returns the next token.
func (l *lexerState) Next() (lexer.Token, error) {
	if l.eof() {
		if m := l.mode(); m.str {
			l.errors = append(l.errors, ErrUnterminatedString.withPos(l.pos()))
			l.modes = l.modes[:1]
		}

		return lexer.EOFToken(l.pos()), nil
	}

	if l.mode().str {
		return l.nextInString(), nil
	}

	return l.nextInCode(), nil
}

func (l *lexerState) nextInCode() lexer.Token {
	start := l.pos()
	r := l.peek()

	// Whitespace - track blank lines for detached comment detection
	if isSpace(r) {
		newlineCount := 0

		for !l.eof() && isSpace(l.peek()) {
			if l.peek() == '\n' {
				newlineCount++
			}

			l.advance()
		}

		l.lastWasNewline = newlineCount >= 2

		return l.token(TokenWhitespace, start)
	}

	if r == '#' || l.match("/*") {
		return l.scanComment(start)
	}

	l.lastWasNewline = false

	switch {
	case r == '"':
		l.advance()
		l.push(lexMode{str: true})

		return l.token(TokenStringOpen, start)
	case l.match("''"):
		l.advance()
		l.advance()
		l.push(lexMode{str: true, indented: true})

		return l.token(TokenStringOpen, start)
	case l.match("${"):
		l.advance()
		l.advance()
		l.push(lexMode{interp: true})

		return l.token(TokenInterpOpen, start)
	}

	if n := l.matchPath(); n > 0 {
		l.advanceBytes(n)

		return l.token(TokenPath, start)
	}

	if n := l.matchSearchPath(); n > 0 {
		l.advanceBytes(n)

		return l.token(TokenSearchPath, start)
	}

	if n := l.matchURI(); n > 0 {
		l.advanceBytes(n)

		return l.token(TokenURI, start)
	}

	if isDigit(r) || (r == '.' && isDigit(l.peekAt(1))) {
		return l.scanNumber(start)
	}

	if isIdentStart(r) {
		l.advance()

		for !l.eof() && isIdentContinue(l.peek()) {
			l.advance()
		}

		tok := l.token(TokenIdent, start)
		if kwType, isKeyword := keywords[tok.Value]; isKeyword {
			tok.Type = kwType
		}

		return tok
	}

	if tok, ok := l.scanMultiCharOp(start); ok {
		return tok
	}

	l.advance()

	switch r {
	case '.':
		return l.token(TokenDot, start)
	case ':':
		return l.token(TokenColon, start)
	case ';':
		return l.token(TokenSemi, start)
	case ',':
		return l.token(TokenComma, start)
	case '@':
		return l.token(TokenAt, start)
	case '?':
		return l.token(TokenQuestion, start)
	case '=':
		return l.token(TokenAssign, start)
	case '(':
		return l.token(TokenLParen, start)
	case ')':
		return l.token(TokenRParen, start)
	case '[':
		return l.token(TokenLBracket, start)
	case ']':
		return l.token(TokenRBracket, start)
	case '{':
		l.mode().depth++

		return l.token(TokenLBrace, start)
	case '}':
		m := l.mode()
		if m.depth > 0 {
			m.depth--

			return l.token(TokenRBrace, start)
		}

		if m.interp {
			l.pop()

			return l.token(TokenInterpClose, start)
		}

		return l.token(TokenRBrace, start)
	}

	if strings.ContainsRune("+-*/<>!", r) {
		return l.token(TokenOp, start)
	}

	l.errors = append(l.errors, ErrUnexpectedCharacter.withPos(start).withChar(r))

	return l.token(TokenError, start)
}

// nextInString lexes string content until the next interpolation or the
// closing quote. Text tokens carry the raw source text, escapes included.
func (l *lexerState) nextInString() lexer.Token {
	start := l.pos()
	indented := l.mode().indented

	if l.match("${") {
		l.advance()
		l.advance()
		l.push(lexMode{interp: true})

		return l.token(TokenInterpOpen, start)
	}

	if !indented && l.peek() == '"' {
		l.advance()
		l.pop()

		return l.token(TokenStringClose, start)
	}

	if indented && l.match("''") && !l.match("'''") && !l.match("''$") && !l.match("''\\") {
		l.advance()
		l.advance()
		l.pop()

		return l.token(TokenStringClose, start)
	}

	for !l.eof() {
		switch {
		case l.match("${"):
			return l.token(TokenStringText, start)
		case l.match("$$"):
			l.advanceBytes(2)
		case !indented && l.peek() == '"':
			return l.token(TokenStringText, start)
		case !indented && l.peek() == '\\':
			l.advance()
			l.advance()
		case indented && (l.match("'''") || l.match("''$")):
			l.advanceBytes(3)
		case indented && l.match("''\\"):
			l.advanceBytes(3)
			l.advance()
		case indented && l.match("''"):
			return l.token(TokenStringText, start)
		default:
			l.advance()
		}
	}

	return l.token(TokenStringText, start)
}

func (l *lexerState) scanComment(start lexer.Position) lexer.Token {
	if l.peek() == '#' {
		for !l.eof() && l.peek() != '\n' {
			l.advance()
		}
	} else {
		l.advanceBytes(2)

		closed := false

		for !l.eof() {
			if l.match("*/") {
				l.advanceBytes(2)

				closed = true

				break
			}

			l.advance()
		}

		if !closed {
			l.errors = append(l.errors, ErrUnterminatedComment.withPos(start))
		}
	}

	tok := l.token(TokenComment, start)

	if l.trivia != nil {
		l.trivia.Add(Trivia{
			Type:             TriviaComment,
			Text:             tok.Value,
			Span:             Span{Start: start, End: l.pos()},
			HasNewlineBefore: l.lastWasNewline,
		})
	}

	l.lastWasNewline = false

	return tok
}

// matchPath returns the byte length of a path literal at the current offset,
// or 0. Paths need at least one slash followed by a path character, so a
// lone "/" or "//" stays an operator.
func (l *lexerState) matchPath() int {
	s := l.input[l.offset:]
	i := 0

	if strings.HasPrefix(s, "~/") {
		i = 1
	} else {
		for i < len(s) && isPathChar(s[i]) {
			i++
		}
	}

	segments := 0

	for i+1 < len(s) && s[i] == '/' && isPathChar(s[i+1]) {
		i++

		for i < len(s) && isPathChar(s[i]) {
			i++
		}

		segments++
	}

	if segments == 0 {
		return 0
	}

	return i
}

func (l *lexerState) matchSearchPath() int {
	s := l.input[l.offset:]
	if len(s) < 3 || s[0] != '<' || !isPathChar(s[1]) {
		return 0
	}

	i := 1
	for i < len(s) && (isPathChar(s[i]) || (s[i] == '/' && i+1 < len(s) && isPathChar(s[i+1]))) {
		i++
	}

	if i < len(s) && s[i] == '>' {
		return i + 1
	}

	return 0
}

func (l *lexerState) matchURI() int {
	s := l.input[l.offset:]
	if len(s) == 0 || !isASCIILetter(s[0]) {
		return 0
	}

	i := 1
	for i < len(s) && (isASCIILetter(s[i]) || isASCIIDigit(s[i]) || strings.IndexByte("+-.", s[i]) >= 0) {
		i++
	}

	if i >= len(s) || s[i] != ':' {
		return 0
	}

	i++
	rest := i

	for i < len(s) && isURIChar(s[i]) {
		i++
	}

	if i == rest {
		return 0
	}

	return i
}

func (l *lexerState) scanNumber(start lexer.Position) lexer.Token {
	typ := TokenInt

	for !l.eof() && isDigit(l.peek()) {
		l.advance()
	}

	if l.peek() == '.' && (isDigit(l.peekAt(1)) || start.Offset != l.offset) {
		typ = TokenFloat

		l.advance()

		for !l.eof() && isDigit(l.peek()) {
			l.advance()
		}
	}

	if typ == TokenFloat && (l.peek() == 'e' || l.peek() == 'E') {
		next := l.peekAt(1)
		if isDigit(next) || ((next == '+' || next == '-') && isDigit(l.peekAt(2))) {
			l.advance()

			if l.peek() == '+' || l.peek() == '-' {
				l.advance()
			}

			for !l.eof() && isDigit(l.peek()) {
				l.advance()
			}
		}
	}

	return l.token(typ, start)
}

func (l *lexerState) scanMultiCharOp(start lexer.Position) (lexer.Token, bool) {
	if l.match("...") {
		l.advanceBytes(3)

		return l.token(TokenEllipsis, start), true
	}

	multiOps := []string{"++", "//", "==", "!=", "<=", ">=", "&&", "||", "->", "|>", "<|"}

	for _, op := range multiOps {
		if l.match(op) {
			l.advanceBytes(len(op))

			return l.token(TokenOp, start), true
		}
	}

	return lexer.Token{}, false
}

func (l *lexerState) pos() lexer.Position {
	return lexer.Position{
		Filename: l.filename,
		Offset:   l.offset,
		Line:     l.line,
		Column:   l.col,
	}
}

func (l *lexerState) eof() bool {
	return l.offset >= len(l.input)
}

func (l *lexerState) peek() rune {
	if l.eof() {
		return 0
	}

	r, _ := utf8.DecodeRuneInString(l.input[l.offset:])

	return r
}

func (l *lexerState) peekAt(n int) rune {
	off := l.offset + n
	if off >= len(l.input) {
		return 0
	}

	r, _ := utf8.DecodeRuneInString(l.input[off:])

	return r
}

func (l *lexerState) advance() {
	if l.eof() {
		return
	}

	r, size := utf8.DecodeRuneInString(l.input[l.offset:])
	l.offset += size

	if r == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
}

// advanceBytes advances past n bytes of ASCII input.
func (l *lexerState) advanceBytes(n int) {
	for range n {
		l.advance()
	}
}

func (l *lexerState) match(s string) bool {
	return strings.HasPrefix(l.input[l.offset:], s)
}

func (l *lexerState) token(typ lexer.TokenType, start lexer.Position) lexer.Token {
	return lexer.Token{
		Type:  typ,
		Value: l.input[start.Offset:l.offset],
		Pos:   start,
	}
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

func isIdentStart(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || r == '_'
}

func isIdentContinue(r rune) bool {
	return isIdentStart(r) || isDigit(r) || r == '\'' || r == '-'
}

func isASCIILetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

func isASCIIDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

func isPathChar(b byte) bool {
	return isASCIILetter(b) || isASCIIDigit(b) || strings.IndexByte("._-+", b) >= 0
}

func isURIChar(b byte) bool {
	return isASCIILetter(b) || isASCIIDigit(b) || strings.IndexByte("%/?:@&=+$,-_.!~*'", b) >= 0
}
