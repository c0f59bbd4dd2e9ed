package grammar

import (
	"regexp"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokWord
	tokInt
	tokFloat
	tokString
	tokDate
	tokDateTime
	tokOp
	tokLParen
	tokRParen
	tokComma
	tokDot
)

func (k tokenKind) String() string {
	switch k {
	case tokEOF:
		return "end of input"
	case tokWord:
		return "word"
	case tokInt:
		return "integer"
	case tokFloat:
		return "float"
	case tokString:
		return "string"
	case tokDate:
		return "date"
	case tokDateTime:
		return "datetime"
	case tokOp:
		return "operator"
	case tokLParen:
		return "'('"
	case tokRParen:
		return "')'"
	case tokComma:
		return "','"
	case tokDot:
		return "'.'"
	default:
		return "token"
	}
}

type token struct {
	kind   tokenKind
	text   string // Source text; for strings, the content between quotes
	offset int    // Byte offset of the first character
}

var (
	temporalPattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}(T\d{2}:\d{2}:\d{2}(\.\d+)?Z)?`)
	numberPattern   = regexp.MustCompile(`^-?\d+(\.\d+)?`)
)

// lex splits input into tokens. Temporal literals are tried before
// numbers so that 2024-01-02 is never read as 2024 followed by garbage.
func lex(input string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(input) {
		c := input[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++

		case c == '(':
			toks = append(toks, token{kind: tokLParen, text: "(", offset: i})
			i++
		case c == ')':
			toks = append(toks, token{kind: tokRParen, text: ")", offset: i})
			i++
		case c == ',':
			toks = append(toks, token{kind: tokComma, text: ",", offset: i})
			i++
		case c == '.':
			toks = append(toks, token{kind: tokDot, text: ".", offset: i})
			i++

		case c == '=':
			toks = append(toks, token{kind: tokOp, text: "=", offset: i})
			i++
		case c == '!':
			if i+1 < len(input) && input[i+1] == '=' {
				toks = append(toks, token{kind: tokOp, text: "!=", offset: i})
				i += 2
				continue
			}
			return nil, newParseError(ErrorKindLexical, input, i, "!", []string{"'!='"}, "unexpected character '!'")
		case c == '<' || c == '>':
			if i+1 < len(input) && input[i+1] == '=' {
				toks = append(toks, token{kind: tokOp, text: input[i : i+2], offset: i})
				i += 2
				continue
			}
			toks = append(toks, token{kind: tokOp, text: string(c), offset: i})
			i++

		case c == '"':
			tok, end, err := lexString(input, i)
			if err != nil {
				return nil, err
			}
			toks = append(toks, tok)
			i = end

		case isDigit(c) || (c == '-' && i+1 < len(input) && isDigit(input[i+1])):
			rest := input[i:]
			if m := temporalPattern.FindStringSubmatchIndex(rest); m != nil {
				kind := tokDate
				if m[2] >= 0 {
					kind = tokDateTime
				}
				toks = append(toks, token{kind: kind, text: rest[:m[1]], offset: i})
				i += m[1]
				continue
			}
			m := numberPattern.FindStringSubmatchIndex(rest)
			kind := tokInt
			if m[2] >= 0 {
				kind = tokFloat
			}
			toks = append(toks, token{kind: kind, text: rest[:m[1]], offset: i})
			i += m[1]

		case isWordStart(c):
			start := i
			for i < len(input) && isWordPart(input[i]) {
				i++
			}
			toks = append(toks, token{kind: tokWord, text: input[start:i], offset: start})

		default:
			r := []rune(input[i:])[0]
			return nil, newParseError(ErrorKindLexical, input, i, string(r), nil, "unexpected character %q", r)
		}
	}
	toks = append(toks, token{kind: tokEOF, offset: len(input)})
	return toks, nil
}

// lexString reads a double-quoted string starting at input[start]. Only
// the escapes \0 \t \n \r \" \\ are accepted.
func lexString(input string, start int) (token, int, error) {
	i := start + 1
	for i < len(input) {
		switch input[i] {
		case '"':
			return token{kind: tokString, text: input[start+1 : i], offset: start}, i + 1, nil
		case '\\':
			if i+1 >= len(input) {
				return token{}, 0, newParseError(ErrorKindLexical, input, i, `\`, []string{`'"'`}, "unterminated string")
			}
			switch input[i+1] {
			case '0', 't', 'n', 'r', '"', '\\':
				i += 2
			default:
				return token{}, 0, newParseError(ErrorKindLexical, input, i, input[i:i+2],
					[]string{`\0`, `\t`, `\n`, `\r`, `\"`, `\\`}, "invalid escape sequence %q", input[i:i+2])
			}
		default:
			i++
		}
	}
	return token{}, 0, newParseError(ErrorKindLexical, input, start, input[start:], []string{`'"'`}, "unterminated string")
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isWordStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isWordPart(c byte) bool {
	return isWordStart(c) || isDigit(c)
}
