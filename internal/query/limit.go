package query

import (
	"strconv"
	"strings"
)

// DefaultLimit caps rows of queries without their own LIMIT.
const DefaultLimit = 1000

// scanner walks SQL text and yields the words that sit outside string
// literals, quoted identifiers and comments, together with their
// parenthesis depth.
type scanner struct {
	input   string
	pos     int  // current position in input
	readPos int  // reading position (after current char)
	ch      byte // current char under examination
	depth   int
}

type word struct {
	text  string // upper-cased
	depth int
	pos   int // byte offset in input
}

func newScanner(input string) *scanner {
	s := &scanner{input: input}
	s.readChar()
	return s
}

func (s *scanner) readChar() {
	if s.readPos >= len(s.input) {
		s.ch = 0
	} else {
		s.ch = s.input[s.readPos]
	}
	s.pos = s.readPos
	s.readPos++
}

func (s *scanner) peekChar() byte {
	if s.readPos >= len(s.input) {
		return 0
	}
	return s.input[s.readPos]
}

// skipQuoted consumes a quoted run, treating a doubled quote as an escape.
func (s *scanner) skipQuoted(quote byte) {
	s.readChar() // opening quote
	for s.ch != 0 {
		if s.ch == quote {
			if s.peekChar() == quote {
				s.readChar()
				s.readChar()
				continue
			}
			s.readChar()
			return
		}
		s.readChar()
	}
}

// next returns the next word, or false at end of input. Semicolons at depth
// zero are reported as the word ";".
func (s *scanner) next() (word, bool) {
	for s.ch != 0 {
		switch {
		case s.ch == '-' && s.peekChar() == '-':
			for s.ch != '\n' && s.ch != 0 {
				s.readChar()
			}
		case s.ch == '/' && s.peekChar() == '*':
			s.readChar()
			s.readChar()
			for s.ch != 0 && (s.ch != '*' || s.peekChar() != '/') {
				s.readChar()
			}
			s.readChar()
			s.readChar()
		case s.ch == '\'' || s.ch == '"' || s.ch == '`':
			s.skipQuoted(s.ch)
		case s.ch == '(':
			s.depth++
			s.readChar()
		case s.ch == ')':
			if s.depth > 0 {
				s.depth--
			}
			s.readChar()
		case s.ch == ';':
			w := word{text: ";", depth: s.depth, pos: s.pos}
			s.readChar()
			return w, true
		case isWordStart(s.ch):
			start := s.pos
			for isWordStart(s.ch) || isDigit(s.ch) {
				s.readChar()
			}
			return word{text: strings.ToUpper(s.input[start:s.pos]), depth: s.depth, pos: start}, true
		default:
			s.readChar()
		}
	}
	return word{}, false
}

func isWordStart(ch byte) bool {
	return ch == '_' || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

var queryKeywords = map[string]bool{
	"SELECT": true,
	"WITH":   true,
	"FROM":   true,
	"VALUES": true,
	"TABLE":  true,
}

// statementInfo summarizes a single statement.
type statementInfo struct {
	isQuery  bool
	hasLimit bool
	multi    bool
	// end is the offset of the first top-level semicolon, or -1. Only
	// comments and further semicolons may follow it unless multi is set.
	end int
}

func inspect(sql string) statementInfo {
	info := statementInfo{end: -1}
	s := newScanner(sql)
	first := true
	for {
		w, ok := s.next()
		if !ok {
			return info
		}
		if w.text == ";" {
			if w.depth == 0 && info.end < 0 {
				info.end = w.pos
			}
			continue
		}
		if info.end >= 0 {
			info.multi = true
		}
		if first {
			info.isQuery = queryKeywords[w.text]
			first = false
		}
		if w.depth == 0 && w.text == "LIMIT" {
			info.hasLimit = true
		}
	}
}

// trimStatement removes surrounding whitespace and trailing semicolons.
func trimStatement(sql string) string {
	return strings.TrimRight(strings.TrimSpace(sql), "; \t\r\n")
}

// HasLimit reports whether sql carries its own top-level LIMIT clause.
// LIMIT inside subqueries, literals or comments does not count.
func HasLimit(sql string) bool {
	return inspect(trimStatement(sql)).hasLimit
}

// ApplyLimit appends LIMIT limit to a row-returning statement that has no
// top-level LIMIT. It returns the statement to run and whether the limit
// was added. Statements that are not queries, or that contain several
// statements, are returned trimmed but otherwise untouched.
func ApplyLimit(sql string, limit int) (string, bool) {
	stmt := trimStatement(sql)
	if limit <= 0 || stmt == "" {
		return stmt, false
	}
	info := inspect(stmt)
	if !info.isQuery || info.hasLimit || info.multi {
		return stmt, false
	}
	// Drop the terminator and any comment after it so the clause lands
	// inside the statement.
	if info.end >= 0 {
		stmt = trimStatement(stmt[:info.end])
	}
	// A newline keeps a trailing line comment from swallowing the clause.
	return stmt + "\nLIMIT " + strconv.Itoa(limit), true
}
