// Package sqlsplit divides raw SQL scripts into individually executable
// statements.
//
// The scanner understands quoted literals (single quote, double quote and
// backtick, with backslash escapes), line comments (-- and #), block comments,
// and the DELIMITER directive used by MySQL clients to define stored routines
// whose bodies contain semicolons.
package sqlsplit

import (
	"strings"
	"unicode"
)

// DefaultDelimiter is the statement delimiter active at the start of a script.
const DefaultDelimiter = ";"

type mode int

const (
	modeNormal mode = iota
	modeQuoted
	modeLineComment
	modeBlockComment
)

// Result is the outcome of scanning a script.
type Result struct {
	Statements []string
	// Unterminated describes the construct that was still open when the input
	// ended, e.g. "quoted literal" or "block comment". It's empty for
	// well-formed input.
	Unterminated string
}

// Split returns the statements contained in sql, in order. Delimiters,
// DELIMITER directives and trailing whitespace are stripped, and statements
// that contain nothing but whitespace and comments are discarded.
func Split(sql string) []string {
	return Scan(sql).Statements
}

// Scan splits sql like Split, and additionally reports whether the input ended
// inside a literal or block comment. In that case the remaining text is still
// returned as the final statement.
func Scan(sql string) Result {
	s := &scanner{
		src:   strings.ReplaceAll(sql, "\r\n", "\n"),
		delim: DefaultDelimiter,
		bol:   true,
	}
	s.run()

	return Result{Statements: s.stmts, Unterminated: s.unterminated()}
}

type scanner struct {
	src   string
	pos   int
	delim string
	mode  mode
	quote byte
	// bol is true when pos is at the beginning of a line.
	bol bool

	buf     strings.Builder
	hasCode bool
	stmts   []string
}

func (s *scanner) run() {
	for s.pos < len(s.src) {
		// DELIMITER is only a directive between statements. Inside one it's an
		// ordinary identifier.
		if s.bol && s.mode == modeNormal && !s.hasCode && s.directive() {
			continue
		}
		s.bol = false

		ch := s.src[s.pos]
		switch s.mode {
		case modeLineComment:
			s.write(ch, false)
			s.pos++
			if ch == '\n' {
				s.mode = modeNormal
				s.bol = true
			}
		case modeBlockComment:
			if s.hasPrefix("*/") {
				s.writeString("*/", false)
				s.pos += 2
				s.mode = modeNormal
				continue
			}
			s.write(ch, false)
			s.pos++
		case modeQuoted:
			s.write(ch, true)
			s.pos++
			switch ch {
			case '\\':
				if s.pos < len(s.src) {
					s.write(s.src[s.pos], true)
					s.pos++
				}
			case s.quote:
				s.mode = modeNormal
			}
		case modeNormal:
			s.normal(ch)
		}
	}

	s.flush()
}

func (s *scanner) normal(ch byte) {
	switch {
	case s.hasPrefix("--") || ch == '#':
		s.mode = modeLineComment
		s.write(ch, false)
		s.pos++
	case s.hasPrefix("/*"):
		s.mode = modeBlockComment
		s.writeString("/*", false)
		s.pos += 2
	case ch == '\'' || ch == '"' || ch == '`':
		s.mode = modeQuoted
		s.quote = ch
		s.write(ch, true)
		s.pos++
	case s.delim != "" && s.hasPrefix(s.delim):
		s.pos += len(s.delim)
		s.flush()
	default:
		s.write(ch, !unicode.IsSpace(rune(ch)))
		s.pos++
		if ch == '\n' {
			s.bol = true
		}
	}
}

// directive consumes a DELIMITER line starting at the current position, and
// reports whether it did.
func (s *scanner) directive() bool {
	end := strings.IndexByte(s.src[s.pos:], '\n')
	line := s.src[s.pos:]
	if end >= 0 {
		line = line[:end]
	}

	fields := strings.Fields(line)
	if len(fields) < 2 || !strings.EqualFold(fields[0], "DELIMITER") {
		return false
	}
	s.delim = fields[1]

	if end < 0 {
		s.pos = len(s.src)
	} else {
		s.pos += end + 1
	}
	s.bol = true

	return true
}

func (s *scanner) hasPrefix(p string) bool {
	return strings.HasPrefix(s.src[s.pos:], p)
}

func (s *scanner) write(ch byte, code bool) {
	s.buf.WriteByte(ch)
	s.hasCode = s.hasCode || code
}

func (s *scanner) writeString(str string, code bool) {
	s.buf.WriteString(str)
	s.hasCode = s.hasCode || code
}

func (s *scanner) flush() {
	stmt := strings.TrimSpace(s.buf.String())
	if s.hasCode && stmt != "" {
		s.stmts = append(s.stmts, stmt)
	}
	s.buf.Reset()
	s.hasCode = false
}

func (s *scanner) unterminated() string {
	switch s.mode {
	case modeQuoted:
		return "quoted literal"
	case modeBlockComment:
		return "block comment"
	default:
		return ""
	}
}
