// Package sqlguard rejects generated SQL that could modify a transit database.
package sqlguard

import (
	"strings"
	"unicode"

	"github.com/barekit/rihlat/pkg/errs"
	"github.com/blastrain/vitess-sqlparser/sqlparser"
)

// Check returns nil when sql is a single read statement.
//
// The parser speaks the MySQL grammar. Statements it cannot read (common table expressions,
// dialect-specific functions) are let through only when they are a single statement starting
// with SELECT or WITH and contain no write keyword outside literals and comments.
func Check(sql string) error {
	sql = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(sql), ";"))
	if sql == "" {
		return errs.New(errs.KindParse, "sqlguard", "empty query")
	}

	stmt, err := sqlparser.Parse(sql)
	if err != nil {
		if isReadPrefix(sql) && !strings.Contains(sql, ";") {
			if kw := writeKeyword(sql); kw != "" {
				return errs.Newf(errs.KindDatabase, "sqlguard", "query rejected: %s is not allowed", kw)
			}
			return nil
		}
		return errs.Newf(errs.KindDatabase, "sqlguard", "query rejected: %v", err)
	}

	switch stmt.(type) {
	case *sqlparser.Select, *sqlparser.Union, *sqlparser.ParenSelect:
		return nil
	default:
		return errs.Newf(errs.KindDatabase, "sqlguard", "query rejected: only read statements are allowed, got %T", stmt)
	}
}

// IsSafeSelect reports whether Check accepts sql.
func IsSafeSelect(sql string) bool {
	return Check(sql) == nil
}

func isReadPrefix(sql string) bool {
	fields := strings.Fields(sql)
	if len(fields) == 0 {
		return false
	}
	switch strings.ToUpper(fields[0]) {
	case "SELECT", "WITH":
		return true
	}
	return false
}

var writeKeywords = map[string]bool{
	"INSERT":   true,
	"UPDATE":   true,
	"DELETE":   true,
	"REPLACE":  true,
	"MERGE":    true,
	"DROP":     true,
	"ALTER":    true,
	"CREATE":   true,
	"TRUNCATE": true,
	"GRANT":    true,
	"REVOKE":   true,
	"EXEC":     true,
	"EXECUTE":  true,
	"CALL":     true,
	"COPY":     true,
	"ATTACH":   true,
	"DETACH":   true,
	"PRAGMA":   true,
	"VACUUM":   true,
	"INTO":     true,
}

// writeKeyword returns the first keyword of sql that can modify data, or "".
// Quoted strings, quoted identifiers and comments are skipped.
func writeKeyword(sql string) string {
	for _, word := range words(sql) {
		if up := strings.ToUpper(word); writeKeywords[up] {
			return up
		}
	}
	return ""
}

func words(sql string) []string {
	var (
		out  []string
		word strings.Builder
	)
	flush := func() {
		if word.Len() > 0 {
			out = append(out, word.String())
			word.Reset()
		}
	}

	r := []rune(sql)
	for i := 0; i < len(r); i++ {
		c := r[i]
		switch {
		case c == '\'' || c == '"' || c == '`':
			flush()
			i = skipQuoted(r, i, c)
		case c == '[':
			flush()
			i = skipQuoted(r, i, ']')
		case c == '-' && i+1 < len(r) && r[i+1] == '-':
			flush()
			for i < len(r) && r[i] != '\n' {
				i++
			}
		case c == '/' && i+1 < len(r) && r[i+1] == '*':
			flush()
			i += 2
			for i+1 < len(r) && !(r[i] == '*' && r[i+1] == '/') {
				i++
			}
			i++
		case c == '_' || unicode.IsLetter(c) || unicode.IsDigit(c):
			word.WriteRune(c)
		default:
			flush()
		}
	}
	flush()
	return out
}

// skipQuoted returns the index of the character closing the quote opened at start.
// A doubled closing character is an escaped one.
func skipQuoted(r []rune, start int, closer rune) int {
	for i := start + 1; i < len(r); i++ {
		if r[i] != closer {
			continue
		}
		if i+1 < len(r) && r[i+1] == closer {
			i++
			continue
		}
		return i
	}
	return len(r)
}
