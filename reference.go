package sheetsplit

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// CellReference is one A1-style reference token found inside a formula,
// together with the byte offsets needed to splice a rewritten row number
// back into the original text. Only the row component is ever rewritten;
// the column letters, $ markers and sheet qualifier are preserved
// byte-for-byte by splicing around them.
type CellReference struct {
	Sheet  string // unquoted sheet name; empty for an unqualified reference
	Col    string
	Row    int
	AbsCol bool
	AbsRow bool

	start, end       int // whole token, sheet qualifier included
	rowStart, rowEnd int // the row digits, $ marker excluded
}

// scanRefs scans a formula left to right and returns every cell reference
// it contains, in textual order. The accepted grammar is an optional
// sheet qualifier (quoted 'Name'! or bare Name!), an optional $, one or
// more uppercase ASCII column letters, an optional $, and one or more
// digits. Everything else passes through untouched, including lowercase
// references, full-column ranges like A:A, and full-row ranges like 1:1.
//
// Because the scanner consumes maximal token runs, a shorter reference can
// never be recognized inside a longer one (A10 inside A100), which is the
// classic hazard of substitution by string value. Double-quoted string
// literals are skipped, and an uppercase run directly followed by "(" is
// a function name such as LOG10 or ATAN2, not a reference.
func scanRefs(formula string) []CellReference {
	var refs []CellReference
	i, n := 0, len(formula)
	for i < n {
		c := formula[i]
		if c == '"' {
			i = skipStringLiteral(formula, i)
			continue
		}
		if c == '\'' {
			name, next, ok := scanQuotedName(formula, i)
			if !ok {
				i++
				continue
			}
			if next >= n || formula[next] != '!' {
				i = next
				continue
			}
			ref, end, ok := scanCellAt(formula, next+1)
			if !ok {
				i = next + 1
				continue
			}
			ref.Sheet = name
			ref.start = i
			ref.end = end
			refs = append(refs, ref)
			if tail, tend, ok := rangeTail(formula, end, name); ok {
				refs = append(refs, tail)
				end = tend
			}
			i = end
			continue
		}
		r, size := utf8.DecodeRuneInString(formula[i:])
		if !isTokenRune(r) {
			i += size
			continue
		}
		runStart := i
		runEnd := scanRun(formula, i)
		switch {
		case runEnd < n && formula[runEnd] == '!':
			// Bare sheet qualifier, e.g. Data!A4 or 销售!B2.
			ref, end, ok := scanCellAt(formula, runEnd+1)
			if !ok {
				i = runEnd + 1
				continue
			}
			ref.Sheet = formula[runStart:runEnd]
			ref.start = runStart
			ref.end = end
			refs = append(refs, ref)
			if tail, tend, ok := rangeTail(formula, end, ref.Sheet); ok {
				refs = append(refs, tail)
				end = tend
			}
			i = end
		case runEnd < n && formula[runEnd] == '(':
			// Function call; LOG10( would otherwise parse as a reference.
			i = runEnd
		default:
			if ref, ok := parseCellToken(formula, runStart, runEnd); ok {
				refs = append(refs, ref)
			}
			i = runEnd
		}
	}
	return refs
}

// parseCellToken decomposes s[start:end] as $?LETTERS$?DIGITS. The whole
// span must be consumed, so runs like A1B or SUM never qualify.
func parseCellToken(s string, start, end int) (CellReference, bool) {
	var ref CellReference
	i := start
	if i < end && s[i] == '$' {
		ref.AbsCol = true
		i++
	}
	colStart := i
	for i < end && s[i] >= 'A' && s[i] <= 'Z' {
		i++
	}
	if i == colStart {
		return CellReference{}, false
	}
	ref.Col = s[colStart:i]
	if i < end && s[i] == '$' {
		ref.AbsRow = true
		i++
	}
	rowStart := i
	for i < end && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i == rowStart || i != end {
		return CellReference{}, false
	}
	row, err := strconv.Atoi(s[rowStart:end])
	if err != nil || row <= 0 {
		return CellReference{}, false
	}
	ref.Row = row
	ref.start, ref.end = start, end
	ref.rowStart, ref.rowEnd = rowStart, end
	return ref, true
}

// scanCellAt parses the cell part that follows a sheet qualifier's "!".
func scanCellAt(s string, pos int) (CellReference, int, bool) {
	end := scanRun(s, pos)
	if end == pos {
		return CellReference{}, 0, false
	}
	ref, ok := parseCellToken(s, pos, end)
	if !ok {
		return CellReference{}, 0, false
	}
	return ref, end, true
}

// rangeTail parses the second endpoint of a qualified range such as
// Data!A1:B5. The qualifier distributes over the whole range, so the
// endpoint inherits the sheet instead of resolving against the formula's
// own sheet.
func rangeTail(s string, pos int, sheet string) (CellReference, int, bool) {
	if pos >= len(s) || s[pos] != ':' {
		return CellReference{}, 0, false
	}
	ref, end, ok := scanCellAt(s, pos+1)
	if !ok {
		return CellReference{}, 0, false
	}
	ref.Sheet = sheet
	return ref, end, true
}

// scanQuotedName parses a single-quoted sheet name starting at s[i] == '\''.
// A doubled quote inside the name escapes a literal quote, per Excel.
// Returns the unquoted name and the index just past the closing quote.
func scanQuotedName(s string, i int) (string, int, bool) {
	var b strings.Builder
	j := i + 1
	for j < len(s) {
		if s[j] == '\'' {
			if j+1 < len(s) && s[j+1] == '\'' {
				b.WriteByte('\'')
				j += 2
				continue
			}
			return b.String(), j + 1, true
		}
		b.WriteByte(s[j])
		j++
	}
	return "", 0, false
}

// skipStringLiteral advances past a double-quoted string literal starting
// at s[i] == '"'. Doubled quotes escape, per Excel.
func skipStringLiteral(s string, i int) int {
	j := i + 1
	for j < len(s) {
		if s[j] == '"' {
			if j+1 < len(s) && s[j+1] == '"' {
				j += 2
				continue
			}
			return j + 1
		}
		j++
	}
	return len(s)
}

// scanRun advances past a maximal run of characters that can appear in a
// bare sheet name or a cell token: letters of any script, digits, '$',
// '_' and '.'.
func scanRun(s string, i int) int {
	for i < len(s) {
		r, size := utf8.DecodeRuneInString(s[i:])
		if !isTokenRune(r) {
			break
		}
		i += size
	}
	return i
}

func isTokenRune(r rune) bool {
	return r == '$' || r == '_' || r == '.' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
