package sheetsplit

import (
	"strings"

	"github.com/xuri/efp"
)

// referencedSheets returns the set of worksheet names a formula reads
// from, using the same tokenizer the excelize calculation engine uses.
// Unqualified references count against defaultSheet; qualified ones are
// unquoted. Range operands contribute the sheet of both endpoints.
//
// The splitter uses this as a cheap prefilter: a formula that touches no
// filtered sheet cannot change, so the rewriter never has to scan it.
func referencedSheets(formula, defaultSheet string) map[string]bool {
	sheets := make(map[string]bool)
	ps := efp.ExcelParser()
	tokens := ps.Parse(strings.TrimPrefix(formula, "="))
	if tokens == nil {
		return sheets
	}
	for _, token := range tokens {
		if token.TType != efp.TokenTypeOperand || token.TSubType != efp.TokenSubTypeRange {
			continue
		}
		ref := token.TValue
		if i := strings.LastIndex(ref, "!"); i >= 0 {
			sheets[strings.Trim(ref[:i], "'")] = true
		} else {
			sheets[defaultSheet] = true
		}
	}
	return sheets
}

// touchesMapped reports whether any sheet the formula references has a
// RowMapping in the batch.
func touchesMapped(formula, defaultSheet string, mappings map[string]*RowMapping) bool {
	for sheet := range referencedSheets(formula, defaultSheet) {
		if _, ok := mappings[sheet]; ok {
			return true
		}
	}
	return false
}
