package sheetsplit

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/xuri/excelize/v2"
)

// ErrColumnNotFound reports a condition whose column header does not
// appear in row 1 of its worksheet.
var ErrColumnNotFound = errors.New("column not found in header row")

// Condition keeps the rows of one worksheet whose cell in the named
// column matches one of the values. Rows that match no value are removed
// from the derivative workbook. The column is located by header text in
// row 1; comparison is against the cell's displayed value.
type Condition struct {
	Sheet  string   `json:"sheet" koanf:"sheet"`
	Column string   `json:"column" koanf:"column"`
	Values []string `json:"values" koanf:"values"`
}

// ConditionGroup is one derivative workbook's worth of filtering: every
// condition applies, so a row on a sheet survives only if it satisfies
// all conditions targeting that sheet.
type ConditionGroup struct {
	Name       string      `json:"name" koanf:"name"`
	Conditions []Condition `json:"conditions" koanf:"conditions"`
}

func (g ConditionGroup) valid() bool {
	if len(g.Conditions) == 0 {
		return false
	}
	for _, c := range g.Conditions {
		if c.Sheet == "" || c.Column == "" || len(c.Values) == 0 {
			return false
		}
	}
	return true
}

// LoadConditionGroups reads condition groups from path. A .yaml or .yml
// file is parsed through koanf and must carry the groups under a
// top-level "groups" key; anything else is read as a JSON array.
func LoadConditionGroups(path string) ([]ConditionGroup, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		k := koanf.New(".")
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
		var groups []ConditionGroup
		if err := k.Unmarshal("groups", &groups); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		return groups, nil
	default:
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		var groups []ConditionGroup
		if err := json.Unmarshal(data, &groups); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		return groups, nil
	}
}

// SaveConditionGroups writes groups to path as indented JSON, the format
// LoadConditionGroups reads back.
func SaveConditionGroups(path string, groups []ConditionGroup) error {
	data, err := json.MarshalIndent(groups, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

// markRows evaluates one condition against a worksheet and returns the
// original row numbers it removes, plus the worksheet's row count. Row 1
// is the header and is never marked. If the condition would remove every
// data row, the first data row is kept so the sheet does not end up
// empty.
func markRows(f *excelize.File, cond Condition) ([]int, int, error) {
	rows, err := f.GetRows(cond.Sheet)
	if err != nil {
		return nil, 0, fmt.Errorf("read sheet %s: %w", cond.Sheet, err)
	}
	if len(rows) == 0 {
		return nil, 0, nil
	}

	col := -1
	for i, name := range rows[0] {
		if name == cond.Column {
			col = i
			break
		}
	}
	if col < 0 {
		return nil, 0, fmt.Errorf("sheet %s, column %q: %w", cond.Sheet, cond.Column, ErrColumnNotFound)
	}

	keep := make(map[string]bool, len(cond.Values))
	for _, v := range cond.Values {
		keep[v] = true
	}

	var del []int
	for i := 1; i < len(rows); i++ {
		val := ""
		if col < len(rows[i]) {
			val = rows[i][col]
		}
		if !keep[val] {
			del = append(del, i+1)
		}
	}

	if len(del) > 0 && len(del) == len(rows)-1 {
		del = del[1:]
	}
	return del, len(rows), nil
}
