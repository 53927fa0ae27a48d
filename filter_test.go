package sheetsplit

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func newRegionFile(t *testing.T) *excelize.File {
	t.Helper()
	f := excelize.NewFile()
	require.NoError(t, f.SetCellValue("Sheet1", "A1", "Region"))
	require.NoError(t, f.SetCellValue("Sheet1", "B1", "Amount"))
	data := [][]interface{}{
		{"East", 100},
		{"West", 200},
		{"East", 300},
		{"North", 400},
	}
	for i, row := range data {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}
	return f
}

func TestMarkRows(t *testing.T) {
	t.Run("KeepMatching", func(t *testing.T) {
		f := newRegionFile(t)
		defer f.Close()

		del, total, err := markRows(f, Condition{Sheet: "Sheet1", Column: "Region", Values: []string{"East"}})
		require.NoError(t, err)
		assert.Equal(t, 5, total)
		assert.Equal(t, []int{3, 5}, del)
	})

	t.Run("MultipleValues", func(t *testing.T) {
		f := newRegionFile(t)
		defer f.Close()

		del, _, err := markRows(f, Condition{Sheet: "Sheet1", Column: "Region", Values: []string{"East", "West"}})
		require.NoError(t, err)
		assert.Equal(t, []int{5}, del)
	})

	t.Run("HeaderNeverMarked", func(t *testing.T) {
		f := newRegionFile(t)
		defer f.Close()

		del, _, err := markRows(f, Condition{Sheet: "Sheet1", Column: "Region", Values: []string{"East"}})
		require.NoError(t, err)
		assert.NotContains(t, del, 1)
	})

	t.Run("NothingMatchesKeepsOneRow", func(t *testing.T) {
		f := newRegionFile(t)
		defer f.Close()

		del, _, err := markRows(f, Condition{Sheet: "Sheet1", Column: "Region", Values: []string{"South"}})
		require.NoError(t, err)
		// Row 2 survives so the sheet keeps one data row.
		assert.Equal(t, []int{3, 4, 5}, del)
	})

	t.Run("UnknownColumn", func(t *testing.T) {
		f := newRegionFile(t)
		defer f.Close()

		_, _, err := markRows(f, Condition{Sheet: "Sheet1", Column: "Country", Values: []string{"US"}})
		assert.ErrorIs(t, err, ErrColumnNotFound)
	})

	t.Run("UnknownSheet", func(t *testing.T) {
		f := newRegionFile(t)
		defer f.Close()

		_, _, err := markRows(f, Condition{Sheet: "Nope", Column: "Region", Values: []string{"East"}})
		assert.Error(t, err)
	})

	t.Run("ShortRowTreatedAsEmpty", func(t *testing.T) {
		f := newRegionFile(t)
		defer f.Close()
		// Row 6 has an Amount but no Region cell.
		require.NoError(t, f.SetCellValue("Sheet1", "B6", 500))

		del, _, err := markRows(f, Condition{Sheet: "Sheet1", Column: "Region", Values: []string{"East"}})
		require.NoError(t, err)
		assert.Contains(t, del, 6)
	})
}

func TestConditionGroupValid(t *testing.T) {
	good := ConditionGroup{
		Name:       "east",
		Conditions: []Condition{{Sheet: "Sheet1", Column: "Region", Values: []string{"East"}}},
	}
	assert.True(t, good.valid())

	assert.False(t, ConditionGroup{Name: "empty"}.valid())
	assert.False(t, ConditionGroup{
		Conditions: []Condition{{Sheet: "", Column: "Region", Values: []string{"East"}}},
	}.valid())
	assert.False(t, ConditionGroup{
		Conditions: []Condition{{Sheet: "Sheet1", Column: "Region"}},
	}.valid())
}

func TestConditionGroupsRoundTrip(t *testing.T) {
	groups := []ConditionGroup{
		{
			Name: "east region",
			Conditions: []Condition{
				{Sheet: "Sheet1", Column: "Region", Values: []string{"East"}},
				{Sheet: "Orders", Column: "Status", Values: []string{"open", "pending"}},
			},
		},
		{
			Name:       "west",
			Conditions: []Condition{{Sheet: "Sheet1", Column: "Region", Values: []string{"West"}}},
		},
	}

	path := filepath.Join(t.TempDir(), "groups.json")
	require.NoError(t, SaveConditionGroups(path, groups))

	loaded, err := LoadConditionGroups(path)
	require.NoError(t, err)
	assert.Equal(t, groups, loaded)
}

func TestLoadConditionGroupsYAML(t *testing.T) {
	content := `groups:
  - name: east
    conditions:
      - sheet: Sheet1
        column: Region
        values: ["East"]
  - name: big
    conditions:
      - sheet: Orders
        column: Size
        values: ["L", "XL"]
`
	path := filepath.Join(t.TempDir(), "groups.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	groups, err := LoadConditionGroups(path)
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Equal(t, "east", groups[0].Name)
	assert.Equal(t, []string{"East"}, groups[0].Conditions[0].Values)
	assert.Equal(t, "Orders", groups[1].Conditions[0].Sheet)
	assert.Equal(t, []string{"L", "XL"}, groups[1].Conditions[0].Values)
}

func TestLoadConditionGroupsMissingFile(t *testing.T) {
	_, err := LoadConditionGroups(filepath.Join(t.TempDir(), "absent.json"))
	assert.Error(t, err)
}
