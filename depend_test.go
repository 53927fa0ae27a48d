package sheetsplit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReferencedSheets(t *testing.T) {
	cases := []struct {
		name    string
		formula string
		want    []string
	}{
		{"Unqualified", "=SUM(A1:A10)", []string{"Main"}},
		{"Mixed", "=SUM(A1:A10)+Data!B2", []string{"Main", "Data"}},
		{"Quoted", "='My Sheet'!C3", []string{"My Sheet"}},
		{"NoPrefix", "Data!B2+A1", []string{"Data", "Main"}},
		{"Constants", "=1+2*3", nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := referencedSheets(tc.formula, "Main")
			assert.Len(t, got, len(tc.want))
			for _, sheet := range tc.want {
				assert.True(t, got[sheet], "expected sheet %q", sheet)
			}
		})
	}
}

func TestTouchesMapped(t *testing.T) {
	mappings := map[string]*RowMapping{
		"Data": BuildRowMappingN(5, deletedSet(3)),
	}

	assert.True(t, touchesMapped("=Data!B2", "Main", mappings))
	assert.True(t, touchesMapped("=A1+A2", "Data", mappings))
	assert.False(t, touchesMapped("=A1+A2", "Main", mappings))
	assert.False(t, touchesMapped("=Other!C3", "Main", mappings))
	assert.False(t, touchesMapped("=1+2", "Data", mappings))
}
