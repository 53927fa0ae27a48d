package sheetsplit

import "sort"

// deletedRow marks a tombstoned entry inside RowMapping.target. It is
// never returned to callers; NewRow and Deleted expose the distinction.
const deletedRow = -1

// RowMapping records, for one worksheet, where every original row lands
// after the filtered rows are physically removed. It is built once per
// filtering pass, is immutable afterwards, and is safe to share across
// goroutines for reading.
//
// Three states exist for an original row number:
//   - retained: NewRow returns its post-deletion row number
//   - tombstoned: the row was deleted; Deleted reports true
//   - unmapped: outside the considered range; NewRow and Deleted both
//     report the row unknown, and the Rewriter leaves such references
//     alone
type RowMapping struct {
	target  map[int]int
	removed []int // original row numbers, descending
}

// BuildRowMapping builds the mapping for a worksheet whose original rows
// are exactly the numbers in rows, with deleted marking the subset that
// the filtering pass removes. Retained rows map to original minus the
// count of deletions above them, so the mapping is strictly increasing
// over retained rows.
//
// The function faithfully tombstones whatever it is told to: keeping the
// header row, or keeping at least one data row, is the caller's policy
// (see markRows).
func BuildRowMapping(rows []int, deleted map[int]bool) *RowMapping {
	sorted := make([]int, len(rows))
	copy(sorted, rows)
	sort.Ints(sorted)

	m := &RowMapping{target: make(map[int]int, len(sorted))}
	offset := 0
	for _, r := range sorted {
		if deleted[r] {
			m.target[r] = deletedRow
			m.removed = append(m.removed, r)
			offset++
			continue
		}
		m.target[r] = r - offset
	}

	// Physical deletion must run highest-first so earlier deletions do
	// not shift the indices of later ones.
	sort.Sort(sort.Reverse(sort.IntSlice(m.removed)))
	return m
}

// BuildRowMappingN builds the mapping over the contiguous range 1..maxRow,
// the common case for a worksheet read top to bottom.
func BuildRowMappingN(maxRow int, deleted map[int]bool) *RowMapping {
	rows := make([]int, 0, maxRow)
	for r := 1; r <= maxRow; r++ {
		rows = append(rows, r)
	}
	return BuildRowMapping(rows, deleted)
}

// NewRow returns the post-deletion row number for an original row. ok is
// false when the row is outside the mapped range or was tombstoned.
func (m *RowMapping) NewRow(orig int) (int, bool) {
	n, ok := m.target[orig]
	if !ok || n == deletedRow {
		return 0, false
	}
	return n, true
}

// Deleted reports whether orig was removed by the filtering pass. It is
// false for rows outside the mapped range.
func (m *RowMapping) Deleted(orig int) bool {
	return m.target[orig] == deletedRow
}

// DeletedRows returns the removed original row numbers in descending
// order, the order a caller must use when physically deleting them.
func (m *RowMapping) DeletedRows() []int {
	out := make([]int, len(m.removed))
	copy(out, m.removed)
	return out
}

// Len returns the number of original rows the mapping covers, retained
// and tombstoned together.
func (m *RowMapping) Len() int { return len(m.target) }

// RemovedCount returns how many rows the mapping tombstones.
func (m *RowMapping) RemovedCount() int { return len(m.removed) }
