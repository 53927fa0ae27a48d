// Package sheetsplit splits a spreadsheet workbook into derivative
// workbooks by filtering rows on column values, while keeping every
// formula in the workbook pointing at the right cell.
//
// The hard part is not removing rows, it is that removing rows shifts
// everything below them: a formula like =SUM(B2:B50) or =Data!A40 written
// against the original layout is wrong the moment rows are deleted, both
// on the filtered sheet and on every sheet that references it. The
// package solves this with two pieces:
//
//   - RowMapping: for one worksheet, a total mapping from every original
//     row number to its post-deletion row number, or to a tombstone when
//     the row itself was removed.
//   - Rewriter: given the RowMappings of all filtered worksheets, rewrites
//     the row component of every A1-style cell reference inside a formula,
//     same-sheet and cross-sheet alike, leaving columns, $ markers and
//     sheet qualifiers untouched.
//
// Split and SplitFile tie the engine to excelize: they apply condition
// groups to a workbook, build the mappings, rewrite all formulas, delete
// the filtered rows and write the derivative file.
package sheetsplit
