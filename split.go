package sheetsplit

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"unicode"

	"github.com/xuri/excelize/v2"
	"golang.org/x/sync/errgroup"
)

// SplitOptions configures Split and SplitFile.
type SplitOptions struct {
	// Policy selects the treatment of references to removed rows.
	Policy DanglingRefPolicy
	// Workers bounds the formula-rewrite worker pool. Zero means one
	// worker per CPU.
	Workers int
	// Logger receives progress and skip warnings. Nil means slog.Default.
	Logger *slog.Logger
}

func (o SplitOptions) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

func (o SplitOptions) workers() int {
	if o.Workers > 0 {
		return o.Workers
	}
	return runtime.NumCPU()
}

// SplitStats reports what one Split pass did to a workbook.
type SplitStats struct {
	// RowsRemoved counts physically deleted rows per filtered sheet.
	RowsRemoved map[string]int
	// FormulasScanned counts every formula cell in the workbook.
	FormulasScanned int
	// FormulasRewritten counts the cells whose formula text changed.
	FormulasRewritten int
}

// formulaCell is one formula-bearing cell captured before any row moves.
type formulaCell struct {
	sheet   string
	cell    string
	row     int
	formula string
}

// Split filters file in place according to group and remaps every
// formula in the workbook. The pass runs in four phases:
//
//  1. evaluate conditions into per-sheet deleted-row sets;
//  2. build all RowMappings (one goroutine per sheet) — every mapping
//     must exist before any formula is rewritten, because a formula on
//     any sheet may reference any filtered sheet;
//  3. capture every formula cell at its original address and compute its
//     rewritten text with a worker pool;
//  4. delete rows highest-first, then write the engine's formula text
//     back at each cell's relocated address.
//
// Phase 4 runs after deletion because excelize adjusts formulas itself
// when rows are removed; writing the engine's output last keeps the
// configured dangling-reference policy authoritative.
//
// Conditions naming unknown sheets or columns are skipped with a warning
// rather than failing the pass.
func Split(f *excelize.File, group ConditionGroup, opts ...SplitOptions) (*SplitStats, error) {
	var o SplitOptions
	if len(opts) > 0 {
		o = opts[0]
	}
	logger := o.logger()
	stats := &SplitStats{RowsRemoved: make(map[string]int)}

	deleted := make(map[string]map[int]bool)
	rowCount := make(map[string]int)
	for _, cond := range group.Conditions {
		del, total, err := markRows(f, cond)
		if err != nil {
			logger.Warn("skipping condition",
				"group", group.Name, "sheet", cond.Sheet, "column", cond.Column, "err", err)
			continue
		}
		set := deleted[cond.Sheet]
		if set == nil {
			set = make(map[int]bool)
			deleted[cond.Sheet] = set
		}
		for _, r := range del {
			set[r] = true
		}
		if total > rowCount[cond.Sheet] {
			rowCount[cond.Sheet] = total
		}
	}
	if len(deleted) == 0 {
		logger.Info("no conditions applied, workbook unchanged", "group", group.Name)
		return stats, nil
	}

	// Conditions on the same sheet intersect row sets, so their deletions
	// union. The union can empty a sheet even though each condition alone
	// kept a row; re-apply the keep-one-row policy on the union.
	for sheet, set := range deleted {
		if total := rowCount[sheet]; total >= 2 && len(set) >= total-1 {
			for r := 2; r <= total; r++ {
				if set[r] {
					delete(set, r)
					break
				}
			}
		}
	}

	// Phase 2: build every mapping before any rewrite (strict barrier).
	mappings := make(map[string]*RowMapping, len(deleted))
	var mmu sync.Mutex
	g := new(errgroup.Group)
	for sheet, del := range deleted {
		g.Go(func() error {
			m := BuildRowMappingN(rowCount[sheet], del)
			mmu.Lock()
			mappings[sheet] = m
			mmu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	// Phase 3: capture formulas at original addresses and rewrite them.
	cells, err := collectFormulas(f)
	if err != nil {
		return stats, err
	}
	stats.FormulasScanned = len(cells)

	rw := NewRewriter(mappings, RewriterOptions{Policy: o.Policy})
	// Every formula that touches a filtered sheet gets its final text
	// recorded here, unchanged or not: phase 4 re-asserts it over
	// whatever adjustment excelize applied during row deletion.
	final := make(map[int]string, len(cells))
	var fmu sync.Mutex

	jobs := make(chan int, len(cells))
	for i := range cells {
		jobs <- i
	}
	close(jobs)

	var wg sync.WaitGroup
	for w := 0; w < o.workers(); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				fc := cells[i]
				if !touchesMapped(fc.formula, fc.sheet, mappings) {
					continue
				}
				out := strings.TrimPrefix(rw.Rewrite(fc.sheet, "="+fc.formula), "=")
				fmu.Lock()
				final[i] = out
				fmu.Unlock()
			}
		}()
	}
	wg.Wait()

	// Phase 4a: physical deletion, highest row first.
	for sheet, m := range mappings {
		for _, row := range m.DeletedRows() {
			if err := f.RemoveRow(sheet, row); err != nil {
				return stats, fmt.Errorf("remove row %d from sheet %s: %w", row, sheet, err)
			}
		}
		stats.RowsRemoved[sheet] = m.RemovedCount()
		logger.Info("sheet filtered",
			"group", group.Name, "sheet", sheet,
			"removed", m.RemovedCount(), "kept", m.Len()-m.RemovedCount())
	}

	// Phase 4b: write back the engine's formulas at relocated addresses.
	for i, out := range final {
		fc := cells[i]
		target := fc.cell
		if m := mappings[fc.sheet]; m != nil {
			newRow, ok := m.NewRow(fc.row)
			if !ok {
				// The formula's own row was deleted.
				continue
			}
			if newRow != fc.row {
				col, _, err := excelize.CellNameToCoordinates(fc.cell)
				if err != nil {
					return stats, err
				}
				if target, err = excelize.CoordinatesToCellName(col, newRow); err != nil {
					return stats, err
				}
			}
		}
		if err := f.SetCellFormula(fc.sheet, target, out); err != nil {
			return stats, fmt.Errorf("set formula %s!%s: %w", fc.sheet, target, err)
		}
		if out != fc.formula {
			stats.FormulasRewritten++
		}
	}

	logger.Info("formulas remapped",
		"group", group.Name, "scanned", stats.FormulasScanned, "rewritten", stats.FormulasRewritten)
	return stats, nil
}

// SplitFile runs every condition group against a fresh read of inputPath
// and writes one derivative workbook per group into outDir, named
// <base>_<group name>.xlsx. A failing group is reported and skipped so
// the remaining groups still produce output. Returns the paths written.
func SplitFile(inputPath string, groups []ConditionGroup, outDir string, opts ...SplitOptions) ([]string, error) {
	var o SplitOptions
	if len(opts) > 0 {
		o = opts[0]
	}
	logger := o.logger()

	base := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
	var written []string
	for _, group := range groups {
		if !group.valid() {
			logger.Warn("skipping invalid condition group", "name", group.Name)
			continue
		}
		f, err := excelize.OpenFile(inputPath)
		if err != nil {
			return written, fmt.Errorf("open %s: %w", inputPath, err)
		}
		stats, err := Split(f, group, o)
		if err != nil {
			_ = f.Close()
			logger.Warn("condition group failed", "group", group.Name, "err", err)
			continue
		}
		out := filepath.Join(outDir, fmt.Sprintf("%s_%s.xlsx", base, sanitizeName(group.Name)))
		err = saveAtomic(f, out)
		_ = f.Close()
		if err != nil {
			return written, err
		}
		written = append(written, out)
		logger.Info("derivative workbook written",
			"group", group.Name, "path", out, "formulas_rewritten", stats.FormulasRewritten)
	}
	return written, nil
}

// collectFormulas captures every formula cell in the workbook with its
// original address. The scan box per sheet is the union of the occupied
// grid and the declared dimension, so formula cells with empty cached
// values are not missed.
func collectFormulas(f *excelize.File) ([]formulaCell, error) {
	var cells []formulaCell
	for _, sheet := range f.GetSheetList() {
		maxRow, maxCol, err := sheetExtent(f, sheet)
		if err != nil {
			return nil, err
		}
		for row := 1; row <= maxRow; row++ {
			for col := 1; col <= maxCol; col++ {
				cell, err := excelize.CoordinatesToCellName(col, row)
				if err != nil {
					return nil, err
				}
				formula, err := f.GetCellFormula(sheet, cell)
				if err != nil || formula == "" {
					continue
				}
				cells = append(cells, formulaCell{sheet: sheet, cell: cell, row: row, formula: formula})
			}
		}
	}
	return cells, nil
}

func sheetExtent(f *excelize.File, sheet string) (maxRow, maxCol int, err error) {
	rows, err := f.GetRows(sheet)
	if err != nil {
		return 0, 0, err
	}
	maxRow = len(rows)
	for _, row := range rows {
		if len(row) > maxCol {
			maxCol = len(row)
		}
	}
	if dim, err := f.GetSheetDimension(sheet); err == nil && dim != "" {
		ref := dim
		if i := strings.Index(ref, ":"); i >= 0 {
			ref = ref[i+1:]
		}
		if col, row, err := excelize.CellNameToCoordinates(ref); err == nil {
			if row > maxRow {
				maxRow = row
			}
			if col > maxCol {
				maxCol = col
			}
		}
	}
	return maxRow, maxCol, nil
}

// sanitizeName makes a group name safe for a file name: alphanumerics,
// space, '_' and '-' survive, everything else becomes '_', capped at 50
// characters.
func sanitizeName(name string) string {
	var b strings.Builder
	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == ' ' || r == '_' || r == '-' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	runes := []rune(b.String())
	if len(runes) > 50 {
		runes = runes[:50]
	}
	if len(runes) == 0 {
		return "group"
	}
	return string(runes)
}
