package sheetsplit

import (
	"strconv"
	"strings"
)

// refError replaces a reference under BreakDanglingRefs. It is the same
// token a spreadsheet application shows for a broken reference.
const refError = "#REF!"

// DanglingRefPolicy controls what happens to a reference whose target row
// was removed by the filtering pass.
type DanglingRefPolicy int

const (
	// PreserveDanglingRefs leaves the reference textually unchanged. The
	// reference then points at whatever data shifted into that row, which
	// a spreadsheet application will not flag. This is the default.
	PreserveDanglingRefs DanglingRefPolicy = iota

	// BreakDanglingRefs replaces the whole reference, qualifier included,
	// with #REF!, making the breakage visible the moment the derivative
	// workbook is opened.
	BreakDanglingRefs
)

// RewriterOptions configures a Rewriter.
type RewriterOptions struct {
	// Policy selects the treatment of references to removed rows.
	Policy DanglingRefPolicy
	// CacheSize bounds the LRU cache of rewrite results. Zero means the
	// default of 4096 entries; negative disables caching.
	CacheSize int
}

const defaultRewriteCacheSize = 4096

// Rewriter rewrites the row numbers inside formulas after rows have been
// removed from one or more worksheets. It holds the RowMappings of every
// filtered worksheet in the batch; a single Rewriter serves the whole
// workbook, because any sheet may reference a filtered one.
//
// Rewriting is pure with respect to the mappings: the same inputs always
// produce the same output, and a Rewriter is safe for concurrent use.
type Rewriter struct {
	mappings map[string]*RowMapping
	policy   DanglingRefPolicy
	cache    *rewriteCache
}

// NewRewriter builds a Rewriter over the given per-worksheet mappings,
// keyed by sheet name. Sheets absent from the map were not filtered, and
// references to them pass through untouched.
func NewRewriter(mappings map[string]*RowMapping, opts ...RewriterOptions) *Rewriter {
	var o RewriterOptions
	if len(opts) > 0 {
		o = opts[0]
	}
	r := &Rewriter{mappings: mappings, policy: o.Policy}
	size := o.CacheSize
	if size == 0 {
		size = defaultRewriteCacheSize
	}
	if size > 0 {
		r.cache = newRewriteCache(size)
	}
	return r
}

// Rewrite returns formula with every row reference remapped. defaultSheet
// is the sheet the formula's cell lives on; unqualified references
// resolve against it. Strings that do not start with "=" are not
// formulas and come back unchanged, as does any formula whose references
// all point at unfiltered sheets or unmapped rows. Rewrite never fails:
// reference-shaped substrings that do not decompose cleanly are left in
// place.
func (r *Rewriter) Rewrite(defaultSheet, formula string) string {
	if !strings.HasPrefix(formula, "=") {
		return formula
	}
	if r.cache == nil {
		return r.rewrite(defaultSheet, formula)
	}
	key := defaultSheet + "\x00" + formula
	if v, ok := r.cache.Load(key); ok {
		return v
	}
	out := r.rewrite(defaultSheet, formula)
	r.cache.Store(key, out)
	return out
}

// rewrite does one pass over the formula: scan all references with their
// byte offsets, then build the output by copying the untouched spans and
// splicing in new row digits. Operating on positions rather than
// replacing by value makes partial-match corruption (rewriting A1 inside
// A10) structurally impossible and rewrites every occurrence of a
// repeated reference exactly once.
func (r *Rewriter) rewrite(defaultSheet, formula string) string {
	refs := scanRefs(formula)
	if len(refs) == 0 {
		return formula
	}

	var b strings.Builder
	last := 0
	changed := false
	for _, ref := range refs {
		sheet := ref.Sheet
		if sheet == "" {
			sheet = defaultSheet
		}
		m := r.mappings[sheet]
		if m == nil {
			continue
		}
		if m.Deleted(ref.Row) {
			if r.policy != BreakDanglingRefs {
				continue
			}
			b.WriteString(formula[last:ref.start])
			b.WriteString(refError)
			last = ref.end
			changed = true
			continue
		}
		newRow, ok := m.NewRow(ref.Row)
		if !ok || newRow == ref.Row {
			continue
		}
		b.WriteString(formula[last:ref.rowStart])
		b.WriteString(strconv.Itoa(newRow))
		last = ref.rowEnd
		changed = true
	}
	if !changed {
		return formula
	}
	b.WriteString(formula[last:])
	return b.String()
}
