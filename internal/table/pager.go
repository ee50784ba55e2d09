// Dump/print pager of spec §4.G.3: formats filtered-and-ordered rows
// into ASCII/CSV/TSV/JSON/Markdown, paginated, with recently rendered
// pages held in an LRU keyed by a hash of the table name, query and page
// options, a concrete home for the reference corpus's LRU dependency, which has
// no other natural place to live in this package.
package table

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"sort"
	"strconv"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Format selects the dump/print output encoding.
type Format int

const (
	FormatASCII Format = iota
	FormatCSV
	FormatTSV
	FormatJSON
	FormatMarkdown
)

// PageOptions configures one dump/print call.
type PageOptions struct {
	Query       Query
	Format      Format
	PageSize    int // 0 means "all matching rows on one page"
	Page        int // 0-based
	MaxColWidth int // 0 means unlimited (ASCII/Markdown only)
	ShowRowNum  bool
	NullRepr    string
	Columns     []string // projection; empty means every schema column
}

// Pager caches rendered pages keyed by a hash of the requesting
// table's name, query, and page options, backed by an LRU so repeated
// dumps of the same filtered view (e.g. an operator shell polling
// loop) don't re-filter/re-sort on every call.
type Pager struct {
	cache *lru.Cache[uint64, string]
}

// NewPager creates a pager caching up to capacity rendered pages.
func NewPager(capacity int) *Pager {
	if capacity < 1 {
		capacity = 32
	}
	cache, _ := lru.New[uint64, string](capacity)
	return &Pager{cache: cache}
}

func (p *Pager) cacheKey(tableName string, opts PageOptions) uint64 {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s|%d|%d|%d|%d|%v|%s|%v|%v",
		tableName, opts.Format, opts.PageSize, opts.Page, opts.MaxColWidth,
		opts.ShowRowNum, opts.NullRepr, opts.Columns, opts.Query)
	return h.Sum64()
}

// Render returns the formatted page for opts against t, serving from
// cache when the same table/query/page/format was rendered since the
// last structural change invalidated it via Invalidate.
func (p *Pager) Render(t *Table, opts PageOptions) string {
	key := p.cacheKey(t.Name(), opts)
	if cached, ok := p.cache.Get(key); ok {
		return cached
	}
	rendered := renderPage(t, opts)
	p.cache.Add(key, rendered)
	return rendered
}

// Invalidate drops every cached page; callers do this after a write
// that would otherwise make cached pages stale.
func (p *Pager) Invalidate() {
	p.cache.Purge()
}

func renderPage(t *Table, opts PageOptions) string {
	rows := t.Query(opts.Query)
	if len(opts.Query.Order) == 0 {
		sort.Slice(rows, func(i, j int) bool { return rows[i].ID < rows[j].ID })
	}

	if opts.PageSize > 0 {
		start := opts.Page * opts.PageSize
		if start >= len(rows) {
			rows = nil
		} else {
			end := start + opts.PageSize
			if end > len(rows) {
				end = len(rows)
			}
			rows = rows[start:end]
		}
	}

	columns := opts.Columns
	if len(columns) == 0 {
		schema := t.Schema()
		for _, c := range schema.Columns {
			columns = append(columns, c.Name)
		}
	}

	nullRepr := opts.NullRepr
	if nullRepr == "" {
		nullRepr = "NULL"
	}

	switch opts.Format {
	case FormatCSV:
		return renderDelimited(rows, columns, opts, nullRepr, ",")
	case FormatTSV:
		return renderDelimited(rows, columns, opts, nullRepr, "\t")
	case FormatJSON:
		return renderJSON(rows, columns, nullRepr)
	case FormatMarkdown:
		return renderTable(rows, columns, opts, nullRepr, true)
	default:
		return renderTable(rows, columns, opts, nullRepr, false)
	}
}

func cellText(row Row, col string, nullRepr string, maxWidth int) string {
	v, ok := row.Values[col]
	var text string
	switch {
	case !ok || v.IsNull():
		text = nullRepr
	case v.Kind == KindString || v.Kind == KindJSON:
		text = v.S
	case v.Kind == KindInteger:
		text = strconv.FormatInt(v.I, 10)
	case v.Kind == KindDouble:
		text = strconv.FormatFloat(v.F, 'g', -1, 64)
	case v.Kind == KindBoolean:
		text = strconv.FormatBool(v.B)
	case v.Kind == KindDateTime:
		text = v.T.UTC().Format("2006-01-02T15:04:05.000Z")
	case v.Kind == KindBinary:
		text = fmt.Sprintf("0x%x", v.Bin)
	default:
		text = ""
	}
	if maxWidth > 0 && len(text) > maxWidth {
		text = text[:maxWidth]
	}
	return text
}

func renderDelimited(rows []Row, columns []string, opts PageOptions, nullRepr, sep string) string {
	var b strings.Builder
	header := columns
	if opts.ShowRowNum {
		header = append([]string{"#"}, columns...)
	}
	b.WriteString(strings.Join(header, sep))
	b.WriteString("\n")
	for i, row := range rows {
		cells := make([]string, 0, len(columns)+1)
		if opts.ShowRowNum {
			cells = append(cells, strconv.Itoa(i+1))
		}
		for _, col := range columns {
			cells = append(cells, cellText(row, col, nullRepr, 0))
		}
		b.WriteString(strings.Join(cells, sep))
		b.WriteString("\n")
	}
	return b.String()
}

func renderJSON(rows []Row, columns []string, nullRepr string) string {
	out := make([]map[string]interface{}, 0, len(rows))
	for _, row := range rows {
		obj := make(map[string]interface{}, len(columns))
		for _, col := range columns {
			v, ok := row.Values[col]
			if !ok || v.IsNull() {
				obj[col] = nil
				continue
			}
			obj[col] = cellText(row, col, nullRepr, 0)
		}
		out = append(out, obj)
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return "[]"
	}
	return string(data)
}

func renderTable(rows []Row, columns []string, opts PageOptions, nullRepr string, markdown bool) string {
	header := columns
	if opts.ShowRowNum {
		header = append([]string{"#"}, columns...)
	}

	grid := make([][]string, 0, len(rows)+1)
	grid = append(grid, header)
	for i, row := range rows {
		cells := make([]string, 0, len(header))
		if opts.ShowRowNum {
			cells = append(cells, strconv.Itoa(i+1))
		}
		for _, col := range columns {
			cells = append(cells, cellText(row, col, nullRepr, opts.MaxColWidth))
		}
		grid = append(grid, cells)
	}

	widths := make([]int, len(header))
	for _, row := range grid {
		for i, cell := range row {
			if len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	var b strings.Builder
	writeRow := func(cells []string) {
		b.WriteString("|")
		for i, cell := range cells {
			b.WriteString(" " + padRight(cell, widths[i]) + " |")
		}
		b.WriteString("\n")
	}

	writeRow(grid[0])
	if markdown {
		b.WriteString("|")
		for _, w := range widths {
			b.WriteString(" " + strings.Repeat("-", w) + " |")
		}
		b.WriteString("\n")
	} else {
		b.WriteString(asciiSeparator(widths))
	}
	for _, row := range grid[1:] {
		writeRow(row)
	}
	if !markdown {
		b.WriteString(asciiSeparator(widths))
	}
	return b.String()
}

func asciiSeparator(widths []int) string {
	var b strings.Builder
	b.WriteString("+")
	for _, w := range widths {
		b.WriteString(strings.Repeat("-", w+2) + "+")
	}
	b.WriteString("\n")
	return b.String()
}

func padRight(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}
