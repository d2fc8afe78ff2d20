package chart

import (
	"sort"
	"strings"

	"github.com/sells-group/ahj-registry/internal/model"
)

// ICCColumns is the code column order of the ICC master adoption chart.
var ICCColumns = []string{
	"IBC", "IRC", "IFC", "IMC", "IPC", "IPSDC", "IFGC", "IgCC",
	"IECC-R", "IECC-C", "IPMC", "IEBC", "ISPSC", "ICCPC", "IWUIC", "IZC", "ICC700",
}

// Table is a detected table: rows of cell text.
type Table [][]string

// Page is one page of a decoded document.
type Page struct {
	Tables []Table
	Text   string
}

// Document is a decoded paginated document.
type Document struct {
	Pages []Page
}

// Cell is one decoded chart cell bound to its code column.
type Cell struct {
	Code   string
	Raw    string
	Year   *int
	Status model.AdoptionStatus
}

// Record is one jurisdiction row bound to the column schema.
type Record struct {
	Name  string
	Cells []Cell
}

// Cell returns the decoded cell for a code key.
func (r Record) Cell(code string) (Cell, bool) {
	for _, c := range r.Cells {
		if c.Code == code {
			return c, true
		}
	}
	return Cell{}, false
}

// RowKind classifies a raw row.
type RowKind int

// Row classifications.
const (
	RowRecord RowKind = iota
	RowEmpty
	RowHeader
	RowUnknownName
)

// Extractor binds raw rows to a column schema.
type Extractor struct {
	columns []string
	// names is the set of accepted jurisdiction names, longest first.
	names []string
	known map[string]bool
	// header is the first-cell value that marks a header row.
	header string
}

// NewExtractor creates an Extractor for the given code columns and known
// jurisdiction names.
func NewExtractor(columns, names []string) *Extractor {
	e := &Extractor{
		columns: columns,
		known:   make(map[string]bool, len(names)),
		header:  "State",
	}
	for _, n := range names {
		e.known[n] = true
	}
	e.names = append(e.names, names...)
	sortLongestFirst(e.names)
	return e
}

// NewICCExtractor returns an Extractor for the ICC chart keyed by state names.
func NewICCExtractor() *Extractor {
	return NewExtractor(ICCColumns, model.StateNames())
}

// Columns returns the schema's code keys.
func (e *Extractor) Columns() []string {
	return e.columns
}

// Classify decides what a raw table row is. Only RowRecord rows carry a
// record.
func (e *Extractor) Classify(row []string) (Record, RowKind) {
	if len(row) == 0 {
		return Record{}, RowEmpty
	}
	first := strings.TrimSpace(row[0])
	switch {
	case first == "":
		return Record{}, RowEmpty
	case strings.EqualFold(first, e.header):
		return Record{}, RowHeader
	case !e.known[first]:
		return Record{}, RowUnknownName
	}

	// Pad or truncate to the name column plus one cell per code.
	cells := make([]string, len(e.columns)+1)
	for i := range cells {
		if i < len(row) {
			cells[i] = strings.TrimSpace(row[i])
		}
	}
	return e.bind(first, cells[1:]), RowRecord
}

func (e *Extractor) bind(name string, raw []string) Record {
	rec := Record{Name: name, Cells: make([]Cell, len(e.columns))}
	for i, code := range e.columns {
		var v string
		if i < len(raw) {
			v = raw[i]
		}
		year, status := ParseCell(v)
		rec.Cells[i] = Cell{Code: code, Raw: v, Year: year, Status: status}
	}
	return rec
}

// FromTables extracts records from every detected table in doc. Records are
// deduplicated by name: the last occurrence wins, order follows first sighting.
func (e *Extractor) FromTables(doc *Document) []Record {
	d := newDeduper()
	for _, page := range doc.Pages {
		for _, table := range page.Tables {
			for _, row := range table {
				if rec, kind := e.Classify(row); kind == RowRecord {
					d.add(rec)
				}
			}
		}
	}
	return d.records()
}

// Unmatched returns the first-cell names of table rows that carry at least
// one edition year but name no known jurisdiction, in order of first
// sighting. Footnote and legend rows have no year and are not reported.
func (e *Extractor) Unmatched(doc *Document) []string {
	var out []string
	seen := make(map[string]bool)
	for _, page := range doc.Pages {
		for _, table := range page.Tables {
			for _, row := range table {
				if _, kind := e.Classify(row); kind != RowUnknownName {
					continue
				}
				name := strings.TrimSpace(row[0])
				if seen[name] || !hasYear(row[1:]) {
					continue
				}
				seen[name] = true
				out = append(out, name)
			}
		}
	}
	return out
}

func hasYear(cells []string) bool {
	for _, c := range cells {
		if y, _ := ParseCell(c); y != nil {
			return true
		}
	}
	return false
}

// FromText is the fallback for documents whose table detection failed. Each
// line starting with a known name has its remaining whitespace-delimited
// tokens bound positionally to the schema.
func (e *Extractor) FromText(doc *Document) []Record {
	d := newDeduper()
	for _, page := range doc.Pages {
		for _, line := range strings.Split(page.Text, "\n") {
			line = strings.TrimSpace(line)
			name, rest, ok := e.matchName(line)
			if !ok {
				continue
			}
			d.add(e.bind(name, strings.Fields(rest)))
		}
	}
	return d.records()
}

// Extract runs table extraction and falls back to the text path when no
// table yielded a record.
func (e *Extractor) Extract(doc *Document) []Record {
	if recs := e.FromTables(doc); len(recs) > 0 {
		return recs
	}
	return e.FromText(doc)
}

func (e *Extractor) matchName(line string) (string, string, bool) {
	for _, n := range e.names {
		if !strings.HasPrefix(line, n) {
			continue
		}
		rest := line[len(n):]
		if rest != "" && rest[0] != ' ' && rest[0] != '\t' {
			continue
		}
		return n, rest, true
	}
	return "", "", false
}

type deduper struct {
	order []string
	byKey map[string]Record
}

func newDeduper() *deduper {
	return &deduper{byKey: make(map[string]Record)}
}

func (d *deduper) add(r Record) {
	if _, ok := d.byKey[r.Name]; !ok {
		d.order = append(d.order, r.Name)
	}
	d.byKey[r.Name] = r
}

func (d *deduper) records() []Record {
	out := make([]Record, 0, len(d.order))
	for _, k := range d.order {
		out = append(out, d.byKey[k])
	}
	return out
}

func sortLongestFirst(names []string) {
	sort.SliceStable(names, func(i, j int) bool { return len(names[i]) > len(names[j]) })
}
